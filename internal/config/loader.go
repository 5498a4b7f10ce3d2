package config

import (
	"fmt"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix is the prefix for environment overrides, e.g. LEARNER_OUTPUT_DIR.
const EnvPrefix = "LEARNER_"

// flagKeys maps CLI flag names whose config key differs from the
// kebab-to-snake translation.
var flagKeys = map[string]string{
	"input": "input_file",
}

// BindJobFlags registers the tabular job flags on fs. Flag values only
// override the config file and environment when explicitly set.
func BindJobFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "YAML job file")
	fs.String("input", "", "training CSV file")
	fs.String("test-file", "", "optional held-out CSV file")
	fs.Int("target-col", 0, "1-based ordinal of the target column")
	fs.String("output-dir", "", "directory for the report and artifacts")
	fs.String("task", "", "classification or regression")
	fs.Int64("random-seed", 42, "experiment seed")
	fs.Float64("train-size", 0.7, "train fraction when no test file is given")
	fs.Bool("normalize", false, "z-score numeric features")
	fs.Bool("feature-selection", false, "keep the most informative features")
	fs.Bool("cross-validation", true, "enable k-fold cross-validation")
	fs.Int("cross-validation-folds", 10, "number of CV folds")
	fs.Bool("remove-outliers", false, "drop training rows with outlying features")
	fs.Bool("remove-multicollinearity", false, "drop highly correlated features")
	fs.Bool("polynomial-features", false, "add degree-2 interaction features")
	fs.Bool("fix-imbalance", false, "oversample minority classes")
	fs.String("missing-value-strategy", MissingMedian, "mean, median or drop")
	fs.StringSlice("models", nil, "restrict the comparison to these model ids")
}

// LoadJob builds a JobConfig from, in increasing precedence: defaults, the
// YAML file at cfgFile (if any), LEARNER_* environment variables and flags
// that were explicitly changed on fs.
func LoadJob(cfgFile string, fs *pflag.FlagSet) (*JobConfig, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(map[string]interface{}{
		"random_seed": int64(42),
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if cfgFile != "" {
		if err := k.Load(file.Provider(cfgFile), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", cfgFile, err)
		}
	}

	// LEARNER_OUTPUT_DIR -> output_dir
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if fs != nil {
		if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			key := strings.ReplaceAll(f.Name, "-", "_")
			if mapped, ok := flagKeys[f.Name]; ok {
				key = mapped
			}
			return key, posflag.FlagVal(fs, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg JobConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "json",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.StringToTimeDurationHookFunc(),
			),
			WeaklyTypedInput: true,
		},
	}); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
