package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindJobFlags(fs)
	require.NoError(t, fs.Parse(args))
	return fs
}

func TestLoadJobFromFlags(t *testing.T) {
	fs := newFlags(t,
		"--input", "train.csv",
		"--target-col", "3",
		"--output-dir", "out",
		"--task", "regression",
		"--normalize",
		"--models", "lr,ridge",
	)

	cfg, err := LoadJob("", fs)
	require.NoError(t, err)

	assert.Equal(t, "train.csv", cfg.InputFile)
	assert.Equal(t, 3, cfg.TargetCol)
	assert.Equal(t, TaskRegression, cfg.TaskType)
	assert.Equal(t, int64(42), cfg.RandomSeed)
	require.NotNil(t, cfg.Normalize)
	assert.True(t, *cfg.Normalize)
	assert.Equal(t, []string{"lr", "ridge"}, cfg.Models)

	// Unchanged flags must not surface as supplied overrides.
	assert.Nil(t, cfg.TrainSize)
	assert.Nil(t, cfg.CrossValidation)
	assert.Nil(t, cfg.FixImbalance)
}

func TestLoadJobPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yaml")
	yamlDoc := `input_file: from-file.csv
target_col: 2
output_dir: file-out
task: classification
train_size: 0.6
`
	require.NoError(t, os.WriteFile(path, []byte(yamlDoc), 0o644))

	t.Setenv("LEARNER_OUTPUT_DIR", "env-out")
	t.Setenv("LEARNER_TRAIN_SIZE", "0.75")

	fs := newFlags(t, "--train-size", "0.9")
	cfg, err := LoadJob(path, fs)
	require.NoError(t, err)

	assert.Equal(t, "from-file.csv", cfg.InputFile)
	assert.Equal(t, "env-out", cfg.OutputDir)
	require.NotNil(t, cfg.TrainSize)
	assert.Equal(t, 0.9, *cfg.TrainSize)
}

func TestLoadJobValidates(t *testing.T) {
	fs := newFlags(t, "--input", "x.csv", "--target-col", "1", "--task", "classification")
	_, err := LoadJob("", fs)
	assert.Error(t, err)
}
