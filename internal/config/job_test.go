package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/learner/internal/errs"
)

func validJob() JobConfig {
	return JobConfig{
		InputFile:  "train.csv",
		TargetCol:  1,
		OutputDir:  "out",
		TaskType:   TaskClassification,
		RandomSeed: 42,
	}
}

func TestJobConfigDefaults(t *testing.T) {
	cfg := validJob()

	assert.Equal(t, MissingMedian, cfg.GetMissingValueStrategy())
	assert.True(t, cfg.GetCrossValidation())
	assert.Equal(t, 0.7, cfg.GetTrainSize())
	assert.Equal(t, 10, cfg.GetFolds())
	assert.True(t, cfg.IsClassification())

	cfg.MissingValueStrategy = PtrString(MissingDrop)
	cfg.CrossValidation = PtrBool(false)
	cfg.TrainSize = PtrFloat64(0.8)
	cfg.CrossValidationFolds = PtrInt(5)
	assert.Equal(t, MissingDrop, cfg.GetMissingValueStrategy())
	assert.False(t, cfg.GetCrossValidation())
	assert.Equal(t, 0.8, cfg.GetTrainSize())
	assert.Equal(t, 5, cfg.GetFolds())
}

func TestJobConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*JobConfig)
		setting string
	}{
		{"missing output dir", func(c *JobConfig) { c.OutputDir = "" }, "output_dir"},
		{"missing input", func(c *JobConfig) { c.InputFile = " " }, "input_file"},
		{"zero target", func(c *JobConfig) { c.TargetCol = 0 }, "target_col"},
		{"unknown task", func(c *JobConfig) { c.TaskType = "clustering" }, "task"},
		{"train size out of range", func(c *JobConfig) { c.TrainSize = PtrFloat64(1.5) }, "train_size"},
		{"one fold", func(c *JobConfig) { c.CrossValidationFolds = PtrInt(1) }, "cross_validation_folds"},
		{"unknown strategy", func(c *JobConfig) { c.MissingValueStrategy = PtrString("mode") }, "missing_value_strategy"},
		{"blank model", func(c *JobConfig) { c.Models = []string{"lr", ""} }, "models"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validJob()
			tt.mutate(&cfg)

			err := cfg.Validate()
			var cfgErr *errs.ConfigurationError
			require.True(t, errors.As(err, &cfgErr), "expected ConfigurationError, got %v", err)
			assert.Equal(t, tt.setting, cfgErr.Setting)
		})
	}

	cfg := validJob()
	assert.NoError(t, cfg.Validate())
}
