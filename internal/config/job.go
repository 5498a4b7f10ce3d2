package config

import (
	"strings"

	"github.com/banshee-data/learner/internal/errs"
)

// Task kinds understood by the tabular pipeline.
const (
	TaskClassification = "classification"
	TaskRegression     = "regression"
)

// Missing-value strategies applied after the CSV is loaded.
const (
	MissingMean   = "mean"
	MissingMedian = "median"
	MissingDrop   = "drop"
)

// ModelFileName is the container written by the persist stage.
const ModelFileName = "pycaret_model.h5"

// JobConfig describes one tabular training run. Required fields are plain
// values; every optional override is a pointer so that "not supplied" can be
// told apart from a zero value. Only supplied overrides reach the experiment.
type JobConfig struct {
	InputFile  string `json:"input_file"`
	TestFile   string `json:"test_file,omitempty"`
	TargetCol  int    `json:"target_col"` // 1-based ordinal over the cleaned columns
	OutputDir  string `json:"output_dir"`
	TaskType   string `json:"task"`
	RandomSeed int64  `json:"random_seed"`

	TrainSize               *float64 `json:"train_size,omitempty"`
	Normalize               *bool    `json:"normalize,omitempty"`
	FeatureSelection        *bool    `json:"feature_selection,omitempty"`
	CrossValidation         *bool    `json:"cross_validation,omitempty"`
	CrossValidationFolds    *int     `json:"cross_validation_folds,omitempty"`
	RemoveOutliers          *bool    `json:"remove_outliers,omitempty"`
	RemoveMulticollinearity *bool    `json:"remove_multicollinearity,omitempty"`
	PolynomialFeatures      *bool    `json:"polynomial_features,omitempty"`
	FixImbalance            *bool    `json:"fix_imbalance,omitempty"`
	MissingValueStrategy    *string  `json:"missing_value_strategy,omitempty"`

	Models []string `json:"models,omitempty"`
}

// Helper functions to create pointers
func PtrFloat64(v float64) *float64 { return &v }
func PtrBool(v bool) *bool          { return &v }
func PtrString(v string) *string    { return &v }
func PtrInt(v int) *int             { return &v }

// Validate checks the fields that can be judged without reading the data.
// The target ordinal upper bound is checked once the columns are known.
func (c *JobConfig) Validate() error {
	if strings.TrimSpace(c.InputFile) == "" {
		return errs.Configf("input_file", "must be set")
	}
	if strings.TrimSpace(c.OutputDir) == "" {
		return errs.Configf("output_dir", "must be set")
	}
	if c.TargetCol < 1 {
		return errs.Configf("target_col", "must be a 1-based column ordinal, got %d", c.TargetCol)
	}
	switch c.TaskType {
	case TaskClassification, TaskRegression:
	default:
		return errs.Configf("task", "unknown task kind %q", c.TaskType)
	}

	if c.TrainSize != nil {
		if *c.TrainSize <= 0 || *c.TrainSize >= 1 {
			return errs.Configf("train_size", "must be between 0 and 1, got %g", *c.TrainSize)
		}
	}
	if c.CrossValidationFolds != nil && *c.CrossValidationFolds < 2 {
		return errs.Configf("cross_validation_folds", "must be at least 2, got %d", *c.CrossValidationFolds)
	}
	if c.MissingValueStrategy != nil {
		switch *c.MissingValueStrategy {
		case MissingMean, MissingMedian, MissingDrop:
		default:
			return errs.Configf("missing_value_strategy", "unknown strategy %q", *c.MissingValueStrategy)
		}
	}
	for _, m := range c.Models {
		if strings.TrimSpace(m) == "" {
			return errs.Configf("models", "empty model identifier")
		}
	}
	return nil
}

// GetMissingValueStrategy returns the imputation strategy or the default.
func (c *JobConfig) GetMissingValueStrategy() string {
	if c.MissingValueStrategy == nil || *c.MissingValueStrategy == "" {
		return MissingMedian
	}
	return *c.MissingValueStrategy
}

// GetCrossValidation reports whether k-fold CV is enabled (default true).
func (c *JobConfig) GetCrossValidation() bool {
	if c.CrossValidation == nil {
		return true
	}
	return *c.CrossValidation
}

// GetTrainSize returns the train fraction or the engine default.
func (c *JobConfig) GetTrainSize() float64 {
	if c.TrainSize == nil {
		return 0.7
	}
	return *c.TrainSize
}

// GetFolds returns the CV fold count or the engine default.
func (c *JobConfig) GetFolds() int {
	if c.CrossValidationFolds == nil {
		return 10
	}
	return *c.CrossValidationFolds
}

// IsClassification reports whether the job is a classification task.
func (c *JobConfig) IsClassification() bool {
	return c.TaskType == TaskClassification
}
