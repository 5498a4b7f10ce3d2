package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/learner/internal/automl"
	"github.com/banshee-data/learner/internal/config"
	"github.com/banshee-data/learner/internal/errs"
	"github.com/banshee-data/learner/internal/explain"
	"github.com/banshee-data/learner/internal/frame"
	"github.com/banshee-data/learner/internal/modelstore"
	"github.com/banshee-data/learner/internal/monitoring"
	"github.com/banshee-data/learner/internal/report"
	"github.com/banshee-data/learner/internal/runstore"
	"github.com/banshee-data/learner/internal/tabular"
	"github.com/banshee-data/learner/internal/testutil"
	"github.com/banshee-data/learner/internal/timeutil"
)

func quiet(t *testing.T) {
	t.Helper()
	prev := monitoring.Logf
	monitoring.SetLogger(nil)
	t.Cleanup(func() { monitoring.SetLogger(prev) })
}

func classificationJob(t *testing.T, models ...string) *config.JobConfig {
	t.Helper()
	dir := t.TempDir()
	return &config.JobConfig{
		InputFile:            testutil.WriteFile(t, dir, "train.csv", testutil.ClassificationCSV(50)),
		TargetCol:            4,
		OutputDir:            filepath.Join(dir, "out"),
		TaskType:             config.TaskClassification,
		RandomSeed:           42,
		CrossValidation:      config.PtrBool(true),
		CrossValidationFolds: config.PtrInt(3),
		Models:               models,
	}
}

func TestRunClassificationEndToEnd(t *testing.T) {
	quiet(t)
	cfg := classificationJob(t, "lr", "knn")
	tr, err := NewTrainer(cfg)
	require.NoError(t, err)

	runs, err := runstore.Open(filepath.Join(t.TempDir(), runstore.FileName))
	require.NoError(t, err)
	defer runs.Close()
	tr.Runs = runs
	clock := timeutil.NewMockClock(time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC))
	clock.AutoAdvance(time.Second)
	tr.Clock = clock

	require.NoError(t, tr.Run(context.Background()))
	assert.Equal(t, StageSaveReport, tr.Completed())

	doc, err := os.ReadFile(filepath.Join(cfg.OutputDir, report.HTMLFile))
	require.NoError(t, err)
	html := string(doc)
	assert.Contains(t, html, "openTab(event, 'summary')")
	assert.Contains(t, html, "openTab(event, 'plots')")
	assert.Contains(t, html, "openTab(event, 'feature')")
	assert.NotContains(t, html, "openTab(event, 'explainer')")

	blob, err := modelstore.Load(tr.ModelPath())
	require.NoError(t, err)
	assert.NotEmpty(t, blob)
	bundle, err := automl.DecodeBundle(blob)
	require.NoError(t, err)
	assert.Equal(t, "label", bundle.Target)

	for _, name := range []string{report.BestModelCSV, report.ComparisonCSV, report.TestResultsCSV, report.MarkdownFile} {
		_, err := os.Stat(filepath.Join(cfg.OutputDir, name))
		assert.NoError(t, err, name)
	}

	a := tr.Artifact()
	assert.Equal(t, []string{"0"}, a.TestResults.Index)
	for _, tbl := range []*frame.Table{a.Results, a.TestResults} {
		assert.GreaterOrEqual(t, tbl.ColumnIndex("ROC-AUC"), 0)
		assert.GreaterOrEqual(t, tbl.ColumnIndex(PRAUCMetric), 0)
		assert.Equal(t, -1, tbl.ColumnIndex(automl.ColAUC))
	}
	assert.Empty(t, a.ExplainerHTML)
	assert.Empty(t, a.TreeImages)
	assert.NotEmpty(t, a.FeatureHTML)
	assert.NotEmpty(t, a.Plots)

	run, err := runs.Get(tr.RunID())
	require.NoError(t, err)
	assert.Equal(t, runstore.StatusSucceeded, run.Status)
	assert.Equal(t, a.ModelName, run.BestModel)
	require.Len(t, run.Stages, 8)
	assert.Equal(t, StageLoadData.String(), run.Stages[0].Stage)
	assert.Equal(t, StageSaveReport.String(), run.Stages[7].Stage)
	for _, st := range run.Stages {
		assert.Equal(t, time.Second, st.Duration, st.Stage)
	}
	board, err := runs.Leaderboard(tr.RunID())
	require.NoError(t, err)
	assert.Equal(t, a.Results.Len(), board.Len())
}

func TestRunTreeEnsembleAddsExplainer(t *testing.T) {
	quiet(t)
	cfg := classificationJob(t, "rf")
	cfg.CrossValidation = config.PtrBool(false)
	tr, err := NewTrainer(cfg)
	require.NoError(t, err)
	tr.Trees.MaxTrees = 2

	require.NoError(t, tr.Run(context.Background()))
	a := tr.Artifact()
	assert.True(t, a.HasExplainer())
	assert.Len(t, a.TreeImages, 2)
	assert.False(t, a.CrossValidation)

	doc, err := os.ReadFile(filepath.Join(cfg.OutputDir, report.HTMLFile))
	require.NoError(t, err)
	assert.Contains(t, string(doc), "openTab(event, 'explainer')")
	assert.Contains(t, string(doc), "Validation set")
	assert.NotContains(t, string(doc), `src="http`, "report is viewable offline")
	assert.Contains(t, string(doc), `href="`+explain.PageFile+`"`)
	_, err = os.Stat(filepath.Join(cfg.OutputDir, explain.PageFile))
	assert.NoError(t, err)
}

func TestRunRegression(t *testing.T) {
	quiet(t)
	dir := t.TempDir()
	cfg := &config.JobConfig{
		InputFile:  testutil.WriteFile(t, dir, "train.csv", testutil.RegressionCSV(60)),
		TargetCol:  3,
		OutputDir:  filepath.Join(dir, "out"),
		TaskType:   config.TaskRegression,
		RandomSeed: 7,
		Models:     []string{"lr", "dt"},
	}
	cfg.CrossValidation = config.PtrBool(false)
	tr, err := NewTrainer(cfg)
	require.NoError(t, err)
	require.NoError(t, tr.Run(context.Background()))

	a := tr.Artifact()
	assert.GreaterOrEqual(t, a.Results.ColumnIndex(automl.ColR2), 0)
	assert.Equal(t, -1, a.Results.ColumnIndex("ROC-AUC"))
	var names []string
	for _, p := range a.Plots {
		names = append(names, p.Name)
	}
	assert.Subset(t, []string{"residuals", "error", "feature"}, names)
	assert.Contains(t, names, "residuals")
}

func TestRenameAUC(t *testing.T) {
	in := frame.New("Model", "Accuracy", "AUC", "TT (Sec)")
	in.Append("lr", "Logistic Regression", "0.9000", "0.9500", "0.01")

	out := RenameAUC(in)
	assert.Equal(t, []string{"Model", "Accuracy", "ROC-AUC", "TT (Sec)"}, out.Columns)
	if diff := cmp.Diff(in.Rows, out.Rows); diff != "" {
		t.Errorf("rows changed (-in +out):\n%s", diff)
	}
	assert.Equal(t, in.Index, out.Index)
	assert.Equal(t, "AUC", in.Columns[2], "input table is not modified")
}

func TestStagesEnforceOrder(t *testing.T) {
	quiet(t)
	tr, err := NewTrainer(classificationJob(t))
	require.NoError(t, err)
	ctx := context.Background()

	err = tr.SetupExperiment(ctx)
	assert.ErrorIs(t, err, ErrStageOrder)
	err = tr.SaveReport(ctx)
	assert.ErrorIs(t, err, ErrStageOrder)
	assert.Equal(t, StageNone, tr.Completed())

	require.NoError(t, tr.LoadData(ctx))
	assert.ErrorIs(t, tr.LoadData(ctx), ErrStageOrder, "stages do not repeat")
	assert.ErrorIs(t, tr.TrainModel(ctx), ErrStageOrder)
	require.NoError(t, tr.SetupExperiment(ctx))
	assert.Equal(t, StageSetupExperiment, tr.Completed())
}

func TestRunStopsOnCancelledContext(t *testing.T) {
	quiet(t)
	tr, err := NewTrainer(classificationJob(t))
	require.NoError(t, err)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err = tr.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StageNone, tr.Completed())
}

func TestRunUnknownModelIsConfigurationError(t *testing.T) {
	quiet(t)
	tr, err := NewTrainer(classificationJob(t, "xgboost"))
	require.NoError(t, err)

	err = tr.Run(context.Background())
	var ce *errs.ConfigurationError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, StageSetupExperiment, tr.Completed())
}

// extraFeature reports one feature name more than the holdout has columns.
type extraFeature struct {
	automl.Experiment
}

func (e extraFeature) FeatureNames() []string {
	return append(e.Experiment.FeatureNames(), "phantom")
}

func TestRunFailsWhenImportanceFails(t *testing.T) {
	quiet(t)
	cfg := classificationJob(t, "lr")
	tr, err := NewTrainer(cfg)
	require.NoError(t, err)
	tr.NewExperiment = func(kind string) (automl.Experiment, error) {
		exp, err := automl.NewExperiment(kind)
		if err != nil {
			return nil, err
		}
		return extraFeature{exp}, nil
	}

	err = tr.Run(context.Background())
	var ext *errs.ExternalLibraryError
	require.True(t, errors.As(err, &ext), "got %v", err)
	assert.Equal(t, "feature importance", ext.Op)
	assert.Equal(t, StageSaveModel, tr.Completed())
	assert.Empty(t, tr.Artifact().FeatureHTML)
	_, err = os.Stat(filepath.Join(cfg.OutputDir, report.HTMLFile))
	assert.True(t, os.IsNotExist(err), "no report after a failed stage")
}

func TestNewTrainerValidates(t *testing.T) {
	_, err := NewTrainer(nil)
	var ce *errs.ConfigurationError
	assert.True(t, errors.As(err, &ce))

	cfg := classificationJob(t)
	cfg.OutputDir = ""
	_, err = NewTrainer(cfg)
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "output_dir", ce.Setting)
}

func keys(params []automl.SetupParam) []string {
	out := make([]string, len(params))
	for i, p := range params {
		out[i] = p.Key
	}
	return out
}

func TestSetupParams(t *testing.T) {
	base := []string{"target", "session_id", "html", "log_experiment", "system_log", "index"}
	test := &tabular.Dataset{}

	tests := []struct {
		name string
		cfg  config.JobConfig
		test *tabular.Dataset
		want []string
	}{
		{
			name: "defaults",
			want: base,
		},
		{
			name: "all overrides",
			cfg: config.JobConfig{
				TrainSize:               config.PtrFloat64(0.8),
				CrossValidation:         config.PtrBool(true),
				Normalize:               config.PtrBool(true),
				FeatureSelection:        config.PtrBool(false),
				CrossValidationFolds:    config.PtrInt(5),
				RemoveOutliers:          config.PtrBool(true),
				RemoveMulticollinearity: config.PtrBool(true),
				PolynomialFeatures:      config.PtrBool(false),
				FixImbalance:            config.PtrBool(true),
			},
			want: append(append([]string(nil), base...),
				"train_size", "normalize", "feature_selection", "fold",
				"remove_outliers", "remove_multicollinearity", "polynomial_features", "fix_imbalance"),
		},
		{
			name: "test data replaces train size",
			cfg:  config.JobConfig{TrainSize: config.PtrFloat64(0.8)},
			test: test,
			want: append(append([]string(nil), base...), "test_data"),
		},
		{
			name: "folds ignored when cross validation is unset",
			cfg:  config.JobConfig{CrossValidationFolds: config.PtrInt(5)},
			want: base,
		},
		{
			name: "folds ignored without cross validation",
			cfg: config.JobConfig{
				CrossValidation:      config.PtrBool(false),
				CrossValidationFolds: config.PtrInt(5),
			},
			want: base,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.cfg.RandomSeed = 3
			got := SetupParams(&tt.cfg, "y", tt.test)
			assert.Equal(t, tt.want, keys(got))
			assert.Equal(t, "y", got[0].Value)
			assert.Equal(t, int64(3), got[1].Value)
		})
	}
}

func TestStageString(t *testing.T) {
	assert.Equal(t, "load_data", StageLoadData.String())
	assert.Equal(t, "save_report", StageSaveReport.String())
	assert.Equal(t, "stage(42)", Stage(42).String())
}
