// Package pipeline drives one tabular training run from CSV to report.
//
// Stages run in a fixed order and each one refuses to start until its
// predecessor has completed. A failing stage aborts the run and leaves
// whatever files were already written in the output directory.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/banshee-data/learner/internal/automl"
	"github.com/banshee-data/learner/internal/config"
	"github.com/banshee-data/learner/internal/errs"
	"github.com/banshee-data/learner/internal/explain"
	"github.com/banshee-data/learner/internal/frame"
	"github.com/banshee-data/learner/internal/fsutil"
	"github.com/banshee-data/learner/internal/importance"
	"github.com/banshee-data/learner/internal/modelstore"
	"github.com/banshee-data/learner/internal/monitoring"
	"github.com/banshee-data/learner/internal/plots"
	"github.com/banshee-data/learner/internal/report"
	"github.com/banshee-data/learner/internal/runstore"
	"github.com/banshee-data/learner/internal/tabular"
	"github.com/banshee-data/learner/internal/timeutil"
)

// ErrStageOrder is returned when a stage is called before its predecessor
// has completed.
var ErrStageOrder = errors.New("pipeline stage called out of order")

// PRAUCMetric is the extra classification metric added to every leaderboard.
const PRAUCMetric = "PR-AUC-Weighted"

// PlotsDir is the output subdirectory holding plot images.
const PlotsDir = "plots"

// Stage identifies one pipeline step.
type Stage int

const (
	StageNone Stage = iota
	StageLoadData
	StageSetupExperiment
	StageTrainModel
	StageSaveModel
	StageGeneratePlots
	StageGenerateExplainer
	StageGenerateTreePlots
	StageSaveReport
)

var stageNames = map[Stage]string{
	StageNone:              "none",
	StageLoadData:          "load_data",
	StageSetupExperiment:   "setup_experiment",
	StageTrainModel:        "train_model",
	StageSaveModel:         "save_model",
	StageGeneratePlots:     "generate_plots",
	StageGenerateExplainer: "generate_explainer",
	StageGenerateTreePlots: "generate_tree_plots",
	StageSaveReport:        "save_report",
}

func (s Stage) String() string {
	if n, ok := stageNames[s]; ok {
		return n
	}
	return fmt.Sprintf("stage(%d)", int(s))
}

// Trainer holds the state threaded through the stages of one run.
type Trainer struct {
	cfg *config.JobConfig

	// FS receives plots and the report. Defaults to the OS filesystem.
	FS fsutil.FileSystem
	// Runs, when set, records the run, its stage timings and leaderboard.
	Runs *runstore.Store
	// NewExperiment selects the engine for a task kind.
	NewExperiment func(kind string) (automl.Experiment, error)
	// Trees bounds the per-tree renderings.
	Trees explain.TreeOptions
	// Clock times the stages recorded in the ledger.
	Clock timeutil.Clock

	done     Stage
	runID    string
	data     *tabular.Loaded
	exp      automl.Experiment
	best     automl.Model
	preds    *automl.Predictions
	artifact *report.Artifact
}

// NewTrainer validates cfg and returns a trainer writing to cfg.OutputDir.
func NewTrainer(cfg *config.JobConfig) (*Trainer, error) {
	if cfg == nil {
		return nil, errs.Configf("config", "job config is nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Trainer{
		cfg:   cfg,
		FS:    fsutil.OSFileSystem{},
		Clock: timeutil.RealClock{},
		NewExperiment: func(kind string) (automl.Experiment, error) {
			return automl.NewExperiment(kind)
		},
		artifact: &report.Artifact{CrossValidation: cfg.GetCrossValidation()},
	}, nil
}

// Completed returns the last stage that finished.
func (t *Trainer) Completed() Stage { return t.done }

// RunID is the ledger ID of the current run, empty without a ledger.
func (t *Trainer) RunID() string { return t.runID }

// Artifact returns the report content gathered so far.
func (t *Trainer) Artifact() *report.Artifact { return t.artifact }

// Best returns the selected model once TrainModel has run.
func (t *Trainer) Best() automl.Model { return t.best }

// ModelPath is where SaveModel writes the model container.
func (t *Trainer) ModelPath() string { return filepath.Join(t.cfg.OutputDir, config.ModelFileName) }

func (t *Trainer) require(s Stage) error {
	if t.done != s-1 {
		return fmt.Errorf("%w: %s needs %s, last completed %s", ErrStageOrder, s, s-1, t.done)
	}
	return nil
}

// Run executes every stage in order. The context is checked before each
// stage; a cancelled context stops the run before the next stage starts.
func (t *Trainer) Run(ctx context.Context) (err error) {
	stages := []struct {
		stage Stage
		fn    func(context.Context) error
	}{
		{StageLoadData, t.LoadData},
		{StageSetupExperiment, t.SetupExperiment},
		{StageTrainModel, t.TrainModel},
		{StageSaveModel, t.SaveModel},
		{StageGeneratePlots, t.GeneratePlots},
		{StageGenerateExplainer, t.GenerateExplainer},
		{StageGenerateTreePlots, t.GenerateTreePlots},
		{StageSaveReport, t.SaveReport},
	}
	defer func() { t.finishRun(err) }()

	for _, s := range stages {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("before %s: %w", s.stage, err)
		}
		start := t.Clock.Now()
		done := monitoring.Stage(s.stage.String())
		err := s.fn(ctx)
		done()
		if err != nil {
			return fmt.Errorf("%s: %w", s.stage, err)
		}
		t.recordStage(s.stage, t.Clock.Since(start))
	}
	return nil
}

// LoadData reads and cleans the training file and the optional test file.
func (t *Trainer) LoadData(context.Context) error {
	if err := t.require(StageLoadData); err != nil {
		return err
	}
	loaded, err := tabular.Load(t.cfg.InputFile, t.cfg.TestFile, t.cfg.TargetCol, t.cfg.GetMissingValueStrategy())
	if err != nil {
		return err
	}
	t.data = loaded
	monitoring.Logf("target column %q, %d features, %d rows", loaded.Target, len(loaded.Features), loaded.Data.Rows())
	t.beginRun()
	t.done = StageLoadData
	return nil
}

// SetupParams returns the ordered experiment settings for a job. Optional
// settings are only passed when the job supplies them.
func SetupParams(cfg *config.JobConfig, target string, test *tabular.Dataset) []automl.SetupParam {
	params := []automl.SetupParam{
		{Key: "target", Value: target},
		{Key: "session_id", Value: cfg.RandomSeed},
		{Key: "html", Value: true},
		{Key: "log_experiment", Value: false},
		{Key: "system_log", Value: false},
		{Key: "index", Value: false},
	}
	if test != nil {
		params = append(params, automl.SetupParam{Key: "test_data", Value: test})
	}
	if cfg.TrainSize != nil && test == nil {
		params = append(params, automl.SetupParam{Key: "train_size", Value: *cfg.TrainSize})
	}
	if cfg.Normalize != nil {
		params = append(params, automl.SetupParam{Key: "normalize", Value: *cfg.Normalize})
	}
	if cfg.FeatureSelection != nil {
		params = append(params, automl.SetupParam{Key: "feature_selection", Value: *cfg.FeatureSelection})
	}
	// fold is passed only when cross-validation was explicitly enabled.
	if cfg.CrossValidation != nil && *cfg.CrossValidation && cfg.CrossValidationFolds != nil {
		params = append(params, automl.SetupParam{Key: "fold", Value: *cfg.CrossValidationFolds})
	}
	if cfg.RemoveOutliers != nil {
		params = append(params, automl.SetupParam{Key: "remove_outliers", Value: *cfg.RemoveOutliers})
	}
	if cfg.RemoveMulticollinearity != nil {
		params = append(params, automl.SetupParam{Key: "remove_multicollinearity", Value: *cfg.RemoveMulticollinearity})
	}
	if cfg.PolynomialFeatures != nil {
		params = append(params, automl.SetupParam{Key: "polynomial_features", Value: *cfg.PolynomialFeatures})
	}
	if cfg.FixImbalance != nil {
		params = append(params, automl.SetupParam{Key: "fix_imbalance", Value: *cfg.FixImbalance})
	}
	return params
}

// SetupExperiment selects the engine for the task kind and configures it.
func (t *Trainer) SetupExperiment(context.Context) error {
	if err := t.require(StageSetupExperiment); err != nil {
		return err
	}
	exp, err := t.NewExperiment(t.cfg.TaskType)
	if err != nil {
		return err
	}
	params := SetupParams(t.cfg, t.data.Target, t.data.Test)
	if err := exp.Setup(t.data.Data, params); err != nil {
		return err
	}
	t.exp = exp
	t.artifact.SetupParams = params
	t.done = StageSetupExperiment
	return nil
}

// RenameAUC returns a copy of a classification results table with the AUC
// column renamed to ROC-AUC. Nothing else changes.
func RenameAUC(tbl *frame.Table) *frame.Table {
	out := tbl.Clone()
	out.RenameColumn(automl.ColAUC, "ROC-AUC")
	return out
}

// TrainModel compares the candidate models, keeps the best one and scores
// it on the holdout.
func (t *Trainer) TrainModel(ctx context.Context) error {
	if err := t.require(StageTrainModel); err != nil {
		return err
	}
	classification := t.exp.Task() == automl.Classification
	if classification {
		metric := automl.Metric{ID: "prauc", Name: PRAUCMetric, Score: automl.AveragePrecisionWeighted}
		if err := t.exp.AddMetric(metric); err != nil {
			return err
		}
	}
	best, err := t.exp.CompareModels(ctx, t.cfg.Models, t.cfg.GetCrossValidation())
	if err != nil {
		return err
	}
	results := t.exp.Pull()
	if results == nil {
		return errs.External("pull comparison results", fmt.Errorf("engine returned no table"))
	}
	preds, err := t.exp.PredictModel(best)
	if err != nil {
		return errs.External("predict on holdout", err)
	}
	testResults := t.exp.Pull()
	if classification {
		results, testResults = RenameAUC(results), RenameAUC(testResults)
	}

	t.best, t.preds = best, preds
	t.artifact.ModelName = t.exp.ModelName(best)
	t.artifact.Results = results
	t.artifact.TestResults = testResults
	t.artifact.BestParams = best.Params()
	monitoring.Logf("best model: %s", t.artifact.ModelName)
	if t.Runs != nil && t.runID != "" {
		if err := t.Runs.RecordLeaderboard(t.runID, results); err != nil {
			monitoring.Warnf("run ledger: %v", err)
		}
	}
	t.done = StageTrainModel
	return nil
}

// SaveModel writes the model bundle into the output directory.
func (t *Trainer) SaveModel(context.Context) error {
	if err := t.require(StageSaveModel); err != nil {
		return err
	}
	// The model container is always written to disk.
	if err := os.MkdirAll(t.cfg.OutputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	blob, err := t.exp.Bundle(t.best).Encode()
	if err != nil {
		return errs.External("encode model bundle", err)
	}
	if err := modelstore.Save(t.ModelPath(), blob); err != nil {
		return err
	}
	t.done = StageSaveModel
	return nil
}

// GeneratePlots draws the evaluation plots and the feature tab. Individual
// plots that fail are skipped; a failed importance run aborts the stage.
func (t *Trainer) GeneratePlots(context.Context) error {
	if err := t.require(StageGeneratePlots); err != nil {
		return err
	}
	in := plots.Input{
		Task:         t.exp.Task(),
		Model:        t.best,
		Predictions:  t.preds,
		Labels:       t.exp.Labels(),
		FeatureNames: t.exp.FeatureNames(),
	}
	generated, err := plots.Generate(t.FS, filepath.Join(t.cfg.OutputDir, PlotsDir), in)
	if err != nil {
		return err
	}
	t.artifact.Plots = generated

	X, y := t.exp.Holdout()
	a := importance.Analyzer{Seed: uint64(t.cfg.RandomSeed)}
	results, err := a.Permutation(t.exp.Task(), t.best, X, y, t.exp.FeatureNames())
	if err != nil {
		return errs.External("feature importance", err)
	}
	t.artifact.FeatureHTML, err = importance.Fragment(t.exp.Task(), t.artifact.ModelName, results, importance.DefaultRepeats)
	if err != nil {
		return errs.External("feature importance", err)
	}
	t.done = StageGeneratePlots
	return nil
}

func (t *Trainer) explainInput() explain.Input {
	X, y := t.exp.Holdout()
	return explain.Input{
		Task:         t.exp.Task(),
		Model:        t.best,
		ModelName:    t.artifact.ModelName,
		X:            X,
		Y:            y,
		FeatureNames: t.exp.FeatureNames(),
		Labels:       t.exp.Labels(),
	}
}

// GenerateExplainer builds the explainer tab for tree ensembles. Other
// model families and explainer failures leave the tab out.
func (t *Trainer) GenerateExplainer(context.Context) error {
	if err := t.require(StageGenerateExplainer); err != nil {
		return err
	}
	t.done = StageGenerateExplainer
	if !explain.Supported(t.best) {
		monitoring.Logf("explainer skipped: %s is not a tree ensemble", t.artifact.ModelName)
		return nil
	}
	in := t.explainInput()
	html, err := explain.Dashboard(in)
	if err != nil {
		monitoring.Warnf("explainer failed: %v", err)
		return nil
	}
	if err := t.writeExplainerPage(in); err != nil {
		monitoring.Warnf("interactive explainer skipped: %v", err)
	} else {
		html += explain.PageLink()
	}
	t.artifact.ExplainerHTML = html
	return nil
}

func (t *Trainer) writeExplainerPage(in explain.Input) error {
	f, err := t.FS.Create(filepath.Join(t.cfg.OutputDir, explain.PageFile))
	if err != nil {
		return err
	}
	if err := explain.WritePage(f, in); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// GenerateTreePlots renders the individual trees of the ensemble. Images
// drawn before a failure are kept.
func (t *Trainer) GenerateTreePlots(context.Context) error {
	if err := t.require(StageGenerateTreePlots); err != nil {
		return err
	}
	t.done = StageGenerateTreePlots
	if !explain.Supported(t.best) {
		return nil
	}
	images, err := explain.TreeImages(t.explainInput(), t.Trees)
	if err != nil {
		monitoring.Warnf("tree plots incomplete: %v", err)
	}
	t.artifact.TreeImages = images
	return nil
}

// SaveReport writes the HTML report and its side files.
func (t *Trainer) SaveReport(context.Context) error {
	if err := t.require(StageSaveReport); err != nil {
		return err
	}
	w := &report.Writer{FS: t.FS, OutputDir: t.cfg.OutputDir}
	if err := w.Write(t.artifact); err != nil {
		return err
	}
	t.done = StageSaveReport
	return nil
}

func (t *Trainer) beginRun() {
	if t.Runs == nil {
		return
	}
	id, err := t.Runs.Begin(t.cfg.TaskType, t.cfg.InputFile, t.data.Target)
	if err != nil {
		monitoring.Warnf("run ledger: %v", err)
		return
	}
	t.runID = id
	monitoring.Logf("run %s", id)
}

func (t *Trainer) recordStage(s Stage, d time.Duration) {
	if t.Runs == nil || t.runID == "" {
		return
	}
	if err := t.Runs.RecordStage(t.runID, s.String(), d); err != nil {
		monitoring.Warnf("run ledger: %v", err)
	}
}

func (t *Trainer) finishRun(runErr error) {
	if t.Runs == nil || t.runID == "" {
		return
	}
	if err := t.Runs.Finish(t.runID, t.artifact.ModelName, runErr); err != nil {
		monitoring.Warnf("run ledger: %v", err)
	}
}
