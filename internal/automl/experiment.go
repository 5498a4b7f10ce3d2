// Package automl is an in-process model search engine: it prepares a
// tabular dataset, cross-validates a zoo of classical models, ranks them on
// a leaderboard and evaluates the winner on a holdout set.
package automl

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/learner/internal/errs"
	"github.com/banshee-data/learner/internal/frame"
	"github.com/banshee-data/learner/internal/monitoring"
	"github.com/banshee-data/learner/internal/tabular"
)

// Task is the learning problem kind.
type Task int

const (
	Classification Task = iota
	Regression
)

func (t Task) String() string {
	if t == Classification {
		return "classification"
	}
	return "regression"
}

// SetupParam is one ordered experiment setting.
type SetupParam struct {
	Key   string
	Value interface{}
}

// Predictions is the outcome of scoring a model on the holdout.
type Predictions struct {
	YTrue []float64
	YPred []float64
	Proba *mat.Dense // nil for regression
}

// Experiment is the contract the tabular pipeline drives.
type Experiment interface {
	Task() Task
	Setup(data *tabular.Dataset, params []SetupParam) error
	AddMetric(m Metric) error
	CompareModels(ctx context.Context, include []string, crossValidation bool) (Model, error)
	Pull() *frame.Table
	PredictModel(m Model) (*Predictions, error)
	ModelName(m Model) string
	Holdout() (*mat.Dense, []float64)
	FeatureNames() []string
	Labels() []string
	Bundle(m Model) *Bundle
}

// Engine implements Experiment in process.
type Engine struct {
	task    Task
	seed    uint64
	target  string
	labels  []string
	folds   int
	pre     *Preprocessor
	xTrain  *mat.Dense
	yTrain  []float64
	xTest   *mat.Dense
	yTest   []float64
	metrics []Metric
	names   map[Model]string
	last    *frame.Table
}

// NewClassificationExperiment returns an engine for classification tasks.
func NewClassificationExperiment() *Engine { return &Engine{task: Classification} }

// NewRegressionExperiment returns an engine for regression tasks.
func NewRegressionExperiment() *Engine { return &Engine{task: Regression} }

// NewExperiment selects the engine for a task kind.
func NewExperiment(kind string) (*Engine, error) {
	switch kind {
	case "classification":
		return NewClassificationExperiment(), nil
	case "regression":
		return NewRegressionExperiment(), nil
	}
	return nil, errs.Configf("task", "task kind must be classification or regression, got %q", kind)
}

func (e *Engine) Task() Task { return e.task }

type setupOptions struct {
	target    string
	seed      int64
	testData  *tabular.Dataset
	trainSize float64
	folds     int
	imbalance bool
	pre       PreprocessOptions
}

func parseSetup(params []SetupParam) (setupOptions, error) {
	o := setupOptions{trainSize: 0.7, folds: 10}
	for _, p := range params {
		var err error
		switch p.Key {
		case "target":
			o.target, err = as[string](p)
		case "session_id":
			o.seed, err = as[int64](p)
		case "html", "log_experiment", "system_log", "index":
			_, err = as[bool](p)
		case "test_data":
			o.testData, err = as[*tabular.Dataset](p)
		case "train_size":
			o.trainSize, err = as[float64](p)
		case "fold":
			o.folds, err = as[int](p)
		case "normalize":
			o.pre.Normalize, err = as[bool](p)
		case "feature_selection":
			o.pre.FeatureSelection, err = as[bool](p)
		case "remove_outliers":
			o.pre.RemoveOutliers, err = as[bool](p)
		case "remove_multicollinearity":
			o.pre.RemoveMulticollinearity, err = as[bool](p)
		case "polynomial_features":
			o.pre.PolynomialFeatures, err = as[bool](p)
		case "fix_imbalance":
			o.imbalance, err = as[bool](p)
		default:
			err = errs.Configf(p.Key, "unknown setup parameter")
		}
		if err != nil {
			return o, err
		}
	}
	if o.target == "" {
		return o, errs.Configf("target", "must be set")
	}
	if o.folds < 2 {
		return o, errs.Configf("fold", "must be at least 2, got %d", o.folds)
	}
	return o, nil
}

func as[T any](p SetupParam) (T, error) {
	v, ok := p.Value.(T)
	if !ok {
		var zero T
		return zero, errs.Configf(p.Key, "unexpected value type %T", p.Value)
	}
	return v, nil
}

// Setup encodes the target, splits train and holdout, fits the feature
// pipeline on the training rows and applies it to the holdout.
func (e *Engine) Setup(data *tabular.Dataset, params []SetupParam) error {
	o, err := parseSetup(params)
	if err != nil {
		return err
	}
	e.seed = uint64(o.seed)
	e.target = o.target
	e.folds = o.folds
	rng := newRand(e.seed)

	targetCol := data.Column(o.target)
	if targetCol == nil {
		return errs.Configf("target", "column %q not found", o.target)
	}
	var features []string
	for _, n := range data.Names() {
		if n != o.target {
			features = append(features, n)
		}
	}
	if len(features) == 0 {
		return errs.Configf("target", "no feature columns besides %q", o.target)
	}

	if e.task == Classification {
		e.labels = classLabels(targetCol)
		if len(e.labels) < 2 {
			return errs.Configf("target", "classification needs at least two classes, found %d", len(e.labels))
		}
	} else if !targetCol.Numeric {
		return errs.Configf("target", "regression target %q is not numeric", o.target)
	}

	data, y := e.encodeTarget(data)
	var train, holdout *tabular.Dataset
	var yTrain, yTest []float64
	if o.testData != nil {
		train, yTrain = data, y
		holdout, yTest = e.encodeTarget(o.testData)
		if holdout.Column(o.target) == nil {
			return errs.Configf("test_data", "missing target column %q", o.target)
		}
	} else {
		trainIdx, testIdx := stratifiedSplit(y, e.task == Classification, o.trainSize, rng)
		sort.Ints(trainIdx)
		sort.Ints(testIdx)
		train, holdout = data.Take(trainIdx), data.Take(testIdx)
		yTrain, yTest = pick(y, trainIdx), pick(y, testIdx)
	}
	if len(yTest) == 0 || len(yTrain) < 2 {
		return errs.Configf("train_size", "split left %d training and %d holdout rows", len(yTrain), len(yTest))
	}

	e.pre = &Preprocessor{Options: o.pre}
	X, kept, err := e.pre.Fit(train, features, yTrain, e.task == Classification)
	if err != nil {
		return errs.External("fit preprocessing", err)
	}
	if len(kept) < len(yTrain) {
		monitoring.Logf("outlier removal dropped %d of %d training rows", len(yTrain)-len(kept), len(yTrain))
	}
	yTrain = pick(yTrain, kept)

	if o.imbalance {
		if e.task == Classification {
			rows := oversample(yTrain, len(e.labels), rng)
			X, yTrain = selectRows(X, rows), pick(yTrain, rows)
		} else {
			monitoring.Logf("fix_imbalance ignored for regression")
		}
	}

	xTest, err := e.pre.Transform(holdout)
	if err != nil {
		return errs.External("transform holdout", err)
	}
	e.xTrain, e.yTrain, e.xTest, e.yTest = X, yTrain, xTest, yTest
	monitoring.Logf("experiment setup: %s, %d training rows, %d holdout rows, %d features",
		e.task, len(yTrain), len(yTest), len(e.pre.Names))
	return nil
}

func pick(v []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, r := range idx {
		out[i] = v[r]
	}
	return out
}

// classLabels lists the distinct non-missing target values, numerically
// sorted for numeric targets and lexically otherwise.
func classLabels(c *tabular.Column) []string {
	if c.Numeric {
		seen := map[float64]bool{}
		var vals []float64
		for _, v := range c.Values {
			if !math.IsNaN(v) && !seen[v] {
				seen[v] = true
				vals = append(vals, v)
			}
		}
		sort.Float64s(vals)
		out := make([]string, len(vals))
		for i, v := range vals {
			out[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		return out
	}
	seen := map[string]bool{}
	var out []string
	for i, s := range c.Text {
		if !c.Missing[i] && !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

// encodeTarget drops rows with a missing or unknown target and returns the
// target as class indices (classification) or values (regression).
func (e *Engine) encodeTarget(ds *tabular.Dataset) (*tabular.Dataset, []float64) {
	col := ds.Column(e.target)
	if col == nil {
		return ds, nil
	}
	index := map[string]int{}
	for i, l := range e.labels {
		index[l] = i
	}
	var keep []int
	var y []float64
	for i := 0; i < col.Len(); i++ {
		if col.IsMissing(i) {
			continue
		}
		if e.task == Regression {
			keep = append(keep, i)
			y = append(y, col.Values[i])
			continue
		}
		k, ok := index[col.String(i)]
		if !ok {
			continue
		}
		keep = append(keep, i)
		y = append(y, float64(k))
	}
	if dropped := col.Len() - len(keep); dropped > 0 {
		monitoring.Warnf("dropped %d rows with a missing or unseen target", dropped)
		return ds.Take(keep), y
	}
	return ds, y
}

// AddMetric registers an extra classification metric computed from
// predicted probabilities.
func (e *Engine) AddMetric(m Metric) error {
	if e.task != Classification {
		return errs.Configf("metric", "probability metric %q requires classification", m.ID)
	}
	for _, existing := range e.metrics {
		if existing.ID == m.ID {
			return errs.Configf("metric", "metric %q already registered", m.ID)
		}
	}
	e.metrics = append(e.metrics, m)
	return nil
}

func (e *Engine) metricColumns() []string {
	if e.task == Regression {
		return regressionMetrics
	}
	cols := append([]string(nil), classificationMetrics...)
	for _, m := range e.metrics {
		cols = append(cols, m.Name)
	}
	return cols
}

func (e *Engine) newModel(ent entry) Model {
	classes := 0
	if e.task == Classification {
		classes = len(e.labels)
	}
	return ent.New(e.seed, classes)
}

func (e *Engine) score(m Model, X *mat.Dense, y []float64) map[string]float64 {
	pred := m.Predict(X)
	if e.task == Regression {
		return RegressionScores(y, pred)
	}
	proba := m.(Classifier).PredictProba(X)
	scores := ClassificationScores(y, pred, proba)
	for _, metric := range e.metrics {
		scores[metric.Name] = metric.Score(y, proba)
	}
	return scores
}

type candidate struct {
	entry  entry
	scores map[string]float64
	fitSec float64
}

// CompareModels scores every candidate (all models when include is empty)
// with k-fold cross-validation on the training rows, or on the holdout when
// crossValidation is false, and returns the best model refitted on all
// training rows. The leaderboard is available from Pull.
func (e *Engine) CompareModels(ctx context.Context, include []string, crossValidation bool) (Model, error) {
	if e.pre == nil {
		return nil, fmt.Errorf("compare models: experiment not set up")
	}
	entries, err := e.candidates(include)
	if err != nil {
		return nil, err
	}

	n := len(e.yTrain)
	k := min(e.folds, n)
	var folds [][]int
	if crossValidation {
		folds = kFold(e.yTrain, e.task == Classification, k, newRand(e.seed+1))
	}

	var results []candidate
	for _, ent := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := e.evaluate(ent, folds)
		if err != nil {
			monitoring.Warnf("model %s failed: %v", ent.ID, err)
			continue
		}
		results = append(results, c)
	}
	if len(results) == 0 {
		return nil, errs.External("compare models", fmt.Errorf("no candidate model could be fitted"))
	}

	sortKey := ColAccuracy
	if e.task == Regression {
		sortKey = ColR2
	}
	sort.SliceStable(results, func(a, b int) bool {
		return results[a].scores[sortKey] > results[b].scores[sortKey]
	})

	cols := append([]string{ColModel}, e.metricColumns()...)
	cols = append(cols, ColTT)
	board := frame.New(cols...)
	for _, r := range results {
		row := []string{r.entry.Name}
		for _, c := range e.metricColumns() {
			row = append(row, frame.FormatFloat(r.scores[c]))
		}
		row = append(row, strconv.FormatFloat(r.fitSec, 'f', 2, 64))
		board.Append(r.entry.ID, row...)
	}
	e.last = board

	best := e.newModel(results[0].entry)
	if err := best.Fit(e.xTrain, e.yTrain); err != nil {
		return nil, errs.External("fit "+results[0].entry.ID, err)
	}
	if e.names == nil {
		e.names = map[Model]string{}
	}
	e.names[best] = results[0].entry.Name
	monitoring.Logf("best model: %s (%s %s)", results[0].entry.Name, sortKey, frame.FormatFloat(results[0].scores[sortKey]))
	return best, nil
}

func (e *Engine) candidates(include []string) ([]entry, error) {
	if len(include) == 0 {
		return zooFor(e.task), nil
	}
	out := make([]entry, 0, len(include))
	for _, id := range include {
		ent, ok := lookup(e.task, id)
		if !ok {
			return nil, errs.Configf("models", "unknown %s model id %q (available: %v)", e.task, id, ModelIDs(e.task))
		}
		out = append(out, ent)
	}
	return out, nil
}

func (e *Engine) evaluate(ent entry, folds [][]int) (c candidate, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	c = candidate{entry: ent, scores: map[string]float64{}}

	if folds == nil {
		m := e.newModel(ent)
		start := time.Now()
		if err := m.Fit(e.xTrain, e.yTrain); err != nil {
			return c, err
		}
		c.fitSec = time.Since(start).Seconds()
		c.scores = e.score(m, e.xTest, e.yTest)
		return c, nil
	}

	var used int
	for _, held := range folds {
		if len(held) == 0 {
			continue
		}
		trainRows := complement(len(e.yTrain), held)
		m := e.newModel(ent)
		start := time.Now()
		if err := m.Fit(selectRows(e.xTrain, trainRows), pick(e.yTrain, trainRows)); err != nil {
			return c, err
		}
		c.fitSec += time.Since(start).Seconds()
		for name, v := range e.score(m, selectRows(e.xTrain, held), pick(e.yTrain, held)) {
			c.scores[name] += v
		}
		used++
	}
	for name := range c.scores {
		c.scores[name] /= float64(used)
	}
	c.fitSec /= float64(used)
	return c, nil
}

// Pull returns a copy of the most recent results table.
func (e *Engine) Pull() *frame.Table {
	if e.last == nil {
		return nil
	}
	return e.last.Clone()
}

// PredictModel scores m on the holdout and records a one-row results table.
func (e *Engine) PredictModel(m Model) (*Predictions, error) {
	if e.xTest == nil {
		return nil, fmt.Errorf("predict model: experiment not set up")
	}
	p := &Predictions{YTrue: e.yTest, YPred: m.Predict(e.xTest)}
	if e.task == Classification {
		p.Proba = m.(Classifier).PredictProba(e.xTest)
	}
	scores := e.score(m, e.xTest, e.yTest)

	t := frame.New(append([]string{ColModel}, e.metricColumns()...)...)
	row := []string{e.ModelName(m)}
	for _, c := range e.metricColumns() {
		row = append(row, frame.FormatFloat(scores[c]))
	}
	t.Append("0", row...)
	e.last = t
	return p, nil
}

// ModelName returns the leaderboard display name of a model returned by
// CompareModels, falling back to its type name.
func (e *Engine) ModelName(m Model) string {
	if name, ok := e.names[m]; ok {
		return name
	}
	return m.TypeName()
}

// Holdout returns the transformed holdout features and targets.
func (e *Engine) Holdout() (*mat.Dense, []float64) { return e.xTest, e.yTest }

// Train returns the transformed training features and targets.
func (e *Engine) Train() (*mat.Dense, []float64) { return e.xTrain, e.yTrain }

// FeatureNames lists the model input columns after preprocessing.
func (e *Engine) FeatureNames() []string {
	if e.pre == nil {
		return nil
	}
	return e.pre.Names
}

// Labels lists class labels in index order. It is nil for regression.
func (e *Engine) Labels() []string { return e.labels }

// Bundle packages m with everything needed to score new data.
func (e *Engine) Bundle(m Model) *Bundle {
	return &Bundle{
		Task:         e.task,
		Target:       e.target,
		Labels:       e.labels,
		Preprocessor: e.pre,
		Model:        m,
	}
}

var _ Experiment = (*Engine)(nil)
