package automl

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"gonum.org/v1/gonum/mat"
)

// Family is the closed set of model families reported by the engine.
type Family string

const (
	FamilyLinear           Family = "linear"
	FamilyNeighbors        Family = "neighbors"
	FamilyNaiveBayes       Family = "naive_bayes"
	FamilyDecisionTree     Family = "decision_tree"
	FamilyRandomForest     Family = "random_forest"
	FamilyGradientBoosting Family = "gradient_boosting"
	FamilyDummy            Family = "dummy"
)

// TreeFamilies are the families whose estimators are tree ensembles that
// the explainer can render.
var TreeFamilies = map[Family]bool{
	FamilyRandomForest:     true,
	FamilyGradientBoosting: true,
}

// Param is one named hyperparameter, formatted for display.
type Param struct {
	Name  string
	Value string
}

// Model is a fitted or unfitted estimator. Classifiers predict class
// indices encoded as float64; regressors predict values.
type Model interface {
	Fit(X *mat.Dense, y []float64) error
	Predict(X *mat.Dense) []float64
	TypeName() string
	Params() []Param
	Family() Family
}

// Classifier is a Model that also reports class probabilities, one column
// per class.
type Classifier interface {
	Model
	PredictProba(X *mat.Dense) *mat.Dense
}

// FeatureImportancer is implemented by models with native importances.
type FeatureImportancer interface {
	FeatureImportances() []float64
}

// TreeEnsemble is implemented by models built from decision trees.
type TreeEnsemble interface {
	Estimators() []*Tree
}

// entry is one model in the zoo.
type entry struct {
	ID   string
	Name string
	New  func(seed uint64, classes int) Model
}

var classificationZoo = []entry{
	{"lr", "Logistic Regression", func(s uint64, k int) Model {
		return &LogisticRegression{Classes: k, C: 1, MaxIter: 500, LearningRate: 0.5}
	}},
	{"knn", "K Neighbors Classifier", func(s uint64, k int) Model { return &KNeighbors{K: 5, Classes: k} }},
	{"nb", "Naive Bayes", func(s uint64, k int) Model { return &GaussianNB{Classes: k, VarSmoothing: 1e-9} }},
	{"dt", "Decision Tree Classifier", func(s uint64, k int) Model {
		return &DecisionTree{Classes: k, MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: s}
	}},
	{"rf", "Random Forest Classifier", func(s uint64, k int) Model {
		return &RandomForest{Classes: k, NEstimators: 100, MinSamplesSplit: 2, Seed: s}
	}},
	{"gbc", "Gradient Boosting Classifier", func(s uint64, k int) Model {
		return &GradientBoosting{Classes: k, NEstimators: 100, LearningRate: 0.1, MaxDepth: 3, Seed: s}
	}},
	{"dummy", "Dummy Classifier", func(s uint64, k int) Model { return &Dummy{Classes: k} }},
}

var regressionZoo = []entry{
	{"lr", "Linear Regression", func(s uint64, _ int) Model { return &LinearRegression{} }},
	{"ridge", "Ridge Regression", func(s uint64, _ int) Model { return &LinearRegression{Alpha: 1} }},
	{"knn", "K Neighbors Regressor", func(s uint64, _ int) Model { return &KNeighbors{K: 5} }},
	{"dt", "Decision Tree Regressor", func(s uint64, _ int) Model {
		return &DecisionTree{MinSamplesSplit: 2, MinSamplesLeaf: 1, Seed: s}
	}},
	{"rf", "Random Forest Regressor", func(s uint64, _ int) Model {
		return &RandomForest{NEstimators: 100, MinSamplesSplit: 2, Seed: s}
	}},
	{"gbr", "Gradient Boosting Regressor", func(s uint64, _ int) Model {
		return &GradientBoosting{NEstimators: 100, LearningRate: 0.1, MaxDepth: 3, Seed: s}
	}},
	{"dummy", "Dummy Regressor", func(s uint64, _ int) Model { return &Dummy{} }},
}

// ModelIDs lists the identifiers accepted for a task.
func ModelIDs(task Task) []string {
	zoo := zooFor(task)
	ids := make([]string, len(zoo))
	for i, e := range zoo {
		ids[i] = e.ID
	}
	return ids
}

func zooFor(task Task) []entry {
	if task == Classification {
		return classificationZoo
	}
	return regressionZoo
}

func lookup(task Task, id string) (entry, bool) {
	for _, e := range zooFor(task) {
		if e.ID == id {
			return e, true
		}
	}
	return entry{}, false
}

func newRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x5851f42d4c957f2d))
}

func rowOf(X *mat.Dense, i int) []float64 {
	return X.RawRowView(i)
}

func itoa(v int) string { return strconv.Itoa(v) }

func ftoa(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

func noneOr(v int) string {
	if v <= 0 {
		return "None"
	}
	return itoa(v)
}

func checkFit(X *mat.Dense, y []float64) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return fmt.Errorf("empty training matrix")
	}
	if r != len(y) {
		return fmt.Errorf("training matrix has %d rows but %d targets", r, len(y))
	}
	return nil
}
