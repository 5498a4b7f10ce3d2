package automl

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// RandomForest averages bootstrap-trained trees. Classification trees see
// sqrt(p) candidate features per split, regression trees see all of them.
type RandomForest struct {
	Classes         int
	NEstimators     int
	MaxDepth        int
	MinSamplesSplit int
	Seed            uint64
	Trees           []*Tree
	NFeatures       int
}

func (m *RandomForest) Fit(X *mat.Dense, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	n, nf := X.Dims()
	m.NFeatures = nf
	maxFeatures := 0
	if m.Classes > 0 {
		maxFeatures = max(1, int(math.Sqrt(float64(nf))))
	}
	rng := newRand(m.Seed)
	m.Trees = make([]*Tree, m.NEstimators)
	for t := range m.Trees {
		sample := make([]int, n)
		for i := range sample {
			sample[i] = rng.IntN(n)
		}
		m.Trees[t] = growTree(X, y, sample, treeParams{
			classes:         m.Classes,
			maxDepth:        m.MaxDepth,
			minSamplesSplit: m.MinSamplesSplit,
			maxFeatures:     maxFeatures,
			rng:             rng,
		})
	}
	return nil
}

func (m *RandomForest) PredictProba(X *mat.Dense) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, m.Classes, nil)
	for i := 0; i < r; i++ {
		x := rowOf(X, i)
		for _, t := range m.Trees {
			v := t.Value(x)
			for k := 0; k < m.Classes; k++ {
				out.Set(i, k, out.At(i, k)+v[k])
			}
		}
	}
	out.Scale(1/float64(len(m.Trees)), out)
	return out
}

func (m *RandomForest) Predict(X *mat.Dense) []float64 {
	if m.Classes > 0 {
		return argmaxRows(m.PredictProba(X))
	}
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		x := rowOf(X, i)
		for _, t := range m.Trees {
			out[i] += t.Value(x)[0]
		}
		out[i] /= float64(len(m.Trees))
	}
	return out
}

func (m *RandomForest) TypeName() string {
	if m.Classes > 0 {
		return "RandomForestClassifier"
	}
	return "RandomForestRegressor"
}

func (m *RandomForest) Params() []Param {
	maxFeatures := "1.0"
	if m.Classes > 0 {
		maxFeatures = "sqrt"
	}
	return []Param{
		{"bootstrap", "True"},
		{"max_depth", noneOr(m.MaxDepth)},
		{"max_features", maxFeatures},
		{"min_samples_split", itoa(m.MinSamplesSplit)},
		{"n_estimators", itoa(m.NEstimators)},
		{"random_state", ftoa(float64(m.Seed))},
	}
}

func (m *RandomForest) Family() Family { return FamilyRandomForest }

func (m *RandomForest) Estimators() []*Tree { return m.Trees }

func (m *RandomForest) FeatureImportances() []float64 {
	imp := make([]float64, m.NFeatures)
	for _, t := range m.Trees {
		for f, v := range t.Importances() {
			imp[f] += v
		}
	}
	normalise(imp)
	return imp
}

// GradientBoosting fits shallow regression trees to the loss gradient.
// Regression uses squared error. Classification uses log loss with one tree
// per stage for two classes and one tree per class per stage otherwise;
// leaf values take a single Newton step.
type GradientBoosting struct {
	Classes      int
	NEstimators  int
	LearningRate float64
	MaxDepth     int
	Seed         uint64
	Init         []float64
	Stages       [][]*Tree // [stage][tree]
	NFeatures    int
}

func (m *GradientBoosting) outputs() int {
	if m.Classes > 2 {
		return m.Classes
	}
	return 1
}

func (m *GradientBoosting) Fit(X *mat.Dense, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	n, nf := X.Dims()
	m.NFeatures = nf
	K := m.outputs()
	rows := allRows(n)

	// Raw scores F[k][i].
	F := make([][]float64, K)
	m.Init = make([]float64, K)
	for k := 0; k < K; k++ {
		m.Init[k] = m.initScore(y, k)
		F[k] = make([]float64, n)
		for i := range F[k] {
			F[k][i] = m.Init[k]
		}
	}

	m.Stages = make([][]*Tree, 0, m.NEstimators)
	residual := make([]float64, n)
	for s := 0; s < m.NEstimators; s++ {
		probs := m.probabilities(F)
		stage := make([]*Tree, K)
		for k := 0; k < K; k++ {
			for i := 0; i < n; i++ {
				residual[i] = m.target(y[i], k) - m.prediction(F, probs, k, i)
			}
			t := growTree(X, residual, rows, treeParams{maxDepth: m.MaxDepth, minSamplesSplit: 2})
			m.setLeafValues(t, X, residual, probs, k)
			for i := 0; i < n; i++ {
				F[k][i] += m.LearningRate * t.Value(rowOf(X, i))[0]
			}
			stage[k] = t
		}
		m.Stages = append(m.Stages, stage)
	}
	return nil
}

func (m *GradientBoosting) target(y float64, k int) float64 {
	switch {
	case m.Classes == 0:
		return y
	case m.Classes <= 2:
		if y == 1 {
			return 1
		}
		return 0
	default:
		if int(y) == k {
			return 1
		}
		return 0
	}
}

func (m *GradientBoosting) initScore(y []float64, k int) float64 {
	var sum float64
	for _, v := range y {
		sum += m.target(v, k)
	}
	mean := sum / float64(len(y))
	if m.Classes == 0 {
		return mean
	}
	p := math.Min(math.Max(mean, 1e-6), 1-1e-6)
	if m.Classes <= 2 {
		return math.Log(p / (1 - p))
	}
	return math.Log(p)
}

// probabilities converts raw scores to class probabilities. It returns nil
// for regression.
func (m *GradientBoosting) probabilities(F [][]float64) [][]float64 {
	if m.Classes == 0 {
		return nil
	}
	n := len(F[0])
	if m.Classes <= 2 {
		p := make([]float64, n)
		for i := range p {
			p[i] = sigmoid(F[0][i])
		}
		return [][]float64{p}
	}
	probs := make([][]float64, m.Classes)
	for k := range probs {
		probs[k] = make([]float64, n)
	}
	row := make([]float64, m.Classes)
	for i := 0; i < n; i++ {
		for k := range row {
			row[k] = F[k][i]
		}
		softmax(row)
		for k := range row {
			probs[k][i] = row[k]
		}
	}
	return probs
}

func (m *GradientBoosting) prediction(F, probs [][]float64, k, i int) float64 {
	if probs == nil {
		return F[k][i]
	}
	return probs[k][i]
}

func (m *GradientBoosting) setLeafValues(t *Tree, X *mat.Dense, residual []float64, probs [][]float64, k int) {
	if m.Classes == 0 {
		return
	}
	num := make([]float64, len(t.Nodes))
	den := make([]float64, len(t.Nodes))
	for i, r := range residual {
		leaf := t.Leaf(rowOf(X, i))
		p := probs[k][i]
		num[leaf] += r
		den[leaf] += p * (1 - p)
	}
	scale := 1.0
	if m.Classes > 2 {
		scale = float64(m.Classes-1) / float64(m.Classes)
	}
	for i := range t.Nodes {
		if !t.Nodes[i].IsLeaf() {
			continue
		}
		v := 0.0
		if den[i] > 1e-12 {
			v = scale * num[i] / den[i]
		}
		t.Nodes[i].Value = []float64{v}
	}
}

func (m *GradientBoosting) rawScores(x []float64) []float64 {
	K := m.outputs()
	f := append([]float64(nil), m.Init...)
	for _, stage := range m.Stages {
		for k := 0; k < K; k++ {
			f[k] += m.LearningRate * stage[k].Value(x)[0]
		}
	}
	return f
}

func (m *GradientBoosting) PredictProba(X *mat.Dense) *mat.Dense {
	r, _ := X.Dims()
	classes := max(m.Classes, 2)
	out := mat.NewDense(r, classes, nil)
	for i := 0; i < r; i++ {
		f := m.rawScores(rowOf(X, i))
		if m.Classes <= 2 {
			p := sigmoid(f[0])
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
			continue
		}
		softmax(f)
		out.SetRow(i, f)
	}
	return out
}

func (m *GradientBoosting) Predict(X *mat.Dense) []float64 {
	if m.Classes > 0 {
		return argmaxRows(m.PredictProba(X))
	}
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = m.rawScores(rowOf(X, i))[0]
	}
	return out
}

func (m *GradientBoosting) TypeName() string {
	if m.Classes > 0 {
		return "GradientBoostingClassifier"
	}
	return "GradientBoostingRegressor"
}

func (m *GradientBoosting) Params() []Param {
	loss := "squared_error"
	if m.Classes > 0 {
		loss = "log_loss"
	}
	return []Param{
		{"learning_rate", ftoa(m.LearningRate)},
		{"loss", loss},
		{"max_depth", itoa(m.MaxDepth)},
		{"n_estimators", itoa(m.NEstimators)},
		{"random_state", ftoa(float64(m.Seed))},
	}
}

func (m *GradientBoosting) Family() Family { return FamilyGradientBoosting }

// Estimators returns the first tree of every stage.
func (m *GradientBoosting) Estimators() []*Tree {
	out := make([]*Tree, len(m.Stages))
	for i, s := range m.Stages {
		out[i] = s[0]
	}
	return out
}

func (m *GradientBoosting) FeatureImportances() []float64 {
	imp := make([]float64, m.NFeatures)
	for _, stage := range m.Stages {
		for _, t := range stage {
			for f, v := range t.Importances() {
				imp[f] += v
			}
		}
	}
	normalise(imp)
	return imp
}

func sigmoid(x float64) float64 { return 1 / (1 + math.Exp(-x)) }

func softmax(v []float64) {
	hi := v[0]
	for _, x := range v[1:] {
		hi = math.Max(hi, x)
	}
	var sum float64
	for i, x := range v {
		v[i] = math.Exp(x - hi)
		sum += v[i]
	}
	for i := range v {
		v[i] /= sum
	}
}
