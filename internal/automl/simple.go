package automl

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// KNeighbors votes (classification) or averages (regression) over the K
// nearest training rows by Euclidean distance.
type KNeighbors struct {
	K       int
	Classes int
	Train   []float64 // n x p, row-major
	P       int
	Targets []float64
}

func (m *KNeighbors) Fit(X *mat.Dense, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	n, p := X.Dims()
	m.P = p
	m.Train = make([]float64, 0, n*p)
	for i := 0; i < n; i++ {
		m.Train = append(m.Train, rowOf(X, i)...)
	}
	m.Targets = append([]float64(nil), y...)
	return nil
}

func (m *KNeighbors) neighbours(x []float64) []int {
	n := len(m.Targets)
	idx := allRows(n)
	dist := make([]float64, n)
	for i := 0; i < n; i++ {
		dist[i] = floats.Distance(x, m.Train[i*m.P:(i+1)*m.P], 2)
	}
	sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })
	return idx[:min(m.K, n)]
}

func (m *KNeighbors) PredictProba(X *mat.Dense) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, m.Classes, nil)
	for i := 0; i < r; i++ {
		nb := m.neighbours(rowOf(X, i))
		for _, j := range nb {
			k := int(m.Targets[j])
			out.Set(i, k, out.At(i, k)+1/float64(len(nb)))
		}
	}
	return out
}

func (m *KNeighbors) Predict(X *mat.Dense) []float64 {
	if m.Classes > 0 {
		return argmaxRows(m.PredictProba(X))
	}
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		nb := m.neighbours(rowOf(X, i))
		for _, j := range nb {
			out[i] += m.Targets[j]
		}
		out[i] /= float64(len(nb))
	}
	return out
}

func (m *KNeighbors) TypeName() string {
	if m.Classes > 0 {
		return "KNeighborsClassifier"
	}
	return "KNeighborsRegressor"
}

func (m *KNeighbors) Params() []Param {
	return []Param{{"metric", "minkowski"}, {"n_neighbors", itoa(m.K)}, {"p", "2"}, {"weights", "uniform"}}
}

func (m *KNeighbors) Family() Family { return FamilyNeighbors }

// GaussianNB models each feature as an independent per-class normal.
type GaussianNB struct {
	Classes      int
	VarSmoothing float64
	Prior        []float64
	Theta        [][]float64
	Var          [][]float64
}

func (m *GaussianNB) Fit(X *mat.Dense, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	n, p := X.Dims()

	var maxVar float64
	for j := 0; j < p; j++ {
		maxVar = math.Max(maxVar, stat.PopVariance(mat.Col(nil, j, X), nil))
	}
	eps := m.VarSmoothing * maxVar

	m.Prior = make([]float64, m.Classes)
	m.Theta = make([][]float64, m.Classes)
	m.Var = make([][]float64, m.Classes)
	for k := 0; k < m.Classes; k++ {
		var rows []int
		for i := 0; i < n; i++ {
			if int(y[i]) == k {
				rows = append(rows, i)
			}
		}
		m.Prior[k] = float64(len(rows)) / float64(n)
		m.Theta[k] = make([]float64, p)
		m.Var[k] = make([]float64, p)
		if len(rows) == 0 {
			for j := range m.Var[k] {
				m.Var[k][j] = 1
			}
			continue
		}
		col := make([]float64, len(rows))
		for j := 0; j < p; j++ {
			for r, i := range rows {
				col[r] = X.At(i, j)
			}
			mean, v := stat.PopMeanVariance(col, nil)
			m.Theta[k][j] = mean
			m.Var[k][j] = v + eps + 1e-12
		}
	}
	return nil
}

func (m *GaussianNB) PredictProba(X *mat.Dense) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, m.Classes, nil)
	ll := make([]float64, m.Classes)
	for i := 0; i < r; i++ {
		x := rowOf(X, i)
		for k := range ll {
			if m.Prior[k] == 0 {
				ll[k] = math.Inf(-1)
				continue
			}
			ll[k] = math.Log(m.Prior[k])
			for j, v := range x {
				d := v - m.Theta[k][j]
				ll[k] -= 0.5*math.Log(2*math.Pi*m.Var[k][j]) + d*d/(2*m.Var[k][j])
			}
		}
		softmax(ll)
		out.SetRow(i, ll)
	}
	return out
}

func (m *GaussianNB) Predict(X *mat.Dense) []float64 { return argmaxRows(m.PredictProba(X)) }

func (m *GaussianNB) TypeName() string { return "GaussianNB" }

func (m *GaussianNB) Params() []Param {
	return []Param{{"priors", "None"}, {"var_smoothing", ftoa(m.VarSmoothing)}}
}

func (m *GaussianNB) Family() Family { return FamilyNaiveBayes }

// Dummy predicts the training prior (classification) or mean (regression).
type Dummy struct {
	Classes int
	Prior   []float64
	Mean    float64
}

func (m *Dummy) Fit(X *mat.Dense, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	if m.Classes == 0 {
		m.Mean = stat.Mean(y, nil)
		return nil
	}
	m.Prior = make([]float64, m.Classes)
	for _, v := range y {
		m.Prior[int(v)]++
	}
	floats.Scale(1/float64(len(y)), m.Prior)
	return nil
}

func (m *Dummy) PredictProba(X *mat.Dense) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, m.Classes, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, m.Prior)
	}
	return out
}

func (m *Dummy) Predict(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	if m.Classes > 0 {
		best := float64(floats.MaxIdx(m.Prior))
		for i := range out {
			out[i] = best
		}
		return out
	}
	for i := range out {
		out[i] = m.Mean
	}
	return out
}

func (m *Dummy) TypeName() string {
	if m.Classes > 0 {
		return "DummyClassifier"
	}
	return "DummyRegressor"
}

func (m *Dummy) Params() []Param {
	if m.Classes > 0 {
		return []Param{{"strategy", "prior"}}
	}
	return []Param{{"strategy", "mean"}}
}

func (m *Dummy) Family() Family { return FamilyDummy }
