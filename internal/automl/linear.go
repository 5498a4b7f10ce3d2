package automl

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// LogisticRegression is multinomial logistic regression with L2 penalty
// 1/C, fitted by full-batch gradient descent on internally standardised
// features.
type LogisticRegression struct {
	Classes      int
	C            float64
	MaxIter      int
	LearningRate float64
	Mean, Scale  []float64
	Weights      []float64 // Classes x p, row-major
	Bias         []float64
}

func standardiser(X *mat.Dense) (mean, scale []float64) {
	_, p := X.Dims()
	mean = make([]float64, p)
	scale = make([]float64, p)
	for j := 0; j < p; j++ {
		col := mat.Col(nil, j, X)
		m, s := stat.PopMeanStdDev(col, nil)
		if s == 0 || math.IsNaN(s) {
			s = 1
		}
		mean[j], scale[j] = m, s
	}
	return mean, scale
}

func (m *LogisticRegression) standardise(x []float64, dst []float64) {
	for j, v := range x {
		dst[j] = (v - m.Mean[j]) / m.Scale[j]
	}
}

func (m *LogisticRegression) Fit(X *mat.Dense, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	n, p := X.Dims()
	K := m.Classes
	m.Mean, m.Scale = standardiser(X)
	m.Weights = make([]float64, K*p)
	m.Bias = make([]float64, K)

	Z := make([][]float64, n)
	for i := range Z {
		Z[i] = make([]float64, p)
		m.standardise(rowOf(X, i), Z[i])
	}

	gradW := make([]float64, K*p)
	gradB := make([]float64, K)
	scores := make([]float64, K)
	for iter := 0; iter < m.MaxIter; iter++ {
		for i := range gradW {
			gradW[i] = 0
		}
		for i := range gradB {
			gradB[i] = 0
		}
		for i, z := range Z {
			m.scores(z, scores)
			softmax(scores)
			for k := 0; k < K; k++ {
				d := scores[k]
				if int(y[i]) == k {
					d -= 1
				}
				gradB[k] += d
				floats.AddScaled(gradW[k*p:(k+1)*p], d, z)
			}
		}
		inv := 1 / float64(n)
		for k := 0; k < K; k++ {
			for j := 0; j < p; j++ {
				g := gradW[k*p+j]*inv + m.Weights[k*p+j]/(m.C*float64(n))
				m.Weights[k*p+j] -= m.LearningRate * g
			}
			m.Bias[k] -= m.LearningRate * gradB[k] * inv
		}
	}
	return nil
}

func (m *LogisticRegression) scores(z, dst []float64) {
	p := len(z)
	for k := range dst {
		dst[k] = m.Bias[k] + floats.Dot(m.Weights[k*p:(k+1)*p], z)
	}
}

func (m *LogisticRegression) PredictProba(X *mat.Dense) *mat.Dense {
	r, p := X.Dims()
	out := mat.NewDense(r, m.Classes, nil)
	z := make([]float64, p)
	s := make([]float64, m.Classes)
	for i := 0; i < r; i++ {
		m.standardise(rowOf(X, i), z)
		m.scores(z, s)
		softmax(s)
		out.SetRow(i, s)
	}
	return out
}

func (m *LogisticRegression) Predict(X *mat.Dense) []float64 { return argmaxRows(m.PredictProba(X)) }

func (m *LogisticRegression) TypeName() string { return "LogisticRegression" }

// FeatureImportances is the mean absolute standardised coefficient per
// feature across classes.
func (m *LogisticRegression) FeatureImportances() []float64 {
	p := len(m.Mean)
	out := make([]float64, p)
	for k := 0; k < m.Classes; k++ {
		for j := 0; j < p; j++ {
			out[j] += math.Abs(m.Weights[k*p+j]) / float64(m.Classes)
		}
	}
	return out
}

func (m *LogisticRegression) Params() []Param {
	return []Param{
		{"C", ftoa(m.C)},
		{"max_iter", itoa(m.MaxIter)},
		{"multi_class", "multinomial"},
		{"penalty", "l2"},
		{"solver", "gd"},
	}
}

func (m *LogisticRegression) Family() Family { return FamilyLinear }

// LinearRegression is ordinary least squares (Alpha == 0) or ridge
// regression with an unpenalised intercept.
type LinearRegression struct {
	Alpha     float64
	Coef      []float64
	Intercept float64
}

func (m *LinearRegression) Fit(X *mat.Dense, y []float64) error {
	if err := checkFit(X, y); err != nil {
		return err
	}
	n, p := X.Dims()

	xMean := make([]float64, p)
	for j := range xMean {
		xMean[j] = stat.Mean(mat.Col(nil, j, X), nil)
	}
	yMean := stat.Mean(y, nil)

	Xc := mat.NewDense(n, p, nil)
	Xc.Apply(func(i, j int, v float64) float64 { return v - xMean[j] }, X)
	yc := mat.NewVecDense(n, nil)
	for i, v := range y {
		yc.SetVec(i, v-yMean)
	}

	coef := mat.NewVecDense(p, nil)
	if m.Alpha > 0 {
		var gram mat.Dense
		gram.Mul(Xc.T(), Xc)
		for j := 0; j < p; j++ {
			gram.Set(j, j, gram.At(j, j)+m.Alpha)
		}
		var rhs mat.VecDense
		rhs.MulVec(Xc.T(), yc)
		if err := coef.SolveVec(&gram, &rhs); err != nil {
			if _, ok := err.(mat.Condition); !ok {
				return fmt.Errorf("ridge solve: %w", err)
			}
		}
	} else {
		var svd mat.SVD
		if !svd.Factorize(Xc, mat.SVDThin) {
			return fmt.Errorf("least squares: SVD factorisation failed")
		}
		if rank := svd.Rank(1e-10); rank > 0 {
			var sol mat.Dense
			svd.SolveTo(&sol, yc, rank)
			for j := 0; j < p; j++ {
				coef.SetVec(j, sol.At(j, 0))
			}
		}
	}

	m.Coef = make([]float64, p)
	for j := range m.Coef {
		m.Coef[j] = coef.AtVec(j)
	}
	m.Intercept = yMean - floats.Dot(m.Coef, xMean)
	return nil
}

func (m *LinearRegression) Predict(X *mat.Dense) []float64 {
	r, _ := X.Dims()
	out := make([]float64, r)
	for i := range out {
		out[i] = m.Intercept + floats.Dot(m.Coef, rowOf(X, i))
	}
	return out
}

func (m *LinearRegression) TypeName() string {
	if m.Alpha > 0 {
		return "Ridge"
	}
	return "LinearRegression"
}

func (m *LinearRegression) Params() []Param {
	params := []Param{{"fit_intercept", "True"}}
	if m.Alpha > 0 {
		params = append([]Param{{"alpha", ftoa(m.Alpha)}}, params...)
	}
	return params
}

func (m *LinearRegression) Family() Family { return FamilyLinear }

// FeatureImportances returns absolute coefficients, normalised.
func (m *LinearRegression) FeatureImportances() []float64 {
	imp := make([]float64, len(m.Coef))
	for i, c := range m.Coef {
		imp[i] = math.Abs(c)
	}
	normalise(imp)
	return imp
}
