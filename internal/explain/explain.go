// Package explain renders explainer output for tree-ensemble models: a
// dashboard fragment with inline charts, an optional interactive go-echarts
// page and one image per tree.
package explain

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/learner/internal/automl"
)

// Supported reports whether m belongs to a family the explainer handles.
func Supported(m automl.Model) bool {
	return m != nil && automl.TreeFamilies[m.Family()]
}

// Input is the holdout data the explainer attributes predictions on.
type Input struct {
	Task         automl.Task
	Model        automl.Model
	ModelName    string
	X            *mat.Dense
	Y            []float64
	FeatureNames []string
	Labels       []string
}

func ensemble(m automl.Model) (automl.TreeEnsemble, error) {
	if !Supported(m) {
		return nil, fmt.Errorf("explainer does not support %s models", m.Family())
	}
	te, ok := m.(automl.TreeEnsemble)
	if !ok {
		return nil, fmt.Errorf("%s does not expose its trees", m.TypeName())
	}
	if len(te.Estimators()) == 0 {
		return nil, fmt.Errorf("%s has no fitted trees", m.TypeName())
	}
	return te, nil
}

// outputIndex picks the tree output explained for a row: the positive class
// for binary classifiers, the predicted class for multiclass ones and the
// single value for regressors and boosted stages.
func outputIndex(t *automl.Tree, predicted float64) int {
	width := len(t.Nodes[0].Value)
	switch {
	case width <= 1:
		return 0
	case width == 2:
		return 1
	}
	return min(int(predicted), width-1)
}

// Contributions attributes each prediction to features by following its
// decision path: every split credits the change in node value to the split
// feature. Contributions are averaged over the trees of the ensemble and
// returned as rows x features.
func Contributions(in Input) (*mat.Dense, error) {
	te, err := ensemble(in.Model)
	if err != nil {
		return nil, err
	}
	r, c := in.X.Dims()
	pred := in.Model.Predict(in.X)
	trees := te.Estimators()
	out := mat.NewDense(r, c, nil)
	for i := 0; i < r; i++ {
		x := in.X.RawRowView(i)
		row := out.RawRowView(i)
		for _, t := range trees {
			k := outputIndex(t, pred[i])
			node := 0
			for !t.Nodes[node].IsLeaf() {
				n := &t.Nodes[node]
				next := n.Right
				if x[n.Feature] <= n.Threshold {
					next = n.Left
				}
				row[n.Feature] += t.Nodes[next].Value[k] - n.Value[k]
				node = next
			}
		}
		for j := range row {
			row[j] /= float64(len(trees))
		}
	}
	return out, nil
}

// MeanAbs returns the mean absolute contribution per feature.
func MeanAbs(contrib *mat.Dense) []float64 {
	r, c := contrib.Dims()
	out := make([]float64, c)
	for j := 0; j < c; j++ {
		for i := 0; i < r; i++ {
			out[j] += math.Abs(contrib.At(i, j))
		}
		out[j] /= float64(r)
	}
	return out
}
