// Package importance measures how much the selected model relies on each
// feature and renders the result for the report's feature tab.
package importance

import (
	"encoding/base64"
	"fmt"
	"math/rand/v2"
	"sort"
	"strings"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/learner/internal/automl"
	"github.com/banshee-data/learner/internal/errs"
	"github.com/banshee-data/learner/internal/frame"
	"github.com/banshee-data/learner/internal/plots"
)

// DefaultRepeats is the number of shuffles per feature.
const DefaultRepeats = 5

// Result is the importance of one feature.
type Result struct {
	Feature   string
	Mean      float64 // mean score drop over repeats
	Std       float64
	Native    float64
	HasNative bool
}

// Analyzer computes permutation importance on held-out data.
type Analyzer struct {
	Repeats int
	Seed    uint64
}

func (a Analyzer) repeats() int {
	if a.Repeats <= 0 {
		return DefaultRepeats
	}
	return a.Repeats
}

// Metric returns the score the analyzer measures drops in.
func Metric(task automl.Task) string {
	if task == automl.Classification {
		return automl.ColAccuracy
	}
	return automl.ColR2
}

func score(task automl.Task, m automl.Model, X *mat.Dense, y []float64) float64 {
	pred := m.Predict(X)
	if task == automl.Classification {
		var hit float64
		for i := range y {
			if pred[i] == y[i] {
				hit++
			}
		}
		return hit / float64(len(y))
	}
	return automl.RegressionScores(y, pred)[automl.ColR2]
}

// Permutation shuffles each column of X in turn and records the drop in
// score. Results are ordered by mean drop, largest first.
func (a Analyzer) Permutation(task automl.Task, m automl.Model, X *mat.Dense, y []float64, names []string) ([]Result, error) {
	r, c := X.Dims()
	if r == 0 || r != len(y) {
		return nil, fmt.Errorf("permutation importance: %d rows and %d targets", r, len(y))
	}
	if c != len(names) {
		return nil, fmt.Errorf("permutation importance: %d columns and %d names", c, len(names))
	}
	var native []float64
	if fi, ok := m.(automl.FeatureImportancer); ok {
		if imp := fi.FeatureImportances(); len(imp) == c {
			native = imp
		}
	}

	rng := rand.New(rand.NewPCG(a.Seed, a.Seed^0x5eed))
	base := score(task, m, X, y)
	work := mat.DenseCopyOf(X)
	out := make([]Result, c)
	for j := 0; j < c; j++ {
		orig := mat.Col(nil, j, X)
		col := append([]float64(nil), orig...)
		drops := make([]float64, a.repeats())
		for k := range drops {
			rng.Shuffle(len(col), func(p, q int) { col[p], col[q] = col[q], col[p] })
			work.SetCol(j, col)
			drops[k] = base - score(task, m, work, y)
		}
		work.SetCol(j, orig)
		mean, std := stat.PopMeanStdDev(drops, nil)
		out[j] = Result{Feature: names[j], Mean: mean, Std: std}
		if native != nil {
			out[j].Native, out[j].HasNative = native[j], true
		}
	}
	sort.SliceStable(out, func(p, q int) bool { return out[p].Mean > out[q].Mean })
	return out, nil
}

// Table lays results out for display. The native column only appears when
// the model reports its own importances.
func Table(results []Result) *frame.Table {
	native := len(results) > 0 && results[0].HasNative
	cols := []string{"Feature", "Importance", "Std"}
	if native {
		cols = append(cols, "Model Importance")
	}
	t := frame.New(cols...)
	for _, r := range results {
		row := []string{r.Feature, frame.FormatFloat(r.Mean), frame.FormatFloat(r.Std)}
		if native {
			row = append(row, frame.FormatFloat(r.Native))
		}
		t.Append("", row...)
	}
	return t
}

// Fragment renders the feature tab body: an explanatory note, a sortable
// table and a bar chart of the top features.
func Fragment(task automl.Task, modelName string, results []Result, repeats int) (string, error) {
	if len(results) == 0 {
		return "", fmt.Errorf("no importance results")
	}
	top := results
	if len(top) > 20 {
		top = top[:20]
	}
	labels := make([]string, len(top))
	values := make([]float64, len(top))
	for i, r := range top {
		labels[i], values[i] = r.Feature, r.Mean
	}
	png, err := plots.BarChartPNG("Permutation Importance ("+modelName+")", "Drop in "+Metric(task), labels, values)
	if err != nil {
		return "", errs.External("render importance chart", err)
	}

	var b strings.Builder
	b.WriteString("<h2>Feature Importance</h2>\n")
	fmt.Fprintf(&b, "<h5>Drop in %s on the test set when a feature's values are shuffled, averaged over %d repeats. Larger drops mean the model relies more on the feature.</h5>\n",
		Metric(task), repeats)
	b.WriteString(Table(results).HTML("table", "sortable"))
	b.WriteString("\n<div class=\"plot\">\n")
	fmt.Fprintf(&b, "<img src=\"data:image/png;base64,%s\" alt=\"Permutation importance\">\n", base64.StdEncoding.EncodeToString(png))
	b.WriteString("</div>\n")
	return b.String(), nil
}
