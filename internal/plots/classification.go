package plots

import (
	"fmt"
	"math"
	"strconv"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/palette"
	"gonum.org/v1/plot/plotter"

	"github.com/banshee-data/learner/internal/automl"
)

const calibrationBins = 10

// classCurves yields one (label, positive mask, scores) triple per curve:
// the positive class for binary problems, one-vs-rest otherwise.
func classCurves(in Input) ([]string, [][]bool, [][]float64, error) {
	proba := in.Predictions.Proba
	if proba == nil {
		return nil, nil, nil, skip("%s has no class probabilities", in.Model.TypeName())
	}
	_, k := proba.Dims()
	y := in.Predictions.YTrue
	if k == 2 {
		return []string{label(in.Labels, 1)}, [][]bool{automl.ClassMask(y, 1)}, [][]float64{mat.Col(nil, 1, proba)}, nil
	}
	var names []string
	var masks [][]bool
	var scores [][]float64
	for c := 0; c < k; c++ {
		names = append(names, label(in.Labels, c))
		masks = append(masks, automl.ClassMask(y, c))
		scores = append(scores, mat.Col(nil, c, proba))
	}
	return names, masks, scores, nil
}

func label(labels []string, k int) string {
	if k < len(labels) {
		return labels[k]
	}
	return strconv.Itoa(k)
}

func rocPlot(in Input) (*plot.Plot, error) {
	names, masks, scores, err := classCurves(in)
	if err != nil {
		return nil, err
	}
	p := newPlot("ROC Curves for "+in.Model.TypeName(), "False Positive Rate", "True Positive Rate")
	drawn := 0
	for i := range names {
		fpr, tpr := automl.ROCCurve(masks[i], scores[i])
		if fpr == nil {
			continue
		}
		auc := automl.ROCAUC(masks[i], scores[i])
		if err := addLine(p, fmt.Sprintf("class %s (AUC %.2f)", names[i], auc), fpr, tpr, i, len(names)); err != nil {
			return nil, err
		}
		drawn++
	}
	if drawn == 0 {
		return nil, skip("holdout contains a single class")
	}
	if err := addDiagonal(p, 0, 1); err != nil {
		return nil, err
	}
	p.Legend.Top = false
	return p, nil
}

func prPlot(in Input) (*plot.Plot, error) {
	names, masks, scores, err := classCurves(in)
	if err != nil {
		return nil, err
	}
	p := newPlot("Precision Recall Curve", "Recall", "Precision")
	drawn := 0
	for i := range names {
		recall, precision := automl.PRCurve(masks[i], scores[i])
		if recall == nil {
			continue
		}
		// Anchor the curve at recall 0 so it starts on the axis.
		recall = append([]float64{0}, recall...)
		precision = append([]float64{precision[0]}, precision...)
		ap := automl.AveragePrecision(masks[i], scores[i])
		if err := addLine(p, fmt.Sprintf("class %s (AP %.2f)", names[i], ap), recall, precision, i, len(names)); err != nil {
			return nil, err
		}
		drawn++
	}
	if drawn == 0 {
		return nil, skip("holdout has no positive rows")
	}
	p.Y.Min, p.Y.Max = 0, 1.05
	p.Legend.Top = false
	p.Legend.Left = true
	return p, nil
}

// confusionGrid adapts a confusion matrix to plotter.GridXYZ with true
// classes on the y axis, first class at the top.
type confusionGrid struct{ m [][]float64 }

func (g confusionGrid) Dims() (c, r int)   { return len(g.m), len(g.m) }
func (g confusionGrid) Z(c, r int) float64 { return g.m[len(g.m)-1-r][c] }
func (g confusionGrid) X(c int) float64    { return float64(c) }
func (g confusionGrid) Y(r int) float64    { return float64(r) }

func confusionPlot(in Input) (*plot.Plot, error) {
	k := len(in.Labels)
	if k < 2 {
		return nil, skip("fewer than two classes")
	}
	m := automl.ConfusionMatrix(in.Predictions.YTrue, in.Predictions.YPred, k)
	grid := confusionGrid{m}

	p := newPlot(in.Model.TypeName()+" Confusion Matrix", "Predicted Class", "True Class")
	heat := plotter.NewHeatMap(grid, palette.Heat(12, 1))
	if heat.Max == heat.Min {
		heat.Max++
	}
	p.Add(heat)

	var pts plotter.XYs
	var texts []string
	for r := 0; r < k; r++ {
		for c := 0; c < k; c++ {
			pts = append(pts, plotter.XY{X: float64(c), Y: float64(r)})
			texts = append(texts, strconv.Itoa(int(grid.Z(c, r))))
		}
	}
	lbls, err := plotter.NewLabels(plotter.XYLabels{XYs: pts, Labels: texts})
	if err != nil {
		return nil, err
	}
	p.Add(lbls)

	xNames := make([]string, k)
	yNames := make([]string, k)
	for i := 0; i < k; i++ {
		xNames[i] = label(in.Labels, i)
		yNames[k-1-i] = label(in.Labels, i)
	}
	p.NominalX(xNames...)
	p.NominalY(yNames...)
	return p, nil
}

// thresholdPlot traces precision, recall and F1 of the positive class as
// the decision threshold sweeps [0,1].
func thresholdPlot(in Input) (*plot.Plot, error) {
	if in.Predictions.Proba == nil {
		return nil, skip("%s has no class probabilities", in.Model.TypeName())
	}
	if _, k := in.Predictions.Proba.Dims(); k != 2 {
		return nil, skip("threshold plot needs a binary problem")
	}
	pos := automl.ClassMask(in.Predictions.YTrue, 1)
	scores := mat.Col(nil, 1, in.Predictions.Proba)

	var ts, prec, rec, f1 []float64
	for step := 0; step <= 50; step++ {
		t := float64(step) / 50
		var tp, fp, fn float64
		for i, s := range scores {
			switch {
			case s >= t && pos[i]:
				tp++
			case s >= t:
				fp++
			case pos[i]:
				fn++
			}
		}
		pr, re := ratio(tp, tp+fp), ratio(tp, tp+fn)
		ts = append(ts, t)
		prec = append(prec, pr)
		rec = append(rec, re)
		f1 = append(f1, ratio(2*pr*re, pr+re))
	}
	p := newPlot("Threshold Plot for "+in.Model.TypeName(), "Discrimination Threshold", "Score")
	for i, series := range []struct {
		name string
		ys   []float64
	}{{"precision", prec}, {"recall", rec}, {"f1", f1}} {
		if err := addLine(p, series.name, ts, series.ys, i, 3); err != nil {
			return nil, err
		}
	}
	p.Y.Min, p.Y.Max = 0, 1.05
	return p, nil
}

// calibrationPlot bins predicted positive probabilities and compares each
// bin's mean prediction with its observed positive fraction.
func calibrationPlot(in Input) (*plot.Plot, error) {
	if in.Predictions.Proba == nil {
		return nil, skip("%s has no class probabilities", in.Model.TypeName())
	}
	if _, k := in.Predictions.Proba.Dims(); k != 2 {
		return nil, skip("calibration curve needs a binary problem")
	}
	pos := automl.ClassMask(in.Predictions.YTrue, 1)
	scores := mat.Col(nil, 1, in.Predictions.Proba)

	var sum, hits, count [calibrationBins]float64
	for i, s := range scores {
		b := min(int(math.Floor(s*calibrationBins)), calibrationBins-1)
		sum[b] += s
		count[b]++
		if pos[i] {
			hits[b]++
		}
	}
	var xs, ys []float64
	for b := 0; b < calibrationBins; b++ {
		if count[b] == 0 {
			continue
		}
		xs = append(xs, sum[b]/count[b])
		ys = append(ys, hits[b]/count[b])
	}
	p := newPlot("Calibration Curve", "Mean Predicted Value", "Fraction of Positives")
	if err := addLine(p, in.Model.TypeName(), xs, ys, 0, 1); err != nil {
		return nil, err
	}
	scatter, err := plotter.NewScatter(xyPairs(xs, ys))
	if err != nil {
		return nil, err
	}
	p.Add(scatter)
	if err := addDiagonal(p, 0, 1); err != nil {
		return nil, err
	}
	p.Legend.Top = false
	p.Legend.Left = true
	return p, nil
}

func ratio(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

func xyPairs(xs, ys []float64) plotter.XYs {
	pts := make(plotter.XYs, len(xs))
	for i := range xs {
		pts[i] = plotter.XY{X: xs[i], Y: ys[i]}
	}
	return pts
}
