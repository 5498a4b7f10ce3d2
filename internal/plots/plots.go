// Package plots renders evaluation plots for the selected model as PNG
// files with gonum/plot.
package plots

import (
	"bytes"
	"fmt"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/learner/internal/automl"
	"github.com/banshee-data/learner/internal/errs"
	"github.com/banshee-data/learner/internal/fsutil"
	"github.com/banshee-data/learner/internal/monitoring"
)

// Plot names in generation order.
var (
	ClassificationPlots = []string{"auc", "pr", "confusion_matrix", "threshold", "calibration", "feature"}
	RegressionPlots     = []string{"residuals", "error", "feature"}
)

const (
	width  = 6 * vg.Inch
	height = 4.5 * vg.Inch
)

// Plot is one generated image.
type Plot struct {
	Name string
	Path string
}

// Input is everything the plot builders read.
type Input struct {
	Task         automl.Task
	Model        automl.Model
	Predictions  *automl.Predictions
	Labels       []string
	FeatureNames []string
}

// errSkip marks a plot that does not apply to this model or data.
type errSkip struct{ reason string }

func (e errSkip) Error() string { return e.reason }

func skip(format string, args ...interface{}) error {
	return errSkip{fmt.Sprintf(format, args...)}
}

// Generate writes every applicable plot under outputDir on fs and returns
// them in order. Individual plot failures are logged and skipped; only an
// unusable output directory is an error.
func Generate(fs fsutil.FileSystem, outputDir string, in Input) ([]Plot, error) {
	if err := fs.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create plot dir: %w", err)
	}
	if in.Predictions == nil || in.Model == nil {
		return nil, fmt.Errorf("plots need a model and holdout predictions")
	}

	names := RegressionPlots
	if in.Task == automl.Classification {
		names = ClassificationPlots
	}
	var out []Plot
	for _, name := range names {
		path := filepath.Join(outputDir, fsutil.SanitizeFilename(name)+".png")
		err := render(fs, name, in, path)
		if err != nil {
			if s, ok := err.(errSkip); ok {
				monitoring.Logf("plot %s skipped: %s", name, s.reason)
			} else {
				monitoring.Warnf("plot %s failed: %v", name, errs.External("plot "+name, err))
			}
			continue
		}
		out = append(out, Plot{Name: name, Path: path})
	}
	monitoring.Logf("generated %d of %d plots", len(out), len(names))
	return out, nil
}

// render builds and saves one plot. A panic inside the plotting library is
// reported as an error.
func render(fs fsutil.FileSystem, name string, in Input, path string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	p, err := build(name, in)
	if err != nil {
		return err
	}
	png, err := EncodePNG(p, width, height)
	if err != nil {
		return err
	}
	return fs.WriteFile(path, png, 0o644)
}

func build(name string, in Input) (*plot.Plot, error) {
	switch name {
	case "auc":
		return rocPlot(in)
	case "pr":
		return prPlot(in)
	case "confusion_matrix":
		return confusionPlot(in)
	case "threshold":
		return thresholdPlot(in)
	case "calibration":
		return calibrationPlot(in)
	case "feature":
		return featurePlot(in)
	case "residuals":
		return residualPlot(in)
	case "error":
		return errorPlot(in)
	}
	return nil, fmt.Errorf("unknown plot %q", name)
}

func newPlot(title, x, y string) *plot.Plot {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = x
	p.Y.Label.Text = y
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10
	return p
}

func addLine(p *plot.Plot, label string, xs, ys []float64, i, n int) error {
	pts := make(plotter.XYs, len(xs))
	for k := range xs {
		pts[k] = plotter.XY{X: xs[k], Y: ys[k]}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return err
	}
	line.Color = generateColors(n)[i]
	line.Width = vg.Points(1.5)
	p.Add(line)
	if label != "" {
		p.Legend.Add(label, line)
	}
	return nil
}

// addDiagonal draws the dashed reference line from (lo,lo) to (hi,hi).
func addDiagonal(p *plot.Plot, lo, hi float64) error {
	line, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return err
	}
	line.Dashes = []vg.Length{vg.Points(4), vg.Points(4)}
	p.Add(line)
	return nil
}

// featurePlot charts model-native importances, largest first, capped at
// the top 20 features.
func featurePlot(in Input) (*plot.Plot, error) {
	fi, ok := in.Model.(automl.FeatureImportancer)
	if !ok {
		return nil, skip("%s has no native feature importances", in.Model.TypeName())
	}
	imp := fi.FeatureImportances()
	if len(imp) != len(in.FeatureNames) || len(imp) == 0 {
		return nil, skip("importances do not match %d features", len(in.FeatureNames))
	}
	order := rankDesc(imp)
	if len(order) > 20 {
		order = order[:20]
	}
	vals := make(plotter.Values, len(order))
	names := make([]string, len(order))
	for i, j := range order {
		vals[i] = imp[j]
		names[i] = in.FeatureNames[j]
	}
	p := newPlot("Feature Importance", "Feature", "Importance")
	bars, err := plotter.NewBarChart(vals, vg.Points(12))
	if err != nil {
		return nil, err
	}
	bars.Color = generateColors(1)[0]
	p.Add(bars)
	p.NominalX(names...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -1
	return p, nil
}

// BarChartPNG renders labelled bars in the given order as PNG bytes.
func BarChartPNG(title, yLabel string, labels []string, values []float64) ([]byte, error) {
	if len(labels) == 0 || len(labels) != len(values) {
		return nil, fmt.Errorf("bar chart needs one value per label, got %d and %d", len(labels), len(values))
	}
	p := newPlot(title, "", yLabel)
	bars, err := plotter.NewBarChart(plotter.Values(values), vg.Points(12))
	if err != nil {
		return nil, err
	}
	bars.Color = generateColors(1)[0]
	p.Add(bars)
	p.NominalX(labels...)
	p.X.Tick.Label.Rotation = 0.8
	p.X.Tick.Label.XAlign = -1
	return EncodePNG(p, width, height)
}

// LineChartPNG renders one line per named series over xs as PNG bytes.
func LineChartPNG(title, xLabel, yLabel string, xs []float64, names []string, ys [][]float64) ([]byte, error) {
	if len(xs) == 0 || len(names) != len(ys) {
		return nil, fmt.Errorf("line chart needs points and one name per series, got %d points, %d names and %d series", len(xs), len(names), len(ys))
	}
	p := newPlot(title, xLabel, yLabel)
	for i, series := range ys {
		if len(series) != len(xs) {
			return nil, fmt.Errorf("series %s has %d values for %d points", names[i], len(series), len(xs))
		}
		if err := addLine(p, names[i], xs, series, i, len(ys)); err != nil {
			return nil, err
		}
	}
	return EncodePNG(p, width, height)
}

// EncodePNG renders p to PNG bytes.
func EncodePNG(p *plot.Plot, w, h vg.Length) ([]byte, error) {
	wt, err := p.WriterTo(w, h, "png")
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
