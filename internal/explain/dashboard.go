package explain

import (
	"encoding/base64"
	"fmt"
	"html"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/learner/internal/automl"
	"github.com/banshee-data/learner/internal/plots"
)

// AssetsHost serves echarts.min.js for the interactive page.
const AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// PageFile is the interactive explainer page written next to the report.
// Unlike the report it loads echarts from AssetsHost.
const PageFile = "explainer_dashboard.html"

const maxFeatures = 20

// summary holds the numbers both renderings chart.
type summary struct {
	names   []string
	meanAbs []float64
	row     []float64
	trees   []*automl.Tree
}

func summarize(in Input) (*summary, error) {
	te, err := ensemble(in.Model)
	if err != nil {
		return nil, err
	}
	r, c := in.X.Dims()
	if r == 0 || c != len(in.FeatureNames) {
		return nil, fmt.Errorf("explainer needs holdout rows with %d named features, got %dx%d", len(in.FeatureNames), r, c)
	}
	contrib, err := Contributions(in)
	if err != nil {
		return nil, err
	}
	return &summary{
		names:   in.FeatureNames,
		meanAbs: MeanAbs(contrib),
		row:     append([]float64(nil), contrib.RawRowView(0)...),
		trees:   te.Estimators(),
	}, nil
}

// topFeatures orders feature indices by mean absolute contribution, largest
// first, capped at maxFeatures.
func (s *summary) topFeatures() []int {
	order := make([]int, len(s.names))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return s.meanAbs[order[a]] > s.meanAbs[order[b]] })
	if len(order) > maxFeatures {
		order = order[:maxFeatures]
	}
	return order
}

// Dashboard builds the explainer tab fragment: mean absolute feature
// contributions, the contribution breakdown of the first holdout row and
// the size of every tree in the ensemble. Charts are inline PNGs so the
// fragment needs no network access.
func Dashboard(in Input) (string, error) {
	s, err := summarize(in)
	if err != nil {
		return "", err
	}

	order := s.topFeatures()
	labels := make([]string, len(order))
	values := make([]float64, len(order))
	for i, j := range order {
		labels[i], values[i] = s.names[j], s.meanAbs[j]
	}
	importance, err := plots.BarChartPNG("Mean |contribution| (test set)", "Mean |contribution|", labels, values)
	if err != nil {
		return "", fmt.Errorf("importance chart: %w", err)
	}
	row, err := plots.BarChartPNG("Contributions (first test row)", "Contribution", s.names, s.row)
	if err != nil {
		return "", fmt.Errorf("row chart: %w", err)
	}
	xs := make([]float64, len(s.trees))
	depth := make([]float64, len(s.trees))
	leaves := make([]float64, len(s.trees))
	for i, t := range s.trees {
		xs[i] = float64(i + 1)
		depth[i] = float64(t.Depth())
		leaves[i] = float64(leafCount(t))
	}
	trees, err := plots.LineChartPNG("Trees", "Estimator", "Count", xs, []string{"depth", "leaves"}, [][]float64{depth, leaves})
	if err != nil {
		return "", fmt.Errorf("tree chart: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<h2>Explainer: %s</h2>\n", html.EscapeString(in.ModelName))
	b.WriteString("<h5>Contributions follow each prediction's decision path through every tree and credit the change in node value to the split feature.</h5>\n")
	for _, c := range []struct {
		alt string
		png []byte
	}{
		{"Mean absolute contribution", importance},
		{"Contributions of the first test row", row},
		{"Tree depth and leaf count", trees},
	} {
		fmt.Fprintf(&b, "<div class=\"plot\">\n<img src=\"data:image/png;base64,%s\" alt=\"%s\">\n</div>\n",
			base64.StdEncoding.EncodeToString(c.png), c.alt)
	}
	return b.String(), nil
}

// PageLink is appended to the fragment once PageFile has been written.
func PageLink() string {
	return fmt.Sprintf("<p><a href=\"%s\">Interactive explainer</a> (needs network access for its chart library)</p>\n", PageFile)
}

// WritePage renders the interactive go-echarts version of the dashboard.
func WritePage(w io.Writer, in Input) error {
	s, err := summarize(in)
	if err != nil {
		return err
	}
	page := components.NewPage()
	page.SetPageTitle("Explainer: " + in.ModelName)
	page.SetAssetsHost(AssetsHost)
	page.AddCharts(
		importanceChart(s),
		rowChart(s.names, s.row),
		treeChart(s.trees),
	)
	return page.Render(w)
}

func initOpts(id string) charts.GlobalOpts {
	return charts.WithInitializationOpts(opts.Initialization{
		ChartID:    id,
		Width:      "900px",
		Height:     "480px",
		AssetsHost: AssetsHost,
	})
}

func importanceChart(s *summary) *charts.Bar {
	order := s.topFeatures()
	x := make([]string, len(order))
	y := make([]opts.BarData, len(order))
	for i, j := range order {
		x[i] = s.names[j]
		y[i] = opts.BarData{Value: round4(s.meanAbs[j])}
	}

	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts("explainer_importance"),
		charts.WithTitleOpts(opts.Title{Title: "Mean |contribution|", Subtitle: "averaged over the test set"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30}}),
	)
	bar.SetXAxis(x).AddSeries("importance", y)
	return bar
}

func rowChart(names []string, row []float64) *charts.Bar {
	y := make([]opts.BarData, len(row))
	for i, v := range row {
		y[i] = opts.BarData{Value: round4(v)}
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(
		initOpts("explainer_row"),
		charts.WithTitleOpts(opts.Title{Title: "Contributions", Subtitle: "first test row"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{AxisLabel: &opts.AxisLabel{Rotate: 30}}),
	)
	bar.SetXAxis(names).AddSeries("contribution", y)
	return bar
}

func treeChart(trees []*automl.Tree) *charts.Line {
	x := make([]string, len(trees))
	depth := make([]opts.LineData, len(trees))
	leaves := make([]opts.LineData, len(trees))
	for i, t := range trees {
		x[i] = fmt.Sprintf("%d", i+1)
		depth[i] = opts.LineData{Value: t.Depth()}
		leaves[i] = opts.LineData{Value: leafCount(t)}
	}
	line := charts.NewLine()
	line.SetGlobalOptions(
		initOpts("explainer_trees"),
		charts.WithTitleOpts(opts.Title{Title: "Trees", Subtitle: "depth and leaf count per estimator"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	line.SetXAxis(x).
		AddSeries("depth", depth).
		AddSeries("leaves", leaves)
	return line
}

func leafCount(t *automl.Tree) int {
	n := 0
	for i := range t.Nodes {
		if t.Nodes[i].IsLeaf() {
			n++
		}
	}
	return n
}

func round4(v float64) float64 { return math.Round(v*1e4) / 1e4 }
