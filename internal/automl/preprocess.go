package automl

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/learner/internal/tabular"
)

const (
	outlierZ          = 3.0
	collinearityLimit = 0.9
	selectFraction    = 0.2
)

// ColumnEncoder turns one input column into one or more model features.
// Numeric columns pass through with missing cells filled by the training
// mean; text columns are one-hot encoded over the training categories.
type ColumnEncoder struct {
	Name       string
	Numeric    bool
	Fill       float64
	Categories []string
}

func (c ColumnEncoder) width() int {
	if c.Numeric {
		return 1
	}
	return len(c.Categories)
}

func (c ColumnEncoder) names() []string {
	if c.Numeric {
		return []string{c.Name}
	}
	out := make([]string, len(c.Categories))
	for i, cat := range c.Categories {
		out[i] = c.Name + "_" + cat
	}
	return out
}

// PreprocessOptions selects the optional transforms.
type PreprocessOptions struct {
	Normalize               bool
	RemoveOutliers          bool
	RemoveMulticollinearity bool
	PolynomialFeatures      bool
	FeatureSelection        bool
}

// Preprocessor is the fitted feature pipeline: encode, expand, drop
// collinear columns, standardise and select. It is stored with the model so
// new data can be transformed the same way.
type Preprocessor struct {
	Options  PreprocessOptions
	Encoders []ColumnEncoder
	Keep     []int // columns surviving collinearity removal; nil keeps all
	Mean     []float64
	Std      []float64
	Selected []int // columns surviving feature selection; nil keeps all
	Names    []string
}

// Fit learns the pipeline from the training rows and returns the
// transformed training matrix together with the indices of the rows that
// survived outlier removal.
func (p *Preprocessor) Fit(ds *tabular.Dataset, features []string, y []float64, classification bool) (*mat.Dense, []int, error) {
	p.Encoders = make([]ColumnEncoder, 0, len(features))
	for _, name := range features {
		p.Encoders = append(p.Encoders, fitEncoder(ds.Column(name)))
	}

	X, names, err := p.expand(ds)
	if err != nil {
		return nil, nil, err
	}
	rows := allRows(len(y))

	if p.Options.RemoveMulticollinearity {
		p.Keep = collinearKeep(X)
		X, names = selectColumns(X, names, p.Keep)
	}
	if p.Options.RemoveOutliers {
		rows = inlierRows(X)
		if len(rows) < len(y) {
			X = selectRows(X, rows)
		}
	}
	if p.Options.Normalize {
		p.Mean, p.Std = standardiser(X)
		standardise(X, p.Mean, p.Std)
	}
	if p.Options.FeatureSelection {
		yk := make([]float64, len(rows))
		for i, r := range rows {
			yk[i] = y[r]
		}
		p.Selected = selectFeatures(X, yk, classification)
		X, names = selectColumns(X, names, p.Selected)
	}
	p.Names = names
	return X, rows, nil
}

// Transform applies the fitted pipeline. Columns absent from ds are treated
// as entirely missing.
func (p *Preprocessor) Transform(ds *tabular.Dataset) (*mat.Dense, error) {
	X, names, err := p.expand(ds)
	if err != nil {
		return nil, err
	}
	if p.Keep != nil {
		X, names = selectColumns(X, names, p.Keep)
	}
	if p.Mean != nil {
		standardise(X, p.Mean, p.Std)
	}
	if p.Selected != nil {
		X, _ = selectColumns(X, names, p.Selected)
	}
	return X, nil
}

func fitEncoder(c *tabular.Column) ColumnEncoder {
	if c.Numeric {
		var present []float64
		for _, v := range c.Values {
			if !math.IsNaN(v) {
				present = append(present, v)
			}
		}
		fill := 0.0
		if len(present) > 0 {
			fill = stat.Mean(present, nil)
		}
		return ColumnEncoder{Name: c.Name, Numeric: true, Fill: fill}
	}
	seen := map[string]bool{}
	var cats []string
	for i, s := range c.Text {
		if c.Missing[i] || seen[s] {
			continue
		}
		seen[s] = true
		cats = append(cats, s)
	}
	sort.Strings(cats)
	return ColumnEncoder{Name: c.Name, Categories: cats}
}

// expand encodes ds and, when enabled, appends degree-2 polynomial terms.
func (p *Preprocessor) expand(ds *tabular.Dataset) (*mat.Dense, []string, error) {
	n := ds.Rows()
	var names []string
	width := 0
	for _, e := range p.Encoders {
		width += e.width()
		names = append(names, e.names()...)
	}
	base := make([][]float64, n)
	for i := range base {
		base[i] = make([]float64, 0, width)
	}
	for _, e := range p.Encoders {
		col := ds.Column(e.Name)
		for i := 0; i < n; i++ {
			base[i] = append(base[i], encodeCell(e, col, i)...)
		}
	}

	if p.Options.PolynomialFeatures {
		q := width
		for a := 0; a < q; a++ {
			for b := a; b < q; b++ {
				if a == b {
					names = append(names, names[a]+"^2")
				} else {
					names = append(names, names[a]+"*"+names[b])
				}
			}
		}
		for i := range base {
			row := base[i]
			for a := 0; a < q; a++ {
				for b := a; b < q; b++ {
					row = append(row, row[a]*row[b])
				}
			}
			base[i] = row
		}
		width = len(names)
	}

	if n == 0 || width == 0 {
		return nil, nil, fmt.Errorf("no data to encode: %d rows, %d features", n, width)
	}
	X := mat.NewDense(n, width, nil)
	for i, row := range base {
		X.SetRow(i, row)
	}
	return X, names, nil
}

func encodeCell(e ColumnEncoder, col *tabular.Column, i int) []float64 {
	if e.Numeric {
		if col == nil || col.IsMissing(i) {
			return []float64{e.Fill}
		}
		if col.Numeric {
			return []float64{col.Values[i]}
		}
		return []float64{e.Fill}
	}
	out := make([]float64, len(e.Categories))
	if col == nil || col.IsMissing(i) {
		return out
	}
	v := col.String(i)
	if k := sort.SearchStrings(e.Categories, v); k < len(e.Categories) && e.Categories[k] == v {
		out[k] = 1
	}
	return out
}

func standardise(X *mat.Dense, mean, std []float64) {
	X.Apply(func(_, j int, v float64) float64 { return (v - mean[j]) / std[j] }, X)
}

func selectColumns(X *mat.Dense, names []string, cols []int) (*mat.Dense, []string) {
	r, _ := X.Dims()
	out := mat.NewDense(r, len(cols), nil)
	outNames := make([]string, len(cols))
	for j, c := range cols {
		out.SetCol(j, mat.Col(nil, c, X))
		outNames[j] = names[c]
	}
	return out, outNames
}

func selectRows(X *mat.Dense, rows []int) *mat.Dense {
	_, c := X.Dims()
	out := mat.NewDense(len(rows), c, nil)
	for i, r := range rows {
		out.SetRow(i, X.RawRowView(r))
	}
	return out
}

// collinearKeep drops the later column of every pair whose absolute
// correlation exceeds the limit.
func collinearKeep(X *mat.Dense) []int {
	r, c := X.Dims()
	if r < 3 || c < 2 {
		return allRows(c)
	}
	var corr mat.SymDense
	stat.CorrelationMatrix(&corr, X, nil)
	dropped := make([]bool, c)
	for i := 0; i < c; i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < c; j++ {
			if v := corr.At(i, j); !dropped[j] && !math.IsNaN(v) && math.Abs(v) > collinearityLimit {
				dropped[j] = true
			}
		}
	}
	var keep []int
	for j, d := range dropped {
		if !d {
			keep = append(keep, j)
		}
	}
	return keep
}

// inlierRows keeps rows whose features all lie within outlierZ standard
// deviations of the column mean.
func inlierRows(X *mat.Dense) []int {
	r, _ := X.Dims()
	mean, std := standardiser(X)
	var keep []int
	for i := 0; i < r; i++ {
		ok := true
		for j, v := range X.RawRowView(i) {
			if math.Abs((v-mean[j])/std[j]) > outlierZ {
				ok = false
				break
			}
		}
		if ok {
			keep = append(keep, i)
		}
	}
	if len(keep) == 0 {
		return allRows(r)
	}
	return keep
}

// selectFeatures keeps the top fraction of columns ranked by a univariate
// score: the ANOVA F statistic for classification, absolute correlation
// with the target for regression.
func selectFeatures(X *mat.Dense, y []float64, classification bool) []int {
	_, c := X.Dims()
	scores := make([]float64, c)
	for j := 0; j < c; j++ {
		col := mat.Col(nil, j, X)
		if classification {
			scores[j] = anovaF(col, y)
		} else {
			scores[j] = math.Abs(stat.Correlation(col, y, nil))
		}
		if math.IsNaN(scores[j]) {
			scores[j] = 0
		}
	}
	k := max(1, int(math.Round(selectFraction*float64(c))))
	order := allRows(c)
	sort.SliceStable(order, func(a, b int) bool { return scores[order[a]] > scores[order[b]] })
	keep := append([]int(nil), order[:k]...)
	sort.Ints(keep)
	return keep
}

func anovaF(x, y []float64) float64 {
	groups := map[int][]float64{}
	for i, v := range x {
		groups[int(y[i])] = append(groups[int(y[i])], v)
	}
	grand := stat.Mean(x, nil)
	var between, within float64
	for _, g := range groups {
		m := stat.Mean(g, nil)
		between += float64(len(g)) * (m - grand) * (m - grand)
		for _, v := range g {
			within += (v - m) * (v - m)
		}
	}
	dfb := float64(len(groups) - 1)
	dfw := float64(len(x) - len(groups))
	if dfb <= 0 || dfw <= 0 || within == 0 {
		return 0
	}
	return (between / dfb) / (within / dfw)
}
