package plots

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/learner/internal/automl"
	"github.com/banshee-data/learner/internal/fsutil"
	"github.com/banshee-data/learner/internal/tabular"
	"github.com/banshee-data/learner/internal/testutil"
)

func experimentInput(t *testing.T, task automl.Task, csv, target, model string) Input {
	t.Helper()
	ds, err := tabular.Read(strings.NewReader(csv))
	require.NoError(t, err)

	var e *automl.Engine
	if task == automl.Classification {
		e = automl.NewClassificationExperiment()
	} else {
		e = automl.NewRegressionExperiment()
	}
	require.NoError(t, e.Setup(ds, []automl.SetupParam{{Key: "target", Value: target}, {Key: "session_id", Value: int64(7)}}))
	best, err := e.CompareModels(context.Background(), []string{model}, false)
	require.NoError(t, err)
	pred, err := e.PredictModel(best)
	require.NoError(t, err)
	return Input{Task: task, Model: best, Predictions: pred, Labels: e.Labels(), FeatureNames: e.FeatureNames()}
}

func names(ps []Plot) []string {
	var out []string
	for _, p := range ps {
		out = append(out, p.Name)
	}
	return out
}

func TestGenerateClassification(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "plots")
	in := experimentInput(t, automl.Classification, testutil.ClassificationCSV(60), "label", "lr")

	got, err := Generate(fsutil.OSFileSystem{}, dir, in)
	require.NoError(t, err)
	assert.Equal(t, ClassificationPlots, names(got))
	for _, p := range got {
		info, err := os.Stat(p.Path)
		require.NoError(t, err, p.Name)
		assert.Greater(t, info.Size(), int64(0), p.Name)
		assert.Equal(t, ".png", filepath.Ext(p.Path))
	}
}

func TestGenerateSkipsUnsupportedFeaturePlot(t *testing.T) {
	in := experimentInput(t, automl.Classification, testutil.ClassificationCSV(60), "label", "knn")

	fs := fsutil.NewMemoryFileSystem()
	got, err := Generate(fs, "/out/plots", in)
	require.NoError(t, err)
	assert.NotContains(t, names(got), "feature")
	assert.Contains(t, names(got), "auc")
	assert.Len(t, fs.Files("/out/plots"), len(got))
}

func TestGenerateRegression(t *testing.T) {
	in := experimentInput(t, automl.Regression, testutil.RegressionCSV(40), "y", "dt")

	got, err := Generate(fsutil.NewMemoryFileSystem(), "/out", in)
	require.NoError(t, err)
	assert.Equal(t, RegressionPlots, names(got))
}

func TestGenerateRequiresPredictions(t *testing.T) {
	_, err := Generate(fsutil.NewMemoryFileSystem(), "/out", Input{})
	assert.Error(t, err)
}

func TestConfusionGridOrientation(t *testing.T) {
	g := confusionGrid{[][]float64{{5, 1}, {2, 7}}}
	c, r := g.Dims()
	assert.Equal(t, 2, c)
	assert.Equal(t, 2, r)
	// Row 0 of the matrix is drawn at the top.
	assert.Equal(t, 5.0, g.Z(0, 1))
	assert.Equal(t, 7.0, g.Z(1, 0))
}

func TestGenerateColors(t *testing.T) {
	assert.Nil(t, generateColors(0))
	cs := generateColors(4)
	require.Len(t, cs, 4)
	assert.NotEqual(t, cs[0], cs[2])
}

func TestBarChartPNG(t *testing.T) {
	png, err := BarChartPNG("Importance", "score", []string{"a", "b"}, []float64{0.4, 0.1})
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	_, err = BarChartPNG("x", "y", []string{"a"}, nil)
	assert.Error(t, err)
}

func TestLineChartPNG(t *testing.T) {
	xs := []float64{1, 2, 3}
	png, err := LineChartPNG("Trees", "estimator", "count", xs,
		[]string{"depth", "leaves"}, [][]float64{{3, 4, 3}, {6, 9, 7}})
	require.NoError(t, err)
	assert.Equal(t, "\x89PNG", string(png[:4]))

	_, err = LineChartPNG("x", "y", "z", xs, []string{"a"}, [][]float64{{1, 2}})
	assert.Error(t, err)
	_, err = LineChartPNG("x", "y", "z", nil, nil, nil)
	assert.Error(t, err)
}
