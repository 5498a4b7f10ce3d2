package automl

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/learner/internal/errs"
	"github.com/banshee-data/learner/internal/tabular"
	"github.com/banshee-data/learner/internal/testutil"
)

func loadCSV(t *testing.T, content string) *tabular.Dataset {
	t.Helper()
	ds, err := tabular.Read(strings.NewReader(content))
	require.NoError(t, err)
	return ds
}

func baseParams(target string) []SetupParam {
	return []SetupParam{
		{"target", target},
		{"session_id", int64(42)},
		{"html", true},
		{"log_experiment", false},
		{"system_log", false},
		{"index", false},
	}
}

func TestNewExperiment(t *testing.T) {
	e, err := NewExperiment("classification")
	require.NoError(t, err)
	assert.Equal(t, Classification, e.Task())

	e, err = NewExperiment("regression")
	require.NoError(t, err)
	assert.Equal(t, Regression, e.Task())

	_, err = NewExperiment("ranking")
	var cfgErr *errs.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestSetupRejectsUnknownParameter(t *testing.T) {
	e := NewClassificationExperiment()
	ds := loadCSV(t, testutil.ClassificationCSV(30))

	err := e.Setup(ds, append(baseParams("label"), SetupParam{"verbose", true}))
	var cfgErr *errs.ConfigurationError
	require.True(t, errors.As(err, &cfgErr))
	assert.Equal(t, "verbose", cfgErr.Setting)

	err = e.Setup(ds, append(baseParams("label"), SetupParam{"fold", "ten"}))
	assert.True(t, errors.As(err, &cfgErr))
}

func TestClassificationCompareAndPredict(t *testing.T) {
	e := NewClassificationExperiment()
	ds := loadCSV(t, testutil.ClassificationCSV(50))
	require.NoError(t, e.Setup(ds, append(baseParams("label"), SetupParam{"fold", 5})))
	require.NoError(t, e.AddMetric(Metric{ID: "PR-AUC-Weighted", Name: "PR-AUC-Weighted", Score: AveragePrecisionWeighted}))

	best, err := e.CompareModels(context.Background(), []string{"lr", "knn", "dummy"}, true)
	require.NoError(t, err)
	require.NotNil(t, best)

	board := e.Pull()
	assert.Equal(t, []string{"Model", "Accuracy", "AUC", "Recall", "Prec.", "F1", "Kappa", "MCC", "PR-AUC-Weighted", "TT (Sec)"}, board.Columns)
	assert.Equal(t, 3, board.Len())
	assert.ElementsMatch(t, []string{"lr", "knn", "dummy"}, board.Index)
	assert.NotEqual(t, "Dummy Classifier", board.Cell(0, "Model"), "dummy must not win on learnable data")

	X, y := e.Holdout()
	r, _ := X.Dims()
	assert.Len(t, y, r)
	_, yTrain := e.Train()
	assert.Equal(t, 50, r+len(yTrain))
	assert.Equal(t, []string{"0", "1"}, e.Labels())
	assert.Equal(t, []string{"f1", "f2", "f3"}, e.FeatureNames())

	pred, err := e.PredictModel(best)
	require.NoError(t, err)
	assert.Len(t, pred.YPred, r)
	require.NotNil(t, pred.Proba)

	test := e.Pull()
	assert.Equal(t, 1, test.Len())
	assert.Equal(t, "AUC", test.Columns[2])
	assert.Equal(t, board.Cell(0, "Model"), test.Cell(0, "Model"))
}

func TestCompareModelsUnknownID(t *testing.T) {
	e := NewClassificationExperiment()
	require.NoError(t, e.Setup(loadCSV(t, testutil.ClassificationCSV(30)), baseParams("label")))

	_, err := e.CompareModels(context.Background(), []string{"lr", "xgboost"}, true)
	var cfgErr *errs.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestCompareModelsHonoursCancellation(t *testing.T) {
	e := NewClassificationExperiment()
	require.NoError(t, e.Setup(loadCSV(t, testutil.ClassificationCSV(30)), baseParams("label")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := e.CompareModels(ctx, []string{"lr"}, true)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRegressionWithoutCrossValidation(t *testing.T) {
	e := NewRegressionExperiment()
	ds := loadCSV(t, testutil.RegressionCSV(40))
	require.NoError(t, e.Setup(ds, append(baseParams("y"), SetupParam{"train_size", 0.75}, SetupParam{"normalize", true})))
	assert.Error(t, e.AddMetric(Metric{ID: "x", Name: "x", Score: AveragePrecisionWeighted}))

	best, err := e.CompareModels(context.Background(), []string{"lr", "ridge", "dummy"}, false)
	require.NoError(t, err)
	assert.Equal(t, FamilyLinear, best.Family())

	board := e.Pull()
	assert.Equal(t, []string{"Model", "MAE", "MSE", "RMSE", "R2", "RMSLE", "MAPE", "TT (Sec)"}, board.Columns)
	assert.NotEqual(t, "Dummy Regressor", board.Cell(0, "Model"))
	assert.Nil(t, e.Labels())
}

func TestSetupWithTestData(t *testing.T) {
	train := loadCSV(t, testutil.ClassificationCSV(40))
	test := loadCSV(t, testutil.ClassificationCSV(12))

	e := NewClassificationExperiment()
	require.NoError(t, e.Setup(train, append(baseParams("label"), SetupParam{"test_data", test})))

	X, _ := e.Holdout()
	r, _ := X.Dims()
	assert.Equal(t, 12, r)
	xt, yt := e.Train()
	rt, _ := xt.Dims()
	assert.Equal(t, 40, rt)
	assert.Len(t, yt, 40)
}

func TestSetupPreprocessingOptions(t *testing.T) {
	ds := loadCSV(t, testutil.ClassificationCSV(60))
	e := NewClassificationExperiment()
	params := append(baseParams("label"),
		SetupParam{"polynomial_features", true},
		SetupParam{"remove_multicollinearity", true},
		SetupParam{"remove_outliers", true},
		SetupParam{"feature_selection", true},
		SetupParam{"fix_imbalance", true},
	)
	require.NoError(t, e.Setup(ds, params))

	names := e.FeatureNames()
	assert.NotEmpty(t, names)
	assert.Less(t, len(names), 9, "selection keeps a fraction of the expanded features")

	_, y := e.Train()
	var counts [2]int
	for _, v := range y {
		counts[int(v)]++
	}
	assert.Equal(t, counts[0], counts[1], "oversampling balances the classes")
}

func TestSetupTextFeatures(t *testing.T) {
	csv := "color,size,label\n"
	for i := 0; i < 30; i++ {
		color := []string{"red", "green", "blue"}[i%3]
		label := "small"
		if i%2 == 0 {
			label = "large"
		}
		csv += color + "," + []string{"1", "2", "3", "4", "5"}[i%5] + "," + label + "\n"
	}
	e := NewClassificationExperiment()
	require.NoError(t, e.Setup(loadCSV(t, csv), baseParams("label")))

	assert.Equal(t, []string{"color_blue", "color_green", "color_red", "size"}, e.FeatureNames())
	assert.Equal(t, []string{"large", "small"}, e.Labels())
}

func TestSetupRegressionNeedsNumericTarget(t *testing.T) {
	e := NewRegressionExperiment()
	err := e.Setup(loadCSV(t, "x,y\n1,a\n2,b\n3,c\n"), baseParams("y"))
	var cfgErr *errs.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestBundleRoundTrip(t *testing.T) {
	ds := loadCSV(t, testutil.ClassificationCSV(40))
	e := NewClassificationExperiment()
	require.NoError(t, e.Setup(ds, append(baseParams("label"), SetupParam{"normalize", true})))
	best, err := e.CompareModels(context.Background(), []string{"rf"}, false)
	require.NoError(t, err)

	data, err := e.Bundle(best).Encode()
	require.NoError(t, err)
	require.NotEmpty(t, data)

	restored, err := DecodeBundle(data)
	require.NoError(t, err)
	assert.Equal(t, "RandomForestClassifier", restored.Model.TypeName())
	assert.Equal(t, e.Labels(), restored.Labels)

	want, err := e.Bundle(best).Predict(ds)
	require.NoError(t, err)
	got, err := restored.Predict(ds)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
