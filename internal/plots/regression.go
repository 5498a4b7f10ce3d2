package plots

import (
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"

	"github.com/banshee-data/learner/internal/automl"
)

func residualPlot(in Input) (*plot.Plot, error) {
	pred := in.Predictions
	residuals := make([]float64, len(pred.YTrue))
	floats.SubTo(residuals, pred.YTrue, pred.YPred)

	p := newPlot("Residuals for "+in.Model.TypeName(), "Predicted Value", "Residuals")
	scatter, err := plotter.NewScatter(xyPairs(pred.YPred, residuals))
	if err != nil {
		return nil, err
	}
	scatter.Color = generateColors(1)[0]
	p.Add(scatter)
	p.Legend.Add(fmt.Sprintf("test R2 = %.3f", automl.RegressionScores(pred.YTrue, pred.YPred)[automl.ColR2]), scatter)

	lo, hi := floats.Min(pred.YPred), floats.Max(pred.YPred)
	zero, err := plotter.NewLine(plotter.XYs{{X: lo, Y: 0}, {X: hi, Y: 0}})
	if err != nil {
		return nil, err
	}
	p.Add(zero)
	return p, nil
}

func errorPlot(in Input) (*plot.Plot, error) {
	pred := in.Predictions
	p := newPlot("Prediction Error for "+in.Model.TypeName(), "y", "ŷ")
	scatter, err := plotter.NewScatter(xyPairs(pred.YTrue, pred.YPred))
	if err != nil {
		return nil, err
	}
	scatter.Color = generateColors(1)[0]
	p.Add(scatter)
	p.Legend.Add(fmt.Sprintf("R2 = %.3f", automl.RegressionScores(pred.YTrue, pred.YPred)[automl.ColR2]), scatter)

	lo := min(floats.Min(pred.YTrue), floats.Min(pred.YPred))
	hi := max(floats.Max(pred.YTrue), floats.Max(pred.YPred))
	if err := addDiagonal(p, lo, hi); err != nil {
		return nil, err
	}
	p.Legend.Left = true
	return p, nil
}
