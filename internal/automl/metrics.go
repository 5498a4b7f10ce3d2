package automl

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Leaderboard column names.
const (
	ColModel    = "Model"
	ColAccuracy = "Accuracy"
	ColAUC      = "AUC"
	ColRecall   = "Recall"
	ColPrec     = "Prec."
	ColF1       = "F1"
	ColKappa    = "Kappa"
	ColMCC      = "MCC"
	ColMAE      = "MAE"
	ColMSE      = "MSE"
	ColRMSE     = "RMSE"
	ColR2       = "R2"
	ColRMSLE    = "RMSLE"
	ColMAPE     = "MAPE"
	ColTT       = "TT (Sec)"
)

var (
	classificationMetrics = []string{ColAccuracy, ColAUC, ColRecall, ColPrec, ColF1, ColKappa, ColMCC}
	regressionMetrics     = []string{ColMAE, ColMSE, ColRMSE, ColR2, ColRMSLE, ColMAPE}
)

// ScoreFunc scores class probabilities against true class indices.
type ScoreFunc func(yTrue []float64, proba *mat.Dense) float64

// Metric is a user-registered classification metric computed on predicted
// probabilities.
type Metric struct {
	ID    string
	Name  string
	Score ScoreFunc
}

// ROCAUC returns the area under the ROC curve for binary labels and scores.
// It is 0 when only one class is present.
func ROCAUC(positive []bool, scores []float64) float64 {
	fpr, tpr := ROCCurve(positive, scores)
	if fpr == nil {
		return 0
	}
	return integrate.Trapezoidal(fpr, tpr)
}

// ROCCurve returns false and true positive rates with fpr ascending. Both
// are nil when only one class is present.
func ROCCurve(positive []bool, scores []float64) (fpr, tpr []float64) {
	y := append([]float64(nil), scores...)
	cls := append([]bool(nil), positive...)
	var nPos int
	for _, p := range cls {
		if p {
			nPos++
		}
	}
	if nPos == 0 || nPos == len(cls) {
		return nil, nil
	}
	stat.SortWeightedLabeled(y, cls, nil)
	tpr, fpr, _ = stat.ROC(nil, y, cls, nil)
	return fpr, tpr
}

// PRCurve returns recall and precision at each distinct score threshold,
// highest threshold first. Both are nil without positives.
func PRCurve(positive []bool, scores []float64) (recall, precision []float64) {
	idx := allRows(len(scores))
	sort.SliceStable(idx, func(a, b int) bool { return scores[idx[a]] > scores[idx[b]] })
	var total float64
	for _, p := range positive {
		if p {
			total++
		}
	}
	if total == 0 {
		return nil, nil
	}
	var tp, fp float64
	for i := 0; i < len(idx); {
		j := i
		for j < len(idx) && scores[idx[j]] == scores[idx[i]] {
			if positive[idx[j]] {
				tp++
			} else {
				fp++
			}
			j++
		}
		recall = append(recall, tp/total)
		precision = append(precision, tp/(tp+fp))
		i = j
	}
	return recall, precision
}

// AveragePrecision summarises the precision-recall curve as the
// recall-weighted mean of precision at each distinct score threshold.
func AveragePrecision(positive []bool, scores []float64) float64 {
	recall, precision := PRCurve(positive, scores)
	var ap, prev float64
	for i := range recall {
		ap += (recall[i] - prev) * precision[i]
		prev = recall[i]
	}
	return ap
}

// ClassMask reports which rows of y hold class k.
func ClassMask(y []float64, k int) []bool { return isClass(y, k) }

// AveragePrecisionWeighted is average precision on the positive class for
// binary problems and the support-weighted one-vs-rest average otherwise.
func AveragePrecisionWeighted(yTrue []float64, proba *mat.Dense) float64 {
	return oneVsRest(yTrue, proba, AveragePrecision)
}

func oneVsRest(yTrue []float64, proba *mat.Dense, score func([]bool, []float64) float64) float64 {
	_, K := proba.Dims()
	if K == 2 {
		return score(isClass(yTrue, 1), mat.Col(nil, 1, proba))
	}
	var sum, weight float64
	for k := 0; k < K; k++ {
		pos := isClass(yTrue, k)
		var support float64
		for _, p := range pos {
			if p {
				support++
			}
		}
		if support == 0 {
			continue
		}
		sum += support * score(pos, mat.Col(nil, k, proba))
		weight += support
	}
	if weight == 0 {
		return 0
	}
	return sum / weight
}

func isClass(y []float64, k int) []bool {
	out := make([]bool, len(y))
	for i, v := range y {
		out[i] = int(v) == k
	}
	return out
}

func confusion(yTrue, yPred []float64, K int) [][]float64 {
	m := make([][]float64, K)
	for i := range m {
		m[i] = make([]float64, K)
	}
	for i := range yTrue {
		m[int(yTrue[i])][int(yPred[i])]++
	}
	return m
}

// ConfusionMatrix counts predictions: rows are true classes, columns predicted.
func ConfusionMatrix(yTrue, yPred []float64, K int) [][]float64 {
	return confusion(yTrue, yPred, K)
}

func safeDiv(a, b float64) float64 {
	if b == 0 {
		return 0
	}
	return a / b
}

// ClassificationScores computes the standard leaderboard metrics. Binary
// problems score the second class as positive; multiclass problems use
// support-weighted averages.
func ClassificationScores(yTrue, yPred []float64, proba *mat.Dense) map[string]float64 {
	_, K := proba.Dims()
	cm := confusion(yTrue, yPred, K)
	n := float64(len(yTrue))

	var correct float64
	rowSum := make([]float64, K)
	colSum := make([]float64, K)
	for i := 0; i < K; i++ {
		correct += cm[i][i]
		for j := 0; j < K; j++ {
			rowSum[i] += cm[i][j]
			colSum[j] += cm[i][j]
		}
	}

	prf := func(k int) (p, r, f float64) {
		p = safeDiv(cm[k][k], colSum[k])
		r = safeDiv(cm[k][k], rowSum[k])
		f = safeDiv(2*p*r, p+r)
		return
	}
	var prec, rec, f1 float64
	if K == 2 {
		prec, rec, f1 = prf(1)
	} else {
		for k := 0; k < K; k++ {
			p, r, f := prf(k)
			w := rowSum[k] / n
			prec += w * p
			rec += w * r
			f1 += w * f
		}
	}

	// Cohen's kappa and multiclass MCC from the confusion matrix.
	po := correct / n
	var pe, sumPT, sumP2, sumT2 float64
	for k := 0; k < K; k++ {
		pe += rowSum[k] * colSum[k] / (n * n)
		sumPT += rowSum[k] * colSum[k]
		sumP2 += colSum[k] * colSum[k]
		sumT2 += rowSum[k] * rowSum[k]
	}
	kappa := safeDiv(po-pe, 1-pe)
	mcc := safeDiv(correct*n-sumPT, math.Sqrt((n*n-sumP2)*(n*n-sumT2)))

	return map[string]float64{
		ColAccuracy: po,
		ColAUC:      oneVsRest(yTrue, proba, ROCAUC),
		ColRecall:   rec,
		ColPrec:     prec,
		ColF1:       f1,
		ColKappa:    kappa,
		ColMCC:      mcc,
	}
}

// RegressionScores computes the standard regression leaderboard metrics.
// RMSLE clips negative values to zero; MAPE skips zero targets.
func RegressionScores(yTrue, yPred []float64) map[string]float64 {
	n := float64(len(yTrue))
	var abs, sq, sqLog, ape float64
	var apeN int
	for i, t := range yTrue {
		d := t - yPred[i]
		abs += math.Abs(d)
		sq += d * d
		l := math.Log1p(math.Max(t, 0)) - math.Log1p(math.Max(yPred[i], 0))
		sqLog += l * l
		if t != 0 {
			ape += math.Abs(d / t)
			apeN++
		}
	}
	mean := stat.Mean(yTrue, nil)
	var tot float64
	for _, t := range yTrue {
		tot += (t - mean) * (t - mean)
	}
	r2 := 0.0
	if tot > 0 {
		r2 = 1 - sq/tot
	}
	return map[string]float64{
		ColMAE:   abs / n,
		ColMSE:   sq / n,
		ColRMSE:  math.Sqrt(sq / n),
		ColR2:    r2,
		ColRMSLE: math.Sqrt(sqLog / n),
		ColMAPE:  safeDiv(ape, float64(apeN)),
	}
}
