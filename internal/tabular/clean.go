package tabular

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/learner/internal/errs"
	"github.com/banshee-data/learner/internal/monitoring"
)

// Imputation strategies.
const (
	StrategyMean   = "mean"
	StrategyMedian = "median"
	StrategyDrop   = "drop"
)

// ResolveTarget maps a 1-based ordinal over the cleaned column order to the
// target name and the remaining feature names.
func ResolveTarget(d *Dataset, ordinal int) (string, []string, error) {
	names := d.Names()
	if ordinal < 1 || ordinal > len(names) {
		return "", nil, errs.Configf("target_col", "ordinal %d out of range for %d columns", ordinal, len(names))
	}
	idx := ordinal - 1
	features := make([]string, 0, len(names)-1)
	for i, n := range names {
		if i != idx {
			features = append(features, n)
		}
	}
	return names[idx], features, nil
}

// Impute fills or drops missing values in place. Mean and median only touch
// numeric columns; text gaps are left for the engine's own encoding. Drop
// removes every row with any missing cell.
func Impute(d *Dataset, strategy string) error {
	switch strategy {
	case StrategyMean, StrategyMedian:
		for _, c := range d.Columns {
			if !c.Numeric {
				continue
			}
			present := nonMissing(c.Values)
			if len(present) == 0 || len(present) == len(c.Values) {
				continue
			}
			fill := stat.Mean(present, nil)
			if strategy == StrategyMedian {
				fill = Median(present)
			}
			for i, v := range c.Values {
				if math.IsNaN(v) {
					c.Values[i] = fill
				}
			}
		}
	case StrategyDrop:
		var keep []int
		for i := 0; i < d.Rows(); i++ {
			complete := true
			for _, c := range d.Columns {
				if c.IsMissing(i) {
					complete = false
					break
				}
			}
			if complete {
				keep = append(keep, i)
			}
		}
		if dropped := d.Rows() - len(keep); dropped > 0 {
			monitoring.Logf("dropped %d rows with missing values", dropped)
			*d = *d.Take(keep)
		}
	default:
		return errs.Configf("missing_value_strategy", "unknown strategy %q", strategy)
	}
	return nil
}

func nonMissing(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) {
			out = append(out, v)
		}
	}
	return out
}

// Median averages the two central values for even-length input.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	s := append([]float64(nil), values...)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

// AlignTest restricts a held-out dataset to the training numeric columns
// plus the target, coercing those columns to numbers. Cells that fail to
// parse become NaN.
func AlignTest(test *Dataset, numeric []string, target string) (*Dataset, error) {
	names := append([]string(nil), numeric...)
	hasTarget := false
	for _, n := range names {
		if n == target {
			hasTarget = true
		}
	}
	if !hasTarget {
		names = append(names, target)
	}

	out := &Dataset{}
	for _, n := range names {
		c := test.Column(n)
		if c == nil {
			return nil, fmt.Errorf("test data is missing column %q", n)
		}
		if n != target || c.Numeric {
			c = ForceNumeric(c)
		}
		out.Columns = append(out.Columns, c)
	}
	return out, nil
}

// Loaded is the outcome of the load stage.
type Loaded struct {
	Data     *Dataset
	Test     *Dataset // nil without a test file
	Target   string
	Features []string
}

// Load reads the training file (and optional test file), resolves the target
// before imputation and applies the missing-value strategy.
func Load(inputFile, testFile string, targetOrdinal int, strategy string) (*Loaded, error) {
	monitoring.Logf("loading data from %s", inputFile)
	data, err := ReadFile(inputFile)
	if err != nil {
		return nil, err
	}
	numeric := data.NumericNames()

	target, features, err := ResolveTarget(data, targetOrdinal)
	if err != nil {
		return nil, err
	}
	if err := Impute(data, strategy); err != nil {
		return nil, err
	}
	if data.Rows() == 0 {
		return nil, fmt.Errorf("%s: no rows left after cleaning", inputFile)
	}

	out := &Loaded{Data: data, Target: target, Features: features}
	if testFile != "" {
		monitoring.Logf("loading test data from %s", testFile)
		raw, err := ReadFile(testFile)
		if err != nil {
			return nil, err
		}
		if out.Test, err = AlignTest(raw, numeric, target); err != nil {
			return nil, err
		}
	}
	return out, nil
}
