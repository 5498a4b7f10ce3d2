package tabular

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/learner/internal/errs"
	"github.com/banshee-data/learner/internal/testutil"
)

func TestSniffSeparator(t *testing.T) {
	tests := []struct {
		name  string
		lines []string
		want  rune
	}{
		{"comma", []string{"a,b,c", "1,2,3"}, ','},
		{"tab", []string{"a\tb", "1\t2"}, '\t'},
		{"semicolon with decimal commas", []string{"a;b", "1,5;2,5", "3,0;4,1"}, ';'},
		{"pipe", []string{"a|b|c", "1|2|3", ""}, '|'},
		{"quoted comma ignored", []string{`name;desc`, `x;"a, b"`}, ';'},
		{"single column", []string{"a", "1"}, ','},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, string(tt.want), string(SniffSeparator(tt.lines)))
		})
	}
}

func TestReadReplacesDotsInNames(t *testing.T) {
	ds, err := Read(strings.NewReader("a.b,target\n1,2\n"))
	require.NoError(t, err)

	if diff := cmp.Diff([]string{"a_b", "target"}, ds.Names()); diff != "" {
		t.Errorf("names mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []float64{1}, ds.Column("a_b").Values)
}

func TestReadDropsPredictionLabel(t *testing.T) {
	ds, err := Read(strings.NewReader("x,prediction_label,y\n1,0,2\n"))
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, ds.Names())
}

func TestReadCoercesTypes(t *testing.T) {
	ds, err := Read(strings.NewReader("num;txt;gap\n1.5;a;\n2;b;NA\n-3e2;c;4\n"))
	require.NoError(t, err)

	assert.True(t, ds.Column("num").Numeric)
	assert.False(t, ds.Column("txt").Numeric)
	gap := ds.Column("gap")
	require.True(t, gap.Numeric)
	assert.True(t, math.IsNaN(gap.Values[0]))
	assert.True(t, math.IsNaN(gap.Values[1]))
	assert.Equal(t, 4.0, gap.Values[2])
	assert.Equal(t, []string{"txt"}, ds.TextNames())
}

func TestResolveTarget(t *testing.T) {
	ds, err := Read(strings.NewReader("x1,x2,x3\n1,2,3\n"))
	require.NoError(t, err)

	target, features, err := ResolveTarget(ds, 2)
	require.NoError(t, err)
	assert.Equal(t, "x2", target)
	assert.Equal(t, []string{"x1", "x3"}, features)

	_, _, err = ResolveTarget(ds, 4)
	var cfgErr *errs.ConfigurationError
	assert.True(t, errors.As(err, &cfgErr))
}

func TestResolveTargetCountsAfterCleaning(t *testing.T) {
	ds, err := Read(strings.NewReader("prediction_label,a.1,b\n0,1,2\n"))
	require.NoError(t, err)

	target, _, err := ResolveTarget(ds, 1)
	require.NoError(t, err)
	assert.Equal(t, "a_1", target)
}

func TestLoadWithTestFile(t *testing.T) {
	dir := t.TempDir()
	train := testutil.WriteFile(t, dir, "train.csv", "f.1,f2,note,label\n1,2,a,yes\n3,,b,no\n5,6,c,yes\n")
	test := testutil.WriteFile(t, dir, "test.tsv", "f.1\tf2\tnote\tlabel\n7\tbad\tz\tno\n")

	loaded, err := Load(train, test, 4, StrategyMedian)
	require.NoError(t, err)

	assert.Equal(t, "label", loaded.Target)
	assert.Equal(t, []string{"f_1", "f2", "note"}, loaded.Features)
	assert.Equal(t, []float64{2, 4, 6}, loaded.Data.Column("f2").Values)

	require.NotNil(t, loaded.Test)
	assert.Equal(t, []string{"f_1", "f2", "label"}, loaded.Test.Names())
	assert.True(t, math.IsNaN(loaded.Test.Column("f2").Values[0]))
	assert.Equal(t, []string{"no"}, loaded.Test.Column("label").Text)
}

func TestLoadMissingTestColumn(t *testing.T) {
	dir := t.TempDir()
	train := testutil.WriteFile(t, dir, "train.csv", "a,b\n1,2\n")
	test := testutil.WriteFile(t, dir, "test.csv", "a\n1\n")

	_, err := Load(train, test, 2, StrategyMedian)
	assert.Error(t, err)
}
