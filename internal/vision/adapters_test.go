package vision

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

func filled(n, c, h, w int, f func(i int) float64) *Tensor {
	t := NewTensor(n, c, h, w)
	for i := range t.Data {
		t.Data[i] = f(i)
	}
	return t
}

func TestChannelAdapterShape(t *testing.T) {
	for _, c := range []int{1, 2, 4, 7} {
		a := NewChannelAdapter(c, 3, 1)
		x := filled(2, c, 5, 6, func(i int) float64 { return float64(i%11) / 10 })

		y, err := a.Forward(x)
		require.NoError(t, err)
		assert.Equal(t, []int{2, 3, 5, 6}, y.Shape(), "channels=%d", c)
	}
}

func TestChannelAdapterIsPerPixelLinear(t *testing.T) {
	a := NewChannelAdapter(2, 3, 7)
	x := filled(1, 2, 1, 2, func(i int) float64 { return float64(i + 1) })

	y, err := a.Forward(x)
	require.NoError(t, err)

	w := a.Weights()
	for c := 0; c < 3; c++ {
		for p := 0; p < 2; p++ {
			want := w.At(c, 0)*x.At(0, 0, 0, p) + w.At(c, 1)*x.At(0, 1, 0, p) + a.bias[c]
			assert.InDelta(t, want, y.At(0, c, 0, p), 1e-12)
		}
	}
}

func TestChannelAdapterInitBounds(t *testing.T) {
	a := NewChannelAdapter(4, 3, 3)
	r, c := a.weight.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			assert.LessOrEqual(t, abs(a.weight.At(i, j)), 0.5)
		}
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestChannelAdapterRejectsWrongChannels(t *testing.T) {
	a := NewChannelAdapter(4, 3, 1)
	_, err := a.Forward(NewTensor(1, 2, 4, 4))
	assert.Error(t, err)
}

func TestSizeAdapterOutputSize(t *testing.T) {
	tests := []struct{ h, w int }{{32, 32}, {300, 200}, {224, 100}, {7, 500}}
	for _, tt := range tests {
		a := NewSizeAdapter(224, 224)
		y, err := a.Forward(filled(1, 3, tt.h, tt.w, func(i int) float64 { return 1 }))
		require.NoError(t, err)
		assert.Equal(t, []int{1, 3, 224, 224}, y.Shape())
		// Averaging a constant plane keeps it constant.
		assert.InDelta(t, 1.0, y.At(0, 2, 100, 100), 1e-12)
	}
}

func TestSizeAdapterAverages(t *testing.T) {
	// 4x4 -> 2x2 averages non-overlapping 2x2 blocks.
	x := filled(1, 1, 4, 4, func(i int) float64 { return float64(i) })
	y, err := NewSizeAdapter(2, 2).Forward(x)
	require.NoError(t, err)

	assert.Equal(t, []float64{2.5, 4.5, 10.5, 12.5}, y.Data)
}

func TestPoolBounds(t *testing.T) {
	s, e := poolBounds(0, 5, 3)
	assert.Equal(t, 0, s)
	assert.Equal(t, 2, e)
	s, e = poolBounds(1, 5, 3)
	assert.Equal(t, 1, s)
	assert.Equal(t, 4, e)
	s, e = poolBounds(2, 5, 3)
	assert.Equal(t, 3, s)
	assert.Equal(t, 5, e)
}

func TestLinear(t *testing.T) {
	l := NewLinear(3, 5, 2)
	x := mat.NewDense(4, 3, nil)
	y, err := l.Forward(x)
	require.NoError(t, err)
	r, c := y.Dims()
	assert.Equal(t, 4, r)
	assert.Equal(t, 5, c)
	// Zero input yields the bias.
	assert.InDelta(t, l.bias[2], y.At(3, 2), 1e-12)

	_, err = l.Forward(mat.NewDense(1, 2, nil))
	assert.Error(t, err)
}
