package vision

import (
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// ChannelAdapter is a learned 1x1 convolution mapping C input channels to
// the three channels the backbone expects.
type ChannelAdapter struct {
	in     int
	weight *mat.Dense // 3 x in
	bias   []float64
}

// NewChannelAdapter initialises weights and bias uniformly in ±1/sqrt(in).
func NewChannelAdapter(in, out int, seed uint64) *ChannelAdapter {
	bound := 1 / math.Sqrt(float64(in))
	u := distuv.Uniform{Min: -bound, Max: bound, Src: rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)}

	w := make([]float64, out*in)
	for i := range w {
		w[i] = u.Rand()
	}
	b := make([]float64, out)
	for i := range b {
		b[i] = u.Rand()
	}
	return &ChannelAdapter{in: in, weight: mat.NewDense(out, in, w), bias: b}
}

// Weights exposes the projection matrix for inspection.
func (a *ChannelAdapter) Weights() mat.Matrix { return a.weight }

// Forward projects every pixel's channel vector. Spatial dims are preserved.
func (a *ChannelAdapter) Forward(x *Tensor) (*Tensor, error) {
	if err := x.validate(); err != nil {
		return nil, err
	}
	if x.C != a.in {
		return nil, fmt.Errorf("channel adapter expects %d channels, got %d", a.in, x.C)
	}
	out, _ := a.weight.Dims()
	hw := x.H * x.W
	y := NewTensor(x.N, out, x.H, x.W)
	for n := 0; n < x.N; n++ {
		src := mat.NewDense(x.C, hw, x.Data[n*x.C*hw:(n+1)*x.C*hw])
		dst := mat.NewDense(out, hw, y.Data[n*out*hw:(n+1)*out*hw])
		dst.Mul(a.weight, src)
		for c := 0; c < out; c++ {
			row := y.plane(n, c)
			for i := range row {
				row[i] += a.bias[c]
			}
		}
	}
	return y, nil
}

// SizeAdapter resizes the spatial dims with adaptive average pooling. Output
// cell i averages input rows [floor(i*H/outH), ceil((i+1)*H/outH)), which
// also upsamples when the input is smaller than the output.
type SizeAdapter struct {
	outH, outW int
}

// NewSizeAdapter returns an adapter producing outH x outW planes.
func NewSizeAdapter(outH, outW int) *SizeAdapter {
	return &SizeAdapter{outH: outH, outW: outW}
}

func poolBounds(i, in, out int) (int, int) {
	start := (i * in) / out
	end := ((i+1)*in + out - 1) / out
	return start, end
}

// Forward pools every plane of x.
func (a *SizeAdapter) Forward(x *Tensor) (*Tensor, error) {
	if err := x.validate(); err != nil {
		return nil, err
	}
	y := NewTensor(x.N, x.C, a.outH, a.outW)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			src := x.plane(n, c)
			dst := y.plane(n, c)
			for i := 0; i < a.outH; i++ {
				h0, h1 := poolBounds(i, x.H, a.outH)
				for j := 0; j < a.outW; j++ {
					w0, w1 := poolBounds(j, x.W, a.outW)
					var sum float64
					for h := h0; h < h1; h++ {
						for w := w0; w < w1; w++ {
							sum += src[h*x.W+w]
						}
					}
					dst[i*a.outW+j] = sum / float64((h1-h0)*(w1-w0))
				}
			}
		}
	}
	return y, nil
}

// Linear is a dense projection y = xW + b applied row-wise.
type Linear struct {
	weight *mat.Dense // in x out
	bias   []float64
}

// NewLinear initialises a projection the same way as the channel adapter.
func NewLinear(in, out int, seed uint64) *Linear {
	bound := 1 / math.Sqrt(float64(in))
	u := distuv.Uniform{Min: -bound, Max: bound, Src: rand.NewPCG(seed, seed+1)}
	w := make([]float64, in*out)
	for i := range w {
		w[i] = u.Rand()
	}
	b := make([]float64, out)
	for i := range b {
		b[i] = u.Rand()
	}
	return &Linear{weight: mat.NewDense(in, out, w), bias: b}
}

// Forward projects an N x in feature matrix to N x out.
func (l *Linear) Forward(x *mat.Dense) (*mat.Dense, error) {
	_, c := x.Dims()
	in, out := l.weight.Dims()
	if c != in {
		return nil, fmt.Errorf("linear projection expects width %d, got %d", in, c)
	}
	var y mat.Dense
	y.Mul(x, l.weight)
	r, _ := y.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < out; j++ {
			y.Set(i, j, y.At(i, j)+l.bias[j])
		}
	}
	return &y, nil
}
