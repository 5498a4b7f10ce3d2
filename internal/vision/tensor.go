// Package vision adapts a pretrained image backbone to arbitrary input
// geometry and exposes it as a fixed-width feature encoder.
package vision

import "fmt"

// Tensor is a dense NCHW batch of images.
type Tensor struct {
	N, C, H, W int
	Data       []float64
}

// NewTensor allocates a zero tensor.
func NewTensor(n, c, h, w int) *Tensor {
	return &Tensor{N: n, C: c, H: h, W: w, Data: make([]float64, n*c*h*w)}
}

// Shape returns [N, C, H, W].
func (t *Tensor) Shape() []int { return []int{t.N, t.C, t.H, t.W} }

func (t *Tensor) index(n, c, h, w int) int {
	return ((n*t.C+c)*t.H+h)*t.W + w
}

// At returns one element.
func (t *Tensor) At(n, c, h, w int) float64 { return t.Data[t.index(n, c, h, w)] }

// Set assigns one element.
func (t *Tensor) Set(n, c, h, w int, v float64) { t.Data[t.index(n, c, h, w)] = v }

// plane returns the HW slice for sample n, channel c.
func (t *Tensor) plane(n, c int) []float64 {
	hw := t.H * t.W
	off := (n*t.C + c) * hw
	return t.Data[off : off+hw]
}

func (t *Tensor) validate() error {
	if t == nil {
		return fmt.Errorf("nil tensor")
	}
	if t.N <= 0 || t.C <= 0 || t.H <= 0 || t.W <= 0 {
		return fmt.Errorf("invalid tensor shape %v", t.Shape())
	}
	if len(t.Data) != t.N*t.C*t.H*t.W {
		return fmt.Errorf("tensor data length %d does not match shape %v", len(t.Data), t.Shape())
	}
	return nil
}
