package vision

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// Backbone is a pretrained feature network. ForwardFeatures takes an
// N x 3 x 224 x 224 batch and returns an N x width feature matrix.
type Backbone interface {
	ForwardFeatures(x *Tensor) (*mat.Dense, error)
}

// BackboneLibrary creates backbones by model identifier.
type BackboneLibrary interface {
	CreateModel(name string, pretrained bool) (Backbone, error)
}

// Optional head descriptors. A backbone may implement either one to avoid
// the probe forward pass.
type (
	fc1Head interface{ HeadFC1InFeatures() int }
	inHead  interface{ HeadInFeatures() int }
)

// caformerWidths are the pooled feature widths of each variant.
var caformerWidths = map[string]int{
	"caformer_s18": 512,
	"caformer_s36": 512,
	"caformer_m36": 576,
	"caformer_b36": 768,
}

// PoolingLibrary is a weight-free backbone library with the caformer
// feature widths. Its backbones global-average-pool each channel and expand
// the pooled vector with a fixed random projection, which is enough to drive
// the adapter end to end when no pretrained network is wired in.
type PoolingLibrary struct {
	Seed uint64
}

// CreateModel implements BackboneLibrary.
func (l PoolingLibrary) CreateModel(name string, pretrained bool) (Backbone, error) {
	width, ok := caformerWidths[name]
	if !ok {
		return nil, fmt.Errorf("pooling library: unknown model %q", name)
	}
	return &poolingBackbone{width: width, proj: NewLinear(3, width, l.Seed)}, nil
}

type poolingBackbone struct {
	width int
	proj  *Linear
}

func (b *poolingBackbone) HeadFC1InFeatures() int { return b.width }

func (b *poolingBackbone) ForwardFeatures(x *Tensor) (*mat.Dense, error) {
	if err := x.validate(); err != nil {
		return nil, err
	}
	if x.C != 3 {
		return nil, fmt.Errorf("backbone expects 3 channels, got %d", x.C)
	}
	pooled := mat.NewDense(x.N, x.C, nil)
	for n := 0; n < x.N; n++ {
		for c := 0; c < x.C; c++ {
			var sum float64
			for _, v := range x.plane(n, c) {
				sum += v
			}
			pooled.Set(n, c, sum/float64(x.H*x.W))
		}
	}
	return b.proj.Forward(pooled)
}
