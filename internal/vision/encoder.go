package vision

import (
	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/learner/internal/capability"
	"github.com/banshee-data/learner/internal/config"
)

// Host output keys.
const (
	KeyEncoderOutput      = "encoder_output"
	KeyEncoderOutputState = "encoder_output_state"
)

// EncoderOutput carries the same feature matrix under both names a host
// framework may read.
type EncoderOutput struct {
	EncoderOutput      *mat.Dense
	EncoderOutputState *mat.Dense
}

// AsMap exposes the outputs under their host keys.
func (o EncoderOutput) AsMap() map[string]*mat.Dense {
	return map[string]*mat.Dense{
		KeyEncoderOutput:      o.EncoderOutput,
		KeyEncoderOutputState: o.EncoderOutputState,
	}
}

// Encoder adapts a FeatureExtractor to the host encoder contract.
type Encoder struct {
	fe *FeatureExtractor
}

// NewEncoder builds the underlying extractor.
func NewEncoder(cfg config.AdapterConfig, lib capability.Provider[BackboneLibrary], opts ...Option) (*Encoder, error) {
	fe, err := NewFeatureExtractor(cfg, lib, opts...)
	if err != nil {
		return nil, err
	}
	return &Encoder{fe: fe}, nil
}

// Forward runs the extractor and binds both outputs to its result.
func (e *Encoder) Forward(x *Tensor) (EncoderOutput, error) {
	features, err := e.fe.Forward(x)
	if err != nil {
		return EncoderOutput{}, err
	}
	return EncoderOutput{EncoderOutput: features, EncoderOutputState: features}, nil
}

// OutputShape is the per-sample feature shape.
func (e *Encoder) OutputShape() []int { return []int{e.fe.OutputSize()} }

// Extractor returns the wrapped extractor.
func (e *Encoder) Extractor() *FeatureExtractor { return e.fe }
