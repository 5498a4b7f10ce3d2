package config

import (
	"fmt"

	"github.com/banshee-data/learner/internal/errs"
)

// Fixed backbone input geometry.
const (
	BackboneSize     = 224
	BackboneChannels = 3
)

// DefaultEncoderOutputSize is the feature width used when the host registry
// builds an encoder without specifying one.
const DefaultEncoderOutputSize = 512

// Supported backbone variants.
var SupportedModels = []string{"caformer_s18", "caformer_s36", "caformer_m36", "caformer_b36"}

// InputSize is the spatial size of the images fed to the adapter.
type InputSize struct {
	Height int `json:"height"`
	Width  int `json:"width"`
}

// AdapterConfig describes the image feature adapter. It is a value type and
// is never mutated after construction.
type AdapterConfig struct {
	ModelName     string    `json:"model_name"`
	InputSize     InputSize `json:"input_size"`
	NumChannels   int       `json:"num_channels"`
	OutputSize    int       `json:"output_size"`
	UsePretrained bool      `json:"use_pretrained"`
}

// DefaultAdapterConfig returns the adapter defaults.
func DefaultAdapterConfig() AdapterConfig {
	return AdapterConfig{
		ModelName:     "caformer_s18",
		InputSize:     InputSize{Height: BackboneSize, Width: BackboneSize},
		NumChannels:   BackboneChannels,
		OutputSize:    DefaultEncoderOutputSize,
		UsePretrained: true,
	}
}

// Plan is the transform graph derived from an AdapterConfig.
type Plan struct {
	ChannelAdapter bool
	SizeAdapter    bool
}

// IsSupportedModel reports whether name is a known backbone variant.
func IsSupportedModel(name string) bool {
	for _, m := range SupportedModels {
		if m == name {
			return true
		}
	}
	return false
}

// Validate checks the model name and geometry.
func (c AdapterConfig) Validate() error {
	if !IsSupportedModel(c.ModelName) {
		return errs.Configf("model_name", "unsupported model %q (supported: %v)", c.ModelName, SupportedModels)
	}
	if c.InputSize.Height <= 0 || c.InputSize.Width <= 0 {
		return errs.Configf("input_size", "must be positive, got %dx%d", c.InputSize.Height, c.InputSize.Width)
	}
	if c.NumChannels <= 0 {
		return errs.Configf("num_channels", "must be positive, got %d", c.NumChannels)
	}
	if c.OutputSize <= 0 {
		return errs.Configf("output_size", "must be positive, got %d", c.OutputSize)
	}
	return nil
}

// Plan reports which adapters must be built for this configuration.
func (c AdapterConfig) Plan() Plan {
	return Plan{
		ChannelAdapter: c.NumChannels != BackboneChannels,
		SizeAdapter:    c.InputSize.Height != BackboneSize || c.InputSize.Width != BackboneSize,
	}
}

func (c AdapterConfig) String() string {
	return fmt.Sprintf("%s %dx%dx%d -> %d (pretrained=%t)",
		c.ModelName, c.InputSize.Height, c.InputSize.Width, c.NumChannels, c.OutputSize, c.UsePretrained)
}
