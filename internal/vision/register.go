package vision

import (
	"github.com/banshee-data/learner/internal/capability"
	"github.com/banshee-data/learner/internal/config"
	"github.com/banshee-data/learner/internal/monitoring"
)

// RegistryKey is the name the encoder is registered under.
const RegistryKey = "caformer"

// EncoderParams are the values a host supplies when it instantiates a
// registered encoder.
type EncoderParams struct {
	Height        int
	Width         int
	NumChannels   int
	ModelName     string
	UsePretrained bool
}

// EncoderFactory builds an encoder from host parameters.
type EncoderFactory func(EncoderParams) (*Encoder, error)

// EncoderRegistry is the host framework's plugin registry.
type EncoderRegistry interface {
	Register(key string, factory EncoderFactory) error
}

// RegisterEncoder registers the caformer encoder with the host registry.
// Every failure is logged and reported as false.
func RegisterEncoder(host capability.Provider[EncoderRegistry], lib capability.Provider[BackboneLibrary]) bool {
	registry, ok := host.Get()
	if !ok {
		monitoring.Warnf("encoder registry unavailable (%s); %q encoder not registered", host.Reason(), RegistryKey)
		return false
	}
	if !lib.IsAvailable() {
		monitoring.Warnf("backbone library unavailable (%s); %q encoder not registered", lib.Reason(), RegistryKey)
		return false
	}

	factory := func(p EncoderParams) (*Encoder, error) {
		cfg := config.AdapterConfig{
			ModelName:     p.ModelName,
			InputSize:     config.InputSize{Height: p.Height, Width: p.Width},
			NumChannels:   p.NumChannels,
			OutputSize:    config.DefaultEncoderOutputSize,
			UsePretrained: p.UsePretrained,
		}
		return NewEncoder(cfg, lib)
	}
	if err := registry.Register(RegistryKey, factory); err != nil {
		monitoring.Warnf("register %q encoder: %v", RegistryKey, err)
		return false
	}
	monitoring.Logf("registered %q encoder", RegistryKey)
	return true
}
