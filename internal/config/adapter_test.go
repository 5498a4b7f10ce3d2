package config

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/learner/internal/errs"
)

func TestAdapterConfigPlan(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		h, w     int
		want     Plan
	}{
		{"native", 3, 224, 224, Plan{}},
		{"single channel", 1, 224, 224, Plan{ChannelAdapter: true}},
		{"small image", 3, 64, 64, Plan{SizeAdapter: true}},
		{"both", 4, 32, 48, Plan{ChannelAdapter: true, SizeAdapter: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultAdapterConfig()
			cfg.NumChannels = tt.channels
			cfg.InputSize = InputSize{Height: tt.h, Width: tt.w}
			assert.Equal(t, tt.want, cfg.Plan())
		})
	}
}

func TestAdapterConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultAdapterConfig().Validate())

	cfg := DefaultAdapterConfig()
	cfg.ModelName = "resnet50"
	var cfgErr *errs.ConfigurationError
	assert.True(t, errors.As(cfg.Validate(), &cfgErr))
	assert.Equal(t, "model_name", cfgErr.Setting)

	cfg = DefaultAdapterConfig()
	cfg.OutputSize = 0
	assert.Error(t, cfg.Validate())
}

func TestSupportedModels(t *testing.T) {
	for _, m := range []string{"caformer_s18", "caformer_s36", "caformer_m36", "caformer_b36"} {
		assert.True(t, IsSupportedModel(m), m)
	}
	assert.False(t, IsSupportedModel("caformer_xl"))
}
