package vision

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/banshee-data/learner/internal/capability"
	"github.com/banshee-data/learner/internal/config"
	"github.com/banshee-data/learner/internal/errs"
	"github.com/banshee-data/learner/internal/monitoring"
)

// FeatureExtractor composes the optional channel and size adapters, the
// backbone and a final projection to the configured width.
type FeatureExtractor struct {
	cfg      config.AdapterConfig
	channel  *ChannelAdapter // nil when the input already has 3 channels
	size     *SizeAdapter    // nil when the input is already 224x224
	backbone Backbone
	width    int
	proj     *Linear // nil when width == OutputSize
}

type options struct {
	seed uint64
}

// Option customises extractor construction.
type Option func(*options)

// WithSeed fixes the initialisation of the learned adapter layers.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// NewFeatureExtractor validates cfg, obtains the backbone from lib and
// probes its feature width. An unsupported model name is rejected before
// the library is consulted.
func NewFeatureExtractor(cfg config.AdapterConfig, lib capability.Provider[BackboneLibrary], opts ...Option) (*FeatureExtractor, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	handle, ok := lib.Get()
	if !ok {
		return nil, &errs.DependencyUnavailable{Dependency: "backbone library", Reason: lib.Reason()}
	}

	backbone, err := handle.CreateModel(cfg.ModelName, cfg.UsePretrained)
	if err != nil {
		return nil, errs.External("create backbone "+cfg.ModelName, err)
	}

	fe := &FeatureExtractor{cfg: cfg, backbone: backbone}
	plan := cfg.Plan()
	if plan.ChannelAdapter {
		fe.channel = NewChannelAdapter(cfg.NumChannels, config.BackboneChannels, o.seed)
	}
	if plan.SizeAdapter {
		fe.size = NewSizeAdapter(config.BackboneSize, config.BackboneSize)
	}

	width, err := probeWidth(backbone)
	if err != nil {
		return nil, err
	}
	fe.width = width
	if width != cfg.OutputSize {
		fe.proj = NewLinear(width, cfg.OutputSize, o.seed+1)
	}
	monitoring.Logf("feature extractor %s: backbone width %d, channel adapter %t, size adapter %t, projection %t",
		cfg.ModelName, width, fe.channel != nil, fe.size != nil, fe.proj != nil)
	return fe, nil
}

// probeWidth reads the head descriptor when the backbone has one, otherwise
// runs a single zero batch through it.
func probeWidth(b Backbone) (int, error) {
	if h, ok := b.(fc1Head); ok {
		return h.HeadFC1InFeatures(), nil
	}
	if h, ok := b.(inHead); ok {
		return h.HeadInFeatures(), nil
	}
	out, err := b.ForwardFeatures(NewTensor(1, config.BackboneChannels, config.BackboneSize, config.BackboneSize))
	if err != nil {
		return 0, errs.External("probe backbone width", err)
	}
	_, w := out.Dims()
	return w, nil
}

// BackboneWidth is the native width reported by the backbone.
func (fe *FeatureExtractor) BackboneWidth() int { return fe.width }

// OutputSize is the configured feature width.
func (fe *FeatureExtractor) OutputSize() int { return fe.cfg.OutputSize }

// HasChannelAdapter reports whether a channel adapter was built.
func (fe *FeatureExtractor) HasChannelAdapter() bool { return fe.channel != nil }

// HasSizeAdapter reports whether a size adapter was built.
func (fe *FeatureExtractor) HasSizeAdapter() bool { return fe.size != nil }

// HasProjection reports whether a projection layer was built.
func (fe *FeatureExtractor) HasProjection() bool { return fe.proj != nil }

// Forward returns an N x OutputSize feature matrix.
func (fe *FeatureExtractor) Forward(x *Tensor) (*mat.Dense, error) {
	if err := x.validate(); err != nil {
		return nil, err
	}
	if x.C != fe.cfg.NumChannels {
		return nil, fmt.Errorf("expected %d channels, got %d", fe.cfg.NumChannels, x.C)
	}

	var err error
	if fe.channel != nil {
		if x, err = fe.channel.Forward(x); err != nil {
			return nil, err
		}
	}
	if fe.size != nil {
		if x, err = fe.size.Forward(x); err != nil {
			return nil, err
		}
	}
	features, err := fe.backbone.ForwardFeatures(x)
	if err != nil {
		return nil, errs.External("backbone forward", err)
	}
	if fe.proj == nil {
		return features, nil
	}
	return fe.proj.Forward(features)
}
