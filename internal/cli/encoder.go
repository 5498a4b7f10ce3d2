package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/banshee-data/learner/internal/capability"
	"github.com/banshee-data/learner/internal/config"
	"github.com/banshee-data/learner/internal/frame"
	"github.com/banshee-data/learner/internal/registry"
	"github.com/banshee-data/learner/internal/vision"
)

type encoderFlags struct {
	cfg        config.AdapterConfig
	seed       uint64
	noBackbone bool
}

func (f *encoderFlags) bind(cmd *cobra.Command) {
	d := config.DefaultAdapterConfig()
	fl := cmd.Flags()
	fl.StringVar(&f.cfg.ModelName, "model-name", d.ModelName, "backbone variant")
	fl.IntVar(&f.cfg.InputSize.Height, "height", d.InputSize.Height, "input image height")
	fl.IntVar(&f.cfg.InputSize.Width, "width", d.InputSize.Width, "input image width")
	fl.IntVar(&f.cfg.NumChannels, "channels", d.NumChannels, "input image channels")
	fl.IntVar(&f.cfg.OutputSize, "output-size", d.OutputSize, "encoder feature width")
	fl.BoolVar(&f.cfg.UsePretrained, "pretrained", d.UsePretrained, "request pretrained backbone weights")
	fl.Uint64Var(&f.seed, "seed", 0, "initialisation seed for the adapter layers")
	fl.BoolVar(&f.noBackbone, "no-backbone", false, "treat the backbone library as unavailable")
}

func (f *encoderFlags) library() capability.Provider[vision.BackboneLibrary] {
	if f.noBackbone {
		return capability.Unavailable[vision.BackboneLibrary]("disabled by --no-backbone")
	}
	return capability.Available[vision.BackboneLibrary](vision.PoolingLibrary{Seed: f.seed})
}

// NewEncoderCommand groups the image encoder commands.
func NewEncoderCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "encoder",
		Short: "Image feature encoder tools",
	}
	cmd.AddCommand(newEncoderDescribeCommand(), newEncoderRegisterCommand())
	return cmd
}

func newEncoderDescribeCommand() *cobra.Command {
	var f encoderFlags
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Build an encoder and show its adapter plan",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			enc, err := vision.NewEncoder(f.cfg, f.library(), vision.WithSeed(f.seed))
			if err != nil {
				return err
			}
			x := vision.NewTensor(1, f.cfg.NumChannels, f.cfg.InputSize.Height, f.cfg.InputSize.Width)
			out, err := enc.Forward(x)
			if err != nil {
				return err
			}
			_, width := out.EncoderOutput.Dims()
			describe(enc, width).Render(cmd.OutOrStdout(), "Encoder "+f.cfg.ModelName)
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}

func describe(enc *vision.Encoder, forwardWidth int) *frame.Table {
	fe := enc.Extractor()
	return frame.Pairs(
		[]string{"channel_adapter", "size_adapter", "backbone_width", "projection", "output_shape", "forward_width"},
		[]string{
			fmt.Sprint(fe.HasChannelAdapter()),
			fmt.Sprint(fe.HasSizeAdapter()),
			fmt.Sprint(fe.BackboneWidth()),
			fmt.Sprint(fe.HasProjection()),
			fmt.Sprint(enc.OutputShape()),
			fmt.Sprint(forwardWidth),
		},
	)
}

func newEncoderRegisterCommand() *cobra.Command {
	var f encoderFlags
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register the encoder with an in-process registry and instantiate it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			reg := registry.New[vision.EncoderFactory]()
			host := capability.Available[vision.EncoderRegistry](reg)
			out := cmd.OutOrStdout()
			if !vision.RegisterEncoder(host, f.library()) {
				fmt.Fprintln(out, "registered: false")
				return nil
			}
			fmt.Fprintf(out, "registered: true %v\n", reg.Keys())

			factory, _ := reg.Lookup(vision.RegistryKey)
			enc, err := factory(vision.EncoderParams{
				Height:        f.cfg.InputSize.Height,
				Width:         f.cfg.InputSize.Width,
				NumChannels:   f.cfg.NumChannels,
				ModelName:     f.cfg.ModelName,
				UsePretrained: f.cfg.UsePretrained,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "output shape: %v\n", enc.OutputShape())
			return nil
		},
	}
	f.bind(cmd)
	return cmd
}
