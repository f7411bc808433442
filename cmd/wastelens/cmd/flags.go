package cmd

import (
	"fmt"

	"github.com/MeKo-Tech/wastelens/internal/config"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/spf13/cobra"
)

// addClassifierFlags registers the decision and saliency flags shared by
// classify, batch and serve.
func addClassifierFlags(c *cobra.Command) {
	c.Flags().Float64("low", 0.40, "lower bound of the uncertainty band (inclusive)")
	c.Flags().Float64("high", 0.60, "upper bound of the uncertainty band (inclusive)")
	c.Flags().Bool("no-explain", false, "skip Grad-CAM saliency computation")
	c.Flags().String("layer", "last_conv", "Grad-CAM target layer (see 'wastelens info')")
	c.Flags().Float64("alpha", 0.4, "heatmap opacity in the overlay (0..1)")
	c.Flags().String("interpolation", "bilinear", "saliency upsampling: nearest, bilinear, catmullrom")
	c.Flags().Int("threads", 0, "ONNX Runtime intra-op threads (0 = runtime default)")
	c.Flags().Bool("gpu", false, "enable CUDA execution provider")
}

// applyClassifierFlags overrides configuration values with explicitly set flags.
func applyClassifierFlags(c *cobra.Command, cfg *config.Config) {
	if c.Flags().Changed("low") {
		cfg.Classifier.DeadbandLow, _ = c.Flags().GetFloat64("low")
	}
	if c.Flags().Changed("high") {
		cfg.Classifier.DeadbandHigh, _ = c.Flags().GetFloat64("high")
	}
	if c.Flags().Changed("no-explain") {
		noExplain, _ := c.Flags().GetBool("no-explain")
		cfg.Saliency.Enabled = !noExplain
	}
	if c.Flags().Changed("layer") {
		cfg.Saliency.TargetLayer, _ = c.Flags().GetString("layer")
	}
	if c.Flags().Changed("alpha") {
		cfg.Saliency.OverlayAlpha, _ = c.Flags().GetFloat64("alpha")
	}
	if c.Flags().Changed("interpolation") {
		cfg.Saliency.Interpolation, _ = c.Flags().GetString("interpolation")
	}
	if c.Flags().Changed("threads") {
		cfg.Classifier.NumThreads, _ = c.Flags().GetInt("threads")
	}
	if c.Flags().Changed("gpu") {
		cfg.GPU.Enabled, _ = c.Flags().GetBool("gpu")
	}
}

// pipelineConfig validates cfg after flag overrides and converts it.
func pipelineConfig(c *cobra.Command, cfg *config.Config) (pipeline.Config, error) {
	applyClassifierFlags(c, cfg)
	if err := cfg.Validate(); err != nil {
		return pipeline.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg.ToPipelineConfig()
}

// stringFlag returns the flag value when set, otherwise fallback.
func stringFlag(c *cobra.Command, name, fallback string) string {
	if c.Flags().Changed(name) {
		v, _ := c.Flags().GetString(name)
		return v
	}
	return fallback
}
