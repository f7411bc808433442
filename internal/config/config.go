package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/wastelens/internal/confidence"
	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/MeKo-Tech/wastelens/internal/onnx"
	"github.com/MeKo-Tech/wastelens/internal/overlay"
	"github.com/MeKo-Tech/wastelens/internal/pipeline"
	"github.com/MeKo-Tech/wastelens/internal/preprocess"
	"github.com/MeKo-Tech/wastelens/internal/saliency"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

const autoValue = "auto"

// DefaultConfig returns a configuration with sensible default values.
func DefaultConfig() Config {
	return Config{
		LogLevel: "info",
		Verbose:  false,
		Preprocess: PreprocessConfig{
			Width:  preprocess.DefaultWidth,
			Height: preprocess.DefaultHeight,
			Filter: "bicubic",
		},
		Classifier: ClassifierConfig{
			DeadbandLow:      confidence.DefaultLow,
			DeadbandHigh:     confidence.DefaultHigh,
			Serialize:        true,
			NumThreads:       0,
			WarmupIterations: 0,
		},
		Saliency: SaliencyConfig{
			Enabled:       true,
			TargetLayer:   model.LastConv,
			OverlayAlpha:  overlay.DefaultAlpha,
			Interpolation: string(saliency.Bilinear),
		},
		Output: OutputConfig{
			Format: pipeline.FormatText,
		},
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8080,
			CORSOrigin:      "*",
			MaxUploadMB:     20,
			MaxPixels:       40_000_000,
			TimeoutSec:      30,
			ShutdownTimeout: 10,
			OverlayEnabled:  true,
			Language:        "",
		},
		Batch: BatchConfig{
			Workers:         4,
			ContinueOnError: true,
			Recursive:       false,
		},
		GPU: GPUConfig{
			Enabled:     false,
			Device:      0,
			MemoryLimit: autoValue,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if c.Output.Format != "" {
		if _, err := pipeline.ParseFormat(c.Output.Format); err != nil {
			return err
		}
	}

	if c.Preprocess.Width <= 0 || c.Preprocess.Height <= 0 {
		return fmt.Errorf("invalid preprocess size: %dx%d (must be positive)", c.Preprocess.Width, c.Preprocess.Height)
	}
	if _, err := preprocess.ResampleFilter(c.Preprocess.Filter); err != nil {
		return fmt.Errorf("invalid preprocess filter: %w", err)
	}

	if err := validateThreshold(c.Classifier.DeadbandLow, "classifier.deadband_low"); err != nil {
		return err
	}
	if err := validateThreshold(c.Classifier.DeadbandHigh, "classifier.deadband_high"); err != nil {
		return err
	}
	if err := c.thresholds().Validate(); err != nil {
		return err
	}
	if c.Classifier.NumThreads < 0 {
		return fmt.Errorf("invalid classifier threads: %d (must not be negative)", c.Classifier.NumThreads)
	}
	if c.Classifier.WarmupIterations < 0 {
		return fmt.Errorf("invalid warmup iterations: %d (must not be negative)", c.Classifier.WarmupIterations)
	}

	if err := overlay.ValidateAlpha(c.Saliency.OverlayAlpha); err != nil {
		return fmt.Errorf("invalid saliency.overlay_alpha: %w", err)
	}
	if _, err := saliency.ParseInterpolation(c.Saliency.Interpolation); err != nil {
		return fmt.Errorf("invalid saliency.interpolation: %w", err)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d (must be between 1 and 65535)", c.Server.Port)
	}
	if c.Server.MaxUploadMB <= 0 {
		return fmt.Errorf("invalid max upload size: %d (must be positive)", c.Server.MaxUploadMB)
	}
	if c.Server.MaxPixels < 0 {
		return fmt.Errorf("invalid max pixels: %d (must not be negative)", c.Server.MaxPixels)
	}
	if c.Server.TimeoutSec <= 0 {
		return fmt.Errorf("invalid timeout: %d (must be positive)", c.Server.TimeoutSec)
	}
	if c.Server.Language != "" {
		if _, err := language.Parse(c.Server.Language); err != nil {
			return fmt.Errorf("invalid server language %q: %w", c.Server.Language, err)
		}
	}
	if c.Batch.Workers <= 0 {
		return fmt.Errorf("invalid batch workers: %d (must be positive)", c.Batch.Workers)
	}

	if c.GPU.Device < 0 {
		return fmt.Errorf("invalid GPU device: %d (must not be negative)", c.GPU.Device)
	}
	if _, err := onnx.ParseMemoryLimit(c.GPU.MemoryLimit); err != nil {
		return fmt.Errorf("invalid GPU memory limit: %w", err)
	}

	return nil
}

func (c *Config) thresholds() confidence.Thresholds {
	return confidence.Thresholds{Low: c.Classifier.DeadbandLow, High: c.Classifier.DeadbandHigh}
}

// ToPipelineConfig converts the config to the internal pipeline configuration format.
func (c *Config) ToPipelineConfig() (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if c.ModelPath != "" {
		cfg.Model.ModelPath = c.ModelPath
	}
	cfg.Model.NumThreads = c.Classifier.NumThreads
	cfg.Model.Serialize = c.Classifier.Serialize

	gpu, err := c.toGPUConfig()
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg.Model.GPU = gpu

	cfg.Preprocess = preprocess.Config{
		Width:  c.Preprocess.Width,
		Height: c.Preprocess.Height,
		Filter: c.Preprocess.Filter,
	}
	cfg.Thresholds = c.thresholds()
	cfg.Explain = c.Saliency.Enabled
	if c.Saliency.TargetLayer != "" {
		cfg.TargetLayer = c.Saliency.TargetLayer
	}

	interp, err := saliency.ParseInterpolation(c.Saliency.Interpolation)
	if err != nil {
		return pipeline.Config{}, err
	}
	cfg.Overlay = overlay.Options{Alpha: c.Saliency.OverlayAlpha, Interpolation: interp}
	cfg.WarmupIterations = c.Classifier.WarmupIterations
	return cfg, nil
}

// toGPUConfig converts to onnx.GPUConfig.
func (c *Config) toGPUConfig() (onnx.GPUConfig, error) {
	cfg := onnx.DefaultGPUConfig()
	cfg.UseGPU = c.GPU.Enabled
	cfg.DeviceID = c.GPU.Device
	limit, err := onnx.ParseMemoryLimit(c.GPU.MemoryLimit)
	if err != nil {
		return cfg, fmt.Errorf("invalid GPU memory limit: %w", err)
	}
	cfg.GPUMemLimit = limit
	return cfg, nil
}

// ToYAML renders the configuration in config-file form.
func (c *Config) ToYAML() ([]byte, error) {
	out, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}
