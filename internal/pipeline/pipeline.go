package pipeline

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/MeKo-Tech/wastelens/internal/confidence"
	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/MeKo-Tech/wastelens/internal/models"
	"github.com/MeKo-Tech/wastelens/internal/overlay"
	"github.com/MeKo-Tech/wastelens/internal/preprocess"
	"github.com/MeKo-Tech/wastelens/internal/saliency"
)

// Config holds configuration for the classification pipeline.
type Config struct {
	Model       model.Config
	Preprocess  preprocess.Config
	Thresholds  confidence.Thresholds
	Explain     bool
	TargetLayer string
	Overlay     overlay.Options
	// WarmupIterations > 0 runs warmup passes at build time. Warmup also
	// validates TargetLayer.
	WarmupIterations int
}

// DefaultConfig returns a default pipeline config with component defaults.
func DefaultConfig() Config {
	return Config{
		Model:       model.DefaultConfig(models.ResolveModelPath("")),
		Preprocess:  preprocess.DefaultConfig(),
		Thresholds:  confidence.DefaultThresholds(),
		Explain:     true,
		TargetLayer: model.LastConv,
		Overlay:     overlay.DefaultOptions(),
	}
}

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg Config
}

// NewBuilder creates a new pipeline builder with defaults.
func NewBuilder() *Builder { return &Builder{cfg: DefaultConfig()} }

// NewBuilderFromConfig starts from a fully populated config.
func NewBuilderFromConfig(cfg Config) *Builder { return &Builder{cfg: cfg} }

// WithModelPath overrides the model artifact path.
func (b *Builder) WithModelPath(path string) *Builder {
	if path != "" {
		b.cfg.Model.ModelPath = path
	}
	return b
}

// WithThresholds sets the inclusive uncertainty deadband.
func (b *Builder) WithThresholds(low, high float64) *Builder {
	b.cfg.Thresholds = confidence.Thresholds{Low: low, High: high}
	return b
}

// WithTargetLayer selects the Grad-CAM layer; "" keeps "last_conv".
func (b *Builder) WithTargetLayer(layer string) *Builder {
	if layer != "" {
		b.cfg.TargetLayer = layer
	}
	return b
}

// WithOverlayAlpha sets the heat map weight of the composite.
func (b *Builder) WithOverlayAlpha(alpha float64) *Builder {
	b.cfg.Overlay.Alpha = alpha
	return b
}

// WithInterpolation sets how saliency maps are upsampled.
func (b *Builder) WithInterpolation(method saliency.Interpolation) *Builder {
	if method != "" {
		b.cfg.Overlay.Interpolation = method
	}
	return b
}

// WithExplain toggles saliency generation.
func (b *Builder) WithExplain(enabled bool) *Builder {
	b.cfg.Explain = enabled
	return b
}

// WithWarmupIterations sets model warmup runs to reduce cold-start latency.
func (b *Builder) WithWarmupIterations(n int) *Builder {
	if n >= 0 {
		b.cfg.WarmupIterations = n
	}
	return b
}

// WithPreprocess overrides input normalization.
func (b *Builder) WithPreprocess(cfg preprocess.Config) *Builder {
	b.cfg.Preprocess = cfg
	return b
}

// WithThreads sets ONNX Runtime intra-op threads (if >0).
func (b *Builder) WithThreads(n int) *Builder {
	if n > 0 {
		b.cfg.Model.NumThreads = n
	}
	return b
}

// WithSerialize toggles the session run mutex of the ONNX backend.
func (b *Builder) WithSerialize(enabled bool) *Builder {
	b.cfg.Model.Serialize = enabled
	return b
}

// WithGPU enables CUDA acceleration.
func (b *Builder) WithGPU(enabled bool) *Builder {
	b.cfg.Model.GPU.UseGPU = enabled
	return b
}

// WithGPUDevice sets the CUDA device ID.
func (b *Builder) WithGPUDevice(deviceID int) *Builder {
	b.cfg.Model.GPU.DeviceID = deviceID
	return b
}

// WithGPUMemoryLimit sets the GPU memory limit in bytes.
func (b *Builder) WithGPUMemoryLimit(limitBytes uint64) *Builder {
	b.cfg.Model.GPU.GPUMemLimit = limitBytes
	return b
}

// Config returns a copy of the current config.
func (b *Builder) Config() Config { return b.cfg }

// Validate checks configuration values that do not need the model.
func (b *Builder) Validate() error {
	if b.cfg.Model.ModelPath == "" {
		return errors.New("model path is empty")
	}
	if err := b.cfg.Thresholds.Validate(); err != nil {
		return err
	}
	if b.cfg.Explain {
		if err := overlay.ValidateAlpha(b.cfg.Overlay.Alpha); err != nil {
			return err
		}
	}
	if _, err := preprocess.New(b.cfg.Preprocess); err != nil {
		return fmt.Errorf("preprocess: %w", err)
	}
	return nil
}

// Build loads the model and assembles the pipeline. The pipeline owns the
// model and releases it on Close.
func (b *Builder) Build() (*Pipeline, error) {
	shared := model.NewLazy(b.cfg.Model)
	p, err := b.BuildShared(shared)
	if err != nil {
		_ = shared.Close()
		return nil, err
	}
	p.owned = true
	return p, nil
}

// BuildShared assembles a pipeline on the process-wide model handle, loading
// the model on first use. Pipelines built from one handle share the
// classifier; the caller keeps ownership of shared.
func (b *Builder) BuildShared(shared *model.Lazy) (*Pipeline, error) {
	if shared == nil {
		return nil, errors.New("model handle is nil")
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	c, err := shared.Get()
	if err != nil {
		return nil, err
	}
	return b.BuildWithClassifier(c)
}

// BuildWithClassifier assembles the pipeline around an already loaded model.
// The caller keeps ownership of c.
func (b *Builder) BuildWithClassifier(c model.Classifier) (*Pipeline, error) {
	if c == nil {
		return nil, errors.New("classifier is nil")
	}
	cfg := b.cfg
	if cfg.TargetLayer == "" {
		cfg.TargetLayer = model.LastConv
	}
	if cfg.Overlay.Interpolation == "" {
		cfg.Overlay.Interpolation = saliency.Bilinear
	}

	info := c.Info()
	if info.InputHeight > 0 && info.InputWidth > 0 {
		cfg.Preprocess.Height = info.InputHeight
		cfg.Preprocess.Width = info.InputWidth
	}
	pre, err := preprocess.New(cfg.Preprocess)
	if err != nil {
		return nil, fmt.Errorf("preprocess: %w", err)
	}
	eval, err := confidence.NewEvaluator(cfg.Thresholds)
	if err != nil {
		return nil, err
	}
	if cfg.Explain {
		if err := overlay.ValidateAlpha(cfg.Overlay.Alpha); err != nil {
			return nil, err
		}
	}

	if cfg.WarmupIterations > 0 {
		layer := cfg.TargetLayer
		if !cfg.Explain {
			layer = ""
		}
		if err := model.Warmup(c, layer, cfg.WarmupIterations); err != nil {
			return nil, fmt.Errorf("model warmup failed: %w", err)
		}
	}

	slog.Debug("Pipeline initialized",
		"model", info.Name,
		"backend", info.Backend,
		"target_layer", cfg.TargetLayer,
		"explain", cfg.Explain,
		"deadband_low", cfg.Thresholds.Low,
		"deadband_high", cfg.Thresholds.High)

	return &Pipeline{
		cfg:        cfg,
		classifier: c,
		pre:        pre,
		eval:       eval,
		layer:      displayLayer(cfg.TargetLayer, info),
		Profiler:   &Profiler{},
	}, nil
}

func displayLayer(target string, info model.Info) string {
	if target == model.LastConv && info.LastConv != "" {
		return info.LastConv
	}
	return target
}

// Pipeline classifies waste photos and explains the decision.
type Pipeline struct {
	cfg        Config
	classifier model.Classifier
	pre        *preprocess.Preprocessor
	eval       *confidence.Evaluator
	layer      string
	owned      bool

	Profiler *Profiler
}

// Close releases the model when the pipeline owns it.
func (p *Pipeline) Close() error {
	if p == nil || p.classifier == nil {
		return nil
	}
	var err error
	if p.owned {
		err = p.classifier.Close()
	}
	p.classifier = nil
	return err
}

// Config returns the pipeline configuration.
func (p *Pipeline) Config() Config { return p.cfg }

// Classifier returns the underlying model.
func (p *Pipeline) Classifier() model.Classifier { return p.classifier }

// Thresholds returns the deadband in use.
func (p *Pipeline) Thresholds() confidence.Thresholds { return p.eval.Thresholds() }

// Info returns a map with key pipeline properties and model info.
func (p *Pipeline) Info() map[string]any {
	info := map[string]any{
		"explain":       p.cfg.Explain,
		"target_layer":  p.layer,
		"overlay_alpha": p.cfg.Overlay.Alpha,
		"interpolation": string(p.cfg.Overlay.Interpolation),
		"thresholds": map[string]any{
			"low":  p.eval.Thresholds().Low,
			"high": p.eval.Thresholds().High,
		},
		"input": map[string]any{
			"width":  p.pre.Config().Width,
			"height": p.pre.Config().Height,
			"filter": p.pre.Config().Filter,
		},
	}
	if p.classifier != nil {
		info["model"] = p.classifier.Info()
	}
	if p.Profiler != nil {
		info["stats"] = p.Profiler.Snapshot()
	}
	return info
}
