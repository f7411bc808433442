package model

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/MeKo-Tech/wastelens/internal/onnx"
	onnxrt "github.com/yalue/onnxruntime_go"
)

// ONNXModel runs a classifier exported with Grad-CAM gradient outputs.
// The scoring session only computes the score; one explain session per
// requested layer computes activations and gradients.
type ONNXModel struct {
	cfg  Config
	meta Metadata
	io   resolved

	inH, inW, inC int

	mu      sync.RWMutex
	runMu   sync.Mutex
	score   *onnxrt.DynamicAdvancedSession
	explain map[string]*onnxrt.DynamicAdvancedSession
	closed  bool
}

var _ Classifier = (*ONNXModel)(nil)

func loadONNX(cfg Config) (*ONNXModel, error) {
	path := cfg.ModelPath
	md, err := ReadMetadata(MetadataPath(path))
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	if _, err := onnx.InitializeRuntime(cfg.GPU.UseGPU); err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	inputs, outputs, err := onnxrt.GetInputOutputInfo(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("failed to read model IO info: %w", err)}
	}
	names := ioNames{}
	for _, in := range inputs {
		names.inputs = append(names.inputs, in.Name)
	}
	for _, out := range outputs {
		names.outputs = append(names.outputs, out.Name)
	}

	r, err := md.resolve(names)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}

	m := &ONNXModel{
		cfg:     cfg,
		meta:    md,
		io:      r,
		explain: make(map[string]*onnxrt.DynamicAdvancedSession),
	}
	for _, in := range inputs {
		if in.Name == r.input {
			m.inH, m.inW, m.inC = inputDims(in.Dimensions, r.inputLayout)
		}
	}

	sess, err := m.newSession([]string{r.score})
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	m.score = sess

	slog.Debug("ONNX classifier initialized",
		"model_path", path,
		"input", r.input,
		"score_output", r.score,
		"layers", r.layers,
		"input_shape", []int{m.inH, m.inW, m.inC})
	return m, nil
}

// inputDims reads H, W, C from the model input, using 150x150x3 for dynamic dims.
func inputDims(dims onnxrt.Shape, layout onnx.Layout) (int, int, int) {
	h, w, c := 150, 150, 3
	if len(dims) != 4 {
		return h, w, c
	}
	pick := func(v int64, def int) int {
		if v > 0 {
			return int(v)
		}
		return def
	}
	if layout == onnx.LayoutNCHW {
		return pick(dims[2], h), pick(dims[3], w), pick(dims[1], c)
	}
	return pick(dims[1], h), pick(dims[2], w), pick(dims[3], c)
}

func (m *ONNXModel) newSession(outputs []string) (*onnxrt.DynamicAdvancedSession, error) {
	opts, err := onnxrt.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("failed to create session options: %w", err)
	}
	defer func() {
		if err := opts.Destroy(); err != nil {
			slog.Warn("failed to destroy session options", "error", err)
		}
	}()

	if err := onnx.ConfigureSessionForGPU(opts, m.cfg.GPU); err != nil {
		return nil, fmt.Errorf("failed to configure GPU: %w", err)
	}
	if m.cfg.NumThreads > 0 {
		if err := opts.SetIntraOpNumThreads(m.cfg.NumThreads); err != nil {
			return nil, fmt.Errorf("failed to set thread count: %w", err)
		}
	}

	sess, err := onnxrt.NewDynamicAdvancedSession(m.cfg.ModelPath, []string{m.io.input}, outputs, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}
	return sess, nil
}

// run executes sess and returns its float32 outputs. Callers must call cleanup.
func (m *ONNXModel) run(sess *onnxrt.DynamicAdvancedSession, t onnx.Tensor, n int) ([]*onnxrt.Tensor[float32], func(), error) {
	if err := checkInput(t, m.inH, m.inW, m.inC); err != nil {
		return nil, nil, err
	}
	if m.io.inputLayout == onnx.LayoutNCHW {
		var err error
		if t, err = t.ToNCHW(); err != nil {
			return nil, nil, err
		}
	}

	input, err := onnxrt.NewTensor(onnxrt.NewShape(t.Shape...), t.Data)
	if err != nil {
		return nil, nil, fmt.Errorf("tensor: %w", err)
	}
	defer func() {
		if err := input.Destroy(); err != nil {
			slog.Warn("failed to destroy input tensor", "error", err)
		}
	}()

	outputs := make([]onnxrt.Value, n)
	cleanup := func() {
		for _, o := range outputs {
			if o == nil {
				continue
			}
			if err := o.Destroy(); err != nil {
				slog.Warn("failed to destroy output tensor", "error", err)
			}
		}
	}

	if m.cfg.Serialize {
		m.runMu.Lock()
	}
	err = sess.Run([]onnxrt.Value{input}, outputs)
	if m.cfg.Serialize {
		m.runMu.Unlock()
	}
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("run: %w", err)
	}

	tensors := make([]*onnxrt.Tensor[float32], n)
	for i, o := range outputs {
		ft, ok := o.(*onnxrt.Tensor[float32])
		if !ok {
			cleanup()
			return nil, nil, fmt.Errorf("unexpected output type %T", o)
		}
		tensors[i] = ft
	}
	return tensors, cleanup, nil
}

// Score runs the scoring session.
func (m *ONNXModel) Score(t onnx.Tensor) (float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return 0, errors.New("model is closed")
	}

	outs, cleanup, err := m.run(m.score, t, 1)
	if err != nil {
		return 0, err
	}
	defer cleanup()

	data := outs[0].GetData()
	if len(data) != 1 {
		return 0, fmt.Errorf("score output has %d values, want 1 (shape %v)", len(data), outs[0].GetShape())
	}
	return float64(data[0]), nil
}

// ActivationsAndGradients runs the explain session for layer.
func (m *ONNXModel) ActivationsAndGradients(t onnx.Tensor, layer string) (FeatureMap, FeatureMap, error) {
	name, err := resolveLayer(layer, m.io.layers, m.lastConv())
	if err != nil {
		return FeatureMap{}, FeatureMap{}, err
	}
	sess, err := m.explainSession(name)
	if err != nil {
		return FeatureMap{}, FeatureMap{}, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return FeatureMap{}, FeatureMap{}, errors.New("model is closed")
	}

	outs, cleanup, err := m.run(sess, t, 2)
	if err != nil {
		return FeatureMap{}, FeatureMap{}, err
	}
	defer cleanup()

	act, err := featureMapFromShape(outs[0].GetData(), outs[0].GetShape(), m.io.featureNCHW)
	if err != nil {
		return FeatureMap{}, FeatureMap{}, fmt.Errorf("activations of %s: %w", name, err)
	}
	grad, err := featureMapFromShape(outs[1].GetData(), outs[1].GetShape(), m.io.featureNCHW)
	if err != nil {
		return FeatureMap{}, FeatureMap{}, fmt.Errorf("gradients of %s: %w", name, err)
	}
	if !act.SameShape(grad) {
		return FeatureMap{}, FeatureMap{}, fmt.Errorf("activation and gradient shapes differ for %s", name)
	}
	return act, grad, nil
}

func (m *ONNXModel) explainSession(layer string) (*onnxrt.DynamicAdvancedSession, error) {
	m.mu.RLock()
	sess, ok := m.explain[layer]
	m.mu.RUnlock()
	if ok {
		return sess, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, errors.New("model is closed")
	}
	if sess, ok := m.explain[layer]; ok {
		return sess, nil
	}
	sess, err := m.newSession([]string{layer, layer + m.meta.gradientSuffix()})
	if err != nil {
		return nil, err
	}
	m.explain[layer] = sess
	return sess, nil
}

func (m *ONNXModel) lastConv() string {
	if len(m.io.layers) == 0 {
		return ""
	}
	return m.io.layers[len(m.io.layers)-1]
}

// Layers returns the exported convolutional layers in graph order.
func (m *ONNXModel) Layers() []string {
	return slices.Clone(m.io.layers)
}

// Info describes the model.
func (m *ONNXModel) Info() Info {
	name := m.meta.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(m.cfg.ModelPath), filepath.Ext(m.cfg.ModelPath))
	}
	return Info{
		Name:          name,
		Backend:       BackendONNX,
		Path:          m.cfg.ModelPath,
		InputHeight:   m.inH,
		InputWidth:    m.inW,
		InputChannels: m.inC,
		Layers:        m.Layers(),
		LastConv:      m.lastConv(),
	}
}

// Close releases all sessions. The ONNX Runtime environment stays initialized.
func (m *ONNXModel) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true

	var errs []error
	if m.score != nil {
		errs = append(errs, m.score.Destroy())
		m.score = nil
	}
	for name, sess := range m.explain {
		errs = append(errs, sess.Destroy())
		delete(m.explain, name)
	}
	return errors.Join(errs...)
}
