package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/wastelens/internal/onnx"
)

// NativeFormat identifies native model artifacts.
const NativeFormat = "wastelens-native/v1"

// Native layer types, named after their Keras counterparts.
const (
	LayerConv2D        = "conv2d"
	LayerMaxPool2D     = "max_pooling2d"
	LayerGlobalAvgPool = "global_average_pooling2d"
	LayerFlatten       = "flatten"
	LayerDense         = "dense"
)

// NativeSpec is the serialized form of a native CNN classifier.
type NativeSpec struct {
	Format string      `json:"format"`
	Name   string      `json:"name,omitempty"`
	Input  InputSpec   `json:"input"`
	Layers []LayerSpec `json:"layers"`
}

// InputSpec is the expected input volume.
type InputSpec struct {
	Height   int `json:"height"`
	Width    int `json:"width"`
	Channels int `json:"channels"`
}

// LayerSpec describes one layer. Conv weights are laid out
// [kernel][kernel][in][filters], dense weights [in][units].
type LayerSpec struct {
	Name       string    `json:"name,omitempty"`
	Type       string    `json:"type"`
	Filters    int       `json:"filters,omitempty"`
	Kernel     int       `json:"kernel,omitempty"`
	Padding    string    `json:"padding,omitempty"`
	PoolSize   int       `json:"pool_size,omitempty"`
	Units      int       `json:"units,omitempty"`
	Activation string    `json:"activation,omitempty"`
	Weights    []float32 `json:"weights,omitempty"`
	Bias       []float32 `json:"bias,omitempty"`
}

// NativeModel is a small CNN evaluated in Go with an exact backward pass.
// It holds no mutable state after construction and is safe for concurrent use.
type NativeModel struct {
	spec     NativeSpec
	path     string
	layers   []layer
	names    []string
	lastConv string
}

var _ Classifier = (*NativeModel)(nil)

// LoadNative reads a native model artifact from disk.
func LoadNative(path string) (*NativeModel, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: model path comes from configuration
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	var spec NativeSpec
	if err := json.Unmarshal(data, &spec); err != nil {
		return nil, &LoadError{Path: path, Err: fmt.Errorf("malformed model: %w", err)}
	}
	m, err := NewNative(spec)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	m.path = path
	return m, nil
}

// SaveNative writes spec as a native model artifact.
func SaveNative(path string, spec NativeSpec) error {
	if spec.Format == "" {
		spec.Format = NativeFormat
	}
	data, err := json.Marshal(spec)
	if err != nil {
		return fmt.Errorf("failed to encode model: %w", err)
	}
	return os.WriteFile(path, data, 0o600)
}

// NewNative validates spec and builds the model.
func NewNative(spec NativeSpec) (*NativeModel, error) {
	if spec.Format != NativeFormat {
		return nil, fmt.Errorf("unsupported native format %q (want %q)", spec.Format, NativeFormat)
	}
	in := spec.Input
	if in.Height <= 0 || in.Width <= 0 || in.Channels <= 0 {
		return nil, fmt.Errorf("invalid input %dx%dx%d", in.Height, in.Width, in.Channels)
	}
	if len(spec.Layers) == 0 {
		return nil, errors.New("model has no layers")
	}

	m := &NativeModel{spec: spec}
	h, w, c := in.Height, in.Width, in.Channels
	counts := map[string]int{}
	for i, ls := range spec.Layers {
		name := ls.Name
		if name == "" {
			name = ls.Type
			if n := counts[ls.Type]; n > 0 {
				name = fmt.Sprintf("%s_%d", ls.Type, n)
			}
		}
		counts[ls.Type]++
		if slices.Contains(m.names, name) {
			return nil, fmt.Errorf("duplicate layer name %q", name)
		}

		l, err := buildLayer(ls, h, w, c)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, name, err)
		}
		h, w, c = l.outShape(h, w, c)
		if h <= 0 || w <= 0 || c <= 0 {
			return nil, fmt.Errorf("layer %d (%s): empty output %dx%dx%d", i, name, h, w, c)
		}

		m.layers = append(m.layers, l)
		m.names = append(m.names, name)
		if ls.Type == LayerConv2D {
			m.lastConv = name
		}
	}
	if h != 1 || w != 1 || c != 1 {
		return nil, fmt.Errorf("model output must be a single score, got %dx%dx%d", h, w, c)
	}
	return m, nil
}

// Score returns the model output for t.
func (m *NativeModel) Score(t onnx.Tensor) (float64, error) {
	acts, err := m.forward(t)
	if err != nil {
		return 0, err
	}
	return acts[len(acts)-1].data[0], nil
}

// ActivationsAndGradients returns the output of layer and d(score)/d(output).
func (m *NativeModel) ActivationsAndGradients(t onnx.Tensor, layer string) (FeatureMap, FeatureMap, error) {
	name, err := resolveLayer(layer, m.names, m.lastConv)
	if err != nil {
		return FeatureMap{}, FeatureMap{}, err
	}
	target := slices.Index(m.names, name)

	acts, err := m.forward(t)
	if err != nil {
		return FeatureMap{}, FeatureMap{}, err
	}

	grad := newVolume(1, 1, 1)
	grad.data[0] = 1
	for i := len(m.layers) - 1; i > target; i-- {
		grad = m.layers[i].backward(acts[i], acts[i+1], grad)
	}
	return acts[target+1].featureMap(), grad.featureMap(), nil
}

// Layers returns all layer names in graph order.
func (m *NativeModel) Layers() []string {
	return slices.Clone(m.names)
}

// Info describes the model.
func (m *NativeModel) Info() Info {
	name := m.spec.Name
	if name == "" && m.path != "" {
		name = strings.TrimSuffix(filepath.Base(m.path), filepath.Ext(m.path))
	}
	return Info{
		Name:          name,
		Backend:       BackendNative,
		Path:          m.path,
		InputHeight:   m.spec.Input.Height,
		InputWidth:    m.spec.Input.Width,
		InputChannels: m.spec.Input.Channels,
		Layers:        m.Layers(),
		LastConv:      m.lastConv,
	}
}

// Close is a no-op for native models.
func (m *NativeModel) Close() error {
	return nil
}

// forward returns the input volume followed by the output of every layer.
func (m *NativeModel) forward(t onnx.Tensor) ([]volume, error) {
	in := m.spec.Input
	if err := checkInput(t, in.Height, in.Width, in.Channels); err != nil {
		return nil, err
	}
	v := volumeFromTensor(t)
	acts := make([]volume, 0, len(m.layers)+1)
	acts = append(acts, v)
	for _, l := range m.layers {
		v = l.forward(v)
		acts = append(acts, v)
	}
	return acts, nil
}

func volumeFromTensor(t onnx.Tensor) volume {
	h, w, c := t.Dims()
	v := newVolume(h, w, c)
	if t.Layout == onnx.LayoutNCHW {
		plane := h * w
		for ch := range c {
			for p := range plane {
				v.data[p*c+ch] = float64(t.Data[ch*plane+p])
			}
		}
		return v
	}
	for i, x := range t.Data {
		v.data[i] = float64(x)
	}
	return v
}
