package model

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/MeKo-Tech/wastelens/internal/onnx"
)

// LastConv selects the last convolutional layer of the model.
const LastConv = "last_conv"

// Backend names reported in Info.
const (
	BackendONNX   = "onnx"
	BackendNative = "native"
)

// Classifier is a frozen binary classifier whose score is the probability of
// the Recyclable class.
type Classifier interface {
	// Score runs a forward pass and returns the raw output in [0,1].
	Score(t onnx.Tensor) (float64, error)
	// ActivationsAndGradients returns the output of the named layer and the
	// gradient of the score with respect to that output.
	ActivationsAndGradients(t onnx.Tensor, layer string) (FeatureMap, FeatureMap, error)
	// Layers lists the layer names usable as Grad-CAM targets, in graph order.
	Layers() []string
	Info() Info
	Close() error
}

// Info describes a loaded model.
type Info struct {
	Name          string   `json:"name"`
	Backend       string   `json:"backend"`
	Path          string   `json:"path"`
	InputHeight   int      `json:"input_height"`
	InputWidth    int      `json:"input_width"`
	InputChannels int      `json:"input_channels"`
	Layers        []string `json:"layers"`
	LastConv      string   `json:"last_conv"`
}

// Config controls model loading.
type Config struct {
	ModelPath string
	// NumThreads sets ONNX Runtime intra-op threads (0 = runtime default).
	NumThreads int
	// Serialize guards ONNX session runs with a mutex.
	Serialize bool
	GPU       onnx.GPUConfig
}

// DefaultConfig returns defaults for the given model path.
func DefaultConfig(path string) Config {
	return Config{
		ModelPath: path,
		Serialize: true,
		GPU:       onnx.DefaultGPUConfig(),
	}
}

// Load reads the model artifact and returns a ready classifier. The backend is
// chosen by file extension: ".onnx" uses ONNX Runtime, ".json" the native CNN.
func Load(cfg Config) (Classifier, error) {
	path := cfg.ModelPath
	if path == "" {
		return nil, &LoadError{Path: path, Err: errors.New("model path is empty")}
	}
	st, err := os.Stat(path)
	if err != nil {
		return nil, &LoadError{Path: path, Err: err}
	}
	if st.IsDir() {
		return nil, &LoadError{Path: path, Err: errors.New("model path is a directory")}
	}

	slog.Debug("Loading classifier model", "model_path", path, "gpu_enabled", cfg.GPU.UseGPU)

	switch strings.ToLower(filepath.Ext(path)) {
	case ".onnx":
		m, err := loadONNX(cfg)
		if err != nil {
			return nil, err
		}
		return m, nil
	case ".json":
		m, err := LoadNative(path)
		if err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, &LoadError{Path: path, Err: fmt.Errorf("unsupported model format %q", filepath.Ext(path))}
	}
}

// resolveLayer maps a requested layer name to a concrete one.
func resolveLayer(requested string, available []string, lastConv string) (string, error) {
	if requested == "" || requested == LastConv {
		if lastConv == "" {
			return "", &LayerNotFoundError{Layer: LastConv, Available: available}
		}
		return lastConv, nil
	}
	if !slices.Contains(available, requested) {
		return "", &LayerNotFoundError{Layer: requested, Available: available}
	}
	return requested, nil
}

// checkInput verifies a tensor matches the model's input dimensions.
func checkInput(t onnx.Tensor, h, w, c int) error {
	if err := t.Verify(); err != nil {
		return fmt.Errorf("invalid input tensor: %w", err)
	}
	if t.Shape[0] != 1 {
		return fmt.Errorf("batch size %d not supported (want 1)", t.Shape[0])
	}
	th, tw, tc := t.Dims()
	if th != h || tw != w || tc != c {
		return fmt.Errorf("input tensor %dx%dx%d does not match model input %dx%dx%d", th, tw, tc, h, w, c)
	}
	return nil
}
