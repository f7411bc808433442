package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/MeKo-Tech/wastelens/internal/onnx"
)

// DefaultGradientSuffix names the gradient output paired with an activation output.
const DefaultGradientSuffix = "_grad"

// Metadata is the optional JSON sidecar shipped next to an ONNX model.
type Metadata struct {
	Name           string   `json:"name,omitempty"`
	InputName      string   `json:"input_name,omitempty"`
	InputLayout    string   `json:"input_layout,omitempty"`
	ScoreOutput    string   `json:"score_output,omitempty"`
	FeatureLayout  string   `json:"feature_layout,omitempty"`
	ConvLayers     []string `json:"conv_layers,omitempty"`
	GradientSuffix string   `json:"gradient_suffix,omitempty"`
	PositiveClass  string   `json:"positive_class,omitempty"`
}

// MetadataPath returns the sidecar path for a model file: "model.onnx" -> "model.meta.json".
func MetadataPath(modelPath string) string {
	return strings.TrimSuffix(modelPath, ".onnx") + ".meta.json"
}

// ReadMetadata loads the sidecar. A missing file yields zero Metadata and no error.
func ReadMetadata(path string) (Metadata, error) {
	var md Metadata
	data, err := os.ReadFile(path) //nolint:gosec // G304: sidecar path derives from configured model path
	if errors.Is(err, os.ErrNotExist) {
		return md, nil
	}
	if err != nil {
		return md, err
	}
	if err := json.Unmarshal(data, &md); err != nil {
		return md, fmt.Errorf("malformed model metadata %s: %w", path, err)
	}
	return md, nil
}

func (md Metadata) gradientSuffix() string {
	if md.GradientSuffix == "" {
		return DefaultGradientSuffix
	}
	return md.GradientSuffix
}

// ioNames is the subset of model IO information needed for resolution.
type ioNames struct {
	inputs  []string
	outputs []string
}

// resolved is the concrete IO wiring of an ONNX classifier.
type resolved struct {
	input       string
	score       string
	layers      []string
	inputLayout onnx.Layout
	featureNCHW bool
}

// resolve fills in everything the sidecar leaves out from the graph outputs.
func (md Metadata) resolve(io ioNames) (resolved, error) {
	r := resolved{input: md.InputName, score: md.ScoreOutput}
	suffix := md.gradientSuffix()

	if r.input == "" {
		if len(io.inputs) != 1 {
			return r, fmt.Errorf("model has %d inputs; set input_name in metadata", len(io.inputs))
		}
		r.input = io.inputs[0]
	}
	if !slices.Contains(io.inputs, r.input) {
		return r, fmt.Errorf("input %q not found in model", r.input)
	}

	r.layers = md.ConvLayers
	if len(r.layers) == 0 {
		r.layers = inferLayers(io.outputs, suffix)
	}
	for _, l := range r.layers {
		if !slices.Contains(io.outputs, l) || !slices.Contains(io.outputs, l+suffix) {
			return r, fmt.Errorf("layer %q needs outputs %q and %q", l, l, l+suffix)
		}
	}

	if r.score == "" {
		for _, o := range io.outputs {
			if strings.HasSuffix(o, suffix) || slices.Contains(r.layers, o) {
				continue
			}
			r.score = o
			break
		}
	}
	if r.score == "" || !slices.Contains(io.outputs, r.score) {
		return r, fmt.Errorf("score output %q not found in model", r.score)
	}

	switch strings.ToUpper(md.InputLayout) {
	case "", string(onnx.LayoutNHWC):
		r.inputLayout = onnx.LayoutNHWC
	case string(onnx.LayoutNCHW):
		r.inputLayout = onnx.LayoutNCHW
	default:
		return r, fmt.Errorf("unsupported input layout %q", md.InputLayout)
	}
	switch strings.ToUpper(md.FeatureLayout) {
	case "", string(onnx.LayoutNHWC):
	case string(onnx.LayoutNCHW):
		r.featureNCHW = true
	default:
		return r, fmt.Errorf("unsupported feature layout %q", md.FeatureLayout)
	}
	return r, nil
}

// inferLayers returns outputs that have a matching gradient output, in graph order.
func inferLayers(outputs []string, suffix string) []string {
	var layers []string
	for _, o := range outputs {
		if strings.HasSuffix(o, suffix) {
			continue
		}
		if slices.Contains(outputs, o+suffix) {
			layers = append(layers, o)
		}
	}
	return layers
}
