// Package modeltest builds small deterministic native models for tests.
package modeltest

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/stretchr/testify/require"
)

// Input size used by all fixtures.
const (
	Height   = 150
	Width    = 150
	Channels = 3
)

// Logit returns the pre-sigmoid value producing p.
func Logit(p float64) float32 {
	return float32(math.Log(p / (1 - p)))
}

// ColorSpec returns a model that scores blue-dominant images as Recyclable and
// green-dominant images as Organic.
//
// Layers: conv2d (1x1 identity, relu) -> max_pooling2d (2) ->
// conv2d_1 (1x1: relu(B-G), relu(G-B)) -> global_average_pooling2d ->
// dense (sigmoid, weights +gain/-gain).
func ColorSpec(gain float32) model.NativeSpec {
	identity := []float32{
		1, 0, 0,
		0, 1, 0,
		0, 0, 1,
	}
	colorDiff := []float32{
		// in R
		0, 0,
		// in G
		-1, 1,
		// in B
		1, -1,
	}
	return model.NativeSpec{
		Format: model.NativeFormat,
		Name:   "color-test",
		Input:  model.InputSpec{Height: Height, Width: Width, Channels: Channels},
		Layers: []model.LayerSpec{
			{Type: model.LayerConv2D, Filters: 3, Kernel: 1, Padding: "same", Activation: "relu", Weights: identity},
			{Type: model.LayerMaxPool2D, PoolSize: 2},
			{Type: model.LayerConv2D, Filters: 2, Kernel: 1, Padding: "same", Activation: "relu", Weights: colorDiff},
			{Type: model.LayerGlobalAvgPool},
			{Type: model.LayerDense, Units: 1, Activation: "sigmoid", Weights: []float32{gain, -gain}},
		},
	}
}

// ConstantSpec returns a model whose score is sigmoid(logit(score)) for every
// input and whose gradients are all zero.
func ConstantSpec(score float64) model.NativeSpec {
	return model.NativeSpec{
		Format: model.NativeFormat,
		Name:   "constant-test",
		Input:  model.InputSpec{Height: Height, Width: Width, Channels: Channels},
		Layers: []model.LayerSpec{
			{Type: model.LayerConv2D, Filters: 2, Kernel: 3, Padding: "same", Activation: "relu",
				Weights: fill(3*3*Channels*2, 0.1)},
			{Type: model.LayerGlobalAvgPool},
			{Type: model.LayerDense, Units: 1, Activation: "sigmoid",
				Weights: []float32{0, 0}, Bias: []float32{Logit(score)}},
		},
	}
}

// Color builds the color model.
func Color(t testing.TB) *model.NativeModel {
	t.Helper()
	m, err := model.NewNative(ColorSpec(20))
	require.NoError(t, err)
	return m
}

// Constant builds a constant-score model.
func Constant(t testing.TB, score float64) *model.NativeModel {
	t.Helper()
	m, err := model.NewNative(ConstantSpec(score))
	require.NoError(t, err)
	return m
}

// WriteSpec saves spec into a temp dir and returns its path.
func WriteSpec(t testing.TB, spec model.NativeSpec) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, model.SaveNative(path, spec))
	return path
}

func fill(n int, v float32) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}
