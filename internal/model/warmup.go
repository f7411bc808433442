package model

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/MeKo-Tech/wastelens/internal/onnx"
)

// WarmupTensor returns a mid-gray input tensor matching the model input.
func WarmupTensor(info Info) (onnx.Tensor, error) {
	h, w, c := info.InputHeight, info.InputWidth, info.InputChannels
	data := make([]float32, h*w*c)
	for i := range data {
		data[i] = 0.5
	}
	return onnx.NewImageTensor(data, h, w, c)
}

// Warmup runs forward and backward passes to reduce first-request latency and
// to validate the Grad-CAM target layer at startup. It always runs at least one
// pass, so a missing layer surfaces as *LayerNotFoundError. An empty layer
// warms up scoring only, for models exported without gradient outputs.
func Warmup(c Classifier, layer string, iterations int) error {
	t, err := WarmupTensor(c.Info())
	if err != nil {
		return fmt.Errorf("warmup tensor: %w", err)
	}
	if iterations < 1 {
		iterations = 1
	}

	start := time.Now()
	for range iterations {
		if _, err := c.Score(t); err != nil {
			return fmt.Errorf("warmup score: %w", err)
		}
		if layer == "" {
			continue
		}
		if _, _, err := c.ActivationsAndGradients(t, layer); err != nil {
			return err
		}
	}
	slog.Debug("Classifier warmup completed",
		"iterations", iterations,
		"layer", layer,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}
