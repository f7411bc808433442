package model

import (
	"fmt"
	"strings"
)

// LoadError reports a missing or malformed model artifact. It is fatal for
// the process: nothing can be classified without a model.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("failed to load model %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LayerNotFoundError reports a Grad-CAM target layer that does not exist in
// the model's layer graph.
type LayerNotFoundError struct {
	Layer     string
	Available []string
}

func (e *LayerNotFoundError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("layer %q not found: model exposes no convolutional layers", e.Layer)
	}
	return fmt.Sprintf("layer %q not found (available: %s)", e.Layer, strings.Join(e.Available, ", "))
}
