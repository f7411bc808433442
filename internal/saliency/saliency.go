// Package saliency computes Grad-CAM attention maps from a target layer's
// activations and the gradient of the score with respect to them.
package saliency

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/wastelens/internal/model"
)

// Map is a single-channel attention map with values in [0,1], row-major.
type Map struct {
	Width  int
	Height int
	Values []float64
}

// NewMap returns an all-zero map.
func NewMap(width, height int) Map {
	return Map{Width: width, Height: height, Values: make([]float64, width*height)}
}

// At returns the value at (x, y).
func (m Map) At(x, y int) float64 {
	return m.Values[y*m.Width+x]
}

// Validate checks dimensions and the [0,1] range.
func (m Map) Validate() error {
	if m.Width <= 0 || m.Height <= 0 || len(m.Values) != m.Width*m.Height {
		return fmt.Errorf("invalid saliency map %dx%d with %d values", m.Width, m.Height, len(m.Values))
	}
	for i, v := range m.Values {
		if !(v >= 0 && v <= 1) {
			return fmt.Errorf("saliency value %v at %d outside [0,1]", v, i)
		}
	}
	return nil
}

// IsZero reports whether no discriminative region was found.
func (m Map) IsZero() bool {
	for _, v := range m.Values {
		if v != 0 {
			return false
		}
	}
	return true
}

// Peak returns the location and value of the maximum (first in scan order).
func (m Map) Peak() (image.Point, float64) {
	best, bestV := 0, math.Inf(-1)
	for i, v := range m.Values {
		if v > bestV {
			best, bestV = i, v
		}
	}
	if m.Width == 0 {
		return image.Point{}, 0
	}
	return image.Pt(best%m.Width, best/m.Width), bestV
}

// ToGray renders the map as an 8-bit grayscale image.
func (m Map) ToGray() *image.Gray {
	img := image.NewGray(image.Rect(0, 0, m.Width, m.Height))
	for i, v := range m.Values {
		img.Pix[i] = uint8(math.Round(clamp01(v) * 255))
	}
	return img
}

// toGray16 renders the map at 16-bit precision for resampling.
func (m Map) toGray16() *image.Gray16 {
	img := image.NewGray16(image.Rect(0, 0, m.Width, m.Height))
	for y := range m.Height {
		for x := range m.Width {
			img.SetGray16(x, y, color.Gray16{Y: uint16(math.Round(clamp01(m.At(x, y)) * 0xffff))})
		}
	}
	return img
}

func fromGray16(img *image.Gray16) Map {
	b := img.Bounds()
	m := NewMap(b.Dx(), b.Dy())
	for y := range m.Height {
		for x := range m.Width {
			m.Values[y*m.Width+x] = float64(img.Gray16At(b.Min.X+x, b.Min.Y+y).Y) / 0xffff
		}
	}
	return m
}

// Generate computes a Grad-CAM map: per-channel gradient means weight the
// activation channels, the weighted sum is rectified and divided by its max.
// A zero response, or any non-finite cell, yields an all-zero map rather
// than an error.
func Generate(act, grad model.FeatureMap) (Map, error) {
	if err := act.Validate(); err != nil {
		return Map{}, fmt.Errorf("activations: %w", err)
	}
	if err := grad.Validate(); err != nil {
		return Map{}, fmt.Errorf("gradients: %w", err)
	}
	if !act.SameShape(grad) {
		return Map{}, errors.New("activation and gradient shapes differ")
	}

	h, w, c := act.Height, act.Width, act.Channels
	plane := h * w

	weights := make([]float64, c)
	for p := range plane {
		for ch := range c {
			weights[ch] += float64(grad.Data[p*c+ch])
		}
	}
	for ch := range weights {
		weights[ch] /= float64(plane)
	}

	m := NewMap(w, h)
	maxV := 0.0
	for p := range plane {
		var s float64
		for ch, wt := range weights {
			s += wt * float64(act.Data[p*c+ch])
		}
		if math.IsNaN(s) || math.IsInf(s, 0) {
			return NewMap(w, h), nil
		}
		if s < 0 {
			s = 0
		}
		m.Values[p] = s
		if s > maxV {
			maxV = s
		}
	}

	if maxV == 0 {
		return m, nil
	}
	for i := range m.Values {
		m.Values[i] /= maxV
	}
	return m, nil
}

func clamp01(v float64) float64 {
	switch {
	case math.IsNaN(v) || v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
