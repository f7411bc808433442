package model

import (
	"errors"
	"fmt"
	"slices"
)

// FeatureMap is a single-image activation or gradient volume in HWC order.
type FeatureMap struct {
	Height   int
	Width    int
	Channels int
	Data     []float32
}

// At returns the value at (y, x, c).
func (f FeatureMap) At(y, x, c int) float32 {
	return f.Data[(y*f.Width+x)*f.Channels+c]
}

// Validate checks dimensions against the data length.
func (f FeatureMap) Validate() error {
	if f.Height <= 0 || f.Width <= 0 || f.Channels <= 0 {
		return fmt.Errorf("invalid feature map dims %dx%dx%d", f.Height, f.Width, f.Channels)
	}
	if len(f.Data) != f.Height*f.Width*f.Channels {
		return fmt.Errorf("feature map data length %d != %d", len(f.Data), f.Height*f.Width*f.Channels)
	}
	return nil
}

// SameShape reports whether two maps have identical dimensions.
func (f FeatureMap) SameShape(o FeatureMap) bool {
	return f.Height == o.Height && f.Width == o.Width && f.Channels == o.Channels
}

// featureMapFromShape converts a rank-4 (or rank-3) runtime output into HWC.
// The result never aliases data.
func featureMapFromShape(data []float32, shape []int64, nchw bool) (FeatureMap, error) {
	if len(shape) == 4 {
		if shape[0] != 1 {
			return FeatureMap{}, fmt.Errorf("unexpected batch dimension %d", shape[0])
		}
		shape = shape[1:]
	}
	if len(shape) != 3 {
		return FeatureMap{}, fmt.Errorf("unexpected feature map shape %v", shape)
	}
	if !nchw {
		fm := FeatureMap{Height: int(shape[0]), Width: int(shape[1]), Channels: int(shape[2]), Data: slices.Clone(data)}
		return fm, fm.Validate()
	}

	c, h, w := int(shape[0]), int(shape[1]), int(shape[2])
	if len(data) != c*h*w {
		return FeatureMap{}, errors.New("feature map data does not match shape")
	}
	out := make([]float32, len(data))
	plane := h * w
	for ch := range c {
		for p := range plane {
			out[p*c+ch] = data[ch*plane+p]
		}
	}
	return FeatureMap{Height: h, Width: w, Channels: c, Data: out}, nil
}
