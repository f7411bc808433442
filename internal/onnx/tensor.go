package onnx

import (
	"errors"
	"fmt"
)

// Layout describes the dimension order of a 4D image tensor.
type Layout string

const (
	// LayoutNHWC is batch, height, width, channels (Keras default).
	LayoutNHWC Layout = "NHWC"
	// LayoutNCHW is batch, channels, height, width.
	LayoutNCHW Layout = "NCHW"
)

// Tensor represents a float32 tensor prepared for model input.
// Data layout is row-major in the order given by Shape.
type Tensor struct {
	Data   []float32
	Shape  []int64
	Layout Layout
}

// NewImageTensor builds a single-image tensor with shape [1, H, W, C].
// data must be length H*W*C in HWC order.
func NewImageTensor(data []float32, h, w, c int) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	expected := h * w * c
	if len(data) != expected {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d", len(data), expected)
	}
	shape := []int64{1, int64(h), int64(w), int64(c)}
	return Tensor{Data: data, Shape: shape, Layout: LayoutNHWC}, nil
}

// ValidateShape ensures a shape is rank 4 with positive dimensions.
func ValidateShape(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// Verify checks data length matches the tensor shape.
func (t Tensor) Verify() error {
	if err := ValidateShape(t.Shape); err != nil {
		return err
	}
	expected := int(t.Shape[0] * t.Shape[1] * t.Shape[2] * t.Shape[3])
	if len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}

// Dims returns height, width and channels regardless of layout.
func (t Tensor) Dims() (int, int, int) {
	if len(t.Shape) != 4 {
		return 0, 0, 0
	}
	if t.Layout == LayoutNCHW {
		return int(t.Shape[2]), int(t.Shape[3]), int(t.Shape[1])
	}
	return int(t.Shape[1]), int(t.Shape[2]), int(t.Shape[3])
}

// ToNCHW returns a copy of an NHWC tensor transposed to NCHW.
// Tensors already in NCHW are returned unchanged.
func (t Tensor) ToNCHW() (Tensor, error) {
	if t.Layout == LayoutNCHW {
		return t, nil
	}
	if err := t.Verify(); err != nil {
		return Tensor{}, err
	}
	n := int(t.Shape[0])
	h, w, c := t.Dims()
	out := make([]float32, len(t.Data))
	plane := h * w
	for b := range n {
		src := t.Data[b*plane*c : (b+1)*plane*c]
		dst := out[b*plane*c : (b+1)*plane*c]
		for p := range plane {
			for ch := range c {
				dst[ch*plane+p] = src[p*c+ch]
			}
		}
	}
	return Tensor{
		Data:   out,
		Shape:  []int64{int64(n), int64(c), int64(h), int64(w)},
		Layout: LayoutNCHW,
	}, nil
}

// TensorStats computes simple statistics for debug output.
func TensorStats(data []float32) (float32, float32, float32) {
	if len(data) == 0 {
		return 0, 0, 0
	}
	var minVal, maxVal, mean float32
	minVal, maxVal = data[0], data[0]
	var sum float64
	for _, v := range data {
		if v < minVal {
			minVal = v
		}
		if v > maxVal {
			maxVal = v
		}
		sum += float64(v)
	}
	mean = float32(sum / float64(len(data)))
	return minVal, maxVal, mean
}
