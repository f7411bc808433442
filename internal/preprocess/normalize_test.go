package preprocess

import (
	"image"
	"image/color"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/onnx"
	"github.com/MeKo-Tech/wastelens/internal/testutil"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeShapeAndValues(t *testing.T) {
	img := testutil.SolidImage(640, 480, color.NRGBA{R: 255, G: 0, B: 51, A: 255})
	tensor, err := Normalize(img)
	require.NoError(t, err)
	require.NoError(t, tensor.Verify())

	assert.Equal(t, []int64{1, 150, 150, 3}, tensor.Shape)
	assert.Equal(t, onnx.LayoutNHWC, tensor.Layout)
	assert.InDelta(t, 1.0, tensor.Data[0], 0.005)
	assert.InDelta(t, 0.0, tensor.Data[1], 0.005)
	assert.InDelta(t, 0.2, tensor.Data[2], 0.005)
}

func TestNormalizeIgnoresAlphaAndHandlesGray(t *testing.T) {
	gray := image.NewGray(image.Rect(0, 0, 10, 10))
	for i := range gray.Pix {
		gray.Pix[i] = 102
	}
	tensor, err := Normalize(gray)
	require.NoError(t, err)
	for _, v := range tensor.Data {
		assert.InDelta(t, 0.4, v, 0.005)
	}
}

func TestNormalizeTransparentPixelsKeepColor(t *testing.T) {
	for _, size := range []int{150, 300, 37} {
		img := image.NewNRGBA(image.Rect(0, 0, size, size))
		for i := 0; i < len(img.Pix); i += 4 {
			img.Pix[i] = 255
		}
		tensor, err := Normalize(img)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, tensor.Data[0], 0.005, "size %d", size)
		assert.InDelta(t, 0.0, tensor.Data[1], 0.005, "size %d", size)
		assert.InDelta(t, 0.0, tensor.Data[2], 0.005, "size %d", size)
		Release(tensor)
	}
}

func TestNormalizeZeroImage(t *testing.T) {
	_, err := Normalize(image.NewNRGBA(image.Rect(0, 0, 0, 5)))
	assert.True(t, IsDecodeError(err))
	_, err = Normalize(nil)
	assert.True(t, IsDecodeError(err))
}

func TestPreprocessorConfig(t *testing.T) {
	p, err := New(Config{Width: 32, Height: 16, Filter: "lanczos"})
	require.NoError(t, err)
	assert.Equal(t, 32, p.Config().Width)

	tensor, err := p.Normalize(testutil.SolidImage(5, 5, testutil.Gray))
	require.NoError(t, err)
	assert.Equal(t, []int64{1, 16, 32, 3}, tensor.Shape)

	_, err = New(Config{Width: 0, Height: 10})
	assert.Error(t, err)
	_, err = New(Config{Width: 10, Height: 10, Filter: "sinc"})
	assert.Error(t, err)
}

func TestResampleFilter(t *testing.T) {
	for _, name := range []string{"", "nearest", "linear", "bilinear", "bicubic", "CatmullRom", "lanczos"} {
		_, err := ResampleFilter(name)
		assert.NoError(t, err, name)
	}
}

func TestNormalize_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("any image yields 1x150x150x3 in [0,1]", prop.ForAll(
		func(w, h int, r, g, b uint8) bool {
			img := testutil.PatchImage(w, h, color.NRGBA{R: r, G: g, B: b, A: 255}, image.Rect(0, 0, w/2+1, h/2+1))
			tensor, err := Normalize(img)
			if err != nil || tensor.Verify() != nil {
				return false
			}
			if tensor.Shape[1] != 150 || tensor.Shape[2] != 150 || tensor.Shape[3] != 3 {
				return false
			}
			for _, v := range tensor.Data {
				if v < 0 || v > 1 {
					return false
				}
			}
			return true
		},
		gen.IntRange(1, 400),
		gen.IntRange(1, 400),
		gen.UInt8(),
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
