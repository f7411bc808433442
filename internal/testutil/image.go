package testutil

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/jpeg"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/require"
)

// ImageSize represents image dimensions.
type ImageSize struct {
	Width  int
	Height int
}

var (
	// Common test image sizes.
	SmallSize  = ImageSize{64, 48}
	ModelSize  = ImageSize{150, 150}
	MediumSize = ImageSize{640, 480}
)

// Colors that drive the color test model. Blue-dominant pixels read as
// Recyclable, green-dominant as Organic, gray as neither.
var (
	Blue  = color.NRGBA{R: 20, G: 40, B: 230, A: 255}
	Green = color.NRGBA{R: 30, G: 200, B: 40, A: 255}
	Gray  = color.NRGBA{R: 128, G: 128, B: 128, A: 255}
)

// SampleConfig describes a synthetic photo: a background with an optional
// rectangular object patch.
type SampleConfig struct {
	Size       ImageSize
	Background color.Color
	Patch      color.Color
	// PatchRect is in pixel coordinates; empty means no patch.
	PatchRect image.Rectangle
}

// DefaultSampleConfig returns a gray medium-size image without a patch.
func DefaultSampleConfig() SampleConfig {
	return SampleConfig{Size: MediumSize, Background: Gray}
}

// GenerateSample renders cfg.
func GenerateSample(cfg SampleConfig) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, cfg.Size.Width, cfg.Size.Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{cfg.Background}, image.Point{}, draw.Src)
	if cfg.Patch != nil && !cfg.PatchRect.Empty() {
		draw.Draw(img, cfg.PatchRect.Intersect(img.Bounds()), &image.Uniform{cfg.Patch}, image.Point{}, draw.Src)
	}
	return img
}

// SolidImage creates an image filled with c.
func SolidImage(width, height int, c color.Color) *image.NRGBA {
	return GenerateSample(SampleConfig{Size: ImageSize{width, height}, Background: c})
}

// PatchImage creates a gray image with a c-colored patch covering rect.
func PatchImage(width, height int, c color.Color, rect image.Rectangle) *image.NRGBA {
	return GenerateSample(SampleConfig{Size: ImageSize{width, height}, Background: Gray, Patch: c, PatchRect: rect})
}

// EncodePNG encodes img as PNG.
func EncodePNG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img), "Failed to encode PNG image")
	return buf.Bytes()
}

// EncodeJPEG encodes img as JPEG at quality 95.
func EncodeJPEG(t testing.TB, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}), "Failed to encode JPEG image")
	return buf.Bytes()
}

// SaveImage saves img to path, picking the encoder from the extension.
func SaveImage(t testing.TB, img image.Image, path string) {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, imaging.Save(img, path), "Failed to save image %s", path)
}

// WriteFile writes raw bytes to path.
func WriteFile(t testing.TB, path string, data []byte) {
	t.Helper()
	require.NoError(t, EnsureDir(filepath.Dir(path)))
	require.NoError(t, os.WriteFile(path, data, 0o600))
}

// LoadImage loads an image from path.
func LoadImage(t testing.TB, path string) image.Image {
	t.Helper()
	img, err := imaging.Open(path)
	require.NoError(t, err, "Failed to open image %s", path)
	return img
}

// MeanAbsDiff returns the mean absolute per-channel difference of two
// same-size images, in 8-bit units. It returns +Inf when bounds differ.
func MeanAbsDiff(a, b image.Image) float64 {
	if a.Bounds().Size() != b.Bounds().Size() {
		return math.Inf(1)
	}
	na, nb := imaging.Clone(a), imaging.Clone(b)
	if len(na.Pix) == 0 {
		return 0
	}
	var sum float64
	for i := range na.Pix {
		sum += math.Abs(float64(na.Pix[i]) - float64(nb.Pix[i]))
	}
	return sum / float64(len(na.Pix))
}
