package overlay

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/saliency"
	"github.com/MeKo-Tech/wastelens/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJetEndpoints(t *testing.T) {
	assert.Equal(t, color.NRGBA{R: 0, G: 0, B: 128, A: 255}, Jet(0))
	assert.Equal(t, color.NRGBA{R: 128, G: 0, B: 0, A: 255}, Jet(1))
	assert.Equal(t, color.NRGBA{R: 0, G: 255, B: 255, A: 255}, Jet(0.375))
	assert.Equal(t, color.NRGBA{R: 128, G: 255, B: 128, A: 255}, Jet(0.5))
	assert.Equal(t, Jet(0), Jet(-3))
	assert.Equal(t, Jet(1), Jet(7))
	assert.Equal(t, Jet(0), Jet(math.NaN()))
}

func TestColorize(t *testing.T) {
	m := saliency.Map{Width: 2, Height: 1, Values: []float64{0, 1}}
	img := Colorize(m)
	assert.Equal(t, Jet(0), img.NRGBAAt(0, 0))
	assert.Equal(t, Jet(1), img.NRGBAAt(1, 0))
}

func blend(orig, heat uint8, alpha float64) float64 {
	return float64(orig)*(1-alpha) + float64(heat)*alpha
}

func TestOverlayZeroMapBlendsColdColor(t *testing.T) {
	orig := testutil.SolidImage(60, 40, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
	out := Overlay(orig, saliency.NewMap(5, 5), 0.4)
	require.Equal(t, orig.Bounds(), out.Bounds())

	cold := Jet(0)
	for _, p := range []image.Point{{0, 0}, {30, 20}, {59, 39}} {
		c := out.NRGBAAt(p.X, p.Y)
		assert.InDelta(t, blend(200, cold.R, 0.4), float64(c.R), 1, "R at %v", p)
		assert.InDelta(t, blend(100, cold.G, 0.4), float64(c.G), 1, "G at %v", p)
		assert.InDelta(t, blend(50, cold.B, 0.4), float64(c.B), 1, "B at %v", p)
		assert.Equal(t, uint8(255), c.A)
	}
}

func TestOverlayAlphaZeroIsIdentity(t *testing.T) {
	orig := testutil.PatchImage(50, 50, testutil.Blue, image.Rect(10, 10, 30, 30))
	m := saliency.Map{Width: 2, Height: 2, Values: []float64{1, 0.2, 0.7, 0}}
	out := Overlay(orig, m, 0)
	assert.InDelta(t, 0, testutil.MeanAbsDiff(orig, out), 1e-9)
}

func TestOverlayHotRegionFollowsMap(t *testing.T) {
	orig := testutil.SolidImage(100, 100, testutil.Gray)
	m := saliency.Map{Width: 2, Height: 2, Values: []float64{
		0, 0,
		0, 1,
	}}
	out := Overlay(orig, m, 0.5)

	hot := out.NRGBAAt(90, 90)
	cold := out.NRGBAAt(5, 5)
	assert.Greater(t, hot.R, cold.R)
	assert.Greater(t, cold.B, hot.B)
}

func TestOverlayFullResolutionMap(t *testing.T) {
	orig := testutil.SolidImage(3, 1, color.NRGBA{A: 255})
	m := saliency.Map{Width: 3, Height: 1, Values: []float64{0, 0.5, 1}}
	out := Render(orig, m, Options{Alpha: 1, Interpolation: saliency.Nearest})
	for x := range 3 {
		assert.Equal(t, Jet(m.At(x, 0)), out.NRGBAAt(x, 0))
	}
}

func TestValidateAlpha(t *testing.T) {
	assert.NoError(t, ValidateAlpha(DefaultAlpha))
	assert.NoError(t, ValidateAlpha(0.99))
	assert.Error(t, ValidateAlpha(0))
	assert.Error(t, ValidateAlpha(1))
	assert.Error(t, ValidateAlpha(math.NaN()))
	assert.Equal(t, DefaultAlpha, DefaultOptions().Alpha)
}
