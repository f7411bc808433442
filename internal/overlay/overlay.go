// Package overlay renders saliency maps as jet heat maps and blends them
// onto the original photo.
package overlay

import (
	"fmt"
	"image"
	"image/color"
	"math"

	"github.com/MeKo-Tech/wastelens/internal/saliency"
	"github.com/disintegration/imaging"
)

// DefaultAlpha is the heat map weight in the composite.
const DefaultAlpha = 0.4

// Options controls compositing.
type Options struct {
	Alpha         float64
	Interpolation saliency.Interpolation
}

// DefaultOptions returns alpha 0.4 with bilinear map upsampling.
func DefaultOptions() Options {
	return Options{Alpha: DefaultAlpha, Interpolation: saliency.Bilinear}
}

// ValidateAlpha accepts values strictly between 0 and 1.
func ValidateAlpha(alpha float64) error {
	if !(alpha > 0 && alpha < 1) {
		return fmt.Errorf("overlay alpha must be in (0,1), got %v", alpha)
	}
	return nil
}

// Jet maps v in [0,1] to the jet colormap. 0 is dark blue (0,0,128) and 1 is
// dark red (128,0,0).
func Jet(v float64) color.NRGBA {
	if math.IsNaN(v) {
		v = 0
	}
	v = math.Min(math.Max(v, 0), 1)
	return color.NRGBA{
		R: channel(1.5 - math.Abs(4*v-3)),
		G: channel(1.5 - math.Abs(4*v-2)),
		B: channel(1.5 - math.Abs(4*v-1)),
		A: 0xff,
	}
}

func channel(x float64) uint8 {
	return uint8(math.Round(math.Min(math.Max(x, 0), 1) * 255))
}

// Colorize renders m with the jet colormap at its own resolution.
func Colorize(m saliency.Map) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, m.Width, m.Height))
	for y := range m.Height {
		for x := range m.Width {
			img.SetNRGBA(x, y, Jet(m.At(x, y)))
		}
	}
	return img
}

// Overlay blends the colorized map onto original with the default
// interpolation: out = original*(1-alpha) + jet(map)*alpha.
func Overlay(original image.Image, m saliency.Map, alpha float64) *image.NRGBA {
	return Render(original, m, Options{Alpha: alpha, Interpolation: saliency.Bilinear})
}

// Render is Overlay with explicit options. A map whose size differs from the
// original is resampled first.
func Render(original image.Image, m saliency.Map, opts Options) *image.NRGBA {
	b := original.Bounds()
	if m.Width != b.Dx() || m.Height != b.Dy() {
		m = saliency.Upsample(m, b.Dx(), b.Dy(), opts.Interpolation)
	}
	bg := imaging.Clone(original)
	return imaging.Overlay(bg, Colorize(m), image.Pt(0, 0), opts.Alpha)
}
