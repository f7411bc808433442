package saliency

import (
	"image"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInterpolation(t *testing.T) {
	for in, want := range map[string]Interpolation{
		"":           Bilinear,
		"bilinear":   Bilinear,
		"Linear":     Bilinear,
		"bicubic":    CatmullRom,
		"catmullrom": CatmullRom,
		"nearest":    Nearest,
	} {
		got, err := ParseInterpolation(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseInterpolation("lanczos9")
	assert.Error(t, err)
}

func TestUpsampleSameSizeCopies(t *testing.T) {
	m := Map{Width: 2, Height: 1, Values: []float64{0.25, 1}}
	up := Upsample(m, 2, 1, Bilinear)
	assert.Equal(t, m.Values, up.Values)
	up.Values[0] = 0.9
	assert.Equal(t, 0.25, m.Values[0])
}

func TestUpsampleZeroStaysZero(t *testing.T) {
	up := Upsample(NewMap(7, 7), 150, 100, Bilinear)
	assert.Equal(t, 150, up.Width)
	assert.Equal(t, 100, up.Height)
	assert.True(t, up.IsZero())
}

func TestUpsampleConstantMap(t *testing.T) {
	m := Map{Width: 1, Height: 1, Values: []float64{1}}
	up := Upsample(m, 10, 6, Bilinear)
	for _, v := range up.Values {
		assert.InDelta(t, 1.0, v, 1e-4)
	}
}

func TestUpsampleIsSmoothAndBounded(t *testing.T) {
	m := Map{Width: 2, Height: 2, Values: []float64{
		1, 0,
		0, 0,
	}}
	for _, method := range []Interpolation{Bilinear, CatmullRom, Nearest} {
		up := Upsample(m, 40, 40, method)
		require.NoError(t, up.Validate(), method)

		p, _ := up.Peak()
		assert.Less(t, p.X, 20, method)
		assert.Less(t, p.Y, 20, method)
		assert.InDelta(t, 0, up.At(39, 39), 1e-4, method)
	}

	// Bilinear produces intermediate values along the transition.
	up := Upsample(m, 40, 40, Bilinear)
	mid := up.At(20, 5)
	assert.Greater(t, mid, 0.0)
	assert.Less(t, mid, 1.0)
}

func TestUpsampleInvalidTarget(t *testing.T) {
	up := Upsample(Map{Width: 1, Height: 1, Values: []float64{1}}, 0, 5, Bilinear)
	assert.Equal(t, Map{}, up)
}

func TestUpsampleNonSquare(t *testing.T) {
	m := NewMap(3, 2)
	m.Values[5] = 1
	up := Upsample(m, 300, 200, Bilinear)
	p, v := up.Peak()
	assert.Greater(t, v, 0.9)
	assert.True(t, p.In(image.Rect(200, 133, 300, 200)), "peak %v", p)
}
