package saliency

import (
	"fmt"
	"image"
	"slices"
	"strings"

	"golang.org/x/image/draw"
)

// Interpolation selects the resampling kernel used to upsample a map.
type Interpolation string

const (
	Bilinear   Interpolation = "bilinear"
	CatmullRom Interpolation = "catmullrom"
	Nearest    Interpolation = "nearest"
)

// ParseInterpolation accepts bilinear, catmullrom (bicubic) and nearest.
func ParseInterpolation(name string) (Interpolation, error) {
	switch strings.ToLower(name) {
	case "", "bilinear", "linear":
		return Bilinear, nil
	case "catmullrom", "bicubic":
		return CatmullRom, nil
	case "nearest":
		return Nearest, nil
	default:
		return "", fmt.Errorf("unknown interpolation %q", name)
	}
}

func (i Interpolation) scaler() draw.Scaler {
	switch i {
	case CatmullRom:
		return draw.CatmullRom
	case Nearest:
		return draw.NearestNeighbor
	default:
		return draw.BiLinear
	}
}

// Upsample resizes m to width x height. Values stay in [0,1] and an all-zero
// map stays all-zero.
func Upsample(m Map, width, height int, method Interpolation) Map {
	if width <= 0 || height <= 0 {
		return Map{}
	}
	if m.Width == width && m.Height == height {
		return Map{Width: width, Height: height, Values: slices.Clone(m.Values)}
	}
	if m.Width == 0 || m.Height == 0 || m.IsZero() {
		return NewMap(width, height)
	}

	src := m.toGray16()
	dst := image.NewGray16(image.Rect(0, 0, width, height))
	method.scaler().Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)
	return fromGray16(dst)
}
