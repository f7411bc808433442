package saliency

import (
	"testing"

	"github.com/MeKo-Tech/wastelens/internal/model"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestGenerate_OutputInUnitRange(t *testing.T) {
	properties := gopter.NewProperties(nil)
	const h, w, c = 3, 4, 2

	properties.Property("grad-cam values lie in [0,1] with max 1 or all zero", prop.ForAll(
		func(actData, gradData []float32) bool {
			act := model.FeatureMap{Height: h, Width: w, Channels: c, Data: actData}
			grad := model.FeatureMap{Height: h, Width: w, Channels: c, Data: gradData}
			m, err := Generate(act, grad)
			if err != nil || m.Validate() != nil {
				return false
			}
			if m.IsZero() {
				return true
			}
			_, peak := m.Peak()
			return peak == 1
		},
		gen.SliceOfN(h*w*c, gen.Float32Range(0, 10)),
		gen.SliceOfN(h*w*c, gen.Float32Range(-1, 1)),
	))

	properties.Property("upsampling keeps values in [0,1]", prop.ForAll(
		func(vals []float64, tw, th int) bool {
			m := Map{Width: 3, Height: 3, Values: vals}
			for _, method := range []Interpolation{Bilinear, CatmullRom, Nearest} {
				if Upsample(m, tw, th, method).Validate() != nil {
					return false
				}
			}
			return true
		},
		gen.SliceOfN(9, gen.Float64Range(0, 1)),
		gen.IntRange(1, 64),
		gen.IntRange(1, 64),
	))

	properties.TestingRun(t)
}
