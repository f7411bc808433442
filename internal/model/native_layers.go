package model

import (
	"fmt"
	"math"
)

// volume is an HWC activation buffer.
type volume struct {
	h, w, c int
	data    []float64
}

func newVolume(h, w, c int) volume {
	return volume{h: h, w: w, c: c, data: make([]float64, h*w*c)}
}

func (v volume) featureMap() FeatureMap {
	data := make([]float32, len(v.data))
	for i, x := range v.data {
		data[i] = float32(x)
	}
	return FeatureMap{Height: v.h, Width: v.w, Channels: v.c, Data: data}
}

type activation int

const (
	actLinear activation = iota
	actReLU
	actSigmoid
)

func parseActivation(s string) (activation, error) {
	switch s {
	case "", "linear":
		return actLinear, nil
	case "relu":
		return actReLU, nil
	case "sigmoid":
		return actSigmoid, nil
	default:
		return 0, fmt.Errorf("unsupported activation %q", s)
	}
}

func (a activation) apply(x float64) float64 {
	switch a {
	case actReLU:
		return math.Max(x, 0)
	case actSigmoid:
		if x >= 0 {
			return 1 / (1 + math.Exp(-x))
		}
		e := math.Exp(x)
		return e / (1 + e)
	default:
		return x
	}
}

// derivative in terms of the activation output y.
func (a activation) derivative(y float64) float64 {
	switch a {
	case actReLU:
		if y > 0 {
			return 1
		}
		return 0
	case actSigmoid:
		return y * (1 - y)
	default:
		return 1
	}
}

// layer is a stateless forward/backward operator.
type layer interface {
	outShape(h, w, c int) (int, int, int)
	forward(in volume) volume
	// backward returns d(score)/d(in) given d(score)/d(out).
	backward(in, out, gradOut volume) volume
}

func buildLayer(ls LayerSpec, h, w, c int) (layer, error) {
	switch ls.Type {
	case LayerConv2D:
		return newConv2D(ls, c)
	case LayerMaxPool2D:
		size := ls.PoolSize
		if size == 0 {
			size = 2
		}
		if size < 1 || size > h || size > w {
			return nil, fmt.Errorf("invalid pool size %d for %dx%d input", size, h, w)
		}
		return &maxPool2D{size: size}, nil
	case LayerGlobalAvgPool:
		return globalAvgPool{}, nil
	case LayerFlatten:
		return flatten{}, nil
	case LayerDense:
		if h != 1 || w != 1 {
			return nil, fmt.Errorf("dense layer needs flattened input, got %dx%dx%d", h, w, c)
		}
		return newDense(ls, c)
	default:
		return nil, fmt.Errorf("unknown layer type %q", ls.Type)
	}
}

type conv2D struct {
	k, in, filters int
	pad            int
	same           bool
	weights        []float64
	bias           []float64
	act            activation
}

func newConv2D(ls LayerSpec, inC int) (*conv2D, error) {
	if ls.Kernel <= 0 || ls.Filters <= 0 {
		return nil, fmt.Errorf("invalid kernel %d or filters %d", ls.Kernel, ls.Filters)
	}
	act, err := parseActivation(ls.Activation)
	if err != nil {
		return nil, err
	}
	l := &conv2D{k: ls.Kernel, in: inC, filters: ls.Filters, act: act}
	switch ls.Padding {
	case "", "valid":
	case "same":
		l.same = true
		l.pad = (ls.Kernel - 1) / 2
	default:
		return nil, fmt.Errorf("unsupported padding %q", ls.Padding)
	}

	want := ls.Kernel * ls.Kernel * inC * ls.Filters
	if len(ls.Weights) != want {
		return nil, fmt.Errorf("conv weights length %d, want %d", len(ls.Weights), want)
	}
	l.weights = toFloat64(ls.Weights)
	l.bias, err = biasFor(ls.Bias, ls.Filters)
	if err != nil {
		return nil, err
	}
	return l, nil
}

func (l *conv2D) outShape(h, w, _ int) (int, int, int) {
	if l.same {
		return h, w, l.filters
	}
	return h - l.k + 1, w - l.k + 1, l.filters
}

func (l *conv2D) forward(in volume) volume {
	oh, ow, _ := l.outShape(in.h, in.w, in.c)
	out := newVolume(oh, ow, l.filters)
	for y := range oh {
		for x := range ow {
			o := out.data[(y*ow+x)*l.filters : (y*ow+x+1)*l.filters]
			copy(o, l.bias)
			for ky := range l.k {
				iy := y + ky - l.pad
				if iy < 0 || iy >= in.h {
					continue
				}
				for kx := range l.k {
					ix := x + kx - l.pad
					if ix < 0 || ix >= in.w {
						continue
					}
					px := in.data[(iy*in.w+ix)*in.c : (iy*in.w+ix+1)*in.c]
					base := (ky*l.k + kx) * in.c * l.filters
					for i, v := range px {
						if v == 0 {
							continue
						}
						row := l.weights[base+i*l.filters : base+(i+1)*l.filters]
						for f, wv := range row {
							o[f] += v * wv
						}
					}
				}
			}
			for f := range o {
				o[f] = l.act.apply(o[f])
			}
		}
	}
	return out
}

func (l *conv2D) backward(in, out, gradOut volume) volume {
	gradIn := newVolume(in.h, in.w, in.c)
	delta := make([]float64, l.filters)
	for y := range out.h {
		for x := range out.w {
			off := (y*out.w + x) * l.filters
			active := false
			for f := range delta {
				delta[f] = gradOut.data[off+f] * l.act.derivative(out.data[off+f])
				if delta[f] != 0 {
					active = true
				}
			}
			if !active {
				continue
			}
			for ky := range l.k {
				iy := y + ky - l.pad
				if iy < 0 || iy >= in.h {
					continue
				}
				for kx := range l.k {
					ix := x + kx - l.pad
					if ix < 0 || ix >= in.w {
						continue
					}
					gi := gradIn.data[(iy*in.w+ix)*in.c : (iy*in.w+ix+1)*in.c]
					base := (ky*l.k + kx) * in.c * l.filters
					for i := range gi {
						row := l.weights[base+i*l.filters : base+(i+1)*l.filters]
						var s float64
						for f, wv := range row {
							s += delta[f] * wv
						}
						gi[i] += s
					}
				}
			}
		}
	}
	return gradIn
}

type maxPool2D struct {
	size int
}

func (l *maxPool2D) outShape(h, w, c int) (int, int, int) {
	return h / l.size, w / l.size, c
}

// argmax returns the input offset of the window maximum (first in scan order).
func (l *maxPool2D) argmax(in volume, y, x, ch int) int {
	best := -1
	for dy := range l.size {
		for dx := range l.size {
			i := ((y*l.size+dy)*in.w+(x*l.size+dx))*in.c + ch
			if best < 0 || in.data[i] > in.data[best] {
				best = i
			}
		}
	}
	return best
}

func (l *maxPool2D) forward(in volume) volume {
	oh, ow, c := l.outShape(in.h, in.w, in.c)
	out := newVolume(oh, ow, c)
	for y := range oh {
		for x := range ow {
			for ch := range c {
				out.data[(y*ow+x)*c+ch] = in.data[l.argmax(in, y, x, ch)]
			}
		}
	}
	return out
}

func (l *maxPool2D) backward(in, out, gradOut volume) volume {
	gradIn := newVolume(in.h, in.w, in.c)
	for y := range out.h {
		for x := range out.w {
			for ch := range out.c {
				gradIn.data[l.argmax(in, y, x, ch)] += gradOut.data[(y*out.w+x)*out.c+ch]
			}
		}
	}
	return gradIn
}

type globalAvgPool struct{}

func (globalAvgPool) outShape(_, _, c int) (int, int, int) {
	return 1, 1, c
}

func (globalAvgPool) forward(in volume) volume {
	out := newVolume(1, 1, in.c)
	n := float64(in.h * in.w)
	for p := range in.h * in.w {
		for ch := range in.c {
			out.data[ch] += in.data[p*in.c+ch]
		}
	}
	for ch := range out.data {
		out.data[ch] /= n
	}
	return out
}

func (globalAvgPool) backward(in, _, gradOut volume) volume {
	gradIn := newVolume(in.h, in.w, in.c)
	n := float64(in.h * in.w)
	for p := range in.h * in.w {
		for ch := range in.c {
			gradIn.data[p*in.c+ch] = gradOut.data[ch] / n
		}
	}
	return gradIn
}

type flatten struct{}

func (flatten) outShape(h, w, c int) (int, int, int) {
	return 1, 1, h * w * c
}

func (flatten) forward(in volume) volume {
	return volume{h: 1, w: 1, c: in.h * in.w * in.c, data: in.data}
}

func (flatten) backward(in, _, gradOut volume) volume {
	return volume{h: in.h, w: in.w, c: in.c, data: gradOut.data}
}

type dense struct {
	in, units int
	weights   []float64
	bias      []float64
	act       activation
}

func newDense(ls LayerSpec, in int) (*dense, error) {
	if ls.Units <= 0 {
		return nil, fmt.Errorf("invalid units %d", ls.Units)
	}
	act, err := parseActivation(ls.Activation)
	if err != nil {
		return nil, err
	}
	if len(ls.Weights) != in*ls.Units {
		return nil, fmt.Errorf("dense weights length %d, want %d", len(ls.Weights), in*ls.Units)
	}
	bias, err := biasFor(ls.Bias, ls.Units)
	if err != nil {
		return nil, err
	}
	return &dense{in: in, units: ls.Units, weights: toFloat64(ls.Weights), bias: bias, act: act}, nil
}

func (l *dense) outShape(_, _, _ int) (int, int, int) {
	return 1, 1, l.units
}

func (l *dense) forward(in volume) volume {
	out := newVolume(1, 1, l.units)
	copy(out.data, l.bias)
	for i, v := range in.data {
		if v == 0 {
			continue
		}
		row := l.weights[i*l.units : (i+1)*l.units]
		for o, wv := range row {
			out.data[o] += v * wv
		}
	}
	for o := range out.data {
		out.data[o] = l.act.apply(out.data[o])
	}
	return out
}

func (l *dense) backward(in, out, gradOut volume) volume {
	gradIn := newVolume(in.h, in.w, in.c)
	delta := make([]float64, l.units)
	for o := range delta {
		delta[o] = gradOut.data[o] * l.act.derivative(out.data[o])
	}
	for i := range gradIn.data {
		row := l.weights[i*l.units : (i+1)*l.units]
		var s float64
		for o, wv := range row {
			s += delta[o] * wv
		}
		gradIn.data[i] = s
	}
	return gradIn
}

func toFloat64(in []float32) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func biasFor(b []float32, n int) ([]float64, error) {
	if len(b) == 0 {
		return make([]float64, n), nil
	}
	if len(b) != n {
		return nil, fmt.Errorf("bias length %d, want %d", len(b), n)
	}
	return toFloat64(b), nil
}
