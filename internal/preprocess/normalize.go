package preprocess

import (
	"fmt"
	"image"
	"strings"

	"github.com/MeKo-Tech/wastelens/internal/mempool"
	"github.com/MeKo-Tech/wastelens/internal/onnx"
	"github.com/disintegration/imaging"
)

// Default classifier input size.
const (
	DefaultWidth  = 150
	DefaultHeight = 150
	Channels      = 3
)

// Config controls input normalization.
type Config struct {
	Width  int
	Height int
	// Filter is one of "nearest", "linear", "bicubic", "lanczos".
	Filter string
}

// DefaultConfig returns the 150x150 bicubic configuration the classifier was trained with.
func DefaultConfig() Config {
	return Config{Width: DefaultWidth, Height: DefaultHeight, Filter: "bicubic"}
}

// ResampleFilter maps a filter name to an imaging filter.
func ResampleFilter(name string) (imaging.ResampleFilter, error) {
	switch strings.ToLower(name) {
	case "nearest":
		return imaging.NearestNeighbor, nil
	case "linear", "bilinear":
		return imaging.Linear, nil
	case "", "bicubic", "catmullrom":
		return imaging.CatmullRom, nil
	case "lanczos":
		return imaging.Lanczos, nil
	default:
		return imaging.ResampleFilter{}, fmt.Errorf("unknown resample filter: %s", name)
	}
}

// Preprocessor turns decoded images into classifier input tensors.
type Preprocessor struct {
	cfg    Config
	filter imaging.ResampleFilter
}

// New validates cfg and returns a Preprocessor.
func New(cfg Config) (*Preprocessor, error) {
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, fmt.Errorf("invalid target size %dx%d", cfg.Width, cfg.Height)
	}
	f, err := ResampleFilter(cfg.Filter)
	if err != nil {
		return nil, err
	}
	return &Preprocessor{cfg: cfg, filter: f}, nil
}

// Config returns the preprocessor configuration.
func (p *Preprocessor) Config() Config {
	return p.cfg
}

// Normalize resizes img to the target size, scales channels to [0,1] and
// returns a [1, H, W, 3] NHWC tensor. The data comes from a shared pool;
// hand it back with Release when the model is done with it.
func (p *Preprocessor) Normalize(img image.Image) (onnx.Tensor, error) {
	if err := checkBounds(img); err != nil {
		return onnx.Tensor{}, err
	}

	resized := imaging.Resize(flatten(img), p.cfg.Width, p.cfg.Height, p.filter)
	w, h := p.cfg.Width, p.cfg.Height
	data := mempool.GetFloat32(h * w * Channels)
	for y := range h {
		row := resized.Pix[y*resized.Stride : y*resized.Stride+w*4]
		for x := range w {
			i := (y*w + x) * Channels
			data[i] = float32(row[x*4]) / 255.0
			data[i+1] = float32(row[x*4+1]) / 255.0
			data[i+2] = float32(row[x*4+2]) / 255.0
		}
	}
	return onnx.NewImageTensor(data, h, w, Channels)
}

// flatten drops alpha and keeps the stored colour, so transparent pixels
// resample the same way at every input size.
func flatten(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// Release returns the tensor data to the buffer pool. t must not be used afterwards.
func Release(t onnx.Tensor) {
	mempool.PutFloat32(t.Data)
}

var defaultPreprocessor = &Preprocessor{cfg: DefaultConfig(), filter: imaging.CatmullRom}

// Normalize converts img into the default 1x150x150x3 tensor.
func Normalize(img image.Image) (onnx.Tensor, error) {
	return defaultPreprocessor.Normalize(img)
}
