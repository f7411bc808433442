package preprocess

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// SupportedImageExtensions lists file extensions accepted from disk.
var SupportedImageExtensions = []string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".webp"}

// IsSupportedImage reports whether the path has a supported image extension.
func IsSupportedImage(path string) bool {
	return slices.Contains(SupportedImageExtensions, strings.ToLower(filepath.Ext(path)))
}

// Decode reads and decodes an image, returning it together with its format name.
func Decode(r io.Reader) (image.Image, string, error) {
	if r == nil {
		return nil, "", &DecodeError{Err: errors.New("nil reader")}
	}
	img, format, err := image.Decode(r)
	if err != nil {
		return nil, "", &DecodeError{Err: err}
	}
	if err := checkBounds(img); err != nil {
		return nil, "", err
	}
	return img, format, nil
}

// DecodeBytes decodes an in-memory image. maxPixels > 0 rejects images whose
// header declares more pixels before the raster is decoded.
func DecodeBytes(data []byte, maxPixels int) (image.Image, string, error) {
	if len(data) == 0 {
		return nil, "", &DecodeError{Err: errors.New("empty input")}
	}
	if maxPixels > 0 {
		cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return nil, "", &DecodeError{Err: err}
		}
		if cfg.Width*cfg.Height > maxPixels {
			return nil, "", &DecodeError{
				Err: fmt.Errorf("%w: %dx%d > %d pixels", ErrImageTooLarge, cfg.Width, cfg.Height, maxPixels),
			}
		}
	}
	return Decode(bytes.NewReader(data))
}

// LoadImage opens and decodes an image file.
func LoadImage(path string) (image.Image, error) {
	if path == "" {
		return nil, &DecodeError{Err: errors.New("empty path")}
	}
	if !IsSupportedImage(path) {
		return nil, &DecodeError{Source: path, Err: fmt.Errorf("unsupported format: %s", filepath.Ext(path))}
	}

	f, err := os.Open(path) //nolint:gosec // G304: reading user-provided image path is expected
	if err != nil {
		return nil, &DecodeError{Source: path, Err: err}
	}
	defer func() {
		if err := f.Close(); err != nil {
			slog.Warn("failed to close image file", "path", path, "error", err)
		}
	}()

	img, _, err := Decode(f)
	if err != nil {
		var de *DecodeError
		if errors.As(err, &de) {
			de.Source = path
		}
		return nil, err
	}
	return img, nil
}

func checkBounds(img image.Image) error {
	if img == nil {
		return &DecodeError{Err: errors.New("input image is nil")}
	}
	b := img.Bounds()
	if b.Dx() < 1 || b.Dy() < 1 {
		return &DecodeError{Err: fmt.Errorf("zero-dimension image: %dx%d", b.Dx(), b.Dy())}
	}
	return nil
}
