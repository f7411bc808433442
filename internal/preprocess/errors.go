package preprocess

import (
	"errors"
	"fmt"
)

// ErrImageTooLarge is wrapped by DecodeError when an image exceeds the pixel limit.
var ErrImageTooLarge = errors.New("image exceeds pixel limit")

// DecodeError reports input that cannot be interpreted as an RGB image:
// non-image bytes, corrupt files or zero-dimension rasters.
type DecodeError struct {
	Source string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("decode error: %v", e.Err)
	}
	return fmt.Sprintf("decode error in %s: %v", e.Source, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
