package canonical

import (
	"context"
	"errors"
	"fmt"
)

// UnsupportedImageError reports input that cannot be turned into a canonical
// raster. It is fatal to the call that produced it.
type UnsupportedImageError struct {
	Reason string
	Err    error
}

func (e *UnsupportedImageError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return fmt.Sprintf("unsupported image: %s: %v", e.Reason, e.Err)
	}
	return "unsupported image: " + e.Reason
}

func (e *UnsupportedImageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// ErrorKind classifies the error for services.Kind.
func (e *UnsupportedImageError) ErrorKind() string {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return "timeout"
	}
	return "validation"
}

func unsupported(reason string, err error) error {
	return &UnsupportedImageError{Reason: reason, Err: err}
}
