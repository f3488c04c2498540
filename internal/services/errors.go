package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("timeout")
)

// ErrorClassifier allows errors to declare their classification. Known kinds
// are "validation", "configuration", "not_found", "conflict", "timeout" and
// "internal".
type ErrorClassifier interface {
	ErrorKind() string
}

// Wrap builds an error message that includes operation context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrInternal
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Kind classifies err. Typed errors implementing ErrorClassifier win over
// sentinel markers; anything unrecognised is "internal".
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var classifier ErrorClassifier
	if errors.As(err, &classifier) {
		if kind := strings.TrimSpace(classifier.ErrorKind()); kind != "" {
			return kind
		}
	}
	switch {
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	default:
		return "internal"
	}
}

// ExitCode maps an error classification to a process exit status.
func ExitCode(err error) int {
	switch Kind(err) {
	case "":
		return 0
	case "conflict":
		return 3
	case "validation", "not_found":
		return 2
	default:
		return 1
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
