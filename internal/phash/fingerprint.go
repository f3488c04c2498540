package phash

import (
	"errors"
	"fmt"
	"strings"

	"github.com/steakknife/hamming"
)

// Kind distinguishes perceptual fingerprints from statistics fallbacks.
type Kind string

const (
	KindPerceptual Kind = "perceptual"
	KindFallback   Kind = "fallback"
)

const fallbackPrefix = "fb:"

// Fingerprint is a fixed-length lowercase hex digest.
type Fingerprint struct {
	Hex  string `json:"hex"`
	Kind Kind   `json:"kind"`
}

// String renders the fingerprint. Fallback fingerprints carry an "fb:"
// prefix so the two kinds never collide as text.
func (f Fingerprint) String() string {
	if f.Kind == KindFallback {
		return fallbackPrefix + f.Hex
	}
	return f.Hex
}

// IsZero reports whether the fingerprint is empty.
func (f Fingerprint) IsZero() bool { return f.Hex == "" }

// Comparable reports whether Distance between f and other is meaningful.
func (f Fingerprint) Comparable(other Fingerprint) bool {
	return f.kind() == other.kind()
}

func (f Fingerprint) kind() Kind {
	if f.Kind == "" {
		return KindPerceptual
	}
	return f.Kind
}

// ErrInvalidFingerprint reports malformed fingerprint text.
var ErrInvalidFingerprint = errors.New("invalid fingerprint")

// Parse reads the text form produced by String.
func Parse(text string) (Fingerprint, error) {
	text = strings.ToLower(strings.TrimSpace(text))
	kind := KindPerceptual
	if rest, ok := strings.CutPrefix(text, fallbackPrefix); ok {
		kind = KindFallback
		text = rest
	}
	if text == "" {
		return Fingerprint{}, fmt.Errorf("%w: empty", ErrInvalidFingerprint)
	}
	for i := 0; i < len(text); i++ {
		if _, ok := nibble(text[i]); !ok {
			return Fingerprint{}, fmt.Errorf("%w: non-hex digit %q at %d", ErrInvalidFingerprint, text[i], i)
		}
	}
	return Fingerprint{Hex: text, Kind: kind}, nil
}

// MustParse is Parse for literals known to be valid.
func MustParse(text string) Fingerprint {
	fp, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return fp
}

// LengthMismatchError reports a comparison between fingerprints of different
// lengths. It signals an internal invariant violation and is never retried.
type LengthMismatchError struct {
	Left  int
	Right int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("fingerprint length mismatch: %d vs %d hex digits", e.Left, e.Right)
}

// ErrorKind classifies the error for services.Kind.
func (e *LengthMismatchError) ErrorKind() string { return "internal" }

// Distance returns the number of differing bits between a and b.
func Distance(a, b Fingerprint) (int, error) {
	return HexDistance(a.Hex, b.Hex)
}

// HexDistance is Distance over raw hex text.
func HexDistance(a, b string) (int, error) {
	if len(a) != len(b) {
		return 0, &LengthMismatchError{Left: len(a), Right: len(b)}
	}
	dist := 0
	for i := 0; i < len(a); i++ {
		x, okA := nibble(a[i])
		y, okB := nibble(b[i])
		if !okA || !okB {
			return 0, fmt.Errorf("%w: non-hex digit at %d", ErrInvalidFingerprint, i)
		}
		dist += hamming.CountBitsInt(int(x ^ y))
	}
	return dist, nil
}

func nibble(c byte) (byte, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	default:
		return 0, false
	}
}
