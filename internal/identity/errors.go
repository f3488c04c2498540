package identity

import (
	"fmt"

	"github.com/Goosie/nostr-object-identity/internal/matching"
	"github.com/Goosie/nostr-object-identity/internal/services"
)

// DuplicateError rejects a registration whose image matches an existing record.
type DuplicateError struct {
	Match matching.MatchResult
}

func (e *DuplicateError) Error() string {
	msg := fmt.Sprintf("object already registered as %s (distance %d", e.Match.RecordID, e.Match.Distance)
	if e.Match.Variant != "" {
		msg += ", via " + e.Match.Variant
	}
	return msg + ")"
}

// ErrorKind classifies the error for services.Kind.
func (e *DuplicateError) ErrorKind() string { return "conflict" }

// Unwrap lets errors.Is match services.ErrConflict.
func (e *DuplicateError) Unwrap() error { return services.ErrConflict }
