package matching

import (
	"context"
	"fmt"
	"image"
	"log/slog"

	"github.com/Goosie/nostr-object-identity/internal/canonical"
	"github.com/Goosie/nostr-object-identity/internal/logging"
	"github.com/Goosie/nostr-object-identity/internal/phash"
)

// DefaultStrictThreshold is the registration duplicate threshold.
const DefaultStrictThreshold = 3

// MatchOptions controls a duplicate search.
type MatchOptions struct {
	// Threshold is the largest admissible Hamming distance.
	Threshold int
	// IncludeVariants also compares rotated and rescaled variants against
	// records the primary fingerprint did not admit.
	IncludeVariants bool
}

// StrictOptions returns the options used for registration.
func StrictOptions() MatchOptions {
	return MatchOptions{Threshold: DefaultStrictThreshold, IncludeVariants: true}
}

// MatchResult identifies the closest admissible stored record.
type MatchResult struct {
	RecordID    string            `json:"record_id"`
	Distance    int               `json:"distance"`
	Fingerprint phash.Fingerprint `json:"fingerprint"`
	// Variant names the transform that produced the match; empty for the
	// primary fingerprint.
	Variant string `json:"variant,omitempty"`
}

// Inspection is the full outcome of a duplicate search.
type Inspection struct {
	Canonical *image.RGBA
	Bundle    phash.Bundle
	Match     *MatchResult
}

// DuplicateDetector finds registered records that depict the same object.
type DuplicateDetector struct {
	canon  *canonical.Canonicalizer
	gen    *phash.Generator
	logger *slog.Logger
}

// NewDuplicateDetector wires a detector.
func NewDuplicateDetector(canon *canonical.Canonicalizer, gen *phash.Generator, logger *slog.Logger) *DuplicateDetector {
	if canon == nil {
		canon = canonical.New(0)
	}
	return &DuplicateDetector{
		canon:  canon,
		gen:    gen,
		logger: logging.NewComponentLogger(logger, "duplicate-detector"),
	}
}

// FindBestMatch returns the closest admissible record for data, or nil when
// nothing in store is within opts.Threshold.
func (d *DuplicateDetector) FindBestMatch(ctx context.Context, data []byte, store Store, opts MatchOptions) (*MatchResult, error) {
	inspection, err := d.Inspect(ctx, data, store, opts)
	if err != nil {
		return nil, err
	}
	return inspection.Match, nil
}

// Inspect is FindBestMatch that also returns the canonical raster and the
// bundle it computed.
func (d *DuplicateDetector) Inspect(ctx context.Context, data []byte, store Store, opts MatchOptions) (*Inspection, error) {
	if opts.Threshold < 0 {
		return nil, fmt.Errorf("match threshold must be non-negative, got %d", opts.Threshold)
	}
	canon, err := d.canon.Canonicalize(ctx, data)
	if err != nil {
		return nil, err
	}
	bundle := phash.Bundle{Primary: d.gen.Primary(canon)}
	if opts.IncludeVariants && store.Len() > 0 {
		bundle = d.gen.Bundle(ctx, canon)
	}
	match, err := MatchBundle(bundle, store, opts)
	if err != nil {
		logging.ErrorWithContext(d.logger, "duplicate search aborted", "match_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "registry contains fingerprints of a different length"),
		)
		return nil, err
	}
	if match != nil {
		d.logger.Debug("duplicate candidate found",
			logging.String(logging.FieldRecordID, match.RecordID),
			logging.Int("distance", match.Distance),
			logging.String("variant", match.Variant),
			logging.Bool("include_variants", opts.IncludeVariants),
		)
	}
	return &Inspection{Canonical: canon, Bundle: bundle, Match: match}, nil
}

// MatchBundle scans store in order and returns the best admissible record.
// Ties keep the earliest record. Entries of a different fingerprint kind
// are skipped.
func MatchBundle(bundle phash.Bundle, store Store, opts MatchOptions) (*MatchResult, error) {
	var best *MatchResult
	for _, entry := range store.Entries() {
		if !bundle.Primary.Comparable(entry.Fingerprint) {
			continue
		}
		d, err := phash.Distance(bundle.Primary, entry.Fingerprint)
		if err != nil {
			return nil, err
		}
		if d <= opts.Threshold {
			if best == nil || d < best.Distance {
				best = &MatchResult{RecordID: entry.RecordID, Distance: d, Fingerprint: entry.Fingerprint}
			}
			continue
		}
		if !opts.IncludeVariants {
			continue
		}
		for _, v := range bundle.Variants {
			if !v.Fingerprint.Comparable(entry.Fingerprint) {
				continue
			}
			vd, err := phash.Distance(v.Fingerprint, entry.Fingerprint)
			if err != nil {
				return nil, err
			}
			if vd <= opts.Threshold && (best == nil || vd < best.Distance) {
				best = &MatchResult{RecordID: entry.RecordID, Distance: vd, Fingerprint: entry.Fingerprint, Variant: v.Label()}
			}
		}
	}
	return best, nil
}
