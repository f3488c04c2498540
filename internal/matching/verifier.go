package matching

import (
	"context"
	"image"
	"log/slog"
	"slices"

	"github.com/Goosie/nostr-object-identity/internal/canonical"
	"github.com/Goosie/nostr-object-identity/internal/logging"
	"github.com/Goosie/nostr-object-identity/internal/phash"
)

// Stage names one verification step.
type Stage string

const (
	StageDirect   Stage = "direct"
	StageRotation Stage = "rotation"
	StageColor    Stage = "color"
	StageEdge     Stage = "edge"
)

// Policy holds the verifier's acceptance rules.
type Policy struct {
	DirectThreshold    int       `json:"direct_threshold"`
	RotationThreshold  int       `json:"rotation_threshold"`
	DirectConfidence   float64   `json:"direct_confidence"`
	RotationConfidence float64   `json:"rotation_confidence"`
	ProbeAngles        []float64 `json:"probe_angles"`
	// Auxiliary enables the color and edge similarity reports.
	Auxiliary bool `json:"auxiliary"`
}

// DefaultPolicy returns the standard verification policy.
func DefaultPolicy() Policy {
	return Policy{
		DirectThreshold:    3,
		RotationThreshold:  8,
		DirectConfidence:   0.95,
		RotationConfidence: 0.85,
		ProbeAngles:        []float64{5, 10, 15, 30, 45, 90, 180, 270, 345, 350, 355},
		Auxiliary:          true,
	}
}

func (p Policy) normalized() Policy {
	defaults := DefaultPolicy()
	if p.DirectThreshold < 0 {
		p.DirectThreshold = defaults.DirectThreshold
	}
	if p.RotationThreshold < 0 {
		p.RotationThreshold = defaults.RotationThreshold
	}
	if p.DirectConfidence <= 0 {
		p.DirectConfidence = defaults.DirectConfidence
	}
	if p.RotationConfidence <= 0 {
		p.RotationConfidence = defaults.RotationConfidence
	}
	if p.ProbeAngles == nil {
		p.ProbeAngles = defaults.ProbeAngles
	}
	return p
}

// StageResult records what one stage compared and found.
type StageResult struct {
	Stage     Stage `json:"stage"`
	Evaluated bool  `json:"evaluated"`
	Matched   bool  `json:"matched"`
	// Compared counts the fingerprint or signature pairs examined.
	Compared int `json:"compared"`
	// MinDistance is the smallest Hamming distance seen, -1 when nothing was
	// compared. Auxiliary stages leave it at -1.
	MinDistance int     `json:"min_distance"`
	RecordID    string  `json:"record_id,omitempty"`
	Angle       float64 `json:"angle,omitempty"`
	// Similarity is the best auxiliary score in [0,1].
	Similarity float64 `json:"similarity,omitempty"`
}

// Report is the outcome of a verification.
type Report struct {
	Matched     bool          `json:"matched"`
	Confidence  float64       `json:"confidence"`
	Method      Stage         `json:"method,omitempty"`
	RecordID    string        `json:"record_id,omitempty"`
	Distance    int           `json:"distance"`
	Angle       float64       `json:"angle,omitempty"`
	Fingerprint string        `json:"fingerprint"`
	Stages      []StageResult `json:"stages"`
}

// Stage returns the result of the named stage.
func (r *Report) Stage(name Stage) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}

// MinDistances maps each evaluated fingerprint stage to its closest distance.
func (r *Report) MinDistances() map[Stage]int {
	out := make(map[Stage]int)
	for _, s := range r.Stages {
		if s.Evaluated && (s.Stage == StageDirect || s.Stage == StageRotation) {
			out[s.Stage] = s.MinDistance
		}
	}
	return out
}

// Verifier runs the staged lookup for physical verification.
type Verifier struct {
	canon  *canonical.Canonicalizer
	gen    *phash.Generator
	policy Policy
	logger *slog.Logger
}

// NewVerifier wires a verifier.
func NewVerifier(canon *canonical.Canonicalizer, gen *phash.Generator, policy Policy, logger *slog.Logger) *Verifier {
	if canon == nil {
		canon = canonical.New(0)
	}
	return &Verifier{
		canon:  canon,
		gen:    gen,
		policy: policy.normalized(),
		logger: logging.NewComponentLogger(logger, "verifier"),
	}
}

// Policy returns the active policy.
func (v *Verifier) Policy() Policy { return v.policy }

// Verify canonicalizes data and runs the verification stages against store.
func (v *Verifier) Verify(ctx context.Context, data []byte, store Store) (*Report, error) {
	canon, err := v.canon.Canonicalize(ctx, data)
	if err != nil {
		return nil, err
	}
	return v.VerifyCanonical(ctx, canon, store)
}

// VerifyCanonical runs the verification stages for an already canonical raster.
// The first stage that matches decides; auxiliary stages only report.
func (v *Verifier) VerifyCanonical(ctx context.Context, canon image.Image, store Store) (*Report, error) {
	logger := logging.WithContext(ctx, v.logger)
	primary := v.gen.Primary(canon)
	report := &Report{Fingerprint: primary.String(), Distance: -1}

	entries := store.Entries()
	if len(entries) == 0 {
		return report, nil
	}

	direct, hit, err := scanFirst([]phash.Fingerprint{primary}, entries, v.policy.DirectThreshold)
	if err != nil {
		logging.ErrorWithContext(logger, "verification aborted", "verify_failed", logging.Error(err))
		return nil, err
	}
	direct.Stage = StageDirect
	report.Stages = append(report.Stages, direct)
	if hit != nil {
		v.accept(report, StageDirect, v.policy.DirectConfidence, hit.entry.RecordID, hit.distance, 0)
		logger.Info("verification matched", logging.Args(v.decision(report)...)...)
		return report, nil
	}

	probes := make([]canonical.Transform, 0, len(v.policy.ProbeAngles))
	for _, angle := range v.policy.ProbeAngles {
		probes = append(probes, canonical.Rotation(angle))
	}
	variants := v.gen.Variants(ctx, canon, probes)
	queries := make([]phash.Fingerprint, len(variants))
	for i, variant := range variants {
		queries[i] = variant.Fingerprint
	}
	rotation, hit, err := scanFirst(queries, entries, v.policy.RotationThreshold)
	if err != nil {
		logging.ErrorWithContext(logger, "verification aborted", "verify_failed", logging.Error(err))
		return nil, err
	}
	rotation.Stage = StageRotation
	if hit != nil {
		angle := variants[hit.query].Transform.Angle
		rotation.Angle = angle
		report.Stages = append(report.Stages, rotation)
		v.accept(report, StageRotation, v.policy.RotationConfidence, hit.entry.RecordID, hit.distance, angle)
		logger.Info("verification matched", logging.Args(v.decision(report)...)...)
		return report, nil
	}
	report.Stages = append(report.Stages, rotation)

	if v.policy.Auxiliary {
		report.Stages = append(report.Stages, v.auxiliary(logger, canon, entries)...)
	}
	logger.Info("verification found no match", logging.Args(v.decision(report)...)...)
	return report, nil
}

func (v *Verifier) accept(report *Report, stage Stage, confidence float64, recordID string, distance int, angle float64) {
	report.Matched = true
	report.Method = stage
	report.Confidence = confidence
	report.RecordID = recordID
	report.Distance = distance
	report.Angle = angle
	last := &report.Stages[len(report.Stages)-1]
	last.Matched = true
	last.RecordID = recordID
}

func (v *Verifier) decision(report *Report) []logging.Attr {
	result := "no_match"
	reason := "no stage produced a match"
	if report.Matched {
		result = "match"
		reason = string(report.Method) + " stage within threshold"
	}
	attrs := logging.DecisionAttrs("verification", result, reason)
	attrs = append(attrs, logging.Int("stages", len(report.Stages)))
	if report.Matched {
		attrs = append(attrs,
			logging.String(logging.FieldRecordID, report.RecordID),
			logging.Int("distance", report.Distance),
			logging.Float64("confidence", report.Confidence),
		)
	}
	return attrs
}

type scanHit struct {
	query    int
	entry    Entry
	distance int
}

// scanFirst compares each query, in order, against each comparable entry,
// in store order, and stops at the first pair within threshold.
func scanFirst(queries []phash.Fingerprint, entries []Entry, threshold int) (StageResult, *scanHit, error) {
	result := StageResult{Evaluated: true, MinDistance: -1}
	for qi, query := range queries {
		for _, entry := range entries {
			if !query.Comparable(entry.Fingerprint) {
				continue
			}
			d, err := phash.Distance(query, entry.Fingerprint)
			if err != nil {
				return result, nil, err
			}
			result.Compared++
			if result.MinDistance < 0 || d < result.MinDistance {
				result.MinDistance = d
			}
			if d <= threshold {
				return result, &scanHit{query: qi, entry: entry, distance: d}, nil
			}
		}
	}
	return result, nil, nil
}

// auxiliary reports the best color and edge similarities. It never affects
// the verdict.
func (v *Verifier) auxiliary(logger *slog.Logger, canon image.Image, entries []Entry) []StageResult {
	wantColor := slices.ContainsFunc(entries, func(e Entry) bool { return e.Aux.HasColor() })
	wantEdge := slices.ContainsFunc(entries, func(e Entry) bool { return e.Aux.HasEdge() })
	if !wantColor && !wantEdge {
		return nil
	}

	query, err := ComputeAux(canon)
	if err != nil {
		logging.WarnWithContext(logger, "auxiliary signatures unavailable", "aux_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "verification report omits similarity scores"),
		)
		return nil
	}

	var out []StageResult
	if wantColor {
		out = append(out, bestSimilarity(StageColor, entries, Entry.hasColor, func(e Entry) (float64, error) {
			return ColorSimilarity(query.ColorHistogram, e.Aux.ColorHistogram)
		}))
	}
	if wantEdge {
		out = append(out, bestSimilarity(StageEdge, entries, Entry.hasEdge, func(e Entry) (float64, error) {
			return EdgeSimilarity(query.EdgeHash, e.Aux.EdgeHash)
		}))
	}
	return out
}

func (e Entry) hasColor() bool { return e.Aux.HasColor() }

func (e Entry) hasEdge() bool { return e.Aux.HasEdge() }

func bestSimilarity(stage Stage, entries []Entry, present func(Entry) bool, score func(Entry) (float64, error)) StageResult {
	result := StageResult{Stage: stage, Evaluated: true, MinDistance: -1}
	for _, entry := range entries {
		if !present(entry) {
			continue
		}
		s, err := score(entry)
		if err != nil {
			continue
		}
		result.Compared++
		if result.RecordID == "" || s > result.Similarity {
			result.Similarity = s
			result.RecordID = entry.RecordID
		}
	}
	return result
}
