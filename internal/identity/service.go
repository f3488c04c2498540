package identity

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Goosie/nostr-object-identity/internal/canonical"
	"github.com/Goosie/nostr-object-identity/internal/config"
	"github.com/Goosie/nostr-object-identity/internal/logging"
	"github.com/Goosie/nostr-object-identity/internal/matching"
	"github.com/Goosie/nostr-object-identity/internal/phash"
	"github.com/Goosie/nostr-object-identity/internal/registry"
	"github.com/Goosie/nostr-object-identity/internal/services"
)

const component = "identity"

// Service coordinates fingerprinting, duplicate detection and verification
// against a registry.
type Service struct {
	cfg      *config.Config
	registry *registry.Store
	canon    *canonical.Canonicalizer
	gen      *phash.Generator
	detector *matching.DuplicateDetector
	verifier *matching.Verifier
	logger   *slog.Logger
}

// New wires a service from configuration. reg may be nil for operations
// that never touch the registry (Fingerprint, Compare).
func New(cfg *config.Config, reg *registry.Store, logger *slog.Logger) *Service {
	logger = logging.NewComponentLogger(logger, component)
	canon := canonical.New(cfg.CanonicalizeTimeout())
	gen := phash.NewGenerator(cfg.Matching.Workers, logger)

	policy := matching.DefaultPolicy()
	policy.DirectThreshold = cfg.Matching.DirectThreshold
	policy.RotationThreshold = cfg.Matching.RotationThreshold
	policy.Auxiliary = cfg.Matching.AuxiliarySignatures

	return &Service{
		cfg:      cfg,
		registry: reg,
		canon:    canon,
		gen:      gen,
		detector: matching.NewDuplicateDetector(canon, gen, logger),
		verifier: matching.NewVerifier(canon, gen, policy, logger),
		logger:   logger,
	}
}

// RegisterOptions carries caller-supplied record metadata.
type RegisterOptions struct {
	// ID overrides the generated record id.
	ID    string
	Label string
}

func (s *Service) strictOptions() matching.MatchOptions {
	opts := matching.StrictOptions()
	opts.Threshold = s.cfg.Matching.StrictThreshold
	return opts
}

func (s *Service) requireRegistry(op string) error {
	if s.registry == nil {
		return services.Wrap(services.ErrConfiguration, component, op, "registry not opened", nil)
	}
	return nil
}

// Register stores data as a new object unless it duplicates an existing
// record, in which case a *DuplicateError is returned.
func (s *Service) Register(ctx context.Context, data []byte, opts RegisterOptions) (*registry.Record, error) {
	ctx = services.WithOperation(ctx, "register")
	if err := s.requireRegistry("register"); err != nil {
		return nil, err
	}
	logger := logging.WithContext(ctx, s.logger)
	started := time.Now()

	unlock, err := s.registry.Lock(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrTimeout, component, "register", "registry busy", err)
	}
	defer unlock()

	id := strings.TrimSpace(opts.ID)
	if id != "" {
		existing, err := s.registry.Get(ctx, id)
		if err != nil {
			return nil, services.Wrap(services.ErrInternal, component, "register", "look up record id", err)
		}
		if existing != nil {
			return nil, services.Wrap(services.ErrConflict, component, "register", fmt.Sprintf("record id %q already registered", id), nil)
		}
	}

	snapshot, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, component, "register", "load registry", err)
	}
	inspection, err := s.detector.Inspect(ctx, data, snapshot, s.strictOptions())
	if err != nil {
		return nil, classify("register", err)
	}
	if inspection.Match != nil {
		logger.Info("registration rejected as duplicate",
			logging.Args(append(logging.DecisionAttrs("duplicate_check", "duplicate", "within strict threshold"),
				logging.String(logging.FieldRecordID, inspection.Match.RecordID),
				logging.Int("distance", inspection.Match.Distance),
				logging.String("variant", inspection.Match.Variant),
			)...)...,
		)
		return nil, &DuplicateError{Match: *inspection.Match}
	}

	rec := &registry.Record{
		ID:          id,
		Fingerprint: inspection.Bundle.Primary,
		Label:       opts.Label,
	}
	if s.cfg.Matching.AuxiliarySignatures {
		aux, err := matching.ComputeAux(inspection.Canonical)
		if err != nil {
			logging.WarnWithContext(logger, "auxiliary signatures not stored", "aux_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "verification reports for this record omit similarity scores"),
			)
		} else {
			rec.Aux = aux
		}
	}

	stored, err := s.registry.Insert(ctx, rec)
	if err != nil {
		if errors.Is(err, registry.ErrRecordExists) || errors.Is(err, registry.ErrFingerprintExists) {
			return nil, services.Wrap(services.ErrConflict, component, "register", "insert record", err)
		}
		return nil, services.Wrap(services.ErrInternal, component, "register", "insert record", err)
	}
	logger.Info("object registered",
		logging.String(logging.FieldRecordID, stored.ID),
		logging.String("fingerprint", stored.Fingerprint.String()),
		logging.Bool("aux_stored", stored.Aux.HasColor() || stored.Aux.HasEdge()),
		logging.Duration("elapsed", time.Since(started)),
	)
	return stored, nil
}

// Check reports the record data duplicates under the strict rule, or nil.
func (s *Service) Check(ctx context.Context, data []byte) (*matching.MatchResult, error) {
	ctx = services.WithOperation(ctx, "check")
	if err := s.requireRegistry("check"); err != nil {
		return nil, err
	}
	snapshot, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, component, "check", "load registry", err)
	}
	match, err := s.detector.FindBestMatch(ctx, data, snapshot, s.strictOptions())
	if err != nil {
		return nil, classify("check", err)
	}
	return match, nil
}

// Verify runs the staged verification of data against the registry.
func (s *Service) Verify(ctx context.Context, data []byte) (*matching.Report, error) {
	ctx = services.WithOperation(ctx, "verify")
	if err := s.requireRegistry("verify"); err != nil {
		return nil, err
	}
	snapshot, err := s.registry.Snapshot(ctx)
	if err != nil {
		return nil, services.Wrap(services.ErrInternal, component, "verify", "load registry", err)
	}
	report, err := s.verifier.Verify(ctx, data, snapshot)
	if err != nil {
		return nil, classify("verify", err)
	}
	return report, nil
}

// Fingerprint returns the bundle for data without consulting the registry.
func (s *Service) Fingerprint(ctx context.Context, data []byte) (*phash.Bundle, error) {
	canon, err := s.canon.Canonicalize(services.WithOperation(ctx, "fingerprint"), data)
	if err != nil {
		return nil, classify("fingerprint", err)
	}
	bundle := s.gen.Bundle(ctx, canon)
	return &bundle, nil
}

// Comparison is the primary fingerprint distance between two images.
type Comparison struct {
	Left     phash.Fingerprint `json:"left"`
	Right    phash.Fingerprint `json:"right"`
	Distance int               `json:"distance"`
	// Comparable is false when one side fell back to a statistics digest
	// and the other did not.
	Comparable bool `json:"comparable"`
	Duplicate  bool `json:"duplicate"`
}

// Compare fingerprints two images and measures their distance.
func (s *Service) Compare(ctx context.Context, left, right []byte) (*Comparison, error) {
	ctx = services.WithOperation(ctx, "compare")
	prints := make([]phash.Fingerprint, 0, 2)
	for _, data := range [][]byte{left, right} {
		canon, err := s.canon.Canonicalize(ctx, data)
		if err != nil {
			return nil, classify("compare", err)
		}
		prints = append(prints, s.gen.Primary(canon))
	}
	cmp := &Comparison{Left: prints[0], Right: prints[1], Distance: -1}
	if !cmp.Left.Comparable(cmp.Right) {
		return cmp, nil
	}
	d, err := phash.Distance(cmp.Left, cmp.Right)
	if err != nil {
		return nil, classify("compare", err)
	}
	cmp.Comparable = true
	cmp.Distance = d
	cmp.Duplicate = d <= s.cfg.Matching.StrictThreshold
	return cmp, nil
}

// Remove deletes a record under the registry write lock.
func (s *Service) Remove(ctx context.Context, id string) error {
	ctx = services.WithRecordID(services.WithOperation(ctx, "remove"), id)
	if err := s.requireRegistry("remove"); err != nil {
		return err
	}
	unlock, err := s.registry.Lock(ctx)
	if err != nil {
		return services.Wrap(services.ErrTimeout, component, "remove", "registry busy", err)
	}
	defer unlock()

	removed, err := s.registry.Remove(ctx, id)
	if err != nil {
		return services.Wrap(services.ErrInternal, component, "remove", "delete record", err)
	}
	if !removed {
		return services.Wrap(services.ErrNotFound, component, "remove", fmt.Sprintf("record %q", id), nil)
	}
	logging.WithContext(ctx, s.logger).Info("record removed")
	return nil
}

// Params describes the fingerprint generator in use.
func (s *Service) Params() phash.Params { return s.gen.Params() }

// Policy describes the verification policy in use.
func (s *Service) Policy() matching.Policy { return s.verifier.Policy() }

func classify(op string, err error) error {
	var unsupported *canonical.UnsupportedImageError
	if errors.As(err, &unsupported) {
		marker := services.ErrValidation
		if unsupported.ErrorKind() == "timeout" {
			marker = services.ErrTimeout
		}
		return services.Wrap(marker, component, op, "canonicalize image", err)
	}
	return services.Wrap(services.ErrInternal, component, op, "fingerprint comparison", err)
}
