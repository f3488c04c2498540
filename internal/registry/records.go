package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"

	"github.com/Goosie/nostr-object-identity/internal/matching"
	"github.com/Goosie/nostr-object-identity/internal/phash"
)

var (
	// ErrRecordExists reports an insert with an id that is already registered.
	ErrRecordExists = errors.New("record id already registered")
	// ErrFingerprintExists reports an insert of a fingerprint that is already registered.
	ErrFingerprintExists = errors.New("fingerprint already registered")
)

// Record is one registered object.
type Record struct {
	Seq              int64                  `json:"seq"`
	ID               string                 `json:"id"`
	Fingerprint      phash.Fingerprint      `json:"fingerprint"`
	Label            string                 `json:"label,omitempty"`
	Aux              matching.AuxSignatures `json:"-"`
	GeneratorVersion string                 `json:"generator_version"`
	CreatedAt        time.Time              `json:"created_at"`
}

// Entry converts the record into a matching entry.
func (r *Record) Entry() matching.Entry {
	return matching.Entry{Fingerprint: r.Fingerprint, RecordID: r.ID, Aux: r.Aux}
}

// NormalizeLabel trims and NFC-normalizes a record label.
func NormalizeLabel(label string) string {
	return norm.NFC.String(strings.TrimSpace(label))
}

const recordColumns = `seq, record_id, fingerprint, kind, label, color_histogram, edge_hash, created_at`

// Insert stores rec. A missing ID is generated. The stored record, with Seq
// and CreatedAt populated, is returned.
func (s *Store) Insert(ctx context.Context, rec *Record) (*Record, error) {
	if rec == nil {
		return nil, errors.New("record is nil")
	}
	if len(rec.Fingerprint.Hex) != phash.HexLength {
		return nil, fmt.Errorf("insert record: fingerprint has %d hex digits, want %d", len(rec.Fingerprint.Hex), phash.HexLength)
	}
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		id = uuid.NewString()
	}
	kind := rec.Fingerprint.Kind
	if kind == "" {
		kind = phash.KindPerceptual
	}

	var histogram, edge any
	if rec.Aux.HasColor() {
		data, err := json.Marshal(rec.Aux.ColorHistogram)
		if err != nil {
			return nil, fmt.Errorf("marshal color histogram: %w", err)
		}
		histogram = string(data)
	}
	if rec.Aux.HasEdge() {
		edge = matching.EncodeEdgeHash(rec.Aux.EdgeHash)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin insert tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var count int
	if err := tx.QueryRowContext(ctx, "SELECT COUNT(1) FROM records WHERE record_id = ?", id).Scan(&count); err != nil {
		return nil, fmt.Errorf("check record id: %w", err)
	}
	if count > 0 {
		return nil, fmt.Errorf("%w: %s", ErrRecordExists, id)
	}
	var holder string
	err = tx.QueryRowContext(ctx,
		"SELECT record_id FROM records WHERE kind = ? AND fingerprint = ?", string(kind), rec.Fingerprint.Hex,
	).Scan(&holder)
	switch {
	case err == nil:
		return nil, fmt.Errorf("%w: held by %s", ErrFingerprintExists, holder)
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("check fingerprint: %w", err)
	}

	created := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO records (record_id, fingerprint, kind, label, color_histogram, edge_hash, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id,
		rec.Fingerprint.Hex,
		string(kind),
		nullableString(NormalizeLabel(rec.Label)),
		histogram,
		edge,
		created.Format(time.RFC3339Nano),
	)
	if err != nil {
		return nil, fmt.Errorf("insert record: %w", err)
	}
	seq, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit insert: %w", err)
	}

	stored := *rec
	stored.Seq = seq
	stored.ID = id
	stored.Fingerprint.Kind = kind
	stored.Label = NormalizeLabel(rec.Label)
	stored.GeneratorVersion = phash.Version
	stored.CreatedAt = created
	return &stored, nil
}

// Get fetches a record by id. It returns nil when the id is unknown.
func (s *Store) Get(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE record_id = ?`, strings.TrimSpace(id))
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get record: %w", err)
	}
	return rec, nil
}

// FindByFingerprint returns the record holding fp, or nil.
func (s *Store) FindByFingerprint(ctx context.Context, fp phash.Fingerprint) (*Record, error) {
	kind := fp.Kind
	if kind == "" {
		kind = phash.KindPerceptual
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT `+recordColumns+` FROM records WHERE kind = ? AND fingerprint = ?`, string(kind), fp.Hex,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by fingerprint: %w", err)
	}
	return rec, nil
}

// List returns every record in insertion order.
func (s *Store) List(ctx context.Context) ([]*Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+recordColumns+` FROM records ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return records, nil
}

// Remove deletes a record. It reports whether a record was deleted.
func (s *Store) Remove(ctx context.Context, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM records WHERE record_id = ?`, strings.TrimSpace(id))
	if err != nil {
		return false, fmt.Errorf("remove record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Count returns the number of registered records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM records`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count records: %w", err)
	}
	return count, nil
}

// Snapshot loads every record into an in-memory matching store.
func (s *Store) Snapshot(ctx context.Context) (*matching.MemoryStore, error) {
	records, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	snapshot := matching.NewMemoryStore()
	for _, rec := range records {
		if err := snapshot.Add(rec.Entry()); err != nil {
			return nil, fmt.Errorf("snapshot record %s: %w", rec.ID, err)
		}
	}
	return snapshot, nil
}

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		rec       Record
		kind      string
		label     sql.NullString
		histogram sql.NullString
		edge      sql.NullString
		created   string
	)
	if err := scanner.Scan(&rec.Seq, &rec.ID, &rec.Fingerprint.Hex, &kind, &label, &histogram, &edge, &created); err != nil {
		return nil, err
	}
	rec.Fingerprint.Kind = phash.Kind(kind)
	rec.Label = label.String
	rec.GeneratorVersion = phash.Version
	if histogram.Valid && histogram.String != "" {
		if err := json.Unmarshal([]byte(histogram.String), &rec.Aux.ColorHistogram); err != nil {
			return nil, fmt.Errorf("decode color histogram for %s: %w", rec.ID, err)
		}
	}
	if edge.Valid {
		words, err := matching.DecodeEdgeHash(edge.String)
		if err != nil {
			return nil, fmt.Errorf("record %s: %w", rec.ID, err)
		}
		rec.Aux.EdgeHash = words
	}
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return nil, fmt.Errorf("parse created_at for %s: %w", rec.ID, err)
	}
	rec.CreatedAt = ts
	return &rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
