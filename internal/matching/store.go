package matching

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/Goosie/nostr-object-identity/internal/phash"
)

// ErrDuplicateFingerprint is returned when a fingerprint is already present.
var ErrDuplicateFingerprint = errors.New("fingerprint already stored")

// Entry is one registered fingerprint.
type Entry struct {
	Fingerprint phash.Fingerprint
	RecordID    string
	Aux         AuxSignatures
}

// Store is an ordered, read-only view of registered fingerprints. Entries
// are returned in insertion order, which decides ties.
type Store interface {
	Len() int
	Entries() []Entry
}

// MemoryStore is an in-memory Store keyed by fingerprint text.
type MemoryStore struct {
	entries []Entry
	index   map[string]int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{index: make(map[string]int)}
}

// Add appends an entry. Fingerprints are unique keys.
func (s *MemoryStore) Add(entry Entry) error {
	if entry.Fingerprint.IsZero() {
		return errors.New("add entry: empty fingerprint")
	}
	if strings.TrimSpace(entry.RecordID) == "" {
		return errors.New("add entry: empty record id")
	}
	key := entry.Fingerprint.String()
	if existing, ok := s.index[key]; ok {
		return fmt.Errorf("%w: %s (record %s)", ErrDuplicateFingerprint, key, s.entries[existing].RecordID)
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, entry)
	return nil
}

// Put adds a fingerprint without auxiliary signatures.
func (s *MemoryStore) Put(fp phash.Fingerprint, recordID string) error {
	return s.Add(Entry{Fingerprint: fp, RecordID: recordID})
}

// Len returns the number of stored entries.
func (s *MemoryStore) Len() int { return len(s.entries) }

// Entries returns a copy of the stored entries in insertion order.
func (s *MemoryStore) Entries() []Entry { return slices.Clone(s.entries) }
