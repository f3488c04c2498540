package registry_test

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/Goosie/nostr-object-identity/internal/matching"
	"github.com/Goosie/nostr-object-identity/internal/phash"
	"github.com/Goosie/nostr-object-identity/internal/registry"
	"github.com/Goosie/nostr-object-identity/internal/testsupport"
)

func fingerprint(digit string) phash.Fingerprint {
	return phash.MustParse(strings.Repeat(digit, phash.HexLength))
}

func TestInsertAndGet(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRegistry(t, cfg)
	ctx := context.Background()

	aux := matching.AuxSignatures{
		ColorHistogram: make([]float64, 64),
		EdgeHash:       []uint64{1, 2, 3, 0xffffffffffffffff},
	}
	aux.ColorHistogram[5] = 1

	// "e" followed by combining acute accent normalizes to a single rune.
	rec, err := store.Insert(ctx, &registry.Record{Fingerprint: fingerprint("a"), Label: "  cafe\u0301 ", Aux: aux})
	if err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if rec.ID == "" || rec.Seq == 0 {
		t.Fatalf("expected generated id and seq, got %+v", rec)
	}
	if rec.Label != "caf\u00e9" {
		t.Fatalf("label = %q", rec.Label)
	}
	if rec.GeneratorVersion != phash.Version {
		t.Fatalf("generator version = %q", rec.GeneratorVersion)
	}

	got, err := store.Get(ctx, rec.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil || got.Fingerprint != rec.Fingerprint || got.Label != rec.Label {
		t.Fatalf("Get returned %+v", got)
	}
	if !got.Aux.HasColor() || got.Aux.ColorHistogram[5] != 1 {
		t.Fatalf("color histogram not persisted: %+v", got.Aux.ColorHistogram)
	}
	if len(got.Aux.EdgeHash) != 4 || got.Aux.EdgeHash[3] != 0xffffffffffffffff {
		t.Fatalf("edge hash not persisted: %v", got.Aux.EdgeHash)
	}
	if time.Since(got.CreatedAt) > time.Minute {
		t.Fatalf("unexpected created_at %v", got.CreatedAt)
	}

	missing, err := store.Get(ctx, "nope")
	if err != nil || missing != nil {
		t.Fatalf("Get missing = %+v, %v", missing, err)
	}

	byFP, err := store.FindByFingerprint(ctx, fingerprint("a"))
	if err != nil || byFP == nil || byFP.ID != rec.ID {
		t.Fatalf("FindByFingerprint = %+v, %v", byFP, err)
	}
}

func TestInsertRejectsConflicts(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if _, err := store.Insert(ctx, &registry.Record{ID: "obj-1", Fingerprint: fingerprint("1")}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if _, err := store.Insert(ctx, &registry.Record{ID: "obj-1", Fingerprint: fingerprint("2")}); !errors.Is(err, registry.ErrRecordExists) {
		t.Fatalf("expected ErrRecordExists, got %v", err)
	}
	if _, err := store.Insert(ctx, &registry.Record{ID: "obj-2", Fingerprint: fingerprint("1")}); !errors.Is(err, registry.ErrFingerprintExists) {
		t.Fatalf("expected ErrFingerprintExists, got %v", err)
	}
	fallback := phash.Fingerprint{Hex: fingerprint("1").Hex, Kind: phash.KindFallback}
	if _, err := store.Insert(ctx, &registry.Record{ID: "obj-3", Fingerprint: fallback}); err != nil {
		t.Fatalf("same digits under another kind should be accepted: %v", err)
	}
	if _, err := store.Insert(ctx, &registry.Record{Fingerprint: phash.MustParse("abc")}); err == nil {
		t.Fatal("expected error for short fingerprint")
	}
}

func TestListRemoveCountAndSnapshot(t *testing.T) {
	store := testsupport.MustOpenRegistry(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, digit := range []string{"3", "1", "2"} {
		if _, err := store.Insert(ctx, &registry.Record{ID: "obj-" + digit, Fingerprint: fingerprint(digit)}); err != nil {
			t.Fatalf("Insert %s: %v", digit, err)
		}
	}

	records, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(records) != 3 || records[0].ID != "obj-3" || records[2].ID != "obj-2" {
		t.Fatalf("List out of insertion order: %+v", records)
	}

	snapshot, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	entries := snapshot.Entries()
	if len(entries) != 3 || entries[0].RecordID != "obj-3" || entries[1].RecordID != "obj-1" {
		t.Fatalf("snapshot order: %+v", entries)
	}

	removed, err := store.Remove(ctx, "obj-1")
	if err != nil || !removed {
		t.Fatalf("Remove = %v, %v", removed, err)
	}
	removed, err = store.Remove(ctx, "obj-1")
	if err != nil || removed {
		t.Fatalf("second Remove = %v, %v", removed, err)
	}
	count, err := store.Count(ctx)
	if err != nil || count != 2 {
		t.Fatalf("Count = %d, %v", count, err)
	}
}

func TestReopenChecksGeneratorVersion(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store, err := registry.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.Insert(context.Background(), &registry.Record{ID: "keep", Fingerprint: fingerprint("9")}); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	_ = store.Close()

	reopened, err := registry.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if rec, err := reopened.Get(context.Background(), "keep"); err != nil || rec == nil {
		t.Fatalf("record lost across reopen: %+v, %v", rec, err)
	}
	_ = reopened.Close()

	db, err := sql.Open("sqlite", cfg.RegistryPath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET generator_version = 'ahash8-v0'"); err != nil {
		t.Fatalf("rewrite generator version: %v", err)
	}
	_ = db.Close()

	if _, err := registry.Open(cfg); !errors.Is(err, registry.ErrGeneratorMismatch) {
		t.Fatalf("expected ErrGeneratorMismatch, got %v", err)
	}

	db, err = sql.Open("sqlite", cfg.RegistryPath())
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	if _, err := db.Exec("UPDATE schema_version SET version = 99"); err != nil {
		t.Fatalf("rewrite schema version: %v", err)
	}
	_ = db.Close()

	if _, err := registry.Open(cfg); !errors.Is(err, registry.ErrSchemaMismatch) {
		t.Fatalf("expected ErrSchemaMismatch, got %v", err)
	}
}

func TestLockExcludesSecondWriter(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := testsupport.MustOpenRegistry(t, cfg)
	second := testsupport.MustOpenRegistry(t, cfg)

	unlock, err := first.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	if _, err := second.Lock(ctx); err == nil {
		t.Fatal("second writer acquired a held lock")
	}

	unlock()
	unlockSecond, err := second.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock after release: %v", err)
	}
	unlockSecond()
}

func TestLockSerializesSharedStore(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenRegistry(t, cfg)

	unlock, err := store.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}

	acquired := make(chan func(), 1)
	go func() {
		next, err := store.Lock(context.Background())
		if err != nil {
			t.Errorf("Lock from second goroutine: %v", err)
			close(acquired)
			return
		}
		acquired <- next
	}()

	select {
	case <-acquired:
		t.Fatal("second goroutine acquired the lock while it was held")
	case <-time.After(150 * time.Millisecond):
	}

	unlock()
	select {
	case next, ok := <-acquired:
		if !ok {
			t.Fatal("second goroutine failed to lock")
		}
		next()
	case <-time.After(2 * time.Second):
		t.Fatal("second goroutine never acquired the released lock")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	release, err := store.Lock(context.Background())
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer release()
	if _, err := store.Lock(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled while held, got %v", err)
	}
}
