package matching_test

import (
	"context"
	"image"
	"strings"
	"testing"

	"github.com/Goosie/nostr-object-identity/internal/canonical"
	"github.com/Goosie/nostr-object-identity/internal/logging"
	"github.com/Goosie/nostr-object-identity/internal/matching"
	"github.com/Goosie/nostr-object-identity/internal/phash"
	"github.com/Goosie/nostr-object-identity/internal/testsupport"
)

const hexDigits = "0123456789abcdef"

// flipBits returns fp with the given bit positions inverted, counting from
// the most significant bit of the first hex digit.
func flipBits(t *testing.T, fp phash.Fingerprint, positions ...int) phash.Fingerprint {
	t.Helper()
	digits := []byte(fp.Hex)
	for _, pos := range positions {
		i := pos / 4
		if i >= len(digits) {
			t.Fatalf("bit %d out of range", pos)
		}
		n := strings.IndexByte(hexDigits, digits[i])
		n ^= 1 << (3 - pos%4)
		digits[i] = hexDigits[n]
	}
	return phash.Fingerprint{Hex: string(digits), Kind: fp.Kind}
}

func bitRange(from, count int) []int {
	out := make([]int, count)
	for i := range out {
		out[i] = from + i
	}
	return out
}

func newGenerator() *phash.Generator {
	return phash.NewGenerator(4, logging.NewNop())
}

func canonicalize(t *testing.T, data []byte) *image.RGBA {
	t.Helper()
	img, err := canonical.New(0).Canonicalize(context.Background(), data)
	if err != nil {
		t.Fatalf("canonicalize: %v", err)
	}
	return img
}

func blockBytes(t *testing.T, seed uint64) []byte {
	t.Helper()
	return testsupport.EncodePNG(t, testsupport.BlockImage(seed, 512))
}

func storeOf(t *testing.T, entries ...matching.Entry) *matching.MemoryStore {
	t.Helper()
	store := matching.NewMemoryStore()
	for _, e := range entries {
		if err := store.Add(e); err != nil {
			t.Fatalf("add %s: %v", e.RecordID, err)
		}
	}
	return store
}
