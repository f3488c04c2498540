package phash

import (
	"context"
	"fmt"
	"image"

	"golang.org/x/sync/errgroup"

	"github.com/Goosie/nostr-object-identity/internal/canonical"
	"github.com/Goosie/nostr-object-identity/internal/logging"
)

// Variants transforms canon with each transform, re-canonicalizes the
// result and fingerprints it. Work runs in parallel up to the generator's
// worker limit; the result keeps transform order. Variants that fail are
// logged and left out, so the result may be shorter than transforms.
func (g *Generator) Variants(ctx context.Context, canon image.Image, transforms []canonical.Transform) []Variant {
	if len(transforms) == 0 {
		return nil
	}
	slots := make([]*Variant, len(transforms))

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(g.workers)
	for i, tr := range transforms {
		group.Go(func() error {
			if err := gctx.Err(); err != nil {
				g.warnVariant(tr, err)
				return nil
			}
			fp, err := g.variant(canon, tr)
			if err != nil {
				g.warnVariant(tr, err)
				return nil
			}
			slots[i] = &Variant{Transform: tr, Fingerprint: fp}
			return nil
		})
	}
	_ = group.Wait()

	out := make([]Variant, 0, len(slots))
	for _, v := range slots {
		if v != nil {
			out = append(out, *v)
		}
	}
	return out
}

func (g *Generator) variant(canon image.Image, tr canonical.Transform) (fp Fingerprint, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("variant %s panicked: %v", tr.Label(), r)
		}
	}()
	transformed, err := canonical.Apply(canon, tr)
	if err != nil {
		return Fingerprint{}, err
	}
	recanon, err := canonical.CanonicalizeImage(transformed)
	if err != nil {
		return Fingerprint{}, err
	}
	return g.Primary(recanon), nil
}

func (g *Generator) warnVariant(tr canonical.Transform, err error) {
	logging.WarnWithContext(g.logger, "variant fingerprint skipped", "variant_failed",
		logging.String("variant", tr.Label()),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "the remaining variants are still compared"),
		logging.String(logging.FieldImpact, "duplicate detection is less tolerant for this transform"),
	)
}
