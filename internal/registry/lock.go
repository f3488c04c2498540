package registry

import (
	"context"
	"fmt"
	"time"
)

const lockRetryDelay = 50 * time.Millisecond

// Lock takes the registry write lock, retrying until ctx is done. The
// returned function releases it. Check-then-insert sequences must hold it.
//
// The file lock excludes other processes. A flock is re-entrant for the
// holder, so goroutines sharing one Store are serialized by a separate
// in-process slot taken first.
func (s *Store) Lock(ctx context.Context) (func(), error) {
	select {
	case s.writer <- struct{}{}:
	case <-ctx.Done():
		return nil, fmt.Errorf("acquire registry lock: %w", ctx.Err())
	}
	release := func() { <-s.writer }

	ok, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		release()
		return nil, fmt.Errorf("acquire registry lock: %w", err)
	}
	if !ok {
		release()
		return nil, fmt.Errorf("acquire registry lock: %s is held by another process", s.lock.Path())
	}
	return func() {
		_ = s.lock.Unlock()
		release()
	}, nil
}
