// Package concurrency wraps golang.org/x/sync/semaphore to implement the
// process/persistent-manager concurrency limits described by
// SpineEngine._set_resource_limits (one_shot_process_semaphore,
// persistent_process_semaphore), plus the "evict something idle if the
// semaphore can't be acquired promptly" fallback used by
// acquire_persistent_process in the original.
package concurrency

import (
	"context"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/specialistvlad/spine-engine-go/internal/settings"
)

// Limiter bounds concurrent one-shot process executions and concurrent
// persistent-manager instances independently, mirroring the two semaphores
// constructed by _set_resource_limits.
type Limiter struct {
	oneShot    *semaphore.Weighted
	persistent *semaphore.Weighted
}

// NewLimiter resolves process/persistent limits from s and builds the two
// semaphores. A ResourceLimit.Unlimited semaphore is represented with a very
// large weight rather than bypassing acquisition, so call sites don't need
// to special-case "no limit".
func NewLimiter(s *settings.AppSettings) (*Limiter, error) {
	oneShot, err := s.ProcessLimit()
	if err != nil {
		return nil, err
	}
	persistent, err := s.PersistentLimit()
	if err != nil {
		return nil, err
	}
	return &Limiter{
		oneShot:    semaphore.NewWeighted(weightOf(oneShot)),
		persistent: semaphore.NewWeighted(weightOf(persistent)),
	}, nil
}

func weightOf(limit settings.ResourceLimit) int64 {
	if limit.Unlimited {
		return 1 << 32
	}
	if limit.N < 1 {
		return 1
	}
	return int64(limit.N)
}

// AcquireOneShot blocks until a one-shot process slot is available or ctx is
// done.
func (l *Limiter) AcquireOneShot(ctx context.Context) error {
	return l.oneShot.Acquire(ctx, 1)
}

// ReleaseOneShot releases a previously acquired one-shot slot.
func (l *Limiter) ReleaseOneShot() {
	l.oneShot.Release(1)
}

// AcquirePersistent attempts to acquire a persistent-manager slot, and if it
// cannot do so within timeout, calls evictIdle to ask the caller to free one
// up (the original's "kill an idle group/isolated manager" fallback), then
// tries again, repeating until the slot is acquired. It gives up and returns
// ctx.Err() only if ctx itself is done.
func (l *Limiter) AcquirePersistent(ctx context.Context, timeout time.Duration, evictIdle func() bool) error {
	for {
		acquireCtx, cancel := context.WithTimeout(ctx, timeout)
		err := l.persistent.Acquire(acquireCtx, 1)
		cancel()
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if evictIdle == nil || !evictIdle() {
			continue
		}
	}
}

// ReleasePersistent releases a previously acquired persistent-manager slot.
func (l *Limiter) ReleasePersistent() {
	l.persistent.Release(1)
}
