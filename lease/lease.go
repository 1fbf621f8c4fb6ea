// Package lease provides per-key mutual exclusion with expiry, in process
// or across processes through Redis.
package lease

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
)

// ErrHeld is returned by Acquire when another holder owns the key.
var ErrHeld = errors.New("lease: held")

// Lease is an acquired key. Release is safe to call after expiry and
// never frees a key that was re-acquired by someone else.
type Lease interface {
	Release(ctx context.Context) error
}

// Locker hands out leases. Acquire does not block.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error)
}

// MeetingKey is the lease key guarding a meeting's transcript.
func MeetingKey(meetingID int64) string {
	return "transcriber:meeting:" + strconv.FormatInt(meetingID, 10)
}

// Wait retries Acquire every poll until it succeeds or ctx is done.
func Wait(ctx context.Context, l Locker, key string, ttl, poll time.Duration) (Lease, error) {
	t := time.NewTicker(poll)
	defer t.Stop()
	for {
		ls, err := l.Acquire(ctx, key, ttl)
		if err == nil {
			return ls, nil
		}
		if !errors.Is(err, ErrHeld) {
			return nil, err
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for %s: %w", key, ctx.Err())
		case <-t.C:
		}
	}
}
