package lease

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type entry struct {
	token   string
	expires time.Time
}

// Local is an in-process Locker.
type Local struct {
	mu   sync.Mutex
	keys map[string]entry
	now  func() time.Time
}

func NewLocal() *Local {
	return &Local{keys: map[string]entry{}, now: time.Now}
}

func (l *Local) Acquire(_ context.Context, key string, ttl time.Duration) (Lease, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	if e, ok := l.keys[key]; ok && now.Before(e.expires) {
		return nil, ErrHeld
	}
	tok := uuid.NewString()
	l.keys[key] = entry{token: tok, expires: now.Add(ttl)}
	return &localLease{l: l, key: key, token: tok}, nil
}

type localLease struct {
	l     *Local
	key   string
	token string
}

func (ls *localLease) Release(context.Context) error {
	ls.l.mu.Lock()
	defer ls.l.mu.Unlock()
	if e, ok := ls.l.keys[ls.key]; ok && e.token == ls.token {
		delete(ls.l.keys, ls.key)
	}
	return nil
}
