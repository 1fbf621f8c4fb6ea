package queue

import (
	"context"
	"sync"
)

// Local is an in-process queue backed by a buffered channel.
type Local struct {
	ch     chan Job
	once   sync.Once
	closed chan struct{}
}

func NewLocal(size int) *Local {
	if size <= 0 {
		size = 64
	}
	return &Local{ch: make(chan Job, size), closed: make(chan struct{})}
}

// Push blocks while the buffer is full.
func (q *Local) Push(ctx context.Context, j Job) error {
	select {
	case <-q.closed:
		return ErrClosed
	default:
	}
	select {
	case q.ch <- j:
		return nil
	case <-q.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *Local) Pop(ctx context.Context) (Job, error) {
	select {
	case j := <-q.ch:
		return j, nil
	default:
	}
	select {
	case j := <-q.ch:
		return j, nil
	case <-q.closed:
		select {
		case j := <-q.ch:
			return j, nil
		default:
			return Job{}, ErrClosed
		}
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

// Close stops accepting jobs. Queued jobs can still be popped.
func (q *Local) Close() {
	q.once.Do(func() { close(q.closed) })
}
