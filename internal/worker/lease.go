package worker

import (
	"context"
	"sync"
)

// Lease keeps two sweeps from running at the same time.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// LocalLease only excludes sweeps within this process.
type LocalLease struct {
	mu   sync.Mutex
	held bool
}

func (l *LocalLease) Acquire(context.Context) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held {
		return false, nil
	}
	l.held = true
	return true, nil
}

func (l *LocalLease) Release(context.Context) error {
	l.mu.Lock()
	l.held = false
	l.mu.Unlock()
	return nil
}
