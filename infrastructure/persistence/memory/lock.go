package memory

import (
	"context"
	"sync"
	"time"

	"atlas-graph/application/ports"
	pkgerrors "atlas-graph/pkg/errors"
)

// Lock is an in-process advisory lock table. Acquire fails fast when the
// resource is held and not yet expired, matching the behavior of the
// DynamoDB lock so merge tests exercise the same contention paths.
type Lock struct {
	mu    sync.Mutex
	held  map[string]time.Time
	clock func() time.Time
}

var _ ports.DistributedLock = (*Lock)(nil)

// NewLock creates an empty in-memory lock table
func NewLock() *Lock {
	return &Lock{
		held:  make(map[string]time.Time),
		clock: time.Now,
	}
}

// Acquire takes the lock on resource for ttl, failing fast when it is
// already held.
func (l *Lock) Acquire(ctx context.Context, resource string, ttl time.Duration) (ports.LockHandle, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock()
	if expiry, exists := l.held[resource]; exists && expiry.After(now) {
		return nil, pkgerrors.LockNotAcquired(resource)
	}
	l.held[resource] = now.Add(ttl)
	return &lockHandle{lock: l, resource: resource}, nil
}

func (l *Lock) release(resource string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.held, resource)
}

type lockHandle struct {
	lock     *Lock
	resource string
	once     sync.Once
}

func (h *lockHandle) Release(ctx context.Context) error {
	h.once.Do(func() { h.lock.release(h.resource) })
	return nil
}

func (h *lockHandle) Resource() string {
	return h.resource
}
