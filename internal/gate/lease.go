package gate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LeaseStore persists expiring named leases.
type LeaseStore interface {
	AcquireLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	RenewLease(ctx context.Context, name, owner string, ttl time.Duration) (bool, error)
	ReleaseLease(ctx context.Context, name, owner string) error
}

// Lease is a Locker backed by a shared store, so processes sharing the
// database exclude each other. A held lease is renewed every third of its
// TTL until unlocked; a lease whose owner stopped renewing expires and
// can be taken over.
type Lease struct {
	store LeaseStore
	owner string
	ttl   time.Duration
	poll  time.Duration
}

// NewLease creates a Lease locker with a random owner id.
func NewLease(store LeaseStore, ttl time.Duration) *Lease {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &Lease{
		store: store,
		owner: uuid.NewString(),
		ttl:   ttl,
		poll:  50 * time.Millisecond,
	}
}

// Owner returns the id this locker writes into leases.
func (l *Lease) Owner() string {
	return l.owner
}

// Lock polls until the lease is acquired or ctx is done. Store failures
// are reported as ErrUnavailable.
func (l *Lease) Lock(ctx context.Context, name string) (func(), error) {
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()

	for {
		ok, err := l.store.AcquireLease(ctx, name, l.owner, l.ttl)
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("acquire lease %s: %w", name, ctx.Err())
			}
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		if ok {
			return l.hold(context.WithoutCancel(ctx), name), nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lease %s: %w", name, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (l *Lease) hold(ctx context.Context, name string) func() {
	stop := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(l.ttl / 3)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				ok, err := l.store.RenewLease(ctx, name, l.owner, l.ttl)
				if err != nil || !ok {
					return
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			_ = l.store.ReleaseLease(ctx, name, l.owner)
		})
	}
}
