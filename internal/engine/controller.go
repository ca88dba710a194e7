package engine

import (
	"context"
	"log"
	"sync"

	"github.com/vitalhub/thrivesync/pkg/apperror"
)

// Mutation is one local-first action: apply the local effect synchronously,
// issue the remote call, then reconcile the server's answer or undo.
type Mutation struct {
	// Key serializes mutations: two mutations with the same key have their
	// remote calls issued in invocation order, and only the response to the
	// most recent invocation is reconciled.
	Key string

	// Apply performs the local effect against the store and returns the undo
	// that restores the literal pre-mutation state (not a recomputed
	// inverse). For messages the undo marks the record failed instead of
	// removing it.
	Apply func() (undo func())

	// Call issues the remote call. It must not touch the store.
	Call func(ctx context.Context) (any, error)

	// Reconcile folds the server-confirmed result into the store: exact
	// counts, real id, server timestamp. Swaps happen in place, never by
	// re-appending.
	Reconcile func(result any)
}

// Controller runs optimistic mutations. The entity store is only ever
// written through here, so a render can never observe a torn, partially
// applied change.
type Controller struct {
	mu   sync.Mutex
	seq  map[string]uint64
	tail map[string]chan struct{}
}

func NewController() *Controller {
	return &Controller{
		seq:  make(map[string]uint64),
		tail: make(map[string]chan struct{}),
	}
}

// Do applies m locally, issues its remote call behind any in-flight mutation
// on the same key, and reconciles or undoes. The local effect is visible to
// readers immediately; Do then blocks until the mutation settles, so callers
// usually run it on their own goroutine.
//
// Apply runs under the controller lock, atomically with the mutation taking
// its sequence number and queue position: two racing invocations on one key
// apply to the store in the same order their remote calls will issue, and
// the later Apply observes the earlier one's local effect.
//
// A response that arrives after a later mutation was invoked on the same key
// is stale: it is discarded without reconciling and without undoing, because
// the later mutation's snapshot already covers the state this one produced.
// Do reports that with apperror.ErrStaleResponse.
func (c *Controller) Do(ctx context.Context, m Mutation) error {
	c.mu.Lock()
	c.seq[m.Key]++
	mySeq := c.seq[m.Key]
	prev := c.tail[m.Key]
	done := make(chan struct{})
	c.tail[m.Key] = done
	undo := m.Apply()
	c.mu.Unlock()

	// Wait for the previous mutation on this key to settle its remote call
	if prev != nil {
		select {
		case <-prev:
		case <-ctx.Done():
			c.finish(m.Key, done)
			if c.isStale(m.Key, mySeq) {
				return apperror.ErrStaleResponse
			}
			if undo != nil {
				undo()
			}
			return apperror.New(0, "mutation cancelled", ctx.Err())
		}
	}

	result, err := m.Call(ctx)
	c.finish(m.Key, done)

	if c.isStale(m.Key, mySeq) {
		// Superseded; expected concurrency behavior, not a fault
		return apperror.ErrStaleResponse
	}
	if err != nil {
		if undo != nil {
			undo()
		}
		return err
	}
	if m.Reconcile != nil {
		m.Reconcile(result)
	}
	return nil
}

// Fire issues a side-effecting call with no local state to roll back
// (share, analytics). Failure is swallowed and only logged; the UI is never
// blocked or reverted.
func (c *Controller) Fire(ctx context.Context, name string, call func(ctx context.Context) error) {
	go func() {
		if err := call(ctx); err != nil {
			log.Printf("fire-and-forget %s failed: %v", name, err)
		}
	}()
}

func (c *Controller) isStale(key string, seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seq[key] != seq
}

func (c *Controller) finish(key string, done chan struct{}) {
	close(done)
	c.mu.Lock()
	if c.tail[key] == done {
		delete(c.tail, key)
	}
	c.mu.Unlock()
}
