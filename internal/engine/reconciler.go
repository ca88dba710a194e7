package engine

import (
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/vitalhub/thrivesync/internal/store"
)

const tempPrefix = "tmp-"

// NewTempID mints a client-generated identifier for an entity not yet
// confirmed by the server. The prefix keeps temp ids recognizable and makes
// collision with a server UUID impossible.
func NewTempID() string {
	return tempPrefix + uuid.NewString()
}

func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

// Reconciler matches client-generated temporary identifiers to
// server-confirmed identifiers so a given logical action never appears twice
// in a rendered list. It is shared by the mutation controller and the
// pagination engine: a page merge arriving while an optimistic record is
// still pending must not collide with it.
type Reconciler struct {
	store *store.Store

	mu      sync.Mutex
	pending map[string]string // temp id -> collection key
}

func NewReconciler(s *store.Store) *Reconciler {
	return &Reconciler{
		store:   s,
		pending: make(map[string]string),
	}
}

// RegisterTemp records a provisional entity. The caller has already inserted
// it into the collection at the position the mutation requires.
func (r *Reconciler) RegisterTemp(key, tempID string, e store.Entity) {
	r.store.Put(e)
	r.mu.Lock()
	r.pending[tempID] = key
	r.mu.Unlock()
}

// PendingIDs returns the temp ids still outstanding for a collection, in no
// particular order. The paginator uses this to re-seat provisional entries
// after a first-page replace.
func (r *Reconciler) PendingIDs(key string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, k := range r.pending {
		if k == key {
			ids = append(ids, id)
		}
	}
	return ids
}

// Resolve swaps the provisional record for the server-confirmed one at its
// existing list position. If a concurrent page merge already inserted the
// server id, the temp entry is dropped instead, so exactly one record stays
// visible either way.
func (r *Reconciler) Resolve(tempID string, server store.Entity) {
	r.mu.Lock()
	key, ok := r.pending[tempID]
	delete(r.pending, tempID)
	r.mu.Unlock()
	if !ok {
		return
	}

	serverID := server.EntityID()
	if r.store.Contains(key, serverID) {
		// The merge won the race; keep its record's position
		r.store.RemoveFromList(key, tempID)
	} else {
		r.store.SwapID(key, tempID, serverID)
	}
	r.store.Remove(tempID)
	r.store.Put(server)
}

// Discard removes a provisional record entirely (mutation failed and the
// record should not stay visible).
func (r *Reconciler) Discard(tempID string) {
	r.mu.Lock()
	key, ok := r.pending[tempID]
	delete(r.pending, tempID)
	r.mu.Unlock()
	if !ok {
		return
	}
	r.store.RemoveFromList(key, tempID)
	r.store.Remove(tempID)
}

// Forget drops the pending bookkeeping without touching the store. Used when
// a failed message must remain visible (marked failed) rather than removed.
func (r *Reconciler) Forget(tempID string) {
	r.mu.Lock()
	delete(r.pending, tempID)
	r.mu.Unlock()
}
