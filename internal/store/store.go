package store

import "sync"

// Entity is any record addressable by id. Implementations are value types so
// that snapshots taken by the mutation controller are literal copies.
type Entity interface {
	EntityID() string
}

// Store is the in-memory entity store. It exclusively owns all entity state;
// UI layers hold only read-only projections and dispatch mutation intents.
// Every operation is synchronous and touches nothing but the in-memory maps.
// Writes are last-write-wins per id; collection lists preserve insertion
// order unless explicitly reordered by the pagination engine.
type Store struct {
	mu       sync.Mutex
	entities map[string]Entity
	lists    map[string][]string
	cursors  map[string]string
}

func New() *Store {
	return &Store{
		entities: make(map[string]Entity),
		lists:    make(map[string][]string),
		cursors:  make(map[string]string),
	}
}

func (s *Store) Get(id string) (Entity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[id]
	return e, ok
}

func (s *Store) Put(e Entity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entities[e.EntityID()] = e
}

func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entities, id)
}

// Update applies fn to the entity under the store lock and returns the prior
// value, so read-modify-write sequences cannot tear against a concurrent
// render or a queued mutation. fn receives the current value and returns the
// replacement. If the id is absent fn is not called.
func (s *Store) Update(id string, fn func(Entity) Entity) (prev Entity, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev, ok = s.entities[id]
	if !ok {
		return nil, false
	}
	s.entities[id] = fn(prev)
	return prev, true
}

// List returns a copy of the ordered id list for a collection.
func (s *Store) List(key string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.lists[key]
	out := make([]string, len(ids))
	copy(out, ids)
	return out
}

func (s *Store) Contains(key, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(key, id) >= 0
}

// ReplaceList swaps the collection's id list wholesale.
func (s *Store) ReplaceList(key string, ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make([]string, len(ids))
	copy(next, ids)
	s.lists[key] = next
}

// Append adds ids at the tail of the collection, skipping any id already
// present. Relative order among the fresh ids is preserved exactly; ids
// already in the list are never reordered. Returns how many were added.
func (s *Store) Append(key string, ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	added := 0
	for _, id := range ids {
		if s.indexOf(key, id) >= 0 {
			continue
		}
		s.lists[key] = append(s.lists[key], id)
		added++
	}
	return added
}

// Prepend adds ids before the head of the collection with the same dedup and
// ordering rules as Append. Used for chat history ("older than earliest").
func (s *Store) Prepend(key string, ids []string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if s.indexOf(key, id) >= 0 {
			continue
		}
		fresh = append(fresh, id)
	}
	if len(fresh) > 0 {
		s.lists[key] = append(fresh, s.lists[key]...)
	}
	return len(fresh)
}

// SwapID replaces oldID with newID at its existing position in the
// collection, so a reconciled record never moves or re-appends.
func (s *Store) SwapID(key, oldID, newID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(key, oldID)
	if i < 0 {
		return false
	}
	s.lists[key][i] = newID
	return true
}

func (s *Store) RemoveFromList(key, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.indexOf(key, id)
	if i < 0 {
		return false
	}
	s.lists[key] = append(s.lists[key][:i], s.lists[key][i+1:]...)
	return true
}

func (s *Store) Len(key string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lists[key])
}

// Cursor returns the stored opaque pagination cursor for a collection.
// The second return is false when no cursor is stored (never loaded, or the
// server signalled end-of-collection).
func (s *Store) Cursor(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cursors[key]
	return c, ok
}

func (s *Store) SetCursor(key, cursor string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursors[key] = cursor
}

func (s *Store) ClearCursor(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.cursors, key)
}

// DropList removes a collection's list and cursor. Entities stay; they may
// still be referenced by other collections.
func (s *Store) DropList(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.lists, key)
	delete(s.cursors, key)
}

func (s *Store) indexOf(key, id string) int {
	for i, v := range s.lists[key] {
		if v == id {
			return i
		}
	}
	return -1
}
