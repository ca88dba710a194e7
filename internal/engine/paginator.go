package engine

import (
	"context"
	"sync"

	"github.com/vitalhub/thrivesync/internal/store"
	"github.com/vitalhub/thrivesync/pkg/apperror"
)

// Direction is where freshly merged ids go relative to the existing list.
type Direction int

const (
	// Tail appends (feeds, comments, challenge pages: "after the last item").
	Tail Direction = iota
	// Head prepends (chat history: "older than the earliest message").
	Head
)

// Page is one cursor-delimited chunk from a collection endpoint. Entities
// are in exactly the order the server returned them. NextCursor nil means
// end of collection.
type Page struct {
	Entities   []store.Entity
	NextCursor *string
}

// Fetch retrieves one page. An empty cursor means "first page". The cursor
// string is opaque: supplied and consumed verbatim, never parsed here.
type Fetch func(ctx context.Context, cursor string, limit int) (*Page, error)

// Paginator merges cursor-delimited pages into the ordered, deduplicated id
// lists held by the store. Merges for a given collection are serialized
// relative to each other; they are not ordered relative to optimistic
// mutations on individual entities, which the reconciler covers.
type Paginator struct {
	store *store.Store
	rec   *Reconciler

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewPaginator(s *store.Store, rec *Reconciler) *Paginator {
	return &Paginator{
		store: s,
		rec:   rec,
		locks: make(map[string]*sync.Mutex),
	}
}

// LoadFirst fetches with no cursor and replaces the collection's id list
// with the returned ids, then re-seats any still-pending optimistic entries
// at the tail so an in-flight send or comment is never lost. Stores the
// returned cursor. On failure the collection and cursor are left unchanged.
func (p *Paginator) LoadFirst(ctx context.Context, key string, limit int, dir Direction, fetch Fetch) error {
	unlock := p.lock(key)
	defer unlock()

	page, err := fetch(ctx, "", limit)
	if err != nil {
		return err
	}

	ids := make([]string, 0, len(page.Entities))
	for _, e := range page.Entities {
		p.store.Put(e)
		ids = append(ids, e.EntityID())
	}
	p.store.ReplaceList(key, ids)
	for _, tempID := range p.rec.PendingIDs(key) {
		p.store.Append(key, []string{tempID})
	}
	p.setCursor(key, page.NextCursor)
	return nil
}

// LoadMore fetches using the stored cursor and merges at dir. With no stored
// cursor it fails fast as a no-op. Fresh ids keep their server order; ids
// already present are skipped, never reordered, so a retried call returning
// an overlapping page cannot produce duplicates. On fetch failure the
// collection and cursor are untouched and the call is safe to retry.
func (p *Paginator) LoadMore(ctx context.Context, key string, limit int, dir Direction, fetch Fetch) (int, error) {
	unlock := p.lock(key)
	defer unlock()

	cursor, ok := p.store.Cursor(key)
	if !ok {
		return 0, apperror.ErrNoCursor
	}

	page, err := fetch(ctx, cursor, limit)
	if err != nil {
		return 0, err
	}

	ids := make([]string, 0, len(page.Entities))
	for _, e := range page.Entities {
		// Update-in-place for ids already visible (including ones a resolved
		// temp mapping put there); the list merge below only adds fresh ids.
		p.store.Put(e)
		ids = append(ids, e.EntityID())
	}

	var added int
	if dir == Head {
		added = p.store.Prepend(key, ids)
	} else {
		added = p.store.Append(key, ids)
	}
	p.setCursor(key, page.NextCursor)
	return added, nil
}

func (p *Paginator) setCursor(key string, next *string) {
	if next == nil || *next == "" {
		p.store.ClearCursor(key)
		return
	}
	p.store.SetCursor(key, *next)
}

func (p *Paginator) lock(key string) func() {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	p.mu.Unlock()
	l.Lock()
	return l.Unlock
}
