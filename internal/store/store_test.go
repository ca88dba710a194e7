package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitalhub/thrivesync/internal/model"
)

func post(id string, likes int) model.Post {
	return model.Post{ID: id, LikesCount: likes}
}

func TestPutGetRemove(t *testing.T) {
	s := New()

	_, ok := s.Get("p1")
	assert.False(t, ok)

	s.Put(post("p1", 3))
	e, ok := s.Get("p1")
	require.True(t, ok)
	assert.Equal(t, 3, e.(model.Post).LikesCount)

	// Last write wins
	s.Put(post("p1", 4))
	e, _ = s.Get("p1")
	assert.Equal(t, 4, e.(model.Post).LikesCount)

	s.Remove("p1")
	_, ok = s.Get("p1")
	assert.False(t, ok)
}

func TestGetReturnsSnapshotValue(t *testing.T) {
	s := New()
	s.Put(post("p1", 3))

	e, _ := s.Get("p1")
	snap := e.(model.Post)
	snap.LikesCount = 99

	e, _ = s.Get("p1")
	assert.Equal(t, 3, e.(model.Post).LikesCount, "mutating a read copy must not touch the store")
}

func TestUpdateReturnsPrior(t *testing.T) {
	s := New()
	s.Put(post("p1", 3))

	prev, ok := s.Update("p1", func(e Entity) Entity {
		p := e.(model.Post)
		p.LikesCount++
		return p
	})
	require.True(t, ok)
	assert.Equal(t, 3, prev.(model.Post).LikesCount)

	e, _ := s.Get("p1")
	assert.Equal(t, 4, e.(model.Post).LikesCount)

	_, ok = s.Update("missing", func(e Entity) Entity { return e })
	assert.False(t, ok)
}

func TestAppendSkipsPresentIDs(t *testing.T) {
	s := New()
	added := s.Append("feed", []string{"1", "2", "3"})
	assert.Equal(t, 3, added)

	// Overlapping retry page: 3 already present, 4 and 5 fresh
	added = s.Append("feed", []string{"3", "4", "5"})
	assert.Equal(t, 2, added)
	assert.Equal(t, []string{"1", "2", "3", "4", "5"}, s.List("feed"))
}

func TestPrependKeepsOrderAndDedups(t *testing.T) {
	s := New()
	s.Append("talk:t1", []string{"m4", "m5"})

	added := s.Prepend("talk:t1", []string{"m1", "m2", "m3", "m4"})
	assert.Equal(t, 3, added)
	assert.Equal(t, []string{"m1", "m2", "m3", "m4", "m5"}, s.List("talk:t1"))
}

func TestSwapIDKeepsPosition(t *testing.T) {
	s := New()
	s.Append("comments:p1", []string{"c1", "tmp-x", "c2"})

	require.True(t, s.SwapID("comments:p1", "tmp-x", "c9"))
	assert.Equal(t, []string{"c1", "c9", "c2"}, s.List("comments:p1"))

	assert.False(t, s.SwapID("comments:p1", "tmp-x", "c9"))
}

func TestRemoveFromList(t *testing.T) {
	s := New()
	s.Append("feed", []string{"1", "2", "3"})

	require.True(t, s.RemoveFromList("feed", "2"))
	assert.Equal(t, []string{"1", "3"}, s.List("feed"))
	assert.False(t, s.RemoveFromList("feed", "2"))
}

func TestCursorLifecycle(t *testing.T) {
	s := New()

	_, ok := s.Cursor("feed")
	assert.False(t, ok)

	s.SetCursor("feed", "abc")
	c, ok := s.Cursor("feed")
	require.True(t, ok)
	assert.Equal(t, "abc", c)

	s.ClearCursor("feed")
	_, ok = s.Cursor("feed")
	assert.False(t, ok)
}

func TestListReturnsCopy(t *testing.T) {
	s := New()
	s.Append("feed", []string{"1", "2"})

	ids := s.List("feed")
	ids[0] = "zz"
	assert.Equal(t, []string{"1", "2"}, s.List("feed"))
}

func TestDropList(t *testing.T) {
	s := New()
	s.Put(post("1", 0))
	s.Append("feed", []string{"1"})
	s.SetCursor("feed", "abc")

	s.DropList("feed")
	assert.Empty(t, s.List("feed"))
	_, ok := s.Cursor("feed")
	assert.False(t, ok)

	// Entities survive list teardown
	_, ok = s.Get("1")
	assert.True(t, ok)
}
