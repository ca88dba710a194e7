package notification

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalhub/thrivesync/internal/api"
	"github.com/vitalhub/thrivesync/internal/apitest"
	"github.com/vitalhub/thrivesync/internal/engine"
	"github.com/vitalhub/thrivesync/internal/model"
	"github.com/vitalhub/thrivesync/internal/store"
	"github.com/vitalhub/thrivesync/pkg/apperror"
)

func setup(t *testing.T) (*apitest.Backend, NotificationService) {
	t.Helper()
	backend := apitest.New("test-secret")
	self := uuid.New()

	ts := httptest.NewServer(backend.Router(""))
	t.Cleanup(ts.Close)

	client := api.NewClient(ts.URL, 5*time.Second, api.StaticAccess(backend.MintToken(self.String())))
	s := store.New()
	rec := engine.NewReconciler(s)
	svc := NewNotificationService(s, engine.NewController(), engine.NewPaginator(s, rec), client)
	return backend, svc
}

func seed(backend *apitest.Backend, n int) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.NewString()
		ids = append(ids, id)
		backend.SeedNotifications(model.Notification{
			ID:      id,
			Type:    "like_post",
			Message: "Someone liked your post",
		})
	}
	return ids
}

func TestLoadAndUnreadCount(t *testing.T) {
	backend, svc := setup(t)
	seed(backend, 3)

	require.NoError(t, svc.Load(context.Background()))
	assert.Len(t, svc.Notifications(), 3)
	assert.Equal(t, 3, svc.UnreadCount())
}

func TestMarkAsReadOptimistic(t *testing.T) {
	backend, svc := setup(t)
	ids := seed(backend, 2)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	require.NoError(t, svc.MarkAsRead(ctx, ids[0]))
	assert.Equal(t, 1, svc.UnreadCount())

	assert.ErrorIs(t, svc.MarkAsRead(ctx, "missing"), apperror.ErrNotFound)
}

func TestMarkAsReadRollsBack(t *testing.T) {
	backend, svc := setup(t)
	ids := seed(backend, 2)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	backend.FailNext("read", 1)
	err := svc.MarkAsRead(ctx, ids[0])
	require.Error(t, err)
	assert.Equal(t, apperror.OutcomeRolledBack, apperror.Classify(err))
	assert.Equal(t, 2, svc.UnreadCount(), "read flag restored from snapshot")
}

func TestMarkAllAsRead(t *testing.T) {
	backend, svc := setup(t)
	seed(backend, 3)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	require.NoError(t, svc.MarkAllAsRead(ctx))
	assert.Zero(t, svc.UnreadCount())
}

func TestMarkAllAsReadRollsBackEveryFlippedFlag(t *testing.T) {
	backend, svc := setup(t)
	ids := seed(backend, 3)
	ctx := context.Background()
	require.NoError(t, svc.Load(ctx))

	// One already read: rollback must not unread it
	require.NoError(t, svc.MarkAsRead(ctx, ids[0]))

	backend.FailNext("read-all", 1)
	require.Error(t, svc.MarkAllAsRead(ctx))
	assert.Equal(t, 2, svc.UnreadCount())

	for _, n := range svc.Notifications() {
		if n.ID == ids[0] {
			assert.True(t, n.IsRead)
		}
	}
}
