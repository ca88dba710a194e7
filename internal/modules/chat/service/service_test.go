package chat

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitalhub/thrivesync/internal/api"
	"github.com/vitalhub/thrivesync/internal/apitest"
	"github.com/vitalhub/thrivesync/internal/engine"
	chatDto "github.com/vitalhub/thrivesync/internal/modules/chat/dto"
	"github.com/vitalhub/thrivesync/internal/model"
	"github.com/vitalhub/thrivesync/internal/store"
	"github.com/vitalhub/thrivesync/pkg/apperror"
)

type fixture struct {
	backend *apitest.Backend
	server  *httptest.Server
	store   *store.Store
	svc     ChatService
	self    model.Author
	peer    model.Author
}

func setup(t *testing.T, pageSize int) *fixture {
	t.Helper()
	backend := apitest.New("test-secret")
	self := model.Author{ID: uuid.New(), Username: "casey"}
	peer := model.Author{ID: uuid.New(), Username: "sam"}
	backend.AddUser(self)
	backend.AddUser(peer)

	ts := httptest.NewServer(backend.Router(""))
	t.Cleanup(ts.Close)

	client := api.NewClient(ts.URL, 5*time.Second, api.StaticAccess(backend.MintToken(self.ID.String())))
	s := store.New()
	rec := engine.NewReconciler(s)
	svc := NewChatService(s, engine.NewController(), rec, engine.NewPaginator(s, rec), client, self, pageSize)
	return &fixture{backend: backend, server: ts, store: s, svc: svc, self: self, peer: peer}
}

func (f *fixture) seedHistory(key string, from model.Author, n int) []string {
	ids := make([]string, 0, n)
	for i := 0; i < n; i++ {
		id := uuid.NewString()
		ids = append(ids, id)
		f.backend.SeedMessages(key, model.Message{
			ID:        id,
			ThreadKey: key,
			Sender:    from,
			Body:      "hello",
			Status:    model.StatusSent,
			CreatedAt: time.Now().Add(-time.Duration(n-i) * time.Minute),
		})
	}
	return ids
}

var team = model.ThreadRef{Kind: model.ThreadTalk, ID: "team-1"}

func TestSendLifecycleSwapsInPlace(t *testing.T) {
	f := setup(t, 50)
	f.seedHistory(team.Key(), f.peer, 2)
	ctx := context.Background()
	require.NoError(t, f.svc.OpenThread(ctx, team))

	release := f.backend.Hold("message")
	done := make(chan error, 1)
	var tempID string
	go func() {
		id, err := f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "on my way"})
		tempID = id
		done <- err
	}()

	// composing → sending: inserted at the tail immediately
	assert.Eventually(t, func() bool {
		msgs := f.svc.Messages(team)
		return len(msgs) == 3 && msgs[2].Status == model.StatusSending
	}, time.Second, 5*time.Millisecond)
	msgs := f.svc.Messages(team)
	assert.True(t, engine.IsTempID(msgs[2].ID))

	release()
	require.NoError(t, <-done)

	// sending → sent: swapped at the same position, never re-appended
	msgs = f.svc.Messages(team)
	require.Len(t, msgs, 3, "exactly one visible message for the send")
	last := msgs[2]
	assert.Equal(t, model.StatusSent, last.Status)
	assert.False(t, engine.IsTempID(last.ID))
	assert.NotEqual(t, tempID, last.ID)
	assert.Equal(t, "on my way", last.Body)
	_, ok := f.store.Get(tempID)
	assert.False(t, ok, "temp record removed after reconciliation")
}

func TestSendFailureKeepsMessageVisibleAsFailed(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()
	require.NoError(t, f.svc.OpenThread(ctx, team))

	f.backend.FailNext("message", 1)
	tempID, err := f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "lost?"})
	require.Error(t, err)
	assert.Equal(t, apperror.OutcomeRolledBack, apperror.Classify(err))

	msgs := f.svc.Messages(team)
	require.Len(t, msgs, 1)
	assert.Equal(t, tempID, msgs[0].ID)
	assert.Equal(t, model.StatusFailed, msgs[0].Status)
}

func TestResendSupersedesWithFreshTempID(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()
	require.NoError(t, f.svc.OpenThread(ctx, team))

	f.backend.FailNext("message", 1)
	failedID, err := f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "retry me"})
	require.Error(t, err)

	newID, err := f.svc.Resend(ctx, team, failedID)
	require.NoError(t, err)
	assert.NotEqual(t, failedID, newID)

	msgs := f.svc.Messages(team)
	require.Len(t, msgs, 1, "failed record superseded, not duplicated")
	assert.Equal(t, model.StatusSent, msgs[0].Status)
	assert.Equal(t, "retry me", msgs[0].Body)
	_, ok := f.store.Get(failedID)
	assert.False(t, ok)
}

func TestResendRejectsNonFailedMessages(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()
	require.NoError(t, f.svc.OpenThread(ctx, team))

	_, err := f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "fine"})
	require.NoError(t, err)
	sentID := f.svc.Messages(team)[0].ID

	_, err = f.svc.Resend(ctx, team, sentID)
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)

	_, err = f.svc.Resend(ctx, team, "missing")
	assert.ErrorIs(t, err, apperror.ErrNotFound)
}

func TestLoadOlderPrependsWhileSendStaysAtTail(t *testing.T) {
	f := setup(t, 50)
	f.seedHistory(team.Key(), f.peer, 120)
	ctx := context.Background()

	require.NoError(t, f.svc.OpenThread(ctx, team))
	require.Len(t, f.svc.Messages(team), 50)

	release := f.backend.Hold("message")
	done := make(chan error, 1)
	go func() {
		_, err := f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "while loading"})
		done <- err
	}()
	assert.Eventually(t, func() bool {
		return len(f.svc.Messages(team)) == 51
	}, time.Second, 5*time.Millisecond)

	// 50 older messages prepend; the in-flight send is unaffected
	added, err := f.svc.LoadOlder(ctx, team)
	require.NoError(t, err)
	assert.Equal(t, 50, added)

	msgs := f.svc.Messages(team)
	require.Len(t, msgs, 101)
	assert.Equal(t, model.StatusSending, msgs[100].Status, "send still appended at the tail")

	release()
	require.NoError(t, <-done)
	msgs = f.svc.Messages(team)
	require.Len(t, msgs, 101)
	assert.Equal(t, model.StatusSent, msgs[100].Status)
}

func TestHistoryPagesDoNotDuplicateOrReorder(t *testing.T) {
	f := setup(t, 3)
	ids := f.seedHistory(team.Key(), f.peer, 7)
	ctx := context.Background()

	require.NoError(t, f.svc.OpenThread(ctx, team))
	f.backend.OverlapNext(1)
	_, err := f.svc.LoadOlder(ctx, team)
	require.NoError(t, err)
	_, err = f.svc.LoadOlder(ctx, team)
	require.NoError(t, err)

	msgs := f.svc.Messages(team)
	require.Len(t, msgs, 7)
	for i, m := range msgs {
		assert.Equal(t, ids[i], m.ID)
	}

	_, err = f.svc.LoadOlder(ctx, team)
	assert.ErrorIs(t, err, apperror.ErrNoCursor)
}

func TestDirectMessages(t *testing.T) {
	f := setup(t, 50)
	dm := model.ThreadRef{Kind: model.ThreadDM, ID: f.peer.ID.String()}
	ctx := context.Background()

	require.NoError(t, f.svc.OpenThread(ctx, dm))
	_, err := f.svc.Send(ctx, dm, chatDto.SendMessageRequest{Body: "hey sam"})
	require.NoError(t, err)

	msgs := f.svc.Messages(dm)
	require.Len(t, msgs, 1)
	assert.Equal(t, model.StatusSent, msgs[0].Status)
	assert.Equal(t, f.self.Username, msgs[0].Sender.Username)

	server := f.backend.Messages(dm.Key())
	require.Len(t, server, 1)
	assert.Equal(t, "hey sam", server[0].Body)
}

func TestSendValidatesBody(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()
	require.NoError(t, f.svc.OpenThread(ctx, team))

	_, err := f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: ""})
	assert.ErrorIs(t, err, apperror.ErrInvalidInput)
	assert.Empty(t, f.svc.Messages(team))
}

func TestReceiptAdvancesOwnMessagesMonotonically(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()
	require.NoError(t, f.svc.OpenThread(ctx, team))
	_, err := f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "status me"})
	require.NoError(t, err)
	id := f.svc.Messages(team)[0].ID

	f.svc.ApplyReceipt(chatDto.Receipt{ThreadKey: team.Key(), MessageID: id, Status: "delivered"})
	assert.Equal(t, model.StatusDelivered, f.svc.Messages(team)[0].Status)

	f.svc.ApplyReceipt(chatDto.Receipt{ThreadKey: team.Key(), MessageID: id, Status: "read"})
	assert.Equal(t, model.StatusRead, f.svc.Messages(team)[0].Status)

	// No regression: a late delivered receipt is ignored
	f.svc.ApplyReceipt(chatDto.Receipt{ThreadKey: team.Key(), MessageID: id, Status: "delivered"})
	assert.Equal(t, model.StatusRead, f.svc.Messages(team)[0].Status)

	// Unknown status ignored
	f.svc.ApplyReceipt(chatDto.Receipt{ThreadKey: team.Key(), MessageID: id, Status: "sent"})
	assert.Equal(t, model.StatusRead, f.svc.Messages(team)[0].Status)
}

func TestBatchReceiptMarksOwnMessagesUpTo(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()
	require.NoError(t, f.svc.OpenThread(ctx, team))

	_, err := f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "one"})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "two"})
	require.NoError(t, err)
	_, err = f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "three"})
	require.NoError(t, err)

	msgs := f.svc.Messages(team)
	require.Len(t, msgs, 3)

	f.svc.ApplyReceipt(chatDto.Receipt{
		ThreadKey: team.Key(),
		MessageID: msgs[1].ID,
		Status:    "read",
		UpTo:      true,
	})

	msgs = f.svc.Messages(team)
	assert.Equal(t, model.StatusRead, msgs[0].Status)
	assert.Equal(t, model.StatusRead, msgs[1].Status)
	assert.Equal(t, model.StatusSent, msgs[2].Status, "messages after the marker untouched")
}

func TestBatchReceiptIgnoresUnloadedMarker(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()
	require.NoError(t, f.svc.OpenThread(ctx, team))
	_, err := f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "just sent"})
	require.NoError(t, err)

	// Marker older than the loaded window: nothing in the list may be
	// marked, since a read flag can never be taken back.
	f.svc.ApplyReceipt(chatDto.Receipt{
		ThreadKey: team.Key(),
		MessageID: uuid.NewString(),
		Status:    "read",
		UpTo:      true,
	})
	assert.Equal(t, model.StatusSent, f.svc.Messages(team)[0].Status,
		"a message newer than an unloaded marker must stay unread")
}

func TestReceiptListenerEndToEnd(t *testing.T) {
	f := setup(t, 50)
	ctx := context.Background()
	require.NoError(t, f.svc.OpenThread(ctx, team))
	_, err := f.svc.Send(ctx, team, chatDto.SendMessageRequest{Body: "watch me"})
	require.NoError(t, err)
	id := f.svc.Messages(team)[0].ID

	wsURL := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/ws/receipts"
	token := f.backend.MintToken(f.self.ID.String())
	listener := NewReceiptListener(wsURL, api.StaticAccess(token), f.svc.ApplyReceipt)
	require.NoError(t, listener.Start(ctx))
	defer listener.Stop()

	// Give the backend a moment to register the connection
	assert.Eventually(t, func() bool {
		f.backend.PushReceipt(chatDto.Receipt{ThreadKey: team.Key(), MessageID: id, Status: "read"})
		return f.svc.Messages(team)[0].Status == model.StatusRead
	}, 2*time.Second, 20*time.Millisecond)
}
