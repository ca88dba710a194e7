package session

import (
	"context"
	"log"

	"github.com/vitalhub/thrivesync/internal/api"
	"github.com/vitalhub/thrivesync/internal/config"
	"github.com/vitalhub/thrivesync/internal/engine"
	chatService "github.com/vitalhub/thrivesync/internal/modules/chat/service"
	feedService "github.com/vitalhub/thrivesync/internal/modules/feed/service"
	notifService "github.com/vitalhub/thrivesync/internal/modules/notification/service"
	"github.com/vitalhub/thrivesync/internal/model"
	"github.com/vitalhub/thrivesync/internal/store"
)

// Session owns one synchronization lifecycle: the entity store, the
// reconciler, the mutation controller, and the module services over them.
// Screens create a Session when they mount their data dependency and Close
// it when no longer referenced; server truth is never duplicated into
// per-screen state.
type Session struct {
	Store         *store.Store
	Feed          feedService.FeedService
	Chat          chatService.ChatService
	Notifications notifService.NotificationService

	receipts *chatService.ReceiptListener
	cancel   context.CancelFunc
}

func New(cfg *config.Config, access api.AccessProvider, self model.Author) *Session {
	s := store.New()
	rec := engine.NewReconciler(s)
	ctl := engine.NewController()
	pages := engine.NewPaginator(s, rec)
	client := api.NewClient(cfg.APIBaseURL, cfg.HTTPTimeout, access)

	sess := &Session{
		Store:         s,
		Feed:          feedService.NewFeedService(s, ctl, rec, pages, client, self, cfg.FeedPageSize),
		Chat:          chatService.NewChatService(s, ctl, rec, pages, client, self, cfg.ChatPageSize),
		Notifications: notifService.NewNotificationService(s, ctl, pages, client),
	}

	if cfg.WSURL != "" {
		sess.receipts = chatService.NewReceiptListener(cfg.WSURL, access, sess.Chat.ApplyReceipt)
	}
	return sess
}

// StartReceipts connects the delivery/read receipt stream. Without it,
// sent messages simply stay at sent. Calling it again tears down the
// previous stream before dialing, so only one read loop is ever live.
func (s *Session) StartReceipts(ctx context.Context) {
	if s.receipts == nil {
		return
	}
	if s.cancel != nil {
		s.cancel()
		s.receipts.Stop()
	}
	ctx, s.cancel = context.WithCancel(ctx)
	if err := s.receipts.Start(ctx); err != nil {
		log.Printf("receipt stream unavailable: %v", err)
	}
}

func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	if s.receipts != nil {
		s.receipts.Stop()
	}
}
