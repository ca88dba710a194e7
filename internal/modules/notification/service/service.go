package notification

import (
	"context"

	"github.com/vitalhub/thrivesync/internal/api"
	"github.com/vitalhub/thrivesync/internal/engine"
	"github.com/vitalhub/thrivesync/internal/model"
	"github.com/vitalhub/thrivesync/internal/store"
	"github.com/vitalhub/thrivesync/pkg/apperror"
)

type NotificationService interface {
	Load(ctx context.Context) error
	Notifications() []model.Notification
	UnreadCount() int

	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
}

type notificationService struct {
	store  *store.Store
	ctl    *engine.Controller
	pages  *engine.Paginator
	client *api.Client
}

func NewNotificationService(s *store.Store, ctl *engine.Controller, pages *engine.Paginator, client *api.Client) NotificationService {
	return &notificationService{
		store:  s,
		ctl:    ctl,
		pages:  pages,
		client: client,
	}
}

func (s *notificationService) Load(ctx context.Context) error {
	return s.pages.LoadFirst(ctx, model.NotificationsKey, 0, engine.Tail,
		func(ctx context.Context, cursor string, limit int) (*engine.Page, error) {
			notifications, err := s.client.GetNotifications(ctx)
			if err != nil {
				return nil, err
			}
			page := &engine.Page{}
			for _, n := range notifications {
				page.Entities = append(page.Entities, n)
			}
			return page, nil
		})
}

func (s *notificationService) Notifications() []model.Notification {
	ids := s.store.List(model.NotificationsKey)
	notifications := make([]model.Notification, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.store.Get(id); ok {
			notifications = append(notifications, e.(model.Notification))
		}
	}
	return notifications
}

func (s *notificationService) UnreadCount() int {
	count := 0
	for _, n := range s.Notifications() {
		if !n.IsRead {
			count++
		}
	}
	return count
}

func (s *notificationService) MarkAsRead(ctx context.Context, id string) error {
	if _, ok := s.store.Get(id); !ok {
		return apperror.ErrNotFound
	}
	return s.ctl.Do(ctx, engine.Mutation{
		Key: id,
		Apply: func() func() {
			prev, _ := s.store.Update(id, func(e store.Entity) store.Entity {
				n := e.(model.Notification)
				n.IsRead = true
				return n
			})
			return func() {
				if prev != nil {
					s.store.Put(prev)
				}
			}
		},
		Call: func(ctx context.Context) (any, error) {
			return nil, s.client.MarkNotificationRead(ctx, id)
		},
	})
}

func (s *notificationService) MarkAllAsRead(ctx context.Context) error {
	return s.ctl.Do(ctx, engine.Mutation{
		Key: model.NotificationsKey,
		Apply: func() func() {
			// Snapshot every record we flip so rollback restores literal state
			var prevs []store.Entity
			for _, id := range s.store.List(model.NotificationsKey) {
				prev, ok := s.store.Update(id, func(e store.Entity) store.Entity {
					n := e.(model.Notification)
					n.IsRead = true
					return n
				})
				if ok && !prev.(model.Notification).IsRead {
					prevs = append(prevs, prev)
				}
			}
			return func() {
				for _, prev := range prevs {
					s.store.Put(prev)
				}
			}
		},
		Call: func(ctx context.Context) (any, error) {
			return nil, s.client.MarkAllNotificationsRead(ctx)
		},
	})
}
