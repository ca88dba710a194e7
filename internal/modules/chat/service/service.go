package chat

import (
	"context"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/vitalhub/thrivesync/internal/api"
	"github.com/vitalhub/thrivesync/internal/engine"
	chatDto "github.com/vitalhub/thrivesync/internal/modules/chat/dto"
	"github.com/vitalhub/thrivesync/internal/model"
	"github.com/vitalhub/thrivesync/internal/store"
	"github.com/vitalhub/thrivesync/pkg/apperror"
	pkgvalidator "github.com/vitalhub/thrivesync/pkg/validator"
)

var validate = validator.New()

type ChatService interface {
	// OpenThread loads the newest page of a thread's history (newest-last).
	OpenThread(ctx context.Context, ref model.ThreadRef) error
	// LoadOlder prepends the page older than the earliest loaded message.
	LoadOlder(ctx context.Context, ref model.ThreadRef) (int, error)
	Messages(ref model.ThreadRef) []model.Message

	// Send inserts the message at the thread's tail with status sending and
	// returns its temporary id immediately usable for tracking.
	Send(ctx context.Context, ref model.ThreadRef, req chatDto.SendMessageRequest) (string, error)
	// Resend retries a failed message as a new logical attempt: the failed
	// record is superseded by a fresh temporary id.
	Resend(ctx context.Context, ref model.ThreadRef, failedID string) (string, error)

	// ApplyReceipt advances delivery state from an out-of-band update.
	// Regressions are ignored.
	ApplyReceipt(r chatDto.Receipt)
}

type chatService struct {
	store     *store.Store
	ctl       *engine.Controller
	rec       *engine.Reconciler
	pages     *engine.Paginator
	client    *api.Client
	self      model.Author
	pageSize  int
	sanitizer *bluemonday.Policy
}

func NewChatService(s *store.Store, ctl *engine.Controller, rec *engine.Reconciler, pages *engine.Paginator, client *api.Client, self model.Author, pageSize int) ChatService {
	return &chatService{
		store:     s,
		ctl:       ctl,
		rec:       rec,
		pages:     pages,
		client:    client,
		self:      self,
		pageSize:  pageSize,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

func (s *chatService) OpenThread(ctx context.Context, ref model.ThreadRef) error {
	return s.pages.LoadFirst(ctx, ref.Key(), s.pageSize, engine.Head, s.fetchHistory(ref))
}

func (s *chatService) LoadOlder(ctx context.Context, ref model.ThreadRef) (int, error) {
	return s.pages.LoadMore(ctx, ref.Key(), s.pageSize, engine.Head, s.fetchHistory(ref))
}

func (s *chatService) fetchHistory(ref model.ThreadRef) engine.Fetch {
	return func(ctx context.Context, cursor string, limit int) (*engine.Page, error) {
		var (
			resp *api.MessagePage
			err  error
		)
		if ref.Kind == model.ThreadDM {
			resp, err = s.client.GetDirectMessages(ctx, ref.ID, cursor, limit)
		} else {
			resp, err = s.client.GetThreadMessages(ctx, ref.ID, cursor, limit)
		}
		if err != nil {
			return nil, err
		}
		page := &engine.Page{NextCursor: resp.NextCursor}
		for _, m := range resp.Items {
			m.ThreadKey = ref.Key()
			if m.Status == "" {
				m.Status = model.StatusSent
			}
			page.Entities = append(page.Entities, m)
		}
		return page, nil
	}
}

func (s *chatService) Messages(ref model.ThreadRef) []model.Message {
	ids := s.store.List(ref.Key())
	messages := make([]model.Message, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.store.Get(id); ok {
			messages = append(messages, e.(model.Message))
		}
	}
	return messages
}

func (s *chatService) Send(ctx context.Context, ref model.ThreadRef, req chatDto.SendMessageRequest) (string, error) {
	req.Body = s.sanitizer.Sanitize(req.Body)
	if err := validate.Struct(req); err != nil {
		return "", apperror.New(0, pkgvalidator.FormatValidationError(err), apperror.ErrInvalidInput)
	}
	return s.submit(ctx, ref, req.Body)
}

func (s *chatService) Resend(ctx context.Context, ref model.ThreadRef, failedID string) (string, error) {
	e, ok := s.store.Get(failedID)
	if !ok {
		return "", apperror.ErrNotFound
	}
	failed, ok := e.(model.Message)
	if !ok || failed.Status != model.StatusFailed {
		return "", apperror.ErrInvalidInput
	}

	// Supersede, don't mutate in place: the old temp id must stay
	// unambiguous for any merge that raced with the failed attempt.
	s.store.RemoveFromList(ref.Key(), failedID)
	s.store.Remove(failedID)

	return s.submit(ctx, ref, failed.Body)
}

// submit runs the lifecycle: composing → sending on invocation, sending →
// sent on acknowledgement (swap in place, never re-append), sending →
// failed on error with the record kept visible for retry.
func (s *chatService) submit(ctx context.Context, ref model.ThreadRef, body string) (string, error) {
	key := ref.Key()
	tempID := engine.NewTempID()

	err := s.ctl.Do(ctx, engine.Mutation{
		Key: tempID,
		Apply: func() func() {
			s.rec.RegisterTemp(key, tempID, model.Message{
				ID:        tempID,
				ThreadKey: key,
				Sender:    s.self,
				Body:      body,
				Status:    model.StatusSending,
				CreatedAt: time.Now(),
			})
			s.store.Append(key, []string{tempID})
			return func() {
				// Keep the message visible so the user can retry
				s.rec.Forget(tempID)
				s.store.Update(tempID, func(e store.Entity) store.Entity {
					m := e.(model.Message)
					if m.Status.CanAdvanceTo(model.StatusFailed) {
						m.Status = model.StatusFailed
					}
					return m
				})
			}
		},
		Call: func(ctx context.Context) (any, error) {
			if ref.Kind == model.ThreadDM {
				return s.client.SendDirectMessage(ctx, ref.ID, body)
			}
			return s.client.SendThreadMessage(ctx, ref.ID, body)
		},
		Reconcile: func(result any) {
			confirmed := *result.(*model.Message)
			confirmed.ThreadKey = key
			if confirmed.Status.Rank() < model.StatusSent.Rank() {
				confirmed.Status = model.StatusSent
			}
			s.rec.Resolve(tempID, confirmed)
		},
	})
	if err != nil {
		return tempID, err
	}
	return tempID, nil
}

func (s *chatService) ApplyReceipt(r chatDto.Receipt) {
	next := model.MessageStatus(r.Status)
	if next != model.StatusDelivered && next != model.StatusRead {
		log.Printf("ignoring receipt with unknown status %q", r.Status)
		return
	}

	if !r.UpTo {
		s.advance(r.MessageID, next)
		return
	}
	// Batch receipt: every own message at or before MessageID in thread
	// order. A marker outside the loaded window marks nothing; messages
	// newer than it must not be touched, and read-state never regresses,
	// so guessing here would be permanent.
	if !s.store.Contains(r.ThreadKey, r.MessageID) {
		return
	}
	for _, id := range s.store.List(r.ThreadKey) {
		s.advance(id, next)
		if id == r.MessageID {
			break
		}
	}
}

func (s *chatService) advance(id string, next model.MessageStatus) {
	s.store.Update(id, func(e store.Entity) store.Entity {
		m, ok := e.(model.Message)
		if !ok {
			return e
		}
		if m.Sender.ID == s.self.ID && m.Status.CanAdvanceTo(next) {
			m.Status = next
		}
		return m
	})
}
