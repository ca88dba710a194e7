package feed

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/vitalhub/thrivesync/internal/api"
	"github.com/vitalhub/thrivesync/internal/engine"
	feedDto "github.com/vitalhub/thrivesync/internal/modules/feed/dto"
	"github.com/vitalhub/thrivesync/internal/model"
	"github.com/vitalhub/thrivesync/internal/store"
	"github.com/vitalhub/thrivesync/pkg/apperror"
	pkgvalidator "github.com/vitalhub/thrivesync/pkg/validator"
)

var validate = validator.New()

type FeedService interface {
	LoadFirstPage(ctx context.Context) error
	LoadMore(ctx context.Context) (int, error)
	Posts() []model.Post
	Post(id string) (model.Post, bool)

	ToggleLike(ctx context.Context, postID string) error
	Share(ctx context.Context, postID string)

	LoadComments(ctx context.Context, postID string) error
	Comments(postID string) []model.Comment
	AddComment(ctx context.Context, postID string, req feedDto.AddCommentRequest) (string, error)

	LoadChallengeDay(ctx context.Context, challengeID string, day int) error
	LoadMoreChallengeDay(ctx context.Context, challengeID string, day int) (int, error)
	Tasks(challengeID string, day int) []model.Task
}

type feedService struct {
	store     *store.Store
	ctl       *engine.Controller
	rec       *engine.Reconciler
	pages     *engine.Paginator
	client    *api.Client
	self      model.Author
	pageSize  int
	sanitizer *bluemonday.Policy
}

// NewFeedService builds the feed synchronization service. self is the
// current user, used to attribute optimistic records before the server
// confirms them.
func NewFeedService(s *store.Store, ctl *engine.Controller, rec *engine.Reconciler, pages *engine.Paginator, client *api.Client, self model.Author, pageSize int) FeedService {
	return &feedService{
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

func (s *feedService) LoadFirstPage(ctx context.Context) error {
	return s.pages.LoadFirst(ctx, model.FeedKey, s.pageSize, engine.Tail, s.fetchFeed)
}

func (s *feedService) LoadMore(ctx context.Context) (int, error) {
	return s.pages.LoadMore(ctx, model.FeedKey, s.pageSize, engine.Tail, s.fetchFeed)
}

func (s *feedService) fetchFeed(ctx context.Context, cursor string, limit int) (*engine.Page, error) {
	resp, err := s.client.GetFeed(ctx, cursor, limit)
	if err != nil {
		return nil, err
	}
	page := &engine.Page{NextCursor: resp.NextCursor}
	for _, p := range resp.Items {
		page.Entities = append(page.Entities, p)
	}
	return page, nil
}

func (s *feedService) Posts() []model.Post {
	ids := s.store.List(model.FeedKey)
	posts := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.store.Get(id); ok {
			posts = append(posts, e.(model.Post))
		}
	}
	return posts
}

func (s *feedService) Post(id string) (model.Post, bool) {
	e, ok := s.store.Get(id)
	if !ok {
		return model.Post{}, false
	}
	return e.(model.Post), true
}

// ToggleLike flips the like state locally, then confirms with the server.
// A second toggle while the first is in flight queues behind it, so the
// displayed count is always the server baseline plus the pending local
// delta, never two stacked guesses. The flip direction is decided inside
// Apply, so a racing toggle observes this one's local effect and computes
// the opposite direction.
func (s *feedService) ToggleLike(ctx context.Context, postID string) error {
	if _, ok := s.store.Get(postID); !ok {
		return apperror.ErrNotFound
	}

	var targetLiked bool
	return s.ctl.Do(ctx, engine.Mutation{
		Key: postID,
		Apply: func() func() {
			prev, _ := s.store.Update(postID, func(e store.Entity) store.Entity {
				p := e.(model.Post)
				targetLiked = !p.LikedByMe
				p.LikedByMe = targetLiked
				if targetLiked {
					p.LikesCount++
				} else if p.LikesCount > 0 {
					p.LikesCount--
				}
				return p
			})
			return func() {
				if prev != nil {
					s.store.Put(prev)
				}
			}
		},
		Call: func(ctx context.Context) (any, error) {
			if targetLiked {
				return s.client.LikePost(ctx, postID)
			}
			return s.client.UnlikePost(ctx, postID)
		},
		Reconcile: func(result any) {
			confirmed := result.(*api.LikeResult)
			s.store.Update(postID, func(e store.Entity) store.Entity {
				p := e.(model.Post)
				p.LikesCount = confirmed.LikesCount
				p.LikedByMe = confirmed.LikedByMe
				return p
			})
		},
	})
}

// Share is fire-and-forget: points/analytics on the backend, no local state.
func (s *feedService) Share(ctx context.Context, postID string) {
	s.ctl.Fire(ctx, "share "+postID, func(ctx context.Context) error {
		return s.client.SharePost(ctx, postID)
	})
}

func (s *feedService) LoadComments(ctx context.Context, postID string) error {
	key := model.CommentsKey(postID)
	return s.pages.LoadFirst(ctx, key, 0, engine.Tail,
		func(ctx context.Context, cursor string, limit int) (*engine.Page, error) {
			comments, err := s.client.GetComments(ctx, postID)
			if err != nil {
				return nil, err
			}
			page := &engine.Page{}
			for _, c := range comments {
				page.Entities = append(page.Entities, c)
			}
			return page, nil
		})
}

func (s *feedService) Comments(postID string) []model.Comment {
	ids := s.store.List(model.CommentsKey(postID))
	comments := make([]model.Comment, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.store.Get(id); ok {
			comments = append(comments, e.(model.Comment))
		}
	}
	return comments
}

// AddComment inserts the comment after the last loaded one with a temporary
// id, bumps the post's comment count, and swaps in the confirmed record in
// place. Reconciliation matches by temp id only, never by text, so two rapid
// identical comments stay distinct. Returns the temporary id.
func (s *feedService) AddComment(ctx context.Context, postID string, req feedDto.AddCommentRequest) (string, error) {
	req.Text = s.sanitizer.Sanitize(req.Text)
	if err := validate.Struct(req); err != nil {
		return "", apperror.New(0, pkgvalidator.FormatValidationError(err), apperror.ErrInvalidInput)
	}
	if _, ok := s.store.Get(postID); !ok {
		return "", apperror.ErrNotFound
	}

	key := model.CommentsKey(postID)
	tempID := engine.NewTempID()

	err := s.ctl.Do(ctx, engine.Mutation{
		Key: postID,
		Apply: func() func() {
			prevPost, _ := s.store.Update(postID, func(e store.Entity) store.Entity {
				p := e.(model.Post)
				p.CommentsCount++
				return p
			})
			s.rec.RegisterTemp(key, tempID, model.Comment{
				ID:         tempID,
				PostID:     postID,
				AuthorName: s.self.Username,
				Text:       req.Text,
				CreatedAt:  time.Now(),
				Pending:    true,
			})
			s.store.Append(key, []string{tempID})
			return func() {
				if prevPost != nil {
					s.store.Put(prevPost)
				}
				s.rec.Discard(tempID)
			}
		},
		Call: func(ctx context.Context) (any, error) {
			return s.client.CreateComment(ctx, postID, req.Text)
		},
		Reconcile: func(result any) {
			created := result.(*model.Comment)
			s.rec.Resolve(tempID, *created)
		},
	})
	if err != nil {
		return "", err
	}
	return tempID, nil
}

func (s *feedService) LoadChallengeDay(ctx context.Context, challengeID string, day int) error {
	key := model.ChallengeDayKey(challengeID, day)
	return s.pages.LoadFirst(ctx, key, s.pageSize, engine.Tail, s.fetchTasks(challengeID, day))
}

func (s *feedService) LoadMoreChallengeDay(ctx context.Context, challengeID string, day int) (int, error) {
	key := model.ChallengeDayKey(challengeID, day)
	return s.pages.LoadMore(ctx, key, s.pageSize, engine.Tail, s.fetchTasks(challengeID, day))
}

func (s *feedService) fetchTasks(challengeID string, day int) engine.Fetch {
	return func(ctx context.Context, cursor string, limit int) (*engine.Page, error) {
		resp, err := s.client.GetChallengeDayTasks(ctx, challengeID, day, cursor, limit)
		if err != nil {
			return nil, err
		}
		page := &engine.Page{NextCursor: resp.NextCursor}
		for _, task := range resp.Items {
			page.Entities = append(page.Entities, task)
		}
		return page, nil
	}
}

func (s *feedService) Tasks(challengeID string, day int) []model.Task {
	ids := s.store.List(model.ChallengeDayKey(challengeID, day))
	tasks := make([]model.Task, 0, len(ids))
	for _, id := range ids {
		if e, ok := s.store.Get(id); ok {
			tasks = append(tasks, e.(model.Task))
		}
	}
	return tasks
}
