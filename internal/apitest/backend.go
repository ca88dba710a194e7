// Package apitest is an in-memory stand-in for the Thrive backend. It serves
// every endpoint the synchronization core consumes, plus fault injection
// hooks, so rollback and dedup paths are exercised against the real HTTP
// stack. cmd/mockserver runs it standalone for UI development.
package apitest

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/vitalhub/thrivesync/internal/model"
	chatDto "github.com/vitalhub/thrivesync/internal/modules/chat/dto"
)

type Backend struct {
	secret string

	mu            sync.Mutex
	users         map[string]model.Author
	posts         []model.Post // newest first
	likedBy       map[string]map[string]bool
	comments      map[string][]model.Comment
	messages      map[string][]model.Message // oldest first, keyed by thread key
	notifications []model.Notification
	tasks         map[string][]model.Task

	failNext    map[string]int
	gates       map[string]chan struct{}
	overlapNext int

	upgrader websocket.Upgrader
	wsConns  map[*websocket.Conn]bool
}

func New(secret string) *Backend {
	return &Backend{
		secret:   secret,
		users:    make(map[string]model.Author),
		likedBy:  make(map[string]map[string]bool),
		comments: make(map[string][]model.Comment),
		messages: make(map[string][]model.Message),
		tasks:    make(map[string][]model.Task),
		failNext: make(map[string]int),
		gates:    make(map[string]chan struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		wsConns: make(map[*websocket.Conn]bool),
	}
}

// MintToken issues a bearer token the backend's auth middleware accepts.
func (b *Backend) MintToken(userID string) string {
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(24 * time.Hour)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(b.secret))
	if err != nil {
		panic(fmt.Sprintf("mint token: %v", err))
	}
	return signed
}

// Seeding

func (b *Backend) AddUser(a model.Author) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.users[a.ID.String()] = a
}

// SeedPosts installs the feed, newest first.
func (b *Backend) SeedPosts(posts ...model.Post) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.posts = append(b.posts, posts...)
}

// SeedMessages installs thread history, oldest first.
func (b *Backend) SeedMessages(key string, messages ...model.Message) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages[key] = append(b.messages[key], messages...)
}

func (b *Backend) SeedNotifications(notifications ...model.Notification) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.notifications = append(b.notifications, notifications...)
}

func (b *Backend) SeedTasks(challengeID string, day int, tasks ...model.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	key := model.ChallengeDayKey(challengeID, day)
	b.tasks[key] = append(b.tasks[key], tasks...)
}

// Inspection

func (b *Backend) Post(id string) (model.Post, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, p := range b.posts {
		if p.ID == id {
			return p, true
		}
	}
	return model.Post{}, false
}

func (b *Backend) Messages(key string) []model.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]model.Message, len(b.messages[key]))
	copy(out, b.messages[key])
	return out
}

// Fault injection

// FailNext makes the next n requests on a route answer 500. Route names:
// feed, like, unlike, comments, comment, share, history, message,
// notifications, read, read-all, tasks.
func (b *Backend) FailNext(route string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failNext[route] = n
}

// Hold blocks requests on a route until the returned release func is called.
// Lets tests observe the optimistic state while a call is in flight.
func (b *Backend) Hold(route string) (release func()) {
	gate := make(chan struct{})
	b.mu.Lock()
	b.gates[route] = gate
	b.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.gates, route)
			b.mu.Unlock()
			close(gate)
		})
	}
}

// OverlapNext widens the next cursor fetch to start one item earlier,
// simulating a retried call that returns an overlapping page.
func (b *Backend) OverlapNext(n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.overlapNext = n
}

// PushReceipt broadcasts a delivery/read receipt to every connected
// websocket client.
func (b *Backend) PushReceipt(r chatDto.Receipt) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for conn := range b.wsConns {
		if err := conn.WriteJSON(r); err != nil {
			delete(b.wsConns, conn)
			conn.Close()
		}
	}
}

func (b *Backend) intercept(route string) (fail bool) {
	b.mu.Lock()
	gate := b.gates[route]
	b.mu.Unlock()
	if gate != nil {
		<-gate
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNext[route] > 0 {
		b.failNext[route]--
		return true
	}
	return false
}

func newServerID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}
