package main

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/vitalhub/thrivesync/internal/apitest"
	"github.com/vitalhub/thrivesync/internal/config"
	"github.com/vitalhub/thrivesync/internal/model"
)

// mockserver runs the in-memory Thrive backend standalone so UI screens can
// be developed against it without the real API.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	backend := apitest.New(cfg.JWTSecret)
	seed(backend)

	demoUser := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	log.Printf("demo token: %s", backend.MintToken(demoUser.String()))

	router := backend.Router(cfg.AllowedOrigins)
	log.Printf("mock Thrive backend listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server stopped: %v", err)
	}
}

func seed(b *apitest.Backend) {
	me := model.Author{
		ID:       uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		Username: "demo",
	}
	coach := model.Author{
		ID:       uuid.MustParse("00000000-0000-0000-0000-000000000002"),
		Username: "coach_amy",
	}
	b.AddUser(me)
	b.AddUser(coach)

	for i := 30; i >= 1; i-- {
		b.SeedPosts(model.Post{
			ID:         uuid.NewString(),
			Author:     coach,
			Caption:    "Day " + time.Now().AddDate(0, 0, -i).Format("Jan 2") + " step challenge check-in",
			LikesCount: i % 7,
			CreatedAt:  time.Now().AddDate(0, 0, -i),
		})
	}

	key := model.ThreadRef{Kind: model.ThreadTalk, ID: "team-1"}.Key()
	for i := 1; i <= 80; i++ {
		b.SeedMessages(key, model.Message{
			ID:        uuid.NewString(),
			ThreadKey: key,
			Sender:    coach,
			Body:      "Keep it up, message " + time.Now().Format("15:04"),
			Status:    model.StatusSent,
			CreatedAt: time.Now().Add(-time.Duration(80-i) * time.Minute),
		})
	}

	b.SeedNotifications(model.Notification{
		ID:        uuid.NewString(),
		Type:      "challenge",
		Message:   "A new wellness challenge starts today",
		CreatedAt: time.Now(),
	})
}
