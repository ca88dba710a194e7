package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8080", cfg.APIBaseURL)
	assert.Equal(t, "ws://localhost:8080/ws/receipts", cfg.WSURL)
	assert.Equal(t, 20, cfg.FeedPageSize)
	assert.Equal(t, 50, cfg.ChatPageSize)
	assert.Equal(t, "8080", cfg.Port)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("THRIVE_API_BASE_URL", "https://api.vitalhub.example")
	t.Setenv("HTTP_TIMEOUT", "3s")
	t.Setenv("FEED_PAGE_SIZE", "5")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "https://api.vitalhub.example", cfg.APIBaseURL)
	assert.Equal(t, "3s", cfg.HTTPTimeout.String())
	assert.Equal(t, 5, cfg.FeedPageSize)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("HTTP_TIMEOUT", "soon")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoadRejectsNonPositivePageSize(t *testing.T) {
	t.Setenv("CHAT_PAGE_SIZE", "0")
	_, err := Load()
	assert.Error(t, err)
}
