package server

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resetConfigAfter(t *testing.T) {
	t.Helper()
	t.Cleanup(func() { SetConfig(nil) })
}

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "uploads", cfg.UploadDir)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadSize)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://chat.example.com,http://localhost:3000")
	t.Setenv("MAX_MESSAGE_SIZE", "1024")
	t.Setenv("RATE_LIMIT_BURST", "20")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("UPLOAD_DIR", "/tmp/chat-uploads")
	t.Setenv("MAX_UPLOAD_SIZE", "1048576")
	t.Setenv("SHUTDOWN_TIMEOUT", "5s")

	cfg, err := NewConfigFromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"https://chat.example.com", "http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, int64(1024), cfg.MaxMessageSize)
	assert.Equal(t, 20, cfg.RateLimit.Burst)
	assert.Equal(t, 2*time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "/tmp/chat-uploads", cfg.UploadDir)
	assert.Equal(t, int64(1<<20), cfg.MaxUploadSize)
	assert.Equal(t, 5*time.Second, cfg.ShutdownTimeout)
}

func TestNewConfigFromEnvKeepsDefaultsWhenUnset(t *testing.T) {
	cfg, err := NewConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, NewConfig().Port, cfg.Port)
	assert.Equal(t, NewConfig().RateLimit, cfg.RateLimit)
}

func TestSetConfigSanitizesInvalidValues(t *testing.T) {
	resetConfigAfter(t)

	SetConfig(&Config{
		Port:           "",
		MaxMessageSize: -1,
		RateLimit:      RateLimitConfig{Burst: 0, RefillInterval: 0},
	})

	cfg := currentConfig()
	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, int64(4096), cfg.MaxMessageSize)
	assert.Equal(t, 10, cfg.RateLimit.Burst)
	assert.Equal(t, time.Second, cfg.RateLimit.RefillInterval)
	assert.Equal(t, "uploads", cfg.UploadDir)
}

func newUpgradeRequest(t *testing.T, origin string) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "/ws", nil)
	require.NoError(t, err)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

func TestOriginAllowlist(t *testing.T) {
	resetConfigAfter(t)

	SetConfig(&Config{AllowedOrigins: []string{"https://Chat.Example.com"}})

	assert.True(t, checkOrigin(newUpgradeRequest(t, "https://chat.example.com")))
	assert.False(t, checkOrigin(newUpgradeRequest(t, "https://evil.example.com")))
	assert.False(t, checkOrigin(newUpgradeRequest(t, "")))
	assert.False(t, checkOrigin(newUpgradeRequest(t, "not a url")))
}

func TestOriginWildcardAllowsAnyValidOrigin(t *testing.T) {
	resetConfigAfter(t)

	SetConfig(&Config{AllowedOrigins: []string{"*"}})

	assert.True(t, checkOrigin(newUpgradeRequest(t, "https://anything.example.com")))
	// A missing or malformed Origin header is still rejected.
	assert.False(t, checkOrigin(newUpgradeRequest(t, "")))
}

func TestOriginInvalidEntriesIgnored(t *testing.T) {
	resetConfigAfter(t)

	SetConfig(&Config{AllowedOrigins: []string{"   ", "nonsense", "http://localhost:8080"}})

	cfg := currentConfig()
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
}
