package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("INTERNAL_TOKEN", "internal")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9095", cfg.Server.Addr())
	assert.Equal(t, 30*time.Second, cfg.Realtime.HeartbeatInterval)
	assert.Equal(t, 5*time.Second, cfg.Realtime.TypingExpiry)
	assert.Equal(t, 256, cfg.Realtime.SendBufferSize)
	assert.Equal(t, 30, cfg.Realtime.EventRateLimit)
	assert.Equal(t, 10*time.Second, cfg.Realtime.EventRateWindow)
	assert.Equal(t, "secret", cfg.JWT.Secret)
	assert.Equal(t, "internal", cfg.Internal.Token)
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SERVER_HOST", "127.0.0.1")
	t.Setenv("SERVER_PORT", "8080")
	t.Setenv("REALTIME_HEARTBEAT_INTERVAL", "10s")
	t.Setenv("REALTIME_TYPING_EXPIRY", "2s")
	t.Setenv("CORS_ORIGIN", "https://xavlink.example")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr())
	assert.Equal(t, 10*time.Second, cfg.Realtime.HeartbeatInterval)
	assert.Equal(t, 2*time.Second, cfg.Realtime.TypingExpiry)
	assert.Equal(t, []string{"https://xavlink.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadRequiresSecrets(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	t.Setenv("INTERNAL_TOKEN", "internal")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("INTERNAL_TOKEN", "")
	_, err = Load()
	assert.Error(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	setRequired(t)

	t.Setenv("SERVER_PORT", "not-a-port")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("SERVER_PORT", "9095")
	t.Setenv("REALTIME_HEARTBEAT_INTERVAL", "soon")
	_, err = Load()
	assert.Error(t, err)
}
