// Package config loads all application configuration from environment
// variables, with .env support for development. Realtime tuning knobs
// (heartbeat, typing expiry, rate limits) are configuration rather than
// hard-coded constants so expiry and throttling behavior stays testable in
// isolation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every configuration value the gateway needs.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Internal InternalConfig
	Realtime RealtimeConfig
	CORS     CORSConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string
	Port int
}

// DatabaseConfig holds SQLite settings.
type DatabaseConfig struct {
	Path string // e.g. ./data/xavlink-realtime.db
}

// JWTConfig holds token validation settings. The REST backend mints the
// tokens; the gateway only verifies signatures with the shared secret.
type JWTConfig struct {
	Secret string
}

// InternalConfig authenticates the REST backend's publish calls.
type InternalConfig struct {
	Token string // shared bearer token for /internal endpoints
}

// RealtimeConfig holds delivery-path tuning.
type RealtimeConfig struct {
	HeartbeatInterval time.Duration // expected client ping cadence
	TypingExpiry      time.Duration // server-side stale typing sweep window
	SendBufferSize    int           // per-connection outbound buffer
	EventRateLimit    int           // inbound ops per user per window
	EventRateWindow   time.Duration
}

// CORSConfig lists origins allowed to open websocket/HTTP connections.
type CORSConfig struct {
	AllowedOrigins []string
}

// Load builds a Config from the environment. A .env file is loaded first if
// present; missing secrets fail fast.
func Load() (*Config, error) {
	_ = godotenv.Load()

	port, err := strconv.Atoi(getEnv("SERVER_PORT", "9095"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	heartbeat, err := time.ParseDuration(getEnv("REALTIME_HEARTBEAT_INTERVAL", "30s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REALTIME_HEARTBEAT_INTERVAL: %w", err)
	}

	typingExpiry, err := time.ParseDuration(getEnv("REALTIME_TYPING_EXPIRY", "5s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REALTIME_TYPING_EXPIRY: %w", err)
	}

	sendBuffer, err := strconv.Atoi(getEnv("REALTIME_SEND_BUFFER", "256"))
	if err != nil {
		return nil, fmt.Errorf("invalid REALTIME_SEND_BUFFER: %w", err)
	}

	rateLimit, err := strconv.Atoi(getEnv("REALTIME_EVENT_RATE_LIMIT", "30"))
	if err != nil {
		return nil, fmt.Errorf("invalid REALTIME_EVENT_RATE_LIMIT: %w", err)
	}

	rateWindow, err := time.ParseDuration(getEnv("REALTIME_EVENT_RATE_WINDOW", "10s"))
	if err != nil {
		return nil, fmt.Errorf("invalid REALTIME_EVENT_RATE_WINDOW: %w", err)
	}

	jwtSecret := getEnv("JWT_SECRET", "")
	if jwtSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET environment variable is required")
	}

	internalToken := getEnv("INTERNAL_TOKEN", "")
	if internalToken == "" {
		return nil, fmt.Errorf("INTERNAL_TOKEN environment variable is required")
	}

	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: port,
		},
		Database: DatabaseConfig{
			Path: getEnv("DATABASE_PATH", "./data/xavlink-realtime.db"),
		},
		JWT: JWTConfig{
			Secret: jwtSecret,
		},
		Internal: InternalConfig{
			Token: internalToken,
		},
		Realtime: RealtimeConfig{
			HeartbeatInterval: heartbeat,
			TypingExpiry:      typingExpiry,
			SendBufferSize:    sendBuffer,
			EventRateLimit:    rateLimit,
			EventRateWindow:   rateWindow,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{
				getEnv("CORS_ORIGIN", "http://localhost:3000"),
			},
		},
	}

	return cfg, nil
}

// Addr returns the listen address, e.g. "0.0.0.0:9095".
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// getEnv reads an environment variable with a fallback.
func getEnv(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		return val
	}
	return fallback
}
