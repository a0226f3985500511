package config

import (
	"bytes"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("STORE_TIMEOUT", "")
	t.Setenv("MAX_ACTIVE_ORDERS", "")
	t.Setenv("CANCEL_FROM_PREPARING", "")

	cfg := Load()
	assert.Equal(t, ":8082", cfg.HTTPAddr)
	assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
	assert.Equal(t, 50, cfg.Defaults.MaxActiveOrders)
	assert.False(t, cfg.Defaults.CancelFromPreparing)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("STORE_TIMEOUT", "750ms")
	t.Setenv("MAX_ACTIVE_ORDERS", "12")
	t.Setenv("CANCEL_FROM_PREPARING", "true")
	t.Setenv("ROLE_CACHE_TTL", "not-a-duration")

	cfg := Load()
	assert.Equal(t, ":9000", cfg.HTTPAddr)
	assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
	assert.Equal(t, 12, cfg.Defaults.MaxActiveOrders)
	assert.True(t, cfg.Defaults.CancelFromPreparing)
	assert.Equal(t, 30*time.Second, cfg.RoleCacheTTL)
}

func TestLoad_LogsWithoutSecrets(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewTextHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	t.Setenv("HTTP_ADDR", ":9100")
	t.Setenv("POSTGRES_DSN", "postgres://cafe:s3cret@db:5432/cafeteria")
	t.Setenv("COUNTER_KEY_HASH", "$2a$10$abcdefghijklmnopqrstuv")

	Load()
	out := buf.String()
	assert.Contains(t, out, "[config] loaded")
	assert.Contains(t, out, "config.HTTP_ADDR=:9100")
	assert.Contains(t, out, "config.POSTGRES_DSN_SET=true")
	assert.Contains(t, out, "config.COUNTER_KEY_HASH_SET=true")
	assert.NotContains(t, out, "s3cret")
	assert.NotContains(t, out, "$2a$10$")
}
