package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.HTTPPort)
	assert.Equal(t, "primary", cfg.CalendarID)
	assert.Equal(t, 10, cfg.MaxIterations)
	assert.True(t, cfg.DuplicateGuard)
	assert.Equal(t, DefaultOrderSenders, cfg.OrderSenders)
}

func TestLoadFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orderdesk.yaml")
	content := []byte(`
http_port: 9000
calendar_id: orders@group.calendar.google.com
order_senders:
  - orders@example.com
max_iterations: 4
run_timeout: 90s
time_zone: America/Toronto
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_ITERATIONS", "6")
	t.Setenv("GROQ_API_KEY", "gsk_test")
	t.Setenv("DUPLICATE_GUARD", "false")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.HTTPPort)
	assert.Equal(t, "orders@group.calendar.google.com", cfg.CalendarID)
	assert.Equal(t, []string{"orders@example.com"}, cfg.OrderSenders)
	assert.Equal(t, 6, cfg.MaxIterations)
	assert.Equal(t, 90*time.Second, cfg.RunTimeout)
	assert.Equal(t, "gsk_test", cfg.LLMAPIKey)
	assert.False(t, cfg.DuplicateGuard)

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Toronto", loc.String())
}

func TestLoadSenderList(t *testing.T) {
	t.Setenv("ORDER_SENDERS", " a@example.com, ,b@example.com ")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, cfg.OrderSenders)
}

func TestValidateRejectsBadBudgets(t *testing.T) {
	cfg := Default()
	cfg.MaxIterations = 0
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.TimeZone = "Mars/Olympus"
	assert.Error(t, cfg.Validate())
}
