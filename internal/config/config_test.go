package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/matchmaking")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, 90*time.Second, cfg.DraftPickTimeout)
	assert.Equal(t, 4*time.Hour, cfg.MatchRetention)
	assert.Equal(t, "info", cfg.LogLevel)
}

func TestParseOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/matchmaking")
	t.Setenv("LISTEN_ADDR", ":9999")
	t.Setenv("DRAFT_PICK_TIMEOUT", "2m")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Parse()
	require.NoError(t, err)
	assert.Equal(t, ":9999", cfg.ListenAddr)
	assert.Equal(t, 2*time.Minute, cfg.DraftPickTimeout)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestParseRequiresDatabaseURL(t *testing.T) {
	// t.Setenv registers the restore; the variable must be truly unset for
	// the required tag to trip.
	t.Setenv("DATABASE_URL", "x")
	require.NoError(t, os.Unsetenv("DATABASE_URL"))

	_, err := Parse()
	assert.Error(t, err)
}
