package config

import (
	"testing"
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_FromEnvironment(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.test")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("UNREAD_POLL_SECONDS", "15")
	t.Setenv("FINISH_REQUIRES_IN_PROCESS", "true")

	cfg, err := New(nil)
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.test", cfg.APIBaseURL)
	assert.Equal(t, 9090, cfg.ServerPort)
	assert.Equal(t, 15*time.Second, cfg.UnreadPollInterval())
	assert.Equal(t, 30*time.Second, cfg.NotificationPollInterval())
	assert.Equal(t, time.Second, cfg.FetchCooldown())
	assert.Equal(t, 500, cfg.ToastedSetCapacity)
	assert.True(t, cfg.FinishRequiresInProcess)
	assert.False(t, cfg.CacheEnabled())
	assert.Equal(t, cfg, GetConfig())
}

func TestNew_FlagsOverrideEnvironment(t *testing.T) {
	t.Setenv("API_BASE_URL", "https://api.example.test")
	t.Setenv("SERVER_PORT", "9090")

	flags := Flags()
	require.NoError(t, flags.Parse([]string{
		"--server-port=7070",
		"--db-cache-address=localhost",
		"--db-cache-port=6379",
	}))

	cfg, err := New(flags)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.ServerPort)
	assert.Equal(t, "https://api.example.test", cfg.APIBaseURL)
	assert.True(t, cfg.CacheEnabled())
}

func TestValidateConfig(t *testing.T) {
	valid := Config{
		ServerPort:              8380,
		APIBaseURL:              "https://api.example.test",
		NotificationPollSeconds: 30,
		UnreadPollSeconds:       30,
		FetchCooldownMS:         1000,
		ToastedSetCapacity:      500,
	}

	testCases := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(c *Config) {}, wantErr: false},
		{name: "zero port", mutate: func(c *Config) { c.ServerPort = 0 }, wantErr: true},
		{name: "missing api url", mutate: func(c *Config) { c.APIBaseURL = "" }, wantErr: true},
		{name: "zero poll interval", mutate: func(c *Config) { c.UnreadPollSeconds = 0 }, wantErr: true},
		{name: "negative cooldown", mutate: func(c *Config) { c.FetchCooldownMS = -1 }, wantErr: true},
		{name: "zero capacity", mutate: func(c *Config) { c.ToastedSetCapacity = 0 }, wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := valid
			tc.mutate(&cfg)
			err := validateConfig(cfg, logger.New("config_test"))
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
