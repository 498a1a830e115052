package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var envKeys = []string{
	"ENV", "NODE_ENV",
	"MONGODB_URI", "MONGODB_DATABASE", "MONGODB_CONNECT_TIMEOUT",
	"TELEGRAM_BOT_TOKEN", "CHAT_ID", "TELEGRAM_MODE", "WEBHOOK_URL", "VERCEL_URL", "TELEGRAM_PROXY", "TELEGRAM_NO_PROXY",
	"PORT", "LISTEN_ADDR", "RATE_LIMIT_REQUESTS", "RATE_LIMIT_PERIOD", "REDIS_URL",
	"REPORT_CRON", "TZ_NAME", "REPORT_DIAGNOSTICS", "HISTORY_PATH",
	"LOG_LEVEL", "LOG_FORMAT", "METRICS_ENABLED",
}

// clearEnv unsets every variable Load reads, restoring them after the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range envKeys {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "statsbot.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, EnvDevelopment, cfg.Environment)
	assert.Equal(t, "toolbar", cfg.Mongo.Database)
	assert.Equal(t, 10*time.Second, cfg.Mongo.ConnectTimeout)
	assert.Equal(t, ":3000", cfg.Server.ListenAddr)
	assert.Equal(t, int64(30), cfg.Server.RateLimitRequests)
	assert.Equal(t, time.Minute, cfg.Server.RateLimitPeriod)
	assert.Equal(t, "0 9 * * *", cfg.Schedule.Cron)
	assert.Equal(t, ModePolling, cfg.Telegram.Mode)
	assert.Equal(t, "console", cfg.Logging.Format)
	assert.Equal(t, "statsbot.db", cfg.History.Path)
	assert.True(t, cfg.Metrics.Enabled)
	assert.False(t, cfg.Report.Diagnostics)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultListenAddr, cfg.Server.ListenAddr)
}

func TestLoad_File(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
environment: production
mongo:
  uri: mongodb://db:27017
  database: analytics
  connect_timeout: 3s
telegram:
  token: "123:abc"
  chat_id: -100123
  webhook_url: bot.example.app
schedule:
  cron: "30 8 * * 1-5"
  timezone: Europe/Berlin
report:
  diagnostics: true
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, "mongodb://db:27017", cfg.Mongo.URI)
	assert.Equal(t, "analytics", cfg.Mongo.Database)
	assert.Equal(t, 3*time.Second, cfg.Mongo.ConnectTimeout)
	assert.Equal(t, int64(-100123), cfg.Telegram.ChatID)
	assert.Equal(t, ModeWebhook, cfg.Telegram.Mode, "production defaults to webhook")
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "30 8 * * 1-5", cfg.Schedule.Cron)
	assert.True(t, cfg.Report.Diagnostics)

	require.NoError(t, cfg.Validate())
	require.NoError(t, cfg.ValidateTelegram())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Berlin", loc.String())
}

func TestLoad_InvalidFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, "mongo: [not, a, map]")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := writeConfig(t, `
mongo:
  uri: mongodb://file:27017
server:
  listen_addr: ":8080"
`)

	t.Setenv("MONGODB_URI", "mongodb://env:27017")
	t.Setenv("PORT", "4000")
	t.Setenv("TELEGRAM_BOT_TOKEN", "t")
	t.Setenv("CHAT_ID", "42")
	t.Setenv("VERCEL_URL", "statsbot.vercel.app")
	t.Setenv("NODE_ENV", "production")
	t.Setenv("RATE_LIMIT_REQUESTS", "5")
	t.Setenv("RATE_LIMIT_PERIOD", "10s")
	t.Setenv("REDIS_URL", "redis://cache:6379/0")
	t.Setenv("REPORT_DIAGNOSTICS", "true")
	t.Setenv("HISTORY_PATH", "")
	t.Setenv("METRICS_ENABLED", "false")
	t.Setenv("TELEGRAM_PROXY", "socks5://proxy:1080")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "mongodb://env:27017", cfg.Mongo.URI)
	assert.Equal(t, ":4000", cfg.Server.ListenAddr)
	assert.Equal(t, int64(42), cfg.Telegram.ChatID)
	assert.Equal(t, "statsbot.vercel.app", cfg.Telegram.WebhookURL)
	assert.Equal(t, EnvProduction, cfg.Environment)
	assert.Equal(t, int64(5), cfg.Server.RateLimitRequests)
	assert.Equal(t, 10*time.Second, cfg.Server.RateLimitPeriod)
	assert.Equal(t, "redis://cache:6379/0", cfg.Server.RedisURL)
	assert.True(t, cfg.Report.Diagnostics)
	assert.Empty(t, cfg.History.Path, "an empty HISTORY_PATH disables history")
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, "socks5://proxy:1080", cfg.Telegram.Proxy)
}

func TestLoad_ListenAddrWinsOverPort(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "4000")
	t.Setenv("LISTEN_ADDR", "127.0.0.1:9000")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.ListenAddr)
}

func TestLoad_InvalidChatID(t *testing.T) {
	clearEnv(t)
	t.Setenv("CHAT_ID", "general")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CHAT_ID")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr error
	}{
		{"valid", func(c *Config) {}, nil},
		{"missing uri", func(c *Config) { c.Mongo.URI = "" }, ErrMissingMongoURI},
		{"bad rate limit period", func(c *Config) { c.Server.RateLimitPeriod = 0 }, ErrInvalidRateLimitSpan},
		{"rate limiting disabled", func(c *Config) {
			c.Server.RateLimitRequests = 0
			c.Server.RateLimitPeriod = 0
		}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Mongo.URI = "mongodb://localhost:27017"
			tt.mutate(cfg)

			err := cfg.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
		})
	}
}

func TestValidate_ScheduleAndTimezone(t *testing.T) {
	cfg := Default()
	cfg.Mongo.URI = "mongodb://localhost:27017"

	cfg.Schedule.Cron = "every morning"
	assert.Error(t, cfg.Validate())

	cfg.Schedule.Cron = DefaultCronSpec
	cfg.Schedule.Timezone = "Mars/Olympus_Mons"
	assert.Error(t, cfg.Validate())
}

func TestValidateTelegram(t *testing.T) {
	tests := []struct {
		name    string
		cfg     TelegramConfig
		wantErr error
	}{
		{"polling", TelegramConfig{Token: "t", ChatID: 1, Mode: ModePolling}, nil},
		{"webhook", TelegramConfig{Token: "t", ChatID: 1, Mode: ModeWebhook, WebhookURL: "x.app"}, nil},
		{"missing token", TelegramConfig{ChatID: 1, Mode: ModePolling}, ErrMissingBotToken},
		{"missing chat", TelegramConfig{Token: "t", Mode: ModePolling}, ErrMissingChatID},
		{"webhook without url", TelegramConfig{Token: "t", ChatID: 1, Mode: ModeWebhook}, ErrMissingWebhookURL},
		{"unknown mode", TelegramConfig{Token: "t", ChatID: 1, Mode: "carrier-pigeon"}, ErrInvalidTelegramMode},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			cfg.Telegram = tt.cfg

			err := cfg.ValidateTelegram()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestLocation_Local(t *testing.T) {
	cfg := Default()
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, time.Local, loc)
}
