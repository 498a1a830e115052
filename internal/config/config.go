// Package config loads statsbot configuration from a YAML file and the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Telegram update delivery modes.
const (
	ModePolling = "polling"
	ModeWebhook = "webhook"
)

// Defaults.
const (
	DefaultDatabase       = "toolbar"
	DefaultConnectTimeout = 10 * time.Second
	DefaultListenAddr     = ":3000"
	DefaultCronSpec       = "0 9 * * *"
	DefaultHistoryPath    = "statsbot.db"
	DefaultRateLimit      = 30
	DefaultRateLimitRange = time.Minute
)

// Validation errors.
var (
	ErrMissingMongoURI      = errors.New("mongo.uri (MONGODB_URI) is required")
	ErrMissingBotToken      = errors.New("telegram.token (TELEGRAM_BOT_TOKEN) is required")
	ErrMissingChatID        = errors.New("telegram.chat_id (CHAT_ID) is required")
	ErrMissingWebhookURL    = errors.New("telegram.webhook_url (WEBHOOK_URL) is required in webhook mode")
	ErrInvalidTelegramMode  = errors.New("telegram.mode must be polling or webhook")
	ErrInvalidRateLimitSpan = errors.New("server.rate_limit_period must be positive when rate limiting is enabled")
)

// Config is the full statsbot configuration.
type Config struct {
	Environment Environment    `yaml:"environment"`
	Mongo       MongoConfig    `yaml:"mongo"`
	Telegram    TelegramConfig `yaml:"telegram"`
	Server      ServerConfig   `yaml:"server"`
	Schedule    ScheduleConfig `yaml:"schedule"`
	Report      ReportConfig   `yaml:"report"`
	History     HistoryConfig  `yaml:"history"`
	Logging     LoggingConfig  `yaml:"logging"`
	Metrics     MetricsConfig  `yaml:"metrics"`
}

// MongoConfig holds the record store connection settings.
type MongoConfig struct {
	URI            string        `yaml:"uri"`
	Database       string        `yaml:"database"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// TelegramConfig holds the bot settings.
type TelegramConfig struct {
	Token      string `yaml:"token"`
	ChatID     int64  `yaml:"chat_id"`
	Mode       string `yaml:"mode"`
	WebhookURL string `yaml:"webhook_url"`
	// Proxy is an http(s):// or socks5:// URL for Bot API requests.
	Proxy   string `yaml:"proxy"`
	NoProxy string `yaml:"no_proxy"`
}

// ScheduleConfig controls the daily report.
type ScheduleConfig struct {
	Cron     string `yaml:"cron"`
	Timezone string `yaml:"timezone"`
}

// ReportConfig controls report generation.
type ReportConfig struct {
	Diagnostics bool `yaml:"diagnostics"`
}

// HistoryConfig controls the local run history. An empty path disables it.
type HistoryConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // json or console
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Environment: EnvDevelopment,
		Mongo: MongoConfig{
			Database:       DefaultDatabase,
			ConnectTimeout: DefaultConnectTimeout,
		},
		Server: ServerConfig{
			ListenAddr:        DefaultListenAddr,
			RateLimitRequests: DefaultRateLimit,
			RateLimitPeriod:   DefaultRateLimitRange,
		},
		Schedule: ScheduleConfig{
			Cron:     DefaultCronSpec,
			Timezone: "Local",
		},
		History: HistoryConfig{Path: DefaultHistoryPath},
		Logging: LoggingConfig{Level: "info"},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is set and the file exists) and environment overrides, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		case os.IsNotExist(err):
		default:
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalize()

	return cfg, nil
}

func (c *Config) applyEnv() error {
	if val := firstEnv("ENV", "NODE_ENV"); val != "" {
		c.Environment = parseEnvironment(val)
	}

	if val := firstEnv("MONGODB_URI"); val != "" {
		c.Mongo.URI = val
	}
	if val := firstEnv("MONGODB_DATABASE"); val != "" {
		c.Mongo.Database = val
	}
	c.Mongo.ConnectTimeout = getEnvDuration("MONGODB_CONNECT_TIMEOUT", c.Mongo.ConnectTimeout)

	if val := firstEnv("TELEGRAM_BOT_TOKEN"); val != "" {
		c.Telegram.Token = val
	}
	if val := firstEnv("CHAT_ID"); val != "" {
		id, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return fmt.Errorf("parse CHAT_ID %q: %w", val, err)
		}
		c.Telegram.ChatID = id
	}
	if val := firstEnv("TELEGRAM_MODE"); val != "" {
		c.Telegram.Mode = strings.ToLower(val)
	}
	if val := firstEnv("WEBHOOK_URL", "VERCEL_URL"); val != "" {
		c.Telegram.WebhookURL = val
	}
	if val := os.Getenv("TELEGRAM_PROXY"); val != "" {
		c.Telegram.Proxy = val
	}
	if val := os.Getenv("TELEGRAM_NO_PROXY"); val != "" {
		c.Telegram.NoProxy = val
	}

	if val := firstEnv("LISTEN_ADDR"); val != "" {
		c.Server.ListenAddr = val
	} else if val := firstEnv("PORT"); val != "" {
		c.Server.ListenAddr = ":" + val
	}
	c.Server.RateLimitRequests = getEnvInt("RATE_LIMIT_REQUESTS", c.Server.RateLimitRequests)
	c.Server.RateLimitPeriod = getEnvDuration("RATE_LIMIT_PERIOD", c.Server.RateLimitPeriod)
	if val := firstEnv("REDIS_URL"); val != "" {
		c.Server.RedisURL = val
	}

	if val := firstEnv("REPORT_CRON"); val != "" {
		c.Schedule.Cron = val
	}
	if val := firstEnv("TZ_NAME"); val != "" {
		c.Schedule.Timezone = val
	}
	c.Report.Diagnostics = getEnvBool("REPORT_DIAGNOSTICS", c.Report.Diagnostics)

	if val, ok := os.LookupEnv("HISTORY_PATH"); ok {
		c.History.Path = strings.TrimSpace(val)
	}

	if val := firstEnv("LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := firstEnv("LOG_FORMAT"); val != "" {
		c.Logging.Format = val
	}
	c.Metrics.Enabled = getEnvBool("METRICS_ENABLED", c.Metrics.Enabled)

	return nil
}

// normalize fills values that depend on other settings.
func (c *Config) normalize() {
	c.Environment = parseEnvironment(string(c.Environment))

	if c.Telegram.Mode == "" {
		if c.IsProduction() {
			c.Telegram.Mode = ModeWebhook
		} else {
			c.Telegram.Mode = ModePolling
		}
	}
	if c.Logging.Format == "" {
		if c.IsProduction() {
			c.Logging.Format = "json"
		} else {
			c.Logging.Format = "console"
		}
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = DefaultDatabase
	}
	if c.Mongo.ConnectTimeout <= 0 {
		c.Mongo.ConnectTimeout = DefaultConnectTimeout
	}
	if c.Schedule.Cron == "" {
		c.Schedule.Cron = DefaultCronSpec
	}
}

// IsProduction reports whether the bot runs in production.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// Location returns the timezone that defines "today" for reports.
func (c *Config) Location() (*time.Location, error) {
	if c.Schedule.Timezone == "" || c.Schedule.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Schedule.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", c.Schedule.Timezone, err)
	}
	return loc, nil
}

// Validate checks the settings every command needs.
func (c *Config) Validate() error {
	if c.Mongo.URI == "" {
		return ErrMissingMongoURI
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
		return fmt.Errorf("invalid schedule.cron %q: %w", c.Schedule.Cron, err)
	}
	if c.Server.RateLimitRequests > 0 && c.Server.RateLimitPeriod <= 0 {
		return ErrInvalidRateLimitSpan
	}
	return nil
}

// ValidateTelegram checks the settings needed to run the bot or send reports.
func (c *Config) ValidateTelegram() error {
	if c.Telegram.Token == "" {
		return ErrMissingBotToken
	}
	if c.Telegram.ChatID == 0 {
		return ErrMissingChatID
	}
	switch c.Telegram.Mode {
	case ModePolling:
	case ModeWebhook:
		if c.Telegram.WebhookURL == "" {
			return ErrMissingWebhookURL
		}
	default:
		return ErrInvalidTelegramMode
	}
	return nil
}
