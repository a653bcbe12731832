package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

// Config is the full environment-driven configuration surface. Durations use
// Go syntax ("20s", "5m").
type Config struct {
	HTTPAddr string `env:"HTTP_ADDR,default=:8000"`

	DBURL    string `env:"DB_URL,required=true"`
	RedisURL string `env:"REDIS_URL"` // empty selects the in-process fabric and disables the queue

	JWTSecret string `env:"JWT_SECRET,required=true"`

	PingInterval time.Duration `env:"PING_INTERVAL,default=20s"`
	PongTimeout  time.Duration `env:"PONG_TIMEOUT,default=10s"`

	MessageMaxLength     int `env:"MESSAGE_MAX_LENGTH,default=2048"`
	ConversationPageSize int `env:"CONVERSATION_PAGE_SIZE,default=10"`
	MessagePageSize      int `env:"MESSAGE_PAGE_SIZE,default=25"`
	MaxPageSize          int `env:"MAX_PAGE_SIZE,default=100"`

	MediaBaseURL      string        `env:"MEDIA_BASE_URL"`
	PushWebhookURL    string        `env:"PUSH_WEBHOOK_URL"`
	WorkerConcurrency int           `env:"WORKER_CONCURRENCY,default=10"`
	DirectoryCacheTTL time.Duration `env:"DIRECTORY_CACHE_TTL,default=5m"`

	LogLevel string `env:"LOG_LEVEL,default=info"`
}

// Load reads the configuration from the process environment.
func Load() (Config, error) {
	var c Config
	if _, err := env.UnmarshalFromEnviron(&c); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	if c.PongTimeout > c.PingInterval {
		return Config{}, fmt.Errorf("config: PONG_TIMEOUT (%s) must not exceed PING_INTERVAL (%s)", c.PongTimeout, c.PingInterval)
	}
	return c, nil
}

// SlogLevel maps LOG_LEVEL to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
