package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

const (
	StorageMemory = "memory"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

type Config struct {
	Debug   bool   `env:"DEBUG" envDefault:"false"`
	LogFile string `env:"LOG_FILE" envDefault:""`

	API struct {
		BaseURL string        `env:"API_BASE_URL" envDefault:"http://localhost:3000"`
		Timeout time.Duration `env:"API_TIMEOUT" envDefault:"10s"`
	}

	Feed struct {
		PageSize int `env:"FEED_PAGE_SIZE" envDefault:"5"`
	}

	Storage struct {
		Backend   string `env:"STORAGE_BACKEND" envDefault:"sqlite"` // memory, sqlite, redis
		Path      string `env:"STORAGE_PATH" envDefault:""`
		KeyPrefix string `env:"STORAGE_KEY_PREFIX" envDefault:"bookworm:"`
	}

	Redis struct {
		Host     string `env:"REDIS_HOST" envDefault:"localhost"`
		Port     int    `env:"REDIS_PORT" envDefault:"6379"`
		Password string `env:"REDIS_PASSWORD" envDefault:""`
		DB       int    `env:"REDIS_DB" envDefault:"0"`
	}

	DevAPI struct {
		Port   int    `env:"DEVAPI_PORT" envDefault:"3000"`
		Origin string `env:"DEVAPI_ORIGIN" envDefault:"*"`
	}
}

// Load reads an optional .env file and then the environment.
func Load() (*Config, error) {
	// A missing .env is fine; variables may be set directly.
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.API.BaseURL == "" {
		return fmt.Errorf("API_BASE_URL cannot be empty")
	}
	if c.Feed.PageSize <= 0 {
		return fmt.Errorf("invalid FEED_PAGE_SIZE: %d", c.Feed.PageSize)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("invalid API_TIMEOUT: %s", c.API.Timeout)
	}
	switch c.Storage.Backend {
	case StorageMemory, StorageSQLite, StorageRedis:
	default:
		return fmt.Errorf("invalid STORAGE_BACKEND: %q", c.Storage.Backend)
	}
	return nil
}

// StoragePath resolves the SQLite file, defaulting to the user config directory.
func (c *Config) StoragePath() (string, error) {
	if c.Storage.Path != "" {
		return c.Storage.Path, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("user config dir: %w", err)
	}
	return filepath.Join(dir, "bookworm", "session.db"), nil
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}
