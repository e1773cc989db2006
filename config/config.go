// Package config loads process configuration from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the serve/step configuration.
type Config struct {
	Port              int           `env:"MASP_PORT" envDefault:"8000"`
	StepInterval      time.Duration `env:"MASP_STEP_INTERVAL" envDefault:"15s"`
	AutoStartInterval time.Duration `env:"MASP_AUTOSTART_INTERVAL" envDefault:"8s"`
	RandomSeed        int64         `env:"MASP_RANDOM_SEED"`
	StrictProbe       bool          `env:"MASP_STRICT_PROBE" envDefault:"false"`

	DBPath   string `env:"MASP_DB_PATH" envDefault:"data/masp.db"`
	FeedLog  string `env:"MASP_FEED_LOG" envDefault:"logs/feed.jsonl"`
	SeedFile string `env:"MASP_SEED_FILE"`

	LogLevel string `env:"MASP_LOG_LEVEL" envDefault:"info"`
	LogDir   string `env:"MASP_LOG_DIR"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	CometRPCURL string `env:"COMETBFT_RPC_URL"`

	NatsURL       string `env:"NATS_URL"`
	EmbeddedNats  bool   `env:"MASP_EMBEDDED_NATS" envDefault:"false"`
	EmbeddedPort  int    `env:"MASP_EMBEDDED_NATS_PORT" envDefault:"4222"`
	SubjectPrefix string `env:"MASP_NATS_PREFIX" envDefault:"masp.events"`

	HostedUseLLM bool   `env:"HOSTED_USE_LLM" envDefault:"true"`
	GroqAPIKey   string `env:"GROQ_API_KEY"`
	HostedModel  string `env:"HOSTED_GROQ_MODEL"`
}

// Load reads .env files (missing files are ignored) and then the environment.
// Variables already set in the environment win over .env values.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks value ranges the env parser cannot.
func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("MASP_PORT out of range: %d", c.Port)
	}
	if c.StepInterval <= 0 {
		return fmt.Errorf("MASP_STEP_INTERVAL must be positive, got %s", c.StepInterval)
	}
	if c.AutoStartInterval <= 0 {
		return fmt.Errorf("MASP_AUTOSTART_INTERVAL must be positive, got %s", c.AutoStartInterval)
	}
	return nil
}

// HostedTextEnabled reports whether hosted agents should call a model.
func (c Config) HostedTextEnabled() bool {
	return c.HostedUseLLM && strings.TrimSpace(c.GroqAPIKey) != ""
}
