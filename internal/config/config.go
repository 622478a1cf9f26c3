// Package config provides application configuration for payagent.
//
// Configuration is read from environment variables, optionally seeded
// from a .env file by the caller. Every knob has a sensible default so
// the server and CLI both start with nothing but an API key set.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spachava753/gai"
)

const (
	// DefaultModel is used when PAYAGENT_MODEL is not set.
	DefaultModel = "claude-sonnet-4-5"

	// DefaultMaxToolSteps bounds the number of model round trips a
	// single user turn may trigger.
	DefaultMaxToolSteps = 8
)

// Config holds all application configuration.
type Config struct {
	// Model is the provider model identifier, e.g. "claude-sonnet-4-5"
	// or "gpt-5". The provider is inferred from the model name.
	Model string `validate:"required"`

	// BaseURL overrides the provider API endpoint when set.
	BaseURL string

	// Addr is the listen address of the HTTP server.
	Addr string `validate:"required"`

	// DBPath is the sqlite database file path.
	DBPath string `validate:"required"`

	// SystemPromptPath optionally points at a system prompt template
	// file. When empty the embedded default template is used.
	SystemPromptPath string

	// FixturesPath optionally points at a YAML file of simulated
	// chain data. When empty the embedded fixtures are used.
	FixturesPath string

	// MaxToolSteps bounds tool round trips per user turn.
	MaxToolSteps int `validate:"gte=1"`

	// ToolLatency is the simulated latency of on-chain reads and the
	// mock wallet signer.
	ToolLatency time.Duration `validate:"gte=0"`

	// RequestTimeout bounds a single provider request. Zero disables
	// the per-request deadline.
	RequestTimeout time.Duration `validate:"gte=0"`

	// MaxRetries bounds provider retry attempts per request.
	MaxRetries int `validate:"gte=1"`

	// Generation holds model generation parameter defaults.
	Generation GenerationParams
}

// GenerationParams holds generation parameters. Nil pointers mean
// "not set" and are omitted from provider requests.
type GenerationParams struct {
	Temperature *float64
	MaxTokens   *int
}

// ToGenOpts converts the parameters to gai generation options.
func (p GenerationParams) ToGenOpts() *gai.GenOpts {
	opts := &gai.GenOpts{}
	if p.Temperature != nil {
		opts.Temperature = p.Temperature
	}
	if p.MaxTokens != nil {
		opts.MaxGenerationTokens = p.MaxTokens
	}
	return opts
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Model:            getEnv("PAYAGENT_MODEL", DefaultModel),
		BaseURL:          getEnv("PAYAGENT_BASE_URL", ""),
		Addr:             getEnv("PAYAGENT_ADDR", ":8080"),
		DBPath:           getEnv("PAYAGENT_DB_PATH", "./data/payagent.db"),
		SystemPromptPath: getEnv("PAYAGENT_SYSTEM_PROMPT", ""),
		FixturesPath:     getEnv("PAYAGENT_FIXTURES", ""),
		MaxToolSteps:     getEnvInt("PAYAGENT_MAX_TOOL_STEPS", DefaultMaxToolSteps),
		ToolLatency:      getEnvDuration("PAYAGENT_TOOL_LATENCY", 150*time.Millisecond),
		RequestTimeout:   getEnvDuration("PAYAGENT_REQUEST_TIMEOUT", 5*time.Minute),
		MaxRetries:       getEnvInt("PAYAGENT_MAX_RETRIES", 3),
	}

	if v, ok := getEnvFloat("PAYAGENT_TEMPERATURE"); ok {
		cfg.Generation.Temperature = &v
	}
	if v, ok := os.LookupEnv("PAYAGENT_MAX_TOKENS"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return nil, fmt.Errorf("invalid PAYAGENT_MAX_TOKENS %q: %w", v, err)
		}
		cfg.Generation.MaxTokens = &n
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks structural constraints on the configuration.
func (c *Config) Validate() error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Generation.Temperature != nil {
		t := *c.Generation.Temperature
		if t < 0 || t > 2 {
			return fmt.Errorf("temperature %v out of range [0, 2]", t)
		}
	}
	return nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string) (float64, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return d
}
