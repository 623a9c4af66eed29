package config

import (
	"bytes"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort         = 8080
	defaultEnv          = "development"
	defaultWebBaseURL   = "http://localhost:3000"
	defaultRatePerDay   = 2
	defaultMaxInput     = 40000
	defaultPromptBudget = 24000
	defaultMaxVideoMin  = 10
	defaultStoreBackend = "memory"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int      `yaml:"port"`
	Env            string   `yaml:"env"` // "development" | "production"
	WebBaseURL     string   `yaml:"web_base_url"`
	AllowedOrigins []string `yaml:"allowed_origins"`

	Generation GenerationConfig `yaml:"generation"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Store      StoreConfig      `yaml:"store"`
	Limits     LimitsConfig     `yaml:"limits"`
	Timeouts   TimeoutsConfig   `yaml:"timeouts"`
	Audio      AudioConfig      `yaml:"audio_fallback"`
}

// GenerationConfig selects the backend once at startup: with an API key the
// remote provider is used, without one the deterministic mock.
type GenerationConfig struct {
	Provider string `yaml:"provider"` // "openai" | "anthropic" | "openai-compatible"
	APIKey   string `yaml:"api_key"`
	Endpoint string `yaml:"endpoint"`
	Model    string `yaml:"model"`
}

// UseMock reports whether no credential is configured.
func (g GenerationConfig) UseMock() bool {
	return strings.TrimSpace(g.APIKey) == ""
}

type RateLimitConfig struct {
	PerDay int `yaml:"per_day"`
	// RefundOnFailure gives the quota slot back when the pipeline fails
	// after admission.
	RefundOnFailure bool `yaml:"refund_on_failure"`
	// RedisURL switches the limiter to Redis so the quota is shared
	// across instances. Empty keeps the in-process limiter.
	RedisURL string `yaml:"redis_url"`
}

type StoreConfig struct {
	Backend string `yaml:"backend"` // "memory" | "mysql"
	DSN     string `yaml:"dsn"`
}

type LimitsConfig struct {
	MaxInputChars     int `yaml:"max_input_chars"`
	PromptBudgetChars int `yaml:"prompt_budget_chars"`
	MaxVideoMinutes   int `yaml:"max_video_minutes"`
}

type TimeoutsConfig struct {
	Metadata time.Duration `yaml:"metadata"`
	Caption  time.Duration `yaml:"caption"`
	Overall  time.Duration `yaml:"overall"`
}

type AudioConfig struct {
	Enable       bool          `yaml:"enable"`
	YtdlpPath    string        `yaml:"ytdlp_path"`
	WhisperPath  string        `yaml:"whisper_path"`
	WhisperModel string        `yaml:"whisper_model"`
	Timeout      time.Duration `yaml:"timeout"`
}

func (c *AppConfig) IsDev() bool { return c.Env != "production" }

// Load reads and validates the YAML config. A missing file is an error; use
// Default() for an all-defaults config in tests.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(cfg); err != nil {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config file %q: %w", path, err)
	}
	return cfg, nil
}

// Default returns the development defaults.
func Default() *AppConfig {
	return &AppConfig{
		Port:       defaultPort,
		Env:        defaultEnv,
		WebBaseURL: defaultWebBaseURL,
		RateLimit: RateLimitConfig{
			PerDay: defaultRatePerDay,
		},
		Store: StoreConfig{
			Backend: defaultStoreBackend,
		},
		Limits: LimitsConfig{
			MaxInputChars:     defaultMaxInput,
			PromptBudgetChars: defaultPromptBudget,
			MaxVideoMinutes:   defaultMaxVideoMin,
		},
		Timeouts: TimeoutsConfig{
			Metadata: 20 * time.Second,
			Caption:  30 * time.Second,
			Overall:  3 * time.Minute,
		},
		Audio: AudioConfig{
			WhisperModel: "base",
			Timeout:      15 * time.Minute,
		},
	}
}

func (c *AppConfig) validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	if c.RateLimit.PerDay < 1 {
		return fmt.Errorf("invalid rate_limit.per_day %d, expected >= 1", c.RateLimit.PerDay)
	}
	switch c.Store.Backend {
	case "memory":
	case "mysql":
		if strings.TrimSpace(c.Store.DSN) == "" {
			return fmt.Errorf("store.backend %q requires store.dsn", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store.backend %q, expected \"memory\" or \"mysql\"", c.Store.Backend)
	}
	if c.Limits.MaxInputChars < 200 {
		return fmt.Errorf("invalid limits.max_input_chars %d, expected >= 200", c.Limits.MaxInputChars)
	}
	if c.Limits.PromptBudgetChars < 1000 {
		return fmt.Errorf("invalid limits.prompt_budget_chars %d, expected >= 1000", c.Limits.PromptBudgetChars)
	}
	for _, t := range []struct {
		name string
		d    time.Duration
	}{
		{"timeouts.metadata", c.Timeouts.Metadata},
		{"timeouts.caption", c.Timeouts.Caption},
		{"timeouts.overall", c.Timeouts.Overall},
	} {
		if t.d <= 0 {
			return fmt.Errorf("invalid %s %s, expected > 0", t.name, t.d)
		}
	}
	return nil
}
