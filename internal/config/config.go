package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"quiz-client/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	API struct {
		BaseURL string `yaml:"base_url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"api"`
	Quiz struct {
		SecondsPerQuestion int           `yaml:"seconds_per_question"`
		SubmitTimeout      string        `yaml:"submit_timeout"`
		Packs              []domain.Pack `yaml:"packs"`
	} `yaml:"quiz"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Tokens struct {
		// CacheTTL is how long a running server keeps serving a token from
		// its in-process cache. A token cleared from another process, such
		// as `token clear`, keeps working on the server until this elapses.
		CacheTTL string `yaml:"cache_ttl"`
	} `yaml:"tokens"`
	Log Log `yaml:"log"`
}

// Log selects logger level and output format.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// DefaultTokenCacheTTL bounds how stale a cached token may be.
const DefaultTokenCacheTTL = 5 * time.Second

// DefaultPacks are offered when the config lists none.
var DefaultPacks = []domain.Pack{
	{Count: 20, Title: "Beginner"},
	{Count: 40, Title: "Intermediate"},
	{Count: 60, Title: "Advanced"},
}

// Load reads YAML config from path. A missing file yields defaults so the
// client can run from env overrides alone.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("QUIZ_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("QUIZ_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("QUIZ_POSTGRES_URL"); v != "" {
		cfg.Postgres.URL = v
	}
	if v := os.Getenv("QUIZ_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Quiz.SecondsPerQuestion <= 0 {
		cfg.Quiz.SecondsPerQuestion = 30
	}
	if len(cfg.Quiz.Packs) == 0 {
		cfg.Quiz.Packs = append([]domain.Pack(nil), DefaultPacks...)
	}
	if cfg.Tokens.CacheTTL == "" {
		cfg.Tokens.CacheTTL = DefaultTokenCacheTTL.String()
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
