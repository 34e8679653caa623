package common

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
)

// Config represents the application configuration
type Config struct {
	Environment string         `toml:"environment" validate:"omitempty,oneof=development production"`
	Queue       QueueConfig    `toml:"queue"`
	Storage     StorageConfig  `toml:"storage"`
	Logging     LoggingConfig  `toml:"logging"`
	Claude      ClaudeConfig   `toml:"claude"`
	Gemini      GeminiConfig   `toml:"gemini"`
	LLM         LLMConfig      `toml:"llm"`
	Scraper     ScraperConfig  `toml:"scraper"`
	Workers     WorkersConfig  `toml:"workers"`
	Campaigns   CampaignConfig `toml:"campaigns"`
	Resumes     ResumesConfig  `toml:"resumes"`
	Documents   DocsConfig     `toml:"documents"`
}

type QueueConfig struct {
	PollInterval      string `toml:"poll_interval"`      // e.g. "1s" - idle poll cap for consumers
	VisibilityTimeout string `toml:"visibility_timeout"` // e.g. "5m" - unacked message redelivery window
	MaxReceive        int    `toml:"max_receive"`        // receives before a message is dropped as poison
	Path              string `toml:"path"`               // Badger directory for the queue store
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`
	ResetOnStartup bool   `toml:"reset_on_startup"`
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`
	Timeout     string  `toml:"timeout"`
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
}

type GeminiConfig struct {
	APIKey    string `toml:"api_key"`
	Model     string `toml:"model"`
	Timeout   string `toml:"timeout"`
	MaxTokens int    `toml:"max_tokens"`
}

// LLMConfig selects the analyzer provider and rate limit shared by all
// analyzer call sites.
type LLMConfig struct {
	Provider          string  `toml:"provider" validate:"omitempty,oneof=claude gemini"`
	RequestsPerMinute float64 `toml:"requests_per_minute"`
	// TokenCeiling caps the doubled token budget on truncation retries.
	TokenCeiling int `toml:"token_ceiling"`
}

type ScraperConfig struct {
	Headless bool `toml:"headless"`
	// MaxNoProgress bounds consecutive no-new-cards scroll attempts so a
	// listing that never signals end-of-list still terminates.
	MaxNoProgress int    `toml:"max_no_progress"`
	PageTimeout   string `toml:"page_timeout"`
	UserAgent     string `toml:"user_agent"`
}

type WorkersConfig struct {
	MatcherBatchSize    int    `toml:"matcher_batch_size"`
	MatcherBatchTimeout string `toml:"matcher_batch_timeout"`
	ScraperInstances    int    `toml:"scraper_instances"`
}

// CampaignConfig tunes the completion sweeper.
type CampaignConfig struct {
	SweepSchedule string `toml:"sweep_schedule"` // cron spec
	// StableSweeps is how many consecutive sweeps the stage counts must be
	// unchanged before a running campaign is marked completed.
	StableSweeps int `toml:"stable_sweeps"`
}

type ResumesConfig struct {
	Dir string `toml:"dir"` // directory of *.yaml resume profiles
}

type DocsConfig struct {
	Dir string `toml:"dir"` // output directory for rendered documents
}

// DefaultConfig returns the configuration defaults applied before any file
// or environment override.
func DefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Queue: QueueConfig{
			PollInterval:      "1s",
			VisibilityTimeout: "5m",
			MaxReceive:        3,
			Path:              "./data/queue",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{Path: "./data/store"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout"},
		},
		Claude: ClaudeConfig{
			Model:     "claude-sonnet-4-20250514",
			Timeout:   "120s",
			MaxTokens: 4096,
		},
		Gemini: GeminiConfig{
			Model:     "gemini-2.0-flash",
			Timeout:   "120s",
			MaxTokens: 4096,
		},
		LLM: LLMConfig{
			Provider:          "claude",
			RequestsPerMinute: 30,
			TokenCeiling:      32768,
		},
		Scraper: ScraperConfig{
			Headless:      true,
			MaxNoProgress: 5,
			PageTimeout:   "45s",
		},
		Workers: WorkersConfig{
			MatcherBatchSize:    5,
			MatcherBatchTimeout: "60s",
			ScraperInstances:    1,
		},
		Campaigns: CampaignConfig{
			SweepSchedule: "@every 1m",
			StableSweeps:  3,
		},
		Resumes:   ResumesConfig{Dir: "./resumes"},
		Documents: DocsConfig{Dir: "./data/documents"},
	}
}

// LoadConfig loads configuration with precedence: defaults -> file -> env.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("PETO_ENV"); env != "" {
		config.Environment = env
	}
	if v := os.Getenv("PETO_QUEUE_PATH"); v != "" {
		config.Queue.Path = v
	}
	if v := os.Getenv("PETO_QUEUE_POLL_INTERVAL"); v != "" {
		config.Queue.PollInterval = v
	}
	if v := os.Getenv("PETO_QUEUE_VISIBILITY_TIMEOUT"); v != "" {
		config.Queue.VisibilityTimeout = v
	}
	if v := os.Getenv("PETO_QUEUE_MAX_RECEIVE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			config.Queue.MaxReceive = n
		}
	}
	if v := os.Getenv("PETO_BADGER_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("PETO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("PETO_CLAUDE_API_KEY"); v != "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("PETO_LLM_PROVIDER"); v != "" {
		config.LLM.Provider = v
	}
	if v := os.Getenv("PETO_RESUMES_DIR"); v != "" {
		config.Resumes.Dir = v
	}
	if v := os.Getenv("PETO_DOCUMENTS_DIR"); v != "" {
		config.Documents.Dir = v
	}
}

// ParseDuration parses a config duration string, falling back to def when
// the value is empty or invalid.
func ParseDuration(value string, def time.Duration) time.Duration {
	if value == "" {
		return def
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return def
	}
	return d
}
