// File: internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"

	"github.com/mvoss9k/tabpilot/api/schemas"
)

// Config holds the entire application configuration.
type Config struct {
	Logger    LoggerConfig    `mapstructure:"logger" yaml:"logger"`
	Agent     AgentConfig     `mapstructure:"agent" yaml:"agent"`
	LLM       LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Extractor ExtractorConfig `mapstructure:"extractor" yaml:"extractor"`
	Cache     CacheConfig     `mapstructure:"cache" yaml:"cache"`
	Resolver  ResolverConfig  `mapstructure:"resolver" yaml:"resolver"`
	Browser   BrowserConfig   `mapstructure:"browser" yaml:"browser"`
}

// LoggerConfig controls zap initialization and file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// AgentConfig bounds a single run of the task controller.
type AgentConfig struct {
	// MaxSteps stops the run once this many steps have been recorded.
	MaxSteps int `mapstructure:"max_steps" yaml:"max_steps"`
	// Timeout stops the run once wall-clock elapsed time exceeds it.
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// StepDelay is the settle pause between an executed action and the
	// next observation refresh.
	StepDelay time.Duration `mapstructure:"step_delay" yaml:"step_delay"`
}

// LLMProvider defines the supported model providers.
type LLMProvider string

const (
	// ProviderOpenAI speaks the chat-completions protocol and covers any
	// endpoint compatible with it.
	ProviderOpenAI LLMProvider = "openai"
	ProviderGemini LLMProvider = "gemini"
)

// LLMConfig configures the model gateway.
type LLMConfig struct {
	Provider LLMProvider `mapstructure:"provider" yaml:"provider"`
	Model    string      `mapstructure:"model" yaml:"model"`
	// APIKey is never read from the config file in practice; it binds from
	// the environment (TABPILOT_LLM_API_KEY, or the provider's usual
	// OPENAI_API_KEY / GEMINI_API_KEY).
	APIKey   string `mapstructure:"api_key" yaml:"api_key"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
	// APITimeout bounds a single request attempt, not the whole retry
	// sequence.
	APITimeout  time.Duration `mapstructure:"api_timeout" yaml:"api_timeout"`
	Temperature float32       `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	// BackoffBase is the first retry interval; attempt n waits
	// base * 2^n.
	BackoffBase time.Duration `mapstructure:"backoff_base" yaml:"backoff_base"`
	// RequestsPerMinute throttles dispatch when positive; zero disables
	// the limiter.
	RequestsPerMinute float64 `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
}

// ExtractorConfig controls observation extraction.
type ExtractorConfig struct {
	Quality schemas.QualityMode `mapstructure:"quality" yaml:"quality"`
	// TokenBudget caps the summed token estimate of packed chunks.
	TokenBudget int `mapstructure:"token_budget" yaml:"token_budget"`
	// MaxImages caps how many OCR candidate images an observation reports.
	MaxImages int `mapstructure:"max_images" yaml:"max_images"`
}

// CacheConfig controls the observation context cache.
type CacheConfig struct {
	// TTL is the default entry lifetime; Set callers may override per call.
	TTL time.Duration `mapstructure:"ttl" yaml:"ttl"`
	// SweepInterval is how often the janitor scans for expired entries.
	SweepInterval time.Duration `mapstructure:"sweep_interval" yaml:"sweep_interval"`
}

// ResolverConfig controls element resolution.
type ResolverConfig struct {
	// VisibleOnly gates every candidate through the visibility predicate.
	VisibleOnly bool `mapstructure:"visible_only" yaml:"visible_only"`
	// PollInterval paces the mutation-wait loop in WaitFor.
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// BrowserConfig holds settings for live page sessions.
type BrowserConfig struct {
	Headless  bool   `mapstructure:"headless" yaml:"headless"`
	UserAgent string `mapstructure:"user_agent" yaml:"user_agent"`
	// MaxSessions bounds concurrently open browser sessions process-wide.
	MaxSessions    int           `mapstructure:"max_sessions" yaml:"max_sessions"`
	NavTimeout     time.Duration `mapstructure:"nav_timeout" yaml:"nav_timeout"`
	ViewportWidth  int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight int           `mapstructure:"viewport_height" yaml:"viewport_height"`
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with the defaults registered above.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "tabpilot")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 50)
	v.SetDefault("logger.max_backups", 3)
	v.SetDefault("logger.max_age", 14)
	v.SetDefault("logger.compress", true)

	// -- Agent --
	v.SetDefault("agent.max_steps", 20)
	v.SetDefault("agent.timeout", "2m")
	v.SetDefault("agent.step_delay", "1s")

	// -- LLM --
	v.SetDefault("llm.provider", "openai")
	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.endpoint", "")
	v.SetDefault("llm.api_timeout", "60s")
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.backoff_base", "1s")
	v.SetDefault("llm.requests_per_minute", 0.0)

	// -- Extractor --
	v.SetDefault("extractor.quality", "balanced")
	v.SetDefault("extractor.token_budget", 4000)
	v.SetDefault("extractor.max_images", 5)

	// -- Cache --
	v.SetDefault("cache.ttl", "30s")
	v.SetDefault("cache.sweep_interval", "10s")

	// -- Resolver --
	v.SetDefault("resolver.visible_only", true)
	v.SetDefault("resolver.poll_interval", "250ms")

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent", "")
	v.SetDefault("browser.max_sessions", 2)
	v.SetDefault("browser.nav_timeout", "45s")
	v.SetDefault("browser.viewport_width", 1280)
	v.SetDefault("browser.viewport_height", 900)

	// Secrets bind from the environment only.
	v.BindEnv("llm.api_key", "TABPILOT_LLM_API_KEY", "OPENAI_API_KEY", "GEMINI_API_KEY")
}

// Validate rejects configurations that cannot produce a working agent.
func (c *Config) Validate() error {
	if c.Agent.MaxSteps <= 0 {
		return fmt.Errorf("agent.max_steps must be a positive integer")
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("agent.timeout must be a positive duration")
	}
	switch c.LLM.Provider {
	case ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown llm.provider %q, supported: [%s, %s]",
			c.LLM.Provider, ProviderOpenAI, ProviderGemini)
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	if c.LLM.BackoffBase <= 0 {
		return fmt.Errorf("llm.backoff_base must be a positive duration")
	}
	if !c.Extractor.Quality.Known() {
		return fmt.Errorf("unknown extractor.quality %q, supported: [fast, balanced, thorough]",
			c.Extractor.Quality)
	}
	if c.Extractor.TokenBudget <= 0 {
		return fmt.Errorf("extractor.token_budget must be a positive integer")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be a positive duration")
	}
	if c.Resolver.PollInterval <= 0 {
		return fmt.Errorf("resolver.poll_interval must be a positive duration")
	}
	if c.Browser.MaxSessions <= 0 {
		return fmt.Errorf("browser.max_sessions must be a positive integer")
	}
	return nil
}

// ExpandPaths resolves ~ in file path settings. Called once after unmarshal,
// before anything opens files.
func (c *Config) ExpandPaths() error {
	if c.Logger.LogFile == "" {
		return nil
	}
	expanded, err := homedir.Expand(c.Logger.LogFile)
	if err != nil {
		return fmt.Errorf("failed to expand logger.log_file: %w", err)
	}
	c.Logger.LogFile = expanded
	return nil
}
