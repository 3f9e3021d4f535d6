// Package config loads FileMesh settings from a YAML file and the
// environment. The configuration is read once at process start and treated
// as immutable afterwards.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/hupe1980/filemesh/logging"
)

// EnvPrefix prefixes all environment overrides, e.g. FILEMESH_ENGINE_MAX_STEPS.
const EnvPrefix = "FILEMESH"

// Supported reasoning providers.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// Config holds all configuration for FileMesh.
type Config struct {
	Provider  string         `mapstructure:"provider"`
	OpenAI    ProviderConfig `mapstructure:"openai"`
	Anthropic ProviderConfig `mapstructure:"anthropic"`
	Gemini    ProviderConfig `mapstructure:"gemini"`
	Engine    EngineConfig   `mapstructure:"engine"`
	Tools     ToolsConfig    `mapstructure:"tools"`
	Server    ServerConfig   `mapstructure:"server"`
	Logging   logging.Config `mapstructure:"logging"`
}

// ProviderConfig holds the settings of one reasoning provider.
type ProviderConfig struct {
	Model       string  `mapstructure:"model"`
	APIKey      string  `mapstructure:"api_key"`
	BaseURL     string  `mapstructure:"base_url"`
	Temperature float64 `mapstructure:"temperature"`
	MaxTokens   int64   `mapstructure:"max_tokens"`
}

// EngineConfig holds orchestration limits.
type EngineConfig struct {
	MaxSteps           int           `mapstructure:"max_steps"`
	MaxConcurrentRuns  int           `mapstructure:"max_concurrent_runs"`
	NodeTimeout        time.Duration `mapstructure:"node_timeout"`
	RunTimeout         time.Duration `mapstructure:"run_timeout"`
	MaxToolRounds      int           `mapstructure:"max_tool_rounds"`
	MaxHistoryMessages int           `mapstructure:"max_history_messages"`
	// RecordDecisions appends each routing decision to the conversation as a
	// Supervisor message. Off by default, in which case a supervisor step
	// adds no message and only worker steps grow the history.
	RecordDecisions bool `mapstructure:"record_decisions"`
}

// ToolsConfig holds file tool settings.
type ToolsConfig struct {
	// Root confines all file operations to this directory when set.
	Root         string `mapstructure:"root"`
	MaxReadBytes int64  `mapstructure:"max_read_bytes"`
}

// ServerConfig holds HTTP transport settings.
type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	MaxBodyBytes    int64         `mapstructure:"max_body_bytes"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// HistorySize bounds the finished runs kept for /runs lookups.
	HistorySize int `mapstructure:"history_size"`
}

// ActiveProvider returns the settings of the selected provider.
func (c *Config) ActiveProvider() ProviderConfig {
	switch c.Provider {
	case ProviderAnthropic:
		return c.Anthropic
	case ProviderGemini:
		return c.Gemini
	default:
		return c.OpenAI
	}
}

// Default returns the built-in configuration.
func Default() *Config {
	cfg := &Config{}
	if err := newViper().Unmarshal(cfg); err != nil {
		panic(err)
	}
	return cfg
}

// Load reads configuration with the following precedence (highest first):
//  1. Environment variables (FILEMESH_*, plus OPENAI_API_KEY,
//     ANTHROPIC_API_KEY and GEMINI_API_KEY for the provider keys)
//  2. The YAML file at path, or ./filemesh.yaml when path is empty
//  3. Built-in defaults
//
// A missing default file is not an error; a missing explicit path is.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("filemesh")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	_ = v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY")
	_ = v.BindEnv("anthropic.api_key", EnvPrefix+"_ANTHROPIC_API_KEY", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("gemini.api_key", EnvPrefix+"_GEMINI_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY")

	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("provider", ProviderOpenAI)

	v.SetDefault("openai.model", "gpt-4o-mini")
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.temperature", 0.0)
	v.SetDefault("openai.max_tokens", 0)

	v.SetDefault("anthropic.model", "claude-3-5-haiku-latest")
	v.SetDefault("anthropic.api_key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.temperature", 0.0)
	v.SetDefault("anthropic.max_tokens", 1024)

	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.api_key", "")
	v.SetDefault("gemini.base_url", "")
	v.SetDefault("gemini.temperature", 0.0)
	v.SetDefault("gemini.max_tokens", 0)

	v.SetDefault("engine.max_steps", 25)
	v.SetDefault("engine.max_concurrent_runs", 10)
	v.SetDefault("engine.node_timeout", 2*time.Minute)
	v.SetDefault("engine.run_timeout", 0)
	v.SetDefault("engine.max_tool_rounds", 10)
	v.SetDefault("engine.max_history_messages", 0)
	v.SetDefault("engine.record_decisions", false)

	v.SetDefault("tools.root", "")
	v.SetDefault("tools.max_read_bytes", 1<<20)

	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Minute)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.history_size", 256)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.backend", "slog")
	v.SetDefault("logging.add_source", false)
}

// Validate checks the configuration for values the runtime cannot use.
func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderOpenAI, ProviderAnthropic, ProviderGemini:
		if c.ActiveProvider().APIKey == "" {
			errs = append(errs, fmt.Errorf("%s.api_key is required", c.Provider))
		}
		if c.ActiveProvider().Model == "" {
			errs = append(errs, fmt.Errorf("%s.model is required", c.Provider))
		}
	case ProviderMock:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}

	if c.Engine.MaxSteps < 0 {
		errs = append(errs, fmt.Errorf("engine.max_steps must not be negative"))
	}
	if c.Engine.MaxConcurrentRuns < 0 {
		errs = append(errs, fmt.Errorf("engine.max_concurrent_runs must not be negative"))
	}
	if c.Engine.NodeTimeout < 0 || c.Engine.RunTimeout < 0 {
		errs = append(errs, fmt.Errorf("engine timeouts must not be negative"))
	}
	if c.Engine.MaxToolRounds < 0 || c.Engine.MaxHistoryMessages < 0 {
		errs = append(errs, fmt.Errorf("engine.max_tool_rounds and engine.max_history_messages must not be negative"))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("logging.format must be text or json, got %q", c.Logging.Format))
	}
	switch c.Logging.Backend {
	case "", "slog", "zap":
	default:
		errs = append(errs, fmt.Errorf("logging.backend must be slog or zap, got %q", c.Logging.Backend))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	return nil
}
