package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	API          APIConfig     `mapstructure:"api"`
	Ollama       OllamaConfig  `mapstructure:"ollama"`
	Stream       StreamConfig  `mapstructure:"stream"`
	Typing       TypingConfig  `mapstructure:"typing"`
	Models       ModelsConfig  `mapstructure:"models"`
	Logging      LoggingConfig `mapstructure:"logging"`
	ShowThinking bool          `mapstructure:"show_thinking"`
}

// APIConfig holds the chat backend settings
type APIConfig struct {
	BaseURL    string        `mapstructure:"base_url"`
	Token      string        `mapstructure:"token"`
	StreamPath string        `mapstructure:"stream_path"`
	Timeout    time.Duration `mapstructure:"-"`
	TimeoutStr string        `mapstructure:"timeout"` // For parsing string duration
}

// OllamaConfig holds settings for the direct Ollama transport
type OllamaConfig struct {
	URL        string        `mapstructure:"url"`
	Model      string        `mapstructure:"model"`
	Timeout    time.Duration `mapstructure:"-"`
	TimeoutStr string        `mapstructure:"timeout"`
}

// StreamConfig holds stream session settings
type StreamConfig struct {
	Transport         string        `mapstructure:"transport"` // http or ollama
	MinBatchSize      int           `mapstructure:"min_batch_size"`
	BatchInterval     time.Duration `mapstructure:"-"`
	BatchIntervalStr  string        `mapstructure:"batch_interval"`
	CancelPlaceholder string        `mapstructure:"cancel_placeholder"`
	ReasoningOpen     string        `mapstructure:"reasoning_open"`
	ReasoningClose    string        `mapstructure:"reasoning_close"`
}

// TypingConfig holds typing effect settings
type TypingConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	PlainDelay    time.Duration `mapstructure:"-"`
	PlainDelayStr string        `mapstructure:"plain_delay"`
	MinDelay      time.Duration `mapstructure:"-"`
	MinDelayStr   string        `mapstructure:"min_delay"`
}

// ModelsConfig holds model list settings
type ModelsConfig struct {
	CacheTTL    time.Duration `mapstructure:"-"`
	CacheTTLStr string        `mapstructure:"cache_ttl"`
}

// LoggingConfig holds logging-related configuration
type LoggingConfig struct {
	LogFile  string `mapstructure:"log_file"`
	Preserve bool   `mapstructure:"preserve"`
	Level    string `mapstructure:"level"`
}

// Global config instance
var cfg *Config

// Get returns the global config instance
func Get() *Config {
	if cfg == nil {
		panic("config not initialized")
	}
	return cfg
}

// Load loads configuration from file and environment
func Load(cfgFile string) (*Config, error) {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}

		xdgConfigHome := os.Getenv("XDG_CONFIG_HOME")
		if xdgConfigHome == "" {
			xdgConfigHome = filepath.Join(home, ".config")
		}

		viper.AddConfigPath("./.vivu") // Check project directory first
		viper.AddConfigPath(filepath.Join(xdgConfigHome, ".vivu"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("settings")
	}

	viper.AutomaticEnv()
	bindEnvironmentVariables()

	// A missing settings file is fine, defaults and environment still apply
	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	loaded := &Config{}
	if err := viper.Unmarshal(loaded); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := processDurations(loaded); err != nil {
		return nil, fmt.Errorf("failed to process durations: %w", err)
	}

	cfg = loaded
	return cfg, nil
}

// setDefaults sets all default configuration values
func setDefaults() {
	viper.SetDefault("api.base_url", "http://localhost:8080")
	viper.SetDefault("api.token", "")
	viper.SetDefault("api.stream_path", "/api/ollama/chat/stream")
	viper.SetDefault("api.timeout", "30s")

	viper.SetDefault("ollama.url", "http://localhost:11434")
	viper.SetDefault("ollama.model", "gemma3:4b")
	viper.SetDefault("ollama.timeout", "90s")

	viper.SetDefault("stream.transport", "http")
	viper.SetDefault("stream.min_batch_size", 3)
	viper.SetDefault("stream.batch_interval", "50ms")
	viper.SetDefault("stream.cancel_placeholder", "response stopped by user")
	viper.SetDefault("stream.reasoning_open", "<think>")
	viper.SetDefault("stream.reasoning_close", "</think>")

	viper.SetDefault("typing.enabled", true)
	viper.SetDefault("typing.plain_delay", "20ms")
	viper.SetDefault("typing.min_delay", "2ms")

	viper.SetDefault("models.cache_ttl", "1m")

	viper.SetDefault("show_thinking", true)

	viper.SetDefault("logging.log_file", "./.vivu/system.log")
	viper.SetDefault("logging.preserve", false)
	viper.SetDefault("logging.level", "info")
}

// bindEnvironmentVariables binds VIVU_ prefixed environment variables to Viper keys
func bindEnvironmentVariables() {
	viper.BindEnv("api.base_url", "VIVU_API_URL")
	viper.BindEnv("api.token", "VIVU_API_TOKEN")
	viper.BindEnv("api.timeout", "VIVU_API_TIMEOUT")
	viper.BindEnv("ollama.url", "VIVU_OLLAMA_URL")
	viper.BindEnv("ollama.model", "VIVU_OLLAMA_MODEL")
	viper.BindEnv("stream.transport", "VIVU_TRANSPORT")
	viper.BindEnv("stream.min_batch_size", "VIVU_MIN_BATCH_SIZE")
	viper.BindEnv("stream.batch_interval", "VIVU_BATCH_INTERVAL")
	viper.BindEnv("typing.enabled", "VIVU_TYPING")
	viper.BindEnv("show_thinking", "VIVU_SHOW_THINKING")
	viper.BindEnv("logging.level", "VIVU_LOG_LEVEL")
	viper.BindEnv("logging.log_file", "VIVU_LOG_FILE")
}

// processDurations converts string durations to time.Duration
func processDurations(c *Config) error {
	durations := []struct {
		key      string
		raw      string
		target   *time.Duration
		fallback time.Duration
	}{
		{"api.timeout", c.API.TimeoutStr, &c.API.Timeout, 30 * time.Second},
		{"ollama.timeout", c.Ollama.TimeoutStr, &c.Ollama.Timeout, 90 * time.Second},
		{"stream.batch_interval", c.Stream.BatchIntervalStr, &c.Stream.BatchInterval, 50 * time.Millisecond},
		{"typing.plain_delay", c.Typing.PlainDelayStr, &c.Typing.PlainDelay, 20 * time.Millisecond},
		{"typing.min_delay", c.Typing.MinDelayStr, &c.Typing.MinDelay, 2 * time.Millisecond},
		{"models.cache_ttl", c.Models.CacheTTLStr, &c.Models.CacheTTL, time.Minute},
	}

	for _, d := range durations {
		if d.raw == "" {
			*d.target = d.fallback
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.target = parsed
	}

	if c.Stream.MinBatchSize < 1 {
		c.Stream.MinBatchSize = 1
	}

	return nil
}

// GetConfigFileUsed returns the path to the config file being used
func GetConfigFileUsed() string {
	return viper.ConfigFileUsed()
}

// DefaultModel returns the model used when a request names none
func (c *Config) DefaultModel() string {
	if c.Ollama.Model != "" {
		return c.Ollama.Model
	}
	return "gemma3:4b"
}

// StreamURL returns the full URL of the chat streaming endpoint
func (c *Config) StreamURL() string {
	return c.API.BaseURL + c.API.StreamPath
}
