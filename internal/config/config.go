package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds the entire application configuration. Sections map 1:1 to the
// top-level keys of the YAML config file.
type Config struct {
	Logger LoggerConfig `mapstructure:"logger" yaml:"logger"`
	API    APIConfig    `mapstructure:"api" yaml:"api"`
	Screen ScreenConfig `mapstructure:"screen" yaml:"screen"`
	Agent  AgentConfig  `mapstructure:"agent" yaml:"agent"`
	Safety SafetyConfig `mapstructure:"safety" yaml:"safety"`
	Server ServerConfig `mapstructure:"server" yaml:"server"`
}

// LoggerConfig controls the zap logger and file rotation.
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

// APIConfig describes the OpenAI-compatible chat completions endpoint used to
// decide actions. BaseURL is the API root ("/chat/completions" is appended).
type APIConfig struct {
	BaseURL     string        `mapstructure:"base_url" yaml:"base_url"`
	APIKey      string        `mapstructure:"api_key" yaml:"api_key"`
	Model       string        `mapstructure:"model" yaml:"model"`
	MaxTokens   int           `mapstructure:"max_tokens" yaml:"max_tokens"`
	Temperature float64       `mapstructure:"temperature" yaml:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxRetries  int           `mapstructure:"max_retries" yaml:"max_retries"`
}

// ScreenConfig bounds the size of captured screenshots before they are sent to
// the model, and optionally confines the mouse to a region of the screen.
type ScreenConfig struct {
	MaxWidth  int           `mapstructure:"max_width" yaml:"max_width"`
	MaxHeight int           `mapstructure:"max_height" yaml:"max_height"`
	Region    *RegionConfig `mapstructure:"region" yaml:"region"`
}

// RegionConfig is an allowed screen region expressed as fractions of the full
// screen, so it stays valid across resolutions. X1,Y1 is the top-left corner.
type RegionConfig struct {
	X1 float64 `mapstructure:"x1" yaml:"x1"`
	Y1 float64 `mapstructure:"y1" yaml:"y1"`
	X2 float64 `mapstructure:"x2" yaml:"x2"`
	Y2 float64 `mapstructure:"y2" yaml:"y2"`
}

// Contains reports whether the fractional point (x, y) lies inside the region.
func (r *RegionConfig) Contains(x, y float64) bool {
	if r == nil {
		return true
	}
	return x >= r.X1 && x <= r.X2 && y >= r.Y1 && y <= r.Y2
}

// AgentConfig tunes the action loop.
type AgentConfig struct {
	MaxIterations    int           `mapstructure:"max_iterations" yaml:"max_iterations"`
	ActionDelay      time.Duration `mapstructure:"action_delay" yaml:"action_delay"`
	MaxHistoryRounds int           `mapstructure:"max_history_rounds" yaml:"max_history_rounds"`
}

// SafetyConfig declares which actions require human confirmation and what to
// do when nobody can answer.
type SafetyConfig struct {
	RequireConfirmation bool       `mapstructure:"require_confirmation" yaml:"require_confirmation"`
	FallbackAction      string     `mapstructure:"fallback_action" yaml:"fallback_action"`
	DangerousKeys       []string   `mapstructure:"dangerous_keys" yaml:"dangerous_keys"`
	DangerousHotkeys    [][]string `mapstructure:"dangerous_hotkeys" yaml:"dangerous_hotkeys"`
	DangerousPatterns   []string   `mapstructure:"dangerous_patterns" yaml:"dangerous_patterns"`
}

// FallbackBlocks reports whether an unanswerable confirmation should block the
// action. Anything other than an explicit "allow" blocks.
func (s SafetyConfig) FallbackBlocks() bool {
	return !strings.EqualFold(s.FallbackAction, "allow")
}

// ServerConfig configures the websocket control server.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr" yaml:"listen_addr"`
	ConfirmTimeout  time.Duration `mapstructure:"confirm_timeout" yaml:"confirm_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "autogui")
	v.SetDefault("logger.log_file", "autogui.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- API --
	v.SetDefault("api.base_url", "https://api.openai.com/v1")
	v.SetDefault("api.model", "gpt-4o")
	v.SetDefault("api.max_tokens", 1024)
	v.SetDefault("api.temperature", 0.2)
	v.SetDefault("api.timeout", "120s")
	v.SetDefault("api.max_retries", 3)

	// -- Screen --
	v.SetDefault("screen.max_width", 1280)
	v.SetDefault("screen.max_height", 800)

	// -- Agent --
	v.SetDefault("agent.max_iterations", 20)
	v.SetDefault("agent.action_delay", "1s")
	v.SetDefault("agent.max_history_rounds", 10)

	// -- Safety --
	v.SetDefault("safety.require_confirmation", true)
	v.SetDefault("safety.fallback_action", "block")
	v.SetDefault("safety.dangerous_keys", []string{"delete"})
	v.SetDefault("safety.dangerous_hotkeys", [][]string{
		{"alt", "f4"},
		{"ctrl", "alt", "delete"},
	})
	v.SetDefault("safety.dangerous_patterns", []string{
		"rm -rf",
		"format c:",
		"shutdown",
	})

	// -- Server --
	v.SetDefault("server.listen_addr", "127.0.0.1:8939")
	v.SetDefault("server.confirm_timeout", "60s")
	v.SetDefault("server.shutdown_timeout", "10s")
}

// NewDefaultConfig returns a Config populated purely from defaults. Used by
// tests and as a fallback when no config file exists.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		// Cannot happen with defaults only.
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// NewConfigFromViper unmarshals and validates the configuration held by v.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Bind environment variables for sensitive data.
	v.BindEnv("api.api_key", "AUTOGUI_API_KEY", "OPENAI_API_KEY")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is a required configuration field")
	}
	if c.API.MaxTokens <= 0 {
		return fmt.Errorf("api.max_tokens must be a positive integer")
	}
	if c.API.MaxRetries < 0 {
		return fmt.Errorf("api.max_retries must not be negative")
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent.max_iterations must be a positive integer")
	}
	if c.Agent.MaxHistoryRounds <= 0 {
		return fmt.Errorf("agent.max_history_rounds must be a positive integer")
	}
	if c.Screen.MaxWidth <= 0 || c.Screen.MaxHeight <= 0 {
		return fmt.Errorf("screen.max_width and screen.max_height must be positive")
	}
	switch strings.ToLower(c.Safety.FallbackAction) {
	case "block", "allow":
	default:
		return fmt.Errorf("safety.fallback_action must be %q or %q", "block", "allow")
	}
	if r := c.Screen.Region; r != nil {
		if r.X1 < 0 || r.Y1 < 0 || r.X2 > 1 || r.Y2 > 1 {
			return fmt.Errorf("screen.region coordinates must lie within [0, 1]")
		}
		if r.X1 >= r.X2 || r.Y1 >= r.Y2 {
			return fmt.Errorf("screen.region must have x1 < x2 and y1 < y2")
		}
	}
	return nil
}
