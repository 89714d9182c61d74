package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all orbit configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Completion provider configuration
	LLM LLMConfig `yaml:"llm"`

	// Delegation daemon configuration
	Agent AgentConfig `yaml:"agent"`

	// Window orchestration configuration
	Windows WindowsConfig `yaml:"windows"`

	// Enhancement pipeline configuration
	Enhancement EnhancementConfig `yaml:"enhancement"`

	// Screenshot capture configuration
	Screenshot ScreenshotConfig `yaml:"screenshot"`

	// Conversation persistence
	Store StoreConfig `yaml:"store"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the streaming completion provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider"` // openai, gemini
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// AgentConfig configures the delegation daemon client.
type AgentConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DaemonURL     string `yaml:"daemon_url"`
	HealthTimeout string `yaml:"health_timeout"`
	TaskTimeout   string `yaml:"task_timeout"`
}

// WindowsConfig configures window orchestration.
type WindowsConfig struct {
	HeaderWidth      int    `yaml:"header_width"`
	HeaderHeight     int    `yaml:"header_height"`
	HeaderMarginTop  int    `yaml:"header_margin_top"`
	SettingsHideDelay string `yaml:"settings_hide_delay"`
	EnforceInterval  string `yaml:"enforce_interval"`
	AnimOffsetX      int    `yaml:"anim_offset_x"`
	AnimOffsetY      int    `yaml:"anim_offset_y"`
}

// EnhancementConfig configures the post-completion enhancement pipeline.
type EnhancementConfig struct {
	Enabled        bool   `yaml:"enabled"`
	MinLength      int    `yaml:"min_length"`
	SectionTimeout string `yaml:"section_timeout"`
}

// ScreenshotConfig configures best-effort screen capture.
type ScreenshotConfig struct {
	Enabled   bool `yaml:"enabled"`
	MaxHeight int  `yaml:"max_height"`
	Quality   int  `yaml:"quality"`
}

// StoreConfig configures conversation persistence.
type StoreConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LoggingConfig configures categorized file logging.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode"`
	Categories map[string]bool `yaml:"categories"`
	Level      string          `yaml:"level"` // debug, info, warn, error
	JSONFormat bool            `yaml:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "orbit",
		Version: "0.3.0",

		LLM: LLMConfig{
			Provider:    "openai",
			Model:       "gpt-4o",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "120s",
			Temperature: 0.7,
			MaxTokens:   2048,
		},

		Agent: AgentConfig{
			Enabled:       true,
			DaemonURL:     "http://localhost:4823",
			HealthTimeout: "2s",
			TaskTimeout:   "10s",
		},

		Windows: WindowsConfig{
			HeaderWidth:       500,
			HeaderHeight:      47,
			HeaderMarginTop:   10,
			SettingsHideDelay: "200ms",
			EnforceInterval:   "5s",
			AnimOffsetX:       50,
			AnimOffsetY:       20,
		},

		Enhancement: EnhancementConfig{
			Enabled:        true,
			MinLength:      50,
			SectionTimeout: "30s",
		},

		Screenshot: ScreenshotConfig{
			Enabled:   true,
			MaxHeight: 384,
			Quality:   80,
		},

		Store: StoreConfig{
			DatabasePath: ".orbit/orbit.db",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// DefaultPath returns the default config file path for a workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, ".orbit", "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Return defaults if config file doesn't exist
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// Completion provider key (check in priority order)
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		if c.LLM.Provider == "" {
			c.LLM.Provider = "openai"
		}
	}
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.LLM.APIKey = key
		c.LLM.Provider = "gemini"
	}

	if url := os.Getenv("AGENT_DAEMON_URL"); url != "" {
		c.Agent.DaemonURL = url
	}
	if v := os.Getenv("AGENT_HEALTH_TIMEOUT"); v != "" {
		c.Agent.HealthTimeout = v
	}
	if v := os.Getenv("AGENT_TASK_TIMEOUT"); v != "" {
		c.Agent.TaskTimeout = v
	}

	if path := os.Getenv("ORBIT_DB"); path != "" {
		c.Store.DatabasePath = path
	}
}

// IsLLMConfigured reports whether a completion provider is usable.
func (c *Config) IsLLMConfigured() bool {
	return c.LLM.APIKey != "" && c.LLM.Model != ""
}

// GetLLMTimeout returns the completion timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 120 * time.Second
	}
	return d
}

// GetAgentHealthTimeout returns the delegation health-check timeout.
func (c *Config) GetAgentHealthTimeout() time.Duration {
	d, err := time.ParseDuration(c.Agent.HealthTimeout)
	if err != nil {
		return 2 * time.Second
	}
	return d
}

// GetAgentTaskTimeout returns the delegation task timeout.
func (c *Config) GetAgentTaskTimeout() time.Duration {
	d, err := time.ParseDuration(c.Agent.TaskTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// GetSettingsHideDelay returns the settings hide debounce window.
func (c *Config) GetSettingsHideDelay() time.Duration {
	d, err := time.ParseDuration(c.Windows.SettingsHideDelay)
	if err != nil {
		return 200 * time.Millisecond
	}
	return d
}

// GetEnforceInterval returns the fixed-header correction loop interval.
func (c *Config) GetEnforceInterval() time.Duration {
	d, err := time.ParseDuration(c.Windows.EnforceInterval)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetSectionTimeout returns the per-section enhancement timeout.
func (c *Config) GetSectionTimeout() time.Duration {
	d, err := time.ParseDuration(c.Enhancement.SectionTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
