// Package config handles configuration loading for GridSage.
// It supports YAML config files with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Insight   InsightConfig   `mapstructure:"insight"   yaml:"insight"`
	LLM       LLMConfig       `mapstructure:"llm"       yaml:"llm"`
	Assistant AssistantConfig `mapstructure:"assistant" yaml:"assistant"`
	API       APIConfig       `mapstructure:"api"       yaml:"api"`
}

// InsightConfig holds the time series provider credentials and endpoints.
type InsightConfig struct {
	ClientID     string `mapstructure:"client_id"     yaml:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret"`
	AuthURL      string `mapstructure:"auth_url"      yaml:"auth_url"`
	BaseURL      string `mapstructure:"base_url"      yaml:"base_url"`
}

// LLMConfig holds the language model configuration.
type LLMConfig struct {
	OpenAIKey   string  `mapstructure:"openai_key"  yaml:"openai_key"`
	Model       string  `mapstructure:"model"       yaml:"model"`
	Temperature float64 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens"  yaml:"max_tokens"`
}

// AssistantConfig sizes the conversation session store.
type AssistantConfig struct {
	SessionCapacity int `mapstructure:"session_capacity" yaml:"session_capacity"`
	SessionTTLMin   int `mapstructure:"session_ttl_min"  yaml:"session_ttl_min"`
}

// APIConfig holds HTTP server settings.
type APIConfig struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// Load reads the configuration from file and environment variables.
// Config file search order:
//  1. ./config/config.yaml (project root)
//  2. ~/.gridsage/config.yaml (home directory)
//  3. /etc/gridsage/config.yaml (system)
//
// Environment variables override config file values.
// Format: GRIDSAGE_<SECTION>_<KEY>, e.g., GRIDSAGE_LLM_OPENAI_KEY
func Load() (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./config")
	v.AddConfigPath(filepath.Join(homeDir(), ".gridsage"))
	v.AddConfigPath("/etc/gridsage")

	v.SetEnvPrefix("GRIDSAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found — that's fine, use defaults + env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// LoadFromFile reads the configuration from an explicit file path.
// Environment variables still override file values.
func LoadFromFile(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetConfigFile(path)

	v.SetEnvPrefix("GRIDSAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	overrideFromEnv(&cfg)

	return &cfg, nil
}

// setDefaults sets sensible defaults for all config values.
func setDefaults(v *viper.Viper) {
	v.SetDefault("llm.model", "gpt-4o")
	v.SetDefault("llm.temperature", 0.1)
	v.SetDefault("llm.max_tokens", 4096)

	v.SetDefault("assistant.session_capacity", 256)
	v.SetDefault("assistant.session_ttl_min", 120)

	v.SetDefault("api.host", "0.0.0.0")
	v.SetDefault("api.port", 8000)
}

// overrideFromEnv explicitly reads sensitive keys from environment
// variables. The plain CLIENT_ID / CLIENT_SECRET / OPENAI_API_KEY names
// are honored for compatibility with existing deployments.
func overrideFromEnv(cfg *Config) {
	if key := os.Getenv("GRIDSAGE_INSIGHT_CLIENT_ID"); key != "" {
		cfg.Insight.ClientID = key
	}
	if key := os.Getenv("GRIDSAGE_INSIGHT_CLIENT_SECRET"); key != "" {
		cfg.Insight.ClientSecret = key
	}
	if key := os.Getenv("GRIDSAGE_LLM_OPENAI_KEY"); key != "" {
		cfg.LLM.OpenAIKey = key
	}

	// Legacy names.
	if cfg.Insight.ClientID == "" {
		cfg.Insight.ClientID = os.Getenv("CLIENT_ID")
	}
	if cfg.Insight.ClientSecret == "" {
		cfg.Insight.ClientSecret = os.Getenv("CLIENT_SECRET")
	}
	if cfg.LLM.OpenAIKey == "" {
		cfg.LLM.OpenAIKey = os.Getenv("OPENAI_API_KEY")
	}
}

// homeDir returns the user's home directory.
func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
