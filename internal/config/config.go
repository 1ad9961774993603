// Package config loads webchat settings from a YAML config file, with
// environment variable fallbacks for credentials.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

const (
	DefaultModel        = "gpt-4o-mini"
	DefaultSystemPrompt = "You are a helpful AI assistant."
	DefaultTemperature  = 0.7
	DefaultTopP         = 1.0
	DefaultServeAddr    = ":8787"
)

type Config struct {
	Model        string  `mapstructure:"model"`
	SystemPrompt string  `mapstructure:"system_prompt"`
	APIKey       string  `mapstructure:"api_key"`
	Temperature  float64 `mapstructure:"temperature"`
	TopP         float64 `mapstructure:"top_p"`
	ProxyURL     string  `mapstructure:"proxy_url"`
	DBPath       string  `mapstructure:"db_path"`
	Serve        Serve   `mapstructure:"serve"`
}

type Serve struct {
	Addr string `mapstructure:"addr"`
}

// Dir returns the directory holding the config file, creating it if needed.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	dir := filepath.Join(base, "webchat")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// Load reads config.yaml from the webchat config directory. A missing file
// is fine; defaults and environment variables fill the gaps.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return load(dir)
}

func load(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("model", DefaultModel)
	v.SetDefault("system_prompt", DefaultSystemPrompt)
	v.SetDefault("temperature", DefaultTemperature)
	v.SetDefault("top_p", DefaultTopP)
	v.SetDefault("serve.addr", DefaultServeAddr)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.APIKey = expandEnv(cfg.APIKey)
	if cfg.APIKey == "" {
		cfg.APIKey = os.Getenv("OPENAI_API_KEY")
	}
	if cfg.ProxyURL == "" {
		cfg.ProxyURL = os.Getenv("WEBCHAT_PROXY_URL")
	}
	return &cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnv resolves ${VAR} references so keys can live outside the config
// file.
func expandEnv(s string) string {
	if !strings.Contains(s, "${") {
		return s
	}
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		name := m[2 : len(m)-1]
		return os.Getenv(name)
	})
}
