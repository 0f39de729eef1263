package config

import (
	"fmt"
	"os"

	"content-safety/internal/analyzer"
	"content-safety/internal/cache"
	"content-safety/internal/duplicate"
	"content-safety/internal/llm"
	"content-safety/internal/ollama"
	"content-safety/internal/repository"
	"content-safety/internal/service"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	Logging struct {
		Development bool `yaml:"development"`
	} `yaml:"logging"`

	Database repository.Config `yaml:"database"`

	// Empty addr disables the verdict cache
	Redis cache.Config `yaml:"redis"`

	Analyzer struct {
		Enabled         *bool `yaml:"enabled"`
		analyzer.Config `yaml:",inline"`
	} `yaml:"analyzer"`

	// Remote inference backends, tried in order
	Providers []llm.ProviderConfig `yaml:"providers"`

	MaxFailuresBeforeSwitch int `yaml:"max_failures_before_switch"`

	Moderation struct {
		// false leaves the safety service in keyword-only mode
		Enabled   *bool            `yaml:"enabled"`
		Duplicate duplicate.Config `yaml:"duplicate"`
	} `yaml:"moderation"`

	Escalation service.EscalationConfig `yaml:"escalation"`
}

// AnalyzerEnabled reports whether the remote analyzer should be probed
func (c *Config) AnalyzerEnabled() bool {
	return c.Analyzer.Enabled == nil || *c.Analyzer.Enabled
}

// ModerationEnabled reports whether the classifier pipeline is wired in
func (c *Config) ModerationEnabled() bool {
	return c.Moderation.Enabled == nil || *c.Moderation.Enabled
}

// LoadConfig loads configuration from YAML file. A .env file next to the
// process is loaded first when present.
func LoadConfig(configPath string) (*Config, error) {
	_ = godotenv.Load()

	config := &Config{}

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(config); err != nil {
		return nil, fmt.Errorf("failed to decode config file: %w", err)
	}

	// Set defaults
	if config.Server.Port == "" {
		config.Server.Port = "8002"
	}

	if config.Database.Type == "" {
		config.Database.Type = repository.DialectSQLite
	}

	if config.Database.Type == repository.DialectSQLite && config.Database.Path == "" {
		config.Database.Path = "./data/content_safety.db"
	}

	if config.MaxFailuresBeforeSwitch == 0 {
		config.MaxFailuresBeforeSwitch = 3
	}

	if len(config.Providers) == 0 {
		config.Providers = []llm.ProviderConfig{{
			Type:       llm.ProviderOllama,
			BaseURL:    ollama.DefaultBaseURL,
			ModelName:  ollama.DefaultModel,
			ModelMatch: ollama.DefaultModelMatch,
		}}
	}

	// Expand environment variables in secrets
	config.Database.DSN = os.ExpandEnv(config.Database.DSN)
	config.Redis.Password = os.ExpandEnv(config.Redis.Password)

	ollamaHost := os.Getenv("OLLAMA_HOST")
	for i := range config.Providers {
		p := &config.Providers[i]
		if p.Type == "" {
			p.Type = llm.ProviderOllama
		}
		p.APIKey = os.ExpandEnv(p.APIKey)
		p.BaseURL = os.ExpandEnv(p.BaseURL)
		if p.Type == llm.ProviderOllama && ollamaHost != "" {
			p.BaseURL = ollamaHost
		}
	}

	return config, nil
}
