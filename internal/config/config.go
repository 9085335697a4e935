// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// MailConfig holds Gmail credentials and token storage settings.
type MailConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	TokenPath    string `yaml:"token_path"`
	BaseURL      string `yaml:"base_url"`
}

// ModelConfig selects and configures the extraction model backend.
type ModelConfig struct {
	// Backend is "hosted" (managed API) or "selfhosted" (local inference
	// server). Which one the selector prefers is a separate question; this
	// only configures the endpoints.
	Backend        string  `yaml:"backend"`
	HostedBaseURL  string  `yaml:"hosted_base_url"`
	HostedAPIKey   string  `yaml:"hosted_api_key"`
	HostedModel    string  `yaml:"hosted_model"`
	LocalEndpoint  string  `yaml:"local_endpoint"`
	LocalModel     string  `yaml:"local_model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	MaxAttempts    int     `yaml:"max_attempts"`

	// Durations come in as strings ("1s", "60s") because the YAML
	// decoder has no native duration support.
	BackoffBase    time.Duration `yaml:"-"`
	AttemptTimeout time.Duration `yaml:"-"`
	RawBackoffBase string        `yaml:"backoff_base"`
	RawAttempt     string        `yaml:"attempt_timeout"`
}

// SinkConfig holds the Quickbase connection settings.
type SinkConfig struct {
	APIURL        string `yaml:"api_url"`
	RealmHostname string `yaml:"realm_hostname"`
	UserToken     string `yaml:"user_token"`
	TableID       string `yaml:"table_id"`
}

// ReviewConfig tunes the confidence gate.
type ReviewConfig struct {
	Threshold         float64 `yaml:"threshold"`
	EmptyFieldPenalty float64 `yaml:"empty_field_penalty"`
}

// Config holds all configuration for the intake service.
type Config struct {
	Mail   MailConfig
	Model  ModelConfig
	Sink   SinkConfig
	Review ReviewConfig

	// Run shape
	PollInterval time.Duration
	MaxResults   int
	Concurrency  int
	Preference   string // forced strategy, "" for automatic selection

	// Shared retry policy for mail and sink calls
	RetryMaxAttempts int
	RetryBackoffBase time.Duration

	// Redis
	RedisURL    string
	ReviewQueue string

	// Postgres
	DatabaseURL string

	// Server (health check only)
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Mail   MailConfig   `yaml:"mail"`
	Model  ModelConfig  `yaml:"model"`
	Sink   SinkConfig   `yaml:"sink"`
	Review ReviewConfig `yaml:"review"`
	Run    struct {
		PollInterval     string `yaml:"poll_interval"`
		MaxResults       int    `yaml:"max_results"`
		Concurrency      int    `yaml:"concurrency"`
		Preference       string `yaml:"preference"`
		RetryMaxAttempts int    `yaml:"retry_max_attempts"`
		RetryBackoffBase string `yaml:"retry_backoff_base"`
	} `yaml:"run"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Review string `yaml:"review"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "/app/config/config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		Mail:         raw.Mail,
		Model:        raw.Model,
		Sink:         raw.Sink,
		Review:       raw.Review,
		PollInterval: parseDurationOr(raw.Run.PollInterval, 0),
		MaxResults:   raw.Run.MaxResults,
		Concurrency:  raw.Run.Concurrency,
		Preference:   raw.Run.Preference,

		RetryMaxAttempts: raw.Run.RetryMaxAttempts,
		RetryBackoffBase: parseDurationOr(raw.Run.RetryBackoffBase, 0),
		RedisURL:         firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		ReviewQueue:      firstNonEmpty(raw.Redis.Queues.Review, envOrDefault("REVIEW_QUEUE", "assignment-reviews")),
		DatabaseURL:      firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		Port:             envOrDefaultInt("PORT", 8080),
	}

	cfg.Model.BackoffBase = parseDurationOr(cfg.Model.RawBackoffBase, 0)
	cfg.Model.AttemptTimeout = parseDurationOr(cfg.Model.RawAttempt, 0)

	applyDefaults(cfg)

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyDefaults fills in settings the YAML left at zero.
func applyDefaults(cfg *Config) {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = envOrDefaultDuration("POLL_INTERVAL", 60*time.Second)
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.RetryMaxAttempts <= 0 {
		cfg.RetryMaxAttempts = 5
	}
	if cfg.RetryBackoffBase <= 0 {
		cfg.RetryBackoffBase = time.Second
	}

	if cfg.Mail.TokenPath == "" {
		cfg.Mail.TokenPath = envOrDefault("GMAIL_TOKEN_PATH", "/app/data/token.json")
	}

	if cfg.Model.Backend == "" {
		cfg.Model.Backend = "hosted"
	}
	if cfg.Model.Temperature == 0 {
		cfg.Model.Temperature = 0.2
	}
	if cfg.Model.MaxTokens <= 0 {
		cfg.Model.MaxTokens = 500
	}
	if cfg.Model.MaxAttempts <= 0 {
		cfg.Model.MaxAttempts = 5
	}
	if cfg.Model.BackoffBase <= 0 {
		cfg.Model.BackoffBase = time.Second
	}
	if cfg.Model.AttemptTimeout <= 0 {
		cfg.Model.AttemptTimeout = 60 * time.Second
	}

	if cfg.Review.Threshold == 0 {
		cfg.Review.Threshold = 0.85
	}
	if cfg.Review.EmptyFieldPenalty == 0 {
		cfg.Review.EmptyFieldPenalty = 0.02
	}
}

// validateConfig rejects configurations the service cannot start with.
func validateConfig(cfg *Config) error {
	if cfg.Mail.ClientID == "" || cfg.Mail.ClientSecret == "" {
		return fmt.Errorf("mail client credentials not configured — check config.yaml and environment variables")
	}
	switch cfg.Model.Backend {
	case "hosted":
		if cfg.Model.HostedAPIKey == "" {
			return fmt.Errorf("model backend is hosted but hosted_api_key is empty")
		}
	case "selfhosted":
		if cfg.Model.LocalEndpoint == "" {
			return fmt.Errorf("model backend is selfhosted but local_endpoint is empty")
		}
	default:
		return fmt.Errorf("unknown model backend %q (want hosted or selfhosted)", cfg.Model.Backend)
	}
	// A forced strategy must name a backend this deployment actually has.
	switch cfg.Preference {
	case "remote-model":
		if cfg.Model.HostedAPIKey == "" {
			return fmt.Errorf("run.preference is remote-model but no hosted backend is configured")
		}
	case "local-model":
		if cfg.Model.LocalEndpoint == "" {
			return fmt.Errorf("run.preference is local-model but no self-hosted backend is configured")
		}
	}
	if cfg.Sink.RealmHostname == "" || cfg.Sink.UserToken == "" || cfg.Sink.TableID == "" {
		return fmt.Errorf("sink not configured — realm_hostname, user_token, and table_id are required")
	}
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("database URL not configured")
	}
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
