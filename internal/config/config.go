// Copyright 2026 The PublicBridge Authors. All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

// Package config provides configuration management for the PublicBridge
// orchestration core. It loads a YAML file, applies defaults, and lets a few
// secrets come from the environment so credentials stay out of config files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the application configuration, loaded from a YAML file.
type Config struct {
	// Debug enables debug-level logging.
	Debug bool `yaml:"debug" json:"debug"`

	// LoggingToFile controls whether logs go to rotating files or stdout.
	LoggingToFile bool `yaml:"logging-to-file" json:"logging-to-file"`

	// LogsDir is where rotating log files are written.
	LogsDir string `yaml:"logs-dir" json:"logs-dir"`

	// MetricsAddr is the listen address of the Prometheus /metrics endpoint.
	// Empty disables the endpoint.
	MetricsAddr string `yaml:"metrics-addr" json:"metrics-addr"`

	LLM      LLMConfig      `yaml:"llm" json:"llm"`
	Ensemble EnsembleConfig `yaml:"ensemble" json:"ensemble"`
	Priority PriorityConfig `yaml:"priority" json:"priority"`
	Session  SessionConfig  `yaml:"session" json:"session"`
	Routing  RoutingConfig  `yaml:"routing" json:"routing"`
	History  HistoryConfig  `yaml:"history" json:"history"`
	Store    StoreConfig    `yaml:"store" json:"store"`
}

// LLMConfig configures the remote LLM analyzer adapter.
type LLMConfig struct {
	// APIKey authenticates against the chat-completions endpoint. When
	// empty it falls back to the PUBLICBRIDGE_LLM_API_KEY environment
	// variable; still empty means the adapter runs unavailable.
	APIKey  string `yaml:"api-key" json:"-"`
	BaseURL string `yaml:"base-url" json:"base-url"`
	Model   string `yaml:"model" json:"model"`
}

// EnsembleConfig tunes the classification ensemble.
type EnsembleConfig struct {
	// AdapterTimeoutMS bounds each analyzer invocation, in milliseconds.
	AdapterTimeoutMS int `yaml:"adapter-timeout-ms" json:"adapter-timeout-ms"`
	// Weights are the static reliability weights per adapter.
	Weights WeightsConfig `yaml:"weights" json:"weights"`
	// CategoryBlend and SignalBlend weight category vs urgency confidence
	// in the overall confidence.
	CategoryBlend float64 `yaml:"category-blend" json:"category-blend"`
	SignalBlend   float64 `yaml:"signal-blend" json:"signal-blend"`
}

// WeightsConfig carries per-adapter reliability weights.
type WeightsConfig struct {
	Keyword float64 `yaml:"keyword" json:"keyword"`
	Lexicon float64 `yaml:"lexicon" json:"lexicon"`
	LLM     float64 `yaml:"llm" json:"llm"`
}

// PriorityConfig carries the priority formula weights.
type PriorityConfig struct {
	Urgency    float64 `yaml:"urgency" json:"urgency"`
	Category   float64 `yaml:"category" json:"category"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
	Emotional  float64 `yaml:"emotional" json:"emotional"`
}

// SessionConfig tunes the conversation session manager.
type SessionConfig struct {
	// Window is the short-term turn window per session.
	Window int `yaml:"window" json:"window"`
	// TimeoutMinutes is the inactivity timeout before a session expires.
	TimeoutMinutes int `yaml:"timeout-minutes" json:"timeout-minutes"`
	// SweepIntervalMinutes is the background sweeper period. Zero disables
	// the background sweeper.
	SweepIntervalMinutes int `yaml:"sweep-interval-minutes" json:"sweep-interval-minutes"`
}

// RoutingConfig tunes the routing engine.
type RoutingConfig struct {
	// SteeringDir holds operator override rules. Empty disables steering.
	SteeringDir string `yaml:"steering-dir" json:"steering-dir"`
}

// HistoryConfig configures the long-term conversation history backend.
type HistoryConfig struct {
	// RedisAddr enables the Redis backend when non-empty; otherwise
	// history stays in process memory.
	RedisAddr string `yaml:"redis-addr" json:"redis-addr"`
	Password  string `yaml:"password" json:"-"`
	DB        int    `yaml:"db" json:"db"`
	TTLHours  int    `yaml:"ttl-hours" json:"ttl-hours"`
}

// StoreConfig configures report/department persistence.
type StoreConfig struct {
	// Path is the SQLite database file. Empty disables persistence.
	Path string `yaml:"path" json:"path"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		LogsDir: "logs",
		Ensemble: EnsembleConfig{
			AdapterTimeoutMS: 2000,
			Weights:          WeightsConfig{Keyword: 0.35, Lexicon: 0.25, LLM: 0.40},
			CategoryBlend:    0.6,
			SignalBlend:      0.4,
		},
		Priority: PriorityConfig{
			Urgency:    0.4,
			Category:   0.3,
			Confidence: 0.2,
			Emotional:  0.1,
		},
		Session: SessionConfig{
			Window:               10,
			TimeoutMinutes:       30,
			SweepIntervalMinutes: 5,
		},
	}
}

// Load reads a YAML config file over the defaults. A missing file is not an
// error; the defaults are returned.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("config: parse %s: %w", path, err)
			}
		case !os.IsNotExist(err):
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if c.LLM.APIKey == "" {
		c.LLM.APIKey = os.Getenv("PUBLICBRIDGE_LLM_API_KEY")
	}
	if c.History.Password == "" {
		c.History.Password = os.Getenv("PUBLICBRIDGE_REDIS_PASSWORD")
	}
}

func (c *Config) validate() error {
	if c.Ensemble.AdapterTimeoutMS < 0 {
		return fmt.Errorf("config: adapter-timeout-ms must be non-negative")
	}
	if c.Session.Window < 0 {
		return fmt.Errorf("config: session window must be non-negative")
	}
	if c.Session.TimeoutMinutes < 0 {
		return fmt.Errorf("config: session timeout-minutes must be non-negative")
	}
	for _, w := range []float64{c.Ensemble.Weights.Keyword, c.Ensemble.Weights.Lexicon, c.Ensemble.Weights.LLM} {
		if w < 0 {
			return fmt.Errorf("config: ensemble weights must be non-negative")
		}
	}
	return nil
}

// AdapterTimeout returns the per-adapter timeout as a duration.
func (c *Config) AdapterTimeout() time.Duration {
	return time.Duration(c.Ensemble.AdapterTimeoutMS) * time.Millisecond
}

// SessionTimeout returns the session inactivity timeout as a duration.
func (c *Config) SessionTimeout() time.Duration {
	return time.Duration(c.Session.TimeoutMinutes) * time.Minute
}

// SweepInterval returns the sweeper period as a duration.
func (c *Config) SweepInterval() time.Duration {
	return time.Duration(c.Session.SweepIntervalMinutes) * time.Minute
}

// HistoryTTL returns the history retention as a duration, zero for forever.
func (c *Config) HistoryTTL() time.Duration {
	return time.Duration(c.History.TTLHours) * time.Hour
}
