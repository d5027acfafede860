// Package config provides configuration loading and management for defcheck.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/validation"
	"gopkg.in/yaml.v3"
)

// Config represents the complete defcheck configuration
type Config struct {
	Log        LogConfig          `yaml:"log"`
	Rules      RulesConfig        `yaml:"rules"`
	Validation ValidationConfig   `yaml:"validation"`
	Scoring    validation.Weights `yaml:"scoring"`
	NATS       NATSConfig         `yaml:"nats"`
	Metrics    MetricsConfig      `yaml:"metrics"`
}

// LogConfig configures logging
type LogConfig struct {
	// Level is one of debug, info, warn, error (default: info)
	Level string `yaml:"level"`
}

// RulesConfig configures where rules are loaded from
type RulesConfig struct {
	// Dir is the rule file directory (empty = built-in catalog)
	Dir string `yaml:"dir"`
	// Pattern selects rule files below Dir (default: **/*.{yaml,yml})
	Pattern string `yaml:"pattern"`
	// Watch reloads rules when files under Dir change
	Watch bool `yaml:"watch"`
	// Debounce delays a reload until edits settle
	Debounce time.Duration `yaml:"debounce"`
}

// ValidationConfig configures the orchestrator
type ValidationConfig struct {
	// RuleTimeout bounds a single rule (default: 50ms)
	RuleTimeout time.Duration `yaml:"rule_timeout"`
	// Timeout bounds one whole validation (default: 1s)
	Timeout time.Duration `yaml:"timeout"`
	// MaxWorkers caps concurrent rules (0 = 2x CPU count)
	MaxWorkers int `yaml:"max_workers"`
	// Categories restricts validation to these rule categories (empty = all)
	Categories []string `yaml:"categories"`
}

// NATSConfig configures the NATS connection used by serve
type NATSConfig struct {
	// URL is the NATS server URL (empty = use embedded server)
	URL string `yaml:"url"`
	// Embedded starts an in-process NATS server with JetStream when URL is empty
	Embedded bool `yaml:"embedded"`
	// StoreDir holds embedded JetStream data (empty = temporary directory)
	StoreDir string `yaml:"store_dir"`
	// SubjectPrefix prefixes every request subject (default: defcheck)
	SubjectPrefix string `yaml:"subject_prefix"`
	// History stores every validation result in a KV bucket
	History bool `yaml:"history"`
	// HistoryBucket is the KV bucket name (default: DEFCHECK_RESULTS)
	HistoryBucket string `yaml:"history_bucket"`
	// HistoryTTL expires stored results (0 = keep)
	HistoryTTL time.Duration `yaml:"history_ttl"`
	// HistoryStore selects the history backend: kv (default) or memory
	HistoryStore string `yaml:"history_store"`
}

// History backends.
const (
	HistoryStoreKV     = "kv"
	HistoryStoreMemory = "memory"
)

// MetricsConfig configures the Prometheus endpoint
type MetricsConfig struct {
	// Addr is the listen address for /metrics (empty = disabled)
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Log: LogConfig{Level: "info"},
		Rules: RulesConfig{
			Dir:      "", // Built-in catalog
			Pattern:  rules.DefaultPattern,
			Debounce: 500 * time.Millisecond,
		},
		Validation: ValidationConfig{
			RuleTimeout: validation.DefaultRuleTimeout,
			Timeout:     validation.DefaultTimeout,
		},
		NATS: NATSConfig{
			URL:           "",
			Embedded:      true,
			SubjectPrefix: "defcheck",
			HistoryBucket: "DEFCHECK_RESULTS",
			HistoryStore:  HistoryStoreKV,
		},
	}
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.Log.Level); err != nil {
		return err
	}
	if c.Rules.Debounce < 0 {
		return fmt.Errorf("rules.debounce must not be negative")
	}
	if c.Rules.Watch && c.Rules.Dir == "" {
		return fmt.Errorf("rules.watch requires rules.dir")
	}
	if c.Validation.RuleTimeout <= 0 {
		return fmt.Errorf("validation.rule_timeout must be positive")
	}
	if c.Validation.Timeout <= 0 {
		return fmt.Errorf("validation.timeout must be positive")
	}
	if c.Validation.MaxWorkers < 0 {
		return fmt.Errorf("validation.max_workers must not be negative")
	}
	if _, err := c.categories(); err != nil {
		return fmt.Errorf("validation.categories: %w", err)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if c.NATS.SubjectPrefix == "" || strings.ContainsAny(c.NATS.SubjectPrefix, " *>") {
		return fmt.Errorf("nats.subject_prefix must be a literal subject token")
	}
	if c.NATS.URL == "" && !c.NATS.Embedded {
		return fmt.Errorf("nats.url is required when nats.embedded is false")
	}
	if c.NATS.HistoryTTL < 0 {
		return fmt.Errorf("nats.history_ttl must not be negative")
	}
	switch c.NATS.HistoryStore {
	case "", HistoryStoreKV, HistoryStoreMemory:
	default:
		return fmt.Errorf("nats.history_store must be %s or %s, got %q", HistoryStoreKV, HistoryStoreMemory, c.NATS.HistoryStore)
	}
	return nil
}

// LoadFromFile loads configuration from a YAML file on top of the defaults
func LoadFromFile(path string) (*Config, error) {
	return decodeFile(path, DefaultConfig())
}

// readLayer loads only the values a file sets, for merging
func readLayer(path string) (*Config, error) {
	return decodeFile(path, &Config{})
}

func decodeFile(path string, config *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Write encodes the configuration as YAML to w
func (c *Config) Write(w io.Writer) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return enc.Close()
}

// Merge merges another config into this one (other takes precedence for non-zero values)
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Log
	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}

	// Rules
	if other.Rules.Dir != "" {
		c.Rules.Dir = other.Rules.Dir
	}
	if other.Rules.Pattern != "" {
		c.Rules.Pattern = other.Rules.Pattern
	}
	if other.Rules.Watch {
		c.Rules.Watch = true
	}
	if other.Rules.Debounce != 0 {
		c.Rules.Debounce = other.Rules.Debounce
	}

	// Validation
	if other.Validation.RuleTimeout != 0 {
		c.Validation.RuleTimeout = other.Validation.RuleTimeout
	}
	if other.Validation.Timeout != 0 {
		c.Validation.Timeout = other.Validation.Timeout
	}
	if other.Validation.MaxWorkers != 0 {
		c.Validation.MaxWorkers = other.Validation.MaxWorkers
	}
	if len(other.Validation.Categories) > 0 {
		c.Validation.Categories = other.Validation.Categories
	}

	// Scoring
	if len(other.Scoring.Blocking) > 0 || len(other.Scoring.Warning) > 0 {
		c.Scoring = c.Scoring.Merge(other.Scoring)
	}

	// NATS
	if other.NATS.URL != "" {
		c.NATS.URL = other.NATS.URL
		c.NATS.Embedded = false
	}
	if other.NATS.StoreDir != "" {
		c.NATS.StoreDir = other.NATS.StoreDir
	}
	if other.NATS.SubjectPrefix != "" {
		c.NATS.SubjectPrefix = other.NATS.SubjectPrefix
	}
	if other.NATS.History {
		c.NATS.History = true
	}
	if other.NATS.HistoryBucket != "" {
		c.NATS.HistoryBucket = other.NATS.HistoryBucket
	}
	if other.NATS.HistoryTTL != 0 {
		c.NATS.HistoryTTL = other.NATS.HistoryTTL
	}
	if other.NATS.HistoryStore != "" {
		c.NATS.HistoryStore = other.NATS.HistoryStore
	}

	// Metrics
	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}
}

// RuleSource returns the configured rule source: the rules directory when
// set, the built-in catalog otherwise.
func (c *Config) RuleSource() rules.Source {
	if c.Rules.Dir == "" {
		return rules.DefaultSource()
	}
	return rules.DirSource{Dir: c.Rules.Dir, Pattern: c.Rules.Pattern}
}

// Weights returns the default penalty table overlaid with the scoring
// section.
func (c *Config) Weights() validation.Weights {
	return validation.DefaultWeights().Merge(c.Scoring)
}

// ValidationOptions returns the validator defaults from the validation
// section. Call Validate first; unknown categories are dropped here.
func (c *Config) ValidationOptions() validation.Options {
	cats, _ := c.categories()
	return validation.Options{
		Categories:  cats,
		RuleTimeout: c.Validation.RuleTimeout,
		Timeout:     c.Validation.Timeout,
		Workers:     c.Validation.MaxWorkers,
	}
}

func (c *Config) categories() ([]rules.Category, error) {
	var out []rules.Category
	for _, s := range c.Validation.Categories {
		cat, err := rules.ParseCategory(s)
		if err != nil {
			return nil, err
		}
		out = append(out, cat)
	}
	return out, nil
}

// ParseLevel maps a level name to a slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
	}
}
