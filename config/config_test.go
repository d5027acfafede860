package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/c360studio/defcheck/rules"
	"github.com/c360studio/defcheck/validation"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Validation.RuleTimeout != 50*time.Millisecond {
		t.Errorf("expected rule timeout 50ms, got %v", cfg.Validation.RuleTimeout)
	}
	if cfg.Validation.Timeout != time.Second {
		t.Errorf("expected timeout 1s, got %v", cfg.Validation.Timeout)
	}
	if cfg.Rules.Pattern != rules.DefaultPattern {
		t.Errorf("expected pattern %s, got %s", rules.DefaultPattern, cfg.Rules.Pattern)
	}
	if !cfg.NATS.Embedded {
		t.Error("expected embedded NATS by default")
	}
	if cfg.NATS.SubjectPrefix != "defcheck" {
		t.Errorf("expected subject prefix defcheck, got %s", cfg.NATS.SubjectPrefix)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
	if _, ok := cfg.RuleSource().(rules.BytesSource); !ok {
		t.Errorf("expected built-in rule source, got %T", cfg.RuleSource())
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "unknown log level",
			modify:  func(c *Config) { c.Log.Level = "loud" },
			wantErr: true,
		},
		{
			name:    "watch without dir",
			modify:  func(c *Config) { c.Rules.Watch = true },
			wantErr: true,
		},
		{
			name:    "zero rule timeout",
			modify:  func(c *Config) { c.Validation.RuleTimeout = 0 },
			wantErr: true,
		},
		{
			name:    "negative timeout",
			modify:  func(c *Config) { c.Validation.Timeout = -time.Second },
			wantErr: true,
		},
		{
			name:    "negative workers",
			modify:  func(c *Config) { c.Validation.MaxWorkers = -1 },
			wantErr: true,
		},
		{
			name:    "unknown category",
			modify:  func(c *Config) { c.Validation.Categories = []string{"STR", "XYZ"} },
			wantErr: true,
		},
		{
			name:    "lowercase category",
			modify:  func(c *Config) { c.Validation.Categories = []string{"str"} },
			wantErr: false,
		},
		{
			name: "negative penalty",
			modify: func(c *Config) {
				c.Scoring.Blocking = map[rules.Category]int{rules.CategorySTR: -5}
			},
			wantErr: true,
		},
		{
			name:    "external without url",
			modify:  func(c *Config) { c.NATS.Embedded = false },
			wantErr: true,
		},
		{
			name:    "wildcard subject prefix",
			modify:  func(c *Config) { c.NATS.SubjectPrefix = "defcheck.>" },
			wantErr: true,
		},
		{
			name:    "memory history",
			modify:  func(c *Config) { c.NATS.HistoryStore = HistoryStoreMemory },
			wantErr: false,
		},
		{
			name:    "unknown history store",
			modify:  func(c *Config) { c.NATS.HistoryStore = "redis" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	// Create temp file with config
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	content := `
log:
  level: debug
rules:
  dir: ./rules
  watch: true
  debounce: 2s
validation:
  rule_timeout: 100ms
  max_workers: 4
  categories: [STR, ESS]
scoring:
  blocking:
    STR: 20
nats:
  url: "nats://test:4222"
  history: true
metrics:
  addr: ":9090"
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile() error = %v", err)
	}

	if cfg.Log.Level != "debug" {
		t.Errorf("expected level debug, got %s", cfg.Log.Level)
	}
	if cfg.Rules.Dir != "./rules" || !cfg.Rules.Watch || cfg.Rules.Debounce != 2*time.Second {
		t.Errorf("unexpected rules section: %+v", cfg.Rules)
	}
	if cfg.Rules.Pattern != rules.DefaultPattern {
		t.Errorf("expected default pattern to survive, got %s", cfg.Rules.Pattern)
	}
	if cfg.Validation.Timeout != time.Second {
		t.Errorf("expected default timeout to survive, got %v", cfg.Validation.Timeout)
	}

	opts := cfg.ValidationOptions()
	if opts.RuleTimeout != 100*time.Millisecond || opts.Workers != 4 {
		t.Errorf("unexpected options: %+v", opts)
	}
	if len(opts.Categories) != 2 || opts.Categories[0] != rules.CategorySTR {
		t.Errorf("unexpected categories: %v", opts.Categories)
	}

	w := cfg.Weights()
	if w.Blocking[rules.CategorySTR] != 20 {
		t.Errorf("expected STR penalty 20, got %d", w.Blocking[rules.CategorySTR])
	}
	if w.Blocking[rules.CategoryESS] != validation.DefaultWeights().Blocking[rules.CategoryESS] {
		t.Errorf("expected default ESS penalty, got %d", w.Blocking[rules.CategoryESS])
	}

	if src, ok := cfg.RuleSource().(rules.DirSource); !ok || src.Dir != "./rules" {
		t.Errorf("expected dir source, got %#v", cfg.RuleSource())
	}
	if cfg.NATS.URL != "nats://test:4222" {
		t.Errorf("expected NATS URL nats://test:4222, got %s", cfg.NATS.URL)
	}
	if !cfg.NATS.History || cfg.Metrics.Addr != ":9090" {
		t.Errorf("unexpected nats/metrics: %+v %+v", cfg.NATS, cfg.Metrics)
	}
}

func TestLoadFromFile_Errors(t *testing.T) {
	if _, err := LoadFromFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("validation: [not, a, map]"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFromFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfigMerge(t *testing.T) {
	base := DefaultConfig()
	override := &Config{
		Rules: RulesConfig{
			Dir: "/override/rules",
		},
		Validation: ValidationConfig{
			Timeout: 2 * time.Second,
		},
		Scoring: validation.Weights{
			Warning: map[rules.Category]int{rules.CategoryVER: 1},
		},
		NATS: NATSConfig{
			HistoryStore: HistoryStoreMemory,
		},
	}

	base.Merge(override)

	if base.NATS.HistoryStore != HistoryStoreMemory {
		t.Errorf("expected memory history store, got %s", base.NATS.HistoryStore)
	}

	if base.Rules.Dir != "/override/rules" {
		t.Errorf("expected rules dir /override/rules, got %s", base.Rules.Dir)
	}
	// Rule timeout should remain from base since override didn't set it
	if base.Validation.RuleTimeout != validation.DefaultRuleTimeout {
		t.Errorf("expected rule timeout to remain default, got %v", base.Validation.RuleTimeout)
	}
	if base.Validation.Timeout != 2*time.Second {
		t.Errorf("expected timeout 2s, got %v", base.Validation.Timeout)
	}
	if base.Weights().Warning[rules.CategoryVER] != 1 {
		t.Errorf("expected VER warning penalty 1, got %d", base.Weights().Warning[rules.CategoryVER])
	}

	base.Merge(nil)
}

func TestConfigSaveToFile(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yaml")

	cfg := DefaultConfig()
	cfg.Rules.Dir = "/srv/rules"
	cfg.Validation.RuleTimeout = 75 * time.Millisecond

	if err := cfg.SaveToFile(configPath); err != nil {
		t.Fatalf("SaveToFile() error = %v", err)
	}

	// Verify file was created
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		t.Error("config file was not created")
	}

	// Load and verify
	loaded, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("failed to load saved config: %v", err)
	}
	if loaded.Rules.Dir != "/srv/rules" {
		t.Errorf("expected rules dir /srv/rules, got %s", loaded.Rules.Dir)
	}
	if loaded.Validation.RuleTimeout != 75*time.Millisecond {
		t.Errorf("expected rule timeout 75ms, got %v", loaded.Validation.RuleTimeout)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"", slog.LevelInfo},
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if err != nil || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v; want %v", tt.in, got, err, tt.want)
		}
	}
	if _, err := ParseLevel("verbose"); err == nil {
		t.Error("expected error for unknown level")
	}
}

func TestConfigWrite(t *testing.T) {
	var sb strings.Builder
	if err := DefaultConfig().Write(&sb); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := sb.String()
	for _, want := range []string{"rule_timeout: 50ms", "subject_prefix: defcheck", "embedded: true"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}
