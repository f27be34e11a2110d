// Package config loads and watches the daemon's layered YAML configuration.
package config

import (
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

// Field order chosen by logical grouping, matching the teacher's grouped
// config layout rather than alphabetical or alignment order.

// ModelConfig configures the LLM connector.
type ModelConfig struct {
	Endpoint     string `yaml:"endpoint"`
	APIKey       string `yaml:"api_key"`
	APIKeyEnv    string `yaml:"api_key_env"`
	Name         string `yaml:"name"`
	TimeoutMS    int    `yaml:"timeout_ms"`
	SystemPrompt string `yaml:"system_prompt"`
}

// ContextConfig configures the context gatherer.
type ContextConfig struct {
	BudgetMS              int `yaml:"context_budget_ms"`
	MaxTotalTokens        int `yaml:"max_total_tokens"`
	HistoryWindow         int `yaml:"history_window"`
	MaxFilesInListing     int `yaml:"max_files_in_listing"`
	SimilarCommandsWindow int `yaml:"similar_commands_window"`
	SimilarCommandsMax    int `yaml:"similar_commands_max"`
	PrefixBytes           int `yaml:"prefix_bytes"`
	PriorityHistory       int `yaml:"priority_history"`
	PriorityCWD           int `yaml:"priority_cwd"`
	PriorityPlugins       int `yaml:"priority_plugins"`
}

// PluginConfig configures a single per-ecosystem plugin.
type PluginConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DeadlineMS    int    `yaml:"deadline_ms"`
	Priority      int    `yaml:"priority"`
	Depth         string `yaml:"depth,omitempty"` // git only: light|standard|detailed
	RecentCommits int    `yaml:"recent_commits,omitempty"`
}

// PluginsConfig holds the five named ecosystem plugins.
type PluginsConfig struct {
	Git    PluginConfig `yaml:"git"`
	Docker PluginConfig `yaml:"docker"`
	Node   PluginConfig `yaml:"node"`
	Python PluginConfig `yaml:"python"`
	Rust   PluginConfig `yaml:"rust"`
}

// TriggerConfig distinguishes auto-delay triggers from manual ones for TTL
// selection purposes.
type TriggerConfig struct {
	AutoDelayMS int `yaml:"auto_delay_ms"`
}

// CacheConfig configures the suggestion cache.
type CacheConfig struct {
	Capacity      int     `yaml:"capacity"`
	TTLAutoMS     int     `yaml:"ttl_auto_ms"`
	TTLManualMS   int     `yaml:"ttl_manual_ms"`
	TTLNegativeMS int     `yaml:"ttl_negative_ms"`
	StaleRatio    float64 `yaml:"stale_ratio"`
}

// PrivacyConfig configures the sanitizer.
type PrivacyConfig struct {
	CustomPatterns []string `yaml:"custom_patterns"`
}

// LogConfig configures logging verbosity.
type LogConfig struct {
	Level string `yaml:"level"`
}

// DiagnosisConfig bounds diagnosis request payloads.
type DiagnosisConfig struct {
	MaxStderrBytes int `yaml:"max_stderr_bytes"`
}

// SafetyConfig configures the safety validator.
type SafetyConfig struct {
	BlockDangerous bool     `yaml:"block_dangerous"`
	CustomBlocked  []string `yaml:"custom_blocked"`
}

// ArbiterConfig configures request lifecycle behavior.
type ArbiterConfig struct {
	MaxInFlight      int `yaml:"max_in_flight"`
	RequestTimeoutMS int `yaml:"request_timeout_ms"`
}

// Config is the fully merged, validated daemon configuration.
type Config struct {
	Model        ModelConfig     `yaml:"model"`
	Context      ContextConfig   `yaml:"context"`
	Plugins      PluginsConfig   `yaml:"plugins"`
	Trigger      TriggerConfig   `yaml:"trigger"`
	Cache        CacheConfig     `yaml:"cache"`
	Privacy      PrivacyConfig   `yaml:"privacy"`
	Safety       SafetyConfig    `yaml:"safety"`
	Log          LogConfig       `yaml:"log"`
	Diagnosis    DiagnosisConfig `yaml:"diagnosis"`
	SystemPrompt string          `yaml:"system_prompt"`
	Arbiter      ArbiterConfig   `yaml:"arbiter"`
}

// Default returns the built-in default configuration, matching spec.md's
// named defaults exactly (ttl_auto_ms=300s, ttl_manual_ms=600s,
// ttl_negative_ms=30s, stale_ratio=0.8, context_budget_ms=150ms, etc.).
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Endpoint:  "https://api.openai.com/v1",
			APIKeyEnv: "NUDGE_API_KEY",
			Name:      "gpt-4o-mini",
			TimeoutMS: 5000,
		},
		Context: ContextConfig{
			BudgetMS:              150,
			MaxTotalTokens:        2048,
			HistoryWindow:         20,
			MaxFilesInListing:     40,
			SimilarCommandsWindow: 200,
			SimilarCommandsMax:    5,
			PrefixBytes:           256,
			PriorityHistory:       80,
			PriorityCWD:           60,
			PriorityPlugins:       40,
		},
		Plugins: PluginsConfig{
			Git:    PluginConfig{Enabled: true, DeadlineMS: 50, Priority: 40, Depth: "standard", RecentCommits: 5},
			Docker: PluginConfig{Enabled: true, DeadlineMS: 100, Priority: 40},
			Node:   PluginConfig{Enabled: true, DeadlineMS: 100, Priority: 40},
			Python: PluginConfig{Enabled: true, DeadlineMS: 100, Priority: 40},
			Rust:   PluginConfig{Enabled: true, DeadlineMS: 100, Priority: 40},
		},
		Trigger: TriggerConfig{AutoDelayMS: 400},
		Cache: CacheConfig{
			Capacity:      500,
			TTLAutoMS:     300_000,
			TTLManualMS:   600_000,
			TTLNegativeMS: 30_000,
			StaleRatio:    0.8,
		},
		Privacy: PrivacyConfig{},
		Safety: SafetyConfig{
			BlockDangerous: true,
		},
		Log: LogConfig{Level: "info"},
		Diagnosis: DiagnosisConfig{
			MaxStderrBytes: 16 * 1024,
		},
		Arbiter: ArbiterConfig{
			MaxInFlight:      8,
			RequestTimeoutMS: 8000,
		},
	}
}

// ConfigDir returns {config_dir} per spec.md §6.3 ($NUDGE_CONFIG_DIR, else
// ~/.config/nudge, matching the teacher's XDG-flavored DataDir()).
func ConfigDir() string {
	if dir := os.Getenv("NUDGE_CONFIG_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "nudge")
}

// SocketPath returns the Unix domain socket path inside {config_dir}.
func SocketPath() string {
	return filepath.Join(ConfigDir(), "nudge.sock")
}

// PIDPath returns the owner PID file path inside {config_dir}.
func PIDPath() string {
	return filepath.Join(ConfigDir(), "nudge.pid")
}

// DefaultConfigPath returns {config_dir}/config.default.yaml.
func DefaultConfigPath() string {
	return filepath.Join(ConfigDir(), "config.default.yaml")
}

// UserConfigPath returns {config_dir}/config.yaml, honoring NUDGE_CONFIG.
func UserConfigPath() string {
	if p := os.Getenv("NUDGE_CONFIG"); p != "" {
		return p
	}
	return filepath.Join(ConfigDir(), "config.yaml")
}

// Load builds the fully merged, validated Config: built-in defaults →
// config.default.yaml → config.yaml (spec.md §4.8). Missing layer files are
// skipped, not errors; malformed YAML in a layer is logged and skipped so a
// broken user file never prevents the daemon from starting.
func Load() (*Config, error) {
	merged := defaultsAsMap()

	for _, path := range []string{DefaultConfigPath(), UserConfigPath()} {
		layer, err := readYAMLLayer(path)
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("config: skipping unreadable layer")
			continue
		}
		if layer == nil {
			continue
		}
		merged = deepMerge(merged, layer)
	}

	cfg, err := mapToConfig(merged)
	if err != nil {
		log.Warn().Err(err).Msg("config: falling back to defaults after merge failure")
		return Default(), nil
	}

	validate(cfg)
	return cfg, nil
}

func defaultsAsMap() map[string]any {
	out, err := yaml.Marshal(Default())
	if err != nil {
		return map[string]any{}
	}
	var m map[string]any
	if err := yaml.Unmarshal(out, &m); err != nil {
		return map[string]any{}
	}
	return m
}

func readYAMLLayer(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepMerge merges override into base: maps merge recursively, scalars and
// lists replace wholesale (spec.md §4.8).
func deepMerge(base, override map[string]any) map[string]any {
	out := make(map[string]any, len(base))
	for k, v := range base {
		out[k] = v
	}
	for k, ov := range override {
		bv, exists := out[k]
		if !exists {
			out[k] = ov
			continue
		}
		bm, bok := bv.(map[string]any)
		om, ook := ov.(map[string]any)
		if bok && ook {
			out[k] = deepMerge(bm, om)
		} else {
			out[k] = ov
		}
	}
	return out
}

func mapToConfig(m map[string]any) (*Config, error) {
	data, err := yaml.Marshal(m)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks numeric ranges per spec.md §4.8. Invalid values are
// replaced with the corresponding default field and logged — config never
// fails the daemon to start.
func validate(cfg *Config) {
	d := Default()
	if cfg.Cache.StaleRatio < 0 || cfg.Cache.StaleRatio > 1 {
		log.Warn().Float64("value", cfg.Cache.StaleRatio).Msg("config: cache.stale_ratio out of [0,1], using default")
		cfg.Cache.StaleRatio = d.Cache.StaleRatio
	}
	if cfg.Cache.Capacity < 1 {
		log.Warn().Int("value", cfg.Cache.Capacity).Msg("config: cache.capacity must be >=1, using default")
		cfg.Cache.Capacity = d.Cache.Capacity
	}
	if cfg.Context.MaxTotalTokens < 256 {
		log.Warn().Int("value", cfg.Context.MaxTotalTokens).Msg("config: context.max_total_tokens must be >=256, using default")
		cfg.Context.MaxTotalTokens = d.Context.MaxTotalTokens
	}
	if cfg.Arbiter.MaxInFlight < 1 {
		cfg.Arbiter.MaxInFlight = d.Arbiter.MaxInFlight
	}
	if cfg.Model.TimeoutMS <= 0 {
		cfg.Model.TimeoutMS = d.Model.TimeoutMS
	}
}

// Store holds the process-wide active configuration and supports atomic
// hot-swap from the fsnotify watcher (see watcher.go). Passed explicitly
// through the pipeline's context object rather than read as an ambient
// singleton (spec.md §9 "Global state").
type Store struct {
	ptr atomic.Pointer[Config]
}

// NewStore loads the initial configuration and wraps it in a Store.
func NewStore() (*Store, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	return NewStoreWithConfig(cfg), nil
}

// NewStoreWithConfig wraps an already-built Config in a Store, bypassing
// disk/env loading. Used by tests and by callers (e.g. one-shot CLI
// commands) that already have a validated Config in hand.
func NewStoreWithConfig(cfg *Config) *Store {
	s := &Store{}
	s.ptr.Store(cfg)
	return s
}

// Get returns the currently active configuration snapshot.
func (s *Store) Get() *Config {
	return s.ptr.Load()
}

// Reload re-runs Load and swaps the active pointer if it succeeds.
func (s *Store) Reload() {
	cfg, err := Load()
	if err != nil {
		log.Warn().Err(err).Msg("config: reload failed, keeping previous config")
		return
	}
	s.ptr.Store(cfg)
	log.Info().Msg("config: reloaded")
}
