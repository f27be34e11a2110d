package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_MatchesSpecNamedDefaults(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 300_000, cfg.Cache.TTLAutoMS)
	assert.Equal(t, 600_000, cfg.Cache.TTLManualMS)
	assert.Equal(t, 30_000, cfg.Cache.TTLNegativeMS)
	assert.Equal(t, 0.8, cfg.Cache.StaleRatio)
	assert.Equal(t, 150, cfg.Context.BudgetMS)
	assert.Equal(t, 80, cfg.Context.PriorityHistory)
	assert.Equal(t, 60, cfg.Context.PriorityCWD)
	assert.Equal(t, 40, cfg.Context.PriorityPlugins)
	assert.Equal(t, 50, cfg.Plugins.Git.DeadlineMS)
}

func TestLoad_LayeredMergeOverridesScalarsKeepsUnsetDefaults(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NUDGE_CONFIG_DIR", dir)
	t.Setenv("NUDGE_CONFIG", "")

	defaultYAML := "cache:\n  capacity: 750\n"
	userYAML := "cache:\n  ttl_manual_ms: 123000\nmodel:\n  name: local-model\n"

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.default.yaml"), []byte(defaultYAML), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(userYAML), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 750, cfg.Cache.Capacity, "config.default.yaml layer applied")
	assert.Equal(t, 123000, cfg.Cache.TTLManualMS, "config.yaml layer applied")
	assert.Equal(t, 30_000, cfg.Cache.TTLNegativeMS, "unset field keeps built-in default")
	assert.Equal(t, "local-model", cfg.Model.Name)
}

func TestLoad_InvalidRangeFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NUDGE_CONFIG_DIR", dir)
	t.Setenv("NUDGE_CONFIG", "")

	userYAML := "cache:\n  stale_ratio: 5.0\n  capacity: -1\ncontext:\n  max_total_tokens: 10\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(userYAML), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	d := Default()
	assert.Equal(t, d.Cache.StaleRatio, cfg.Cache.StaleRatio)
	assert.Equal(t, d.Cache.Capacity, cfg.Cache.Capacity)
	assert.Equal(t, d.Context.MaxTotalTokens, cfg.Context.MaxTotalTokens)
}

func TestLoad_MissingLayersAreNotErrors(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NUDGE_CONFIG_DIR", dir)
	t.Setenv("NUDGE_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, Default().Cache.Capacity, cfg.Cache.Capacity)
}

func TestStore_ReloadSwapsPointer(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("NUDGE_CONFIG_DIR", dir)
	t.Setenv("NUDGE_CONFIG", "")

	store, err := NewStore()
	require.NoError(t, err)
	before := store.Get()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("cache:\n  capacity: 999\n"), 0o644))
	store.Reload()

	after := store.Get()
	assert.NotSame(t, before, after)
	assert.Equal(t, 999, after.Cache.Capacity)
}

func TestDeepMerge_ListsReplaceNotAppend(t *testing.T) {
	base := map[string]any{"privacy": map[string]any{"custom_patterns": []any{"a", "b"}}}
	override := map[string]any{"privacy": map[string]any{"custom_patterns": []any{"c"}}}
	merged := deepMerge(base, override)
	priv := merged["privacy"].(map[string]any)
	assert.Equal(t, []any{"c"}, priv["custom_patterns"])
}
