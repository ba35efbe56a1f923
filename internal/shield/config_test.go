package shield

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/madetocreate/ai-shield/internal/audit"
	"github.com/madetocreate/ai-shield/internal/config"
	"github.com/madetocreate/ai-shield/internal/cost"
	"github.com/madetocreate/ai-shield/internal/mcp"
	"github.com/madetocreate/ai-shield/internal/redact"
	"github.com/madetocreate/ai-shield/internal/scanner"
)

func TestFromConfigDefaults(t *testing.T) {
	opts, err := FromConfig(context.Background(), config.DefaultConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, "internal_support", opts.Preset)
	assert.False(t, opts.DisableInjection)
	assert.False(t, opts.DisableCache)
	assert.Nil(t, opts.AuditStore)
	assert.Empty(t, opts.Closers)
}

func TestFromConfigOverrides(t *testing.T) {
	dir := t.TempDir()
	pinsFile := filepath.Join(dir, "pins.yaml")
	require.NoError(t, mcp.SavePins(pinsFile, []mcp.ToolManifestPin{mcp.PinManifest("crm", []string{"search"})}))

	cfg := config.DefaultConfig()
	cfg.Scanners.Tools = false
	cfg.Injection.Strictness = "high"
	cfg.PII.Action = "block"
	cfg.PII.Actions = map[string]string{"email": "allow"}
	cfg.PII.Exclude = []string{"phone"}
	cfg.Tools.Policies = map[string]config.ToolPolicyConfig{"bot": {Allowed: []string{"get_*"}}}
	cfg.Tools.PinsFile = pinsFile
	cfg.Cost.Budgets = map[string]config.BudgetConfig{"bot": {HardLimit: 5, Period: "hourly"}}
	cfg.Audit.Enabled = true
	cfg.Audit.File = filepath.Join(dir, "audit.jsonl")

	opts, err := FromConfig(context.Background(), cfg, nil)
	require.NoError(t, err)

	assert.True(t, opts.DisableTools)
	assert.Equal(t, 0.15, opts.Strictness.Threshold())
	assert.Equal(t, redact.ActionBlock, opts.PIIAction)
	assert.Equal(t, redact.ActionAllow, opts.PIIActions[redact.TypeEmail])
	assert.Equal(t, []redact.EntityType{redact.TypePhone}, opts.PIIExclude)
	assert.Equal(t, []string{"get_*"}, opts.ToolPolicies["bot"].Allowed)
	assert.Equal(t, cost.PeriodHourly, opts.Budgets["bot"].Period)
	_, ok := opts.Pins.Get("crm")
	assert.True(t, ok)
	require.Len(t, opts.Closers, 1)

	e, err := New(opts)
	require.NoError(t, err)
	e.Scan(context.Background(), "hello", scanner.ScanContext{})
	require.NoError(t, e.Close())

	records, err := audit.ReadFile(cfg.Audit.File)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestFromConfigErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{"strictness", func(c *config.Config) { c.Injection.Strictness = "extreme" }},
		{"pii action", func(c *config.Config) { c.PII.Action = "shred" }},
		{"pii type", func(c *config.Config) { c.PII.Actions = map[string]string{"dna": "mask"} }},
		{"period", func(c *config.Config) { c.Cost.Budgets = map[string]config.BudgetConfig{"x": {Period: "weekly"}} }},
		{"pack", func(c *config.Config) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: [\n"), 0o600))
			c.PacksDir = dir
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)
			_, err := FromConfig(context.Background(), cfg, nil)
			assert.Error(t, err)
		})
	}
}

func TestOpenUnknownPreset(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Preset = "nope"
	_, err := Open(context.Background(), cfg, nil)
	assert.Error(t, err)
}
