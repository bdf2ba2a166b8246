package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ActionPrint, cfg.GC.Action)
	assert.Equal(t, TargetAll, cfg.GC.Target)
	assert.Equal(t, 30, cfg.GC.RollbackBufferDays)
	assert.Equal(t, 1, cfg.GC.CreatedBufferDays)
	assert.True(t, cfg.GC.Confirm)
	assert.Equal(t, "CDKToolkit", cfg.GC.BootstrapStackName)
	assert.Equal(t, 1000, cfg.GC.BatchSize)
	assert.Equal(t, 50, cfg.GC.Concurrency)
	assert.EqualValues(t, 600000, cfg.GC.MaxRootAgeMs)

	require.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
gc:
  action: full
  target: s3
  rollbackBufferDays: 7
  confirm: false
aws:
  region: eu-west-1
observability:
  logLevel: debug
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ActionFull, cfg.GC.Action)
	assert.Equal(t, TargetS3, cfg.GC.Target)
	assert.Equal(t, 7, cfg.GC.RollbackBufferDays)
	assert.False(t, cfg.GC.Confirm)
	assert.Equal(t, "eu-west-1", cfg.AWS.Region)
	assert.Equal(t, "debug", cfg.Observability.LogLevel)

	// Fields absent from the file keep their defaults.
	assert.Equal(t, 1000, cfg.GC.BatchSize)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("ASSETGC_ACTION", "tag")
	t.Setenv("ASSETGC_ROLLBACK_BUFFER_DAYS", "14")
	t.Setenv("ASSETGC_CONFIRM", "false")
	t.Setenv("ASSETGC_AWS_REGION", "ap-southeast-2")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ActionTag, cfg.GC.Action)
	assert.Equal(t, 14, cfg.GC.RollbackBufferDays)
	assert.False(t, cfg.GC.Confirm)
	assert.Equal(t, "ap-southeast-2", cfg.AWS.Region)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad action", func(c *Config) { c.GC.Action = "obliterate" }},
		{"bad target", func(c *Config) { c.GC.Target = "gcs" }},
		{"negative grace", func(c *Config) { c.GC.RollbackBufferDays = -1 }},
		{"negative age floor", func(c *Config) { c.GC.CreatedBufferDays = -2 }},
		{"zero batch", func(c *Config) { c.GC.BatchSize = 0 }},
		{"zero concurrency", func(c *Config) { c.GC.Concurrency = 0 }},
		{"empty stack name", func(c *Config) { c.GC.BootstrapStackName = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
