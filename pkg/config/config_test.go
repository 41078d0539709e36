// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestFlagSet() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	BindFlags(flags)
	flags.String("signatures", DefaultSignaturesDir, "")
	flags.Int("max-buffer-bytes", DefaultMaxBufferBytes, "")
	flags.Duration("idle-timeout", DefaultIdleTimeout, "")
	flags.String("output", "text", "")
	flags.String("unrelated", "", "")
	return flags
}

func TestDefaultConfig_ReturnsExpectedDefaults(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, DefaultSignaturesDir, cfg.Signatures.Dir)
	assert.Equal(t, DefaultMaxBufferBytes, cfg.Engine.MaxBufferBytes)
	assert.Equal(t, DefaultFlushInterval, cfg.Capture.FlushInterval)
	assert.Equal(t, DefaultIdleTimeout, cfg.Capture.IdleTimeout)
	assert.Empty(t, cfg.Metrics.Addr)
	require.NoError(t, Validate(cfg))
}

func TestDefaultConfigAsMap_CoversEveryKey(t *testing.T) {
	m := DefaultConfigAsMap()
	for _, key := range FlagKeys {
		assert.Contains(t, m, key, "flag key %s has no default", key)
	}
}

func TestManager_Load_DefaultsWhenNoFlags(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(nil, ""))
	assert.Equal(t, DefaultConfig(), m.Get())
	assert.Equal(t, []string{"defaults", "file:", "env", "flags"}, m.Sources())
}

func TestManager_Load_FlagsOverrideOnlyWhenChanged(t *testing.T) {
	t.Setenv("SAND_SIGNATURES_DIR", "/from/env")

	flags := newTestFlagSet()
	require.NoError(t, flags.Set("max-buffer-bytes", "4096"))
	require.NoError(t, flags.Set("idle-timeout", "45s"))
	require.NoError(t, flags.Set("unrelated", "ignored"))

	m := NewManager()
	require.NoError(t, m.Load(flags, ""))
	cfg := m.Get()

	assert.Equal(t, 4096, cfg.Engine.MaxBufferBytes)
	assert.Equal(t, 45*time.Second, cfg.Capture.IdleTimeout)
	assert.Equal(t, "/from/env", cfg.Signatures.Dir, "unchanged flag must not mask env")
	assert.False(t, m.Koanf().Exists("unrelated"))
}

func TestManager_Load_DebugFlagSetsLogLevel(t *testing.T) {
	flags := newTestFlagSet()
	require.NoError(t, flags.Set("debug", "true"))

	m := NewManager()
	require.NoError(t, m.Load(flags, ""))
	assert.Equal(t, "debug", m.Get().Log.Level)
}

func TestManager_Load_Precedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sand.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: warn
signatures:
  dir: /from/file
engine:
  max_buffer_bytes: 2048
capture:
  flush_interval: 30s
`), 0o644))
	t.Setenv("SAND_ENGINE_MAX_BUFFER_BYTES", "8192")

	flags := newTestFlagSet()
	require.NoError(t, flags.Set("log-level", "error"))

	m := NewManager()
	require.NoError(t, m.Load(flags, path))
	cfg := m.Get()

	assert.Equal(t, "error", cfg.Log.Level, "flag beats file")
	assert.Equal(t, "/from/file", cfg.Signatures.Dir)
	assert.Equal(t, 8192, cfg.Engine.MaxBufferBytes, "env beats file")
	assert.Equal(t, 30*time.Second, cfg.Capture.FlushInterval)
}

func TestManager_Load_InvalidKeepsPrevious(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.Load(nil, ""))

	t.Setenv("SAND_OUTPUT_FORMAT", "xml")
	err := m.Load(nil, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "output.format")
	assert.Equal(t, "text", m.Get().Output.Format)
}

func TestManager_LoadWithSources_SortsByPriority(t *testing.T) {
	m := NewManager()
	require.NoError(t, m.LoadWithSources(
		&FlagSource{Debug: true},
		&DefaultSource{},
	))
	assert.Equal(t, "debug", m.Get().Log.Level)
	assert.Equal(t, []string{"defaults", "flags"}, m.Sources())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"empty signature dir", func(c *Config) { c.Signatures.Dir = "" }, "signatures.dir"},
		{"negative buffer cap", func(c *Config) { c.Engine.MaxBufferBytes = -1 }, "engine.maxbufferbytes"},
		{"zero idle timeout", func(c *Config) { c.Capture.IdleTimeout = 0 }, "capture.idletimeout"},
		{"bad log level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"bad metrics addr", func(c *Config) { c.Metrics.Addr = "not an address" }, "metrics.addr"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := Validate(cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.field)
		})
	}

	t.Run("zero buffer cap means unbounded", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Engine.MaxBufferBytes = 0
		cfg.Metrics.Addr = "127.0.0.1:9464"
		require.NoError(t, Validate(cfg))
	})
}
