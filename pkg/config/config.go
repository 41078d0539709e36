// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package config loads sand's layered configuration with koanf.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Default values.
const (
	DefaultSignaturesDir  = "signatures"
	DefaultMaxBufferBytes = 1 << 20
	DefaultFlushInterval  = 10 * time.Second
	DefaultIdleTimeout    = 2 * time.Minute
)

var validate = validator.New()

// Manager handles loading and accessing application configuration.
type Manager struct {
	koanfInstance *koanf.Koanf
	currentConfig Config
	sources       []string
	mu            sync.RWMutex
}

// NewManager creates a Manager holding the default configuration.
func NewManager() *Manager {
	return &Manager{
		koanfInstance: koanf.New("."),
		currentConfig: DefaultConfig(),
	}
}

// DefaultConfig returns a new Config struct populated with hardcoded default values.
func DefaultConfig() Config {
	return Config{
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Signatures: SignaturesConfig{
			Dir: DefaultSignaturesDir,
		},
		Engine: EngineConfig{
			MaxBufferBytes: DefaultMaxBufferBytes,
		},
		Capture: CaptureConfig{
			FlushInterval: DefaultFlushInterval,
			IdleTimeout:   DefaultIdleTimeout,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// Load loads the standard sources: defaults, the optional config file,
// SAND_* environment variables and the flags the user set.
func (m *Manager) Load(flags *pflag.FlagSet, configFilePath string) error {
	debug := false
	if flags != nil {
		if f := flags.Lookup("debug"); f != nil && f.Value.String() == "true" {
			debug = true
		}
	}
	return m.LoadWithSources(DefaultSources(configFilePath, flags, debug)...)
}

// LoadWithSources loads sources in ascending priority, unmarshals the merged
// result and validates it. On error the previous configuration is kept.
func (m *Manager) LoadWithSources(sources ...ConfigSource) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	ordered := make([]ConfigSource, len(sources))
	copy(ordered, sources)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority() < ordered[j].Priority()
	})

	k := koanf.New(".")
	names := make([]string, 0, len(ordered))
	for _, src := range ordered {
		if err := src.Load(k); err != nil {
			return fmt.Errorf("config source %s: %w", src.Name(), err)
		}
		names = append(names, src.Name())
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return fmt.Errorf("error unmarshaling final config: %w", err)
	}
	postProcessConfig(&cfg)
	if err := Validate(cfg); err != nil {
		return err
	}

	m.koanfInstance = k
	m.currentConfig = cfg
	m.sources = names
	return nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.currentConfig
}

// Sources returns the names of the sources applied by the last successful load.
func (m *Manager) Sources() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.sources...)
}

// Koanf exposes the merged key space, mostly for debugging.
func (m *Manager) Koanf() *koanf.Koanf {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.koanfInstance
}

func postProcessConfig(cfg *Config) {
	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	cfg.Output.Format = strings.ToLower(strings.TrimSpace(cfg.Output.Format))
}

// Validate checks cfg against its struct tags.
func Validate(cfg Config) error {
	err := validate.Struct(cfg)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s (%s=%v)", fieldPath(fe.Namespace()), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, ", "))
}

// fieldPath turns "Config.Engine.MaxBufferBytes" into "engine.maxbufferbytes".
func fieldPath(ns string) string {
	ns = strings.TrimPrefix(ns, "Config.")
	return strings.ToLower(ns)
}

// DefaultConfigAsMap converts DefaultConfig to the flat key map used by
// confmap.Provider so koanf knows every key.
func DefaultConfigAsMap() map[string]interface{} {
	def := DefaultConfig()
	return map[string]interface{}{
		"log.level":  def.Log.Level,
		"log.format": def.Log.Format,

		"signatures.dir":   def.Signatures.Dir,
		"signatures.watch": def.Signatures.Watch,

		"engine.max_buffer_bytes": def.Engine.MaxBufferBytes,

		"capture.flush_interval":  def.Capture.FlushInterval,
		"capture.idle_timeout":    def.Capture.IdleTimeout,
		"capture.allow_midstream": def.Capture.AllowMidstream,

		"output.format":  def.Output.Format,
		"output.file":    def.Output.File,
		"output.verbose": def.Output.Verbose,
		"output.color":   def.Output.Color,

		"metrics.addr": def.Metrics.Addr,
	}
}

// BindFlags defines the global flags shared by every command.
func BindFlags(flags *pflag.FlagSet) {
	def := DefaultConfig()
	flags.Bool("debug", false, "Enable debug logging")
	flags.String("log-level", def.Log.Level, "Log level (trace, debug, info, warn, error)")
	flags.String("log-format", def.Log.Format, "Log format (text, json)")
}
