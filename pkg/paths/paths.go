// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package paths resolves per-user locations for sand files.
package paths

import (
	"os"
	"path/filepath"
	"runtime"
)

// ConfigFileName is the name of the per-user configuration file.
const ConfigFileName = "config.yaml"

// ConfigDir returns the config directory for sand.
// Order: XDG_CONFIG_HOME/sand, platform-specific fallback.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "sand")
	}
	if runtime.GOOS == "windows" {
		if appData := os.Getenv("AppData"); appData != "" {
			return filepath.Join(appData, "Sand")
		}
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "sand")
}

// DefaultConfigFile is the configuration file read when --config is not given.
// A missing file is not an error.
func DefaultConfigFile() string {
	return filepath.Join(ConfigDir(), ConfigFileName)
}
