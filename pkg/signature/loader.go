// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package signature

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"
)

// Load reads every definition file (*.yaml, *.yml) in dir. Files are read in
// lexical name order, which becomes the registry order and therefore the
// order in which protocols are evaluated.
func Load(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, &ConfigError{Source: dir, Err: fmt.Errorf("%w: %v", ErrDirUnreadable, err)}
	}

	paths := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !IsDefinitionFile(e.Name()) {
			continue
		}
		paths = append(paths, filepath.Join(dir, e.Name()))
	}
	if len(paths) == 0 {
		return nil, &ConfigError{Source: dir, Err: ErrNoDefinitions}
	}

	return LoadFiles(paths...)
}

// LoadFiles parses the given definition files in order and builds a registry.
// Errors from every file are collected before returning.
func LoadFiles(paths ...string) (*Registry, error) {
	var (
		ids  []Identifier
		errs error
	)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			errs = multierr.Append(errs, &ConfigError{Source: path, Err: fmt.Errorf("%w: %v", ErrDirUnreadable, err)})
			continue
		}
		parsed, err := Parse(data, path)
		if err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		for _, id := range parsed {
			if !id.Reachable() {
				log.Warn().
					Str("protocol", id.Name).
					Str("file", path).
					Int("threshold", id.Threshold).
					Int("signatures", id.Signatures()).
					Msg("Threshold exceeds signature count; protocol can never be identified")
			}
			log.Debug().Str("protocol", id.Name).Str("file", path).Msg("Signature loaded")
		}
		ids = append(ids, parsed...)
	}
	if errs != nil {
		return nil, errs
	}

	return New(ids...)
}

// IsDefinitionFile reports whether name looks like a signature definition file.
func IsDefinitionFile(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}
