// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package signature

import (
	"bytes"
	"encoding/hex"
	"errors"
	"io"
	"math"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"
)

// HexPrefix marks a pattern written as hex-encoded raw bytes, e.g. "hex:16 03 01".
const HexPrefix = "hex:"

// supportedFormat is the range of definition format versions this build understands.
var supportedFormat = mustConstraint(">= 1.0, < 2.0")

func mustConstraint(c string) *semver.Constraints {
	constraint, err := semver.NewConstraint(c)
	if err != nil {
		panic(err)
	}
	return constraint
}

// definition is the on-disk shape of one protocol definition.
type definition struct {
	Version     string   `yaml:"version"`
	Protocol    string   `yaml:"protocol"`
	Description string   `yaml:"description"`
	Threshold   any      `yaml:"threshold"`
	Client      []string `yaml:"client"`
	Server      []string `yaml:"server"`
}

// Parse decodes every YAML document in data into an Identifier, in document order.
// source is recorded on each identifier and used in error messages.
func Parse(data []byte, source string) ([]Identifier, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var ids []Identifier
	for {
		var def definition
		err := dec.Decode(&def)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, invalidf(source, "", "parse YAML: %v", err)
		}

		id, err := def.identifier(source)
		if err != nil {
			return nil, err
		}
		if err := validateIdentifier(id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if len(ids) == 0 {
		return nil, invalidf(source, "", "no definition in file")
	}
	return ids, nil
}

func (d definition) identifier(source string) (Identifier, error) {
	if d.Version != "" {
		v, err := semver.NewVersion(d.Version)
		if err != nil {
			return Identifier{}, invalidf(source, "version", "%q is not a valid version: %v", d.Version, err)
		}
		if !supportedFormat.Check(v) {
			return Identifier{}, invalidf(source, "version", "unsupported definition version %s (want %s)", v, supportedFormat)
		}
	}

	threshold, err := decodeThreshold(d.Threshold)
	if err != nil {
		return Identifier{}, invalidf(source, "threshold", "%v", err)
	}

	client, err := decodePatterns(d.Client)
	if err != nil {
		return Identifier{}, invalidf(source, "client", "%v", err)
	}
	server, err := decodePatterns(d.Server)
	if err != nil {
		return Identifier{}, invalidf(source, "server", "%v", err)
	}

	return Identifier{
		Name:        strings.TrimSpace(d.Protocol),
		Description: d.Description,
		Client:      client,
		Server:      server,
		Threshold:   threshold,
		Source:      source,
	}, nil
}

func decodeThreshold(v any) (int, error) {
	if v == nil {
		return 0, errors.New("threshold is required")
	}
	switch t := v.(type) {
	case bool:
		return 0, errors.New("threshold must be an integer")
	case float64:
		if t != math.Trunc(t) {
			return 0, errors.New("threshold must be an integer")
		}
	}
	n, err := cast.ToIntE(v)
	if err != nil {
		return 0, errors.New("threshold must be an integer")
	}
	return n, nil
}

func decodePatterns(raw []string) ([][]byte, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	out := make([][]byte, 0, len(raw))
	for i, s := range raw {
		p, err := DecodePattern(s)
		if err != nil {
			return nil, &patternError{index: i, err: err}
		}
		out = append(out, p)
	}
	return out, nil
}

// DecodePattern turns a definition pattern into raw bytes. Patterns with the
// HexPrefix are hex-decoded (whitespace ignored), anything else is taken literally.
func DecodePattern(s string) ([]byte, error) {
	if !strings.HasPrefix(s, HexPrefix) {
		return []byte(s), nil
	}
	digits := strings.Join(strings.Fields(strings.TrimPrefix(s, HexPrefix)), "")
	return hex.DecodeString(digits)
}

type patternError struct {
	index int
	err   error
}

func (e *patternError) Error() string {
	return "pattern " + cast.ToString(e.index) + ": " + e.err.Error()
}

func (e *patternError) Unwrap() error {
	return e.err
}
