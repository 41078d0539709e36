// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package signature holds the protocol identifiers the identification engine
// matches against, and loads them from definition files.
//
// An Identifier lists literal byte patterns per direction. Patterns are
// searched strictly in order, and a protocol is declared once Threshold
// patterns have been found across both directions.
package signature

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Identifier is an immutable protocol signature set.
type Identifier struct {
	Name        string   `validate:"required,max=64"`
	Description string   `validate:"-"`
	Client      [][]byte `validate:"dive,min=1"` // Client -> server patterns, tried in order
	Server      [][]byte `validate:"dive,min=1"` // Server -> client patterns, tried in order
	Threshold   int      `validate:"gt=0"`
	Source      string   `validate:"-"` // File the identifier was loaded from, if any
}

// Signatures returns the total number of patterns across both directions.
func (id *Identifier) Signatures() int {
	return len(id.Client) + len(id.Server)
}

// Reachable reports whether enough patterns exist to ever meet the threshold.
// An unreachable identifier is legal; it simply never identifies a stream.
func (id *Identifier) Reachable() bool {
	return id.Threshold <= id.Signatures()
}

func (id *Identifier) String() string {
	return fmt.Sprintf("%s(client=%d server=%d threshold=%d)", id.Name, len(id.Client), len(id.Server), id.Threshold)
}

func (id Identifier) clone() *Identifier {
	cp := id
	cp.Client = clonePatterns(id.Client)
	cp.Server = clonePatterns(id.Server)
	return &cp
}

func clonePatterns(in [][]byte) [][]byte {
	if in == nil {
		return nil
	}
	out := make([][]byte, len(in))
	for i, p := range in {
		out[i] = bytes.Clone(p)
	}
	return out
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterStructValidation(func(sl validator.StructLevel) {
		id := sl.Current().Interface().(Identifier)
		if id.Signatures() == 0 {
			sl.ReportError(id.Client, "Client", "Client", "signatures", "")
		}
	}, Identifier{})
	return v
}

// validateIdentifier checks an identifier and converts the first violation into a ConfigError.
func validateIdentifier(id Identifier) error {
	source := id.Source
	if source == "" {
		source = "<memory>"
	}

	err := validate.Struct(id)
	if err == nil {
		return nil
	}

	verrs, ok := err.(validator.ValidationErrors)
	if !ok || len(verrs) == 0 {
		return &ConfigError{Source: source, Err: fmt.Errorf("%w: %v", ErrInvalidDefinition, err)}
	}

	fe := verrs[0]
	field := strings.ToLower(fe.StructField())
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	switch fe.Tag() {
	case "required":
		return invalidf(source, "protocol", "protocol name is required")
	case "max":
		return invalidf(source, "protocol", "protocol name longer than %s characters", fe.Param())
	case "gt":
		return invalidf(source, "threshold", "threshold must be a positive integer, got %v", fe.Value())
	case "min":
		return invalidf(source, field, "empty pattern at %s", fe.Field())
	case "signatures":
		return invalidf(source, "", "protocol %q defines no client or server signatures", id.Name)
	default:
		return invalidf(source, field, "failed %q validation", fe.Tag())
	}
}
