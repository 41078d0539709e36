// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package signature

import (
	"fmt"

	"go.uber.org/multierr"
)

// Registry is the read-only set of identifiers, kept in load order.
// It is safe for concurrent use once constructed.
type Registry struct {
	ids    []*Identifier
	byName map[string]*Identifier
}

// New validates ids and builds a registry preserving their order.
// Every invalid or duplicate identifier is reported in the returned error.
func New(ids ...Identifier) (*Registry, error) {
	r := &Registry{
		ids:    make([]*Identifier, 0, len(ids)),
		byName: make(map[string]*Identifier, len(ids)),
	}

	var errs error
	for _, id := range ids {
		if err := validateIdentifier(id); err != nil {
			errs = multierr.Append(errs, err)
			continue
		}
		if prev, dup := r.byName[id.Name]; dup {
			errs = multierr.Append(errs, &ConfigError{
				Source: id.Source,
				Field:  "protocol",
				Err:    fmt.Errorf("%w %q (first defined in %s)", ErrDuplicateProtocol, id.Name, describeSource(prev.Source)),
			})
			continue
		}
		cp := id.clone()
		r.ids = append(r.ids, cp)
		r.byName[cp.Name] = cp
	}
	if errs != nil {
		return nil, errs
	}
	return r, nil
}

// MustNew is like New but panics on error. Intended for tests and static tables.
func MustNew(ids ...Identifier) *Registry {
	r, err := New(ids...)
	if err != nil {
		panic(err)
	}
	return r
}

// Identifiers returns the identifiers in load order. The slice must not be modified.
func (r *Registry) Identifiers() []*Identifier {
	if r == nil {
		return nil
	}
	return r.ids
}

// Lookup returns the identifier registered under name.
func (r *Registry) Lookup(name string) (*Identifier, bool) {
	if r == nil {
		return nil, false
	}
	id, ok := r.byName[name]
	return id, ok
}

// Len returns the number of identifiers.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	return len(r.ids)
}

// Names returns protocol names in load order.
func (r *Registry) Names() []string {
	names := make([]string, 0, r.Len())
	for _, id := range r.Identifiers() {
		names = append(names, id.Name)
	}
	return names
}

func describeSource(source string) string {
	if source == "" {
		return "<memory>"
	}
	return source
}
