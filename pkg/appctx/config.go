// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package appctx carries process-wide values through command contexts.
package appctx

import (
	"context"

	"github.com/vulntor/sand/pkg/config"
)

type key string

const configKey key = "sand.config.manager"

// WithConfig stores the shared config manager on context.
func WithConfig(ctx context.Context, manager *config.Manager) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, configKey, manager)
}

// Config retrieves the shared config manager from context.
func Config(ctx context.Context) (*config.Manager, bool) {
	if ctx == nil {
		return nil, false
	}
	mgr, ok := ctx.Value(configKey).(*config.Manager)
	return mgr, ok && mgr != nil
}

// ConfigOrDefault returns the manager stored on ctx, or a manager holding
// the default configuration.
func ConfigOrDefault(ctx context.Context) *config.Manager {
	if mgr, ok := Config(ctx); ok {
		return mgr
	}
	return config.NewManager()
}
