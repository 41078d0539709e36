// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package signature

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestWatcher_ReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "http.yaml", "protocol: http\nthreshold: 1\nclient: [GET]\n")

	reloaded := make(chan *Registry, 4)
	w, err := NewWatcher(dir, func(r *Registry) { reloaded <- r }, zerolog.New(os.Stderr))
	require.NoError(t, err)
	w.debounceDelay = 20 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- w.Start(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)
	writeDefinition(t, dir, "ssh.yaml", "protocol: ssh\nthreshold: 1\nserver: [SSH-]\n")

	select {
	case reg := <-reloaded:
		require.Equal(t, []string{"http", "ssh"}, reg.Names())
	case <-time.After(3 * time.Second):
		t.Fatal("timed out waiting for reload")
	}

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcher_KeepsPreviousOnInvalidDefinition(t *testing.T) {
	dir := t.TempDir()
	writeDefinition(t, dir, "http.yaml", "protocol: http\nthreshold: 1\nclient: [GET]\n")

	called := false
	w, err := NewWatcher(dir, func(*Registry) { called = true }, zerolog.Nop())
	require.NoError(t, err)
	defer w.Close()

	writeDefinition(t, dir, "broken.yaml", "protocol: [")
	w.reload()
	require.False(t, called)
}
