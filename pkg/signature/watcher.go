// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package signature

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Watcher reloads a signature directory when its definition files change and
// hands every successfully loaded registry to a callback.
//
// A reload never mutates a registry already in use. Streams keep the
// identifiers their certainty tables were built from; only streams
// established after the swap see the new definitions.
type Watcher struct {
	dir      string
	onReload func(*Registry)

	watcher *fsnotify.Watcher

	// debounceDelay coalesces the burst of events an editor or rsync produces
	debounceDelay time.Duration

	logger zerolog.Logger

	mu            sync.Mutex
	debounceTimer *time.Timer
}

// NewWatcher creates a watcher for dir. onReload is called from the watcher's
// timer goroutine and must be safe to call concurrently with stream processing.
func NewWatcher(dir string, onReload func(*Registry), logger zerolog.Logger) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	return &Watcher{
		dir:           dir,
		onReload:      onReload,
		watcher:       watcher,
		debounceDelay: 250 * time.Millisecond,
		logger:        logger.With().Str("component", "signature.watcher").Logger(),
	}, nil
}

// Start watches the directory until ctx is canceled. It blocks; run it in its own goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	if err := w.watcher.Add(w.dir); err != nil {
		w.logger.Error().
			Err(err).
			Str("dir", w.dir).
			Msg("Failed to watch signature directory")
		return err
	}

	w.logger.Info().
		Str("dir", w.dir).
		Dur("debounce", w.debounceDelay).
		Msg("Watching signature directory")

	defer func() {
		w.stopTimer()
		if err := w.watcher.Close(); err != nil {
			w.logger.Warn().Err(err).Msg("Error closing watcher")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			if !IsDefinitionFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.logger.Debug().
				Str("op", event.Op.String()).
				Str("file", event.Name).
				Msg("Signature definition changed")
			w.scheduleReload()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("File watcher error")
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
	}
	w.debounceTimer = time.AfterFunc(w.debounceDelay, w.reload)
}

func (w *Watcher) stopTimer() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.debounceTimer != nil {
		w.debounceTimer.Stop()
		w.debounceTimer = nil
	}
}

// reload keeps the previous registry when the directory no longer loads cleanly.
func (w *Watcher) reload() {
	reg, err := Load(w.dir)
	if err != nil {
		w.logger.Error().
			Err(err).
			Str("code", ErrorCode(err)).
			Msg("Signature reload failed; keeping previous definitions")
		return
	}

	w.logger.Info().
		Int("protocols", reg.Len()).
		Msg("Signatures reloaded")
	w.onReload(reg)
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	w.stopTimer()
	return w.watcher.Close()
}
