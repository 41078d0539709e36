// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// ErrLogLocked indicates another process is already appending to the event log.
var ErrLogLocked = errors.New("event log is locked by another process")

// Record is one line of the JSON Lines event log.
type Record struct {
	Timestamp time.Time `json:"timestamp"`
	Event     string    `json:"event"` // "new", "identified", "ended"
	Stream    string    `json:"stream"`
	Handle    string    `json:"handle"`
	Client    string    `json:"client"`
	Server    string    `json:"server"`
	Protocol  string    `json:"protocol,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// JSONLWriter appends one Record per lifecycle event to a writer.
// When opened on a file it holds an exclusive lock file next to it so two
// monitors never interleave lines in the same log.
type JSONLWriter struct {
	mu      sync.Mutex
	encoder *json.Encoder
	closer  io.Closer
	lock    *flock.Flock
	now     func() time.Time
}

// NewJSONLWriter writes records to w. The caller owns w.
func NewJSONLWriter(w io.Writer) *JSONLWriter {
	return &JSONLWriter{encoder: json.NewEncoder(w), now: time.Now}
}

// OpenJSONLFile opens (or creates) path for appending and locks it.
func OpenJSONLFile(path string) (*JSONLWriter, error) {
	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock event log: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("%w: %s", ErrLogLocked, path)
	}

	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open event log: %w", err)
	}

	w := NewJSONLWriter(file)
	w.closer = file
	w.lock = lock
	return w, nil
}

func (w *JSONLWriter) write(r Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	r.Timestamp = w.now().UTC()
	if err := w.encoder.Encode(r); err != nil {
		return fmt.Errorf("write event record: %w", err)
	}
	return nil
}

func record(kind string, s StreamInfo) Record {
	return Record{
		Event:    kind,
		Stream:   s.ID,
		Handle:   s.Handle.String(),
		Client:   s.Client.String(),
		Server:   s.Server.String(),
		Protocol: s.Protocol,
	}
}

func (w *JSONLWriter) OnNew(_ context.Context, s StreamInfo) error {
	return w.write(record("new", s))
}

func (w *JSONLWriter) OnIdentified(_ context.Context, s StreamInfo, protocol string) error {
	r := record("identified", s)
	r.Protocol = protocol
	return w.write(r)
}

func (w *JSONLWriter) OnEnded(_ context.Context, s StreamInfo, reason Reason) error {
	r := record("ended", s)
	r.Reason = reason.String()
	return w.write(r)
}

// Close closes the underlying file, if any, and releases the lock.
func (w *JSONLWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.closer != nil {
		err = w.closer.Close()
		w.closer = nil
	}
	if w.lock != nil {
		if uerr := w.lock.Unlock(); uerr != nil && err == nil {
			err = uerr
		}
		w.lock = nil
	}
	return err
}
