// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package stream

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownStream indicates a data or end event for a stream that was never established.
	ErrUnknownStream = errors.New("unknown stream")
	// ErrHostCallback indicates a host event handler failed.
	ErrHostCallback = errors.New("host callback failed")
)

// UnknownStreamError is returned when a lifecycle event references a stream
// that is not tracked. It points at a misbehaving collaborator, not at a
// fault in the registry, and is safe to ignore after logging.
type UnknownStreamError struct {
	ID ID
	Op string // "data" or "end"
}

func (e *UnknownStreamError) Error() string {
	return fmt.Sprintf("%s event for %s: %v", e.Op, e.ID, ErrUnknownStream)
}

func (e *UnknownStreamError) Is(target error) bool {
	return target == ErrUnknownStream
}

// HostCallbackError wraps an error (or recovered panic) raised by a host
// event handler. It is fatal to the processing loop: the host's state may be
// inconsistent and continuing could attribute events to the wrong streams.
type HostCallbackError struct {
	Event string // "new", "identified" or "ended"
	ID    ID
	Err   error
}

func (e *HostCallbackError) Error() string {
	return fmt.Sprintf("%s callback for %s: %v", e.Event, e.ID, e.Err)
}

func (e *HostCallbackError) Unwrap() error {
	return e.Err
}

func (e *HostCallbackError) Is(target error) bool {
	return target == ErrHostCallback
}

// IsFatal reports whether err must stop event processing.
func IsFatal(err error) bool {
	return err != nil && !errors.Is(err, ErrUnknownStream)
}
