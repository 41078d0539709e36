// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package event defines the stream lifecycle callbacks surfaced to the host
// application and a synchronous dispatcher that fans them out.
package event

import (
	"context"
	"net/netip"
	"time"

	"github.com/google/uuid"
)

// Reason explains why a stream ended.
type Reason uint8

const (
	// ReasonClosed is an orderly FIN shutdown.
	ReasonClosed Reason = iota
	// ReasonReset is a TCP reset.
	ReasonReset
	// ReasonTimeout means the connection went idle and was flushed.
	ReasonTimeout
)

func (r Reason) String() string {
	switch r {
	case ReasonClosed:
		return "closed"
	case ReasonReset:
		return "reset"
	case ReasonTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (r Reason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// StreamInfo describes the stream an event refers to.
type StreamInfo struct {
	ID          string         // Canonical "client -> server" form of the 4-tuple
	Handle      uuid.UUID      // Per-record handle, unique even when a 4-tuple is reused
	Client      netip.AddrPort // Connection initiator
	Server      netip.AddrPort // Connection responder
	Established time.Time
	Protocol    string // Identified protocol; empty while unknown or if never identified
	ClientBytes int    // Client -> server bytes retained for analysis
	ServerBytes int    // Server -> client bytes retained for analysis
}

// Handler receives stream lifecycle events.
//
// Calls are synchronous and made while the triggering event is processed, so
// implementations must return promptly. A returned error is treated as fatal
// by the stream registry and stops processing.
type Handler interface {
	OnNew(ctx context.Context, s StreamInfo) error
	OnIdentified(ctx context.Context, s StreamInfo, protocol string) error
	OnEnded(ctx context.Context, s StreamInfo, reason Reason) error
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are no-ops.
type HandlerFuncs struct {
	New        func(ctx context.Context, s StreamInfo) error
	Identified func(ctx context.Context, s StreamInfo, protocol string) error
	Ended      func(ctx context.Context, s StreamInfo, reason Reason) error
}

func (h HandlerFuncs) OnNew(ctx context.Context, s StreamInfo) error {
	if h.New == nil {
		return nil
	}
	return h.New(ctx, s)
}

func (h HandlerFuncs) OnIdentified(ctx context.Context, s StreamInfo, protocol string) error {
	if h.Identified == nil {
		return nil
	}
	return h.Identified(ctx, s, protocol)
}

func (h HandlerFuncs) OnEnded(ctx context.Context, s StreamInfo, reason Reason) error {
	if h.Ended == nil {
		return nil
	}
	return h.Ended(ctx, s, reason)
}

// Nop is a Handler that ignores every event.
var Nop Handler = HandlerFuncs{}
