// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package event

import (
	"context"

	"github.com/rs/zerolog"
)

// LogSubscriber writes lifecycle events to a zerolog logger.
// Identifications are logged at info level, everything else at debug.
type LogSubscriber struct {
	logger zerolog.Logger
}

// NewLogSubscriber creates a LogSubscriber.
func NewLogSubscriber(logger zerolog.Logger) *LogSubscriber {
	return &LogSubscriber{logger: logger.With().Str("component", "event").Logger()}
}

func (l *LogSubscriber) with(e *zerolog.Event, s StreamInfo) *zerolog.Event {
	return e.Str("stream", s.ID).Str("handle", s.Handle.String())
}

func (l *LogSubscriber) OnNew(_ context.Context, s StreamInfo) error {
	l.with(l.logger.Debug(), s).Msg("New stream")
	return nil
}

func (l *LogSubscriber) OnIdentified(_ context.Context, s StreamInfo, protocol string) error {
	l.with(l.logger.Info(), s).
		Str("protocol", protocol).
		Int("client_bytes", s.ClientBytes).
		Int("server_bytes", s.ServerBytes).
		Msg("Stream identified")
	return nil
}

func (l *LogSubscriber) OnEnded(_ context.Context, s StreamInfo, reason Reason) error {
	e := l.with(l.logger.Debug(), s).Stringer("reason", reason)
	if s.Protocol != "" {
		e = e.Str("protocol", s.Protocol)
	}
	e.Msg("Stream ended")
	return nil
}
