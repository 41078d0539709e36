// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package stream owns the per-connection state of the monitor: byte buffers,
// certainty tables and classification, keyed by the connection 4-tuple.
//
// The registry is driven by a reassembly collaborator that delivers one
// lifecycle or data event at a time. Each event is processed to completion,
// including the synchronous host callbacks it triggers, before the call
// returns.
package stream

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/vulntor/sand/pkg/certainty"
	"github.com/vulntor/sand/pkg/event"
	"github.com/vulntor/sand/pkg/identify"
	"github.com/vulntor/sand/pkg/signature"
)

// Stats counts registry activity since creation.
type Stats struct {
	Active        int
	Established   int
	Identified    int
	Exhausted     int
	Ended         int
	UnknownEvents int
}

// Registry tracks all active streams.
//
// Mutation is expected from a single goroutine. The internal lock only makes
// inspection (Lookup, Snapshots, Stats) and SetSignatures safe to call from
// other goroutines; it is never held while host callbacks run.
type Registry struct {
	mu      sync.RWMutex
	records map[ID]*record
	sigs    *signature.Registry
	stats   Stats

	engine    *identify.Engine
	handler   event.Handler
	maxBuffer int
	logger    zerolog.Logger
	now       func() time.Time
}

// Option configures a Registry.
type Option func(*Registry)

// WithEngine sets the identification engine.
func WithEngine(e *identify.Engine) Option {
	return func(r *Registry) { r.engine = e }
}

// WithMaxBufferBytes caps the bytes retained per direction while a stream is
// unknown. A stream exceeding the cap is given up. Zero means unbounded.
func WithMaxBufferBytes(n int) Option {
	return func(r *Registry) { r.maxBuffer = n }
}

// WithLogger sets the registry logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source used for establishment timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// NewRegistry creates a registry matching streams against sigs and reporting to handler.
func NewRegistry(sigs *signature.Registry, handler event.Handler, opts ...Option) *Registry {
	if handler == nil {
		handler = event.Nop
	}
	r := &Registry{
		records: make(map[ID]*record),
		sigs:    sigs,
		handler: handler,
		logger:  zerolog.Nop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.engine == nil {
		r.engine = identify.New(identify.WithLogger(r.logger))
	}
	r.logger = r.logger.With().Str("component", "stream").Logger()
	return r
}

// SetSignatures replaces the signature registry used for streams established
// from now on. Active streams keep the identifiers they started with.
func (r *Registry) SetSignatures(sigs *signature.Registry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sigs = sigs
}

// Signatures returns the registry applied to new streams.
func (r *Registry) Signatures() *signature.Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.sigs
}

// OnEstablished starts tracking id with a fresh certainty table and emits OnNew.
// An id that is already tracked is replaced; its earlier state is discarded.
func (r *Registry) OnEstablished(ctx context.Context, id ID) error {
	r.mu.Lock()
	if old, ok := r.records[id]; ok {
		r.logger.Warn().
			Str("stream", id.String()).
			Str("handle", old.handle.String()).
			Msg("Stream re-established before it ended; discarding previous state")
	} else {
		r.stats.Active++
	}
	rec := &record{
		id:          id,
		handle:      uuid.New(),
		established: r.now(),
		table:       certainty.NewTable(r.sigs),
	}
	r.records[id] = rec
	r.stats.Established++
	info := rec.info()
	r.mu.Unlock()

	return r.dispatch(id, "new", func() error { return r.handler.OnNew(ctx, info) })
}

// OnData appends data to the dir buffer of id and, while the stream is
// unknown, runs a search pass. Identified and exhausted streams ignore data.
func (r *Registry) OnData(ctx context.Context, id ID, dir certainty.Direction, data []byte) error {
	if !dir.Valid() {
		return fmt.Errorf("stream %s: invalid direction %d", id, dir)
	}

	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.stats.UnknownEvents++
		r.mu.Unlock()
		return r.unknown(id, "data")
	}
	if rec.class != Unknown || len(data) == 0 {
		r.mu.Unlock()
		return nil
	}

	buf := append(rec.buffers[dir], data...)
	overflow := r.maxBuffer > 0 && len(buf) > r.maxBuffer
	if overflow {
		buf = buf[:r.maxBuffer]
	}
	rec.buffers[dir] = buf

	res := r.engine.Search(rec.table, rec.buffers)
	switch {
	case res.Identified:
		info := rec.info()
		info.Protocol = res.Protocol
		rec.identified(res.Protocol)
		r.stats.Identified++
		r.mu.Unlock()

		return r.dispatch(id, "identified", func() error { return r.handler.OnIdentified(ctx, info, res.Protocol) })

	case overflow || res.Exhausted:
		rec.exhausted()
		r.stats.Exhausted++
		r.mu.Unlock()

		e := r.logger.Debug().Str("stream", id.String()).Str("handle", rec.handle.String())
		if overflow {
			e.Stringer("direction", dir).Int("limit", r.maxBuffer).Msg("Buffer limit reached; giving up on stream")
		} else {
			e.Msg("No signatures left to try; giving up on stream")
		}
		return nil

	default:
		r.mu.Unlock()
		return nil
	}
}

// OnEnd stops tracking id and emits OnEnded.
func (r *Registry) OnEnd(ctx context.Context, id ID, reason Reason) error {
	r.mu.Lock()
	rec, ok := r.records[id]
	if !ok {
		r.stats.UnknownEvents++
		r.mu.Unlock()
		return r.unknown(id, "end")
	}
	delete(r.records, id)
	r.stats.Active--
	r.stats.Ended++
	info := rec.info()
	r.mu.Unlock()

	return r.dispatch(id, "ended", func() error { return r.handler.OnEnded(ctx, info, reason) })
}

func (r *Registry) unknown(id ID, op string) error {
	err := &UnknownStreamError{ID: id, Op: op}
	r.logger.Warn().Err(err).Msg("Ignoring event for untracked stream")
	return err
}

// dispatch runs a host callback, converting errors and panics into HostCallbackError.
func (r *Registry) dispatch(id ID, name string, fn func() error) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &HostCallbackError{Event: name, ID: id, Err: fmt.Errorf("panic: %v", p)}
		}
		if err != nil {
			r.logger.Error().Err(err).Msg("Host callback failed")
		}
	}()

	if cbErr := fn(); cbErr != nil {
		return &HostCallbackError{Event: name, ID: id, Err: cbErr}
	}
	return nil
}

// Lookup returns a snapshot of id's state.
func (r *Registry) Lookup(id ID) (Snapshot, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.records[id]
	if !ok {
		return Snapshot{}, false
	}
	return rec.snapshot(), true
}

// Snapshots returns every active stream ordered by establishment time.
func (r *Registry) Snapshots() []Snapshot {
	r.mu.RLock()
	out := make([]Snapshot, 0, len(r.records))
	for _, rec := range r.records {
		out = append(out, rec.snapshot())
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if !out[i].Established.Equal(out[j].Established) {
			return out[i].Established.Before(out[j].Established)
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out
}

// Len returns the number of active streams.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records)
}

// Stats returns activity counters.
func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.stats
}
