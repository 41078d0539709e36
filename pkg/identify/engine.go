// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package identify implements the incremental search that decides whether a
// stream's protocol can be determined from the bytes seen so far.
//
// Every pass resumes where the previous one stopped, so the total work for a
// stream is bounded by the bytes it carries rather than by the number of data
// events. For a fixed byte sequence per direction the outcome does not depend
// on how the bytes were chunked.
package identify

import (
	"bytes"

	"github.com/rs/zerolog"

	"github.com/vulntor/sand/pkg/certainty"
	"github.com/vulntor/sand/pkg/stringutil"
)

// Result is the outcome of one search pass.
type Result struct {
	// Protocol is set when Identified is true.
	Protocol string
	// Identified reports that a protocol reached its threshold during this pass.
	Identified bool
	// Exhausted reports that no candidate has signatures left to try; the
	// stream can never be identified.
	Exhausted bool
}

// Engine runs search passes over certainty tables. It holds no per-stream
// state and may be shared by any number of streams.
type Engine struct {
	logger zerolog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for match tracing (debug and trace levels).
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger.With().Str("component", "identify").Logger()
	}
}

// New returns an Engine.
func New(opts ...Option) *Engine {
	e := &Engine{logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Search advances every unfinished node of table against bufs.
//
// Nodes are visited in table order and, within a node, directions in
// certainty.SearchOrder. The first node to reach its threshold wins and the
// pass stops immediately; later nodes are not evaluated.
func (e *Engine) Search(table *certainty.Table, bufs certainty.Buffers) Result {
	for _, node := range table.Nodes() {
		if node.Reached() {
			continue
		}
		for _, d := range certainty.SearchOrder {
			if e.advance(node, d, bufs[d]) {
				e.logger.Debug().
					Str("protocol", node.Protocol()).
					Int("matches", node.Matches()).
					Msg("Threshold reached")
				return Result{Protocol: node.Protocol(), Identified: true}
			}
		}
	}
	return Result{Exhausted: table.Exhausted()}
}

// advance matches as many consecutive signatures of node in direction d as
// buf allows. It reports whether the node reached its threshold.
func (e *Engine) advance(node *certainty.Node, d certainty.Direction, buf []byte) bool {
	for {
		pattern, ok := node.Next(d)
		if !ok {
			return false
		}

		from := node.Resume(d)
		if from >= len(buf) {
			return false
		}

		off := bytes.Index(buf[from:], pattern)
		if off < 0 {
			// Wait for more bytes before retrying this same signature.
			node.Miss(d, len(buf))
			return false
		}

		end := from + off + len(pattern)
		node.Match(d, end)
		e.logger.Trace().
			Str("protocol", node.Protocol()).
			Stringer("direction", d).
			Int("index", node.NextIndex(d)-1).
			Str("pattern", stringutil.Printable(pattern, 32)).
			Int("end", end).
			Int("matches", node.Matches()).
			Msg("Signature matched")

		if node.Reached() {
			return true
		}
	}
}
