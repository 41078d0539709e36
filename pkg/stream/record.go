// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package stream

import (
	"time"

	"github.com/google/uuid"

	"github.com/vulntor/sand/pkg/certainty"
	"github.com/vulntor/sand/pkg/event"
)

// Classification is the analysis state of a stream.
type Classification uint8

const (
	// Unknown streams are still being analysed.
	Unknown Classification = iota
	// Identified streams matched a protocol; no further analysis happens.
	Identified
	// Exhausted streams were given up on: every candidate ran out of
	// signatures, or a direction exceeded the buffer limit.
	Exhausted
)

func (c Classification) String() string {
	switch c {
	case Unknown:
		return "unknown"
	case Identified:
		return "identified"
	case Exhausted:
		return "exhausted"
	default:
		return "invalid"
	}
}

// record is the registry's state for one active connection.
type record struct {
	id          ID
	handle      uuid.UUID
	established time.Time

	buffers certainty.Buffers
	table   *certainty.Table

	class    Classification
	protocol string
}

func (r *record) info() event.StreamInfo {
	return event.StreamInfo{
		ID:          r.id.String(),
		Handle:      r.handle,
		Client:      r.id.Client,
		Server:      r.id.Server,
		Established: r.established,
		Protocol:    r.protocol,
		ClientBytes: len(r.buffers[certainty.Client]),
		ServerBytes: len(r.buffers[certainty.Server]),
	}
}

// identified freezes the record: buffers and certainty table are no longer needed.
func (r *record) identified(protocol string) {
	r.class = Identified
	r.protocol = protocol
	r.buffers = certainty.Buffers{}
	r.table = nil
}

// exhausted drops the buffers but keeps the table for inspection.
func (r *record) exhausted() {
	r.class = Exhausted
	r.buffers = certainty.Buffers{}
}

// Candidate is the progress of one protocol on one stream.
type Candidate struct {
	Protocol  string
	Threshold int
	Matches   int
	Next      [certainty.NumDirections]int // Next untried signature index per direction
	Cursor    [certainty.NumDirections]int // Offset past the last match per direction
}

// Snapshot is a point-in-time copy of a stream's state.
type Snapshot struct {
	ID             ID
	Handle         uuid.UUID
	Established    time.Time
	Classification Classification
	Protocol       string
	Buffered       [certainty.NumDirections]int
	// Candidates is empty once the stream is identified.
	Candidates []Candidate
}

// Candidate returns the progress for protocol, if tracked.
func (s Snapshot) Candidate(protocol string) (Candidate, bool) {
	for _, c := range s.Candidates {
		if c.Protocol == protocol {
			return c, true
		}
	}
	return Candidate{}, false
}

func (r *record) snapshot() Snapshot {
	s := Snapshot{
		ID:             r.id,
		Handle:         r.handle,
		Established:    r.established,
		Classification: r.class,
		Protocol:       r.protocol,
	}
	for d := range s.Buffered {
		s.Buffered[d] = len(r.buffers[d])
	}
	if r.table == nil {
		return s
	}

	s.Candidates = make([]Candidate, 0, r.table.Len())
	for _, n := range r.table.Nodes() {
		c := Candidate{
			Protocol:  n.Protocol(),
			Threshold: n.Identifier().Threshold,
			Matches:   n.Matches(),
		}
		for _, d := range certainty.SearchOrder {
			c.Next[d] = n.NextIndex(d)
			c.Cursor[d] = n.Cursor(d)
		}
		s.Candidates = append(s.Candidates, c)
	}
	return s
}
