// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package certainty tracks, per stream, how far each candidate protocol has
// progressed through its signature lists.
package certainty

import "github.com/vulntor/sand/pkg/signature"

// Node tracks one protocol's progress on one stream.
//
// For each direction it remembers the index of the next untried signature,
// the offset just past the last matched signature (the search cursor), and
// the offset from which the pending signature still needs to be searched.
// All three only ever move forward.
type Node struct {
	ident *signature.Identifier

	next    [NumDirections]int
	cursor  [NumDirections]int
	resume  [NumDirections]int
	matches int
}

// NewNode returns a node with no progress.
func NewNode(ident *signature.Identifier) *Node {
	return &Node{ident: ident}
}

// Identifier returns the identifier this node tracks.
func (n *Node) Identifier() *signature.Identifier {
	return n.ident
}

// Protocol returns the tracked protocol's name.
func (n *Node) Protocol() string {
	return n.ident.Name
}

func (n *Node) signatures(d Direction) [][]byte {
	if d == Server {
		return n.ident.Server
	}
	return n.ident.Client
}

// Next returns the next untried signature for d, or false when none remain.
func (n *Node) Next(d Direction) ([]byte, bool) {
	sigs := n.signatures(d)
	if n.next[d] >= len(sigs) {
		return nil, false
	}
	return sigs[n.next[d]], true
}

// NextIndex returns the index of the next untried signature for d.
func (n *Node) NextIndex(d Direction) int {
	return n.next[d]
}

// Cursor returns the offset in d's buffer just past the last matched signature.
func (n *Node) Cursor(d Direction) int {
	return n.cursor[d]
}

// Resume returns the offset in d's buffer from which the pending signature must be searched.
// It is never before Cursor(d).
func (n *Node) Resume(d Direction) int {
	return n.resume[d]
}

// Matches returns the number of signatures matched so far.
func (n *Node) Matches() int {
	return n.matches
}

// Reached reports whether the threshold has been met.
func (n *Node) Reached() bool {
	return n.matches >= n.ident.Threshold
}

// Exhausted reports whether no untried signature remains in either direction.
func (n *Node) Exhausted() bool {
	_, client := n.Next(Client)
	_, server := n.Next(Server)
	return !client && !server
}

// Match records that the pending signature for d was found ending at offset end.
// The signature is consumed and bytes before end are never searched again.
func (n *Node) Match(d Direction, end int) {
	if end < n.cursor[d] {
		end = n.cursor[d]
	}
	n.cursor[d] = end
	n.resume[d] = end
	n.next[d]++
	n.matches++
}

// Miss records that the pending signature for d is absent from the first
// bufLen bytes. Only the tail that could still hold the start of a match is
// searched again when more bytes arrive.
func (n *Node) Miss(d Direction, bufLen int) {
	pattern, ok := n.Next(d)
	if !ok {
		return
	}
	if from := bufLen - len(pattern) + 1; from > n.resume[d] {
		n.resume[d] = from
	}
}
