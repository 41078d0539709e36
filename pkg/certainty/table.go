// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package certainty

import "github.com/vulntor/sand/pkg/signature"

// Table holds one Node per candidate protocol for a single stream, in registry order.
type Table struct {
	nodes  []*Node
	byName map[string]*Node
}

// NewTable builds a table with a fresh node for every identifier in reg.
func NewTable(reg *signature.Registry) *Table {
	ids := reg.Identifiers()
	t := &Table{
		nodes:  make([]*Node, 0, len(ids)),
		byName: make(map[string]*Node, len(ids)),
	}
	for _, id := range ids {
		n := NewNode(id)
		t.nodes = append(t.nodes, n)
		t.byName[id.Name] = n
	}
	return t
}

// Node returns the node for protocol name, or nil.
func (t *Table) Node(name string) *Node {
	return t.byName[name]
}

// Nodes returns the nodes in evaluation order. The slice must not be modified.
func (t *Table) Nodes() []*Node {
	return t.nodes
}

// Len returns the number of candidate protocols.
func (t *Table) Len() int {
	return len(t.nodes)
}

// Exhausted reports whether every node has run out of signatures without
// reaching its threshold, i.e. no protocol can be identified any more.
func (t *Table) Exhausted() bool {
	for _, n := range t.nodes {
		if n.Reached() || !n.Exhausted() {
			return false
		}
	}
	return true
}
