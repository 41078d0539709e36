// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package stream

import (
	"net/netip"

	"github.com/vulntor/sand/pkg/event"
)

// ID is the canonical key of a TCP connection: initiator and responder endpoints.
type ID struct {
	Client netip.AddrPort
	Server netip.AddrPort
}

// NewID builds an ID from the connection initiator and responder.
func NewID(client, server netip.AddrPort) ID {
	return ID{Client: client, Server: server}
}

// ParseID parses "client" and "server" address:port strings.
func ParseID(client, server string) (ID, error) {
	c, err := netip.ParseAddrPort(client)
	if err != nil {
		return ID{}, err
	}
	s, err := netip.ParseAddrPort(server)
	if err != nil {
		return ID{}, err
	}
	return ID{Client: c, Server: s}, nil
}

func (id ID) String() string {
	return id.Client.String() + " -> " + id.Server.String()
}

// Reason explains why a stream ended.
type Reason = event.Reason

// End reasons, re-exported for callers driving the registry.
const (
	Closed  = event.ReasonClosed
	Reset   = event.ReasonReset
	Timeout = event.ReasonTimeout
)
