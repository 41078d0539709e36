// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package certainty

// Direction names one half-stream of a TCP connection.
type Direction uint8

const (
	// Client is the client -> server half-stream.
	Client Direction = iota
	// Server is the server -> client half-stream.
	Server
)

// NumDirections is the number of half-streams per connection.
const NumDirections = 2

// SearchOrder is the fixed order in which directions are searched during a pass.
var SearchOrder = [NumDirections]Direction{Server, Client}

func (d Direction) String() string {
	switch d {
	case Client:
		return "client"
	case Server:
		return "server"
	default:
		return "unknown"
	}
}

// Valid reports whether d is Client or Server.
func (d Direction) Valid() bool {
	return d == Client || d == Server
}

// Buffers holds the cumulative bytes received so far, indexed by Direction.
type Buffers [NumDirections][]byte
