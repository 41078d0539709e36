// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package capture

import (
	"context"
	"net/netip"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/reassembly"
	"github.com/rs/zerolog"

	"github.com/vulntor/sand/pkg/certainty"
	"github.com/vulntor/sand/pkg/stream"
)

// Sink receives reassembled connection events. *stream.Registry implements it.
type Sink interface {
	OnEstablished(ctx context.Context, id stream.ID) error
	OnData(ctx context.Context, id stream.ID, dir certainty.Direction, data []byte) error
	OnEnd(ctx context.Context, id stream.ID, reason stream.Reason) error
}

// captureContext carries packet metadata through the assembler.
type captureContext struct {
	ci gopacket.CaptureInfo
}

func (c *captureContext) GetCaptureInfo() gopacket.CaptureInfo {
	return c.ci
}

// factory creates one conn per TCP connection seen by the assembler.
//
// The assembler calls back synchronously from AssembleWithContext and the
// flush functions, so a fatal sink error is parked in err and checked by
// the packet loop after every call.
type factory struct {
	ctx            context.Context
	sink           Sink
	allowMidstream bool
	logger         zerolog.Logger

	err     error
	streams int
	bytes   int64
}

func (f *factory) New(netFlow, _ gopacket.Flow, tcp *layers.TCP, _ reassembly.AssemblerContext) reassembly.Stream {
	c := &conn{factory: f}

	client, okc := endpoint(netFlow.Src(), uint16(tcp.SrcPort))
	server, oks := endpoint(netFlow.Dst(), uint16(tcp.DstPort))
	if !okc || !oks {
		c.ignored = true
		return c
	}

	// A connection is tracked from its opening SYN unless midstream
	// pickup is enabled.
	opening := tcp.SYN && !tcp.ACK
	if !opening && !f.allowMidstream {
		f.logger.Debug().Str("stream", stream.NewID(client, server).String()).Msg("Skipping connection without opening handshake")
		c.ignored = true
		return c
	}
	if !opening && sentByServer(tcp) {
		client, server = server, client
		c.swapped = true
	}
	c.id = stream.NewID(client, server)

	f.streams++
	f.deliver(f.sink.OnEstablished(f.ctx, c.id))
	return c
}

// deliver records the first fatal sink error. Unknown stream errors are
// already logged by the sink and are dropped here.
func (f *factory) deliver(err error) {
	if f.err == nil && stream.IsFatal(err) {
		f.err = err
	}
}

// sentByServer guesses whether the first packet seen of a connection picked
// up midstream travels from the server. A SYN-ACK is conclusive; otherwise
// the side with the lower port is taken to be the server.
func sentByServer(tcp *layers.TCP) bool {
	if tcp.SYN && tcp.ACK {
		return true
	}
	return tcp.SrcPort < tcp.DstPort
}

func endpoint(ep gopacket.Endpoint, port uint16) (netip.AddrPort, bool) {
	addr, ok := netip.AddrFromSlice(ep.Raw())
	if !ok {
		return netip.AddrPort{}, false
	}
	return netip.AddrPortFrom(addr.Unmap(), port), true
}

// conn adapts one reassembled TCP connection to the Sink.
type conn struct {
	factory *factory
	id      stream.ID
	ignored bool
	// swapped is set when the assembler's first packet came from the server.
	swapped bool
	reset   bool
	// FIN seen in the assembler's client-to-server and server-to-client halves.
	finOut, finIn bool
}

func (c *conn) Accept(tcp *layers.TCP, _ gopacket.CaptureInfo, dir reassembly.TCPFlowDirection, _ reassembly.Sequence, start *bool, _ reassembly.AssemblerContext) bool {
	if c.ignored {
		return false
	}
	if c.factory.allowMidstream {
		*start = true
	}
	if tcp.RST {
		c.reset = true
	}
	if tcp.FIN {
		if dir == reassembly.TCPDirClientToServer {
			c.finOut = true
		} else {
			c.finIn = true
		}
	}
	return true
}

func (c *conn) ReassembledSG(sg reassembly.ScatterGather, _ reassembly.AssemblerContext) {
	if c.ignored || c.factory.err != nil {
		return
	}
	length, _ := sg.Lengths()
	if length == 0 {
		return
	}
	flowDir, _, _, skip := sg.Info()
	if skip != 0 {
		c.factory.logger.Debug().Str("stream", c.id.String()).Int("skipped", skip).Msg("Missing bytes in reassembled stream")
	}

	dir := certainty.Client
	if (flowDir == reassembly.TCPDirServerToClient) != c.swapped {
		dir = certainty.Server
	}
	data := sg.Fetch(length)
	c.factory.bytes += int64(len(data))
	c.factory.deliver(c.factory.sink.OnData(c.factory.ctx, c.id, dir, data))
}

func (c *conn) ReassemblyComplete(_ reassembly.AssemblerContext) bool {
	if c.ignored {
		return true
	}
	reason := stream.Timeout
	switch {
	case c.reset:
		reason = stream.Reset
	case c.finOut && c.finIn:
		reason = stream.Closed
	}
	c.factory.deliver(c.factory.sink.OnEnd(c.factory.ctx, c.id, reason))
	return true
}
