// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package capture feeds packet captures through TCP reassembly into a
// stream Sink. Packets are decoded with gopacket and reassembled with its
// reassembly package; capture files are read with pcapgo (pcap and pcapng).
package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/google/gopacket/reassembly"
	"github.com/rs/zerolog"
)

// Defaults used when Options leave a field zero.
const (
	DefaultFlushInterval = 10 * time.Second
	DefaultIdleTimeout   = 2 * time.Minute
)

var pcapngMagic = []byte{0x0a, 0x0d, 0x0d, 0x0a}

// Options tunes replay behavior.
type Options struct {
	// FlushInterval is how often, in capture time, idle connections are flushed.
	FlushInterval time.Duration
	// IdleTimeout closes connections with no packets for this long (reason timeout).
	IdleTimeout time.Duration
	// AllowMidstream tracks connections whose handshake is not in the
	// capture. Client and server are then guessed from the first packet:
	// a SYN-ACK comes from the server, otherwise the lower port is taken to
	// be the server. Connections between two ephemeral ports may be
	// oriented the wrong way round.
	AllowMidstream bool
	Logger         zerolog.Logger
}

// Stats summarizes a replay.
type Stats struct {
	Packets    int
	TCPPackets int
	Undecoded  int
	Streams    int
	Bytes      int64
	Duration   time.Duration // capture time between first and last packet
}

// Replay reads the capture file at path and drives sink with its TCP
// connections. It stops at the first fatal sink error.
func Replay(ctx context.Context, path string, sink Sink, opts Options) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("open capture: %w", err)
	}
	defer f.Close()

	stats, err := ReplayReader(ctx, f, sink, opts)
	if err != nil {
		return stats, fmt.Errorf("replay %s: %w", path, err)
	}
	return stats, nil
}

// ReplayReader is Replay over an already opened pcap or pcapng stream.
func ReplayReader(ctx context.Context, r io.Reader, sink Sink, opts Options) (Stats, error) {
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = DefaultFlushInterval
	}
	if opts.IdleTimeout <= 0 {
		opts.IdleTimeout = DefaultIdleTimeout
	}
	logger := opts.Logger.With().Str("component", "capture").Logger()

	source, err := openSource(r)
	if err != nil {
		return Stats{}, err
	}

	fac := &factory{ctx: ctx, sink: sink, allowMidstream: opts.AllowMidstream, logger: logger}
	assembler := reassembly.NewAssembler(reassembly.NewStreamPool(fac))

	var (
		stats     Stats
		first     time.Time
		last      time.Time
		lastFlush time.Time
	)
	finish := func() Stats {
		stats.Streams = fac.streams
		stats.Bytes = fac.bytes
		if !first.IsZero() {
			stats.Duration = last.Sub(first)
		}
		return stats
	}

	for {
		if err := ctx.Err(); err != nil {
			return finish(), err
		}

		packet, err := source.NextPacket()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return finish(), fmt.Errorf("read packet %d: %w", stats.Packets+1, err)
		}
		stats.Packets++

		ts := packet.Metadata().Timestamp
		if first.IsZero() {
			first, lastFlush = ts, ts
		}
		last = ts

		if errLayer := packet.ErrorLayer(); errLayer != nil {
			stats.Undecoded++
			logger.Trace().Err(errLayer.Error()).Int("packet", stats.Packets).Msg("Packet decode failed")
			continue
		}
		network := packet.NetworkLayer()
		tcp, ok := packet.Layer(layers.LayerTypeTCP).(*layers.TCP)
		if network == nil || !ok {
			continue
		}
		stats.TCPPackets++

		assembler.AssembleWithContext(network.NetworkFlow(), tcp, &captureContext{ci: packet.Metadata().CaptureInfo})
		if fac.err != nil {
			return finish(), fac.err
		}

		if ts.Sub(lastFlush) >= opts.FlushInterval {
			_, closed := assembler.FlushCloseOlderThan(ts.Add(-opts.IdleTimeout))
			lastFlush = ts
			if closed > 0 {
				logger.Debug().Int("closed", closed).Msg("Flushed idle connections")
			}
			if fac.err != nil {
				return finish(), fac.err
			}
		}
	}

	closed := assembler.FlushAll()
	logger.Debug().Int("closed", closed).Msg("Flushed remaining connections at end of capture")
	return finish(), fac.err
}

// packetSource is the subset of gopacket.PacketSource used by the loop.
type packetSource interface {
	NextPacket() (gopacket.Packet, error)
}

func openSource(r io.Reader) (packetSource, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(len(pcapngMagic))
	if err != nil {
		return nil, fmt.Errorf("read capture header: %w", err)
	}

	var (
		data     gopacket.PacketDataSource
		linkType layers.LinkType
	)
	if bytes.Equal(magic, pcapngMagic) {
		ng, err := pcapgo.NewNgReader(br, pcapgo.DefaultNgReaderOptions)
		if err != nil {
			return nil, fmt.Errorf("read pcapng header: %w", err)
		}
		data, linkType = ng, ng.LinkType()
	} else {
		pr, err := pcapgo.NewReader(br)
		if err != nil {
			return nil, fmt.Errorf("read pcap header: %w", err)
		}
		data, linkType = pr, pr.LinkType()
	}

	src := gopacket.NewPacketSource(data, linkType)
	src.Lazy = true
	src.NoCopy = true
	return src, nil
}
