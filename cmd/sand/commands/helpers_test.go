// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcapgo"
	"github.com/stretchr/testify/require"
)

// shippedSignatures is the signature directory at the repository root.
var shippedSignatures = filepath.Join("..", "..", "..", "signatures")

func runCommand(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	var stdout, stderr bytes.Buffer
	cmd := NewCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

type segment struct {
	fromClient         bool
	syn, ack, fin, rst bool
	payload            string
}

// writeCapture writes one TCP conversation between 10.1.0.2:40000 and
// 10.1.0.1:80 as a pcap file.
func writeCapture(t *testing.T, segments ...segment) string {
	t.Helper()

	client, server := net.IPv4(10, 1, 0, 2).To4(), net.IPv4(10, 1, 0, 1).To4()
	clientSeq, serverSeq := uint32(100), uint32(900)

	var buf bytes.Buffer
	w := pcapgo.NewWriter(&buf)
	require.NoError(t, w.WriteFileHeader(65536, layers.LinkTypeEthernet))

	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	for i, s := range segments {
		src, dst, sport, dport := client, server, layers.TCPPort(40000), layers.TCPPort(80)
		seq, ack := &clientSeq, serverSeq
		if !s.fromClient {
			src, dst, sport, dport = server, client, dport, sport
			seq, ack = &serverSeq, clientSeq
		}

		ip := &layers.IPv4{Version: 4, TTL: 64, Protocol: layers.IPProtocolTCP, SrcIP: src, DstIP: dst}
		tcp := &layers.TCP{SrcPort: sport, DstPort: dport, Seq: *seq, SYN: s.syn, ACK: s.ack, FIN: s.fin, RST: s.rst, Window: 65535}
		if s.ack {
			tcp.Ack = ack
		}
		require.NoError(t, tcp.SetNetworkLayerForChecksum(ip))

		sb := gopacket.NewSerializeBuffer()
		require.NoError(t, gopacket.SerializeLayers(sb, gopacket.SerializeOptions{FixLengths: true, ComputeChecksums: true},
			&layers.Ethernet{SrcMAC: net.HardwareAddr{2, 0, 0, 0, 0, 1}, DstMAC: net.HardwareAddr{2, 0, 0, 0, 0, 2}, EthernetType: layers.EthernetTypeIPv4},
			ip, tcp, gopacket.Payload(s.payload)))

		data := sb.Bytes()
		require.NoError(t, w.WritePacket(gopacket.CaptureInfo{
			Timestamp:     base.Add(time.Duration(i) * time.Millisecond),
			CaptureLength: len(data),
			Length:        len(data),
		}, data))

		*seq += uint32(len(s.payload))
		if s.syn || s.fin {
			*seq++
		}
	}

	path := filepath.Join(t.TempDir(), "trace.pcap")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func httpConversation(t *testing.T) string {
	return writeCapture(t,
		segment{fromClient: true, syn: true},
		segment{syn: true, ack: true},
		segment{fromClient: true, ack: true},
		segment{fromClient: true, ack: true, payload: "GET / HTTP/1.1\r\nHost: example\r\n\r\n"},
		segment{ack: true, payload: "HTTP/1.1 200 OK\r\nContent-Length: 0\r\n\r\n"},
		segment{fromClient: true, ack: true, fin: true},
		segment{ack: true, fin: true},
	)
}
