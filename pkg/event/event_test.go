// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package event

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInfo() StreamInfo {
	client := netip.MustParseAddrPort("10.0.0.1:40000")
	server := netip.MustParseAddrPort("10.0.0.2:80")
	return StreamInfo{
		ID:          client.String() + " -> " + server.String(),
		Handle:      uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
		Client:      client,
		Server:      server,
		Established: time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestHandlerFuncs_NilFieldsAreNoops(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, Nop.OnNew(ctx, sampleInfo()))
	require.NoError(t, Nop.OnIdentified(ctx, sampleInfo(), "http"))
	require.NoError(t, Nop.OnEnded(ctx, sampleInfo(), ReasonClosed))
}

func TestDispatcher_CallsSubscribersInOrder(t *testing.T) {
	var calls []string
	sub := func(name string) Handler {
		return HandlerFuncs{
			Identified: func(_ context.Context, _ StreamInfo, protocol string) error {
				calls = append(calls, name+":"+protocol)
				return nil
			},
		}
	}

	d := NewDispatcher(sub("a"), nil, sub("b"))
	d.Subscribe(sub("c"))
	require.Equal(t, 3, d.SubscriberCount())

	require.NoError(t, d.OnIdentified(context.Background(), sampleInfo(), "ssh"))
	require.Equal(t, []string{"a:ssh", "b:ssh", "c:ssh"}, calls)
}

func TestDispatcher_StopsAtFirstError(t *testing.T) {
	boom := errors.New("boom")
	reached := false
	d := NewDispatcher(
		HandlerFuncs{Ended: func(context.Context, StreamInfo, Reason) error { return boom }},
		HandlerFuncs{Ended: func(context.Context, StreamInfo, Reason) error { reached = true; return nil }},
	)

	err := d.OnEnded(context.Background(), sampleInfo(), ReasonReset)
	require.ErrorIs(t, err, boom)
	require.False(t, reached)
}

func TestReason_String(t *testing.T) {
	assert.Equal(t, "closed", ReasonClosed.String())
	assert.Equal(t, "reset", ReasonReset.String())
	assert.Equal(t, "timeout", ReasonTimeout.String())
	assert.Equal(t, "unknown", Reason(9).String())

	text, err := ReasonTimeout.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "timeout", string(text))
}

func TestJSONLWriter_WritesOneRecordPerEvent(t *testing.T) {
	var buf bytes.Buffer
	w := NewJSONLWriter(&buf)
	w.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }

	ctx := context.Background()
	info := sampleInfo()
	require.NoError(t, w.OnNew(ctx, info))
	require.NoError(t, w.OnIdentified(ctx, info, "http"))
	info.Protocol = "http"
	require.NoError(t, w.OnEnded(ctx, info, ReasonClosed))

	var records []Record
	scanner := bufio.NewScanner(&buf)
	for scanner.Scan() {
		var r Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.Len(t, records, 3)

	assert.Equal(t, "new", records[0].Event)
	assert.Empty(t, records[0].Protocol)
	assert.Equal(t, "identified", records[1].Event)
	assert.Equal(t, "http", records[1].Protocol)
	assert.Equal(t, "ended", records[2].Event)
	assert.Equal(t, "closed", records[2].Reason)
	assert.Equal(t, "10.0.0.1:40000", records[2].Client)
	assert.Equal(t, "10.0.0.2:80", records[2].Server)
	assert.Equal(t, "6ba7b810-9dad-11d1-80b4-00c04fd430c8", records[2].Handle)
}

func TestOpenJSONLFile_LocksAgainstSecondWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.jsonl")

	first, err := OpenJSONLFile(path)
	require.NoError(t, err)

	_, err = OpenJSONLFile(path)
	require.ErrorIs(t, err, ErrLogLocked)

	require.NoError(t, first.OnNew(context.Background(), sampleInfo()))
	require.NoError(t, first.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"event":"new"`)

	second, err := OpenJSONLFile(path)
	require.NoError(t, err, "lock is released on Close")
	require.NoError(t, second.Close())
}

func TestConsoleSubscriber(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsoleSubscriber(&buf, false, false)
	ctx := context.Background()
	info := sampleInfo()

	require.NoError(t, c.OnNew(ctx, info))
	assert.Empty(t, buf.String(), "new events are only printed in verbose mode")

	require.NoError(t, c.OnIdentified(ctx, info, "http"))
	require.NoError(t, c.OnEnded(ctx, info, ReasonTimeout))

	out := buf.String()
	assert.Contains(t, out, "[identified] 10.0.0.1:40000 -> 10.0.0.2:80 http")
	assert.Contains(t, out, "unidentified (timeout)")
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := NewMetrics(reg)
	require.NoError(t, err)

	ctx := context.Background()
	info := sampleInfo()
	require.NoError(t, m.OnNew(ctx, info))
	require.NoError(t, m.OnNew(ctx, info))
	require.NoError(t, m.OnIdentified(ctx, info, "http"))
	info.Protocol = "http"
	require.NoError(t, m.OnEnded(ctx, info, ReasonClosed))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.established))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.active))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.identified.WithLabelValues("http")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ended.WithLabelValues("closed", "true")))

	_, err = NewMetrics(reg)
	require.Error(t, err, "collectors cannot be registered twice")
}

func TestLogSubscriber(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogSubscriber(zerolog.New(&buf).Level(zerolog.InfoLevel))
	ctx := context.Background()

	require.NoError(t, l.OnNew(ctx, sampleInfo()))
	require.NoError(t, l.OnIdentified(ctx, sampleInfo(), "ssh"))
	require.NoError(t, l.OnEnded(ctx, sampleInfo(), ReasonClosed))

	out := buf.String()
	assert.Contains(t, out, `"protocol":"ssh"`)
	assert.Contains(t, out, `"message":"Stream identified"`)
	assert.NotContains(t, out, "New stream")
}
