// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vulntor/sand/cmd/sand/internal/format"
	"github.com/vulntor/sand/pkg/appctx"
	"github.com/vulntor/sand/pkg/capture"
	"github.com/vulntor/sand/pkg/config"
	"github.com/vulntor/sand/pkg/event"
	"github.com/vulntor/sand/pkg/logging"
	"github.com/vulntor/sand/pkg/signature"
	"github.com/vulntor/sand/pkg/stream"
)

const metricsShutdownTimeout = 5 * time.Second

func newReplayCommand() *cobra.Command {
	def := config.DefaultConfig()

	cmd := &cobra.Command{
		Use:   "replay <capture.pcap>",
		Short: "Identify the TCP streams in a pcap or pcapng file",
		Example: `  sand replay -s ./signatures trace.pcap
  sand replay -s ./signatures -o json --output-file events.jsonl trace.pcapng`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := appctx.ConfigOrDefault(cmd.Context()).Get()
			return runReplay(cmd, cfg, args[0])
		},
	}

	flags := cmd.Flags()
	flags.StringP("signatures", "s", def.Signatures.Dir, "Directory of signature definitions")
	flags.Bool("watch", def.Signatures.Watch, "Reload signature definitions when they change")
	flags.Int("max-buffer-bytes", def.Engine.MaxBufferBytes, "Per-direction buffer cap for unidentified streams (0 = unbounded)")
	flags.Duration("flush-interval", def.Capture.FlushInterval, "Capture-time interval between idle connection flushes")
	flags.Duration("idle-timeout", def.Capture.IdleTimeout, "End connections idle for this long (reason timeout)")
	flags.Bool("allow-midstream", def.Capture.AllowMidstream, "Track connections whose handshake is missing from the capture")
	flags.StringP("output", "o", def.Output.Format, "Event output format (text, json)")
	flags.String("output-file", def.Output.File, "Also append events as JSON lines to this file")
	flags.BoolP("verbose", "v", def.Output.Verbose, "Also print new stream events in text output")
	flags.Bool("color", def.Output.Color, "Colorize text output")
	flags.String("metrics-addr", def.Metrics.Addr, "Serve Prometheus metrics on this address while replaying")

	return cmd
}

// protocolTally counts identifications per protocol for the run summary.
type protocolTally struct {
	mu     sync.Mutex
	counts map[string]int
}

func (p *protocolTally) handler() event.Handler {
	return event.HandlerFuncs{
		Identified: func(_ context.Context, _ event.StreamInfo, protocol string) error {
			p.mu.Lock()
			defer p.mu.Unlock()
			p.counts[protocol]++
			return nil
		},
	}
}

func (p *protocolTally) rows() [][]string {
	p.mu.Lock()
	defer p.mu.Unlock()
	names := make([]string, 0, len(p.counts))
	for name := range p.counts {
		names = append(names, name)
	}
	sort.Strings(names)
	rows := make([][]string, 0, len(names))
	for _, name := range names {
		rows = append(rows, []string{name, strconv.Itoa(p.counts[name])})
	}
	return rows
}

func runReplay(cmd *cobra.Command, cfg config.Config, path string) error {
	ctx := cmd.Context()
	logger := logging.NewLogger("replay")
	out := format.New(cmd.OutOrStdout(), cmd.ErrOrStderr(), format.ParseMode(cfg.Output.Format), cfg.Output.Color)

	sigs, err := signature.Load(cfg.Signatures.Dir)
	if err != nil {
		return err
	}
	logger.Info().Str("dir", cfg.Signatures.Dir).Strs("protocols", sigs.Names()).Msg("Signatures loaded")

	tally := &protocolTally{counts: make(map[string]int)}
	dispatcher := event.NewDispatcher(event.NewLogSubscriber(log.Logger), tally.handler())
	if cfg.Output.Format == string(format.ModeJSON) {
		dispatcher.Subscribe(event.NewJSONLWriter(cmd.OutOrStdout()))
	} else {
		dispatcher.Subscribe(event.NewConsoleSubscriber(cmd.OutOrStdout(), cfg.Output.Color, cfg.Output.Verbose))
	}

	if cfg.Output.File != "" {
		jsonl, err := event.OpenJSONLFile(cfg.Output.File)
		if err != nil {
			return err
		}
		defer func() {
			if err := jsonl.Close(); err != nil {
				logger.Warn().Err(err).Str("file", cfg.Output.File).Msg("Failed to close event log")
			}
		}()
		dispatcher.Subscribe(jsonl)
	}

	var promRegistry *prometheus.Registry
	if cfg.Metrics.Addr != "" {
		promRegistry = prometheus.NewRegistry()
		promRegistry.MustRegister(collectors.NewGoCollector())
		metrics, err := event.NewMetrics(promRegistry)
		if err != nil {
			return fmt.Errorf("register metrics: %w", err)
		}
		dispatcher.Subscribe(metrics)
	}

	registry := stream.NewRegistry(sigs, dispatcher,
		stream.WithMaxBufferBytes(cfg.Engine.MaxBufferBytes),
		stream.WithLogger(log.Logger),
	)

	g, gctx := errgroup.WithContext(ctx)
	runCtx, cancel := context.WithCancel(gctx)
	defer cancel()

	var stats capture.Stats
	g.Go(func() error {
		defer cancel()
		var err error
		stats, err = capture.Replay(runCtx, path, registry, capture.Options{
			FlushInterval:  cfg.Capture.FlushInterval,
			IdleTimeout:    cfg.Capture.IdleTimeout,
			AllowMidstream: cfg.Capture.AllowMidstream,
			Logger:         log.Logger,
		})
		return err
	})

	if promRegistry != nil {
		serveMetrics(runCtx, g, cfg.Metrics.Addr, promRegistry, logger)
	}

	if cfg.Signatures.Watch {
		watcher, err := signature.NewWatcher(cfg.Signatures.Dir, registry.SetSignatures, log.Logger)
		if err != nil {
			cancel()
			_ = g.Wait()
			return fmt.Errorf("watch signatures: %w", err)
		}
		g.Go(func() error {
			if err := watcher.Start(runCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("watch signatures: %w", err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	dumpRemaining(registry, logger)
	return printReplaySummary(out, cfg, stats, registry.Stats(), tally)
}

// serveMetrics exposes reg on addr until ctx is done.
func serveMetrics(ctx context.Context, g *errgroup.Group, addr string, reg *prometheus.Registry, logger zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	g.Go(func() error {
		logger.Info().Str("addr", addr).Msg("Serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), metricsShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
}

// dumpRemaining logs streams still tracked after the capture was drained.
func dumpRemaining(registry *stream.Registry, logger zerolog.Logger) {
	if !logger.Debug().Enabled() {
		return
	}
	for _, snap := range registry.Snapshots() {
		e := logger.Debug().
			Str("stream", snap.ID.String()).
			Str("handle", snap.Handle.String()).
			Stringer("classification", snap.Classification).
			Str("protocol", snap.Protocol)
		for _, c := range snap.Candidates {
			e = e.Str("candidate."+c.Protocol, fmt.Sprintf("%d/%d", c.Matches, c.Threshold))
		}
		e.Msg("Stream still tracked at end of capture")
	}
	st := registry.Stats()
	logger.Debug().
		Int("established", st.Established).
		Int("identified", st.Identified).
		Int("exhausted", st.Exhausted).
		Int("ended", st.Ended).
		Int("active", st.Active).
		Int("unknown_events", st.UnknownEvents).
		Msg("Stream registry statistics")
}

func printReplaySummary(out format.Formatter, cfg config.Config, cs capture.Stats, rs stream.Stats, tally *protocolTally) error {
	msg := fmt.Sprintf("%d packets, %d streams: %d identified, %d given up, %d unidentified",
		cs.Packets, rs.Established, rs.Identified, rs.Exhausted, rs.Established-rs.Identified-rs.Exhausted)
	if err := out.PrintSummary(msg); err != nil {
		return err
	}
	if cfg.Output.Format == string(format.ModeJSON) {
		return nil
	}
	rows := tally.rows()
	if len(rows) == 0 {
		return nil
	}
	return out.PrintTable([]string{"protocol", "streams"}, rows)
}
