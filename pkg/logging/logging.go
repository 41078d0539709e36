// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

// Package logging configures the process-wide zerolog logger.
package logging

import (
	"fmt"
	"io"
	stdLog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// logWriter is the destination for log output; stderr keeps stdout free for events.
var logWriter io.Writer = os.Stderr

// stdLogWriter reformats stdlib log output (e.g. from net/http) as zerolog events.
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSuffix(string(p), "\n")
	w.logger.Debug().Str("source", "stdlog").Msg(message)
	return len(p), nil
}

func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
}

// ConfigureGlobalLogging sets the global level and output format ("text" or
// "json"). Caller information is added at debug level and below.
func ConfigureGlobalLogging(levelStr, format string) error {
	level, err := ParseLevel(levelStr)
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	switch strings.ToLower(format) {
	case "", "text":
		w = zerolog.ConsoleWriter{Out: logWriter, TimeFormat: time.RFC3339}
	case "json":
		w = logWriter
	default:
		return fmt.Errorf("unknown log format %q (want text or json)", format)
	}

	logContext := zerolog.New(w).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	stdLog.SetFlags(0)
	stdLog.SetOutput(&stdLogWriter{logger: log.Logger})
	return nil
}

// ParseLevel converts a level name to a zerolog.Level. Empty means info.
func ParseLevel(levelString string) (zerolog.Level, error) {
	if levelString == "" {
		return zerolog.InfoLevel, nil
	}
	level, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(levelString)))
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("invalid log level %q: %w", levelString, err)
	}
	return level, nil
}

// SetLogWriter sets the destination used by ConfigureGlobalLogging.
func SetLogWriter(w io.Writer) {
	logWriter = w
}

// NewLogger derives a component logger from the global logger. Call it after
// ConfigureGlobalLogging so the logger picks up the configured output.
func NewLogger(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}
