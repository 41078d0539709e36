// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config

import "time"

// Config is the root configuration structure for sand.
type Config struct {
	Log        LogConfig        `description:"Logging configuration" koanf:"log"`
	Signatures SignaturesConfig `description:"Signature definitions" koanf:"signatures"`
	Engine     EngineConfig     `description:"Identification engine limits" koanf:"engine"`
	Capture    CaptureConfig    `description:"Capture replay settings" koanf:"capture"`
	Output     OutputConfig     `description:"Event output" koanf:"output"`
	Metrics    MetricsConfig    `description:"Prometheus metrics endpoint" koanf:"metrics"`
}

// LogConfig holds logging related configuration.
type LogConfig struct {
	Level  string `description:"Log level: trace | debug | info | warn | error" koanf:"level" validate:"oneof=trace debug info warn error fatal panic disabled"`
	Format string `description:"Log format: json | text" koanf:"format" validate:"oneof=text json"`
}

// SignaturesConfig locates the signature definitions.
type SignaturesConfig struct {
	Dir   string `description:"Directory of *.yaml signature definitions" koanf:"dir" validate:"required"`
	Watch bool   `description:"Reload definitions when the directory changes" koanf:"watch"`
}

// EngineConfig bounds per-stream resources.
type EngineConfig struct {
	// MaxBufferBytes caps buffered bytes per direction of an unidentified
	// stream. Zero disables the cap.
	MaxBufferBytes int `description:"Per-direction buffer cap in bytes (0 = unbounded)" koanf:"max_buffer_bytes" validate:"gte=0"`
}

// CaptureConfig tunes pcap replay.
type CaptureConfig struct {
	FlushInterval  time.Duration `description:"Capture-time interval between idle flushes" koanf:"flush_interval" validate:"gt=0"`
	IdleTimeout    time.Duration `description:"Idle time after which a connection ends with reason timeout" koanf:"idle_timeout" validate:"gt=0"`
	AllowMidstream bool          `description:"Track connections whose handshake was not captured" koanf:"allow_midstream"`
}

// OutputConfig selects how stream events are reported.
type OutputConfig struct {
	Format  string `description:"Event output: text | json" koanf:"format" validate:"oneof=text json"`
	File    string `description:"Append JSON lines events to this file" koanf:"file"`
	Verbose bool   `description:"Also print new stream events" koanf:"verbose"`
	Color   bool   `description:"Colorize text output" koanf:"color"`
}

// MetricsConfig configures the optional /metrics listener.
type MetricsConfig struct {
	Addr string `description:"Listen address for /metrics (empty = disabled)" koanf:"addr" validate:"omitempty,hostname_port"`
}
