// Copyright 2025 Vulntor Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");

package event

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "sand"

// Metrics exports lifecycle counters to Prometheus.
type Metrics struct {
	established prometheus.Counter
	identified  *prometheus.CounterVec
	ended       *prometheus.CounterVec
	active      prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		established: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "streams_established_total",
			Help:      "TCP streams seen established.",
		}),
		identified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "streams_identified_total",
			Help:      "TCP streams identified, by protocol.",
		}, []string{"protocol"}),
		ended: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "streams_ended_total",
			Help:      "TCP streams ended, by reason and whether they were identified.",
		}, []string{"reason", "identified"}),
		active: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "streams_active",
			Help:      "TCP streams currently tracked.",
		}),
	}

	for _, c := range []prometheus.Collector{m.established, m.identified, m.ended, m.active} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) OnNew(context.Context, StreamInfo) error {
	m.established.Inc()
	m.active.Inc()
	return nil
}

func (m *Metrics) OnIdentified(_ context.Context, _ StreamInfo, protocol string) error {
	m.identified.WithLabelValues(protocol).Inc()
	return nil
}

func (m *Metrics) OnEnded(_ context.Context, s StreamInfo, reason Reason) error {
	identified := "false"
	if s.Protocol != "" {
		identified = "true"
	}
	m.ended.WithLabelValues(reason.String(), identified).Inc()
	m.active.Dec()
	return nil
}
