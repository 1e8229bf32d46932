// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package distribution

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "eventfanout_distribution"

const (
	admissionLive     = "live"
	admissionReplayed = "replayed"
	admissionRefused  = "refused"
	admissionFailed   = "failed"
)

// Collector is a prometheus.Collector that collects metrics about a
// distribution point.
type Collector struct {
	ingested          prometheus.Counter
	positionOnly      prometheus.Counter
	evictions         prometheus.Counter
	admissions        *prometheus.CounterVec
	replayedEvents    prometheus.Counter
	deliveryFailures  prometheus.Counter
	windowSize        prometheus.Gauge
	liveSubscriptions prometheus.Gauge
}

// NewMetricsCollector returns a new Collector.
func NewMetricsCollector() *Collector {
	return &Collector{
		ingested: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "ingested_events_total",
				Help:      "The number of committed events ingested.",
			},
		),
		positionOnly: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "position_only_advances_total",
				Help:      "The number of position-only advances ingested.",
			},
		),
		evictions: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "window_evictions_total",
				Help:      "The number of events evicted from the retention window.",
			},
		),
		admissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "admissions_total",
				Help:      "The number of subscription attempts by outcome.",
			}, []string{"outcome"},
		),
		replayedEvents: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "replayed_events_total",
				Help:      "The number of buffered events replayed to new subscriptions.",
			},
		),
		deliveryFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "delivery_failures_total",
				Help:      "The number of subscriptions removed after a failed delivery.",
			},
		),
		windowSize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "window_size",
				Help:      "The number of events held in the retention window.",
			},
		),
		liveSubscriptions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "live_subscriptions",
				Help:      "The number of subscriptions receiving live events.",
			},
		),
	}
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.ingested.Describe(ch)
	c.positionOnly.Describe(ch)
	c.evictions.Describe(ch)
	c.admissions.Describe(ch)
	c.replayedEvents.Describe(ch)
	c.deliveryFailures.Describe(ch)
	c.windowSize.Describe(ch)
	c.liveSubscriptions.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.ingested.Collect(ch)
	c.positionOnly.Collect(ch)
	c.evictions.Collect(ch)
	c.admissions.Collect(ch)
	c.replayedEvents.Collect(ch)
	c.deliveryFailures.Collect(ch)
	c.windowSize.Collect(ch)
	c.liveSubscriptions.Collect(ch)
}
