// Package metrics holds the Prometheus counters of the sync protocol.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Sync outcomes recorded by the phone publisher.
const (
	SyncSent        = "sent"
	SyncEmpty       = "empty"
	SyncUnavailable = "unavailable"
	SyncFailed      = "failed"
)

// Metrics groups the counters. A nil *Metrics records nothing.
type Metrics struct {
	syncs            *prometheus.CounterVec
	triggers         prometheus.Counter
	payloadsReceived prometheus.Counter
	initialSignals   prometheus.Counter
}

// New creates the counters and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "watchsync_sync_total",
			Help: "Sync attempts by the phone publisher, by outcome.",
		}, []string{"result"}),
		triggers: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchsync_initial_received_total",
			Help: "Initial signals received by the phone from the watch.",
		}),
		payloadsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchsync_weather_received_total",
			Help: "Weather payloads applied by the watch.",
		}),
		initialSignals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "watchsync_initial_sent_total",
			Help: "Initial signals sent by the watch on connect.",
		}),
	}

	for _, c := range []prometheus.Collector{m.syncs, m.triggers, m.payloadsReceived, m.initialSignals} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register collector: %v", err)
		}
	}
	return m, nil
}

// Sync records one publisher outcome.
func (m *Metrics) Sync(result string) {
	if m == nil {
		return
	}
	m.syncs.WithLabelValues(result).Inc()
}

// Trigger records one received initial signal.
func (m *Metrics) Trigger() {
	if m == nil {
		return
	}
	m.triggers.Inc()
}

// PayloadReceived records one applied weather payload.
func (m *Metrics) PayloadReceived() {
	if m == nil {
		return
	}
	m.payloadsReceived.Inc()
}

// InitialSent records one initial signal written by the watch.
func (m *Metrics) InitialSent() {
	if m == nil {
		return
	}
	m.initialSignals.Inc()
}
