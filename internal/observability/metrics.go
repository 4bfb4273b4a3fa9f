// Package observability holds the Prometheus metrics and OpenTelemetry
// tracing setup shared by the note assembler and the HTTP gateway.
//
// All metric methods are safe on a nil *Metrics so components can be built
// without instrumentation in tests and in the CLI.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "clinote"

// Outcome labels for channel processing.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics groups every collector the service exports.
type Metrics struct {
	// ChannelsTotal counts processed input channels.
	// Labels: channel (audio, image, comparison), outcome (success, failure)
	ChannelsTotal *prometheus.CounterVec

	// ChannelDurationSeconds measures the language model call per channel.
	// Labels: channel
	ChannelDurationSeconds *prometheus.HistogramVec

	// NotesTotal counts assembled notes.
	NotesTotal prometheus.Counter

	// HTTPRequestsTotal counts gateway requests.
	// Labels: route, code
	HTTPRequestsTotal *prometheus.CounterVec

	// KnowledgeChunksIngested counts chunks written to the knowledge index.
	KnowledgeChunksIngested prometheus.Counter
}

// NewMetrics creates the collectors and registers them with reg.  Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics handler;
// tests pass a fresh registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ChannelsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "assembler",
				Name:      "channels_total",
				Help:      "Processed input channels by channel and outcome",
			},
			[]string{"channel", "outcome"},
		),
		ChannelDurationSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Subsystem: "assembler",
				Name:      "channel_duration_seconds",
				Help:      "Language model latency per input channel in seconds",
				Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
			[]string{"channel"},
		),
		NotesTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "assembler",
			Name:      "notes_total",
			Help:      "Assembled progress notes",
		}),
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Gateway requests by route and status code",
			},
			[]string{"route", "code"},
		),
		KnowledgeChunksIngested: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "knowledge",
			Name:      "chunks_ingested_total",
			Help:      "Chunks written to the knowledge index",
		}),
	}
}

// ObserveChannel records one channel run.
func (m *Metrics) ObserveChannel(channel string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.ChannelsTotal.WithLabelValues(channel, outcome).Inc()
	m.ChannelDurationSeconds.WithLabelValues(channel).Observe(elapsed.Seconds())
}

// NoteAssembled records one finished note.
func (m *Metrics) NoteAssembled() {
	if m == nil {
		return
	}
	m.NotesTotal.Inc()
}

// ObserveRequest records one gateway request.
func (m *Metrics) ObserveRequest(route, code string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route, code).Inc()
}

// ChunksIngested records chunks written by one ingestion.
func (m *Metrics) ChunksIngested(n int) {
	if m == nil {
		return
	}
	m.KnowledgeChunksIngested.Add(float64(n))
}
