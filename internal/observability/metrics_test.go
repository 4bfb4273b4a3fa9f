package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_ObserveChannel(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.ObserveChannel("audio", 10*time.Millisecond, nil)
	m.ObserveChannel("audio", 20*time.Millisecond, errors.New("boom"))
	m.ObserveChannel("image", time.Millisecond, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelsTotal.WithLabelValues("audio", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelsTotal.WithLabelValues("audio", OutcomeFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChannelsTotal.WithLabelValues("image", OutcomeSuccess)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ChannelDurationSeconds))
}

func TestMetrics_Counters(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.NoteAssembled()
	m.NoteAssembled()
	m.ObserveRequest("/generate-note", "200")
	m.ChunksIngested(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotesTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("/generate-note", "200")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.KnowledgeChunksIngested))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveChannel("audio", time.Second, nil)
		m.NoteAssembled()
		m.ObserveRequest("/health", "200")
		m.ChunksIngested(1)
	})
}

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(false)
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
}
