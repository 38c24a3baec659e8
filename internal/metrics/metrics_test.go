// ABOUTME: Tests for relay metrics collectors
// ABOUTME: Verifies counters move and that a nil Metrics is safe to call

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m := New()

	m.Persisted(SourceHTTP)
	m.Persisted(SourceWebSocket)
	m.Persisted(SourceWebSocket)
	m.PersistFailed()
	m.Broadcast(3, 1)
	m.ConnectionOpened()
	m.ConnectionOpened()
	m.ConnectionClosed()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.MessagesPersisted.WithLabelValues(SourceHTTP)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.MessagesPersisted.WithLabelValues(SourceWebSocket)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PersistErrors))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.BroadcastDeliveries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.BroadcastPruned))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ConnectionsActive))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.Persisted(SourceHTTP)
		m.PersistFailed()
		m.Broadcast(1, 1)
		m.ConnectionOpened()
		m.ConnectionClosed()
		m.Request("/api/message", http.StatusOK)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.Request("/api/messages", http.StatusOK)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `agentchat_http_requests_total{path="/api/messages",status="200"} 1`)
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	// Two relays in one process must not collide on registration.
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
