package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestMetricsRecord(t *testing.T) {
	m := New()

	m.AlertCreated(3)
	m.AlertTransition("accept", nil)
	m.AlertTransition("accept", errors.New("taken"))
	m.EventPublished("new-emergency")
	m.RecordHTTPRequest("POST", "/api/emergency/alert", "201", 20*time.Millisecond)

	body := scrape(t, m)
	assert.Contains(t, body, "sos_alerts_created_total 1")
	assert.Contains(t, body, `sos_alert_transitions_total{operation="accept",result="ok"} 1`)
	assert.Contains(t, body, `sos_alert_transitions_total{operation="accept",result="error"} 1`)
	assert.Contains(t, body, `sos_realtime_events_total{event="new-emergency"} 1`)
	assert.Contains(t, body, `http_requests_total{method="POST",path="/api/emergency/alert",status="201"} 1`)
}

func TestMetricsInstancesAreIndependent(t *testing.T) {
	m := New()
	other := New()
	m.ConnectionOpened()

	assert.Contains(t, scrape(t, m), "sos_ws_connections 1")
	assert.Contains(t, scrape(t, other), "sos_ws_connections 0")
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.AlertCreated(1)
		m.AlertTransition("cancel", nil)
		m.EventPublished("x")
		m.NotificationFailed("sms")
		m.RecordHTTPRequest("GET", "/", "200", time.Millisecond)
	})
}
