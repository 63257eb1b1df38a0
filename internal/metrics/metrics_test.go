package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := MustNewMetrics(reg)

	m.TurnStarted()
	m.TurnFinished("ok", 2*time.Second)
	m.TurnStarted()
	m.TurnFinished("timeout", 30*time.Second)
	m.ObserveSteps(3)
	m.ToolCall("get_schedules", "ok", 10*time.Millisecond)
	m.ToolCall("get_schedules", "ok", 12*time.Millisecond)
	m.ToolCall("create_schedule", "role_forbidden", 0)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.turns.WithLabelValues("timeout")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.turnsActive))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("get_schedules", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.toolCalls.WithLabelValues("create_schedule", "role_forbidden")))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "sprout_chat_turn_duration_seconds")
	assert.Contains(t, names, "sprout_agent_steps")
}

func TestHTTPRequest(t *testing.T) {
	m := MustNewMetrics(prometheus.NewRegistry())

	m.HTTPRequest("/api/chat/{threadId}", "POST", 200, 40*time.Millisecond)
	m.HTTPRequest("/api/chat/{threadId}", "POST", 200, 50*time.Millisecond)
	m.HTTPRequest("/api/chat/{threadId}", "POST", 404, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/chat/{threadId}", "POST", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.httpRequests.WithLabelValues("/api/chat/{threadId}", "POST", "404")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.TurnStarted()
		m.TurnFinished("ok", time.Second)
		m.ObserveSteps(1)
		m.ToolCall("x", "ok", 0)
		m.HTTPRequest("/health", "GET", 200, 0)
	})
}
