// Package metrics holds the Prometheus collectors for chat turns, agent
// steps and tool calls. All methods are safe on a nil *Metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "sprout"

// Metrics exposes Prometheus collectors that report conversation activity.
type Metrics struct {
	turns        *prometheus.CounterVec
	turnDuration prometheus.Histogram
	turnsActive  prometheus.Gauge
	agentSteps   prometheus.Histogram
	toolCalls    *prometheus.CounterVec
	toolDuration *prometheus.HistogramVec
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
}

// MustNewMetrics constructs and registers the collectors. Registration
// errors panic, like the promauto helpers; give each process (or test) its
// own registry.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Chat turns handled, by outcome (ok or error kind).",
		}, []string{"outcome"}),
		turnDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turn_duration_seconds",
			Help:      "Wall-clock time per chat turn.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		}),
		turnsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "turns_active",
			Help:      "Chat turns currently executing.",
		}),
		agentSteps: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "steps",
			Help:      "Graph node executions per turn.",
			Buckets:   []float64{1, 2, 3, 5, 7, 9, 11, 13, 15, 20},
		}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_calls_total",
			Help:      "Tool calls dispatched, by tool and result status.",
		}, []string{"tool", "status"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "agent",
			Name:      "tool_duration_seconds",
			Help:      "Time spent in tool handlers.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
	}
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "http_requests_total",
		Help:      "HTTP requests served, by route pattern, method and status code.",
	}, []string{"route", "method", "code"})
	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "gateway",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route pattern.",
		Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5, 15, 30, 60},
	}, []string{"route"})
	reg.MustRegister(m.turns, m.turnDuration, m.turnsActive, m.agentSteps, m.toolCalls, m.toolDuration,
		m.httpRequests, m.httpDuration)
	return m
}

// TurnStarted marks a turn as in flight.
func (m *Metrics) TurnStarted() {
	if m == nil {
		return
	}
	m.turnsActive.Inc()
}

// TurnFinished records a completed or failed turn.
func (m *Metrics) TurnFinished(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.turnsActive.Dec()
	m.turns.WithLabelValues(outcome).Inc()
	m.turnDuration.Observe(d.Seconds())
}

// ObserveSteps records how many graph nodes a turn executed.
func (m *Metrics) ObserveSteps(n int) {
	if m == nil {
		return
	}
	m.agentSteps.Observe(float64(n))
}

// ToolCall records one tool dispatch.
func (m *Metrics) ToolCall(tool, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(d.Seconds())
}

// HTTPRequest records one served HTTP request. route is the matched
// pattern, never the raw path, to keep label cardinality bounded.
func (m *Metrics) HTTPRequest(route, method string, code int, d time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(d.Seconds())
}
