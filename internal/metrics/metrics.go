// Package metrics exposes the bot's Prometheus metrics. Every method is safe
// to call on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the collectors registered on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	eventsTotal        *prometheus.CounterVec
	eventDuplicates    prometheus.Counter
	eventFailures      *prometheus.CounterVec
	generationAttempts *prometheus.CounterVec
	generationLatency  *prometheus.HistogramVec
	toolCalls          *prometheus.CounterVec
	toolErrors         *prometheus.CounterVec
	toolLatency        *prometheus.HistogramVec
	tokensTotal        *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	start := time.Now()
	f.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "regenie_uptime_seconds",
		Help: "Seconds since the process started",
	}, func() float64 { return time.Since(start).Seconds() })

	return &Metrics{
		registry: reg,
		eventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regenie_events_total",
			Help: "Slack events received, by kind",
		}, []string{"kind"}),
		eventDuplicates: f.NewCounter(prometheus.CounterOpts{
			Name: "regenie_event_duplicates_total",
			Help: "Slack event retries dropped by the ledger",
		}),
		eventFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regenie_event_failures_total",
			Help: "Slack events whose handling failed, by kind",
		}, []string{"kind"}),
		generationAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regenie_generation_attempts_total",
			Help: "Model generation attempts, by outcome",
		}, []string{"outcome"}),
		generationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regenie_generation_seconds",
			Help:    "Wall time of a generation including retries",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"schema"}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regenie_tool_calls_total",
			Help: "Tool invocations requested by the model",
		}, []string{"tool"}),
		toolErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regenie_tool_errors_total",
			Help: "Tool invocations that returned an error",
		}, []string{"tool"}),
		toolLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "regenie_tool_latency_seconds",
			Help:    "Latency of tool invocations",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		tokensTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "regenie_model_tokens_total",
			Help: "Tokens reported by the model API",
		}, []string{"type"}), // prompt | completion
	}
}

// RegisterActiveTasks exposes fn as the number of in-flight event tasks.
func (m *Metrics) RegisterActiveTasks(fn func() int) {
	if m == nil {
		return
	}
	promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "regenie_active_tasks",
		Help: "Events currently being processed in the background",
	}, func() float64 { return float64(fn()) })
}

func (m *Metrics) EventReceived(kind string) {
	if m == nil {
		return
	}
	m.eventsTotal.WithLabelValues(kind).Inc()
}

func (m *Metrics) EventDuplicate() {
	if m == nil {
		return
	}
	m.eventDuplicates.Inc()
}

func (m *Metrics) EventFailed(kind string) {
	if m == nil {
		return
	}
	m.eventFailures.WithLabelValues(kind).Inc()
}

// GenerationAttempt counts one attempt; outcome is "ok" or "error".
func (m *Metrics) GenerationAttempt(outcome string) {
	if m == nil {
		return
	}
	m.generationAttempts.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GenerationDone(schema string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generationLatency.WithLabelValues(schema).Observe(elapsed.Seconds())
}

func (m *Metrics) ToolCall(tool string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(tool).Inc()
	m.toolLatency.WithLabelValues(tool).Observe(elapsed.Seconds())
	if err != nil {
		m.toolErrors.WithLabelValues(tool).Inc()
	}
}

func (m *Metrics) Tokens(prompt, completion int) {
	if m == nil {
		return
	}
	m.tokensTotal.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensTotal.WithLabelValues("completion").Add(float64(completion))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
