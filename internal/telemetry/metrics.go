// Package telemetry holds the Prometheus metrics and OpenTelemetry tracing
// setup shared by the engine packages.
package telemetry

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "tabllm"

// Outcome labels.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups every collector tabllm exports. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	modelCalls    *prometheus.CounterVec
	modelDuration *prometheus.HistogramVec
	modelTokens   *prometheus.CounterVec
	batches       *prometheus.CounterVec
	batchRows     *prometheus.HistogramVec
	reduceRounds  *prometheus.HistogramVec
	functionCalls *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them with reg. A nil reg
// falls back to a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		modelCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Model calls by provider, model, operation and outcome.",
		}, []string{"provider", "model", "op", "outcome"}),
		modelDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "model_call_duration_seconds",
			Help:      "Latency of model calls, retries included.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"provider", "op"}),
		modelTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Tokens reported by providers, by kind (prompt or completion).",
		}, []string{"provider", "model", "kind"}),
		batches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Batches sent to a model, by function.",
		}, []string{"function", "oversized"}),
		batchRows: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_rows",
			Help:      "Rows per batch.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"function"}),
		reduceRounds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "reduce_rounds",
			Help:      "Rounds needed by a reduction pass.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
		}, []string{"strategy"}),
		functionCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "function_calls_total",
			Help:      "Function calls by name and error kind.",
		}, []string{"function", "outcome"}),
	}
}

// ObserveModelCall records one model call.
func (m *Metrics) ObserveModelCall(providerName, model, op, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.modelCalls.WithLabelValues(providerName, model, op, outcome).Inc()
	m.modelDuration.WithLabelValues(providerName, op).Observe(d.Seconds())
}

// AddTokens records provider-reported token usage.
func (m *Metrics) AddTokens(providerName, model string, prompt, completion int) {
	if m == nil {
		return
	}
	if prompt > 0 {
		m.modelTokens.WithLabelValues(providerName, model, "prompt").Add(float64(prompt))
	}
	if completion > 0 {
		m.modelTokens.WithLabelValues(providerName, model, "completion").Add(float64(completion))
	}
}

// ObserveBatch records one batch sent by a function.
func (m *Metrics) ObserveBatch(function string, rows int, oversized bool) {
	if m == nil {
		return
	}
	m.batches.WithLabelValues(function, strconv.FormatBool(oversized)).Inc()
	m.batchRows.WithLabelValues(function).Observe(float64(rows))
}

// ObserveReduce records the number of rounds a reduction pass took.
func (m *Metrics) ObserveReduce(strategy string, rounds int) {
	if m == nil {
		return
	}
	m.reduceRounds.WithLabelValues(strategy).Observe(float64(rounds))
}

// CountFunctionCall records a function call. outcome is OutcomeOK or an
// error kind.
func (m *Metrics) CountFunctionCall(function, outcome string) {
	if m == nil {
		return
	}
	m.functionCalls.WithLabelValues(function, outcome).Inc()
}

// RegistryService is the AppContext service name of the shared
// *prometheus.Registry.
const RegistryService = "telemetry.registry"
