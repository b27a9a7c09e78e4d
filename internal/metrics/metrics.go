package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorgateway_requests_total",
			Help: "Total number of chat requests processed",
		},
		[]string{"intent", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutorgateway_request_duration_seconds",
			Help:    "End-to-end request duration in seconds",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"intent"},
	)

	CannedReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorgateway_canned_replies_total",
			Help: "Replies served locally without a model call",
		},
		[]string{"kind"},
	)

	ModelLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tutorgateway_model_latency_seconds",
			Help:    "Completion call latency in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"provider", "model"},
	)

	TokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorgateway_tokens_total",
			Help: "Tokens consumed by completion calls",
		},
		[]string{"provider", "model", "type"},
	)

	IdempotencyHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutorgateway_idempotency_hits_total",
			Help: "Duplicate submissions absorbed by the idempotency cache",
		},
	)

	IdempotencyMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutorgateway_idempotency_misses_total",
			Help: "Idempotency lookups that found no cached reply",
		},
	)

	ContextHints = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutorgateway_context_hints_total",
			Help: "Follow-up turns resolved to a topic hint",
		},
	)

	NormalizerRewrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutorgateway_normalizer_rewrites_total",
			Help: "Model replies changed by at least one normalizer pass",
		},
	)

	ProviderErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tutorgateway_provider_errors_total",
			Help: "Completion call failures",
		},
		[]string{"provider", "error_type"},
	)

	RateLimitHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tutorgateway_rate_limit_hits_total",
			Help: "Requests rejected by the rate limiter",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "tutorgateway_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"provider"},
	)
)

func RecordRequest(intent, status string, durationSec float64) {
	RequestsTotal.WithLabelValues(intent, status).Inc()
	RequestDuration.WithLabelValues(intent).Observe(durationSec)
}

func RecordModelCall(provider, model string, durationSec float64, promptTokens, completionTokens int) {
	ModelLatency.WithLabelValues(provider, model).Observe(durationSec)
	TokensTotal.WithLabelValues(provider, model, "input").Add(float64(promptTokens))
	TokensTotal.WithLabelValues(provider, model, "output").Add(float64(completionTokens))
}

func RecordProviderError(provider, errorType string) {
	ProviderErrors.WithLabelValues(provider, errorType).Inc()
}

func SetCircuitBreakerState(provider string, state int) {
	CircuitBreakerState.WithLabelValues(provider).Set(float64(state))
}
