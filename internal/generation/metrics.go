package generation

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	generationRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simulation_generation_requests_total",
			Help: "Total number of generation backend calls.",
		},
		[]string{"capability", "backend", "status"},
	)
	generationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simulation_generation_duration_seconds",
			Help:    "Histogram of generation backend call durations.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		},
		[]string{"capability", "backend"},
	)
	generationFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simulation_generation_fallbacks_total",
			Help: "Calls served by the fake backend after the live backend failed.",
		},
		[]string{"capability"},
	)
	aiTokens = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "simulation_ai_tokens",
			Help:    "Histogram of token counts per text generation call.",
			Buckets: prometheus.LinearBuckets(250, 250, 20),
		},
		[]string{"model", "kind"}, // kind: prompt | completion
	)
	aiEstimatedCostUSD = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "simulation_ai_estimated_cost_usd_total",
			Help: "Estimated total cost of AI text requests in USD.",
		},
		[]string{"model"},
	)
)

// MetricsRecordCall записывает результат одного вызова бэкенда.
func MetricsRecordCall(capability, backend string, err error, duration time.Duration) {
	status := "success"
	if err != nil {
		status = "error"
	}
	generationRequestsTotal.With(prometheus.Labels{"capability": capability, "backend": backend, "status": status}).Inc()
	generationDuration.With(prometheus.Labels{"capability": capability, "backend": backend}).Observe(duration.Seconds())
}

// MetricsRecordFallback отмечает переключение на fake-бэкенд.
func MetricsRecordFallback(capability string) {
	generationFallbacksTotal.With(prometheus.Labels{"capability": capability}).Inc()
}

// MetricsRecordUsage записывает токены и стоимость текстового вызова.
func MetricsRecordUsage(model string, usage UsageInfo) {
	if usage.PromptTokens > 0 {
		aiTokens.With(prometheus.Labels{"model": model, "kind": "prompt"}).Observe(float64(usage.PromptTokens))
	}
	if usage.CompletionTokens > 0 {
		aiTokens.With(prometheus.Labels{"model": model, "kind": "completion"}).Observe(float64(usage.CompletionTokens))
	}
	if usage.EstimatedCostUSD > 0 {
		aiEstimatedCostUSD.With(prometheus.Labels{"model": model}).Add(usage.EstimatedCostUSD)
	}
}
