package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var retryAttemptsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "simulation_retry_attempts_total",
		Help: "Attempts made by the retry executor, by operation and outcome (success, retry, fatal, exhausted).",
	},
	[]string{"operation", "outcome"},
)

func recordAttempt(operation, outcome string) {
	retryAttemptsTotal.With(prometheus.Labels{"operation": operation, "outcome": outcome}).Inc()
}
