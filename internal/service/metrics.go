package service

import (
	"simulation-server/internal/models"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var videoTransitionsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "simulation_video_transitions_total",
		Help: "Video job state transitions by resulting status.",
	},
	[]string{"status"},
)

func recordVideoTransition(status models.VideoStatus) {
	videoTransitionsTotal.WithLabelValues(string(status)).Inc()
}
