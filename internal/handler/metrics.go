package handler

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	activeStreams = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "destiny_http_active_streams",
			Help: "Number of open generation streams by transport.",
		},
		[]string{"transport"},
	)

	streamEventsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "destiny_http_stream_events_sent_total",
			Help: "Total number of generation events written to clients by transport and event type.",
		},
		[]string{"transport", "event"},
	)

	reportsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "destiny_reports_created_total",
		Help: "Total number of created reports.",
	})

	progressUpdatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "destiny_progress_updates_total",
			Help: "Total number of progress updates by status.",
		},
		[]string{"status"},
	)
)
