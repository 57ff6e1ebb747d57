package generation

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	runsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "destiny_generation_runs_started_total",
		Help: "Total number of report generation runs started.",
	})
	runsFinished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "destiny_generation_runs_finished_total",
		Help: "Total number of report generation runs finished, partitioned by final status.",
	}, []string{"status"})
	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "destiny_generation_active_runs",
		Help: "Number of report generation runs currently in progress.",
	})
	runDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "destiny_generation_run_duration_seconds",
		Help:    "Duration of report generation runs.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
	}, []string{"status"})
	chunksReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "destiny_generation_chunks_total",
		Help: "Total number of text chunks received from the token source.",
	})
	flushesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "destiny_generation_flushes_total",
		Help: "Total number of successful report flushes, partitioned by reason.",
	}, []string{"reason"})
	flushFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "destiny_generation_flush_failures_total",
		Help: "Total number of failed report flushes, partitioned by reason.",
	}, []string{"reason"})
	clientDisconnects = promauto.NewCounter(prometheus.CounterOpts{
		Name: "destiny_generation_client_disconnects_total",
		Help: "Total number of runs whose client output detached before the run ended.",
	})
	previewsProduced = promauto.NewCounter(prometheus.CounterOpts{
		Name: "destiny_generation_previews_total",
		Help: "Total number of report previews produced.",
	})
)
