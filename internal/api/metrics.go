package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	evaluationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kumule_evaluations_total",
		Help: "Record evaluations served, by rate source.",
	}, []string{"source"})

	importsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "kumule_imports_total",
		Help: "Spreadsheet imports, by outcome.",
	}, []string{"outcome"})

	saveFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "kumule_save_failures_total",
		Help: "Database writes that could not be persisted.",
	})

	requestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "kumule_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status"})
)

const (
	importApplied   = "applied"
	importDuplicate = "duplicate"
	importRejected  = "rejected"
	importFailed    = "failed"
)
