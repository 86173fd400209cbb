package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PipelineRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enrichment_pipeline_runs_total",
		Help: "Pipeline runs by pipeline name and terminal status",
	}, []string{"pipeline", "status"})

	ChunkDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enrichment_chunk_duration_seconds",
		Help:    "Per-chunk formatting call latency",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	})

	LLMCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llm_call_duration_seconds",
		Help:    "Completion call latency by engine",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
	}, []string{"engine"})

	LLMErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "llm_errors_total",
		Help: "Completion call errors by engine and error type",
	}, []string{"engine", "error_type"})

	ProgressSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "progress_subscribers_active",
		Help: "Currently registered progress observers",
	})

	ProgressEvents = promauto.NewCounter(prometheus.CounterOpts{
		Name: "progress_events_published_total",
		Help: "Progress events delivered to observers",
	})

	SpansFormatted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spans_formatted_total",
		Help: "Root spans with formatted fields persisted",
	})

	CategoriesSwept = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orphan_categories_swept_total",
		Help: "Orphan category rows removed by the sweeper",
	})
)
