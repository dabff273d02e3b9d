package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	stepOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hackstage_pipeline_step_outcomes_total",
		Help: "Pipeline step results by outcome (uploaded, polling, retry, fatal, complete).",
	}, []string{"outcome"})

	summaryRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hackstage_pipeline_summary_rejections_total",
		Help: "Summaries rejected because no returned document belonged to the submission.",
	})

	forcedIndexed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hackstage_pipeline_forced_indexed_total",
		Help: "Times indexing was assumed complete after the grace period elapsed.",
	})

	attemptsExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "hackstage_pipeline_attempts_exhausted_total",
		Help: "Submissions that proceeded to summary generation after the polling attempt ceiling.",
	})

	uploadedFiles = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "hackstage_pipeline_uploaded_files",
		Help:    "Files uploaded to object storage per submission.",
		Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
)
