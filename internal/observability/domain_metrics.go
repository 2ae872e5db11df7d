package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	ingestTablesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_ingest_tables_total",
			Help: "Total number of table ingestions by outcome.",
		},
		[]string{"kind", "status"},
	)
	ingestRowsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datachat_ingest_rows_total",
			Help: "Total number of rows committed by ingestion.",
		},
	)
	ingestLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datachat_ingest_latency_ms",
			Help:    "Per-table ingestion latency in milliseconds.",
			Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
	)
	completionRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_completion_requests_total",
			Help: "Total number of completion requests by purpose and status.",
		},
		[]string{"purpose", "status"},
	)
	completionLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datachat_completion_latency_ms",
			Help:    "Completion request latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 60000},
		},
		[]string{"purpose"},
	)
	questionCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_question_cache_total",
			Help: "Question cache lookups by result.",
		},
		[]string{"result"},
	)
	pipelineOutcomesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_pipeline_outcomes_total",
			Help: "Query pipeline runs by terminal state.",
		},
		[]string{"state", "failed_from"},
	)
	pipelineLatencyMs = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datachat_pipeline_latency_ms",
			Help:    "End-to-end query pipeline latency in milliseconds.",
			Buckets: []float64{100, 250, 500, 1000, 2000, 5000, 10000, 20000, 60000},
		},
	)
	exportBytesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datachat_export_bytes_total",
			Help: "Total exported bytes by format.",
		},
		[]string{"format"},
	)
)

func init() {
	prometheus.MustRegister(
		ingestTablesTotal,
		ingestRowsTotal,
		ingestLatencyMs,
		completionRequestsTotal,
		completionLatencyMs,
		questionCacheTotal,
		pipelineOutcomesTotal,
		pipelineLatencyMs,
		exportBytesTotal,
	)
}

func ObserveIngest(kind string, rows int64, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	ingestTablesTotal.WithLabelValues(kind, status).Inc()
	if err == nil && rows > 0 {
		ingestRowsTotal.Add(float64(rows))
	}
	ingestLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveCompletion(purpose string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	completionRequestsTotal.WithLabelValues(purpose, status).Inc()
	completionLatencyMs.WithLabelValues(purpose).Observe(float64(elapsed.Milliseconds()))
}

func ObserveQuestionCache(hit bool) {
	if hit {
		questionCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	questionCacheTotal.WithLabelValues("miss").Inc()
}

func ObservePipeline(state, failedFrom string, elapsed time.Duration) {
	pipelineOutcomesTotal.WithLabelValues(state, failedFrom).Inc()
	pipelineLatencyMs.Observe(float64(elapsed.Milliseconds()))
}

func ObserveExport(format string, bytes int) {
	if bytes > 0 {
		exportBytesTotal.WithLabelValues(format).Add(float64(bytes))
	}
}
