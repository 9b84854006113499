// Package observability holds the service's Prometheus collectors and the
// error classification used to label them.
package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jobagg"

var (
	providerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "provider_requests_total",
		Help:      "Provider fetches by source, outcome and error type.",
	}, []string{"source", "outcome", "error_type"})

	providerLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_duration_seconds",
		Help:      "Provider fetch latency.",
		Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
	}, []string{"source"})

	searchResults = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "search_results",
		Help:      "Postings returned per aggregated search after filtering.",
		Buckets:   prometheus.ExponentialBuckets(1, 2, 10),
	})

	searchDropped = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "search_dropped_total",
		Help:      "Postings removed by the aggregation pipeline, by reason.",
	}, []string{"reason"})

	ingestUpserts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_upserts_total",
		Help:      "Ingestion upserts by source and result.",
	}, []string{"source", "result"})

	checkpointAdvances = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_checkpoint_advances_total",
		Help:      "Times a source's last_scraped_at moved forward.",
	}, []string{"source"})

	ingestRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ingest_runs_total",
		Help:      "Ingestion runs by outcome.",
	}, []string{"outcome"})

	retentionDeleted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "retention_deleted_total",
		Help:      "Postings removed by the retention sweep.",
	})

	aiCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "ai_calls_total",
		Help:      "Text completion calls by purpose and outcome.",
	}, []string{"purpose", "outcome"})
)

func ObserveProviderFetch(source string, d time.Duration, err error) {
	providerLatency.WithLabelValues(source).Observe(d.Seconds())
	if err != nil {
		providerRequests.WithLabelValues(source, "error", ClassifyFetchError(err)).Inc()
		return
	}
	providerRequests.WithLabelValues(source, "ok", "").Inc()
}

func ObserveSearchResults(n int) {
	searchResults.Observe(float64(n))
}

func AddSearchDropped(reason string, n int) {
	if n <= 0 {
		return
	}
	searchDropped.WithLabelValues(reason).Add(float64(n))
}

// IncUpsert records one ingestion write; result is inserted, updated or failed.
func IncUpsert(source, result string) {
	ingestUpserts.WithLabelValues(source, result).Inc()
}

func IncCheckpointAdvance(source string) {
	checkpointAdvances.WithLabelValues(source).Inc()
}

func IncIngestRun(outcome string) {
	ingestRuns.WithLabelValues(outcome).Inc()
}

func AddRetentionDeleted(n int64) {
	if n <= 0 {
		return
	}
	retentionDeleted.Add(float64(n))
}

func IncAICall(purpose string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	aiCalls.WithLabelValues(purpose, outcome).Inc()
}
