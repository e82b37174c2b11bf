package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the observatory services.
// Metrics are organized by subsystem: harvest, promotion, reconciliation,
// indicators, search gateway, and index sync. All counters and histograms
// are registered via promauto for automatic registration with the default
// Prometheus registry.
type Metrics struct {
	// HarvestPagesFetched counts pages pulled from upstream sources, labeled by source.
	HarvestPagesFetched *prometheus.CounterVec

	// HarvestRecordsSeen counts raw records written or refreshed, labeled by source.
	HarvestRecordsSeen *prometheus.CounterVec

	// HarvestFailures counts per-record harvest failures, labeled by source.
	HarvestFailures *prometheus.CounterVec

	// SourceRequestsTotal counts HTTP requests to upstream APIs, labeled by source and endpoint.
	SourceRequestsTotal *prometheus.CounterVec

	// SourceRequestsFailed counts failed HTTP requests, labeled by source, endpoint, and error type.
	SourceRequestsFailed *prometheus.CounterVec

	// SourceRequestDuration observes upstream request duration in seconds.
	SourceRequestDuration *prometheus.HistogramVec

	// SourceRateLimited counts rate-limited responses from upstream APIs, labeled by source.
	SourceRateLimited *prometheus.CounterVec

	// PromotionOutcomes counts promotion results, labeled by entity and outcome (created, updated, skipped, failed).
	PromotionOutcomes *prometheus.CounterVec

	// PromotionBatchDuration observes the duration of one promotion batch in seconds.
	PromotionBatchDuration prometheus.Histogram

	// UnresolvedOfficial gauges the number of affiliations without an official institution link.
	UnresolvedOfficial prometheus.Gauge

	// UnresolvedCountry gauges the number of affiliations without a country link.
	UnresolvedCountry prometheus.Gauge

	// ReconciliationPassRows counts rows resolved per reconciliation pass.
	ReconciliationPassRows *prometheus.CounterVec

	// IndicatorsGenerated counts indicator artifacts persisted, labeled by measurement.
	IndicatorsGenerated *prometheus.CounterVec

	// IndicatorsSkipped counts generation runs below the minimum item threshold, labeled by measurement.
	IndicatorsSkipped *prometheus.CounterVec

	// IndicatorDuration observes generation duration in seconds, labeled by measurement.
	IndicatorDuration *prometheus.HistogramVec

	// GatewayQueries counts search gateway queries, labeled by operation and data source.
	GatewayQueries *prometheus.CounterVec

	// GatewayQueryDuration observes gateway query duration in seconds, labeled by operation.
	GatewayQueryDuration *prometheus.HistogramVec

	// GatewayCacheHits counts filter cache hits.
	GatewayCacheHits prometheus.Counter

	// GatewayCacheMisses counts filter cache misses.
	GatewayCacheMisses prometheus.Counter

	// IndexSyncOps counts index sync operations, labeled by operation (upsert, delete) and result.
	IndexSyncOps *prometheus.CounterVec

	// BulkDocumentsIndexed counts documents written through bulk indexing.
	BulkDocumentsIndexed prometheus.Counter

	// EventsPublished counts entity mutation events written to the broker, labeled by event type.
	EventsPublished *prometheus.CounterVec

	// EventsConsumed counts entity mutation events handled by the sync listener, labeled by event type and result.
	EventsConsumed *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Harvest
		HarvestPagesFetched: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvest_pages_fetched_total",
			Help:      "Total number of pages fetched from upstream sources",
		}, []string{"source"}),
		HarvestRecordsSeen: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvest_records_seen_total",
			Help:      "Total number of raw records written or refreshed",
		}, []string{"source"}),
		HarvestFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "harvest_failures_total",
			Help:      "Total number of per-record harvest failures",
		}, []string{"source"}),

		// Upstream requests
		SourceRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Total number of requests to upstream APIs",
		}, []string{"source", "endpoint"}),
		SourceRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_failed_total",
			Help:      "Total number of failed requests to upstream APIs",
		}, []string{"source", "endpoint", "error_type"}),
		SourceRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_request_duration_seconds",
			Help:      "Duration of requests to upstream APIs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"source", "endpoint"}),
		SourceRateLimited: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_rate_limited_total",
			Help:      "Total number of rate limit responses from upstream APIs",
		}, []string{"source"}),

		// Promotion
		PromotionOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "promotion_outcomes_total",
			Help:      "Total number of raw record promotions by entity and outcome",
		}, []string{"entity", "outcome"}),
		PromotionBatchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "promotion_batch_duration_seconds",
			Help:      "Duration of one promotion batch in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}),

		// Reconciliation
		UnresolvedOfficial: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "affiliations_unresolved_official",
			Help:      "Number of affiliations without an official institution link",
		}),
		UnresolvedCountry: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "affiliations_unresolved_country",
			Help:      "Number of affiliations without a country link",
		}),
		ReconciliationPassRows: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconciliation_pass_rows_total",
			Help:      "Total number of affiliation rows resolved per pass",
		}, []string{"pass"}),

		// Indicators
		IndicatorsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicators_generated_total",
			Help:      "Total number of indicator artifacts persisted",
		}, []string{"measurement"}),
		IndicatorsSkipped: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indicators_skipped_total",
			Help:      "Total number of generation runs below the minimum item threshold",
		}, []string{"measurement"}),
		IndicatorDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "indicator_duration_seconds",
			Help:      "Duration of indicator generation in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
		}, []string{"measurement"}),

		// Search gateway
		GatewayQueries: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_queries_total",
			Help:      "Total number of search gateway queries",
		}, []string{"operation", "data_source"}),
		GatewayQueryDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "gateway_query_duration_seconds",
			Help:      "Duration of search gateway queries in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation"}),
		GatewayCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_cache_hits_total",
			Help:      "Total number of filter cache hits",
		}),
		GatewayCacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "gateway_cache_misses_total",
			Help:      "Total number of filter cache misses",
		}),

		// Index sync
		IndexSyncOps: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_sync_ops_total",
			Help:      "Total number of index sync operations by operation and result",
		}, []string{"operation", "result"}),
		BulkDocumentsIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bulk_documents_indexed_total",
			Help:      "Total number of documents written through bulk indexing",
		}),

		// Eventing
		EventsPublished: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Total number of entity mutation events written to the broker",
		}, []string{"event_type"}),
		EventsConsumed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_consumed_total",
			Help:      "Total number of entity mutation events handled by the sync listener",
		}, []string{"event_type", "result"}),
	}
}

// RecordHarvestPage records one fetched page and its record count.
func (m *Metrics) RecordHarvestPage(source string, records int) {
	m.HarvestPagesFetched.WithLabelValues(source).Inc()
	m.HarvestRecordsSeen.WithLabelValues(source).Add(float64(records))
}

// RecordHarvestFailure records a per-record harvest failure.
func (m *Metrics) RecordHarvestFailure(source string) {
	m.HarvestFailures.WithLabelValues(source).Inc()
}

// RecordSourceRequest records a request to an upstream API.
func (m *Metrics) RecordSourceRequest(source, endpoint string, durationSeconds float64) {
	m.SourceRequestsTotal.WithLabelValues(source, endpoint).Inc()
	m.SourceRequestDuration.WithLabelValues(source, endpoint).Observe(durationSeconds)
}

// RecordSourceRequestFailed records a failed request to an upstream API.
func (m *Metrics) RecordSourceRequestFailed(source, endpoint, errorType string) {
	m.SourceRequestsFailed.WithLabelValues(source, endpoint, errorType).Inc()
}

// RecordSourceRateLimited records a rate limit response from an upstream API.
func (m *Metrics) RecordSourceRateLimited(source string) {
	m.SourceRateLimited.WithLabelValues(source).Inc()
}

// RecordPromotion records one promotion outcome.
func (m *Metrics) RecordPromotion(entity, outcome string) {
	m.PromotionOutcomes.WithLabelValues(entity, outcome).Inc()
}

// RecordPromotionBatch records the duration of one promotion batch.
func (m *Metrics) RecordPromotionBatch(durationSeconds float64) {
	m.PromotionBatchDuration.Observe(durationSeconds)
}

// RecordUnresolved sets the current unresolved affiliation gauges.
func (m *Metrics) RecordUnresolved(official, country int64) {
	m.UnresolvedOfficial.Set(float64(official))
	m.UnresolvedCountry.Set(float64(country))
}

// RecordReconciliationPass records rows resolved by one pass.
func (m *Metrics) RecordReconciliationPass(pass string, rows int64) {
	m.ReconciliationPassRows.WithLabelValues(pass).Add(float64(rows))
}

// RecordIndicatorGenerated records a persisted indicator artifact.
func (m *Metrics) RecordIndicatorGenerated(measurement string, durationSeconds float64) {
	m.IndicatorsGenerated.WithLabelValues(measurement).Inc()
	m.IndicatorDuration.WithLabelValues(measurement).Observe(durationSeconds)
}

// RecordIndicatorSkipped records a generation run below the minimum item threshold.
func (m *Metrics) RecordIndicatorSkipped(measurement string) {
	m.IndicatorsSkipped.WithLabelValues(measurement).Inc()
}

// RecordGatewayQuery records one gateway query.
func (m *Metrics) RecordGatewayQuery(operation, dataSource string, durationSeconds float64) {
	m.GatewayQueries.WithLabelValues(operation, dataSource).Inc()
	m.GatewayQueryDuration.WithLabelValues(operation).Observe(durationSeconds)
}

// RecordCacheHit records a filter cache hit.
func (m *Metrics) RecordCacheHit() {
	m.GatewayCacheHits.Inc()
}

// RecordCacheMiss records a filter cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.GatewayCacheMisses.Inc()
}

// RecordIndexSync records one index sync operation.
func (m *Metrics) RecordIndexSync(operation, result string) {
	m.IndexSyncOps.WithLabelValues(operation, result).Inc()
}

// RecordBulkIndexed records documents written through bulk indexing.
// RecordEventPublished records one mutation event written to the broker.
func (m *Metrics) RecordEventPublished(eventType string) {
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventConsumed records one mutation event handled by the listener.
func (m *Metrics) RecordEventConsumed(eventType, result string) {
	m.EventsConsumed.WithLabelValues(eventType, result).Inc()
}

func (m *Metrics) RecordBulkIndexed(count int) {
	m.BulkDocumentsIndexed.Add(float64(count))
}
