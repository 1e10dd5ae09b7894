package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type MetricsService interface {
	// HTTP metrics
	RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration)

	// Ingestion metrics
	RecordIngest(status string, accepted, rejected int, duration time.Duration)
	RecordRowRejection(kind string)
	RecordEventPublish(status string)

	// Balance metrics
	RecordBalanceQuery(status string, trades, coins int, duration time.Duration)

	// Ledger store metrics
	RecordStoreOperation(operation, status string, duration time.Duration)
	SetLedgerTrades(count int64)

	// Upload housekeeping
	RecordUploadCleanup(removed int)

	Registry() *prometheus.Registry
}

type prometheusMetrics struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	ingestBatchesTotal  *prometheus.CounterVec
	ingestRowsTotal     *prometheus.CounterVec
	ingestDuration      prometheus.Histogram
	rowRejectionsTotal  *prometheus.CounterVec
	eventPublishesTotal *prometheus.CounterVec

	balanceQueriesTotal  *prometheus.CounterVec
	balanceQueryDuration prometheus.Histogram
	balanceTradesFolded  prometheus.Histogram
	balanceCoins         prometheus.Histogram

	storeOperationsTotal   *prometheus.CounterVec
	storeOperationDuration *prometheus.HistogramVec
	ledgerTradesGauge      prometheus.Gauge

	uploadsRemovedTotal prometheus.Counter
}

// NewPrometheusMetrics registers every collector on a private registry, which
// is what /metrics serves. Each call is independent, so tests may build many.
func NewPrometheusMetrics(namespace string) MetricsService {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &prometheusMetrics{registry: reg}
	m.initMetrics(promauto.With(reg), namespace)
	return m
}

func (m *prometheusMetrics) initMetrics(f promauto.Factory, ns string) {
	// HTTP metrics
	m.httpRequestsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	m.httpRequestDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Ingestion metrics
	m.ingestBatchesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ingest_batches_total",
			Help:      "Total number of CSV batches processed",
		},
		[]string{"status"},
	)

	m.ingestRowsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ingest_rows_total",
			Help:      "Total number of CSV rows by outcome",
		},
		[]string{"outcome"},
	)

	m.ingestDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "ingest_duration_seconds",
			Help:      "CSV batch ingestion duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)

	m.rowRejectionsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ingest_row_rejections_total",
			Help:      "Total number of rejected CSV rows by error kind",
		},
		[]string{"kind"},
	)

	m.eventPublishesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ingest_event_publishes_total",
			Help:      "Total number of ingestion events published",
		},
		[]string{"status"},
	)

	// Balance metrics
	m.balanceQueriesTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "balance_queries_total",
			Help:      "Total number of balance queries",
		},
		[]string{"status"},
	)

	m.balanceQueryDuration = f.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "balance_query_duration_seconds",
			Help:      "Balance query duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)

	m.balanceTradesFolded = f.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "balance_trades_folded",
			Help:      "Number of trades replayed per balance query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)

	m.balanceCoins = f.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "balance_coins",
			Help:      "Number of coins in a balance result",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
	)

	// Ledger store metrics
	m.storeOperationsTotal = f.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "ledger_operations_total",
			Help:      "Total number of ledger store operations",
		},
		[]string{"operation", "status"},
	)

	m.storeOperationDuration = f.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: ns,
			Name:      "ledger_operation_duration_seconds",
			Help:      "Ledger store operation duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"operation"},
	)

	m.ledgerTradesGauge = f.NewGauge(
		prometheus.GaugeOpts{
			Namespace: ns,
			Name:      "ledger_trades",
			Help:      "Number of trades stored in the ledger",
		},
	)

	m.uploadsRemovedTotal = f.NewCounter(
		prometheus.CounterOpts{
			Namespace: ns,
			Name:      "upload_files_removed_total",
			Help:      "Total number of stale upload files removed",
		},
	)
}

func (m *prometheusMetrics) RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordIngest(status string, accepted, rejected int, duration time.Duration) {
	m.ingestBatchesTotal.WithLabelValues(status).Inc()
	m.ingestRowsTotal.WithLabelValues("accepted").Add(float64(accepted))
	m.ingestRowsTotal.WithLabelValues("rejected").Add(float64(rejected))
	m.ingestDuration.Observe(duration.Seconds())
}

func (m *prometheusMetrics) RecordRowRejection(kind string) {
	m.rowRejectionsTotal.WithLabelValues(kind).Inc()
}

func (m *prometheusMetrics) RecordEventPublish(status string) {
	m.eventPublishesTotal.WithLabelValues(status).Inc()
}

func (m *prometheusMetrics) RecordBalanceQuery(status string, trades, coins int, duration time.Duration) {
	m.balanceQueriesTotal.WithLabelValues(status).Inc()
	m.balanceQueryDuration.Observe(duration.Seconds())
	if status == "success" {
		m.balanceTradesFolded.Observe(float64(trades))
		m.balanceCoins.Observe(float64(coins))
	}
}

func (m *prometheusMetrics) RecordStoreOperation(operation, status string, duration time.Duration) {
	m.storeOperationsTotal.WithLabelValues(operation, status).Inc()
	m.storeOperationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *prometheusMetrics) SetLedgerTrades(count int64) {
	m.ledgerTradesGauge.Set(float64(count))
}

func (m *prometheusMetrics) RecordUploadCleanup(removed int) {
	m.uploadsRemovedTotal.Add(float64(removed))
}

func (m *prometheusMetrics) Registry() *prometheus.Registry {
	return m.registry
}
