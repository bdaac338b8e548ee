package observability

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/rubric-backend/internal/platform/logger"
)

const namespace = "rubric"

// Metrics owns every prometheus collector the service exports. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	apiRequests *prometheus.CounterVec
	apiLatency  *prometheus.HistogramVec
	apiInflight prometheus.Gauge

	llmRequests *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec
	llmTokens   *prometheus.CounterVec

	generations       *prometheus.CounterVec
	generationRetries *prometheus.CounterVec
	generationLatency *prometheus.HistogramVec

	indexInserts     prometheus.Counter
	indexRecords     prometheus.Gauge
	indexCompactions *prometheus.CounterVec

	ingestDocuments *prometheus.CounterVec
	segmentUnits    prometheus.Histogram
	scoresRecorded  prometheus.Counter

	dbStats   *prometheus.GaugeVec
	redisUp   prometheus.Gauge
	redisPing prometheus.Gauge
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init builds the process-wide Metrics once. Disabled metrics leave Current() nil.
func Init(log *logger.Logger, enabled bool) *Metrics {
	if !enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = NewMetrics(prometheus.NewRegistry())
		if log != nil {
			log.Info("prometheus metrics initialized")
		}
	})
	return instance
}

// NewMetrics registers all collectors on reg. Tests pass a fresh registry.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	auto := promauto.With(reg)

	return &Metrics{
		registry: reg,
		apiRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "api_requests_total",
			Help: "Total API requests by method/route/status.",
		}, []string{"method", "route", "status"}),
		apiLatency: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "api_request_duration_seconds",
			Help:    "API request latency in seconds by method/route/status.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"method", "route", "status"}),
		apiInflight: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "api_inflight_requests",
			Help: "In-flight API requests.",
		}),
		llmRequests: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_requests_total",
			Help: "LLM requests by model/endpoint/status.",
		}, []string{"model", "endpoint", "status"}),
		llmLatency: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "llm_request_duration_seconds",
			Help:    "LLM request latency in seconds by model/endpoint/status.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"model", "endpoint", "status"}),
		llmTokens: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "llm_tokens_total",
			Help: "LLM tokens by model/direction.",
		}, []string{"model", "direction"}),
		generations: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "generations_total",
			Help: "Rubric generations by artifact kind and outcome.",
		}, []string{"kind", "outcome"}),
		generationRetries: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "generation_retries_total",
			Help: "Extra model round-trips by artifact kind and reason.",
		}, []string{"kind", "reason"}),
		generationLatency: auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "generation_duration_seconds",
			Help:    "End-to-end rubric generation latency in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"kind", "outcome"}),
		indexInserts: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "index_inserts_total",
			Help: "Embedding records appended to the index.",
		}),
		indexRecords: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "index_records",
			Help: "Embedding records currently held by the index.",
		}),
		indexCompactions: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "index_compactions_total",
			Help: "Index snapshot compactions by status.",
		}, []string{"status"}),
		ingestDocuments: auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "ingest_documents_total",
			Help: "Normalized documents by format/status.",
		}, []string{"format", "status"}),
		segmentUnits: auto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "segment_units",
			Help:    "Lesson units produced per segmented document.",
			Buckets: []float64{0, 1, 2, 3, 4, 6, 8, 12},
		}),
		scoresRecorded: auto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "scores_recorded_total",
			Help: "Score entries appended to the ledger.",
		}),
		dbStats: auto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "db_pool",
			Help: "database/sql pool stats by stat.",
		}, []string{"stat"}),
		redisUp: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "redis_up",
			Help: "1 when the last redis ping succeeded.",
		}),
		redisPing: auto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "redis_ping_seconds",
			Help: "Latency of the last redis ping.",
		}),
	}
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func orUnknown(v, fallback string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return fallback
	}
	return v
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	method = orUnknown(method, "UNKNOWN")
	route = orUnknown(route, "unknown")
	status = orUnknown(status, "0")
	m.apiRequests.WithLabelValues(method, route, status).Inc()
	m.apiLatency.WithLabelValues(method, route, status).Observe(dur.Seconds())
}

func (m *Metrics) APIInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) APIInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) ObserveLLMRequest(model, endpoint, status string, dur time.Duration, inputTokens, outputTokens int) {
	if m == nil {
		return
	}
	model = orUnknown(model, "unknown")
	endpoint = orUnknown(endpoint, "unknown")
	status = orUnknown(status, "0")
	m.llmRequests.WithLabelValues(model, endpoint, status).Inc()
	if dur > 0 {
		m.llmLatency.WithLabelValues(model, endpoint, status).Observe(dur.Seconds())
	}
	if inputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		m.llmTokens.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
}

// ObserveGeneration records one Synthesize call. outcome is "ok" or an apierr kind.
func (m *Metrics) ObserveGeneration(kind, outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	kind = orUnknown(kind, "unknown")
	outcome = orUnknown(outcome, "unknown")
	m.generations.WithLabelValues(kind, outcome).Inc()
	m.generationLatency.WithLabelValues(kind, outcome).Observe(dur.Seconds())
}

func (m *Metrics) IncGenerationRetry(kind, reason string) {
	if m == nil {
		return
	}
	m.generationRetries.WithLabelValues(orUnknown(kind, "unknown"), orUnknown(reason, "unknown")).Inc()
}

func (m *Metrics) ObserveIndexInsert(size int) {
	if m == nil {
		return
	}
	m.indexInserts.Inc()
	m.indexRecords.Set(float64(size))
}

func (m *Metrics) SetIndexSize(size int) {
	if m == nil {
		return
	}
	m.indexRecords.Set(float64(size))
}

func (m *Metrics) IncIndexCompaction(status string) {
	if m == nil {
		return
	}
	m.indexCompactions.WithLabelValues(orUnknown(status, "unknown")).Inc()
}

func (m *Metrics) IncIngest(format, status string) {
	if m == nil {
		return
	}
	m.ingestDocuments.WithLabelValues(orUnknown(format, "unknown"), orUnknown(status, "unknown")).Inc()
}

func (m *Metrics) ObserveSegmentUnits(n int) {
	if m == nil {
		return
	}
	m.segmentUnits.Observe(float64(n))
}

func (m *Metrics) IncScoresRecorded() {
	if m == nil {
		return
	}
	m.scoresRecorded.Inc()
}

// StartDBCollector samples database/sql pool stats every interval until ctx ends.
func (m *Metrics) StartDBCollector(ctx context.Context, log *logger.Logger, db *gorm.DB, interval time.Duration) {
	if m == nil || db == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: db stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.dbStats.WithLabelValues("open_connections").Set(float64(stats.OpenConnections))
				m.dbStats.WithLabelValues("in_use").Set(float64(stats.InUse))
				m.dbStats.WithLabelValues("idle").Set(float64(stats.Idle))
				m.dbStats.WithLabelValues("wait_count").Set(float64(stats.WaitCount))
				m.dbStats.WithLabelValues("wait_duration_seconds").Set(stats.WaitDuration.Seconds())
			}
		}
	}()
}

// StartRedisCollector pings rdb every interval until ctx ends.
func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, rdb *redis.Client, interval time.Duration) {
	if m == nil || rdb == nil {
		return
	}
	if interval <= 0 {
		interval = 10 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}
