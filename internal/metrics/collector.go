// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"

	"github.com/briefkit/briefkit/artifact"
	"github.com/briefkit/briefkit/conversation"
	"github.com/briefkit/briefkit/session"
	"github.com/briefkit/briefkit/types"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpRequestSize     *prometheus.HistogramVec
	httpResponseSize    *prometheus.HistogramVec

	// 解析指标
	parseTotal      prometheus.Counter
	parseDuration   prometheus.Histogram
	parseArtifacts  *prometheus.CounterVec
	parseTruncated  prometheus.Counter
	stageMarkers    prometheus.Counter
	skippedEnvelope prometheus.Counter

	// 会话指标
	artifactEvents   *prometheus.CounterVec
	stageTransitions *prometheus.CounterVec
	activeSessions   prometheus.Gauge
	expiredSessions  prometheus.Counter

	// 压缩指标
	compressionsTotal *prometheus.CounterVec
	messagesRemoved   prometheus.Counter
	tokensSaved       prometheus.Counter
	compressionRatio  prometheus.Histogram

	// 存储指标
	storeOpsTotal   *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	namespace string
	logger    *zap.Logger
}

var (
	_ session.Observer = (*Collector)(nil)
)

// NewCollector 创建指标收集器
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Collector{
		namespace: namespace,
		logger:    logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	c.httpRequestSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_size_bytes",
			Help:      "HTTP request size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	c.httpResponseSize = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_response_size_bytes",
			Help:      "HTTP response size in bytes",
			Buckets:   prometheus.ExponentialBuckets(100, 10, 8),
		},
		[]string{"method", "path"},
	)

	// 解析指标
	c.parseTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parse_total",
		Help:      "Total number of texts parsed",
	})

	c.parseDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "parse_duration_seconds",
		Help:      "Parse duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	})

	c.parseArtifacts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parsed_artifacts_total",
			Help:      "Artifacts extracted, by envelope form",
		},
		[]string{"source"}, // fenced, unfenced
	)

	c.parseTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "parse_truncated_total",
		Help:      "Parses that ended inside an unterminated envelope",
	})

	c.stageMarkers = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "stage_markers_total",
		Help:      "Valid stage markers seen",
	})

	c.skippedEnvelope = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "skipped_envelopes_total",
		Help:      "Envelope candidates rejected as malformed",
	})

	// 会话指标
	c.artifactEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "artifact_events_total",
			Help:      "Artifact upserts and duplicate skips",
		},
		[]string{"kind"},
	)

	c.stageTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_transitions_total",
			Help:      "Stage changes by cause and target stage",
		},
		[]string{"kind", "stage"},
	)

	c.activeSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "active_sessions",
		Help:      "Sessions held in memory",
	})

	c.expiredSessions = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "expired_sessions_total",
		Help:      "Sessions discarded after idling past the TTL",
	})

	// 压缩指标
	c.compressionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "compressions_total",
			Help:      "Compression runs, by whether history was replaced",
		},
		[]string{"applied"},
	)

	c.messagesRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compression_messages_removed_total",
		Help:      "Messages replaced by the digest pair",
	})

	c.tokensSaved = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "compression_tokens_saved_total",
		Help:      "Tokens removed from history by compression",
	})

	c.compressionRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "compression_ratio",
		Help:      "Tokens after divided by tokens before, for applied runs",
		Buckets:   prometheus.LinearBuckets(0.1, 0.1, 10),
	})

	// 存储指标
	c.storeOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_total",
			Help:      "Session store calls",
		},
		[]string{"backend", "operation", "status"},
	)

	c.storeOpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_operation_duration_seconds",
			Help:      "Session store call duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"backend", "operation"},
	)

	// 数据库指标
	c.dbConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	c.logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration, requestSize, responseSize int64) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
	c.httpRequestSize.WithLabelValues(method, path).Observe(float64(requestSize))
	c.httpResponseSize.WithLabelValues(method, path).Observe(float64(responseSize))
}

// =============================================================================
// 🧩 解析指标记录
// =============================================================================

// RecordParse 记录一次解析
func (c *Collector) RecordParse(result artifact.ParseResult, duration time.Duration) {
	c.parseTotal.Inc()
	c.parseDuration.Observe(duration.Seconds())
	c.parseArtifacts.WithLabelValues("fenced").Add(float64(result.Stats.Fenced))
	c.parseArtifacts.WithLabelValues("unfenced").Add(float64(result.Stats.Unfenced))
	c.stageMarkers.Add(float64(result.Stats.Markers))
	c.skippedEnvelope.Add(float64(result.Stats.Skipped))
	if result.Stats.Truncated {
		c.parseTruncated.Inc()
	}
}

// ObserveMemo 注册解析缓存的命中 / 未命中 / 条目数, 每个 Collector 只能调用一次
func (c *Collector) ObserveMemo(memo *artifact.MemoParser) {
	promauto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      "parse_memo_hits_total",
		Help:      "Parse results served from the memo cache",
	}, func() float64 { return float64(memo.Stats().Hits) })

	promauto.NewCounterFunc(prometheus.CounterOpts{
		Namespace: c.namespace,
		Name:      "parse_memo_misses_total",
		Help:      "Parses that missed the memo cache",
	}, func() float64 { return float64(memo.Stats().Misses) })

	promauto.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: c.namespace,
		Name:      "parse_memo_entries",
		Help:      "Entries held by the memo cache",
	}, func() float64 { return float64(memo.Stats().Entries) })
}

// ParserFunc adapts a function to artifact.TextParser.
type ParserFunc func(text string) artifact.ParseResult

// Parse implements artifact.TextParser.
func (f ParserFunc) Parse(text string) artifact.ParseResult { return f(text) }

// WrapParser 返回记录每次解析的 TextParser
func (c *Collector) WrapParser(p artifact.TextParser) artifact.TextParser {
	return ParserFunc(func(text string) artifact.ParseResult {
		start := time.Now()
		result := p.Parse(text)
		c.RecordParse(result, time.Since(start))
		return result
	})
}

// =============================================================================
// 🗂️ 会话指标记录
// =============================================================================

// ArtifactApplied 实现 session.Observer
func (c *Collector) ArtifactApplied(kind session.EventKind) {
	c.artifactEvents.WithLabelValues(string(kind)).Inc()
}

// StageChanged 实现 session.Observer
func (c *Collector) StageChanged(kind session.EventKind, stage types.Stage) {
	c.stageTransitions.WithLabelValues(string(kind), strconv.Itoa(int(stage))).Inc()
}

// SetActiveSessions 记录内存中的会话数
func (c *Collector) SetActiveSessions(n int) {
	c.activeSessions.Set(float64(n))
}

// RecordExpiredSessions 记录过期清理数量
func (c *Collector) RecordExpiredSessions(n int) {
	c.expiredSessions.Add(float64(n))
}

// =============================================================================
// 🗜️ 压缩指标记录
// =============================================================================

// RecordCompression 记录一次压缩
func (c *Collector) RecordCompression(stats conversation.Stats) {
	c.compressionsTotal.WithLabelValues(strconv.FormatBool(stats.Applied)).Inc()
	if !stats.Applied {
		return
	}
	if removed := stats.Original - stats.Compressed; removed > 0 {
		c.messagesRemoved.Add(float64(removed))
	}
	if saved := stats.TokensBefore - stats.TokensAfter; saved > 0 {
		c.tokensSaved.Add(float64(saved))
	}
	if stats.TokensBefore > 0 {
		c.compressionRatio.Observe(float64(stats.TokensAfter) / float64(stats.TokensBefore))
	}
}

// =============================================================================
// 🗄️ 存储指标记录
// =============================================================================

// ObserveStoreOperation 实现 persistence.StoreObserver
func (c *Collector) ObserveStoreOperation(backend, operation string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.storeOpsTotal.WithLabelValues(backend, operation, status).Inc()
	c.storeOpDuration.WithLabelValues(backend, operation).Observe(duration.Seconds())
}

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
