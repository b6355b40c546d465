// Package metrics 提供 docuverse 的 Prometheus 业务指标。
//
// 所有指标注册在私有 Registry 上，通过 Handler 暴露给 /metrics。
// 方法允许在 nil 接收者上调用，未配置指标时调用方无需判断。
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace 指标命名空间。
const Namespace = "docuverse"

// Metrics 业务指标集合。
type Metrics struct {
	registry *prometheus.Registry

	queriesTotal       *prometheus.CounterVec
	queryDuration      prometheus.Histogram
	cacheHits          prometheus.Counter
	cacheMisses        prometheus.Counter
	indexBuilds        *prometheus.CounterVec
	indexBuildDuration prometheus.Histogram
	documentsLoaded    prometheus.Counter
	documentsFailed    prometheus.Counter
	llmCalls           *prometheus.CounterVec
	llmCallDuration    prometheus.Histogram
	httpRequests       *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// New 创建指标集合并注册到新的私有 Registry。
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "queries_total",
			Help:      "Total number of questions answered, by outcome.",
		}, []string{"outcome"}),
		queryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "query_duration_seconds",
			Help:      "End-to-end question answering latency.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of response cache hits.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of response cache misses.",
		}),
		indexBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "index_builds_total",
			Help:      "Total number of index builds, by result.",
		}, []string{"result"}),
		indexBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "index_build_duration_seconds",
			Help:      "Index build duration.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		documentsLoaded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "documents_loaded_total",
			Help:      "Total number of files that produced at least one document.",
		}),
		documentsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "documents_failed_total",
			Help:      "Total number of files that produced no document.",
		}),
		llmCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "llm_calls_total",
			Help:      "Total number of language model calls, by result class.",
		}, []string{"class"}),
		llmCallDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "llm_call_duration_seconds",
			Help:      "Language model call duration.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 45, 90},
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	m.registry.MustRegister(
		m.queriesTotal, m.queryDuration,
		m.cacheHits, m.cacheMisses,
		m.indexBuilds, m.indexBuildDuration,
		m.documentsLoaded, m.documentsFailed,
		m.llmCalls, m.llmCallDuration,
		m.httpRequests, m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry 返回私有 Registry。
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler 返回暴露指标的 HTTP handler。
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordQuery 记录一次问答及其结果。
func (m *Metrics) RecordQuery(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.queriesTotal.WithLabelValues(outcome).Inc()
	m.queryDuration.Observe(duration.Seconds())
}

// RecordCache 记录响应缓存命中或未命中。
func (m *Metrics) RecordCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
		return
	}
	m.cacheMisses.Inc()
}

// RecordIndexBuild 记录一次索引构建。
func (m *Metrics) RecordIndexBuild(err error, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.indexBuilds.WithLabelValues(result).Inc()
	m.indexBuildDuration.Observe(duration.Seconds())
}

// RecordDocuments 记录加载成功与失败的文件数。
func (m *Metrics) RecordDocuments(loaded, failed int) {
	if m == nil {
		return
	}
	m.documentsLoaded.Add(float64(loaded))
	m.documentsFailed.Add(float64(failed))
}

// RecordLLMCall 记录模型调用；class 为 "success" 或错误分类名。
func (m *Metrics) RecordLLMCall(class string, duration time.Duration) {
	if m == nil {
		return
	}
	m.llmCalls.WithLabelValues(class).Inc()
	m.llmCallDuration.Observe(duration.Seconds())
}

// RecordHTTPRequest 记录 HTTP 请求。
func (m *Metrics) RecordHTTPRequest(method, route, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}
