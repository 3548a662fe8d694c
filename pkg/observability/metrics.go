package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics implements every hook interface on top of Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	ResolvesTotal      *prometheus.CounterVec
	ResolveDuration    prometheus.Histogram
	ArtifactsResolved  prometheus.Counter
	VersionsResolved   prometheus.Counter
	DownloadsTotal     *prometheus.CounterVec
	DownloadDuration   *prometheus.HistogramVec
	DownloadBytesTotal prometheus.Counter

	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
	CacheWriteBytes  *prometheus.CounterVec

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPErrorsTotal     *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		ResolvesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classpath_resolves_total",
				Help: "Total number of resolution sessions",
			},
			[]string{"status"},
		),
		ResolveDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "classpath_resolve_duration_seconds",
				Help:    "Resolution session duration in seconds",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		ArtifactsResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "classpath_artifacts_resolved_total",
				Help: "Total number of artifacts placed on a classpath",
			},
		),
		VersionsResolved: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "classpath_versions_resolved_total",
				Help: "Total number of ranges and markers resolved to a version",
			},
		),
		DownloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classpath_downloads_total",
				Help: "Total number of artifact downloads",
			},
			[]string{"repo", "status"},
		),
		DownloadDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classpath_download_duration_seconds",
				Help:    "Artifact download duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"repo"},
		),
		DownloadBytesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "classpath_download_bytes_total",
				Help: "Total number of bytes downloaded",
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classpath_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"key_type"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classpath_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"key_type"},
		),
		CacheWriteBytes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classpath_cache_write_bytes_total",
				Help: "Total number of bytes written to the cache",
			},
			[]string{"key_type"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classpath_http_requests_total",
				Help: "Total number of outgoing HTTP requests",
			},
			[]string{"method", "host", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "classpath_http_request_duration_seconds",
				Help:    "Outgoing HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "host"},
		),
		HTTPErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classpath_http_errors_total",
				Help: "Total number of failed outgoing HTTP requests",
			},
			[]string{"method", "host"},
		),
	}

	registry.MustRegister(
		m.ResolvesTotal,
		m.ResolveDuration,
		m.ArtifactsResolved,
		m.VersionsResolved,
		m.DownloadsTotal,
		m.DownloadDuration,
		m.DownloadBytesTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.CacheWriteBytes,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPErrorsTotal,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) OnResolveStart(context.Context, string, int) {}

func (m *Metrics) OnResolveComplete(_ context.Context, _ string, artifacts int, d time.Duration, err error) {
	m.ResolvesTotal.WithLabelValues(status(err)).Inc()
	m.ResolveDuration.Observe(d.Seconds())
	m.ArtifactsResolved.Add(float64(artifacts))
}

func (m *Metrics) OnVersionResolved(context.Context, string, string, string) {
	m.VersionsResolved.Inc()
}

func (m *Metrics) OnDownloadStart(context.Context, string, string) {}

func (m *Metrics) OnDownloadComplete(_ context.Context, repo, _ string, size int64, d time.Duration, err error) {
	m.DownloadsTotal.WithLabelValues(repo, status(err)).Inc()
	m.DownloadDuration.WithLabelValues(repo).Observe(d.Seconds())
	if err == nil && size > 0 {
		m.DownloadBytesTotal.Add(float64(size))
	}
}

func (m *Metrics) OnCacheHit(_ context.Context, keyType string) {
	m.CacheHitsTotal.WithLabelValues(keyType).Inc()
}

func (m *Metrics) OnCacheMiss(_ context.Context, keyType string) {
	m.CacheMissesTotal.WithLabelValues(keyType).Inc()
}

func (m *Metrics) OnCacheSet(_ context.Context, keyType string, size int) {
	m.CacheWriteBytes.WithLabelValues(keyType).Add(float64(size))
}

func (m *Metrics) OnRequest(context.Context, string, string, string) {}

func (m *Metrics) OnResponse(_ context.Context, method, host, _ string, code int, d time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, host, strconv.Itoa(code)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, host).Observe(d.Seconds())
}

func (m *Metrics) OnError(_ context.Context, method, host, _ string, _ error) {
	m.HTTPErrorsTotal.WithLabelValues(method, host).Inc()
}

var (
	_ ResolveHooks = (*Metrics)(nil)
	_ CacheHooks   = (*Metrics)(nil)
	_ HTTPHooks    = (*Metrics)(nil)
)
