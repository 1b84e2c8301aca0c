// Package metrics records collection runs as Prometheus metrics.
//
// A [Recorder] implements the pipeline, cache and HTTP hooks of package
// observability on a private registry. A batch job has no scrape endpoint
// of its own, so the registry is either pushed to a Pushgateway at the end
// of a run or written for the node_exporter textfile collector:
//
//	rec := metrics.New()
//	observability.SetPipelineHooks(rec)
//	observability.SetCacheHooks(rec)
//	observability.SetHTTPHooks(rec)
//	...
//	rec.Push(ctx, "http://pushgateway:9091", "depglobe", runID)
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"

	"github.com/matzehuels/depglobe/pkg/observability"
)

const namespace = "depglobe"

// Recorder collects run metrics. It is safe for concurrent use.
type Recorder struct {
	registry *prometheus.Registry

	repositories prometheus.Counter
	dependents   prometheus.Counter
	usages       prometheus.Counter
	skipped      *prometheus.CounterVec
	rateWaits    prometheus.Counter
	rateSeconds  prometheus.Counter

	cacheLookups *prometheus.CounterVec
	cacheBytes   *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	httpErrors   *prometheus.CounterVec

	lastUsages    prometheus.Gauge
	lastDuration  prometheus.Gauge
	lastSuccess   prometheus.Gauge
	lastTimestamp prometheus.Gauge
	runInfo       *prometheus.GaugeVec

	served *prometheus.CounterVec
}

// New creates a Recorder with all metrics registered on a fresh registry.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),

		repositories: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "repositories_total",
			Help: "Repositories whose dependents were walked.",
		}),
		dependents: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "dependents_total",
			Help: "Dependent entries seen, before deduplication.",
		}),
		usages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "usages_total",
			Help: "Dependent accounts resolved to coordinates.",
		}),
		skipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "skipped_total",
			Help: "Dependent accounts skipped, by reason.",
		}, []string{"reason"}),
		rateWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rate_limit_waits_total",
			Help: "Sleeps caused by upstream rate limits.",
		}),
		rateSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "rate_limit_wait_seconds_total",
			Help: "Seconds spent sleeping through rate limits.",
		}),

		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_lookups_total",
			Help: "Cache lookups by cache and result.",
		}, []string{"cache", "result"}),
		cacheBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "cache_written_bytes_total",
			Help: "Bytes written to caches.",
		}, []string{"cache"}),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_requests_total",
			Help: "Upstream HTTP responses by host and status code.",
		}, []string{"host", "code"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "http_request_duration_seconds",
			Help:    "Upstream HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"host"}),
		httpErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "http_errors_total",
			Help: "Upstream HTTP requests that failed without a response.",
		}, []string{"host"}),

		lastUsages: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_usages",
			Help: "Usages saved by the last run.",
		}),
		lastDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_duration_seconds",
			Help: "Duration of the last run.",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_success",
			Help: "1 if the last run saved its artifact, 0 otherwise.",
		}),
		lastTimestamp: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
		runInfo: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "run_info",
			Help: "Identifies the run that produced these metrics.",
		}, []string{"run_id"}),

		served: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "served_requests_total",
			Help: "Requests answered by depglobe serve, by route and status code.",
		}, []string{"route", "code"}),
	}

	r.registry.MustRegister(
		r.repositories, r.dependents, r.usages, r.skipped, r.rateWaits, r.rateSeconds,
		r.cacheLookups, r.cacheBytes,
		r.httpRequests, r.httpDuration, r.httpErrors,
		r.lastUsages, r.lastDuration, r.lastSuccess, r.lastTimestamp, r.runInfo,
		r.served,
	)
	return r
}

// Registry returns the recorder's registry.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// SetRunID labels the metrics with the run that produced them.
func (r *Recorder) SetRunID(runID string) {
	r.runInfo.Reset()
	r.runInfo.WithLabelValues(runID).Set(1)
}

// Push sends the registry to a Pushgateway under job, replacing the
// previous push for that job.
func (r *Recorder) Push(ctx context.Context, url, job, runID string) error {
	if runID != "" {
		r.SetRunID(runID)
	}
	return push.New(url, job).Gatherer(r.registry).PushContext(ctx)
}

// WriteTextfile writes the registry to path for the node_exporter textfile
// collector. The file is written atomically.
func (r *Recorder) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.registry)
}

// =============================================================================
// observability hooks
// =============================================================================

func (r *Recorder) OnRepository(context.Context, string) { r.repositories.Inc() }

func (r *Recorder) OnDependent(context.Context, string, string) { r.dependents.Inc() }

func (r *Recorder) OnUsage(context.Context, string, string) { r.usages.Inc() }

func (r *Recorder) OnSkip(_ context.Context, _ string, reason string) {
	r.skipped.WithLabelValues(reason).Inc()
}

func (r *Recorder) OnRateLimit(_ context.Context, wait time.Duration) {
	r.rateWaits.Inc()
	r.rateSeconds.Add(wait.Seconds())
}

func (r *Recorder) OnRunComplete(_ context.Context, usages int, duration time.Duration, err error) {
	r.lastUsages.Set(float64(usages))
	r.lastDuration.Set(duration.Seconds())
	r.lastTimestamp.SetToCurrentTime()
	if err != nil {
		r.lastSuccess.Set(0)
	} else {
		r.lastSuccess.Set(1)
	}
}

func (r *Recorder) OnCacheHit(_ context.Context, keyType string) {
	r.cacheLookups.WithLabelValues(keyType, "hit").Inc()
}

func (r *Recorder) OnCacheMiss(_ context.Context, keyType string) {
	r.cacheLookups.WithLabelValues(keyType, "miss").Inc()
}

func (r *Recorder) OnCacheSet(_ context.Context, keyType string, size int) {
	r.cacheBytes.WithLabelValues(keyType).Add(float64(size))
}

func (r *Recorder) OnRequest(context.Context, string, string, string) {}

func (r *Recorder) OnResponse(_ context.Context, _, host, _ string, statusCode int, duration time.Duration) {
	r.httpRequests.WithLabelValues(host, strconv.Itoa(statusCode)).Inc()
	r.httpDuration.WithLabelValues(host).Observe(duration.Seconds())
}

func (r *Recorder) OnError(_ context.Context, _, host, _ string, _ error) {
	r.httpErrors.WithLabelValues(host).Inc()
}

// OnServe counts one request answered by the artifact server.
func (r *Recorder) OnServe(route string, statusCode int) {
	r.served.WithLabelValues(route, strconv.Itoa(statusCode)).Inc()
}

var (
	_ observability.PipelineHooks = (*Recorder)(nil)
	_ observability.CacheHooks    = (*Recorder)(nil)
	_ observability.HTTPHooks     = (*Recorder)(nil)
)
