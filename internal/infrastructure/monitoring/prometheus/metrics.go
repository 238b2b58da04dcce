package prometheus

import (
	"context"
	"strconv"
	"time"
)

// AppMetrics holds every metric entigo records.
type AppMetrics struct {
	// Engine
	ResolutionsTotal      CounterVec
	ResolutionDuration    HistogramVec
	WaveDetectors         HistogramVec
	DetectorDuration      HistogramVec
	DetectorFailuresTotal CounterVec
	DependencyCyclesTotal CounterVec
	EntitiesTotal         CounterVec

	// HTTP
	HTTPRequestsTotal   CounterVec
	HTTPRequestDuration HistogramVec
	HTTPActiveRequests  GaugeVec

	// gRPC
	GRPCRequestsTotal   CounterVec
	GRPCRequestDuration HistogramVec

	// Cache
	CacheHitsTotal   CounterVec
	CacheMissesTotal CounterVec
	CacheErrorsTotal CounterVec

	// Messaging
	MessagesTotal          CounterVec
	MessageProcessDuration HistogramVec
}

// Default buckets.
var (
	DefaultHTTPDurationBuckets     = []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5}
	DefaultDetectorDurationBuckets = []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1}
	DefaultWaveSizeBuckets         = []float64{1, 2, 4, 8, 16, 32, 64}
)

// NewAppMetrics registers all metrics on collector.
func NewAppMetrics(collector MetricsCollector) *AppMetrics {
	m := &AppMetrics{}

	m.ResolutionsTotal = collector.RegisterCounter("engine_resolutions_total", "Entity resolutions", "mode")
	m.ResolutionDuration = collector.RegisterHistogram("engine_resolution_duration_seconds", "Entity resolution duration", DefaultHTTPDurationBuckets, "mode")
	m.WaveDetectors = collector.RegisterHistogram("engine_waves", "Detectors run per scheduling wave", DefaultWaveSizeBuckets)
	m.DetectorDuration = collector.RegisterHistogram("engine_detector_duration_seconds", "Time spent in one detector search", DefaultDetectorDurationBuckets, "entity")
	m.DetectorFailuresTotal = collector.RegisterCounter("engine_detector_failures_total", "Detector failures", "entity", "code")
	m.DependencyCyclesTotal = collector.RegisterCounter("engine_dependency_cycles_total", "Resolutions stopped by a dependency cycle")
	m.EntitiesTotal = collector.RegisterCounter("engine_entities_total", "Raw entities found by detectors", "entity")

	m.HTTPRequestsTotal = collector.RegisterCounter("http_requests_total", "Total HTTP requests", "method", "path", "status_code")
	m.HTTPRequestDuration = collector.RegisterHistogram("http_request_duration_seconds", "HTTP request duration", DefaultHTTPDurationBuckets, "method", "path")
	m.HTTPActiveRequests = collector.RegisterGauge("http_active_requests", "Active HTTP requests")

	m.GRPCRequestsTotal = collector.RegisterCounter("grpc_requests_total", "Total gRPC requests", "service", "method", "code")
	m.GRPCRequestDuration = collector.RegisterHistogram("grpc_request_duration_seconds", "gRPC request duration", DefaultHTTPDurationBuckets, "service", "method")

	m.CacheHitsTotal = collector.RegisterCounter("cache_hits_total", "Cache hits", "cache")
	m.CacheMissesTotal = collector.RegisterCounter("cache_misses_total", "Cache misses", "cache")
	m.CacheErrorsTotal = collector.RegisterCounter("cache_errors_total", "Cache errors", "cache", "operation")

	m.MessagesTotal = collector.RegisterCounter("mq_messages_total", "Consumed messages", "topic", "status")
	m.MessageProcessDuration = collector.RegisterHistogram("mq_process_duration_seconds", "Message processing duration", DefaultHTTPDurationBuckets, "topic")

	return m
}

// ---------------------------------------------------------------------------
// Engine adapter
// ---------------------------------------------------------------------------

// EngineMetrics records engine telemetry into AppMetrics.  A nil receiver
// or nil AppMetrics records nothing.
type EngineMetrics struct {
	m *AppMetrics
}

// NewEngineMetrics returns the engine adapter for m.
func NewEngineMetrics(m *AppMetrics) *EngineMetrics {
	return &EngineMetrics{m: m}
}

func (e *EngineMetrics) ok() bool { return e != nil && e.m != nil }

func (e *EngineMetrics) RecordWave(_ context.Context, detectors int) {
	if e.ok() {
		e.m.WaveDetectors.WithLabelValues().Observe(float64(detectors))
	}
}

func (e *EngineMetrics) RecordDetection(_ context.Context, entityName string, found int, duration time.Duration) {
	if !e.ok() {
		return
	}
	e.m.DetectorDuration.WithLabelValues(entityName).Observe(duration.Seconds())
	if found > 0 {
		e.m.EntitiesTotal.WithLabelValues(entityName).Add(float64(found))
	}
}

func (e *EngineMetrics) RecordDetectorFailure(_ context.Context, entityName, code string) {
	if e.ok() {
		e.m.DetectorFailuresTotal.WithLabelValues(entityName, code).Inc()
	}
}

func (e *EngineMetrics) RecordDependencyCycle(_ context.Context, _ []string) {
	if e.ok() {
		e.m.DependencyCyclesTotal.WithLabelValues().Inc()
	}
}

func (e *EngineMetrics) RecordResolution(_ context.Context, mode string, _ int, duration time.Duration) {
	if !e.ok() {
		return
	}
	e.m.ResolutionsTotal.WithLabelValues(mode).Inc()
	e.m.ResolutionDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// RecordHTTPRequest records one finished request.
func RecordHTTPRequest(metrics *AppMetrics, method, path string, statusCode int, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(statusCode)).Inc()
	metrics.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordGRPCRequest records one finished unary call.
func RecordGRPCRequest(metrics *AppMetrics, service, method, code string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.GRPCRequestsTotal.WithLabelValues(service, method, code).Inc()
	metrics.GRPCRequestDuration.WithLabelValues(service, method).Observe(duration.Seconds())
}

// RecordCacheAccess counts a hit or a miss on cache.
func RecordCacheAccess(metrics *AppMetrics, cache string, hit bool) {
	if metrics == nil {
		return
	}
	if hit {
		metrics.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		metrics.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}

// RecordCacheError counts a failed cache operation.
func RecordCacheError(metrics *AppMetrics, cache, operation string) {
	if metrics == nil {
		return
	}
	metrics.CacheErrorsTotal.WithLabelValues(cache, operation).Inc()
}

// RecordMessage counts a processed message with status "ok", "invalid" or
// "failed".
func RecordMessage(metrics *AppMetrics, topic, status string, duration time.Duration) {
	if metrics == nil {
		return
	}
	metrics.MessagesTotal.WithLabelValues(topic, status).Inc()
	metrics.MessageProcessDuration.WithLabelValues(topic).Observe(duration.Seconds())
}

//Personal.AI order the ending
