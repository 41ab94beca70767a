// Package metrics provides Prometheus metrics for the dpsbar telemetry bridge.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the bridge.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Telemetry transport
	framesReceived    *prometheus.CounterVec
	messagesAssembled prometheus.Counter
	messagesDropped   *prometheus.CounterVec
	messageSize       prometheus.Histogram
	connectAttempts   *prometheus.CounterVec
	disconnects       *prometheus.CounterVec
	subscribeErrors   prometheus.Counter
	connectionActive  prometheus.Gauge
	disconnectLatency prometheus.Histogram

	// Decoding
	decodeOutcomes *prometheus.CounterVec
	metricUpdates  prometheus.Counter
	updateBacklog  prometheus.Gauge

	// Debouncer / display
	combatState      *prometheus.GaugeVec
	lastMetricValue  *prometheus.GaugeVec
	lingerFinalized  prometheus.Counter
	metricToggles    prometheus.Counter
	staleUpdates     prometheus.Counter
	sinkPublishes    *prometheus.CounterVec
	generationsTotal prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "dpsbar",
		subsystem:        "bridge",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.framesReceived = m.counterVec("frames_received_total", "WebSocket frames read from the telemetry peer", "kind")
	m.messagesAssembled = m.counter("messages_assembled_total", "Complete text messages produced by reassembly")
	m.messagesDropped = m.counterVec("messages_dropped_total", "Messages discarded before decoding", "reason")
	m.messageSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "message_size_bytes",
		Help:        "Size of reassembled telemetry messages",
		Buckets:     prometheus.ExponentialBuckets(64, 4, 8),
		ConstLabels: m.constLabels,
	})
	m.connectAttempts = m.counterVec("connect_attempts_total", "Telemetry connection attempts", "result")
	m.disconnects = m.counterVec("disconnects_total", "Telemetry client teardowns", "mode")
	m.subscribeErrors = m.counter("subscribe_errors_total", "Failed CombatData subscription sends")
	m.connectionActive = m.gauge("connection_active", "1 while a telemetry connection is open")
	m.disconnectLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "disconnect_latency_seconds",
		Help:        "Time from cancellation to receive loop exit",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	})

	m.decodeOutcomes = m.counterVec("decode_outcomes_total", "Event decoder results", "outcome")
	m.metricUpdates = m.counter("metric_updates_total", "MetricUpdate events published")
	m.updateBacklog = m.gauge("update_backlog", "MetricUpdate events waiting for the consumer")

	m.combatState = m.gaugeVec("combat_state", "1 for the current debouncer state", "state")
	m.lastMetricValue = m.gaugeVec("last_metric_value", "Last accepted metric value", "kind")
	m.lingerFinalized = m.counter("linger_finalized_total", "Linger windows that elapsed and finalized a value")
	m.metricToggles = m.counter("metric_toggles_total", "Display metric selector toggles")
	m.staleUpdates = m.counter("stale_updates_total", "Updates discarded from a retired client generation")
	m.sinkPublishes = m.counterVec("sink_publishes_total", "Metric sink publish attempts", "result")
	m.generationsTotal = m.counter("generations_total", "Telemetry client instances created")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

// RecordFrameReceived counts a frame by kind ("text" or "other").
func RecordFrameReceived(kind string) {
	globalManager.framesReceived.WithLabelValues(kind).Inc()
}

// RecordMessageAssembled counts a complete message and observes its size.
func RecordMessageAssembled(size int) {
	globalManager.messagesAssembled.Inc()
	globalManager.messageSize.Observe(float64(size))
}

// RecordMessageDropped counts a message discarded before decoding.
func RecordMessageDropped(reason string) {
	globalManager.messagesDropped.WithLabelValues(reason).Inc()
}

// RecordConnectAttempt counts a connect attempt with result "ok", "error" or "noop".
func RecordConnectAttempt(result string) {
	globalManager.connectAttempts.WithLabelValues(result).Inc()
}

// RecordDisconnect counts a teardown; mode is "joined" or "slow".
func RecordDisconnect(mode string, latencySeconds float64) {
	globalManager.disconnects.WithLabelValues(mode).Inc()
	globalManager.disconnectLatency.Observe(latencySeconds)
}

// RecordSubscribeError counts a failed subscription send.
func RecordSubscribeError() {
	globalManager.subscribeErrors.Inc()
}

// UpdateConnectionActive sets the connection gauge.
func UpdateConnectionActive(active bool) {
	if active {
		globalManager.connectionActive.Set(1)
		return
	}
	globalManager.connectionActive.Set(0)
}

// RecordDecodeOutcome counts a decoder result.
func RecordDecodeOutcome(outcome string) {
	globalManager.decodeOutcomes.WithLabelValues(outcome).Inc()
}

// RecordMetricUpdate counts a published MetricUpdate.
func RecordMetricUpdate() {
	globalManager.metricUpdates.Inc()
}

// UpdateBacklog sets the number of updates waiting for the consumer.
func UpdateBacklog(n int) {
	globalManager.updateBacklog.Set(float64(n))
}

// UpdateCombatState marks state as the only active debouncer state.
func UpdateCombatState(state string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		globalManager.combatState.WithLabelValues(s).Set(v)
	}
}

// UpdateLastMetricValue sets the last accepted value for a metric kind.
func UpdateLastMetricValue(kind string, v float64) {
	globalManager.lastMetricValue.WithLabelValues(kind).Set(v)
}

// RecordLingerFinalized counts an elapsed linger window.
func RecordLingerFinalized() {
	globalManager.lingerFinalized.Inc()
}

// RecordMetricToggle counts a metric selector toggle.
func RecordMetricToggle() {
	globalManager.metricToggles.Inc()
}

// RecordStaleUpdate counts an update dropped from a retired generation.
func RecordStaleUpdate() {
	globalManager.staleUpdates.Inc()
}

// RecordSinkPublish counts a sink publish with result "ok", "error" or "dropped".
func RecordSinkPublish(result string) {
	globalManager.sinkPublishes.WithLabelValues(result).Inc()
}

// RecordGeneration counts a new telemetry client instance.
func RecordGeneration() {
	globalManager.generationsTotal.Inc()
}

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
