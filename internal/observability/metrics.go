package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Result labels shared by the domain counters
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

type Metrics struct {
	RequestCount      *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	RequestSize       *prometheus.HistogramVec
	ResponseSize      *prometheus.HistogramVec
	ActiveConnections prometheus.Gauge
	HealthStatus      prometheus.Gauge
	CheckStatus       *prometheus.GaugeVec

	AgentInvocations        *prometheus.CounterVec
	AgentInvocationDuration *prometheus.HistogramVec
	LLMRequests             *prometheus.CounterVec
	EventBusPublish         *prometheus.CounterVec

	registry *prometheus.Registry
	handler  http.Handler
}

func NewMetrics() *Metrics {
	return &Metrics{
		RequestCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status_code"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "endpoint", "status_code"},
		),
		RequestSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_size_bytes",
				Help:    "HTTP request size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint"},
		),
		ResponseSize: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_response_size_bytes",
				Help:    "HTTP response size in bytes",
				Buckets: prometheus.ExponentialBuckets(100, 10, 8),
			},
			[]string{"method", "endpoint", "status_code"},
		),
		ActiveConnections: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_active_connections",
				Help: "Number of active HTTP connections",
			},
		),
		HealthStatus: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "app_health_status",
				Help: "Application health status (1 = healthy, 0 = unhealthy)",
			},
		),
		CheckStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "health_check_status",
				Help: "Status of an individual dependency check (1 = healthy, 0 = unhealthy)",
			},
			[]string{"check"},
		),
		AgentInvocations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agent_invocations_total",
				Help: "Total number of agent invocations by result",
			},
			[]string{"agent", "result"},
		),
		AgentInvocationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agent_invocation_duration_seconds",
				Help:    "Agent invocation duration in seconds",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
			},
			[]string{"agent"},
		),
		LLMRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of generation backend calls by operation and result",
			},
			[]string{"operation", "result"},
		),
		EventBusPublish: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "event_bus_publish_total",
				Help: "Total number of event bus publish attempts by result",
			},
			[]string{"result"},
		),
	}
}

func (m *Metrics) RecordRequest(method, endpoint string, statusCode int, duration time.Duration, requestSize, responseSize int64) {
	status := strconv.Itoa(statusCode)

	m.RequestCount.WithLabelValues(method, endpoint, status).Inc()
	m.RequestDuration.WithLabelValues(method, endpoint, status).Observe(duration.Seconds())
	m.RequestSize.WithLabelValues(method, endpoint).Observe(float64(requestSize))
	m.ResponseSize.WithLabelValues(method, endpoint, status).Observe(float64(responseSize))
}

func (m *Metrics) IncActiveConnections() {
	m.ActiveConnections.Inc()
}

func (m *Metrics) DecActiveConnections() {
	m.ActiveConnections.Dec()
}

func (m *Metrics) SetHealthStatus(healthy bool) {
	m.HealthStatus.Set(boolToFloat(healthy))
}

// SetCheckStatus records the outcome of a single named dependency check
func (m *Metrics) SetCheckStatus(check string, healthy bool) {
	m.CheckStatus.WithLabelValues(check).Set(boolToFloat(healthy))
}

// RecordAgentInvocation counts one agent run and observes its latency
func (m *Metrics) RecordAgentInvocation(agent string, success bool, duration time.Duration) {
	m.AgentInvocations.WithLabelValues(agent, resultLabel(success)).Inc()
	m.AgentInvocationDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

func (m *Metrics) RecordLLMRequest(operation string, success bool) {
	m.LLMRequests.WithLabelValues(operation, resultLabel(success)).Inc()
}

func (m *Metrics) RecordEventPublish(success bool) {
	m.EventBusPublish.WithLabelValues(resultLabel(success)).Inc()
}

func (m *Metrics) Handler() http.Handler {
	if m.handler != nil {
		return m.handler
	}
	return promhttp.Handler()
}

// Register attaches every collector to a private registry and builds the scrape handler
func (m *Metrics) Register() error {
	m.registry = prometheus.NewRegistry()

	collectors := []prometheus.Collector{
		m.RequestCount,
		m.RequestDuration,
		m.RequestSize,
		m.ResponseSize,
		m.ActiveConnections,
		m.HealthStatus,
		m.CheckStatus,
		m.AgentInvocations,
		m.AgentInvocationDuration,
		m.LLMRequests,
		m.EventBusPublish,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return err
		}
	}

	m.handler = promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})

	return nil
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func resultLabel(success bool) string {
	if success {
		return ResultSuccess
	}
	return ResultFailure
}
