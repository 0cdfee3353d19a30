package observability

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled           bool
	Port              int
	Path              string
	PrometheusEnabled bool
}

// MetricsCollector manages Prometheus metrics
type MetricsCollector struct {
	// Ticket intake metrics
	ticketsSubmittedTotal *prometheus.CounterVec
	ticketsProcessedTotal *prometheus.CounterVec

	// Pipeline metrics
	pipelineDurationSeconds *prometheus.HistogramVec
	stepDurationSeconds     *prometheus.HistogramVec
	stepDegradationsTotal   *prometheus.CounterVec

	// Enrichment metrics
	classificationsTotal *prometheus.CounterVec
	sentimentTotal       *prometheus.CounterVec
	priorityTotal        *prometheus.CounterVec

	// Routing metrics
	assignmentsTotal     *prometheus.CounterVec
	capacityRetriesTotal prometheus.Counter
	slaBreachesTotal     prometheus.Counter

	// LLM metrics
	llmRequestsTotal  *prometheus.CounterVec
	llmLatencySeconds *prometheus.HistogramVec
	llmTokensTotal    *prometheus.CounterVec
	llmCostTotal      *prometheus.CounterVec
	llmErrorsTotal    *prometheus.CounterVec

	// Storage metrics
	storageOperationsTotal *prometheus.CounterVec
	storageDurationSeconds *prometheus.HistogramVec
	storageErrorsTotal     *prometheus.CounterVec

	// Knowledge base metrics
	kbSearchesTotal  *prometheus.CounterVec
	kbDocumentsTotal prometheus.Gauge

	// Queue metrics
	queueDepth        prometheus.Gauge
	jobsConsumedTotal *prometheus.CounterVec

	// System metrics
	healthStatus prometheus.Gauge

	config MetricsConfig
}

// NewMetricsCollector creates a new metrics collector
func NewMetricsCollector(config MetricsConfig, registry *prometheus.Registry) *MetricsCollector {
	if !config.Enabled {
		return &MetricsCollector{config: config}
	}

	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	factory := promauto.With(registry)

	collector := &MetricsCollector{
		// Ticket intake metrics
		ticketsSubmittedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_tickets_submitted_total",
				Help: "Total number of tickets accepted at ingress",
			},
			[]string{"source", "tier", "mode"}, // mode: sync, async
		),
		ticketsProcessedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_tickets_processed_total",
				Help: "Total number of tickets that completed the pipeline",
			},
			[]string{"status"}, // clean, degraded
		),

		// Pipeline metrics
		pipelineDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketflow_pipeline_duration_seconds",
				Help:    "End-to-end per-ticket pipeline duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 0.1s to ~51s
			},
			[]string{"mode"},
		),
		stepDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketflow_pipeline_step_duration_seconds",
				Help:    "Pipeline step duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
			[]string{"step"},
		),
		stepDegradationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_pipeline_step_degradations_total",
				Help: "Total number of pipeline steps that fell back or failed non-fatally",
			},
			[]string{"step"},
		),

		// Enrichment metrics
		classificationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_classifications_total",
				Help: "Total number of classifications by category and method",
			},
			[]string{"category", "method"}, // method: ai, ai_cached, rule_based, default
		),
		sentimentTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_sentiment_total",
				Help: "Total number of sentiment analyses by label",
			},
			[]string{"label"},
		),
		priorityTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_priority_total",
				Help: "Total number of priority scores by level",
			},
			[]string{"level"},
		),

		// Routing metrics
		assignmentsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_assignments_total",
				Help: "Total number of routing decisions by reason and outcome",
			},
			[]string{"reason", "outcome"}, // outcome: committed, unassigned, skipped
		),
		capacityRetriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ticketflow_assignment_capacity_retries_total",
				Help: "Total number of assignment retries caused by lost capacity races",
			},
		),
		slaBreachesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "ticketflow_sla_breaches_total",
				Help: "Total number of tickets marked SLA-breached by the scanner",
			},
		),

		// LLM metrics
		llmRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_llm_requests_total",
				Help: "Total number of LLM API requests",
			},
			[]string{"provider", "model", "status"},
		),
		llmLatencySeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketflow_llm_latency_seconds",
				Help:    "LLM API latency in seconds",
				Buckets: prometheus.ExponentialBuckets(0.1, 2, 10),
			},
			[]string{"provider", "model"},
		),
		llmTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_llm_tokens_total",
				Help: "Total number of LLM tokens used",
			},
			[]string{"provider", "model", "type"}, // type: prompt, completion
		),
		llmCostTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_llm_cost_total",
				Help: "Total LLM cost in USD",
			},
			[]string{"provider", "model"},
		),
		llmErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_llm_errors_total",
				Help: "Total number of LLM errors",
			},
			[]string{"provider", "model", "error_type"},
		),

		// Storage metrics
		storageOperationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_storage_operations_total",
				Help: "Total number of storage operations",
			},
			[]string{"operation", "table", "status"},
		),
		storageDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ticketflow_storage_duration_seconds",
				Help:    "Storage operation duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 10), // 1ms to ~0.5s
			},
			[]string{"operation", "table"},
		),
		storageErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_storage_errors_total",
				Help: "Total number of storage errors",
			},
			[]string{"operation", "error_type"},
		),

		// Knowledge base metrics
		kbSearchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_kb_searches_total",
				Help: "Total number of knowledge base similarity searches",
			},
			[]string{"status"}, // hit, miss, error
		),
		kbDocumentsTotal: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ticketflow_kb_documents_total",
				Help: "Number of documents currently in the knowledge base",
			},
		),

		// Queue metrics
		queueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ticketflow_queue_depth",
				Help: "Number of ticket jobs waiting in the processing queue",
			},
		),
		jobsConsumedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ticketflow_queue_jobs_consumed_total",
				Help: "Total number of queue jobs consumed by workers",
			},
			[]string{"status"}, // processed, duplicate, missing, error
		),

		// System metrics
		healthStatus: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "ticketflow_health_status",
				Help: "Health status (1 = healthy, 0 = unhealthy)",
			},
		),

		config: config,
	}

	// Set initial health status
	collector.healthStatus.Set(1)

	return collector
}

// RecordTicketSubmitted records an accepted ticket at ingress
func (m *MetricsCollector) RecordTicketSubmitted(source, tier, mode string) {
	if !m.config.Enabled {
		return
	}

	m.ticketsSubmittedTotal.WithLabelValues(source, tier, mode).Inc()
}

// RecordTicketProcessed records a ticket that finished the pipeline
func (m *MetricsCollector) RecordTicketProcessed(degraded bool, mode string, duration time.Duration) {
	if !m.config.Enabled {
		return
	}

	status := "clean"
	if degraded {
		status = "degraded"
	}
	m.ticketsProcessedTotal.WithLabelValues(status).Inc()
	m.pipelineDurationSeconds.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordPipelineStep records one pipeline step's duration and outcome
func (m *MetricsCollector) RecordPipelineStep(step string, duration time.Duration, err error) {
	if !m.config.Enabled {
		return
	}

	if err != nil {
		m.stepDegradationsTotal.WithLabelValues(step).Inc()
	}
	m.stepDurationSeconds.WithLabelValues(step).Observe(duration.Seconds())
}

// RecordClassification records a classification result
func (m *MetricsCollector) RecordClassification(category, method string) {
	if !m.config.Enabled {
		return
	}

	m.classificationsTotal.WithLabelValues(category, method).Inc()
}

// RecordSentiment records a sentiment analysis result
func (m *MetricsCollector) RecordSentiment(label string) {
	if !m.config.Enabled {
		return
	}

	m.sentimentTotal.WithLabelValues(label).Inc()
}

// RecordPriority records a priority score
func (m *MetricsCollector) RecordPriority(level string) {
	if !m.config.Enabled {
		return
	}

	m.priorityTotal.WithLabelValues(level).Inc()
}

// RecordAssignment records a routing decision's final outcome
func (m *MetricsCollector) RecordAssignment(reason, outcome string) {
	if !m.config.Enabled {
		return
	}

	m.assignmentsTotal.WithLabelValues(reason, outcome).Inc()
}

// RecordCapacityRetry records a lost capacity race during assignment
func (m *MetricsCollector) RecordCapacityRetry() {
	if !m.config.Enabled {
		return
	}

	m.capacityRetriesTotal.Inc()
}

// RecordSLABreach records a ticket marked breached by the SLA scanner
func (m *MetricsCollector) RecordSLABreach() {
	if !m.config.Enabled {
		return
	}

	m.slaBreachesTotal.Inc()
}

// RecordLLMRequest records an LLM API request
func (m *MetricsCollector) RecordLLMRequest(provider, model string, duration time.Duration, promptTokens, completionTokens int, cost float64, err error) {
	if !m.config.Enabled {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		m.llmErrorsTotal.WithLabelValues(provider, model, "api_error").Inc()
	}

	m.llmRequestsTotal.WithLabelValues(provider, model, status).Inc()
	m.llmLatencySeconds.WithLabelValues(provider, model).Observe(duration.Seconds())

	if status == "success" {
		m.llmTokensTotal.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
		m.llmTokensTotal.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
		m.llmCostTotal.WithLabelValues(provider, model).Add(cost)
	}
}

// RecordStorageOperation records a storage operation
func (m *MetricsCollector) RecordStorageOperation(operation, table string, duration time.Duration, err error) {
	if !m.config.Enabled {
		return
	}

	status := "success"
	if err != nil {
		status = "error"
		m.storageErrorsTotal.WithLabelValues(operation, "query_error").Inc()
	}

	m.storageOperationsTotal.WithLabelValues(operation, table, status).Inc()
	m.storageDurationSeconds.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordKBSearch records a knowledge base similarity search
func (m *MetricsCollector) RecordKBSearch(hits int, err error) {
	if !m.config.Enabled {
		return
	}

	status := "hit"
	switch {
	case err != nil:
		status = "error"
	case hits == 0:
		status = "miss"
	}
	m.kbSearchesTotal.WithLabelValues(status).Inc()
}

// SetKBDocuments sets the current knowledge base document count
func (m *MetricsCollector) SetKBDocuments(count int) {
	if !m.config.Enabled {
		return
	}

	m.kbDocumentsTotal.Set(float64(count))
}

// SetQueueDepth sets the current processing queue depth
func (m *MetricsCollector) SetQueueDepth(depth int) {
	if !m.config.Enabled {
		return
	}

	m.queueDepth.Set(float64(depth))
}

// RecordJobConsumed records a queue job consumed by a worker
func (m *MetricsCollector) RecordJobConsumed(status string) {
	if !m.config.Enabled {
		return
	}

	m.jobsConsumedTotal.WithLabelValues(status).Inc()
}

// SetHealthStatus sets the health status
func (m *MetricsCollector) SetHealthStatus(healthy bool) {
	if !m.config.Enabled {
		return
	}

	if healthy {
		m.healthStatus.Set(1)
	} else {
		m.healthStatus.Set(0)
	}
}

// GetHandler returns the HTTP handler for Prometheus metrics
func (m *MetricsCollector) GetHandler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer starts the metrics HTTP server
func (m *MetricsCollector) StartMetricsServer() error {
	if !m.config.Enabled {
		return nil
	}

	http.Handle(m.config.Path, m.GetHandler())

	addr := fmt.Sprintf(":%d", m.config.Port)
	fmt.Printf("Starting metrics server on %s%s\n", addr, m.config.Path)

	return http.ListenAndServe(addr, nil)
}

// Global metrics collector
var globalMetrics *MetricsCollector

// InitGlobalMetrics initializes the global metrics collector
func InitGlobalMetrics(config MetricsConfig) error {
	globalMetrics = NewMetricsCollector(config, prometheus.DefaultRegisterer.(*prometheus.Registry))
	return nil
}

// GetMetrics returns the global metrics collector
func GetMetrics() *MetricsCollector {
	if globalMetrics == nil {
		_ = InitGlobalMetrics(MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		})
	}
	return globalMetrics
}

// Convenience functions using global metrics

// RecordLLMRequest records an LLM request using global metrics
func RecordLLMRequest(provider, model string, duration time.Duration, promptTokens, completionTokens int, cost float64, err error) {
	GetMetrics().RecordLLMRequest(provider, model, duration, promptTokens, completionTokens, cost, err)
}

// RecordStorageOperation records a storage operation using global metrics
func RecordStorageOperation(operation, table string, duration time.Duration, err error) {
	GetMetrics().RecordStorageOperation(operation, table, duration, err)
}
