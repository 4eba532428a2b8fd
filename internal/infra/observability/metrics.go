package observability

import (
	"time"

	"github.com/moneyflow/moneyflow-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration     *prometheus.HistogramVec
	externalErrors      *prometheus.CounterVec
	cacheHits           *prometheus.CounterVec
	cacheMisses         *prometheus.CounterVec
	tokensUsed          *prometheus.CounterVec
	requestsTotal       *prometheus.CounterVec
	linesParsed         prometheus.Counter
	linesSkipped        *prometheus.CounterVec
	transactionsCreated prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "moneyflow_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyflow_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyflow_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyflow_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		tokensUsed: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyflow_llm_tokens_total",
				Help: "Total LLM tokens consumed.",
			},
			[]string{"type"},
		),
		requestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyflow_chatbot_requests_total",
				Help: "Total chatbot requests by outcome.",
			},
			[]string{"status"},
		),
		linesParsed: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "moneyflow_chatbot_lines_parsed_total",
				Help: "Total reply lines successfully parsed and resolved.",
			},
		),
		linesSkipped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "moneyflow_chatbot_lines_skipped_total",
				Help: "Total reply lines dropped, by reason.",
			},
			[]string{"reason"},
		),
		transactionsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "moneyflow_transactions_created_total",
				Help: "Total transactions persisted (chatbot and manual).",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// RecordTokens records prompt and completion token usage.
func (m *Metrics) RecordTokens(prompt, completion int) {
	m.tokensUsed.WithLabelValues("prompt").Add(float64(prompt))
	m.tokensUsed.WithLabelValues("completion").Add(float64(completion))
}

// IncrRequest increments the chatbot request counter with an outcome label.
func (m *Metrics) IncrRequest(status string) {
	m.requestsTotal.WithLabelValues(status).Inc()
}

// IncrLineParsed increments the parsed-lines counter.
func (m *Metrics) IncrLineParsed() {
	m.linesParsed.Inc()
}

// IncrLineSkipped increments the skipped-lines counter for a reason
// ("amount" or "wallet").
func (m *Metrics) IncrLineSkipped(reason string) {
	m.linesSkipped.WithLabelValues(reason).Inc()
}

// IncrTransactionCreated increments the persisted-transactions counter.
func (m *Metrics) IncrTransactionCreated() {
	m.transactionsCreated.Inc()
}

// GetChatbotSnapshot returns a snapshot of pipeline metrics suitable for
// the GET /v1/metrics/chatbot endpoint.
func (m *Metrics) GetChatbotSnapshot() *domain.ChatbotMetrics {
	promptTokens := getVecValue(m.tokensUsed, "prompt")
	completionTokens := getVecValue(m.tokensUsed, "completion")

	totalRequests := getVecValue(m.requestsTotal, "success") +
		getVecValue(m.requestsTotal, "conversational") +
		getVecValue(m.requestsTotal, "fallback") +
		getVecValue(m.requestsTotal, "error")
	errorCount := getVecValue(m.requestsTotal, "error")

	cacheHits := getVecValue(m.cacheHits, "wallets")
	cacheMisses := getVecValue(m.cacheMisses, "wallets")

	linesSkipped := getVecValue(m.linesSkipped, "amount") +
		getVecValue(m.linesSkipped, "wallet")

	errorRate := float64(0)
	if totalRequests > 0 {
		errorRate = errorCount / totalRequests
	}
	cacheHitRate := float64(0)
	if cacheHits+cacheMisses > 0 {
		cacheHitRate = cacheHits / (cacheHits + cacheMisses)
	}

	return &domain.ChatbotMetrics{
		TotalRequests:       int64(totalRequests),
		ErrorRate:           errorRate,
		LinesParsed:         int64(getCounterValue(m.linesParsed)),
		LinesSkipped:        int64(linesSkipped),
		TransactionsCreated: int64(getCounterValue(m.transactionsCreated)),
		PromptTokens:        int64(promptTokens),
		CompletionTokens:    int64(completionTokens),
		CacheHitRate:        cacheHitRate,
		Period:              "all_time",
	}
}

// getVecValue extracts the current value from a CounterVec for a given label.
func getVecValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// getCounterValue extracts the current value from a plain Counter.
func getCounterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
