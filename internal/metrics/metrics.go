// Package metrics holds the Prometheus collectors of the exam service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"exam-app/internal/analysis"
	"exam-app/internal/quiz"
)

type Metrics struct {
	registry *prometheus.Registry

	examsStarted   *prometheus.CounterVec
	examsSubmitted *prometheus.CounterVec
	examScore      *prometheus.HistogramVec
	stateFallbacks *prometheus.CounterVec
	llmCalls       *prometheus.CounterVec
	httpRequests   *prometheus.CounterVec
	httpDuration   *prometheus.HistogramVec
}

var (
	_ quiz.Observer     = (*Metrics)(nil)
	_ analysis.Observer = (*Metrics)(nil)
)

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		examsStarted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_sessions_started_total",
				Help: "Total number of exams composed",
			},
			[]string{"topic"},
		),
		examsSubmitted: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_sessions_submitted_total",
				Help: "Total number of exams submitted",
			},
			[]string{"topic", "reason"}, // reason: manual/finish/timeout
		),
		examScore: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "exam_score_percent",
				Help:    "Score of submitted exams as a percentage",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"topic"},
		),
		stateFallbacks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "exam_state_fallbacks_total",
				Help: "Saved exam states that could not be restored",
			},
			[]string{"reason"},
		),
		llmCalls: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "analysis_llm_calls_total",
				Help: "LLM calls made by the financial analysis assistant",
			},
			[]string{"kind", "status"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"method", "route", "code"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Time spent serving HTTP requests",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ExamStarted(topic string) {
	m.examsStarted.WithLabelValues(topic).Inc()
}

func (m *Metrics) ExamSubmitted(topic string, reason quiz.SubmitReason, score, total int) {
	m.examsSubmitted.WithLabelValues(topic, string(reason)).Inc()
	m.examScore.WithLabelValues(topic).Observe(quiz.Percent(score, total))
}

func (m *Metrics) StateFallback(reason string) {
	m.stateFallbacks.WithLabelValues(reason).Inc()
}

func (m *Metrics) LLMCall(kind string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	m.llmCalls.WithLabelValues(kind, status).Inc()
}

// ObserveHTTP records one served request. route is the mux pattern, not the
// raw path, to keep label cardinality bounded.
func (m *Metrics) ObserveHTTP(method, route string, code int, elapsed time.Duration) {
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
