package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "slackerp"

const (
	HTTPRequestTotal           = "http_requests_total"
	HTTPRequestDurationSeconds = "http_request_duration_seconds"
	VerificationFailureTotal   = "verification_failures_total"
	InteractionTotal           = "interactions_total"
	JobTotal                   = "jobs_total"
	ScheduledRunTotal          = "scheduled_runs_total"
	ChatMessageTotal           = "chat_messages_total"
)

var (
	PromCounters = map[string]*prometheus.CounterVec{
		HTTPRequestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      HTTPRequestTotal,
			Help:      "Count of all HTTP requests",
		}, []string{"method", "status_code"}),
		VerificationFailureTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      VerificationFailureTotal,
			Help:      "Inbound callbacks rejected before dispatch",
		}, []string{"source", "reason"}),
		InteractionTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      InteractionTotal,
			Help:      "Slack interactions by route and outcome",
		}, []string{"route", "outcome"}),
		JobTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      JobTotal,
			Help:      "Background jobs by kind and outcome",
		}, []string{"kind", "outcome"}),
		ScheduledRunTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      ScheduledRunTotal,
			Help:      "Scheduled task runs by task and outcome",
		}, []string{"task", "outcome"}),
		ChatMessageTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      ChatMessageTotal,
			Help:      "Messages posted to Slack by purpose",
		}, []string{"purpose"}),
	}

	PromHistograms = map[string]*prometheus.HistogramVec{
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      HTTPRequestDurationSeconds,
			Help:      "Duration of all HTTP requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status_code"}),
	}
)

const (
	OutcomeOK      = "ok"
	OutcomeError   = "error"
	OutcomeSkipped = "skipped"
	OutcomeRetry   = "retry"
)

func NewHandler() http.Handler {
	registry := prometheus.NewRegistry()

	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	for _, counter := range PromCounters {
		registry.MustRegister(counter)
	}
	for _, histogram := range PromHistograms {
		registry.MustRegister(histogram)
	}

	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}

func ObserveHTTP(method string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	PromCounters[HTTPRequestTotal].WithLabelValues(method, code).Inc()
	PromHistograms[HTTPRequestDurationSeconds].WithLabelValues(method, code).Observe(d.Seconds())
}

func VerificationFailed(source, reason string) {
	PromCounters[VerificationFailureTotal].WithLabelValues(source, reason).Inc()
}

func Interaction(route, outcome string) {
	PromCounters[InteractionTotal].WithLabelValues(route, outcome).Inc()
}

func Job(kind, outcome string) {
	PromCounters[JobTotal].WithLabelValues(kind, outcome).Inc()
}

func ScheduledRun(task, outcome string) {
	PromCounters[ScheduledRunTotal].WithLabelValues(task, outcome).Inc()
}

func ChatMessage(purpose string) {
	PromCounters[ChatMessageTotal].WithLabelValues(purpose).Inc()
}
