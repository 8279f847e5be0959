package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/events"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "mealplan"

// Pipeline stages used as the "stage" label.
const (
	StagePlan         = "plan"
	StageShoppingList = "shopping_list"
)

// Stage outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	tasksStarted    prometheus.Counter
	tasksFinished   *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	tokens          *prometheus.CounterVec
	pipelinesActive prometheus.Gauge
}

var _ events.EventHandler = (*Metrics)(nil)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// MustNewMetrics creates the collectors and registers them with reg.
// Registration errors panic, which mirrors the promauto helpers.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_started_total",
			Help:      "Number of meal-plan tasks created.",
		}),
		tasksFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_finished_total",
			Help:      "Number of tasks that reached a terminal status.",
		}, []string{"status"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "task_status_transitions_total",
			Help:      "Number of task status transitions by target status.",
		}, []string{"status"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of each pipeline stage.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"stage", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens reported by the completion service.",
		}, []string{"stage", "kind"}),
		pipelinesActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipelines_active",
			Help:      "Number of pipelines currently running.",
		}),
	}

	reg.MustRegister(
		m.tasksStarted,
		m.tasksFinished,
		m.transitions,
		m.stageDuration,
		m.tokens,
		m.pipelinesActive,
	)
	return m
}

// HandleEvent counts status transitions.
func (m *Metrics) HandleEvent(_ context.Context, event *events.TaskStatusChanged) error {
	if m == nil {
		return nil
	}
	if event.From == "" && event.To == domain.TaskStatusPending {
		m.tasksStarted.Inc()
	}
	m.transitions.WithLabelValues(string(event.To)).Inc()
	if event.IsTerminal() {
		m.tasksFinished.WithLabelValues(string(event.To)).Inc()
	}
	return nil
}

// ObserveStage records how long a stage took.
func (m *Metrics) ObserveStage(stage, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage, outcome).Observe(d.Seconds())
}

// AddTokens adds the token usage of one completion call.
func (m *Metrics) AddTokens(stage string, usage *domain.TokenUsage) {
	if m == nil || usage == nil {
		return
	}
	m.tokens.WithLabelValues(stage, "prompt").Add(float64(usage.PromptTokens))
	m.tokens.WithLabelValues(stage, "completion").Add(float64(usage.CompletionTokens))
}

// PipelineStarted increments the active pipeline gauge.
func (m *Metrics) PipelineStarted() {
	if m == nil {
		return
	}
	m.pipelinesActive.Inc()
}

// PipelineFinished decrements the active pipeline gauge.
func (m *Metrics) PipelineFinished() {
	if m == nil {
		return
	}
	m.pipelinesActive.Dec()
}

// Handler serves the metrics of gatherer in the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
