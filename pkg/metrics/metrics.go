// Package metrics exports store, process and evaluator activity as
// Prometheus metrics. A Recorder plugs into the logger options of the root
// package.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	stores "github.com/goliatone/go-stores"
)

// Recorder implements stores.ApplyLogger, stores.ProcessLogger and
// stores.EvaluatorLogger.
type Recorder struct {
	applies          *prometheus.CounterVec
	operations       prometheus.Counter
	applyDuration    prometheus.Histogram
	processes        *prometheus.CounterVec
	processDuration  *prometheus.HistogramVec
	hookFailures     prometheus.Counter
	evaluations      *prometheus.CounterVec
	evaluateDuration *prometheus.HistogramVec
}

// New registers the collectors on reg under namespace.
func New(reg prometheus.Registerer, namespace string) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		applies: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_applies_total",
			Help:      "Store apply calls by outcome",
		}, []string{"outcome"}),
		operations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_operations_applied_total",
			Help:      "Operations applied to stores",
		}),
		applyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "store_apply_duration_seconds",
			Help:      "Duration of store apply calls",
			Buckets:   []float64{0.00001, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		}),
		processes: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "process_executions_total",
			Help:      "Process executions by process and outcome",
		}, []string{"process", "outcome"}),
		processDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "process_duration_seconds",
			Help:      "Duration of process executions",
			Buckets:   prometheus.DefBuckets,
		}, []string{"process"}),
		hookFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "activity_hook_failures_total",
			Help:      "Executions whose activity hooks failed",
		}),
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "evaluations_total",
			Help:      "Expression evaluations by engine and outcome",
		}, []string{"engine", "outcome"}),
		evaluateDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of expression evaluations",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05},
		}, []string{"engine"}),
	}
}

// LogApply implements stores.ApplyLogger.
func (r *Recorder) LogApply(event stores.ApplyLogEvent) {
	r.applies.WithLabelValues(outcome(event.Err)).Inc()
	r.operations.Add(float64(event.Applied))
	r.applyDuration.Observe(event.Duration.Seconds())
}

// LogProcess implements stores.ProcessLogger.
func (r *Recorder) LogProcess(event stores.ProcessLogEvent) {
	r.processes.WithLabelValues(event.ProcessID, outcome(event.Err)).Inc()
	r.processDuration.WithLabelValues(event.ProcessID).Observe(event.Duration.Seconds())
	if event.HookErr != nil {
		r.hookFailures.Inc()
	}
}

// LogEvaluation implements stores.EvaluatorLogger.
func (r *Recorder) LogEvaluation(event stores.EvaluatorLogEvent) {
	r.evaluations.WithLabelValues(event.Engine, outcome(event.Err)).Inc()
	r.evaluateDuration.WithLabelValues(event.Engine).Observe(event.Duration.Seconds())
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
