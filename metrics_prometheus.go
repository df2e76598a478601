package threadpool

import (
	"errors"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetrics implements MetricsPolicy on Prometheus collectors.
type PrometheusMetrics struct {
	queueDepth     prom.Gauge
	executedTotal  prom.Counter
	cancelledTotal prom.Counter
	runSeconds     prom.Histogram
}

var _ MetricsPolicy = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates and registers the pool collectors.
//
// namespace defaults to "threadpool" and reg to the default registerer.
// Collectors already present in the registry are reused, so several
// pools may share a namespace.
func NewPrometheusMetrics(namespace string, reg prom.Registerer) (*PrometheusMetrics, error) {
	if namespace == "" {
		namespace = "threadpool"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}

	queueDepth := prom.NewGauge(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Current number of queued tasks.",
	})
	executedTotal := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_executed_total",
		Help:      "Total number of tasks run to completion.",
	})
	cancelledTotal := prom.NewCounter(prom.CounterOpts{
		Namespace: namespace,
		Name:      "tasks_cancelled_total",
		Help:      "Total number of tasks skipped due to cancellation.",
	})
	runSeconds := prom.NewHistogram(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_run_seconds",
		Help:      "Task execution duration in seconds.",
		Buckets:   prom.DefBuckets,
	})

	var err error
	if queueDepth, err = registerCollector(reg, queueDepth); err != nil {
		return nil, err
	}
	if executedTotal, err = registerCollector(reg, executedTotal); err != nil {
		return nil, err
	}
	if cancelledTotal, err = registerCollector(reg, cancelledTotal); err != nil {
		return nil, err
	}
	if runSeconds, err = registerCollector(reg, runSeconds); err != nil {
		return nil, err
	}

	return &PrometheusMetrics{
		queueDepth:     queueDepth,
		executedTotal:  executedTotal,
		cancelledTotal: cancelledTotal,
		runSeconds:     runSeconds,
	}, nil
}

// registerCollector registers c, reusing an existing collector of the
// same identity if the registry already holds one.
func registerCollector[C prom.Collector](reg prom.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prom.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

func (m *PrometheusMetrics) IncQueued() {
	m.queueDepth.Inc()
}

func (m *PrometheusMetrics) DecQueued() {
	m.queueDepth.Dec()
}

func (m *PrometheusMetrics) IncExecuted() {
	m.executedTotal.Inc()
}

func (m *PrometheusMetrics) IncCancelled() {
	m.cancelledTotal.Inc()
}

func (m *PrometheusMetrics) ObserveRun(d time.Duration) {
	m.runSeconds.Observe(d.Seconds())
}
