package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/ngominhtrint/queue/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskRetryTotal      *prom.CounterVec
	taskPanicTotal      *prom.CounterVec
	taskCancelledTotal  *prom.CounterVec
	queueDepth          *prom.GaugeVec
	snapshotTotal       *prom.CounterVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "taskqueue"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_attempt_duration_seconds",
		Help:      "Duration of one task attempt in seconds.",
		Buckets:   buckets,
	}, []string{"queue", "class"})
	retryVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_retry_total",
		Help:      "Total number of task retries, automatic and manual.",
	}, []string{"queue"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_panic_total",
		Help:      "Total number of panics recovered from task work.",
	}, []string{"queue"})
	cancelledVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_cancelled_total",
		Help:      "Total number of tasks that reached the Cancelled state.",
	}, []string{"queue"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_depth",
		Help:      "Number of tracked non-terminal tasks.",
	}, []string{"queue"})
	snapshotVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "snapshot_total",
		Help:      "Total number of queue snapshots taken.",
	}, []string{"queue"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if retryVec, err = registerCollector(reg, retryVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if cancelledVec, err = registerCollector(reg, cancelledVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}
	if snapshotVec, err = registerCollector(reg, snapshotVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskRetryTotal:      retryVec,
		taskPanicTotal:      panicVec,
		taskCancelledTotal:  cancelledVec,
		queueDepth:          queueDepthVec,
		snapshotTotal:       snapshotVec,
	}, nil
}

// RecordTaskDuration records one attempt's execution duration.
func (m *MetricsExporter) RecordTaskDuration(queueName string, class core.QualityClass, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(queueName, "unknown"), class.String()).Observe(duration.Seconds())
}

// RecordTaskRetry records a retry of a failed task.
func (m *MetricsExporter) RecordTaskRetry(queueName string, taskID string) {
	if m == nil {
		return
	}
	m.taskRetryTotal.WithLabelValues(normalizeLabel(queueName, "unknown")).Inc()
}

// RecordTaskPanic records a panic recovered from task work.
func (m *MetricsExporter) RecordTaskPanic(queueName string, panicInfo any) {
	if m == nil {
		return
	}
	m.taskPanicTotal.WithLabelValues(normalizeLabel(queueName, "unknown")).Inc()
}

// RecordTaskCancelled records a task reaching the Cancelled state.
func (m *MetricsExporter) RecordTaskCancelled(queueName string) {
	if m == nil {
		return
	}
	m.taskCancelledTotal.WithLabelValues(normalizeLabel(queueName, "unknown")).Inc()
}

// RecordQueueDepth records the number of tracked non-terminal tasks.
func (m *MetricsExporter) RecordQueueDepth(queueName string, depth int) {
	if m == nil {
		return
	}
	m.queueDepth.WithLabelValues(normalizeLabel(queueName, "unknown")).Set(float64(depth))
}

// RecordSnapshot records a queue snapshot event.
func (m *MetricsExporter) RecordSnapshot(queueName string, taskCount int) {
	if m == nil {
		return
	}
	m.snapshotTotal.WithLabelValues(normalizeLabel(queueName, "unknown")).Inc()
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
