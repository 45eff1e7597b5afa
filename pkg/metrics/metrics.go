// Package metrics exposes Prometheus instrumentation for the pipeline
// engine, fed by the lifecycle event bus.
package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/quendro/forgeflow/pkg/eventbus"
	"github.com/quendro/forgeflow/pkg/events"
)

// Collector holds the engine's Prometheus metrics.
type Collector struct {
	registry *prometheus.Registry

	workflowsStarted   prometheus.Counter
	workflowsCompleted prometheus.Counter
	workflowsFailed    prometheus.Counter

	stageAttempts *prometheus.CounterVec
	stageFailures *prometheus.CounterVec
	retries       *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
}

// NewCollector creates a collector with its own registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Collector{
		registry: registry,
		workflowsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "forgeflow_workflows_started_total",
			Help: "Number of workflow runs started.",
		}),
		workflowsCompleted: factory.NewCounter(prometheus.CounterOpts{
			Name: "forgeflow_workflows_completed_total",
			Help: "Number of workflow runs finished successfully.",
		}),
		workflowsFailed: factory.NewCounter(prometheus.CounterOpts{
			Name: "forgeflow_workflows_failed_total",
			Help: "Number of workflow runs that ended in the failed state.",
		}),
		stageAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forgeflow_stage_attempts_total",
			Help: "Stage attempts, including retries.",
		}, []string{"stage"}),
		stageFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forgeflow_stage_failures_total",
			Help: "Stage failures by classified error kind.",
		}, []string{"stage", "kind"}),
		retries: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "forgeflow_stage_retries_total",
			Help: "Retries scheduled per stage.",
		}, []string{"stage"}),
		stageDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forgeflow_stage_duration_seconds",
			Help:    "Wall-clock duration of successful stage attempts.",
			Buckets: prometheus.DefBuckets,
		}, []string{"stage"}),
	}
}

// Registry returns the underlying registry for HTTP exposure.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Observe registers the collector's handlers on the event bus. Subscribe
// must be called on the bus afterwards by the owner.
func (c *Collector) Observe(bus eventbus.EventBus) {
	bus.Handle(events.WorkflowStartedEvent, func(_ context.Context, _ any) error {
		c.workflowsStarted.Inc()

		return nil
	})

	bus.Handle(events.WorkflowCompletedEvent, func(_ context.Context, _ any) error {
		c.workflowsCompleted.Inc()

		return nil
	})

	bus.Handle(events.WorkflowFailedEvent, func(_ context.Context, _ any) error {
		c.workflowsFailed.Inc()

		return nil
	})

	bus.Handle(events.StageStartedEvent, func(_ context.Context, event any) error {
		if started, ok := event.(*events.StageStarted); ok {
			c.stageAttempts.WithLabelValues(string(started.Stage)).Inc()
		}

		return nil
	})

	bus.Handle(events.StageCompletedEvent, func(_ context.Context, event any) error {
		if completed, ok := event.(*events.StageCompleted); ok {
			c.stageDuration.WithLabelValues(string(completed.Stage)).Observe(completed.Duration.Seconds())
		}

		return nil
	})

	bus.Handle(events.StageFailedEvent, func(_ context.Context, event any) error {
		if failed, ok := event.(*events.StageFailed); ok {
			c.stageFailures.WithLabelValues(string(failed.Stage), failed.ErrorKind).Inc()
		}

		return nil
	})

	bus.Handle(events.RetryScheduledEvent, func(_ context.Context, event any) error {
		if retry, ok := event.(*events.RetryScheduled); ok {
			c.retries.WithLabelValues(string(retry.Stage)).Inc()
		}

		return nil
	})
}
