package metrics

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/quendro/forgeflow/pkg/eventbus"
	"github.com/quendro/forgeflow/pkg/events"
	"github.com/quendro/forgeflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_ObservesLifecycleEvents(t *testing.T) {
	collector := NewCollector()
	bus := eventbus.NewGoChannelEventBus(slog.Default())

	defer func() {
		_ = bus.Close()
	}()

	collector.Observe(bus)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	publish := func(event eventbus.Event) {
		require.NoError(t, bus.Publish(ctx, "wf-12345678", event))
	}

	base := func(eventType events.EventType) events.BaseEvent {
		return events.BaseEvent{Type: eventType, Timestamp: time.Now().UTC(), WorkflowID: "wf-12345678"}
	}

	publish(events.WorkflowStarted{BaseEvent: base(events.WorkflowStartedEvent)})
	publish(events.StageStarted{BaseEvent: base(events.StageStartedEvent), Stage: models.StageCompilation, Attempt: 1})
	publish(events.StageFailed{BaseEvent: base(events.StageFailedEvent), Stage: models.StageCompilation, ErrorKind: "network"})
	publish(events.RetryScheduled{BaseEvent: base(events.RetryScheduledEvent), Stage: models.StageCompilation, RetryCount: 1, MaxRetries: 3})
	publish(events.StageStarted{BaseEvent: base(events.StageStartedEvent), Stage: models.StageCompilation, Attempt: 2})
	publish(events.WorkflowCompleted{BaseEvent: base(events.WorkflowCompletedEvent)})

	// The gochannel transport delivers asynchronously.
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(collector.workflowsCompleted) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, float64(1), testutil.ToFloat64(collector.workflowsStarted))
	assert.Equal(t, float64(0), testutil.ToFloat64(collector.workflowsFailed))
	assert.Equal(t, float64(2), testutil.ToFloat64(collector.stageAttempts.WithLabelValues("compilation")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.stageFailures.WithLabelValues("compilation", "network")))
	assert.Equal(t, float64(1), testutil.ToFloat64(collector.retries.WithLabelValues("compilation")))
}

func TestCollector_RegistryExposesMetrics(t *testing.T) {
	collector := NewCollector()

	families, err := collector.Registry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, family := range families {
		names[family.GetName()] = true
	}

	assert.True(t, names["forgeflow_workflows_started_total"])
	assert.True(t, names["forgeflow_workflows_completed_total"])
	assert.True(t, names["forgeflow_workflows_failed_total"])
}
