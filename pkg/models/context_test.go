package models

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWorkflowContext(t *testing.T) {
	wc := NewWorkflowContext("deploy a simple token", "testnet")

	assert.NotEmpty(t, wc.ID)
	assert.Contains(t, wc.ID, "wf-")
	assert.Equal(t, StageInputParsing, wc.CurrentStage)
	assert.Empty(t, wc.StageResults)
	assert.False(t, wc.IsComplete)
	assert.False(t, wc.IsFailed)
	assert.False(t, wc.Terminal())
}

func TestWorkflowContext_AdvanceStage_FullPipeline(t *testing.T) {
	wc := NewWorkflowContext("deploy a simple token", "testnet")

	for _, stage := range PipelineStages() {
		assert.Equal(t, stage, wc.CurrentStage)
		require.NoError(t, wc.AdvanceStage())
	}

	assert.Equal(t, StageComplete, wc.CurrentStage)
	assert.True(t, wc.IsComplete)
	assert.False(t, wc.IsFailed)
	assert.True(t, wc.Terminal())

	// A terminal context refuses further transitions.
	require.Error(t, wc.AdvanceStage())
	require.Error(t, wc.MarkFailed())
}

func TestWorkflowContext_MarkFailed(t *testing.T) {
	wc := NewWorkflowContext("deploy a simple token", "testnet")
	require.NoError(t, wc.AdvanceStage())

	require.NoError(t, wc.MarkFailed())

	assert.Equal(t, StageFailed, wc.CurrentStage)
	assert.True(t, wc.IsFailed)
	assert.False(t, wc.IsComplete)
	assert.True(t, wc.Terminal())

	require.Error(t, wc.AdvanceStage())
	require.Error(t, wc.MarkFailed())
}

func TestWorkflowContext_IncrementRetry_Monotonic(t *testing.T) {
	wc := NewWorkflowContext("deploy a simple token", "testnet")

	assert.Equal(t, 0, wc.RetryCount(StageCompilation))

	assert.Equal(t, 1, wc.IncrementRetry(StageCompilation))
	assert.Equal(t, 2, wc.IncrementRetry(StageCompilation))
	assert.Equal(t, 2, wc.RetryCount(StageCompilation))

	// Counters are scoped per stage.
	assert.Equal(t, 0, wc.RetryCount(StageDeployment))
	assert.Equal(t, 1, wc.IncrementRetry(StageDeployment))
	assert.Equal(t, 2, wc.RetryCount(StageCompilation))
}

func TestWorkflowContext_IncrementRetry_Concurrent(t *testing.T) {
	wc := NewWorkflowContext("deploy a simple token", "testnet")

	const goroutines = 50

	var wg sync.WaitGroup

	wg.Add(goroutines)

	for range goroutines {
		go func() {
			defer wg.Done()
			wc.IncrementRetry(StageDeployment)
		}()
	}

	wg.Wait()

	assert.Equal(t, goroutines, wc.RetryCount(StageDeployment))
}

func TestWorkflowContext_AppendStageResult_AppendOnly(t *testing.T) {
	wc := NewWorkflowContext("deploy a simple token", "testnet")

	wc.AppendStageResult(StageResult{Stage: StageCompilation, Status: StageStatusError, Error: "boom"})
	wc.AppendStageResult(StageResult{Stage: StageCompilation, Status: StageStatusSuccess})

	require.Len(t, wc.StageResults, 2)
	assert.Equal(t, StageStatusError, wc.StageResults[0].Status)
	assert.Equal(t, StageStatusSuccess, wc.StageResults[1].Status)
	assert.False(t, wc.StageResults[0].RecordedAt.IsZero())
}

func TestWorkflowContext_RecordError_Bounded(t *testing.T) {
	wc := NewWorkflowContext("deploy a simple token", "testnet")

	for i := range ErrorHistoryLimit + 10 {
		wc.RecordError(fmt.Sprintf("failure %d", i), "network", StageDeployment)
	}

	require.Len(t, wc.ErrorHistory, ErrorHistoryLimit)

	// The oldest entries are dropped, the newest kept.
	last, ok := wc.LastError()
	require.True(t, ok)
	assert.Equal(t, fmt.Sprintf("failure %d", ErrorHistoryLimit+9), last.Error)
	assert.Equal(t, fmt.Sprintf("failure %d", 10), wc.ErrorHistory[0].Error)
}

func TestWorkflowContext_MarkInstalled_Idempotent(t *testing.T) {
	wc := NewWorkflowContext("deploy a simple token", "testnet")

	dep := Dependency{Name: "stdtoken", Version: "1.2.0"}
	wc.AddDependency(dep)
	wc.MarkInstalled(dep)
	wc.MarkInstalled(Dependency{Name: "stdtoken", Version: "9.9.9"})

	assert.True(t, wc.Installed("stdtoken"))
	assert.False(t, wc.Installed("stdnft"))
	// Re-marking never overwrites the installed version.
	assert.Equal(t, "1.2.0", wc.InstalledDependencies["stdtoken"].Version)
}

func TestWorkflowContext_Summary_Failed(t *testing.T) {
	wc := NewWorkflowContext("deploy a simple token", "testnet")
	wc.CurrentStage = StageDeployment
	wc.IncrementRetry(StageDeployment)
	wc.RecordError("connection refused", "network", StageDeployment)
	require.NoError(t, wc.MarkFailed())

	summary := wc.Summary()

	assert.Equal(t, wc.ID, summary.ID)
	assert.True(t, summary.IsFailed)
	assert.Equal(t, StageDeployment, summary.FailedStage)
	assert.Equal(t, "network", summary.ErrorKind)
	assert.Equal(t, "connection refused", summary.LastError)
	assert.Equal(t, 1, summary.RetryCount)
}

func TestWorkflowContext_Summary_Running(t *testing.T) {
	wc := NewWorkflowContext("deploy a simple token", "testnet")
	wc.RecordError("transient", "network", StageInputParsing)

	summary := wc.Summary()

	assert.False(t, summary.IsFailed)
	assert.Empty(t, summary.FailedStage)
	assert.Empty(t, summary.LastError)
}
