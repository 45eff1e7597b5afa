package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPipelineStages_Order(t *testing.T) {
	stages := PipelineStages()

	expected := []Stage{
		StageInputParsing,
		StageGeneration,
		StageDependencyResolution,
		StageCompilation,
		StageAudit,
		StageDeployment,
		StageVerification,
	}
	assert.Equal(t, expected, stages)
}

func TestStage_Next(t *testing.T) {
	tests := []struct {
		stage Stage
		next  Stage
		ok    bool
	}{
		{StageInputParsing, StageGeneration, true},
		{StageGeneration, StageDependencyResolution, true},
		{StageDependencyResolution, StageCompilation, true},
		{StageCompilation, StageAudit, true},
		{StageAudit, StageDeployment, true},
		{StageDeployment, StageVerification, true},
		{StageVerification, StageComplete, true},
		{StageComplete, StageComplete, false},
		{StageFailed, StageFailed, false},
		{Stage("bogus"), Stage("bogus"), false},
	}

	for _, tt := range tests {
		next, ok := tt.stage.Next()
		assert.Equal(t, tt.ok, ok, "stage %s", tt.stage)

		if tt.ok {
			assert.Equal(t, tt.next, next, "stage %s", tt.stage)
		}
	}
}

func TestStage_Terminal(t *testing.T) {
	assert.True(t, StageComplete.Terminal())
	assert.True(t, StageFailed.Terminal())

	for _, stage := range PipelineStages() {
		assert.False(t, stage.Terminal(), "stage %s", stage)
	}
}

func TestParseStage(t *testing.T) {
	stage, err := ParseStage("compilation")
	require.NoError(t, err)
	assert.Equal(t, StageCompilation, stage)

	stage, err = ParseStage("failed")
	require.NoError(t, err)
	assert.Equal(t, StageFailed, stage)

	_, err = ParseStage("linking")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}
