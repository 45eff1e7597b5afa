package models

import "fmt"

// Stage represents one step of the artifact pipeline.
type Stage string

const (
	StageInputParsing         Stage = "input_parsing"
	StageGeneration           Stage = "generation"
	StageDependencyResolution Stage = "dependency_resolution"
	StageCompilation          Stage = "compilation"
	StageAudit                Stage = "audit"
	StageDeployment           Stage = "deployment"
	StageVerification         Stage = "verification"
	StageComplete             Stage = "complete" // Terminal, run finished cleanly
	StageFailed               Stage = "failed"   // Terminal, absorbing failure state
)

// pipelineOrder is the linear stage sequence. Back-transitions happen only
// by retrying the same stage, never by re-entering an earlier one.
var pipelineOrder = []Stage{
	StageInputParsing,
	StageGeneration,
	StageDependencyResolution,
	StageCompilation,
	StageAudit,
	StageDeployment,
	StageVerification,
	StageComplete,
}

// PipelineStages returns the executable stages in order, excluding the
// terminal states.
func PipelineStages() []Stage {
	stages := make([]Stage, 0, len(pipelineOrder)-1)
	for _, s := range pipelineOrder {
		if !s.Terminal() {
			stages = append(stages, s)
		}
	}

	return stages
}

// Next returns the stage following s in the pipeline. The second return
// value is false for terminal or unknown stages.
func (s Stage) Next() (Stage, bool) {
	for i, stage := range pipelineOrder {
		if stage == s && i < len(pipelineOrder)-1 {
			return pipelineOrder[i+1], true
		}
	}

	return s, false
}

// Terminal reports whether s is an absorbing state.
func (s Stage) Terminal() bool {
	return s == StageComplete || s == StageFailed
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	if s == StageFailed {
		return true
	}

	for _, stage := range pipelineOrder {
		if stage == s {
			return true
		}
	}

	return false
}

// ParseStage converts a raw string into a Stage.
func ParseStage(raw string) (Stage, error) {
	stage := Stage(raw)
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage %q", raw)
	}

	return stage, nil
}
