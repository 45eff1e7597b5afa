package models

import (
	"encoding/json"
	"time"
)

// WorkflowRequest is the caller-facing input that starts a run.
type WorkflowRequest struct {
	UserRequest     string          `json:"user_request"               validate:"required,min=10"`
	Network         string          `json:"network"                    validate:"required"`
	ArtifactName    string          `json:"artifact_name,omitempty"`
	ConstructorArgs map[string]any  `json:"constructor_args,omitempty"`
	ArgsSchema      json.RawMessage `json:"args_schema,omitempty"` // Optional JSON schema for constructor args
}

// WorkflowSummary is the operator-facing status view of a run. On failure
// it carries the failed stage, the classified error kind, and the retry
// count reached, never a raw stack trace.
type WorkflowSummary struct {
	ID           string    `json:"id"`
	CurrentStage Stage     `json:"current_stage"`
	IsComplete   bool      `json:"is_complete"`
	IsFailed     bool      `json:"is_failed"`
	FailedStage  Stage     `json:"failed_stage,omitempty"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	LastError    string    `json:"last_error,omitempty"`
	RetryCount   int       `json:"retry_count"`
	Address      string    `json:"address,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Summary derives the status view from a context.
func (wc *WorkflowContext) Summary() WorkflowSummary {
	summary := WorkflowSummary{
		ID:           wc.ID,
		CurrentStage: wc.CurrentStage,
		IsComplete:   wc.IsComplete,
		IsFailed:     wc.IsFailed,
		CreatedAt:    wc.CreatedAt,
		UpdatedAt:    wc.UpdatedAt,
	}

	if wc.Deployment != nil {
		summary.Address = wc.Deployment.Address
	}

	if last, ok := wc.LastError(); ok && wc.IsFailed {
		summary.FailedStage = last.Stage
		summary.ErrorKind = last.Kind
		summary.LastError = last.Error
		summary.RetryCount = wc.RetryCount(last.Stage)
	}

	return summary
}
