// Package models defines the core domain models for the forgeflow pipeline
// engine: the workflow context, stage enum, and the records attached to a
// run over its lifetime.
package models

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultMaxRetries bounds recovery attempts per stage.
	DefaultMaxRetries = 3

	// ErrorHistoryLimit caps the error history ring.
	ErrorHistoryLimit = 50
)

// WorkflowContext is the full state of one workflow run. It is exclusively
// owned by the orchestrator for the lifetime of the run and becomes
// read-only once a terminal stage is reached.
type WorkflowContext struct {
	ID           string `json:"id"`
	UserRequest  string `json:"user_request"`
	Network      string `json:"network,omitempty"`
	CurrentStage Stage  `json:"current_stage"`

	ConstructorArgs map[string]any  `json:"constructor_args,omitempty"`
	ArgsSchema      json.RawMessage `json:"args_schema,omitempty"`

	StageResults    []StageResult    `json:"stage_results"`
	ToolInvocations []ToolInvocation `json:"tool_invocations,omitempty"`

	ArtifactName string `json:"artifact_name,omitempty"`
	ArtifactCode string `json:"artifact_code,omitempty"`
	ArtifactPath string `json:"artifact_path,omitempty"`

	Dependencies          map[string]Dependency `json:"dependencies,omitempty"`
	InstalledDependencies map[string]Dependency `json:"installed_dependencies,omitempty"`

	AuditReport  *AuditReport        `json:"audit_report,omitempty"`
	Deployment   *DeploymentResult   `json:"deployment,omitempty"`
	Verification *VerificationResult `json:"verification,omitempty"`

	RetryCounts  map[Stage]int `json:"retry_counts"`
	ErrorHistory []ErrorRecord `json:"error_history,omitempty"`

	EnvironmentPath string `json:"environment_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	IsComplete bool `json:"is_complete"`
	IsFailed   bool `json:"is_failed"`

	mu sync.Mutex
}

// NewWorkflowContext creates a context for a fresh run, positioned at the
// first pipeline stage.
func NewWorkflowContext(userRequest, network string) *WorkflowContext {
	now := time.Now().UTC()

	return &WorkflowContext{
		ID:                    "wf-" + uuid.New().String()[:8],
		UserRequest:           userRequest,
		Network:               network,
		CurrentStage:          StageInputParsing,
		StageResults:          []StageResult{},
		Dependencies:          make(map[string]Dependency),
		InstalledDependencies: make(map[string]Dependency),
		RetryCounts:           make(map[Stage]int),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

func (wc *WorkflowContext) touch() {
	wc.UpdatedAt = time.Now().UTC()
}

// Terminal reports whether the run has finished, successfully or not.
func (wc *WorkflowContext) Terminal() bool {
	return wc.CurrentStage.Terminal()
}

// AppendStageResult appends one attempt outcome to the append-only result
// log.
func (wc *WorkflowContext) AppendStageResult(result StageResult) {
	if result.RecordedAt.IsZero() {
		result.RecordedAt = time.Now().UTC()
	}

	wc.StageResults = append(wc.StageResults, result)
	wc.touch()
}

// RecordInvocation attaches a collaborator call record to the context.
func (wc *WorkflowContext) RecordInvocation(inv ToolInvocation) {
	if inv.StartedAt.IsZero() {
		inv.StartedAt = time.Now().UTC()
	}

	wc.ToolInvocations = append(wc.ToolInvocations, inv)
	wc.touch()
}

// RecordError appends an entry to the bounded error history, dropping the
// oldest entries beyond ErrorHistoryLimit.
func (wc *WorkflowContext) RecordError(message, kind string, stage Stage) {
	record := ErrorRecord{
		Error:      message,
		Kind:       kind,
		Stage:      stage,
		Timestamp:  time.Now().UTC(),
		RetryCount: wc.RetryCount(stage),
	}

	wc.ErrorHistory = append(wc.ErrorHistory, record)
	if len(wc.ErrorHistory) > ErrorHistoryLimit {
		wc.ErrorHistory = wc.ErrorHistory[len(wc.ErrorHistory)-ErrorHistoryLimit:]
	}

	wc.touch()
}

// IncrementRetry bumps the attempt counter for a stage and returns the new
// count. The counter is scoped per stage, never resets within a run, and
// the increment is atomic even when invoked from a remediation path that
// re-enters the same stage.
func (wc *WorkflowContext) IncrementRetry(stage Stage) int {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	if wc.RetryCounts == nil {
		wc.RetryCounts = make(map[Stage]int)
	}

	wc.RetryCounts[stage]++
	wc.UpdatedAt = time.Now().UTC()

	return wc.RetryCounts[stage]
}

// RetryCount returns the attempt counter for a stage; 0 for stages never
// retried.
func (wc *WorkflowContext) RetryCount(stage Stage) int {
	wc.mu.Lock()
	defer wc.mu.Unlock()

	return wc.RetryCounts[stage]
}

// AdvanceStage moves the run to the next pipeline stage. It never skips a
// stage and never moves backwards.
func (wc *WorkflowContext) AdvanceStage() error {
	if wc.Terminal() {
		return fmt.Errorf("workflow %s already terminal at stage %s", wc.ID, wc.CurrentStage)
	}

	next, ok := wc.CurrentStage.Next()
	if !ok {
		return fmt.Errorf("stage %s has no successor", wc.CurrentStage)
	}

	wc.CurrentStage = next
	if next == StageComplete {
		wc.IsComplete = true
	}

	wc.touch()

	return nil
}

// MarkFailed moves the run into the absorbing failed state. The terminal
// flags are mutually exclusive and set once.
func (wc *WorkflowContext) MarkFailed() error {
	if wc.Terminal() {
		return fmt.Errorf("workflow %s already terminal at stage %s", wc.ID, wc.CurrentStage)
	}

	wc.CurrentStage = StageFailed
	wc.IsFailed = true
	wc.touch()

	return nil
}

// SetArtifact stores the payload produced by the generation stage.
func (wc *WorkflowContext) SetArtifact(name, code string) {
	wc.ArtifactName = name
	wc.ArtifactCode = code
	wc.touch()
}

// SetAuditReport stores the audit stage result.
func (wc *WorkflowContext) SetAuditReport(report *AuditReport) {
	wc.AuditReport = report
	wc.touch()
}

// SetDeployment stores the deployment stage result.
func (wc *WorkflowContext) SetDeployment(result *DeploymentResult) {
	wc.Deployment = result
	wc.touch()
}

// SetVerification stores the verification stage result.
func (wc *WorkflowContext) SetVerification(result *VerificationResult) {
	wc.Verification = result
	wc.touch()
}

// SetArtifactPath stores the compiled artifact location.
func (wc *WorkflowContext) SetArtifactPath(path string) {
	wc.ArtifactPath = path
	wc.touch()
}

// AddDependency records a detected dependency.
func (wc *WorkflowContext) AddDependency(dep Dependency) {
	if wc.Dependencies == nil {
		wc.Dependencies = make(map[string]Dependency)
	}

	wc.Dependencies[dep.Name] = dep
	wc.touch()
}

// MarkInstalled records a resolved dependency. Re-marking an installed
// dependency is a no-op, which keeps stage re-entry idempotent.
func (wc *WorkflowContext) MarkInstalled(dep Dependency) {
	if wc.InstalledDependencies == nil {
		wc.InstalledDependencies = make(map[string]Dependency)
	}

	if _, ok := wc.InstalledDependencies[dep.Name]; ok {
		return
	}

	wc.InstalledDependencies[dep.Name] = dep
	wc.touch()
}

// Installed reports whether a dependency has already been resolved.
func (wc *WorkflowContext) Installed(name string) bool {
	_, ok := wc.InstalledDependencies[name]

	return ok
}

// LastError returns the most recent error record, if any.
func (wc *WorkflowContext) LastError() (ErrorRecord, bool) {
	if len(wc.ErrorHistory) == 0 {
		return ErrorRecord{}, false
	}

	return wc.ErrorHistory[len(wc.ErrorHistory)-1], true
}
