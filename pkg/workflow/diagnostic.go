package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/quendro/forgeflow/pkg/environment"
	"github.com/quendro/forgeflow/pkg/models"
)

// DiagnosticBundle is the postmortem artifact written on terminal
// failure: the error history, the final summary, and where to find the
// preserved environment.
type DiagnosticBundle struct {
	WorkflowID      string                 `json:"workflow_id"`
	FailedStage     models.Stage           `json:"failed_stage"`
	Summary         models.WorkflowSummary `json:"summary"`
	ErrorHistory    []models.ErrorRecord   `json:"error_history"`
	RetryCounts     map[models.Stage]int   `json:"retry_counts"`
	EnvironmentPath string                 `json:"environment_path,omitempty"`
	CreatedAt       time.Time              `json:"created_at"`
}

// writeDiagnosticBundle serializes the bundle next to the snapshots and
// returns its path.
func (o *Orchestrator) writeDiagnosticBundle(wc *models.WorkflowContext, env *environment.Handle) (string, error) {
	bundle := DiagnosticBundle{
		WorkflowID:   wc.ID,
		Summary:      wc.Summary(),
		ErrorHistory: wc.ErrorHistory,
		RetryCounts:  wc.RetryCounts,
		CreatedAt:    time.Now().UTC(),
	}

	if last, ok := wc.LastError(); ok {
		bundle.FailedStage = last.Stage
	}

	if env != nil {
		bundle.EnvironmentPath = env.Path
	}

	if err := os.MkdirAll(o.diagnosticsDir, 0750); err != nil {
		return "", fmt.Errorf("create diagnostics directory: %w", err)
	}

	data, err := json.MarshalIndent(bundle, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal diagnostic bundle: %w", err)
	}

	path := filepath.Join(o.diagnosticsDir, wc.ID+".json")
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write diagnostic bundle: %w", err)
	}

	return path, nil
}
