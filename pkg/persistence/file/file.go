// Package file provides file-based persistence for workflow context
// snapshots and the operator journal.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quendro/forgeflow/pkg/models"
	"github.com/quendro/forgeflow/pkg/persistence"
)

const (
	contextsDir = "contexts"
	journalDir  = "journal"
)

// Persistence implements persistence.Persistence on the local file system:
// one JSON snapshot per workflow id plus one chronological journal file.
type Persistence struct {
	root string
}

// NewPersistence creates a file-backed persistence rooted at the given
// directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{root: cleanRoot}
}

// validateWorkflowID rejects ids unsafe for file operations.
func validateWorkflowID(workflowID string) error {
	if workflowID == "" {
		return persistence.ErrInvalidWorkflowID
	}

	// Check for path traversal attempts
	if strings.Contains(workflowID, "..") || strings.ContainsAny(workflowID, `/\`) {
		return persistence.ErrInvalidWorkflowID
	}

	return nil
}

// SaveContext writes a full snapshot of the context. The write goes to a
// temp file first and is renamed into place, so readers never observe a
// partial snapshot.
func (fp *Persistence) SaveContext(_ context.Context, workflow *models.WorkflowContext) (string, error) {
	if err := validateWorkflowID(workflow.ID); err != nil {
		return "", persistence.NewContextError("Save", workflow.ID, err)
	}

	dir := filepath.Join(fp.root, contextsDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", persistence.NewContextError("Save", workflow.ID, fmt.Errorf("create contexts directory: %w", err))
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return "", persistence.NewContextError("Save", workflow.ID, fmt.Errorf("marshal context: %w", err))
	}

	finalPath := filepath.Join(dir, workflow.ID+".json")
	tmpPath := finalPath + ".tmp"

	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return "", persistence.NewContextError("Save", workflow.ID, fmt.Errorf("write snapshot: %w", err))
	}

	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", persistence.NewContextError("Save", workflow.ID, fmt.Errorf("commit snapshot: %w", err))
	}

	return finalPath, nil
}

// LoadContext reads the last snapshot for a workflow id. Missing and
// corrupt snapshots both surface as ErrContextNotFound.
func (fp *Persistence) LoadContext(_ context.Context, workflowID string) (*models.WorkflowContext, error) {
	if err := validateWorkflowID(workflowID); err != nil {
		return nil, persistence.NewContextError("Load", workflowID, err)
	}

	filePath := filepath.Join(fp.root, contextsDir, workflowID+".json")

	data, err := os.ReadFile(filePath) // #nosec G304 -- workflowID is validated above
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.NewContextError("Load", workflowID, persistence.ErrContextNotFound)
		}

		return nil, persistence.NewContextError("Load", workflowID, fmt.Errorf("read snapshot: %w", err))
	}

	var workflow models.WorkflowContext
	if err := json.Unmarshal(data, &workflow); err != nil {
		// A corrupt snapshot is treated as absent so callers can start fresh.
		return nil, persistence.NewContextError("Load", workflowID,
			fmt.Errorf("%w: snapshot corrupt: %v", persistence.ErrContextNotFound, err))
	}

	return &workflow, nil
}

// ListContexts returns all workflow ids with a stored snapshot.
func (fp *Persistence) ListContexts(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(filepath.Join(fp.root, contextsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}

		return nil, fmt.Errorf("read contexts directory: %w", err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}

// AppendJournal adds one timestamped human-readable line to the workflow's
// journal file.
func (fp *Persistence) AppendJournal(_ context.Context, workflowID, entry string) error {
	if err := validateWorkflowID(workflowID); err != nil {
		return persistence.NewContextError("Journal", workflowID, err)
	}

	dir := filepath.Join(fp.root, journalDir)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return persistence.NewContextError("Journal", workflowID, fmt.Errorf("create journal directory: %w", err))
	}

	filePath := filepath.Join(dir, workflowID+".log")

	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600) // #nosec G304 -- workflowID is validated above
	if err != nil {
		return persistence.NewContextError("Journal", workflowID, fmt.Errorf("open journal: %w", err))
	}
	defer func() {
		_ = f.Close()
	}()

	line := fmt.Sprintf("%s %s\n", time.Now().UTC().Format(time.RFC3339), entry)
	if _, err := f.WriteString(line); err != nil {
		return persistence.NewContextError("Journal", workflowID, fmt.Errorf("append journal: %w", err))
	}

	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// Close performs any necessary cleanup. For file-based persistence there
// is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}
