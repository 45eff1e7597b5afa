// Package environment manages the isolated working directory each
// workflow run executes in.
package environment

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// MarkerFile records why a preserved environment was kept.
const MarkerFile = ".preserved.json"

// Handle identifies one run's working directory. The directory is
// exclusively owned by its workflow run.
type Handle struct {
	WorkflowID string    `json:"workflow_id"`
	Path       string    `json:"path"`
	CreatedAt  time.Time `json:"created_at"`
}

// Marker is the content of the preservation marker file.
type Marker struct {
	WorkflowID  string    `json:"workflow_id"`
	CreatedAt   time.Time `json:"created_at"`
	PreservedAt time.Time `json:"preserved_at"`
}

// Manager creates and disposes run environments under a single root
// directory.
type Manager struct {
	root string
}

// NewManager creates an environment manager rooted at dir.
func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Create makes an isolated working directory for a run. The name is
// derived deterministically from the workflow id plus a timestamp so
// concurrent runs never collide.
func (m *Manager) Create(workflowID string) (*Handle, error) {
	now := time.Now().UTC()
	name := fmt.Sprintf("%s-%s", workflowID, now.Format("20060102T150405"))
	path := filepath.Join(m.root, name)

	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("create environment for %s: %w", workflowID, err)
	}

	return &Handle{
		WorkflowID: workflowID,
		Path:       path,
		CreatedAt:  now,
	}, nil
}

// Cleanup disposes of a run's environment. On clean success the directory
// tree is removed; with preserve set, the tree is kept and a marker file
// is written for later manual inspection.
func (m *Manager) Cleanup(handle *Handle, preserve bool) error {
	if handle == nil {
		return nil
	}

	if !preserve {
		if err := os.RemoveAll(handle.Path); err != nil {
			return fmt.Errorf("remove environment %s: %w", handle.Path, err)
		}

		return nil
	}

	marker := Marker{
		WorkflowID:  handle.WorkflowID,
		CreatedAt:   handle.CreatedAt,
		PreservedAt: time.Now().UTC(),
	}

	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal preservation marker: %w", err)
	}

	markerPath := filepath.Join(handle.Path, MarkerFile)
	if err := os.WriteFile(markerPath, data, 0600); err != nil {
		return fmt.Errorf("write preservation marker for %s: %w", handle.WorkflowID, err)
	}

	return nil
}

// Preserved lists the preserved environments under the manager root.
func (m *Manager) Preserved() ([]Marker, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		if os.IsNotExist(err) {
			return []Marker{}, nil
		}

		return nil, fmt.Errorf("read environments root: %w", err)
	}

	var markers []Marker

	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}

		data, err := os.ReadFile(filepath.Join(m.root, entry.Name(), MarkerFile)) // #nosec G304 -- path is under the manager root
		if err != nil {
			continue
		}

		var marker Marker
		if err := json.Unmarshal(data, &marker); err != nil {
			continue
		}

		markers = append(markers, marker)
	}

	return markers, nil
}
