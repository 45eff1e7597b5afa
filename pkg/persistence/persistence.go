// Package persistence provides the storage abstraction for workflow
// context snapshots and the operator journal.
package persistence

import (
	"context"

	"github.com/quendro/forgeflow/pkg/models"
)

// Persistence stores workflow context snapshots. A snapshot is written
// after every context mutation, so a crash between stages loses at most
// the in-flight stage's partial work.
type Persistence interface {
	// SaveContext writes a complete snapshot of the context and returns
	// its storage location. The write is durable before it returns.
	SaveContext(ctx context.Context, workflow *models.WorkflowContext) (string, error)

	// LoadContext returns the last snapshot for a workflow id. A missing
	// or corrupt snapshot yields ErrContextNotFound, never a panic, so
	// callers can decide to start a fresh run.
	LoadContext(ctx context.Context, workflowID string) (*models.WorkflowContext, error)

	// ListContexts returns the ids of all stored snapshots.
	ListContexts(ctx context.Context) ([]string, error)

	// AppendJournal adds one human-readable line to the per-workflow
	// journal. The journal is derived from the context and is never the
	// source of truth.
	AppendJournal(ctx context.Context, workflowID, entry string) error

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}
