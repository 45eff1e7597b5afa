// Package web provides the HTTP handlers of the forgeflow status API.
package web

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/quendro/forgeflow/pkg/audit"
	"github.com/quendro/forgeflow/pkg/events"
	"github.com/quendro/forgeflow/pkg/flowerr"
	"github.com/quendro/forgeflow/pkg/models"
	"github.com/quendro/forgeflow/pkg/persistence"
)

const defaultEventLimit = 50

// Runner drives workflow runs started through the API.
type Runner interface {
	Start(ctx context.Context, request models.WorkflowRequest) (*models.WorkflowContext, error)
}

// APIHandlers serves workflow runs, snapshot views and the audit trail.
type APIHandlers struct {
	store  persistence.Persistence
	trail  audit.Trail
	runner Runner
	logger *slog.Logger
}

// NewAPIHandlers wires the handlers. runner may be nil for a read-only
// deployment; CreateWorkflow then answers 503.
func NewAPIHandlers(store persistence.Persistence, trail audit.Trail, runner Runner, logger *slog.Logger) *APIHandlers {
	return &APIHandlers{store: store, trail: trail, runner: runner, logger: logger}
}

// CreateWorkflow accepts a workflow request and drives the run to a
// terminal state. A failed run still answers 201; the summary carries
// the failed stage and classified error kind.
func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	if h.runner == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"error": "workflow runs are not enabled on this server",
		})
	}

	var request models.WorkflowRequest
	if err := c.Bind().JSON(&request); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	wc, err := h.runner.Start(c.Context(), request)
	if wc == nil {
		if flowerr.KindOf(err) == flowerr.KindValidation {
			return badRequest(c, err.Error())
		}

		return internalError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(wc.Summary())
}

// GetWorkflows returns the summaries of every stored workflow.
func (h *APIHandlers) GetWorkflows(c fiber.Ctx) error {
	ctx := c.Context()

	ids, err := h.store.ListContexts(ctx)
	if err != nil {
		return internalError(c, err)
	}

	summaries := make([]models.WorkflowSummary, 0, len(ids))

	for _, id := range ids {
		wc, err := h.store.LoadContext(ctx, id)
		if err != nil {
			// Skip snapshots that vanished or rotted between list and load.
			h.logger.Warn("Skipping unreadable snapshot", "workflow_id", id, "error", err)

			continue
		}

		summaries = append(summaries, wc.Summary())
	}

	return c.JSON(fiber.Map{
		"workflows": summaries,
		"count":     len(summaries),
	})
}

// GetWorkflow returns the status summary for one workflow id.
func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	wc, err := h.store.LoadContext(c.Context(), id)
	if err != nil {
		return handleStoreError(c, err)
	}

	return c.JSON(wc.Summary())
}

// GetWorkflowEvents returns the audit events of one workflow, most recent
// first.
func (h *APIHandlers) GetWorkflowEvents(c fiber.Ctx) error {
	id := c.Params("id")
	if id == "" {
		return badRequest(c, "workflow id is required")
	}

	limit := defaultEventLimit

	if limitStr := c.Query("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed < 1 {
			return badRequest(c, "limit must be a positive integer")
		}

		limit = parsed
	}

	filter := audit.Filter{WorkflowID: id}

	if eventType := c.Query("type"); eventType != "" {
		filter.Type = events.EventType(eventType)
	}

	if stageStr := c.Query("stage"); stageStr != "" {
		stage, err := models.ParseStage(stageStr)
		if err != nil {
			return badRequest(c, err.Error())
		}

		filter.Stage = stage
	}

	records, err := h.trail.Query(filter, limit)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(fiber.Map{
		"events": records,
		"count":  len(records),
	})
}

// GetStatistics aggregates audit-trail counts, optionally scoped to one
// workflow via the workflow_id query parameter.
func (h *APIHandlers) GetStatistics(c fiber.Ctx) error {
	stats, err := h.trail.Statistics(c.Query("workflow_id"))
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(stats)
}

// HealthCheck verifies the persistence layer is reachable.
func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	if err := h.store.HealthCheck(c.Context()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}

	return c.JSON(fiber.Map{"status": "ok"})
}
