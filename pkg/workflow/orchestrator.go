// Package workflow implements the orchestration and recovery engine: the
// stage executor, the orchestrator that sequences stages with bounded
// per-stage retry, and the diagnostic bundle written on terminal failure.
package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/quendro/forgeflow/pkg/audit"
	"github.com/quendro/forgeflow/pkg/environment"
	"github.com/quendro/forgeflow/pkg/eventbus"
	"github.com/quendro/forgeflow/pkg/events"
	"github.com/quendro/forgeflow/pkg/flowerr"
	"github.com/quendro/forgeflow/pkg/models"
	"github.com/quendro/forgeflow/pkg/otelhelper"
	"github.com/quendro/forgeflow/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Orchestrator owns the workflow context for the duration of a run and is
// the only component callers interact with. Stages execute strictly
// sequentially; retries are bounded self-loops within a stage, never
// back-transitions to an earlier one.
type Orchestrator struct {
	executor     *Executor
	persistence  persistence.Persistence
	trail        audit.Trail
	environments *environment.Manager
	bus          eventbus.EventBus
	tracer       trace.Tracer
	logger       *slog.Logger
	validate     *validator.Validate

	maxRetries     int
	diagnosticsDir string
}

// NewOrchestrator wires an orchestrator. The event bus may be nil when no
// observers are attached; the audit trail and persistence are mandatory.
func NewOrchestrator(
	executor *Executor,
	store persistence.Persistence,
	trail audit.Trail,
	environments *environment.Manager,
	bus eventbus.EventBus,
	tracer trace.Tracer,
	logger *slog.Logger,
	maxRetries int,
	diagnosticsDir string,
) *Orchestrator {
	if maxRetries <= 0 {
		maxRetries = models.DefaultMaxRetries
	}

	if tracer == nil {
		tracer = otelhelper.NewNoopTracer()
	}

	return &Orchestrator{
		executor:       executor,
		persistence:    store,
		trail:          trail,
		environments:   environments,
		bus:            bus,
		tracer:         tracer,
		logger:         logger,
		validate:       validator.New(validator.WithRequiredStructEnabled()),
		maxRetries:     maxRetries,
		diagnosticsDir: diagnosticsDir,
	}
}

// Start creates a fresh context plus an isolated environment and drives
// the run to a terminal state. The returned context is terminal; the error
// reports the failure that ended a failed run.
func (o *Orchestrator) Start(ctx context.Context, request models.WorkflowRequest) (*models.WorkflowContext, error) {
	if err := o.validate.Struct(request); err != nil {
		return nil, flowerr.New(flowerr.KindValidation, "start workflow", err)
	}

	wc := models.NewWorkflowContext(request.UserRequest, request.Network)
	wc.ArtifactName = request.ArtifactName
	wc.ConstructorArgs = request.ConstructorArgs
	wc.ArgsSchema = request.ArgsSchema

	logger := o.logger.With("workflow_id", wc.ID)
	logger.Info("Starting workflow", "network", request.Network)

	env, err := o.environments.Create(wc.ID)
	if err != nil {
		return nil, flowerr.New(flowerr.KindConfiguration, "create environment", err)
	}

	wc.EnvironmentPath = env.Path

	if err := o.commit(ctx, wc, "workflow created"); err != nil {
		return nil, err
	}

	o.record(ctx, wc, audit.Event{
		Type:       events.WorkflowStartedEvent,
		WorkflowID: wc.ID,
		Details:    map[string]any{"network": wc.Network},
	})
	o.publish(ctx, wc.ID, events.WorkflowStarted{
		BaseEvent:   o.base(events.WorkflowStartedEvent, wc.ID),
		UserRequest: wc.UserRequest,
		Network:     wc.Network,
	})
	o.record(ctx, wc, audit.Event{
		Type:       events.EnvironmentCreatedEvent,
		WorkflowID: wc.ID,
		Details:    map[string]any{"path": env.Path},
	})

	return o.run(ctx, wc, env, logger)
}

// Resume reloads the last snapshot and continues from the current stage.
// An absent or corrupt snapshot surfaces as not-found; a terminal context
// is returned unchanged.
func (o *Orchestrator) Resume(ctx context.Context, workflowID string) (*models.WorkflowContext, error) {
	wc, err := o.persistence.LoadContext(ctx, workflowID)
	if err != nil {
		return nil, err
	}

	if wc.Terminal() {
		return wc, nil
	}

	logger := o.logger.With("workflow_id", wc.ID)
	logger.Info("Resuming workflow", "stage", wc.CurrentStage)

	env := &environment.Handle{
		WorkflowID: wc.ID,
		Path:       wc.EnvironmentPath,
		CreatedAt:  wc.CreatedAt,
	}

	if wc.EnvironmentPath == "" {
		env, err = o.environments.Create(wc.ID)
		if err != nil {
			return nil, flowerr.New(flowerr.KindConfiguration, "create environment", err)
		}

		wc.EnvironmentPath = env.Path
	}

	o.record(ctx, wc, audit.Event{
		Type:       events.WorkflowResumedEvent,
		WorkflowID: wc.ID,
		Stage:      wc.CurrentStage,
	})
	o.publish(ctx, wc.ID, events.WorkflowResumed{
		BaseEvent: o.base(events.WorkflowResumedEvent, wc.ID),
		Stage:     wc.CurrentStage,
	})

	return o.run(ctx, wc, env, logger)
}

// Status returns the operator-facing summary for a workflow id.
func (o *Orchestrator) Status(ctx context.Context, workflowID string) (models.WorkflowSummary, error) {
	wc, err := o.persistence.LoadContext(ctx, workflowID)
	if err != nil {
		return models.WorkflowSummary{}, err
	}

	return wc.Summary(), nil
}

// run drives the stage loop to a terminal state. Retry is bounded
// iteration with an explicit counter check, so a remediation chain that
// keeps re-triggering the failing stage converges to a hard failure
// instead of looping.
func (o *Orchestrator) run(ctx context.Context, wc *models.WorkflowContext, env *environment.Handle, logger *slog.Logger) (*models.WorkflowContext, error) {
	started := time.Now()

	for !wc.Terminal() {
		// Cancellation is observed between stages only: let the current
		// stage finish or time out, then stop before the next one.
		select {
		case <-ctx.Done():
			_ = o.persistence.AppendJournal(ctx, wc.ID, "run interrupted: "+ctx.Err().Error())

			return wc, ctx.Err()
		default:
		}

		stage := wc.CurrentStage
		attempt := wc.RetryCount(stage) + 1

		o.record(ctx, wc, audit.Event{
			Type:       events.StageStartedEvent,
			WorkflowID: wc.ID,
			Stage:      stage,
			Details:    map[string]any{"attempt": attempt},
		})
		o.publish(ctx, wc.ID, events.StageStarted{
			BaseEvent: o.base(events.StageStartedEvent, wc.ID),
			Stage:     stage,
			Attempt:   attempt,
		})

		stageCtx, span := otelhelper.StartSpan(ctx, o.tracer, "stage."+string(stage),
			attribute.String(otelhelper.WorkflowIDKey, wc.ID),
			attribute.String(otelhelper.StageKey, string(stage)),
			attribute.Int(otelhelper.AttemptKey, attempt),
			attribute.String(otelhelper.NetworkKey, wc.Network),
		)

		stageStarted := time.Now()
		invocationsBefore := len(wc.ToolInvocations)
		err := o.executor.Execute(stageCtx, wc, env, stage)
		stageDuration := time.Since(stageStarted)

		// Collaborator calls made during the attempt land on the audit
		// trail and the stage span regardless of the attempt's outcome.
		for _, inv := range wc.ToolInvocations[invocationsBefore:] {
			span.AddEvent("tool.invoked", trace.WithAttributes(
				attribute.String(otelhelper.ToolKey, inv.Tool),
			))
			o.record(ctx, wc, audit.Event{
				Type:       events.ToolInvokedEvent,
				WorkflowID: wc.ID,
				Stage:      stage,
				Error:      inv.Error,
				Details: map[string]any{
					"tool":        inv.Tool,
					"duration_ms": inv.Duration.Milliseconds(),
				},
			})
		}

		if err == nil {
			span.End()

			o.record(ctx, wc, audit.Event{
				Type:       events.StageCompletedEvent,
				WorkflowID: wc.ID,
				Stage:      stage,
				Details:    map[string]any{"duration_ms": stageDuration.Milliseconds()},
			})
			o.publish(ctx, wc.ID, events.StageCompleted{
				BaseEvent: o.base(events.StageCompletedEvent, wc.ID),
				Stage:     stage,
				Duration:  stageDuration,
			})

			if err := wc.AdvanceStage(); err != nil {
				return wc, err
			}

			if err := o.commit(ctx, wc, fmt.Sprintf("stage %s completed, entering %s", stage, wc.CurrentStage)); err != nil {
				return wc, err
			}

			continue
		}

		otelhelper.SetError(span, err)
		span.End()

		classification := flowerr.Classify(err, string(stage))
		wc.RecordError(err.Error(), string(classification.Kind), stage)

		logger.Error("Stage failed",
			"stage", stage,
			"kind", classification.Kind,
			"retry_recommended", classification.RetryRecommended,
			"error", err,
		)

		o.record(ctx, wc, audit.Event{
			Type:       events.StageFailedEvent,
			WorkflowID: wc.ID,
			Stage:      stage,
			Error:      err.Error(),
			Details:    map[string]any{"kind": string(classification.Kind)},
		})
		o.publish(ctx, wc.ID, events.StageFailed{
			BaseEvent:  o.base(events.StageFailedEvent, wc.ID),
			Stage:      stage,
			ErrorKind:  string(classification.Kind),
			Error:      err.Error(),
			RetryCount: wc.RetryCount(stage),
		})

		if err := o.commit(ctx, wc, fmt.Sprintf("stage %s failed (%s): %v", stage, classification.Kind, err)); err != nil {
			return wc, err
		}

		if classification.RetryRecommended && wc.RetryCount(stage) < o.maxRetries {
			count := wc.IncrementRetry(stage)

			o.record(ctx, wc, audit.Event{
				Type:       events.RetryScheduledEvent,
				WorkflowID: wc.ID,
				Stage:      stage,
				Details:    map[string]any{"retry_count": count, "max_retries": o.maxRetries},
			})
			o.publish(ctx, wc.ID, events.RetryScheduled{
				BaseEvent:  o.base(events.RetryScheduledEvent, wc.ID),
				Stage:      stage,
				RetryCount: count,
				MaxRetries: o.maxRetries,
			})

			o.remediate(ctx, wc, env, stage, classification, count)

			if err := o.commit(ctx, wc, fmt.Sprintf("retry %d/%d scheduled for stage %s", count, o.maxRetries, stage)); err != nil {
				return wc, err
			}

			continue
		}

		return wc, o.fail(ctx, wc, env, stage, classification, err, time.Since(started))
	}

	return wc, o.finish(ctx, wc, env, time.Since(started))
}

// finish seals a successful run: final snapshot, environment removal,
// terminal audit record.
func (o *Orchestrator) finish(ctx context.Context, wc *models.WorkflowContext, env *environment.Handle, elapsed time.Duration) error {
	if err := o.commit(ctx, wc, "workflow complete"); err != nil {
		return err
	}

	if err := o.environments.Cleanup(env, false); err != nil {
		o.logger.Warn("Failed to remove environment", "workflow_id", wc.ID, "error", err)
	} else {
		o.record(ctx, wc, audit.Event{
			Type:       events.EnvironmentCleanedEvent,
			WorkflowID: wc.ID,
			Details:    map[string]any{"path": env.Path},
		})
	}

	address := ""
	if wc.Deployment != nil {
		address = wc.Deployment.Address
	}

	o.record(ctx, wc, audit.Event{
		Type:       events.WorkflowCompletedEvent,
		WorkflowID: wc.ID,
		Details:    map[string]any{"address": address, "duration_ms": elapsed.Milliseconds()},
	})
	o.publish(ctx, wc.ID, events.WorkflowCompleted{
		BaseEvent: o.base(events.WorkflowCompletedEvent, wc.ID),
		Address:   address,
		Duration:  elapsed,
	})

	o.logger.Info("Workflow complete", "workflow_id", wc.ID, "address", address, "duration", elapsed)

	return nil
}

// fail seals a failed run: mark terminal, preserve the environment, write
// the diagnostic bundle, emit terminal events. The original stage error is
// returned to the caller.
func (o *Orchestrator) fail(
	ctx context.Context,
	wc *models.WorkflowContext,
	env *environment.Handle,
	stage models.Stage,
	classification flowerr.Classification,
	stageErr error,
	elapsed time.Duration,
) error {
	if err := wc.MarkFailed(); err != nil {
		return err
	}

	if err := o.commit(ctx, wc, fmt.Sprintf("workflow failed at stage %s after %d retries", stage, wc.RetryCount(stage))); err != nil {
		return err
	}

	// Preserve whenever the run failed, marker included, for postmortem.
	if err := o.environments.Cleanup(env, true); err != nil {
		o.logger.Warn("Failed to preserve environment", "workflow_id", wc.ID, "error", err)
	} else {
		o.record(ctx, wc, audit.Event{
			Type:       events.EnvironmentPreservedEvent,
			WorkflowID: wc.ID,
			Details:    map[string]any{"path": env.Path},
		})
	}

	bundlePath, err := o.writeDiagnosticBundle(wc, env)
	if err != nil {
		o.logger.Warn("Failed to write diagnostic bundle", "workflow_id", wc.ID, "error", err)
	} else {
		_ = o.persistence.AppendJournal(ctx, wc.ID, "diagnostic bundle written to "+bundlePath)
	}

	o.record(ctx, wc, audit.Event{
		Type:       events.WorkflowFailedEvent,
		WorkflowID: wc.ID,
		Stage:      stage,
		Error:      stageErr.Error(),
		Details: map[string]any{
			"kind":        string(classification.Kind),
			"retry_count": wc.RetryCount(stage),
			"duration_ms": elapsed.Milliseconds(),
		},
	})
	o.publish(ctx, wc.ID, events.WorkflowFailed{
		BaseEvent: o.base(events.WorkflowFailedEvent, wc.ID),
		Stage:     stage,
		ErrorKind: string(classification.Kind),
		Error:     stageErr.Error(),
		Duration:  elapsed,
	})

	o.logger.Error("Workflow failed",
		"workflow_id", wc.ID,
		"stage", stage,
		"kind", classification.Kind,
		"retries", wc.RetryCount(stage),
	)

	return stageErr
}

// commit persists the snapshot and appends the journal line. Persistence
// happens before the state is reported anywhere else.
func (o *Orchestrator) commit(ctx context.Context, wc *models.WorkflowContext, journal string) error {
	if _, err := o.persistence.SaveContext(ctx, wc); err != nil {
		return err
	}

	if err := o.persistence.AppendJournal(ctx, wc.ID, journal); err != nil {
		o.logger.Warn("Failed to append journal", "workflow_id", wc.ID, "error", err)
	}

	return nil
}

// record writes one audit event; audit failures are logged, never allowed
// to take the run down.
func (o *Orchestrator) record(_ context.Context, wc *models.WorkflowContext, event audit.Event) {
	if err := o.trail.Log(event); err != nil {
		o.logger.Warn("Failed to append audit event", "workflow_id", wc.ID, "event_type", event.Type, "error", err)
	}
}

func (o *Orchestrator) publish(ctx context.Context, workflowID string, event eventbus.Event) {
	if o.bus == nil {
		return
	}

	if err := o.bus.Publish(ctx, workflowID, event); err != nil {
		o.logger.Warn("Failed to publish event", "workflow_id", workflowID, "event_type", event.GetType(), "error", err)
	}
}

func (o *Orchestrator) base(eventType events.EventType, workflowID string) events.BaseEvent {
	id := ""
	if o.bus != nil {
		id = o.bus.GenerateID()
	}

	return events.BaseEvent{
		ID:         id,
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}
