package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/quendro/forgeflow/pkg/environment"
	"github.com/quendro/forgeflow/pkg/flowerr"
	"github.com/quendro/forgeflow/pkg/models"
	"github.com/quendro/forgeflow/pkg/tools"
	"github.com/xeipuuv/gojsonschema"
)

type stageHandler func(ctx context.Context, wc *models.WorkflowContext, env *environment.Handle) (map[string]any, error)

// Executor runs one pipeline stage at a time, dispatching to external
// collaborators through an explicit per-stage handler table.
type Executor struct {
	toolchain *tools.Toolchain
	timeout   time.Duration
	logger    *slog.Logger
	handlers  map[models.Stage]stageHandler
}

// NewExecutor creates a stage executor over the given toolchain. The
// timeout bounds every collaborator call.
func NewExecutor(toolchain *tools.Toolchain, timeout time.Duration, logger *slog.Logger) *Executor {
	e := &Executor{
		toolchain: toolchain,
		timeout:   timeout,
		logger:    logger,
	}

	// One handler per executable stage; a missing entry is a programming
	// error surfaced by Execute.
	e.handlers = map[models.Stage]stageHandler{
		models.StageInputParsing:         e.parseInput,
		models.StageGeneration:           e.generate,
		models.StageDependencyResolution: e.resolveDependencies,
		models.StageCompilation:          e.compile,
		models.StageAudit:                e.audit,
		models.StageDeployment:           e.deploy,
		models.StageVerification:         e.verify,
	}

	return e
}

// Execute runs one stage against the context. On success it appends a
// success entry to the stage result log and updates the relevant context
// fields; on failure it appends an error entry and propagates a typed
// failure. It never advances the current stage; that is the
// orchestrator's job.
func (e *Executor) Execute(ctx context.Context, wc *models.WorkflowContext, env *environment.Handle, stage models.Stage) error {
	handler, ok := e.handlers[stage]
	if !ok {
		return flowerr.NewStage(flowerr.KindGeneric, "dispatch", stage,
			fmt.Errorf("no handler for stage %s", stage))
	}

	e.logger.Info("Executing stage", "workflow_id", wc.ID, "stage", stage)

	output, err := handler(ctx, wc, env)
	if err != nil {
		wc.AppendStageResult(models.StageResult{
			Stage:  stage,
			Status: models.StageStatusError,
			Error:  err.Error(),
		})

		return err
	}

	wc.AppendStageResult(models.StageResult{
		Stage:  stage,
		Status: models.StageStatusSuccess,
		Output: output,
	})

	return nil
}

// wrap tags a collaborator error with the stage's default kind unless it
// already carries one. Timeouts become retryable by construction.
func wrap(err error, kind flowerr.Kind, op string, stage models.Stage) error {
	var typed *flowerr.Error
	if errors.As(err, &typed) {
		return err
	}

	if errors.Is(err, context.DeadlineExceeded) {
		if kind != flowerr.KindAIProvider {
			kind = flowerr.KindNetwork
		}
	}

	return flowerr.NewStage(kind, op, stage, err)
}

func (e *Executor) parseInput(_ context.Context, wc *models.WorkflowContext, _ *environment.Handle) (map[string]any, error) {
	stage := models.StageInputParsing

	request := strings.TrimSpace(wc.UserRequest)
	if len(request) < 10 {
		return nil, flowerr.NewStage(flowerr.KindValidation, "parse input", stage,
			fmt.Errorf("user request too short to act on (%d chars)", len(request)))
	}

	if wc.Network == "" {
		return nil, flowerr.NewStage(flowerr.KindConfiguration, "parse input", stage,
			errors.New("no target network configured"))
	}

	if len(wc.ArgsSchema) > 0 {
		if err := validateConstructorArgs(wc.ArgsSchema, wc.ConstructorArgs); err != nil {
			return nil, flowerr.NewStage(flowerr.KindValidation, "parse input", stage, err)
		}
	}

	return map[string]any{
		"request_length": len(request),
		"network":        wc.Network,
	}, nil
}

// validateConstructorArgs checks the caller-supplied constructor args
// against the request's JSON schema.
func validateConstructorArgs(schema []byte, args map[string]any) error {
	if args == nil {
		args = map[string]any{}
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewBytesLoader(schema),
		gojsonschema.NewGoLoader(args),
	)
	if err != nil {
		return fmt.Errorf("constructor args schema: %w", err)
	}

	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			details = append(details, desc.String())
		}

		return fmt.Errorf("constructor args invalid: %s", strings.Join(details, "; "))
	}

	return nil
}

func (e *Executor) generate(ctx context.Context, wc *models.WorkflowContext, _ *environment.Handle) (map[string]any, error) {
	stage := models.StageGeneration

	var generated *tools.GenerateResult

	invocation, err := tools.Invoke(ctx, "generator", e.timeout,
		map[string]any{"artifact_name": wc.ArtifactName},
		func(ctx context.Context) (map[string]any, error) {
			var callErr error

			generated, callErr = e.toolchain.Generator.Generate(ctx, wc.UserRequest, wc.ArtifactName)
			if callErr != nil {
				return nil, callErr
			}

			return map[string]any{"name": generated.Name, "code_bytes": len(generated.Code)}, nil
		})
	wc.RecordInvocation(invocation)

	if err != nil {
		return nil, wrap(err, flowerr.KindAIProvider, "generate", stage)
	}

	if generated.Code == "" {
		return nil, flowerr.NewStage(flowerr.KindAIProvider, "generate", stage,
			errors.New("provider returned empty code"))
	}

	wc.SetArtifact(generated.Name, generated.Code)

	return map[string]any{
		"artifact_name": generated.Name,
		"code_bytes":    len(generated.Code),
	}, nil
}

func (e *Executor) resolveDependencies(ctx context.Context, wc *models.WorkflowContext, env *environment.Handle) (map[string]any, error) {
	stage := models.StageDependencyResolution

	var detected []models.Dependency

	invocation, err := tools.Invoke(ctx, "dependency_detector", e.timeout, nil,
		func(ctx context.Context) (map[string]any, error) {
			var callErr error

			detected, callErr = e.toolchain.Resolver.Detect(ctx, wc.ArtifactCode)
			if callErr != nil {
				return nil, callErr
			}

			return map[string]any{"detected": len(detected)}, nil
		})
	wc.RecordInvocation(invocation)

	if err != nil {
		return nil, wrap(err, flowerr.KindNetwork, "detect dependencies", stage)
	}

	for _, dep := range detected {
		wc.AddDependency(dep)
	}

	installed := 0

	for _, dep := range detected {
		// Already-installed dependencies are skipped so stage re-entry
		// never duplicates an applied side effect.
		if wc.Installed(dep.Name) {
			continue
		}

		dep := dep

		invocation, err := tools.Invoke(ctx, "dependency_installer", e.timeout,
			map[string]any{"dependency": dep.Name, "version": dep.Version},
			func(ctx context.Context) (map[string]any, error) {
				if callErr := e.toolchain.Resolver.Install(ctx, dep, env.Path); callErr != nil {
					return nil, callErr
				}

				return map[string]any{"installed": dep.Name}, nil
			})
		wc.RecordInvocation(invocation)

		if err != nil {
			return nil, wrap(err, flowerr.KindNetwork, "install dependency "+dep.Name, stage)
		}

		wc.MarkInstalled(dep)
		installed++
	}

	return map[string]any{
		"detected":  len(detected),
		"installed": installed,
		"resolved":  len(wc.InstalledDependencies),
	}, nil
}

func (e *Executor) compile(ctx context.Context, wc *models.WorkflowContext, env *environment.Handle) (map[string]any, error) {
	stage := models.StageCompilation

	if wc.ArtifactCode == "" {
		return nil, flowerr.NewStage(flowerr.KindValidation, "compile", stage,
			errors.New("no artifact code to compile"))
	}

	var compiled *tools.CompileResult

	invocation, err := tools.Invoke(ctx, "compiler", e.timeout,
		map[string]any{"artifact_name": wc.ArtifactName},
		func(ctx context.Context) (map[string]any, error) {
			var callErr error

			compiled, callErr = e.toolchain.Compiler.Compile(ctx, wc.ArtifactCode, wc.ArtifactName, env.Path)
			if callErr != nil {
				return nil, callErr
			}

			return map[string]any{"artifact_path": compiled.ArtifactPath}, nil
		})
	wc.RecordInvocation(invocation)

	if err != nil {
		return nil, wrap(err, flowerr.KindValidation, "compile", stage)
	}

	wc.SetArtifactPath(compiled.ArtifactPath)

	return map[string]any{"artifact_path": compiled.ArtifactPath}, nil
}

func (e *Executor) audit(ctx context.Context, wc *models.WorkflowContext, _ *environment.Handle) (map[string]any, error) {
	stage := models.StageAudit

	var report *models.AuditReport

	invocation, err := tools.Invoke(ctx, "auditor", e.timeout, nil,
		func(ctx context.Context) (map[string]any, error) {
			var callErr error

			report, callErr = e.toolchain.Auditor.Audit(ctx, wc.ArtifactCode)
			if callErr != nil {
				return nil, callErr
			}

			return map[string]any{"severity": report.Severity, "findings": len(report.Findings)}, nil
		})
	wc.RecordInvocation(invocation)

	if err != nil {
		return nil, wrap(err, flowerr.KindGeneric, "audit", stage)
	}

	wc.SetAuditReport(report)

	if report.Severity == "high" || report.Severity == "critical" {
		return nil, flowerr.NewStage(flowerr.KindValidation, "audit", stage,
			fmt.Errorf("audit reported %d blocking finding(s) at severity %s", len(report.Findings), report.Severity))
	}

	return map[string]any{
		"severity": report.Severity,
		"findings": len(report.Findings),
	}, nil
}

func (e *Executor) deploy(ctx context.Context, wc *models.WorkflowContext, _ *environment.Handle) (map[string]any, error) {
	stage := models.StageDeployment

	if wc.ArtifactPath == "" {
		return nil, flowerr.NewStage(flowerr.KindValidation, "deploy", stage,
			errors.New("no compiled artifact to deploy"))
	}

	var deployment *models.DeploymentResult

	invocation, err := tools.Invoke(ctx, "deployer", e.timeout,
		map[string]any{"network": wc.Network},
		func(ctx context.Context) (map[string]any, error) {
			var callErr error

			deployment, callErr = e.toolchain.Deployer.Deploy(ctx, wc.ArtifactPath, wc.Network, wc.ConstructorArgs)
			if callErr != nil {
				return nil, callErr
			}

			return map[string]any{"address": deployment.Address, "tx_id": deployment.TxID}, nil
		})
	wc.RecordInvocation(invocation)

	if err != nil {
		return nil, wrap(err, flowerr.KindDeployment, "deploy", stage)
	}

	wc.SetDeployment(deployment)

	return map[string]any{
		"address": deployment.Address,
		"tx_id":   deployment.TxID,
		"network": deployment.Network,
	}, nil
}

func (e *Executor) verify(ctx context.Context, wc *models.WorkflowContext, _ *environment.Handle) (map[string]any, error) {
	stage := models.StageVerification

	if wc.Deployment == nil {
		return nil, flowerr.NewStage(flowerr.KindValidation, "verify", stage,
			errors.New("nothing deployed to verify"))
	}

	var verification *models.VerificationResult

	invocation, err := tools.Invoke(ctx, "verifier", e.timeout,
		map[string]any{"address": wc.Deployment.Address, "network": wc.Network},
		func(ctx context.Context) (map[string]any, error) {
			var callErr error

			verification, callErr = e.toolchain.Verifier.Verify(ctx, wc.Deployment.Address, wc.Network)
			if callErr != nil {
				return nil, callErr
			}

			return map[string]any{"status": verification.Status}, nil
		})
	wc.RecordInvocation(invocation)

	if err != nil {
		return nil, wrap(err, flowerr.KindNetwork, "verify", stage)
	}

	wc.SetVerification(verification)

	if verification.Status != "verified" {
		return nil, flowerr.NewStage(flowerr.KindDeployment, "verify", stage,
			fmt.Errorf("verification returned status %q", verification.Status))
	}

	return map[string]any{"status": verification.Status}, nil
}
