package workflow

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/quendro/forgeflow/pkg/environment"
	"github.com/quendro/forgeflow/pkg/flowerr"
	"github.com/quendro/forgeflow/pkg/models"
	"github.com/quendro/forgeflow/pkg/tools/simulated"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(faults *simulated.Faults) *Executor {
	return NewExecutor(simulated.NewToolchain(faults), 5*time.Second, slog.Default())
}

func newTestEnv(t *testing.T, workflowID string) *environment.Handle {
	t.Helper()

	handle, err := environment.NewManager(t.TempDir()).Create(workflowID)
	require.NoError(t, err)

	return handle
}

func kindOf(t *testing.T, err error) flowerr.Kind {
	t.Helper()

	var typed *flowerr.Error

	require.ErrorAs(t, err, &typed)

	return typed.Kind
}

func TestExecutor_ParseInput_TooShort(t *testing.T) {
	executor := newTestExecutor(nil)
	wc := models.NewWorkflowContext("short", "testnet")
	env := newTestEnv(t, wc.ID)

	err := executor.Execute(context.Background(), wc, env, models.StageInputParsing)
	require.Error(t, err)
	assert.Equal(t, flowerr.KindValidation, kindOf(t, err))

	// The failed attempt is recorded, the stage is not advanced.
	require.Len(t, wc.StageResults, 1)
	assert.Equal(t, models.StageStatusError, wc.StageResults[0].Status)
	assert.Equal(t, models.StageInputParsing, wc.CurrentStage)
}

func TestExecutor_ParseInput_NoNetwork(t *testing.T) {
	executor := newTestExecutor(nil)
	wc := models.NewWorkflowContext("deploy a simple token", "")
	env := newTestEnv(t, wc.ID)

	err := executor.Execute(context.Background(), wc, env, models.StageInputParsing)
	require.Error(t, err)
	assert.Equal(t, flowerr.KindConfiguration, kindOf(t, err))
}

func TestExecutor_ParseInput_SchemaValidation(t *testing.T) {
	executor := newTestExecutor(nil)

	schema := []byte(`{
		"type": "object",
		"properties": {"supply": {"type": "integer", "minimum": 1}},
		"required": ["supply"]
	}`)

	wc := models.NewWorkflowContext("deploy a simple token", "testnet")
	wc.ArgsSchema = schema
	wc.ConstructorArgs = map[string]any{"supply": 1000}
	env := newTestEnv(t, wc.ID)

	require.NoError(t, executor.Execute(context.Background(), wc, env, models.StageInputParsing))

	invalid := models.NewWorkflowContext("deploy a simple token", "testnet")
	invalid.ArgsSchema = schema
	invalid.ConstructorArgs = map[string]any{"supply": -5}

	err := executor.Execute(context.Background(), invalid, env, models.StageInputParsing)
	require.Error(t, err)
	assert.Equal(t, flowerr.KindValidation, kindOf(t, err))
	assert.Contains(t, err.Error(), "constructor args invalid")
}

func TestExecutor_Generate(t *testing.T) {
	executor := newTestExecutor(nil)
	wc := models.NewWorkflowContext("deploy a simple token", "testnet")
	env := newTestEnv(t, wc.ID)

	require.NoError(t, executor.Execute(context.Background(), wc, env, models.StageGeneration))

	assert.Equal(t, "SimpleToken", wc.ArtifactName)
	assert.NotEmpty(t, wc.ArtifactCode)
	require.Len(t, wc.ToolInvocations, 1)
	assert.Equal(t, "generator", wc.ToolInvocations[0].Tool)
	assert.Empty(t, wc.ToolInvocations[0].Error)
}

func TestExecutor_Generate_ProviderFailure(t *testing.T) {
	faults := simulated.NewFaults()
	faults.Fail("generator", errors.New("model overloaded"))

	executor := newTestExecutor(faults)
	wc := models.NewWorkflowContext("deploy a simple token", "testnet")
	env := newTestEnv(t, wc.ID)

	err := executor.Execute(context.Background(), wc, env, models.StageGeneration)
	require.Error(t, err)
	assert.Equal(t, flowerr.KindAIProvider, kindOf(t, err))

	// The failed invocation is still recorded.
	require.Len(t, wc.ToolInvocations, 1)
	assert.Contains(t, wc.ToolInvocations[0].Error, "model overloaded")
}

func TestExecutor_ResolveDependencies_SkipsInstalled(t *testing.T) {
	executor := newTestExecutor(nil)
	wc := models.NewWorkflowContext("deploy a simple token", "testnet")
	env := newTestEnv(t, wc.ID)

	require.NoError(t, executor.Execute(context.Background(), wc, env, models.StageGeneration))
	require.NoError(t, executor.Execute(context.Background(), wc, env, models.StageDependencyResolution))

	assert.True(t, wc.Installed("stdtoken"))
	installsBefore := len(wc.ToolInvocations)

	// Re-entering the stage detects again but installs nothing.
	require.NoError(t, executor.Execute(context.Background(), wc, env, models.StageDependencyResolution))

	installed := 0

	for _, inv := range wc.ToolInvocations[installsBefore:] {
		if inv.Tool == "dependency_installer" {
			installed++
		}
	}

	assert.Zero(t, installed)
}

func TestExecutor_Compile_NoCode(t *testing.T) {
	executor := newTestExecutor(nil)
	wc := models.NewWorkflowContext("deploy a simple token", "testnet")
	env := newTestEnv(t, wc.ID)

	err := executor.Execute(context.Background(), wc, env, models.StageCompilation)
	require.Error(t, err)
	assert.Equal(t, flowerr.KindValidation, kindOf(t, err))
}

func TestExecutor_Audit_BlocksHighSeverity(t *testing.T) {
	executor := newTestExecutor(nil)
	wc := models.NewWorkflowContext("deploy a simple token", "testnet")
	wc.ArtifactCode = "if (tx.origin == owner) {}"
	env := newTestEnv(t, wc.ID)

	err := executor.Execute(context.Background(), wc, env, models.StageAudit)
	require.Error(t, err)
	assert.Equal(t, flowerr.KindValidation, kindOf(t, err))

	// The report is attached even when it blocks the run.
	require.NotNil(t, wc.AuditReport)
	assert.Equal(t, "high", wc.AuditReport.Severity)
}

func TestExecutor_Deploy_DefaultKind(t *testing.T) {
	faults := simulated.NewFaults()
	faults.Fail("deployer", errors.New("nonce too low"))

	executor := newTestExecutor(faults)
	wc := models.NewWorkflowContext("deploy a simple token", "testnet")
	wc.ArtifactPath = "/tmp/whatever.json"
	env := newTestEnv(t, wc.ID)

	err := executor.Execute(context.Background(), wc, env, models.StageDeployment)
	require.Error(t, err)
	assert.Equal(t, flowerr.KindDeployment, kindOf(t, err))
}

func TestExecutor_Deploy_KeepsInjectedKind(t *testing.T) {
	faults := simulated.NewFaults()
	faults.Fail("deployer", flowerr.New(flowerr.KindConfiguration, "deploy", errors.New("missing signing key")))

	executor := newTestExecutor(faults)
	wc := models.NewWorkflowContext("deploy a simple token", "testnet")
	wc.ArtifactPath = "/tmp/whatever.json"
	env := newTestEnv(t, wc.ID)

	err := executor.Execute(context.Background(), wc, env, models.StageDeployment)
	require.Error(t, err)
	assert.Equal(t, flowerr.KindConfiguration, kindOf(t, err))
}

func TestExecutor_UnknownStage(t *testing.T) {
	executor := newTestExecutor(nil)
	wc := models.NewWorkflowContext("deploy a simple token", "testnet")
	env := newTestEnv(t, wc.ID)

	err := executor.Execute(context.Background(), wc, env, models.StageComplete)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no handler")
}
