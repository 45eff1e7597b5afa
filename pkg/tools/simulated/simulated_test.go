package simulated

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/quendro/forgeflow/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerator_Generate(t *testing.T) {
	toolchain := NewToolchain(nil)

	result, err := toolchain.Generator.Generate(context.Background(), "deploy a simple token", "")
	require.NoError(t, err)

	assert.Equal(t, "SimpleToken", result.Name)
	assert.Contains(t, result.Code, "artifact SimpleToken")
	assert.Contains(t, result.Code, "// requires: stdtoken@1.2.0")
}

func TestGenerator_NameFromPrompt(t *testing.T) {
	tests := []struct {
		prompt string
		name   string
	}{
		{"mint an nft collection", "Collectible"},
		{"a vault holding deposits", "Vault"},
		{"deploy a simple token", "SimpleToken"},
		{"something unusual", "Artifact"},
	}

	toolchain := NewToolchain(nil)

	for _, tt := range tests {
		result, err := toolchain.Generator.Generate(context.Background(), tt.prompt, "")
		require.NoError(t, err)
		assert.Equal(t, tt.name, result.Name, "prompt %q", tt.prompt)
	}
}

func TestGenerator_NameHintWins(t *testing.T) {
	toolchain := NewToolchain(nil)

	result, err := toolchain.Generator.Generate(context.Background(), "deploy a simple token", "MyToken")
	require.NoError(t, err)
	assert.Equal(t, "MyToken", result.Name)
}

func TestResolver_DetectAndInstall(t *testing.T) {
	toolchain := NewToolchain(nil)
	workdir := t.TempDir()

	code := "// SimpleToken\n// requires: stdtoken@1.2.0\n// requires: stdnft@0.9.1\n\nartifact SimpleToken {}\n"

	deps, err := toolchain.Resolver.Detect(context.Background(), code)
	require.NoError(t, err)
	require.Len(t, deps, 2)
	assert.Equal(t, models.Dependency{Name: "stdtoken", Version: "1.2.0", Source: "registry.simulated"}, deps[0])

	for _, dep := range deps {
		require.NoError(t, toolchain.Resolver.Install(context.Background(), dep, workdir))
	}

	data, err := os.ReadFile(filepath.Join(workdir, "deps", "stdtoken", "VERSION"))
	require.NoError(t, err)
	assert.Equal(t, "1.2.0\n", string(data))
}

func TestResolver_Install_Idempotent(t *testing.T) {
	toolchain := NewToolchain(nil)
	workdir := t.TempDir()

	dep := models.Dependency{Name: "stdtoken", Version: "1.2.0"}

	require.NoError(t, toolchain.Resolver.Install(context.Background(), dep, workdir))

	// Second install leaves the existing version untouched.
	dep.Version = "2.0.0"
	require.NoError(t, toolchain.Resolver.Install(context.Background(), dep, workdir))

	data, err := os.ReadFile(filepath.Join(workdir, "deps", "stdtoken", "VERSION"))
	require.NoError(t, err)
	assert.Equal(t, "1.2.0\n", string(data))
}

func TestCompiler_Compile(t *testing.T) {
	toolchain := NewToolchain(nil)
	workdir := t.TempDir()

	result, err := toolchain.Compiler.Compile(context.Background(), "artifact SimpleToken {}", "SimpleToken", workdir)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(workdir, "build", "SimpleToken.artifact.json"), result.ArtifactPath)
	assert.FileExists(t, result.ArtifactPath)
}

func TestAuditor_Audit(t *testing.T) {
	toolchain := NewToolchain(nil)

	report, err := toolchain.Auditor.Audit(context.Background(), "artifact Clean {}")
	require.NoError(t, err)
	assert.Equal(t, "none", report.Severity)
	assert.Empty(t, report.Findings)

	report, err = toolchain.Auditor.Audit(context.Background(), "if (tx.origin == owner) {}")
	require.NoError(t, err)
	assert.Equal(t, "high", report.Severity)
	require.Len(t, report.Findings, 1)
	assert.Equal(t, "high", report.Findings[0].Severity)

	report, err = toolchain.Auditor.Audit(context.Background(), "unchecked_call(target)")
	require.NoError(t, err)
	assert.Equal(t, "low", report.Severity)
}

func TestDeployer_Deploy(t *testing.T) {
	toolchain := NewToolchain(nil)
	workdir := t.TempDir()

	compiled, err := toolchain.Compiler.Compile(context.Background(), "artifact SimpleToken {}", "SimpleToken", workdir)
	require.NoError(t, err)

	deployment, err := toolchain.Deployer.Deploy(context.Background(), compiled.ArtifactPath, "testnet", nil)
	require.NoError(t, err)

	assert.Len(t, deployment.Address, 42)
	assert.Contains(t, deployment.Address, "0x")
	assert.Equal(t, "testnet", deployment.Network)

	// Same artifact and network always deploys to the same address.
	again, err := toolchain.Deployer.Deploy(context.Background(), compiled.ArtifactPath, "testnet", nil)
	require.NoError(t, err)
	assert.Equal(t, deployment.Address, again.Address)
}

func TestDeployer_Deploy_MissingArtifact(t *testing.T) {
	toolchain := NewToolchain(nil)

	_, err := toolchain.Deployer.Deploy(context.Background(), filepath.Join(t.TempDir(), "nope.json"), "testnet", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "artifact missing")
}

func TestVerifier_Verify(t *testing.T) {
	toolchain := NewToolchain(nil)

	result, err := toolchain.Verifier.Verify(context.Background(), "0xabc", "testnet")
	require.NoError(t, err)
	assert.Equal(t, "verified", result.Status)

	_, err = toolchain.Verifier.Verify(context.Background(), "", "testnet")
	require.Error(t, err)
}

func TestFaults_Queue(t *testing.T) {
	faults := NewFaults()
	first := errors.New("first")
	second := errors.New("second")

	faults.Fail("compiler", first, second)

	toolchain := NewToolchain(faults)
	workdir := t.TempDir()

	_, err := toolchain.Compiler.Compile(context.Background(), "code", "Artifact", workdir)
	assert.ErrorIs(t, err, first)

	_, err = toolchain.Compiler.Compile(context.Background(), "code", "Artifact", workdir)
	assert.ErrorIs(t, err, second)

	// Queue drained, calls succeed again.
	_, err = toolchain.Compiler.Compile(context.Background(), "code", "Artifact", workdir)
	assert.NoError(t, err)
}
