// Package tools defines the narrow contracts the engine consumes from its
// external collaborators: code generation, dependency resolution,
// compilation, auditing, deployment, and verification. Implementations
// are out of scope for the engine; the simulated subpackage provides a
// deterministic in-process toolchain.
package tools

import (
	"context"

	"github.com/quendro/forgeflow/pkg/models"
)

// GenerateResult is the payload produced by the generation provider.
type GenerateResult struct {
	Name string
	Code string
}

// Generator produces artifact code from a natural-language prompt.
type Generator interface {
	Generate(ctx context.Context, prompt, hint string) (*GenerateResult, error)
}

// DependencyResolver detects and installs third-party code dependencies.
// Install is idempotent: re-installing an already-installed dependency is
// a no-op success.
type DependencyResolver interface {
	Detect(ctx context.Context, code string) ([]models.Dependency, error)
	Install(ctx context.Context, dep models.Dependency, workdir string) error
}

// CompileResult is the output of a successful compilation.
type CompileResult struct {
	ArtifactPath string
}

// Compiler turns artifact code into a deployable artifact.
type Compiler interface {
	Compile(ctx context.Context, code, name, workdir string) (*CompileResult, error)
}

// Auditor runs the static-analysis/security scanner over the code.
type Auditor interface {
	Audit(ctx context.Context, code string) (*models.AuditReport, error)
}

// Deployer broadcasts the compiled artifact to the target network.
type Deployer interface {
	Deploy(ctx context.Context, artifactPath, network string, constructorArgs map[string]any) (*models.DeploymentResult, error)
}

// Verifier checks the deployed artifact at its address.
type Verifier interface {
	Verify(ctx context.Context, address, network string) (*models.VerificationResult, error)
}

// Toolchain bundles all collaborators consumed by the stage executor.
type Toolchain struct {
	Generator Generator
	Resolver  DependencyResolver
	Compiler  Compiler
	Auditor   Auditor
	Deployer  Deployer
	Verifier  Verifier
}
