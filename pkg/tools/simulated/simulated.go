// Package simulated provides a deterministic in-process toolchain. It
// stands in for the real generation provider, compiler, scanner, and
// deployer so the engine can run end to end without external services,
// and it backs the integration tests.
package simulated

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/quendro/forgeflow/pkg/models"
	"github.com/quendro/forgeflow/pkg/tools"
)

const requiresMarker = "// requires: "

// NewToolchain builds a fully simulated toolchain. The faults plan may be
// nil; tests use it to inject failures per tool.
func NewToolchain(faults *Faults) *tools.Toolchain {
	if faults == nil {
		faults = NewFaults()
	}

	return &tools.Toolchain{
		Generator: &generator{faults: faults},
		Resolver:  &resolver{faults: faults},
		Compiler:  &compiler{faults: faults},
		Auditor:   &auditor{faults: faults},
		Deployer:  &deployer{faults: faults},
		Verifier:  &verifier{faults: faults},
	}
}

type generator struct {
	faults *Faults
}

func (g *generator) Generate(_ context.Context, prompt, hint string) (*tools.GenerateResult, error) {
	if err := g.faults.next("generator"); err != nil {
		return nil, err
	}

	name := hint
	if name == "" {
		name = nameFromPrompt(prompt)
	}

	var deps []string

	lower := strings.ToLower(prompt)
	if strings.Contains(lower, "token") {
		deps = append(deps, "stdtoken@1.2.0")
	}

	if strings.Contains(lower, "nft") || strings.Contains(lower, "collectible") {
		deps = append(deps, "stdnft@0.9.1")
	}

	var b strings.Builder

	b.WriteString("// " + name + "\n")
	b.WriteString("// generated from request: " + strings.TrimSpace(prompt) + "\n")

	for _, dep := range deps {
		b.WriteString(requiresMarker + dep + "\n")
	}

	b.WriteString("\nartifact " + name + " {\n")
	b.WriteString("    init() {}\n")
	b.WriteString("}\n")

	return &tools.GenerateResult{Name: name, Code: b.String()}, nil
}

func nameFromPrompt(prompt string) string {
	lower := strings.ToLower(prompt)

	switch {
	case strings.Contains(lower, "nft"), strings.Contains(lower, "collectible"):
		return "Collectible"
	case strings.Contains(lower, "vault"):
		return "Vault"
	case strings.Contains(lower, "token"):
		return "SimpleToken"
	default:
		return "Artifact"
	}
}

type resolver struct {
	faults *Faults
}

func (r *resolver) Detect(_ context.Context, code string) ([]models.Dependency, error) {
	if err := r.faults.next("resolver.detect"); err != nil {
		return nil, err
	}

	var deps []models.Dependency

	for _, line := range strings.Split(code, "\n") {
		if !strings.HasPrefix(line, requiresMarker) {
			continue
		}

		spec := strings.TrimSpace(strings.TrimPrefix(line, requiresMarker))
		name, version, _ := strings.Cut(spec, "@")

		deps = append(deps, models.Dependency{
			Name:    name,
			Version: version,
			Source:  "registry.simulated",
		})
	}

	return deps, nil
}

// Install is idempotent: an already-installed dependency is a no-op
// success.
func (r *resolver) Install(_ context.Context, dep models.Dependency, workdir string) error {
	if err := r.faults.next("resolver.install"); err != nil {
		return err
	}

	depDir := filepath.Join(workdir, "deps", dep.Name)
	versionFile := filepath.Join(depDir, "VERSION")

	if _, err := os.Stat(versionFile); err == nil {
		return nil
	}

	if err := os.MkdirAll(depDir, 0750); err != nil {
		return fmt.Errorf("install %s: %w", dep.Name, err)
	}

	if err := os.WriteFile(versionFile, []byte(dep.Version+"\n"), 0600); err != nil {
		return fmt.Errorf("install %s: %w", dep.Name, err)
	}

	return nil
}

type compiler struct {
	faults *Faults
}

func (c *compiler) Compile(_ context.Context, code, name, workdir string) (*tools.CompileResult, error) {
	if err := c.faults.next("compiler"); err != nil {
		return nil, err
	}

	buildDir := filepath.Join(workdir, "build")
	if err := os.MkdirAll(buildDir, 0750); err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	checksum := sha256.Sum256([]byte(code))

	artifact := map[string]any{
		"name":        name,
		"checksum":    hex.EncodeToString(checksum[:]),
		"compiled_at": time.Now().UTC().Format(time.RFC3339),
	}

	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	artifactPath := filepath.Join(buildDir, name+".artifact.json")
	if err := os.WriteFile(artifactPath, data, 0600); err != nil {
		return nil, fmt.Errorf("compile %s: %w", name, err)
	}

	return &tools.CompileResult{ArtifactPath: artifactPath}, nil
}

type auditor struct {
	faults *Faults
}

func (a *auditor) Audit(_ context.Context, code string) (*models.AuditReport, error) {
	if err := a.faults.next("auditor"); err != nil {
		return nil, err
	}

	report := &models.AuditReport{Severity: "none", Findings: []models.AuditFinding{}}

	if strings.Contains(code, "tx.origin") {
		report.Severity = "high"
		report.Findings = append(report.Findings, models.AuditFinding{
			Severity: "high",
			Title:    "tx.origin used for authorization",
		})
	}

	if strings.Contains(code, "unchecked_call") {
		if report.Severity == "none" {
			report.Severity = "low"
		}

		report.Findings = append(report.Findings, models.AuditFinding{
			Severity: "low",
			Title:    "unchecked external call",
		})
	}

	return report, nil
}

type deployer struct {
	faults *Faults
}

func (d *deployer) Deploy(_ context.Context, artifactPath, network string, _ map[string]any) (*models.DeploymentResult, error) {
	if err := d.faults.next("deployer"); err != nil {
		return nil, err
	}

	if _, err := os.Stat(artifactPath); err != nil {
		return nil, fmt.Errorf("deploy: artifact missing at %s: %w", artifactPath, err)
	}

	addrSum := sha256.Sum256([]byte(artifactPath + "|" + network))
	txSum := sha256.Sum256([]byte(network + "|" + artifactPath))

	return &models.DeploymentResult{
		Address:    "0x" + hex.EncodeToString(addrSum[:])[:40],
		TxID:       "0x" + hex.EncodeToString(txSum[:]),
		Network:    network,
		DeployedAt: time.Now().UTC(),
	}, nil
}

type verifier struct {
	faults *Faults
}

func (v *verifier) Verify(_ context.Context, address, _ string) (*models.VerificationResult, error) {
	if err := v.faults.next("verifier"); err != nil {
		return nil, err
	}

	if address == "" {
		return nil, fmt.Errorf("verify: no address to check")
	}

	return &models.VerificationResult{
		Status:    "verified",
		CheckedAt: time.Now().UTC(),
	}, nil
}
