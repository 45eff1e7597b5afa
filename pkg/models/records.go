package models

import "time"

// StageStatus is the outcome recorded for one stage attempt.
type StageStatus string

const (
	StageStatusSuccess StageStatus = "success"
	StageStatusError   StageStatus = "error"
)

// StageResult records the outcome of one attempt at a stage. Entries are
// append-only: once written they are never mutated or reordered.
type StageResult struct {
	Stage      Stage          `json:"stage"`
	Status     StageStatus    `json:"status"`
	Output     map[string]any `json:"output,omitempty"`
	Error      string         `json:"error,omitempty"`
	RecordedAt time.Time      `json:"recorded_at"`
}

// ToolInvocation records a single call to an external collaborator. It is
// never mutated after creation.
type ToolInvocation struct {
	Tool       string         `json:"tool"`
	Parameters map[string]any `json:"parameters,omitempty"`
	Result     map[string]any `json:"result,omitempty"`
	Error      string         `json:"error,omitempty"`
	Duration   time.Duration  `json:"duration"`
	StartedAt  time.Time      `json:"started_at"`
}

// ErrorRecord is one entry of the bounded error history ring.
type ErrorRecord struct {
	Error      string    `json:"error"`
	Kind       string    `json:"kind"`
	Stage      Stage     `json:"stage"`
	Timestamp  time.Time `json:"timestamp"`
	RetryCount int       `json:"retry_count"`
}

// Dependency describes one third-party code dependency of the generated
// artifact.
type Dependency struct {
	Name    string `json:"name"`
	Version string `json:"version,omitempty"`
	Source  string `json:"source,omitempty"`
}

// AuditFinding is a single issue reported by the static-analysis scanner.
type AuditFinding struct {
	Severity string `json:"severity"`
	Title    string `json:"title"`
	Detail   string `json:"detail,omitempty"`
	Line     int    `json:"line,omitempty"`
}

// AuditReport is the aggregate result of the audit stage.
type AuditReport struct {
	Severity string         `json:"severity"`
	Findings []AuditFinding `json:"findings"`
}

// DeploymentResult is the outcome of a successful deployment stage.
type DeploymentResult struct {
	Address    string    `json:"address"`
	TxID       string    `json:"tx_id"`
	Network    string    `json:"network"`
	DeployedAt time.Time `json:"deployed_at"`
}

// VerificationResult is the outcome of the verification stage.
type VerificationResult struct {
	Status    string    `json:"status"`
	CheckedAt time.Time `json:"checked_at"`
}
