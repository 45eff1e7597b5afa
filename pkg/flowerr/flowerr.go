// Package flowerr provides the fixed failure taxonomy used by the pipeline
// engine, typed errors carrying a kind, and the classifier that maps any
// failure to a retry decision.
package flowerr

import (
	"context"
	"errors"
	"fmt"

	"github.com/quendro/forgeflow/pkg/models"
)

// Kind is the failure taxonomy. It is closed: every error classifies into
// exactly one of these.
type Kind string

const (
	KindConfiguration Kind = "configuration"
	KindNetwork       Kind = "network"
	KindDeployment    Kind = "deployment"
	KindAIProvider    Kind = "ai_provider"
	KindValidation    Kind = "validation"
	KindGeneric       Kind = "generic"
)

// Severity grades a classified failure.
type Severity string

const (
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeverityCritical Severity = "critical"
)

// Classification is the classifier output: a kind with its fixed severity,
// retry decision, and remediation hints.
type Classification struct {
	Kind             Kind     `json:"kind"`
	Severity         Severity `json:"severity"`
	RetryRecommended bool     `json:"retry_recommended"`
	RemediationHints []string `json:"remediation_hints,omitempty"`
}

// Each kind maps to a fixed severity and retry decision. Configuration and
// validation failures require an upstream fix and are never retried.
var classifications = map[Kind]Classification{
	KindConfiguration: {
		Kind:             KindConfiguration,
		Severity:         SeverityCritical,
		RetryRecommended: false,
		RemediationHints: []string{
			"check credentials and endpoint settings",
			"verify the target network is configured",
		},
	},
	KindNetwork: {
		Kind:             KindNetwork,
		Severity:         SeverityWarning,
		RetryRecommended: true,
		RemediationHints: []string{
			"retry after backoff",
			"check connectivity to the remote endpoint",
		},
	},
	KindDeployment: {
		Kind:             KindDeployment,
		Severity:         SeverityError,
		RetryRecommended: true,
		RemediationHints: []string{
			"resubmit with adjusted deployment parameters",
		},
	},
	KindAIProvider: {
		Kind:             KindAIProvider,
		Severity:         SeverityWarning,
		RetryRecommended: true,
		RemediationHints: []string{
			"retry the generation request",
			"reduce prompt size if the provider rejects it",
		},
	},
	KindValidation: {
		Kind:             KindValidation,
		Severity:         SeverityError,
		RetryRecommended: false,
		RemediationHints: []string{
			"fix the invalid input before rerunning",
		},
	},
	KindGeneric: {
		Kind:             KindGeneric,
		Severity:         SeverityError,
		RetryRecommended: false,
	},
}

// Error is a failure tagged with its taxonomy kind and the pipeline stage
// it occurred in.
type Error struct {
	Kind  Kind
	Op    string
	Stage models.Stage
	Err   error
}

func (e *Error) Error() string {
	if e.Stage != "" {
		return fmt.Sprintf("%s: %s failed at stage %s: %v", e.Kind, e.Op, e.Stage, e.Err)
	}

	return fmt.Sprintf("%s: %s failed: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New wraps err with a kind and operation label.
func New(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// NewStage wraps err with a kind, operation label, and stage.
func NewStage(kind Kind, op string, stage models.Stage, err error) *Error {
	return &Error{Kind: kind, Op: op, Stage: stage, Err: err}
}

// KindOf extracts the taxonomy kind from err; unclassified errors are
// generic.
func KindOf(err error) Kind {
	var typed *Error
	if errors.As(err, &typed) {
		return typed.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}

	return KindGeneric
}

// Classify maps any failure into the fixed taxonomy. It is a pure
// function: the same input always yields the same classification. The
// label names the operation that failed and is carried into the hints for
// operator context.
func Classify(err error, label string) Classification {
	kind := KindOf(err)

	classification := classifications[kind]
	if label != "" {
		hints := make([]string, 0, len(classification.RemediationHints)+1)
		hints = append(hints, "failed operation: "+label)
		hints = append(hints, classification.RemediationHints...)
		classification.RemediationHints = hints
	}

	return classification
}

// Retryable reports whether err classifies as retry-recommended.
func Retryable(err error) bool {
	return classifications[KindOf(err)].RetryRecommended
}
