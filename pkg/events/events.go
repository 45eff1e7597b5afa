// Package events defines event types and structures for workflow lifecycle
// notifications.
package events

import (
	"time"

	"github.com/quendro/forgeflow/pkg/models"
)

type EventType string

// Topic carries all workflow lifecycle events.
const Topic = "forgeflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// Workflow lifecycle events.
	WorkflowStartedEvent   EventType = "workflow.started"
	WorkflowCompletedEvent EventType = "workflow.completed"
	WorkflowFailedEvent    EventType = "workflow.failed"
	WorkflowResumedEvent   EventType = "workflow.resumed"

	// Stage lifecycle events.
	StageStartedEvent   EventType = "stage.started"
	StageCompletedEvent EventType = "stage.completed"
	StageFailedEvent    EventType = "stage.failed"
	RetryScheduledEvent EventType = "retry.scheduled"

	// Collaborator and environment events.
	ToolInvokedEvent          EventType = "tool.invoked"
	EnvironmentCreatedEvent   EventType = "environment.created"
	EnvironmentCleanedEvent   EventType = "environment.cleaned"
	EnvironmentPreservedEvent EventType = "environment.preserved"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

type WorkflowStarted struct {
	BaseEvent

	UserRequest string `json:"user_request"`
	Network     string `json:"network,omitempty"`
}

func (w WorkflowStarted) GetType() EventType {
	return WorkflowStartedEvent
}

type WorkflowCompleted struct {
	BaseEvent

	Address  string        `json:"address,omitempty"`
	Duration time.Duration `json:"duration"`
}

func (w WorkflowCompleted) GetType() EventType {
	return WorkflowCompletedEvent
}

type WorkflowFailed struct {
	BaseEvent

	Stage     models.Stage  `json:"stage"`
	ErrorKind string        `json:"error_kind"`
	Error     string        `json:"error"`
	Duration  time.Duration `json:"duration"`
}

func (w WorkflowFailed) GetType() EventType {
	return WorkflowFailedEvent
}

type WorkflowResumed struct {
	BaseEvent

	Stage models.Stage `json:"stage"`
}

func (w WorkflowResumed) GetType() EventType {
	return WorkflowResumedEvent
}

type StageStarted struct {
	BaseEvent

	Stage   models.Stage `json:"stage"`
	Attempt int          `json:"attempt"`
}

func (s StageStarted) GetType() EventType {
	return StageStartedEvent
}

type StageCompleted struct {
	BaseEvent

	Stage    models.Stage  `json:"stage"`
	Duration time.Duration `json:"duration"`
}

func (s StageCompleted) GetType() EventType {
	return StageCompletedEvent
}

type StageFailed struct {
	BaseEvent

	Stage      models.Stage `json:"stage"`
	ErrorKind  string       `json:"error_kind"`
	Error      string       `json:"error"`
	RetryCount int          `json:"retry_count"`
}

func (s StageFailed) GetType() EventType {
	return StageFailedEvent
}

type RetryScheduled struct {
	BaseEvent

	Stage      models.Stage `json:"stage"`
	RetryCount int          `json:"retry_count"`
	MaxRetries int          `json:"max_retries"`
}

func (r RetryScheduled) GetType() EventType {
	return RetryScheduledEvent
}
