// Package audit provides the durable, append-only, cross-run event log.
// It lives independently of workflow context snapshots and survives
// context deletion, which makes it usable for cross-run analytics and
// regression detection.
package audit

import (
	"time"

	"github.com/quendro/forgeflow/pkg/events"
	"github.com/quendro/forgeflow/pkg/models"
)

// Event is one structured audit record. It is written once and never
// updated.
type Event struct {
	ID         string           `json:"id"`
	Timestamp  time.Time        `json:"timestamp"`
	Type       events.EventType `json:"type"`
	WorkflowID string           `json:"workflow_id"`
	Stage      models.Stage     `json:"stage,omitempty"`
	Details    map[string]any   `json:"details,omitempty"`
	Error      string           `json:"error,omitempty"`
}

// Filter narrows a Query. Zero values match everything.
type Filter struct {
	WorkflowID string
	Type       events.EventType
	Stage      models.Stage
}

// Statistics aggregates event counts across the trail.
type Statistics struct {
	Total       int            `json:"total"`
	ByType      map[string]int `json:"by_type"`
	SuccessRate float64        `json:"success_rate"`
}

// Trail is the append-only audit log. Log is durable before it returns and
// atomic with respect to concurrent appends from independent runs.
type Trail interface {
	Log(event Event) error
	Query(filter Filter, limit int) ([]Event, error)
	Statistics(workflowID string) (Statistics, error)
	Close() error
}

func (f Filter) matches(event Event) bool {
	if f.WorkflowID != "" && event.WorkflowID != f.WorkflowID {
		return false
	}

	if f.Type != "" && event.Type != f.Type {
		return false
	}

	if f.Stage != "" && event.Stage != f.Stage {
		return false
	}

	return true
}

// successEvent and errorEvent decide which records feed the success rate.
func successEvent(event Event) bool {
	return event.Type == events.StageCompletedEvent || event.Type == events.WorkflowCompletedEvent
}

func errorEvent(event Event) bool {
	return event.Type == events.StageFailedEvent || event.Type == events.WorkflowFailedEvent
}
