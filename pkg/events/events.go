// Package events defines the event stream a test run emits while it
// executes. Hooks and writers consume these for logging, metrics and
// tracing without coupling to the orchestrator.
package events

import (
	"time"

	"github.com/promptstrike/promptstrike/pkg/finding"
)

// Type identifies the kind of run event.
type Type string

const (
	// TypeStart indicates a test run has started.
	TypeStart Type = "start"
	// TypeResult indicates a single payload result.
	TypeResult Type = "result"
	// TypeProgress indicates a progress update during execution.
	TypeProgress Type = "progress"
	// TypeFinding indicates a finding was created from a result.
	TypeFinding Type = "finding"
	// TypeError indicates an error occurred.
	TypeError Type = "error"
	// TypeComplete indicates a run reached a terminal state.
	TypeComplete Type = "complete"
)

// Event is the base interface for all run events.
type Event interface {
	EventType() Type
	Timestamp() time.Time
	RunID() string
}

// BaseEvent carries the fields common to all events and is embedded in
// the specific event types.
type BaseEvent struct {
	Type Type      `json:"type"`
	Time time.Time `json:"timestamp"`
	Run  string    `json:"run_id"`
}

// EventType returns the type of this event.
func (e BaseEvent) EventType() Type { return e.Type }

// Timestamp returns when this event occurred.
func (e BaseEvent) Timestamp() time.Time { return e.Time }

// RunID returns the run that produced this event.
func (e BaseEvent) RunID() string { return e.Run }

// Base builds a BaseEvent stamped with the current time.
func Base(t Type, runID string) BaseEvent {
	return BaseEvent{Type: t, Time: time.Now().UTC(), Run: runID}
}

// StartEvent is emitted when a run begins executing.
type StartEvent struct {
	BaseEvent
	ProjectID     string             `json:"project_id"`
	TargetURL     string             `json:"target_url"`
	TotalPayloads int                `json:"total_payloads"`
	Categories    []finding.Category `json:"categories,omitempty"`
	DryRun        bool               `json:"dry_run,omitempty"`
}

// ResultEvent is emitted for every delivered payload.
type ResultEvent struct {
	BaseEvent
	PayloadID   string           `json:"payload_id"`
	PayloadName string           `json:"payload_name"`
	Category    finding.Category `json:"category"`
	Severity    finding.Severity `json:"severity"`
	Success     bool             `json:"success"`
	Confidence  float64          `json:"confidence"`
	Indicators  []string         `json:"indicators,omitempty"`
	StatusCode  int              `json:"status_code"`
	LatencyMs   float64          `json:"latency_ms"`
}

// ProgressEvent is emitted after each payload completes.
type ProgressEvent struct {
	BaseEvent
	Completed  int     `json:"completed"`
	Total      int     `json:"total"`
	Successful int     `json:"successful"`
	Percentage float64 `json:"percentage"`
}

// FindingEvent is emitted when a high-confidence success is escalated
// into a finding.
type FindingEvent struct {
	BaseEvent
	FindingID string           `json:"finding_id"`
	ProjectID string           `json:"project_id"`
	Category  finding.Category `json:"category"`
	Severity  finding.Severity `json:"severity"`
	Title     string           `json:"title"`
}

// ErrorEvent is emitted for payload delivery failures and run-fatal
// errors alike; Fatal distinguishes them.
type ErrorEvent struct {
	BaseEvent
	PayloadID string `json:"payload_id,omitempty"`
	Message   string `json:"message"`
	Fatal     bool   `json:"fatal"`
}

// CompleteEvent is emitted exactly once, when a run reaches a terminal
// state.
type CompleteEvent struct {
	BaseEvent
	Status     string        `json:"status"`
	Completed  int           `json:"completed"`
	Successful int           `json:"successful"`
	Duration   time.Duration `json:"duration_ns"`
}
