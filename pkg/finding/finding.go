// Package finding holds the shared security vocabulary of the engine:
// severity levels, attack categories, and the Finding record produced
// when a high-confidence attack success is observed.
package finding

import (
	"time"

	"github.com/google/uuid"
)

// Status tracks the triage lifecycle of a finding.
type Status string

const (
	StatusOpen          Status = "open"
	StatusInProgress    Status = "in_progress"
	StatusResolved      Status = "resolved"
	StatusAcceptedRisk  Status = "accepted_risk"
	StatusFalsePositive Status = "false_positive"
)

// IsValid reports whether s is a recognized status.
func (s Status) IsValid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusAcceptedRisk, StatusFalsePositive:
		return true
	}
	return false
}

// Evidence captures the payload/response excerpt supporting a finding.
type Evidence struct {
	Payload    string   `json:"payload"`
	Response   string   `json:"response"`
	Indicators []string `json:"indicators,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Finding is a security issue, usually auto-derived from a successful
// attack result but also authorable by external tooling.
type Finding struct {
	ID           string    `json:"id"`
	ProjectID    string    `json:"project_id"`
	TestResultID string    `json:"test_result_id,omitempty"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	Severity     Severity  `json:"severity"`
	Category     Category  `json:"category"`
	Evidence     Evidence  `json:"evidence"`
	Remediation  string    `json:"remediation"`
	Status       Status    `json:"status"`
	CreatedAt    time.Time `json:"created_at"`
}

// New creates an open finding with a fresh identifier.
func New(projectID string, category Category, severity Severity) Finding {
	return Finding{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Category:  category,
		Severity:  severity,
		Status:    StatusOpen,
		CreatedAt: time.Now().UTC(),
	}
}
