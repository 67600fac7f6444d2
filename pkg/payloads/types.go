// Package payloads defines the attack payload entity and the catalog the
// orchestrator selects payloads from. Payloads are immutable during a run;
// only the active flag and metadata change over time, owned by whoever
// maintains the catalog files.
package payloads

import (
	"github.com/promptstrike/promptstrike/pkg/finding"
)

// Placeholder is the marker in a target body template that is replaced
// with the payload content.
const Placeholder = "{{payload}}"

// Payload is a single attack template sent verbatim to a target AI system.
type Payload struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Category    finding.Category `json:"category"`
	Subcategory string           `json:"subcategory,omitempty"`
	Content     string           `json:"content"`
	Severity    finding.Severity `json:"severity"`
	Tags        []string         `json:"tags,omitempty"`
	Active      bool             `json:"is_active"`
}

// Validate reports whether the payload carries everything a run needs.
func (p Payload) Validate() error {
	if p.ID == "" || p.Content == "" {
		return ErrInvalidPayload
	}
	if !p.Category.IsValid() {
		return ErrInvalidPayload
	}
	if !p.Severity.IsValid() {
		return ErrInvalidPayload
	}
	return nil
}

// LoadStats summarizes a catalog load.
type LoadStats struct {
	TotalPayloads int
	FilesLoaded   int
	ByCategory    map[finding.Category]int
}
