// Package store defines the persistence model for projects, test runs,
// results and findings, plus an in-memory implementation with JSON
// snapshot persistence.
package store

import (
	"time"

	"github.com/google/uuid"

	"github.com/promptstrike/promptstrike/pkg/finding"
	"github.com/promptstrike/promptstrike/pkg/target"
)

// RunStatus is the lifecycle state of a test run.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// Terminal reports whether the status is final. Terminal runs never
// change state again.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunCompleted, RunFailed, RunCancelled:
		return true
	}
	return false
}

// String returns the status as a string.
func (s RunStatus) String() string {
	return string(s)
}

// RunConfig records the knobs a run was started with.
type RunConfig struct {
	PayloadIDs         []string           `json:"payload_ids,omitempty"`
	Categories         []finding.Category `json:"categories,omitempty"`
	RateLimit          int                `json:"rate_limit"`
	Timeout            time.Duration      `json:"timeout"`
	Retries            int                `json:"retries"`
	StopOnFirstSuccess bool               `json:"stop_on_first_success"`
	DryRun             bool               `json:"dry_run"`
}

// Project is a configured assessment target.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Target      target.Config `json:"target"`
	CreatedAt   time.Time     `json:"created_at"`
}

// NewProject creates a project with a fresh ID.
func NewProject(name string, tc target.Config) *Project {
	return &Project{
		ID:        uuid.NewString(),
		Name:      name,
		Target:    tc,
		CreatedAt: time.Now().UTC(),
	}
}

// TestRun is the durable record of one test execution.
type TestRun struct {
	ID          string     `json:"id"`
	ProjectID   string     `json:"project_id"`
	Name        string     `json:"name,omitempty"`
	Status      RunStatus  `json:"status"`
	Config      RunConfig  `json:"config"`
	Total       int        `json:"total_payloads"`
	Completed   int        `json:"completed_payloads"`
	Successful  int        `json:"successful_payloads"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// NewTestRun creates a pending run for a project.
func NewTestRun(projectID string, cfg RunConfig, total int) *TestRun {
	return &TestRun{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		Status:    RunPending,
		Config:    cfg,
		Total:     total,
		CreatedAt: time.Now().UTC(),
	}
}

// TestResult is the durable record of one payload delivery, including the
// verbatim request and response for evidence.
type TestResult struct {
	ID          string           `json:"id"`
	RunID       string           `json:"run_id"`
	ProjectID   string           `json:"project_id"`
	PayloadID   string           `json:"payload_id"`
	PayloadName string           `json:"payload_name"`
	Category    finding.Category `json:"category"`
	Severity    finding.Severity `json:"severity"`

	RequestMethod  string            `json:"request_method"`
	RequestURL     string            `json:"request_url"`
	RequestHeaders map[string]string `json:"request_headers,omitempty"`
	RequestBody    string            `json:"request_body"`
	ResponseStatus int               `json:"response_status"`
	// ResponseBody is the extracted response text used for detection;
	// ResponseRaw keeps the verbatim body for evidence.
	ResponseBody string `json:"response_body"`
	ResponseRaw  string `json:"response_raw,omitempty"`

	Success    bool     `json:"success"`
	Confidence float64  `json:"confidence"`
	Indicators []string `json:"indicators,omitempty"`
	DurationMs int64    `json:"duration_ms"`
	Notes      string   `json:"notes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewTestResult creates a result record with a fresh ID.
func NewTestResult(runID, projectID string) *TestResult {
	return &TestResult{
		ID:        uuid.NewString(),
		RunID:     runID,
		ProjectID: projectID,
		CreatedAt: time.Now().UTC(),
	}
}
