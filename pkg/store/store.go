package store

import (
	"context"
	"errors"

	"github.com/promptstrike/promptstrike/pkg/finding"
)

// ErrNotFound is returned when a looked-up entity does not exist.
var ErrNotFound = errors.New("store: not found")

// ProjectStore persists assessment targets.
type ProjectStore interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
}

// RunStore persists test runs.
type RunStore interface {
	CreateRun(ctx context.Context, r *TestRun) error
	GetRun(ctx context.Context, id string) (*TestRun, error)
	UpdateRun(ctx context.Context, r *TestRun) error
	ListRunsByProject(ctx context.Context, projectID string) ([]*TestRun, error)
}

// ResultStore persists per-payload results.
type ResultStore interface {
	CreateResult(ctx context.Context, r *TestResult) error
	ListResultsByRun(ctx context.Context, runID string) ([]*TestResult, error)
}

// FindingStore persists security findings.
type FindingStore interface {
	CreateFinding(ctx context.Context, f *finding.Finding) error
	ListFindingsByProject(ctx context.Context, projectID string) ([]*finding.Finding, error)
}

// Store is the full persistence surface the engine depends on.
type Store interface {
	ProjectStore
	RunStore
	ResultStore
	FindingStore
}
