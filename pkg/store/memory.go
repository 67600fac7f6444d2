package store

import (
	"context"
	"sort"
	"sync"

	"github.com/promptstrike/promptstrike/pkg/finding"
)

// Memory is a thread-safe in-memory Store. Stored pointers are copied on
// the way in and out so callers cannot race on shared structs.
type Memory struct {
	mu       sync.RWMutex
	projects map[string]Project
	runs     map[string]TestRun
	results  map[string][]TestResult
	findings map[string][]finding.Finding
}

var _ Store = (*Memory)(nil)

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		projects: make(map[string]Project),
		runs:     make(map[string]TestRun),
		results:  make(map[string][]TestResult),
		findings: make(map[string][]finding.Finding),
	}
}

func (m *Memory) CreateProject(_ context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects[p.ID] = *p
	return nil
}

func (m *Memory) GetProject(_ context.Context, id string) (*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.projects[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &p, nil
}

func (m *Memory) ListProjects(_ context.Context) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Project, 0, len(m.projects))
	for _, p := range m.projects {
		p := p
		out = append(out, &p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateRun(_ context.Context, r *TestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[r.ID] = *r
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (*TestRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.runs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *Memory) UpdateRun(_ context.Context, r *TestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.runs[r.ID]; !ok {
		return ErrNotFound
	}
	m.runs[r.ID] = *r
	return nil
}

func (m *Memory) ListRunsByProject(_ context.Context, projectID string) ([]*TestRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*TestRun
	for _, r := range m.runs {
		if r.ProjectID == projectID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CreateResult(_ context.Context, r *TestResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.RunID] = append(m.results[r.RunID], *r)
	return nil
}

func (m *Memory) ListResultsByRun(_ context.Context, runID string) ([]*TestResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.results[runID]
	out := make([]*TestResult, len(src))
	for i := range src {
		r := src[i]
		out[i] = &r
	}
	return out, nil
}

func (m *Memory) CreateFinding(_ context.Context, f *finding.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.findings[f.ProjectID] = append(m.findings[f.ProjectID], *f)
	return nil
}

func (m *Memory) ListFindingsByProject(_ context.Context, projectID string) ([]*finding.Finding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	src := m.findings[projectID]
	out := make([]*finding.Finding, len(src))
	for i := range src {
		f := src[i]
		out[i] = &f
	}
	return out, nil
}
