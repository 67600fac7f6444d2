package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/promptstrike/promptstrike/pkg/finding"
	"github.com/promptstrike/promptstrike/pkg/jsonutil"
)

// snapshot is the on-disk form of a Memory store.
type snapshot struct {
	Projects []Project                    `json:"projects"`
	Runs     []TestRun                    `json:"runs"`
	Results  map[string][]TestResult      `json:"results"`
	Findings map[string][]finding.Finding `json:"findings"`
}

// Save writes the whole store to path as JSON. The write goes through a
// temp file and rename so a crash never leaves a truncated snapshot.
func (m *Memory) Save(path string) error {
	m.mu.RLock()
	snap := snapshot{
		Projects: make([]Project, 0, len(m.projects)),
		Runs:     make([]TestRun, 0, len(m.runs)),
		Results:  make(map[string][]TestResult, len(m.results)),
		Findings: make(map[string][]finding.Finding, len(m.findings)),
	}
	for _, p := range m.projects {
		snap.Projects = append(snap.Projects, p)
	}
	for _, r := range m.runs {
		snap.Runs = append(snap.Runs, r)
	}
	for id, rs := range m.results {
		snap.Results[id] = append([]TestResult(nil), rs...)
	}
	for id, fs := range m.findings {
		snap.Findings[id] = append([]finding.Finding(nil), fs...)
	}
	m.mu.RUnlock()

	data, err := jsonutil.MarshalIndent(snap, "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".snapshot-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Load replaces the store's contents from a snapshot file written by Save.
func (m *Memory) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var snap snapshot
	if err := jsonutil.Unmarshal(data, &snap); err != nil {
		return fmt.Errorf("parse snapshot %s: %w", path, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.projects = make(map[string]Project, len(snap.Projects))
	for _, p := range snap.Projects {
		m.projects[p.ID] = p
	}
	m.runs = make(map[string]TestRun, len(snap.Runs))
	for _, r := range snap.Runs {
		m.runs[r.ID] = r
	}
	m.results = snap.Results
	if m.results == nil {
		m.results = make(map[string][]TestResult)
	}
	m.findings = snap.Findings
	if m.findings == nil {
		m.findings = make(map[string][]finding.Finding)
	}
	return nil
}
