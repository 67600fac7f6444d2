package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/promptstrike/promptstrike/pkg/finding"
	"github.com/promptstrike/promptstrike/pkg/target"
)

func TestProjectRoundTrip(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	p := NewProject("chatbot", target.Config{BaseURL: "http://localhost:9000/chat"})
	if err := m.CreateProject(ctx, p); err != nil {
		t.Fatalf("CreateProject: %v", err)
	}

	got, err := m.GetProject(ctx, p.ID)
	if err != nil {
		t.Fatalf("GetProject: %v", err)
	}
	if got.Name != "chatbot" || got.Target.BaseURL != "http://localhost:9000/chat" {
		t.Errorf("project = %+v", got)
	}

	// mutating the returned copy must not affect the store
	got.Name = "mutated"
	again, _ := m.GetProject(ctx, p.ID)
	if again.Name != "chatbot" {
		t.Error("store leaked a shared pointer")
	}
}

func TestGetProjectNotFound(t *testing.T) {
	m := NewMemory()
	if _, err := m.GetProject(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRunLifecycle(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	run := NewTestRun("proj-1", RunConfig{RateLimit: 5}, 12)
	if run.Status != RunPending {
		t.Fatalf("new run status = %s", run.Status)
	}
	if err := m.CreateRun(ctx, run); err != nil {
		t.Fatalf("CreateRun: %v", err)
	}

	run.Status = RunRunning
	run.Completed = 4
	if err := m.UpdateRun(ctx, run); err != nil {
		t.Fatalf("UpdateRun: %v", err)
	}

	got, err := m.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun: %v", err)
	}
	if got.Status != RunRunning || got.Completed != 4 {
		t.Errorf("run = %+v", got)
	}
}

func TestUpdateUnknownRun(t *testing.T) {
	m := NewMemory()
	run := NewTestRun("proj-1", RunConfig{}, 1)
	if err := m.UpdateRun(context.Background(), run); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestRunStatusTerminal(t *testing.T) {
	cases := map[RunStatus]bool{
		RunPending:   false,
		RunRunning:   false,
		RunCompleted: true,
		RunFailed:    true,
		RunCancelled: true,
	}
	for status, want := range cases {
		if got := status.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", status, got, want)
		}
	}
}

func TestResultsKeyedByRun(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	for _, runID := range []string{"run-a", "run-a", "run-b"} {
		r := NewTestResult(runID, "proj-1")
		r.Success = true
		if err := m.CreateResult(ctx, r); err != nil {
			t.Fatalf("CreateResult: %v", err)
		}
	}

	a, _ := m.ListResultsByRun(ctx, "run-a")
	b, _ := m.ListResultsByRun(ctx, "run-b")
	if len(a) != 2 || len(b) != 1 {
		t.Errorf("got %d/%d results, want 2/1", len(a), len(b))
	}
}

func TestFindingsKeyedByProject(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	f := finding.New("proj-1", finding.DataExtraction, finding.Critical)
	if err := m.CreateFinding(ctx, &f); err != nil {
		t.Fatalf("CreateFinding: %v", err)
	}

	got, err := m.ListFindingsByProject(ctx, "proj-1")
	if err != nil {
		t.Fatalf("ListFindingsByProject: %v", err)
	}
	if len(got) != 1 || got[0].Category != finding.DataExtraction {
		t.Errorf("findings = %+v", got)
	}

	none, _ := m.ListFindingsByProject(ctx, "other")
	if len(none) != 0 {
		t.Errorf("expected no findings for other project, got %d", len(none))
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	p := NewProject("api-bot", target.Config{BaseURL: "http://example.test"})
	m.CreateProject(ctx, p)
	run := NewTestRun(p.ID, RunConfig{RateLimit: 10, Retries: 3}, 5)
	run.Status = RunCompleted
	m.CreateRun(ctx, run)
	res := NewTestResult(run.ID, p.ID)
	res.Confidence = 0.8
	m.CreateResult(ctx, res)

	path := filepath.Join(t.TempDir(), "state.json")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	restored := NewMemory()
	if err := restored.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}

	gotRun, err := restored.GetRun(ctx, run.ID)
	if err != nil {
		t.Fatalf("GetRun after load: %v", err)
	}
	if gotRun.Status != RunCompleted || gotRun.Config.RateLimit != 10 {
		t.Errorf("run = %+v", gotRun)
	}
	results, _ := restored.ListResultsByRun(ctx, run.ID)
	if len(results) != 1 || results[0].Confidence != 0.8 {
		t.Errorf("results = %+v", results)
	}
}

func TestLoadMissingFile(t *testing.T) {
	m := NewMemory()
	if err := m.Load(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error loading missing snapshot")
	}
}
