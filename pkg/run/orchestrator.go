// Package run orchestrates test execution: it resolves the project and
// payload selection, drives payload delivery at a bounded rate, classifies
// responses, persists results and findings, and keeps live progress
// observable throughout.
package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/promptstrike/promptstrike/pkg/defaults"
	"github.com/promptstrike/promptstrike/pkg/detect"
	"github.com/promptstrike/promptstrike/pkg/dispatcher"
	"github.com/promptstrike/promptstrike/pkg/events"
	"github.com/promptstrike/promptstrike/pkg/finding"
	"github.com/promptstrike/promptstrike/pkg/payloads"
	"github.com/promptstrike/promptstrike/pkg/progress"
	"github.com/promptstrike/promptstrike/pkg/store"
	"github.com/promptstrike/promptstrike/pkg/target"
)

// StartConfig holds the per-run knobs. Zero values take engine defaults.
type StartConfig struct {
	Name               string
	Selection          payloads.Selection
	RateLimit          int
	Timeout            time.Duration
	Retries            int
	StopOnFirstSuccess bool
	DryRun             bool
}

// RunDefaults are the engine-wide fallbacks for per-run knobs; individual
// runs may override any of them. Zero fields take package defaults.
type RunDefaults struct {
	RateLimit int
	Timeout   time.Duration
	Retries   int
}

// Config wires the orchestrator's collaborators.
type Config struct {
	Store    store.Store
	Catalog  *payloads.Catalog
	Detector *detect.Engine
	Registry *progress.Registry
	Events   *dispatcher.Dispatcher

	// Defaults fills StartConfig knobs the caller left zero.
	Defaults RunDefaults

	// FindingThreshold is the confidence at or above which a successful
	// result becomes a finding. Zero means the default.
	FindingThreshold float64
}

// Orchestrator owns the lifecycle of test runs. Runs execute on their own
// goroutines; the orchestrator survives the HTTP requests that start them.
type Orchestrator struct {
	store    store.Store
	catalog  *payloads.Catalog
	detector *detect.Engine
	registry *progress.Registry
	events   *dispatcher.Dispatcher
	log      *slog.Logger

	runDefaults      RunDefaults
	findingThreshold float64

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	wg       sync.WaitGroup
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) {
		if l != nil {
			o.log = l
		}
	}
}

// New creates an orchestrator. Store, Catalog and Detector are required;
// Registry defaults to a fresh one and Events may be nil.
func New(cfg Config, opts ...Option) *Orchestrator {
	if cfg.Registry == nil {
		cfg.Registry = progress.NewRegistry(defaults.ProgressGrace)
	}
	if cfg.FindingThreshold <= 0 {
		cfg.FindingThreshold = defaults.FindingThreshold
	}
	if cfg.Defaults.RateLimit <= 0 {
		cfg.Defaults.RateLimit = defaults.RateLimit
	}
	if cfg.Defaults.Timeout <= 0 {
		cfg.Defaults.Timeout = defaults.Timeout
	}
	if cfg.Defaults.Retries <= 0 {
		cfg.Defaults.Retries = defaults.Retries
	}

	o := &Orchestrator{
		store:            cfg.Store,
		catalog:          cfg.Catalog,
		detector:         cfg.Detector,
		registry:         cfg.Registry,
		events:           cfg.Events,
		log:              slog.Default(),
		runDefaults:      cfg.Defaults,
		findingThreshold: cfg.FindingThreshold,
		limiters:         make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// StartTest creates a run for the project and begins executing it on a
// background goroutine. The returned run is in the pending state; callers
// observe progress through GetProgress.
func (o *Orchestrator) StartTest(ctx context.Context, projectID string, cfg StartConfig) (*store.TestRun, error) {
	project, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	selected, err := o.catalog.Select(cfg.Selection)
	if err != nil {
		return nil, err
	}

	if cfg.RateLimit <= 0 {
		cfg.RateLimit = o.runDefaults.RateLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = o.runDefaults.Timeout
	}
	if cfg.Retries <= 0 {
		cfg.Retries = o.runDefaults.Retries
	}

	testRun := store.NewTestRun(projectID, store.RunConfig{
		PayloadIDs:         cfg.Selection.IDs,
		Categories:         cfg.Selection.Categories,
		RateLimit:          cfg.RateLimit,
		Timeout:            cfg.Timeout,
		Retries:            cfg.Retries,
		StopOnFirstSuccess: cfg.StopOnFirstSuccess,
		DryRun:             cfg.DryRun,
	}, len(selected))
	testRun.Name = cfg.Name
	if err := o.store.CreateRun(ctx, testRun); err != nil {
		return nil, err
	}

	state := o.registry.Register(testRun.ID, projectID, len(selected))

	o.mu.Lock()
	o.limiters[testRun.ID] = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	o.mu.Unlock()

	runCopy := *testRun
	o.wg.Add(1)
	go o.execute(context.WithoutCancel(ctx), &runCopy, *project, selected, state)

	return testRun, nil
}

// CancelTest requests cooperative cancellation. The execution loop
// observes the flag between payloads; in-flight requests are not aborted.
func (o *Orchestrator) CancelTest(ctx context.Context, runID string) error {
	testRun, err := o.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrRunNotFound
		}
		return err
	}
	if testRun.Status.Terminal() {
		return ErrRunFinished
	}
	if state := o.registry.Get(runID); state != nil {
		state.Cancel()
		return nil
	}
	// No live state (engine restarted mid-run): finalize directly.
	now := time.Now().UTC()
	testRun.Status = store.RunCancelled
	testRun.CompletedAt = &now
	return o.store.UpdateRun(ctx, testRun)
}

// GetTestRun returns the durable run record.
func (o *Orchestrator) GetTestRun(ctx context.Context, runID string) (*store.TestRun, error) {
	testRun, err := o.store.GetRun(ctx, runID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}
	return testRun, nil
}

// Detail bundles a run with its ordered results and current progress.
type Detail struct {
	Run      *store.TestRun      `json:"run"`
	Results  []*store.TestResult `json:"results"`
	Progress progress.Snapshot   `json:"progress"`
}

// GetTestRunDetail returns the run together with its results in delivery
// order and the current progress snapshot.
func (o *Orchestrator) GetTestRunDetail(ctx context.Context, runID string) (*Detail, error) {
	testRun, err := o.GetTestRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	results, err := o.store.ListResultsByRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	snap, err := o.GetProgress(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &Detail{Run: testRun, Results: results, Progress: snap}, nil
}

// GetProgress returns the live snapshot for a run. Once the live entry
// has been swept, the snapshot is reconstructed from the durable record.
func (o *Orchestrator) GetProgress(ctx context.Context, runID string) (progress.Snapshot, error) {
	if state := o.registry.Get(runID); state != nil {
		return state.Snapshot(), nil
	}
	testRun, err := o.GetTestRun(ctx, runID)
	if err != nil {
		return progress.Snapshot{}, err
	}
	snap := progress.Snapshot{
		RunID:      testRun.ID,
		ProjectID:  testRun.ProjectID,
		Status:     testRun.Status.String(),
		Total:      testRun.Total,
		Completed:  testRun.Completed,
		Successful: testRun.Successful,
	}
	if testRun.Error != "" {
		snap.Errors = []string{testRun.Error}
	}
	if testRun.StartedAt != nil {
		snap.StartedAt = *testRun.StartedAt
	}
	snap.CompletedAt = testRun.CompletedAt
	return snap, nil
}

// StreamSnapshot is a progress snapshot normalized for incremental
// streaming consumers.
type StreamSnapshot struct {
	progress.Snapshot
	IsComplete bool `json:"is_complete"`
}

// GetProgressForSSE returns the run's snapshot together with a completion
// flag so streaming clients know when to stop polling.
func (o *Orchestrator) GetProgressForSSE(ctx context.Context, runID string) (StreamSnapshot, error) {
	snap, err := o.GetProgress(ctx, runID)
	if err != nil {
		return StreamSnapshot{}, err
	}
	return StreamSnapshot{
		Snapshot:   snap,
		IsComplete: store.RunStatus(snap.Status).Terminal(),
	}, nil
}

// SetRateLimit adjusts the pace of a running test. Returns ErrRunNotFound
// when the run has no active limiter.
func (o *Orchestrator) SetRateLimit(runID string, rps int) error {
	if rps <= 0 {
		rps = defaults.RateLimit
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	limiter, ok := o.limiters[runID]
	if !ok {
		return ErrRunNotFound
	}
	limiter.SetLimit(rate.Limit(rps))
	return nil
}

// Wait blocks until every started run has finished.
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

func (o *Orchestrator) execute(ctx context.Context, testRun *store.TestRun, project store.Project, selected []payloads.Payload, state *progress.State) {
	defer o.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			o.log.Error("run panicked", "run_id", testRun.ID, "panic", r)
			o.finish(ctx, testRun, state, store.RunFailed, fmt.Sprintf("internal error: %v", r))
		}
	}()

	started := time.Now().UTC()
	testRun.Status = store.RunRunning
	testRun.StartedAt = &started
	if err := o.store.UpdateRun(ctx, testRun); err != nil {
		o.log.Error("persist run start failed", "run_id", testRun.ID, "error", err)
	}
	state.Update(func(s *progress.Snapshot) { s.Status = store.RunRunning.String() })

	o.emit(ctx, events.StartEvent{
		BaseEvent:     events.Base(events.TypeStart, testRun.ID),
		ProjectID:     project.ID,
		TargetURL:     project.Target.BaseURL,
		TotalPayloads: len(selected),
		Categories:    testRun.Config.Categories,
		DryRun:        testRun.Config.DryRun,
	})

	targetCfg := project.Target
	targetCfg.Timeout = testRun.Config.Timeout
	invoker := target.New(targetCfg, target.WithLogger(o.log))

	o.mu.Lock()
	limiter := o.limiters[testRun.ID]
	o.mu.Unlock()

	for _, p := range selected {
		if state.Cancelled() {
			o.finish(ctx, testRun, state, store.RunCancelled, "")
			return
		}
		if err := limiter.Wait(ctx); err != nil {
			o.finish(ctx, testRun, state, store.RunFailed, err.Error())
			return
		}

		state.Update(func(s *progress.Snapshot) { s.CurrentPayload = p.Name })

		stop := o.runPayload(ctx, testRun, project, invoker, p, state)

		testRun.Completed++
		if err := o.store.UpdateRun(ctx, testRun); err != nil {
			o.log.Error("persist run progress failed", "run_id", testRun.ID, "error", err)
		}
		o.emit(ctx, events.ProgressEvent{
			BaseEvent:  events.Base(events.TypeProgress, testRun.ID),
			Completed:  testRun.Completed,
			Total:      testRun.Total,
			Successful: testRun.Successful,
			Percentage: float64(testRun.Completed) / float64(testRun.Total) * 100,
		})

		if stop {
			break
		}
	}

	o.finish(ctx, testRun, state, store.RunCompleted, "")
}

// runPayload delivers one payload and records its outcome. A delivery
// error is isolated to this payload; it never fails the run. The return
// value reports whether the run should stop early.
func (o *Orchestrator) runPayload(ctx context.Context, testRun *store.TestRun, project store.Project, invoker *target.Invoker, p payloads.Payload, state *progress.State) bool {
	result := store.NewTestResult(testRun.ID, project.ID)
	result.PayloadID = p.ID
	result.PayloadName = p.Name
	result.Category = p.Category
	result.Severity = p.Severity

	res, err := invoker.Invoke(ctx, p, target.Options{
		Attempts: testRun.Config.Retries,
		DryRun:   testRun.Config.DryRun,
	})
	if err != nil {
		result.Notes = err.Error()
		if res != nil {
			result.RequestMethod = res.RequestMethod
			result.RequestURL = res.RequestURL
			result.RequestHeaders = res.RequestHeaders
			result.RequestBody = res.RequestBody
		}
		if serr := o.store.CreateResult(ctx, result); serr != nil {
			o.log.Error("persist result failed", "run_id", testRun.ID, "error", serr)
		}
		state.Update(func(s *progress.Snapshot) {
			s.Completed++
			s.Errors = append(s.Errors, fmt.Sprintf("%s: %v", p.ID, err))
		})
		o.emit(ctx, events.ErrorEvent{
			BaseEvent: events.Base(events.TypeError, testRun.ID),
			PayloadID: p.ID,
			Message:   err.Error(),
		})
		return false
	}

	verdict := o.detector.Classify(res.ResponseBody, p.Category)

	result.RequestMethod = res.RequestMethod
	result.RequestURL = res.RequestURL
	result.RequestHeaders = res.RequestHeaders
	result.RequestBody = res.RequestBody
	result.ResponseStatus = res.StatusCode
	result.ResponseBody = res.ResponseBody
	result.ResponseRaw = res.RawBody
	result.Success = verdict.Success
	result.Confidence = verdict.Confidence
	result.Indicators = verdict.Indicators
	result.DurationMs = res.Duration.Milliseconds()
	if res.DryRun {
		result.Notes = "dry run"
	}
	if err := o.store.CreateResult(ctx, result); err != nil {
		o.log.Error("persist result failed", "run_id", testRun.ID, "error", err)
	}

	if verdict.Success {
		testRun.Successful++
	}
	state.Update(func(s *progress.Snapshot) {
		s.Completed++
		if verdict.Success {
			s.Successful++
		}
	})

	o.emit(ctx, events.ResultEvent{
		BaseEvent:   events.Base(events.TypeResult, testRun.ID),
		PayloadID:   p.ID,
		PayloadName: p.Name,
		Category:    p.Category,
		Severity:    p.Severity,
		Success:     verdict.Success,
		Confidence:  verdict.Confidence,
		Indicators:  verdict.Indicators,
		StatusCode:  res.StatusCode,
		LatencyMs:   float64(res.Duration.Microseconds()) / 1000,
	})

	if verdict.Success && verdict.Confidence >= o.findingThreshold {
		o.createFinding(ctx, testRun, project, p, result, verdict)
	}

	return verdict.Success && testRun.Config.StopOnFirstSuccess
}

func (o *Orchestrator) createFinding(ctx context.Context, testRun *store.TestRun, project store.Project, p payloads.Payload, result *store.TestResult, verdict detect.Result) {
	f := finding.New(project.ID, p.Category, p.Severity)
	f.TestResultID = result.ID
	f.Title = fmt.Sprintf("%s succeeded: %s", p.Category, p.Name)
	f.Description = p.Description
	f.Evidence = finding.Evidence{
		Payload:    p.Content,
		Response:   result.ResponseBody,
		Indicators: verdict.Indicators,
		Confidence: verdict.Confidence,
	}
	f.Remediation = finding.RemediationFor(p.Category)

	if err := o.store.CreateFinding(ctx, &f); err != nil {
		o.log.Error("persist finding failed", "run_id", testRun.ID, "error", err)
		return
	}
	o.emit(ctx, events.FindingEvent{
		BaseEvent: events.Base(events.TypeFinding, testRun.ID),
		FindingID: f.ID,
		ProjectID: project.ID,
		Category:  f.Category,
		Severity:  f.Severity,
		Title:     f.Title,
	})
}

// finish moves the run into a terminal state exactly once and schedules
// the live entry for expiry.
func (o *Orchestrator) finish(ctx context.Context, testRun *store.TestRun, state *progress.State, status store.RunStatus, errMsg string) {
	now := time.Now().UTC()
	testRun.Status = status
	testRun.CompletedAt = &now
	testRun.Error = errMsg
	if err := o.store.UpdateRun(ctx, testRun); err != nil {
		o.log.Error("persist run completion failed", "run_id", testRun.ID, "error", err)
	}

	state.Update(func(s *progress.Snapshot) {
		s.Status = status.String()
		s.CurrentPayload = ""
		s.CompletedAt = &now
		if errMsg != "" {
			s.Errors = append(s.Errors, errMsg)
		}
	})
	o.registry.Finish(testRun.ID)

	o.mu.Lock()
	delete(o.limiters, testRun.ID)
	o.mu.Unlock()

	var duration time.Duration
	if testRun.StartedAt != nil {
		duration = now.Sub(*testRun.StartedAt)
	}
	if errMsg != "" {
		o.emit(ctx, events.ErrorEvent{
			BaseEvent: events.Base(events.TypeError, testRun.ID),
			Message:   errMsg,
			Fatal:     true,
		})
	}
	o.emit(ctx, events.CompleteEvent{
		BaseEvent:  events.Base(events.TypeComplete, testRun.ID),
		Status:     status.String(),
		Completed:  testRun.Completed,
		Successful: testRun.Successful,
		Duration:   duration,
	})
}

func (o *Orchestrator) emit(ctx context.Context, event events.Event) {
	if o.events != nil {
		o.events.Emit(ctx, event)
	}
}
