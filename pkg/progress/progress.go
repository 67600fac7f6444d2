// Package progress keeps the live, in-memory view of executing test runs.
// Entries survive their run for a grace period so slow pollers still see
// the terminal state, then a background sweep drops them.
package progress

import (
	"sync"
	"time"
)

// Snapshot is a point-in-time copy of one run's live state. It is safe to
// hand out across goroutines.
type Snapshot struct {
	RunID          string     `json:"run_id"`
	ProjectID      string     `json:"project_id"`
	Status         string     `json:"status"`
	Total          int        `json:"total_payloads"`
	Completed      int        `json:"completed_payloads"`
	Successful     int        `json:"successful_payloads"`
	CurrentPayload string     `json:"current_payload,omitempty"`
	Errors         []string   `json:"errors,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
}

// State tracks one run. All methods are safe for concurrent use; the
// orchestrator writes while API handlers and hooks read.
type State struct {
	mu        sync.Mutex
	snap      Snapshot
	cancelled bool
	expiresAt time.Time
}

// Cancel flags the run for cooperative cancellation. The execution loop
// observes the flag between payloads.
func (s *State) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancelled = true
}

// Cancelled reports whether Cancel has been called.
func (s *State) Cancelled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancelled
}

// Update applies fn to the live state under the lock.
func (s *State) Update(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.snap)
}

// Snapshot returns a copy of the current state.
func (s *State) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snap
	snap.Errors = append([]string(nil), s.snap.Errors...)
	return snap
}

// Registry holds the live state of every known run. The zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	mu     sync.Mutex
	runs   map[string]*State
	grace  time.Duration
	ticker *time.Ticker
	done   chan struct{}
	once   sync.Once
}

// NewRegistry creates a registry whose entries linger for grace after
// their run finishes. The sweep goroutine starts on first Finish.
func NewRegistry(grace time.Duration) *Registry {
	return &Registry{
		runs:  make(map[string]*State),
		grace: grace,
		done:  make(chan struct{}),
	}
}

// Register creates and returns the live state for a new run.
func (r *Registry) Register(runID, projectID string, total int) *State {
	st := &State{
		snap: Snapshot{
			RunID:     runID,
			ProjectID: projectID,
			Status:    "pending",
			Total:     total,
			StartedAt: time.Now().UTC(),
		},
	}
	r.mu.Lock()
	r.runs[runID] = st
	r.mu.Unlock()
	return st
}

// Get returns the live state for runID, or nil if it is unknown or
// already swept.
func (r *Registry) Get(runID string) *State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.runs[runID]
}

// Finish marks the run's entry for expiry after the grace period and
// ensures the sweeper is running.
func (r *Registry) Finish(runID string) {
	r.mu.Lock()
	if st, ok := r.runs[runID]; ok {
		st.mu.Lock()
		st.expiresAt = time.Now().Add(r.grace)
		st.mu.Unlock()
	}
	r.mu.Unlock()
	r.once.Do(r.startSweeper)
}

func (r *Registry) startSweeper() {
	iv := r.grace / 4
	if iv <= 0 {
		iv = time.Second
	}
	r.ticker = time.NewTicker(iv)
	go func() {
		for {
			select {
			case <-r.ticker.C:
				r.sweep(time.Now())
			case <-r.done:
				return
			}
		}
	}()
}

func (r *Registry) sweep(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, st := range r.runs {
		st.mu.Lock()
		expired := !st.expiresAt.IsZero() && now.After(st.expiresAt)
		st.mu.Unlock()
		if expired {
			delete(r.runs, id)
		}
	}
}

// Close stops the sweep goroutine. Idempotent.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	select {
	case <-r.done:
	default:
		close(r.done)
		if r.ticker != nil {
			r.ticker.Stop()
		}
	}
}
