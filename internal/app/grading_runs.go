package app

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"emprendo-intake/internal/domain"
)

// RunRepository abstracts where grading runs live (in-memory, Redis, etc).
type RunRepository interface {
	GetOrCreate(runID, formSlug string) *Run
	Get(ctx context.Context, runID string) (*Run, bool)
	Delete(runID string)
}

// RunMode selects the grader of a batch run.
type RunMode string

const (
	// RunRank persists the rule-based ranking only.
	RunRank RunMode = "rank"
	// RunReview also applies the hybrid grader with external scoring.
	RunReview RunMode = "review"
)

// RunRequest starts a batch grading run.
type RunRequest struct {
	FormSlug    string  `json:"formSlug"`
	Mode        RunMode `json:"mode"`
	PendingOnly bool    `json:"pendingOnly"`
}

// RunMonitor starts batch grading runs in the background and streams their
// progress to subscribers.
type RunMonitor struct {
	runs    RunRepository
	service *IntakeService
}

func NewRunMonitor(runs RunRepository, service *IntakeService) *RunMonitor {
	return &RunMonitor{runs: runs, service: service}
}

// Start validates the form and launches the run. The run outlives the
// caller's request; it stops only when the process shuts down.
func (m *RunMonitor) Start(ctx context.Context, req RunRequest) (domain.RunProgress, error) {
	if _, err := m.service.forms.GetForm(ctx, req.FormSlug); err != nil {
		return domain.RunProgress{}, err
	}
	mode := req.Mode
	if mode == "" {
		mode = RunRank
	}
	if mode != RunRank && mode != RunReview {
		return domain.RunProgress{}, fmt.Errorf("unknown run mode %q", req.Mode)
	}

	runID := uuid.NewString()
	run := m.runs.GetOrCreate(runID, req.FormSlug)
	opts := GradeOptions{RunID: runID, PendingOnly: req.PendingOnly, OnProgress: run.update}

	go func(ctx context.Context) {
		var err error
		if mode == RunReview {
			_, err = m.service.ReviewForm(ctx, req.FormSlug, opts)
		} else {
			_, err = m.service.GradeForm(ctx, req.FormSlug, opts)
		}
		if err != nil {
			log.Printf("grading run %s for %s stopped: %v", runID, req.FormSlug, err)
		}
		run.finish()
	}(context.WithoutCancel(ctx))

	return run.Snapshot(), nil
}

// Progress returns the latest snapshot of a run.
func (m *RunMonitor) Progress(ctx context.Context, runID string) (domain.RunProgress, error) {
	run, ok := m.runs.Get(ctx, runID)
	if !ok {
		return domain.RunProgress{}, domain.ErrRunNotFound
	}
	return run.Snapshot(), nil
}

// Subscribe returns a channel that receives progress updates for a run.
// The caller must invoke the returned cancel function to avoid leaks.
func (m *RunMonitor) Subscribe(ctx context.Context, runID string) (<-chan domain.RunProgress, func(), error) {
	run, ok := m.runs.Get(ctx, runID)
	if !ok {
		return nil, nil, domain.ErrRunNotFound
	}
	ch, cancel := run.subscribe()
	return ch, cancel, nil
}

// Run is the in-process state of one grading run.
type Run struct {
	mu          sync.RWMutex
	now         func() time.Time
	progress    domain.RunProgress
	subscribers map[chan domain.RunProgress]struct{}
	onUpdate    func(domain.RunProgress)
}

// NewRun is exported for infrastructure layers that keep runs.
func NewRun(runID, formSlug string) *Run {
	return NewRunWithHook(runID, formSlug, nil)
}

// NewRunWithHook calls onUpdate with every snapshot, e.g. to mirror it to a
// shared store.
func NewRunWithHook(runID, formSlug string, onUpdate func(domain.RunProgress)) *Run {
	now := time.Now
	return &Run{
		now:         now,
		progress:    domain.RunProgress{RunID: runID, FormSlug: formSlug, UpdatedAt: now().UTC()},
		subscribers: make(map[chan domain.RunProgress]struct{}),
		onUpdate:    onUpdate,
	}
}

// RestoreRun rebuilds a run from a stored snapshot.
func RestoreRun(p domain.RunProgress) *Run {
	r := NewRun(p.RunID, p.FormSlug)
	r.progress = p
	return r
}

// Snapshot returns the latest progress.
func (r *Run) Snapshot() domain.RunProgress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.progress
}

// Finished reports whether the run has ended.
func (r *Run) Finished() bool {
	return r.Snapshot().Finished
}

func (r *Run) update(p domain.RunProgress) {
	r.mu.Lock()
	// Updates from parallel rows can arrive out of order.
	if p.Done < r.progress.Done && !p.Finished {
		r.mu.Unlock()
		return
	}
	p.RunID = r.progress.RunID
	p.FormSlug = r.progress.FormSlug
	r.progress = p
	snap := r.broadcastLocked()
	r.mu.Unlock()
	if r.onUpdate != nil {
		r.onUpdate(snap)
	}
}

func (r *Run) finish() {
	r.mu.Lock()
	if r.progress.Finished {
		r.mu.Unlock()
		return
	}
	r.progress.Finished = true
	r.progress.UpdatedAt = r.now().UTC()
	snap := r.broadcastLocked()
	r.mu.Unlock()
	if r.onUpdate != nil {
		r.onUpdate(snap)
	}
}

func (r *Run) subscribe() (<-chan domain.RunProgress, func()) {
	ch := make(chan domain.RunProgress, 8)

	// the first value is queued before any broadcast can reach ch
	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	ch <- r.progress
	r.mu.Unlock()

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

func (r *Run) broadcastLocked() domain.RunProgress {
	snap := r.progress
	for ch := range r.subscribers {
		select {
		case ch <- snap:
		default:
			// slow subscriber: drop the stale update it has not read yet
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
	return snap
}
