package memory

import (
	"context"
	"sync"

	"emprendo-intake/internal/app"
)

// RunStore is an in-memory implementation of app.RunRepository.
type RunStore struct {
	mu   sync.RWMutex
	runs map[string]*app.Run
}

func NewRunStore() *RunStore {
	return &RunStore{
		runs: make(map[string]*app.Run),
	}
}

func (s *RunStore) GetOrCreate(runID, formSlug string) *app.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		return run
	}
	run := app.NewRun(runID, formSlug)
	s.runs[runID] = run
	return run
}

func (s *RunStore) Get(_ context.Context, runID string) (*app.Run, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[runID]
	return run, ok
}

func (s *RunStore) Delete(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
}
