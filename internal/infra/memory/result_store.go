package memory

import (
	"context"
	"sync"
	"time"

	"emprendo-intake/internal/domain"
)

// ResultStore keeps thanks-page records in process until they expire.
type ResultStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu      sync.Mutex
	results map[string]storedResult
}

type storedResult struct {
	result    domain.SubmissionResult
	expiresAt time.Time
}

func NewResultStore(ttl time.Duration) *ResultStore {
	return &ResultStore{
		ttl:     ttl,
		clock:   time.Now,
		results: make(map[string]storedResult),
	}
}

func (s *ResultStore) Put(_ context.Context, result domain.SubmissionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock()
	s.evictLocked(now)
	s.results[result.ID] = storedResult{result: result, expiresAt: now.Add(s.ttl)}
	return nil
}

func (s *ResultStore) Get(_ context.Context, id string) (domain.SubmissionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.results[id]
	if !ok || !entry.expiresAt.After(s.clock()) {
		return domain.SubmissionResult{}, domain.ErrResultNotFound
	}
	return entry.result, nil
}

func (s *ResultStore) evictLocked(now time.Time) {
	for id, entry := range s.results {
		if !entry.expiresAt.After(now) {
			delete(s.results, id)
		}
	}
}
