package redis

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"emprendo-intake/internal/app"
	"emprendo-intake/internal/domain"
)

// RunStore is a Redis-aware implementation of app.RunRepository.
// Notes:
//   - Runs started here live in a local map so subscribers reuse the in-process
//     broadcast logic.
//   - Every snapshot is mirrored to Redis with a TTL; other instances serve
//     progress reads from it but cannot stream updates.
type RunStore struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
	runs   map[string]*app.Run
}

func NewRunStore(client *redis.Client, ttl time.Duration) *RunStore {
	return &RunStore{
		client: client,
		ttl:    ttl,
		runs:   make(map[string]*app.Run),
	}
}

func (s *RunStore) GetOrCreate(runID, formSlug string) *app.Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	if run, ok := s.runs[runID]; ok {
		return run
	}
	run := app.NewRunWithHook(runID, formSlug, s.save)
	s.runs[runID] = run
	s.save(run.Snapshot())
	return run
}

// Get prefers the local run; a run started by another instance is rebuilt
// from its last snapshot.
func (s *RunStore) Get(ctx context.Context, runID string) (*app.Run, bool) {
	s.mu.RLock()
	run, ok := s.runs[runID]
	s.mu.RUnlock()
	if ok {
		return run, true
	}

	payload, err := s.client.Get(ctx, s.key(runID)).Bytes()
	if err != nil {
		return nil, false
	}
	var p domain.RunProgress
	if err := json.Unmarshal(payload, &p); err != nil {
		log.Printf("unreadable run snapshot %s: %v", runID, err)
		return nil, false
	}
	return app.RestoreRun(p), true
}

func (s *RunStore) Delete(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	_ = s.client.Del(context.Background(), s.key(runID)).Err()
}

// save is best effort; a missed snapshot is replaced by the next one.
func (s *RunStore) save(p domain.RunProgress) {
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.client.Set(context.Background(), s.key(p.RunID), payload, s.ttl).Err(); err != nil {
		log.Printf("saving run snapshot %s failed: %v", p.RunID, err)
	}
}

func (s *RunStore) key(runID string) string {
	return "grading:run:" + runID
}
