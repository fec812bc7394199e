package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"emprendo-intake/internal/domain"
)

// ResultStore keeps thanks-page records as JSON strings that expire on their own:
// SET intake:result:{id} {json} EX ttl
type ResultStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewResultStore(client *redis.Client, ttl time.Duration) *ResultStore {
	return &ResultStore{client: client, ttl: ttl}
}

func (s *ResultStore) Put(ctx context.Context, result domain.SubmissionResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, s.key(result.ID), payload, s.ttl).Err()
}

func (s *ResultStore) Get(ctx context.Context, id string) (domain.SubmissionResult, error) {
	payload, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.SubmissionResult{}, domain.ErrResultNotFound
	}
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	var result domain.SubmissionResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return domain.SubmissionResult{}, err
	}
	return result, nil
}

func (s *ResultStore) key(id string) string {
	return "intake:result:" + id
}
