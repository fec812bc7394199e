package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"emprendo-intake/internal/domain"
	"emprendo-intake/internal/infra/memory"
)

// FormRepository caches whole form schemas in Redis and falls back to a loader on cache miss.
// Forms are stored as JSON: SET form:{key}:schema {json} EX ttl
type FormRepository struct {
	client *redis.Client
	loader memory.FormLoader
	ttl    time.Duration
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex
}

func NewFormRepository(client *redis.Client, loader memory.FormLoader, ttl time.Duration) *FormRepository {
	return &FormRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *FormRepository) GetForm(ctx context.Context, slug string) (domain.FormDefinition, error) {
	return r.get(ctx, "slug:"+slug, func(ctx context.Context) (domain.FormDefinition, error) {
		return r.loader.LoadForm(ctx, slug)
	})
}

func (r *FormRepository) GetGroupForm(ctx context.Context, groupID *int64, masterSlug string) (domain.FormDefinition, error) {
	key := "master:" + masterSlug
	if groupID != nil {
		key = fmt.Sprintf("group:%d:%s", *groupID, masterSlug)
	}
	return r.get(ctx, key, func(ctx context.Context) (domain.FormDefinition, error) {
		return r.loader.LoadGroupForm(ctx, groupID, masterSlug)
	})
}

// Invalidate removes every cached schema.
func (r *FormRepository) Invalidate(ctx context.Context) error {
	iter := r.client.Scan(ctx, 0, "form:*:schema", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return r.client.Del(ctx, keys...).Err()
}

func (r *FormRepository) get(ctx context.Context, key string, load func(context.Context) (domain.FormDefinition, error)) (domain.FormDefinition, error) {
	cacheKey := r.schemaKey(key)
	if fd, ok := r.cached(ctx, cacheKey); ok {
		return fd, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if fd, ok := r.cached(ctx, cacheKey); ok {
			return fd, nil
		}

		fd, err := load(ctx)
		if err != nil {
			return domain.FormDefinition{}, err
		}

		payload, err := json.Marshal(fd)
		if err != nil {
			return domain.FormDefinition{}, err
		}
		if err := r.client.Set(ctx, cacheKey, payload, r.ttlWithJitter()).Err(); err != nil {
			log.Printf("caching form %s failed: %v", key, err)
		}
		return fd, nil
	})
	if err != nil {
		return domain.FormDefinition{}, err
	}
	return result.(domain.FormDefinition), nil
}

func (r *FormRepository) cached(ctx context.Context, cacheKey string) (domain.FormDefinition, bool) {
	payload, err := r.client.Get(ctx, cacheKey).Bytes()
	if err != nil {
		return domain.FormDefinition{}, false
	}
	var fd domain.FormDefinition
	if err := json.Unmarshal(payload, &fd); err != nil {
		log.Printf("dropping unreadable cached form %s: %v", cacheKey, err)
		return domain.FormDefinition{}, false
	}
	return fd, true
}

func (r *FormRepository) schemaKey(key string) string {
	return "form:" + key + ":schema"
}

func (r *FormRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
