package memory

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"emprendo-intake/internal/domain"
)

// FormLoader fetches form schemas from a backing store (e.g. Postgres).
type FormLoader interface {
	LoadForm(ctx context.Context, slug string) (domain.FormDefinition, error)
	LoadGroupForm(ctx context.Context, groupID *int64, masterSlug string) (domain.FormDefinition, error)
}

// FormRepository caches forms with TTL to avoid repeated DB hits.
type FormRepository struct {
	loader FormLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedForm
}

type cachedForm struct {
	form      domain.FormDefinition
	expiresAt time.Time
}

func NewFormRepository(loader FormLoader, ttl time.Duration) *FormRepository {
	return &FormRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedForm),
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

// Invalidate drops every cached form, e.g. after the form builder saved a change.
func (r *FormRepository) Invalidate(context.Context) error {
	r.mu.Lock()
	r.cache = make(map[string]cachedForm)
	r.mu.Unlock()
	return nil
}

func (r *FormRepository) get(ctx context.Context, key string, load func(context.Context) (domain.FormDefinition, error)) (domain.FormDefinition, error) {
	if fd, ok := r.lookup(key); ok {
		return fd, nil
	}

	result, err, _ := r.sf.Do(key, func() (interface{}, error) {
		if fd, ok := r.lookup(key); ok {
			return fd, nil
		}
		fd, err := load(ctx)
		if err != nil {
			return domain.FormDefinition{}, err
		}

		r.mu.Lock()
		r.cache[key] = cachedForm{
			form:      fd,
			expiresAt: r.clock().Add(r.ttlWithJitter()),
		}
		r.mu.Unlock()
		return fd, nil
	})
	if err != nil {
		return domain.FormDefinition{}, err
	}
	return result.(domain.FormDefinition), nil
}

func (r *FormRepository) lookup(key string) (domain.FormDefinition, bool) {
	now := r.clock()
	r.mu.RLock()
	defer r.mu.RUnlock()
	if entry, ok := r.cache[key]; ok && entry.expiresAt.After(now) {
		return entry.form, true
	}
	return domain.FormDefinition{}, false
}

func (r *FormRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticFormLoader is a loader backed by an in-memory list (useful for tests/demos).
type StaticFormLoader struct {
	forms []domain.FormDefinition
}

func NewStaticFormLoader(forms ...domain.FormDefinition) *StaticFormLoader {
	return &StaticFormLoader{forms: forms}
}

func (l *StaticFormLoader) LoadForm(_ context.Context, slug string) (domain.FormDefinition, error) {
	for _, fd := range l.forms {
		if fd.Slug == slug {
			return fd, nil
		}
	}
	return domain.FormDefinition{}, domain.ErrFormNotFound
}

func (l *StaticFormLoader) LoadGroupForm(_ context.Context, groupID *int64, masterSlug string) (domain.FormDefinition, error) {
	for _, fd := range l.forms {
		if groupID == nil {
			if fd.IsMaster && fd.Slug == masterSlug {
				return fd, nil
			}
			continue
		}
		if fd.GroupID != nil && *fd.GroupID == *groupID && fd.MasterSlug == masterSlug {
			return fd, nil
		}
	}
	return domain.FormDefinition{}, domain.ErrFormNotFound
}
