package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"emprendo-intake/internal/domain"
)

// ApplicationStore is an in-memory implementation of app.ApplicationRepository.
type ApplicationStore struct {
	mu       sync.RWMutex
	nextID   int64
	nextAns  int64
	apps     map[int64]domain.Application
	byToken  map[string]int64
	reviews  map[int64]domain.Review
	newToken func() string
}

func NewApplicationStore() *ApplicationStore {
	return &ApplicationStore{
		apps:     make(map[int64]domain.Application),
		byToken:  make(map[string]int64),
		reviews:  make(map[int64]domain.Review),
		newToken: uuid.NewString,
	}
}

func (s *ApplicationStore) Create(_ context.Context, app *domain.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	app.ID = s.nextID
	answers := make([]domain.Answer, len(app.Answers))
	for i, a := range app.Answers {
		s.nextAns++
		a.ID = s.nextAns
		a.ApplicationID = app.ID
		answers[i] = a
	}
	app.Answers = answers
	stored := *app
	stored.Answers = append([]domain.Answer(nil), answers...)
	s.apps[app.ID] = stored
	return nil
}

func (s *ApplicationStore) Get(_ context.Context, id int64) (domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	app, ok := s.apps[id]
	if !ok {
		return domain.Application{}, domain.ErrApplicationNotFound
	}
	return cloneApplication(app), nil
}

func (s *ApplicationStore) GetByInviteToken(_ context.Context, token string) (domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byToken[token]
	if !ok {
		return domain.Application{}, domain.ErrInviteNotFound
	}
	return cloneApplication(s.apps[id]), nil
}

func (s *ApplicationStore) ListByForm(_ context.Context, formID int64, pendingOnly bool) ([]domain.Application, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Application, 0)
	for _, app := range s.apps {
		if app.FormID != formID {
			continue
		}
		if pendingOnly && app.Recommendation != "" {
			continue
		}
		out = append(out, cloneApplication(app))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *ApplicationStore) UpdateScores(_ context.Context, id int64, scores domain.Scores, rec domain.Recommendation) error {
	return s.mutate(id, func(app *domain.Application) {
		app.Scores = scores
		app.Recommendation = rec
	})
}

// IssueInviteToken mirrors the conditional update of the SQL store: a token
// is only set when none exists.
func (s *ApplicationStore) IssueInviteToken(_ context.Context, id int64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return "", domain.ErrApplicationNotFound
	}
	if app.InviteToken != "" {
		return app.InviteToken, nil
	}
	token := s.newToken()
	if _, taken := s.byToken[token]; taken {
		return "", domain.ErrTokenConflict
	}
	app.InviteToken = token
	s.apps[id] = app
	s.byToken[token] = id
	return token, nil
}

func (s *ApplicationStore) SetInvited(_ context.Context, id int64, invited bool) error {
	return s.mutate(id, func(app *domain.Application) {
		app.InvitedToSecondStage = invited
	})
}

func (s *ApplicationStore) SaveReview(_ context.Context, review domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.apps[review.ApplicationID]; !ok {
		return domain.ErrApplicationNotFound
	}
	s.reviews[review.ApplicationID] = review
	return nil
}

// Review returns the stored review of an application.
func (s *ApplicationStore) Review(id int64) (domain.Review, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	return r, ok
}

func (s *ApplicationStore) mutate(id int64, fn func(*domain.Application)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[id]
	if !ok {
		return domain.ErrApplicationNotFound
	}
	fn(&app)
	s.apps[id] = app
	return nil
}

func cloneApplication(app domain.Application) domain.Application {
	app.Answers = append([]domain.Answer(nil), app.Answers...)
	if app.SourceApplicationID != nil {
		id := *app.SourceApplicationID
		app.SourceApplicationID = &id
	}
	return app
}
