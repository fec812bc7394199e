package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"emprendo-intake/internal/domain"
	"emprendo-intake/internal/form"
	"emprendo-intake/internal/grading"
)

// FormRepository loads form schemas (from cache/backing store).
type FormRepository interface {
	GetForm(ctx context.Context, slug string) (domain.FormDefinition, error)
	// GetGroupForm resolves the copy of masterSlug made for a cohort, or the
	// master itself when groupID is nil.
	GetGroupForm(ctx context.Context, groupID *int64, masterSlug string) (domain.FormDefinition, error)
}

// ApplicationRepository stores applications and owns their lifecycle fields.
type ApplicationRepository interface {
	// Create stores the application and its answers atomically and sets ID.
	Create(ctx context.Context, app *domain.Application) error
	Get(ctx context.Context, id int64) (domain.Application, error)
	GetByInviteToken(ctx context.Context, token string) (domain.Application, error)
	ListByForm(ctx context.Context, formID int64, pendingOnly bool) ([]domain.Application, error)
	UpdateScores(ctx context.Context, id int64, scores domain.Scores, rec domain.Recommendation) error
	// IssueInviteToken sets a token only if none exists and returns the stored one.
	IssueInviteToken(ctx context.Context, id int64) (string, error)
	SetInvited(ctx context.Context, id int64, invited bool) error
	SaveReview(ctx context.Context, review domain.Review) error
}

//go:generate mockgen -destination=mock/notifier.go -package=mock emprendo-intake/internal/app Notifier

// Notifier hands stage-1 outcomes to the email collaborator.
type Notifier interface {
	Notify(ctx context.Context, event domain.NotificationEvent) error
}

// ResultStore keeps the short-lived records behind the thanks page.
type ResultStore interface {
	Put(ctx context.Context, result domain.SubmissionResult) error
	Get(ctx context.Context, id string) (domain.SubmissionResult, error)
}

// IntakeOptions configure an IntakeService.
type IntakeOptions struct {
	// BaseURL prefixes continuation links, e.g. https://apply.example.org.
	BaseURL string
	// CurrentGroup is the cohort whose stage-1 forms are public. Nil serves the masters.
	CurrentGroup *int64
	Scoring      grading.Clients
	Parallelism  int
}

// Submission is the raw envelope of a form post.
type Submission struct {
	Name   string
	Email  string
	Values url.Values
}

// FormView is what a renderer needs to show a form.
type FormView struct {
	Track   grading.Track     `json:"track"`
	Stage   int               `json:"stage"`
	Fields  form.FieldSet     `json:"form"`
	Prefill map[string]string `json:"prefill,omitempty"`
}

// IntakeService drives the application lifecycle: bind, persist, grade, notify.
type IntakeService struct {
	forms    FormRepository
	apps     ApplicationRepository
	notifier Notifier
	results  ResultStore
	opts     IntakeOptions
	now      func() time.Time
	validate *validator.Validate
}

func NewIntakeService(forms FormRepository, apps ApplicationRepository, notifier Notifier, results ResultStore, opts IntakeOptions) *IntakeService {
	return &IntakeService{
		forms:    forms,
		apps:     apps,
		notifier: notifier,
		results:  results,
		opts:     opts,
		now:      time.Now,
		validate: validator.New(),
	}
}

// WithClock is test-only for deterministic timestamps.
func (s *IntakeService) WithClock(now func() time.Time) *IntakeService {
	s.now = now
	return s
}

// StageOneForm returns the public stage-1 form of a track.
func (s *IntakeService) StageOneForm(ctx context.Context, rawTrack string) (FormView, error) {
	track, fd, err := s.stageOneDefinition(ctx, rawTrack)
	if err != nil {
		return FormView{}, err
	}
	return FormView{Track: track, Stage: 1, Fields: form.BuildFieldSet(fd)}, nil
}

// FormBySlug returns a public form addressed directly by slug.
func (s *IntakeService) FormBySlug(ctx context.Context, slug string) (FormView, error) {
	fd, err := s.publicForm(ctx, slug)
	if err != nil {
		return FormView{}, err
	}
	track, stage, _ := grading.ParseMaster(grading.MasterOf(fd))
	return FormView{Track: track, Stage: stage, Fields: form.BuildFieldSet(fd)}, nil
}

// SubmitStageOne handles a post to the public stage-1 form of a track.
func (s *IntakeService) SubmitStageOne(ctx context.Context, rawTrack string, sub Submission) (domain.SubmissionResult, error) {
	_, fd, err := s.stageOneDefinition(ctx, rawTrack)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	return s.submit(ctx, fd, sub, nil)
}

// SubmitBySlug handles a post to a public form addressed by slug.
func (s *IntakeService) SubmitBySlug(ctx context.Context, slug string, sub Submission) (domain.SubmissionResult, error) {
	fd, err := s.publicForm(ctx, slug)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	return s.submit(ctx, fd, sub, nil)
}

// Continuation resolves an invite token to the stage-2 form of the same cohort.
// Unknown tokens, tokens of another track and superseded invites all fail
// with domain.ErrInviteNotFound.
func (s *IntakeService) Continuation(ctx context.Context, rawTrack, token string) (FormView, error) {
	track, source, fd, err := s.continuation(ctx, rawTrack, token)
	if err != nil {
		return FormView{}, err
	}
	return FormView{
		Track:   track,
		Stage:   2,
		Fields:  form.BuildFieldSet(fd),
		Prefill: map[string]string{"name": source.Name, "email": source.Email},
	}, nil
}

// SubmitContinuation stores a stage-2 submission linked to its stage-1 application.
func (s *IntakeService) SubmitContinuation(ctx context.Context, rawTrack, token string, sub Submission) (domain.SubmissionResult, error) {
	_, source, fd, err := s.continuation(ctx, rawTrack, token)
	if err != nil {
		return domain.SubmissionResult{}, err
	}
	return s.submit(ctx, fd, sub, &source)
}

// Result returns the thanks-page record of a submission.
func (s *IntakeService) Result(ctx context.Context, id string) (domain.SubmissionResult, error) {
	return s.results.Get(ctx, id)
}

// Regrade re-runs the grader of an application's stage and returns the
// stored outcome label.
func (s *IntakeService) Regrade(ctx context.Context, id int64) (string, error) {
	application, err := s.apps.Get(ctx, id)
	if err != nil {
		return "", err
	}
	fd, err := s.forms.GetForm(ctx, application.FormSlug)
	if err != nil {
		return "", err
	}
	return s.grade(ctx, application, fd)
}

func (s *IntakeService) stageOneDefinition(ctx context.Context, rawTrack string) (grading.Track, domain.FormDefinition, error) {
	track, ok := grading.ParseTrack(rawTrack)
	if !ok {
		return "", domain.FormDefinition{}, domain.ErrFormNotFound
	}
	master := track.StageSlug(1)
	fd, err := s.forms.GetGroupForm(ctx, s.opts.CurrentGroup, master)
	if errors.Is(err, domain.ErrFormNotFound) && s.opts.CurrentGroup != nil {
		fd, err = s.forms.GetGroupForm(ctx, nil, master)
	}
	if err != nil {
		return "", domain.FormDefinition{}, err
	}
	if !fd.IsPublic {
		return "", domain.FormDefinition{}, domain.ErrFormNotFound
	}
	return track, fd, nil
}

func (s *IntakeService) publicForm(ctx context.Context, slug string) (domain.FormDefinition, error) {
	fd, err := s.forms.GetForm(ctx, slug)
	if err != nil {
		return domain.FormDefinition{}, err
	}
	if !fd.IsPublic {
		return domain.FormDefinition{}, domain.ErrFormNotFound
	}
	return fd, nil
}

func (s *IntakeService) continuation(ctx context.Context, rawTrack, token string) (grading.Track, domain.Application, domain.FormDefinition, error) {
	track, ok := grading.ParseTrack(rawTrack)
	if !ok || strings.TrimSpace(token) == "" {
		return "", domain.Application{}, domain.FormDefinition{}, domain.ErrInviteNotFound
	}
	source, err := s.apps.GetByInviteToken(ctx, token)
	if err != nil {
		return "", domain.Application{}, domain.FormDefinition{}, err
	}
	if !source.InvitedToSecondStage {
		return "", domain.Application{}, domain.FormDefinition{}, domain.ErrInviteNotFound
	}
	sourceForm, err := s.forms.GetForm(ctx, source.FormSlug)
	if err != nil {
		return "", domain.Application{}, domain.FormDefinition{}, err
	}
	sourceTrack, stage, ok := grading.ParseMaster(grading.MasterOf(sourceForm))
	if !ok || stage != 1 || sourceTrack != track {
		return "", domain.Application{}, domain.FormDefinition{}, domain.ErrInviteNotFound
	}

	master := track.StageSlug(2)
	fd, err := s.forms.GetGroupForm(ctx, sourceForm.GroupID, master)
	if errors.Is(err, domain.ErrFormNotFound) && sourceForm.GroupID != nil {
		fd, err = s.forms.GetGroupForm(ctx, nil, master)
	}
	if err != nil {
		return "", domain.Application{}, domain.FormDefinition{}, err
	}
	return track, source, fd, nil
}

func (s *IntakeService) submit(ctx context.Context, fd domain.FormDefinition, sub Submission, source *domain.Application) (domain.SubmissionResult, error) {
	if !fd.AcceptingResponses {
		return domain.SubmissionResult{}, domain.ErrFormClosed
	}

	verr := domain.NewValidationError()
	bound, err := form.Bind(form.BuildFieldSet(fd), sub.Values)
	if err != nil {
		if !errors.As(err, &verr) {
			return domain.SubmissionResult{}, err
		}
	}
	name, email := s.identity(sub, bound.Values, source, verr)
	if !verr.Empty() {
		return domain.SubmissionResult{}, verr
	}

	application := domain.Application{
		FormID:    fd.ID,
		FormSlug:  fd.Slug,
		Name:      name,
		Email:     email,
		CreatedAt: s.now().UTC(),
		Answers:   bound.Answers,
	}
	if source != nil {
		id := source.ID
		application.SourceApplicationID = &id
	}
	if err := s.apps.Create(ctx, &application); err != nil {
		return domain.SubmissionResult{}, err
	}

	outcome, err := s.grade(ctx, application, fd)
	if err != nil {
		log.Printf("grading application=%d form=%s failed: %v", application.ID, fd.Slug, err)
	}

	track, stage, _ := grading.ParseMaster(grading.MasterOf(fd))
	result := domain.SubmissionResult{
		ID:            uuid.NewString(),
		ApplicationID: application.ID,
		FormSlug:      fd.Slug,
		Track:         string(track),
		Stage:         stage,
		Outcome:       outcome,
		CreatedAt:     application.CreatedAt,
	}
	if err := s.results.Put(ctx, result); err != nil {
		log.Printf("storing result for application=%d failed: %v", application.ID, err)
	}
	return result, nil
}

type identity struct {
	Name  string `validate:"max=200"`
	Email string `validate:"required,email,max=254"`
}

var identityFields = map[string]string{
	"Name":  "name",
	"Email": "email",
}

// identity picks the applicant's name and email from the envelope, then the
// answers, then the stage-1 application.
func (s *IntakeService) identity(sub Submission, answers form.Answers, source *domain.Application, verr *domain.ValidationError) (string, string) {
	id := identity{
		Name:  firstNonEmpty(sub.Name, answers["name"], answers["full_name"], answers["certificate_name"]),
		Email: firstNonEmpty(sub.Email, answers["email"]),
	}
	if source != nil {
		id.Name = firstNonEmpty(id.Name, source.Name)
		id.Email = firstNonEmpty(id.Email, source.Email)
	}
	if err := s.validate.Struct(id); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			verr.Add("email", err.Error())
			return id.Name, id.Email
		}
		for _, fe := range fieldErrs {
			field := identityFields[fe.StructField()]
			switch fe.Tag() {
			case "required":
				verr.Add(field, "This field is required.")
			case "email":
				verr.Add(field, "Enter a valid email address.")
			default:
				verr.Add(field, fmt.Sprintf("Ensure this value has at most %s characters.", fe.Param()))
			}
		}
	}
	return id.Name, id.Email
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
