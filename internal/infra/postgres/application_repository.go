package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"

	"emprendo-intake/internal/domain"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

type applicationModel struct {
	bun.BaseModel `bun:"table:applications,alias:a"`

	ID                   int64         `bun:"id,pk,autoincrement"`
	FormID               int64         `bun:"form_id,notnull"`
	SourceApplicationID  *int64        `bun:"source_application_id"`
	Name                 string        `bun:"name,notnull"`
	Email                string        `bun:"email,notnull"`
	CreatedAt            time.Time     `bun:"created_at,notnull"`
	TablestakesScore     float64       `bun:"tablestakes_score,notnull"`
	CommitmentScore      float64       `bun:"commitment_score,notnull"`
	NiceToHaveScore      float64       `bun:"nice_to_have_score,notnull"`
	OverallScore         float64       `bun:"overall_score,notnull"`
	Recommendation       string        `bun:"recommendation,notnull"`
	InviteToken          *string       `bun:"invite_token,type:uuid"`
	InvitedToSecondStage bool          `bun:"invited_to_second_stage,notnull"`
	Form                 *formRef      `bun:"rel:belongs-to,join:form_id=id"`
	Answers              []answerModel `bun:"rel:has-many,join:id=application_id"`
}

type answerModel struct {
	bun.BaseModel `bun:"table:answers,alias:ans"`

	ID            int64        `bun:"id,pk,autoincrement"`
	ApplicationID int64        `bun:"application_id,notnull"`
	QuestionID    int64        `bun:"question_id,notnull"`
	Value         string       `bun:"value,notnull"`
	Question      *questionRef `bun:"rel:belongs-to,join:question_id=id"`
}

type formRef struct {
	bun.BaseModel `bun:"table:form_definitions,alias:f"`

	ID   int64  `bun:"id,pk"`
	Slug string `bun:"slug"`
}

type questionRef struct {
	bun.BaseModel `bun:"table:questions,alias:q"`

	ID   int64  `bun:"id,pk"`
	Slug string `bun:"slug"`
}

type reviewModel struct {
	bun.BaseModel `bun:"table:application_reviews,alias:r"`

	ApplicationID    int64     `bun:"application_id,pk"`
	Eligible         bool      `bun:"eligible,notnull"`
	TotalPoints      int       `bun:"total_points,notnull"`
	RedFlags         string    `bun:"red_flags,notnull"`
	Explanation      string    `bun:"explanation,notnull"`
	Rubric           string    `bun:"rubric,notnull"`
	ExternalFailures int       `bun:"external_failures,notnull"`
	GradedAt         time.Time `bun:"graded_at,notnull"`
}

// ApplicationRepository persists applications with bun.
type ApplicationRepository struct {
	db       *bun.DB
	newToken func() string
}

func NewApplicationRepository(db *bun.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db, newToken: uuid.NewString}
}

// Create writes the application and its answers in one transaction.
func (r *ApplicationRepository) Create(ctx context.Context, app *domain.Application) error {
	m := fromDomain(*app)
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(&m).Returning("id").Exec(ctx); err != nil {
			return err
		}
		if len(m.Answers) == 0 {
			return nil
		}
		for i := range m.Answers {
			m.Answers[i].ApplicationID = m.ID
		}
		_, err := tx.NewInsert().Model(&m.Answers).Returning("id").Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%w: create application: %v", domain.ErrPersistence, err)
	}
	app.ID = m.ID
	for i := range app.Answers {
		app.Answers[i].ID = m.Answers[i].ID
		app.Answers[i].ApplicationID = m.ID
	}
	return nil
}

func (r *ApplicationRepository) Get(ctx context.Context, id int64) (domain.Application, error) {
	var m applicationModel
	err := r.selectApplications(&m).Where("a.id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Application{}, domain.ErrApplicationNotFound
	}
	if err != nil {
		return domain.Application{}, fmt.Errorf("get application: %w", err)
	}
	return toDomain(m), nil
}

func (r *ApplicationRepository) GetByInviteToken(ctx context.Context, token string) (domain.Application, error) {
	if _, err := uuid.Parse(token); err != nil {
		return domain.Application{}, domain.ErrInviteNotFound
	}
	var m applicationModel
	err := r.selectApplications(&m).Where("a.invite_token = ?", token).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Application{}, domain.ErrInviteNotFound
	}
	if err != nil {
		return domain.Application{}, fmt.Errorf("get application by token: %w", err)
	}
	return toDomain(m), nil
}

func (r *ApplicationRepository) ListByForm(ctx context.Context, formID int64, pendingOnly bool) ([]domain.Application, error) {
	var models []applicationModel
	q := r.selectApplications(&models).Where("a.form_id = ?", formID)
	if pendingOnly {
		q = q.Where("a.recommendation = ''")
	}
	if err := q.Order("a.created_at", "a.id").Scan(ctx); err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	out := make([]domain.Application, 0, len(models))
	for _, m := range models {
		out = append(out, toDomain(m))
	}
	return out, nil
}

func (r *ApplicationRepository) UpdateScores(ctx context.Context, id int64, scores domain.Scores, rec domain.Recommendation) error {
	res, err := r.db.NewUpdate().
		Model((*applicationModel)(nil)).
		Set("tablestakes_score = ?", scores.Tablestakes).
		Set("commitment_score = ?", scores.Commitment).
		Set("nice_to_have_score = ?", scores.NiceToHave).
		Set("overall_score = ?", scores.Overall).
		Set("recommendation = ?", string(rec)).
		Where("id = ?", id).
		Exec(ctx)
	return affected(res, err, "update scores")
}

// IssueInviteToken sets a token only when none is stored and returns
// whichever token the row ends up with.
func (r *ApplicationRepository) IssueInviteToken(ctx context.Context, id int64) (string, error) {
	var token string
	err := r.db.NewRaw(
		`UPDATE applications SET invite_token = COALESCE(invite_token, ?::uuid) WHERE id = ? RETURNING invite_token::text`,
		r.newToken(), id,
	).Scan(ctx, &token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrApplicationNotFound
	}
	if pgCode(err) == uniqueViolation {
		return "", domain.ErrTokenConflict
	}
	if err != nil {
		return "", fmt.Errorf("issue invite token: %w", err)
	}
	return token, nil
}

func (r *ApplicationRepository) SetInvited(ctx context.Context, id int64, invited bool) error {
	res, err := r.db.NewUpdate().
		Model((*applicationModel)(nil)).
		Set("invited_to_second_stage = ?", invited).
		Where("id = ?", id).
		Exec(ctx)
	return affected(res, err, "set invited")
}

func (r *ApplicationRepository) SaveReview(ctx context.Context, review domain.Review) error {
	m := reviewModel{
		ApplicationID:    review.ApplicationID,
		Eligible:         review.Eligible,
		TotalPoints:      review.TotalPoints,
		RedFlags:         review.RedFlags,
		Explanation:      review.Explanation,
		Rubric:           review.Rubric,
		ExternalFailures: review.ExternalFailures,
		GradedAt:         review.GradedAt,
	}
	_, err := r.db.NewInsert().
		Model(&m).
		On("CONFLICT (application_id) DO UPDATE").
		Set("eligible = EXCLUDED.eligible").
		Set("total_points = EXCLUDED.total_points").
		Set("red_flags = EXCLUDED.red_flags").
		Set("explanation = EXCLUDED.explanation").
		Set("rubric = EXCLUDED.rubric").
		Set("external_failures = EXCLUDED.external_failures").
		Set("graded_at = EXCLUDED.graded_at").
		Exec(ctx)
	if pgCode(err) == foreignKeyViolation {
		return domain.ErrApplicationNotFound
	}
	if err != nil {
		return fmt.Errorf("save review: %w", err)
	}
	return nil
}

// Review loads the stored review of an application.
func (r *ApplicationRepository) Review(ctx context.Context, id int64) (domain.Review, error) {
	var m reviewModel
	err := r.db.NewSelect().Model(&m).Where("r.application_id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Review{}, domain.ErrApplicationNotFound
	}
	if err != nil {
		return domain.Review{}, fmt.Errorf("get review: %w", err)
	}
	return domain.Review{
		ApplicationID:    m.ApplicationID,
		Eligible:         m.Eligible,
		TotalPoints:      m.TotalPoints,
		RedFlags:         m.RedFlags,
		Explanation:      m.Explanation,
		Rubric:           m.Rubric,
		ExternalFailures: m.ExternalFailures,
		GradedAt:         m.GradedAt,
	}, nil
}

func (r *ApplicationRepository) selectApplications(model interface{}) *bun.SelectQuery {
	return r.db.NewSelect().
		Model(model).
		Relation("Form").
		Relation("Answers", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Order("ans.id")
		}).
		Relation("Answers.Question")
}

func affected(res sql.Result, err error, op string) error {
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return domain.ErrApplicationNotFound
	}
	return nil
}

func pgCode(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}

func fromDomain(app domain.Application) applicationModel {
	m := applicationModel{
		ID:                   app.ID,
		FormID:               app.FormID,
		SourceApplicationID:  app.SourceApplicationID,
		Name:                 app.Name,
		Email:                app.Email,
		CreatedAt:            app.CreatedAt,
		TablestakesScore:     app.Scores.Tablestakes,
		CommitmentScore:      app.Scores.Commitment,
		NiceToHaveScore:      app.Scores.NiceToHave,
		OverallScore:         app.Scores.Overall,
		Recommendation:       string(app.Recommendation),
		InvitedToSecondStage: app.InvitedToSecondStage,
	}
	if app.InviteToken != "" {
		token := app.InviteToken
		m.InviteToken = &token
	}
	for _, a := range app.Answers {
		m.Answers = append(m.Answers, answerModel{
			ID:            a.ID,
			ApplicationID: app.ID,
			QuestionID:    a.QuestionID,
			Value:         a.Value,
		})
	}
	return m
}

func toDomain(m applicationModel) domain.Application {
	app := domain.Application{
		ID:                  m.ID,
		FormID:              m.FormID,
		SourceApplicationID: m.SourceApplicationID,
		Name:                m.Name,
		Email:               m.Email,
		CreatedAt:           m.CreatedAt,
		Scores: domain.Scores{
			Tablestakes: m.TablestakesScore,
			Commitment:  m.CommitmentScore,
			NiceToHave:  m.NiceToHaveScore,
			Overall:     m.OverallScore,
		},
		Recommendation:       domain.Recommendation(m.Recommendation),
		InvitedToSecondStage: m.InvitedToSecondStage,
	}
	if m.Form != nil {
		app.FormSlug = m.Form.Slug
	}
	if m.InviteToken != nil {
		app.InviteToken = *m.InviteToken
	}
	for _, a := range m.Answers {
		answer := domain.Answer{
			ID:            a.ID,
			ApplicationID: a.ApplicationID,
			QuestionID:    a.QuestionID,
			Value:         a.Value,
		}
		if a.Question != nil {
			answer.QuestionSlug = a.Question.Slug
		}
		app.Answers = append(app.Answers, answer)
	}
	return app
}
