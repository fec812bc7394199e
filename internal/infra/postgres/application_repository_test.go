package postgres

import (
	"errors"
	"testing"
	"time"

	"emprendo-intake/internal/domain"
)

func TestApplicationModelRoundTrip(t *testing.T) {
	source := int64(3)
	app := domain.Application{
		ID:                  7,
		FormID:              2,
		SourceApplicationID: &source,
		Name:                "Ana",
		Email:               "ana@example.com",
		CreatedAt:           time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC),
		Scores:              domain.Scores{Tablestakes: 6, Commitment: 7, Overall: 5.1},
		Recommendation:      domain.RecommendationMaybe,
		InviteToken:         "4f1c1f4e-6d8a-4a43-9a59-08cbe3a2f7a1",
		Answers:             []domain.Answer{{ID: 11, QuestionID: 5, QuestionSlug: "e2_business_age", Value: "1_3"}},
	}

	m := fromDomain(app)
	if m.InviteToken == nil || *m.InviteToken != app.InviteToken {
		t.Fatalf("token not mapped: %+v", m.InviteToken)
	}
	if m.Answers[0].ApplicationID != 7 {
		t.Fatalf("answer not linked to application")
	}

	m.Form = &formRef{ID: 2, Slug: "G6_E_A2"}
	m.Answers[0].Question = &questionRef{ID: 5, Slug: "e2_business_age"}
	got := toDomain(m)

	if got.FormSlug != "G6_E_A2" {
		t.Fatalf("expected form slug, got %q", got.FormSlug)
	}
	if got.Scores != app.Scores || got.Recommendation != app.Recommendation {
		t.Fatalf("scores lost: %+v", got)
	}
	if got.AnswerMap()["e2_business_age"] != "1_3" {
		t.Fatalf("answers lost: %+v", got.Answers)
	}
	if *got.SourceApplicationID != 3 {
		t.Fatalf("source lost")
	}
}

func TestApplicationModelWithoutToken(t *testing.T) {
	m := fromDomain(domain.Application{Email: "x@example.com"})
	if m.InviteToken != nil {
		t.Fatalf("empty token must be stored as NULL")
	}
	if got := toDomain(m); got.InviteToken != "" {
		t.Fatalf("unexpected token %q", got.InviteToken)
	}
}

func TestPgCodeIgnoresOtherErrors(t *testing.T) {
	if code := pgCode(errors.New("boom")); code != "" {
		t.Fatalf("unexpected code %q", code)
	}
	if code := pgCode(nil); code != "" {
		t.Fatalf("unexpected code %q", code)
	}
}
