package grading

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCompleter struct {
	mu      sync.Mutex
	reply   string
	err     error
	prompts []string
}

func (s *stubCompleter) Complete(_ context.Context, prompt string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, prompt)
	return s.reply, s.err
}

func (s *stubCompleter) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}

type stubModerator struct {
	cats  map[string]bool
	err   error
	input string
}

func (s *stubModerator) Moderate(_ context.Context, text string) (map[string]bool, error) {
	s.input = text
	return s.cats, s.err
}

func TestTextScorerParsesReply(t *testing.T) {
	c := &stubCompleter{reply: "Score: 4\nExplanation: Clear and relevant."}
	s := NewTextScorer(c, time.Second, "Score 1–5")

	got := s.Score(context.Background(), "row-1", "motivation", "Quiero ayudar", false)

	assert.Equal(t, TextScore{Points: 4, Explanation: "Clear and relevant."}, got)
	require.Len(t, c.prompts, 1)
	assert.Contains(t, c.prompts[0], "Criterion: motivation")
	assert.Contains(t, c.prompts[0], "- Score 1–5")
	assert.Contains(t, c.prompts[0], `"""Quiero ayudar"""`)
}

func TestTextScorerBlankInput(t *testing.T) {
	c := &stubCompleter{}
	s := NewTextScorer(c, time.Second)

	assert.Equal(t, TextScore{Points: 0, Explanation: blankExplanation}, s.Score(context.Background(), "r", "x", "  ", false))
	assert.Equal(t, TextScore{Points: -1, Explanation: blankExplanation}, s.Score(context.Background(), "r", "x", "", true))
	assert.Zero(t, c.calls())
}

func TestTextScorerFallbacks(t *testing.T) {
	cases := map[string]*stubCompleter{
		"malformed score": {reply: "Score: four\nExplanation: nice"},
		"missing score":   {reply: "I think it is good."},
		"call failed":     {err: errors.New("timeout")},
	}
	for name, c := range cases {
		t.Run(name, func(t *testing.T) {
			got := NewTextScorer(c, time.Second).Score(context.Background(), "r", "x", "text", false)
			assert.Equal(t, TextScore{Points: 0, Explanation: fallbackExplanation, Failed: true}, got)
		})
	}
}

func TestTextScorerClamps(t *testing.T) {
	c := &stubCompleter{reply: "Score: -3"}
	s := NewTextScorer(c, time.Second)

	assert.Equal(t, 0, s.Score(context.Background(), "r", "x", "text", false).Points)
	assert.Equal(t, -3, s.Score(context.Background(), "r", "x", "text", true).Points)
	assert.Equal(t, fallbackExplanation, s.Score(context.Background(), "r", "x", "text", true).Explanation)

	c.reply = "Score: 9"
	assert.Equal(t, 5, s.Score(context.Background(), "r", "x", "text", false).Points)
	assert.Equal(t, 5, s.Score(context.Background(), "r", "x", "text", true).Points)

	c.reply = "Score: 5"
	assert.Equal(t, 5, s.Score(context.Background(), "r", "x", "text", false).Points)
	assert.Equal(t, -1, s.Score(context.Background(), "r", "x", " ", true).Points)
}

func TestRedFlags(t *testing.T) {
	m := &stubModerator{cats: map[string]bool{"sexual/minors": true, "illicit": true, "violence": true}}

	flags, ok := RedFlags(context.Background(), m, time.Second, "r", " uno ", "", "dos")

	assert.True(t, ok)
	assert.Equal(t, "contenido sexual, contenido ilicito", flags)
	assert.Equal(t, "uno\ndos", m.input)
}

func TestRedFlagsFailOpen(t *testing.T) {
	m := &stubModerator{err: errors.New("unavailable")}

	flags, ok := RedFlags(context.Background(), m, time.Second, "r", "texto")

	assert.False(t, ok)
	assert.Empty(t, flags)
}

func TestRedFlagsTruncatesInput(t *testing.T) {
	m := &stubModerator{}
	_, ok := RedFlags(context.Background(), m, time.Second, "r", strings.Repeat("é", moderationLimit+10))

	assert.True(t, ok)
	assert.Equal(t, moderationLimit, len([]rune(m.input)))
}

func TestKeywordFlags(t *testing.T) {
	assert.Equal(t, "alcohol, illegal", KeywordFlags("Vendo ALCOHOL", "nothing illegal"))
	assert.Empty(t, KeywordFlags("panadería", ""))
}

func mentorRow() map[string]string {
	row := map[string]string{
		"certificate_name":         "Ana Pérez",
		"email":                    "ana@example.com",
		"owned_business":           "yes",
		"prior_participation":      "as_entrepreneur,as_mentora",
		"business_years":           "",
		"has_employees":            "yes",
		"professional_expertise":   "Finanzas",
		"mentoring_exp_as_mentor":  "yes",
		"mentoring_exp_as_student": "no",
		"business_description":     "Una panadería",
		"mentoring_exp_detail":     "",
		"motivation":               "Quiero devolver",
	}
	for _, c := range mentorChecklist {
		row[c] = "yes"
	}
	return row
}

func columnValue(t *testing.T, g BulkGrader, graded Graded, column string) string {
	t.Helper()
	for i, c := range g.Columns() {
		if c == column {
			return graded.Values[i]
		}
	}
	t.Fatalf("no column %q", column)
	return ""
}

func TestMentorBulkGraderChecklistFailure(t *testing.T) {
	c := &stubCompleter{reply: "Score: 5"}
	m := &stubModerator{}
	g := NewMentorBulkGrader(Clients{Completer: c, Moderator: m, Timeout: time.Second})

	for _, item := range mentorChecklist {
		row := mentorRow()
		row[item] = "no"

		graded := g.Grade(context.Background(), "row", row)

		assert.False(t, graded.Eligible, item)
		require.Len(t, graded.Values, len(g.Columns()))
		for _, v := range graded.Values {
			assert.Equal(t, "", v)
		}
	}
	assert.Zero(t, c.calls(), "no external scoring for ineligible rows")
	assert.Empty(t, m.input)
}

func TestMentorBulkGraderScoresRow(t *testing.T) {
	c := &stubCompleter{reply: "Score: 3\nExplanation: Ok."}
	m := &stubModerator{cats: map[string]bool{}}
	g := NewMentorBulkGrader(Clients{Completer: c, Moderator: m, Timeout: time.Second})

	graded := g.Grade(context.Background(), "row-7", mentorRow())

	// structured: owned 3 + prior 5 + years -1 + employees 2 + expertise 2 + mentor 3 + student 0 = 14
	// external: bd 3*3 + detail 0 + motivation 3*4 + expertise 3*4 = 33
	assert.True(t, graded.Eligible)
	assert.Equal(t, 47, graded.TotalPoints)
	assert.Equal(t, 3, c.calls(), "blank detail is not sent")
	assert.Zero(t, graded.ExternalFailures)
	assert.Equal(t, "47", columnValue(t, g, graded, "total_pts"))
	assert.Equal(t, "-1", columnValue(t, g, graded, "business_years_pt"))
	assert.Equal(t, "2", columnValue(t, g, graded, "professional_expertise_struct_pt"))
	assert.Equal(t, "12", columnValue(t, g, graded, "professional_expertise_pt"))
	assert.Equal(t, "yes", columnValue(t, g, graded, "meets_all_req"))
	assert.Contains(t, graded.Explanation, "mentoring_exp_detail - "+blankExplanation)
}

func TestMentorBulkGraderDegradesOnExternalFailure(t *testing.T) {
	c := &stubCompleter{err: errors.New("boom")}
	m := &stubModerator{err: errors.New("boom")}
	g := NewMentorBulkGrader(Clients{Completer: c, Moderator: m, Timeout: time.Second})

	graded := g.Grade(context.Background(), "row-9", mentorRow())

	assert.True(t, graded.Eligible)
	assert.Equal(t, 14, graded.TotalPoints, "deterministic points survive")
	assert.Equal(t, 4, graded.ExternalFailures)
	assert.Empty(t, graded.RedFlags)
}

func entrepreneurRow() map[string]string {
	return map[string]string{
		"full_name":            "Lucía",
		"internet_access":      "yes_ok",
		"hours_per_week":       "2_4",
		"commit_3_months":      "yes",
		"prior_mentoring":      "yes",
		"business_age":         "gt_10y",
		"has_employees":        "no",
		"participated_before":  "yes_mentor",
		"business_description": "Vendo café",
		"growth_how":           "Con alcohol en gel",
		"biggest_challenge":    "",
	}
}

func TestEntrepreneurBulkGrader(t *testing.T) {
	c := &stubCompleter{reply: "Score: 2\nExplanation: Vague."}
	g := NewEntrepreneurBulkGrader(Clients{Completer: c, Timeout: time.Second})

	graded := g.Grade(context.Background(), "row-1", entrepreneurRow())

	// 2 + 5 + 0 + 4 + 2*3 + 2*4 + 0 = 25
	assert.Equal(t, 25, graded.TotalPoints)
	assert.Equal(t, "alcohol", graded.RedFlags)
	assert.Equal(t, 2, c.calls())
	assert.Equal(t, "25", columnValue(t, g, graded, "total_score"))
	assert.Len(t, graded.Values, len(g.Columns()))
}

func TestEntrepreneurBulkGraderTablestakes(t *testing.T) {
	c := &stubCompleter{reply: "Score: 2"}
	g := NewEntrepreneurBulkGrader(Clients{Completer: c})

	for field, value := range map[string]string{
		"internet_access": "no",
		"hours_per_week":  "lt_2",
		"commit_3_months": "no",
	} {
		row := entrepreneurRow()
		row[field] = value

		graded := g.Grade(context.Background(), "row", row)

		assert.Equal(t, FailedTablestakes, graded.Values[0], field)
		assert.Equal(t, "", strings.Join(graded.Values[1:], ""), field)
	}
	assert.Zero(t, c.calls())
}

func TestBulkRowAliasesStageSlugs(t *testing.T) {
	row := BulkRow(map[string]string{
		"e2_business_age":  "1_3y",
		"m2_motivation":    "Quiero ayudar",
		"has_employees":    "yes",
		"e2_has_employees": "no",
	})

	assert.Equal(t, "1_3y", row["business_age"])
	assert.Equal(t, "Quiero ayudar", row["motivation"])
	assert.Equal(t, "yes", row["has_employees"], "existing columns win")
	assert.Equal(t, "no", row["e2_has_employees"])
}
