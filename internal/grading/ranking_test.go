package grading

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"emprendo-intake/internal/domain"
)

func TestGradeEligibilityEntrepreneur(t *testing.T) {
	answers := map[string]string{
		"e1_meet_requirements":    "Sí",
		"e1_available_period":     "si",
		"e1_has_running_business": "SÍ",
	}
	assert.Equal(t, Eligibility{Outcome: Approved}, GradeEligibility("E_A1", answers))

	answers["e1_available_period"] = "No"
	got := GradeEligibility("E_A1", answers)
	assert.Equal(t, Rejected, got.Outcome)
	assert.Equal(t, []string{"e1_available_period"}, got.Failed)
}

func TestGradeEligibilityFallsBackToAlternateSlugs(t *testing.T) {
	answers := map[string]string{
		"meets_requirements": "yes",
		"availability_ok":    "sí",
		"business_active":    "si",
	}
	assert.Equal(t, Approved, GradeEligibility("E_A1", answers).Outcome)
}

func TestGradeEligibilityMentor(t *testing.T) {
	assert.Equal(t, Approved, GradeEligibility("M_A1", map[string]string{
		"meets_requirements": "Sí", "availability_ok": "Sí",
	}).Outcome)
	assert.Equal(t, Rejected, GradeEligibility("M_A1", map[string]string{
		"meets_requirements": "Sí",
	}).Outcome)
	assert.Equal(t, Rejected, GradeEligibility("E_A2", map[string]string{}).Outcome)
}

func TestCombineScenario(t *testing.T) {
	r := Combine(6, 5, 3)

	assert.Equal(t, 5.1, r.Scores.Overall)
	assert.Equal(t, domain.RecommendationMaybe, r.Recommendation)
}

func TestCombineThresholds(t *testing.T) {
	cases := []struct {
		t, c, n float64
		want    domain.Recommendation
	}{
		{16, 0, 0, domain.RecommendationStrongYes},
		{12, 0, 0, domain.RecommendationYes},
		{8, 0, 0, domain.RecommendationMaybe},
		{7.9, 0, 0, domain.RecommendationNo},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Combine(tc.t, tc.c, tc.n).Recommendation, "%v/%v/%v", tc.t, tc.c, tc.n)
	}
}

func TestRankEntrepreneur(t *testing.T) {
	answers := map[string]string{
		"e2_business_age":       "7_10",
		"e2_has_employees":      "yes",
		"e2_commitment_program": "not_sure",
		"e2_hours_per_week":     "gt4",
		"e2_internet_access":    "good",
		"e2_mentor_experience":  "yes",
		"e2_growth_how_help":    strings.Repeat("a", 301),
		"e2_main_challenge":     strings.Repeat("b", 300),
	}

	r := Rank("E_A2", answers)

	assert.Equal(t, 7.5, r.Scores.Tablestakes)
	assert.Equal(t, 5.0, r.Scores.Commitment)
	assert.Equal(t, 1.0, r.Scores.NiceToHave)
	assert.Equal(t, 5.45, r.Scores.Overall)
	assert.Equal(t, domain.RecommendationMaybe, r.Recommendation)
}

func TestRankMentor(t *testing.T) {
	answers := map[string]string{
		"m2_has_run_business":   "yes",
		"m2_business_age":       "10_plus",
		"m2_has_employees":      "yes",
		"m2_motivation":         strings.Repeat("ñ", 301),
		"m2_why_good_mentor":    "short",
		"m2_coach_experience":   "yes",
		"m2_student_experience": "yes",
		"m2_hours_per_week":     "gt4",
	}

	r := Rank("M_A2", answers)

	assert.Equal(t, 8.0, r.Scores.Tablestakes)
	assert.Equal(t, 4.5, r.Scores.Commitment)
	assert.Equal(t, 3.0, r.Scores.NiceToHave)
	assert.Equal(t, 5.95, r.Scores.Overall)
	assert.Equal(t, domain.RecommendationMaybe, r.Recommendation)
}

func TestRankIsDeterministic(t *testing.T) {
	answers := map[string]string{"e2_business_age": "more_10", "e2_hours_per_week": "2_4"}
	assert.Equal(t, Rank("E_A2", answers), Rank("E_A2", answers))
	assert.Equal(t, Combine(0, 0, 0), Rank("UNKNOWN", answers))
}
