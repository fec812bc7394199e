package grading

import (
	"math"
	"strings"
	"unicode/utf8"

	"emprendo-intake/internal/domain"
)

// longAnswer is the rune count above which a free-text answer earns commitment.
const longAnswer = 300

// Ranking is the stage-2 rule-based grade.
type Ranking struct {
	Scores         domain.Scores
	Recommendation domain.Recommendation
}

var (
	entrepreneurAge      = map[string]float64{"idea": 0, "less_1": 1, "1_3": 2, "4_6": 3, "7_10": 3.5, "more_10": 4}
	entrepreneurHours    = map[string]float64{"lt2": 1, "2_4": 2, "gt4": 3}
	entrepreneurInternet = map[string]float64{"good": 2, "some_difficulties": 1, "no_access": 0}
	mentorAge            = map[string]float64{"0_1": 1, "1_5": 2, "5_10": 3, "10_plus": 3.5}
	mentorHours          = map[string]float64{"lt2": 0.5, "2_3": 1.5, "3_4": 2.5, "gt4": 3}
)

// Rank scores a stage-2 application. Masters other than E_A2 and M_A2 score
// zero everywhere.
func Rank(master string, answers map[string]string) Ranking {
	var t, c, n float64
	switch master {
	case SlugEntrepreneurStageTwo:
		t, c, n = rankEntrepreneur(answers)
	case SlugMentorStageTwo:
		t, c, n = rankMentor(answers)
	}
	return Combine(t, c, n)
}

func rankEntrepreneur(a map[string]string) (t, c, n float64) {
	t += entrepreneurAge[a["e2_business_age"]]
	if a["e2_has_employees"] == "yes" {
		t += 2
	}
	switch a["e2_commitment_program"] {
	case "yes":
		c += 3
	case "not_sure":
		c++
	}
	c += entrepreneurHours[a["e2_hours_per_week"]]
	t += entrepreneurInternet[a["e2_internet_access"]]
	if a["e2_mentor_experience"] == "yes" {
		n++
	}
	if isLong(a["e2_growth_how_help"]) {
		c++
	}
	if isLong(a["e2_main_challenge"]) {
		c++
	}
	return t, c, n
}

func rankMentor(a map[string]string) (t, c, n float64) {
	if a["m2_has_run_business"] == "yes" {
		t += 3
	}
	t += mentorAge[a["m2_business_age"]]
	if a["m2_has_employees"] == "yes" {
		t += 1.5
	}
	if isLong(a["m2_motivation"]) {
		c += 1.5
	}
	if isLong(a["m2_why_good_mentor"]) {
		c += 1.5
	}
	if a["m2_coach_experience"] == "yes" {
		n += 2
	}
	if a["m2_student_experience"] == "yes" {
		n++
	}
	c += mentorHours[a["m2_hours_per_week"]]
	return t, c, n
}

// Combine weighs the sub-scores into the overall score and recommendation.
// All values are rounded to two decimals; thresholds apply to the unrounded
// overall.
func Combine(tablestakes, commitment, niceToHave float64) Ranking {
	overall := 0.5*tablestakes + 0.3*commitment + 0.2*niceToHave
	return Ranking{
		Scores: domain.Scores{
			Tablestakes: round2(tablestakes),
			Commitment:  round2(commitment),
			NiceToHave:  round2(niceToHave),
			Overall:     round2(overall),
		},
		Recommendation: recommend(overall),
	}
}

func recommend(overall float64) domain.Recommendation {
	switch {
	case overall >= 8:
		return domain.RecommendationStrongYes
	case overall >= 6:
		return domain.RecommendationYes
	case overall >= 4:
		return domain.RecommendationMaybe
	}
	return domain.RecommendationNo
}

func isLong(v string) bool {
	return utf8.RuneCountInString(strings.TrimSpace(v)) > longAnswer
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
