package grading

import (
	"context"
	"strings"
)

// FailedTablestakes marks a row that did not meet the entrepreneur prerequisites.
const FailedTablestakes = "FAILED_TABLESTAKES"

// Entrepreneur rubric weights.
const (
	entrepreneurWPriorMentoring      = 2
	entrepreneurWHasEmployees        = 2
	entrepreneurWBusinessDescription = 3
	entrepreneurWGrowthHow           = 4
	entrepreneurWBiggestChallenge    = 4
)

var entrepreneurColumns = []string{
	"total_score",
	"full_name",
	"whatsapp",
	"email",
	"cedula",
	"country_residence",
	"red_flags",
	"meets_all_req",
	"prior_mentoring",
	"prior_mentoring_pt",
	"business_age",
	"business_age_pt",
	"has_employees",
	"has_employees_pt",
	"participated_before",
	"participated_before_pt",
	"business_description",
	"business_description_pt",
	"growth_how",
	"growth_how_pt",
	"biggest_challenge",
	"biggest_challenge_pt",
	"additional_comments",
	"score_exp",
	"grading_rubric",
}

const entrepreneurRubric = "Applicants must meet all tablestakes; structured fields are deterministic; unstructured responses scored 1–5 and weighted."

var entrepreneurRules = []string{
	"Score from 1–5 based on clarity, relevance, and insight",
	"Bad, nonsensical, or irrelevant → 0",
	"Be strict but fair",
}

var entrepreneurBusinessAge = map[string]int{"idea": 0, "lt_1": 1, "1_3y": 2, "4_6y": 3, "7_10y": 4, "gt_10y": 5}

// EntrepreneurBulkGrader grades entrepreneur stage-2 rows. Red flags come from
// a keyword list; only the free-text scores call out.
type EntrepreneurBulkGrader struct {
	scorer *TextScorer
}

func NewEntrepreneurBulkGrader(c Clients) *EntrepreneurBulkGrader {
	return &EntrepreneurBulkGrader{scorer: NewTextScorer(c.Completer, c.Timeout, entrepreneurRules...)}
}

func (g *EntrepreneurBulkGrader) Track() Track { return TrackEntrepreneur }

func (g *EntrepreneurBulkGrader) Columns() []string {
	return append([]string(nil), entrepreneurColumns...)
}

// MeetsTablestakes reports whether the row qualifies for scoring.
func MeetsTablestakes(row map[string]string) bool {
	return row["internet_access"] == "yes_ok" &&
		row["hours_per_week"] != "lt_2" &&
		Yes(row["commit_3_months"])
}

func (g *EntrepreneurBulkGrader) Grade(ctx context.Context, key string, row map[string]string) Graded {
	if !MeetsTablestakes(row) {
		values := make([]string, len(entrepreneurColumns))
		values[0] = FailedTablestakes
		return Graded{Key: key, Values: values}
	}
	priorPt := points(Yes(row["prior_mentoring"]), entrepreneurWPriorMentoring)
	agePt := entrepreneurBusinessAge[row["business_age"]]
	employeesPt := points(Yes(row["has_employees"]), entrepreneurWHasEmployees)
	participatedPt := participatedBeforePoints(row["participated_before"])

	bd := g.scorer.Score(ctx, key, "business_description", row["business_description"], false)
	gh := g.scorer.Score(ctx, key, "growth_how", row["growth_how"], false)
	bc := g.scorer.Score(ctx, key, "biggest_challenge", row["biggest_challenge"], false)

	bdPt := bd.Points * entrepreneurWBusinessDescription
	ghPt := gh.Points * entrepreneurWGrowthHow
	bcPt := bc.Points * entrepreneurWBiggestChallenge

	total := priorPt + agePt + employeesPt + participatedPt + bdPt + ghPt + bcPt
	flags := KeywordFlags(row["business_description"], row["growth_how"], row["biggest_challenge"])

	failures := 0
	for _, s := range []TextScore{bd, gh, bc} {
		if s.Failed {
			failures++
		}
	}

	explanation := strings.Join([]string{
		"business_description - " + bd.Explanation,
		"growth_how - " + gh.Explanation,
		"biggest_challenge - " + bc.Explanation,
	}, "\n")

	return Graded{
		Key:              key,
		Eligible:         true,
		TotalPoints:      total,
		RedFlags:         flags,
		Explanation:      explanation,
		Rubric:           entrepreneurRubric,
		ExternalFailures: failures,
		Values: []string{
			itoa(total),
			row["full_name"],
			row["whatsapp"],
			row["email"],
			row["cedula"],
			row["country_residence"],
			flags,
			"yes",
			row["prior_mentoring"], itoa(priorPt),
			row["business_age"], itoa(agePt),
			row["has_employees"], itoa(employeesPt),
			row["participated_before"], itoa(participatedPt),
			row["business_description"], itoa(bdPt),
			row["growth_how"], itoa(ghPt),
			row["biggest_challenge"], itoa(bcPt),
			row["additional_comments"],
			explanation,
			entrepreneurRubric,
		},
	}
}

func participatedBeforePoints(v string) int {
	mentor := strings.Contains(v, "yes_mentor")
	entrepreneur := strings.Contains(v, "yes_entrepreneur")
	switch {
	case mentor && entrepreneur:
		return 5
	case mentor || entrepreneur:
		return 4
	}
	return 0
}
