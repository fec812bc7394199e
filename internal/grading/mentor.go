package grading

import (
	"context"
	"strings"
)

// Mentor rubric weights.
const (
	mentorWOwnedBusiness       = 3
	mentorWHasEmployees        = 2
	mentorWExpertiseStruct     = 2
	mentorWAsMentor            = 3
	mentorWAsStudent           = 2
	mentorWBusinessDescription = 3
	mentorWMentoringDetail     = 2
	mentorWMotivation          = 4
	mentorWExpertise           = 4
)

var mentorChecklist = []string{
	"req_basic_woman",
	"req_basic_latam",
	"req_basic_business_exp",
	"req_basic_punctual",
	"req_basic_internet_device",
	"req_basic_training",
	"req_basic_surveys",
	"req_avail_period",
	"req_avail_2hrs_week",
	"req_avail_kickoff",
}

var mentorColumns = []string{
	"total_pts",
	"certificate_name",
	"preferred_name",
	"id_number",
	"email",
	"whatsapp",
	"country_residence",
	"age_range",
	"red_flags",
	"meets_all_req",
	"owned_business",
	"owned_business_pt",
	"prior_participation",
	"prior_participation_pt",
	"business_years",
	"business_years_pt",
	"has_employees",
	"has_employees_pt",
	"professional_expertise",
	"professional_expertise_struct_pt",
	"mentoring_exp_as_mentor",
	"mentoring_exp_as_mentor_pt",
	"mentoring_exp_as_student",
	"mentoring_exp_as_student_pt",
	"business_description",
	"business_description_pt",
	"mentoring_exp_detail",
	"mentoring_exp_detail_pt",
	"motivation",
	"motivation_pt",
	"professional_expertise",
	"professional_expertise_pt",
	"score_exp",
	"grading_rubric",
}

const mentorRubric = "Weighted rubric applied; unstructured responses scored 1–5."

var mentorRules = []string{
	"Score 1–5 based on clarity, relevance, and depth",
	"Bad or nonsensical → 0",
	"Negative allowed only if justified",
}

// MentorBulkGrader grades mentor stage-2 rows: a prerequisite checklist, fixed
// structured points, externally scored free text and moderation flags.
type MentorBulkGrader struct {
	scorer  *TextScorer
	clients Clients
}

func NewMentorBulkGrader(c Clients) *MentorBulkGrader {
	return &MentorBulkGrader{scorer: NewTextScorer(c.Completer, c.Timeout, mentorRules...), clients: c}
}

func (g *MentorBulkGrader) Track() Track { return TrackMentor }

func (g *MentorBulkGrader) Columns() []string {
	return append([]string(nil), mentorColumns...)
}

// MeetsChecklist reports whether every prerequisite answer is "yes".
func MeetsChecklist(row map[string]string) bool {
	for _, c := range mentorChecklist {
		if strings.ToLower(row[c]) != "yes" {
			return false
		}
	}
	return true
}

func (g *MentorBulkGrader) Grade(ctx context.Context, key string, row map[string]string) Graded {
	if !MeetsChecklist(row) {
		return Graded{Key: key, Values: make([]string, len(mentorColumns))}
	}
	ownedPt := points(Yes(row["owned_business"]), mentorWOwnedBusiness)
	priorPt := priorParticipationPoints(row["prior_participation"])
	yearsPt := businessYearsPoints(row["business_years"], row["owned_business"])
	employeesPt := points(Yes(row["has_employees"]), mentorWHasEmployees)
	mentorPt := points(Yes(row["mentoring_exp_as_mentor"]), mentorWAsMentor)
	studentPt := points(Yes(row["mentoring_exp_as_student"]), mentorWAsStudent)
	expertiseStructPt := points(strings.TrimSpace(row["professional_expertise"]) != "", mentorWExpertiseStruct)

	bd := g.scorer.Score(ctx, key, "business_description", row["business_description"], false)
	md := g.scorer.Score(ctx, key, "mentoring_exp_detail", row["mentoring_exp_detail"], false)
	mot := g.scorer.Score(ctx, key, "motivation", row["motivation"], true)
	pe := g.scorer.Score(ctx, key, "professional_expertise", row["professional_expertise"], false)

	bdPt := bd.Points * mentorWBusinessDescription
	mdPt := md.Points * mentorWMentoringDetail
	motPt := mot.Points * mentorWMotivation
	pePt := pe.Points * mentorWExpertise

	total := ownedPt + priorPt + yearsPt + employeesPt + expertiseStructPt + mentorPt + studentPt +
		bdPt + mdPt + motPt + pePt

	flags, modOK := RedFlags(ctx, g.clients.Moderator, g.clients.Timeout, key,
		row["business_description"], row["mentoring_exp_detail"], row["motivation"], row["professional_expertise"])

	failures := 0
	for _, s := range []TextScore{bd, md, mot, pe} {
		if s.Failed {
			failures++
		}
	}
	if !modOK {
		failures++
	}

	explanation := strings.Join([]string{
		"business_description - " + bd.Explanation,
		"mentoring_exp_detail - " + md.Explanation,
		"motivation - " + mot.Explanation,
		"professional_expertise - " + pe.Explanation,
	}, "\n")

	return Graded{
		Key:              key,
		Eligible:         true,
		TotalPoints:      total,
		RedFlags:         flags,
		Explanation:      explanation,
		Rubric:           mentorRubric,
		ExternalFailures: failures,
		Values: []string{
			itoa(total),
			row["certificate_name"],
			row["preferred_name"],
			row["id_number"],
			row["email"],
			row["whatsapp"],
			row["country_residence"],
			row["age_range"],
			flags,
			"yes",
			row["owned_business"], itoa(ownedPt),
			row["prior_participation"], itoa(priorPt),
			row["business_years"], itoa(yearsPt),
			row["has_employees"], itoa(employeesPt),
			row["professional_expertise"], itoa(expertiseStructPt),
			row["mentoring_exp_as_mentor"], itoa(mentorPt),
			row["mentoring_exp_as_student"], itoa(studentPt),
			row["business_description"], itoa(bdPt),
			row["mentoring_exp_detail"], itoa(mdPt),
			row["motivation"], itoa(motPt),
			row["professional_expertise"], itoa(pePt),
			explanation,
			mentorRubric,
		},
	}
}

func priorParticipationPoints(v string) int {
	switch {
	case strings.Contains(v, "first_time"):
		return 0
	case strings.Contains(v, "as_entrepreneur") && strings.Contains(v, "as_mentora"):
		return 5
	case strings.Contains(v, "as_entrepreneur") || strings.Contains(v, "as_mentora"):
		return 4
	}
	return 0
}

var mentorBusinessYears = map[string]int{"0_1": 1, "1_5": 2, "5_10": 3, "10_plus": 4}

// businessYearsPoints penalises owners who left the business age blank.
func businessYearsPoints(v, owned string) int {
	if strings.TrimSpace(v) == "" {
		if Yes(owned) {
			return -1
		}
		return 0
	}
	return mentorBusinessYears[v]
}
