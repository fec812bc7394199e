package grading

// Outcome is the stage-1 decision.
type Outcome string

const (
	Approved Outcome = "approved"
	Rejected Outcome = "rejected"
)

// gate is one eligibility question; the first non-empty slug is used so
// renamed questions keep grading.
type gate []string

var eligibilityGates = map[string][]gate{
	SlugEntrepreneurStageOne: {
		{"e1_meet_requirements", "meets_requirements"},
		{"e1_available_period", "availability_ok"},
		{"e1_has_running_business", "business_active"},
	},
	SlugMentorStageOne: {
		{"meets_requirements"},
		{"availability_ok"},
	},
}

// Eligibility is the result of grading a stage-1 application.
type Eligibility struct {
	Outcome Outcome
	// Failed lists the first slug of every gate that did not pass.
	Failed []string
}

// GradeEligibility applies the gates of a stage-1 master form. Every gate must
// pass for approval; unknown masters are rejected.
func GradeEligibility(master string, answers map[string]string) Eligibility {
	gates, ok := eligibilityGates[master]
	if !ok {
		return Eligibility{Outcome: Rejected}
	}
	var failed []string
	for _, g := range gates {
		if !FuzzyYes(g.value(answers)) {
			failed = append(failed, g[0])
		}
	}
	if len(failed) > 0 {
		return Eligibility{Outcome: Rejected, Failed: failed}
	}
	return Eligibility{Outcome: Approved}
}

func (g gate) value(answers map[string]string) string {
	for _, slug := range g {
		if v := answers[slug]; v != "" {
			return v
		}
	}
	return ""
}
