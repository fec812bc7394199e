package cli

import (
	"emprendo-intake/internal/domain"
	"emprendo-intake/internal/grading"
)

type sampleQuestion struct {
	slug     string
	typ      domain.FieldType
	required bool
	choices  []string
	showIf   *domain.Condition
}

// sampleForms provides the four master forms for running without Postgres;
// the Postgres loader serves the staff-managed definitions in production.
func sampleForms() []domain.FormDefinition {
	yesNo := []string{"yes", "no"}
	stageOne := []sampleQuestion{
		{slug: "full_name", typ: domain.FieldShortText, required: true},
		{slug: "email", typ: domain.FieldShortText, required: true},
		{slug: "meets_requirements", typ: domain.FieldBoolean, required: true},
		{slug: "availability_ok", typ: domain.FieldBoolean, required: true},
	}
	return []domain.FormDefinition{
		sampleForm(1, grading.SlugEntrepreneurStageOne, true, append(stageOne,
			sampleQuestion{slug: "business_active", typ: domain.FieldBoolean, required: true},
		)),
		sampleForm(2, grading.SlugEntrepreneurStageTwo, false, []sampleQuestion{
			{slug: "e2_business_age", typ: domain.FieldSingleChoice, required: true, choices: []string{"idea", "less_1", "1_3", "4_6", "7_10", "more_10"}},
			{slug: "e2_has_employees", typ: domain.FieldBoolean, required: true},
			{slug: "e2_employee_count", typ: domain.FieldInteger, showIf: &domain.Condition{QuestionID: 202, Value: "yes"}},
			{slug: "e2_commitment_program", typ: domain.FieldSingleChoice, required: true, choices: []string{"yes", "not_sure", "no"}},
			{slug: "e2_hours_per_week", typ: domain.FieldSingleChoice, required: true, choices: []string{"lt2", "2_4", "gt4"}},
			{slug: "e2_internet_access", typ: domain.FieldSingleChoice, required: true, choices: []string{"good", "some_difficulties", "no_access"}},
			{slug: "e2_mentor_experience", typ: domain.FieldSingleChoice, choices: yesNo},
			{slug: "e2_growth_how_help", typ: domain.FieldLongText},
			{slug: "e2_main_challenge", typ: domain.FieldLongText},
		}),
		sampleForm(3, grading.SlugMentorStageOne, true, stageOne),
		sampleForm(4, grading.SlugMentorStageTwo, false, []sampleQuestion{
			{slug: "m2_has_run_business", typ: domain.FieldBoolean, required: true},
			{slug: "m2_business_age", typ: domain.FieldSingleChoice, choices: []string{"0_1", "1_5", "5_10", "10_plus"}, showIf: &domain.Condition{QuestionID: 401, Value: "yes"}},
			{slug: "m2_has_employees", typ: domain.FieldBoolean},
			{slug: "m2_motivation", typ: domain.FieldLongText, required: true},
			{slug: "m2_why_good_mentor", typ: domain.FieldLongText, required: true},
			{slug: "m2_coach_experience", typ: domain.FieldSingleChoice, choices: yesNo},
			{slug: "m2_student_experience", typ: domain.FieldSingleChoice, choices: yesNo},
			{slug: "m2_hours_per_week", typ: domain.FieldSingleChoice, required: true, choices: []string{"lt2", "2_3", "3_4", "gt4"}},
		}),
	}
}

// sampleForm numbers questions id*100+position so conditions can refer to them.
func sampleForm(id int64, slug string, public bool, questions []sampleQuestion) domain.FormDefinition {
	fd := domain.FormDefinition{
		ID:                 id,
		Slug:               slug,
		IsMaster:           true,
		MasterSlug:         slug,
		IsPublic:           public,
		AcceptingResponses: true,
	}
	for i, sq := range questions {
		pos := i + 1
		q := domain.Question{
			ID:       id*100 + int64(pos),
			FormID:   id,
			Slug:     sq.slug,
			Text:     sq.slug,
			Type:     sq.typ,
			Required: sq.required,
			Active:   true,
			Position: pos,
		}
		for j, v := range sq.choices {
			q.Choices = append(q.Choices, domain.Choice{
				ID:         q.ID*10 + int64(j),
				QuestionID: q.ID,
				Value:      v,
				Label:      v,
				Position:   j,
			})
		}
		if sq.showIf != nil {
			q.Conditions = []domain.Condition{*sq.showIf}
		}
		fd.Questions = append(fd.Questions, q)
	}
	return fd
}
