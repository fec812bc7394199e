package form

import (
	"errors"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"emprendo-intake/internal/domain"
)

func binderForm() domain.FormDefinition {
	return domain.FormDefinition{
		ID:   2,
		Slug: "E_A2",
		Questions: []domain.Question{
			{ID: 1, FormID: 2, Slug: "email", Type: domain.FieldShortText, Required: true, Active: true, Position: 1, ConfirmValue: true},
			{ID: 2, FormID: 2, Slug: "phone", Type: domain.FieldShortText, Active: true, Position: 2, ConfirmValue: true},
			{ID: 3, FormID: 2, Slug: "employees", Type: domain.FieldInteger, Required: true, Active: true, Position: 3},
			{ID: 4, FormID: 2, Slug: "commitment", Type: domain.FieldBoolean, Required: true, Active: true, Position: 4},
			{ID: 5, FormID: 2, Slug: "business_age", Type: domain.FieldSingleChoice, Required: true, Active: true, Position: 5,
				Choices: []domain.Choice{{ID: 2, Value: "1_3", Position: 2}, {ID: 1, Value: "idea", Position: 1}}},
			{ID: 6, FormID: 2, Slug: "channels", Type: domain.FieldMultiChoice, Active: true, Position: 6,
				Choices: []domain.Choice{{Value: "radio"}, {Value: "web"}, {Value: "friend"}}},
			{ID: 7, FormID: 2, Slug: "why_not", Type: domain.FieldLongText, Required: true, Active: true, Position: 7,
				Conditions: []domain.Condition{{QuestionID: 4, Value: "no"}}},
			{ID: 8, FormID: 2, Slug: "retired", Type: domain.FieldLongText, Required: true, Active: false, Position: 8},
		},
	}
}

func validSubmission() url.Values {
	return url.Values{
		"q_email":          {"ana@example.com"},
		"q_email__confirm": {"ana@example.com"},
		"q_employees":      {""},
		"q_commitment":     {"yes"},
		"q_business_age":   {"1_3"},
		"q_channels":       {"web", "radio"},
	}
}

func fieldErrors(t *testing.T, err error) map[string][]string {
	t.Helper()
	var verr *domain.ValidationError
	require.True(t, errors.As(err, &verr), "expected validation error, got %v", err)
	assert.ErrorIs(t, err, domain.ErrValidation)
	return verr.Fields
}

func TestBuildFieldSet(t *testing.T) {
	fs := BuildFieldSet(binderForm())

	require.Len(t, fs.Fields, 7, "inactive questions are not rendered")
	assert.Equal(t, "q_email", fs.Fields[0].Name)
	assert.Equal(t, "q_email__confirm", fs.Fields[0].ConfirmName)
	assert.Empty(t, fs.Fields[2].ConfirmName)

	age := fs.Fields[4]
	require.Len(t, age.Choices, 2)
	assert.Equal(t, "idea", age.Choices[0].Value, "choices ordered by position")

	commitment := fs.Fields[3]
	require.Len(t, commitment.Choices, 2)
	assert.Equal(t, "yes", commitment.Choices[0].Value)
	assert.Equal(t, "no", commitment.Choices[1].Value)
}

func TestBuildFieldSetParsesHelpText(t *testing.T) {
	form := binderForm()
	form.Questions[0].HelpText = "[[PRE hr=1]]\nImportante\n[[/PRE]]\nUsa tu correo personal"

	f := BuildFieldSet(form).Fields[0]

	assert.Equal(t, "Importante", f.Help.Pre)
	assert.True(t, f.Help.HR)
	assert.Equal(t, "Usa tu correo personal", f.Help.Rest)
}

func TestBindValidSubmission(t *testing.T) {
	bound, err := Bind(BuildFieldSet(binderForm()), validSubmission())
	require.NoError(t, err)

	assert.Equal(t, "ana@example.com", bound.Values["email"])
	assert.Equal(t, "", bound.Values["employees"], "integer blank allowed even when required")
	assert.Equal(t, "yes", bound.Values["commitment"])
	assert.Equal(t, "web,radio", bound.Values["channels"])
	assert.Equal(t, "", bound.Values["phone"], "optional blank confirm pair passes")
	assert.NotContains(t, bound.Values, "why_not", "hidden fields are not stored")
	assert.Len(t, bound.Answers, 6)
}

func TestBindConfirmPairs(t *testing.T) {
	cases := []struct {
		name      string
		email     string
		confirm   string
		wantError bool
	}{
		{"matching", "x@example.com", "x@example.com", false},
		{"mismatch", "x@example.com", "y@example.com", true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validSubmission()
			raw.Set("q_email", tc.email)
			raw.Set("q_email__confirm", tc.confirm)

			_, err := Bind(BuildFieldSet(binderForm()), raw)
			if !tc.wantError {
				assert.NoError(t, err)
				return
			}
			fields := fieldErrors(t, err)
			assert.Contains(t, fields, "q_email")
			assert.Contains(t, fields, "q_email__confirm")
		})
	}
}

func TestBindOptionalConfirmMismatch(t *testing.T) {
	raw := validSubmission()
	raw.Set("q_phone", "555")

	_, err := Bind(BuildFieldSet(binderForm()), raw)

	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "q_phone")
	assert.Contains(t, fields, "q_phone__confirm")
}

func TestBindFieldRules(t *testing.T) {
	cases := []struct {
		name  string
		field string
		value []string
	}{
		{"integer must parse", "q_employees", []string{"three"}},
		{"boolean closed set", "q_commitment", []string{"maybe"}},
		{"boolean blank fails required", "q_commitment", []string{""}},
		{"choice outside set", "q_business_age", []string{"ancient"}},
		{"choice blank fails required", "q_business_age", nil},
		{"multi choice outside set", "q_channels", []string{"web", "tv"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			raw := validSubmission()
			raw[tc.field] = tc.value

			_, err := Bind(BuildFieldSet(binderForm()), raw)

			fields := fieldErrors(t, err)
			assert.Contains(t, fields, tc.field)
			assert.Len(t, fields, 1)
		})
	}
}

func TestBindRequiresVisibleDependant(t *testing.T) {
	raw := validSubmission()
	raw.Set("q_commitment", "no")

	_, err := Bind(BuildFieldSet(binderForm()), raw)
	fields := fieldErrors(t, err)
	assert.Contains(t, fields, "q_why_not")

	raw.Set("q_why_not", "  No tengo tiempo  ")
	bound, err := Bind(BuildFieldSet(binderForm()), raw)
	require.NoError(t, err)
	assert.Equal(t, "No tengo tiempo", bound.Values["why_not"])
}

func TestBindIntegerCanonical(t *testing.T) {
	raw := validSubmission()
	raw.Set("q_employees", " 007 ")

	bound, err := Bind(BuildFieldSet(binderForm()), raw)
	require.NoError(t, err)
	assert.Equal(t, "7", bound.Values["employees"])
}
