package form

import (
	"net/url"

	"emprendo-intake/internal/domain"
)

// ConfirmSuffix names the paired confirmation input of a confirm_value field.
const ConfirmSuffix = "__confirm"

// Field is one renderable input derived from a question.
type Field struct {
	Name        string             `json:"name"`
	Slug        string             `json:"slug"`
	QuestionID  int64              `json:"questionId"`
	Label       string             `json:"label"`
	Help        domain.HelpText    `json:"help"`
	Type        domain.FieldType   `json:"type"`
	Required    bool               `json:"required"`
	Choices     []domain.Choice    `json:"choices,omitempty"`
	ConfirmName string             `json:"confirmName,omitempty"`
	SectionID   *int64             `json:"sectionId,omitempty"`
	Conditions  []domain.Condition `json:"conditions,omitempty"`

	kind kind
}

func (f Field) hasChoice(v string) bool {
	for _, c := range f.Choices {
		if c.Value == v {
			return true
		}
	}
	return false
}

// FieldSet is the ordered input schema of a form.
type FieldSet struct {
	Form     domain.FormDefinition `json:"-"`
	Sections []domain.Section      `json:"sections"`
	Fields   []Field               `json:"fields"`

	questions []domain.Question
	eval      *Evaluator
}

// Bound is a validated submission ready to persist. Answers holds one entry
// per visible field, keyed by slug.
type Bound struct {
	Answers []domain.Answer
	Values  Answers
}

// FieldName is the input name of a question.
func FieldName(slug string) string {
	return "q_" + slug
}

// BuildFieldSet instantiates the input schema of form. Questions with an
// unknown type are skipped.
func BuildFieldSet(form domain.FormDefinition) FieldSet {
	questions := form.ActiveQuestions()
	fs := FieldSet{
		Form:     form,
		Sections: form.OrderedSections(),
		Fields:   make([]Field, 0, len(questions)),
		eval:     NewEvaluator(form),
	}
	for _, q := range questions {
		k, err := kindFor(q.Type)
		if err != nil {
			continue
		}
		f := Field{
			Name:       FieldName(q.Slug),
			Slug:       q.Slug,
			QuestionID: q.ID,
			Label:      q.Text,
			Help:       domain.ParseHelpText(q.HelpText),
			Type:       q.Type,
			Required:   q.Required,
			Choices:    q.SortedChoices(),
			SectionID:  q.SectionID,
			Conditions: q.Conditions,
			kind:       k,
		}
		if q.Type == domain.FieldBoolean {
			f.Choices = booleanChoices
		}
		if q.ConfirmValue {
			f.ConfirmName = f.Name + ConfirmSuffix
		}
		fs.Fields = append(fs.Fields, f)
		fs.questions = append(fs.questions, q)
	}
	return fs
}

// Bind validates raw against fs. Visibility is recomputed from the submitted
// values first so hidden fields are neither validated nor stored. On failure
// the error is a *domain.ValidationError.
func Bind(fs FieldSet, raw url.Values) (Bound, error) {
	verr := domain.NewValidationError()
	submitted := make(Answers, len(fs.Fields))
	for _, f := range fs.Fields {
		value, msg := f.kind.normalize(f, raw[f.Name])
		if msg != "" {
			verr.Add(f.Name, msg)
			continue
		}
		submitted[f.Slug] = value
	}

	visible, values := fs.eval.VisibleSet(fs.questions, submitted)

	out := Bound{Values: make(Answers, len(fs.Fields))}
	for _, f := range fs.Fields {
		if !visible[f.QuestionID] {
			delete(verr.Fields, f.Name)
			continue
		}
		if _, bad := verr.Fields[f.Name]; bad {
			continue
		}
		value := values[f.Slug]
		if f.Required && f.kind.requiredApplies() && f.kind.blank(value) {
			verr.Add(f.Name, msgRequired)
			continue
		}
		if f.ConfirmName != "" {
			confirm, _ := f.kind.normalize(f, raw[f.ConfirmName])
			if !confirmMatches(f, value, confirm) {
				verr.Add(f.Name, msgMismatch)
				verr.Add(f.ConfirmName, msgMismatch)
				continue
			}
		}
		out.Values[f.Slug] = value
		out.Answers = append(out.Answers, domain.Answer{
			QuestionID:   f.QuestionID,
			QuestionSlug: f.Slug,
			Value:        value,
		})
	}
	if !verr.Empty() {
		return Bound{}, verr
	}
	return out, nil
}

func confirmMatches(f Field, value, confirm string) bool {
	if value == "" && confirm == "" {
		return !f.Required
	}
	return value == confirm
}
