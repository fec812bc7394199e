package form

import (
	"strings"

	"emprendo-intake/internal/domain"
)

// Answers holds the in-progress values of a submission keyed by question slug.
// Multi-choice values are comma-joined.
type Answers map[string]string

// Evaluator decides question and section visibility for one form.
type Evaluator struct {
	questions map[int64]domain.Question
	sections  map[int64]domain.Section
}

// NewEvaluator indexes the form's questions and sections.
func NewEvaluator(form domain.FormDefinition) *Evaluator {
	e := &Evaluator{
		questions: make(map[int64]domain.Question, len(form.Questions)),
		sections:  make(map[int64]domain.Section, len(form.Sections)),
	}
	for _, q := range form.Questions {
		e.questions[q.ID] = q
	}
	for _, s := range form.Sections {
		e.sections[s.ID] = s
	}
	return e
}

// Any reports whether at least one condition holds. No conditions means visible.
func (e *Evaluator) Any(conds []domain.Condition, answers Answers) bool {
	if len(conds) == 0 {
		return true
	}
	for _, c := range conds {
		if e.satisfied(c, answers) {
			return true
		}
	}
	return false
}

// All reports whether every condition holds. No conditions means visible.
func (e *Evaluator) All(conds []domain.Condition, answers Answers) bool {
	for _, c := range conds {
		if !e.satisfied(c, answers) {
			return false
		}
	}
	return true
}

// SectionVisible combines the section's conditions with its logic flag.
func (e *Evaluator) SectionVisible(s domain.Section, answers Answers) bool {
	if s.Logic == domain.LogicOr {
		return e.Any(s.Conditions, answers)
	}
	return e.All(s.Conditions, answers)
}

// QuestionVisible requires the enclosing section (if any) and the question's
// OR-list to hold.
func (e *Evaluator) QuestionVisible(q domain.Question, answers Answers) bool {
	if q.SectionID != nil {
		if s, ok := e.sections[*q.SectionID]; ok && !e.SectionVisible(s, answers) {
			return false
		}
	}
	return e.Any(q.Conditions, answers)
}

// VisibleSet computes the visible questions for submitted answers. Values of
// hidden questions are dropped and visibility recomputed until nothing changes,
// so a hidden controller hides its dependants too.
func (e *Evaluator) VisibleSet(questions []domain.Question, submitted Answers) (map[int64]bool, Answers) {
	effective := make(Answers, len(submitted))
	for k, v := range submitted {
		effective[k] = v
	}
	visible := make(map[int64]bool, len(questions))
	for range len(questions) + 1 {
		changed := false
		for _, q := range questions {
			v := e.QuestionVisible(q, effective)
			if prev, seen := visible[q.ID]; !seen || prev != v {
				changed = true
			}
			visible[q.ID] = v
			if !v {
				delete(effective, q.Slug)
			}
		}
		if !changed {
			break
		}
	}
	return visible, effective
}

func (e *Evaluator) satisfied(c domain.Condition, answers Answers) bool {
	ctrl, ok := e.questions[c.QuestionID]
	if !ok || !ctrl.Active {
		return false
	}
	current, ok := answers[ctrl.Slug]
	if !ok {
		return false
	}
	return valueMatches(ctrl.Type, current, c.Value)
}

func valueMatches(t domain.FieldType, current, expected string) bool {
	expected = strings.TrimSpace(expected)
	if strings.EqualFold(strings.TrimSpace(current), expected) {
		return true
	}
	if t != domain.FieldMultiChoice {
		return false
	}
	for _, part := range strings.Split(current, ",") {
		if strings.EqualFold(strings.TrimSpace(part), expected) {
			return true
		}
	}
	return false
}
