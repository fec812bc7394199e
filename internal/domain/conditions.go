package domain

import (
	"fmt"
	"strings"
)

// ConditionPrecedence decides which representation wins when a stored question
// has both the legacy single condition and the condition list and they disagree.
type ConditionPrecedence string

const (
	// PrecedenceLegacy lets the legacy pair override the first list entry.
	PrecedenceLegacy ConditionPrecedence = "legacy"
	// PrecedenceList ignores the legacy pair entirely.
	PrecedenceList ConditionPrecedence = "list"
)

// ParsePrecedence maps a config value to a precedence, defaulting to legacy.
func ParsePrecedence(raw string) ConditionPrecedence {
	if strings.EqualFold(strings.TrimSpace(raw), string(PrecedenceList)) {
		return PrecedenceList
	}
	return PrecedenceLegacy
}

// ReconcileConditions merges stored legacy and list conditions into the single
// list representation. A legacy pair with no question id is ignored.
func ReconcileConditions(list []Condition, legacy *Condition, p ConditionPrecedence) []Condition {
	out := make([]Condition, 0, len(list)+1)
	for _, c := range list {
		if c.QuestionID == 0 {
			continue
		}
		out = append(out, c)
	}
	if p == PrecedenceList || legacy == nil || legacy.QuestionID == 0 {
		return out
	}
	if len(out) == 0 {
		return []Condition{*legacy}
	}
	if out[0] != *legacy {
		out[0] = *legacy
	}
	return out
}

// ValidateConditions enforces that every condition of q points at another
// question of the same form.
func ValidateConditions(form FormDefinition, q Question) error {
	for _, c := range q.Conditions {
		if c.QuestionID == q.ID {
			return fmt.Errorf("%w: question %q references itself", ErrInvalidCondition, q.Slug)
		}
		ctrl, ok := form.QuestionByID(c.QuestionID)
		if !ok || ctrl.FormID != form.ID {
			return fmt.Errorf("%w: question %q references question %d outside form %q", ErrInvalidCondition, q.Slug, c.QuestionID, form.Slug)
		}
	}
	return nil
}

// ValidateSectionConditions applies the same-form rule to a section.
func ValidateSectionConditions(form FormDefinition, s Section) error {
	if len(s.Conditions) > 2 {
		return fmt.Errorf("%w: section %q has %d conditions", ErrInvalidCondition, s.Title, len(s.Conditions))
	}
	for _, c := range s.Conditions {
		ctrl, ok := form.QuestionByID(c.QuestionID)
		if !ok || ctrl.FormID != form.ID {
			return fmt.Errorf("%w: section %q references question %d outside form %q", ErrInvalidCondition, s.Title, c.QuestionID, form.Slug)
		}
	}
	return nil
}
