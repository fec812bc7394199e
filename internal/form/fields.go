package form

import (
	"fmt"
	"strconv"
	"strings"

	"emprendo-intake/internal/domain"
)

const (
	msgRequired      = "This field is required."
	msgInteger       = "Enter a whole number."
	msgInvalidChoice = "Select a valid choice."
	msgMismatch      = "The values do not match."
)

// Boolean questions render as an explicit yes/no choice with a blank default.
var booleanChoices = []domain.Choice{
	{Label: "Sí", Value: "yes", Position: 1},
	{Label: "No", Value: "no", Position: 2},
}

// kind is the per-type behavior of a field. The set of implementations is
// closed; a new field type means a new kind here and a case in kindFor.
type kind interface {
	// normalize turns the raw submitted values into the stored answer value.
	// A non-empty message rejects the input.
	normalize(f Field, raw []string) (value string, msg string)
	// blank reports whether a normalized value counts as "no answer".
	blank(value string) bool
	// requiredApplies is false for kinds that accept blanks even when required.
	requiredApplies() bool
}

func kindFor(t domain.FieldType) (kind, error) {
	switch t {
	case domain.FieldShortText, domain.FieldLongText:
		return textKind{}, nil
	case domain.FieldInteger:
		return integerKind{}, nil
	case domain.FieldBoolean:
		return booleanKind{}, nil
	case domain.FieldSingleChoice:
		return singleChoiceKind{}, nil
	case domain.FieldMultiChoice:
		return multiChoiceKind{}, nil
	}
	return nil, fmt.Errorf("unsupported field type %q", t)
}

type textKind struct{}

func (textKind) normalize(_ Field, raw []string) (string, string) {
	return strings.TrimSpace(first(raw)), ""
}

func (textKind) blank(v string) bool { return v == "" }
func (textKind) requiredApplies() bool { return true }

type integerKind struct{}

func (integerKind) normalize(_ Field, raw []string) (string, string) {
	v := strings.TrimSpace(first(raw))
	if v == "" {
		return "", ""
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return "", msgInteger
	}
	return strconv.FormatInt(n, 10), ""
}

func (integerKind) blank(v string) bool { return v == "" }

// Integers default to "no value" rather than 0, so required never rejects a blank.
func (integerKind) requiredApplies() bool { return false }

type booleanKind struct{}

func (booleanKind) normalize(_ Field, raw []string) (string, string) {
	v := strings.ToLower(strings.TrimSpace(first(raw)))
	switch v {
	case "", "yes", "no":
		return v, ""
	}
	return "", msgInvalidChoice
}

func (booleanKind) blank(v string) bool { return v == "" }
func (booleanKind) requiredApplies() bool { return true }

type singleChoiceKind struct{}

func (singleChoiceKind) normalize(f Field, raw []string) (string, string) {
	v := strings.TrimSpace(first(raw))
	if v == "" {
		return "", ""
	}
	if !f.hasChoice(v) {
		return "", msgInvalidChoice
	}
	return v, ""
}

func (singleChoiceKind) blank(v string) bool { return v == "" }
func (singleChoiceKind) requiredApplies() bool { return true }

type multiChoiceKind struct{}

func (multiChoiceKind) normalize(f Field, raw []string) (string, string) {
	picked := make([]string, 0, len(raw))
	seen := make(map[string]struct{}, len(raw))
	for _, v := range splitValues(raw) {
		if !f.hasChoice(v) {
			return "", msgInvalidChoice
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		picked = append(picked, v)
	}
	return strings.Join(picked, ","), ""
}

func (multiChoiceKind) blank(v string) bool { return v == "" }
func (multiChoiceKind) requiredApplies() bool { return true }

// splitValues accepts repeated inputs as well as a single comma-joined value.
func splitValues(raw []string) []string {
	var out []string
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if v := strings.TrimSpace(part); v != "" {
				out = append(out, v)
			}
		}
	}
	return out
}

func first(raw []string) string {
	if len(raw) == 0 {
		return ""
	}
	return raw[0]
}
