package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrFormNotFound is returned for an unknown form slug.
	ErrFormNotFound = errors.New("form not found")
	// ErrFormClosed indicates the form exists but is not taking submissions here.
	ErrFormClosed = errors.New("form is closed")
	// ErrInviteNotFound covers unknown, superseded or mismatched invite tokens.
	ErrInviteNotFound = errors.New("invite not found")
	// ErrApplicationNotFound is returned for an unknown application id.
	ErrApplicationNotFound = errors.New("application not found")
	// ErrResultNotFound is returned when a thanks-page record expired or never existed.
	ErrResultNotFound = errors.New("submission result not found")
	// ErrRunNotFound is returned for an unknown grading run id.
	ErrRunNotFound = errors.New("grading run not found")
	// ErrTokenConflict means the invite token uniqueness constraint fired; retry.
	ErrTokenConflict = errors.New("invite token conflict")
	// ErrPersistence wraps storage failures while writing a submission.
	ErrPersistence = errors.New("persistence failure")
	// ErrExternalScoring wraps text-scoring and moderation failures.
	ErrExternalScoring = errors.New("external scoring failure")
	// ErrInvalidCondition rejects self-referencing or cross-form conditions.
	ErrInvalidCondition = errors.New("invalid visibility condition")
	// ErrValidation is matched by every *ValidationError.
	ErrValidation = errors.New("validation failed")
)

// ValidationError carries per-field messages for a rejected submission.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

// NewValidationError returns an empty error ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add attaches msg to field.
func (e *ValidationError) Add(field, msg string) {
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no field errors were recorded.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	names := make([]string, 0, len(e.Fields))
	for name := range e.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return "validation failed: " + strings.Join(names, ", ")
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}
