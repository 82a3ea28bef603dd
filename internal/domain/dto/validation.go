package dto

import (
	"errors"
	"strings"
)

type ValidationIssue struct{ Field, Reason string }

// ValidationError collects every problem found in a webhook body.
type ValidationError struct {
	Issues []ValidationIssue
	cause  error
}

var ErrInvalidWebhook = errors.New("invalid webhook payload")

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return ErrInvalidWebhook.Error()
	}
	parts := make([]string, 0, len(e.Issues))
	for _, issue := range e.Issues {
		parts = append(parts, issue.Field+": "+issue.Reason)
	}
	return ErrInvalidWebhook.Error() + ": " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(f, r string) {
	e.Issues = append(e.Issues, ValidationIssue{Field: f, Reason: r})
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidWebhook || (e.cause != nil && target == e.cause)
}

func invalid(field, reason string) *ValidationError {
	e := &ValidationError{}
	e.add(field, reason)
	return e
}
