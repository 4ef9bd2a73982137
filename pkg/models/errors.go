package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrInvalidInput is returned when a loan definition is malformed or inconsistent.
	// Nothing is computed when it is returned.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnparseableEvent marks a payment record dropped by the event builder.
	// It is reported as a diagnostic, never returned as a hard failure.
	ErrUnparseableEvent = errors.New("unparseable event")

	// ErrLoanNotFound is returned by storage when no loan record matches the id.
	ErrLoanNotFound = errors.New("loan not found")
)

// InvalidInputError names the offending field of a loan definition.
type InvalidInputError struct {
	LoanID uuid.UUID
	Field  string
	Value  string
	Reason string
}

func (e *InvalidInputError) Error() string {
	msg := fmt.Sprintf("invalid %s", e.Field)
	if e.Value != "" {
		msg += fmt.Sprintf(" %q", e.Value)
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.LoanID != uuid.Nil {
		msg = fmt.Sprintf("loan %s: %s", e.LoanID, msg)
	}
	return msg
}

func (e *InvalidInputError) Unwrap() error {
	return ErrInvalidInput
}

// Diagnostic describes a raw payment record (or one of its fields) the event builder could not use.
type Diagnostic struct {
	Index    int       `json:"index"`
	RecordID uuid.UUID `json:"record_id"`
	Field    string    `json:"field"`
	Value    string    `json:"value"`
	Dropped  bool      `json:"dropped"` // whole record skipped rather than a single field omitted
	Err      error     `json:"-"`
}

func (d Diagnostic) Error() string {
	action := "field omitted"
	if d.Dropped {
		action = "record dropped"
	}
	return fmt.Sprintf("payment record %d (%s): %s %q: %s: %v", d.Index, d.RecordID, d.Field, d.Value, action, d.Err)
}

func (d Diagnostic) Unwrap() error {
	return d.Err
}
