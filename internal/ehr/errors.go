package ehr

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies an EHR failure so callers can branch on structure
// instead of upstream error text.
type Kind string

const (
	// KindConflict means the requested slot was taken between offer and
	// confirmation. The one recoverable booking failure.
	KindConflict Kind = "conflict"
	// KindNotFound means the referenced record does not exist.
	KindNotFound Kind = "not_found"
	// KindTransient covers network errors, 5xx responses, and auth
	// refresh failures that may succeed on a later turn.
	KindTransient Kind = "transient"
	// KindFatal covers malformed requests and anything retrying cannot fix.
	KindFatal Kind = "fatal"
)

// Error is a classified EHR failure.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ehr: %s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("ehr: %s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified error.
func NewError(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification from an error chain. Errors that carry
// no classification fall back to substring inspection of the message, since
// some upstream systems only report opaque strings.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var ehrErr *Error
	if errors.As(err, &ehrErr) {
		return ehrErr.Kind
	}
	return ClassifyMessage(err.Error())
}

// IsConflict reports whether the error is the slot-taken race.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

// conflictPhrases are the known upstream spellings of a double-booking.
// Phrasing drifts between EHR releases; unknown spellings degrade to
// KindFatal and a generic apology, never to a duplicate booking.
var conflictPhrases = []string{
	"already booked",
	"already taken",
	"no longer available",
	"slot unavailable",
	"conflicting appointment",
}

// ClassifyMessage maps opaque upstream error text onto a Kind.
func ClassifyMessage(msg string) Kind {
	lower := strings.ToLower(msg)
	for _, phrase := range conflictPhrases {
		if strings.Contains(lower, phrase) {
			return KindConflict
		}
	}
	if strings.Contains(lower, "not found") {
		return KindNotFound
	}
	if strings.Contains(lower, "timeout") || strings.Contains(lower, "temporarily") {
		return KindTransient
	}
	return KindFatal
}
