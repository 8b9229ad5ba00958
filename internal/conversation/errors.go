package conversation

import (
	"errors"
	"fmt"
)

// Kind classifies a turn failure so the router can decide between a local prompt and an apology.
type Kind int

const (
	// KindCollaborator covers calendar, messaging and state-store failures after retries.
	KindCollaborator Kind = iota
	// KindExtraction is an unreachable or unparseable intent extractor.
	KindExtraction
	// KindValidation is answered with a specific prompt and never surfaced as a generic error.
	KindValidation
)

func (k Kind) String() string {
	switch k {
	case KindExtraction:
		return "extraction"
	case KindValidation:
		return "validation"
	default:
		return "collaborator"
	}
}

// Error carries the failing operation and its Kind.
type Error struct {
	Kind Kind
	Op   string
	// Reply is the patient-facing prompt for validation failures.
	Reply string
	Err   error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("conversation: %s: %s failure", e.Op, e.Kind)
	}
	return fmt.Sprintf("conversation: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func collaboratorError(op string, err error) error {
	return &Error{Kind: KindCollaborator, Op: op, Err: err}
}

func validationError(op, reply string) error {
	return &Error{Kind: KindValidation, Op: op, Reply: reply}
}

// KindOf reports the Kind of err, treating untyped errors as collaborator failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindCollaborator
}
