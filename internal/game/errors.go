package game

import "fmt"

// ErrorKind classifies why an action was rejected.
type ErrorKind string

const (
	ErrAuthorization       ErrorKind = "authorization"
	ErrPhase               ErrorKind = "phase"
	ErrValidation          ErrorKind = "validation"
	ErrCapacity            ErrorKind = "capacity"
	ErrDuplicateSubmission ErrorKind = "duplicate_submission"
	ErrNotFound            ErrorKind = "not_found"
)

// Error is a rejected action. It is created before any state mutation and
// delivered only to the connection that caused it.
type Error struct {
	Kind    ErrorKind
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func newError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

func authorizationErr(msg string) *Error { return newError(ErrAuthorization, msg) }
func phaseErr(msg string) *Error         { return newError(ErrPhase, msg) }
func validationErr(msg string) *Error    { return newError(ErrValidation, msg) }
func capacityErr(msg string) *Error      { return newError(ErrCapacity, msg) }
func duplicateErr(msg string) *Error     { return newError(ErrDuplicateSubmission, msg) }
func notFoundErr(msg string) *Error      { return newError(ErrNotFound, msg) }
