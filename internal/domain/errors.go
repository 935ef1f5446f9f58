package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies conversation failures
type ErrorKind string

const (
	KindNotFound            ErrorKind = "NOT_FOUND"
	KindInvalidState        ErrorKind = "INVALID_STATE"
	KindReferential         ErrorKind = "REFERENTIAL_ERROR"
	KindPartialFailure      ErrorKind = "PARTIAL_FAILURE"
	KindConcurrencyConflict ErrorKind = "CONCURRENCY_CONFLICT"
	KindInvalidInput        ErrorKind = "INVALID_INPUT"
)

// Stages of a cross-store operation, reported on PartialFailure
const (
	StageIndex      = "index"
	StageTranscript = "transcript"
)

// Sentinels for errors.Is; they match any *Error of the same kind.
var (
	ErrNotFound            = &Error{Kind: KindNotFound}
	ErrInvalidState        = &Error{Kind: KindInvalidState}
	ErrReferential         = &Error{Kind: KindReferential}
	ErrPartialFailure      = &Error{Kind: KindPartialFailure}
	ErrConcurrencyConflict = &Error{Kind: KindConcurrencyConflict}
	ErrInvalidInput        = &Error{Kind: KindInvalidInput}
)

// Error is a classified conversation failure.
// Stage names the store step that failed for a PartialFailure.
type Error struct {
	Kind  ErrorKind
	Op    string
	UUID  string
	Stage string
	Err   error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.UUID != "" {
		msg += " [" + e.UUID + "]"
	}
	if e.Stage != "" {
		msg += " at " + e.Stage
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches on Kind so callers can test against the package sentinels
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil {
		return false
	}
	return e.Kind == t.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// NotFound builds a NotFound error for uuid
func NotFound(op, uuid string) *Error {
	return &Error{Kind: KindNotFound, Op: op, UUID: uuid, Err: errors.New("conversation not found")}
}

// InvalidState builds an InvalidState error for uuid
func InvalidState(op, uuid string, status ConversationStatus) *Error {
	return &Error{
		Kind: KindInvalidState,
		Op:   op,
		UUID: uuid,
		Err:  fmt.Errorf("conversation is %s", status),
	}
}

// Conflict builds a ConcurrencyConflict error for uuid
func Conflict(op, uuid string, err error) *Error {
	return &Error{Kind: KindConcurrencyConflict, Op: op, UUID: uuid, Err: err}
}

// PartialFailure reports a cross-store operation that committed some but not
// all of its steps. stage is the step that failed.
func PartialFailure(op, uuid, stage string, err error) *Error {
	return &Error{Kind: KindPartialFailure, Op: op, UUID: uuid, Stage: stage, Err: err}
}

// Annotate stamps op and uuid onto a classified error that lacks them.
// Unclassified errors are returned unchanged.
func Annotate(err error, op, uuid string) error {
	var e *Error
	if errors.As(err, &e) && e.UUID == "" {
		cp := *e
		cp.Op, cp.UUID = op, uuid
		return &cp
	}
	return err
}

// Restamp is Annotate for errors that crossed a store boundary: op and uuid
// replace whatever the store set. Unclassified errors are returned unchanged.
func Restamp(err error, op, uuid string) error {
	var e *Error
	if errors.As(err, &e) {
		cp := *e
		cp.Op, cp.UUID = op, uuid
		return &cp
	}
	return err
}
