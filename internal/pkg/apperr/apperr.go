// Package apperr provides the worker's error taxonomy.
//
// Every error that can surface out of a session-processing attempt is
// classified into a Kind from the table below. The Kind drives both the
// "error.stage" structured log field and the session-finalization policy:
// some kinds mark the session failed immediately, one (LeaseLost) aborts
// the iteration without touching the session at all.
package apperr

import (
	"errors"
	"fmt"
)

// Kind is a closed taxonomy of failure classes.
type Kind string

const (
	KindTransientDB      Kind = "transient_db"
	KindLeaseLost        Kind = "lease_lost"
	KindCanonicalization Kind = "canonicalization"
	KindAggregation      Kind = "aggregation"
	KindSchemaContract   Kind = "schema_contract"
	KindExternal         Kind = "external"
	KindUnexpected       Kind = "unexpected"
)

// Stage identifies the pipeline stage an error occurred in, matching the
// error.stage structured log field.
type Stage string

const (
	StageOCR       Stage = "ocr"
	StageLayout    Stage = "layout"
	StageDiff      Stage = "diff"
	StageDB        Stage = "db"
	StageLifecycle Stage = "lifecycle"
)

// Sentinel errors for common, taxonomy-independent conditions.
var (
	ErrLeaseLost            = errors.New("lease lost: ownership guard affected zero rows")
	ErrNoFinalizableSession = errors.New("no finalizable session available")
	ErrNotOwner             = errors.New("mutation attempted without lease ownership")
)

// Error is a structured, classified application error.
type Error struct {
	Kind    Kind
	Stage   Stage
	Message string
	Err     error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s[%s]: %s: %v", e.Kind, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s[%s]: %s", e.Kind, e.Stage, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new classified Error.
func New(kind Kind, stage Stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message}
}

// Wrap classifies an existing error.
func Wrap(err error, kind Kind, stage Stage, message string) *Error {
	return &Error{Kind: kind, Stage: stage, Message: message, Err: err}
}

// As reports whether err is (or wraps) an *Error and returns it.
func As(err error) (*Error, bool) {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// TerminatesSession reports whether this Kind, per §7's error policy,
// should mark the session failed rather than merely aborting the
// iteration (LeaseLost never writes to the session it lost).
func (k Kind) TerminatesSession() bool {
	return k != KindLeaseLost
}
