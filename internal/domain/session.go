// Package domain provides the core data model of the schedule ingest
// worker: capture sessions and images on the input side, canonical
// shifts and their aggregates in the middle, and schedule versions,
// snapshots, events, and notifications on the output side.
package domain

import "time"

// SessionState is the capture_session lifecycle state.
type SessionState string

const (
	SessionPending    SessionState = "pending"
	SessionProcessing SessionState = "processing"
	SessionDone       SessionState = "done"
	SessionFailed     SessionState = "failed"
)

// Session is a unit of work: one user-day's group of ordered screenshots.
// Created externally; this worker only ever moves it pending → processing
// → {done, failed}, or processing → processing on stale-lease reclaim.
type Session struct {
	ID       string
	UserID   string
	State    SessionState
	CreatedAt time.Time
	Error    *string

	LockedAt *time.Time
	LockedBy *string
}

// Image is one ordered screenshot belonging to a Session. Immutable and
// read-only from this worker's point of view.
type Image struct {
	ID        string
	SessionID string
	Sequence  int
	BlobKey   string
	CreatedAt time.Time
}
