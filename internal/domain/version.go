package domain

import "time"

// ScheduleVersion is the immutable per-session payload record: the
// versioned history for one (user_id, schedule_date) (§3).
type ScheduleVersion struct {
	UserID       string
	ScheduleDate string
	Version      int
	SessionID    string
	Payload      DayCanonicalPayload
	PayloadHash  string
	CreatedAt    time.Time
}

// VersionOutcome classifies the result of a Version Writer attempt (§4.7).
type VersionOutcome string

const (
	// VersionCreated means a new version row was inserted.
	VersionCreated VersionOutcome = "created"
	// VersionUnchanged means the new hash matched the latest stored
	// version's hash, so no row was inserted.
	VersionUnchanged VersionOutcome = "unchanged"
	// VersionAlreadyExisted means conflict-ignore fired: another writer
	// (or a retry of this same session) already inserted this row.
	VersionAlreadyExisted VersionOutcome = "already_existed"
)

// DaySnapshot is the mutable latest canonical day state used as the diff
// baseline for the next observation (§3).
type DaySnapshot struct {
	UserID          string
	ScheduleDate    string
	SnapshotPayload []CanonicalShift
	SourceSessionID string
	UpdatedAt       time.Time
}
