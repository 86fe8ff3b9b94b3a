package sqlc

import (
	"time"

	"github.com/jackc/pgx/v5/pgtype"
)

// Session mirrors a capture_session row.
type Session struct {
	ID        string
	UserID    string
	State     string
	CreatedAt time.Time
	Error     pgtype.Text
	LockedAt  pgtype.Timestamptz
	LockedBy  pgtype.Text
}

// Image mirrors a capture_image row.
type Image struct {
	ID                string
	SessionID         string
	Sequence          int32
	R2Key             string
	TelegramMessageID pgtype.Text
	CreatedAt         time.Time
}

// VersionRow mirrors the columns of schedule_version this repository
// reads back.
type VersionRow struct {
	Version     int32
	PayloadHash string
}

// NotificationRow mirrors a schedule_notification row.
type NotificationRow struct {
	NotificationID   string
	UserID           string
	ScheduleDate     string
	SourceSessionID  string
	NotificationType string
	Message          string
	EventIDs         []string
	Status           string
	CreatedAt        time.Time
}
