package domain

import "time"

// EventType is the closed, tagged sum type of semantic schedule changes
// (§3, §9 "polymorphism via tagged variants").
type EventType string

const (
	EventShiftAdded        EventType = "shift_added"
	EventShiftRemoved      EventType = "shift_removed"
	EventShiftTimeChanged  EventType = "shift_time_changed"
	EventShiftRelocated    EventType = "shift_relocated"
	EventShiftRetitled     EventType = "shift_retitled"
	EventShiftReclassified EventType = "shift_reclassified"
)

// ScheduleEvent is an immutable semantic change record (§3, §4.3).
//
// OldValue is nil for shift_added, NewValue is nil for shift_removed;
// both are populated for every other event type.
type ScheduleEvent struct {
	EventID      string
	UserID       string
	ScheduleDate string
	EventType    EventType

	LocationFingerprint string
	CustomerFingerprint string

	OldValue *CanonicalShift
	NewValue *CanonicalShift

	OldValueHash string
	NewValueHash string

	DetectedAt      time.Time
	SourceSessionID string
}

// NullValueHash is the fixed sentinel hash used in place of a real
// old/new-value hash when that side of the event is absent (§4.4).
const NullValueHash = "0000000000000000000000000000000000000000000000000000000000000000"

// NotificationStatus is the outbound-message delivery state (§3). Only
// "pending" is ever written by this worker; "sent"/"failed" transitions
// belong to the downstream delivery actor.
type NotificationStatus string

const (
	NotificationPending NotificationStatus = "pending"
	NotificationSent    NotificationStatus = "sent"
	NotificationFailed  NotificationStatus = "failed"
)

// NotificationType distinguishes a single-event message from a
// storm-suppressed summary (§4.5).
type NotificationType string

const (
	NotificationEvent   NotificationType = "event"
	NotificationSummary NotificationType = "summary"
)

// Notification is an outbound human-facing message (§3).
type Notification struct {
	NotificationID   string
	UserID           string
	ScheduleDate     string
	SourceSessionID  string
	Status           NotificationStatus
	NotificationType NotificationType
	Message          string
	EventIDs         []string
	CreatedAt        time.Time
	SentAt           *time.Time
}
