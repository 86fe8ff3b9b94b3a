// Package notifymap implements the Notification Mapper (C5): translating
// persisted events into human-facing sentences, with storm suppression
// for sessions that touch many shifts at once (spec §4.5).
package notifymap

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"scheduleingest.dev/worker/internal/domain"
	"scheduleingest.dev/worker/internal/eventstore"
)

// DefaultSummaryThreshold is the minimum remaining-event count at which
// a summary notification replaces one-per-event notifications (§4.5).
const DefaultSummaryThreshold = 3

// Notification is the mapper's pure output, ready for C6 to persist.
type Notification struct {
	NotificationID string
	Type           domain.NotificationType
	Message        string
	EventIDs       []string
}

// Map implements §4.5: drop already-notified events, then either emit
// one notification per remaining event or, once the remaining count
// reaches summaryThreshold, a single summary notification.
func Map(userID, scheduleDate, sourceSessionID string, events []eventstore.PersistedEvent, alreadyNotified map[string]struct{}, summaryThreshold int) []Notification {
	if summaryThreshold <= 0 {
		summaryThreshold = DefaultSummaryThreshold
	}

	remaining := make([]eventstore.PersistedEvent, 0, len(events))
	for _, ev := range events {
		if _, skip := alreadyNotified[ev.EventID]; skip {
			continue
		}
		remaining = append(remaining, ev)
	}
	if len(remaining) == 0 {
		return nil
	}

	if len(remaining) >= summaryThreshold {
		return []Notification{buildSummary(userID, scheduleDate, sourceSessionID, remaining)}
	}

	out := make([]Notification, 0, len(remaining))
	for _, ev := range remaining {
		msg := messageFor(scheduleDate, ev)
		out = append(out, Notification{
			NotificationID: notificationID(userID, scheduleDate, sourceSessionID, string(ev.EventType), []string{ev.EventID}),
			Type:           domain.NotificationEvent,
			Message:        msg,
			EventIDs:       []string{ev.EventID},
		})
	}
	return out
}

func buildSummary(userID, scheduleDate, sourceSessionID string, events []eventstore.PersistedEvent) Notification {
	counts := make(map[domain.EventType]int)
	eventIDs := make([]string, 0, len(events))
	for _, ev := range events {
		counts[ev.EventType]++
		eventIDs = append(eventIDs, ev.EventID)
	}

	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, string(t))
	}
	sort.Strings(types)

	parts := make([]string, 0, len(types))
	for _, t := range types {
		parts = append(parts, fmt.Sprintf("%d %s", counts[domain.EventType(t)], t))
	}

	sortedIDs := append([]string(nil), eventIDs...)
	sort.Strings(sortedIDs)

	msg := fmt.Sprintf("%s: %d changes (%s)", scheduleDate, len(events), strings.Join(parts, ", "))
	return Notification{
		NotificationID: notificationID(userID, scheduleDate, sourceSessionID, "summary", sortedIDs),
		Type:           domain.NotificationSummary,
		Message:        msg,
		EventIDs:       sortedIDs,
	}
}

// messageFor renders one event's sentence from canonical fields only
// (§4.5's exact per-type wording).
func messageFor(scheduleDate string, ev eventstore.PersistedEvent) string {
	switch ev.EventType {
	case domain.EventShiftTimeChanged:
		return timeChangedMessage(scheduleDate, ev.OldValue, ev.NewValue)
	case domain.EventShiftAdded:
		return fmt.Sprintf("%s: %s added %s-%s", scheduleDate, customerOf(ev.NewValue), ev.NewValue.Start, ev.NewValue.End)
	case domain.EventShiftRemoved:
		return fmt.Sprintf("%s: %s removed %s-%s", scheduleDate, customerOf(ev.OldValue), ev.OldValue.Start, ev.OldValue.End)
	case domain.EventShiftRelocated:
		return fmt.Sprintf("%s: %s relocated %s → %s", scheduleDate, customerOf(ev.NewValue), addressOf(ev.OldValue), addressOf(ev.NewValue))
	case domain.EventShiftRetitled:
		return fmt.Sprintf("%s: %s renamed %s → %s", scheduleDate, addressOf(ev.NewValue), nameOf(ev.OldValue), nameOf(ev.NewValue))
	case domain.EventShiftReclassified:
		return fmt.Sprintf("%s: %s reclassified %s → %s", scheduleDate, customerOf(ev.NewValue), ev.OldValue.ShiftType, ev.NewValue.ShiftType)
	default:
		return fmt.Sprintf("%s: %s changed", scheduleDate, customerOf(ev.NewValue))
	}
}

func timeChangedMessage(scheduleDate string, old, new_ *domain.CanonicalShift) string {
	startChanged := old.Start != new_.Start
	endChanged := old.End != new_.End
	customer := customerOf(new_)
	switch {
	case startChanged && !endChanged:
		return fmt.Sprintf("%s: %s moved %s → %s", scheduleDate, customer, old.Start, new_.Start)
	case endChanged && !startChanged:
		return fmt.Sprintf("%s: %s ends %s → %s", scheduleDate, customer, old.End, new_.End)
	default:
		return fmt.Sprintf("%s: %s %s-%s → %s-%s", scheduleDate, customer, old.Start, old.End, new_.Start, new_.End)
	}
}

func customerOf(s *domain.CanonicalShift) string {
	if s == nil || s.CustomerName == "" {
		return "shift"
	}
	return s.CustomerName
}

func nameOf(s *domain.CanonicalShift) string {
	if s == nil {
		return ""
	}
	return s.CustomerName
}

func addressOf(s *domain.CanonicalShift) string {
	if s == nil {
		return ""
	}
	parts := make([]string, 0, 2)
	if s.Street != "" || s.StreetNumber != "" {
		parts = append(parts, strings.TrimSpace(s.Street+" "+s.StreetNumber))
	}
	if s.City != "" {
		parts = append(parts, s.City)
	}
	return strings.Join(parts, ", ")
}

// notificationID is the hex SHA-256 of user_id | schedule_date |
// source_session_id | type | sorted_event_ids, giving a deterministic
// primary key (§4.5).
func notificationID(userID, scheduleDate, sourceSessionID, notifType string, eventIDs []string) string {
	sorted := append([]string(nil), eventIDs...)
	sort.Strings(sorted)

	h := sha256.New()
	h.Write([]byte(userID))
	h.Write([]byte("|"))
	h.Write([]byte(scheduleDate))
	h.Write([]byte("|"))
	h.Write([]byte(sourceSessionID))
	h.Write([]byte("|"))
	h.Write([]byte(notifType))
	h.Write([]byte("|"))
	h.Write([]byte(strings.Join(sorted, ",")))
	return hex.EncodeToString(h.Sum(nil))
}
