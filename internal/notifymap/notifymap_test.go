package notifymap

import (
	"testing"

	"scheduleingest.dev/worker/internal/domain"
	"scheduleingest.dev/worker/internal/eventstore"
)

func shift(start, end, customer string) *domain.CanonicalShift {
	return &domain.CanonicalShift{Start: start, End: end, CustomerName: customer}
}

func TestMap_DropsAlreadyNotifiedEvents(t *testing.T) {
	events := []eventstore.PersistedEvent{
		{EventID: "e1", EventType: domain.EventShiftAdded, NewValue: shift("08:00", "12:00", "Alice")},
	}
	already := map[string]struct{}{"e1": {}}

	got := Map("user-1", "2026-07-31", "session-1", events, already, DefaultSummaryThreshold)
	if len(got) != 0 {
		t.Fatalf("expected no notifications, got %d", len(got))
	}
}

func TestMap_OneEventPerChangeBelowThreshold(t *testing.T) {
	events := []eventstore.PersistedEvent{
		{EventID: "e1", EventType: domain.EventShiftAdded, NewValue: shift("08:00", "12:00", "Alice")},
		{EventID: "e2", EventType: domain.EventShiftRemoved, OldValue: shift("13:00", "15:00", "Bob")},
	}

	got := Map("user-1", "2026-07-31", "session-1", events, nil, 3)
	if len(got) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(got))
	}
	for _, n := range got {
		if n.Type != domain.NotificationEvent {
			t.Fatalf("expected event type, got %s", n.Type)
		}
		if len(n.EventIDs) != 1 {
			t.Fatalf("expected exactly one event id, got %v", n.EventIDs)
		}
	}
}

func TestMap_SummaryWhenAtThreshold(t *testing.T) {
	events := []eventstore.PersistedEvent{
		{EventID: "e1", EventType: domain.EventShiftAdded, NewValue: shift("08:00", "12:00", "Alice")},
		{EventID: "e2", EventType: domain.EventShiftAdded, NewValue: shift("09:00", "11:00", "Bob")},
		{EventID: "e3", EventType: domain.EventShiftRemoved, OldValue: shift("13:00", "15:00", "Carl")},
	}

	got := Map("user-1", "2026-07-31", "session-1", events, nil, 3)
	if len(got) != 1 {
		t.Fatalf("expected 1 summary notification, got %d", len(got))
	}
	if got[0].Type != domain.NotificationSummary {
		t.Fatalf("expected summary type, got %s", got[0].Type)
	}
	if len(got[0].EventIDs) != 3 {
		t.Fatalf("expected all 3 event ids in summary, got %v", got[0].EventIDs)
	}
}

func TestMap_TimeChangedMessageVariants(t *testing.T) {
	startOnly := eventstore.PersistedEvent{
		EventType: domain.EventShiftTimeChanged,
		OldValue:  shift("08:00", "12:00", "Alice"),
		NewValue:  shift("08:30", "12:00", "Alice"),
	}
	msg := messageFor("2026-07-31", startOnly)
	want := "2026-07-31: Alice moved 08:00 → 08:30"
	if msg != want {
		t.Fatalf("start-only message = %q, want %q", msg, want)
	}

	endOnly := eventstore.PersistedEvent{
		EventType: domain.EventShiftTimeChanged,
		OldValue:  shift("08:00", "12:00", "Alice"),
		NewValue:  shift("08:00", "12:30", "Alice"),
	}
	msg = messageFor("2026-07-31", endOnly)
	want = "2026-07-31: Alice ends 12:00 → 12:30"
	if msg != want {
		t.Fatalf("end-only message = %q, want %q", msg, want)
	}

	both := eventstore.PersistedEvent{
		EventType: domain.EventShiftTimeChanged,
		OldValue:  shift("08:00", "12:00", "Alice"),
		NewValue:  shift("09:00", "13:00", "Alice"),
	}
	msg = messageFor("2026-07-31", both)
	want = "2026-07-31: Alice 08:00-12:00 → 09:00-13:00"
	if msg != want {
		t.Fatalf("both-changed message = %q, want %q", msg, want)
	}
}

func TestMap_NotificationIDDeterministic(t *testing.T) {
	id1 := notificationID("user-1", "2026-07-31", "session-1", "event", []string{"b", "a"})
	id2 := notificationID("user-1", "2026-07-31", "session-1", "event", []string{"a", "b"})
	if id1 != id2 {
		t.Fatalf("notification id should be order-independent over event ids: %q vs %q", id1, id2)
	}

	id3 := notificationID("user-1", "2026-07-31", "session-1", "event", []string{"a", "c"})
	if id1 == id3 {
		t.Fatalf("different event ids should not collide")
	}
}
