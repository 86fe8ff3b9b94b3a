package diffengine

import (
	"sort"
	"testing"

	"scheduleingest.dev/worker/internal/domain"
)

func baseShift() domain.CanonicalShift {
	return domain.CanonicalShift{
		Start:               "10:00",
		End:                 "14:00",
		CustomerName:        "Acme AB",
		Street:              "Main",
		StreetNumber:        "5",
		PostalCode:          "12345",
		City:                "Goteborg",
		ShiftType:           domain.ShiftOffice,
		LocationFingerprint: "loc-1",
		CustomerFingerprint: "cust-1",
	}
}

func TestDiff_EmptyPriorEmitsAdded(t *testing.T) {
	events, err := Diff(nil, []domain.CanonicalShift{baseShift()})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventShiftAdded {
		t.Fatalf("events = %+v, want one shift_added", events)
	}
}

func TestDiff_RemovedWhenMissingFromNext(t *testing.T) {
	events, err := Diff([]domain.CanonicalShift{baseShift()}, nil)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventShiftRemoved {
		t.Fatalf("events = %+v, want one shift_removed", events)
	}
}

func TestDiff_TimeChanged(t *testing.T) {
	next := baseShift()
	next.Start = "10:30"
	next.End = "14:30"

	events, err := Diff([]domain.CanonicalShift{baseShift()}, []domain.CanonicalShift{next})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventShiftTimeChanged {
		t.Fatalf("events = %+v, want one shift_time_changed", events)
	}
	if events[0].OldValue.Start != "10:00" || events[0].NewValue.Start != "10:30" {
		t.Errorf("unexpected old/new values: %+v", events[0])
	}
}

func TestDiff_NoChangeEmitsNothing(t *testing.T) {
	events, err := Diff([]domain.CanonicalShift{baseShift()}, []domain.CanonicalShift{baseShift()})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(events) != 0 {
		t.Errorf("events = %+v, want none for identical shifts", events)
	}
}

func TestDiff_ClassificationOrder_TimeWinsOverTypeChange(t *testing.T) {
	next := baseShift()
	next.Start = "11:00"
	next.ShiftType = domain.ShiftHomeVisit

	events, err := Diff([]domain.CanonicalShift{baseShift()}, []domain.CanonicalShift{next})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventShiftTimeChanged {
		t.Fatalf("events = %+v, want time_changed to take priority over reclassified", events)
	}
}

func TestDiff_Reclassified(t *testing.T) {
	next := baseShift()
	next.ShiftType = domain.ShiftHomeVisit

	events, err := Diff([]domain.CanonicalShift{baseShift()}, []domain.CanonicalShift{next})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventShiftReclassified {
		t.Fatalf("events = %+v, want shift_reclassified", events)
	}
}

func TestDiff_Relocated(t *testing.T) {
	next := baseShift()
	next.Street = "Other"

	events, err := Diff([]domain.CanonicalShift{baseShift()}, []domain.CanonicalShift{next})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventShiftRelocated {
		t.Fatalf("events = %+v, want shift_relocated", events)
	}
}

func TestDiff_Retitled(t *testing.T) {
	next := baseShift()
	next.CustomerName = "Acme Corp"

	events, err := Diff([]domain.CanonicalShift{baseShift()}, []domain.CanonicalShift{next})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	if len(events) != 1 || events[0].Type != domain.EventShiftRetitled {
		t.Fatalf("events = %+v, want shift_retitled", events)
	}
}

func TestDiff_GreedyMatchPairsClosestTimes(t *testing.T) {
	p1 := baseShift()
	p2 := baseShift()
	p2.Start, p2.End = "18:00", "22:00"

	n1 := baseShift()
	n1.Start, n1.End = "10:05", "14:05" // close to p1
	n2 := baseShift()
	n2.Start, n2.End = "18:10", "22:10" // close to p2

	events, err := Diff([]domain.CanonicalShift{p1, p2}, []domain.CanonicalShift{n1, n2})
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	for _, e := range events {
		if e.Type != domain.EventShiftTimeChanged {
			t.Fatalf("unexpected event type %v, want all time_changed (minor time moves)", e.Type)
		}
	}
	if len(events) != 2 {
		t.Fatalf("len(events) = %d, want 2", len(events))
	}
}

// applyEvents reconstructs N from P and the diff events, implementing
// apply() from §8's diff-completeness property.
func applyEvents(prior []domain.CanonicalShift, events []Event) []domain.CanonicalShift {
	result := append([]domain.CanonicalShift(nil), prior...)

	removeValue := func(v domain.CanonicalShift) {
		for i, r := range result {
			if r == v {
				result = append(result[:i], result[i+1:]...)
				return
			}
		}
	}

	for _, e := range events {
		switch e.Type {
		case domain.EventShiftAdded:
			result = append(result, *e.NewValue)
		case domain.EventShiftRemoved:
			removeValue(*e.OldValue)
		default:
			removeValue(*e.OldValue)
			result = append(result, *e.NewValue)
		}
	}
	return result
}

func sortShifts(shifts []domain.CanonicalShift) {
	sort.Slice(shifts, func(i, j int) bool {
		if shifts[i].Start != shifts[j].Start {
			return shifts[i].Start < shifts[j].Start
		}
		return shifts[i].LocationFingerprint < shifts[j].LocationFingerprint
	})
}

func TestDiff_ApplyReconstructsNext(t *testing.T) {
	p1 := baseShift()
	p2 := baseShift()
	p2.LocationFingerprint = "loc-2"
	p2.CustomerFingerprint = "cust-2"
	p2.Start, p2.End = "08:00", "09:00"

	n1 := baseShift()
	n1.Start, n1.End = "10:30", "14:30" // time changed
	n3 := baseShift()
	n3.LocationFingerprint = "loc-3"
	n3.CustomerFingerprint = "cust-3"
	n3.Start, n3.End = "16:00", "17:00" // added
	// p2 removed, n3 added, n1 is p1's time-changed successor.

	prior := []domain.CanonicalShift{p1, p2}
	next := []domain.CanonicalShift{n1, n3}

	events, err := Diff(prior, next)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	reconstructed := applyEvents(prior, events)
	sortShifts(reconstructed)
	wantNext := append([]domain.CanonicalShift(nil), next...)
	sortShifts(wantNext)

	if len(reconstructed) != len(wantNext) {
		t.Fatalf("reconstructed = %+v, want %+v", reconstructed, wantNext)
	}
	for i := range wantNext {
		if reconstructed[i] != wantNext[i] {
			t.Errorf("reconstructed[%d] = %+v, want %+v", i, reconstructed[i], wantNext[i])
		}
	}
}

func TestDiff_DeterministicOrdering(t *testing.T) {
	prior := []domain.CanonicalShift{}
	next := make([]domain.CanonicalShift, 0, 5)
	for i := 0; i < 5; i++ {
		s := baseShift()
		s.LocationFingerprint = string(rune('a' + i))
		s.CustomerFingerprint = string(rune('a' + i))
		next = append(next, s)
	}

	first, err := Diff(prior, next)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}
	second, err := Diff(prior, next)
	if err != nil {
		t.Fatalf("Diff() error = %v", err)
	}

	if len(first) != len(second) {
		t.Fatalf("nondeterministic event count")
	}
	for i := range first {
		if first[i].LocationFingerprint != second[i].LocationFingerprint {
			t.Errorf("nondeterministic ordering at index %d", i)
		}
	}
}
