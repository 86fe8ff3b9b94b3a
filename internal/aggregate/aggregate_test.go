package aggregate

import (
	"reflect"
	"sort"
	"testing"

	"scheduleingest.dev/worker/internal/domain"
)

func shift(start, end string) domain.CanonicalShift {
	return domain.CanonicalShift{
		Start:               start,
		End:                 end,
		CustomerName:        "Acme AB",
		Street:              "Main",
		StreetNumber:        "5",
		City:                "Goteborg",
		ShiftType:           domain.ShiftOffice,
		LocationFingerprint: "loc-1",
		CustomerFingerprint: "cust-1",
	}
}

func TestAggregate_MergesWithinTolerance(t *testing.T) {
	screenshots := [][]domain.CanonicalShift{
		{shift("10:00", "14:00")},
		{shift("10:02", "14:05")},
	}

	out, err := Aggregate(screenshots, DefaultToleranceMinutes)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].SourceCount != 2 {
		t.Errorf("SourceCount = %d, want 2", out[0].SourceCount)
	}
	if out[0].End != "14:05" {
		t.Errorf("End = %q, want 14:05", out[0].End)
	}
}

func TestAggregate_DoesNotMergeBeyondTolerance(t *testing.T) {
	screenshots := [][]domain.CanonicalShift{
		{shift("10:00", "14:00")},
		{shift("10:30", "14:30")},
	}

	out, err := Aggregate(screenshots, DefaultToleranceMinutes)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2 (shifts too far apart to merge)", len(out))
	}
}

func TestAggregate_MergesContainedRange(t *testing.T) {
	screenshots := [][]domain.CanonicalShift{
		{shift("09:00", "17:00")},
		{shift("10:00", "14:00")},
	}

	out, err := Aggregate(screenshots, DefaultToleranceMinutes)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 (containment should merge)", len(out))
	}
}

func TestAggregate_SingleScreenshotIsIdentity(t *testing.T) {
	s1 := shift("10:00", "14:00")
	s2 := shift("08:00", "09:00")
	s2.LocationFingerprint = "loc-2"
	s2.CustomerFingerprint = "cust-2"

	out, err := Aggregate([][]domain.CanonicalShift{{s1, s2}}, DefaultToleranceMinutes)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("len(out) = %d, want 2", len(out))
	}
}

func TestAggregate_Idempotent(t *testing.T) {
	screenshots := [][]domain.CanonicalShift{
		{shift("10:00", "14:00")},
		{shift("10:02", "14:01")},
	}

	first, err := Aggregate(screenshots, DefaultToleranceMinutes)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	asShifts := make([]domain.CanonicalShift, len(first))
	for i, a := range first {
		asShifts[i] = a.CanonicalShift
	}

	second, err := Aggregate([][]domain.CanonicalShift{asShifts}, DefaultToleranceMinutes)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}

	sortAggregated(first)
	sortAggregated(second)
	firstShifts := canonicalShiftsOf(first)
	secondShifts := canonicalShiftsOf(second)
	if !reflect.DeepEqual(firstShifts, secondShifts) {
		t.Errorf("aggregate(aggregate(S)) != aggregate(S): %+v vs %+v", firstShifts, secondShifts)
	}
}

func sortAggregated(shifts []domain.AggregatedShift) {
	sort.Slice(shifts, func(i, j int) bool {
		return shifts[i].LocationFingerprint < shifts[j].LocationFingerprint
	})
}

func canonicalShiftsOf(shifts []domain.AggregatedShift) []domain.CanonicalShift {
	out := make([]domain.CanonicalShift, len(shifts))
	for i, s := range shifts {
		out[i] = s.CanonicalShift
	}
	return out
}

func TestAggregate_CrossMidnightMerge(t *testing.T) {
	screenshots := [][]domain.CanonicalShift{
		{shift("23:50", "23:59")},
		{shift("00:05", "00:10")},
	}

	out, err := Aggregate(screenshots, 20)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1 (cross-midnight shifts within tolerance should merge)", len(out))
	}
}

func TestAggregate_MajorityShiftTypeTieBreak(t *testing.T) {
	a := shift("10:00", "14:00")
	a.ShiftType = domain.ShiftHomeVisit
	b := shift("10:01", "14:01")
	b.ShiftType = domain.ShiftOffice

	out, err := Aggregate([][]domain.CanonicalShift{{a}, {b}}, DefaultToleranceMinutes)
	if err != nil {
		t.Fatalf("Aggregate() error = %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].ShiftType != domain.ShiftOffice {
		t.Errorf("ShiftType = %v, want OFFICE (ties broken by enum order)", out[0].ShiftType)
	}
}
