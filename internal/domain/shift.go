package domain

// ShiftType is the closed classification of a canonical shift's location
// kind (§3).
type ShiftType string

const (
	ShiftSchool    ShiftType = "SCHOOL"
	ShiftOffice    ShiftType = "OFFICE"
	ShiftHomeVisit ShiftType = "HOME_VISIT"
	ShiftUnknown   ShiftType = "UNKNOWN"
)

// shiftTypeRank gives the tie-break order SCHOOL < OFFICE < HOME_VISIT <
// UNKNOWN used by the aggregator's majority vote (§4.2).
var shiftTypeRank = map[ShiftType]int{
	ShiftSchool:    0,
	ShiftOffice:    1,
	ShiftHomeVisit: 2,
	ShiftUnknown:   3,
}

// Rank returns this type's position in the fixed tie-break order.
func (s ShiftType) Rank() int {
	if r, ok := shiftTypeRank[s]; ok {
		return r
	}
	return shiftTypeRank[ShiftUnknown]
}

// RawEntry is the layout parser's output for one image: a time-and-text
// record with no semantic interpretation applied yet (§3, §6).
type RawEntry struct {
	Start    string // HH:MM or HH.MM, or "" if absent
	End      string
	Title    string
	Location string
	Address  string

	// ScreenshotIndex and Position give the provenance ordering used for
	// deterministic tie-breaks during aggregation (§4.2 step 1).
	ScreenshotIndex int
	Position        int
}

// CanonicalShift is the semantically normalized, identity-bearing form of
// one work shift (§3). Field order here is documentation only — the wire
// order used for hashing lives in internal/canonical.
type CanonicalShift struct {
	Start string // HH:MM, 24h zero-padded
	End   string

	CustomerName string
	Street       string
	StreetNumber string
	PostalCode   string
	PostalArea   string
	City         string

	ShiftType ShiftType

	LocationFingerprint string
	CustomerFingerprint string
}

// IdentityKey is the (location_fingerprint, customer_fingerprint) pair the
// diff engine groups shifts by (§4.3 step 1).
func (c CanonicalShift) IdentityKey() IdentityKey {
	return IdentityKey{
		LocationFingerprint: c.LocationFingerprint,
		CustomerFingerprint: c.CustomerFingerprint,
	}
}

// IdentityKey is the diff engine's grouping key.
type IdentityKey struct {
	LocationFingerprint string
	CustomerFingerprint string
}

// AggregatedShift is a CanonicalShift resulting from merging one or more
// per-screenshot observations of the same shift (§3, §4.2).
type AggregatedShift struct {
	CanonicalShift
	SourceCount int
}

// DayCanonicalPayload is the deterministic, hashable representation of one
// user's day (§3, §4.1).
type DayCanonicalPayload struct {
	ScheduleDate string // ISO YYYY-MM-DD
	Shifts       []CanonicalShift
}
