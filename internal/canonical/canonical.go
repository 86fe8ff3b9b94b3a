// Package canonical implements the canonicalizer (C1): turning a set of
// aggregated shifts into a deterministic, hash-stable day payload.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"scheduleingest.dev/worker/internal/domain"
	"scheduleingest.dev/worker/internal/pkg/apperr"
)

var (
	timeColon = regexp.MustCompile(`^(\d{1,2}):(\d{2})$`)
	timeDot   = regexp.MustCompile(`^(\d{1,2})\.(\d{2})$`)
	isoDate   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

	foldCaser = cases.Fold()
)

// Result is the canonicalizer's output: the payload in its fixed
// deterministic order, its serialized bytes, and their hash.
type Result struct {
	Payload     domain.DayCanonicalPayload
	PayloadJSON []byte
	PayloadHash string
}

// Canonicalize normalizes shifts into the day's canonical payload and
// computes its hash (§4.1). Pure, total, deterministic: the same input
// set, in any order, always yields the same Result.PayloadHash.
func Canonicalize(scheduleDate string, shifts []domain.AggregatedShift) (Result, error) {
	if !isoDate.MatchString(scheduleDate) {
		return Result{}, apperr.New(apperr.KindCanonicalization, apperr.StageDiff,
			fmt.Sprintf("schedule_date %q is not an ISO date", scheduleDate))
	}

	normalized := make([]domain.CanonicalShift, 0, len(shifts))
	for _, s := range shifts {
		n, err := normalizeShift(s.CanonicalShift)
		if err != nil {
			return Result{}, err
		}
		normalized = append(normalized, n)
	}

	sort.Slice(normalized, func(i, j int) bool {
		return shiftLess(normalized[i], normalized[j])
	})

	payload := domain.DayCanonicalPayload{
		ScheduleDate: scheduleDate,
		Shifts:       normalized,
	}

	payloadJSON, err := marshalPayload(payload)
	if err != nil {
		return Result{}, apperr.Wrap(err, apperr.KindCanonicalization, apperr.StageDiff, "serialize canonical payload")
	}

	sum := sha256.Sum256(payloadJSON)

	return Result{
		Payload:     payload,
		PayloadJSON: payloadJSON,
		PayloadHash: hex.EncodeToString(sum[:]),
	}, nil
}

// shiftLess implements the day's shift ordering: lexicographic by
// (start, end, location_fingerprint, customer_fingerprint) (§4.1).
func shiftLess(a, b domain.CanonicalShift) bool {
	if a.Start != b.Start {
		return a.Start < b.Start
	}
	if a.End != b.End {
		return a.End < b.End
	}
	if a.LocationFingerprint != b.LocationFingerprint {
		return a.LocationFingerprint < b.LocationFingerprint
	}
	return a.CustomerFingerprint < b.CustomerFingerprint
}

func normalizeShift(s domain.CanonicalShift) (domain.CanonicalShift, error) {
	start, err := normalizeTime(s.Start)
	if err != nil {
		return domain.CanonicalShift{}, err
	}
	end, err := normalizeTime(s.End)
	if err != nil {
		return domain.CanonicalShift{}, err
	}
	if start == "" && end == "" {
		return domain.CanonicalShift{}, apperr.New(apperr.KindCanonicalization, apperr.StageDiff,
			"shift has both start and end absent")
	}

	return domain.CanonicalShift{
		Start:               start,
		End:                 end,
		CustomerName:        normalizeIdentityString(s.CustomerName),
		Street:              collapseWhitespace(s.Street),
		StreetNumber:        collapseWhitespace(s.StreetNumber),
		PostalCode:          collapseWhitespace(s.PostalCode),
		PostalArea:          collapseWhitespace(s.PostalArea),
		City:                collapseWhitespace(s.City),
		ShiftType:           s.ShiftType,
		LocationFingerprint: s.LocationFingerprint,
		CustomerFingerprint: s.CustomerFingerprint,
	}, nil
}

// normalizeTime accepts HH:MM or HH.MM and emits zero-padded 24h HH:MM.
// An empty input is left empty (the endpoint is encoded as JSON null);
// any other shape is rejected.
func normalizeTime(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}

	var hh, mm string
	if m := timeColon.FindStringSubmatch(raw); m != nil {
		hh, mm = m[1], m[2]
	} else if m := timeDot.FindStringSubmatch(raw); m != nil {
		hh, mm = m[1], m[2]
	} else {
		return "", apperr.New(apperr.KindCanonicalization, apperr.StageDiff,
			fmt.Sprintf("invalid time %q", raw))
	}

	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return "", apperr.New(apperr.KindCanonicalization, apperr.StageDiff,
			fmt.Sprintf("invalid time %q: hour out of range", raw))
	}
	min, err := strconv.Atoi(mm)
	if err != nil || min < 0 || min > 59 {
		return "", apperr.New(apperr.KindCanonicalization, apperr.StageDiff,
			fmt.Sprintf("invalid time %q: minute out of range", raw))
	}

	return fmt.Sprintf("%02d:%02d", h, min), nil
}

// collapseWhitespace trims and folds internal runs of whitespace to a
// single space (§4.1 "Strings").
func collapseWhitespace(s string) string {
	fields := strings.Fields(s)
	return strings.Join(fields, " ")
}

// normalizeIdentityString applies Unicode NFC normalization and
// case-folding to customer/title fields, as the normalizer contract in
// §6 requires for identity-bearing text.
func normalizeIdentityString(s string) string {
	s = collapseWhitespace(s)
	s = norm.NFC.String(s)
	return foldCaser.String(s)
}

// marshalPayload serializes a DayCanonicalPayload with fixed key order,
// absent endpoints as JSON null, and no insignificant whitespace (§4.1).
func marshalPayload(p domain.DayCanonicalPayload) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')

	dateJSON, err := json.Marshal(p.ScheduleDate)
	if err != nil {
		return nil, err
	}
	b.WriteString(`"schedule_date":`)
	b.Write(dateJSON)
	b.WriteString(`,"shifts":[`)

	for i, s := range p.Shifts {
		if i > 0 {
			b.WriteByte(',')
		}
		shiftJSON, err := marshalShift(s)
		if err != nil {
			return nil, err
		}
		b.Write(shiftJSON)
	}

	b.WriteString(`]}`)
	return []byte(b.String()), nil
}

func marshalShift(s domain.CanonicalShift) ([]byte, error) {
	var b strings.Builder
	b.WriteByte('{')

	fields := []struct {
		key   string
		value string
	}{
		{"start", s.Start},
		{"end", s.End},
		{"customer_name", s.CustomerName},
		{"street", s.Street},
		{"street_number", s.StreetNumber},
		{"postal_code", s.PostalCode},
		{"postal_area", s.PostalArea},
		{"city", s.City},
		{"shift_type", string(s.ShiftType)},
		{"location_fingerprint", s.LocationFingerprint},
		{"customer_fingerprint", s.CustomerFingerprint},
	}

	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		keyJSON, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		b.Write(keyJSON)
		b.WriteByte(':')

		if f.value == "" {
			b.WriteString("null")
			continue
		}
		valJSON, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		b.Write(valJSON)
	}

	b.WriteByte('}')
	return []byte(b.String()), nil
}

// HashCanonicalShift computes the SHA-256 hash used for event dedupe
// (old_value_hash/new_value_hash, §4.4) over a single canonical shift's
// own JSON encoding, or returns the fixed sentinel for a nil shift.
func HashCanonicalShift(s *domain.CanonicalShift) (string, error) {
	if s == nil {
		return domain.NullValueHash, nil
	}
	b, err := marshalShift(*s)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
