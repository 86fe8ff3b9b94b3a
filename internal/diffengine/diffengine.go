// Package diffengine implements the diff engine (C3): comparing a prior
// day snapshot against a newly aggregated day and producing an ordered
// list of typed semantic events.
package diffengine

import (
	"sort"

	"scheduleingest.dev/worker/internal/domain"
	"scheduleingest.dev/worker/internal/pkg/apperr"
	"scheduleingest.dev/worker/internal/timeutil"
)

// Event is the diff engine's pure output: a typed change with no
// database identity attached yet. The event store (C4) enriches this
// with user_id, source_session_id, detected_at, and the dedupe hashes.
type Event struct {
	Type                domain.EventType
	LocationFingerprint string
	CustomerFingerprint string
	OldValue            *domain.CanonicalShift
	NewValue            *domain.CanonicalShift
}

// Diff compares prior (possibly empty) against next and returns the
// deterministically ordered events (§4.3).
func Diff(prior, next []domain.CanonicalShift) ([]Event, error) {
	priorGroups := groupByIdentity(prior)
	nextGroups := groupByIdentity(next)

	keys := make(map[domain.IdentityKey]struct{})
	for k := range priorGroups {
		keys[k] = struct{}{}
	}
	for k := range nextGroups {
		keys[k] = struct{}{}
	}

	var events []Event
	for key := range keys {
		p := priorGroups[key]
		n := nextGroups[key]

		pairs, unpairedP, unpairedN, err := greedyMatch(p, n)
		if err != nil {
			return nil, err
		}

		for _, pair := range pairs {
			ev, ok := classifyPair(key, p[pair[0]], n[pair[1]])
			if ok {
				events = append(events, ev)
			}
		}
		for _, idx := range unpairedN {
			shift := n[idx]
			events = append(events, Event{
				Type:                domain.EventShiftAdded,
				LocationFingerprint: key.LocationFingerprint,
				CustomerFingerprint: key.CustomerFingerprint,
				NewValue:            &shift,
			})
		}
		for _, idx := range unpairedP {
			shift := p[idx]
			events = append(events, Event{
				Type:                domain.EventShiftRemoved,
				LocationFingerprint: key.LocationFingerprint,
				CustomerFingerprint: key.CustomerFingerprint,
				OldValue:            &shift,
			})
		}
	}

	sort.SliceStable(events, func(i, j int) bool {
		return eventLess(events[i], events[j])
	})

	return events, nil
}

func groupByIdentity(shifts []domain.CanonicalShift) map[domain.IdentityKey][]domain.CanonicalShift {
	out := make(map[domain.IdentityKey][]domain.CanonicalShift)
	for _, s := range shifts {
		key := s.IdentityKey()
		out[key] = append(out[key], s)
	}
	return out
}

// classifyPair implements §4.3 step 2's fixed check order. Returns
// ok=false when the pair is a pure reorder of an otherwise-identical
// shift, which emits no event (§4.3 step 4).
func classifyPair(key domain.IdentityKey, p, n domain.CanonicalShift) (Event, bool) {
	base := Event{
		LocationFingerprint: key.LocationFingerprint,
		CustomerFingerprint: key.CustomerFingerprint,
		OldValue:            &p,
		NewValue:            &n,
	}

	if p.Start != n.Start || p.End != n.End {
		base.Type = domain.EventShiftTimeChanged
		return base, true
	}
	if p.ShiftType != n.ShiftType {
		base.Type = domain.EventShiftReclassified
		return base, true
	}
	if p.Street != n.Street || p.StreetNumber != n.StreetNumber || p.PostalCode != n.PostalCode {
		base.Type = domain.EventShiftRelocated
		return base, true
	}
	if p.CustomerName != n.CustomerName {
		base.Type = domain.EventShiftRetitled
		return base, true
	}
	return Event{}, false
}

// eventLess implements §4.3 step 5's deterministic emission order:
// (event_type, location_fingerprint, new_or_old.start, new_or_old.end).
func eventLess(a, b Event) bool {
	if a.Type != b.Type {
		return a.Type < b.Type
	}
	if a.LocationFingerprint != b.LocationFingerprint {
		return a.LocationFingerprint < b.LocationFingerprint
	}
	aRef, bRef := reference(a), reference(b)
	if aRef.Start != bRef.Start {
		return aRef.Start < bRef.Start
	}
	return aRef.End < bRef.End
}

// reference returns NewValue if present, else OldValue, per §4.3 step 5's
// "new_or_old" ordering key.
func reference(e Event) domain.CanonicalShift {
	if e.NewValue != nil {
		return *e.NewValue
	}
	if e.OldValue != nil {
		return *e.OldValue
	}
	return domain.CanonicalShift{}
}

// greedyMatch pairs prior[i] with next[j] by repeatedly picking the
// globally cheapest remaining (i, j) cost under circular time distance,
// until one side is exhausted (§4.3 step 1).
func greedyMatch(prior, next []domain.CanonicalShift) (pairs [][2]int, unpairedPrior, unpairedNext []int, err error) {
	m, n := len(prior), len(next)
	if m == 0 {
		unpairedNext = rangeInts(n)
		return nil, nil, unpairedNext, nil
	}
	if n == 0 {
		unpairedPrior = rangeInts(m)
		return nil, unpairedPrior, nil, nil
	}

	cost := make([][]int, m)
	for i := range cost {
		cost[i] = make([]int, n)
		for j := range cost[i] {
			d, err := pairCost(prior[i], next[j])
			if err != nil {
				return nil, nil, nil, err
			}
			cost[i][j] = d
		}
	}

	usedP := make([]bool, m)
	usedN := make([]bool, n)
	pairCount := m
	if n < pairCount {
		pairCount = n
	}

	for k := 0; k < pairCount; k++ {
		bestI, bestJ, bestCost := -1, -1, -1
		for i := 0; i < m; i++ {
			if usedP[i] {
				continue
			}
			for j := 0; j < n; j++ {
				if usedN[j] {
					continue
				}
				if bestCost == -1 || cost[i][j] < bestCost {
					bestI, bestJ, bestCost = i, j, cost[i][j]
				}
			}
		}
		if bestI == -1 {
			break
		}
		usedP[bestI] = true
		usedN[bestJ] = true
		pairs = append(pairs, [2]int{bestI, bestJ})
	}

	for i := 0; i < m; i++ {
		if !usedP[i] {
			unpairedPrior = append(unpairedPrior, i)
		}
	}
	for j := 0; j < n; j++ {
		if !usedN[j] {
			unpairedNext = append(unpairedNext, j)
		}
	}

	return pairs, unpairedPrior, unpairedNext, nil
}

func pairCost(p, n domain.CanonicalShift) (int, error) {
	pStart, pEnd, err := parseRange(p)
	if err != nil {
		return 0, err
	}
	nStart, nEnd, err := parseRange(n)
	if err != nil {
		return 0, err
	}
	return timeutil.CircularDistance(pStart, nStart) + timeutil.CircularDistance(pEnd, nEnd), nil
}

func parseRange(s domain.CanonicalShift) (start, end int, err error) {
	start, err = timeutil.ParseMinutes(s.Start)
	if err != nil {
		return 0, 0, apperr.Wrap(err, apperr.KindSchemaContract, apperr.StageDiff, "parse shift start for diff")
	}
	end, err = timeutil.ParseMinutes(s.End)
	if err != nil {
		return 0, 0, apperr.Wrap(err, apperr.KindSchemaContract, apperr.StageDiff, "parse shift end for diff")
	}
	return start, end, nil
}

func rangeInts(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
