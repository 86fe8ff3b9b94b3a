// Package aggregate implements the aggregator (C2): merging the
// per-screenshot canonical shift lists of one session into a single
// canonical day.
package aggregate

import (
	"math"
	"sort"

	"scheduleingest.dev/worker/internal/domain"
	"scheduleingest.dev/worker/internal/pkg/apperr"
	"scheduleingest.dev/worker/internal/timeutil"
)

// DefaultToleranceMinutes is TIME_TOLERANCE_MIN's default (§4.2).
const DefaultToleranceMinutes = 5

// candidate is one flattened per-screenshot shift, carrying the
// provenance ordering used for deterministic tie-breaks (§4.2 step 1).
type candidate struct {
	shift           domain.CanonicalShift
	screenshotIndex int
	position        int
}

func (c candidate) less(o candidate) bool {
	if c.screenshotIndex != o.screenshotIndex {
		return c.screenshotIndex < o.screenshotIndex
	}
	return c.position < o.position
}

// Aggregate merges per-screenshot canonical shift lists into one day's
// aggregated shifts (§4.2). screenshots[i] is the i-th screenshot's
// parsed-and-normalized shift list, in on-image order.
func Aggregate(screenshots [][]domain.CanonicalShift, toleranceMinutes int) ([]domain.AggregatedShift, error) {
	candidates, err := flatten(screenshots)
	if err != nil {
		return nil, err
	}

	groups := make(map[string][]candidate)
	var groupOrder []string
	for _, c := range candidates {
		key := c.shift.LocationFingerprint
		if _, ok := groups[key]; !ok {
			groupOrder = append(groupOrder, key)
		}
		groups[key] = append(groups[key], c)
	}

	var out []domain.AggregatedShift
	for _, key := range groupOrder {
		members := groups[key]
		components, err := connectedComponents(members, toleranceMinutes)
		if err != nil {
			return nil, err
		}
		for _, component := range components {
			merged, err := mergeComponent(component)
			if err != nil {
				return nil, err
			}
			out = append(out, merged)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
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
	})

	return out, nil
}

func flatten(screenshots [][]domain.CanonicalShift) ([]candidate, error) {
	var out []candidate
	for si, shifts := range screenshots {
		for pos, s := range shifts {
			out = append(out, candidate{shift: s, screenshotIndex: si, position: pos})
		}
	}
	return out, nil
}

// connectedComponents groups candidates that are transitively
// merge-eligible under the time-distance-or-containment relation
// (§4.2 steps 2-3).
func connectedComponents(members []candidate, toleranceMinutes int) ([][]candidate, error) {
	n := len(members)
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			eligible, err := mergeEligible(members[i].shift, members[j].shift, toleranceMinutes)
			if err != nil {
				return nil, err
			}
			if eligible {
				union(i, j)
			}
		}
	}

	byRoot := make(map[int][]candidate)
	var roots []int
	for i := 0; i < n; i++ {
		r := find(i)
		if _, ok := byRoot[r]; !ok {
			roots = append(roots, r)
		}
		byRoot[r] = append(byRoot[r], members[i])
	}

	sort.Ints(roots)
	components := make([][]candidate, 0, len(roots))
	for _, r := range roots {
		components = append(components, byRoot[r])
	}
	return components, nil
}

// mergeEligible implements §4.2 step 2's "either (a) ... or (b) ..." test.
func mergeEligible(a, b domain.CanonicalShift, toleranceMinutes int) (bool, error) {
	aStart, aEnd, err := parseRange(a)
	if err != nil {
		return false, err
	}
	bStart, bEnd, err := parseRange(b)
	if err != nil {
		return false, err
	}

	// Both endpoints must lie within tolerance: the larger of the start and
	// end distances is compared, not their sum.
	dist := timeutil.CircularDistance(aStart, bStart)
	if endDist := timeutil.CircularDistance(aEnd, bEnd); endDist > dist {
		dist = endDist
	}
	if dist <= toleranceMinutes {
		return true, nil
	}

	if timeutil.RangeContains(aStart, aEnd, bStart, bEnd) || timeutil.RangeContains(bStart, bEnd, aStart, aEnd) {
		return true, nil
	}
	return false, nil
}

func parseRange(s domain.CanonicalShift) (start, end int, err error) {
	start, err = timeutil.ParseMinutes(s.Start)
	if err != nil {
		return 0, 0, apperr.Wrap(err, apperr.KindAggregation, apperr.StageDiff, "parse shift start")
	}
	end, err = timeutil.ParseMinutes(s.End)
	if err != nil {
		return 0, 0, apperr.Wrap(err, apperr.KindAggregation, apperr.StageDiff, "parse shift end")
	}
	return start, end, nil
}

// mergeComponent combines one connected component into a single
// aggregated shift, per the field-merge rules of §4.2 step 4.
func mergeComponent(component []candidate) (domain.AggregatedShift, error) {
	start, err := representativeTime(component, func(s domain.CanonicalShift) string { return s.Start })
	if err != nil {
		return domain.AggregatedShift{}, err
	}
	end, err := representativeTime(component, func(s domain.CanonicalShift) string { return s.End })
	if err != nil {
		return domain.AggregatedShift{}, err
	}

	merged := domain.CanonicalShift{
		Start:               start,
		End:                 end,
		CustomerName:        longestNonEmpty(component, func(s domain.CanonicalShift) string { return s.CustomerName }),
		Street:              longestNonEmpty(component, func(s domain.CanonicalShift) string { return s.Street }),
		StreetNumber:        longestNonEmpty(component, func(s domain.CanonicalShift) string { return s.StreetNumber }),
		PostalCode:          longestNonEmpty(component, func(s domain.CanonicalShift) string { return s.PostalCode }),
		PostalArea:          longestNonEmpty(component, func(s domain.CanonicalShift) string { return s.PostalArea }),
		City:                longestNonEmpty(component, func(s domain.CanonicalShift) string { return s.City }),
		ShiftType:           majorityShiftType(component),
		LocationFingerprint: component[0].shift.LocationFingerprint,
		CustomerFingerprint: smallestCustomerFingerprint(component),
	}

	return domain.AggregatedShift{
		CanonicalShift: merged,
		SourceCount:    len(component),
	}, nil
}

// representativeTime picks, among the component's observations of one
// endpoint, the value belonging to the observation whose time minimizes
// circular distance to the component's circular-mean centroid, breaking
// ties by (screenshot_index, position) ascending (§4.2 step 4).
func representativeTime(component []candidate, field func(domain.CanonicalShift) string) (string, error) {
	samples := make([]timeSample, 0, len(component))
	for _, c := range component {
		m, err := timeutil.ParseMinutes(field(c.shift))
		if err != nil {
			return "", apperr.Wrap(err, apperr.KindAggregation, apperr.StageDiff, "parse representative time")
		}
		samples = append(samples, timeSample{cand: c, minutes: m})
	}

	minutes := make([]int, len(samples))
	for i, s := range samples {
		minutes[i] = s.minutes
	}
	centroid := circularMean(minutes)

	best := samples[0]
	bestDist := timeutil.CircularDistance(best.minutes, centroid)
	for _, s := range samples[1:] {
		d := timeutil.CircularDistance(s.minutes, centroid)
		if d < bestDist || (d == bestDist && s.cand.less(best.cand)) {
			best = s
			bestDist = d
		}
	}

	return timeutil.FormatMinutes(best.minutes), nil
}

// timeSample pairs a parsed endpoint value with the candidate it came
// from, so the representative-time tie-break can fall back to
// provenance order.
type timeSample struct {
	cand    candidate
	minutes int
}

// circularMean computes the mean angle of a set of minute-of-day values
// on a 24h clock face via unit-vector averaging.
func circularMean(minutes []int) int {
	var sumX, sumY float64
	for _, m := range minutes {
		angle := 2 * math.Pi * float64(m) / 1440
		sumX += math.Cos(angle)
		sumY += math.Sin(angle)
	}
	meanAngle := math.Atan2(sumY, sumX)
	if meanAngle < 0 {
		meanAngle += 2 * math.Pi
	}
	m := int(math.Round(meanAngle / (2 * math.Pi) * 1440))
	return ((m % 1440) + 1440) % 1440
}

// longestNonEmpty picks the longest non-empty value across the
// component, ties broken by (screenshot_index, position) ascending.
func longestNonEmpty(component []candidate, field func(domain.CanonicalShift) string) string {
	var best string
	var bestCand *candidate
	for i := range component {
		v := field(component[i].shift)
		if v == "" {
			continue
		}
		if bestCand == nil || len(v) > len(best) || (len(v) == len(best) && component[i].less(*bestCand)) {
			best = v
			c := component[i]
			bestCand = &c
		}
	}
	return best
}

// majorityShiftType picks the most common ShiftType, ties broken by the
// fixed enum order SCHOOL < OFFICE < HOME_VISIT < UNKNOWN (§4.2 step 4).
func majorityShiftType(component []candidate) domain.ShiftType {
	counts := make(map[domain.ShiftType]int)
	for _, c := range component {
		counts[c.shift.ShiftType]++
	}

	var best domain.ShiftType
	bestCount := -1
	for t, n := range counts {
		if n > bestCount || (n == bestCount && t.Rank() < best.Rank()) {
			best = t
			bestCount = n
		}
	}
	return best
}

// smallestCustomerFingerprint picks the lexicographically smallest
// customer_fingerprint in the component, used when identity keys differ
// within a location group (§4.2 step 4).
func smallestCustomerFingerprint(component []candidate) string {
	best := component[0].shift.CustomerFingerprint
	for _, c := range component[1:] {
		if c.shift.CustomerFingerprint < best {
			best = c.shift.CustomerFingerprint
		}
	}
	return best
}
