// Package interval provides pure time-interval algebra for the availability
// engine: clipping, stack-based merging of busy blocks, gap computation and
// slot enumeration. All intervals are half-open [Start, End) and all functions
// are deterministic, with no clock reads.
package interval

import (
	"sort"
	"time"
)

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// IsZero reports whether the interval carries no span.
func (iv Interval) IsZero() bool {
	return !iv.End.After(iv.Start)
}

// Duration returns End - Start. Zero for degenerate intervals.
func (iv Interval) Duration() time.Duration {
	if iv.IsZero() {
		return 0
	}
	return iv.End.Sub(iv.Start)
}

// Overlaps reports whether two half-open intervals share any instant.
// Touching endpoints ([a,b) and [b,c)) do not overlap.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Contains reports whether t falls inside the interval.
func (iv Interval) Contains(t time.Time) bool {
	return !t.Before(iv.Start) && t.Before(iv.End)
}

// Clip clamps iv to [rangeStart, rangeEnd). Intervals fully outside the range
// collapse to a zero interval.
func Clip(iv Interval, rangeStart, rangeEnd time.Time) Interval {
	start := iv.Start
	end := iv.End
	if start.Before(rangeStart) {
		start = rangeStart
	}
	if end.After(rangeEnd) {
		end = rangeEnd
	}
	if !end.After(start) {
		return Interval{}
	}
	return Interval{Start: start, End: end}
}

// Merge sorts the input by start time and collapses overlapping or adjacent
// intervals into a minimal covering set. The result is sorted, pairwise
// disjoint and non-adjacent, and covers exactly the union of the inputs.
// Zero-span inputs are dropped. The input slice is not modified.
func Merge(ivs []Interval) []Interval {
	work := make([]Interval, 0, len(ivs))
	for _, iv := range ivs {
		if !iv.IsZero() {
			work = append(work, iv)
		}
	}
	if len(work) == 0 {
		return nil
	}

	sort.Slice(work, func(i, j int) bool {
		if work[i].Start.Equal(work[j].Start) {
			return work[i].End.Before(work[j].End)
		}
		return work[i].Start.Before(work[j].Start)
	})

	merged := []Interval{work[0]}
	for _, iv := range work[1:] {
		top := &merged[len(merged)-1]
		// Adjacent counts as mergeable: [a,b) + [b,c) → [a,c).
		if !iv.Start.After(top.End) {
			if iv.End.After(top.End) {
				top.End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// Gaps returns the free intervals inside [rangeStart, rangeEnd) left open by
// busy. busy must already be merged (sorted, disjoint); callers normally pass
// the output of Merge. Busy time outside the range is ignored.
func Gaps(busy []Interval, rangeStart, rangeEnd time.Time) []Interval {
	if !rangeEnd.After(rangeStart) {
		return nil
	}

	var gaps []Interval
	cursor := rangeStart
	for _, b := range busy {
		clipped := Clip(b, rangeStart, rangeEnd)
		if clipped.IsZero() {
			continue
		}
		if clipped.Start.After(cursor) {
			gaps = append(gaps, Interval{Start: cursor, End: clipped.Start})
		}
		if clipped.End.After(cursor) {
			cursor = clipped.End
		}
	}
	if rangeEnd.After(cursor) {
		gaps = append(gaps, Interval{Start: cursor, End: rangeEnd})
	}
	return gaps
}

// Slots enumerates candidate slot start times inside gap at the given stride,
// keeping only starts where a full slot of the same duration still fits:
// gap.End - start >= stride.
func Slots(gap Interval, stride time.Duration) []time.Time {
	if gap.IsZero() || stride <= 0 {
		return nil
	}
	var starts []time.Time
	for t := gap.Start; gap.End.Sub(t) >= stride; t = t.Add(stride) {
		starts = append(starts, t)
	}
	return starts
}
