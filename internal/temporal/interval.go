package temporal

import (
	"fmt"
	"slices"
	"time"
)

// Interval is a period between two bounds.
type Interval struct {
	Start Bound `json:"start" yaml:"start"`
	End   Bound `json:"end" yaml:"end"`
}

// NewInterval returns the interval [start, end].
func NewInterval(start, end Bound) Interval {
	return Interval{Start: start, End: end}
}

// IntervalForTimestamp returns the single-instant interval [t, t].
func IntervalForTimestamp(t time.Time) Interval {
	return Interval{Start: InclusiveBound(t), End: InclusiveBound(t)}
}

func (i Interval) String() string {
	lb, rb := "[", "]"
	if i.Start.Kind != Inclusive {
		lb = "("
	}
	if i.End.Kind != Inclusive {
		rb = ")"
	}
	start, end := "-inf", "+inf"
	if !i.Start.IsUnbounded() {
		start = FormatTimestamp(i.Start.Limit)
	}
	if !i.End.IsUnbounded() {
		end = FormatTimestamp(i.End.Limit)
	}
	return lb + start + ", " + end + rb
}

// Validate returns an error when the start sorts after the end.
func (i Interval) Validate() error {
	if CompareBounds(i.Start, i.End, Start, End) > 0 {
		return fmt.Errorf("interval %s: start is after end", i)
	}
	return nil
}

// IntervalCompareWithInterval orders intervals by start, then by end.
func IntervalCompareWithInterval(lhs, rhs Interval) int {
	if c := CompareBounds(lhs.Start, rhs.Start, Start, Start); c != 0 {
		return c
	}
	return CompareBounds(lhs.End, rhs.End, End, End)
}

// SortIntervals returns a copy of intervals sorted by start, then by end.
func SortIntervals(intervals []Interval) []Interval {
	sorted := slices.Clone(intervals)
	slices.SortStableFunc(sorted, IntervalCompareWithInterval)
	return sorted
}

// IntervalContainsTimestamp reports whether t falls inside the interval.
func IntervalContainsTimestamp(i Interval, t time.Time) bool {
	point := InclusiveBound(t)
	return CompareBounds(i.Start, point, Start, Start) <= 0 &&
		CompareBounds(i.End, point, End, End) >= 0
}

// IntervalContainsInterval reports whether lhs fully covers rhs.
func IntervalContainsInterval(lhs, rhs Interval) bool {
	return CompareBounds(lhs.Start, rhs.Start, Start, Start) <= 0 &&
		CompareBounds(lhs.End, rhs.End, End, End) >= 0
}

// IntervalOverlapsInterval reports whether the intervals share any instant.
func IntervalOverlapsInterval(lhs, rhs Interval) bool {
	return startWithin(lhs.Start, rhs) || startWithin(rhs.Start, lhs)
}

func startWithin(start Bound, i Interval) bool {
	return CompareBounds(start, i.Start, Start, Start) >= 0 &&
		CompareBounds(start, i.End, Start, End) <= 0
}

// IntervalIsAdjacentToInterval reports whether the intervals touch without
// overlapping.
func IntervalIsAdjacentToInterval(lhs, rhs Interval) bool {
	return BoundIsAdjacentToBound(lhs.End, rhs.Start) ||
		BoundIsAdjacentToBound(lhs.Start, rhs.End)
}

// IntervalIsStrictlyBeforeInterval reports whether lhs ends before rhs starts.
func IntervalIsStrictlyBeforeInterval(lhs, rhs Interval) bool {
	return CompareBounds(lhs.End, rhs.Start, End, Start) < 0
}

// IntervalIsStrictlyAfterInterval reports whether lhs starts after rhs ends.
func IntervalIsStrictlyAfterInterval(lhs, rhs Interval) bool {
	return CompareBounds(lhs.Start, rhs.End, Start, End) > 0
}

// IntervalIntersectionWithInterval returns the overlap of two intervals, or
// nil if they do not overlap.
func IntervalIntersectionWithInterval(lhs, rhs Interval) *Interval {
	if !IntervalOverlapsInterval(lhs, rhs) {
		return nil
	}
	out := Interval{Start: lhs.Start, End: lhs.End}
	if CompareBounds(rhs.Start, lhs.Start, Start, Start) > 0 {
		out.Start = rhs.Start
	}
	if CompareBounds(rhs.End, lhs.End, End, End) < 0 {
		out.End = rhs.End
	}
	return &out
}

// IntervalMergeWithInterval returns the interval spanning both inputs, gap
// included.
func IntervalMergeWithInterval(lhs, rhs Interval) Interval {
	out := Interval{Start: lhs.Start, End: lhs.End}
	if CompareBounds(rhs.Start, lhs.Start, Start, Start) < 0 {
		out.Start = rhs.Start
	}
	if CompareBounds(rhs.End, lhs.End, End, End) > 0 {
		out.End = rhs.End
	}
	return out
}

// IntervalUnionWithInterval returns a single merged interval when the inputs
// overlap or touch, otherwise both inputs sorted by start.
func IntervalUnionWithInterval(lhs, rhs Interval) []Interval {
	if IntervalOverlapsInterval(lhs, rhs) || IntervalIsAdjacentToInterval(lhs, rhs) {
		return []Interval{IntervalMergeWithInterval(lhs, rhs)}
	}
	if IntervalCompareWithInterval(lhs, rhs) <= 0 {
		return []Interval{lhs, rhs}
	}
	return []Interval{rhs, lhs}
}

// UnionOfIntervals returns the minimal set of disjoint, non-adjacent
// intervals covering the inputs, sorted by start.
func UnionOfIntervals(intervals ...Interval) []Interval {
	sorted := SortIntervals(intervals)
	out := make([]Interval, 0, len(sorted))
	for _, next := range sorted {
		if len(out) == 0 {
			out = append(out, next)
			continue
		}
		last := out[len(out)-1]
		out = append(out[:len(out)-1], IntervalUnionWithInterval(last, next)...)
	}
	return out
}
