package temporal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closedOpen returns [start, end).
func closedOpen(start, end string) Interval {
	return NewInterval(InclusiveBound(ts(start)), ExclusiveBound(ts(end)))
}

func TestIntervalOverlapsInterval(t *testing.T) {
	a := closedOpen("2020-01-01", "2020-06-01")
	b := closedOpen("2020-03-01", "2020-09-01")
	c := closedOpen("2020-06-01", "2020-07-01")

	assert.True(t, IntervalOverlapsInterval(a, b))
	assert.True(t, IntervalOverlapsInterval(b, a))
	assert.False(t, IntervalOverlapsInterval(a, c), "exclusive end does not reach inclusive start")
	assert.True(t, IntervalOverlapsInterval(b, c))
}

func TestIntervalIntersectionWithInterval(t *testing.T) {
	a := closedOpen("2020-01-01", "2020-06-01")
	b := closedOpen("2020-03-01", "2020-09-01")

	got := IntervalIntersectionWithInterval(a, b)
	require.NotNil(t, got)
	assert.Equal(t, closedOpen("2020-03-01", "2020-06-01").String(), got.String())

	c := closedOpen("2020-10-01", "2020-11-01")
	assert.Nil(t, IntervalIntersectionWithInterval(a, c))
}

func TestIntervalUnionWithInterval_Overlapping(t *testing.T) {
	a := closedOpen("2020-01-01", "2020-06-01")
	b := closedOpen("2020-03-01", "2020-09-01")

	got := IntervalUnionWithInterval(a, b)
	require.Len(t, got, 1)
	assert.Equal(t, closedOpen("2020-01-01", "2020-09-01").String(), got[0].String())
}

func TestIntervalUnionWithInterval_Disjoint(t *testing.T) {
	c := closedOpen("2020-01-01", "2020-02-01")
	d := closedOpen("2020-05-01", "2020-06-01")

	assert.Equal(t, []Interval{c, d}, IntervalUnionWithInterval(c, d))
	assert.Equal(t, []Interval{c, d}, IntervalUnionWithInterval(d, c))
}

func TestIntervalUnionWithInterval_Adjacent(t *testing.T) {
	a := closedOpen("2020-01-01", "2020-03-01")
	b := closedOpen("2020-03-01", "2020-04-01")

	assert.True(t, IntervalIsAdjacentToInterval(a, b))
	got := IntervalUnionWithInterval(b, a)
	require.Len(t, got, 1)
	assert.Equal(t, closedOpen("2020-01-01", "2020-04-01").String(), got[0].String())
}

func TestIntervalMergeWithInterval_SpansGap(t *testing.T) {
	c := closedOpen("2020-01-01", "2020-02-01")
	d := closedOpen("2020-05-01", "2020-06-01")
	assert.Equal(t, closedOpen("2020-01-01", "2020-06-01").String(), IntervalMergeWithInterval(d, c).String())
}

func TestIntervalContains(t *testing.T) {
	outer := NewInterval(UnboundedBound(), ExclusiveBound(ts("2021-01-01")))
	inner := closedOpen("2020-01-01", "2020-06-01")

	assert.True(t, IntervalContainsInterval(outer, inner))
	assert.False(t, IntervalContainsInterval(inner, outer))
	assert.True(t, IntervalContainsInterval(inner, inner))

	assert.True(t, IntervalContainsTimestamp(inner, ts("2020-01-01")))
	assert.False(t, IntervalContainsTimestamp(inner, ts("2020-06-01")))
	assert.True(t, IntervalContainsTimestamp(outer, ts("1900-01-01")))
}

func TestIntervalIsStrictlyBeforeAfter(t *testing.T) {
	a := closedOpen("2020-01-01", "2020-02-01")
	b := closedOpen("2020-02-01", "2020-03-01")

	assert.True(t, IntervalIsStrictlyBeforeInterval(a, b))
	assert.True(t, IntervalIsStrictlyAfterInterval(b, a))
	assert.False(t, IntervalIsStrictlyBeforeInterval(b, a))
}

func TestUnionOfIntervals(t *testing.T) {
	x := closedOpen("2020-01-01", "2020-02-01")
	assert.Equal(t, []Interval{x}, UnionOfIntervals(x))
	assert.Empty(t, UnionOfIntervals())

	got := UnionOfIntervals(
		closedOpen("2020-05-01", "2020-06-01"),
		closedOpen("2020-01-01", "2020-02-01"),
		closedOpen("2020-01-15", "2020-03-01"),
		closedOpen("2020-03-01", "2020-04-01"),
	)
	require.Len(t, got, 2)
	assert.Equal(t, closedOpen("2020-01-01", "2020-04-01").String(), got[0].String())
	assert.Equal(t, closedOpen("2020-05-01", "2020-06-01").String(), got[1].String())
}

func TestSortIntervals_DoesNotMutateInput(t *testing.T) {
	in := []Interval{closedOpen("2020-05-01", "2020-06-01"), closedOpen("2020-01-01", "2020-02-01")}
	sorted := SortIntervals(in)
	assert.Equal(t, in[1], sorted[0])
	assert.Equal(t, closedOpen("2020-05-01", "2020-06-01"), in[0])
}

func TestInterval_Validate(t *testing.T) {
	assert.NoError(t, closedOpen("2020-01-01", "2020-02-01").Validate())
	assert.NoError(t, IntervalForTimestamp(ts("2020-01-01")).Validate())
	assert.Error(t, closedOpen("2020-02-01", "2020-01-01").Validate())
	assert.Error(t, closedOpen("2020-01-01", "2020-01-01").Validate())
}
