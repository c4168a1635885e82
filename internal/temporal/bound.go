package temporal

import (
	"encoding/json"
	"fmt"
	"time"
)

// BoundKind distinguishes unbounded, inclusive and exclusive bounds.
type BoundKind string

const (
	Unbounded BoundKind = "unbounded"
	Inclusive BoundKind = "inclusive"
	Exclusive BoundKind = "exclusive"
)

// BoundPosition tells CompareBounds whether a bound opens or closes an interval.
type BoundPosition int

const (
	Start BoundPosition = iota
	End
)

func (p BoundPosition) String() string {
	if p == Start {
		return "start"
	}
	return "end"
}

// Bound is one end of an interval. Limit is ignored when Kind is Unbounded.
type Bound struct {
	Kind  BoundKind
	Limit time.Time
}

// UnboundedBound returns the bound with no limit.
func UnboundedBound() Bound { return Bound{Kind: Unbounded} }

// InclusiveBound returns a bound that includes t.
func InclusiveBound(t time.Time) Bound { return Bound{Kind: Inclusive, Limit: t.UTC()} }

// ExclusiveBound returns a bound that excludes t.
func ExclusiveBound(t time.Time) Bound { return Bound{Kind: Exclusive, Limit: t.UTC()} }

// IsUnbounded reports whether b has no limit.
func (b Bound) IsUnbounded() bool { return b.Kind == Unbounded }

func (b Bound) String() string {
	if b.IsUnbounded() {
		return "unbounded"
	}
	return fmt.Sprintf("%s(%s)", b.Kind, FormatTimestamp(b.Limit))
}

type boundJSON struct {
	Kind  BoundKind `json:"kind" yaml:"kind"`
	Limit string    `json:"limit,omitempty" yaml:"limit,omitempty"`
}

// MarshalJSON encodes b as {"kind": ..., "limit": ...}.
func (b Bound) MarshalJSON() ([]byte, error) {
	out := boundJSON{Kind: b.Kind}
	if !b.IsUnbounded() {
		out.Limit = FormatTimestamp(b.Limit)
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a bound, rejecting unknown kinds and missing limits.
func (b *Bound) UnmarshalJSON(data []byte) error {
	var in boundJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	return b.fromWire(in)
}

// UnmarshalYAML decodes a bound from fixture files.
func (b *Bound) UnmarshalYAML(unmarshal func(any) error) error {
	var in boundJSON
	if err := unmarshal(&in); err != nil {
		return err
	}
	return b.fromWire(in)
}

func (b *Bound) fromWire(in boundJSON) error {
	switch in.Kind {
	case Unbounded:
		*b = UnboundedBound()
		return nil
	case Inclusive, Exclusive:
		if in.Limit == "" {
			return fmt.Errorf("%s bound requires a limit", in.Kind)
		}
		t, err := ParseTimestamp(in.Limit)
		if err != nil {
			return err
		}
		*b = Bound{Kind: in.Kind, Limit: t}
		return nil
	default:
		return fmt.Errorf("unknown bound kind %q", in.Kind)
	}
}

// CompareBounds orders two bounds given their positions. It returns a negative
// number when lhs sorts first, a positive number when rhs sorts first and zero
// when they are equivalent.
//
// Limited bounds order by limit. At the same limit an inclusive start sorts
// before an exclusive start, and an exclusive end sorts before an inclusive
// end. An unbounded start sorts before everything and an unbounded end after
// everything.
func CompareBounds(lhs, rhs Bound, lhsPos, rhsPos BoundPosition) int {
	if lhs.Kind == rhs.Kind && lhsPos == rhsPos &&
		(lhs.IsUnbounded() || lhs.Limit.Equal(rhs.Limit)) {
		return 0
	}

	if lhs.IsUnbounded() {
		if lhsPos == Start {
			return -1
		}
		return 1
	}
	if rhs.IsUnbounded() {
		if rhsPos == Start {
			return 1
		}
		return -1
	}

	if c := lhs.Limit.Compare(rhs.Limit); c != 0 {
		return c
	}

	// Same limit. Exclusive bounds sit further from the region they bound.
	switch {
	case lhs.Kind == Exclusive && rhs.Kind == Exclusive:
		if lhsPos == rhsPos {
			return 0
		}
		if lhsPos == Start {
			return 1
		}
		return -1
	case lhs.Kind == Exclusive:
		if lhsPos == Start {
			return 1
		}
		return -1
	case rhs.Kind == Exclusive:
		if rhsPos == Start {
			return -1
		}
		return 1
	default:
		return 0
	}
}

// BoundIsAdjacentToBound reports whether two bounds meet without gap or
// overlap: one inclusive, the other exclusive, at the same limit.
func BoundIsAdjacentToBound(lhs, rhs Bound) bool {
	if lhs.IsUnbounded() || rhs.IsUnbounded() {
		return false
	}
	mixed := (lhs.Kind == Inclusive && rhs.Kind == Exclusive) ||
		(lhs.Kind == Exclusive && rhs.Kind == Inclusive)
	return mixed && lhs.Limit.Equal(rhs.Limit)
}

// FormatTimestamp renders t as an RFC 3339 UTC string.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// ParseTimestamp parses an RFC 3339 timestamp and normalizes it to UTC.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
