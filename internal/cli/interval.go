package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/blockwire/internal/temporal"
)

// NewIntervalCommand creates the interval command group.
func NewIntervalCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interval",
		Short: "Temporal interval arithmetic",
		Long: `Compute with temporal intervals.

Intervals are written as "[start, end)" with RFC 3339 limits. A square
bracket marks an inclusive bound, a parenthesis an exclusive one, and
-inf/+inf an unbounded side.`,
	}
	cmd.AddCommand(newIntervalUnionCommand(rootOpts))
	cmd.AddCommand(newIntervalCompareCommand(rootOpts))
	return cmd
}

func newIntervalUnionCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "union <interval>...",
		Short: "Union intervals into sorted disjoint intervals",
		Long: `Union intervals into the minimal sorted list of disjoint intervals.

Overlapping and adjacent intervals are merged.

Examples:
  blockwire interval union "[2024-01-01T00:00:00Z, 2024-02-01T00:00:00Z)" "[2024-02-01T00:00:00Z, +inf)"
  blockwire interval union "(-inf, 2024-01-01T00:00:00Z]" --format json`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			intervals, err := parseIntervals(args)
			if err != nil {
				return err
			}
			union := temporal.UnionOfIntervals(intervals...)
			return rootOpts.formatter(cmd).Render(union, func(w io.Writer) {
				for _, i := range union {
					fmt.Fprintln(w, i)
				}
			})
		},
	}
}

// IntervalComparison describes how two intervals relate.
type IntervalComparison struct {
	Left         temporal.Interval   `json:"left"`
	Right        temporal.Interval   `json:"right"`
	Order        int                 `json:"order"`
	Contains     bool                `json:"contains"`
	Overlaps     bool                `json:"overlaps"`
	Adjacent     bool                `json:"adjacent"`
	Before       bool                `json:"before"`
	After        bool                `json:"after"`
	Intersection *temporal.Interval  `json:"intersection,omitempty"`
	Union        []temporal.Interval `json:"union"`
}

// CompareIntervals computes every relation between lhs and rhs.
func CompareIntervals(lhs, rhs temporal.Interval) IntervalComparison {
	return IntervalComparison{
		Left:         lhs,
		Right:        rhs,
		Order:        temporal.IntervalCompareWithInterval(lhs, rhs),
		Contains:     temporal.IntervalContainsInterval(lhs, rhs),
		Overlaps:     temporal.IntervalOverlapsInterval(lhs, rhs),
		Adjacent:     temporal.IntervalIsAdjacentToInterval(lhs, rhs),
		Before:       temporal.IntervalIsStrictlyBeforeInterval(lhs, rhs),
		After:        temporal.IntervalIsStrictlyAfterInterval(lhs, rhs),
		Intersection: temporal.IntervalIntersectionWithInterval(lhs, rhs),
		Union:        temporal.IntervalUnionWithInterval(lhs, rhs),
	}
}

func newIntervalCompareCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "compare <left> <right>",
		Short: "Show how two intervals relate",
		Long: `Show how two intervals relate: their order, containment, overlap,
adjacency, intersection and union.

Examples:
  blockwire interval compare "[2024-01-01T00:00:00Z, 2024-03-01T00:00:00Z)" "[2024-02-01T00:00:00Z, +inf)"`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			intervals, err := parseIntervals(args)
			if err != nil {
				return err
			}
			cmp := CompareIntervals(intervals[0], intervals[1])
			return rootOpts.formatter(cmd).Render(cmp, func(w io.Writer) {
				fmt.Fprintf(w, "left:         %s\n", cmp.Left)
				fmt.Fprintf(w, "right:        %s\n", cmp.Right)
				fmt.Fprintf(w, "order:        %d\n", cmp.Order)
				fmt.Fprintf(w, "contains:     %t\n", cmp.Contains)
				fmt.Fprintf(w, "overlaps:     %t\n", cmp.Overlaps)
				fmt.Fprintf(w, "adjacent:     %t\n", cmp.Adjacent)
				fmt.Fprintf(w, "before:       %t\n", cmp.Before)
				fmt.Fprintf(w, "after:        %t\n", cmp.After)
				if cmp.Intersection != nil {
					fmt.Fprintf(w, "intersection: %s\n", *cmp.Intersection)
				} else {
					fmt.Fprintln(w, "intersection: none")
				}
				for _, i := range cmp.Union {
					fmt.Fprintf(w, "union:        %s\n", i)
				}
			})
		},
	}
}

func parseIntervals(args []string) ([]temporal.Interval, error) {
	out := make([]temporal.Interval, 0, len(args))
	for _, arg := range args {
		i, err := ParseInterval(arg)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "invalid interval", err)
		}
		out = append(out, i)
	}
	return out, nil
}

// ParseInterval parses the notation Interval.String produces, such as
// "[2024-01-01T00:00:00Z, +inf)". The result is validated.
func ParseInterval(s string) (temporal.Interval, error) {
	s = strings.TrimSpace(s)
	if len(s) < 2 {
		return temporal.Interval{}, fmt.Errorf("interval %q: too short", s)
	}
	lb, rb := s[0], s[len(s)-1]
	if (lb != '[' && lb != '(') || (rb != ']' && rb != ')') {
		return temporal.Interval{}, fmt.Errorf("interval %q: must be enclosed in [ or ( and ] or )", s)
	}
	start, end, ok := strings.Cut(s[1:len(s)-1], ",")
	if !ok {
		return temporal.Interval{}, fmt.Errorf("interval %q: missing comma", s)
	}

	lower, err := parseBound(strings.TrimSpace(start), lb == '[', "-inf")
	if err != nil {
		return temporal.Interval{}, fmt.Errorf("interval %q: start: %w", s, err)
	}
	upper, err := parseBound(strings.TrimSpace(end), rb == ']', "+inf")
	if err != nil {
		return temporal.Interval{}, fmt.Errorf("interval %q: end: %w", s, err)
	}

	i := temporal.NewInterval(lower, upper)
	if err := i.Validate(); err != nil {
		return temporal.Interval{}, err
	}
	return i, nil
}

func parseBound(s string, inclusive bool, infinity string) (temporal.Bound, error) {
	if s == infinity {
		return temporal.UnboundedBound(), nil
	}
	t, err := temporal.ParseTimestamp(s)
	if err != nil {
		return temporal.Bound{}, err
	}
	if inclusive {
		return temporal.InclusiveBound(t), nil
	}
	return temporal.ExclusiveBound(t), nil
}
