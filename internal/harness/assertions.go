package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/blockwire/internal/protocol"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  [%d] %s %s/%s %s\n",
				event.Seq, event.Source, event.Module, event.Message, event.RequestID)
		}
	}
	return buf.String()
}

// assertTraceContains checks that some event carries the message and,
// when given, the source, error code and data (subset match).
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	var want any
	if assertion.Data != nil {
		if err := protocol.Convert(assertion.Data, &want); err != nil {
			return fmt.Errorf("trace_contains: expected data: %w", err)
		}
	}

	for _, event := range trace {
		if event.Message != assertion.Message {
			continue
		}
		if assertion.Source != "" && event.Source != assertion.Source {
			continue
		}
		if assertion.Error != "" && !slices.Contains(event.Errors, assertion.Error) {
			continue
		}
		if want != nil {
			var got any
			if err := protocol.Convert(event.Data, &got); err != nil || !matchSubset(got, want) {
				continue
			}
		}
		return nil
	}

	expected := "message " + assertion.Message
	if assertion.Source != "" {
		expected += " from " + assertion.Source
	}
	if assertion.Error != "" {
		expected += " with error " + assertion.Error
	}
	if want != nil {
		expected += " with data " + formatValue(want)
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that the first occurrences of the messages appear
// in the given order. Other messages may come between them.
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	positions := make(map[string]int)
	for i, event := range trace {
		if _, seen := positions[event.Message]; !seen {
			positions[event.Message] = i + 1
		}
	}

	for _, message := range assertion.Messages {
		if positions[message] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all messages present: %v", assertion.Messages),
				Actual:   fmt.Sprintf("missing message: %s", message),
				Trace:    trace,
			}
		}
	}

	for i := 1; i < len(assertion.Messages); i++ {
		prev := assertion.Messages[i-1]
		curr := assertion.Messages[i]
		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("messages in order: %v", assertion.Messages),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}
	return nil
}

// assertTraceCount checks that the message appears exactly Count times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Message == assertion.Message {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Message),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertBlockEntities checks the entities of the last block entity
// subgraph the embedder sent.
func assertBlockEntities(result *Result, assertion Assertion) error {
	want := slices.Clone(assertion.Entities)
	slices.Sort(want)
	if slices.Equal(want, result.BlockEntities) {
		return nil
	}
	actual := "no block entity subgraph sent"
	if result.BlockEntities != nil {
		actual = fmt.Sprintf("%v", result.BlockEntities)
	}
	return &AssertionError{
		Type:     AssertBlockEntities,
		Expected: fmt.Sprintf("%v", want),
		Actual:   actual,
	}
}

// matchSubset reports whether actual contains expected. Maps match when
// every expected key matches; lists must have equal length.
func matchSubset(actual, expected any) bool {
	switch exp := expected.(type) {
	case map[string]any:
		act, ok := actual.(map[string]any)
		if !ok {
			return false
		}
		for key, want := range exp {
			got, exists := act[key]
			if !exists || !matchSubset(got, want) {
				return false
			}
		}
		return true
	case []any:
		act, ok := actual.([]any)
		if !ok || len(act) != len(exp) {
			return false
		}
		for i := range exp {
			if !matchSubset(act[i], exp[i]) {
				return false
			}
		}
		return true
	}
	return reflect.DeepEqual(actual, expected)
}

func formatValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertBlockEntities:
			err = assertBlockEntities(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}
	return errors
}
