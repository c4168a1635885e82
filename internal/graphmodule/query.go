package graphmodule

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/blockwire/internal/protocol"
)

// FilterOperator compares the value at a field path.
type FilterOperator string

const (
	OpIsDefined             FilterOperator = "IS_DEFINED"
	OpIsNotDefined          FilterOperator = "IS_NOT_DEFINED"
	OpContainsSegment       FilterOperator = "CONTAINS_SEGMENT"
	OpDoesNotContainSegment FilterOperator = "DOES_NOT_CONTAIN_SEGMENT"
	OpEquals                FilterOperator = "EQUALS"
	OpDoesNotEqual          FilterOperator = "DOES_NOT_EQUAL"
	OpStartsWith            FilterOperator = "STARTS_WITH"
	OpEndsWith              FilterOperator = "ENDS_WITH"
)

func (op FilterOperator) needsValue() bool {
	return op != OpIsDefined && op != OpIsNotDefined
}

func (op FilterOperator) valid() bool {
	switch op {
	case OpIsDefined, OpIsNotDefined, OpContainsSegment, OpDoesNotContainSegment,
		OpEquals, OpDoesNotEqual, OpStartsWith, OpEndsWith:
		return true
	}
	return false
}

// MultiFilterOperator combines filter results.
type MultiFilterOperator string

const (
	FilterAnd MultiFilterOperator = "AND"
	FilterOr  MultiFilterOperator = "OR"
)

// Filter tests the value found by following Field through an element. Path
// segments are object keys or list indexes.
type Filter struct {
	Field    []any          `json:"field" yaml:"field"`
	Operator FilterOperator `json:"operator" yaml:"operator"`
	Value    any            `json:"value,omitempty" yaml:"value"`
}

// MultiFilter combines several filters with AND or OR.
type MultiFilter struct {
	Filters  []Filter            `json:"filters" yaml:"filters"`
	Operator MultiFilterOperator `json:"operator" yaml:"operator"`
}

// Sort orders by the value at Field.
type Sort struct {
	Field []any `json:"field" yaml:"field"`
	Desc  bool  `json:"desc,omitempty" yaml:"desc"`
}

// QueryOperation is an optional filter followed by an optional sort.
type QueryOperation struct {
	MultiFilter *MultiFilter `json:"multiFilter,omitempty" yaml:"multiFilter"`
	MultiSort   []Sort       `json:"multiSort,omitempty" yaml:"multiSort"`
}

// Validate reports the first malformed filter or sort.
func (op QueryOperation) Validate() error {
	if mf := op.MultiFilter; mf != nil {
		if mf.Operator != FilterAnd && mf.Operator != FilterOr {
			return fmt.Errorf("invalid multi-filter operator %q", mf.Operator)
		}
		for i, f := range mf.Filters {
			if len(f.Field) == 0 {
				return fmt.Errorf("filter %d: field must not be empty", i)
			}
			if !f.Operator.valid() {
				return fmt.Errorf("filter %d: invalid operator %q", i, f.Operator)
			}
			if f.Operator.needsValue() && f.Value == nil {
				return fmt.Errorf("filter %d: operator %s requires a value", i, f.Operator)
			}
		}
	}
	for i, s := range op.MultiSort {
		if len(s.Field) == 0 {
			return fmt.Errorf("sort %d: field must not be empty", i)
		}
	}
	return nil
}

// Apply filters and sorts items by their JSON form and returns the selected
// items in order. Items keep their relative order where the sort does not
// distinguish them.
func Apply[T any](items []T, op QueryOperation) ([]T, error) {
	if err := op.Validate(); err != nil {
		return nil, err
	}

	type doc struct {
		item T
		tree any
	}
	docs := make([]doc, 0, len(items))
	for _, item := range items {
		var tree any
		if err := protocol.Convert(item, &tree); err != nil {
			return nil, err
		}
		if op.MultiFilter != nil && !op.MultiFilter.matches(tree) {
			continue
		}
		docs = append(docs, doc{item: item, tree: tree})
	}

	if len(op.MultiSort) > 0 {
		slices.SortStableFunc(docs, func(a, b doc) int {
			for _, s := range op.MultiSort {
				c := compareValues(lookup(a.tree, s.Field), lookup(b.tree, s.Field))
				if s.Desc {
					c = -c
				}
				if c != 0 {
					return c
				}
			}
			return 0
		})
	}

	out := make([]T, len(docs))
	for i, d := range docs {
		out[i] = d.item
	}
	return out, nil
}

// matches applies every filter that is applicable to tree. A missing value
// fails every value comparison except the negated ones. Filters on present
// values of an unsupported kind are ignored; AND over no results holds and
// OR over no results fails.
func (mf *MultiFilter) matches(tree any) bool {
	var results []bool
	for _, f := range mf.Filters {
		if ok, applicable := f.matches(tree); applicable {
			results = append(results, ok)
		}
	}
	if mf.Operator == FilterOr {
		return slices.Contains(results, true)
	}
	return !slices.Contains(results, false)
}

func (f Filter) matches(tree any) (ok, applicable bool) {
	value := lookup(tree, f.Field)
	switch f.Operator {
	case OpIsDefined:
		return value != nil, true
	case OpIsNotDefined:
		return value == nil, true
	}
	if value == nil {
		return f.Operator == OpDoesNotEqual || f.Operator == OpDoesNotContainSegment, true
	}

	if list, isList := value.([]any); isList {
		switch f.Operator {
		case OpContainsSegment:
			return containsValue(list, f.Value), true
		case OpDoesNotContainSegment:
			return !containsValue(list, f.Value), true
		}
	}

	s, isString := value.(string)
	want, wantString := f.Value.(string)
	if !isString || !wantString {
		switch f.Operator {
		case OpEquals:
			return equalValues(value, f.Value), true
		case OpDoesNotEqual:
			return !equalValues(value, f.Value), true
		}
		return false, false
	}

	s, want = strings.ToLower(s), strings.ToLower(want)
	switch f.Operator {
	case OpContainsSegment:
		return strings.Contains(s, want), true
	case OpDoesNotContainSegment:
		return !strings.Contains(s, want), true
	case OpEquals:
		return s == want, true
	case OpDoesNotEqual:
		return s != want, true
	case OpStartsWith:
		return strings.HasPrefix(s, want), true
	case OpEndsWith:
		return strings.HasSuffix(s, want), true
	}
	return false, false
}

// lookup follows path through decoded JSON. It returns nil when any
// segment is missing.
func lookup(tree any, path []any) any {
	cur := tree
	for _, seg := range path {
		switch node := cur.(type) {
		case map[string]any:
			key, ok := seg.(string)
			if !ok {
				return nil
			}
			cur = node[key]
		case []any:
			idx, ok := index(seg)
			if !ok || idx < 0 || idx >= len(node) {
				return nil
			}
			cur = node[idx]
		default:
			return nil
		}
	}
	return cur
}

func index(seg any) (int, bool) {
	switch v := seg.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case uint64:
		return int(v), true
	case float64:
		if v == float64(int(v)) {
			return int(v), true
		}
	}
	return 0, false
}

func containsValue(list []any, want any) bool {
	for _, v := range list {
		if equalValues(v, want) {
			return true
		}
	}
	return false
}

// equalValues compares JSON-compatible values, treating numbers of any Go
// type as float64.
func equalValues(a, b any) bool {
	if fa, ok := number(a); ok {
		fb, ok := number(b)
		return ok && fa == fb
	}
	if sa, ok := a.(string); ok {
		sb, ok := b.(string)
		return ok && strings.EqualFold(sa, sb)
	}
	var na, nb any
	if protocol.Convert(a, &na) != nil || protocol.Convert(b, &nb) != nil {
		return false
	}
	return reflect.DeepEqual(na, nb)
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

// compareValues orders missing values first, then numbers, strings and
// booleans among themselves.
func compareValues(a, b any) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if fa, ok := number(a); ok {
		if fb, ok := number(b); ok {
			return cmp.Compare(fa, fb)
		}
	}
	if sa, ok := a.(string); ok {
		if sb, ok := b.(string); ok {
			return strings.Compare(sa, sb)
		}
	}
	if ba, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ba == bb:
				return 0
			case !ba:
				return -1
			}
			return 1
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}
