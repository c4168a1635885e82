// Package temporal implements the bound and interval algebra used by
// bitemporal subgraphs.
//
// A Bound is either unbounded or limited at a timestamp, inclusively or
// exclusively. An Interval is a (start, end) pair of bounds. Every interval
// operation is derived from CompareBounds, which defines a total order over
// bounds once their position (start or end) is known.
//
// Timestamps serialize as RFC 3339 strings with nanosecond precision in UTC.
package temporal
