// Package subgraph models a versioned graph snapshot and provides read-only
// traversal over it.
//
// A Subgraph holds vertices keyed by base identifier then revision, outward
// edges keyed by source identifier then edge timestamp, the root vertices a
// query returned and the resolve depths used to build it. A subgraph with
// TemporalAxes set is temporal: entity revisions carry validity intervals on
// the variable axis and traversal functions take an optional search interval.
// A subgraph without TemporalAxes keeps a single revision per entity keyed at
// the Unix epoch.
//
// Traversal functions never mutate their input. Every root and every edge
// endpoint must resolve to a vertex; a missing one is reported as a
// *ConsistencyError rather than silently skipped.
//
// Build assembles a subgraph from loose graph elements, inferring type and
// link edges.
package subgraph
