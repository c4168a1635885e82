package subgraph

import (
	"time"

	"github.com/roach88/blockwire/internal/temporal"
)

// VertexID addresses one revision of a vertex. For entities BaseID is the
// entity ID and RevisionID the start of the revision's validity; for ontology
// types they are the base URL and version number.
type VertexID struct {
	BaseID     string `json:"baseId"`
	RevisionID string `json:"revisionId"`
}

// Vertices maps base identifier to revision to vertex.
type Vertices map[string]map[string]Vertex

// Edges maps source identifier to edge timestamp to outward edges.
type Edges map[string]map[string][]OutwardEdge

// EdgeKind names a relation between two vertices.
type EdgeKind string

const (
	HasLeftEntity                EdgeKind = "HAS_LEFT_ENTITY"
	HasRightEntity               EdgeKind = "HAS_RIGHT_ENTITY"
	IsOfType                     EdgeKind = "IS_OF_TYPE"
	InheritsFrom                 EdgeKind = "INHERITS_FROM"
	ConstrainsValuesOn           EdgeKind = "CONSTRAINS_VALUES_ON"
	ConstrainsPropertiesOn       EdgeKind = "CONSTRAINS_PROPERTIES_ON"
	ConstrainsLinksOn            EdgeKind = "CONSTRAINS_LINKS_ON"
	ConstrainsLinkDestinationsOn EdgeKind = "CONSTRAINS_LINK_DESTINATIONS_ON"
)

// EdgeEndpoint is the target of an outward edge. Entity endpoints set
// EntityID and Interval; ontology endpoints set BaseID and RevisionID.
type EdgeEndpoint struct {
	EntityID   EntityID           `json:"entityId,omitempty"`
	Interval   *temporal.Interval `json:"interval,omitempty"`
	BaseID     string             `json:"baseId,omitempty"`
	RevisionID string             `json:"revisionId,omitempty"`
}

// IsEntity reports whether the endpoint refers to an entity.
func (p EdgeEndpoint) IsEntity() bool { return p.EntityID != "" }

// OutwardEdge is an edge as seen from its source vertex. Reversed edges
// point against the relation's natural direction: a reversed HAS_LEFT_ENTITY
// edge on an entity leads to the links leaving it.
type OutwardEdge struct {
	Kind          EdgeKind     `json:"kind"`
	Reversed      bool         `json:"reversed"`
	RightEndpoint EdgeEndpoint `json:"rightEndpoint"`
}

func (e OutwardEdge) equal(other OutwardEdge) bool {
	if e.Kind != other.Kind || e.Reversed != other.Reversed {
		return false
	}
	a, b := e.RightEndpoint, other.RightEndpoint
	if a.EntityID != b.EntityID || a.BaseID != b.BaseID || a.RevisionID != b.RevisionID {
		return false
	}
	if (a.Interval == nil) != (b.Interval == nil) {
		return false
	}
	return a.Interval == nil || temporal.IntervalCompareWithInterval(*a.Interval, *b.Interval) == 0
}

func isOutgoingLinkEdge(e OutwardEdge) bool  { return e.Kind == HasLeftEntity && e.Reversed }
func isIncomingLinkEdge(e OutwardEdge) bool  { return e.Kind == HasRightEntity && e.Reversed }
func isHasLeftEntityEdge(e OutwardEdge) bool { return e.Kind == HasLeftEntity && !e.Reversed }
func isHasRightEntityEdge(e OutwardEdge) bool {
	return e.Kind == HasRightEntity && !e.Reversed
}

// EdgeResolveDepths bounds traversal of a bidirectional edge kind.
type EdgeResolveDepths struct {
	Incoming uint8 `json:"incoming"`
	Outgoing uint8 `json:"outgoing"`
}

// OutgoingEdgeResolveDepth bounds traversal of a one-way edge kind.
type OutgoingEdgeResolveDepth struct {
	Outgoing uint8 `json:"outgoing"`
}

// GraphResolveDepths records how many hops of each edge kind a subgraph
// was expanded by.
type GraphResolveDepths struct {
	HasLeftEntity                EdgeResolveDepths        `json:"hasLeftEntity"`
	HasRightEntity               EdgeResolveDepths        `json:"hasRightEntity"`
	ConstrainsValuesOn           OutgoingEdgeResolveDepth `json:"constrainsValuesOn"`
	ConstrainsPropertiesOn       OutgoingEdgeResolveDepth `json:"constrainsPropertiesOn"`
	ConstrainsLinksOn            OutgoingEdgeResolveDepth `json:"constrainsLinksOn"`
	ConstrainsLinkDestinationsOn OutgoingEdgeResolveDepth `json:"constrainsLinkDestinationsOn"`
	IsOfType                     OutgoingEdgeResolveDepth `json:"isOfType"`
	InheritsFrom                 OutgoingEdgeResolveDepth `json:"inheritsFrom"`
}

// PinnedTemporalAxis fixes one axis at a timestamp.
type PinnedTemporalAxis struct {
	Axis      TemporalAxis `json:"axis"`
	Timestamp *time.Time   `json:"timestamp"`
}

// VariableTemporalAxis lets the other axis range over an interval.
type VariableTemporalAxis struct {
	Axis     TemporalAxis      `json:"axis"`
	Interval temporal.Interval `json:"interval"`
}

// QueryTemporalAxes pairs the pinned and variable axes of a query.
type QueryTemporalAxes struct {
	Pinned   PinnedTemporalAxis   `json:"pinned"`
	Variable VariableTemporalAxis `json:"variable"`
}

// SubgraphTemporalAxes holds the axes as requested and as resolved.
type SubgraphTemporalAxes struct {
	Initial  QueryTemporalAxes `json:"initial"`
	Resolved QueryTemporalAxes `json:"resolved"`
}

// Subgraph is a closed, versioned graph snapshot.
type Subgraph struct {
	Roots        []VertexID            `json:"roots"`
	Vertices     Vertices              `json:"vertices"`
	Edges        Edges                 `json:"edges"`
	Depths       GraphResolveDepths    `json:"depths"`
	TemporalAxes *SubgraphTemporalAxes `json:"temporalAxes,omitempty"`
}

// IsTemporal reports whether the subgraph carries temporal axes.
func (sg *Subgraph) IsTemporal() bool { return sg.TemporalAxes != nil }

// VariableAxis returns the axis entity revisions are keyed on. Non-temporal
// subgraphs key on decision time at the epoch.
func (sg *Subgraph) VariableAxis() TemporalAxis {
	if sg.TemporalAxes == nil {
		return DecisionTime
	}
	return sg.TemporalAxes.Resolved.Variable.Axis
}

// GetLatestInstantInterval returns the single-instant interval at the end of
// the subgraph's variable axis.
func GetLatestInstantInterval(sg *Subgraph) (temporal.Interval, error) {
	if sg.TemporalAxes == nil {
		return temporal.Interval{}, ErrNotTemporal
	}
	end := sg.TemporalAxes.Resolved.Variable.Interval.End
	if end.IsUnbounded() {
		return temporal.Interval{}, inconsistent("resolved variable axis has an unbounded end")
	}
	return temporal.IntervalForTimestamp(end.Limit), nil
}
