package subgraph

import (
	"slices"
	"time"

	"github.com/roach88/blockwire/internal/temporal"
)

// Elements is the loose material a subgraph is assembled from.
type Elements struct {
	DataTypes     []*DataTypeWithMetadata     `json:"dataTypes,omitempty" yaml:"dataTypes"`
	PropertyTypes []*PropertyTypeWithMetadata `json:"propertyTypes,omitempty" yaml:"propertyTypes"`
	EntityTypes   []*EntityTypeWithMetadata   `json:"entityTypes,omitempty" yaml:"entityTypes"`
	Entities      []*Entity                   `json:"entities,omitempty" yaml:"entities"`
}

// epoch keys every entity revision of a non-temporal subgraph.
var epoch = time.Unix(0, 0).UTC()

// NonTemporalInterval is the validity assumed for entities of a non-temporal
// subgraph.
func NonTemporalInterval() temporal.Interval {
	return temporal.NewInterval(temporal.InclusiveBound(epoch), temporal.UnboundedBound())
}

// EntityVertexID returns the vertex identifier e is stored under in a
// subgraph with the given axes.
func EntityVertexID(e *Entity, axes *SubgraphTemporalAxes) (VertexID, error) {
	validity, err := entityValidity(e, axes)
	if err != nil {
		return VertexID{}, err
	}
	return VertexID{BaseID: string(e.ID()), RevisionID: revisionKey(validity)}, nil
}

func entityValidity(e *Entity, axes *SubgraphTemporalAxes) (temporal.Interval, error) {
	if axes == nil {
		return NonTemporalInterval(), nil
	}
	validity, ok := e.Metadata.TemporalVersioning[axes.Resolved.Variable.Axis]
	if !ok {
		return temporal.Interval{}, inconsistent("entity %s has no %s interval", e.ID(), axes.Resolved.Variable.Axis)
	}
	return validity, nil
}

func revisionKey(i temporal.Interval) string {
	if i.Start.IsUnbounded() {
		return temporal.FormatTimestamp(epoch)
	}
	return temporal.FormatTimestamp(i.Start.Limit)
}

// Build assembles a subgraph from elements. It adds every element as a
// vertex, infers link, type and ontology constraint edges between vertices
// that are present, and checks that every root and link endpoint resolves.
func Build(elements Elements, roots []VertexID, depths GraphResolveDepths, axes *SubgraphTemporalAxes) (*Subgraph, error) {
	sg := &Subgraph{
		Roots:        slices.Clone(roots),
		Vertices:     make(Vertices),
		Edges:        make(Edges),
		Depths:       depths,
		TemporalAxes: axes,
	}
	if sg.Roots == nil {
		sg.Roots = []VertexID{}
	}

	for _, dt := range elements.DataTypes {
		addVertex(sg, dt.Metadata.RecordID.VertexID(), Vertex{Kind: VertexKindDataType, Inner: dt})
	}
	for _, pt := range elements.PropertyTypes {
		addVertex(sg, pt.Metadata.RecordID.VertexID(), Vertex{Kind: VertexKindPropertyType, Inner: pt})
	}
	for _, et := range elements.EntityTypes {
		addVertex(sg, et.Metadata.RecordID.VertexID(), Vertex{Kind: VertexKindEntityType, Inner: et})
	}
	for _, pt := range elements.PropertyTypes {
		addOntologyEdges(sg, pt.Metadata.RecordID.VertexID(), propertyTypeReferences(pt.Schema))
	}
	for _, et := range elements.EntityTypes {
		addOntologyEdges(sg, et.Metadata.RecordID.VertexID(), entityTypeReferences(et.Schema))
	}

	if err := addEntitiesByMutation(sg, elements.Entities); err != nil {
		return nil, err
	}

	for _, root := range sg.Roots {
		if _, ok := sg.Vertices[root.BaseID][root.RevisionID]; !ok {
			id := root
			return nil, &ConsistencyError{Message: "root has no vertex", VertexID: &id}
		}
	}
	return sg, nil
}

func addVertex(sg *Subgraph, id VertexID, v Vertex) {
	revisions, ok := sg.Vertices[id.BaseID]
	if !ok {
		revisions = make(map[string]Vertex)
		sg.Vertices[id.BaseID] = revisions
	}
	revisions[id.RevisionID] = v
}

func hasVertex(sg *Subgraph, baseID, revisionID string) bool {
	_, ok := sg.Vertices[baseID][revisionID]
	return ok
}

// addOutwardEdge appends edge under source and timestamp unless an equal
// edge is already there.
func addOutwardEdge(sg *Subgraph, source, timestamp string, edge OutwardEdge) {
	byTimestamp, ok := sg.Edges[source]
	if !ok {
		byTimestamp = make(map[string][]OutwardEdge)
		sg.Edges[source] = byTimestamp
	}
	for _, existing := range byTimestamp[timestamp] {
		if existing.equal(edge) {
			return
		}
	}
	byTimestamp[timestamp] = append(byTimestamp[timestamp], edge)
}

func addOntologyEdges(sg *Subgraph, source VertexID, refs typeReferences) {
	add := func(kind EdgeKind, targets []VersionedURL) {
		for _, target := range targets {
			tid, err := OntologyVertexID(target)
			if err != nil || !hasVertex(sg, tid.BaseID, tid.RevisionID) {
				continue
			}
			addOutwardEdge(sg, source.BaseID, source.RevisionID, OutwardEdge{
				Kind:          kind,
				RightEndpoint: EdgeEndpoint{BaseID: tid.BaseID, RevisionID: tid.RevisionID},
			})
			addOutwardEdge(sg, tid.BaseID, tid.RevisionID, OutwardEdge{
				Kind:          kind,
				Reversed:      true,
				RightEndpoint: EdgeEndpoint{BaseID: source.BaseID, RevisionID: source.RevisionID},
			})
		}
	}
	add(ConstrainsValuesOn, refs.dataTypes)
	add(ConstrainsPropertiesOn, refs.propertyTypes)
	add(ConstrainsLinksOn, refs.linkTypes)
	add(ConstrainsLinkDestinationsOn, refs.linkDestinations)
	add(InheritsFrom, refs.parents)
}

// addEntitiesByMutation adds entity vertices, IS_OF_TYPE edges to types in
// the subgraph and both directions of every link's left and right edges.
func addEntitiesByMutation(sg *Subgraph, entities []*Entity) error {
	var linkOrder []EntityID
	linkRevisions := make(map[EntityID][]*Entity)

	for _, e := range entities {
		validity, err := entityValidity(e, sg.TemporalAxes)
		if err != nil {
			return err
		}
		if err := validity.Validate(); err != nil {
			return inconsistent("entity %s: %v", e.ID(), err)
		}
		key := revisionKey(validity)
		addVertex(sg, VertexID{BaseID: string(e.ID()), RevisionID: key}, Vertex{Kind: VertexKindEntity, Inner: e})

		if tid, err := OntologyVertexID(e.Metadata.EntityTypeID); err == nil && hasVertex(sg, tid.BaseID, tid.RevisionID) {
			v := validity
			addOutwardEdge(sg, string(e.ID()), key, OutwardEdge{
				Kind:          IsOfType,
				RightEndpoint: EdgeEndpoint{BaseID: tid.BaseID, RevisionID: tid.RevisionID},
			})
			addOutwardEdge(sg, tid.BaseID, tid.RevisionID, OutwardEdge{
				Kind:          IsOfType,
				Reversed:      true,
				RightEndpoint: EdgeEndpoint{EntityID: e.ID(), Interval: &v},
			})
		}

		if e.IsLink() {
			if _, seen := linkRevisions[e.ID()]; !seen {
				linkOrder = append(linkOrder, e.ID())
			}
			linkRevisions[e.ID()] = append(linkRevisions[e.ID()], e)
		}
	}

	for _, linkID := range linkOrder {
		revisions := linkRevisions[linkID]
		data := revisions[len(revisions)-1].LinkData
		for _, endpoint := range []EntityID{data.LeftEntityID, data.RightEntityID} {
			if _, ok := sg.Vertices[string(endpoint)]; !ok {
				return inconsistent("link entity %s refers to entity %s which is not in the subgraph", linkID, endpoint)
			}
		}

		intervals := make([]temporal.Interval, 0, len(revisions))
		for _, rev := range revisions {
			validity, err := entityValidity(rev, sg.TemporalAxes)
			if err != nil {
				return err
			}
			intervals = append(intervals, validity)
		}

		for _, interval := range temporal.UnionOfIntervals(intervals...) {
			iv := interval
			key := revisionKey(iv)
			addOutwardEdge(sg, string(linkID), key, OutwardEdge{
				Kind:          HasLeftEntity,
				RightEndpoint: EdgeEndpoint{EntityID: data.LeftEntityID, Interval: &iv},
			})
			addOutwardEdge(sg, string(data.LeftEntityID), key, OutwardEdge{
				Kind:          HasLeftEntity,
				Reversed:      true,
				RightEndpoint: EdgeEndpoint{EntityID: linkID, Interval: &iv},
			})
			addOutwardEdge(sg, string(linkID), key, OutwardEdge{
				Kind:          HasRightEntity,
				RightEndpoint: EdgeEndpoint{EntityID: data.RightEntityID, Interval: &iv},
			})
			addOutwardEdge(sg, string(data.RightEntityID), key, OutwardEdge{
				Kind:          HasRightEntity,
				Reversed:      true,
				RightEndpoint: EdgeEndpoint{EntityID: linkID, Interval: &iv},
			})
		}
	}
	return nil
}
