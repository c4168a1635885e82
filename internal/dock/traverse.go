package dock

import (
	"fmt"

	"github.com/roach88/blockwire/internal/subgraph"
)

// DefaultDepths resolves one hop of links in each direction and no
// ontology edges.
var DefaultDepths = subgraph.GraphResolveDepths{
	HasLeftEntity:  subgraph.EdgeResolveDepths{Incoming: 1, Outgoing: 1},
	HasRightEntity: subgraph.EdgeResolveDepths{Incoming: 1, Outgoing: 1},
}

// ontologyDepth marks ontology edges as fully resolved; ontology subgraphs
// carry every stored type.
const ontologyDepth = 255

// entitySubgraphLocked builds a non-temporal subgraph rooted at roots. Each
// hop adds the links touching the current entities together with both of
// their endpoints. Entity types are included when depths ask for isOfType.
func (d *Dock) entitySubgraphLocked(roots []*subgraph.Entity, depths *subgraph.GraphResolveDepths) (*subgraph.Subgraph, error) {
	resolved := DefaultDepths
	if depths != nil {
		resolved = *depths
	}
	hops := int(max(
		resolved.HasLeftEntity.Incoming, resolved.HasLeftEntity.Outgoing,
		resolved.HasRightEntity.Incoming, resolved.HasRightEntity.Outgoing,
	))

	included := make(map[subgraph.EntityID]bool)
	include := func(id subgraph.EntityID) bool {
		if included[id] {
			return false
		}
		if _, ok := d.entities[id]; !ok {
			return false
		}
		included[id] = true
		return true
	}

	frontier := make([]subgraph.EntityID, 0, len(roots))
	rootIDs := make([]subgraph.VertexID, 0, len(roots))
	for _, e := range roots {
		if include(e.ID()) {
			frontier = append(frontier, e.ID())
		}
		id, err := subgraph.EntityVertexID(e, nil)
		if err != nil {
			return nil, err
		}
		rootIDs = append(rootIDs, id)
	}

	for hop := 0; hop < hops && len(frontier) > 0; hop++ {
		var next []subgraph.EntityID
		for _, id := range frontier {
			for _, other := range d.neighboursLocked(id) {
				if include(other) {
					next = append(next, other)
				}
			}
		}
		frontier = next
	}

	// A link is only valid alongside both of its endpoints.
	for _, id := range d.order {
		if !included[id] {
			continue
		}
		if ld := d.entities[id].LinkData; ld != nil {
			include(ld.LeftEntityID)
			include(ld.RightEntityID)
		}
	}

	var elements subgraph.Elements
	for _, id := range d.order {
		if included[id] {
			elements.Entities = append(elements.Entities, d.entities[id])
		}
	}
	if resolved.IsOfType.Outgoing > 0 {
		seen := make(map[subgraph.VersionedURL]bool)
		for _, e := range elements.Entities {
			seen[e.Metadata.EntityTypeID] = true
		}
		for _, et := range d.entityTypes {
			if seen[et.Metadata.RecordID.VersionedURL()] {
				elements.EntityTypes = append(elements.EntityTypes, et)
			}
		}
	}

	sg, err := subgraph.Build(elements, rootIDs, resolved, nil)
	if err != nil {
		return nil, fmt.Errorf("build entity subgraph: %w", err)
	}
	return sg, nil
}

// neighboursLocked returns the links touching id and, for each, both
// endpoints. For a link entity it also returns its own endpoints.
func (d *Dock) neighboursLocked(id subgraph.EntityID) []subgraph.EntityID {
	var out []subgraph.EntityID
	if ld := d.entities[id].LinkData; ld != nil {
		out = append(out, ld.LeftEntityID, ld.RightEntityID)
	}
	for _, other := range d.order {
		ld := d.entities[other].LinkData
		if ld == nil || (ld.LeftEntityID != id && ld.RightEntityID != id) {
			continue
		}
		out = append(out, other, ld.LeftEntityID, ld.RightEntityID)
	}
	return out
}

// ontologySubgraphLocked builds a subgraph of every stored type, rooted at
// roots.
func (d *Dock) ontologySubgraphLocked(roots []*subgraph.EntityTypeWithMetadata) (*subgraph.Subgraph, error) {
	rootIDs := make([]subgraph.VertexID, 0, len(roots))
	for _, et := range roots {
		rootIDs = append(rootIDs, et.Metadata.RecordID.VertexID())
	}
	full := subgraph.OutgoingEdgeResolveDepth{Outgoing: ontologyDepth}
	depths := subgraph.GraphResolveDepths{
		ConstrainsValuesOn:           full,
		ConstrainsPropertiesOn:       full,
		ConstrainsLinksOn:            full,
		ConstrainsLinkDestinationsOn: full,
		InheritsFrom:                 full,
	}
	sg, err := subgraph.Build(subgraph.Elements{
		DataTypes:     d.dataTypes,
		PropertyTypes: d.propertyTypes,
		EntityTypes:   d.entityTypes,
	}, rootIDs, depths, nil)
	if err != nil {
		return nil, fmt.Errorf("build ontology subgraph: %w", err)
	}
	return sg, nil
}
