package subgraph

import (
	"slices"

	"github.com/roach88/blockwire/internal/temporal"
)

// LinkEntityAndRightEntity pairs a link with the entity it points to. In a
// non-temporal subgraph each slice holds exactly one entity; in a temporal
// subgraph they hold every revision inside the search interval.
type LinkEntityAndRightEntity struct {
	LinkEntity  []*Entity `json:"linkEntity"`
	RightEntity []*Entity `json:"rightEntity"`
}

// GetOutgoingLinksForEntity returns the link entities whose left entity is id.
// In a temporal subgraph, interval limits the search and defaults to the
// latest instant; it is ignored otherwise.
func GetOutgoingLinksForEntity(sg *Subgraph, id EntityID, interval *temporal.Interval) ([]*Entity, error) {
	return neighbours(sg, id, interval, isOutgoingLinkEdge)
}

// GetIncomingLinksForEntity returns the link entities whose right entity is id.
func GetIncomingLinksForEntity(sg *Subgraph, id EntityID, interval *temporal.Interval) ([]*Entity, error) {
	return neighbours(sg, id, interval, isIncomingLinkEdge)
}

// GetLeftEntityForLinkEntity returns the left entity of a link.
func GetLeftEntityForLinkEntity(sg *Subgraph, id EntityID, interval *temporal.Interval) ([]*Entity, error) {
	return neighbours(sg, id, interval, isHasLeftEntityEdge)
}

// GetRightEntityForLinkEntity returns the right entity of a link.
func GetRightEntityForLinkEntity(sg *Subgraph, id EntityID, interval *temporal.Interval) ([]*Entity, error) {
	return neighbours(sg, id, interval, isHasRightEntityEdge)
}

// GetOutgoingLinkAndTargetEntities returns one entry per outgoing link of id,
// in the order the links are first found. In a non-temporal subgraph every
// link must have exactly one right entity.
func GetOutgoingLinkAndTargetEntities(sg *Subgraph, id EntityID, interval *temporal.Interval) ([]LinkEntityAndRightEntity, error) {
	links, err := GetOutgoingLinksForEntity(sg, id, interval)
	if err != nil {
		return nil, err
	}

	if !sg.IsTemporal() {
		out := make([]LinkEntityAndRightEntity, 0, len(links))
		for _, link := range links {
			right, err := GetRightEntityForLinkEntity(sg, link.ID(), nil)
			if err != nil {
				return nil, err
			}
			switch len(right) {
			case 0:
				return nil, inconsistent("no right entity found for link entity %s", link.ID())
			case 1:
			default:
				return nil, inconsistent("right entity of link entity %s is not a unique revision (%d found)", link.ID(), len(right))
			}
			out = append(out, LinkEntityAndRightEntity{
				LinkEntity:  []*Entity{link},
				RightEntity: right,
			})
		}
		return out, nil
	}

	var order []EntityID
	grouped := make(map[EntityID][]*Entity)
	for _, link := range links {
		if _, seen := grouped[link.ID()]; !seen {
			order = append(order, link.ID())
		}
		grouped[link.ID()] = append(grouped[link.ID()], link)
	}

	out := make([]LinkEntityAndRightEntity, 0, len(order))
	for _, linkID := range order {
		right, err := GetRightEntityForLinkEntity(sg, linkID, interval)
		if err != nil {
			return nil, err
		}
		out = append(out, LinkEntityAndRightEntity{
			LinkEntity:  grouped[linkID],
			RightEntity: right,
		})
	}
	return out, nil
}

// neighbours follows the entity edges of id that satisfy match.
func neighbours(sg *Subgraph, id EntityID, interval *temporal.Interval, match func(OutwardEdge) bool) ([]*Entity, error) {
	byTimestamp, ok := sg.Edges[string(id)]
	if !ok {
		return nil, nil
	}
	if sg.IsTemporal() {
		return temporalNeighbours(sg, byTimestamp, interval, match)
	}

	var out []*Entity
	seen := make(map[EntityID]bool)
	for _, ts := range sortedEdgeTimestamps(byTimestamp) {
		for _, edge := range byTimestamp[ts] {
			if !match(edge) || !edge.RightEndpoint.IsEntity() {
				continue
			}
			target := edge.RightEndpoint.EntityID
			if seen[target] {
				continue
			}
			e, ok := GetEntityRevision(sg, target, nil)
			if !ok {
				return nil, inconsistent("entity with ID %s was not found in the subgraph", target)
			}
			seen[target] = true
			out = append(out, e)
		}
	}
	return out, nil
}

func temporalNeighbours(sg *Subgraph, byTimestamp map[string][]OutwardEdge, interval *temporal.Interval, match func(OutwardEdge) bool) ([]*Entity, error) {
	search := interval
	if search == nil {
		latest, err := GetLatestInstantInterval(sg)
		if err != nil {
			return nil, err
		}
		search = &latest
	}

	var out []*Entity
	seen := make(map[EntityRecordID]bool)
	for _, ts := range sortedEdgeTimestamps(byTimestamp) {
		if created, err := temporal.ParseTimestamp(ts); err == nil &&
			temporal.IntervalIsStrictlyAfterInterval(temporal.IntervalForTimestamp(created), *search) {
			continue
		}
		for _, edge := range byTimestamp[ts] {
			if !match(edge) || !edge.RightEndpoint.IsEntity() {
				continue
			}
			target := edge.RightEndpoint.EntityID
			if edge.RightEndpoint.Interval == nil {
				return nil, inconsistent("edge to entity %s has no interval in a temporal subgraph", target)
			}
			overlap := temporal.IntervalIntersectionWithInterval(*search, *edge.RightEndpoint.Interval)
			if overlap == nil {
				// The edge was created within the search interval but is
				// not valid inside it.
				continue
			}
			if _, ok := sg.Vertices[string(target)]; !ok {
				return nil, inconsistent("entity with ID %s was not found in the subgraph", target)
			}
			for _, e := range GetEntityRevisionsByEntityID(sg, target, overlap) {
				if seen[e.Metadata.RecordID] {
					continue
				}
				seen[e.Metadata.RecordID] = true
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func sortedEdgeTimestamps(byTimestamp map[string][]OutwardEdge) []string {
	keys := make([]string, 0, len(byTimestamp))
	for k := range byTimestamp {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareRevisionKeys)
	return keys
}
