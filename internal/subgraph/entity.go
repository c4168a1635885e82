package subgraph

import (
	"slices"
	"strconv"
	"time"

	"github.com/roach88/blockwire/internal/temporal"
)

// sortedRevisionKeys returns revision keys oldest first. Timestamps sort
// chronologically and ontology versions numerically.
func sortedRevisionKeys(revisions map[string]Vertex) []string {
	keys := make([]string, 0, len(revisions))
	for k := range revisions {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareRevisionKeys)
	return keys
}

func compareRevisionKeys(a, b string) int {
	if ta, err := temporal.ParseTimestamp(a); err == nil {
		if tb, err := temporal.ParseTimestamp(b); err == nil {
			return ta.Compare(tb)
		}
	}
	if na, err := strconv.Atoi(a); err == nil {
		if nb, err := strconv.Atoi(b); err == nil {
			return na - nb
		}
	}
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}

// GetEntities returns entity revisions in the subgraph. With latest set only
// the newest revision of each entity is returned. Entities are ordered by ID.
func GetEntities(sg *Subgraph, latest bool) []*Entity {
	ids := make([]string, 0, len(sg.Vertices))
	for id := range sg.Vertices {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var out []*Entity
	for _, id := range ids {
		revisions := sg.Vertices[id]
		keys := sortedRevisionKeys(revisions)
		if latest && len(keys) > 0 {
			keys = keys[len(keys)-1:]
		}
		for _, k := range keys {
			if e, ok := revisions[k].Inner.(*Entity); ok {
				out = append(out, e)
			}
		}
	}
	return out
}

// GetEntityRevision returns the revision of id valid at the given time, or the
// latest revision when at is nil. It reports false when no revision matches.
func GetEntityRevision(sg *Subgraph, id EntityID, at *time.Time) (*Entity, bool) {
	revisions, ok := sg.Vertices[string(id)]
	if !ok {
		return nil, false
	}
	keys := sortedRevisionKeys(revisions)
	if at == nil {
		if len(keys) == 0 {
			return nil, false
		}
		e, ok := revisions[keys[len(keys)-1]].Inner.(*Entity)
		return e, ok
	}

	axis := sg.VariableAxis()
	for i := len(keys) - 1; i >= 0; i-- {
		e, ok := revisions[keys[i]].Inner.(*Entity)
		if !ok {
			continue
		}
		if interval, ok := e.Metadata.TemporalVersioning[axis]; ok {
			if temporal.IntervalContainsTimestamp(interval, *at) {
				return e, true
			}
		}
	}
	return nil, false
}

// GetEntityRevisionsByEntityID returns every revision of id whose validity
// overlaps interval, oldest first. A nil interval returns all revisions.
func GetEntityRevisionsByEntityID(sg *Subgraph, id EntityID, interval *temporal.Interval) []*Entity {
	revisions, ok := sg.Vertices[string(id)]
	if !ok {
		return nil
	}
	axis := sg.VariableAxis()

	var out []*Entity
	for _, k := range sortedRevisionKeys(revisions) {
		e, ok := revisions[k].Inner.(*Entity)
		if !ok {
			continue
		}
		if interval != nil {
			validity, ok := e.Metadata.TemporalVersioning[axis]
			if !ok || !temporal.IntervalOverlapsInterval(validity, *interval) {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// GetEntityTypeByVertexID returns the entity type stored at id.
func GetEntityTypeByVertexID(sg *Subgraph, id VertexID) (*EntityTypeWithMetadata, bool) {
	v, ok := sg.Vertices[id.BaseID][id.RevisionID]
	if !ok {
		return nil, false
	}
	et, ok := v.Inner.(*EntityTypeWithMetadata)
	return et, ok
}

// GetEntityTypeForEntity returns the entity type of e if the subgraph holds it.
func GetEntityTypeForEntity(sg *Subgraph, e *Entity) (*EntityTypeWithMetadata, bool) {
	id, err := OntologyVertexID(e.Metadata.EntityTypeID)
	if err != nil {
		return nil, false
	}
	return GetEntityTypeByVertexID(sg, id)
}
