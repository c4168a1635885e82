package subgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/blockwire/internal/temporal"
)

const (
	personTypeID = VersionedURL("https://example.com/@alice/types/entity-type/person/v/1")
	friendTypeID = VersionedURL("https://example.com/@alice/types/entity-type/friend-of/v/1")
	nameTypeID   = VersionedURL("https://example.com/@alice/types/property-type/name/v/1")
	textTypeID   = VersionedURL("https://blockprotocol.org/@blockprotocol/types/data-type/text/v/1")
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func from(start string) temporal.Interval {
	return temporal.NewInterval(temporal.InclusiveBound(day(start)), temporal.UnboundedBound())
}

func between(start, end string) temporal.Interval {
	return temporal.NewInterval(temporal.InclusiveBound(day(start)), temporal.ExclusiveBound(day(end)))
}

func newEntity(id, edition string, validity *temporal.Interval) *Entity {
	e := &Entity{
		Metadata: EntityMetadata{
			RecordID:     EntityRecordID{EntityID: EntityID(id), EditionID: edition},
			EntityTypeID: personTypeID,
		},
		Properties: map[string]any{"name": id},
	}
	if validity != nil {
		e.Metadata.TemporalVersioning = map[TemporalAxis]temporal.Interval{
			DecisionTime:    *validity,
			TransactionTime: *validity,
		}
	}
	return e
}

func newLink(id, edition, left, right string, validity *temporal.Interval) *Entity {
	e := newEntity(id, edition, validity)
	e.Metadata.EntityTypeID = friendTypeID
	e.Properties = map[string]any{}
	e.LinkData = &LinkData{LeftEntityID: EntityID(left), RightEntityID: EntityID(right)}
	return e
}

func temporalAxes(start, end string) *SubgraphTemporalAxes {
	pinned := day(end)
	axes := QueryTemporalAxes{
		Pinned: PinnedTemporalAxis{Axis: TransactionTime, Timestamp: &pinned},
		Variable: VariableTemporalAxis{
			Axis: DecisionTime,
			Interval: temporal.NewInterval(
				temporal.InclusiveBound(day(start)),
				temporal.InclusiveBound(day(end)),
			),
		},
	}
	return &SubgraphTemporalAxes{Initial: axes, Resolved: axes}
}

func ontologyElements() Elements {
	return Elements{
		DataTypes: []*DataTypeWithMetadata{{
			Schema:   map[string]any{"title": "Text", "type": "string"},
			Metadata: OntologyMetadata{RecordID: OntologyRecordID{BaseURL: "https://blockprotocol.org/@blockprotocol/types/data-type/text/", Version: 1}},
		}},
		PropertyTypes: []*PropertyTypeWithMetadata{{
			Schema: map[string]any{
				"title": "Name",
				"oneOf": []any{map[string]any{"$ref": string(textTypeID)}},
			},
			Metadata: OntologyMetadata{RecordID: OntologyRecordID{BaseURL: "https://example.com/@alice/types/property-type/name/", Version: 1}},
		}},
		EntityTypes: []*EntityTypeWithMetadata{
			{
				Schema: map[string]any{
					"title":      "Person",
					"properties": map[string]any{"https://example.com/@alice/types/property-type/name/": map[string]any{"$ref": string(nameTypeID)}},
					"links": map[string]any{
						string(friendTypeID): map[string]any{
							"type":  "array",
							"items": map[string]any{"oneOf": []any{map[string]any{"$ref": string(personTypeID)}}},
						},
					},
				},
				Metadata: OntologyMetadata{RecordID: OntologyRecordID{BaseURL: "https://example.com/@alice/types/entity-type/person/", Version: 1}},
			},
			{
				Schema: map[string]any{
					"title": "Friend Of",
					"allOf": []any{map[string]any{"$ref": "https://blockprotocol.org/@blockprotocol/types/entity-type/link/v/1"}},
				},
				Metadata: OntologyMetadata{RecordID: OntologyRecordID{BaseURL: "https://example.com/@alice/types/entity-type/friend-of/", Version: 1}},
			},
		},
	}
}

// nonTemporalGraph builds a <- l3 - d, a - l1 -> b, a - l2 -> c.
func nonTemporalGraph(t *testing.T) *Subgraph {
	t.Helper()
	els := Elements{Entities: []*Entity{
		newEntity("a", "1", nil),
		newEntity("b", "1", nil),
		newEntity("c", "1", nil),
		newEntity("d", "1", nil),
		newLink("l1", "1", "a", "b", nil),
		newLink("l2", "1", "a", "c", nil),
		newLink("l3", "1", "d", "a", nil),
	}}
	root, err := EntityVertexID(els.Entities[0], nil)
	require.NoError(t, err)

	sg, err := Build(els, []VertexID{root}, GraphResolveDepths{}, nil)
	require.NoError(t, err)
	return sg
}

// temporalGraph builds two revisions of a, one of b and a link from a to b
// valid from March 2020.
func temporalGraph(t *testing.T) *Subgraph {
	t.Helper()
	aOld := between("2020-01-01", "2020-06-01")
	aNew := from("2020-06-01")
	b := from("2020-01-01")
	l := from("2020-03-01")

	axes := temporalAxes("2020-01-01", "2021-01-01")
	els := Elements{Entities: []*Entity{
		newEntity("a", "1", &aOld),
		newEntity("a", "2", &aNew),
		newEntity("b", "1", &b),
		newLink("l1", "1", "a", "b", &l),
	}}
	root, err := EntityVertexID(els.Entities[1], axes)
	require.NoError(t, err)

	sg, err := Build(els, []VertexID{root}, GraphResolveDepths{}, axes)
	require.NoError(t, err)
	return sg
}

func entityIDs(entities []*Entity) []string {
	out := make([]string, 0, len(entities))
	for _, e := range entities {
		out = append(out, string(e.ID())+"@"+e.Metadata.RecordID.EditionID)
	}
	return out
}
