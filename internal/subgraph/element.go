package subgraph

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/roach88/blockwire/internal/temporal"
)

// EntityID identifies an entity across all of its revisions.
type EntityID string

// TemporalAxis names one of the two time dimensions an entity is versioned on.
type TemporalAxis string

const (
	DecisionTime    TemporalAxis = "decisionTime"
	TransactionTime TemporalAxis = "transactionTime"
)

// EntityRecordID identifies one stored edition of an entity.
type EntityRecordID struct {
	EntityID  EntityID `json:"entityId"`
	EditionID string   `json:"editionId"`
}

// EntityMetadata describes an entity revision.
type EntityMetadata struct {
	RecordID           EntityRecordID                     `json:"recordId"`
	EntityTypeID       VersionedURL                       `json:"entityTypeId"`
	TemporalVersioning map[TemporalAxis]temporal.Interval `json:"temporalVersioning,omitempty"`
}

// LinkData marks an entity as a link from LeftEntityID to RightEntityID.
type LinkData struct {
	LeftEntityID  EntityID `json:"leftEntityId"`
	RightEntityID EntityID `json:"rightEntityId"`
}

// Entity is one revision of an entity.
type Entity struct {
	Metadata   EntityMetadata `json:"metadata"`
	Properties map[string]any `json:"properties"`
	LinkData   *LinkData      `json:"linkData,omitempty"`
}

// ID returns the entity's identifier.
func (e *Entity) ID() EntityID { return e.Metadata.RecordID.EntityID }

// IsLink reports whether e is a link entity.
func (e *Entity) IsLink() bool { return e.LinkData != nil }

// OntologyRecordID identifies a version of an ontology type.
type OntologyRecordID struct {
	BaseURL BaseURL `json:"baseUrl"`
	Version int     `json:"version"`
}

// VersionedURL returns the record's versioned URL.
func (r OntologyRecordID) VersionedURL() VersionedURL { return NewVersionedURL(r.BaseURL, r.Version) }

// VertexID returns the vertex identifier the record is stored under.
func (r OntologyRecordID) VertexID() VertexID {
	return VertexID{BaseID: string(r.BaseURL), RevisionID: strconv.Itoa(r.Version)}
}

// OntologyMetadata describes an ontology type version.
type OntologyMetadata struct {
	RecordID OntologyRecordID `json:"recordId"`
}

// DataTypeWithMetadata is a data type schema and its record.
type DataTypeWithMetadata struct {
	Schema   map[string]any   `json:"schema"`
	Metadata OntologyMetadata `json:"metadata"`
}

// PropertyTypeWithMetadata is a property type schema and its record.
type PropertyTypeWithMetadata struct {
	Schema   map[string]any   `json:"schema"`
	Metadata OntologyMetadata `json:"metadata"`
}

// EntityTypeWithMetadata is an entity type schema and its record.
type EntityTypeWithMetadata struct {
	Schema   map[string]any   `json:"schema"`
	Metadata OntologyMetadata `json:"metadata"`
}

// Element is the inner value of a vertex.
//
// This is a sealed interface: only types in this package implement it.
type Element interface {
	element()
}

func (*Entity) element()                   {}
func (*DataTypeWithMetadata) element()     {}
func (*PropertyTypeWithMetadata) element() {}
func (*EntityTypeWithMetadata) element()   {}

// VertexKind discriminates vertex payloads.
type VertexKind string

const (
	VertexKindDataType     VertexKind = "dataType"
	VertexKindPropertyType VertexKind = "propertyType"
	VertexKindEntityType   VertexKind = "entityType"
	VertexKindEntity       VertexKind = "entity"
)

// Vertex is a tagged element.
type Vertex struct {
	Kind  VertexKind `json:"kind"`
	Inner Element    `json:"inner"`
}

// UnmarshalJSON decodes Inner according to Kind.
func (v *Vertex) UnmarshalJSON(data []byte) error {
	var raw struct {
		Kind  VertexKind      `json:"kind"`
		Inner json.RawMessage `json:"inner"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var inner Element
	switch raw.Kind {
	case VertexKindEntity:
		inner = &Entity{}
	case VertexKindDataType:
		inner = &DataTypeWithMetadata{}
	case VertexKindPropertyType:
		inner = &PropertyTypeWithMetadata{}
	case VertexKindEntityType:
		inner = &EntityTypeWithMetadata{}
	default:
		return fmt.Errorf("unknown vertex kind %q", raw.Kind)
	}
	if err := json.Unmarshal(raw.Inner, inner); err != nil {
		return fmt.Errorf("decode %s vertex: %w", raw.Kind, err)
	}
	v.Kind = raw.Kind
	v.Inner = inner
	return nil
}
