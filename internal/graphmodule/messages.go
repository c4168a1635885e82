package graphmodule

import "github.com/roach88/blockwire/internal/subgraph"

// Application error codes carried in response errors.
const (
	CodeForbidden      = "FORBIDDEN"
	CodeInvalidInput   = "INVALID_INPUT"
	CodeNotFound       = "NOT_FOUND"
	CodeNotImplemented = "NOT_IMPLEMENTED"
)

// GetEntityData requests the subgraph rooted at one entity.
type GetEntityData struct {
	EntityID           subgraph.EntityID            `json:"entityId" yaml:"entityId"`
	GraphResolveDepths *subgraph.GraphResolveDepths `json:"graphResolveDepths,omitempty" yaml:"graphResolveDepths"`
}

// CreateEntityData describes a new entity. LinkData makes it a link.
type CreateEntityData struct {
	EntityTypeID subgraph.VersionedURL `json:"entityTypeId" yaml:"entityTypeId"`
	Properties   map[string]any        `json:"properties" yaml:"properties"`
	LinkData     *subgraph.LinkData    `json:"linkData,omitempty" yaml:"linkData"`
}

// UpdateEntityData replaces an entity's type and properties.
type UpdateEntityData struct {
	EntityID     subgraph.EntityID     `json:"entityId" yaml:"entityId"`
	EntityTypeID subgraph.VersionedURL `json:"entityTypeId" yaml:"entityTypeId"`
	Properties   map[string]any        `json:"properties" yaml:"properties"`
}

// DeleteEntityData names the entity to delete.
type DeleteEntityData struct {
	EntityID subgraph.EntityID `json:"entityId" yaml:"entityId"`
}

// QueryEntitiesData filters and sorts entities.
type QueryEntitiesData struct {
	Operation          QueryOperation               `json:"operation" yaml:"operation"`
	GraphResolveDepths *subgraph.GraphResolveDepths `json:"graphResolveDepths,omitempty" yaml:"graphResolveDepths"`
}

// QueryEntitiesResult is the matching entities as subgraph roots, together
// with the operation that was actually applied.
type QueryEntitiesResult struct {
	Results   *subgraph.Subgraph `json:"results"`
	Operation QueryOperation     `json:"operation"`
}

// GetEntityTypeData requests one entity type.
type GetEntityTypeData struct {
	EntityTypeID subgraph.VersionedURL `json:"entityTypeId" yaml:"entityTypeId"`
}

// QueryEntityTypesData filters and sorts entity types.
type QueryEntityTypesData struct {
	Operation          QueryOperation               `json:"operation" yaml:"operation"`
	GraphResolveDepths *subgraph.GraphResolveDepths `json:"graphResolveDepths,omitempty" yaml:"graphResolveDepths"`
}

// QueryEntityTypesResult is the matching entity types as subgraph roots.
type QueryEntityTypesResult struct {
	Results   *subgraph.Subgraph `json:"results"`
	Operation QueryOperation     `json:"operation"`
}

// UploadFileData describes a file to store, by URL.
type UploadFileData struct {
	URL         string `json:"url" yaml:"url"`
	Name        string `json:"name,omitempty" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description"`
}
