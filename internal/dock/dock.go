package dock

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/roach88/blockwire/internal/graphmodule"
	"github.com/roach88/blockwire/internal/subgraph"
)

// Property keys and type of entities created by uploadFile.
const (
	RemoteFileEntityTypeID subgraph.VersionedURL = "https://blockprotocol.org/@blockprotocol/types/entity-type/remote-file/v/1"

	FileURLKey     = "https://blockprotocol.org/@blockprotocol/types/property-type/file-url/"
	FileNameKey    = "https://blockprotocol.org/@blockprotocol/types/property-type/file-name/"
	DescriptionKey = "https://blockprotocol.org/@blockprotocol/types/property-type/description/"
)

const readonlyMessage = "Operation can't be carried out in read-only mode"

// Option configures a Dock.
type Option func(*Dock)

// WithReadonly starts the dock in readonly mode.
func WithReadonly(readonly bool) Option {
	return func(d *Dock) { d.readonly = readonly }
}

// WithIDGenerator sets the source of new entity IDs. Default: random UUIDs.
func WithIDGenerator(fn func() string) Option {
	return func(d *Dock) { d.newID = fn }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(d *Dock) { d.logger = l }
}

// Dock stores entities and ontology types and serves graph requests.
//
// Dock is safe for concurrent use.
type Dock struct {
	logger *slog.Logger
	newID  func() string

	mu            sync.RWMutex
	readonly      bool
	entities      map[subgraph.EntityID]*subgraph.Entity
	order         []subgraph.EntityID
	dataTypes     []*subgraph.DataTypeWithMetadata
	propertyTypes []*subgraph.PropertyTypeWithMetadata
	entityTypes   []*subgraph.EntityTypeWithMetadata
	attached      []*attachment
}

// New creates a dock holding elements.
func New(elements subgraph.Elements, opts ...Option) *Dock {
	d := &Dock{
		logger:        slog.Default(),
		newID:         uuid.NewString,
		entities:      make(map[subgraph.EntityID]*subgraph.Entity),
		dataTypes:     slices.Clone(elements.DataTypes),
		propertyTypes: slices.Clone(elements.PropertyTypes),
		entityTypes:   slices.Clone(elements.EntityTypes),
	}
	for _, opt := range opts {
		opt(d)
	}
	for _, e := range elements.Entities {
		d.put(e)
	}
	return d
}

// put stores e, keeping first-insertion order. Callers hold mu or own d.
func (d *Dock) put(e *subgraph.Entity) {
	if _, ok := d.entities[e.ID()]; !ok {
		d.order = append(d.order, e.ID())
	}
	d.entities[e.ID()] = e
}

// Readonly reports whether mutations are refused.
func (d *Dock) Readonly() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.readonly
}

// SetReadonly switches readonly mode and pushes the flag to every attached
// embedder.
func (d *Dock) SetReadonly(readonly bool) error {
	d.mu.Lock()
	d.readonly = readonly
	attached := slices.Clone(d.attached)
	d.mu.Unlock()

	for _, a := range attached {
		if err := a.handler.SetReadonly(readonly); err != nil {
			return fmt.Errorf("push readonly: %w", err)
		}
	}
	return nil
}

// Entities returns every stored entity in insertion order.
func (d *Dock) Entities() []*subgraph.Entity {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entitiesLocked()
}

func (d *Dock) entitiesLocked() []*subgraph.Entity {
	out := make([]*subgraph.Entity, 0, len(d.order))
	for _, id := range d.order {
		out = append(out, d.entities[id])
	}
	return out
}

// Entity returns the stored entity with id.
func (d *Dock) Entity(id subgraph.EntityID) (*subgraph.Entity, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.entities[id]
	return e, ok
}

// GetEntity returns the subgraph rooted at the requested entity.
func (d *Dock) GetEntity(_ context.Context, data graphmodule.GetEntityData) (*subgraph.Subgraph, error) {
	if data.EntityID == "" {
		return nil, graphmodule.Fail(graphmodule.CodeInvalidInput, "getEntity requires an entityId")
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	e, ok := d.entities[data.EntityID]
	if !ok {
		return nil, notFound(data.EntityID)
	}
	return d.entitySubgraphLocked([]*subgraph.Entity{e}, data.GraphResolveDepths)
}

// CreateEntity stores a new entity under a fresh ID.
func (d *Dock) CreateEntity(_ context.Context, data graphmodule.CreateEntityData) (*subgraph.Entity, error) {
	if data.EntityTypeID == "" {
		return nil, graphmodule.Fail(graphmodule.CodeInvalidInput, "createEntity requires an entityTypeId")
	}

	d.mu.Lock()
	if d.readonly {
		d.mu.Unlock()
		return nil, graphmodule.Fail(graphmodule.CodeForbidden, readonlyMessage)
	}
	if ld := data.LinkData; ld != nil {
		for _, end := range []subgraph.EntityID{ld.LeftEntityID, ld.RightEntityID} {
			if _, ok := d.entities[end]; !ok {
				d.mu.Unlock()
				return nil, graphmodule.Fail(graphmodule.CodeInvalidInput,
					fmt.Sprintf("link endpoint %q does not exist", end))
			}
		}
	}

	e := &subgraph.Entity{
		Metadata: subgraph.EntityMetadata{
			RecordID:     subgraph.EntityRecordID{EntityID: subgraph.EntityID(d.newID()), EditionID: "1"},
			EntityTypeID: data.EntityTypeID,
		},
		Properties: cloneProperties(data.Properties),
	}
	if data.LinkData != nil {
		ld := *data.LinkData
		e.LinkData = &ld
	}
	d.put(e)
	d.mu.Unlock()

	d.logger.Debug("entity created", "entity_id", e.ID(), "entity_type_id", e.Metadata.EntityTypeID, "link", e.IsLink())
	d.refresh()
	return e, nil
}

// UpdateEntity replaces an entity's type and properties as a new edition.
func (d *Dock) UpdateEntity(_ context.Context, data graphmodule.UpdateEntityData) (*subgraph.Entity, error) {
	d.mu.Lock()
	if d.readonly {
		d.mu.Unlock()
		return nil, graphmodule.Fail(graphmodule.CodeForbidden, readonlyMessage)
	}
	prev, ok := d.entities[data.EntityID]
	if !ok {
		d.mu.Unlock()
		return nil, notFound(data.EntityID)
	}

	next := &subgraph.Entity{
		Metadata:   prev.Metadata,
		Properties: cloneProperties(data.Properties),
		LinkData:   prev.LinkData,
	}
	next.Metadata.RecordID.EditionID = nextEdition(prev.Metadata.RecordID.EditionID)
	if data.EntityTypeID != "" {
		next.Metadata.EntityTypeID = data.EntityTypeID
	}
	d.put(next)
	d.mu.Unlock()

	d.logger.Debug("entity updated", "entity_id", next.ID(), "edition_id", next.Metadata.RecordID.EditionID)
	d.refresh()
	return next, nil
}

// DeleteEntity removes an entity together with every link attached to it.
func (d *Dock) DeleteEntity(_ context.Context, data graphmodule.DeleteEntityData) (bool, error) {
	d.mu.Lock()
	if d.readonly {
		d.mu.Unlock()
		return false, graphmodule.Fail(graphmodule.CodeForbidden, readonlyMessage)
	}
	if _, ok := d.entities[data.EntityID]; !ok {
		d.mu.Unlock()
		return false, notFound(data.EntityID)
	}

	removed := []subgraph.EntityID{data.EntityID}
	for _, e := range d.entities {
		if ld := e.LinkData; ld != nil && (ld.LeftEntityID == data.EntityID || ld.RightEntityID == data.EntityID) {
			removed = append(removed, e.ID())
		}
	}
	for _, id := range removed {
		delete(d.entities, id)
	}
	d.order = slices.DeleteFunc(d.order, func(id subgraph.EntityID) bool { return slices.Contains(removed, id) })
	d.mu.Unlock()

	d.logger.Debug("entity deleted", "entity_id", data.EntityID, "removed", len(removed))
	d.refresh()
	return true, nil
}

// QueryEntities filters and sorts the stored entities. Matches become the
// roots of the returned subgraph.
func (d *Dock) QueryEntities(_ context.Context, data graphmodule.QueryEntitiesData) (*graphmodule.QueryEntitiesResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	matches, err := graphmodule.Apply(d.entitiesLocked(), data.Operation)
	if err != nil {
		return nil, graphmodule.Fail(graphmodule.CodeInvalidInput, err.Error())
	}
	sg, err := d.entitySubgraphLocked(matches, data.GraphResolveDepths)
	if err != nil {
		return nil, err
	}
	return &graphmodule.QueryEntitiesResult{Results: sg, Operation: data.Operation}, nil
}

// GetEntityType returns the ontology subgraph rooted at one entity type.
func (d *Dock) GetEntityType(_ context.Context, data graphmodule.GetEntityTypeData) (*subgraph.Subgraph, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	for _, et := range d.entityTypes {
		if et.Metadata.RecordID.VersionedURL() == data.EntityTypeID {
			return d.ontologySubgraphLocked([]*subgraph.EntityTypeWithMetadata{et})
		}
	}
	return nil, graphmodule.Fail(graphmodule.CodeNotFound,
		fmt.Sprintf("Could not find entity type with entityTypeId '%s'", data.EntityTypeID))
}

// QueryEntityTypes filters and sorts the stored entity types.
func (d *Dock) QueryEntityTypes(_ context.Context, data graphmodule.QueryEntityTypesData) (*graphmodule.QueryEntityTypesResult, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	matches, err := graphmodule.Apply(d.entityTypes, data.Operation)
	if err != nil {
		return nil, graphmodule.Fail(graphmodule.CodeInvalidInput, err.Error())
	}
	sg, err := d.ontologySubgraphLocked(matches)
	if err != nil {
		return nil, err
	}
	return &graphmodule.QueryEntityTypesResult{Results: sg, Operation: data.Operation}, nil
}

// UploadFile records a remote file as an entity.
func (d *Dock) UploadFile(ctx context.Context, data graphmodule.UploadFileData) (*subgraph.Entity, error) {
	url := strings.TrimSpace(data.URL)
	if url == "" {
		return nil, graphmodule.Fail(graphmodule.CodeInvalidInput, "uploadFile requires a url")
	}
	props := map[string]any{FileURLKey: url}
	if data.Name != "" {
		props[FileNameKey] = data.Name
	}
	if data.Description != "" {
		props[DescriptionKey] = data.Description
	}
	return d.CreateEntity(ctx, graphmodule.CreateEntityData{
		EntityTypeID: RemoteFileEntityTypeID,
		Properties:   props,
	})
}

func notFound(id subgraph.EntityID) error {
	return graphmodule.Fail(graphmodule.CodeNotFound, fmt.Sprintf("Could not find entity with entityId '%s'", id))
}

func nextEdition(edition string) string {
	n, err := strconv.Atoi(edition)
	if err != nil {
		return edition + "+1"
	}
	return strconv.Itoa(n + 1)
}

func cloneProperties(p map[string]any) map[string]any {
	out := make(map[string]any, len(p))
	for k, v := range p {
		out[k] = v
	}
	return out
}

var _ graphmodule.Service = (*Dock)(nil)
