package graphmodule

import (
	"context"

	"github.com/roach88/blockwire/internal/protocol"
	"github.com/roach88/blockwire/internal/subgraph"
)

// BlockHandler is the block side of the graph module.
type BlockHandler struct {
	module *protocol.Module
}

// NewBlockHandler creates a block-side graph module. opts are passed to the
// underlying protocol module.
func NewBlockHandler(opts ...protocol.ModuleOption) *BlockHandler {
	opts = append([]protocol.ModuleOption{protocol.WithDefinition(Definition())}, opts...)
	return &BlockHandler{module: protocol.NewModule(ModuleName, protocol.SourceBlock, opts...)}
}

// Module returns the underlying protocol module.
func (b *BlockHandler) Module() *protocol.Module { return b.module }

// Initialize attaches the handler to the block's endpoint and starts the
// handshake.
func (b *BlockHandler) Initialize(ep *protocol.Endpoint) error { return b.module.Initialize(ep) }

// Destroy detaches the handler.
func (b *BlockHandler) Destroy() { b.module.Destroy() }

// OnBlockEntitySubgraph is called with the block's subgraph, during the
// handshake and whenever the embedder pushes a new one.
func (b *BlockHandler) OnBlockEntitySubgraph(fn func(context.Context, *subgraph.Subgraph) error) error {
	return b.module.On(MsgBlockEntitySubgraph, push(fn))
}

// OnReadonly is called with the readonly flag, during the handshake and
// whenever the embedder changes it.
func (b *BlockHandler) OnReadonly(fn func(context.Context, bool) error) error {
	return b.module.On(MsgReadonly, push(fn))
}

// GetEntity fetches the subgraph rooted at an entity.
func (b *BlockHandler) GetEntity(ctx context.Context, data GetEntityData) (*subgraph.Subgraph, error) {
	return request[*subgraph.Subgraph](ctx, b.module, MsgGetEntity, data)
}

// CreateEntity creates an entity and returns it.
func (b *BlockHandler) CreateEntity(ctx context.Context, data CreateEntityData) (*subgraph.Entity, error) {
	return request[*subgraph.Entity](ctx, b.module, MsgCreateEntity, data)
}

// UpdateEntity replaces an entity's properties and returns the new revision.
func (b *BlockHandler) UpdateEntity(ctx context.Context, data UpdateEntityData) (*subgraph.Entity, error) {
	return request[*subgraph.Entity](ctx, b.module, MsgUpdateEntity, data)
}

// DeleteEntity deletes an entity.
func (b *BlockHandler) DeleteEntity(ctx context.Context, data DeleteEntityData) error {
	_, err := request[bool](ctx, b.module, MsgDeleteEntity, data)
	return err
}

// QueryEntities filters and sorts entities.
func (b *BlockHandler) QueryEntities(ctx context.Context, data QueryEntitiesData) (*QueryEntitiesResult, error) {
	return request[*QueryEntitiesResult](ctx, b.module, MsgQueryEntities, data)
}

// GetEntityType fetches the subgraph rooted at an entity type.
func (b *BlockHandler) GetEntityType(ctx context.Context, data GetEntityTypeData) (*subgraph.Subgraph, error) {
	return request[*subgraph.Subgraph](ctx, b.module, MsgGetEntityType, data)
}

// QueryEntityTypes filters and sorts entity types.
func (b *BlockHandler) QueryEntityTypes(ctx context.Context, data QueryEntityTypesData) (*QueryEntityTypesResult, error) {
	return request[*QueryEntityTypesResult](ctx, b.module, MsgQueryEntityTypes, data)
}

// UploadFile stores a file and returns the file entity.
func (b *BlockHandler) UploadFile(ctx context.Context, data UploadFileData) (*subgraph.Entity, error) {
	return request[*subgraph.Entity](ctx, b.module, MsgUploadFile, data)
}
