package graphmodule

import (
	"context"
	"sync"

	"github.com/roach88/blockwire/internal/protocol"
	"github.com/roach88/blockwire/internal/subgraph"
)

// Service answers every graph request. Implementations report application
// failures with Fail.
type Service interface {
	GetEntity(ctx context.Context, data GetEntityData) (*subgraph.Subgraph, error)
	CreateEntity(ctx context.Context, data CreateEntityData) (*subgraph.Entity, error)
	UpdateEntity(ctx context.Context, data UpdateEntityData) (*subgraph.Entity, error)
	DeleteEntity(ctx context.Context, data DeleteEntityData) (bool, error)
	QueryEntities(ctx context.Context, data QueryEntitiesData) (*QueryEntitiesResult, error)
	GetEntityType(ctx context.Context, data GetEntityTypeData) (*subgraph.Subgraph, error)
	QueryEntityTypes(ctx context.Context, data QueryEntityTypesData) (*QueryEntityTypesResult, error)
	UploadFile(ctx context.Context, data UploadFileData) (*subgraph.Entity, error)
}

// EmbedderOption configures an EmbedderHandler.
type EmbedderOption func(*EmbedderHandler)

// WithBlockEntitySubgraph sets the subgraph sent during the handshake.
func WithBlockEntitySubgraph(sg *subgraph.Subgraph) EmbedderOption {
	return func(e *EmbedderHandler) { e.blockEntitySubgraph = sg }
}

// WithReadonly sets the readonly flag sent during the handshake.
func WithReadonly(readonly bool) EmbedderOption {
	return func(e *EmbedderHandler) { e.readonly = readonly }
}

// WithModuleOptions passes opts to the underlying protocol module.
func WithModuleOptions(opts ...protocol.ModuleOption) EmbedderOption {
	return func(e *EmbedderHandler) { e.moduleOpts = append(e.moduleOpts, opts...) }
}

// EmbedderHandler is the embedder side of the graph module.
type EmbedderHandler struct {
	module     *protocol.Module
	moduleOpts []protocol.ModuleOption

	mu                  sync.Mutex
	blockEntitySubgraph *subgraph.Subgraph
	readonly            bool
}

// NewEmbedderHandler creates an embedder-side graph module.
func NewEmbedderHandler(opts ...EmbedderOption) *EmbedderHandler {
	e := &EmbedderHandler{}
	for _, opt := range opts {
		opt(e)
	}
	moduleOpts := append([]protocol.ModuleOption{
		protocol.WithDefinition(Definition()),
		protocol.WithInitPayload(e.initPayload),
	}, e.moduleOpts...)
	e.module = protocol.NewModule(ModuleName, protocol.SourceEmbedder, moduleOpts...)
	return e
}

// Module returns the underlying protocol module.
func (e *EmbedderHandler) Module() *protocol.Module { return e.module }

// Initialize attaches the handler to the endpoint blocks are nested under.
func (e *EmbedderHandler) Initialize(ep *protocol.Endpoint) error { return e.module.Initialize(ep) }

// Destroy detaches the handler.
func (e *EmbedderHandler) Destroy() { e.module.Destroy() }

func (e *EmbedderHandler) initPayload() map[string]any {
	e.mu.Lock()
	defer e.mu.Unlock()
	payload := map[string]any{MsgReadonly: e.readonly}
	if e.blockEntitySubgraph != nil {
		payload[MsgBlockEntitySubgraph] = e.blockEntitySubgraph
	}
	return payload
}

// Readonly returns the current readonly flag.
func (e *EmbedderHandler) Readonly() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.readonly
}

// BlockEntitySubgraph returns the current block subgraph.
func (e *EmbedderHandler) BlockEntitySubgraph() *subgraph.Subgraph {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.blockEntitySubgraph
}

// SetReadonly stores the flag and pushes it to the block.
func (e *EmbedderHandler) SetReadonly(readonly bool) error {
	e.mu.Lock()
	e.readonly = readonly
	e.mu.Unlock()
	_, err := e.module.SendMessage(protocol.MessageContents{MessageName: MsgReadonly, Data: readonly}, "")
	return err
}

// SetBlockEntitySubgraph stores sg and pushes it to the block.
func (e *EmbedderHandler) SetBlockEntitySubgraph(sg *subgraph.Subgraph) error {
	e.mu.Lock()
	e.blockEntitySubgraph = sg
	e.mu.Unlock()
	_, err := e.module.SendMessage(protocol.MessageContents{MessageName: MsgBlockEntitySubgraph, Data: sg}, "")
	return err
}

// Serve registers s as the handler for every graph request.
func (e *EmbedderHandler) Serve(s Service) error {
	return e.module.RegisterCallbacks(map[string]protocol.Callback{
		MsgGetEntity:        Handle(s.GetEntity),
		MsgCreateEntity:     Handle(s.CreateEntity),
		MsgUpdateEntity:     Handle(s.UpdateEntity),
		MsgDeleteEntity:     Handle(s.DeleteEntity),
		MsgQueryEntities:    Handle(s.QueryEntities),
		MsgGetEntityType:    Handle(s.GetEntityType),
		MsgQueryEntityTypes: Handle(s.QueryEntityTypes),
		MsgUploadFile:       Handle(s.UploadFile),
	})
}

// OnGetEntity registers the getEntity handler.
func (e *EmbedderHandler) OnGetEntity(h Handler[GetEntityData, *subgraph.Subgraph]) error {
	return e.module.On(MsgGetEntity, Handle(h))
}

// OnCreateEntity registers the createEntity handler.
func (e *EmbedderHandler) OnCreateEntity(h Handler[CreateEntityData, *subgraph.Entity]) error {
	return e.module.On(MsgCreateEntity, Handle(h))
}

// OnQueryEntities registers the queryEntities handler.
func (e *EmbedderHandler) OnQueryEntities(h Handler[QueryEntitiesData, *QueryEntitiesResult]) error {
	return e.module.On(MsgQueryEntities, Handle(h))
}
