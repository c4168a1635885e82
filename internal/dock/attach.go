package dock

import (
	"context"
	"fmt"
	"slices"

	"github.com/roach88/blockwire/internal/graphmodule"
	"github.com/roach88/blockwire/internal/protocol"
	"github.com/roach88/blockwire/internal/subgraph"
)

type attachment struct {
	handler       *graphmodule.EmbedderHandler
	blockEntityID subgraph.EntityID
}

// NewEmbedder creates an embedder graph handler served by d. The handshake
// carries d's readonly flag and, when blockEntityID is set, the subgraph
// around that entity; both are pushed again whenever they change.
func (d *Dock) NewEmbedder(blockEntityID subgraph.EntityID, opts ...graphmodule.EmbedderOption) (*graphmodule.EmbedderHandler, error) {
	var sg *subgraph.Subgraph
	if blockEntityID != "" {
		var err error
		sg, err = d.GetEntity(context.Background(), graphmodule.GetEntityData{EntityID: blockEntityID})
		if err != nil {
			return nil, fmt.Errorf("block entity: %w", err)
		}
	}

	base := []graphmodule.EmbedderOption{
		graphmodule.WithReadonly(d.Readonly()),
		graphmodule.WithBlockEntitySubgraph(sg),
	}
	h := graphmodule.NewEmbedderHandler(append(base, opts...)...)
	if err := h.Serve(d); err != nil {
		return nil, err
	}

	d.mu.Lock()
	d.attached = append(d.attached, &attachment{handler: h, blockEntityID: blockEntityID})
	d.mu.Unlock()
	return h, nil
}

// Detach stops updating h.
func (d *Dock) Detach(h *graphmodule.EmbedderHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.attached = slices.DeleteFunc(d.attached, func(a *attachment) bool { return a.handler == h })
}

// refresh pushes the current block entity subgraph to every attached
// handler. Handlers that have been destroyed are detached.
func (d *Dock) refresh() {
	d.mu.RLock()
	attached := slices.Clone(d.attached)
	d.mu.RUnlock()

	for _, a := range attached {
		if a.blockEntityID == "" {
			continue
		}
		sg, err := d.GetEntity(context.Background(), graphmodule.GetEntityData{EntityID: a.blockEntityID})
		if err != nil {
			d.logger.Warn("block entity unavailable", "entity_id", a.blockEntityID, "error", err)
			continue
		}
		if err := a.handler.SetBlockEntitySubgraph(sg); err != nil {
			if protocol.IsDestroyedError(err) {
				d.Detach(a.handler)
				continue
			}
			d.logger.Error("push block entity subgraph failed", "entity_id", a.blockEntityID, "error", err)
		}
	}
}
