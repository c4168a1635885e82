package harness

import (
	"sort"

	"github.com/roach88/blockwire/internal/store"
	"github.com/roach88/blockwire/internal/subgraph"
)

// TraceEvent is one recorded message. Subgraphs in Data are replaced by a
// summary of their roots and entities so traces stay readable.
type TraceEvent struct {
	Seq           int64    `json:"seq"`
	Endpoint      string   `json:"endpoint"`
	Source        string   `json:"source"`
	Module        string   `json:"module"`
	Message       string   `json:"message"`
	RequestID     string   `json:"request_id"`
	RespondedToBy string   `json:"responded_to_by,omitempty"`
	Data          any      `json:"data,omitempty"`
	Errors        []string `json:"errors,omitempty"`
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true when every expect clause and assertion held.
	Pass bool `json:"pass"`

	// Trace contains every message exchanged, in dispatch order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains failed expectations and assertions.
	Errors []string `json:"errors,omitempty"`

	// BlockEntities are the entity IDs of the last block entity subgraph
	// the embedder sent, sorted. Nil if none was sent.
	BlockEntities []string `json:"block_entities,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// traceEvent converts a stored entry.
func traceEvent(e store.Entry) TraceEvent {
	ev := TraceEvent{
		Seq:           e.Seq,
		Endpoint:      e.Endpoint,
		Source:        string(e.Message.Source),
		Module:        e.Message.Module,
		Message:       e.Message.MessageName,
		RequestID:     e.Message.RequestID,
		RespondedToBy: e.Message.RespondedToBy,
		Data:          summarize(e.Message.Data),
	}
	for _, me := range e.Message.Errors {
		ev.Errors = append(ev.Errors, me.Code)
	}
	return ev
}

// summarize walks generic JSON and replaces every subgraph with
// {"roots": n, "entities": [...]}.
func summarize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		if isSubgraph(t) {
			roots, _ := t["roots"].([]any)
			return map[string]any{
				"roots":    len(roots),
				"entities": subgraphEntities(t),
			}
		}
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = summarize(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = summarize(val)
		}
		return out
	}
	return v
}

func isSubgraph(m map[string]any) bool {
	_, roots := m["roots"]
	_, vertices := m["vertices"].(map[string]any)
	return roots && vertices
}

// subgraphEntities returns the sorted base IDs of entity vertices.
func subgraphEntities(m map[string]any) []string {
	vertices, _ := m["vertices"].(map[string]any)
	ids := []string{}
	for baseID, revisions := range vertices {
		byRevision, _ := revisions.(map[string]any)
		for _, raw := range byRevision {
			vertex, _ := raw.(map[string]any)
			if vertex["kind"] == string(subgraph.VertexKindEntity) {
				ids = append(ids, baseID)
				break
			}
		}
	}
	sort.Strings(ids)
	return ids
}

// summaryEntities returns the entity list of a summarized subgraph.
func summaryEntities(v any) ([]string, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	ids, ok := m["entities"].([]string)
	return ids, ok
}
