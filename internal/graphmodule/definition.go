package graphmodule

import (
	_ "embed"
	"sync"

	"github.com/roach88/blockwire/internal/moduledef"
)

// ModuleName is the module's name on the wire.
const ModuleName = "graph"

// Message names.
const (
	MsgBlockEntitySubgraph = "blockEntitySubgraph"
	MsgReadonly            = "readonly"

	MsgGetEntity        = "getEntity"
	MsgCreateEntity     = "createEntity"
	MsgUpdateEntity     = "updateEntity"
	MsgDeleteEntity     = "deleteEntity"
	MsgQueryEntities    = "queryEntities"
	MsgGetEntityType    = "getEntityType"
	MsgQueryEntityTypes = "queryEntityTypes"
	MsgUploadFile       = "uploadFile"
)

//go:embed graph.cue
var graphCUE string

var definition = sync.OnceValues(func() (*moduledef.Definition, error) {
	return moduledef.CompileModule(graphCUE, "graph.cue", ModuleName)
})

// Definition returns the compiled graph module definition.
func Definition() *moduledef.Definition {
	def, err := definition()
	if err != nil {
		panic("graphmodule: embedded graph.cue does not compile: " + err.Error())
	}
	return def
}

// responseName returns the message that answers the request named name.
func responseName(name string) string {
	msg, ok := Definition().Lookup(name, "block")
	if !ok {
		return ""
	}
	return msg.RespondedToBy
}
