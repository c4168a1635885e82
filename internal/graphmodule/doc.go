// Package graphmodule implements the "graph" module: typed block and
// embedder handlers for reading and mutating entities over the protocol
// engine.
//
// The block side (BlockHandler) issues requests such as getEntity and
// queryEntities and receives the blockEntitySubgraph and readonly pushes.
// The embedder side (EmbedderHandler) answers those requests with handlers
// adapted by Handle, and contributes the current subgraph and readonly flag
// to the handshake.
//
// Both sides are restricted to the messages declared in graph.cue.
package graphmodule
