// Package protocol implements the block/embedder messaging engine.
//
// # Architecture
//
// Two roles talk over a tree of Endpoints: a block and the embedder hosting
// it. Each role runs one Engine per endpoint it listens on. Engines are owned
// by a Registry and shared by every Module registered against the same
// endpoint and role, so several capability namespaces ("graph", "hook", ...)
// are multiplexed over one listener.
//
// Every Message travels as the detail of an Event named EventName dispatched
// on an endpoint. Events bubble from the endpoint they were dispatched on to
// each of its ancestors, so an embedder listening on a container sees the
// messages of every block nested inside it.
//
// # Handshake
//
// No module message leaves an engine before the handshake completes:
//
//	block                                embedder
//	  | core/init  (resent until answered)  |
//	  |------------------------------------>|  rebind peer to event target
//	  |          core/initResponse          |  collect module init payloads
//	  |<------------------------------------|
//	  | deliver init payloads to callbacks  |
//	  | flush queued messages (FIFO)        |  flush queued messages (FIFO)
//
// # Correlation
//
// A send that names a response returns a *Pending. The first message that
// arrives from the peer with the same request ID settles it: with the data
// when the message name matches, and with a RESPONSE_MISMATCH error plus the
// data otherwise.
//
// # Concurrency
//
// Listeners only enqueue. Each engine drains its inbound queue on one
// goroutine, so callbacks and handshake processing never run concurrently
// within an engine. Pending requests are settled in the listener itself, so a
// callback that awaits a request of its own does not block its own response.
package protocol
