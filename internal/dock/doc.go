// Package dock is an in-memory embedder datastore. It answers every graph
// module request from a set of entities and ontology types, builds
// non-temporal subgraphs around the requested elements, and keeps attached
// embedder handlers in sync after each mutation.
package dock
