// Package harness runs scripted block/embedder exchanges and checks the
// resulting message trace.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: befriend
//	description: "What this scenario validates"
//	fixture: ../fixtures/social.yaml
//	block_entity: alice
//	readonly: false
//	steps:
//	  - request: getEntity
//	    data: { entityId: carol }
//	    expect:
//	      roots: 1
//	      entities: [bob, carol, l2]
//	  - set_readonly: true
//	assertions:
//	  - type: trace_contains
//	    message: createEntityResponse
//	    data: { metadata: { recordId: { entityId: entity-1 } } }
//	  - type: block_entities
//	    entities: [alice, bob, l1]
//
// The fixture and the inline elements are loaded into a dock that answers
// every graph request. Each request step is sent by a real block-side
// engine and answered by a real embedder-side engine.
//
// # Assertion Types
//
//   - trace_contains: a message appears, optionally with source, error code and data (subset match)
//   - trace_order: first occurrences of messages appear in order
//   - trace_count: a message appears exactly N times
//   - block_entities: the last block entity subgraph sent holds exactly these entities
//
// # Deterministic Testing
//
// Every run uses a fake clock that never advances, a shared sequential
// request ID generator ("req-1", "req-2", ...), sequential entity IDs
// ("entity-1", ...) and an in-memory SQLite trace store. Equal scenarios
// therefore produce identical traces, which RunWithGolden compares against
// golden files.
package harness
