// Package store provides a SQLite-backed trace of protocol messages.
//
// The trace is an append-only log: every envelope seen on an attached
// endpoint is written once, together with the run it belongs to, the
// endpoint path it was observed on and the relay that injected it, if any.
//
// # Ordering
//
// Entries are ordered by seq, a logical sequence assigned at write time,
// never by the message timestamp. Two engines in different processes may
// stamp messages from unsynchronized clocks; seq reflects the order the
// trace observed them in.
//
// # Payloads
//
// Message data and errors are stored as JSON with sorted keys and HTML
// escaping disabled, so the same message always produces the same row.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
package store
