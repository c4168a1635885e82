package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/blockwire/internal/protocol"
)

// createTestStore creates a new store in a temporary directory.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "trace.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

var testEpoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestEntry creates an entry with minimal required fields.
func createTestEntry(runID, requestID, name string, source protocol.Source) Entry {
	return Entry{
		RunID:    runID,
		Endpoint: "page/block",
		Message: protocol.Message{
			RequestID:   requestID,
			Module:      "graph",
			MessageName: name,
			Source:      source,
			Timestamp:   testEpoch,
		},
	}
}
