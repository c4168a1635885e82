package subgraph

import (
	"errors"
	"fmt"
)

// ConsistencyError reports a subgraph that violates its closure invariant or
// a lookup that the data cannot satisfy.
type ConsistencyError struct {
	// Message is a human-readable description.
	Message string

	// VertexID identifies the offending vertex, when known.
	VertexID *VertexID
}

// Error implements the error interface.
func (e *ConsistencyError) Error() string {
	if e.VertexID != nil {
		return fmt.Sprintf("inconsistent subgraph: %s (vertex=%s@%s)", e.Message, e.VertexID.BaseID, e.VertexID.RevisionID)
	}
	return "inconsistent subgraph: " + e.Message
}

// IsConsistencyError reports whether err is or wraps a *ConsistencyError.
func IsConsistencyError(err error) bool {
	var ce *ConsistencyError
	return errors.As(err, &ce)
}

func inconsistent(format string, args ...any) *ConsistencyError {
	return &ConsistencyError{Message: fmt.Sprintf(format, args...)}
}

// ErrNotTemporal is returned by operations that need temporal axes on a
// subgraph built without them.
var ErrNotTemporal = errors.New("subgraph does not support temporal versioning")
