package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/blockwire/internal/protocol"
)

// marshalJSON encodes v with HTML escaping disabled. Map keys are sorted by
// encoding/json, so equal values produce equal text.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func marshalData(data any) (string, error) {
	s, err := marshalJSON(data)
	if err != nil {
		return "", fmt.Errorf("marshal data: %w", err)
	}
	return s, nil
}

func marshalErrors(errs []protocol.MessageError) (string, error) {
	if errs == nil {
		errs = []protocol.MessageError{}
	}
	s, err := marshalJSON(errs)
	if err != nil {
		return "", fmt.Errorf("marshal errors: %w", err)
	}
	return s, nil
}

// unmarshalData decodes stored data into generic JSON values.
func unmarshalData(s string) (any, error) {
	var out any
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}
	return out, nil
}

func unmarshalErrors(s string) ([]protocol.MessageError, error) {
	var out []protocol.MessageError
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
