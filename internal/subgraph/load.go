package subgraph

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// LoadFile reads a subgraph from a JSON or YAML file, chosen by extension.
func LoadFile(path string) (*Subgraph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subgraph %s: %w", path, err)
	}
	var sg Subgraph
	if err := decode(path, data, &sg); err != nil {
		return nil, fmt.Errorf("decode subgraph %s: %w", path, err)
	}
	return &sg, nil
}

// LoadElements reads graph elements from a JSON or YAML file.
func LoadElements(path string) (Elements, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Elements{}, fmt.Errorf("read elements %s: %w", path, err)
	}
	var els Elements
	if err := decode(path, data, &els); err != nil {
		return Elements{}, fmt.Errorf("decode elements %s: %w", path, err)
	}
	return els, nil
}

func decode(path string, data []byte, v any) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(data, v)
	default:
		return json.Unmarshal(data, v)
	}
}

// DecodeYAML decodes YAML into v through its JSON encoding, so types only
// need JSON tags.
func DecodeYAML(data []byte, v any) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return err
	}
	return FromYAMLValue(doc, v)
}

// FromYAMLValue converts an already-decoded YAML value into v.
func FromYAMLValue(doc any, v any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("convert yaml to json: %w", err)
	}
	return json.Unmarshal(raw, v)
}
