package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/blockwire/internal/graphmodule"
	"github.com/roach88/blockwire/internal/subgraph"
)

// Scenario is a scripted exchange between a block and a dock-backed
// embedder. Each step is sent by the block (or changes the dock) and the
// resulting message trace is checked against assertions.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Fixture is a JSON or YAML elements file loaded into the dock.
	// Relative paths are resolved against the scenario file's directory.
	Fixture string `yaml:"fixture,omitempty"`

	// Elements are loaded into the dock after the fixture.
	Elements map[string]any `yaml:"elements,omitempty"`

	// BlockEntity is the entity whose subgraph the embedder pushes to the
	// block. Empty means no block entity subgraph is sent.
	BlockEntity string `yaml:"block_entity,omitempty"`

	// Readonly starts the dock in readonly mode.
	Readonly bool `yaml:"readonly,omitempty"`

	// Steps run in order after the handshake.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trace.
	Assertions []Assertion `yaml:"assertions"`
}

// Step is either a graph request sent by the block or a readonly switch
// applied to the dock.
type Step struct {
	// Request names a graph message the block sends.
	Request string `yaml:"request,omitempty"`

	// Data is the request payload.
	Data any `yaml:"data,omitempty"`

	// SetReadonly switches the dock's readonly flag.
	SetReadonly *bool `yaml:"set_readonly,omitempty"`

	// Expect validates the response. If nil, the response is not checked.
	Expect *Expect `yaml:"expect,omitempty"`
}

// Expect describes a response.
type Expect struct {
	// Error is the expected code of the first response error. Empty means
	// the response must carry no errors.
	Error string `yaml:"error,omitempty"`

	// Roots is the expected number of roots of a subgraph response.
	Roots *int `yaml:"roots,omitempty"`

	// Entities are the expected entity IDs of a subgraph response, in any
	// order.
	Entities []string `yaml:"entities,omitempty"`

	// Data is matched against the response data. Only the listed fields
	// are compared.
	Data any `yaml:"data,omitempty"`
}

// Assertion validates the trace.
type Assertion struct {
	// Type is one of trace_contains, trace_order, trace_count and
	// block_entities.
	Type string `yaml:"type"`

	// Message is the message name (trace_contains, trace_count).
	Message string `yaml:"message,omitempty"`

	// Source restricts trace_contains to one role.
	Source string `yaml:"source,omitempty"`

	// Data is subset-matched against trace event data (trace_contains).
	Data any `yaml:"data,omitempty"`

	// Error requires an error code on the event (trace_contains).
	Error string `yaml:"error,omitempty"`

	// Count is the exact number of occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Messages is the expected order of first occurrences (trace_order).
	Messages []string `yaml:"messages,omitempty"`

	// Entities are the entity IDs of the last block entity subgraph sent
	// (block_entities).
	Entities []string `yaml:"entities,omitempty"`
}

// Assertion type constants.
const (
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
	AssertBlockEntities = "block_entities"
)

// LoadScenario reads and validates a scenario YAML file. A relative
// fixture path is resolved against the file's directory.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and validates a scenario YAML file,
// resolving a relative fixture path against basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Fixture != "" && !filepath.IsAbs(scenario.Fixture) && basePath != "" {
		scenario.Fixture = filepath.Join(basePath, scenario.Fixture)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadElements returns the dock contents of s: the fixture followed by the
// inline elements.
func (s *Scenario) LoadElements() (subgraph.Elements, error) {
	var els subgraph.Elements
	if s.Fixture != "" {
		fixture, err := subgraph.LoadElements(s.Fixture)
		if err != nil {
			return subgraph.Elements{}, err
		}
		els = fixture
	}
	if len(s.Elements) > 0 {
		var inline subgraph.Elements
		if err := subgraph.FromYAMLValue(s.Elements, &inline); err != nil {
			return subgraph.Elements{}, fmt.Errorf("decode elements: %w", err)
		}
		els.DataTypes = append(els.DataTypes, inline.DataTypes...)
		els.PropertyTypes = append(els.PropertyTypes, inline.PropertyTypes...)
		els.EntityTypes = append(els.EntityTypes, inline.EntityTypes...)
		els.Entities = append(els.Entities, inline.Entities...)
	}
	return els, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Fixture == "" && len(s.Elements) == 0 {
		return fmt.Errorf("fixture or elements is required")
	}
	if s.Fixture != "" {
		if _, err := os.Stat(s.Fixture); os.IsNotExist(err) {
			return fmt.Errorf("fixture file not found: %s", s.Fixture)
		}
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, step *Step) error {
	switch {
	case step.Request != "" && step.SetReadonly != nil:
		return fmt.Errorf("steps[%d]: request and set_readonly are mutually exclusive", index)
	case step.SetReadonly != nil:
		if step.Expect != nil {
			return fmt.Errorf("steps[%d]: set_readonly takes no expect", index)
		}
		return nil
	case step.Request == "":
		return fmt.Errorf("steps[%d]: request or set_readonly is required", index)
	}

	msg, ok := graphmodule.Definition().Lookup(step.Request, "block")
	if !ok || msg.RespondedToBy == "" {
		return fmt.Errorf("steps[%d]: %q is not a graph request", index, step.Request)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertTraceContains:
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for trace_contains", index)
		}
	case AssertTraceOrder:
		if len(a.Messages) == 0 {
			return fmt.Errorf("assertions[%d]: messages list is required for trace_order", index)
		}
	case AssertTraceCount:
		if a.Message == "" {
			return fmt.Errorf("assertions[%d]: message is required for trace_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for trace_count", index)
		}
	case AssertBlockEntities:
		if a.Entities == nil {
			return fmt.Errorf("assertions[%d]: entities list is required for block_entities", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
