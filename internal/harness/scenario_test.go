package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeScenario(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const inlineScenario = `
name: inline
description: "Inline elements"
elements:
  entities:
    - metadata:
        recordId: { entityId: solo, editionId: "1" }
        entityTypeId: https://example.com/@alice/types/entity-type/person/v/1
      properties: { name: Solo }
steps:
  - request: getEntity
    data: { entityId: solo }
    expect:
      entities: [solo]
  - set_readonly: true
assertions:
  - type: trace_count
    message: readonly
    count: 1
`

func TestLoadScenario_ValidFile(t *testing.T) {
	path := writeScenario(t, t.TempDir(), inlineScenario)

	scenario, err := LoadScenario(path)
	require.NoError(t, err)

	assert.Equal(t, "inline", scenario.Name)
	require.Len(t, scenario.Steps, 2)
	assert.Equal(t, "getEntity", scenario.Steps[0].Request)
	require.NotNil(t, scenario.Steps[1].SetReadonly)
	assert.True(t, *scenario.Steps[1].SetReadonly)
	assert.Equal(t, []string{"solo"}, scenario.Steps[0].Expect.Entities)

	els, err := scenario.LoadElements()
	require.NoError(t, err)
	require.Len(t, els.Entities, 1)
	assert.Equal(t, "Solo", els.Entities[0].Properties["name"])
}

func TestLoadScenario_ResolvesFixture(t *testing.T) {
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "befriend.yaml"))
	require.NoError(t, err)

	assert.Equal(t, filepath.Join("testdata", "fixtures", "social.yaml"), scenario.Fixture)
	els, err := scenario.LoadElements()
	require.NoError(t, err)
	assert.Len(t, els.Entities, 5)
	assert.Len(t, els.EntityTypes, 1)
}

func TestLoadScenario_FixtureAndElementsCombine(t *testing.T) {
	dir := t.TempDir()
	fixture, err := os.ReadFile(filepath.Join("testdata", "fixtures", "social.yaml"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "social.yaml"), fixture, 0o644))

	path := writeScenario(t, dir, `
name: combined
description: "Fixture plus inline"
fixture: social.yaml
elements:
  entities:
    - metadata:
        recordId: { entityId: dave, editionId: "1" }
        entityTypeId: https://example.com/@alice/types/entity-type/person/v/1
      properties: {}
steps:
  - request: getEntity
    data: { entityId: dave }
assertions:
  - type: trace_count
    message: getEntity
    count: 1
`)
	scenario, err := LoadScenario(path)
	require.NoError(t, err)
	els, err := scenario.LoadElements()
	require.NoError(t, err)
	require.Len(t, els.Entities, 6)
	assert.EqualValues(t, "dave", els.Entities[5].ID())
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, t.TempDir(), inlineScenario+"assertion: []\n")
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestLoadScenario_Invalid(t *testing.T) {
	const elements = `
elements:
  entities: []
`
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{
			name:    "missing name",
			content: "description: d\n" + elements + "steps: [{request: getEntity}]\nassertions: [{type: trace_count, message: x}]\n",
			want:    "name is required",
		},
		{
			name:    "missing description",
			content: "name: n\n" + elements + "steps: [{request: getEntity}]\nassertions: [{type: trace_count, message: x}]\n",
			want:    "description is required",
		},
		{
			name:    "no dock contents",
			content: "name: n\ndescription: d\nsteps: [{request: getEntity}]\nassertions: [{type: trace_count, message: x}]\n",
			want:    "fixture or elements is required",
		},
		{
			name:    "missing fixture file",
			content: "name: n\ndescription: d\nfixture: nowhere.yaml\nsteps: [{request: getEntity}]\nassertions: [{type: trace_count, message: x}]\n",
			want:    "fixture file not found",
		},
		{
			name:    "no steps",
			content: "name: n\ndescription: d\n" + elements + "assertions: [{type: trace_count, message: x}]\n",
			want:    "steps list is required",
		},
		{
			name:    "no assertions",
			content: "name: n\ndescription: d\n" + elements + "steps: [{request: getEntity}]\n",
			want:    "assertions list is required",
		},
		{
			name:    "empty step",
			content: "name: n\ndescription: d\n" + elements + "steps: [{}]\nassertions: [{type: trace_count, message: x}]\n",
			want:    "request or set_readonly is required",
		},
		{
			name:    "both step kinds",
			content: "name: n\ndescription: d\n" + elements + "steps: [{request: getEntity, set_readonly: true}]\nassertions: [{type: trace_count, message: x}]\n",
			want:    "mutually exclusive",
		},
		{
			name:    "push is not a request",
			content: "name: n\ndescription: d\n" + elements + "steps: [{request: blockEntitySubgraph}]\nassertions: [{type: trace_count, message: x}]\n",
			want:    "is not a graph request",
		},
		{
			name:    "response is not a request",
			content: "name: n\ndescription: d\n" + elements + "steps: [{request: getEntityResponse}]\nassertions: [{type: trace_count, message: x}]\n",
			want:    "is not a graph request",
		},
		{
			name:    "unknown assertion",
			content: "name: n\ndescription: d\n" + elements + "steps: [{request: getEntity}]\nassertions: [{type: final_state}]\n",
			want:    "unknown assertion type",
		},
		{
			name:    "trace_order without messages",
			content: "name: n\ndescription: d\n" + elements + "steps: [{request: getEntity}]\nassertions: [{type: trace_order}]\n",
			want:    "messages list is required",
		},
		{
			name:    "negative count",
			content: "name: n\ndescription: d\n" + elements + "steps: [{request: getEntity}]\nassertions: [{type: trace_count, message: x, count: -1}]\n",
			want:    "count must be non-negative",
		},
		{
			name:    "block_entities without entities",
			content: "name: n\ndescription: d\n" + elements + "steps: [{request: getEntity}]\nassertions: [{type: block_entities}]\n",
			want:    "entities list is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeScenario(t, t.TempDir(), tt.content)
			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
