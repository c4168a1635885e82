package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFindScenarios(t *testing.T) {
	paths, err := FindScenarios(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join("testdata", "scenarios", "befriend.yaml"),
		filepath.Join("testdata", "scenarios", "readonly-dock.yaml"),
	}, paths)

	_, err = FindScenarios(filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestRunSuite_Passes(t *testing.T) {
	res, err := RunSuite(filepath.Join("testdata", "scenarios"))
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 2, res.Passed)
	assert.Equal(t, 0, res.Failed)
	assert.Empty(t, res.Failures)
}

func TestRunSuite_ReportsFailures(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yaml"), []byte("name: broken\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "failing.yml"), []byte(`
name: failing
description: "Expects an entity that is not there"
elements:
  entities: []
steps:
  - request: getEntity
    data: { entityId: ghost }
    expect:
      entities: [ghost]
assertions:
  - type: trace_count
    message: getEntity
    count: 1
`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))

	res, err := RunSuite(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Total)
	assert.Equal(t, 0, res.Passed)
	require.Len(t, res.Failures, 2)

	assert.Equal(t, "broken", res.Failures[0].Scenario)
	assert.Contains(t, res.Failures[0].Errors[0], "description is required")

	assert.Equal(t, "failing", res.Failures[1].Scenario)
	assert.Contains(t, res.Failures[1].Errors[0], "unexpected error NOT_FOUND")
}
