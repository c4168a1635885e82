package subgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRoots_InRootOrder(t *testing.T) {
	a := newEntity("a", "1", nil)
	b := newEntity("b", "1", nil)
	aID, err := EntityVertexID(a, nil)
	require.NoError(t, err)
	bID, err := EntityVertexID(b, nil)
	require.NoError(t, err)

	sg, err := Build(Elements{Entities: []*Entity{a, b}}, []VertexID{bID, aID}, GraphResolveDepths{}, nil)
	require.NoError(t, err)

	roots, err := GetRoots(sg)
	require.NoError(t, err)
	require.Len(t, roots, 2)
	assert.Same(t, b, roots[0])
	assert.Same(t, a, roots[1])
	assert.True(t, IsEntityRootedSubgraph(sg))

	entities, err := GetRootEntities(sg)
	require.NoError(t, err)
	assert.Equal(t, []string{"b@1", "a@1"}, entityIDs(entities))
}

func TestGetRoots_MissingVertexFails(t *testing.T) {
	sg := nonTemporalGraph(t)
	sg.Roots = append(sg.Roots, VertexID{BaseID: "ghost", RevisionID: "1970-01-01T00:00:00Z"})

	roots, err := GetRoots(sg)
	require.Error(t, err)
	assert.Nil(t, roots)
	assert.True(t, IsConsistencyError(err))
	assert.Contains(t, err.Error(), "ghost")
	assert.False(t, IsEntityRootedSubgraph(sg))
}

func TestGetRootEntities_RejectsOntologyRoot(t *testing.T) {
	els := ontologyElements()
	root := els.EntityTypes[0].Metadata.RecordID.VertexID()
	sg, err := Build(els, []VertexID{root}, GraphResolveDepths{}, nil)
	require.NoError(t, err)

	roots, err := GetRoots(sg)
	require.NoError(t, err)
	require.Len(t, roots, 1)
	assert.IsType(t, &EntityTypeWithMetadata{}, roots[0])

	_, err = GetRootEntities(sg)
	assert.True(t, IsConsistencyError(err))
}
