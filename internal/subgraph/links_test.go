package subgraph

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockwire/internal/temporal"
)

func TestNonTemporal_LinkTraversal(t *testing.T) {
	sg := nonTemporalGraph(t)

	out, err := GetOutgoingLinksForEntity(sg, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"l1@1", "l2@1"}, entityIDs(out))

	in, err := GetIncomingLinksForEntity(sg, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"l3@1"}, entityIDs(in))

	left, err := GetLeftEntityForLinkEntity(sg, "l3", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"d@1"}, entityIDs(left))

	right, err := GetRightEntityForLinkEntity(sg, "l1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"b@1"}, entityIDs(right))

	none, err := GetOutgoingLinksForEntity(sg, "b", nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestNonTemporal_GetOutgoingLinkAndTargetEntities(t *testing.T) {
	sg := nonTemporalGraph(t)

	pairs, err := GetOutgoingLinkAndTargetEntities(sg, "a", nil)
	require.NoError(t, err)
	require.Len(t, pairs, 2)
	assert.Equal(t, []string{"l1@1"}, entityIDs(pairs[0].LinkEntity))
	assert.Equal(t, []string{"b@1"}, entityIDs(pairs[0].RightEntity))
	assert.Equal(t, []string{"l2@1"}, entityIDs(pairs[1].LinkEntity))
	assert.Equal(t, []string{"c@1"}, entityIDs(pairs[1].RightEntity))
}

func TestNonTemporal_NonUniqueRightEntityFails(t *testing.T) {
	sg := nonTemporalGraph(t)
	key := temporal.FormatTimestamp(time.Unix(0, 0))
	addOutwardEdge(sg, "l1", key, OutwardEdge{
		Kind:          HasRightEntity,
		RightEndpoint: EdgeEndpoint{EntityID: "c"},
	})

	_, err := GetOutgoingLinkAndTargetEntities(sg, "a", nil)
	require.Error(t, err)
	assert.True(t, IsConsistencyError(err))
	assert.Contains(t, err.Error(), "not a unique revision")
}

func TestNonTemporal_MissingRightEntityFails(t *testing.T) {
	sg := nonTemporalGraph(t)
	delete(sg.Vertices, "b")

	_, err := GetOutgoingLinkAndTargetEntities(sg, "a", nil)
	require.Error(t, err)
	assert.True(t, IsConsistencyError(err))
	assert.Contains(t, err.Error(), "b was not found")
}

func TestTemporal_LinksDefaultToLatestInstant(t *testing.T) {
	sg := temporalGraph(t)

	latest, err := GetLatestInstantInterval(sg)
	require.NoError(t, err)
	assert.True(t, latest.Start.Limit.Equal(day("2021-01-01")))

	out, err := GetOutgoingLinksForEntity(sg, "a", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"l1@1"}, entityIDs(out))

	left, err := GetLeftEntityForLinkEntity(sg, "l1", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@2"}, entityIDs(left), "only the revision valid at the latest instant")

	pairs, err := GetOutgoingLinkAndTargetEntities(sg, "a", nil)
	require.NoError(t, err)
	require.Len(t, pairs, 1)
	assert.Equal(t, []string{"l1@1"}, entityIDs(pairs[0].LinkEntity))
	assert.Equal(t, []string{"b@1"}, entityIDs(pairs[0].RightEntity))
}

func TestTemporal_SearchIntervalBeforeLinkExists(t *testing.T) {
	sg := temporalGraph(t)
	early := between("2020-01-01", "2020-02-01")

	out, err := GetOutgoingLinksForEntity(sg, "a", &early)
	require.NoError(t, err)
	assert.Empty(t, out)

	in, err := GetIncomingLinksForEntity(sg, "b", &early)
	require.NoError(t, err)
	assert.Empty(t, in)
}

func TestTemporal_LeftEntityAcrossRevisions(t *testing.T) {
	sg := temporalGraph(t)
	wide := between("2020-04-01", "2020-08-01")

	left, err := GetLeftEntityForLinkEntity(sg, "l1", &wide)
	require.NoError(t, err)
	assert.Equal(t, []string{"a@1", "a@2"}, entityIDs(left))
}

func TestTemporal_SkipsEdgeNotValidInSearchInterval(t *testing.T) {
	sg := temporalGraph(t)
	later := between("2020-09-01", "2020-10-01")
	addOutwardEdge(sg, "a", "2020-03-01T00:00:00Z", OutwardEdge{
		Kind:          HasLeftEntity,
		Reversed:      true,
		RightEndpoint: EdgeEndpoint{EntityID: "b", Interval: &later},
	})
	window := between("2020-02-01", "2020-05-01")

	out, err := GetOutgoingLinksForEntity(sg, "a", &window)
	require.NoError(t, err)
	assert.Equal(t, []string{"l1@1"}, entityIDs(out))

	out, err = GetOutgoingLinksForEntity(sg, "a", &later)
	require.NoError(t, err)
	assert.Contains(t, entityIDs(out), "b@1")
}

func TestTemporal_EdgeWithoutIntervalFails(t *testing.T) {
	sg := temporalGraph(t)
	addOutwardEdge(sg, "a", "2020-01-01T00:00:00Z", OutwardEdge{
		Kind:          HasLeftEntity,
		Reversed:      true,
		RightEndpoint: EdgeEndpoint{EntityID: "l1"},
	})

	_, err := GetOutgoingLinksForEntity(sg, "a", nil)
	assert.True(t, IsConsistencyError(err))
}

func TestTemporal_MissingLinkVertexFails(t *testing.T) {
	sg := temporalGraph(t)
	delete(sg.Vertices, "l1")

	_, err := GetOutgoingLinksForEntity(sg, "a", nil)
	assert.True(t, IsConsistencyError(err))
}

func TestGetLatestInstantInterval_NonTemporal(t *testing.T) {
	_, err := GetLatestInstantInterval(nonTemporalGraph(t))
	assert.ErrorIs(t, err, ErrNotTemporal)
}
