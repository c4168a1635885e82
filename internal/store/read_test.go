package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockwire/internal/protocol"
)

func TestRecord_RoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	in := createTestEntry("run-1", "r1", "getEntityResponse", protocol.SourceEmbedder)
	in.Relay = "bridge"
	in.Message.Data = map[string]any{"b": 1, "a": "<x>"}
	in.Message.Errors = []protocol.MessageError{{Code: "NOT_FOUND", Message: "gone"}}

	seq, err := s.Record(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, int64(1), seq)

	entries, err := s.Messages(ctx, Filter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "page/block", got.Endpoint)
	assert.Equal(t, "bridge", got.Relay)
	assert.Equal(t, protocol.SourceEmbedder, got.Message.Source)
	assert.Equal(t, map[string]any{"a": "<x>", "b": float64(1)}, got.Message.Data)
	assert.Equal(t, in.Message.Errors, got.Message.Errors)
	assert.True(t, got.Message.Timestamp.Equal(testEpoch))

	var raw string
	require.NoError(t, s.db.QueryRow("SELECT data FROM messages WHERE seq = 1").Scan(&raw))
	assert.Equal(t, `{"a":"<x>","b":1}`, raw)
}

func TestMessages_Filter(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, e := range []Entry{
		createTestEntry("run-1", "r1", "getEntity", protocol.SourceBlock),
		createTestEntry("run-1", "r1", "getEntityResponse", protocol.SourceEmbedder),
		createTestEntry("run-2", "r2", "createEntity", protocol.SourceBlock),
		createTestEntry("run-2", "r2", "createEntityResponse", protocol.SourceEmbedder),
	} {
		_, err := s.Record(ctx, e)
		require.NoError(t, err)
	}

	names := func(entries []Entry) []string {
		var out []string
		for _, e := range entries {
			out = append(out, e.Message.MessageName)
		}
		return out
	}

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"getEntity", "getEntityResponse", "createEntity", "createEntityResponse"}},
		{"run", Filter{RunID: "run-2"}, []string{"createEntity", "createEntityResponse"}},
		{"request", Filter{RequestID: "r1"}, []string{"getEntity", "getEntityResponse"}},
		{"source", Filter{Source: protocol.SourceBlock}, []string{"getEntity", "createEntity"}},
		{"name", Filter{MessageName: "createEntity"}, []string{"createEntity"}},
		{"after", Filter{AfterSeq: 2, Limit: 1}, []string{"createEntity"}},
		{"module", Filter{Module: "hook"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := s.Messages(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, names(entries))
		})
	}

	runs, err := s.Runs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []Run{
		{ID: "run-1", Messages: 2, FirstSeq: 1, LastSeq: 2},
		{ID: "run-2", Messages: 2, FirstSeq: 3, LastSeq: 4},
	}, runs)
}

func TestMessages_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	entries, err := s.Messages(context.Background(), Filter{RunID: "missing"})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestRecord_RejectsUnknownSource(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Record(context.Background(), createTestEntry("run", "r1", "x", protocol.Source("server")))
	assert.Error(t, err)
}
