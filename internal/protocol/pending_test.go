package protocol

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPending_SettlesOnce(t *testing.T) {
	p := newPending("req-1", "pong")

	require.True(t, p.settle(MessageData{Data: "first"}, nil))
	require.False(t, p.settle(MessageData{Data: "second"}, errors.New("late")))

	got, err := p.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "first", got.Data)
	assert.Equal(t, "req-1", p.RequestID())
	assert.Equal(t, "pong", p.Expected())
}

func TestPending_AwaitCancelledForgetsRequest(t *testing.T) {
	p := newPending("req-1", "pong")
	forgotten := false
	p.forget = func() { forgotten = true }

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, forgotten)
	assert.False(t, p.settle(MessageData{Data: "late"}, nil), "late response is ignored")
}
