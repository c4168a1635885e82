package protocol

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/blockwire/internal/moduledef"
)

const hookDefinition = `
module: hook: {
	version:     "0.3"
	coreVersion: "0.3"
	messages: [
		{messageName: "hook", source: "block", respondedToBy: "hookResponse"},
		{messageName: "hookResponse", source: "embedder"},
	]
}
`

func TestModule_RequestBeforeInitialize(t *testing.T) {
	p := newPage(t)
	emb := p.embedder(t, "hook")
	require.NoError(t, emb.On("hook", func(_ context.Context, in MessageData) (*MessageData, error) {
		return &MessageData{Data: in.Data}, nil
	}))

	block := p.blockModule(t, "hook")
	pending, err := block.SendMessage(MessageContents{MessageName: "hook", Data: "echo"}, "hookResponse")
	require.NoError(t, err)
	require.NotNil(t, pending)
	assert.Empty(t, pending.RequestID())
	assert.Nil(t, block.Engine())

	require.NoError(t, block.Initialize(p.block))

	got, err := pending.Await(awaitCtx(t))
	require.NoError(t, err)
	assert.Equal(t, "echo", got.Data)
}

func TestModule_HeldSendsFollowHandshakeInOrder(t *testing.T) {
	p := newPage(t)
	received := make(chan any, 8)
	p.embedder(t, "hook", WithCallbacks(map[string]Callback{
		"note": noReply(func(in MessageData) { received <- in.Data }),
	}), WithInitPayload(func() map[string]any { return map[string]any{"greeting": "hi"} }))

	greeted := make(chan any, 1)
	block := p.blockModule(t, "hook")
	require.NoError(t, block.On("greeting", noReply(func(in MessageData) { greeted <- in.Data })))
	for _, d := range []string{"a", "b"} {
		_, err := block.SendMessage(MessageContents{MessageName: "note", Data: d}, "")
		require.NoError(t, err)
	}

	require.NoError(t, block.Initialize(p.block))
	for _, d := range []string{"c", "d"} {
		_, err := block.SendMessage(MessageContents{MessageName: "note", Data: d}, "")
		require.NoError(t, err)
	}
	waitInitialized(t, block)

	select {
	case got := <-greeted:
		assert.Equal(t, "hi", got)
	case <-time.After(2 * time.Second):
		t.Fatal("init payload not delivered to a callback registered before Initialize")
	}

	var order []any
	for range 4 {
		select {
		case d := <-received:
			order = append(order, d)
		case <-time.After(2 * time.Second):
			t.Fatalf("only %d notes delivered", len(order))
		}
	}
	assert.Equal(t, []any{"a", "b", "c", "d"}, order)
}

func TestModule_InitializeTwice(t *testing.T) {
	p := newPage(t)
	block := p.blockModule(t, "hook")

	require.NoError(t, block.Initialize(p.block))
	require.NoError(t, block.Initialize(p.block), "same endpoint is a no-op")

	other := NewEndpoint("block-2", p.root)
	err := block.Initialize(other)
	assert.True(t, HasCode(err, ErrCodeAlreadyInitialized), "got %v", err)
}

func TestModule_Destroy(t *testing.T) {
	p := newPage(t)
	block := p.blockModule(t, "hook")
	require.NoError(t, block.Initialize(p.block))

	block.Destroy()
	block.Destroy()
	assert.True(t, block.Destroyed())

	_, err := block.SendMessage(MessageContents{MessageName: "hook"}, "hookResponse")
	require.Error(t, err)
	assert.True(t, IsDestroyedError(err))
	assert.Contains(t, err.Error(), "module has been destroyed. Please construct a new instance")

	assert.True(t, IsDestroyedError(block.On("hook", noReply(func(MessageData) {}))))
	assert.True(t, IsDestroyedError(block.RemoveCallbacks("hook")))
	assert.True(t, IsDestroyedError(block.Initialize(p.block)))
}

func TestModule_RemoveCallbacks(t *testing.T) {
	p := newPage(t)
	emb := p.embedder(t, "hook")
	require.NoError(t, emb.RegisterCallbacks(map[string]Callback{
		"a": noReply(func(MessageData) {}),
		"b": noReply(func(MessageData) {}),
	}))

	engine := emb.Engine()
	require.True(t, engine.HasCallback("hook", "a"))

	require.NoError(t, emb.RemoveCallbacks("a"))
	assert.False(t, engine.HasCallback("hook", "a"))
	assert.True(t, engine.HasCallback("hook", "b"))
}

func TestModule_WithCallbacksRegisteredOnInitialize(t *testing.T) {
	p := newPage(t)
	emb := NewModule("hook", SourceEmbedder, WithRegistry(p.reg), WithCallbacks(map[string]Callback{
		"hook": noReply(func(MessageData) {}),
	}))
	require.NoError(t, emb.Initialize(p.root))

	assert.True(t, emb.Engine().HasCallback("hook", "hook"))
}

func TestModule_DefinitionRejectsUndeclaredMessages(t *testing.T) {
	def, err := moduledef.CompileModule(hookDefinition, "hook.cue", "hook")
	require.NoError(t, err)

	p := newPage(t)
	block := p.blockModule(t, "hook", WithDefinition(def))

	_, err = block.SendMessage(MessageContents{MessageName: "hookResponse"}, "")
	assert.True(t, HasCode(err, ErrCodeUndeclaredMessage), "got %v", err)

	var undeclared *moduledef.UndeclaredMessageError
	assert.ErrorAs(t, err, &undeclared)

	assert.NoError(t, block.On("hookResponse", noReply(func(MessageData) {})))
	assert.True(t, HasCode(block.On("hook", noReply(func(MessageData) {})), ErrCodeUndeclaredMessage))

	_, err = block.SendMessage(MessageContents{MessageName: "hook"}, "hookResponse")
	assert.NoError(t, err)
}

func TestModule_NamesAreNormalized(t *testing.T) {
	p := newPage(t)
	got := make(chan struct{}, 1)

	emb := p.embedder(t, "hook")
	require.NoError(t, emb.On("caf\u00e9", noReply(func(MessageData) { got <- struct{}{} })))

	block := p.blockModule(t, "hook")
	require.NoError(t, block.Initialize(p.block))
	waitInitialized(t, block)

	_, err := block.SendMessage(MessageContents{MessageName: "cafe\u0301"}, "")
	require.NoError(t, err)

	select {
	case <-got:
	case <-time.After(2 * time.Second):
		t.Fatal("decomposed name did not reach composed callback")
	}
}
