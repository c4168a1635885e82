package protocol

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_HandshakeDeliversInitPayload(t *testing.T) {
	p := newPage(t)
	p.embedder(t, "graph", WithInitPayload(func() map[string]any {
		return map[string]any{"readonly": true}
	}))

	got := make(chan any, 1)
	block := p.blockModule(t, "graph")
	require.NoError(t, block.On("readonly", noReply(func(in MessageData) { got <- in.Data })))
	require.NoError(t, block.Initialize(p.block))

	waitInitialized(t, block)
	select {
	case v := <-got:
		assert.Equal(t, true, v)
	case <-time.After(2 * time.Second):
		t.Fatal("init payload never delivered")
	}
}

func TestEngine_EmbedderRebindsPeerToBlock(t *testing.T) {
	p := newPage(t)
	emb := p.embedder(t, "graph")
	assert.Same(t, p.root, emb.Engine().Peer())

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))
	waitInitialized(t, block)

	require.Eventually(t, emb.Engine().Initialized, 2*time.Second, time.Millisecond)
	assert.Same(t, p.block, emb.Engine().Peer())
}

func TestEngine_InitRetriedUntilAnswered(t *testing.T) {
	p := newPage(t)
	rec := record(p.root)

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))

	p.clk.WaitForTimers(1)
	require.Len(t, rec.named(MessageInit), 1)
	assert.False(t, block.Engine().Initialized())

	p.embedder(t, "graph")
	p.clk.Advance(DefaultInitRetryInterval)

	waitInitialized(t, block)
	inits := rec.named(MessageInit)
	require.Len(t, inits, 2)
	assert.NotEqual(t, inits[0].RequestID, inits[1].RequestID, "each init carries a fresh request id")

	require.Eventually(t, func() bool { return len(rec.named(MessageInitResponse)) == 1 }, 2*time.Second, time.Millisecond)
	assert.Equal(t, inits[1].RequestID, rec.named(MessageInitResponse)[0].RequestID)
}

func TestEngine_HandshakeGivesUpAfterMaxAttempts(t *testing.T) {
	p := newPage(t, WithMaxInitAttempts(2))
	rec := record(p.root)

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))

	p.clk.WaitForTimers(1)
	p.clk.Advance(DefaultInitRetryInterval)
	p.clk.WaitForTimers(1)
	p.clk.Advance(DefaultInitRetryInterval)

	err := p.nextError(t)
	assert.True(t, HasCode(err, ErrCodeHandshakeTimeout), "got %v", err)
	assert.True(t, IsTimeoutError(err))
	assert.Len(t, rec.named(MessageInit), 2)
	assert.False(t, block.Engine().Initialized())
}

func TestEngine_QueuedMessagesFlushInOrder(t *testing.T) {
	p := newPage(t)

	emb := NewModule("hook", SourceEmbedder, WithRegistry(p.reg))
	for _, name := range []string{"first", "second", "third"} {
		pending, err := emb.SendMessage(MessageContents{MessageName: name}, "")
		require.NoError(t, err)
		assert.Nil(t, pending)
	}
	require.NoError(t, emb.Initialize(p.root))
	assert.Equal(t, 3, emb.Engine().Queued())

	var mu sync.Mutex
	var order []string
	block := p.blockModule(t, "hook")
	for _, name := range []string{"first", "second", "third"} {
		require.NoError(t, block.On(name, noReply(func(MessageData) {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
		})))
	}
	require.NoError(t, block.Initialize(p.block))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(order) == 3
	}, 2*time.Second, time.Millisecond)
	assert.Equal(t, []string{"first", "second", "third"}, order)
	assert.Equal(t, 0, emb.Engine().Queued())
}

func TestEngine_RequestResponse(t *testing.T) {
	p := newPage(t)
	emb := p.embedder(t, "graph")
	require.NoError(t, emb.On("getEntity", func(_ context.Context, in MessageData) (*MessageData, error) {
		req, err := Decode[map[string]any](in.Data)
		if err != nil {
			return nil, err
		}
		return &MessageData{Data: map[string]any{"entityId": req["entityId"], "found": true}}, nil
	}))

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))

	got, err := block.Request(awaitCtx(t), MessageContents{
		MessageName: "getEntity",
		Data:        map[string]any{"entityId": "e-1"},
	}, "getEntityResponse")
	require.NoError(t, err)

	data, err := Decode[map[string]any](got.Data)
	require.NoError(t, err)
	assert.Equal(t, "e-1", data["entityId"])
	assert.Equal(t, true, data["found"])
}

func TestEngine_ResponseCarriesErrors(t *testing.T) {
	p := newPage(t)
	emb := p.embedder(t, "graph")
	require.NoError(t, emb.On("deleteEntity", func(context.Context, MessageData) (*MessageData, error) {
		return &MessageData{Errors: []MessageError{{Code: "FORBIDDEN", Message: "readonly"}}}, nil
	}))

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))

	got, err := block.Request(awaitCtx(t), MessageContents{MessageName: "deleteEntity"}, "deleteEntityResponse")
	require.NoError(t, err)
	require.Len(t, got.Errors, 1)
	assert.Equal(t, "FORBIDDEN", got.Errors[0].Code)
}

func TestEngine_MismatchedResponseName(t *testing.T) {
	p := newPage(t)

	// A hand-rolled embedder that answers getEntity with the wrong name and
	// then with the right one.
	p.root.Listen(EventName, func(ev Event) {
		msg, ok := MessageFromDetail(ev.Detail)
		if !ok || msg.Source != SourceBlock {
			return
		}
		reply := Message{RequestID: msg.RequestID, Module: msg.Module, Source: SourceEmbedder}
		switch msg.MessageName {
		case MessageInit:
			reply.MessageName = MessageInitResponse
			reply.Data = map[string]any{}
		case "getEntity":
			reply.MessageName = "queryEntitiesResponse"
			reply.Data = "payload"
			ev.Target.Dispatch(Event{Name: EventName, Target: ev.Target, Detail: reply})
			reply.MessageName = "getEntityResponse"
			reply.Data = "late"
		default:
			return
		}
		ev.Target.Dispatch(Event{Name: EventName, Target: ev.Target, Detail: reply})
	})

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))
	waitInitialized(t, block)

	got, err := block.Request(awaitCtx(t), MessageContents{MessageName: "getEntity"}, "getEntityResponse")
	require.Error(t, err)
	assert.True(t, IsMismatchError(err))
	assert.Contains(t, err.Error(), `expected response from message named "getEntityResponse"`)
	assert.Equal(t, "payload", got.Data, "mismatched data is still returned")
	assert.Equal(t, 0, pendingCount(block.Engine()), "the later response finds nothing to settle")
}

func TestEngine_MissingCallbackReported(t *testing.T) {
	p := newPage(t)
	p.embedder(t, "graph")

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))
	waitInitialized(t, block)

	_, err := block.SendMessage(MessageContents{MessageName: "getEntity"}, "getEntityResponse")
	require.NoError(t, err)

	reported := p.nextError(t)
	assert.True(t, IsMissingCallbackError(reported), "got %v", reported)
	assert.Contains(t, reported.Error(), `no callback for "getEntity" provided`)
}

func TestEngine_MessageWithoutCallbackOrResponseIsIgnored(t *testing.T) {
	p := newPage(t)
	p.embedder(t, "graph")

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))
	waitInitialized(t, block)

	_, err := block.SendMessage(MessageContents{MessageName: "notice"}, "")
	require.NoError(t, err)

	select {
	case err := <-p.errs:
		t.Fatalf("unexpected error: %v", err)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_CallbackFailureSendsNoResponse(t *testing.T) {
	p := newPage(t, WithRequestTimeout(time.Second))
	emb := p.embedder(t, "graph")
	require.NoError(t, emb.On("getEntity", func(context.Context, MessageData) (*MessageData, error) {
		return nil, errors.New("store offline")
	}))

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))
	waitInitialized(t, block)

	pending, err := block.SendMessage(MessageContents{MessageName: "getEntity"}, "getEntityResponse")
	require.NoError(t, err)

	reported := p.nextError(t)
	assert.True(t, HasCode(reported, ErrCodeCallbackFailed))
	assert.Contains(t, reported.Error(), "store offline")

	p.clk.Advance(time.Second)
	_, err = pending.Await(awaitCtx(t))
	assert.True(t, HasCode(err, ErrCodeRequestTimeout), "got %v", err)
}

func TestEngine_CallbackPanicRecovered(t *testing.T) {
	p := newPage(t)
	emb := p.embedder(t, "graph")
	require.NoError(t, emb.On("getEntity", func(context.Context, MessageData) (*MessageData, error) {
		panic("boom")
	}))

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))
	waitInitialized(t, block)

	_, err := block.SendMessage(MessageContents{MessageName: "getEntity"}, "getEntityResponse")
	require.NoError(t, err)

	reported := p.nextError(t)
	assert.True(t, HasCode(reported, ErrCodeCallbackFailed))
	assert.Contains(t, reported.Error(), "boom")
}

func TestEngine_CallbackMayAwaitOwnRequest(t *testing.T) {
	p := newPage(t)
	emb := p.embedder(t, "graph")
	require.NoError(t, emb.On("getEntity", func(context.Context, MessageData) (*MessageData, error) {
		return &MessageData{Data: "entity"}, nil
	}))

	block := p.blockModule(t, "graph")
	require.NoError(t, block.On("refresh", func(ctx context.Context, _ MessageData) (*MessageData, error) {
		got, err := block.Request(ctx, MessageContents{MessageName: "getEntity"}, "getEntityResponse")
		if err != nil {
			return nil, err
		}
		return &MessageData{Data: got.Data}, nil
	}))
	require.NoError(t, block.Initialize(p.block))
	waitInitialized(t, block)

	got, err := emb.Request(awaitCtx(t), MessageContents{MessageName: "refresh"}, "refreshResponse")
	require.NoError(t, err)
	assert.Equal(t, "entity", got.Data)
}

func TestEngine_TimestampsFromClock(t *testing.T) {
	p := newPage(t)
	rec := record(p.root)
	p.embedder(t, "graph")

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))
	waitInitialized(t, block)

	inits := rec.named(MessageInit)
	require.NotEmpty(t, inits)
	assert.True(t, testEpoch.Equal(inits[0].Timestamp))
}

func TestEngine_IgnoresOwnAndMalformedMessages(t *testing.T) {
	p := newPage(t)
	emb := p.embedder(t, "graph")

	called := make(chan struct{}, 4)
	require.NoError(t, emb.On("ping", noReply(func(MessageData) { called <- struct{}{} })))

	p.block.Dispatch(Event{Name: EventName, Detail: Message{RequestID: "r", Module: "graph", MessageName: "ping", Source: SourceEmbedder}})
	p.block.Dispatch(Event{Name: EventName, Detail: map[string]any{"module": "graph", "messageName": "ping", "source": "block"}})
	p.block.Dispatch(Event{Name: EventName, Detail: "not a message"})
	p.block.Dispatch(Event{Name: EventName, Detail: map[string]any{"requestId": "r2", "module": "graph", "messageName": "ping", "source": "block"}})

	select {
	case <-called:
	case <-time.After(2 * time.Second):
		t.Fatal("well-formed message was not delivered")
	}
	select {
	case <-called:
		t.Fatal("own or malformed message was delivered")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestEngine_CloseFailsPendingRequests(t *testing.T) {
	p := newPage(t)

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))

	pending, err := block.SendMessage(MessageContents{MessageName: "getEntity"}, "getEntityResponse")
	require.NoError(t, err)
	assert.Equal(t, 1, block.Engine().Queued())

	engine := block.Engine()
	block.Destroy()

	_, err = pending.Await(awaitCtx(t))
	assert.True(t, HasCode(err, ErrCodeEngineClosed), "got %v", err)
	select {
	case <-engine.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("engine loop did not exit")
	}
	assert.Equal(t, 0, p.block.ListenerCount(EventName))
}

func TestEngine_AwaitCancelledRemovesPending(t *testing.T) {
	p := newPage(t)

	block := p.blockModule(t, "graph")
	require.NoError(t, block.Initialize(p.block))
	pending, err := block.SendMessage(MessageContents{MessageName: "getEntity"}, "getEntityResponse")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = pending.Await(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	engine := block.Engine()
	engine.mu.Lock()
	_, stillPending := engine.pending[pending.RequestID()]
	engine.mu.Unlock()
	assert.False(t, stillPending)
}
