package protocol

import (
	"context"
	"fmt"
	"slices"
)

// Initialize starts the handshake. A block engine sends core/init and resends
// it until an initResponse arrives; an embedder engine only waits for init.
// Calling Initialize again has no effect.
func (e *Engine) Initialize() {
	if e.source != SourceBlock {
		return
	}
	e.mu.Lock()
	if e.initialized || e.handshaking || e.closed {
		e.mu.Unlock()
		return
	}
	e.handshaking = true
	e.mu.Unlock()

	go e.runHandshake(e.ctx)
}

// WaitInitialized blocks until the handshake completes or ctx ends.
func (e *Engine) WaitInitialized(ctx context.Context) error {
	select {
	case <-e.initDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) runHandshake(ctx context.Context) {
	for attempt := 1; ; attempt++ {
		select {
		case <-e.initDone:
			return
		default:
		}

		msg := Message{
			RequestID:   e.ids.Generate(),
			Module:      CoreModule,
			MessageName: MessageInit,
			Source:      e.source,
		}
		if err := e.send(msg, nil); err != nil {
			return
		}
		e.logger.Debug("init sent",
			"endpoint", e.endpoint.Path(),
			"request_id", msg.RequestID,
			"attempt", attempt,
		)

		select {
		case <-e.initDone:
			return
		case <-ctx.Done():
			return
		case <-e.clock.After(e.initRetryInterval):
		}

		if e.maxInitAttempts > 0 && attempt >= e.maxInitAttempts {
			e.mu.Lock()
			e.handshaking = false
			e.mu.Unlock()
			e.report(&ProtocolError{
				Code:        ErrCodeHandshakeTimeout,
				Message:     fmt.Sprintf("no initResponse after %d init messages", attempt),
				Module:      CoreModule,
				MessageName: MessageInit,
			})
			return
		}
	}
}

// processInit answers a block's init with the init payloads of every
// registered module. Repeated inits are answered again but do not re-flush.
func (e *Engine) processInit(item inbound) {
	e.RebindPeer(item.target)

	e.mu.Lock()
	modules := make([]ModuleHandler, 0, len(e.modules))
	for _, m := range e.modules {
		modules = append(modules, m)
	}
	e.mu.Unlock()
	slices.SortFunc(modules, func(a, b ModuleHandler) int {
		switch {
		case a.Name() < b.Name():
			return -1
		case a.Name() > b.Name():
			return 1
		}
		return 0
	})

	payload := make(map[string]map[string]any, len(modules))
	for _, m := range modules {
		p := m.InitPayload()
		if p == nil {
			p = map[string]any{}
		}
		payload[m.Name()] = p
	}

	err := e.send(Message{
		RequestID:   item.message.RequestID,
		Module:      CoreModule,
		MessageName: MessageInitResponse,
		Source:      e.source,
		Data:        payload,
	}, nil)
	if err != nil {
		e.report(err)
		return
	}
	e.logger.Debug("init answered",
		"endpoint", e.endpoint.Path(),
		"peer", item.target.Path(),
		"request_id", item.message.RequestID,
		"modules", len(payload),
	)
	e.afterInitialized()
}

// processInitResponse delivers each init payload entry to the callback
// registered for it. Responses after the first are ignored.
func (e *Engine) processInitResponse(msg Message) {
	if e.Initialized() {
		return
	}

	payload, err := Decode[map[string]map[string]any](msg.Data)
	if err != nil {
		e.report(&ProtocolError{
			Code:        ErrCodeCallbackFailed,
			Message:     "malformed initResponse payload",
			Module:      CoreModule,
			MessageName: MessageInitResponse,
			RequestID:   msg.RequestID,
			Err:         err,
		})
		payload = nil
	}

	modules := make([]string, 0, len(payload))
	for name := range payload {
		modules = append(modules, name)
	}
	slices.Sort(modules)
	for _, module := range modules {
		names := make([]string, 0, len(payload[module]))
		for name := range payload[module] {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			e.mu.Lock()
			cb := e.callbacks[keyFor(module, name)]
			e.mu.Unlock()
			if cb == nil {
				continue
			}
			if _, err := e.invoke(cb, MessageData{Data: payload[module][name]}); err != nil {
				e.report(&ProtocolError{
					Code:        ErrCodeCallbackFailed,
					Message:     "init payload callback failed",
					Module:      module,
					MessageName: name,
					RequestID:   msg.RequestID,
					Err:         err,
				})
			}
		}
	}

	e.logger.Debug("initResponse received",
		"endpoint", e.endpoint.Path(),
		"request_id", msg.RequestID,
		"modules", len(modules),
	)
	e.afterInitialized()
}

// afterInitialized marks the engine initialized and flushes queued messages
// to the peer in the order they were sent.
func (e *Engine) afterInitialized() {
	e.sendMu.Lock()
	defer e.sendMu.Unlock()

	e.mu.Lock()
	if e.initialized || e.closed {
		e.mu.Unlock()
		return
	}
	e.initialized = true
	e.handshaking = false
	close(e.initDone)
	queued := e.outbound
	e.outbound = nil
	target := e.peer
	e.mu.Unlock()

	e.logger.Info("handshake complete",
		"role", e.source,
		"endpoint", e.endpoint.Path(),
		"flushed", len(queued),
	)
	for _, msg := range queued {
		e.dispatchLocked(target, msg)
	}
}
