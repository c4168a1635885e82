package graphmodule

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/blockwire/internal/protocol"
)

// Handler answers one request type.
type Handler[Req, Resp any] func(ctx context.Context, req Req) (Resp, error)

// Handle adapts h into a protocol callback. Request data that does not
// decode into Req is answered with INVALID_INPUT; a *ResponseError from h
// is sent back as response errors. Any other error fails the callback and
// no response is sent.
func Handle[Req, Resp any](h Handler[Req, Resp]) protocol.Callback {
	return func(ctx context.Context, in protocol.MessageData) (*protocol.MessageData, error) {
		req, err := protocol.Decode[Req](in.Data)
		if err != nil {
			return &protocol.MessageData{Errors: []protocol.MessageError{{
				Code:    CodeInvalidInput,
				Message: err.Error(),
			}}}, nil
		}

		resp, err := h(ctx, req)
		if err != nil {
			var re *ResponseError
			if errors.As(err, &re) {
				return &protocol.MessageData{Errors: re.Errors}, nil
			}
			return nil, err
		}
		return &protocol.MessageData{Data: resp}, nil
	}
}

// push adapts a handler for a message that expects no response.
func push[T any](fn func(context.Context, T) error) protocol.Callback {
	return func(ctx context.Context, in protocol.MessageData) (*protocol.MessageData, error) {
		v, err := protocol.Decode[T](in.Data)
		if err != nil {
			return nil, fmt.Errorf("decode %T: %w", v, err)
		}
		return nil, fn(ctx, v)
	}
}

// request sends a graph request and decodes its response into Resp.
func request[Resp any](ctx context.Context, m *protocol.Module, name string, data any) (Resp, error) {
	var zero Resp
	out, err := m.Request(ctx, protocol.MessageContents{MessageName: name, Data: data}, responseName(name))
	if err != nil {
		return zero, fmt.Errorf("%s: %w", name, err)
	}
	if len(out.Errors) > 0 {
		return zero, &ResponseError{MessageName: name, Errors: out.Errors}
	}
	resp, err := protocol.Decode[Resp](out.Data)
	if err != nil {
		return zero, fmt.Errorf("%s: %w", name, err)
	}
	return resp, nil
}
