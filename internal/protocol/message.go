package protocol

import (
	"encoding/json"
	"fmt"
	"time"
)

// Source identifies the role that sent a message.
type Source string

const (
	SourceBlock    Source = "block"
	SourceEmbedder Source = "embedder"
)

// Peer returns the opposite role.
func (s Source) Peer() Source {
	if s == SourceBlock {
		return SourceEmbedder
	}
	return SourceBlock
}

// EventName is the single event type that carries protocol messages.
const EventName = "blockprotocolmessage"

// Handshake message names, sent under CoreModule.
const (
	CoreModule          = "core"
	MessageInit         = "init"
	MessageInitResponse = "initResponse"
)

// MessageError is an application error carried inside a message.
type MessageError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Extensions any    `json:"extensions,omitempty"`
}

// MessageData is what a callback receives and what a response carries.
type MessageData struct {
	Data   any            `json:"data,omitempty"`
	Errors []MessageError `json:"errors,omitempty"`
}

// MessageContents is the module-level part of an outbound message.
type MessageContents struct {
	MessageName string
	Data        any
	Errors      []MessageError
}

// Message is the envelope exchanged between roles.
type Message struct {
	RequestID     string         `json:"requestId"`
	Module        string         `json:"module"`
	MessageName   string         `json:"messageName"`
	Source        Source         `json:"source"`
	RespondedToBy string         `json:"respondedToBy,omitempty"`
	Data          any            `json:"data,omitempty"`
	Errors        []MessageError `json:"errors,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}

// valid reports whether m carries every required envelope field.
func (m Message) valid() bool {
	return m.RequestID != "" && m.Module != "" && m.MessageName != "" &&
		(m.Source == SourceBlock || m.Source == SourceEmbedder)
}

func (m Message) isHandshake() bool {
	return m.Module == CoreModule && (m.MessageName == MessageInit || m.MessageName == MessageInitResponse)
}

// MessageFromDetail extracts a message from an event detail. Details decoded
// off the wire arrive as generic maps and are converted through JSON.
func MessageFromDetail(detail any) (Message, bool) {
	switch d := detail.(type) {
	case Message:
		return d, true
	case *Message:
		if d == nil {
			return Message{}, false
		}
		return *d, true
	case nil:
		return Message{}, false
	}
	var m Message
	if err := Convert(detail, &m); err != nil {
		return Message{}, false
	}
	return m, true
}

// Decode converts message data into T. Values already of type T are returned
// as is; anything else goes through its JSON encoding.
func Decode[T any](data any) (T, error) {
	var out T
	if data == nil {
		return out, nil
	}
	if v, ok := data.(T); ok {
		return v, nil
	}
	if err := Convert(data, &out); err != nil {
		return out, err
	}
	return out, nil
}

// Convert re-encodes src into dst through JSON.
func Convert(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return fmt.Errorf("encode message data: %w", err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode message data: %w", err)
	}
	return nil
}
