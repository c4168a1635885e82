package store

import (
	"context"
	"fmt"
	"time"

	"github.com/roach88/blockwire/internal/protocol"
)

// Entry is one message as recorded in the trace.
type Entry struct {
	Seq      int64            `json:"seq"`
	RunID    string           `json:"runId"`
	Endpoint string           `json:"endpoint"`
	Relay    string           `json:"relay,omitempty"`
	Message  protocol.Message `json:"message"`
}

// Record appends e and returns the sequence number it was stored under.
// e.Seq is ignored.
func (s *Store) Record(ctx context.Context, e Entry) (int64, error) {
	data, err := marshalData(e.Message.Data)
	if err != nil {
		return 0, fmt.Errorf("record message: %w", err)
	}
	errs, err := marshalErrors(e.Message.Errors)
	if err != nil {
		return 0, fmt.Errorf("record message: %w", err)
	}

	seq := s.seq.Next()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO messages
		(seq, run_id, endpoint, relay, request_id, module, message_name, source, responded_to_by, data, errors, sent_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		seq,
		e.RunID,
		e.Endpoint,
		e.Relay,
		e.Message.RequestID,
		e.Message.Module,
		e.Message.MessageName,
		string(e.Message.Source),
		e.Message.RespondedToBy,
		data,
		errs,
		e.Message.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("record message: %w", err)
	}
	return seq, nil
}
