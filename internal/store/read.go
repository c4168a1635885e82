package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/blockwire/internal/protocol"
)

// Filter selects trace entries. Zero fields match everything.
type Filter struct {
	RunID       string
	RequestID   string
	Module      string
	MessageName string
	Source      protocol.Source

	// AfterSeq skips entries at or below this sequence number.
	AfterSeq int64

	// Limit caps the number of entries returned. Zero means no limit.
	Limit int
}

func (f Filter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		clauses = append(clauses, clause)
		args = append(args, arg)
	}
	if f.RunID != "" {
		add("run_id = ?", f.RunID)
	}
	if f.RequestID != "" {
		add("request_id = ?", f.RequestID)
	}
	if f.Module != "" {
		add("module = ?", f.Module)
	}
	if f.MessageName != "" {
		add("message_name = ?", f.MessageName)
	}
	if f.Source != "" {
		add("source = ?", string(f.Source))
	}
	if f.AfterSeq > 0 {
		add("seq > ?", f.AfterSeq)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return "WHERE " + strings.Join(clauses, " AND "), args
}

// Messages returns the entries matching f, ordered by seq.
//
// Returns an empty slice (not nil) if nothing matches.
func (s *Store) Messages(ctx context.Context, f Filter) ([]Entry, error) {
	where, args := f.where()
	query := `
		SELECT seq, run_id, endpoint, relay, request_id, module, message_name, source, responded_to_by, data, errors, sent_at
		FROM messages ` + where + `
		ORDER BY seq ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return entries, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                  Entry
		source             string
		data, errs, sentAt string
	)
	if err := rows.Scan(
		&e.Seq,
		&e.RunID,
		&e.Endpoint,
		&e.Relay,
		&e.Message.RequestID,
		&e.Message.Module,
		&e.Message.MessageName,
		&source,
		&e.Message.RespondedToBy,
		&data,
		&errs,
		&sentAt,
	); err != nil {
		return Entry{}, fmt.Errorf("scan message: %w", err)
	}
	e.Message.Source = protocol.Source(source)

	var err error
	if e.Message.Data, err = unmarshalData(data); err != nil {
		return Entry{}, fmt.Errorf("message %d: %w", e.Seq, err)
	}
	if e.Message.Errors, err = unmarshalErrors(errs); err != nil {
		return Entry{}, fmt.Errorf("message %d: %w", e.Seq, err)
	}
	if e.Message.Timestamp, err = time.Parse(time.RFC3339Nano, sentAt); err != nil {
		return Entry{}, fmt.Errorf("message %d: parse sent_at: %w", e.Seq, err)
	}
	return e, nil
}

// Run summarizes the entries recorded under one run ID.
type Run struct {
	ID       string `json:"id"`
	Messages int    `json:"messages"`
	FirstSeq int64  `json:"firstSeq"`
	LastSeq  int64  `json:"lastSeq"`
}

// Runs lists every run in the order it started.
func (s *Store) Runs(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, COUNT(*), MIN(seq), MAX(seq)
		FROM messages
		GROUP BY run_id
		ORDER BY MIN(seq) ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.Messages, &r.FirstSeq, &r.LastSeq); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}
