package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/blockwire/internal/protocol"
	"github.com/roach88/blockwire/internal/store"
)

// TraceOptions holds flags shared by the trace commands.
type TraceOptions struct {
	*RootOptions
	Database string
}

// TraceShowOptions holds flags for the trace show command.
type TraceShowOptions struct {
	*TraceOptions
	RunID       string
	RequestID   string
	Module      string
	MessageName string
	Source      string
	Limit       int
}

// NewTraceCommand creates the trace command group.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded message traces",
		Long: `Inspect message traces recorded by "blockwire scenario run --trace" and
"blockwire dock serve --trace".

The database defaults to trace.path from the config.`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to the trace database")

	cmd.AddCommand(newTraceListCommand(opts))
	cmd.AddCommand(newTraceShowCommand(opts))
	return cmd
}

func newTraceListCommand(opts *TraceOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List recorded runs",
		Long: `List every recorded run with its message count and sequence range.

Examples:
  blockwire trace list --db ./trace.db
  blockwire trace list --db ./trace.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := opts.open()
			if err != nil {
				return err
			}
			defer st.Close()

			runs, err := st.Runs(context.Background())
			if err != nil {
				return WrapExitError(ExitCommandError, "failed to list runs", err)
			}
			return opts.formatter(cmd).Render(runs, func(w io.Writer) {
				if len(runs) == 0 {
					fmt.Fprintln(w, "No runs recorded.")
					return
				}
				for _, r := range runs {
					fmt.Fprintf(w, "%s  %d messages  seq %d-%d\n", r.ID, r.Messages, r.FirstSeq, r.LastSeq)
				}
			})
		},
	}
}

func newTraceShowCommand(traceOpts *TraceOptions) *cobra.Command {
	opts := &TraceShowOptions{TraceOptions: traceOpts}

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show recorded messages",
		Long: `Show recorded messages in the order they were dispatched.

Without filters every message of every run is shown.

Examples:
  blockwire trace show --db ./trace.db --run 3f2a.../befriend
  blockwire trace show --db ./trace.db --run serve-1 --module graph --source block
  blockwire trace show --db ./trace.db --request req-4 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceShow(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "filter by run ID")
	cmd.Flags().StringVar(&opts.RequestID, "request", "", "filter by request ID")
	cmd.Flags().StringVar(&opts.Module, "module", "", "filter by module name")
	cmd.Flags().StringVar(&opts.MessageName, "message", "", "filter by message name")
	cmd.Flags().StringVar(&opts.Source, "source", "", "filter by source (block|embedder)")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of messages")

	return cmd
}

func runTraceShow(opts *TraceShowOptions, cmd *cobra.Command) error {
	filter := store.Filter{
		RunID:       opts.RunID,
		RequestID:   opts.RequestID,
		Module:      opts.Module,
		MessageName: opts.MessageName,
		Source:      protocol.Source(opts.Source),
		Limit:       opts.Limit,
	}
	switch filter.Source {
	case "", protocol.SourceBlock, protocol.SourceEmbedder:
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid source %q: must be block or embedder", opts.Source))
	}
	if filter.Limit < 0 {
		return NewExitError(ExitCommandError, "limit must not be negative")
	}

	st, err := opts.open()
	if err != nil {
		return err
	}
	defer st.Close()

	entries, err := st.Messages(context.Background(), filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read messages", err)
	}
	return opts.formatter(cmd).Render(entries, func(w io.Writer) {
		if len(entries) == 0 {
			fmt.Fprintln(w, "No messages found.")
			return
		}
		for _, e := range entries {
			formatEntry(w, e, opts.Verbose)
		}
	})
}

// formatEntry writes one message line. Verbose adds the payload.
func formatEntry(w io.Writer, e store.Entry, verbose bool) {
	m := e.Message
	fmt.Fprintf(w, "[%d] %s %-8s %s/%s %s", e.Seq, e.RunID, m.Source, m.Module, m.MessageName, m.RequestID)
	if m.RespondedToBy != "" {
		fmt.Fprintf(w, " -> %s", m.RespondedToBy)
	}
	for _, me := range m.Errors {
		fmt.Fprintf(w, " !%s", me.Code)
	}
	fmt.Fprintln(w)
	if verbose && m.Data != nil {
		fmt.Fprintf(w, "    %s\n", compactJSON(m.Data))
	}
}

// open opens the trace database, which must already exist.
func (o *TraceOptions) open() (*store.Store, error) {
	path := o.Database
	if path == "" {
		cfg, err := o.config()
		if err != nil {
			return nil, err
		}
		path = cfg.Trace.Path
	}
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no trace database: pass --db or set trace.path")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, "trace database not found", err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open trace database", err)
	}
	return st, nil
}
