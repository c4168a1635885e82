package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/blockwire/internal/graphmodule"
	"github.com/roach88/blockwire/internal/moduledef"
)

// NewModuleCommand creates the module command group.
func NewModuleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "module",
		Short: "Work with module message catalogues",
		Long: `Work with module message catalogues written in CUE.

A catalogue declares, per module, every message each role may send, which
message answers it, which messages are sent on initialization and which
error codes a response may carry.`,
	}
	cmd.AddCommand(newModuleValidateCommand(rootOpts))
	cmd.AddCommand(newModuleShowCommand(rootOpts))
	return cmd
}

// ModuleSummary describes a compiled module.
type ModuleSummary struct {
	Name        string              `json:"name"`
	Version     string              `json:"version"`
	CoreVersion string              `json:"core_version"`
	Messages    []moduledef.Message `json:"messages"`
}

func summarizeModule(d *moduledef.Definition) ModuleSummary {
	return ModuleSummary{
		Name:        d.Name,
		Version:     d.Version,
		CoreVersion: d.CoreVersion,
		Messages:    d.Messages,
	}
}

func newModuleValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <catalogue.cue>",
		Short: "Validate a module catalogue",
		Long: `Compile a CUE module catalogue against the catalogue schema.

Exit codes:
  0 - Catalogue is valid
  1 - Catalogue is invalid
  2 - Command error (unreadable file, etc.)

Examples:
  blockwire module validate ./hook.cue
  blockwire module validate ./hook.cue --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(args[0]); err != nil {
				return WrapExitError(ExitCommandError, "catalogue not found", err)
			}

			f := rootOpts.formatter(cmd)
			defs, err := moduledef.CompileFile(args[0])
			if err != nil {
				var details any
				var ce *moduledef.CompileError
				if errors.As(err, &ce) {
					details = map[string]string{"field": ce.Field}
				}
				if ferr := f.Fail(CodeInvalidInput, err.Error(), details); ferr != nil {
					return ferr
				}
				return WrapExitError(ExitFailure, "invalid catalogue", err)
			}

			summaries := make([]ModuleSummary, 0, len(defs))
			for _, d := range defs {
				summaries = append(summaries, summarizeModule(d))
			}
			return f.Render(summaries, func(w io.Writer) {
				for _, s := range summaries {
					fmt.Fprintf(w, "✓ %s %s (core %s): %d messages\n", s.Name, s.Version, s.CoreVersion, len(s.Messages))
				}
			})
		},
	}
}

func newModuleShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show [catalogue.cue]",
		Short: "Show the messages of a module catalogue",
		Long: `Show every message a catalogue declares. Without an argument the
built-in graph module is shown.

Examples:
  blockwire module show
  blockwire module show ./hook.cue --format json`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			defs := []*moduledef.Definition{graphmodule.Definition()}
			if len(args) == 1 {
				var err error
				defs, err = moduledef.CompileFile(args[0])
				if err != nil {
					return WrapExitError(ExitFailure, "failed to compile catalogue", err)
				}
			}

			summaries := make([]ModuleSummary, 0, len(defs))
			for _, d := range defs {
				summaries = append(summaries, summarizeModule(d))
			}
			return rootOpts.formatter(cmd).Render(summaries, func(w io.Writer) {
				for _, s := range summaries {
					fmt.Fprintf(w, "%s %s\n", s.Name, s.Version)
					for _, m := range s.Messages {
						formatModuleMessage(w, m)
					}
				}
			})
		},
	}
}

func formatModuleMessage(w io.Writer, m moduledef.Message) {
	fmt.Fprintf(w, "  %-8s %s", m.Source, m.Name)
	if m.RespondedToBy != "" {
		fmt.Fprintf(w, " -> %s", m.RespondedToBy)
	}
	if m.SentOnInitialization {
		fmt.Fprint(w, " (on init)")
	}
	if len(m.ErrorCodes) > 0 {
		fmt.Fprintf(w, " [%s]", strings.Join(m.ErrorCodes, ", "))
	}
	fmt.Fprintln(w)
}
