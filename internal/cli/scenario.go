package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/blockwire/internal/harness"
	"github.com/roach88/blockwire/internal/store"
)

// NewScenarioCommand creates the scenario command group.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Run scripted block and embedder exchanges",
	}
	cmd.AddCommand(newScenarioRunCommand(rootOpts))
	return cmd
}

// ScenarioRunOptions holds flags for the scenario run command.
type ScenarioRunOptions struct {
	*RootOptions
	TracePath string
}

// ScenarioRunResult is what scenario run reports.
type ScenarioRunResult struct {
	*harness.SuiteResult
	RunPrefix string `json:"run_prefix,omitempty"`
}

func newScenarioRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioRunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <scenario-file|scenario-dir>",
		Short: "Run scenarios",
		Long: `Run a scenario file, or every .yaml and .yml scenario in a directory.

Each scenario loads a dock, connects a block to it through the handshake and
sends the scripted requests. Responses are checked against the expect clauses
and the message trace against the assertions.

With --trace (or trace.path in the config) every trace is recorded into the
SQLite database under the run ID <prefix>/<scenario name>; use "blockwire
trace" to inspect it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  blockwire scenario run ./scenarios
  blockwire scenario run ./scenarios/befriend.yaml --format json
  blockwire scenario run ./scenarios --trace ./trace.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.TracePath, "trace", "", "record traces into this SQLite database")

	return cmd
}

func runScenarios(opts *ScenarioRunOptions, path string, cmd *cobra.Command) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}

	info, err := os.Stat(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "scenario path not found", err)
	}
	paths := []string{path}
	if info.IsDir() {
		paths, err = harness.FindScenarios(path)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
	}

	runOpts := []harness.Option{harness.WithLogger(opts.logger())}
	result := ScenarioRunResult{}

	tracePath := opts.TracePath
	if tracePath == "" {
		tracePath = cfg.Trace.Path
	}
	if tracePath != "" {
		st, err := store.Open(tracePath)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace database", err)
		}
		defer st.Close()
		result.RunPrefix = uuid.NewString()
		runOpts = append(runOpts,
			harness.WithStore(st),
			harness.WithRunIDPrefix(result.RunPrefix+"/"),
		)
	}

	f := opts.formatter(cmd)
	f.VerboseLog("running %d scenario(s)", len(paths))
	result.SuiteResult = harness.RunFiles(paths, runOpts...)

	err = f.Render(result, func(w io.Writer) {
		if result.Total == 0 {
			fmt.Fprintln(w, "No scenarios found.")
			return
		}
		for _, failure := range result.Failures {
			fmt.Fprintf(w, "✗ %s (%s)\n", failure.Scenario, failure.Path)
			for _, e := range failure.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		fmt.Fprintf(w, "\n%d scenarios: %d passed, %d failed\n", result.Total, result.Passed, result.Failed)
		if result.RunPrefix != "" {
			fmt.Fprintf(w, "Traces recorded under %s/\n", result.RunPrefix)
		}
	})
	if err != nil {
		return err
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}
