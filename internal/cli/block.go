package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"slices"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/blockwire/internal/bridge"
	"github.com/roach88/blockwire/internal/graphmodule"
	"github.com/roach88/blockwire/internal/protocol"
	"github.com/roach88/blockwire/internal/subgraph"
)

// BlockCallResult is the outcome of one request sent by a remote block.
type BlockCallResult struct {
	Request string                  `json:"request"`
	Data    any                     `json:"data,omitempty"`
	Errors  []protocol.MessageError `json:"errors,omitempty"`

	// Readonly and BlockEntities are the state delivered by the handshake.
	Readonly      bool     `json:"readonly"`
	BlockEntities []string `json:"block_entities,omitempty"`
}

// CallBlock connects a block to the embedder on the other end of conn,
// completes the handshake and sends one graph request. conn is closed
// before CallBlock returns.
func CallBlock(ctx context.Context, conn io.ReadWriteCloser, request string, data any, logger *slog.Logger, engineOpts ...protocol.EngineOption) (*BlockCallResult, error) {
	msg, ok := graphmodule.Definition().Lookup(request, string(protocol.SourceBlock))
	if !ok || msg.RespondedToBy == "" {
		conn.Close()
		return nil, fmt.Errorf("%q is not a graph request", request)
	}

	reg := protocol.NewRegistry(append(slices.Clone(engineOpts), protocol.WithLogger(logger))...)
	defer reg.Close()

	root := protocol.NewEndpoint("remote", nil)
	ep := protocol.NewEndpoint("block", root)
	br := bridge.New(ep, conn, bridge.WithLogger(logger))

	bridgeCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- br.Run(bridgeCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	result := &BlockCallResult{Request: request}
	var mu sync.Mutex
	block := graphmodule.NewBlockHandler(protocol.WithRegistry(reg))
	defer block.Destroy()
	if err := block.OnBlockEntitySubgraph(func(_ context.Context, sg *subgraph.Subgraph) error {
		ids := entityIDs(subgraph.GetEntities(sg, true))
		slices.Sort(ids)
		mu.Lock()
		result.BlockEntities = ids
		mu.Unlock()
		return nil
	}); err != nil {
		return nil, err
	}
	if err := block.OnReadonly(func(_ context.Context, readonly bool) error {
		mu.Lock()
		result.Readonly = readonly
		mu.Unlock()
		return nil
	}); err != nil {
		return nil, err
	}
	if err := block.Initialize(ep); err != nil {
		return nil, fmt.Errorf("initialize block: %w", err)
	}
	if err := block.Module().Engine().WaitInitialized(ctx); err != nil {
		return nil, fmt.Errorf("handshake: %w", err)
	}

	out, err := block.Module().Request(ctx, protocol.MessageContents{
		MessageName: request,
		Data:        data,
	}, msg.RespondedToBy)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", request, err)
	}

	mu.Lock()
	defer mu.Unlock()
	result.Data = out.Data
	result.Errors = out.Errors
	return result, nil
}

// NewBlockCommand creates the block command group.
func NewBlockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "block",
		Short: "Act as a block against a served dock",
	}
	cmd.AddCommand(newBlockCallCommand(rootOpts))
	return cmd
}

// BlockCallOptions holds flags for the block call command.
type BlockCallOptions struct {
	*RootOptions
	Socket  string
	Timeout time.Duration
}

func newBlockCallCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BlockCallOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "call <request> [data]",
		Short: "Send one graph request to a served dock",
		Long: `Connect to "blockwire dock serve" as a block, complete the handshake and
send one graph request. data is the request payload as JSON or YAML.

Exit codes:
  0 - The response carried no errors
  1 - The response carried errors
  2 - Command error (unreachable socket, invalid payload, etc.)

Examples:
  blockwire block call getEntity '{"entityId": "alice"}'
  blockwire block call createEntity '{entityTypeId: "https://example.com/types/entity-type/person/v/1", properties: {name: Dave}}'
  blockwire block call queryEntities '{operation: {limit: 2}}' --format json`,
		Args:          cobra.RangeArgs(1, 2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlockCall(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Socket, "socket", "", "unix socket of the served dock")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", 10*time.Second, "handshake and request timeout")

	return cmd
}

func runBlockCall(opts *BlockCallOptions, args []string, cmd *cobra.Command) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}

	var data any
	if len(args) == 2 {
		if err := yaml.Unmarshal([]byte(args[1]), &data); err != nil {
			return WrapExitError(ExitCommandError, "invalid request data", err)
		}
	}

	socket := opts.Socket
	if socket == "" {
		socket = cfg.Bridge.Socket
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
	defer cancel()

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "unix", socket)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to connect", err)
	}

	result, err := CallBlock(ctx, conn, args[0], data, opts.logger(), cfg.EngineOptions(nil)...)
	if err != nil {
		return WrapExitError(ExitCommandError, "request failed", err)
	}

	f := opts.formatter(cmd)
	if len(result.Errors) > 0 {
		first := result.Errors[0]
		if err := f.Fail(CodeResponse, fmt.Sprintf("%s: %s", first.Code, first.Message), result.Errors); err != nil {
			return err
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%s responded with %s", result.Request, first.Code))
	}
	return f.Render(result, func(w io.Writer) {
		out, err := json.MarshalIndent(result.Data, "", "  ")
		if err != nil {
			fmt.Fprintln(w, result.Data)
			return
		}
		fmt.Fprintln(w, string(out))
	})
}
