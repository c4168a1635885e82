package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"slices"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/blockwire/internal/bridge"
	"github.com/roach88/blockwire/internal/dock"
	"github.com/roach88/blockwire/internal/graphmodule"
	"github.com/roach88/blockwire/internal/protocol"
	"github.com/roach88/blockwire/internal/store"
	"github.com/roach88/blockwire/internal/subgraph"
)

// DockServer serves one dock to every block that connects to it. Each
// connection gets its own embedder, registry and trace run.
type DockServer struct {
	Dock        *dock.Dock
	BlockEntity subgraph.EntityID

	// EngineOptions apply to every connection's registry.
	EngineOptions []protocol.EngineOption

	// Store records each connection's messages when set.
	Store *store.Store

	Logger *slog.Logger
}

// Serve accepts connections until ctx ends or the listener fails. It
// waits for open connections to finish before returning.
func (s *DockServer) Serve(ctx context.Context, ln net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.ServeConn(ctx, conn); err != nil && !errors.Is(err, context.Canceled) {
				s.logger().Warn("connection failed", "error", err)
			}
		}()
	}
}

// ServeConn relays one block connection to a fresh embedder until the
// stream closes or ctx ends.
func (s *DockServer) ServeConn(ctx context.Context, conn io.ReadWriteCloser) error {
	runID := uuid.NewString()
	logger := s.logger().With("run_id", runID)

	reg := protocol.NewRegistry(append(slices.Clone(s.EngineOptions), protocol.WithLogger(logger))...)
	defer reg.Close()

	root := protocol.NewEndpoint("page", nil)
	if s.Store != nil {
		rec := s.Store.Attach(root, runID, logger)
		defer func() {
			if err := rec.Close(); err != nil {
				logger.Error("trace flush failed", "error", err)
			}
		}()
	}

	emb, err := s.Dock.NewEmbedder(s.BlockEntity, graphmodule.WithModuleOptions(protocol.WithRegistry(reg)))
	if err != nil {
		conn.Close()
		return fmt.Errorf("attach embedder: %w", err)
	}
	defer s.Dock.Detach(emb)
	defer emb.Destroy()

	if err := emb.Initialize(root); err != nil {
		conn.Close()
		return fmt.Errorf("initialize embedder: %w", err)
	}

	br := bridge.New(root, conn, bridge.WithName(runID), bridge.WithLogger(logger))
	logger.Info("block connected")
	err = br.Run(ctx)
	logger.Info("block disconnected", "sent", br.Sent(), "received", br.Received())
	return err
}

func (s *DockServer) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// NewDockCommand creates the dock command group.
func NewDockCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dock",
		Short: "Serve an in-memory entity graph to blocks",
	}
	cmd.AddCommand(newDockServeCommand(rootOpts))
	return cmd
}

// DockServeOptions holds flags for the dock serve command.
type DockServeOptions struct {
	*RootOptions
	Fixture     string
	BlockEntity string
	Readonly    bool
	Socket      string
	TracePath   string
}

func newDockServeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DockServeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a dock over a unix socket",
		Long: `Load an elements file into a dock and serve it over a unix socket.

Every connection is a block: it gets its own embedder, which answers the
handshake with the dock's readonly flag and the subgraph around the block
entity, and serves graph requests from the dock. Mutations are pushed to
every connected block.

The socket defaults to bridge.socket and the trace database to trace.path
from the config. Stop with Ctrl-C.

Examples:
  blockwire dock serve --fixture ./social.yaml --block-entity alice
  blockwire dock serve --fixture ./social.yaml --socket /tmp/dock.sock --readonly
  blockwire dock serve --fixture ./social.yaml --trace ./trace.db`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDockServe(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Fixture, "fixture", "", "elements file to load (required)")
	_ = cmd.MarkFlagRequired("fixture")
	cmd.Flags().StringVar(&opts.BlockEntity, "block-entity", "", "entity whose subgraph is sent to blocks")
	cmd.Flags().BoolVar(&opts.Readonly, "readonly", false, "reject mutations")
	cmd.Flags().StringVar(&opts.Socket, "socket", "", "unix socket path")
	cmd.Flags().StringVar(&opts.TracePath, "trace", "", "record messages into this SQLite database")

	return cmd
}

func runDockServe(opts *DockServeOptions, cmd *cobra.Command) error {
	cfg, err := opts.config()
	if err != nil {
		return err
	}
	logger := opts.logger()

	elements, err := subgraph.LoadElements(opts.Fixture)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load fixture", err)
	}
	d := dock.New(elements, dock.WithReadonly(opts.Readonly), dock.WithLogger(logger))
	if opts.BlockEntity != "" {
		if _, ok := d.Entity(subgraph.EntityID(opts.BlockEntity)); !ok {
			return NewExitError(ExitCommandError, fmt.Sprintf("block entity %q not in fixture", opts.BlockEntity))
		}
	}

	server := &DockServer{
		Dock:          d,
		BlockEntity:   subgraph.EntityID(opts.BlockEntity),
		EngineOptions: cfg.EngineOptions(nil),
		Logger:        logger,
	}

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
		server.Store = st
	}

	socket := opts.Socket
	if socket == "" {
		socket = cfg.Bridge.Socket
	}
	if err := removeStaleSocket(socket); err != nil {
		return WrapExitError(ExitCommandError, "failed to remove stale socket", err)
	}
	ln, err := net.Listen("unix", socket)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to listen", err)
	}
	defer os.Remove(socket)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("dock serving",
		"socket", socket,
		"entities", len(d.Entities()),
		"readonly", opts.Readonly,
		"trace", tracePath,
	)
	if err := server.Serve(ctx, ln); err != nil {
		return WrapExitError(ExitFailure, "dock stopped", err)
	}
	return nil
}

// removeStaleSocket removes a socket left behind by an earlier server.
// Anything else at path is left alone.
func removeStaleSocket(path string) error {
	fi, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if fi.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}
	return os.Remove(path)
}
