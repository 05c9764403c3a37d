package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/cogflow"
	"github.com/aretw0/cogflow/internal/metrics"
	httpAdapter "github.com/aretw0/cogflow/pkg/adapters/http"
	"github.com/aretw0/cogflow/pkg/adapters/mcp"
)

// ServeOptions are the flags of the serve command.
type ServeOptions struct {
	Options
	// Addr overrides server.addr.
	Addr string
	// MCP also serves the MCP SSE transport on server.mcp_addr.
	MCP bool
}

// Serve runs the HTTP API, with metrics and event streams, until ctx ends.
func Serve(ctx context.Context, opts ServeOptions) error {
	m := metrics.New()
	streams := httpAdapter.NewStreamManager(nil)
	sess, err := CreateEngine(opts.Options,
		cogflow.WithLifecycleHooks(m.Hooks()),
		cogflow.WithLifecycleHooks(streams.Hooks()),
	)
	if err != nil {
		return err
	}
	defer sess.Close()

	addr := opts.Addr
	if addr == "" {
		addr = sess.Config.Server.Addr
	}
	handler := httpAdapter.NewHandler(sess.Engine,
		httpAdapter.WithStore(sess.Engine.Store()),
		httpAdapter.WithStreams(streams),
		httpAdapter.WithMetrics(m.Handler()),
		httpAdapter.WithVersion(cogflow.Version),
		httpAdapter.WithLogger(sess.Logger),
	)
	srv := &http.Server{Addr: addr, Handler: handler}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sess.Logger.Info("http server listening", "address", addr, "program", sess.Engine.Name)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown did not complete: %w", err)
		}
		sess.Logger.Info("http server stopped")
		return nil
	})
	if opts.MCP {
		mcpSrv := mcp.NewServer(sess.Engine, cogflow.Version,
			mcp.WithStore(sess.Engine.Store()), mcp.WithLogger(sess.Logger))
		g.Go(func() error { return mcpSrv.ServeSSE(ctx, sess.Config.Server.MCPAddr) })
	}
	return g.Wait()
}

// MCPOptions are the flags of the mcp command.
type MCPOptions struct {
	Options
	// Transport is stdio or sse.
	Transport string
	// Addr overrides server.mcp_addr for sse.
	Addr string
}

// ServeMCP runs the MCP server until ctx ends or stdin closes.
func ServeMCP(ctx context.Context, opts MCPOptions) error {
	sess, err := CreateEngine(opts.Options)
	if err != nil {
		return err
	}
	defer sess.Close()

	srv := mcp.NewServer(sess.Engine, cogflow.Version,
		mcp.WithStore(sess.Engine.Store()), mcp.WithLogger(sess.Logger))
	switch opts.Transport {
	case "stdio", "":
		sess.Logger.Info("mcp server starting (stdio)", "program", sess.Engine.Name)
		return srv.ServeStdio()
	case "sse":
		addr := opts.Addr
		if addr == "" {
			addr = sess.Config.Server.MCPAddr
		}
		return srv.ServeSSE(ctx, addr)
	}
	return fmt.Errorf("unknown transport %q: supported are stdio and sse", opts.Transport)
}
