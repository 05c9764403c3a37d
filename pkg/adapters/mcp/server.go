// Package mcp exposes a program over the Model Context Protocol.
//
// Every entry becomes a tool named run_<entry> that takes the program inputs
// as a JSON object. Stored runs are readable as cogflow://runs/{id} resources.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"golang.org/x/sync/errgroup"

	"github.com/aretw0/cogflow/internal/logging"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/ports"
)

const (
	programURI = "cogflow://program"
	runsURI    = "cogflow://runs/"
)

// RunResponse is the structured result of a run tool.
type RunResponse struct {
	Entry   string         `json:"entry" jsonschema_description:"The entry that was run"`
	Outputs map[string]any `json:"outputs" jsonschema_description:"Values returned by the program"`
}

// Engine is what the server needs from a loaded program.
type Engine interface {
	Program() *domain.Program
	Run(ctx context.Context, entry string, inputs map[string]any) (map[string]any, error)
	Graph(kind, prompt string) (string, error)
}

// Server wraps an engine as an MCP server.
type Server struct {
	engine    Engine
	store     ports.RunStore
	logger    *slog.Logger
	mcpServer *server.MCPServer
}

type Option func(*Server)

// WithStore exposes stored runs as resources.
func WithStore(s ports.RunStore) Option { return func(srv *Server) { srv.store = s } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(srv *Server) { srv.logger = l } }

// NewServer creates an MCP server for engine.
func NewServer(engine Engine, version string, opts ...Option) *Server {
	s := &Server{
		engine:    engine,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("cogflow-mcp", version),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer { return s.mcpServer }

// ServeStdio serves on stdin and stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx ends.
func (s *Server) ServeSSE(ctx context.Context, addr string) error {
	baseURL := "http://" + addr
	if strings.HasPrefix(addr, ":") {
		baseURL = "http://localhost" + addr
	}
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))
	httpServer := &http.Server{Addr: addr, Handler: mux}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("mcp server listening (sse)", "address", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ToolName is the name of the tool that runs entry.
func ToolName(entry string) string { return "run_" + entry }

func (s *Server) registerTools() {
	prog := s.engine.Program()

	entries := make([]string, 0, len(prog.Entries))
	for e := range prog.Entries {
		entries = append(entries, e)
	}
	sort.Strings(entries)

	for _, entry := range entries {
		desc := fmt.Sprintf("Run entry %q of program %s (prompt %s).", entry, prog.Name, prog.Entries[entry])
		if prog.Desc != "" {
			desc += " " + prog.Desc
		}
		tool := mcp.NewTool(ToolName(entry),
			mcp.WithDescription(desc),
			mcp.WithString("inputs", mcp.Description("JSON object of program inputs: "+describeInputs(prog.Inputs))),
			mcp.WithOutputSchema[RunResponse](),
		)
		s.mcpServer.AddTool(tool, mcp.NewStructuredToolHandler(s.runHandler(entry)))
	}

	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the Mermaid graph of a prompt."),
		mcp.WithString("prompt", mcp.Required(), mcp.Description("Prompt name")),
		mcp.WithString("kind", mcp.Description("abstract, concrete or action (default abstract)")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		prompt, _ := args["prompt"].(string)
		kind, _ := args["kind"].(string)
		if kind == "" {
			kind = "abstract"
		}
		out, err := s.engine.Graph(kind, prompt)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("graph failed: %v", err)), nil
		}
		return mcp.NewToolResultText(out), nil
	})
}

func (s *Server) runHandler(entry string) func(context.Context, mcp.CallToolRequest, map[string]any) (RunResponse, error) {
	return func(ctx context.Context, _ mcp.CallToolRequest, args map[string]any) (RunResponse, error) {
		inputs := map[string]any{}
		if raw, ok := args["inputs"].(string); ok && strings.TrimSpace(raw) != "" {
			if err := json.Unmarshal([]byte(raw), &inputs); err != nil {
				return RunResponse{}, fmt.Errorf("inputs must be a JSON object: %w", err)
			}
			domain.RestoreIntegerValues(inputs)
		}
		out, err := s.engine.Run(ctx, entry, inputs)
		if err != nil {
			s.logger.Warn("mcp run failed", "entry", entry, "error", err)
			return RunResponse{}, fmt.Errorf("run failed: %w", err)
		}
		return RunResponse{Entry: entry, Outputs: out}, nil
	}
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(programURI, "Program",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		prog := s.engine.Program()
		return jsonResource(programURI, map[string]any{
			"name":    prog.Name,
			"desc":    prog.Desc,
			"entries": prog.Entries,
			"inputs":  prog.Inputs,
			"prompts": prog.PromptNames(),
		})
	})

	if s.store == nil {
		return
	}
	s.mcpServer.AddResource(mcp.NewResource(runsURI, "Stored runs",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ids, err := s.store.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		sort.Strings(ids)
		return jsonResource(runsURI, ids)
	})
	s.mcpServer.AddResourceTemplate(mcp.NewResourceTemplate(runsURI+"{id}", "Run record",
		mcp.WithTemplateMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		uri := request.Params.URI
		rec, err := s.store.Load(ctx, strings.TrimPrefix(uri, runsURI))
		if err != nil {
			return nil, err
		}
		return jsonResource(uri, rec)
	})
}

func jsonResource(uri string, v any) ([]mcp.ResourceContents, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return []mcp.ResourceContents{
		mcp.TextResourceContents{URI: uri, MIMEType: "application/json", Text: string(data)},
	}, nil
}

func describeInputs(declared map[string]string) string {
	if len(declared) == 0 {
		return "none declared"
	}
	names := make([]string, 0, len(declared))
	for n := range declared {
		names = append(names, n)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, n := range names {
		parts[i] = n + " (" + declared[n] + ")"
	}
	return strings.Join(parts, ", ")
}

