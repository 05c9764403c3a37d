// Package http exposes an engine over a small REST surface.
//
//	GET  /health           liveness
//	GET  /info             program and version
//	GET  /program          prompts, entries and inputs
//	POST /run/{entry}      run an entry with a JSON object of inputs
//	GET  /runs             stored run ids
//	GET  /runs/{id}        one stored run
//	GET  /graph/{prompt}   Mermaid graph (?kind=abstract|concrete|action)
//	GET  /events           server-sent prompt events (?run_id= filters)
//	GET  /metrics          Prometheus metrics, when configured
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/aretw0/cogflow/internal/logging"
	"github.com/aretw0/cogflow/pkg/domain"
	"github.com/aretw0/cogflow/pkg/ports"
	"github.com/aretw0/cogflow/pkg/schema"
)

// Engine is what the server needs from a loaded program.
type Engine interface {
	Program() *domain.Program
	Run(ctx context.Context, entry string, inputs map[string]any) (map[string]any, error)
	Graph(kind, prompt string) (string, error)
}

// Server serves one engine.
type Server struct {
	Engine  Engine
	Store   ports.RunStore
	Streams *StreamManager
	Version string

	metrics http.Handler
	logger  *slog.Logger
}

type Option func(*Server)

// WithStore enables the /runs endpoints.
func WithStore(s ports.RunStore) Option { return func(srv *Server) { srv.Store = s } }

// WithStreams shares a stream manager whose hooks are installed on the engine.
func WithStreams(sm *StreamManager) Option { return func(srv *Server) { srv.Streams = sm } }

// WithMetrics mounts h on /metrics.
func WithMetrics(h http.Handler) Option { return func(srv *Server) { srv.metrics = h } }

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option { return func(srv *Server) { srv.Version = v } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(srv *Server) { srv.logger = l } }

// NewServer creates a server for engine.
func NewServer(engine Engine, opts ...Option) *Server {
	s := &Server{Engine: engine, Version: "dev", logger: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	if s.Streams == nil {
		s.Streams = NewStreamManager(s.logger)
	}
	return s
}

// NewHandler creates the HTTP handler for engine.
func NewHandler(engine Engine, opts ...Option) http.Handler {
	return NewServer(engine, opts...).Handler()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(enableCORS)

	r.Get("/health", s.GetHealth)
	r.Get("/info", s.GetInfo)
	r.Get("/program", s.GetProgram)
	r.Post("/run", s.Run)
	r.Post("/run/{entry}", s.Run)
	r.Get("/runs", s.ListRuns)
	r.Get("/runs/{id}", s.GetRun)
	r.Get("/graph/{prompt}", s.GetGraph)
	r.Get("/events", s.SubscribeEvents)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	return r
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetHealth handles GET /health.
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GetInfo handles GET /info.
func (s *Server) GetInfo(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"app":     "cogflow-http",
		"version": s.Version,
		"program": s.Engine.Program().Name,
	})
}

// ProgramView is the JSON shape of a program.
type ProgramView struct {
	Name    string            `json:"name"`
	Desc    string            `json:"desc,omitempty"`
	Entries map[string]string `json:"entries"`
	Inputs  map[string]string `json:"inputs,omitempty"`
	Prompts []PromptView      `json:"prompts"`
}

// PromptView lists the field labels and flows of a prompt.
type PromptView struct {
	Name   string   `json:"name"`
	Fields []string `json:"fields"`
	Flows  []string `json:"flows"`
}

// NewProgramView summarizes prog.
func NewProgramView(prog *domain.Program) ProgramView {
	v := ProgramView{Name: prog.Name, Desc: prog.Desc, Entries: prog.Entries, Inputs: prog.Inputs}
	for _, name := range prog.PromptNames() {
		p := prog.Prompts[name]
		pv := PromptView{Name: name, Fields: []string{}, Flows: []string{}}
		for _, f := range p.Fields {
			pv.Fields = append(pv.Fields, f.Label())
		}
		for _, fl := range p.EffectiveFlows() {
			pv.Flows = append(pv.Flows, fl.Label)
		}
		v.Prompts = append(v.Prompts, pv)
	}
	return v
}

// GetProgram handles GET /program.
func (s *Server) GetProgram(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, NewProgramView(s.Engine.Program()))
}

// Run handles POST /run/{entry}. The body is the inputs object and may be empty.
func (s *Server) Run(w http.ResponseWriter, r *http.Request) {
	inputs := map[string]any{}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&inputs); err != nil {
			s.logger.Warn("run: invalid request body", "error", err)
			http.Error(w, "Invalid request body", http.StatusBadRequest)
			return
		}
	}
	domain.RestoreIntegerValues(inputs)

	entry := chi.URLParam(r, "entry")
	out, err := s.Engine.Run(r.Context(), entry, inputs)
	if err != nil {
		s.writeError(w, "run", err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"outputs": out})
}

// ListRuns handles GET /runs.
func (s *Server) ListRuns(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "No run store configured", http.StatusNotFound)
		return
	}
	ids, err := s.Store.List(r.Context())
	if err != nil {
		s.writeError(w, "list runs", err)
		return
	}
	sort.Strings(ids)
	s.writeJSON(w, http.StatusOK, map[string]any{"runs": ids})
}

// GetRun handles GET /runs/{id}.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		http.Error(w, "No run store configured", http.StatusNotFound)
		return
	}
	rec, err := s.Store.Load(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, "load run", err)
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

// GetGraph handles GET /graph/{prompt}.
func (s *Server) GetGraph(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		kind = "abstract"
	}
	out, err := s.Engine.Graph(kind, chi.URLParam(r, "prompt"))
	if err != nil {
		s.writeError(w, "graph", err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, out)
}

// status maps engine errors to HTTP status codes.
func status(err error) int {
	var verr *schema.ValidationError
	switch {
	case errors.Is(err, domain.ErrPromptNotFound), errors.Is(err, domain.ErrRunNotFound), errors.Is(err, domain.ErrCogNotFound):
		return http.StatusNotFound
	case len(schema.ValidationErrors(err)) > 0, errors.As(err, &verr):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) writeError(w http.ResponseWriter, op string, err error) {
	code := status(err)
	if code >= http.StatusInternalServerError {
		s.logger.Error(op+" failed", "error", err)
	}
	s.writeJSON(w, code, map[string]string{"error": err.Error()})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("response encode failed", "error", err)
	}
}

