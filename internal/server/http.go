// Package server exposes the agent over a local HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"evcore/internal/domain"
	"evcore/internal/metrics"
	"evcore/internal/registry"
	"evcore/internal/trigger"
)

const (
	maxBodySize    = 1 << 20 // 1MB
	requestTimeout = 120 * time.Second
)

// Server wires the dispatcher, trigger engine, and memory store to HTTP
// routes.
type Server struct {
	host       string
	port       int
	dispatcher *registry.Dispatcher
	reg        *registry.Registry
	engine     *trigger.Engine
	store      domain.MemoryStore
	logger     *slog.Logger
	httpSrv    *http.Server
}

type Config struct {
	Host       string
	Port       int
	Dispatcher *registry.Dispatcher
	Registry   *registry.Registry
	Engine     *trigger.Engine
	Store      domain.MemoryStore
	Logger     *slog.Logger
}

func New(cfg Config) *Server {
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8311
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Server{
		host:       cfg.Host,
		port:       cfg.Port,
		dispatcher: cfg.Dispatcher,
		reg:        cfg.Registry,
		engine:     cfg.Engine,
		store:      cfg.Store,
		logger:     cfg.Logger,
	}
}

// Handler builds the route table. Exposed separately so tests can drive it
// through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /agent/execute", s.handleExecute)
	mux.HandleFunc("GET /agent/units", s.handleUnits)
	mux.HandleFunc("GET /agent/actions", s.handleActions)
	mux.HandleFunc("POST /agent/analyze", s.handleAnalyze)
	mux.HandleFunc("POST /agent/memory/store", s.handleMemoryStore)
	mux.HandleFunc("GET /agent/memory/recall", s.handleMemoryRecall)
	mux.HandleFunc("GET /agent/memory/search", s.handleMemorySearch)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", metrics.Collector.Handler())
	return mux
}

// Start runs the HTTP server until ctx is canceled, then drains in-flight
// requests.
func (s *Server) Start(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.host, s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       requestTimeout,
		WriteTimeout:      requestTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", "addr", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpSrv.Shutdown(shutdownCtx)
}

type executeRequest struct {
	Command string         `json:"command"`
	Kwargs  map[string]any `json:"kwargs,omitempty"`
}

func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	var req executeRequest
	if !s.decode(w, r, &req) {
		return
	}
	out, err := s.dispatcher.Dispatch(r.Context(), req.Command, req.Kwargs)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrNotFound) {
			status = http.StatusNotFound
		}
		s.writeError(w, status, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"result": out})
}

func (s *Server) handleUnits(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	s.writeJSON(w, http.StatusOK, map[string]any{
		"units":      s.reg.List(category),
		"categories": s.reg.Categories(),
	})
}

func (s *Server) handleActions(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"actions":    s.engine.ListActions(),
		"monitoring": s.engine.Monitoring(),
	})
}

type analyzeRequest struct {
	Text    string         `json:"text"`
	Execute bool           `json:"execute,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if !s.decode(w, r, &req) {
		return
	}
	matched := s.engine.Analyze(req.Text)
	resp := map[string]any{"matched": actionNames(matched)}
	if req.Execute {
		if req.Context == nil {
			req.Context = make(map[string]any)
		}
		if _, ok := req.Context["input"]; !ok {
			req.Context["input"] = req.Text
		}
		resp["results"] = s.engine.Execute(r.Context(), matched, req.Context)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

type memoryStoreRequest struct {
	Key        string `json:"key"`
	Value      any    `json:"value"`
	Category   string `json:"category,omitempty"`
	Importance int    `json:"importance,omitempty"`
}

func (s *Server) handleMemoryStore(w http.ResponseWriter, r *http.Request) {
	var req memoryStoreRequest
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.store.Store(r.Context(), req.Key, req.Value, req.Category, req.Importance); err != nil {
		s.writeError(w, http.StatusBadRequest, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"stored": req.Key})
}

func (s *Server) handleMemoryRecall(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("key")
	if key == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("missing key parameter"))
		return
	}
	rec, err := s.store.Recall(r.Context(), key)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("no memory under %q", key))
		return
	}
	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleMemorySearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := q.Get("q")
	if query == "" {
		s.writeError(w, http.StatusBadRequest, errors.New("missing q parameter"))
		return
	}
	limit, _ := strconv.Atoi(q.Get("limit"))
	recs, err := s.store.Search(r.Context(), query, q.Get("category"), limit)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"results": recs})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]any{
		"status":     "ok",
		"units":      s.reg.Len(),
		"monitoring": s.engine.Monitoring(),
		"uptime":     metrics.Collector.Uptime().Round(time.Second).String(),
	})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("cannot encode response", "err", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func actionNames(actions []domain.Action) []string {
	out := make([]string, len(actions))
	for i, a := range actions {
		out[i] = a.Name
	}
	return out
}
