// Package server exposes the analysis agent over HTTP.
//
// Two analysis endpoints mirror the two agent entry points: a buffered
// JSON response for POST /api/analyze and newline-delimited JSON events
// for POST /api/stream. Each request gets a fresh agent so transcripts
// never leak between callers.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/finsight/stockagent/agent"
	"github.com/finsight/stockagent/storage"
)

// eventTimeout bounds the wait for the next stream event. A stall this
// long means the provider hung; the client gets an error event instead
// of a silent dead connection.
const eventTimeout = 300 * time.Second

// AgentFactory builds a fresh agent for one request.
type AgentFactory func() (*agent.Agent, error)

// Config wires the server's collaborators.
type Config struct {
	Factory  AgentFactory
	Store    storage.RunStore // optional; nil disables persistence
	Provider string
	Model    string
	MaxSteps int
	Logger   zerolog.Logger
}

// Server is the HTTP front end.
type Server struct {
	cfg    Config
	logger zerolog.Logger
	mux    *http.ServeMux
}

// New creates a server and registers its routes.
func New(cfg Config) *Server {
	s := &Server{
		cfg:    cfg,
		logger: cfg.Logger.With().Str("component", "server").Logger(),
		mux:    http.NewServeMux(),
	}

	s.mux.HandleFunc("GET /healthz", s.handleHealth)
	s.mux.HandleFunc("POST /api/analyze", s.handleAnalyze)
	s.mux.HandleFunc("POST /api/stream", s.handleStream)
	s.mux.HandleFunc("GET /api/runs", s.handleListRuns)
	s.mux.HandleFunc("GET /api/runs/{id}", s.handleGetRun)

	return s
}

// Handler returns the route multiplexer, mainly for httptest.
func (s *Server) Handler() http.Handler {
	return s.mux
}

// ListenAndServe blocks serving requests until the listener fails.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info().Str("addr", addr).Msg("http server listening")
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return srv.ListenAndServe()
}

type analyzeRequest struct {
	Query    string `json:"query"`
	MaxSteps int    `json:"max_steps"`
}

type analyzeResponse struct {
	RunID  string       `json:"run_id,omitempty"`
	Result agent.Result `json:"result"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	a, err := s.cfg.Factory()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("create agent: %w", err))
		return
	}

	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = s.cfg.MaxSteps
	}

	result, err := a.Analyze(r.Context(), req.Query, maxSteps, nil)
	if err != nil {
		s.writeError(w, http.StatusBadGateway, fmt.Errorf("analysis failed: %w", err))
		return
	}

	resp := analyzeResponse{Result: result}
	if s.cfg.Store != nil {
		runID, err := s.cfg.Store.SaveRun(r.Context(), s.cfg.Provider, s.cfg.Model, result)
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to persist run")
		} else {
			resp.RunID = runID
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleStream writes one JSON event per line as the analysis progresses.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeAnalyzeRequest(w, r)
	if !ok {
		return
	}

	a, err := s.cfg.Factory()
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("create agent: %w", err))
		return
	}

	maxSteps := req.MaxSteps
	if maxSteps <= 0 {
		maxSteps = s.cfg.MaxSteps
	}

	flusher, canFlush := w.(http.Flusher)
	w.Header().Set("Content-Type", "application/x-ndjson")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	events := a.AnalyzeStream(ctx, req.Query, maxSteps)
	enc := json.NewEncoder(w)
	timer := time.NewTimer(eventTimeout)
	defer timer.Stop()

	for {
		select {
		case event, open := <-events:
			if !open {
				return
			}
			if err := enc.Encode(event); err != nil {
				s.logger.Warn().Err(err).Msg("client disconnected during stream")
				return
			}
			if canFlush {
				flusher.Flush()
			}
			if !timer.Stop() {
				<-timer.C
			}
			timer.Reset(eventTimeout)
		case <-timer.C:
			s.logger.Error().Msg("stream stalled, closing connection")
			_ = enc.Encode(agent.Event{Type: agent.EventError, Content: "analysis timed out"})
			return
		}
	}
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("run persistence is disabled"))
		return
	}

	runs, err := s.cfg.Store.ListRuns(r.Context(), 50)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.cfg.Store == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("run persistence is disabled"))
		return
	}

	rec, err := s.cfg.Store.LoadRun(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}
	if rec == nil {
		s.writeError(w, http.StatusNotFound, fmt.Errorf("run not found"))
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) decodeAnalyzeRequest(w http.ResponseWriter, r *http.Request) (analyzeRequest, bool) {
	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return analyzeRequest{}, false
	}
	return req, true
}

func (s *Server) writeError(w http.ResponseWriter, status int, err error) {
	s.logger.Warn().Int("status", status).Err(err).Msg("request failed")
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
