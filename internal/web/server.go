// Package web is the reactive front end: a JSON API plus an embedded
// single-page UI that renders the transcript, surfaces pending tool-call
// approvals, and collects approve/reject decisions.
package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"golang.org/x/sync/semaphore"

	"github.com/user/gatekeep/internal/agent"
	"github.com/user/gatekeep/internal/graph"
)

//go:embed index.html
var indexHTML []byte

// Conversation is the slice of the agent the web driver needs.
type Conversation interface {
	Send(ctx context.Context, threadID, text string) (*agent.Turn, error)
	Decide(ctx context.Context, threadID string, decision agent.Decision) (*agent.Turn, error)
}

// Server serves the web UI and its JSON API. A weighted semaphore caps
// concurrent graph runs across sessions; distinct sessions otherwise run
// independently.
type Server struct {
	conv     Conversation
	sessions *Sessions
	sem      *semaphore.Weighted
	mux      *http.ServeMux
}

// NewServer creates the web server. maxConcurrent bounds simultaneous runs.
func NewServer(conv Conversation, sessions *Sessions, maxConcurrent int64) *Server {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	s := &Server{
		conv:     conv,
		sessions: sessions,
		sem:      semaphore.NewWeighted(maxConcurrent),
		mux:      http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("POST /api/sessions", s.handleCreateSession)
	s.mux.HandleFunc("GET /api/sessions/{id}", s.handleGetSession)
	s.mux.HandleFunc("POST /api/sessions/{id}/messages", s.handleMessage)
	s.mux.HandleFunc("POST /api/sessions/{id}/approval", s.handleApproval)
	s.mux.HandleFunc("GET /", s.handleIndex)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, _ *http.Request) {
	sess := s.sessions.Create()
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.sessions.Get(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

// turnResponse is the JSON body for message and approval replies.
type turnResponse struct {
	Reply   string                 `json:"reply,omitempty"`
	Pending *agent.ApprovalRequest `json:"pending,omitempty"`
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.sessions.Get(id); !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if _, pending := s.sessions.Pending(id); pending {
		writeError(w, http.StatusConflict, "a tool call approval is pending; decide first")
		return
	}

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		writeError(w, http.StatusBadRequest, "text is required")
		return
	}

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy")
		return
	}
	defer s.sem.Release(1)

	s.sessions.Append(id, "user", req.Text)
	turn, err := s.conv.Send(r.Context(), id, req.Text)
	if err != nil {
		s.reportTurnError(w, id, err)
		return
	}
	s.respondTurn(w, id, turn)
}

func (s *Server) handleApproval(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := s.sessions.Get(id); !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		return
	}
	if _, pending := s.sessions.Pending(id); !pending {
		writeError(w, http.StatusConflict, "no approval is pending")
		return
	}

	var decision agent.Decision
	if err := json.NewDecoder(r.Body).Decode(&decision); err != nil {
		writeError(w, http.StatusBadRequest, "invalid decision")
		return
	}

	if err := s.sem.Acquire(r.Context(), 1); err != nil {
		writeError(w, http.StatusServiceUnavailable, "server busy")
		return
	}
	defer s.sem.Release(1)

	s.sessions.SetPending(id, nil)
	turn, err := s.conv.Decide(r.Context(), id, decision)
	if err != nil {
		s.reportTurnError(w, id, err)
		return
	}
	s.respondTurn(w, id, turn)
}

func (s *Server) respondTurn(w http.ResponseWriter, id string, turn *agent.Turn) {
	if turn.Pending != nil {
		s.sessions.SetPending(id, turn.Pending)
		writeJSON(w, http.StatusOK, turnResponse{Pending: turn.Pending})
		return
	}
	s.sessions.Append(id, "assistant", turn.Reply)
	writeJSON(w, http.StatusOK, turnResponse{Reply: turn.Reply})
}

// reportTurnError maps agent failures onto HTTP statuses. The session always
// survives: capability errors are reported and the next input may retry;
// unrecognized interrupts leave the thread suspended for a compatible
// resumption.
func (s *Server) reportTurnError(w http.ResponseWriter, id string, err error) {
	var unrec *agent.UnrecognizedInterruptError
	switch {
	case errors.As(err, &unrec):
		slog.Error("unrecognized interrupt", "session", id, "payload", string(unrec.Payload))
		writeError(w, http.StatusBadGateway, "unrecognized interrupt: "+string(unrec.Payload))
	case errors.Is(err, graph.ErrPendingInterrupt):
		writeError(w, http.StatusConflict, "a tool call approval is pending; decide first")
	case errors.Is(err, graph.ErrNoPendingInterrupt):
		writeError(w, http.StatusConflict, "no approval is pending")
	default:
		slog.Error("turn failed", "session", id, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
