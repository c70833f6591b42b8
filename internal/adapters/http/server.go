// Package http exposes the session manager over REST and SSE.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/Jamplesmise/prompt-tool-sub006/internal/logging"
	"github.com/Jamplesmise/prompt-tool-sub006/internal/runtime"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/domain"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/events"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/intent"
	"github.com/Jamplesmise/prompt-tool-sub006/pkg/session"
)

// Server wires the session manager to HTTP handlers.
type Server struct {
	manager *session.Manager
	bus     *events.Bus
	tracker *events.Tracker
	metrics http.Handler
	logger  *slog.Logger
	version string
}

// Option configures the server.
type Option func(*Server)

// WithBus enables the per-session SSE event stream.
func WithBus(bus *events.Bus) Option {
	return func(s *Server) { s.bus = bus }
}

// WithTracker enables the understanding endpoint.
func WithTracker(tracker *events.Tracker) Option {
	return func(s *Server) { s.tracker = tracker }
}

// WithMetricsHandler mounts a /metrics endpoint.
func WithMetricsHandler(h http.Handler) Option {
	return func(s *Server) { s.metrics = h }
}

// WithLogger sets the request logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) { s.logger = logger }
}

// WithVersion sets the version reported by /info.
func WithVersion(v string) Option {
	return func(s *Server) { s.version = v }
}

// NewServer creates a server around a session manager.
func NewServer(manager *session.Manager, opts ...Option) *Server {
	s := &Server{
		manager: manager,
		logger:  logging.NewNop(),
		version: "dev",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)

	r.Get("/health", s.getHealth)
	r.Get("/info", s.getInfo)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Post("/", s.createSession)
		r.Get("/", s.listSessions)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.getSession)
			r.Delete("/", s.deleteSession)

			r.Post("/start", s.startSession)
			r.Post("/step", s.stepSession)
			r.Post("/approve", s.approveCheckpoint)
			r.Post("/reject", s.rejectCheckpoint)

			r.Get("/todolist", s.getTodoList)
			r.Get("/understanding", s.getUnderstanding)
			r.Put("/mode", s.setMode)
			r.Post("/rules", s.addRules)

			r.Post("/utterance", s.handleUtterance)
			r.Post("/confirm", s.confirmIntent)

			r.Get("/events", s.streamEvents)
		})
	})

	return r
}

func (s *Server) getHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "goi-http",
		"version":     s.version,
		"api_version": "1.0",
	})
}

type createSessionRequest struct {
	ID   string `json:"id,omitempty"`
	Mode string `json:"mode,omitempty"`
}

type sessionView struct {
	ID         string             `json:"id"`
	Status     domain.LoopStatus  `json:"status"`
	Goal       string             `json:"goal,omitempty"`
	Mode       domain.Mode        `json:"mode"`
	Controller domain.Controller  `json:"controller"`
	Todo       *domain.TodoList   `json:"todo,omitempty"`
	Checkpoint *domain.Checkpoint `json:"checkpoint,omitempty"`
}

func viewOf(sess *session.Session) sessionView {
	loop := sess.Loop()
	return sessionView{
		ID:         sess.ID(),
		Status:     loop.Status(),
		Goal:       loop.Goal(),
		Mode:       sess.Control().Mode(),
		Controller: sess.Control().Controller(),
		Todo:       loop.TodoList(),
		Checkpoint: loop.OpenCheckpoint(),
	}
}

func (s *Server) createSession(w http.ResponseWriter, r *http.Request) {
	var body createSessionRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	sess, err := s.manager.Create(r.Context(), body.ID, domain.Mode(body.Mode))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) listSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.manager.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) deleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Remove(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type startRequest struct {
	Goal    string         `json:"goal"`
	Context map[string]any `json:"context,omitempty"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body startRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	result := sess.Start(r.Context(), body.Goal, body.Context)
	status := http.StatusOK
	if result.Err != nil {
		status = statusFor(result.Err.Code)
	}
	writeJSON(w, status, result)
}

func (s *Server) stepSession(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	result, err := sess.Step(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) approveCheckpoint(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body runtime.ApproveRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := sess.Approve(r.Context(), body)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type rejectRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

func (s *Server) rejectCheckpoint(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body rejectRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := sess.Reject(r.Context(), body.ID, body.Reason)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getTodoList(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"todo": sess.Loop().TodoList()})
}

func (s *Server) getUnderstanding(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		writeError(w, fmt.Errorf("understanding tracking disabled: %w", domain.ErrStateConflict))
		return
	}
	id := chi.URLParam(r, "sessionID")
	view, ok := s.tracker.Understanding(id)
	if !ok {
		writeError(w, fmt.Errorf("no understanding for session %s: %w", id, domain.ErrSessionNotFound))
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type modeRequest struct {
	Mode string `json:"mode"`
}

func (s *Server) setMode(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body modeRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := sess.SetMode(r.Context(), domain.Mode(body.Mode)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

type rulesRequest struct {
	Rules []domain.CheckpointRule `json:"rules"`
}

func (s *Server) addRules(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body rulesRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	if err := sess.AddRules(r.Context(), body.Rules); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": sess.Rules().UserRules()})
}

type utteranceRequest struct {
	Text    string         `json:"text"`
	Context intent.Context `json:"context"`
}

func (s *Server) handleUtterance(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body utteranceRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := sess.HandleUtterance(r.Context(), body.Text, body.Context)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type confirmRequest struct {
	Approve bool `json:"approve"`
}

func (s *Server) confirmIntent(w http.ResponseWriter, r *http.Request) {
	sess, err := s.manager.Resume(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, err)
		return
	}

	var body confirmRequest
	if err := decodeBody(r, &body); err != nil {
		writeError(w, err)
		return
	}

	result, err := sess.Confirm(r.Context(), body.Approve)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) streamEvents(w http.ResponseWriter, r *http.Request) {
	if s.bus == nil {
		writeError(w, fmt.Errorf("event streaming disabled: %w", domain.ErrStateConflict))
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	id := chi.URLParam(r, "sessionID")
	ch, cancel := s.bus.Subscribe(id)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			data, err := json.Marshal(evt)
			if err != nil {
				s.logger.Warn("encoding event for stream", "err", err)
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, data)
			flusher.Flush()
		}
	}
}

// -- Helpers --

func decodeBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", domain.ErrValidation)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	if errors.Is(err, domain.ErrSessionExists) {
		writeJSON(w, http.StatusConflict,
			map[string]any{"error": domain.NewCodedError(domain.CodeStateConflict, "%s", err.Error())})
		return
	}
	coded := domain.AsCoded(err)
	writeJSON(w, statusFor(coded.Code), map[string]any{"error": coded})
}

func statusFor(code string) int {
	switch code {
	case domain.CodeValidation, domain.CodeUnparsable:
		return http.StatusBadRequest
	case domain.CodeNotFound:
		return http.StatusNotFound
	case domain.CodeStateConflict, domain.CodeConflictBusy:
		return http.StatusConflict
	case domain.CodePlanFailed, domain.CodeExecFailed:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
