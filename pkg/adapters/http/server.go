package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/config"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/aretw0/intake/pkg/runner"
	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Agent is the part of the conversation engine the HTTP API drives.
type Agent interface {
	Start(ctx context.Context) (intake.Response, error)
	StartWithID(ctx context.Context, sessionID string) (intake.Response, error)
	Send(ctx context.Context, sessionID, message string) (intake.Response, error)
	Get(ctx context.Context, sessionID string) (*domain.Conversation, error)
	Delete(ctx context.Context, sessionID string) error
	List(ctx context.Context, opts ports.ListOptions) ([]*domain.Conversation, error)
	Config() *config.AgentConfig
	Switch(cfg *config.AgentConfig) error
}

var _ Agent = (*intake.Agent)(nil)

// Server exposes an Agent over REST, server-sent events and websockets.
type Server struct {
	agent     Agent
	registry  *config.Registry
	streams   *StreamManager
	limiter   *sessionLimiter
	metrics   http.Handler
	swagger   *openapi3.T
	logger    *slog.Logger
	keepAlive time.Duration
}

// Option configures the Server.
type Option func(*Server)

// WithRegistry enables the /config/list and PUT /config endpoints.
func WithRegistry(r *config.Registry) Option {
	return func(s *Server) {
		s.registry = r
	}
}

// WithMetrics mounts h at /metrics.
func WithMetrics(h http.Handler) Option {
	return func(s *Server) {
		s.metrics = h
	}
}

// WithRateLimit bounds the messages per second one session may send.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Server) {
		if perSecond > 0 {
			s.limiter = newSessionLimiter(perSecond, burst)
		}
	}
}

// WithLogger sets the logger of the server.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// WithKeepAlive sets the interval of keep-alive comments on event streams.
func WithKeepAlive(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.keepAlive = d
		}
	}
}

// NewHandler creates the HTTP handler for agent.
func NewHandler(agent Agent, opts ...Option) (http.Handler, error) {
	s := &Server{
		agent:     agent,
		logger:    logging.NewNop(),
		keepAlive: 15 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.streams = NewStreamManager(s.logger)

	swagger, err := LoadSwagger()
	if err != nil {
		return nil, err
	}
	s.swagger = swagger
	validate, err := validateRequests(swagger)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(enableCORS)

	r.Get("/openapi.yaml", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/yaml")
		_, _ = w.Write(rawSpec)
	})
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Get("/ws", s.serveWebSocket)
	r.Get("/conversations/{session_id}/ws", s.serveWebSocket)
	r.Get("/conversations/{session_id}/events", s.subscribeEvents)

	r.Group(func(r chi.Router) {
		r.Use(validate)
		r.Get("/health", s.getHealth)
		r.Get("/info", s.getInfo)
		r.Get("/conversations", s.listConversations)
		r.Post("/conversations", s.startConversation)
		r.Get("/conversations/{session_id}", s.getConversation)
		r.Delete("/conversations/{session_id}", s.deleteConversation)
		r.Post("/conversations/{session_id}/messages", s.sendMessage)
		r.Get("/config/current", s.getCurrentConfig)
		r.Get("/config/list", s.listConfigs)
		r.Put("/config", s.switchConfig)
	})
	return r, nil
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeError maps engine errors to status codes. Internal details never reach the client.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSessionNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "session not found"})
	case errors.Is(err, domain.ErrSessionExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: "session already exists"})
	case errors.Is(err, domain.ErrConversationClosed):
		writeJSON(w, http.StatusConflict, errorBody{Error: "conversation is closed"})
	case errors.Is(err, config.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "configuration not found"})
	case errors.Is(err, config.ErrInvalidName), config.IsConfigError(err):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case errors.Is(err, runner.ErrInputTooLarge), errors.Is(err, runner.ErrInvalidUTF8):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	default:
		s.logger.Error("Request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func (s *Server) getHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) getInfo(w http.ResponseWriter, _ *http.Request) {
	apiVersion := "unknown"
	if s.swagger.Info != nil {
		apiVersion = s.swagger.Info.Version
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"app":         "intake-http",
		"version":     strings.TrimSpace(intake.Version),
		"api_version": apiVersion,
		"config":      s.agent.Config().Name,
	})
}

type startRequest struct {
	SessionID string `json:"session_id"`
}

type startResponse struct {
	SessionID string        `json:"session_id"`
	Greeting  string        `json:"greeting"`
	Field     string        `json:"field,omitempty"`
	Status    domain.Status `json:"status"`
}

func (s *Server) startConversation(w http.ResponseWriter, r *http.Request) {
	var body startRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	var (
		res intake.Response
		err error
	)
	if body.SessionID != "" {
		res, err = s.agent.StartWithID(r.Context(), body.SessionID)
	} else {
		res, err = s.agent.Start(r.Context())
	}
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, startResponse{
		SessionID: res.SessionID,
		Greeting:  res.Text,
		Field:     res.Field,
		Status:    res.Status,
	})
}

type messageRequest struct {
	Message string `json:"message"`
}

func (s *Server) sendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "session_id")
	var body messageRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if s.limiter != nil && !s.limiter.Allow(sessionID) {
		writeJSON(w, http.StatusTooManyRequests, errorBody{Error: "too many messages"})
		return
	}

	res, err := s.send(r.Context(), sessionID, body.Message)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// send sanitizes the message, runs the turn and publishes the result to live subscribers.
func (s *Server) send(ctx context.Context, sessionID, message string) (intake.Response, error) {
	clean, err := runner.SanitizeInput(message)
	if err != nil {
		s.logger.Warn("Input rejected", "session_id", sessionID, "size", len(message), "err", err)
		return intake.Response{}, err
	}
	res, err := s.agent.Send(ctx, sessionID, clean)
	if err != nil {
		return intake.Response{}, err
	}
	if s.streams.Subscribers(sessionID) > 0 {
		if data, err := json.Marshal(res); err == nil {
			s.streams.Broadcast(sessionID, string(data))
		}
	}
	return res, nil
}

func (s *Server) getConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.agent.Get(r.Context(), chi.URLParam(r, "session_id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (s *Server) deleteConversation(w http.ResponseWriter, r *http.Request) {
	if err := s.agent.Delete(r.Context(), chi.URLParam(r, "session_id")); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ConversationSummary is the list view of a conversation.
type ConversationSummary struct {
	SessionID string        `json:"session_id"`
	Config    string        `json:"config,omitempty"`
	Status    domain.Status `json:"status"`
	Messages  int           `json:"messages"`
	Collected int           `json:"collected"`
	CreatedAt time.Time     `json:"created_at"`
	UpdatedAt time.Time     `json:"updated_at"`
}

func summarize(c *domain.Conversation) ConversationSummary {
	return ConversationSummary{
		SessionID: c.SessionID,
		Config:    c.ConfigName,
		Status:    c.Status,
		Messages:  len(c.Messages),
		Collected: len(c.CollectedData()),
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func (s *Server) listConversations(w http.ResponseWriter, r *http.Request) {
	opts := ports.ListOptions{Status: domain.Status(r.URL.Query().Get("status"))}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: fmt.Sprintf("invalid limit %q", v)})
			return
		}
		opts.Limit = n
	}
	convs, err := s.agent.List(r.Context(), opts)
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		out = append(out, summarize(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getCurrentConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.agent.Config())
}

func (s *Server) listConfigs(w http.ResponseWriter, _ *http.Request) {
	if s.registry == nil {
		writeJSON(w, http.StatusOK, []config.Entry{})
		return
	}
	entries, err := s.registry.List()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

type switchRequest struct {
	Name string `json:"name"`
}

func (s *Server) switchConfig(w http.ResponseWriter, r *http.Request) {
	var body switchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}
	if s.registry == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no configuration directory"})
		return
	}
	cfg, err := s.registry.Load(body.Name)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if err := s.agent.Switch(cfg); err != nil {
		s.writeError(w, err)
		return
	}
	s.registry.Set(cfg)
	s.logger.Info("Configuration switched", "config", cfg.Name)
	writeJSON(w, http.StatusOK, cfg)
}
