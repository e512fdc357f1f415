// Package mcp exposes conversations as Model Context Protocol tools, so an assistant
// can run an intake conversation on behalf of a user.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/config"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/escalation"
	"github.com/aretw0/intake/pkg/ports"
	"github.com/aretw0/intake/pkg/runner"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// ConfigURI is the resource holding the active configuration.
const ConfigURI = "intake://config"

// Agent defines what the MCP server needs from the conversation engine.
type Agent interface {
	Start(ctx context.Context) (intake.Response, error)
	StartWithID(ctx context.Context, sessionID string) (intake.Response, error)
	Send(ctx context.Context, sessionID, message string) (intake.Response, error)
	Get(ctx context.Context, sessionID string) (*domain.Conversation, error)
	List(ctx context.Context, opts ports.ListOptions) ([]*domain.Conversation, error)
	Explain(ctx context.Context, sessionID, message string) ([]escalation.Result, error)
	Config() *config.AgentConfig
}

var _ Agent = (*intake.Agent)(nil)

// Server wraps an Agent and exposes it as an MCP server.
type Server struct {
	agent     Agent
	mcpServer *server.MCPServer
	logger    *slog.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithLogger sets the logger. It must not write to stdout when serving stdio.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// NewServer creates a new MCP server instance.
func NewServer(agent Agent, opts ...Option) *Server {
	s := &Server{
		agent:     agent,
		logger:    logging.NewNop(),
		mcpServer: server.NewMCPServer("intake-mcp", strings.TrimSpace(intake.Version)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.registerTools()
	s.registerResources()
	return s
}

// MCPServer returns the underlying protocol server.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcpServer
}

// ServeStdio serves on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE serves over SSE on addr until ctx is done.
func (s *Server) ServeSSE(ctx context.Context, addr, baseURL string) error {
	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", sseServer.SSEHandler())
	mux.Handle("/message", sseServer.MessageHandler())
	httpServer := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

// StartArgs are the arguments of start_conversation.
type StartArgs struct {
	SessionID string `json:"session_id,omitempty"`
}

// MessageArgs are the arguments of send_message and explain_escalation.
type MessageArgs struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

// SessionArgs are the arguments of get_conversation.
type SessionArgs struct {
	SessionID string `json:"session_id"`
}

// ListArgs are the arguments of list_conversations.
type ListArgs struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

// ConversationList is the result of list_conversations.
type ConversationList struct {
	Conversations []ConversationSummary `json:"conversations"`
}

// ConversationSummary is one entry of ConversationList.
type ConversationSummary struct {
	SessionID string            `json:"session_id"`
	Status    domain.Status     `json:"status"`
	Collected map[string]string `json:"collected_data"`
	UpdatedAt time.Time         `json:"updated_at"`
}

// Explanation is the result of explain_escalation.
type Explanation struct {
	Policies []escalation.Result `json:"policies"`
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.NewTool("start_conversation",
		mcp.WithDescription("Start a conversation. The reply contains the greeting and the first question to relay to the user."),
		mcp.WithString("session_id", mcp.Description("Optional id for the new session")),
		mcp.WithOutputSchema[intake.Response](),
	), mcp.NewStructuredToolHandler(s.handleStart))

	s.mcpServer.AddTool(mcp.NewTool("send_message",
		mcp.WithDescription("Send the user's answer and get the next reply. Stop once status is completed or escalated."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session returned by start_conversation")),
		mcp.WithString("message", mcp.Required(), mcp.Description("The user's message, verbatim")),
		mcp.WithOutputSchema[intake.Response](),
	), mcp.NewStructuredToolHandler(s.handleSend))

	s.mcpServer.AddTool(mcp.NewTool("get_conversation",
		mcp.WithDescription("Get the full record of a conversation: messages, field attempts and escalation."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
	), s.handleGet)

	s.mcpServer.AddTool(mcp.NewTool("list_conversations",
		mcp.WithDescription("List conversations, most recently updated first."),
		mcp.WithString("status", mcp.Description("Filter by status"), mcp.Enum("active", "completed", "escalated", "failed")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of results")),
		mcp.WithOutputSchema[ConversationList](),
	), mcp.NewStructuredToolHandler(s.handleList))

	s.mcpServer.AddTool(mcp.NewTool("explain_escalation",
		mcp.WithDescription("List the escalation policies a message would trigger, without sending it."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Session id")),
		mcp.WithString("message", mcp.Required(), mcp.Description("Message to evaluate")),
		mcp.WithOutputSchema[Explanation](),
	), mcp.NewStructuredToolHandler(s.handleExplain))
}

func (s *Server) handleStart(ctx context.Context, _ mcp.CallToolRequest, args StartArgs) (intake.Response, error) {
	if args.SessionID != "" {
		return s.agent.StartWithID(ctx, args.SessionID)
	}
	return s.agent.Start(ctx)
}

func (s *Server) handleSend(ctx context.Context, _ mcp.CallToolRequest, args MessageArgs) (intake.Response, error) {
	clean, err := runner.SanitizeInput(args.Message)
	if err != nil {
		s.logger.Warn("Input rejected", "session_id", args.SessionID, "size", len(args.Message), "err", err)
		return intake.Response{}, fmt.Errorf("input rejected: %w", err)
	}
	return s.agent.Send(ctx, args.SessionID, clean)
}

func (s *Server) handleGet(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var args SessionArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
	}
	conv, err := s.agent.Get(ctx, args.SessionID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	data, err := json.Marshal(conv)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (s *Server) handleList(ctx context.Context, _ mcp.CallToolRequest, args ListArgs) (ConversationList, error) {
	convs, err := s.agent.List(ctx, ports.ListOptions{Status: domain.Status(args.Status), Limit: args.Limit})
	if err != nil {
		return ConversationList{}, err
	}
	out := ConversationList{Conversations: make([]ConversationSummary, 0, len(convs))}
	for _, c := range convs {
		out.Conversations = append(out.Conversations, ConversationSummary{
			SessionID: c.SessionID,
			Status:    c.Status,
			Collected: c.CollectedData(),
			UpdatedAt: c.UpdatedAt,
		})
	}
	return out, nil
}

func (s *Server) handleExplain(ctx context.Context, _ mcp.CallToolRequest, args MessageArgs) (Explanation, error) {
	fired, err := s.agent.Explain(ctx, args.SessionID, args.Message)
	if err != nil {
		return Explanation{}, err
	}
	if fired == nil {
		fired = []escalation.Result{}
	}
	return Explanation{Policies: fired}, nil
}

func (s *Server) registerResources() {
	s.mcpServer.AddResource(mcp.NewResource(ConfigURI, "Active configuration",
		mcp.WithResourceDescription("Fields, personality and escalation policies of new conversations"),
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		data, err := json.Marshal(s.agent.Config())
		if err != nil {
			return nil, fmt.Errorf("failed to encode configuration: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      ConfigURI,
				MIMEType: "application/json",
				Text:     string(data),
			},
		}, nil
	})
}
