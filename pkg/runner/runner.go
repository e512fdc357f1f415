package runner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/internal/logging"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/escalation"
)

// Agent is the part of the conversation engine a chat needs.
type Agent interface {
	Start(ctx context.Context) (intake.Response, error)
	StartWithID(ctx context.Context, sessionID string) (intake.Response, error)
	Send(ctx context.Context, sessionID, message string) (intake.Response, error)
	Get(ctx context.Context, sessionID string) (*domain.Conversation, error)
	Explain(ctx context.Context, sessionID, message string) ([]escalation.Result, error)
}

var _ Agent = (*intake.Agent)(nil)

// Runner handles the chat loop of one conversation using the provided IO.
type Runner struct {
	// Handler is the strategy for IO. Defaults to a TextHandler on stdin/stdout.
	Handler IOHandler

	// Logger is used for internal debug logging. Defaults to a no-op logger.
	Logger *slog.Logger

	// SessionID resumes a stored conversation. Empty starts a fresh one.
	SessionID string

	// Commands are the slash commands available during the chat.
	Commands []Command

	// InterruptSource ends the run when it fires, in addition to SIGINT/SIGTERM.
	InterruptSource <-chan struct{}
}

// NewRunner creates a Runner with default stdin/stdout IO.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		Logger:   logging.NewNop(),
		Commands: DefaultCommands(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.Handler == nil {
		r.Handler = NewTextHandler(os.Stdin, os.Stdout)
	}
	return r
}

// Run chats until the conversation ends, the input is exhausted, the user types
// exit/quit or an interrupt arrives. It returns the last response shown.
func (r *Runner) Run(ctx context.Context, agent Agent) (intake.Response, error) {
	signals := NewSignalManager(ctx, r.InterruptSource)
	defer signals.Stop()

	res, resumed, err := r.open(ctx, agent)
	if err != nil {
		return intake.Response{}, err
	}
	sessionID := res.SessionID
	logger := r.Logger.With("session_id", sessionID)
	logger.Debug("Chat started", "resumed", resumed)

	if resumed {
		_ = r.Handler.SystemOutput(ctx, fmt.Sprintf("Resuming session %s.", sessionID))
	}
	if err := r.Handler.Output(ctx, res); err != nil {
		return res, fmt.Errorf("output error: %w", err)
	}

	for res.Status == domain.StatusActive {
		line, err := r.Handler.Input(signals.Context())
		if err != nil {
			signals.CheckRace()
			if signals.Context().Err() != nil {
				logger.Debug("Chat interrupted")
				_ = r.Handler.SystemOutput(ctx, fmt.Sprintf("Interrupted. Resume with session %s.", sessionID))
				return res, nil
			}
			if errors.Is(err, io.EOF) {
				return res, nil
			}
			return res, fmt.Errorf("input error: %w", err)
		}

		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case line == "exit" || line == "quit":
			return res, nil
		case strings.HasPrefix(line, "/"):
			r.dispatch(ctx, agent, sessionID, line)
			continue
		}

		clean, err := SanitizeInput(line)
		if err != nil {
			_ = r.Handler.SystemOutput(ctx, fmt.Sprintf("Error: %v. Please try again.", err))
			continue
		}

		next, err := agent.Send(ctx, sessionID, clean)
		if err != nil {
			if errors.Is(err, domain.ErrConversationClosed) {
				return res, nil
			}
			return res, fmt.Errorf("turn failed: %w", err)
		}
		res = next
		if err := r.Handler.Output(ctx, res); err != nil {
			return res, fmt.Errorf("output error: %w", err)
		}
	}
	logger.Debug("Chat finished", "status", res.Status)
	return res, nil
}

// open resumes the configured session or starts a new one. Resuming replays the
// last agent message so the user knows what is being asked.
func (r *Runner) open(ctx context.Context, agent Agent) (intake.Response, bool, error) {
	if r.SessionID == "" {
		res, err := agent.Start(ctx)
		return res, false, err
	}

	conv, err := agent.Get(ctx, r.SessionID)
	switch {
	case err == nil:
		return resumeResponse(conv), true, nil
	case errors.Is(err, domain.ErrSessionNotFound):
		res, err := agent.StartWithID(ctx, r.SessionID)
		return res, false, err
	default:
		return intake.Response{}, false, fmt.Errorf("failed to load session %s: %w", r.SessionID, err)
	}
}

func resumeResponse(conv *domain.Conversation) intake.Response {
	res := intake.Response{
		SessionID:     conv.SessionID,
		Kind:          "resume",
		Status:        conv.Status,
		Escalated:     conv.Escalation.Escalated,
		CollectedData: conv.CollectedData(),
	}
	for i := len(conv.Messages) - 1; i >= 0; i-- {
		if conv.Messages[i].Role == domain.RoleAgent {
			res.Text = conv.Messages[i].Content
			break
		}
	}
	return res
}
