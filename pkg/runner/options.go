package runner

import (
	"log/slog"
)

// DefaultInputBufferSize is the number of lines buffered between the reader and the loop.
const DefaultInputBufferSize = 64

// Option defines a functional option for configuring the Runner.
type Option func(*Runner)

// WithLogger configures the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		r.Logger = logger
	}
}

// WithInputHandler configures a custom IOHandler.
func WithInputHandler(handler IOHandler) Option {
	return func(r *Runner) {
		r.Handler = handler
	}
}

// WithSessionID resumes the given session, or starts a new one under that id.
func WithSessionID(id string) Option {
	return func(r *Runner) {
		r.SessionID = id
	}
}

// WithCommands replaces the slash commands available during the chat.
func WithCommands(cmds ...Command) Option {
	return func(r *Runner) {
		r.Commands = cmds
	}
}

// WithInterruptSource sets a channel that ends the run when closed or written to.
func WithInterruptSource(ch <-chan struct{}) Option {
	return func(r *Runner) {
		r.InterruptSource = ch
	}
}
