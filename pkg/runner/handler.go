package runner

import (
	"context"

	"github.com/aretw0/intake"
)

// IOHandler defines the strategy for interacting with the user.
// This allows switching between Text (terminal) and JSON (structured) modes.
type IOHandler interface {
	// Output presents the reply of a turn (or the greeting) to the user.
	Output(ctx context.Context, res intake.Response) error

	// Input reads the next line from the user. io.EOF ends the run.
	Input(ctx context.Context) (string, error)

	// SystemOutput presents a meta-message (command output, status) distinct from replies.
	SystemOutput(ctx context.Context, msg string) error
}

// ContentRenderer transforms reply text before it is printed, e.g. markdown to ANSI.
type ContentRenderer func(string) (string, error)
