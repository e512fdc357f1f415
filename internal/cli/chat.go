package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/aretw0/intake"
	"github.com/aretw0/intake/internal/presentation/tui"
	"github.com/aretw0/intake/pkg/domain"
	"github.com/aretw0/intake/pkg/observability"
	"github.com/aretw0/intake/pkg/runner"
)

// ChatOptions contains the flags of the chat command.
type ChatOptions struct {
	SessionID string
	JSON      bool
	Debug     bool
	In        io.Reader
	Out       io.Writer
}

// RunChat runs one conversation in the terminal, or over NDJSON with JSON set.
func RunChat(ctx context.Context, s Settings, opts ChatOptions) error {
	if opts.Debug {
		s.LogLevel = "debug"
	}
	logger := s.Logger()

	in, out := opts.In, opts.Out
	if in == nil {
		in = os.Stdin
	}
	if out == nil {
		out = os.Stdout
	}
	interactive := !opts.JSON && isTerminal(out)

	backend, err := OpenBackend(s.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	agent, _, err := NewAgent(s, backend, logger, observability.LogHooks(logger))
	if err != nil {
		return err
	}

	var handler runner.IOHandler
	if opts.JSON {
		handler = runner.NewJSONHandler(in, out)
	} else {
		var textOpts []runner.TextHandlerOption
		if interactive {
			tui.PrintBanner(out, intake.Version)
			textOpts = append(textOpts,
				runner.WithTextHandlerRenderer(tui.NewRenderer(tui.Width(out.(*os.File)))),
				runner.WithSystemStyle(tui.SystemStyle),
			)
		}
		handler = runner.NewTextHandler(in, out, textOpts...)
	}

	r := runner.NewRunner(
		runner.WithLogger(logger),
		runner.WithInputHandler(handler),
		runner.WithSessionID(opts.SessionID),
	)

	res, err := r.Run(ctx, agent)
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if !opts.JSON && res.Status == domain.StatusCompleted {
		printCollected(out, res.CollectedData, interactive)
	}
	return nil
}

func printCollected(w io.Writer, data map[string]string, styled bool) {
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Fprintln(w)
	for _, name := range names {
		label := name + ":"
		if styled {
			label = tui.Label(label)
		}
		fmt.Fprintf(w, "  %s %s\n", label, data[name])
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && tui.IsTerminal(f)
}
