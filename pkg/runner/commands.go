package runner

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Command is a slash command handled by the Runner instead of being sent as a turn.
type Command struct {
	Name  string
	Usage string
	Run   func(ctx context.Context, env CommandEnv, args string) (string, error)
}

// CommandEnv is what a command can act on.
type CommandEnv struct {
	Agent     Agent
	SessionID string
}

// DefaultCommands returns /data, /status and /explain.
func DefaultCommands() []Command {
	return []Command{
		{Name: "data", Usage: "show the values collected so far", Run: showData},
		{Name: "status", Usage: "show the conversation status", Run: showStatus},
		{Name: "explain", Usage: "/explain <message>: list the escalation policies a message would trigger", Run: explain},
	}
}

// dispatch runs a slash command line. /help is always available.
func (r *Runner) dispatch(ctx context.Context, agent Agent, sessionID, line string) {
	name, args, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	name = strings.ToLower(name)

	if name == "help" {
		_ = r.Handler.SystemOutput(ctx, r.help())
		return
	}
	for _, cmd := range r.Commands {
		if cmd.Name != name {
			continue
		}
		out, err := cmd.Run(ctx, CommandEnv{Agent: agent, SessionID: sessionID}, strings.TrimSpace(args))
		if err != nil {
			r.Logger.Warn("Command failed", "command", name, "err", err)
			out = fmt.Sprintf("/%s failed: %v", name, err)
		}
		_ = r.Handler.SystemOutput(ctx, out)
		return
	}
	_ = r.Handler.SystemOutput(ctx, fmt.Sprintf("Unknown command /%s. Type /help for the list.", name))
}

func (r *Runner) help() string {
	var b strings.Builder
	b.WriteString("Commands:\n  /help: this list\n")
	for _, cmd := range r.Commands {
		fmt.Fprintf(&b, "  /%s: %s\n", cmd.Name, cmd.Usage)
	}
	b.WriteString("Type exit or quit to leave.")
	return b.String()
}

func showData(ctx context.Context, env CommandEnv, _ string) (string, error) {
	conv, err := env.Agent.Get(ctx, env.SessionID)
	if err != nil {
		return "", err
	}
	data := conv.CollectedData()
	if len(data) == 0 {
		return "Nothing collected yet.", nil
	}
	names := make([]string, 0, len(data))
	for name := range data {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%s: %s", name, data[name])
	}
	return b.String(), nil
}

func showStatus(ctx context.Context, env CommandEnv, _ string) (string, error) {
	conv, err := env.Agent.Get(ctx, env.SessionID)
	if err != nil {
		return "", err
	}
	out := fmt.Sprintf("Session %s is %s after %d messages.", conv.SessionID, conv.Status, len(conv.Messages))
	if conv.Escalation.Escalated {
		out += fmt.Sprintf(" Escalated by %s: %s.", conv.Escalation.PolicyID, conv.Escalation.Reason)
	}
	return out, nil
}

func explain(ctx context.Context, env CommandEnv, args string) (string, error) {
	if args == "" {
		return "Usage: /explain <message>", nil
	}
	fired, err := env.Agent.Explain(ctx, env.SessionID, args)
	if err != nil {
		return "", err
	}
	if len(fired) == 0 {
		return "No escalation policy would fire.", nil
	}
	lines := make([]string, len(fired))
	for i, res := range fired {
		lines[i] = fmt.Sprintf("%s (%s): %s", res.PolicyID, res.PolicyType, res.Reason)
	}
	return strings.Join(lines, "\n"), nil
}
