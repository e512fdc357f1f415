/*
Package runner drives a conversation from an interactive or scripted input stream.

It is the bridge between an Agent and the outside world: the Runner reads user lines
through a pluggable IOHandler, sanitizes them, sends them as turns and prints the replies
until the conversation completes, escalates or the input ends.

# Key Components

  - Runner: the chat loop, with resume support for stored sessions.
  - IOHandler: decouples how lines are read and replies are shown.
  - TextHandler: interactive terminal usage with an optional content renderer.
  - JSONHandler: JSON-lines for scripted clients.
  - Command: slash commands (/help, /data, /explain) handled before a line reaches the engine.

# Usage

	r := runner.NewRunner(
		runner.WithSessionID("user-1"),
		runner.WithInputHandler(runner.NewTextHandler(os.Stdin, os.Stdout)),
	)
	if err := r.Run(ctx, agent); err != nil {
		log.Fatal(err)
	}
*/
package runner
