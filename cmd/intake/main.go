// Command intake runs the conversation engine as a terminal chat, an HTTP server or an
// MCP server, and manages its configurations and stored sessions.
package main

func main() {
	Execute()
}
