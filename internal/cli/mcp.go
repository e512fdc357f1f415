package cli

import (
	"context"
	"fmt"

	mcpadapter "github.com/aretw0/intake/pkg/adapters/mcp"
	"github.com/aretw0/intake/pkg/observability"
)

// MCP transports.
const (
	TransportStdio = "stdio"
	TransportSSE   = "sse"
)

// MCPOptions contains the flags of the mcp command.
type MCPOptions struct {
	Transport string
	Addr      string
	BaseURL   string
}

// RunMCP serves conversations as MCP tools. Logs go to stderr so stdio stays clean.
func RunMCP(ctx context.Context, s Settings, opts MCPOptions) error {
	logger := s.Logger()

	backend, err := OpenBackend(s.Store)
	if err != nil {
		return err
	}
	defer backend.Close()

	agent, _, err := NewAgent(s, backend, logger, observability.LogHooks(logger))
	if err != nil {
		return err
	}
	srv := mcpadapter.NewServer(agent, mcpadapter.WithLogger(logger))

	switch opts.Transport {
	case "", TransportStdio:
		logger.Info("Starting intake MCP server (stdio)", "config", agent.Config().Name)
		return srv.ServeStdio()
	case TransportSSE:
		baseURL := opts.BaseURL
		if baseURL == "" {
			baseURL = "http://localhost" + opts.Addr
		}
		return srv.ServeSSE(ctx, opts.Addr, baseURL)
	default:
		return fmt.Errorf("unknown transport %q (want stdio or sse)", opts.Transport)
	}
}
