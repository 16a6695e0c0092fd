// Package mcpserver exposes the table functions as MCP tools, one tool per
// function, with named arguments mapped onto the positional ones.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/flemzord/tabllm/internal/fault"
	"github.com/flemzord/tabllm/internal/functions"
)

// Caller runs a table function. *functions.Engine satisfies it.
type Caller interface {
	Call(ctx context.Context, name string, args []json.RawMessage) (json.RawMessage, error)
}

// Server serves the table functions over MCP.
type Server struct {
	mcp    *server.MCPServer
	caller Caller
	logger *slog.Logger
}

// New creates a server exposing every function in functions.Signatures.
func New(caller Caller, version string, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	s := &Server{
		mcp:    server.NewMCPServer("tabllm", version, server.WithToolCapabilities(false), server.WithRecovery()),
		caller: caller,
		logger: logger,
	}
	for _, sig := range functions.Signatures() {
		s.mcp.AddTool(toTool(sig), s.handler(sig))
	}
	return s
}

// Serve reads JSON-RPC requests from in and writes responses to out until
// ctx is cancelled or in is closed.
func (s *Server) Serve(ctx context.Context, in io.Reader, out io.Writer) error {
	stdio := server.NewStdioServer(s.mcp)
	return stdio.Listen(ctx, in, out)
}

type schema struct {
	Type       string              `json:"type"`
	Properties map[string]property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// property leaves the type open: arguments are arbitrary JSON values.
type property struct {
	Description string `json:"description"`
}

func toTool(sig functions.Signature) mcp.Tool {
	sch := schema{Type: "object", Properties: make(map[string]property, len(sig.Params))}
	for _, p := range sig.Params {
		sch.Properties[p.Name] = property{Description: p.Description}
		if p.Required {
			sch.Required = append(sch.Required, p.Name)
		}
	}
	raw, _ := json.Marshal(sch)
	return mcp.NewToolWithRawSchema(sig.Name, sig.Description, raw)
}

func (s *Server) handler(sig functions.Signature) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := positional(sig, req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		out, err := s.caller.Call(ctx, sig.Name, args)
		if err != nil {
			s.logger.Warn("mcp tool call failed", "function", sig.Name, "kind", fault.Kind(err), "error", err)
			return mcp.NewToolResultError(fmt.Sprintf("%s error: %v", fault.Kind(err), err)), nil
		}
		return mcp.NewToolResultText(string(out)), nil
	}
}

// positional orders named arguments by the signature. Trailing absent
// arguments are dropped; absent ones before a present one become null.
func positional(sig functions.Signature, named map[string]any) ([]json.RawMessage, error) {
	known := make(map[string]bool, len(sig.Params))
	for _, p := range sig.Params {
		known[p.Name] = true
	}
	for k := range named {
		if !known[k] {
			return nil, fault.Validationf("%s: unknown argument %q", sig.Name, k)
		}
	}

	args := make([]json.RawMessage, len(sig.Params))
	last := -1
	for i, p := range sig.Params {
		v, ok := named[p.Name]
		if !ok {
			if p.Required {
				return nil, fault.Validationf("%s: missing argument %q", sig.Name, p.Name)
			}
			args[i] = json.RawMessage("null")
			continue
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return nil, fault.Validationf("%s: argument %q: %v", sig.Name, p.Name, err)
		}
		args[i] = raw
		last = i
	}
	return args[:last+1], nil
}
