package workerserver

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"food-router/internal/domain"
)

const mcpPath = "/mcp"

var emptyObjectSchema = json.RawMessage(`{"type":"object"}`)

// NewMCPServer exposes every registered skill as an MCP tool named after its
// task kind, plus any extra worker-specific tools.
func NewMCPServer(reg *Registry, extra ...server.ServerTool) *server.MCPServer {
	card := reg.Card()
	s := server.NewMCPServer(card.Name, card.Version, server.WithToolCapabilities(false))
	for _, sk := range reg.Skills() {
		schema := sk.Schema
		if len(schema) == 0 {
			schema = emptyObjectSchema
		}
		s.AddTool(mcp.NewToolWithRawSchema(string(sk.Kind), sk.Description, schema), skillTool(reg, sk.Kind))
	}
	if len(extra) > 0 {
		s.AddTools(extra...)
	}
	return s
}

func skillTool(exec domain.Executor, kind domain.TaskKind) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := exec.Execute(ctx, domain.WireRequest{
			ID:     uuid.NewString(),
			Kind:   kind,
			Fields: req.GetArguments(),
		})
		if err != nil {
			return nil, err
		}
		if resp.Status == domain.StatusError {
			return mcp.NewToolResultError(resp.Error), nil
		}
		return mcp.NewToolResultText(string(resp.Payload)), nil
	}
}

// JSONResult renders v as a JSON text tool result.
func JSONResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}
