package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"food-router/internal/domain"
)

// MCPClient is the subset of the mcp-go client the transport needs.
type MCPClient interface {
	Initialize(ctx context.Context, request mcp.InitializeRequest) (*mcp.InitializeResult, error)
	ListTools(ctx context.Context, request mcp.ListToolsRequest) (*mcp.ListToolsResult, error)
	CallTool(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)
	Close() error
}

// MCPTransport maps each task kind to the tool of the same name on the
// worker's MCP server. Tool results carry the JSON payload as text.
type MCPTransport struct {
	client MCPClient
	server mcp.Implementation
}

// NewMCPTransport initializes an MCP session over c.
func NewMCPTransport(ctx context.Context, c MCPClient) (*MCPTransport, error) {
	req := mcp.InitializeRequest{}
	req.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	req.Params.ClientInfo = mcp.Implementation{Name: "food-router", Version: "1.0.0"}

	res, err := c.Initialize(ctx, req)
	if err != nil {
		c.Close()
		return nil, domain.WrapOp("mcp initialize", err)
	}
	return &MCPTransport{client: c, server: res.ServerInfo}, nil
}

// DialMCPHTTP connects to a streamable HTTP MCP endpoint.
func DialMCPHTTP(ctx context.Context, url string) (*MCPTransport, error) {
	t, err := transport.NewStreamableHTTP(url)
	if err != nil {
		return nil, fmt.Errorf("create mcp http transport: %w", err)
	}
	c := mcpclient.NewClient(t)
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("start mcp client: %w", err)
	}
	return NewMCPTransport(ctx, c)
}

// DialMCPStdio launches command and speaks MCP over its stdio.
func DialMCPStdio(ctx context.Context, command string, env map[string]string, args ...string) (*MCPTransport, error) {
	c, err := mcpclient.NewStdioMCPClient(command, envSlice(env), args...)
	if err != nil {
		return nil, fmt.Errorf("create mcp stdio client: %w", err)
	}
	return NewMCPTransport(ctx, c)
}

// Send implements domain.Transport.
func (t *MCPTransport) Send(ctx context.Context, req domain.WireRequest) (domain.WireResponse, error) {
	call := mcp.CallToolRequest{}
	call.Params.Name = string(req.Kind)
	call.Params.Arguments = req.Fields

	res, err := t.client.CallTool(ctx, call)
	if err != nil {
		return domain.WireResponse{}, fmt.Errorf("%w: mcp call %s: %v", domain.ErrTransport, req.Kind, err)
	}
	text := toolText(res)
	if res.IsError {
		return domain.WireResponse{ID: req.ID, Status: domain.StatusError, Error: text}, nil
	}
	if !json.Valid([]byte(text)) {
		return domain.WireResponse{}, fmt.Errorf("%w: mcp tool %s returned non-JSON text", domain.ErrMalformedResponse, req.Kind)
	}
	return domain.WireResponse{ID: req.ID, Status: domain.StatusOK, Payload: json.RawMessage(text)}, nil
}

// Card implements domain.Transport. Skills are the tools whose names are
// task kinds.
func (t *MCPTransport) Card(ctx context.Context) (domain.AgentCard, error) {
	res, err := t.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return domain.AgentCard{}, fmt.Errorf("%w: mcp list tools: %v", domain.ErrTransport, err)
	}
	card := domain.AgentCard{Name: t.server.Name, Version: t.server.Version}
	for _, tool := range res.Tools {
		if k := domain.TaskKind(tool.Name); k.Valid() {
			card.Skills = append(card.Skills, k)
		}
	}
	return card, nil
}

// Close implements domain.Transport.
func (t *MCPTransport) Close() error {
	return t.client.Close()
}

func toolText(res *mcp.CallToolResult) string {
	var parts []string
	for _, c := range res.Content {
		switch v := c.(type) {
		case mcp.TextContent:
			parts = append(parts, v.Text)
		case *mcp.TextContent:
			parts = append(parts, v.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func envSlice(env map[string]string) []string {
	if len(env) == 0 {
		return nil
	}
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}
