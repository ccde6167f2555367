package bridge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/theapemachine/toolgate/pkg/endpoint"
	"github.com/theapemachine/toolgate/pkg/types"
)

/*
ClientSource hands out a live client for the backing endpoint. The bridge
resolves it on every forwarded call, so an endpoint restart transparently
swaps the session underneath a mounted bridge.
*/
type ClientSource interface {
	Client() (*endpoint.Client, error)
}

/*
Bridge presents the SSE wire shape of the MCP protocol in front of a
local endpoint, hiding that the backend is driven over subprocess
streams. Remote endpoints never pass through here; their traffic is
proxied unaltered.
*/
type Bridge struct {
	name   string
	source ClientSource
	srv    *server.MCPServer
	sse    *server.SSEServer

	mu      sync.Mutex
	mounted []string
}

// NewBridge builds a bridge for the endpoint mounted under basePath.
func NewBridge(name, basePath string, source ClientSource) *Bridge {
	srv := server.NewMCPServer(
		name,
		"1.0.0",
		server.WithToolCapabilities(true),
	)

	return &Bridge{
		name:   name,
		source: source,
		srv:    srv,
		sse:    server.NewSSEServer(srv, server.WithStaticBasePath(basePath)),
	}
}

// Handler exposes the SSE surface for mounting into the HTTP app.
func (b *Bridge) Handler() http.Handler {
	return b.sse
}

// Refresh mirrors the endpoint's current tool list onto the bridge
// server, replacing whatever was mirrored before. Names and descriptions
// pass through verbatim; schemas are coerced to object form.
func (b *Bridge) Refresh(ctx context.Context) error {
	client, err := b.source.Client()
	if err != nil {
		return err
	}

	tools, err := client.ListTools(ctx)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.mounted) > 0 {
		b.srv.DeleteTools(b.mounted...)
	}
	b.mounted = b.mounted[:0]

	for _, tool := range tools {
		b.srv.AddTool(mcp.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: b.coerceSchema(tool),
		}, b.forward(tool.Name))
		b.mounted = append(b.mounted, tool.Name)
	}

	log.Debug("refreshed bridge tools", "endpoint", b.name, "count", len(tools))
	return nil
}

// coerceSchema shapes a backend input schema into the object form the
// external protocol requires. Anything not object-shaped becomes an empty
// object schema.
func (b *Bridge) coerceSchema(tool types.ToolDefinition) mcp.ToolInputSchema {
	empty := mcp.ToolInputSchema{Type: "object"}
	if len(tool.InputSchema) == 0 {
		return empty
	}

	var schema struct {
		Type       string         `json:"type"`
		Properties map[string]any `json:"properties"`
		Required   []string       `json:"required"`
	}
	if err := json.Unmarshal(tool.InputSchema, &schema); err != nil || schema.Type != "object" {
		log.Warn("tool schema is not object-shaped, substituting empty object",
			"endpoint", b.name, "tool", tool.Name)
		return empty
	}

	return mcp.ToolInputSchema{
		Type:       schema.Type,
		Properties: schema.Properties,
		Required:   schema.Required,
	}
}

func (b *Bridge) forward(toolName string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		client, err := b.source.Client()
		if err != nil {
			return nil, err
		}

		arguments, err := json.Marshal(req.GetArguments())
		if err != nil {
			return nil, err
		}

		response, err := client.CallTool(ctx, types.ToolCallRequest{
			Name:      toolName,
			Arguments: arguments,
		})
		if err != nil {
			return nil, err
		}

		result := &mcp.CallToolResult{Content: b.contentOut(response.Content)}
		if response.IsError != nil {
			result.IsError = *response.IsError
		}
		return result, nil
	}
}

// contentOut converts gateway content back into the external tagged
// union. Resources become a synthesized textual reference; full resource
// fidelity is not carried across the bridge.
func (b *Bridge) contentOut(content []types.ToolContent) []mcp.Content {
	out := make([]mcp.Content, 0, len(content))
	for _, item := range content {
		switch item.Kind {
		case types.ContentText:
			out = append(out, mcp.TextContent{Type: "text", Text: item.Text})
		case types.ContentImage:
			out = append(out, mcp.ImageContent{Type: "image", Data: item.Data, MIMEType: item.MimeType})
		case types.ContentResource:
			log.Warn("resource content is passed as a reference", "endpoint", b.name, "uri", item.URI)
			mimeType := item.MimeType
			if mimeType == "" {
				mimeType = "unknown"
			}
			out = append(out, mcp.TextContent{
				Type: "text",
				Text: fmt.Sprintf("Resource: %s (%s)", item.URI, mimeType),
			})
		}
	}
	return out
}
