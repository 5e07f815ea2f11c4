// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/thyra-ai/thyra/pkg/core"
	terrors "github.com/thyra-ai/thyra/pkg/errors"
)

// ToolCaller abstracts MCP tool execution for adapters.
type ToolCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) (*mcp.CallToolResult, error)
}

// ToolAdapter exposes one MCP tool as a core.Tool. Transport failures come
// back as Error results; server-side tool errors keep whatever text the
// server produced.
type ToolAdapter struct {
	tool   mcp.Tool
	caller ToolCaller
}

// NewToolAdapter wraps an MCP tool definition and a caller.
func NewToolAdapter(tool mcp.Tool, caller ToolCaller) (*ToolAdapter, error) {
	if tool.Name == "" {
		return nil, errors.New("mcp tool name is required")
	}
	if caller == nil {
		return nil, errors.New("tool caller is required")
	}
	return &ToolAdapter{tool: tool, caller: caller}, nil
}

// Tools lists the server's tools and adapts each one.
func Tools(ctx context.Context, client *Client) ([]core.Tool, error) {
	remote, err := client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]core.Tool, 0, len(remote))
	for _, tool := range remote {
		adapter, err := NewToolAdapter(tool, client)
		if err != nil {
			return nil, err
		}
		out = append(out, adapter)
	}
	return out, nil
}

func (t *ToolAdapter) Definition() core.Definition {
	return core.Definition{
		Name:        t.tool.Name,
		Description: t.tool.Description,
		InputSchema: inputSchema(t.tool),
	}
}

func (t *ToolAdapter) Call(ctx context.Context, input map[string]any) core.Result {
	if input == nil {
		input = map[string]any{}
	}
	result, err := t.caller.CallTool(ctx, t.tool.Name, input)
	if err != nil {
		return core.Error(terrors.New(terrors.CodeToolFailure, "mcp call failed: "+t.tool.Name, err))
	}
	if result == nil {
		return core.Error(terrors.New(terrors.CodeToolFailure, "mcp tool returned no result: "+t.tool.Name, nil))
	}
	if result.IsError {
		return core.Errorf("mcp tool %q: %s", t.tool.Name, textContent(result.Content))
	}
	if result.StructuredContent != nil {
		return core.Artifact(result.StructuredContent)
	}
	return core.Text(textContent(result.Content))
}

// inputSchema renders the MCP schema into the map form core.Definition
// carries, preferring the raw schema when the server sent one.
func inputSchema(tool mcp.Tool) map[string]any {
	if tool.RawInputSchema != nil {
		var out map[string]any
		if err := json.Unmarshal(tool.RawInputSchema, &out); err == nil {
			return out
		}
	}
	encoded, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	var out map[string]any
	if err := json.Unmarshal(encoded, &out); err != nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return out
}

func textContent(items []mcp.Content) string {
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}

var _ core.Tool = (*ToolAdapter)(nil)
