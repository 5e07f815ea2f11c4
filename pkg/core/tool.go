// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

// Package core defines the capability contract shared by every Thyra
// component: tools, results, the blackboard interface and call-scoped
// context helpers.
package core

import "context"

// Definition describes a tool to the LLM: its name, a human-readable
// description and a JSON-Schema input schema.
type Definition struct {
	Name        string
	Description string
	InputSchema map[string]any
}

// Tool is an invokable capability exposed to an LLM. Implementations are
// supplied by the surrounding engine; Thyra wraps and gates them but never
// creates their business logic.
type Tool interface {
	Definition() Definition
	Call(ctx context.Context, input map[string]any) Result
}

type toolFunc struct {
	def Definition
	fn  func(ctx context.Context, input map[string]any) Result
}

// NewTool builds a Tool from a function. schema may be nil for tools that
// take no arguments.
func NewTool(name, description string, schema map[string]any, fn func(ctx context.Context, input map[string]any) Result) Tool {
	if schema == nil {
		schema = map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return &toolFunc{
		def: Definition{Name: name, Description: description, InputSchema: schema},
		fn:  fn,
	}
}

func (t *toolFunc) Definition() Definition { return t.def }

func (t *toolFunc) Call(ctx context.Context, input map[string]any) Result {
	return t.fn(ctx, input)
}
