// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

// Package supervisor is the goal-driven orchestrator: it curries inputs the
// shared store can already satisfy out of every tool's schema, runs one model
// turn at a time, and stops as soon as an instance of the goal's output type
// appears on the blackboard.
package supervisor

import (
	"context"

	"github.com/thyra-ai/thyra/pkg/core"
)

// Injector merges curried values into a call's input at invocation time.
// Curried values win over whatever the model supplied: the reduced schema
// told it not to provide them.
type Injector func(input map[string]any) map[string]any

// Curry removes from def's schema every property whose name has a value in
// available, returning the reduced definition and an injector that supplies
// the removed values at call time. It is a pure transformation: def and its
// schema are never mutated, and calling Curry twice with the same inputs
// yields the same reduction.
func Curry(def core.Definition, available map[string]any) (core.Definition, Injector) {
	curried := make(map[string]any)

	props, _ := def.InputSchema["properties"].(map[string]any)
	if len(props) == 0 {
		return def, injectorFor(curried)
	}

	reducedProps := make(map[string]any, len(props))
	for name, schema := range props {
		if v, ok := available[name]; ok {
			curried[name] = v
			continue
		}
		reducedProps[name] = schema
	}
	if len(curried) == 0 {
		return def, injectorFor(curried)
	}

	reduced := make(map[string]any, len(def.InputSchema))
	for k, v := range def.InputSchema {
		reduced[k] = v
	}
	reduced["properties"] = reducedProps
	if required, ok := def.InputSchema["required"].([]any); ok {
		reduced["required"] = dropCurried(required, curried)
	} else if required, ok := def.InputSchema["required"].([]string); ok {
		kept := make([]any, 0, len(required))
		for _, name := range required {
			kept = append(kept, name)
		}
		reduced["required"] = dropCurried(kept, curried)
	}

	def.InputSchema = reduced
	return def, injectorFor(curried)
}

func injectorFor(curried map[string]any) Injector {
	return func(input map[string]any) map[string]any {
		if input == nil {
			input = make(map[string]any, len(curried))
		}
		for name, v := range curried {
			input[name] = v
		}
		return input
	}
}

func dropCurried(required []any, curried map[string]any) []any {
	kept := make([]any, 0, len(required))
	for _, entry := range required {
		name, ok := entry.(string)
		if ok {
			if _, gone := curried[name]; gone {
				continue
			}
		}
		kept = append(kept, entry)
	}
	return kept
}

// curriedTool exposes the reduced schema and injects the curried values
// before delegating.
type curriedTool struct {
	delegate core.Tool
	def      core.Definition
	inject   Injector
}

func curry(tool core.Tool, available map[string]any) *curriedTool {
	def, inject := Curry(tool.Definition(), available)
	return &curriedTool{delegate: tool, def: def, inject: inject}
}

func (t *curriedTool) Definition() core.Definition { return t.def }

func (t *curriedTool) Call(ctx context.Context, input map[string]any) core.Result {
	return t.delegate.Call(ctx, t.inject(input))
}
