// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

package gate

import (
	"context"
	"fmt"

	"github.com/thyra-ai/thyra/pkg/core"
)

// Hooks receives gate decisions as they happen. All fields are optional;
// orchestrators use them to feed audit stores, event emitters and metrics.
type Hooks struct {
	OnDelegated  func(ctx context.Context, tool string, res core.Result)
	OnBlocked    func(ctx context.Context, tool, reason string)
	OnTransition func(ctx context.Context, tool, from, to string)
	OnBound      func(ctx context.Context, typeName string)
}

// Delegated reports a call that passed its gate and ran.
func (h Hooks) Delegated(ctx context.Context, tool string, res core.Result) {
	if h.OnDelegated != nil {
		h.OnDelegated(ctx, tool, res)
	}
}

// Blocked reports a call rejected by its gate.
func (h Hooks) Blocked(ctx context.Context, tool, reason string) {
	if h.OnBlocked != nil {
		h.OnBlocked(ctx, tool, reason)
	}
}

// Transitioned reports a state-machine transition through the hooks.
func (h Hooks) Transitioned(ctx context.Context, tool, from, to string) {
	if h.OnTransition != nil {
		h.OnTransition(ctx, tool, from, to)
	}
}

// Bound reports a domain binding through the hooks.
func (h Hooks) Bound(ctx context.Context, typeName string) {
	if h.OnBound != nil {
		h.OnBound(ctx, typeName)
	}
}

// MergeHooks fans one decision out to every given hook set, in order.
func MergeHooks(hooks ...Hooks) Hooks {
	return Hooks{
		OnDelegated: func(ctx context.Context, tool string, res core.Result) {
			for _, h := range hooks {
				h.Delegated(ctx, tool, res)
			}
		},
		OnBlocked: func(ctx context.Context, tool, reason string) {
			for _, h := range hooks {
				h.Blocked(ctx, tool, reason)
			}
		},
		OnTransition: func(ctx context.Context, tool, from, to string) {
			for _, h := range hooks {
				h.Transitioned(ctx, tool, from, to)
			}
		},
		OnBound: func(ctx context.Context, typeName string) {
			for _, h := range hooks {
				h.Bound(ctx, typeName)
			}
		},
	}
}

type trackingTool struct {
	delegate core.Tool
	tracker  *Tracker
	hooks    Hooks
}

// Tracking wraps an always-unlocked tool so its calls and artifacts are
// recorded in the tracker. It never blocks.
func Tracking(tool core.Tool, tracker *Tracker, hooks Hooks) core.Tool {
	return &trackingTool{delegate: tool, tracker: tracker, hooks: hooks}
}

func (t *trackingTool) Definition() core.Definition {
	return t.delegate.Definition()
}

func (t *trackingTool) Call(ctx context.Context, input map[string]any) core.Result {
	res := t.delegate.Call(ctx, input)
	Record(t.tracker, t.delegate.Definition().Name, res)
	t.hooks.Delegated(ctx, t.delegate.Definition().Name, res)
	return res
}

type conditionalTool struct {
	delegate core.Tool
	cond     Condition
	tracker  *Tracker
	hooks    Hooks
}

// Conditional wraps a tool behind an unlock condition. While the condition
// is unsatisfied, calls return guidance text (never an error) and nothing is
// recorded; once satisfied, calls delegate and are recorded like Tracking.
func Conditional(tool core.Tool, cond Condition, tracker *Tracker, hooks Hooks) core.Tool {
	return &conditionalTool{delegate: tool, cond: cond, tracker: tracker, hooks: hooks}
}

func (t *conditionalTool) Definition() core.Definition {
	def := t.delegate.Definition()
	def.Description = fmt.Sprintf("%s (Unlocked %s.)", def.Description, t.cond.Describe())
	return def
}

func (t *conditionalTool) Call(ctx context.Context, input map[string]any) core.Result {
	name := t.delegate.Definition().Name
	snap := t.tracker.Snapshot()
	if !t.cond.Satisfied(snap) {
		reason := t.cond.Unmet(snap)
		t.hooks.Blocked(ctx, name, reason)
		return core.Textf("Tool %q is not yet available. %s", name, reason)
	}
	res := t.delegate.Call(ctx, input)
	Record(t.tracker, name, res)
	t.hooks.Delegated(ctx, name, res)
	return res
}

// Record stores a completed tool call and any artifacts its result carries.
// Shared by the wrapper shapes in this package and in statemachine.
func Record(tracker *Tracker, name string, res core.Result) {
	tracker.RecordToolCall(name)
	for _, artifact := range res.Artifacts {
		tracker.RecordArtifact(artifact)
	}
}
