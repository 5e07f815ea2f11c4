// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

package statemachine

import (
	"context"
	"fmt"
	"sync"

	"github.com/thyra-ai/thyra/pkg/core"
	"github.com/thyra-ai/thyra/pkg/domaintools"
	"github.com/thyra-ai/thyra/pkg/gate"
)

// currentState is the mutable per-call position of the machine. Tool calls
// run sequentially within a turn, but the mutex keeps transitions safe if a
// delegate spawns goroutines that call back in.
type currentState[S comparable] struct {
	mu    sync.Mutex
	value S
}

func (c *currentState[S]) get() S {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

// advance moves from -> to only if the machine is still in from, so a
// delegate that already transitioned elsewhere is not overridden.
func (c *currentState[S]) advance(from, to S) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.value != from {
		return false
	}
	c.value = to
	return true
}

// stateBoundTool permits its delegate only while the machine sits in the
// assigned state. Out-of-state calls return guidance text naming both states
// and record nothing. A successful in-state call is recorded, may bind
// domain artifacts, and fires the transition before the result returns, so
// the model's next turn already sees the new state.
type stateBoundTool[S comparable] struct {
	delegate   core.Tool
	assigned   S
	hasNext    bool
	next       S
	current    *currentState[S]
	tracker    *gate.Tracker
	domTracker *domaintools.Tracker
	hooks      gate.Hooks
}

func (t *stateBoundTool[S]) Definition() core.Definition {
	def := t.delegate.Definition()
	if t.hasNext {
		def.Description = fmt.Sprintf("%s (Available in state %q; moves the workflow to state %q on success.)",
			def.Description, fmt.Sprint(t.assigned), fmt.Sprint(t.next))
	} else {
		def.Description = fmt.Sprintf("%s (Available in state %q.)", def.Description, fmt.Sprint(t.assigned))
	}
	return def
}

func (t *stateBoundTool[S]) Call(ctx context.Context, input map[string]any) core.Result {
	name := t.delegate.Definition().Name
	if cur := t.current.get(); cur != t.assigned {
		reason := fmt.Sprintf("it works in state %q and the workflow is currently in state %q",
			fmt.Sprint(t.assigned), fmt.Sprint(cur))
		t.hooks.Blocked(ctx, name, reason)
		// Text, not Error: the model should advance the workflow, not abort.
		return core.Textf("Tool %q is not yet available: %s.", name, reason)
	}

	res := t.delegate.Call(ctx, input)
	if res.IsError() {
		return res
	}

	gate.Record(t.tracker, name, res)
	offerArtifacts(ctx, t.domTracker, t.tracker, res)
	if t.hasNext && t.current.advance(t.assigned, t.next) {
		t.hooks.Transitioned(ctx, name, fmt.Sprint(t.assigned), fmt.Sprint(t.next))
	}
	t.hooks.Delegated(ctx, name, res)
	return res
}

// globalStateTool never blocks; it records successful calls and offers their
// artifacts for domain binding like any other tool.
type globalStateTool[S comparable] struct {
	delegate   core.Tool
	tracker    *gate.Tracker
	domTracker *domaintools.Tracker
	hooks      gate.Hooks
}

func (t *globalStateTool[S]) Definition() core.Definition {
	return t.delegate.Definition()
}

func (t *globalStateTool[S]) Call(ctx context.Context, input map[string]any) core.Result {
	name := t.delegate.Definition().Name
	res := t.delegate.Call(ctx, input)
	if res.IsError() {
		return res
	}
	gate.Record(t.tracker, name, res)
	offerArtifacts(ctx, t.domTracker, t.tracker, res)
	t.hooks.Delegated(ctx, name, res)
	return res
}

func offerArtifacts(ctx context.Context, dom *domaintools.Tracker, tracker *gate.Tracker, res core.Result) {
	if dom == nil || len(res.Artifacts) == 0 {
		return
	}
	snap := tracker.Snapshot()
	for _, artifact := range res.Artifacts {
		dom.TryBindArtifact(ctx, artifact, snap)
	}
}
