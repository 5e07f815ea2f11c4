// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

package gate

import (
	"reflect"
	"sort"
	"sync"

	"github.com/thyra-ai/thyra/pkg/core"
)

// Tracker records what happened during one orchestrator invocation: which
// tools were called, which artifacts were produced and how many calls have
// been recorded. A fresh Tracker is created per Call and discarded with it;
// nothing removes history within one invocation.
type Tracker struct {
	mu         sync.Mutex
	called     map[string]struct{}
	artifacts  []any
	iterations int
	board      core.Blackboard
}

// NewTracker creates an empty tracker bound to the process blackboard.
func NewTracker(board core.Blackboard) *Tracker {
	return &Tracker{called: make(map[string]struct{}), board: board}
}

// RecordToolCall adds name to the called set and increments the iteration
// count. Repeat calls to the same tool still count as iterations.
func (t *Tracker) RecordToolCall(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.called[name] = struct{}{}
	t.iterations++
}

// RecordArtifact appends a produced value to the artifact list. Slices and
// arrays are flattened one level so type-based conditions can match element
// types; flattening is not recursive.
func (t *Tracker) RecordArtifact(v any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		for i := 0; i < rv.Len(); i++ {
			t.artifacts = append(t.artifacts, rv.Index(i).Interface())
		}
	default:
		t.artifacts = append(t.artifacts, v)
	}
}

// Snapshot produces the immutable view conditions and predicates evaluate
// against.
func (t *Tracker) Snapshot() *Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	called := make(map[string]struct{}, len(t.called))
	for name := range t.called {
		called[name] = struct{}{}
	}
	artifacts := make([]any, len(t.artifacts))
	copy(artifacts, t.artifacts)
	return &Snapshot{
		called:     called,
		artifacts:  artifacts,
		iterations: t.iterations,
		board:      t.board,
	}
}

// ArtifactList returns a copy of the recorded artifacts, oldest first.
func (t *Tracker) ArtifactList() []any {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]any, len(t.artifacts))
	copy(out, t.artifacts)
	return out
}

// Iterations returns how many tool calls have been recorded.
func (t *Tracker) Iterations() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.iterations
}

// Snapshot is a read-only view of the tracker state at one point in time,
// plus the blackboard reference. Conditions hold no reference back to the
// live tracker, so repeated evaluation is idempotent.
type Snapshot struct {
	called     map[string]struct{}
	artifacts  []any
	iterations int
	board      core.Blackboard
}

// CalledTool reports whether the named tool has been recorded.
func (s *Snapshot) CalledTool(name string) bool {
	_, ok := s.called[name]
	return ok
}

// CalledTools returns the called tool names, sorted for stable output.
func (s *Snapshot) CalledTools() []string {
	names := make([]string, 0, len(s.called))
	for name := range s.called {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Artifacts returns the artifacts produced so far, oldest first. Callers
// must not mutate the returned slice.
func (s *Snapshot) Artifacts() []any { return s.artifacts }

// Iterations returns the recorded tool-call count.
func (s *Snapshot) Iterations() int { return s.iterations }

// Blackboard returns the shared store reference, possibly nil.
func (s *Snapshot) Blackboard() core.Blackboard { return s.board }
