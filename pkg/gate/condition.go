// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

// Package gate implements progressive tool gating: a condition algebra over
// execution history, the mutable tracker the algebra evaluates against, and
// the wrappers that enforce gating at call time.
package gate

import (
	"fmt"
	"reflect"
	"strings"
)

// Condition is a pure boolean expression over a Snapshot. The hierarchy is
// closed: the five variants below are the only implementations, so composite
// evaluation can rely on their documented short-circuit behavior.
//
// Evaluation never mutates state, never panics and is safe to repeat against
// the same snapshot.
type Condition interface {
	// Satisfied reports whether the condition holds for the snapshot.
	Satisfied(snap *Snapshot) bool
	// Describe renders the unlock requirement for tool descriptions.
	Describe() string
	// Unmet renders a human-readable explanation of what is still missing.
	// Only meaningful when Satisfied is false.
	Unmet(snap *Snapshot) string

	sealedCondition()
}

type afterTools struct {
	names []string
}

// AfterTools is satisfied once every named tool appears in the called set.
// With no names it is vacuously satisfied.
func AfterTools(names ...string) Condition {
	return afterTools{names: append([]string(nil), names...)}
}

func (c afterTools) Satisfied(snap *Snapshot) bool {
	for _, name := range c.names {
		if !snap.CalledTool(name) {
			return false
		}
	}
	return true
}

func (c afterTools) Describe() string {
	if len(c.names) == 0 {
		return "immediately"
	}
	return "after using: " + strings.Join(c.names, ", ")
}

func (c afterTools) Unmet(snap *Snapshot) string {
	var missing []string
	for _, name := range c.names {
		if !snap.CalledTool(name) {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return ""
	}
	return "Use these tools first: " + strings.Join(missing, ", ") + "."
}

func (afterTools) sealedCondition() {}

type onArtifact struct {
	typ   reflect.Type
	match func(v any, snap *Snapshot) bool
}

// OnArtifact is satisfied when any produced artifact is an instance of T
// (or a pointer to T).
func OnArtifact[T any]() Condition {
	return onArtifact{typ: typeOf[T]()}
}

// OnArtifactMatching is satisfied when any produced artifact is an instance
// of T and the predicate accepts it.
func OnArtifactMatching[T any](pred func(v T, snap *Snapshot) bool) Condition {
	return onArtifact{
		typ: typeOf[T](),
		match: func(v any, snap *Snapshot) bool {
			typed, ok := v.(T)
			if !ok {
				if ptr, okPtr := v.(*T); okPtr && ptr != nil {
					typed, ok = *ptr, true
				}
			}
			return ok && pred != nil && pred(typed, snap)
		},
	}
}

// OnArtifactOf is the prototype form of OnArtifact for builder surfaces that
// hold a value rather than a type parameter. A pointer prototype names its
// element type.
func OnArtifactOf(prototype any) Condition {
	t := reflect.TypeOf(prototype)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return onArtifact{typ: t}
}

// OnArtifactOfMatching is the prototype form of OnArtifactMatching. The
// predicate receives the raw artifact value.
func OnArtifactOfMatching(prototype any, pred func(v any, snap *Snapshot) bool) Condition {
	t := reflect.TypeOf(prototype)
	if t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return onArtifact{
		typ: t,
		match: func(v any, snap *Snapshot) bool {
			return pred != nil && pred(v, snap)
		},
	}
}

func (c onArtifact) Satisfied(snap *Snapshot) bool {
	for _, artifact := range snap.Artifacts() {
		if !instanceOf(artifact, c.typ) {
			continue
		}
		if c.match == nil || c.match(artifact, snap) {
			return true
		}
	}
	return false
}

func (c onArtifact) Describe() string {
	return fmt.Sprintf("after a %s artifact has been produced", typeName(c.typ))
}

func (c onArtifact) Unmet(_ *Snapshot) string {
	return fmt.Sprintf("No matching %s artifact has been produced yet.", typeName(c.typ))
}

func (onArtifact) sealedCondition() {}

type when struct {
	desc string
	pred func(snap *Snapshot) bool
}

// When is satisfied when the predicate holds. desc names the requirement in
// tool descriptions and blocked-call guidance.
func When(desc string, pred func(snap *Snapshot) bool) Condition {
	return when{desc: desc, pred: pred}
}

func (c when) Satisfied(snap *Snapshot) bool {
	return c.pred != nil && c.pred(snap)
}

func (c when) Describe() string {
	if c.desc == "" {
		return "when a runtime condition holds"
	}
	return "when " + c.desc
}

func (c when) Unmet(_ *Snapshot) string {
	if c.desc == "" {
		return "A runtime condition is not met yet."
	}
	return "Not yet " + c.desc + "."
}

func (when) sealedCondition() {}

type allOf struct {
	children []Condition
}

// AllOf is the conjunction of its children. Evaluation follows declaration
// order and stops at the first unsatisfied child.
func AllOf(conds ...Condition) Condition {
	return allOf{children: append([]Condition(nil), conds...)}
}

func (c allOf) Satisfied(snap *Snapshot) bool {
	for _, child := range c.children {
		if !child.Satisfied(snap) {
			return false
		}
	}
	return true
}

func (c allOf) Describe() string {
	return joinDescriptions(c.children, " and ")
}

func (c allOf) Unmet(snap *Snapshot) string {
	var parts []string
	for _, child := range c.children {
		if !child.Satisfied(snap) {
			parts = append(parts, child.Unmet(snap))
		}
	}
	return strings.Join(parts, " ")
}

func (allOf) sealedCondition() {}

type anyOf struct {
	children []Condition
}

// AnyOf is the disjunction of its children. Evaluation follows declaration
// order and stops at the first satisfied child.
func AnyOf(conds ...Condition) Condition {
	return anyOf{children: append([]Condition(nil), conds...)}
}

func (c anyOf) Satisfied(snap *Snapshot) bool {
	for _, child := range c.children {
		if child.Satisfied(snap) {
			return true
		}
	}
	return false
}

func (c anyOf) Describe() string {
	return joinDescriptions(c.children, " or ")
}

func (c anyOf) Unmet(snap *Snapshot) string {
	var parts []string
	for _, child := range c.children {
		parts = append(parts, child.Unmet(snap))
	}
	return "None of the alternatives are met yet. " + strings.Join(parts, " ")
}

func (anyOf) sealedCondition() {}

func joinDescriptions(conds []Condition, sep string) string {
	descs := make([]string, 0, len(conds))
	for _, cond := range conds {
		descs = append(descs, cond.Describe())
	}
	return strings.Join(descs, sep)
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "unknown"
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

// instanceOf reports whether v is an instance of t, accepting pointer
// indirection and interface implementation.
func instanceOf(v any, t reflect.Type) bool {
	if v == nil || t == nil {
		return false
	}
	vt := reflect.TypeOf(v)
	if t.Kind() == reflect.Interface {
		return vt.Implements(t)
	}
	if vt == t {
		return true
	}
	return vt.Kind() == reflect.Pointer && vt.Elem() == t
}
