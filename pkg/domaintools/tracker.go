package domaintools

import (
	"context"
	"reflect"
	"sync"

	"github.com/thyra-ai/thyra/pkg/core"
	"github.com/thyra-ai/thyra/pkg/gate"
)

// Tracker holds, per declared source type, at most one currently bound
// instance. Its lifetime matches one orchestrator invocation; bindings never
// outlive the call that produced them.
//
// Two binding modes coexist and deliberately differ:
//   - declared sources replace bindings per type ("last write wins" within
//     one type, other types untouched);
//   - auto-discovery binds any instance whose type the registry knows, and
//     the newest binding displaces the previous auto-bound object entirely,
//     tools included, even when the types differ.
type Tracker struct {
	mu       sync.Mutex
	registry *Registry
	sources  []Source
	auto     bool
	hooks    gate.Hooks

	bound     map[reflect.Type]any // declared-source bindings
	autoBound any                  // current auto-discovered binding
	autoTools []core.Tool
}

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithSources declares the explicit binding sources.
func WithSources(sources ...Source) TrackerOption {
	return func(t *Tracker) { t.sources = append(t.sources, sources...) }
}

// WithAutoDiscovery lets any registry-known instance bind, not just declared
// source types.
func WithAutoDiscovery() TrackerOption {
	return func(t *Tracker) { t.auto = true }
}

// WithHooks wires gate hooks for binding notifications.
func WithHooks(hooks gate.Hooks) TrackerOption {
	return func(t *Tracker) { t.hooks = hooks }
}

// NewTracker creates a tracker over the given method registry.
func NewTracker(registry *Registry, opts ...TrackerOption) *Tracker {
	t := &Tracker{
		registry: registry,
		bound:    make(map[reflect.Type]any),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// TryBindArtifact offers a produced value for binding. On acceptance it
// returns the bound type's tools, each delegating to the new instance; on
// rejection it returns nil and leaves existing bindings untouched.
// Collections are never bound, only single instances.
func (t *Tracker) TryBindArtifact(ctx context.Context, v any, snap *gate.Snapshot) []core.Tool {
	if v == nil {
		return nil
	}
	if isCollection(v) {
		return nil
	}
	typ := normalizeType(v)
	if typ == nil {
		return nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	for _, source := range t.sources {
		if !source.accepts(v, snap) {
			continue
		}
		methods := t.registry.MethodsFor(typ)
		if len(methods) == 0 {
			return nil
		}
		t.bound[typ] = v
		t.hooks.Bound(ctx, typ.Name())
		return toolsFor(methods, v)
	}

	if t.auto {
		methods := t.registry.MethodsFor(typ)
		if len(methods) == 0 {
			return nil
		}
		t.autoBound = v
		t.autoTools = toolsFor(methods, v)
		t.hooks.Bound(ctx, typ.Name())
		return append([]core.Tool(nil), t.autoTools...)
	}

	return nil
}

// HasBoundInstance reports whether an instance of the type is currently bound.
func (t *Tracker) HasBoundInstance(typ reflect.Type) bool {
	_, ok := t.BoundInstance(typ)
	return ok
}

// BoundInstance returns the currently bound instance of the type, if any.
func (t *Tracker) BoundInstance(typ reflect.Type) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if v, ok := t.bound[typ]; ok {
		return v, true
	}
	if t.autoBound != nil && normalizeType(t.autoBound) == typ {
		return t.autoBound, true
	}
	return nil, false
}

// ActiveTools returns the tools of the current auto-discovered binding.
// Declared sources are exposed through placeholder tools instead, so they
// never appear here.
func (t *Tracker) ActiveTools() []core.Tool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]core.Tool(nil), t.autoTools...)
}

// HasBound reports whether an instance of T is currently bound.
func HasBound[T any](t *Tracker) bool {
	return t.HasBoundInstance(typeOf[T]())
}

// Bound returns the currently bound instance of T, if any.
func Bound[T any](t *Tracker) (T, bool) {
	var zero T
	v, ok := t.BoundInstance(typeOf[T]())
	if !ok {
		return zero, false
	}
	if typed, ok := v.(T); ok {
		return typed, true
	}
	if p, ok := v.(*T); ok && p != nil {
		return *p, true
	}
	return zero, false
}

func isCollection(v any) bool {
	switch reflect.TypeOf(v).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return true
	default:
		return false
	}
}
