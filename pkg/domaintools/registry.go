// Package domaintools exposes the methods of produced domain objects as tools.
// A capability that returns, say, an Invoice unlocks the Invoice's own
// operations: once an instance is bound, its registered methods become
// callable tools delegating to that instance.
//
// Method tables are declared explicitly at startup rather than discovered by
// reflection, so the set of invokable methods per type is a build-time fact.
package domaintools

import (
	"context"
	"reflect"
	"sync"

	"github.com/thyra-ai/thyra/pkg/core"
)

// Method describes one invokable capability of a domain type.
type Method struct {
	Name        string
	Description string
	InputSchema map[string]any
	// Invoke receives the bound instance and the LLM-supplied arguments.
	Invoke func(ctx context.Context, instance any, input map[string]any) core.Result
}

// Registry maps domain types to their invokable methods.
type Registry struct {
	mu      sync.RWMutex
	methods map[reflect.Type][]Method
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{methods: make(map[reflect.Type][]Method)}
}

// Register declares the invokable methods of T. Registering a type again
// replaces its previous method table.
func Register[T any](r *Registry, methods ...Method) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.methods[typeOf[T]()] = append([]Method(nil), methods...)
}

// MethodsFor returns the method table for a type, or nil if unknown.
func (r *Registry) MethodsFor(t reflect.Type) []Method {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]Method(nil), r.methods[t]...)
}

// Knows reports whether the type has at least one registered method.
func (r *Registry) Knows(t reflect.Type) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.methods[t]) > 0
}

// boundTool is a registered method delegating to a bound instance.
type boundTool struct {
	method   Method
	instance any
}

func (t *boundTool) Definition() core.Definition {
	return core.Definition{
		Name:        t.method.Name,
		Description: t.method.Description,
		InputSchema: t.method.InputSchema,
	}
}

func (t *boundTool) Call(ctx context.Context, input map[string]any) core.Result {
	return t.method.Invoke(ctx, t.instance, input)
}

// toolsFor materializes one tool per registered method, each delegating to
// the given instance.
func toolsFor(methods []Method, instance any) []core.Tool {
	tools := make([]core.Tool, 0, len(methods))
	for _, m := range methods {
		tools = append(tools, &boundTool{method: m, instance: instance})
	}
	return tools
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}

// normalizeType maps pointer values onto their element type so *Invoice and
// Invoice bind to the same source.
func normalizeType(v any) reflect.Type {
	t := reflect.TypeOf(v)
	if t == nil {
		return nil
	}
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t
}
