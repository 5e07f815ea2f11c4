package domaintools

import (
	"context"
	"fmt"

	"github.com/thyra-ai/thyra/pkg/core"
)

// placeholderTool stands in for a domain method before its type is bound.
type placeholderTool struct {
	method  Method
	source  Source
	tracker *Tracker
}

func (t *placeholderTool) Definition() core.Definition {
	def := core.Definition{
		Name:        t.method.Name,
		Description: t.method.Description,
		InputSchema: t.method.InputSchema,
	}
	def.Description = fmt.Sprintf("%s (Available once a %s has been produced.)",
		def.Description, t.source.TypeName())
	return def
}

func (t *placeholderTool) Call(ctx context.Context, input map[string]any) core.Result {
	instance, ok := t.tracker.BoundInstance(t.source.Type())
	if !ok {
		// Text, not Error: the model should pick a different tool, not abort.
		return core.Textf("Tool %q is not yet available. Retrieve a %s first.",
			t.method.Name, t.source.TypeName())
	}
	return t.method.Invoke(ctx, instance, input)
}

// PlaceholderTools generates one visible-but-inert tool per registered method
// of the source's type. Before binding, calls return guidance text; after
// binding, the same named tools transparently delegate to the bound instance.
func PlaceholderTools(source Source, registry *Registry, tracker *Tracker) []core.Tool {
	methods := registry.MethodsFor(source.Type())
	tools := make([]core.Tool, 0, len(methods))
	for _, m := range methods {
		tools = append(tools, &placeholderTool{method: m, source: source, tracker: tracker})
	}
	return tools
}
