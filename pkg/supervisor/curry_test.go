package supervisor

import (
	"context"
	"testing"

	"github.com/thyra-ai/thyra/pkg/core"
)

func schemaWith(props map[string]any, required ...any) map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": props,
		"required":   required,
	}
}

func TestCurryRemovesAvailableProperties(t *testing.T) {
	def := core.Definition{
		Name: "lookup",
		InputSchema: schemaWith(map[string]any{
			"city":    map[string]any{"type": "string"},
			"api_key": map[string]any{"type": "string"},
		}, "city", "api_key"),
	}

	reduced, _ := Curry(def, map[string]any{"api_key": "secret"})

	props := reduced.InputSchema["properties"].(map[string]any)
	if _, ok := props["api_key"]; ok {
		t.Fatalf("curried property should be removed from the schema")
	}
	if _, ok := props["city"]; !ok {
		t.Fatalf("unsatisfied property must remain")
	}
	required := reduced.InputSchema["required"].([]any)
	if len(required) != 1 || required[0] != "city" {
		t.Fatalf("required list should drop curried entries, got %v", required)
	}
}

func TestCurryDoesNotMutateOriginal(t *testing.T) {
	def := core.Definition{
		Name: "lookup",
		InputSchema: schemaWith(map[string]any{
			"city": map[string]any{"type": "string"},
		}, "city"),
	}

	Curry(def, map[string]any{"city": "madrid"})

	props := def.InputSchema["properties"].(map[string]any)
	if _, ok := props["city"]; !ok {
		t.Fatalf("original schema must be untouched")
	}
	if len(def.InputSchema["required"].([]any)) != 1 {
		t.Fatalf("original required list must be untouched")
	}
}

func TestCurryIsIdempotent(t *testing.T) {
	def := core.Definition{
		Name: "lookup",
		InputSchema: schemaWith(map[string]any{
			"a": map[string]any{"type": "string"},
			"b": map[string]any{"type": "string"},
		}),
	}
	available := map[string]any{"a": 1}

	first, _ := Curry(def, available)
	second, _ := Curry(def, available)

	firstProps := first.InputSchema["properties"].(map[string]any)
	secondProps := second.InputSchema["properties"].(map[string]any)
	if len(firstProps) != 1 || len(secondProps) != 1 {
		t.Fatalf("repeat currying should yield the same reduction, got %v and %v", firstProps, secondProps)
	}
}

func TestInjectorSuppliesCurriedValues(t *testing.T) {
	def := core.Definition{
		Name: "lookup",
		InputSchema: schemaWith(map[string]any{
			"city":    map[string]any{"type": "string"},
			"api_key": map[string]any{"type": "string"},
		}),
	}

	_, inject := Curry(def, map[string]any{"api_key": "secret"})

	input := inject(map[string]any{"city": "madrid"})
	if input["api_key"] != "secret" || input["city"] != "madrid" {
		t.Fatalf("injector should merge curried values, got %v", input)
	}

	// Curried values win: the model was told not to supply them.
	input = inject(map[string]any{"api_key": "model-guess"})
	if input["api_key"] != "secret" {
		t.Fatalf("curried value must take precedence, got %v", input["api_key"])
	}
}

func TestCurryWithNothingAvailableIsANoop(t *testing.T) {
	def := core.Definition{
		Name: "lookup",
		InputSchema: schemaWith(map[string]any{
			"city": map[string]any{"type": "string"},
		}),
	}

	reduced, inject := Curry(def, nil)
	props := reduced.InputSchema["properties"].(map[string]any)
	if len(props) != 1 {
		t.Fatalf("schema should be unchanged, got %v", props)
	}
	if out := inject(map[string]any{"city": "x"}); out["city"] != "x" || len(out) != 1 {
		t.Fatalf("injector should pass input through, got %v", out)
	}
}

func TestCurriedToolDelegatesWithInjectedInput(t *testing.T) {
	var seen map[string]any
	tool := core.NewTool("lookup", "looks things up",
		schemaWith(map[string]any{
			"city":    map[string]any{"type": "string"},
			"api_key": map[string]any{"type": "string"},
		}),
		func(_ context.Context, input map[string]any) core.Result {
			seen = input
			return core.Text("ok")
		})

	wrapped := curry(tool, map[string]any{"api_key": "secret"})
	wrapped.Call(context.Background(), map[string]any{"city": "madrid"})

	if seen["api_key"] != "secret" || seen["city"] != "madrid" {
		t.Fatalf("delegate should see the merged input, got %v", seen)
	}
	props := wrapped.Definition().InputSchema["properties"].(map[string]any)
	if _, ok := props["api_key"]; ok {
		t.Fatalf("wrapped definition should hide curried inputs")
	}
}
