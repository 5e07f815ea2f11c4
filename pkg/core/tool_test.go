package core

import (
	"context"
	"strings"
	"testing"
)

func TestNewToolDefaultsSchema(t *testing.T) {
	tool := NewTool("ping", "replies pong", nil, func(_ context.Context, _ map[string]any) Result {
		return Text("pong")
	})
	def := tool.Definition()
	if def.Name != "ping" {
		t.Fatalf("unexpected name: %s", def.Name)
	}
	if def.InputSchema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", def.InputSchema)
	}
	res := tool.Call(context.Background(), nil)
	if res.Kind != ResultText || res.Text != "pong" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestFinalByArtifactCount(t *testing.T) {
	if res := Final("done", nil); res.Kind != ResultText {
		t.Fatalf("expected text result, got %s", res.Kind)
	}
	if res := Final("done", []any{1}); res.Kind != ResultArtifact || len(res.Artifacts) != 1 {
		t.Fatalf("expected single artifact, got %+v", res)
	}
	if res := Final("done", []any{1, 2}); res.Kind != ResultArtifacts || len(res.Artifacts) != 2 {
		t.Fatalf("expected two artifacts, got %+v", res)
	}
}

func TestResultPayload(t *testing.T) {
	if got := Errorf("boom: %d", 7).Payload(); got != "Error: boom: 7" {
		t.Fatalf("unexpected error payload: %q", got)
	}
	if got := Text("hello").Payload(); got != "hello" {
		t.Fatalf("unexpected text payload: %q", got)
	}
	got := Artifact(map[string]any{"id": "a-1"}).Payload()
	if !strings.Contains(got, "a-1") {
		t.Fatalf("artifact payload should encode the artifact, got %q", got)
	}
}

func TestSchemaFor(t *testing.T) {
	type searchInput struct {
		Query string `json:"query" jsonschema:"description=Search query"`
		Limit int    `json:"limit,omitempty"`
	}
	schema := SchemaFor[searchInput]()
	if schema["type"] != "object" {
		t.Fatalf("expected object schema, got %v", schema["type"])
	}
	props, ok := schema["properties"].(map[string]any)
	if !ok {
		t.Fatalf("expected properties map, got %T", schema["properties"])
	}
	if _, ok := props["query"]; !ok {
		t.Fatalf("expected query property, got %v", props)
	}
}
