package statemachine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thyra-ai/thyra/pkg/blackboard"
	"github.com/thyra-ai/thyra/pkg/core"
	thyratesting "github.com/thyra-ai/thyra/pkg/testing"
)

const orderYAML = `
initial_state: DRAFT
states:
  DRAFT:
    tools:
      - name: add_item
      - name: confirm
        transitions_to: CONFIRMED
  CONFIRMED:
    tools:
      - name: ship
        transitions_to: SHIPPED
  SHIPPED: {}
global_tools:
  - status
`

func orderToolSet() map[string]core.Tool {
	return map[string]core.Tool{
		"add_item": textTool("add_item", "item added"),
		"confirm":  textTool("confirm", "order confirmed"),
		"ship":     textTool("ship", "order shipped"),
		"status":   textTool("status", "status ok"),
	}
}

func TestParseAssemblesRunnableMachine(t *testing.T) {
	m, err := Parse([]byte(orderYAML), orderToolSet())
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	provider := thyratesting.NewScenarioProvider().
		AddToolCallResponse(thyratesting.NewToolCall("ship").Build()).
		AddToolCallResponse(thyratesting.NewToolCall("confirm").Build()).
		AddToolCallResponse(thyratesting.NewToolCall("ship").Build()).
		AddResponse("done")

	res := m.WithLLM(provider, "m").
		WithBlackboard(blackboard.NewInMemory()).
		Call(context.Background(), "ship the order")
	if res.IsError() {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	reqs := provider.Requests()
	blocked := reqs[1].Messages[len(reqs[1].Messages)-1]
	if !strings.Contains(blocked.Content, "not yet available") {
		t.Fatalf("ship should be blocked in DRAFT, got %q", blocked.Content)
	}
	shipped := reqs[3].Messages[len(reqs[3].Messages)-1]
	if shipped.Content != "order shipped" {
		t.Fatalf("ship should work after confirm, got %q", shipped.Content)
	}
}

func TestParseAcceptsJSON(t *testing.T) {
	doc := `{"initial_state":"A","states":{"A":{"tools":[{"name":"go"}]}}}`
	m, err := Parse([]byte(doc), map[string]core.Tool{"go": textTool("go", "ok")})
	if err != nil {
		t.Fatalf("json definition should parse: %v", err)
	}
	if m.initial != "A" {
		t.Fatalf("unexpected initial state %q", m.initial)
	}
}

func TestParseRejectsUnknownTool(t *testing.T) {
	doc := `
initial_state: A
states:
  A:
    tools:
      - name: missing
`
	if _, err := Parse([]byte(doc), map[string]core.Tool{}); err == nil || !strings.Contains(err.Error(), "missing") {
		t.Fatalf("expected unknown tool error, got %v", err)
	}
}

func TestParseRejectsUndefinedTransitionTarget(t *testing.T) {
	doc := `
initial_state: A
states:
  A:
    tools:
      - name: go
        transitions_to: NOWHERE
`
	_, err := Parse([]byte(doc), map[string]core.Tool{"go": textTool("go", "ok")})
	if err == nil || !strings.Contains(err.Error(), "NOWHERE") {
		t.Fatalf("expected undefined transition error, got %v", err)
	}
}

func TestParseRejectsMissingInitialState(t *testing.T) {
	doc := `
states:
  A:
    tools: []
`
	if _, err := Parse([]byte(doc), nil); err == nil || !strings.Contains(err.Error(), "initial_state") {
		t.Fatalf("expected initial_state error, got %v", err)
	}
}

func TestLoadFileReadsDefinitionFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "machine.yaml")
	if err := os.WriteFile(path, []byte(orderYAML), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := LoadFile(path, orderToolSet())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if m.initial != string(stateDraft) {
		t.Fatalf("unexpected initial state %q", m.initial)
	}
	if len(m.globalTools) != 1 {
		t.Fatalf("expected 1 global tool, got %d", len(m.globalTools))
	}
}
