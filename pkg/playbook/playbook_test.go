package playbook

import (
	"context"
	"strings"
	"testing"

	"github.com/thyra-ai/thyra/pkg/audit"
	"github.com/thyra-ai/thyra/pkg/blackboard"
	"github.com/thyra-ai/thyra/pkg/core"
	thyratesting "github.com/thyra-ai/thyra/pkg/testing"
)

type report struct {
	Title string
}

func textTool(name, reply string) core.Tool {
	return core.NewTool(name, "test tool "+name, nil, func(_ context.Context, _ map[string]any) core.Result {
		return core.Text(reply)
	})
}

func artifactTool(name string, v any) core.Tool {
	return core.NewTool(name, "produces an artifact", nil, func(_ context.Context, _ map[string]any) core.Result {
		return core.Artifact(v)
	})
}

func TestCallFailsWithoutTools(t *testing.T) {
	p := New().WithLLM(thyratesting.NewScenarioProvider(), "m").WithBlackboard(blackboard.NewInMemory())
	res := p.Call(context.Background(), "go")
	if !res.IsError() {
		t.Fatalf("expected configuration error, got %s", res.Kind)
	}
	if !strings.Contains(res.Err.Error(), "no tools") {
		t.Fatalf("unexpected error: %v", res.Err)
	}
}

func TestCallFailsWithoutBlackboard(t *testing.T) {
	p := New().
		WithTools(textTool("search", "ok")).
		WithLLM(thyratesting.NewScenarioProvider(), "m")
	res := p.Call(context.Background(), "go")
	if !res.IsError() || !strings.Contains(res.Err.Error(), "blackboard") {
		t.Fatalf("expected blackboard configuration error, got %+v", res)
	}
}

func TestGatedToolUnlocksAfterPrerequisite(t *testing.T) {
	// The model tries analyze first, gets guidance, uses search, then analyze.
	provider := thyratesting.NewScenarioProvider().
		AddToolCallResponse(thyratesting.NewToolCall("analyze").Build()).
		AddToolCallResponse(thyratesting.NewToolCall("search").Build()).
		AddToolCallResponse(thyratesting.NewToolCall("analyze").Build()).
		AddResponse("all done")

	p := New().
		WithTools(textTool("search", "three results")).
		WithTool(textTool("analyze", "analysis complete")).UnlockedBy("search").
		WithLLM(provider, "m").
		WithBlackboard(blackboard.NewInMemory())

	res := p.Call(context.Background(), "research topic")
	if res.IsError() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if res.Text != "all done" {
		t.Fatalf("unexpected output: %q", res.Text)
	}

	reqs := provider.Requests()
	// Turn 2 sees the blocked guidance from turn 1's analyze attempt.
	blocked := reqs[1].Messages[len(reqs[1].Messages)-1]
	if !strings.Contains(blocked.Content, "not yet available") || !strings.Contains(blocked.Content, "search") {
		t.Fatalf("blocked guidance should name the prerequisite, got %q", blocked.Content)
	}
	// Turn 4 sees the real delegate output from turn 3's analyze call.
	delegated := reqs[3].Messages[len(reqs[3].Messages)-1]
	if delegated.Content != "analysis complete" {
		t.Fatalf("unlocked call should delegate, got %q", delegated.Content)
	}
}

func TestResultShapeFollowsArtifactCount(t *testing.T) {
	board := blackboard.NewInMemory()

	run := func(p Playbook, script *thyratesting.ScenarioProvider) core.Result {
		return p.WithLLM(script, "m").WithBlackboard(board).Call(context.Background(), "go")
	}

	// No artifacts: text result.
	res := run(New().WithTools(textTool("search", "ok")),
		thyratesting.NewScenarioProvider().AddResponse("plain"))
	if res.Kind != core.ResultText || res.Text != "plain" {
		t.Fatalf("expected text result, got %+v", res)
	}

	// One artifact: artifact result.
	res = run(New().WithTools(artifactTool("fetch", report{Title: "q3"})),
		thyratesting.NewScenarioProvider().
			AddToolCallResponse(thyratesting.NewToolCall("fetch").Build()).
			AddResponse("fetched"))
	if res.Kind != core.ResultArtifact || len(res.Artifacts) != 1 {
		t.Fatalf("expected single-artifact result, got %+v", res)
	}

	// Two artifacts: artifacts result.
	res = run(New().WithTools(artifactTool("fetch", report{Title: "a"}), artifactTool("fetch2", report{Title: "b"})),
		thyratesting.NewScenarioProvider().
			AddToolCallResponse(thyratesting.NewToolCall("fetch").Build()).
			AddToolCallResponse(thyratesting.NewToolCall("fetch2").Build()).
			AddResponse("both fetched"))
	if res.Kind != core.ResultArtifacts || len(res.Artifacts) != 2 {
		t.Fatalf("expected multi-artifact result, got %+v", res)
	}
}

func TestUnlockedByArtifactGate(t *testing.T) {
	provider := thyratesting.NewScenarioProvider().
		AddToolCallResponse(thyratesting.NewToolCall("summarize").Build()).
		AddToolCallResponse(thyratesting.NewToolCall("fetch").Build()).
		AddToolCallResponse(thyratesting.NewToolCall("summarize").Build()).
		AddResponse("done")

	p := New().
		WithTools(artifactTool("fetch", report{Title: "q3"})).
		WithTool(textTool("summarize", "summary ready")).UnlockedByArtifact(report{}).
		WithLLM(provider, "m").
		WithBlackboard(blackboard.NewInMemory())

	res := p.Call(context.Background(), "summarize the report")
	if res.IsError() {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	reqs := provider.Requests()
	blocked := reqs[1].Messages[len(reqs[1].Messages)-1]
	if !strings.Contains(blocked.Content, "not yet available") {
		t.Fatalf("artifact gate should block first, got %q", blocked.Content)
	}
	delegated := reqs[3].Messages[len(reqs[3].Messages)-1]
	if delegated.Content != "summary ready" {
		t.Fatalf("artifact gate should open after fetch, got %q", delegated.Content)
	}
}

func TestBuilderIsCopyOnWrite(t *testing.T) {
	base := New().WithTools(textTool("search", "ok"))
	extended := base.WithTool(textTool("analyze", "ok")).UnlockedBy("search")

	if len(base.regs) != 1 {
		t.Fatalf("base playbook must be unchanged, has %d registrations", len(base.regs))
	}
	if len(extended.regs) != 2 {
		t.Fatalf("extended playbook should have 2 registrations, has %d", len(extended.regs))
	}
}

func TestUnlockedByAnyOpensOnEitherPrerequisite(t *testing.T) {
	provider := thyratesting.NewScenarioProvider().
		AddToolCallResponse(thyratesting.NewToolCall("fetch_b").Build()).
		AddToolCallResponse(thyratesting.NewToolCall("merge").Build()).
		AddResponse("done")

	p := New().
		WithTools(textTool("fetch_a", "a"), textTool("fetch_b", "b")).
		WithTool(textTool("merge", "merged")).UnlockedByAny("fetch_a", "fetch_b").
		WithLLM(provider, "m").
		WithBlackboard(blackboard.NewInMemory())

	if res := p.Call(context.Background(), "go"); res.IsError() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	reqs := provider.Requests()
	merged := reqs[2].Messages[len(reqs[2].Messages)-1]
	if merged.Content != "merged" {
		t.Fatalf("merge should unlock after one alternative, got %q", merged.Content)
	}
}

func TestAuditStoreReceivesGateDecisions(t *testing.T) {
	store := audit.NewMemoryStore()
	provider := thyratesting.NewScenarioProvider().
		AddToolCallResponse(thyratesting.NewToolCall("analyze").Build()).
		AddToolCallResponse(thyratesting.NewToolCall("search").Build()).
		AddResponse("done")

	p := New().
		WithTools(textTool("search", "ok")).
		WithTool(textTool("analyze", "ok")).UnlockedBy("search").
		WithLLM(provider, "m").
		WithBlackboard(blackboard.NewInMemory()).
		WithAuditStore(store)

	if res := p.Call(context.Background(), "go"); res.IsError() {
		t.Fatalf("unexpected error: %v", res.Err)
	}

	blocked, _ := store.List(context.Background(), audit.Filter{Decision: audit.DecisionBlocked})
	if len(blocked) != 1 || blocked[0].Tool != "analyze" {
		t.Fatalf("expected one blocked decision for analyze, got %+v", blocked)
	}
	delegated, _ := store.List(context.Background(), audit.Filter{Decision: audit.DecisionDelegated})
	if len(delegated) != 1 || delegated[0].Tool != "search" {
		t.Fatalf("expected one delegated decision for search, got %+v", delegated)
	}
}

func TestEmitterSeesBlockedEvents(t *testing.T) {
	collector := thyratesting.NewEventCollector()
	provider := thyratesting.NewScenarioProvider().
		AddToolCallResponse(thyratesting.NewToolCall("analyze").Build()).
		AddResponse("gave up")

	p := New().
		WithTools(textTool("search", "ok")).
		WithTool(textTool("analyze", "ok")).UnlockedBy("search").
		WithLLM(provider, "m").
		WithBlackboard(blackboard.NewInMemory()).
		WithEmitter(collector)

	if res := p.Call(context.Background(), "go"); res.IsError() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	if !collector.HasEvent(core.EventToolBlocked) {
		t.Fatalf("blocked event should be emitted")
	}
	if !collector.HasEvent(core.EventCallStarted) || !collector.HasEvent(core.EventCallCompleted) {
		t.Fatalf("loop lifecycle events should be emitted")
	}
}

func TestCustomPromptCreatorWins(t *testing.T) {
	provider := thyratesting.NewScenarioProvider().AddResponse("done")
	p := New().
		WithTools(textTool("search", "ok")).
		WithLLM(provider, "m").
		WithBlackboard(blackboard.NewInMemory()).
		WithSystemPrompt("ignored").
		WithSystemPromptCreator(func(_ context.Context) string { return "creator wins" })

	if res := p.Call(context.Background(), "go"); res.IsError() {
		t.Fatalf("unexpected error: %v", res.Err)
	}
	req := provider.Requests()[0]
	if req.Messages[0].Content != "creator wins" {
		t.Fatalf("prompt creator should take precedence, got %q", req.Messages[0].Content)
	}
}
