package audit

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/thyra-ai/thyra/pkg/core"
)

func TestMemoryStoreFilters(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	events := []Event{
		{RunID: "r1", Tool: "search", Decision: DecisionDelegated},
		{RunID: "r1", Tool: "analyze", Decision: DecisionBlocked, Detail: "use search first"},
		{RunID: "r2", Tool: "search", Decision: DecisionDelegated},
	}
	for _, ev := range events {
		if err := store.Record(ctx, ev); err != nil {
			t.Fatalf("record failed: %v", err)
		}
	}

	got, err := store.List(ctx, Filter{RunID: "r1"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events for r1, got %d", len(got))
	}

	got, _ = store.List(ctx, Filter{Decision: DecisionBlocked})
	if len(got) != 1 || got[0].Tool != "analyze" {
		t.Fatalf("decision filter failed: %+v", got)
	}

	got, _ = store.List(ctx, Filter{Limit: 1})
	if len(got) != 1 {
		t.Fatalf("limit ignored, got %d", len(got))
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "audit.db")
	store, err := OpenSQLite(dsn)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	if err := store.Record(ctx, Event{RunID: "r1", Tool: "confirm", Decision: DecisionTransition, Detail: "draft -> confirmed"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}
	if err := store.Record(ctx, Event{RunID: "r1", Decision: DecisionBound, Detail: "Invoice"}); err != nil {
		t.Fatalf("record failed: %v", err)
	}

	got, err := store.List(ctx, Filter{RunID: "r1"})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 events, got %d", len(got))
	}
	if got[0].Decision != DecisionTransition || got[0].Detail != "draft -> confirmed" {
		t.Fatalf("unexpected first event: %+v", got[0])
	}
	if got[0].Timestamp.IsZero() {
		t.Fatalf("timestamp should be filled on record")
	}

	got, _ = store.List(ctx, Filter{Decision: DecisionBound})
	if len(got) != 1 || got[0].Detail != "Invoice" {
		t.Fatalf("decision filter failed: %+v", got)
	}
}

func TestHooksRecordDecisions(t *testing.T) {
	store := NewMemoryStore()
	hooks := Hooks(store, "run-7")
	ctx := context.Background()

	hooks.OnDelegated(ctx, "search", core.Text("ok"))
	hooks.OnBlocked(ctx, "analyze", "use search first")
	hooks.Transitioned(ctx, "confirm", "draft", "confirmed")
	hooks.Bound(ctx, "Invoice")

	got, _ := store.List(ctx, Filter{RunID: "run-7"})
	if len(got) != 4 {
		t.Fatalf("expected 4 events, got %d", len(got))
	}
	if got[2].Decision != DecisionTransition || got[2].Detail != "draft -> confirmed" {
		t.Fatalf("transition detail wrong: %+v", got[2])
	}
	if got[3].Decision != DecisionBound || got[3].Detail != "Invoice" {
		t.Fatalf("binding detail wrong: %+v", got[3])
	}
}

func TestHooksNilStoreIsInert(t *testing.T) {
	hooks := Hooks(nil, "run-7")
	if hooks.OnDelegated != nil || hooks.OnBlocked != nil {
		t.Fatalf("nil store should produce empty hooks")
	}
}
