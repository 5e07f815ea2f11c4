package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/thyra-ai/thyra/pkg/core"
	"github.com/thyra-ai/thyra/pkg/gate"
)

// Hooks builds gate hooks that persist every decision into the store.
// Store failures are logged, never propagated: auditing must not change the
// outcome of a run.
func Hooks(store Store, runID string) gate.Hooks {
	if store == nil {
		return gate.Hooks{}
	}
	record := func(ctx context.Context, event Event) {
		event.RunID = runID
		event.Timestamp = normalizeTime(event.Timestamp)
		if err := store.Record(ctx, event); err != nil {
			slog.Warn("audit.record.failed",
				slog.String("run_id", runID),
				slog.String("decision", string(event.Decision)),
				slog.String("error", err.Error()),
			)
		}
	}
	return gate.Hooks{
		OnDelegated: func(ctx context.Context, tool string, res core.Result) {
			record(ctx, Event{Tool: tool, Decision: DecisionDelegated, Detail: string(res.Kind)})
		},
		OnBlocked: func(ctx context.Context, tool, reason string) {
			record(ctx, Event{Tool: tool, Decision: DecisionBlocked, Detail: reason})
		},
		OnTransition: func(ctx context.Context, tool, from, to string) {
			record(ctx, Event{Tool: tool, Decision: DecisionTransition, Detail: fmt.Sprintf("%s -> %s", from, to)})
		},
		OnBound: func(ctx context.Context, typeName string) {
			record(ctx, Event{Decision: DecisionBound, Detail: typeName})
		},
	}
}
