package core

import (
	"context"
	"crypto/rand"
	"encoding/hex"
)

type runIDKey struct{}
type blackboardKey struct{}

// WithRunID attaches a run id to the context.
func WithRunID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunID returns the run id if present.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok
}

// EnsureRunID ensures a run id exists in the context.
func EnsureRunID(ctx context.Context) (context.Context, string) {
	if id, ok := RunID(ctx); ok {
		return ctx, id
	}
	id := newRunID()
	return WithRunID(ctx, id), id
}

// WithBlackboard attaches a blackboard to the context. The binding is scoped
// to the derived context: nested calls see it, siblings and later calls on
// the same worker do not.
func WithBlackboard(ctx context.Context, board Blackboard) context.Context {
	return context.WithValue(ctx, blackboardKey{}, board)
}

// BlackboardFromContext returns the blackboard if present.
func BlackboardFromContext(ctx context.Context) (Blackboard, bool) {
	board, ok := ctx.Value(blackboardKey{}).(Blackboard)
	return board, ok
}

func newRunID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "run-unknown"
	}
	return "run-" + hex.EncodeToString(buf)
}
