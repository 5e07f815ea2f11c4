// Package playbook is the condition-gated orchestrator: a flat set of tools,
// some always available, some locked behind conditions over what the model
// has already done. The model discovers the order by reading gate guidance,
// not from a hard-coded plan.
package playbook

import (
	"context"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/thyra-ai/thyra/pkg/audit"
	"github.com/thyra-ai/thyra/pkg/core"
	terrors "github.com/thyra-ai/thyra/pkg/errors"
	"github.com/thyra-ai/thyra/pkg/gate"
	"github.com/thyra-ai/thyra/pkg/llm"
	"github.com/thyra-ai/thyra/pkg/loop"
	"github.com/thyra-ai/thyra/pkg/telemetry"
)

// DefaultMaxIterations is the loop ceiling when none is configured.
const DefaultMaxIterations = 20

type registration struct {
	tool core.Tool
	cond gate.Condition // nil means always unlocked
}

// Playbook is an immutable orchestrator value. Every With* method returns a
// modified copy, so a configured Playbook can be shared and specialized
// freely across goroutines.
type Playbook struct {
	regs          []registration
	provider      llm.Provider
	model         string
	systemPrompt  string
	promptCreator func(ctx context.Context) string
	maxIterations int
	temperature   float64
	board         core.Blackboard
	auditStore    audit.Store
	emitter       core.EventEmitter
	logger        *slog.Logger
}

// New creates an empty playbook.
func New() Playbook {
	return Playbook{}
}

func (p Playbook) clone() Playbook {
	p.regs = append([]registration(nil), p.regs...)
	return p
}

// WithTools adds always-unlocked tools.
func (p Playbook) WithTools(tools ...core.Tool) Playbook {
	p = p.clone()
	for _, tool := range tools {
		p.regs = append(p.regs, registration{tool: tool})
	}
	return p
}

// WithTool starts a gated registration that must be completed with one of
// the Unlocked* methods.
func (p Playbook) WithTool(tool core.Tool) Registration {
	return Registration{playbook: p.clone(), tool: tool}
}

// WithLLM sets the provider and model driving the loop.
func (p Playbook) WithLLM(provider llm.Provider, model string) Playbook {
	p = p.clone()
	p.provider = provider
	p.model = model
	return p
}

// WithSystemPrompt sets a fixed system prompt.
func (p Playbook) WithSystemPrompt(prompt string) Playbook {
	p = p.clone()
	p.systemPrompt = prompt
	return p
}

// WithSystemPromptCreator sets a prompt generator receiving the call context.
func (p Playbook) WithSystemPromptCreator(fn func(ctx context.Context) string) Playbook {
	p = p.clone()
	p.promptCreator = fn
	return p
}

// WithMaxIterations bounds the loop turns per call.
func (p Playbook) WithMaxIterations(n int) Playbook {
	p = p.clone()
	p.maxIterations = n
	return p
}

// WithTemperature sets the sampling temperature.
func (p Playbook) WithTemperature(t float64) Playbook {
	p = p.clone()
	p.temperature = t
	return p
}

// WithBlackboard sets the shared store consulted by conditions and
// predicates. A blackboard on the call context takes precedence.
func (p Playbook) WithBlackboard(board core.Blackboard) Playbook {
	p = p.clone()
	p.board = board
	return p
}

// WithAuditStore records every gate decision made during calls.
func (p Playbook) WithAuditStore(store audit.Store) Playbook {
	p = p.clone()
	p.auditStore = store
	return p
}

// WithEmitter streams gate and loop events.
func (p Playbook) WithEmitter(emitter core.EventEmitter) Playbook {
	p = p.clone()
	p.emitter = emitter
	return p
}

// WithLogger sets the structured logger.
func (p Playbook) WithLogger(logger *slog.Logger) Playbook {
	p = p.clone()
	p.logger = logger
	return p
}

// Registration is an in-flight gated tool registration. Completing it with
// any Unlocked* method yields the extended playbook.
type Registration struct {
	playbook Playbook
	tool     core.Tool
}

func (r Registration) completed(cond gate.Condition) Playbook {
	p := r.playbook
	p.regs = append(p.regs, registration{tool: r.tool, cond: cond})
	return p
}

// UnlockedBy gates the tool on one prerequisite tool having been used.
func (r Registration) UnlockedBy(toolName string) Playbook {
	return r.completed(gate.AfterTools(toolName))
}

// UnlockedByAll gates the tool on every named tool having been used.
func (r Registration) UnlockedByAll(toolNames ...string) Playbook {
	return r.completed(gate.AfterTools(toolNames...))
}

// UnlockedByAny gates the tool on at least one named tool having been used.
func (r Registration) UnlockedByAny(toolNames ...string) Playbook {
	conds := make([]gate.Condition, 0, len(toolNames))
	for _, name := range toolNames {
		conds = append(conds, gate.AfterTools(name))
	}
	return r.completed(gate.AnyOf(conds...))
}

// UnlockedByArtifact gates the tool on an artifact of the prototype's type
// having been produced.
func (r Registration) UnlockedByArtifact(prototype any) Playbook {
	return r.completed(gate.OnArtifactOf(prototype))
}

// UnlockedByArtifactMatching gates the tool on a matching artifact of the
// prototype's type. For a typed predicate use UnlockedWhen with
// gate.OnArtifactMatching.
func (r Registration) UnlockedByArtifactMatching(prototype any, pred func(v any, snap *gate.Snapshot) bool) Playbook {
	return r.completed(gate.OnArtifactOfMatching(prototype, pred))
}

// UnlockedWhen gates the tool on an arbitrary condition.
func (r Registration) UnlockedWhen(cond gate.Condition) Playbook {
	return r.completed(cond)
}

// Call runs the playbook against one input. Configuration problems come back
// as Error results, never panics; the final Result carries the loop's text
// plus whatever artifacts were recorded (0 -> text, 1 -> artifact, N ->
// artifacts).
func (p Playbook) Call(ctx context.Context, input string) core.Result {
	if len(p.regs) == 0 {
		return core.Error(terrors.New(terrors.CodeConfiguration, "no tools registered", nil))
	}
	if p.provider == nil {
		return core.Error(terrors.New(terrors.CodeConfiguration, "no llm provider configured", nil))
	}
	board := p.board
	if ctxBoard, ok := core.BlackboardFromContext(ctx); ok {
		board = ctxBoard
	}
	if board == nil {
		return core.Error(terrors.New(terrors.CodeConfiguration, "no blackboard available", nil))
	}

	ctx, runID := core.EnsureRunID(ctx)
	ctx = core.WithBlackboard(ctx, board)

	log := p.logger
	if log == nil {
		log = slog.Default()
	}
	emitter := p.emitter
	if emitter == nil {
		emitter = core.NoopEventEmitter{}
	}

	ctx, span := otel.Tracer("thyra/playbook").Start(ctx, "Playbook.Call", trace.WithAttributes(
		telemetry.RunAttributes(runID, 0, p.maxIterationsOrDefault())...,
	))
	defer span.End()

	tracker := gate.NewTracker(board)
	hooks := gate.MergeHooks(
		audit.Hooks(p.auditStore, runID),
		observerHooks(emitter, runID),
	)

	wrapped := make([]core.Tool, 0, len(p.regs))
	for _, reg := range p.regs {
		if reg.cond == nil {
			wrapped = append(wrapped, gate.Tracking(reg.tool, tracker, hooks))
		} else {
			wrapped = append(wrapped, gate.Conditional(reg.tool, reg.cond, tracker, hooks))
		}
	}

	log.Info("playbook.call.start",
		slog.String("run_id", runID),
		slog.Int("tools", len(wrapped)),
	)

	out, err := loop.Run(ctx, loop.Options{
		Provider:      p.provider,
		Model:         p.model,
		SystemPrompt:  func() string { return p.renderPrompt(ctx) },
		Tools:         func() []core.Tool { return wrapped },
		MaxIterations: p.maxIterationsOrDefault(),
		Temperature:   p.temperature,
		Logger:        log,
		Emitter:       emitter,
	}, input)
	if err != nil {
		log.Error("playbook.call.failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		return core.Error(err)
	}

	telemetry.GetGateMetrics().RecordLoopIterations(ctx, int64(tracker.Iterations()))
	log.Info("playbook.call.complete",
		slog.String("run_id", runID),
		slog.Int("tool_calls", tracker.Iterations()),
	)

	return core.Final(out, tracker.ArtifactList())
}

func (p Playbook) maxIterationsOrDefault() int {
	if p.maxIterations > 0 {
		return p.maxIterations
	}
	return DefaultMaxIterations
}

func (p Playbook) renderPrompt(ctx context.Context) string {
	if p.promptCreator != nil {
		return p.promptCreator(ctx)
	}
	if p.systemPrompt != "" {
		return p.systemPrompt
	}
	return defaultPrompt
}

var defaultPrompt = strings.TrimSpace(`
You are an assistant completing a task with the tools listed below.
Some tools require using other tools first. If a tool answers that it is not
yet available, read its guidance, use the prerequisite tools it names, and
try again. Answer in plain text when the task is done.
`)

// observerHooks translates gate decisions into events and metrics.
func observerHooks(emitter core.EventEmitter, runID string) gate.Hooks {
	return gate.Hooks{
		OnDelegated: func(ctx context.Context, tool string, res core.Result) {
			emitter.Emit(ctx, core.NewEvent(core.EventToolDelegated, runID, tool, nil))
		},
		OnBlocked: func(ctx context.Context, tool, reason string) {
			telemetry.GetGateMetrics().RecordRejection(ctx, tool)
			emitter.Emit(ctx, core.NewEvent(core.EventToolBlocked, runID, tool, map[string]any{"reason": reason}))
		},
		OnTransition: func(ctx context.Context, tool, from, to string) {
			telemetry.GetGateMetrics().RecordTransition(ctx, from, to)
			emitter.Emit(ctx, core.NewEvent(core.EventStateTransition, runID, tool, map[string]any{"from": from, "to": to}))
		},
		OnBound: func(ctx context.Context, typeName string) {
			telemetry.GetGateMetrics().RecordBinding(ctx, typeName)
			emitter.Emit(ctx, core.NewEvent(core.EventDomainBound, runID, "", map[string]any{"type": typeName}))
		},
	}
}
