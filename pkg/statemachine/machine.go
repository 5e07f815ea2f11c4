// Package statemachine is the enum-gated orchestrator: tools are assigned to
// states, successful calls may transition the machine, and only the current
// state's tools (plus globals and bound domain tools) are permitted. The
// model walks the machine by using transition tools, not by being told the
// path.
package statemachine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/thyra-ai/thyra/pkg/audit"
	"github.com/thyra-ai/thyra/pkg/core"
	"github.com/thyra-ai/thyra/pkg/domaintools"
	terrors "github.com/thyra-ai/thyra/pkg/errors"
	"github.com/thyra-ai/thyra/pkg/gate"
	"github.com/thyra-ai/thyra/pkg/llm"
	"github.com/thyra-ai/thyra/pkg/loop"
	"github.com/thyra-ai/thyra/pkg/telemetry"
)

// DefaultMaxIterations is the loop ceiling when none is configured.
const DefaultMaxIterations = 20

type stateReg[S comparable] struct {
	state   S
	tool    core.Tool
	hasNext bool
	next    S
}

// Machine is an immutable state-machine orchestrator value over the state
// type S. Every builder method returns a modified copy.
type Machine[S comparable] struct {
	stateRegs   []stateReg[S]
	globalTools []core.Tool
	hasInitial  bool
	initial     S

	sources  []domaintools.Source
	registry *domaintools.Registry
	auto     bool

	provider      llm.Provider
	model         string
	systemPrompt  string
	promptCreator func(ctx context.Context, current S) string
	maxIterations int
	temperature   float64
	board         core.Blackboard
	auditStore    audit.Store
	emitter       core.EventEmitter
	logger        *slog.Logger
}

// New creates an empty machine over the state type S.
func New[S comparable]() Machine[S] {
	return Machine[S]{}
}

func (m Machine[S]) clone() Machine[S] {
	m.stateRegs = append([]stateReg[S](nil), m.stateRegs...)
	m.globalTools = append([]core.Tool(nil), m.globalTools...)
	m.sources = append([]domaintools.Source(nil), m.sources...)
	return m
}

// InState starts registering tools available only in the given state.
func (m Machine[S]) InState(state S) StateBuilder[S] {
	return StateBuilder[S]{machine: m.clone(), state: state}
}

// WithGlobalTool registers tools available in every state.
func (m Machine[S]) WithGlobalTool(tools ...core.Tool) Machine[S] {
	m = m.clone()
	m.globalTools = append(m.globalTools, tools...)
	return m
}

// WithInitialState sets the state the machine starts in.
func (m Machine[S]) WithInitialState(state S) Machine[S] {
	m = m.clone()
	m.initial = state
	m.hasInitial = true
	return m
}

// StartingIn is the runtime form of WithInitialState, for overriding the
// start state right before a call without changing the shared machine value.
func (m Machine[S]) StartingIn(state S) Machine[S] {
	return m.WithInitialState(state)
}

// WithDomainTools registers a domain source whose type's methods appear as
// placeholder tools in every state and come alive once an instance binds.
func (m Machine[S]) WithDomainTools(source domaintools.Source) Machine[S] {
	m = m.clone()
	m.sources = append(m.sources, source)
	return m
}

// WithMethodRegistry sets the method table domain sources resolve against.
func (m Machine[S]) WithMethodRegistry(registry *domaintools.Registry) Machine[S] {
	m = m.clone()
	m.registry = registry
	return m
}

// WithAutoDiscovery binds any produced instance the registry knows, even
// without a declared source; the newest binding displaces the previous one.
func (m Machine[S]) WithAutoDiscovery() Machine[S] {
	m = m.clone()
	m.auto = true
	return m
}

// WithLLM sets the provider and model driving the loop.
func (m Machine[S]) WithLLM(provider llm.Provider, model string) Machine[S] {
	m = m.clone()
	m.provider = provider
	m.model = model
	return m
}

// WithSystemPrompt sets a fixed system prompt, replacing the state-aware
// default.
func (m Machine[S]) WithSystemPrompt(prompt string) Machine[S] {
	m = m.clone()
	m.systemPrompt = prompt
	return m
}

// WithSystemPromptCreator sets a prompt generator receiving the call context
// and the machine's current state. It is re-invoked every model turn.
func (m Machine[S]) WithSystemPromptCreator(fn func(ctx context.Context, current S) string) Machine[S] {
	m = m.clone()
	m.promptCreator = fn
	return m
}

// WithMaxIterations bounds the loop turns per call.
func (m Machine[S]) WithMaxIterations(n int) Machine[S] {
	m = m.clone()
	m.maxIterations = n
	return m
}

// WithTemperature sets the sampling temperature.
func (m Machine[S]) WithTemperature(t float64) Machine[S] {
	m = m.clone()
	m.temperature = t
	return m
}

// WithBlackboard sets the shared store. A blackboard on the call context
// takes precedence.
func (m Machine[S]) WithBlackboard(board core.Blackboard) Machine[S] {
	m = m.clone()
	m.board = board
	return m
}

// WithAuditStore records every gate decision made during calls.
func (m Machine[S]) WithAuditStore(store audit.Store) Machine[S] {
	m = m.clone()
	m.auditStore = store
	return m
}

// WithEmitter streams gate and loop events.
func (m Machine[S]) WithEmitter(emitter core.EventEmitter) Machine[S] {
	m = m.clone()
	m.emitter = emitter
	return m
}

// WithLogger sets the structured logger.
func (m Machine[S]) WithLogger(logger *slog.Logger) Machine[S] {
	m = m.clone()
	m.logger = logger
	return m
}

// StateBuilder registers tools for one state.
type StateBuilder[S comparable] struct {
	machine Machine[S]
	state   S
}

// WithTool starts a tool registration in this state; complete it with
// Build (no transition) or TransitionsTo.
func (b StateBuilder[S]) WithTool(tool core.Tool) StateRegistration[S] {
	return StateRegistration[S]{builder: b, tool: tool}
}

// StateRegistration is an in-flight per-state tool registration.
type StateRegistration[S comparable] struct {
	builder StateBuilder[S]
	tool    core.Tool
}

// Build completes the registration without a transition.
func (r StateRegistration[S]) Build() Machine[S] {
	m := r.builder.machine
	m.stateRegs = append(m.stateRegs, stateReg[S]{state: r.builder.state, tool: r.tool})
	return m
}

// TransitionsTo completes the registration; a successful call moves the
// machine to the next state before returning.
func (r StateRegistration[S]) TransitionsTo(next S) Machine[S] {
	m := r.builder.machine
	m.stateRegs = append(m.stateRegs, stateReg[S]{state: r.builder.state, tool: r.tool, hasNext: true, next: next})
	return m
}

// Call runs the machine against one input. Configuration problems come back
// as Error results; the final Result carries the loop's text plus recorded
// artifacts. State transitions made by one tool call are visible in the tool
// list and system prompt of the model's next turn.
func (m Machine[S]) Call(ctx context.Context, input string) core.Result {
	if !m.hasInitial {
		return core.Error(terrors.New(terrors.CodeConfiguration, "no initial state configured", nil))
	}
	if m.provider == nil {
		return core.Error(terrors.New(terrors.CodeConfiguration, "no llm provider configured", nil))
	}
	if len(m.stateRegs) == 0 && len(m.globalTools) == 0 && len(m.sources) == 0 {
		return core.Error(terrors.New(terrors.CodeConfiguration, "no tools registered for any state and no domain sources", nil))
	}
	board := m.board
	if ctxBoard, ok := core.BlackboardFromContext(ctx); ok {
		board = ctxBoard
	}
	if board == nil {
		return core.Error(terrors.New(terrors.CodeConfiguration, "no blackboard available", nil))
	}

	ctx, runID := core.EnsureRunID(ctx)
	ctx = core.WithBlackboard(ctx, board)

	log := m.logger
	if log == nil {
		log = slog.Default()
	}
	emitter := m.emitter
	if emitter == nil {
		emitter = core.NoopEventEmitter{}
	}

	ctx, span := otel.Tracer("thyra/statemachine").Start(ctx, "Machine.Call", trace.WithAttributes(
		telemetry.RunAttributes(runID, 0, m.maxIterationsOrDefault())...,
	))
	defer span.End()

	tracker := gate.NewTracker(board)
	current := &currentState[S]{value: m.initial}
	hooks := gate.MergeHooks(
		audit.Hooks(m.auditStore, runID),
		observerHooks(emitter, runID),
	)

	registry := m.registry
	if registry == nil {
		registry = domaintools.NewRegistry()
	}
	domOpts := []domaintools.TrackerOption{
		domaintools.WithSources(m.sources...),
		domaintools.WithHooks(hooks),
	}
	if m.auto {
		domOpts = append(domOpts, domaintools.WithAutoDiscovery())
	}
	domTracker := domaintools.NewTracker(registry, domOpts...)

	static := make([]core.Tool, 0, len(m.stateRegs)+len(m.globalTools))
	for _, reg := range m.stateRegs {
		static = append(static, &stateBoundTool[S]{
			delegate:   reg.tool,
			assigned:   reg.state,
			hasNext:    reg.hasNext,
			next:       reg.next,
			current:    current,
			tracker:    tracker,
			domTracker: domTracker,
			hooks:      hooks,
		})
	}
	for _, tool := range m.globalTools {
		static = append(static, &globalStateTool[S]{
			delegate:   tool,
			tracker:    tracker,
			domTracker: domTracker,
			hooks:      hooks,
		})
	}
	for _, source := range m.sources {
		static = append(static, domaintools.PlaceholderTools(source, registry, domTracker)...)
	}

	log.Info("machine.call.start",
		slog.String("run_id", runID),
		slog.String("state", fmt.Sprint(m.initial)),
		slog.Int("tools", len(static)),
	)

	out, err := loop.Run(ctx, loop.Options{
		Provider: m.provider,
		Model:    m.model,
		SystemPrompt: func() string {
			return m.renderPrompt(ctx, current.get())
		},
		Tools: func() []core.Tool {
			// Auto-discovered bindings add tools mid-run; rebuild per turn.
			tools := append([]core.Tool(nil), static...)
			for _, bound := range domTracker.ActiveTools() {
				tools = append(tools, gate.Tracking(bound, tracker, hooks))
			}
			return tools
		},
		MaxIterations: m.maxIterationsOrDefault(),
		Temperature:   m.temperature,
		Logger:        log,
		Emitter:       emitter,
	}, input)
	if err != nil {
		log.Error("machine.call.failed",
			slog.String("run_id", runID),
			slog.String("error", err.Error()),
		)
		return core.Error(err)
	}

	telemetry.GetGateMetrics().RecordLoopIterations(ctx, int64(tracker.Iterations()))
	log.Info("machine.call.complete",
		slog.String("run_id", runID),
		slog.String("state", fmt.Sprint(current.get())),
		slog.Int("tool_calls", tracker.Iterations()),
	)

	return core.Final(out, tracker.ArtifactList())
}

func (m Machine[S]) maxIterationsOrDefault() int {
	if m.maxIterations > 0 {
		return m.maxIterations
	}
	return DefaultMaxIterations
}

func (m Machine[S]) renderPrompt(ctx context.Context, current S) string {
	if m.promptCreator != nil {
		return m.promptCreator(ctx, current)
	}
	if m.systemPrompt != "" {
		return m.systemPrompt
	}
	return fmt.Sprintf(strings.TrimSpace(`
You are an assistant completing a task with the tools listed below.
The workflow is currently in state %q. Some tools only work in specific
states, and some tools move the workflow to a new state when they succeed.
If a tool answers that it is not available in the current state, use the
tools of the current state first to advance. Answer in plain text when the
task is done.
`), fmt.Sprint(current))
}

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
