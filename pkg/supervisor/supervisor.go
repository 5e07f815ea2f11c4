// Copyright 2026 © The Thyra Authors
// SPDX-License-Identifier: Apache-2.0

package supervisor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/thyra-ai/thyra/pkg/core"
	terrors "github.com/thyra-ai/thyra/pkg/errors"
	"github.com/thyra-ai/thyra/pkg/llm"
	"github.com/thyra-ai/thyra/pkg/telemetry"
)

// DefaultSafetyLimit bounds supervisor iterations when none is configured.
const DefaultSafetyLimit = 10

// Supervisor drives tool capabilities toward producing an instance of T.
// It is an immutable value; every With* method returns a modified copy.
type Supervisor[T any] struct {
	goal         core.Tool
	tools        []core.Tool
	provider     llm.Provider
	model        string
	systemPrompt string
	safetyLimit  int
	temperature  float64
	board        core.Blackboard
	emitter      core.EventEmitter
	logger       *slog.Logger
}

// New creates a supervisor whose goal capability produces the output type T.
func New[T any](goal core.Tool) Supervisor[T] {
	return Supervisor[T]{goal: goal}
}

func (s Supervisor[T]) clone() Supervisor[T] {
	s.tools = append([]core.Tool(nil), s.tools...)
	return s
}

// WithTools adds the tool capabilities available alongside the goal.
func (s Supervisor[T]) WithTools(tools ...core.Tool) Supervisor[T] {
	s = s.clone()
	s.tools = append(s.tools, tools...)
	return s
}

// WithLLM sets the provider and model driving the loop.
func (s Supervisor[T]) WithLLM(provider llm.Provider, model string) Supervisor[T] {
	s = s.clone()
	s.provider = provider
	s.model = model
	return s
}

// WithSystemPrompt overrides the default prompt.
func (s Supervisor[T]) WithSystemPrompt(prompt string) Supervisor[T] {
	s = s.clone()
	s.systemPrompt = prompt
	return s
}

// WithSafetyLimit bounds the iterations per run.
func (s Supervisor[T]) WithSafetyLimit(n int) Supervisor[T] {
	s = s.clone()
	s.safetyLimit = n
	return s
}

// WithTemperature sets the sampling temperature.
func (s Supervisor[T]) WithTemperature(t float64) Supervisor[T] {
	s = s.clone()
	s.temperature = t
	return s
}

// WithBlackboard sets the shared store checked for the goal output and for
// curryable inputs. A blackboard on the run context takes precedence.
func (s Supervisor[T]) WithBlackboard(board core.Blackboard) Supervisor[T] {
	s = s.clone()
	s.board = board
	return s
}

// WithEmitter streams loop events.
func (s Supervisor[T]) WithEmitter(emitter core.EventEmitter) Supervisor[T] {
	s = s.clone()
	s.emitter = emitter
	return s
}

// WithLogger sets the structured logger.
func (s Supervisor[T]) WithLogger(logger *slog.Logger) Supervisor[T] {
	s = s.clone()
	s.logger = logger
	return s
}

// Run iterates until an instance of T appears on the blackboard or the
// safety ceiling is hit. At the ceiling it makes one direct goal attempt if
// the store can satisfy every goal input; an unmet goal is logged as a
// warning and whatever partial output exists comes back, never an error.
func (s Supervisor[T]) Run(ctx context.Context, task string) core.Result {
	if s.goal == nil {
		return core.Error(terrors.New(terrors.CodeConfiguration, "no goal capability configured", nil))
	}
	if s.provider == nil {
		return core.Error(terrors.New(terrors.CodeConfiguration, "no llm provider configured", nil))
	}
	board := s.board
	if ctxBoard, ok := core.BlackboardFromContext(ctx); ok {
		board = ctxBoard
	}
	if board == nil {
		return core.Error(terrors.New(terrors.CodeConfiguration, "no blackboard available", nil))
	}

	ctx, runID := core.EnsureRunID(ctx)
	ctx = core.WithBlackboard(ctx, board)

	log := s.logger
	if log == nil {
		log = slog.Default()
	}
	emitter := s.emitter
	if emitter == nil {
		emitter = core.NoopEventEmitter{}
	}
	limit := s.safetyLimit
	if limit <= 0 {
		limit = DefaultSafetyLimit
	}

	ctx, span := otel.Tracer("thyra/supervisor").Start(ctx, "Supervisor.Run", trace.WithAttributes(
		telemetry.RunAttributes(runID, 0, limit)...,
	))
	defer span.End()

	emitter.Emit(ctx, core.NewEvent(core.EventCallStarted, runID, "", nil))

	messages := []llm.Message{{Role: llm.RoleUser, Content: task}}
	capabilities := append(append([]core.Tool(nil), s.tools...), s.goal)
	var lastText string

	for iteration := 0; iteration < limit; iteration++ {
		if v, ok := goalOutput[T](board); ok {
			log.Info("supervisor.goal.achieved",
				slog.String("run_id", runID),
				slog.Int("iterations", iteration),
			)
			emitter.Emit(ctx, core.NewEvent(core.EventCallCompleted, runID, "", nil))
			return core.Final(lastText, []any{v})
		}

		// Re-curry every turn: inputs satisfied by earlier artifacts vanish
		// from the schemas the model sees.
		curried := make([]*curriedTool, 0, len(capabilities))
		for _, tool := range capabilities {
			curried = append(curried, curry(tool, satisfiableInputs(tool.Definition(), board)))
		}
		defs, index := advertise(curried)

		resp, err := s.provider.Chat(ctx, llm.ChatRequest{
			Model:       s.model,
			Messages:    s.withPrompt(messages),
			Tools:       defs,
			Temperature: s.temperature,
		})
		if err != nil {
			return core.Error(terrors.New(terrors.CodeLLMError,
				fmt.Sprintf("llm chat failed on iteration %d", iteration+1), err))
		}

		assistant := llm.Message{Role: llm.RoleAssistant, Content: resp.Content}
		if len(resp.ToolCalls) > 0 {
			assistant.ToolCalls = resp.ToolCalls
		}
		messages = append(messages, assistant)
		if resp.Content != "" {
			lastText = resp.Content
		}

		for _, call := range resp.ToolCalls {
			messages = append(messages, s.executeCall(ctx, log, board, index, call, runID))
		}
	}

	if v, ok := goalOutput[T](board); ok {
		emitter.Emit(ctx, core.NewEvent(core.EventCallCompleted, runID, "", nil))
		return core.Final(lastText, []any{v})
	}

	// Last resort: run the goal directly if the store can satisfy it fully.
	if def := s.goal.Definition(); allInputsSatisfiable(def, board) {
		log.Info("supervisor.goal.direct_attempt",
			slog.String("run_id", runID),
			slog.String("tool", def.Name),
		)
		_, inject := Curry(def, satisfiableInputs(def, board))
		res := s.goal.Call(ctx, inject(map[string]any{}))
		if !res.IsError() {
			recordArtifacts(board, res)
		}
		if v, ok := goalOutput[T](board); ok {
			emitter.Emit(ctx, core.NewEvent(core.EventCallCompleted, runID, "", nil))
			return core.Final(lastText, []any{v})
		}
	}

	log.Warn("supervisor.goal.unmet",
		slog.String("run_id", runID),
		slog.Int("iterations", limit),
	)
	emitter.Emit(ctx, core.NewEvent(core.EventCallCompleted, runID, "", nil))
	return core.Final(lastText, nil)
}

func (s Supervisor[T]) withPrompt(history []llm.Message) []llm.Message {
	prompt := s.systemPrompt
	if prompt == "" {
		prompt = defaultPrompt
	}
	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: prompt})
	return append(messages, history...)
}

func (s Supervisor[T]) executeCall(ctx context.Context, log *slog.Logger, board core.Blackboard, index map[string]*curriedTool, call llm.ToolCall, runID string) llm.Message {
	callID := call.ID
	if callID == "" {
		callID = uuid.NewString()
	}
	name := call.Function.Name

	tool, ok := index[name]
	if !ok {
		log.Warn("supervisor.tool.unknown",
			slog.String("run_id", runID),
			slog.String("tool", name),
		)
		return toolMessage(callID, fmt.Sprintf("Error: unknown tool %q", name))
	}

	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return toolMessage(callID, fmt.Sprintf("Error: invalid arguments for %q: %v", name, err))
		}
	}

	res := tool.Call(ctx, args)
	telemetry.GetGateMetrics().RecordToolCall(ctx, name, !res.IsError())
	if !res.IsError() {
		recordArtifacts(board, res)
	}
	return toolMessage(callID, res.Payload())
}

// goalOutput scans the blackboard for an instance of T, newest first so a
// refined result shadows an earlier one.
func goalOutput[T any](board core.Blackboard) (T, bool) {
	objects := board.Objects()
	for i := len(objects) - 1; i >= 0; i-- {
		if v, ok := objects[i].(T); ok {
			return v, true
		}
		if p, ok := objects[i].(*T); ok && p != nil {
			return *p, true
		}
	}
	var zero T
	return zero, false
}

// satisfiableInputs maps each schema property the blackboard can already
// answer to its stored value.
func satisfiableInputs(def core.Definition, board core.Blackboard) map[string]any {
	props, _ := def.InputSchema["properties"].(map[string]any)
	if len(props) == 0 {
		return nil
	}
	available := make(map[string]any)
	for name := range props {
		if v, ok := board.Get(name); ok {
			available[name] = v
		}
	}
	return available
}

func allInputsSatisfiable(def core.Definition, board core.Blackboard) bool {
	props, _ := def.InputSchema["properties"].(map[string]any)
	for name := range props {
		if _, ok := board.Get(name); !ok {
			return false
		}
	}
	return true
}

func recordArtifacts(board core.Blackboard, res core.Result) {
	for _, artifact := range res.Artifacts {
		board.AddObject(artifact)
	}
}

func advertise(tools []*curriedTool) ([]llm.Tool, map[string]*curriedTool) {
	defs := make([]llm.Tool, 0, len(tools))
	index := make(map[string]*curriedTool, len(tools))
	for _, tool := range tools {
		def := tool.Definition()
		defs = append(defs, llm.Tool{
			Type: llm.ToolTypeFunction,
			Function: llm.FunctionDef{
				Name:        def.Name,
				Description: def.Description,
				Parameters:  def.InputSchema,
			},
		})
		index[def.Name] = tool
	}
	return defs, index
}

func toolMessage(callID, content string) llm.Message {
	return llm.Message{Role: llm.RoleTool, ToolCallID: callID, Content: content}
}

var defaultPrompt = strings.TrimSpace(`
You are an assistant working toward a concrete output. Use the tools listed
below to gather what is missing; inputs that are already known have been
filled in for you and are not listed. Answer in plain text when you believe
the goal has been produced.
`)
