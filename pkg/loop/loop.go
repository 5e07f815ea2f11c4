// Package loop implements the multi-turn LLM tool-calling loop shared by all
// orchestrators. The tool set and system prompt are regenerated before every
// model turn so tools whose gates opened mid-run appear, and tool calls within
// a turn run sequentially so execution state advances in call order.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/thyra-ai/thyra/pkg/core"
	terrors "github.com/thyra-ai/thyra/pkg/errors"
	"github.com/thyra-ai/thyra/pkg/llm"
	"github.com/thyra-ai/thyra/pkg/telemetry"
)

const (
	// DefaultMaxIterations bounds the number of model turns per call.
	DefaultMaxIterations = 10
	// consecutive turns where every tool call failed before aborting
	errorLimit = 3
)

// Options configures a single loop run.
type Options struct {
	Provider llm.Provider
	Model    string

	// SystemPrompt is re-evaluated before every model turn. May be nil.
	SystemPrompt func() string

	// Tools is re-evaluated before every model turn, so the advertised set
	// reflects gates that opened on earlier turns. May be nil.
	Tools func() []core.Tool

	MaxIterations int
	Temperature   float64

	Logger  *slog.Logger
	Emitter core.EventEmitter
}

// Run drives the tool loop until the model answers in plain text or the
// iteration ceiling is reached. At the ceiling a final summary turn without
// tools forces a text answer from the accumulated conversation.
func Run(ctx context.Context, opts Options, input string) (string, error) {
	if opts.Provider == nil {
		return "", terrors.New(terrors.CodeConfiguration, "llm provider is required", nil)
	}
	maxIterations := opts.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	emitter := opts.Emitter
	if emitter == nil {
		emitter = core.NoopEventEmitter{}
	}

	ctx, runID := core.EnsureRunID(ctx)

	tracer := otel.Tracer("thyra/loop")
	ctx, span := tracer.Start(ctx, "Loop.Run", trace.WithAttributes(
		telemetry.RunAttributes(runID, 0, maxIterations)...,
	))
	defer span.End()

	emitter.Emit(ctx, core.NewEvent(core.EventCallStarted, runID, "", nil))

	messages := []llm.Message{
		{Role: llm.RoleUser, Content: input},
	}

	consecutiveErrors := 0
	var finalContent string
	needsSummary := false

	for iteration := 0; iteration < maxIterations; iteration++ {
		tools := currentTools(opts.Tools)
		defs, index := advertise(tools)

		resp, err := chat(ctx, opts, log, messages, defs)
		if err != nil {
			return "", terrors.New(terrors.CodeLLMError,
				fmt.Sprintf("llm chat failed on iteration %d", iteration+1), err)
		}

		assistant := llm.Message{Role: llm.RoleAssistant, Content: resp.Content}
		if len(resp.ToolCalls) > 0 {
			assistant.ToolCalls = resp.ToolCalls
		}
		messages = append(messages, assistant)

		if len(resp.ToolCalls) == 0 {
			finalContent = resp.Content
			log.Debug("loop.complete",
				slog.String("run_id", runID),
				slog.Int("iterations", iteration+1),
			)
			break
		}

		// Sequential fan-in: each call sees the state left by the one
		// before it, which is what makes within-turn gating deterministic.
		turnAllFailed := true
		for _, call := range resp.ToolCalls {
			feedback, failed := executeCall(ctx, log, index, call, runID)
			if !failed {
				turnAllFailed = false
			}
			messages = append(messages, feedback)
		}

		if turnAllFailed {
			consecutiveErrors++
			if consecutiveErrors >= errorLimit {
				return "", terrors.New(terrors.CodeToolFailure,
					fmt.Sprintf("aborting after %d consecutive failed turns", consecutiveErrors), nil)
			}
		} else {
			consecutiveErrors = 0
		}

		if iteration == maxIterations-1 {
			needsSummary = true
		}
	}

	if needsSummary || finalContent == "" {
		log.Debug("loop.summary_turn",
			slog.String("run_id", runID),
			slog.Bool("hit_ceiling", needsSummary),
		)
		// No tools on the summary turn: the model must answer in text.
		resp, err := chat(ctx, opts, log, messages, nil)
		if err != nil {
			return "", terrors.New(terrors.CodeLLMError, "summary turn failed", err)
		}
		finalContent = resp.Content
	}

	emitter.Emit(ctx, core.NewEvent(core.EventCallCompleted, runID, "", nil))
	return finalContent, nil
}

func currentTools(fn func() []core.Tool) []core.Tool {
	if fn == nil {
		return nil
	}
	return fn()
}

// advertise converts the tool set into wire definitions plus a name index.
func advertise(tools []core.Tool) ([]llm.Tool, map[string]core.Tool) {
	if len(tools) == 0 {
		return nil, nil
	}
	defs := make([]llm.Tool, 0, len(tools))
	index := make(map[string]core.Tool, len(tools))
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

func chat(ctx context.Context, opts Options, log *slog.Logger, history []llm.Message, defs []llm.Tool) (*llm.ChatResponse, error) {
	messages := make([]llm.Message, 0, len(history)+1)
	if opts.SystemPrompt != nil {
		if prompt := opts.SystemPrompt(); prompt != "" {
			messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: prompt})
		}
	}
	messages = append(messages, history...)

	start := time.Now()
	llmCtx, llmSpan := otel.Tracer("thyra/loop").Start(ctx, "Loop.LLM.Chat", trace.WithAttributes(
		telemetry.LLMAttributes(opts.Model, "", len(messages), 0)...,
	))
	resp, err := opts.Provider.Chat(llmCtx, llm.ChatRequest{
		Model:       opts.Model,
		Messages:    messages,
		Tools:       defs,
		Temperature: opts.Temperature,
	})
	durationMs := time.Since(start).Seconds() * 1000
	if resp != nil {
		llmSpan.SetAttributes(telemetry.LLMAttributes(opts.Model, "", len(messages), len(resp.ToolCalls))...)
		llmSpan.SetAttributes(telemetry.LLMUsageAttributes(resp.Usage.PromptTokens, resp.Usage.CompletionTokens, durationMs)...)
	}
	llmSpan.End()
	telemetry.GetGateMetrics().RecordLLMLatency(ctx, opts.Model, durationMs)
	if err != nil {
		log.Error("loop.llm.error",
			slog.String("model", opts.Model),
			slog.String("error", err.Error()),
		)
		return nil, err
	}
	return resp, nil
}

// executeCall runs one tool call and renders the tool-role feedback message.
// failed reports whether the call produced an error-kind outcome.
func executeCall(ctx context.Context, log *slog.Logger, index map[string]core.Tool, call llm.ToolCall, runID string) (llm.Message, bool) {
	callID := call.ID
	if callID == "" {
		callID = uuid.NewString()
	}
	name := call.Function.Name

	tool, ok := index[name]
	if !ok {
		log.Warn("loop.tool.unknown",
			slog.String("run_id", runID),
			slog.String("tool", name),
		)
		return toolMessage(callID, fmt.Sprintf("Error: unknown tool %q", name)), true
	}

	args, err := parseArguments(call.Function.Arguments)
	if err != nil {
		return toolMessage(callID, fmt.Sprintf("Error: invalid arguments for %q: %v", name, err)), true
	}

	start := time.Now()
	toolCtx, toolSpan := otel.Tracer("thyra/loop").Start(ctx, "Loop.Tool.Call")
	res := tool.Call(toolCtx, args)
	durationMs := time.Since(start).Seconds() * 1000
	toolSpan.SetAttributes(telemetry.ToolCallAttributes(name, callID, durationMs, !res.IsError())...)
	toolSpan.SetAttributes(telemetry.ToolCallArgsResult(call.Function.Arguments, res.Payload(), 500)...)
	toolSpan.End()

	telemetry.GetGateMetrics().RecordToolCall(ctx, name, !res.IsError())
	telemetry.GetGateMetrics().RecordToolLatency(ctx, name, durationMs)

	if res.IsError() {
		log.Warn("loop.tool.error",
			slog.String("run_id", runID),
			slog.String("tool", name),
			slog.String("tool_call_id", callID),
			slog.String("error", res.Payload()),
		)
	} else {
		log.Debug("loop.tool.complete",
			slog.String("run_id", runID),
			slog.String("tool", name),
			slog.String("tool_call_id", callID),
		)
	}

	return toolMessage(callID, res.Payload()), res.IsError()
}

func parseArguments(raw string) (map[string]any, error) {
	if raw == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}

func toolMessage(callID, content string) llm.Message {
	return llm.Message{
		Role:       llm.RoleTool,
		ToolCallID: callID,
		Content:    content,
	}
}
