// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// GateMetrics tracks tool calls, gate rejections, state transitions and loop
// behavior for production monitoring.
type GateMetrics struct {
	toolCallCounter    metric.Int64Counter
	rejectionCounter   metric.Int64Counter
	transitionCounter  metric.Int64Counter
	bindingCounter     metric.Int64Counter
	loopIterationHist  metric.Int64Histogram
	llmLatencyMs       metric.Float64Histogram
	toolLatencyMs      metric.Float64Histogram
}

// NewGateMetrics creates a metrics tracker on the global OTEL meter.
func NewGateMetrics() (*GateMetrics, error) {
	meter := otel.Meter("thyra/gate")

	toolCallCounter, err := meter.Int64Counter(
		"thyra.tools.calls",
		metric.WithDescription("Total tool calls by name and outcome"),
	)
	if err != nil {
		return nil, err
	}

	rejectionCounter, err := meter.Int64Counter(
		"thyra.gate.rejections",
		metric.WithDescription("Tool calls rejected by an unsatisfied gate"),
	)
	if err != nil {
		return nil, err
	}

	transitionCounter, err := meter.Int64Counter(
		"thyra.machine.transitions",
		metric.WithDescription("State machine transitions by source state"),
	)
	if err != nil {
		return nil, err
	}

	bindingCounter, err := meter.Int64Counter(
		"thyra.binding.bound",
		metric.WithDescription("Domain tool bindings by artifact type"),
	)
	if err != nil {
		return nil, err
	}

	loopIterationHist, err := meter.Int64Histogram(
		"thyra.loop.iterations",
		metric.WithDescription("Iterations consumed per orchestration run"),
	)
	if err != nil {
		return nil, err
	}

	llmLatencyMs, err := meter.Float64Histogram(
		"thyra.llm.latency_ms",
		metric.WithDescription("LLM chat latency in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	toolLatencyMs, err := meter.Float64Histogram(
		"thyra.tool.latency_ms",
		metric.WithDescription("Tool call latency in milliseconds"),
	)
	if err != nil {
		return nil, err
	}

	return &GateMetrics{
		toolCallCounter:   toolCallCounter,
		rejectionCounter:  rejectionCounter,
		transitionCounter: transitionCounter,
		bindingCounter:    bindingCounter,
		loopIterationHist: loopIterationHist,
		llmLatencyMs:      llmLatencyMs,
		toolLatencyMs:     toolLatencyMs,
	}, nil
}

// RecordToolCall increments the tool call counter.
func (gm *GateMetrics) RecordToolCall(ctx context.Context, tool string, success bool) {
	if gm == nil {
		return
	}
	gm.toolCallCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", tool),
		attribute.Bool("tool.success", success),
	))
}

// RecordRejection increments the gate rejection counter.
func (gm *GateMetrics) RecordRejection(ctx context.Context, tool string) {
	if gm == nil {
		return
	}
	gm.rejectionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool.name", tool),
	))
}

// RecordTransition increments the state transition counter.
func (gm *GateMetrics) RecordTransition(ctx context.Context, from, to string) {
	if gm == nil {
		return
	}
	gm.transitionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("state.from", from),
		attribute.String("state.to", to),
	))
}

// RecordBinding increments the domain binding counter.
func (gm *GateMetrics) RecordBinding(ctx context.Context, artifactType string) {
	if gm == nil {
		return
	}
	gm.bindingCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("artifact.type", artifactType),
	))
}

// RecordLoopIterations records the iteration count of a finished run.
func (gm *GateMetrics) RecordLoopIterations(ctx context.Context, iterations int64) {
	if gm == nil {
		return
	}
	gm.loopIterationHist.Record(ctx, iterations)
}

// RecordLLMLatency records one LLM round trip.
func (gm *GateMetrics) RecordLLMLatency(ctx context.Context, model string, ms float64) {
	if gm == nil {
		return
	}
	gm.llmLatencyMs.Record(ctx, ms, metric.WithAttributes(
		attribute.String(AttrLLMModel, model),
	))
}

// RecordToolLatency records one tool call duration.
func (gm *GateMetrics) RecordToolLatency(ctx context.Context, tool string, ms float64) {
	if gm == nil {
		return
	}
	gm.toolLatencyMs.Record(ctx, ms, metric.WithAttributes(
		attribute.String("tool.name", tool),
	))
}

var (
	globalMetrics *GateMetrics
	globalMu      sync.RWMutex
)

// SetGateMetrics installs the process-wide metrics tracker.
func SetGateMetrics(gm *GateMetrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = gm
}

// GetGateMetrics returns the process-wide metrics tracker, or nil.
func GetGateMetrics() *GateMetrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}
