package telemetry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
)

func TestInitStdoutAndShutdown(t *testing.T) {
	shutdown, err := Init("thyra-test", "0.0.1")
	if err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
}

func TestInitWithConfigRejectsUnknownExporter(t *testing.T) {
	if _, err := InitWithConfig("thyra-test", "0.0.1", Config{Exporter: "carrier-pigeon"}); err == nil {
		t.Fatalf("expected error for unknown exporter")
	}
}

func TestInitOTLPRequiresEndpoint(t *testing.T) {
	if _, err := InitWithConfig("thyra-test", "0.0.1", Config{Exporter: "otlp"}); err == nil {
		t.Fatalf("expected error when otlp endpoint is missing")
	}
}

func TestConfigureSlogFormats(t *testing.T) {
	var buf bytes.Buffer
	logger := ConfigureSlog(&buf, "debug", "json")
	logger.Debug("hello", slog.String("k", "v"))
	if !strings.Contains(buf.String(), `"k":"v"`) {
		t.Fatalf("expected json output, got %q", buf.String())
	}

	buf.Reset()
	logger = ConfigureSlog(&buf, "warn", "text")
	logger.Info("dropped")
	if buf.Len() != 0 {
		t.Fatalf("info should be filtered at warn level, got %q", buf.String())
	}
	logger.Warn("kept")
	if !strings.Contains(buf.String(), "kept") {
		t.Fatalf("warn should pass, got %q", buf.String())
	}
}

func TestParseLogLevel(t *testing.T) {
	if parseLogLevel("WARNING") != slog.LevelWarn {
		t.Fatalf("warning alias should map to warn")
	}
	if parseLogLevel("") != slog.LevelInfo {
		t.Fatalf("empty level should default to info")
	}
}

func TestGateMetricsNilSafe(t *testing.T) {
	var gm *GateMetrics
	ctx := context.Background()
	gm.RecordToolCall(ctx, "search", true)
	gm.RecordRejection(ctx, "analyze")
	gm.RecordTransition(ctx, "draft", "review")
	gm.RecordBinding(ctx, "Invoice")
	gm.RecordLoopIterations(ctx, 3)
	gm.RecordLLMLatency(ctx, "m", 1.0)
	gm.RecordToolLatency(ctx, "search", 1.0)
}

func TestGateMetricsGlobal(t *testing.T) {
	gm, err := NewGateMetrics()
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	SetGateMetrics(gm)
	if GetGateMetrics() != gm {
		t.Fatalf("global metrics not installed")
	}
	SetGateMetrics(nil)
}
