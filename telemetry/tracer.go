// Package telemetry wraps OpenTelemetry span export for the agent
// runtime: one tracer provider per process, an OTLP/gRPC exporter when
// enabled, a no-op provider otherwise.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

const (
	AttrAgentID    = "kernel.agent.id"
	AttrAgentModel = "kernel.agent.model"
	AttrToolName   = "kernel.tool.name"
	AttrIterationN = "kernel.turn.iteration"
	AttrOutcome    = "kernel.turn.outcome"

	SpanExecuteTurn = "kernel.agent.execute_turn"
	SpanToolCall    = "kernel.agent.tool_call"
	SpanDriverCall  = "kernel.agent.driver_call"
)

// Config mirrors config.TracingConfig without importing the config
// package, keeping telemetry usable from agent/runtime.go without an
// import cycle (config already depends on nothing agent-related, but
// agent must not depend on config either).
type Config struct {
	Enabled      bool
	EndpointURL  string
	SamplingRate float64
	ServiceName  string
}

// Init builds a TracerProvider and installs it as the global one. A
// disabled config yields a no-op provider so Runtime's span calls are
// always safe to make, exactly mirroring the teacher's opt-in tracer.
func Init(ctx context.Context, cfg Config) (trace.TracerProvider, error) {
	if !cfg.Enabled {
		tp := noop.NewTracerProvider()
		otel.SetTracerProvider(tp)
		return tp, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.EndpointURL),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.TraceIDRatioBased(cfg.SamplingRate)),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	return tp, nil
}

// Tracer returns the named tracer off whatever provider is currently
// installed (global default is a no-op until Init runs).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
