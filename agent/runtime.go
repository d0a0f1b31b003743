// Package agent implements the per-agent turn loop: the iterative
// LLM -> tools -> LLM cycle, with capability/taint/quota checks,
// hook interception, streaming directive parsing, and audit recording.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/forgebound/kernel/bus"
	"github.com/forgebound/kernel/kernelerr"
	"github.com/forgebound/kernel/lane"
	"github.com/forgebound/kernel/security/audit"
	"github.com/forgebound/kernel/security/capability"
	"github.com/forgebound/kernel/security/taint"
	"github.com/forgebound/kernel/telemetry"
)

// State is the agent lifecycle state (spec §3/§4.16).
type State int

const (
	Created State = iota
	Running
	Suspended
	Terminated
	Crashed
)

func (s State) String() string {
	switch s {
	case Created:
		return "Created"
	case Running:
		return "Running"
	case Suspended:
		return "Suspended"
	case Terminated:
		return "Terminated"
	case Crashed:
		return "Crashed"
	default:
		return "Unknown"
	}
}

// Manifest is an agent's immutable capability set, tool list, and
// model parameters, read from an agent.toml file (spec §6).
type Manifest struct {
	Name         string
	Description  string
	Tags         []string
	Tools        []string
	Capabilities []capability.Capability
	Model        string
	MaxRestarts  uint32
}

// QuotaBudget tracks an agent's accumulated cost against a limit.
type QuotaBudget struct {
	mu    sync.Mutex
	Limit uint64
	spent uint64
}

func NewQuotaBudget(limit uint64) *QuotaBudget { return &QuotaBudget{Limit: limit} }

// TrySpend debits cost if it would not exceed the budget, returning
// the error spec §7 specifies (spent, limit) otherwise.
func (q *QuotaBudget) TrySpend(cost uint64) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.Limit > 0 && q.spent+cost > q.Limit {
		return &kernelerr.Error{Kind: kernelerr.QuotaExceeded, Spent: q.spent + cost, Limit: q.Limit}
	}
	q.spent += cost
	return nil
}

func (q *QuotaBudget) Spent() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.spent
}

// ToolCost estimates the cost of a tool call in abstract quota units.
// The default estimator sizes the serialized arguments; embedders with
// a real token budget should inject integration.TokenCostEstimator's
// EstimateTokens instead, which counts actual BPE tokens.
type ToolCost func(call ToolCall) uint64

func DefaultToolCost(call ToolCall) uint64 {
	b, err := json.Marshal(call.Input)
	if err != nil {
		return 1
	}
	return uint64(len(b))
}

// TaintClassifier derives the taint.Value carried by a tool call's
// arguments, typically by tracing which conversation-history entries
// (and their provenance) fed those arguments. A nil classifier treats
// every call as untainted.
type TaintClassifier func(call ToolCall) taint.Value

// ToolSinkLookup resolves the taint.Sink a named tool's arguments
// flow into. A nil lookup means no sink check is performed.
type ToolSinkLookup func(toolName string) (taint.Sink, bool)

// Runtime drives one agent's turn loop.
type Runtime struct {
	AgentID  string
	Manifest Manifest

	Caps  *capability.Manager
	Audit *audit.Log
	Hooks *HookRegistry
	Bus   *bus.Bus
	Lanes *lane.Queue

	Driver LLMDriver
	Tools  ToolExecutor

	Quota      *QuotaBudget
	ToolCost   ToolCost
	Classifier TaintClassifier
	SinkFor    ToolSinkLookup

	Dedup         *StreamDedup
	MaxIterations uint32

	// OnRetry, if set, is called once per retried LLM call attempt
	// (attempt > 0), letting an embedder feed a metrics counter.
	OnRetry func(kind string, attempt uint32)

	Logger *slog.Logger

	state atomic.Int32
}

func NewRuntime(id string, m Manifest) *Runtime {
	r := &Runtime{
		AgentID:       id,
		Manifest:      m,
		ToolCost:      DefaultToolCost,
		Dedup:         NewStreamDedup(DefaultStreamDedupConfig()),
		MaxIterations: 25,
		Logger:        slog.Default(),
	}
	r.state.Store(int32(Created))
	return r
}

func (r *Runtime) State() State     { return State(r.state.Load()) }
func (r *Runtime) setState(s State) { r.state.Store(int32(s)) }

// Terminate moves the runtime to its terminal state; any in-flight
// ExecuteTurn call still returns normally, but new calls are rejected.
func (r *Runtime) Terminate() { r.setState(Terminated) }

// TurnResult is what ExecuteTurn returns on success.
type TurnResult struct {
	Text       string
	Directives DirectiveSet
}

// ExecuteTurn drives one full LLM-tool iteration cycle for input,
// bounded by r.MaxIterations, per spec §4.2.1. onChunk, if non-nil, is
// called with each deduplicated, directive-stripped text increment as
// it becomes available during streaming.
func (r *Runtime) ExecuteTurn(ctx context.Context, input string, onChunk func(string)) (TurnResult, error) {
	ctx, span := telemetry.Tracer("kernel.agent").Start(ctx, telemetry.SpanExecuteTurn,
		trace.WithAttributes(
			attribute.String(telemetry.AttrAgentID, r.AgentID),
			attribute.String(telemetry.AttrAgentModel, r.Manifest.Model),
		),
	)
	defer span.End()

	result, err := r.executeTurn(ctx, input, onChunk)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return result, err
}

func (r *Runtime) executeTurn(ctx context.Context, input string, onChunk func(string)) (TurnResult, error) {
	if r.State() == Terminated || r.State() == Crashed {
		return TurnResult{}, &kernelerr.Error{Kind: kernelerr.InvalidState, Current: r.State().String(), Operation: "execute_turn"}
	}
	r.setState(Running)

	if err := r.Hooks.Fire(ctx, HookContext{AgentName: r.Manifest.Name, AgentID: r.AgentID, Event: BeforePromptBuild, Data: input}); err != nil {
		r.Logger.Warn("BeforePromptBuild hook failed", "agent_id", r.AgentID, "error", err)
	}

	messages := []Message{{Role: "user", Content: input}}
	var acc StreamingDirectiveAccumulator

	turnSpan := trace.SpanFromContext(ctx)
	for iteration := uint32(0); iteration < r.MaxIterations; iteration++ {
		turnSpan.SetAttributes(attribute.Int(telemetry.AttrIterationN, int(iteration)))
		tools := r.toolDefinitions()
		req := LLMRequest{Model: r.Manifest.Model, Messages: messages, Tools: tools}

		resp, err := r.callDriver(ctx, req, &acc, onChunk)
		if err != nil {
			return TurnResult{}, err
		}

		if len(resp.ToolCalls) == 0 {
			final := acc.Consume("", true)
			if final != "" && onChunk != nil {
				onChunk(r.dedupedChunk(final))
			}
			r.fireLoopEnd(ctx)
			turnSpan.SetAttributes(attribute.String(telemetry.AttrOutcome, "completed"))
			return TurnResult{Text: resp.Text, Directives: acc.Directives()}, nil
		}

		toolMessages, err := r.runToolCalls(ctx, resp.ToolCalls, messages)
		if err != nil {
			return TurnResult{}, err
		}
		messages = append(messages, toolMessages...)
	}

	turnSpan.SetAttributes(attribute.String(telemetry.AttrOutcome, "max_iterations_exceeded"))
	partial := acc.Consume("", true)
	return TurnResult{}, &kernelerr.Error{Kind: kernelerr.MaxIterationsExceeded, Attempts: r.MaxIterations, Partial: partial}
}

func (r *Runtime) toolDefinitions() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.Manifest.Tools))
	for _, name := range r.Manifest.Tools {
		defs = append(defs, ToolDefinition{Name: name})
	}
	return defs
}

func (r *Runtime) dedupedChunk(text string) string {
	if r.Dedup == nil || !r.Dedup.IsDuplicate(text) {
		if r.Dedup != nil {
			r.Dedup.RecordSent(text)
		}
		return text
	}
	return ""
}

// callDriver invokes the LLM driver, preferring streaming, wrapped by
// the LLM retry preset (spec §4.2.2).
func (r *Runtime) callDriver(ctx context.Context, req LLMRequest, acc *StreamingDirectiveAccumulator, onChunk func(string)) (LLMResponse, error) {
	ctx, span := telemetry.Tracer("kernel.agent").Start(ctx, telemetry.SpanDriverCall,
		trace.WithAttributes(attribute.String(telemetry.AttrAgentModel, req.Model)),
	)
	defer span.End()

	resp, err := r.callDriverTraced(ctx, req, acc, onChunk)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return resp, err
}

func (r *Runtime) callDriverTraced(ctx context.Context, req LLMRequest, acc *StreamingDirectiveAccumulator, onChunk func(string)) (LLMResponse, error) {
	outcome := Retry(ctx, LLMRetryConfig(), func(ctx context.Context, attempt uint32) (LLMResponse, error) {
		if attempt > 0 && r.OnRetry != nil {
			r.OnRetry("llm", attempt)
		}
		if r.Driver == nil {
			return LLMResponse{}, &kernelerr.Error{Kind: kernelerr.LlmDriver, Message: "no driver configured"}
		}
		return r.Driver.Stream(ctx, req, func(chunk StreamChunk) error {
			if chunk.TextDelta == "" {
				return nil
			}
			cleaned := acc.Consume(chunk.TextDelta, chunk.Final)
			if cleaned != "" && onChunk != nil {
				if deduped := r.dedupedChunk(cleaned); deduped != "" {
					onChunk(deduped)
				}
			}
			return nil
		})
	}, isRetryableLLMError, nil)

	if !outcome.Success {
		return LLMResponse{}, &kernelerr.Error{Kind: kernelerr.LlmDriver, Err: outcome.LastErr, Message: fmt.Sprintf("failed after %d attempts", outcome.Attempts)}
	}
	return outcome.Result, nil
}

// isRetryableLLMError distinguishes transient failures (timeouts,
// 5xx, rate limits) from permanent ones (4xx other than 429). Drivers
// are expected to wrap such errors as *kernelerr.Error with Retryable
// set; anything else is treated conservatively as non-retryable.
func isRetryableLLMError(err error) bool {
	var kerr *kernelerr.Error
	if errors.As(err, &kerr) {
		return kerr.Retryable
	}
	return false
}

func (r *Runtime) runToolCalls(ctx context.Context, calls []ToolCall, history []Message) ([]Message, error) {
	var results []Message
	for _, call := range calls {
		result, err := r.runOneToolCall(ctx, call)
		if err != nil {
			return nil, err
		}
		content := result.Content
		if result.IsError {
			content = "error: " + content
		}
		results = append(results, Message{Role: "tool", Content: fmt.Sprintf("[%s] %s", call.Name, content)})
	}
	return results, nil
}

func (r *Runtime) runOneToolCall(ctx context.Context, call ToolCall) (ToolResult, error) {
	ctx, span := telemetry.Tracer("kernel.agent").Start(ctx, telemetry.SpanToolCall,
		trace.WithAttributes(
			attribute.String(telemetry.AttrAgentID, r.AgentID),
			attribute.String(telemetry.AttrToolName, call.Name),
		),
	)
	defer span.End()

	result, err := r.runOneToolCallTraced(ctx, call)
	if err != nil || result.IsError {
		span.SetStatus(codes.Error, result.Content)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	return result, err
}

func (r *Runtime) runOneToolCallTraced(ctx context.Context, call ToolCall) (ToolResult, error) {
	hctx := HookContext{AgentName: r.Manifest.Name, AgentID: r.AgentID, Event: BeforeToolCall, Data: call}
	if err := r.Hooks.Fire(ctx, hctx); err != nil {
		r.Audit.Record(r.AgentID, audit.ToolInvoke, call.Name, "denied_by_hook")
		return ToolResult{ToolUseID: call.ID, IsError: true, Content: err.Error()}, nil
	}

	required := capability.Capability{Kind: capability.ToolInvoke, Pattern: call.Name}
	check := r.Caps.Check(r.AgentID, required)
	r.Audit.Record(r.AgentID, audit.CapabilityCheck, call.Name, outcomeString(check.Granted))
	if !check.Granted {
		return ToolResult{ToolUseID: call.ID, IsError: true, Content: check.Reason}, nil
	}

	if r.Classifier != nil && r.SinkFor != nil {
		tv := r.Classifier(call)
		if sink, ok := r.SinkFor(call.Name); ok {
			if violation := taint.CheckSink(tv, sink); violation != nil {
				r.Audit.Record(r.AgentID, audit.ToolInvoke, call.Name, "taint_violation:"+violation.Error())
				return ToolResult{ToolUseID: call.ID, IsError: true, Content: violation.Error()}, nil
			}
		}
	}

	if r.Quota != nil {
		cost := r.ToolCost(call)
		if err := r.Quota.TrySpend(cost); err != nil {
			r.Audit.Record(r.AgentID, audit.ToolInvoke, call.Name, "quota_exceeded")
			return ToolResult{}, err
		}
	}

	var result ToolResult
	work := func(ctx context.Context) (ToolResult, error) {
		if r.Tools == nil {
			return ToolResult{ToolUseID: call.ID, IsError: true, Content: "no tool executor configured"}, nil
		}
		return r.Tools.Invoke(ctx, call.Name, call.Input)
	}
	if r.Lanes != nil {
		var err error
		result, err = lane.Submit(ctx, r.Lanes, lane.Subagent, work)
		if err != nil {
			return ToolResult{}, &kernelerr.Error{Kind: kernelerr.Sandbox, Err: err}
		}
	} else {
		var err error
		result, err = work(ctx)
		if err != nil {
			return ToolResult{}, &kernelerr.Error{Kind: kernelerr.Sandbox, Err: err}
		}
	}

	r.Audit.Record(r.AgentID, audit.ToolInvoke, call.Name, outcomeString(!result.IsError))

	if err := r.Hooks.Fire(ctx, HookContext{AgentName: r.Manifest.Name, AgentID: r.AgentID, Event: AfterToolCall, Data: result}); err != nil {
		r.Logger.Warn("AfterToolCall hook failed", "agent_id", r.AgentID, "error", err)
	}
	return result, nil
}

func (r *Runtime) fireLoopEnd(ctx context.Context) {
	if err := r.Hooks.Fire(ctx, HookContext{AgentName: r.Manifest.Name, AgentID: r.AgentID, Event: AgentLoopEnd}); err != nil {
		r.Logger.Warn("AgentLoopEnd hook failed", "agent_id", r.AgentID, "error", err)
	}
}

func outcomeString(ok bool) string {
	if ok {
		return "ok"
	}
	return "denied"
}
