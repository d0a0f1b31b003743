package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/forgebound/kernel/kernelerr"
	"github.com/forgebound/kernel/security/audit"
	"github.com/forgebound/kernel/security/capability"
	"github.com/forgebound/kernel/security/taint"
)

// fakeDriver is a scripted LLMDriver: each Stream call consumes the
// next entry of turns, in order.
type fakeDriver struct {
	turns []LLMResponse
	n     int
}

func (d *fakeDriver) Complete(ctx context.Context, req LLMRequest) (LLMResponse, error) {
	return d.next(), nil
}

func (d *fakeDriver) Stream(ctx context.Context, req LLMRequest, sink func(StreamChunk) error) (LLMResponse, error) {
	resp := d.next()
	if err := sink(StreamChunk{TextDelta: resp.Text, ToolCalls: resp.ToolCalls, Final: true}); err != nil {
		return LLMResponse{}, err
	}
	return resp, nil
}

func (d *fakeDriver) next() LLMResponse {
	if d.n >= len(d.turns) {
		return d.turns[len(d.turns)-1]
	}
	resp := d.turns[d.n]
	d.n++
	return resp
}

// fakeTools always succeeds, echoing the tool name as its result.
type fakeTools struct{}

func (fakeTools) Invoke(ctx context.Context, toolName string, args map[string]any) (ToolResult, error) {
	return ToolResult{Content: "ok:" + toolName}, nil
}

func newTestRuntime(driver LLMDriver, tools ToolExecutor, caps *capability.Manager) *Runtime {
	r := NewRuntime("agent-1", Manifest{Name: "helper", Model: "test-model", Tools: []string{"search"}})
	r.Driver = driver
	r.Tools = tools
	r.Caps = caps
	r.Audit = audit.NewLog()
	r.Hooks = NewHookRegistry(nil)
	return r
}

func TestExecuteTurnCompletesWithNoToolCalls(t *testing.T) {
	driver := &fakeDriver{turns: []LLMResponse{{Text: "hello"}}}
	caps := capability.NewManager()
	r := newTestRuntime(driver, fakeTools{}, caps)

	result, err := r.ExecuteTurn(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Equal(t, "hello", result.Text)
}

func TestExecuteTurnDeniesToolCallWithoutCapabilityAndAudits(t *testing.T) {
	driver := &fakeDriver{turns: []LLMResponse{
		{ToolCalls: []ToolCall{{ID: "1", Name: "search", Input: map[string]any{"q": "x"}}}},
		{Text: "done"},
	}}
	caps := capability.NewManager() // no grants at all
	r := newTestRuntime(driver, fakeTools{}, caps)

	result, err := r.ExecuteTurn(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Equal(t, "done", result.Text)

	entries := r.Audit.Recent(10)
	var sawDeniedCheck bool
	for _, e := range entries {
		if e.Action == audit.CapabilityCheck && e.Detail == "search" && e.Outcome == "denied" {
			sawDeniedCheck = true
		}
	}
	require.True(t, sawDeniedCheck, "expected a denied CapabilityCheck audit entry for the search tool call")
}

func TestExecuteTurnBlocksTaintViolationAtSink(t *testing.T) {
	driver := &fakeDriver{turns: []LLMResponse{
		{ToolCalls: []ToolCall{{ID: "1", Name: "search", Input: map[string]any{"q": "x"}}}},
		{Text: "done"},
	}}
	caps := capability.NewManager()
	caps.Grant("agent-1", []capability.Capability{{Kind: capability.ToolInvoke, Pattern: "search"}})
	r := newTestRuntime(driver, fakeTools{}, caps)
	r.Classifier = func(call ToolCall) taint.Value {
		return taint.New("x", taint.NewLabelSet(taint.Secret), "conversation")
	}
	r.SinkFor = func(toolName string) (taint.Sink, bool) {
		return taint.NetFetchSink(), true
	}

	result, err := r.ExecuteTurn(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Equal(t, "done", result.Text)

	entries := r.Audit.Recent(10)
	var sawViolation bool
	for _, e := range entries {
		if e.Action == audit.ToolInvoke && e.Outcome == "taint_violation:taint violation: label 'Secret' from source 'conversation' is not allowed to reach sink 'net_fetch'" {
			sawViolation = true
		}
	}
	require.True(t, sawViolation, "expected a taint_violation audit entry")
}

func TestExecuteTurnStopsOnQuotaExceeded(t *testing.T) {
	driver := &fakeDriver{turns: []LLMResponse{
		{ToolCalls: []ToolCall{{ID: "1", Name: "search", Input: map[string]any{"q": "x"}}}},
	}}
	caps := capability.NewManager()
	caps.Grant("agent-1", []capability.Capability{{Kind: capability.ToolInvoke, Pattern: "search"}})
	r := newTestRuntime(driver, fakeTools{}, caps)
	r.Quota = NewQuotaBudget(1)
	r.ToolCost = func(call ToolCall) uint64 { return 1000 }

	_, err := r.ExecuteTurn(context.Background(), "hi", nil)
	require.Error(t, err)

	var kerr *kernelerr.Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, kernelerr.QuotaExceeded, kerr.Kind)

	entries := r.Audit.Recent(10)
	var sawQuotaExceeded bool
	for _, e := range entries {
		if e.Action == audit.ToolInvoke && e.Detail == "search" && e.Outcome == "quota_exceeded" {
			sawQuotaExceeded = true
		}
	}
	require.True(t, sawQuotaExceeded, "expected a quota_exceeded audit entry")
}

func TestExecuteTurnAbortsWhenBeforeToolCallHookErrors(t *testing.T) {
	driver := &fakeDriver{turns: []LLMResponse{
		{ToolCalls: []ToolCall{{ID: "1", Name: "search", Input: map[string]any{"q": "x"}}}},
		{Text: "done"},
	}}
	caps := capability.NewManager()
	caps.Grant("agent-1", []capability.Capability{{Kind: capability.ToolInvoke, Pattern: "search"}})
	r := newTestRuntime(driver, fakeTools{}, caps)
	r.Hooks.Register(BeforeToolCall, HookFunc(func(ctx context.Context, hctx HookContext) error {
		return &kernelerr.Error{Kind: kernelerr.CapabilityDenied, Message: "blocked by hook"}
	}))

	result, err := r.ExecuteTurn(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Equal(t, "done", result.Text)

	entries := r.Audit.Recent(10)
	var sawHookDenial bool
	for _, e := range entries {
		if e.Action == audit.ToolInvoke && e.Outcome == "denied_by_hook" {
			sawHookDenial = true
		}
	}
	require.True(t, sawHookDenial, "expected a denied_by_hook audit entry")
}

func TestExecuteTurnReturnsMaxIterationsExceeded(t *testing.T) {
	call := ToolCall{ID: "1", Name: "search", Input: map[string]any{"q": "x"}}
	driver := &fakeDriver{turns: []LLMResponse{{ToolCalls: []ToolCall{call}}}} // always asks for another tool call
	caps := capability.NewManager()
	caps.Grant("agent-1", []capability.Capability{{Kind: capability.ToolInvoke, Pattern: "search"}})
	r := newTestRuntime(driver, fakeTools{}, caps)
	r.MaxIterations = 2

	_, err := r.ExecuteTurn(context.Background(), "hi", nil)
	require.Error(t, err)

	var kerr *kernelerr.Error
	require.ErrorAs(t, err, &kerr)
	require.Equal(t, kernelerr.MaxIterationsExceeded, kerr.Kind)
	require.Equal(t, r.MaxIterations, kerr.Attempts)
}
