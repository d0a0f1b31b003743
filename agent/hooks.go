package agent

import (
	"context"
	"log/slog"
)

// HookEvent names a point in the turn loop a hook can observe or
// intercept.
type HookEvent int

const (
	BeforePromptBuild HookEvent = iota
	BeforeToolCall
	AfterToolCall
	AgentLoopEnd
)

func (e HookEvent) String() string {
	switch e {
	case BeforePromptBuild:
		return "BeforePromptBuild"
	case BeforeToolCall:
		return "BeforeToolCall"
	case AfterToolCall:
		return "AfterToolCall"
	case AgentLoopEnd:
		return "AgentLoopEnd"
	default:
		return "Unknown"
	}
}

// HookContext carries the data a hook observes.
type HookContext struct {
	AgentName string
	AgentID   string
	Event     HookEvent
	Data      any
}

// Hook is a registered handler. Only BeforeToolCall is blocking: an
// error it returns aborts the in-flight tool call. Every other event
// is observe-only — an error is logged but never stops the turn.
type Hook interface {
	OnEvent(ctx context.Context, hctx HookContext) error
}

// HookFunc adapts a plain function to Hook.
type HookFunc func(ctx context.Context, hctx HookContext) error

func (f HookFunc) OnEvent(ctx context.Context, hctx HookContext) error { return f(ctx, hctx) }

// HookRegistry holds hooks per event, fired in registration order.
type HookRegistry struct {
	handlers map[HookEvent][]Hook
	logger   *slog.Logger
}

func NewHookRegistry(logger *slog.Logger) *HookRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &HookRegistry{handlers: make(map[HookEvent][]Hook), logger: logger}
}

// Register appends h to the handlers for event, preserving
// registration order.
func (r *HookRegistry) Register(event HookEvent, h Hook) {
	r.handlers[event] = append(r.handlers[event], h)
}

func (r *HookRegistry) HasHandlers(event HookEvent) bool {
	return len(r.handlers[event]) > 0
}

// Fire runs every handler registered for hctx.Event. For
// BeforeToolCall, the first error short-circuits and is returned
// (blocking). For every other event, errors are logged and execution
// continues (non-blocking).
func (r *HookRegistry) Fire(ctx context.Context, hctx HookContext) error {
	for _, h := range r.handlers[hctx.Event] {
		if err := h.OnEvent(ctx, hctx); err != nil {
			if hctx.Event == BeforeToolCall {
				return err
			}
			r.logger.Warn("hook handler failed", "event", hctx.Event, "agent_id", hctx.AgentID, "error", err)
		}
	}
	return nil
}
