package domain

import (
	"context"
	"time"
)

// EventType defines the category of the event.
type EventType string

const (
	EventPromptEnter EventType = "prompt_enter"
	EventPromptLeave EventType = "prompt_leave"
	EventCall        EventType = "call"
	EventCallReturn  EventType = "call_return"
)

// EventBase contains common fields for all events.
type EventBase struct {
	Timestamp time.Time `json:"timestamp"`
	Type      EventType `json:"type"`
	RunID     string    `json:"run_id"`
}

// PromptEvent represents entry into or exit from one prompt invocation.
type PromptEvent struct {
	EventBase
	Prompt   string        `json:"prompt"`
	Visit    int           `json:"visit"`
	Next     string        `json:"next,omitempty"`
	Actions  int           `json:"actions,omitempty"`
	Queries  int           `json:"queries,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
	IsError  bool          `json:"is_error,omitempty"`
}

// CallEvent represents a cog invocation made by the orchestrator.
type CallEvent struct {
	EventBase
	InvocationID string        `json:"invocation_id"`
	Cog          string        `json:"cog"`
	Entry        string        `json:"entry,omitempty"`
	Duration     time.Duration `json:"duration,omitempty"`
	IsError      bool          `json:"is_error,omitempty"`
}

// LifecycleHooks defines callbacks for engine observability.
type LifecycleHooks struct {
	OnPromptEnter func(context.Context, *PromptEvent)
	OnPromptLeave func(context.Context, *PromptEvent)
	OnCall        func(context.Context, *CallEvent)
	OnCallReturn  func(context.Context, *CallEvent)
}

// Merge returns hooks that call h first, then other.
func (h LifecycleHooks) Merge(other LifecycleHooks) LifecycleHooks {
	return LifecycleHooks{
		OnPromptEnter: chainPrompt(h.OnPromptEnter, other.OnPromptEnter),
		OnPromptLeave: chainPrompt(h.OnPromptLeave, other.OnPromptLeave),
		OnCall:        chainCall(h.OnCall, other.OnCall),
		OnCallReturn:  chainCall(h.OnCallReturn, other.OnCallReturn),
	}
}

func chainPrompt(a, b func(context.Context, *PromptEvent)) func(context.Context, *PromptEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *PromptEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}

func chainCall(a, b func(context.Context, *CallEvent)) func(context.Context, *CallEvent) {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	return func(ctx context.Context, e *CallEvent) {
		a(ctx, e)
		b(ctx, e)
	}
}
