// Package tools provides the tool layer for the chat agent.
package tools

import (
	"context"
)

// emitterKey is an empty struct context key (zero allocation).
type emitterKey struct{}

// EventEmitter receives tool lifecycle events during a chat turn.
// The interface carries only the tool name; presentation belongs to the
// transport layer that created the emitter.
//
// Usage:
//  1. The SSE handler creates an emitter bound to its event writer
//  2. The handler stores it in the request context via ContextWithEmitter
//  3. Wrapped tools retrieve it via EmitterFromContext
type EventEmitter interface {
	// OnToolStart signals that a tool has started execution.
	OnToolStart(name string)

	// OnToolComplete signals that a tool completed successfully.
	OnToolComplete(name string)

	// OnToolError signals that a tool execution failed.
	OnToolError(name string)
}

// EmitterFromContext retrieves the EventEmitter from ctx.
// Returns nil if not set; callers treat nil as "no events wanted".
func EmitterFromContext(ctx context.Context) EventEmitter {
	emitter, _ := ctx.Value(emitterKey{}).(EventEmitter)
	return emitter
}

// ContextWithEmitter stores an EventEmitter in ctx for the current request.
func ContextWithEmitter(ctx context.Context, emitter EventEmitter) context.Context {
	return context.WithValue(ctx, emitterKey{}, emitter)
}
