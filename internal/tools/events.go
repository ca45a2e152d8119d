package tools

import (
	"github.com/firebase/genkit/go/ai"
)

// WithEvents wraps a typed tool handler to emit lifecycle events.
//
// The wrapper retrieves the emitter from the request context (nil for
// non-streaming calls), emits OnToolStart before the handler runs, then
// OnToolComplete or OnToolError after. A failed-but-handled call (Result
// with StatusError, nil Go error) counts as an error event so the client
// sees the tool stumble even though the turn continues.
func WithEvents[In any](name string, fn func(*ai.ToolContext, In) (Result, error)) func(*ai.ToolContext, In) (Result, error) {
	return func(ctx *ai.ToolContext, input In) (Result, error) {
		emitter := EmitterFromContext(ctx.Context)

		if emitter != nil {
			emitter.OnToolStart(name)
		}

		result, err := fn(ctx, input)

		if emitter != nil {
			if err != nil || result.Status == StatusError {
				emitter.OnToolError(name)
			} else {
				emitter.OnToolComplete(name)
			}
		}

		return result, err
	}
}
