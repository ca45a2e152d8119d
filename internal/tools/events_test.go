package tools

import (
	"context"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/ai"
)

// recordingEmitter captures tool lifecycle events for assertions.
type recordingEmitter struct {
	mu     sync.Mutex
	events []string
}

func (r *recordingEmitter) OnToolStart(name string)    { r.record("start:" + name) }
func (r *recordingEmitter) OnToolComplete(name string) { r.record("complete:" + name) }
func (r *recordingEmitter) OnToolError(name string)    { r.record("error:" + name) }

func (r *recordingEmitter) record(e string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func TestWithEvents_EmitsStartAndComplete(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	ctx := ContextWithEmitter(context.Background(), emitter)

	wrapped := WithEvents("demo", func(*ai.ToolContext, struct{}) (Result, error) {
		return Result{Status: StatusSuccess}, nil
	})

	if _, err := wrapped(&ai.ToolContext{Context: ctx}, struct{}{}); err != nil {
		t.Fatalf("wrapped() error = %v", err)
	}

	want := []string{"start:demo", "complete:demo"}
	if len(emitter.events) != len(want) {
		t.Fatalf("events = %v, want %v", emitter.events, want)
	}
	for i := range want {
		if emitter.events[i] != want[i] {
			t.Errorf("events[%d] = %q, want %q", i, emitter.events[i], want[i])
		}
	}
}

func TestWithEvents_ErrorResultEmitsError(t *testing.T) {
	t.Parallel()

	emitter := &recordingEmitter{}
	ctx := ContextWithEmitter(context.Background(), emitter)

	wrapped := WithEvents("failing", func(*ai.ToolContext, struct{}) (Result, error) {
		return errorResult(ErrCodeValidation, "nope"), nil
	})

	if _, err := wrapped(&ai.ToolContext{Context: ctx}, struct{}{}); err != nil {
		t.Fatalf("wrapped() error = %v", err)
	}
	if emitter.events[1] != "error:failing" {
		t.Errorf("events[1] = %q, want error event for handled failure", emitter.events[1])
	}
}

func TestWithEvents_NoEmitterPassesThrough(t *testing.T) {
	t.Parallel()

	wrapped := WithEvents("plain", func(*ai.ToolContext, struct{}) (Result, error) {
		return Result{Status: StatusSuccess, Message: "ok"}, nil
	})

	result, err := wrapped(&ai.ToolContext{Context: context.Background()}, struct{}{})
	if err != nil {
		t.Fatalf("wrapped() error = %v", err)
	}
	if result.Message != "ok" {
		t.Errorf("wrapped().Message = %q, want %q", result.Message, "ok")
	}
}

func TestEmitterFromContext_NilWhenUnset(t *testing.T) {
	t.Parallel()

	if got := EmitterFromContext(context.Background()); got != nil {
		t.Errorf("EmitterFromContext(bare ctx) = %v, want nil", got)
	}
}
