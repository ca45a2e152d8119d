package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
)

// FlowName is the registered name of the chat flow.
const FlowName = "scout/chat"

// Input is the request payload for one chat turn.
type Input struct {
	SessionID string `json:"session_id,omitempty"` // Empty starts a new session
	Message   string `json:"message"`
}

// Output is the completed result of one chat turn.
type Output struct {
	Response  string `json:"response"`
	SessionID string `json:"session_id"`
}

// StreamChunk is one streamed fragment of the response.
type StreamChunk struct {
	Text string `json:"text"`
}

// Flow is the streaming chat flow type.
type Flow = core.Flow[Input, Output, StreamChunk]

var (
	flowOnce sync.Once
	flowInst *Flow
)

// NewFlow returns the singleton chat flow, defining it on first call.
// Genkit rejects duplicate flow names, so the definition must happen
// exactly once per process.
func NewFlow(g *genkit.Genkit, a *Agent) *Flow {
	flowOnce.Do(func() {
		flowInst = defineFlow(g, a)
	})
	return flowInst
}

// ResetFlowForTesting clears the flow singleton so tests with fresh
// Genkit instances can redefine it.
func ResetFlowForTesting() {
	flowOnce = sync.Once{}
	flowInst = nil
}

func defineFlow(g *genkit.Genkit, a *Agent) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName,
		func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
			var callback StreamCallback
			if streamCb != nil {
				callback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
					text := chunkText(chunk)
					if text == "" {
						return nil
					}
					return streamCb(ctx, StreamChunk{Text: text})
				}
			}

			resp, err := a.ExecuteStream(ctx, input.SessionID, input.Message, callback)
			if err != nil {
				return Output{}, err
			}
			return Output{Response: resp.Text, SessionID: resp.SessionID}, nil
		})
}

// chunkText concatenates the text parts of a model chunk.
func chunkText(chunk *ai.ModelResponseChunk) string {
	if chunk == nil {
		return ""
	}
	var b strings.Builder
	for _, part := range chunk.Content {
		b.WriteString(part.Text)
	}
	return b.String()
}
