package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/firebase/genkit/go/genkit"

	"github.com/scoutchat/scout/internal/agent"
	"github.com/scoutchat/scout/internal/session"
	"github.com/scoutchat/scout/internal/testutil"
	"github.com/scoutchat/scout/internal/tools"
)

// defineTestFlow registers a chat flow with a unique name so each test
// can install its own behavior without tripping duplicate registration.
func defineTestFlow(t *testing.T, name string,
	fn func(context.Context, agent.Input, func(context.Context, agent.StreamChunk) error) (agent.Output, error),
) *agent.Flow {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	g := genkit.Init(ctx)
	return genkit.DefineStreamingFlow(g, "test/"+name, fn)
}

func postChat(t *testing.T, h *chatHandler, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	h.chat(w, r)
	return w
}

func decodeEventData(t *testing.T, e *testutil.SSEEvent) map[string]string {
	t.Helper()
	if e == nil {
		t.Fatal("event is nil")
	}
	var data map[string]string
	if err := json.Unmarshal([]byte(e.Data), &data); err != nil {
		t.Fatalf("decoding event data %q: %v", e.Data, err)
	}
	return data
}

func TestChat_StreamOrder(t *testing.T) {
	flow := defineTestFlow(t, "stream_order",
		func(ctx context.Context, input agent.Input, stream func(context.Context, agent.StreamChunk) error) (agent.Output, error) {
			for _, text := range []string{"Hello ", "World"} {
				if err := stream(ctx, agent.StreamChunk{Text: text}); err != nil {
					return agent.Output{}, err
				}
			}
			return agent.Output{Response: "Hello World", SessionID: input.SessionID}, nil
		})

	h := &chatHandler{logger: slog.New(slog.DiscardHandler), flow: flow, store: session.NewStore()}
	w := postChat(t, h, `{"message":"hi"}`)

	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q, want text/event-stream", ct)
	}

	events := testutil.ParseSSEEvents(t, w.Body.String())
	if len(events) < 4 {
		t.Fatalf("events = %d, want start + 2 chunks + done", len(events))
	}
	if events[0].Type != "start" {
		t.Errorf("events[0].Type = %q, want start", events[0].Type)
	}
	start := decodeEventData(t, &events[0])
	if start["session_id"] == "" {
		t.Error("start event missing session_id")
	}

	chunks := testutil.FindAllEvents(events, "chunk")
	if len(chunks) != 2 {
		t.Fatalf("chunk events = %d, want 2", len(chunks))
	}
	if got := decodeEventData(t, &chunks[0])["text"]; got != "Hello " {
		t.Errorf("chunk[0].text = %q, want %q", got, "Hello ")
	}

	if events[len(events)-1].Type != "done" {
		t.Errorf("last event = %q, want done as end marker", events[len(events)-1].Type)
	}
	done := decodeEventData(t, &events[len(events)-1])
	if done["response"] != "Hello World" {
		t.Errorf("done.response = %q, want %q", done["response"], "Hello World")
	}
	if done["session_id"] != start["session_id"] {
		t.Errorf("done.session_id = %q, want %q", done["session_id"], start["session_id"])
	}
}

// Invalid requests must be rejected as plain HTTP 400 before the
// response commits to SSE; a client posting garbage never sees a 200
// with an event stream.
func TestChat_InvalidBody(t *testing.T) {
	flow := defineTestFlow(t, "invalid_body",
		func(_ context.Context, _ agent.Input, _ func(context.Context, agent.StreamChunk) error) (agent.Output, error) {
			t.Error("flow should not run for invalid bodies")
			return agent.Output{}, nil
		})
	h := &chatHandler{logger: slog.New(slog.DiscardHandler), flow: flow, store: session.NewStore()}

	for _, body := range []string{"", "{not json", `{"message":""}`, `{"message":"  "}`, `{"session_id":"s1"}`} {
		w := postChat(t, h, body)
		if w.Code != http.StatusBadRequest {
			t.Fatalf("postChat(%q) status = %d, want %d", body, w.Code, http.StatusBadRequest)
		}
		if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
			t.Errorf("postChat(%q) Content-Type = %q, want JSON, not an event stream", body, ct)
		}
		var resp errorBody
		if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
			t.Fatalf("postChat(%q): decoding error body %q: %v", body, w.Body.String(), err)
		}
		if resp.Error.Code != "invalid_request" {
			t.Errorf("postChat(%q) error code = %q, want invalid_request", body, resp.Error.Code)
		}
	}
}

func TestChat_OversizedSessionID(t *testing.T) {
	flow := defineTestFlow(t, "oversized_session",
		func(_ context.Context, _ agent.Input, _ func(context.Context, agent.StreamChunk) error) (agent.Output, error) {
			return agent.Output{}, nil
		})
	h := &chatHandler{logger: slog.New(slog.DiscardHandler), flow: flow, store: session.NewStore()}

	long := strings.Repeat("x", session.MaxIDLength+1)
	w := postChat(t, h, `{"session_id":"`+long+`","message":"hi"}`)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	var resp errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding error body %q: %v", w.Body.String(), err)
	}
	if resp.Error.Code != "invalid_session" {
		t.Errorf("error code = %q, want invalid_session", resp.Error.Code)
	}
}

func TestChat_UpstreamFailure(t *testing.T) {
	flow := defineTestFlow(t, "upstream_failure",
		func(ctx context.Context, _ agent.Input, stream func(context.Context, agent.StreamChunk) error) (agent.Output, error) {
			if err := stream(ctx, agent.StreamChunk{Text: "partial"}); err != nil {
				return agent.Output{}, err
			}
			return agent.Output{}, agent.ErrExecutionFailed
		})
	h := &chatHandler{logger: slog.New(slog.DiscardHandler), flow: flow, store: session.NewStore()}

	w := postChat(t, h, `{"message":"hi"}`)
	events := testutil.ParseSSEEvents(t, w.Body.String())

	if chunks := testutil.FindAllEvents(events, "chunk"); len(chunks) != 1 {
		t.Errorf("chunk events = %d, want the partial chunk delivered", len(chunks))
	}
	if testutil.FindEvent(events, "done") != nil {
		t.Error("done event present after failure, want error termination")
	}
	errEvent := testutil.FindEvent(events, "error")
	if errEvent == nil {
		t.Fatal("no error event after upstream failure")
	}
	if got := decodeEventData(t, errEvent)["code"]; got != "upstream_error" {
		t.Errorf("error code = %q, want upstream_error", got)
	}
}

func TestChat_EmitsToolEvents(t *testing.T) {
	flow := defineTestFlow(t, "tool_events",
		func(ctx context.Context, input agent.Input, stream func(context.Context, agent.StreamChunk) error) (agent.Output, error) {
			if emitter := tools.EmitterFromContext(ctx); emitter != nil {
				emitter.OnToolStart("calculate")
				emitter.OnToolComplete("calculate")
			}
			if err := stream(ctx, agent.StreamChunk{Text: "4"}); err != nil {
				return agent.Output{}, err
			}
			return agent.Output{Response: "4", SessionID: input.SessionID}, nil
		})
	h := &chatHandler{logger: slog.New(slog.DiscardHandler), flow: flow, store: session.NewStore()}

	w := postChat(t, h, `{"message":"what is 2+2"}`)
	events := testutil.ParseSSEEvents(t, w.Body.String())

	startEvent := testutil.FindEvent(events, "tool_start")
	if startEvent == nil {
		t.Fatal("no tool_start event")
	}
	if got := decodeEventData(t, startEvent)["name"]; got != "calculate" {
		t.Errorf("tool_start.name = %q, want calculate", got)
	}
	if testutil.FindEvent(events, "tool_complete") == nil {
		t.Error("no tool_complete event")
	}
}

// TestChat_FullStack runs the handler against a real agent backed by the
// mock model and asserts exactly one exchange lands in the store.
func TestChat_FullStack(t *testing.T) {
	agent.ResetFlowForTesting()
	t.Cleanup(agent.ResetFlowForTesting)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	g := genkit.Init(ctx)
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("greet", "hello from the model")
	mock.RegisterModel(g)

	store := session.NewStore()
	a, err := agent.New(agent.Config{
		Genkit:    g,
		Store:     store,
		Logger:    slog.New(slog.DiscardHandler),
		ModelName: testutil.MockModelName,
	})
	if err != nil {
		t.Fatalf("agent.New() error = %v", err)
	}

	h := &chatHandler{logger: slog.New(slog.DiscardHandler), flow: agent.NewFlow(g, a), store: store}
	w := postChat(t, h, `{"message":"greet me"}`)

	events := testutil.ParseSSEEvents(t, w.Body.String())
	done := testutil.FindEvent(events, "done")
	if done == nil {
		t.Fatalf("no done event; events: %+v", events)
	}
	data := decodeEventData(t, done)
	if data["response"] != "hello from the model" {
		t.Errorf("done.response = %q, want mock response", data["response"])
	}

	msgs, err := store.Get(data["session_id"])
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("stored messages = %d, want exactly one user+assistant pair", len(msgs))
	}
}

// Two simultaneous turns against the same brand-new session must both
// complete and land as whole user/assistant pairs, through the full
// handler, flow, agent and store stack.
func TestChat_ConcurrentTurnsSameSession(t *testing.T) {
	agent.ResetFlowForTesting()
	t.Cleanup(agent.ResetFlowForTesting)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	g := genkit.Init(ctx)
	mock := testutil.NewMockLLM("fallback")
	mock.AddResponse("greet", "hello from the model")
	mock.RegisterModel(g)

	store := session.NewStore()
	a, err := agent.New(agent.Config{
		Genkit:    g,
		Store:     store,
		Logger:    slog.New(slog.DiscardHandler),
		ModelName: testutil.MockModelName,
	})
	if err != nil {
		t.Fatalf("agent.New() error = %v", err)
	}
	h := &chatHandler{logger: slog.New(slog.DiscardHandler), flow: agent.NewFlow(g, a), store: store}

	const id = "shared-session"
	var wg sync.WaitGroup
	recorders := make([]*httptest.ResponseRecorder, 2)
	for i := range recorders {
		wg.Add(1)
		go func() {
			defer wg.Done()
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"session_id":"`+id+`","message":"greet me"}`))
			r.Header.Set("Content-Type", "application/json")
			h.chat(w, r)
			recorders[i] = w
		}()
	}
	wg.Wait()

	for i, w := range recorders {
		events := testutil.ParseSSEEvents(t, w.Body.String())
		done := testutil.FindEvent(events, "done")
		if done == nil {
			t.Fatalf("request %d: no done event; events: %+v", i, events)
		}
		if got := decodeEventData(t, done)["session_id"]; got != id {
			t.Errorf("request %d: done.session_id = %q, want %q", i, got, id)
		}
	}

	msgs, err := store.Get(id)
	if err != nil {
		t.Fatalf("store.Get() error = %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("stored messages = %d, want two whole exchanges", len(msgs))
	}
	for i := 0; i < len(msgs); i += 2 {
		if msgs[i].Role != session.RoleUser || msgs[i+1].Role != session.RoleAssistant {
			t.Fatalf("pair at %d split: roles %q, %q", i, msgs[i].Role, msgs[i+1].Role)
		}
	}
}
