package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/scoutchat/scout/internal/agent"
	"github.com/scoutchat/scout/internal/session"
	"github.com/scoutchat/scout/internal/tools"
)

// maxChatBodyBytes caps the chat request body.
const maxChatBodyBytes = 1 << 20

// chatRequest is the POST /chat payload.
type chatRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type chatHandler struct {
	logger *slog.Logger
	flow   *agent.Flow
	store  *session.Store
}

// sseStream serializes event writes to one response. The tool event
// emitter and the stream loop may write from different goroutines.
type sseStream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
}

// writeEvent emits one SSE event and flushes it immediately so chunks
// reach the client as they are generated.
func (s *sseStream) writeEvent(event string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.w.Write([]byte("event: " + event + "\ndata: " + string(payload) + "\n\n")); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

// toolEventEmitter relays tool lifecycle to the SSE stream. Emission is
// best effort; a failed write surfaces on the next chunk write instead.
type toolEventEmitter struct {
	stream *sseStream
}

func (e *toolEventEmitter) OnToolStart(name string) {
	_ = e.stream.writeEvent("tool_start", map[string]string{"name": name})
}

func (e *toolEventEmitter) OnToolComplete(name string) {
	_ = e.stream.writeEvent("tool_complete", map[string]string{"name": name})
}

func (e *toolEventEmitter) OnToolError(name string) {
	_ = e.stream.writeEvent("tool_error", map[string]string{"name": name})
}

// chat handles POST /chat as a Server-Sent Events stream.
//
// The request is validated before the response commits to SSE, so a bad
// body or an unacceptable session ID comes back as a plain HTTP 400.
// Event order on success: start (resolved session ID), zero or more
// chunk events, tool lifecycle events interleaved while the model uses
// tools, then done as the end marker. Failures after the stream is
// committed surface as an error event, never a silent truncation.
func (h *chatHandler) chat(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, h.logger, http.StatusInternalServerError, "internal", "streaming unsupported")
		return
	}

	var req chatRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxChatBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "malformed request body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}

	// Resolve the session up front so the start event can announce the
	// ID before any chunk arrives.
	sessionID, _, err := h.store.CreateOrGet(req.SessionID)
	if err != nil {
		writeError(w, h.logger, http.StatusBadRequest, "invalid_session", "session ID is not acceptable")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	stream := &sseStream{w: w, flusher: flusher}
	if err := stream.writeEvent("start", map[string]string{"session_id": sessionID}); err != nil {
		return
	}

	ctx := tools.ContextWithEmitter(r.Context(), &toolEventEmitter{stream: stream})
	input := agent.Input{SessionID: sessionID, Message: req.Message}

	for value, err := range h.flow.Stream(ctx, input) {
		select {
		case <-ctx.Done():
			h.logger.Debug("client disconnected mid-stream", "request_id", requestIDFromContext(ctx))
			return
		default:
		}

		if err != nil {
			h.handleStreamError(ctx, stream, err)
			return
		}

		if value.Done {
			if err := stream.writeEvent("done", map[string]string{
				"response":   value.Output.Response,
				"session_id": value.Output.SessionID,
			}); err != nil {
				h.logger.Debug("writing done event", "error", err)
			}
			return
		}

		if value.Stream.Text == "" {
			continue
		}
		if err := stream.writeEvent("chunk", map[string]string{"text": value.Stream.Text}); err != nil {
			h.logger.Debug("client write failed, aborting stream", "error", err)
			return
		}
	}
}

// handleStreamError maps flow failures onto SSE error events.
func (h *chatHandler) handleStreamError(ctx context.Context, stream *sseStream, err error) {
	if errors.Is(err, context.Canceled) {
		return
	}

	detail := errorDetail{Code: "internal", Message: "chat execution failed"}
	switch {
	case errors.Is(err, agent.ErrEmptyMessage):
		detail = errorDetail{Code: "invalid_request", Message: "message is required"}
	case errors.Is(err, agent.ErrInvalidSession):
		detail = errorDetail{Code: "invalid_session", Message: "session ID is not acceptable"}
	case errors.Is(err, agent.ErrExecutionFailed):
		detail = errorDetail{Code: "upstream_error", Message: "model backend failed"}
	}

	h.logger.Error("chat stream failed",
		"error", err,
		"code", detail.Code,
		"request_id", requestIDFromContext(ctx),
	)
	_ = stream.writeEvent("error", detail)
}
