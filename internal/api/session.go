package api

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/scoutchat/scout/internal/session"
)

type sessionHandler struct {
	logger *slog.Logger
	store  *session.Store
}

type sessionSummary struct {
	ID           string    `json:"id"`
	MessageCount int       `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
}

type sessionMessage struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

type sessionDetail struct {
	ID        string           `json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	Messages  []sessionMessage `json:"messages"`
}

// list handles GET /sessions.
func (h *sessionHandler) list(w http.ResponseWriter, r *http.Request) {
	summaries := h.store.List()
	out := make([]sessionSummary, len(summaries))
	for i, s := range summaries {
		out[i] = sessionSummary{
			ID:           s.ID,
			MessageCount: s.MessageCount,
			CreatedAt:    s.CreatedAt,
		}
	}
	writeJSON(w, h.logger, http.StatusOK, map[string]any{"sessions": out})
}

// get handles GET /session/{id}.
func (h *sessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	msgs, err := h.store.Get(id)
	if err != nil {
		h.writeStoreError(w, id, err)
		return
	}
	createdAt, err := h.store.CreatedAt(id)
	if err != nil {
		h.writeStoreError(w, id, err)
		return
	}

	detail := sessionDetail{
		ID:        id,
		CreatedAt: createdAt,
		Messages:  make([]sessionMessage, len(msgs)),
	}
	for i, m := range msgs {
		detail.Messages[i] = sessionMessage{
			Role:      string(m.Role),
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
		}
	}
	writeJSON(w, h.logger, http.StatusOK, detail)
}

// delete handles DELETE /session/{id}.
func (h *sessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	if err := h.store.Delete(id); err != nil {
		h.writeStoreError(w, id, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *sessionHandler) writeStoreError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		writeError(w, h.logger, http.StatusNotFound, "not_found", "session not found")
	case errors.Is(err, session.ErrInvalidID):
		writeError(w, h.logger, http.StatusBadRequest, "validation_error", "invalid session ID")
	default:
		h.logger.Error("session store failure", "session_id", id, "error", err)
		writeError(w, h.logger, http.StatusInternalServerError, "internal", "internal server error")
	}
}
