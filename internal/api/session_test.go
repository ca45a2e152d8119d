package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/scoutchat/scout/internal/session"
)

func newSessionHandler(t *testing.T) (*sessionHandler, *session.Store) {
	t.Helper()
	store := session.NewStore()
	return &sessionHandler{logger: slog.New(slog.DiscardHandler), store: store}, store
}

func seedSession(t *testing.T, store *session.Store, user, assistant string) string {
	t.Helper()
	id, _, err := store.CreateOrGet("")
	if err != nil {
		t.Fatalf("CreateOrGet() error = %v", err)
	}
	if err := store.AppendExchange(id, user, assistant); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}
	return id
}

func TestSessionList(t *testing.T) {
	t.Parallel()

	h, store := newSessionHandler(t)
	seedSession(t, store, "q1", "a1")
	seedSession(t, store, "q2", "a2")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	h.list(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200", w.Code)
	}
	var body struct {
		Sessions []sessionSummary `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding list body: %v", err)
	}
	if len(body.Sessions) != 2 {
		t.Fatalf("sessions = %d, want 2", len(body.Sessions))
	}
	for _, s := range body.Sessions {
		if s.MessageCount != 2 {
			t.Errorf("session %s message_count = %d, want 2", s.ID, s.MessageCount)
		}
		if s.CreatedAt.IsZero() {
			t.Errorf("session %s created_at is zero", s.ID)
		}
	}
}

func TestSessionList_Empty(t *testing.T) {
	t.Parallel()

	h, _ := newSessionHandler(t)
	w := httptest.NewRecorder()
	h.list(w, httptest.NewRequest(http.MethodGet, "/sessions", nil))

	if got := w.Body.String(); got != `{"sessions":[]}`+"\n" {
		t.Errorf("empty list body = %q, want empty array not null", got)
	}
}

func TestSessionGet(t *testing.T) {
	t.Parallel()

	h, store := newSessionHandler(t)
	id := seedSession(t, store, "hello", "hi there")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/session/"+id, nil)
	r.SetPathValue("id", id)
	h.get(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("get status = %d, want 200", w.Code)
	}
	var detail sessionDetail
	if err := json.Unmarshal(w.Body.Bytes(), &detail); err != nil {
		t.Fatalf("decoding detail: %v", err)
	}
	if detail.ID != id {
		t.Errorf("detail.ID = %q, want %q", detail.ID, id)
	}
	if len(detail.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(detail.Messages))
	}
	if detail.Messages[0].Role != "user" || detail.Messages[0].Content != "hello" {
		t.Errorf("messages[0] = %+v, want user hello", detail.Messages[0])
	}
	if detail.Messages[1].Role != "assistant" {
		t.Errorf("messages[1].Role = %q, want assistant", detail.Messages[1].Role)
	}
}

func TestSessionGet_NotFound(t *testing.T) {
	t.Parallel()

	h, _ := newSessionHandler(t)
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/session/ghost", nil)
	r.SetPathValue("id", "ghost")
	h.get(w, r)

	if w.Code != http.StatusNotFound {
		t.Fatalf("get(absent) status = %d, want 404", w.Code)
	}
	var body errorBody
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if body.Error.Code != "not_found" {
		t.Errorf("error code = %q, want not_found", body.Error.Code)
	}
}

func TestSessionDelete(t *testing.T) {
	t.Parallel()

	h, store := newSessionHandler(t)
	id := seedSession(t, store, "q", "a")

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/session/"+id, nil)
	r.SetPathValue("id", id)
	h.delete(w, r)

	if w.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", w.Code)
	}
	if _, err := store.Get(id); err == nil {
		t.Error("store.Get() after delete = nil error, want not found")
	}

	// Deleting again reports 404.
	w = httptest.NewRecorder()
	h.delete(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("second delete status = %d, want 404", w.Code)
	}
}
