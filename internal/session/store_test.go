package session

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
)

func TestCreateOrGet_GeneratesID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id, history, err := s.CreateOrGet("")
	if err != nil {
		t.Fatalf("CreateOrGet(\"\") error = %v", err)
	}
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("CreateOrGet(\"\") id = %q, want valid UUID: %v", id, err)
	}
	if len(history) != 0 {
		t.Errorf("CreateOrGet(\"\") history length = %d, want 0", len(history))
	}
}

func TestCreateOrGet_ClientSuppliedID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id, _, err := s.CreateOrGet("my-session")
	if err != nil {
		t.Fatalf("CreateOrGet(my-session) error = %v", err)
	}
	if id != "my-session" {
		t.Errorf("CreateOrGet(my-session) id = %q, want %q", id, "my-session")
	}

	// Second resolve returns the accumulated history.
	if err := s.AppendExchange(id, "hi", "hello"); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}
	_, history, err := s.CreateOrGet("my-session")
	if err != nil {
		t.Fatalf("CreateOrGet(my-session) second call error = %v", err)
	}
	if len(history) != 2 {
		t.Errorf("history length = %d, want 2", len(history))
	}
}

func TestCreateOrGet_RejectsOversizedID(t *testing.T) {
	t.Parallel()

	s := NewStore()
	_, _, err := s.CreateOrGet(strings.Repeat("x", MaxIDLength+1))
	if !errors.Is(err, ErrInvalidID) {
		t.Errorf("CreateOrGet(long id) error = %v, want ErrInvalidID", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if _, err := s.Get("never-created"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestAppend_NotFound(t *testing.T) {
	t.Parallel()

	s := NewStore()
	err := s.Append("ghost", Message{Role: RoleUser, Content: "hi"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Append(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestAppend_NotFoundWithNoMessages(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if err := s.Append("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Append(unknown, no messages) error = %v, want ErrNotFound", err)
	}

	// A known id with no messages is a no-op, not an error.
	id, _, _ := s.CreateOrGet("known")
	if err := s.Append(id); err != nil {
		t.Errorf("Append(known, no messages) error = %v, want nil", err)
	}
}

func TestAppendExchange_PreservesOrder(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id, _, _ := s.CreateOrGet("ordered")
	if err := s.AppendExchange(id, "question", "answer"); err != nil {
		t.Fatalf("AppendExchange() error = %v", err)
	}

	history, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}
	if history[0].Role != RoleUser || history[0].Content != "question" {
		t.Errorf("history[0] = %+v, want user/question", history[0])
	}
	if history[1].Role != RoleAssistant || history[1].Content != "answer" {
		t.Errorf("history[1] = %+v, want assistant/answer", history[1])
	}
}

func TestDelete(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id, _, _ := s.CreateOrGet("doomed")

	if err := s.Delete(id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := s.Get(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(deleted) error = %v, want ErrNotFound", err)
	}
	if err := s.Delete(id); !errors.Is(err, ErrNotFound) {
		t.Errorf("Delete(deleted) error = %v, want ErrNotFound", err)
	}
}

func TestList_SortedByCreation(t *testing.T) {
	t.Parallel()

	s := NewStore()
	s.CreateOrGet("a")
	s.CreateOrGet("b")
	s.AppendExchange("b", "u", "a")

	summaries := s.List()
	if len(summaries) != 2 {
		t.Fatalf("List() length = %d, want 2", len(summaries))
	}
	for _, sum := range summaries {
		if sum.ID == "b" && sum.MessageCount != 2 {
			t.Errorf("List() session b message_count = %d, want 2", sum.MessageCount)
		}
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id, _, _ := s.CreateOrGet("copy")
	s.AppendExchange(id, "u", "a")

	history, _ := s.Get(id)
	history[0].Content = "mutated"

	fresh, _ := s.Get(id)
	if fresh[0].Content != "u" {
		t.Errorf("store history mutated through returned slice: %q", fresh[0].Content)
	}
}

// Two concurrent turns on the same session must both land as whole pairs:
// no message lost, no pair split by the other turn's messages.
func TestAppendExchange_ConcurrentPairsSurvive(t *testing.T) {
	t.Parallel()

	s := NewStore()
	id, _, _ := s.CreateOrGet("race")

	const turns = 50
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.AppendExchange(id, "u", "a"); err != nil {
				t.Errorf("AppendExchange() error = %v", err)
			}
		}()
	}
	wg.Wait()

	history, err := s.Get(id)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if len(history) != 2*turns {
		t.Fatalf("history length = %d, want %d", len(history), 2*turns)
	}
	for i := 0; i < len(history); i += 2 {
		if history[i].Role != RoleUser || history[i+1].Role != RoleAssistant {
			t.Fatalf("pair at %d split: roles %q, %q", i, history[i].Role, history[i+1].Role)
		}
	}
}

func TestLen(t *testing.T) {
	t.Parallel()

	s := NewStore()
	if s.Len() != 0 {
		t.Errorf("Len() = %d, want 0", s.Len())
	}
	s.CreateOrGet("one")
	s.CreateOrGet("two")
	if s.Len() != 2 {
		t.Errorf("Len() = %d, want 2", s.Len())
	}
}
