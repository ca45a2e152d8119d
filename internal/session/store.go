package session

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// record is the store's internal session state.
type record struct {
	createdAt time.Time
	messages  []Message
}

// Store is an RWMutex-guarded map from session ID to conversation history.
// The zero value is not usable; create with NewStore.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*record
}

// NewStore creates an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*record)}
}

// validateID checks a client-supplied session ID.
// Empty is allowed only where the caller generates an ID (CreateOrGet).
func validateID(id string) error {
	if id == "" {
		return fmt.Errorf("%w: empty", ErrInvalidID)
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("%w: length %d exceeds %d", ErrInvalidID, len(id), MaxIDLength)
	}
	return nil
}

// CreateOrGet resolves a session for a chat turn.
// An empty id generates a fresh UUID with an empty history. A known id
// returns its current history; an unknown id creates an empty session
// under that id. The returned slice is a copy.
func (s *Store) CreateOrGet(id string) (string, []Message, error) {
	if id == "" {
		id = uuid.New().String()
	} else if err := validateID(id); err != nil {
		return "", nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		rec = &record{createdAt: time.Now()}
		s.sessions[id] = rec
	}
	return id, copyMessages(rec.messages), nil
}

// Get returns a copy of the session's history.
func (s *Store) Get(id string) ([]Message, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return copyMessages(rec.messages), nil
}

// CreatedAt returns the session's creation time.
func (s *Store) CreatedAt(id string) (time.Time, error) {
	if err := validateID(id); err != nil {
		return time.Time{}, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.sessions[id]
	if !ok {
		return time.Time{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rec.createdAt, nil
}

// Append adds messages to an existing session, preserving order.
// Fails with ErrNotFound if the id is unknown.
func (s *Store) Append(id string, msgs ...Message) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	rec.messages = append(rec.messages, msgs...)
	return nil
}

// AppendExchange appends a completed user/assistant pair atomically.
// The pair lands adjacently even when other goroutines append to the same
// session concurrently.
func (s *Store) AppendExchange(id, userText, assistantText string) error {
	now := time.Now()
	return s.Append(id,
		Message{Role: RoleUser, Content: userText, CreatedAt: now},
		Message{Role: RoleAssistant, Content: assistantText, CreatedAt: now},
	)
}

// List returns summaries of all sessions, oldest first.
func (s *Store) List() []Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Summary, 0, len(s.sessions))
	for id, rec := range s.sessions {
		out = append(out, Summary{
			ID:           id,
			MessageCount: len(rec.messages),
			CreatedAt:    rec.createdAt,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Delete removes a session. Fails with ErrNotFound if absent, so a repeated
// delete reports the session is already gone rather than silently succeeding.
func (s *Store) Delete(id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.sessions, id)
	return nil
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func copyMessages(msgs []Message) []Message {
	if msgs == nil {
		return nil
	}
	cp := make([]Message, len(msgs))
	copy(cp, msgs)
	return cp
}
