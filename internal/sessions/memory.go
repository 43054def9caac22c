package sessions

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/missedcall-flow/internal/catalog"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]Session
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session), now: time.Now}
}

func (m *MemoryStore) Open(ctx context.Context, callerID, businessRef string, category catalog.CategoryKey) (*Session, error) {
	key, err := callerKey(callerID)
	if err != nil {
		return nil, err
	}
	if err := validateOpen(category); err != nil {
		return nil, err
	}
	now := m.now().UTC()
	s := Session{
		ID:          uuid.NewString(),
		CallerID:    key,
		Category:    category,
		BusinessRef: businessRef,
		Stage:       catalog.StageIntro,
		OpenedAt:    now,
		UpdatedAt:   now,
	}
	m.mu.Lock()
	m.sessions[key] = s
	m.mu.Unlock()
	return &s, nil
}

func (m *MemoryStore) Get(ctx context.Context, callerID string) (*Session, error) {
	key, err := callerKey(callerID)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, nil
	}
	return &s, nil
}

func (m *MemoryStore) Advance(ctx context.Context, callerID string, next catalog.Stage, selection string) (*Session, error) {
	key, err := callerKey(callerID)
	if err != nil {
		return nil, err
	}
	if err := validateStage(next); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[key]
	if !ok {
		return nil, ErrNoActiveSession
	}
	s, changed := advanced(s, next, selection, m.now().UTC())
	if changed {
		m.sessions[key] = s
	}
	return &s, nil
}

func (m *MemoryStore) Close(ctx context.Context, callerID string) error {
	key, err := callerKey(callerID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	delete(m.sessions, key)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) CloseSession(ctx context.Context, callerID, sessionID string) error {
	key, err := callerKey(callerID)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[key]; ok && s.ID == sessionID {
		delete(m.sessions, key)
	}
	return nil
}
