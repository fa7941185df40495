package store

import (
	"context"
	"sync"
	"time"
)

// Lifecycle stages recorded per reflex id.
const (
	StageCompleted = "completed"
	StageFailed    = "failed"
	StageHalted    = "halted"
)

// Store persists correlation-id marks, lifecycle stages, and
// connection-scoped session values.
type Store interface {
	IsInvoked(ctx context.Context, reflexID string) (bool, error)
	MarkInvoked(ctx context.Context, reflexID string, ttl time.Duration) error
	SetStage(ctx context.Context, reflexID, stage string, ttl time.Duration) error
	GetStage(ctx context.Context, reflexID string) (string, error)
	GetSessionValue(ctx context.Context, connectionID, key string) (string, error)
	SetSessionValue(ctx context.Context, connectionID, key, value string) error
}

type MemoryStore struct {
	mu       sync.RWMutex
	invoked  map[string]time.Time
	stages   map[string]string
	sessions map[string]map[string]string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		invoked:  make(map[string]time.Time),
		stages:   make(map[string]string),
		sessions: make(map[string]map[string]string),
	}
}

func (m *MemoryStore) IsInvoked(_ context.Context, reflexID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	expireAt, ok := m.invoked[reflexID]
	if !ok {
		return false, nil
	}
	return time.Now().Before(expireAt), nil
}

func (m *MemoryStore) MarkInvoked(_ context.Context, reflexID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invoked[reflexID] = time.Now().Add(ttl)
	return nil
}

func (m *MemoryStore) SetStage(_ context.Context, reflexID, stage string, _ time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stages[reflexID] = stage
	return nil
}

func (m *MemoryStore) GetStage(_ context.Context, reflexID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.stages[reflexID], nil
}

func (m *MemoryStore) GetSessionValue(_ context.Context, connectionID, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.sessions[connectionID][key], nil
}

func (m *MemoryStore) SetSessionValue(_ context.Context, connectionID, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[connectionID]
	if !ok {
		session = make(map[string]string)
		m.sessions[connectionID] = session
	}
	session[key] = value
	return nil
}
