package storage

import (
	"context"
	"sync"
	"time"
)

var _ Backend = (*MemoryBackend)(nil)

type MemoryBackend struct {
	mu         sync.RWMutex
	identities map[string]LinkedIdentity
	byChatID   map[string]string
	attendance AttendanceState

	locksMu sync.Mutex
	locks   map[string]time.Time

	now  func() time.Time
	done chan struct{}
}

func NewMemoryBackend() *MemoryBackend {
	m := &MemoryBackend{
		identities: make(map[string]LinkedIdentity),
		byChatID:   make(map[string]string),
		locks:      make(map[string]time.Time),
		now:        time.Now,
		done:       make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

func (m *MemoryBackend) Upsert(_ context.Context, id LinkedIdentity) error {
	if id.UpdatedAt.IsZero() {
		id.UpdatedAt = m.now()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if prev, ok := m.identities[id.Email]; ok && prev.ChatUserID != id.ChatUserID {
		delete(m.byChatID, prev.ChatUserID)
	}
	m.identities[id.Email] = id
	m.byChatID[id.ChatUserID] = id.Email
	return nil
}

func (m *MemoryBackend) GetByEmail(_ context.Context, email string) (LinkedIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	id, ok := m.identities[email]
	if !ok {
		return LinkedIdentity{}, ErrNotFound
	}
	return id, nil
}

func (m *MemoryBackend) GetByChatUserID(_ context.Context, chatUserID string) (LinkedIdentity, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	email, ok := m.byChatID[chatUserID]
	if !ok {
		return LinkedIdentity{}, ErrNotFound
	}
	return m.identities[email], nil
}

func (m *MemoryBackend) GetAttendance(_ context.Context) (AttendanceState, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.attendance, nil
}

func (m *MemoryBackend) SaveAttendance(_ context.Context, s AttendanceState) error {
	m.mu.Lock()
	m.attendance = s
	m.mu.Unlock()
	return nil
}

func (m *MemoryBackend) AcquireOnce(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.locksMu.Lock()
	defer m.locksMu.Unlock()

	now := m.now()
	if exp, ok := m.locks[key]; ok && now.Before(exp) {
		return false, nil
	}
	m.locks[key] = now.Add(ttl)
	return true, nil
}

func (m *MemoryBackend) Close() error {
	close(m.done)
	return nil
}

func (m *MemoryBackend) Ping(_ context.Context) error {
	return nil
}

func (m *MemoryBackend) cleanupLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.locksMu.Lock()
			now := m.now()
			for key, exp := range m.locks {
				if !now.Before(exp) {
					delete(m.locks, key)
				}
			}
			m.locksMu.Unlock()
		case <-m.done:
			return
		}
	}
}
