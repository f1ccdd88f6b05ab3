package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

// SessionStore 登录态 token 存储
type SessionStore interface {
	AddUserToken(ctx context.Context, userID uint64, token string, ttl time.Duration) error
	GetUserToken(ctx context.Context, userID uint64) (string, error)
	ExtendUserToken(ctx context.Context, userID uint64, ttl time.Duration) error
	DeleteUserToken(ctx context.Context, userID uint64) error
}

type memoryEntry struct {
	value     string
	expiresAt time.Time
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

// MemorySessionStore 未启用 redis 时的进程内实现
type MemorySessionStore struct {
	mu   sync.Mutex
	data map[uint64]memoryEntry
}

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{data: make(map[uint64]memoryEntry)}
}

func (m *MemorySessionStore) AddUserToken(_ context.Context, userID uint64, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[userID] = memoryEntry{value: token, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemorySessionStore) GetUserToken(_ context.Context, userID uint64) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[userID]
	if !ok || e.expired(time.Now()) {
		delete(m.data, userID)
		return "", ErrSessionNotFound
	}
	return e.value, nil
}

func (m *MemorySessionStore) ExtendUserToken(_ context.Context, userID uint64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.data[userID]
	if !ok {
		return ErrSessionNotFound
	}
	e.expiresAt = time.Now().Add(ttl)
	m.data[userID] = e
	return nil
}

func (m *MemorySessionStore) DeleteUserToken(_ context.Context, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, userID)
	return nil
}

// MemoryThrottle 未启用 redis 时的进程内邮件冷却
type MemoryThrottle struct {
	mu   sync.Mutex
	data map[string]time.Time
}

func NewMemoryThrottle() *MemoryThrottle {
	return &MemoryThrottle{data: make(map[string]time.Time)}
}

func throttleKey(scope, email string) string {
	return scope + ":" + strings.ToLower(email)
}

func (m *MemoryThrottle) Acquire(_ context.Context, scope, email string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now()
	k := throttleKey(scope, email)
	if until, ok := m.data[k]; ok && now.Before(until) {
		return false, nil
	}
	m.data[k] = now.Add(ttl)
	return true, nil
}

func (m *MemoryThrottle) Release(_ context.Context, scope, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, throttleKey(scope, email))
	return nil
}
