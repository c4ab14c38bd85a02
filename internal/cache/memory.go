package cache

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	value     []byte
	expiresAt time.Time
}

// DefaultMaxEntries — предел записей Memory по умолчанию.
const DefaultMaxEntries = 10000

// Memory — кэш в памяти процесса; используется, когда Redis не сконфигурирован.
// Просроченные записи удаляются при чтении, а при заполнении до предела
// Set вычищает все просроченные и, если места всё ещё нет, вытесняет
// запись с ближайшим сроком.
type Memory struct {
	mu         sync.Mutex
	items      map[string]entry
	maxEntries int
	now        func() time.Time
}

// MemoryOption настраивает Memory.
type MemoryOption func(*Memory)

// WithMaxEntries задаёт предел числа записей; n <= 0 оставляет значение по умолчанию.
func WithMaxEntries(n int) MemoryOption {
	return func(m *Memory) {
		if n > 0 {
			m.maxEntries = n
		}
	}
}

// NewMemory создаёт пустой кэш.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		items:      make(map[string]entry),
		maxEntries: DefaultMaxEntries,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Len — текущее число записей, включая ещё не вычищенные просроченные.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.items)
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.items[key]
	if !ok {
		return nil, false, nil
	}

	if !e.expiresAt.IsZero() && !m.now().Before(e.expiresAt) {
		delete(m.items, key)
		return nil, false, nil
	}

	return append([]byte(nil), e.value...), true, nil
}

// Set сохраняет копию value; ttl <= 0 — без срока.
func (m *Memory) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if _, exists := m.items[key]; !exists && len(m.items) >= m.maxEntries {
		m.makeRoomLocked(now)
	}

	e := entry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = now.Add(ttl)
	}
	m.items[key] = e

	return nil
}

func (m *Memory) makeRoomLocked(now time.Time) {
	for k, e := range m.items {
		if !e.expiresAt.IsZero() && !now.Before(e.expiresAt) {
			delete(m.items, k)
		}
	}
	if len(m.items) < m.maxEntries {
		return
	}

	// Записи без срока вытесняются последними.
	victim, soonest := "", time.Time{}
	for k, e := range m.items {
		if victim == "" || expiresBefore(e.expiresAt, soonest) {
			victim, soonest = k, e.expiresAt
		}
	}
	delete(m.items, victim)
}

func expiresBefore(a, b time.Time) bool {
	switch {
	case a.IsZero():
		return false
	case b.IsZero():
		return true
	default:
		return a.Before(b)
	}
}

func (m *Memory) Close() error { return nil }

var _ ResponseCache = (*Memory)(nil)
