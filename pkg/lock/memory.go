package lock

import (
	"context"
	"sync"
	"time"
)

// MemoryLocker locks within one process.
type MemoryLocker struct {
	mu    sync.Mutex
	now   func() time.Time
	held  map[string]memoryEntry
	token uint64
}

type memoryEntry struct {
	token   uint64
	expires time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{
		now:  time.Now,
		held: make(map[string]memoryEntry),
	}
}

func (l *MemoryLocker) TryLock(_ context.Context, key string, ttl time.Duration) (Lock, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	if entry, ok := l.held[key]; ok && now.Before(entry.expires) {
		return nil, ErrLocked
	}

	l.token++
	l.held[key] = memoryEntry{token: l.token, expires: now.Add(ttl)}

	return &memoryLock{locker: l, key: key, token: l.token}, nil
}

func (l *MemoryLocker) Close() error {
	return nil
}

type memoryLock struct {
	locker *MemoryLocker
	key    string
	token  uint64
}

// Release is a no-op when the lock expired and was taken by someone else.
func (m *memoryLock) Release(_ context.Context) error {
	m.locker.mu.Lock()
	defer m.locker.mu.Unlock()

	if entry, ok := m.locker.held[m.key]; ok && entry.token == m.token {
		delete(m.locker.held, m.key)
	}

	return nil
}
