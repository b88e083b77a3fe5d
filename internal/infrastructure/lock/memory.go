package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type holder struct {
	token     string
	expiresAt time.Time
}

// InMemoryLocker is a process-local Locker
type InMemoryLocker struct {
	mu      sync.Mutex
	holders map[string]holder
	now     func() time.Time
}

// NewInMemoryLocker creates an empty InMemoryLocker
func NewInMemoryLocker() *InMemoryLocker {
	return &InMemoryLocker{
		holders: make(map[string]holder),
		now:     time.Now,
	}
}

// Acquire takes key unless an unexpired lease holds it
func (l *InMemoryLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if h, ok := l.holders[key]; ok && now.Before(h.expiresAt) {
		return nil, ErrLockHeld
	}

	token := uuid.NewString()
	l.holders[key] = holder{token: token, expiresAt: now.Add(ttl)}
	return &memoryLease{locker: l, key: key, token: token}, nil
}

func (l *InMemoryLocker) release(key, token string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if h, ok := l.holders[key]; ok && h.token == token {
		delete(l.holders, key)
	}
}

type memoryLease struct {
	locker *InMemoryLocker
	key    string
	token  string
}

func (m *memoryLease) Key() string { return m.key }

func (m *memoryLease) Release(context.Context) error {
	m.locker.release(m.key, m.token)
	return nil
}
