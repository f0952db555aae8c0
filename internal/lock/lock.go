// Package lock serializes concurrent rewrites of the same article. A claim is held for a
// bounded TTL so a crashed process cannot block an article forever.
package lock

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JakeFAU/article-rewriter/internal/article"
)

// Memory is a process-local Claimer.
type Memory struct {
	mu   sync.Mutex
	held map[string]memoryClaim
	now  func() time.Time
}

type memoryClaim struct {
	token   string
	expires time.Time
}

// NewMemory returns an empty in-process Claimer.
func NewMemory() *Memory {
	return &Memory{held: make(map[string]memoryClaim), now: time.Now}
}

// Claim takes the lock for id or returns article.ErrInProgress when another caller holds an
// unexpired claim. The returned release func is safe to call more than once.
func (m *Memory) Claim(_ context.Context, id string, ttl time.Duration) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if c, ok := m.held[id]; ok && now.Before(c.expires) {
		return nil, article.ErrInProgress
	}
	token := uuid.NewString()
	m.held[id] = memoryClaim{token: token, expires: now.Add(ttl)}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			if c, ok := m.held[id]; ok && c.token == token {
				delete(m.held, id)
			}
		})
	}, nil
}
