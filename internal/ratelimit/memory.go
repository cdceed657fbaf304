package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// MemoryLimiter is the single-process fallback used when redis is not
// configured: a fixed-window counter per competitor.
type MemoryLimiter struct {
	mu     sync.Mutex
	clock  clockwork.Clock
	limit  int
	window time.Duration
	counts map[uint]*windowCount
}

type windowCount struct {
	started time.Time
	count   int
}

func NewMemoryLimiter(clock clockwork.Clock, perSecond int) *MemoryLimiter {
	return &MemoryLimiter{
		clock:  clock,
		limit:  perSecond,
		window: time.Second,
		counts: make(map[uint]*windowCount),
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, competitorID uint) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	current, ok := l.counts[competitorID]
	if !ok || now.Sub(current.started) >= l.window {
		l.counts[competitorID] = &windowCount{started: now, count: 1}
		return true, nil
	}

	current.count++
	return current.count <= l.limit, nil
}
