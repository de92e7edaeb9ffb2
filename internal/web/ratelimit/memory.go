package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Memory is a per-process sliding window limiter used when Redis is not
// configured
type Memory struct {
	mu      sync.Mutex
	opts    Options
	windows map[string][]time.Time
	now     func() time.Time
}

// NewMemory creates an in-memory limiter
func NewMemory(opts Options) (*Memory, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Memory{opts: opts, windows: make(map[string][]time.Time), now: time.Now}, nil
}

// Allow records a request for key if the window has room
func (m *Memory) Allow(_ context.Context, key string) (*Decision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	start := now.Add(-m.opts.Window)
	hits := m.windows[key]
	i := 0
	for i < len(hits) && !hits[i].After(start) {
		i++
	}
	hits = hits[i:]

	allowed := len(hits) < m.opts.Limit
	if allowed {
		hits = append(hits, now)
	}
	if len(hits) == 0 {
		delete(m.windows, key)
	} else {
		m.windows[key] = hits
	}

	reset := now.Add(m.opts.Window)
	if len(hits) > 0 {
		reset = hits[0].Add(m.opts.Window)
	}
	return &Decision{
		Limit:     m.opts.Limit,
		Remaining: max(m.opts.Limit-len(hits), 0),
		ResetAt:   reset,
		Allowed:   allowed,
	}, nil
}
