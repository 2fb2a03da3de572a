package ratelimiter

import (
	"sync"
	"time"
)

// Memo runs a boolean probe at most once per interval and replays the last
// result in between. It is safe for concurrent use; callers arriving while
// a probe runs wait for it and share its result.
type Memo struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
	value    bool
	now      func() time.Time
}

// NewMemo creates a Memo. A zero interval runs the probe on every call.
func NewMemo(interval time.Duration) *Memo {
	return &Memo{
		interval: interval,
		now:      time.Now,
	}
}

// Get returns the cached result, or runs probe if the interval elapsed.
// The probe runs with the Memo locked, so concurrent callers block until
// it returns; a probe bounded by a timeout bounds their wait by the same.
func (m *Memo) Get(probe func() bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if !m.last.IsZero() && now.Sub(m.last) < m.interval {
		return m.value
	}

	m.value = probe()
	m.last = now
	return m.value
}
