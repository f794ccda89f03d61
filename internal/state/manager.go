package state

import (
	"context"
	"sync"
	"time"

	"github.com/relaymux/relaymux/cooldown"
)

// Manager is the single writer for the state document. Every
// read-modify-write cycle runs under one mutex, so concurrent requests that
// rate-limit the same backend cannot lose each other's updates even though
// the underlying Store has no transactional guarantees.
type Manager struct {
	mu    sync.Mutex
	store Store
}

// NewManager wraps a Store with the exclusive mutation lock.
func NewManager(store Store) *Manager {
	return &Manager{store: store}
}

// Update reads the current state, applies fn to it, and writes the document
// back when fn reports a change. The (possibly mutated) state is returned so
// callers can act on the same snapshot they just committed.
func (m *Manager) Update(ctx context.Context, fn func(State) bool) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, err := m.store.Read(ctx)
	if err != nil {
		// Stores treat corruption as empty state; a read error here is an
		// I/O failure and the safest dispatch decision is "no cooldowns".
		s = State{}
	}
	if fn(s) {
		if err := m.store.Write(ctx, s); err != nil {
			return s, err
		}
	}
	return s, nil
}

// Snapshot returns the current state without mutating it.
func (m *Manager) Snapshot(ctx context.Context) (State, error) {
	return m.Update(ctx, func(State) bool { return false })
}

// MarkRateLimited schedules (or extends) the cooldown for key after an
// upstream 429, using the record's existing unblock time as the monotonic
// floor. The computed unblock time is returned even if persisting it failed.
func (m *Manager) MarkRateLimited(ctx context.Context, key string, rule cooldown.Rule, now time.Time) (time.Time, error) {
	var unblockAt time.Time
	_, err := m.Update(ctx, func(s State) bool {
		rec := s[key]
		unblockAt = cooldown.NextUnblock(rule, rec.UnblockAt, now)
		rec.UnblockAt = &unblockAt
		s[key] = rec
		return true
	})
	return unblockAt, err
}

// RecordUsage adds tokens to the key's usage counter. When maxTokens is
// configured and the new total reaches it, a cooldown is scheduled unless one
// is already set; an active cooldown is never overwritten from this path.
func (m *Manager) RecordUsage(ctx context.Context, key string, tokens, maxTokens int, rule cooldown.Rule, now time.Time) error {
	if tokens <= 0 {
		return nil
	}
	_, err := m.Update(ctx, func(s State) bool {
		rec := s[key]
		rec.UsedTokens += tokens
		if maxTokens > 0 && rec.UsedTokens >= maxTokens && rec.UnblockAt == nil {
			t := cooldown.NextUnblock(rule, nil, now)
			rec.UnblockAt = &t
		}
		s[key] = rec
		return true
	})
	return err
}
