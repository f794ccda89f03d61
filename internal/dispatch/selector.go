// Package dispatch implements the gateway's admission and failover engine:
// deciding which backends are eligible for a request, trying them in priority
// order, classifying each upstream outcome, and scheduling cooldowns when a
// backend signals rate limiting.
package dispatch

import (
	"time"

	"github.com/relaymux/relaymux/backends"
	"github.com/relaymux/relaymux/internal/state"
)

// SelectCandidates filters the catalog's backends down to the ones currently
// eligible for dispatch, preserving catalog (priority) order.
//
// A backend is eligible when it has no usage record, no unblock time, or an
// unblock time at or before now. Elapsed cooldowns are cleared in place
// (usedTokens reset to 0, unblockAt removed) and the returned changed flag
// tells the caller that the mutated state needs one flush. A backend whose
// usage meets a configured maxTokens cap stays excluded even without an
// unblock time; that covers a cap that was hit without its cooldown write
// landing.
//
// The function is pure apart from mutating s; run it inside the state
// Manager's exclusive update so the expiry flush cannot race other writers.
func SelectCandidates(list []backends.Backend, s state.State, now time.Time) (candidates []backends.Backend, changed bool) {
	candidates = make([]backends.Backend, 0, len(list))
	for _, b := range list {
		key := b.UsageKey()
		rec, ok := s[key]
		if !ok {
			candidates = append(candidates, b)
			continue
		}
		if rec.UnblockAt != nil {
			if rec.UnblockAt.After(now) {
				continue
			}
			rec.UnblockAt = nil
			rec.UsedTokens = 0
			s[key] = rec
			changed = true
		}
		if b.MaxTokens > 0 && rec.UsedTokens >= b.MaxTokens {
			continue
		}
		candidates = append(candidates, b)
	}
	return candidates, changed
}
