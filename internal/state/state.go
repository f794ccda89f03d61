// Package state persists per-backend usage and cooldown records. The state is
// one small document keyed by "providerId:model"; it is read fresh before
// every dispatch decision and written back whole, so out-of-process edits
// (manual intervention on the state file) are picked up on the next request.
package state

import (
	"context"
	"time"
)

// Record is the usage/cooldown entry for one backend.
type Record struct {
	// UsedTokens accumulates reported usage tokens within the current
	// cooldown window.
	UsedTokens int `json:"usedTokens"`
	// UnblockAt, when set and in the future, excludes the backend from
	// dispatch until it elapses.
	UnblockAt *time.Time `json:"unblockAt,omitempty"`
}

// Blocked reports whether the record carries an active cooldown at now.
func (r Record) Blocked(now time.Time) bool {
	return r.UnblockAt != nil && r.UnblockAt.After(now)
}

// State maps a backend usage key to its record.
type State map[string]Record

// Clone returns a deep copy of the state document.
func (s State) Clone() State {
	cp := make(State, len(s))
	for k, r := range s {
		if r.UnblockAt != nil {
			t := *r.UnblockAt
			r.UnblockAt = &t
		}
		cp[k] = r
	}
	return cp
}

// Store is the durable document the state lives in.
//
// Read returns an empty state (and a nil error) when the backing document is
// absent or unparseable: corruption means "no known cooldowns", never a
// serving failure. Write replaces the whole document and is not transactional
// against concurrent writers; all mutation therefore goes through Manager.
type Store interface {
	Read(ctx context.Context) (State, error)
	Write(ctx context.Context, s State) error
}
