package domain

import "github.com/samber/lo"

// Reactions maps an emoji to the ordered list of user ids who reacted
// with it. Invariants: a user id appears at most once per emoji, and an
// emoji whose user list becomes empty is removed from the map entirely.
type Reactions map[string][]string

func (r Reactions) Clone() Reactions {
	if r == nil {
		return Reactions{}
	}
	out := make(Reactions, len(r))
	for emoji, users := range r {
		out[emoji] = append([]string(nil), users...)
	}
	return out
}

func (r Reactions) Has(emoji, userID string) bool {
	return lo.Contains(r[emoji], userID)
}

// Toggle returns a copy of the mapping with the user's reaction for the
// emoji flipped: added when absent, removed when present. The receiver
// is never mutated, so callers can keep it as a rollback snapshot.
func (r Reactions) Toggle(emoji, userID string) Reactions {
	out := r.Clone()
	if out.Has(emoji, userID) {
		remaining := lo.Without(out[emoji], userID)
		if len(remaining) == 0 {
			delete(out, emoji)
		} else {
			out[emoji] = remaining
		}
		return out
	}
	out[emoji] = append(out[emoji], userID)
	return out
}

// Equal reports whether two mappings hold the same emoji keys with the
// same user ids, regardless of order. The server does not guarantee
// reactor ordering, so a reordered echo must not read as a change.
func (r Reactions) Equal(other Reactions) bool {
	if len(r) != len(other) {
		return false
	}
	for emoji, users := range r {
		if !lo.ElementsMatch(users, other[emoji]) || len(users) != len(other[emoji]) {
			return false
		}
	}
	return true
}
