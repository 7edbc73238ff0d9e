package bot

import "time"

// Backoff is the reconnect delay policy: doubling from Initial, capped at Max,
// reset after a successful authentication. Not safe for concurrent use; the
// session's reconnect loop is the only caller.
type Backoff struct {
	Initial time.Duration
	Max     time.Duration

	cur time.Duration
}

// Next returns the delay to wait before the next connection attempt.
func (b *Backoff) Next() time.Duration {
	if b.cur == 0 {
		b.cur = b.Initial
		return b.cur
	}
	b.cur *= 2
	if b.cur > b.Max {
		b.cur = b.Max
	}
	return b.cur
}

// Reset restores the initial delay for the next failure streak.
func (b *Backoff) Reset() {
	b.cur = 0
}
