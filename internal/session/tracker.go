package session

// Tracker counts unlocked collectibles. The count never decreases.
type Tracker struct {
	total int
	count int
}

func NewTracker(total int) *Tracker {
	return &Tracker{total: total}
}

// Unlock raises the count to n, clamped to the total, and returns the new count.
func (t *Tracker) Unlock(n int) int {
	n = min(n, t.total)
	t.count = max(t.count, n)
	return t.count
}

func (t *Tracker) Count() int { return t.count }

func (t *Tracker) Total() int { return t.total }

// ShouldReveal reports whether every collectible is unlocked.
func (t *Tracker) ShouldReveal() bool { return t.count >= t.total }
