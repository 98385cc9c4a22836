package activity

import "time"

// Watermark separates already-delivered events from new ones.
//
// It is owned by a single cycle runner and is not safe for concurrent use.
type Watermark struct {
	// At is the CreatedAt of the newest event seen by the last non-empty fetch.
	At time.Time
	// FirstRun bypasses the At filter until the first successful cycle.
	FirstRun bool
}

// NewWatermark starts at now with FirstRun set.
func NewWatermark(now time.Time) *Watermark {
	return &Watermark{At: now, FirstRun: true}
}

// IsNew reports whether e falls after the watermark (always true on first run).
func (w Watermark) IsNew(e Event) bool {
	return w.FirstRun || e.CreatedAt.After(w.At)
}

// Advance records the result of a successful fetch. The watermark follows the
// newest fetched timestamp, not the newest delivered one; an empty batch
// leaves At untouched. FirstRun is cleared permanently either way.
func (w *Watermark) Advance(r Result) bool {
	w.FirstRun = false
	if r.Fetched() == 0 || r.Newest.IsZero() {
		return false
	}
	w.At = r.Newest
	return true
}
