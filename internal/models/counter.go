package models

import "time"

// DailyTradeCounter enforces a per-day trade cap. The day boundary is the
// broker server's calendar date, so the reset is driven by broker timestamps
// rather than local time.
type DailyTradeCounter struct {
	Count int
	Date  time.Time // truncated to the calendar day
}

// sameDay compares calendar dates in the timestamp's own location.
func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// Observe rolls the counter to zero when now crosses a calendar-day boundary.
// It returns true only when an actual day-boundary reset happened.
func (c *DailyTradeCounter) Observe(now time.Time) bool {
	if c.Date.IsZero() {
		c.Date = now
		return false
	}
	if !sameDay(c.Date, now) {
		c.Count = 0
		c.Date = now
		return true
	}
	return false
}

// Allow reports whether another trade fits under the cap. A cap of zero or
// below disables the limit.
func (c *DailyTradeCounter) Allow(maxPerDay int) bool {
	if maxPerDay <= 0 {
		return true
	}
	return c.Count < maxPerDay
}

// Bump records one executed trade on the current day.
func (c *DailyTradeCounter) Bump(now time.Time) {
	c.Observe(now)
	c.Count++
}
