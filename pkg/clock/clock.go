// Package clock provides the time source used by the ledger and calendar helpers
// for due date arithmetic.
package clock

import (
	"sync"
	"time"
)

// Clock returns the current time.
type Clock interface {
	Now() time.Time
}

// Func adapts a plain function to Clock.
type Func func() time.Time

// Now implements Clock.
func (f Func) Now() time.Time {
	return f()
}

type systemClock struct {
	loc *time.Location
}

// NewSystem returns a wall clock reporting times in loc (UTC when nil).
func NewSystem(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return systemClock{loc: loc}
}

func (c systemClock) Now() time.Time {
	return time.Now().In(c.loc)
}

// Fixed is a manually controlled clock for tests and batch tooling.
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed returns a clock frozen at t.
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t}
}

// Now implements Clock.
func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Set moves the clock to t.
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t
	f.mu.Unlock()
}

// Advance moves the clock forward by d.
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// AddMonths adds calendar months to t. The day of month is kept when the
// target month has it and clamped to the last day otherwise, so Jan 31 + 1
// month is Feb 28 (or 29), never Mar 3 as time.AddDate would produce.
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	idx := int(month) - 1 + months
	year += idx / 12
	idx %= 12
	if idx < 0 {
		idx += 12
		year--
	}
	target := time.Month(idx + 1)
	if last := DaysIn(year, target, t.Location()); day > last {
		day = last
	}
	return time.Date(year, target, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month, loc *time.Location) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}

// DaysBetween returns floor((to - from) / 24h).
func DaysBetween(from, to time.Time) int {
	const day = 24 * time.Hour
	diff := to.Sub(from)
	days := int(diff / day)
	if diff < 0 && diff%day != 0 {
		days--
	}
	return days
}

// StartOfDay truncates t to midnight in its location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
