package date

import (
	"fmt"
	"time"
)

// Hours describes when the market is open: a set of weekdays and a [Open, Close) wall clock window in Location.
type Hours struct {
	Location *time.Location
	Weekdays []time.Weekday
	Open     time.Duration // since midnight
	Close    time.Duration // since midnight, exclusive
}

// Kolkata returns the Asia/Kolkata location, or a fixed +05:30 zone if the tz database is unavailable.
func Kolkata() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*60*60+30*60)
	}
	return loc
}

// NSEHours is the regular NSE equity derivatives session, 09:15 to 15:30 IST, Monday to Friday.
func NSEHours() Hours {
	return Hours{
		Location: Kolkata(),
		Weekdays: []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday},
		Open:     9*time.Hour + 15*time.Minute,
		Close:    15*time.Hour + 30*time.Minute,
	}
}

// ParseClock parses a wall clock time such as "09:15" into the duration since midnight.
func ParseClock(s string) (time.Duration, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q, want HH:MM: %w", s, err)
	}
	return time.Duration(t.Hour())*time.Hour + time.Duration(t.Minute())*time.Minute, nil
}

// timeSinceMidnight returns the number of seconds that have elapsed since midnight of the given day.
func timeSinceMidnight(t time.Time) time.Duration {
	year, month, day := t.Date()
	t2 := time.Date(year, month, day, 0, 0, 0, 0, t.Location())
	return t.Sub(t2)
}

// Validate rejects windows that can never be open. A window that wraps past midnight is treated as a mistake.
func (h Hours) Validate() error {
	if h.Open < 0 || h.Close > 24*time.Hour {
		return fmt.Errorf("market window %s-%s is outside of a day", h.Open, h.Close)
	}
	if h.Open >= h.Close {
		return fmt.Errorf("market opens at %s but closes at %s", h.Open, h.Close)
	}
	if len(h.Weekdays) == 0 {
		return fmt.Errorf("no trading weekdays configured")
	}
	return nil
}

func (h Hours) location() *time.Location {
	if h.Location == nil {
		return time.UTC
	}
	return h.Location
}

func (h Hours) tradingDay(day time.Weekday) bool {
	for _, w := range h.Weekdays {
		if w == day {
			return true
		}
	}
	return false
}

// InTradingHours returns whether the market is open at t.
func (h Hours) InTradingHours(t time.Time) bool {
	local := t.In(h.location())

	if !h.tradingDay(local.Weekday()) {
		return false
	}

	since := timeSinceMidnight(local)

	return since >= h.Open && since < h.Close
}

// NextOpen returns the next time the market opens at or after t. If the market is open at t, t is returned.
func (h Hours) NextOpen(t time.Time) (time.Time, bool) {
	if h.InTradingHours(t) {
		return t, true
	}

	local := t.In(h.location())
	year, month, day := local.Date()

	// A week ahead always covers every configured weekday.
	for i := 0; i <= 7; i++ {
		midnight := time.Date(year, month, day+i, 0, 0, 0, 0, h.location())
		if !h.tradingDay(midnight.Weekday()) {
			continue
		}
		open := midnight.Add(h.Open)
		if !open.Before(local) {
			return open, true
		}
	}

	return time.Time{}, false
}
