// Package marketclock provides exchange-local (IST) session helpers. All
// stored timestamps are UTC; conversion to IST happens only here, at
// comparison time.
package marketclock

import (
	"math"
	"time"

	"nifty-signals/internal/models"
)

// IndiaLocation is the timezone for Indian markets.
var IndiaLocation *time.Location

func init() {
	var err error
	IndiaLocation, err = time.LoadLocation("Asia/Kolkata")
	if err != nil {
		// Fallback to UTC+5:30
		IndiaLocation = time.FixedZone("IST", 5*60*60+30*60)
	}
}

// Clock supplies the current time. Production code uses SystemClock; tests
// substitute a fixed clock.
type Clock interface {
	Now() time.Time
}

// SystemClock is the wall clock.
type SystemClock struct{}

// Now returns the current time.
func (SystemClock) Now() time.Time { return time.Now() }

// FixedClock always reports the same instant.
type FixedClock struct{ T time.Time }

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return c.T }

// Window is a daily wall-time window in IST, as minutes since midnight.
type Window struct {
	StartMinutes int
	EndMinutes   int
}

// NewWindow builds a window from IST wall times.
func NewWindow(startHour, startMin, endHour, endMin int) Window {
	return Window{
		StartMinutes: startHour*60 + startMin,
		EndMinutes:   endHour*60 + endMin,
	}
}

// Contains reports whether t falls inside the window. Both boundaries are
// exclusive of the end: [start, end).
func (w Window) Contains(t time.Time) bool {
	m := minutesIST(t)
	return m >= w.StartMinutes && m < w.EndMinutes
}

// ContainsInclusive reports whether t falls inside [start, end].
func (w Window) ContainsInclusive(t time.Time) bool {
	m := minutesIST(t)
	return m >= w.StartMinutes && m <= w.EndMinutes
}

// After reports whether t is at or past the window end.
func (w Window) After(t time.Time) bool {
	return minutesIST(t) >= w.EndMinutes
}

// BoundsOn returns the window start and end as instants on the trading day
// containing t.
func (w Window) BoundsOn(t time.Time) (start, end time.Time) {
	ist := t.In(IndiaLocation)
	midnight := time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, IndiaLocation)
	start = midnight.Add(time.Duration(w.StartMinutes) * time.Minute)
	end = midnight.Add(time.Duration(w.EndMinutes) * time.Minute)
	return start, end
}

func minutesIST(t time.Time) int {
	ist := t.In(IndiaLocation)
	return ist.Hour()*60 + ist.Minute()
}

// Sessions bundles the configured session windows for one trading day.
type Sessions struct {
	Market      Window // e.g. 09:30-15:15
	RangeWindow Window // e.g. 09:12-09:33
	EntryCutoff int    // IST minutes since midnight, e.g. 12:12 -> 732
}

// DefaultSessions returns the standard session windows.
func DefaultSessions() Sessions {
	return Sessions{
		Market:      NewWindow(9, 30, 15, 15),
		RangeWindow: NewWindow(9, 12, 9, 33),
		EntryCutoff: 12*60 + 12,
	}
}

// InMarketHours reports whether t is a weekday inside market hours. The
// closing minute is part of the session: a tick at exactly 15:15 IST is
// still monitored.
func (s Sessions) InMarketHours(t time.Time) bool {
	if IsWeekend(t) {
		return false
	}
	return s.Market.ContainsInclusive(t)
}

// PastEntryCutoff reports whether new entries are blocked at t. Monitoring
// and closing continue past the cutoff.
func (s Sessions) PastEntryCutoff(t time.Time) bool {
	return minutesIST(t) >= s.EntryCutoff
}

// MarketStatus returns the coarse session status at t.
func (s Sessions) MarketStatus(t time.Time) models.MarketStatus {
	if IsWeekend(t) {
		return models.MarketClosed
	}
	m := minutesIST(t)
	// Pre-open: 9:00 until the session opens
	if m >= 9*60 && m < s.Market.StartMinutes {
		return models.MarketPreOpen
	}
	if s.Market.ContainsInclusive(t) {
		return models.MarketOpen
	}
	return models.MarketClosed
}

// IsWeekend reports whether t falls on an exchange weekend.
func IsWeekend(t time.Time) bool {
	wd := t.In(IndiaLocation).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// TradingDate returns the exchange-local calendar day containing t, at UTC
// midnight for use as a date key.
func TradingDate(t time.Time) time.Time {
	ist := t.In(IndiaLocation)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, time.UTC)
}

// MidnightIST returns the instant of IST midnight on t's trading day.
func MidnightIST(t time.Time) time.Time {
	ist := t.In(IndiaLocation)
	return time.Date(ist.Year(), ist.Month(), ist.Day(), 0, 0, 0, 0, IndiaLocation)
}

// SameTradingDay reports whether a and b fall on the same IST calendar day.
func SameTradingDay(a, b time.Time) bool {
	return TradingDate(a).Equal(TradingDate(b))
}

// RoundToStep rounds a price to the nearest strike step, half away from zero.
func RoundToStep(price, step float64) float64 {
	if step <= 0 {
		return price
	}
	return math.Round(price/step) * step
}

// NextThursday returns the next Thursday on or after t's trading day. A
// Thursday maps to itself. Used as the expiry fallback when no override is
// stored.
func NextThursday(t time.Time) time.Time {
	day := TradingDate(t)
	offset := (int(time.Thursday) - int(day.Weekday()) + 7) % 7
	return day.AddDate(0, 0, offset)
}
