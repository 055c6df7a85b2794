package pkg

import "time"

// ShouldRefresh reports whether a daily-gated fetch is due again,
// i.e. whether lastRefresh falls on an earlier calendar day than now.
// A zero lastRefresh always triggers a refresh.
func ShouldRefresh(lastRefresh, now time.Time) bool {
	if lastRefresh.IsZero() {
		return true
	}
	ly, lm, ld := lastRefresh.Date()
	ny, nm, nd := now.Date()
	return ly != ny || lm != nm || ld != nd
}

// DayString formats a point in time as the calendar-day key
// used by the daily progress records.
func DayString(t time.Time) string {
	return t.Format("2006-01-02")
}
