package util

import "time"

// ExpiryWindow returns the calendar dates (UTC midnight) that are minDTE and
// maxDTE days after now. Bounds are swapped when given in reverse order.
func ExpiryWindow(now time.Time, minDTE, maxDTE int) (time.Time, time.Time) {
	if minDTE > maxDTE {
		minDTE, maxDTE = maxDTE, minDTE
	}
	day := StartOfDay(now)
	return day.AddDate(0, 0, minDTE), day.AddDate(0, 0, maxDTE)
}

// StartOfDay truncates t to midnight UTC.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
