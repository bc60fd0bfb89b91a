package projection

import "time"

// PeriodLabel names the calendar month of period counted from now, as
// YYYY-MM. Months are counted from the first of the month so that periods
// starting on the 29th to 31st never skip a month.
func PeriodLabel(now time.Time, period int) string {
	return time.Date(now.Year(), now.Month()+time.Month(period), 1, 0, 0, 0, 0, now.Location()).Format("2006-01")
}
