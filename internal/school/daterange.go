package school

import (
	"strings"
	"time"
)

// Range is an inclusive time interval.
type Range struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether t falls inside the range.
func (r Range) Contains(t time.Time) bool {
	return !t.Before(r.Start) && !t.After(r.End)
}

// Symbolic periods.
const (
	PeriodToday     = "today"
	PeriodYesterday = "yesterday"
	PeriodThisWeek  = "this week"
	PeriodLastWeek  = "last week"
	PeriodThisMonth = "this month"
	PeriodLastMonth = "last month"
)

var periodAliases = map[string]string{
	"today":       PeriodToday,
	"hari ini":    PeriodToday,
	"yesterday":   PeriodYesterday,
	"kemarin":     PeriodYesterday,
	"this week":   PeriodThisWeek,
	"minggu ini":  PeriodThisWeek,
	"pekan ini":   PeriodThisWeek,
	"last week":   PeriodLastWeek,
	"minggu lalu": PeriodLastWeek,
	"pekan lalu":  PeriodLastWeek,
	"this month":  PeriodThisMonth,
	"bulan ini":   PeriodThisMonth,
	"last month":  PeriodLastMonth,
	"bulan lalu":  PeriodLastMonth,
}

// NormalizePeriod maps an English or Indonesian period phrase to its
// canonical English name.
func NormalizePeriod(period string) (string, bool) {
	key := strings.Join(strings.Fields(strings.ToLower(strings.ReplaceAll(period, "_", " "))), " ")
	p, ok := periodAliases[key]
	return p, ok
}

// ResolvePeriod computes the interval for a symbolic period relative to
// now, in now's location. Weeks start on Sunday. Ranges that include the
// present end at now rather than at the end of the day.
func ResolvePeriod(period string, now time.Time) (Range, bool) {
	p, ok := NormalizePeriod(period)
	if !ok {
		return Range{}, false
	}

	today := startOfDay(now)
	switch p {
	case PeriodToday:
		return Range{Start: today, End: now}, true
	case PeriodYesterday:
		y := today.AddDate(0, 0, -1)
		return Range{Start: y, End: endOfDay(y)}, true
	case PeriodThisWeek:
		return Range{Start: weekStart(today), End: now}, true
	case PeriodLastWeek:
		thisWeek := weekStart(today)
		return Range{Start: thisWeek.AddDate(0, 0, -7), End: endOfDay(thisWeek.AddDate(0, 0, -1))}, true
	case PeriodThisMonth:
		return Range{Start: time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()), End: now}, true
	case PeriodLastMonth:
		start := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, now.Location())
		// day 0 of this month is the last day of the previous one
		last := time.Date(now.Year(), now.Month(), 0, 0, 0, 0, 0, now.Location())
		return Range{Start: start, End: endOfDay(last)}, true
	}
	return Range{}, false
}

// ResolveDateOrPeriod accepts either a symbolic period or a calendar date
// (YYYY-MM-DD), which resolves to that whole day.
func ResolveDateOrPeriod(s string, now time.Time) (Range, bool) {
	if r, ok := ResolvePeriod(s, now); ok {
		return r, true
	}
	d, err := time.ParseInLocation(time.DateOnly, strings.TrimSpace(s), now.Location())
	if err != nil {
		return Range{}, false
	}
	return Range{Start: d, End: endOfDay(d)}, true
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

func weekStart(day time.Time) time.Time {
	return day.AddDate(0, 0, -int(day.Weekday()))
}
