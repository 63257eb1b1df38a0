package school

import (
	"cmp"
	"slices"
	"strings"
	"time"

	"github.com/soyeahso/sprout/internal/domain"
)

// WeeklyDigest aggregates a batch of daily reports.
type WeeklyDigest struct {
	TotalEntries      int            `json:"totalEntries"`
	Themes            []string       `json:"themes"`
	SubThemes         []string       `json:"subThemes"`
	SpecialNotesCount int            `json:"specialNotesCount"`
	EntriesPerChild   map[string]int `json:"entriesPerChild"`
}

// WeeklySummary collects distinct themes and sub-themes in first-seen
// order, counts reports with special notes, and tallies reports per child
// (keyed by child name, or ID when the name is unknown).
func WeeklySummary(reports []domain.DailyReport) WeeklyDigest {
	d := WeeklyDigest{
		TotalEntries:    len(reports),
		Themes:          []string{},
		SubThemes:       []string{},
		EntriesPerChild: map[string]int{},
	}
	seenTheme := map[string]bool{}
	seenSub := map[string]bool{}

	for _, r := range reports {
		if t := strings.TrimSpace(r.Theme); t != "" && !seenTheme[t] {
			seenTheme[t] = true
			d.Themes = append(d.Themes, t)
		}
		if s := strings.TrimSpace(r.SubTheme); s != "" && !seenSub[s] {
			seenSub[s] = true
			d.SubThemes = append(d.SubThemes, s)
		}
		if strings.TrimSpace(r.SpecialNotes) != "" {
			d.SpecialNotesCount++
		}
		key := r.ChildName
		if key == "" {
			key = r.ChildID
		}
		d.EntriesPerChild[key]++
	}
	return d
}

// ProgressTally counts outcome labels per development category.
type ProgressTally map[string]map[string]int

// DevelopmentProgress counts, for every fixed development category, how
// many assessed fields carry each outcome label. Every category and label
// is present in the result, zero when unseen; values outside the label
// set are ignored.
func DevelopmentProgress(reports []domain.SemesterReport) ProgressTally {
	tally := make(ProgressTally, len(domain.DevelopmentCategories))
	for _, cat := range domain.DevelopmentCategories {
		counts := make(map[string]int, len(domain.OutcomeLabels))
		for _, label := range domain.OutcomeLabels {
			counts[label] = 0
		}
		tally[cat] = counts
	}

	for _, r := range reports {
		for _, cat := range domain.DevelopmentCategories {
			for _, value := range r.Assessments[cat] {
				label := strings.ToUpper(strings.TrimSpace(value))
				if _, ok := tally[cat][label]; ok {
					tally[cat][label]++
				}
			}
		}
	}
	return tally
}

// SortSchedules orders schedules by school-week day, then start time.
func SortSchedules(s []domain.Schedule) {
	slices.SortStableFunc(s, func(a, b domain.Schedule) int {
		if c := cmp.Compare(DayIndex(a.Day), DayIndex(b.Day)); c != 0 {
			return c
		}
		return cmp.Compare(a.StartTime, b.StartTime)
	})
}

// EffectiveStatus reports a payment's status as of now: a pending payment
// whose due date has passed reads as overdue. The stored record is not
// changed.
func EffectiveStatus(p domain.Payment, now time.Time) string {
	if p.Status == domain.PaymentPending && !p.DueDate.IsZero() && p.DueDate.Before(startOfDay(now)) {
		return domain.PaymentOverdue
	}
	return p.Status
}

// StatusTotals is the count and amount of payments in one status.
type StatusTotals struct {
	Count  int   `json:"count"`
	Amount int64 `json:"amount"`
}

// PaymentOverview groups payments by effective status.
func PaymentOverview(payments []domain.Payment, now time.Time) map[string]StatusTotals {
	out := map[string]StatusTotals{
		domain.PaymentPaid:    {},
		domain.PaymentPending: {},
		domain.PaymentOverdue: {},
	}
	for _, p := range payments {
		status := EffectiveStatus(p, now)
		t := out[status]
		t.Count++
		t.Amount += p.Amount
		out[status] = t
	}
	return out
}
