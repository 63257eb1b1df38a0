package school

import (
	"testing"
	"time"

	"github.com/soyeahso/sprout/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestWeeklySummary(t *testing.T) {
	reports := []domain.DailyReport{
		{ChildID: "c1", ChildName: "Aisyah", Theme: "Binatang", SubTheme: "Binatang darat", SpecialNotes: "Batuk ringan"},
		{ChildID: "c1", ChildName: "Aisyah", Theme: "Binatang", SubTheme: "Binatang air"},
		{ChildID: "c2", ChildName: "Bima", Theme: "Tanaman", SubTheme: "Binatang darat", SpecialNotes: "  "},
		{ChildID: "c3", Theme: " Binatang ", SpecialNotes: "Dijemput nenek"},
	}

	got := WeeklySummary(reports)

	assert.Equal(t, 4, got.TotalEntries)
	assert.Equal(t, []string{"Binatang", "Tanaman"}, got.Themes)
	assert.Equal(t, []string{"Binatang darat", "Binatang air"}, got.SubThemes)
	assert.Equal(t, 2, got.SpecialNotesCount)
	assert.Equal(t, map[string]int{"Aisyah": 2, "Bima": 1, "c3": 1}, got.EntriesPerChild)
}

func TestWeeklySummaryEmpty(t *testing.T) {
	got := WeeklySummary(nil)
	assert.Equal(t, 0, got.TotalEntries)
	assert.NotNil(t, got.Themes)
	assert.Empty(t, got.Themes)
}

func TestDevelopmentProgress(t *testing.T) {
	reports := []domain.SemesterReport{
		{Assessments: map[string]map[string]string{
			"cognitive": {"counting": "BSH", "colors": "BSB", "shapes": "bsh"},
			"language":  {"listening": "MB"},
			"unknown":   {"x": "BB"},
		}},
		{Assessments: map[string]map[string]string{
			"cognitive": {"counting": "BSB"},
			"art":       {"drawing": "BB", "singing": "excellent"},
		}},
	}

	got := DevelopmentProgress(reports)

	assert.Len(t, got, len(domain.DevelopmentCategories))
	assert.Equal(t, map[string]int{"BB": 0, "MB": 0, "BSH": 2, "BSB": 2}, got["cognitive"])
	assert.Equal(t, 1, got["language"]["MB"])
	assert.Equal(t, map[string]int{"BB": 1, "MB": 0, "BSH": 0, "BSB": 0}, got["art"])
	assert.Equal(t, map[string]int{"BB": 0, "MB": 0, "BSH": 0, "BSB": 0}, got["physical_motor"])
	assert.NotContains(t, got, "unknown")
}

func TestSortSchedules(t *testing.T) {
	s := []domain.Schedule{
		{Day: "Rabu", StartTime: "08:00", Activity: "Menggambar"},
		{Day: "Senin", StartTime: "09:30", Activity: "Bernyanyi"},
		{Day: "Libur", StartTime: "07:00", Activity: "?"},
		{Day: "Senin", StartTime: "07:30", Activity: "Upacara"},
		{Day: "Minggu", StartTime: "08:00", Activity: "Outing"},
	}

	SortSchedules(s)

	var got []string
	for _, row := range s {
		got = append(got, row.Activity)
	}
	assert.Equal(t, []string{"Upacara", "Bernyanyi", "Menggambar", "Outing", "?"}, got)
}

func TestEffectiveStatus(t *testing.T) {
	now := time.Date(2025, 11, 19, 10, 0, 0, 0, time.UTC)

	assert.Equal(t, domain.PaymentOverdue, EffectiveStatus(domain.Payment{Status: "pending", DueDate: now.AddDate(0, 0, -1)}, now))
	assert.Equal(t, domain.PaymentPending, EffectiveStatus(domain.Payment{Status: "pending", DueDate: now}, now))
	assert.Equal(t, domain.PaymentPaid, EffectiveStatus(domain.Payment{Status: "paid", DueDate: now.AddDate(0, -1, 0)}, now))
}

func TestPaymentOverview(t *testing.T) {
	now := time.Date(2025, 11, 19, 10, 0, 0, 0, time.UTC)
	payments := []domain.Payment{
		{Amount: 500000, Status: "paid", DueDate: now.AddDate(0, -1, 0)},
		{Amount: 250000, Status: "pending", DueDate: now.AddDate(0, 0, 5)},
		{Amount: 300000, Status: "pending", DueDate: now.AddDate(0, 0, -3)},
		{Amount: 100000, Status: "overdue", DueDate: now.AddDate(0, -2, 0)},
	}

	got := PaymentOverview(payments, now)
	assert.Equal(t, StatusTotals{Count: 1, Amount: 500000}, got["paid"])
	assert.Equal(t, StatusTotals{Count: 1, Amount: 250000}, got["pending"])
	assert.Equal(t, StatusTotals{Count: 2, Amount: 400000}, got["overdue"])
}
