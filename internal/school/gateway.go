// Package school is the query layer between chat tools and the school's
// structured records: the Gateway contract a store implements, plus the
// pure helpers tools run on fetched data (date periods, synonym mapping,
// summaries).
package school

import (
	"context"
	"errors"
	"time"

	"github.com/soyeahso/sprout/internal/domain"
)

// ErrNotFound is returned by single-record lookups that match nothing.
var ErrNotFound = errors.New("school: record not found")

// Gateway is the read/write surface over the school collections. Text
// filters are case-insensitive partial matches unless noted. A zero Limit
// means the implementation default; a negative Limit means no limit.
type Gateway interface {
	// Children returns pupils matching the filter, ordered by name.
	Children(ctx context.Context, f ChildFilter) ([]domain.Child, error)

	// DailyReports returns reports newest first.
	DailyReports(ctx context.Context, f ReportFilter) ([]domain.DailyReport, error)

	// SemesterReports returns assessments newest first.
	SemesterReports(ctx context.Context, f SemesterFilter) ([]domain.SemesterReport, error)

	// Payments returns billed items ordered by due date descending.
	Payments(ctx context.Context, f PaymentFilter) ([]domain.Payment, error)

	// Schedules returns weekly schedule rows in storage order.
	Schedules(ctx context.Context, f ScheduleFilter) ([]domain.Schedule, error)

	// FindUser returns the first user whose name partially matches, or ErrNotFound.
	FindUser(ctx context.Context, name string, role domain.Role) (*domain.User, error)

	// FindCurriculum returns the first curriculum whose name partially matches, or ErrNotFound.
	FindCurriculum(ctx context.Context, name string) (*domain.Curriculum, error)

	// CreateSchedule stores a schedule row, assigning ID and CreatedAt.
	CreateSchedule(ctx context.Context, s domain.Schedule) (domain.Schedule, error)
}

// ChildFilter selects children. IDs and ParentID match exactly; Gender
// matches exactly when canonical.
type ChildFilter struct {
	IDs       []string
	ParentID  string
	Name      string
	ClassName string
	Gender    string
	Limit     int
}

// ReportFilter selects daily reports for a set of children, optionally
// bounded by date (zero times are unbounded).
type ReportFilter struct {
	ChildIDs []string
	From     time.Time
	To       time.Time
	Theme    string
	Limit    int
}

// SemesterFilter selects semester reports.
type SemesterFilter struct {
	ChildIDs     []string
	Semester     string
	AcademicYear string
	Limit        int
}

// PaymentFilter selects payments. A canonical Status matches exactly
// against the effective status; anything else is a substring filter.
type PaymentFilter struct {
	ChildIDs []string
	Status   string
	Limit    int
}

// ScheduleFilter selects schedule rows. A canonical Day matches exactly.
type ScheduleFilter struct {
	Day       string
	ClassName string
	Activity  string
	Limit     int
}
