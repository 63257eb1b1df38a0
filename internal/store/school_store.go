package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/logging"
	"github.com/soyeahso/sprout/internal/school"
)

// defaultLimit caps queries whose filter leaves Limit at zero.
const defaultLimit = 50

// SchoolStore implements school.Gateway over the SQLite collections.
type SchoolStore struct {
	db  *DB
	log *logging.Logger
	now func() time.Time
}

var _ school.Gateway = (*SchoolStore)(nil)

// WithClock sets the clock used for effective payment status and
// CreatedAt stamps.
func (s *SchoolStore) WithClock(now func() time.Time) *SchoolStore {
	s.now = now
	return s
}

// NewSchoolStore creates a school data gateway backed by the given database.
func NewSchoolStore(db *DB, log *logging.Logger) *SchoolStore {
	return &SchoolStore{db: db, log: log.Sub("school-store"), now: time.Now}
}

// query accumulates WHERE clauses and their arguments.
type query struct {
	where []string
	args  []any
}

func (q *query) add(clause string, args ...any) {
	q.where = append(q.where, clause)
	q.args = append(q.args, args...)
}

// like adds a case-insensitive substring match on col.
func (q *query) like(col, value string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return
	}
	q.add("lower("+col+") LIKE ? ESCAPE '\\'", "%"+escapeLike(strings.ToLower(value))+"%")
}

func (q *query) in(col string, values []string) {
	if len(values) == 0 {
		return
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(values)), ",")
	args := make([]any, len(values))
	for i, v := range values {
		args[i] = v
	}
	q.add(col+" IN ("+marks+")", args...)
}

func (q *query) sql() string {
	if len(q.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.where, " AND ")
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func limitClause(limit int) string {
	switch {
	case limit < 0:
		return ""
	case limit == 0:
		limit = defaultLimit
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

// Children returns children matching f ordered by name.
func (s *SchoolStore) Children(ctx context.Context, f school.ChildFilter) ([]domain.Child, error) {
	var q query
	q.in("id", f.IDs)
	if f.ParentID != "" {
		q.add("parent_id = ?", f.ParentID)
	}
	if f.Name != "" {
		pattern := "%" + escapeLike(strings.ToLower(strings.TrimSpace(f.Name))) + "%"
		q.add(`(lower(name) LIKE ? ESCAPE '\' OR lower(nickname) LIKE ? ESCAPE '\')`, pattern, pattern)
	}
	q.like("class_name", f.ClassName)
	if g, ok := school.NormalizeGender(f.Gender); ok {
		q.add("gender = ?", g)
	} else {
		q.like("gender", f.Gender)
	}

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT id, name, nickname, gender, birth_date, class_name, parent_id
		FROM children`+q.sql()+" ORDER BY name"+limitClause(f.Limit), q.args...)
	if err != nil {
		return nil, fmt.Errorf("querying children: %w", err)
	}
	defer rows.Close()

	var out []domain.Child
	for rows.Next() {
		var c domain.Child
		var birth int64
		if err := rows.Scan(&c.ID, &c.Name, &c.Nickname, &c.Gender, &birth, &c.ClassName, &c.ParentID); err != nil {
			return nil, fmt.Errorf("scanning child: %w", err)
		}
		c.BirthDate = fromMillis(birth)
		out = append(out, c)
	}
	return out, rows.Err()
}

// DailyReports returns reports matching f, newest first, with child names filled in.
func (s *SchoolStore) DailyReports(ctx context.Context, f school.ReportFilter) ([]domain.DailyReport, error) {
	var q query
	q.in("r.child_id", f.ChildIDs)
	if !f.From.IsZero() {
		q.add("r.date >= ?", f.From.UnixMilli())
	}
	if !f.To.IsZero() {
		q.add("r.date <= ?", f.To.UnixMilli())
	}
	if theme := strings.TrimSpace(f.Theme); theme != "" {
		pattern := "%" + escapeLike(strings.ToLower(theme)) + "%"
		q.add(`(lower(r.theme) LIKE ? ESCAPE '\' OR lower(r.sub_theme) LIKE ? ESCAPE '\')`, pattern, pattern)
	}

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT r.id, r.child_id, c.name, r.date, r.theme, r.sub_theme, r.activities,
		       r.meal, r.nap, r.mood, r.special_notes
		FROM daily_reports r JOIN children c ON c.id = r.child_id`+
		q.sql()+" ORDER BY r.date DESC, r.id"+limitClause(f.Limit), q.args...)
	if err != nil {
		return nil, fmt.Errorf("querying daily reports: %w", err)
	}
	defer rows.Close()

	var out []domain.DailyReport
	for rows.Next() {
		var r domain.DailyReport
		var date int64
		if err := rows.Scan(&r.ID, &r.ChildID, &r.ChildName, &date, &r.Theme, &r.SubTheme,
			&r.Activities, &r.Meal, &r.Nap, &r.Mood, &r.SpecialNotes); err != nil {
			return nil, fmt.Errorf("scanning daily report: %w", err)
		}
		r.Date = fromMillis(date)
		out = append(out, r)
	}
	return out, rows.Err()
}

// SemesterReports returns assessments matching f, newest first.
func (s *SchoolStore) SemesterReports(ctx context.Context, f school.SemesterFilter) ([]domain.SemesterReport, error) {
	var q query
	q.in("r.child_id", f.ChildIDs)
	if sem, ok := school.NormalizeSemester(f.Semester); ok {
		q.add("r.semester = ?", sem)
	} else {
		q.like("r.semester", f.Semester)
	}
	q.like("r.academic_year", f.AcademicYear)

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT r.id, r.child_id, c.name, r.semester, r.academic_year, r.assessments,
		       r.teacher_notes, r.created_at
		FROM semester_reports r JOIN children c ON c.id = r.child_id`+
		q.sql()+" ORDER BY r.academic_year DESC, r.semester DESC, r.created_at DESC"+limitClause(f.Limit), q.args...)
	if err != nil {
		return nil, fmt.Errorf("querying semester reports: %w", err)
	}
	defer rows.Close()

	var out []domain.SemesterReport
	for rows.Next() {
		var r domain.SemesterReport
		var assessments string
		var created int64
		if err := rows.Scan(&r.ID, &r.ChildID, &r.ChildName, &r.Semester, &r.AcademicYear,
			&assessments, &r.TeacherNotes, &created); err != nil {
			return nil, fmt.Errorf("scanning semester report: %w", err)
		}
		if err := json.Unmarshal([]byte(assessments), &r.Assessments); err != nil {
			return nil, fmt.Errorf("decoding assessments of %s: %w", r.ID, err)
		}
		r.CreatedAt = fromMillis(created)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Payments returns payments matching f ordered by due date descending.
// Status is the effective status: pending items past their due date are
// reported as overdue without modifying the stored row.
func (s *SchoolStore) Payments(ctx context.Context, f school.PaymentFilter) ([]domain.Payment, error) {
	var q query
	q.in("p.child_id", f.ChildIDs)

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT p.id, p.child_id, c.name, p.description, p.amount, p.due_date, p.paid_at, p.status
		FROM payments p JOIN children c ON c.id = p.child_id`+
		q.sql()+" ORDER BY p.due_date DESC, p.id", q.args...)
	if err != nil {
		return nil, fmt.Errorf("querying payments: %w", err)
	}
	defer rows.Close()

	now := s.now()
	want, canonical := school.NormalizePaymentStatus(f.Status)
	want = strings.ToLower(want)

	var out []domain.Payment
	for rows.Next() {
		var p domain.Payment
		var due int64
		var paid sql.NullInt64
		if err := rows.Scan(&p.ID, &p.ChildID, &p.ChildName, &p.Description, &p.Amount, &due, &paid, &p.Status); err != nil {
			return nil, fmt.Errorf("scanning payment: %w", err)
		}
		p.DueDate = fromMillis(due)
		if paid.Valid {
			t := fromMillis(paid.Int64)
			p.PaidAt = &t
		}
		p.Status = school.EffectiveStatus(p, now)

		switch {
		case want == "":
		case canonical && p.Status != want:
			continue
		case !canonical && !strings.Contains(strings.ToLower(p.Status), want):
			continue
		}
		out = append(out, p)
		if f.Limit >= 0 && len(out) == effectiveLimit(f.Limit) {
			break
		}
	}
	return out, rows.Err()
}

func effectiveLimit(limit int) int {
	if limit == 0 {
		return defaultLimit
	}
	return limit
}

// Schedules returns schedule rows matching f in insertion order.
func (s *SchoolStore) Schedules(ctx context.Context, f school.ScheduleFilter) ([]domain.Schedule, error) {
	var q query
	if day, ok := school.NormalizeDay(f.Day); ok {
		q.add("day = ?", day)
	} else {
		q.like("day", f.Day)
	}
	q.like("class_name", f.ClassName)
	q.like("activity", f.Activity)

	rows, err := s.db.sql.QueryContext(ctx, `
		SELECT id, day, start_time, end_time, activity, class_name,
		       COALESCE(teacher_id, ''), teacher_name, COALESCE(curriculum_id, ''), curriculum_name,
		       created_by, created_at
		FROM schedules`+q.sql()+" ORDER BY rowid"+limitClause(f.Limit), q.args...)
	if err != nil {
		return nil, fmt.Errorf("querying schedules: %w", err)
	}
	defer rows.Close()

	var out []domain.Schedule
	for rows.Next() {
		var sc domain.Schedule
		var created int64
		if err := rows.Scan(&sc.ID, &sc.Day, &sc.StartTime, &sc.EndTime, &sc.Activity, &sc.ClassName,
			&sc.TeacherID, &sc.TeacherName, &sc.CurriculumID, &sc.CurriculumName,
			&sc.CreatedBy, &created); err != nil {
			return nil, fmt.Errorf("scanning schedule: %w", err)
		}
		sc.CreatedAt = fromMillis(created)
		out = append(out, sc)
	}
	return out, rows.Err()
}

// FindUser returns the first user (by name) whose name contains name.
// An empty role matches any role.
func (s *SchoolStore) FindUser(ctx context.Context, name string, role domain.Role) (*domain.User, error) {
	var q query
	q.like("name", name)
	if role != "" {
		q.add("role = ?", string(role))
	}

	var u domain.User
	var r string
	err := s.db.sql.QueryRowContext(ctx,
		"SELECT id, name, email, role FROM users"+q.sql()+" ORDER BY name LIMIT 1", q.args...,
	).Scan(&u.ID, &u.Name, &u.Email, &r)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	u.Role = domain.ParseRole(r)
	return &u, nil
}

// FindCurriculum returns the first curriculum whose name contains name.
func (s *SchoolStore) FindCurriculum(ctx context.Context, name string) (*domain.Curriculum, error) {
	var q query
	q.like("name", name)

	var c domain.Curriculum
	err := s.db.sql.QueryRowContext(ctx,
		"SELECT id, name, description, age_group FROM curriculums"+q.sql()+" ORDER BY name LIMIT 1", q.args...,
	).Scan(&c.ID, &c.Name, &c.Description, &c.AgeGroup)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, school.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding curriculum: %w", err)
	}
	return &c, nil
}

// CreateSchedule inserts a schedule row, assigning an ID and CreatedAt when unset.
func (s *SchoolStore) CreateSchedule(ctx context.Context, sc domain.Schedule) (domain.Schedule, error) {
	if sc.ID == "" {
		sc.ID = uuid.New().String()
	}
	if sc.CreatedAt.IsZero() {
		sc.CreatedAt = s.now()
	}

	_, err := s.db.sql.ExecContext(ctx, `
		INSERT INTO schedules (id, day, start_time, end_time, activity, class_name,
			teacher_id, teacher_name, curriculum_id, curriculum_name, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.Day, sc.StartTime, sc.EndTime, sc.Activity, sc.ClassName,
		nullable(sc.TeacherID), sc.TeacherName, nullable(sc.CurriculumID), sc.CurriculumName,
		sc.CreatedBy, toMillis(sc.CreatedAt),
	)
	if err != nil {
		return domain.Schedule{}, fmt.Errorf("inserting schedule: %w", err)
	}

	s.log.Info().Str("id", sc.ID).Str("day", sc.Day).Str("activity", sc.Activity).Msg("schedule created")
	return sc, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
