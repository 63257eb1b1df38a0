package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soyeahso/sprout/internal/domain"
)

// Demo identities created by Seed.
const (
	DemoParentID  = "parent-1"
	DemoParent2ID = "parent-2"
	DemoAdminID   = "admin-1"
)

// Seed fills an empty database with a small demo school so the chat can
// be tried end to end. It returns false without writing when users
// already exist.
func (db *DB) Seed(ctx context.Context, now time.Time) (bool, error) {
	var users int
	if err := db.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&users); err != nil {
		return false, fmt.Errorf("counting users: %w", err)
	}
	if users > 0 {
		return false, nil
	}

	err := db.inTx(ctx, "seed", func(tx *sql.Tx) error {
		for _, fn := range []func(context.Context, *sql.Tx, time.Time) error{
			seedUsers, seedChildren, seedDailyReports, seedSemesterReports,
			seedPayments, seedCurriculums, seedSchedules,
		} {
			if err := fn(ctx, tx, now); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return false, err
	}
	db.log.Info().Msg("demo data seeded")
	return true, nil
}

func seedUsers(ctx context.Context, tx *sql.Tx, _ time.Time) error {
	users := []domain.User{
		{ID: DemoParentID, Name: "Ibu Sari", Email: "sari@example.com", Role: domain.RoleParent},
		{ID: DemoParent2ID, Name: "Bapak Andi", Email: "andi@example.com", Role: domain.RoleParent},
		{ID: "teacher-1", Name: "Bu Rina", Email: "rina@example.com", Role: domain.RoleTeacher},
		{ID: "teacher-2", Name: "Pak Dedi", Email: "dedi@example.com", Role: domain.RoleTeacher},
		{ID: DemoAdminID, Name: "Pak Budi", Email: "budi@example.com", Role: domain.RoleAdmin},
	}
	for _, u := range users {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, name, email, role) VALUES (?, ?, ?, ?)",
			u.ID, u.Name, u.Email, string(u.Role),
		); err != nil {
			return fmt.Errorf("seeding user %s: %w", u.ID, err)
		}
	}
	return nil
}

func seedChildren(ctx context.Context, tx *sql.Tx, now time.Time) error {
	children := []domain.Child{
		{ID: "child-1", Name: "Aisyah Putri", Nickname: "Ica", Gender: domain.GenderFemale,
			BirthDate: now.AddDate(-5, -2, 0), ClassName: "TK A", ParentID: DemoParentID},
		{ID: "child-2", Name: "Bima Pratama", Nickname: "Bima", Gender: domain.GenderMale,
			BirthDate: now.AddDate(-4, -7, 0), ClassName: "Playgroup", ParentID: DemoParentID},
		{ID: "child-3", Name: "Citra Lestari", Nickname: "Citra", Gender: domain.GenderFemale,
			BirthDate: now.AddDate(-5, -9, 0), ClassName: "TK A", ParentID: DemoParent2ID},
	}
	for _, c := range children {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO children (id, name, nickname, gender, birth_date, class_name, parent_id)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			c.ID, c.Name, c.Nickname, c.Gender, toMillis(c.BirthDate), c.ClassName, c.ParentID,
		); err != nil {
			return fmt.Errorf("seeding child %s: %w", c.ID, err)
		}
	}
	return nil
}

func seedDailyReports(ctx context.Context, tx *sql.Tx, now time.Time) error {
	themes := []struct{ theme, sub string }{
		{"Diriku", "Anggota Tubuh"},
		{"Diriku", "Panca Indera"},
		{"Lingkunganku", "Rumahku"},
		{"Lingkunganku", "Sekolahku"},
		{"Binatang", "Binatang Darat"},
	}
	moods := []string{"ceria", "tenang", "sedikit rewel", "semangat"}
	day := time.Date(now.Year(), now.Month(), now.Day(), 9, 0, 0, 0, now.Location())

	n := 0
	for offset := 0; offset < 14; offset++ {
		date := day.AddDate(0, 0, -offset)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for _, childID := range []string{"child-1", "child-2", "child-3"} {
			th := themes[(offset+n)%len(themes)]
			notes := ""
			if n%5 == 0 {
				notes = "Perlu membawa baju ganti besok."
			}
			n++
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO daily_reports (id, child_id, date, theme, sub_theme, activities, meal, nap, mood, special_notes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				fmt.Sprintf("report-%d", n), childID, date.UnixMilli(), th.theme, th.sub,
				"Bernyanyi, mewarnai, bermain balok", "Habis", "1 jam", moods[n%len(moods)], notes,
			); err != nil {
				return fmt.Errorf("seeding daily report: %w", err)
			}
		}
	}
	return nil
}

func seedSemesterReports(ctx context.Context, tx *sql.Tx, now time.Time) error {
	year := fmt.Sprintf("%d/%d", now.Year()-1, now.Year())
	reports := []struct {
		id, childID, semester string
		outcome               [2]string
	}{
		{"sem-1", "child-1", "1", [2]string{domain.OutcomeBSH, domain.OutcomeMB}},
		{"sem-2", "child-1", "2", [2]string{domain.OutcomeBSB, domain.OutcomeBSH}},
		{"sem-3", "child-2", "1", [2]string{domain.OutcomeMB, domain.OutcomeBB}},
		{"sem-4", "child-3", "1", [2]string{domain.OutcomeBSH, domain.OutcomeBSH}},
	}
	for i, r := range reports {
		assessments := make(map[string]map[string]string, len(domain.DevelopmentCategories))
		for j, cat := range domain.DevelopmentCategories {
			assessments[cat] = map[string]string{
				"indicator_1": r.outcome[j%2],
				"indicator_2": r.outcome[(j+1)%2],
			}
		}
		raw, err := json.Marshal(assessments)
		if err != nil {
			return fmt.Errorf("encoding assessments: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO semester_reports (id, child_id, semester, academic_year, assessments, teacher_notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			r.id, r.childID, r.semester, year, string(raw),
			"Anak aktif dan mulai mandiri.", now.AddDate(0, -6+i, 0).UnixMilli(),
		); err != nil {
			return fmt.Errorf("seeding semester report %s: %w", r.id, err)
		}
	}
	return nil
}

func seedPayments(ctx context.Context, tx *sql.Tx, now time.Time) error {
	paidAt := now.AddDate(0, -1, -3)
	payments := []domain.Payment{
		{ID: "pay-1", ChildID: "child-1", Description: "SPP bulan lalu", Amount: 750000,
			DueDate: now.AddDate(0, -1, 0), PaidAt: &paidAt, Status: domain.PaymentPaid},
		{ID: "pay-2", ChildID: "child-1", Description: "SPP bulan ini", Amount: 750000,
			DueDate: now.AddDate(0, 0, 10), Status: domain.PaymentPending},
		{ID: "pay-3", ChildID: "child-2", Description: "Uang kegiatan", Amount: 250000,
			DueDate: now.AddDate(0, 0, -5), Status: domain.PaymentPending},
		{ID: "pay-4", ChildID: "child-3", Description: "SPP bulan lalu", Amount: 750000,
			DueDate: now.AddDate(0, -1, 0), Status: domain.PaymentOverdue},
	}
	for _, p := range payments {
		var paid any
		if p.PaidAt != nil {
			paid = p.PaidAt.UnixMilli()
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, child_id, description, amount, due_date, paid_at, status)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			p.ID, p.ChildID, p.Description, p.Amount, p.DueDate.UnixMilli(), paid, p.Status,
		); err != nil {
			return fmt.Errorf("seeding payment %s: %w", p.ID, err)
		}
	}
	return nil
}

func seedCurriculums(ctx context.Context, tx *sql.Tx, _ time.Time) error {
	curriculums := []domain.Curriculum{
		{ID: "cur-1", Name: "Kurikulum Merdeka PAUD", Description: "Pembelajaran berbasis bermain", AgeGroup: "4-6"},
		{ID: "cur-2", Name: "Montessori Dasar", Description: "Kegiatan praktis kehidupan sehari-hari", AgeGroup: "3-4"},
	}
	for _, c := range curriculums {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO curriculums (id, name, description, age_group) VALUES (?, ?, ?, ?)",
			c.ID, c.Name, c.Description, c.AgeGroup,
		); err != nil {
			return fmt.Errorf("seeding curriculum %s: %w", c.ID, err)
		}
	}
	return nil
}

func seedSchedules(ctx context.Context, tx *sql.Tx, now time.Time) error {
	schedules := []domain.Schedule{
		{ID: "sch-1", Day: "Senin", StartTime: "08:00", EndTime: "09:00", Activity: "Senam pagi",
			ClassName: "TK A", TeacherID: "teacher-1", TeacherName: "Bu Rina"},
		{ID: "sch-2", Day: "Senin", StartTime: "07:30", EndTime: "08:00", Activity: "Upacara",
			ClassName: "TK A", TeacherID: "teacher-2", TeacherName: "Pak Dedi"},
		{ID: "sch-3", Day: "Rabu", StartTime: "09:00", EndTime: "10:00", Activity: "Menggambar",
			ClassName: "Playgroup", TeacherID: "teacher-1", TeacherName: "Bu Rina",
			CurriculumID: "cur-1", CurriculumName: "Kurikulum Merdeka PAUD"},
		{ID: "sch-4", Day: "Jumat", StartTime: "08:00", EndTime: "09:30", Activity: "Berenang",
			ClassName: "TK A", TeacherID: "teacher-2", TeacherName: "Pak Dedi"},
	}
	for _, s := range schedules {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO schedules (id, day, start_time, end_time, activity, class_name,
				teacher_id, teacher_name, curriculum_id, curriculum_name, created_by, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, s.Day, s.StartTime, s.EndTime, s.Activity, s.ClassName,
			nullable(s.TeacherID), s.TeacherName, nullable(s.CurriculumID), s.CurriculumName,
			DemoAdminID, now.UnixMilli(),
		); err != nil {
			return fmt.Errorf("seeding schedule %s: %w", s.ID, err)
		}
	}
	return nil
}
