package tools

import (
	"context"

	"github.com/soyeahso/sprout/internal/agent"
	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/school"
)

func getMyChildren() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:         "get_my_children",
		Description:  "List the children linked to the current parent, with class and birth date.",
		AllowedRoles: parentOnly,
		Handler: func(ctx context.Context, env agent.ToolEnv, _ agent.Args) (string, error) {
			children, out, err := scoped(ctx, env, "")
			if children == nil {
				return out, err
			}
			return encode(struct {
				Found    bool           `json:"found"`
				Count    int            `json:"count"`
				Children []domain.Child `json:"children"`
			}{true, len(children), children})
		},
	}
}

func getDailyReports() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:         "get_daily_reports",
		Description:  "Daily reports (theme, activities, meal, nap, mood, special notes) for the parent's children, newest first.",
		AllowedRoles: parentOnly,
		Fields: []agent.Field{
			childNameField(),
			{
				Name:        "period",
				Type:        agent.TypeString,
				Description: "today, yesterday, this week, last week, this month, last month (Indonesian accepted) or a YYYY-MM-DD date.",
			},
			{Name: "theme", Type: agent.TypeString, Description: "Optional theme or sub-theme filter."},
			limitField(ReportLimit),
		},
		Handler: func(ctx context.Context, env agent.ToolEnv, args agent.Args) (string, error) {
			rng, err := period(args.String("period"), env.Now)
			if err != nil {
				return "", err
			}
			children, out, err := scoped(ctx, env, args.String("child_name"))
			if children == nil {
				return out, err
			}

			reports, err := env.Data.DailyReports(ctx, school.ReportFilter{
				ChildIDs: school.ChildIDs(children),
				From:     rng.Start,
				To:       rng.End,
				Theme:    args.String("theme"),
				Limit:    clampLimit(args.Int("limit"), ReportLimit),
			})
			if err != nil {
				return "", err
			}
			if len(reports) == 0 {
				return empty("no daily reports for the requested period")
			}
			return encode(struct {
				Found   bool                 `json:"found"`
				Count   int                  `json:"count"`
				Reports []domain.DailyReport `json:"reports"`
			}{true, len(reports), reports})
		},
	}
}

func getWeeklySummary() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:         "get_weekly_summary",
		Description:  "Summarize daily reports over a period: distinct themes and sub-themes, special note count and entries per child.",
		AllowedRoles: parentOnly,
		Fields: []agent.Field{
			childNameField(),
			{
				Name:        "period",
				Type:        agent.TypeString,
				Default:     school.PeriodThisWeek,
				Description: "Period to summarize (default this week).",
			},
		},
		Handler: func(ctx context.Context, env agent.ToolEnv, args agent.Args) (string, error) {
			rng, err := period(args.String("period"), env.Now)
			if err != nil {
				return "", err
			}
			children, out, err := scoped(ctx, env, args.String("child_name"))
			if children == nil {
				return out, err
			}

			reports, err := env.Data.DailyReports(ctx, school.ReportFilter{
				ChildIDs: school.ChildIDs(children),
				From:     rng.Start,
				To:       rng.End,
				Limit:    -1,
			})
			if err != nil {
				return "", err
			}
			if len(reports) == 0 {
				return empty("no daily reports for the requested period")
			}
			return encode(struct {
				Found  bool         `json:"found"`
				Period school.Range `json:"period"`
				school.WeeklyDigest
			}{true, rng, school.WeeklySummary(reports)})
		},
	}
}

func semesterFields() []agent.Field {
	return []agent.Field{
		childNameField(),
		{Name: "semester", Type: agent.TypeString, Description: "1 or 2 (ganjil/genap accepted)."},
		{Name: "academic_year", Type: agent.TypeString, Description: "Academic year such as 2025/2026."},
	}
}

func semesterReports(ctx context.Context, env agent.ToolEnv, args agent.Args, limit int) ([]domain.SemesterReport, string, error) {
	children, out, err := scoped(ctx, env, args.String("child_name"))
	if children == nil {
		return nil, out, err
	}
	semester, _ := school.NormalizeSemester(args.String("semester"))
	reports, err := env.Data.SemesterReports(ctx, school.SemesterFilter{
		ChildIDs:     school.ChildIDs(children),
		Semester:     semester,
		AcademicYear: args.String("academic_year"),
		Limit:        limit,
	})
	if err != nil {
		return nil, "", err
	}
	if len(reports) == 0 {
		out, err := empty("no semester reports match")
		return nil, out, err
	}
	return reports, "", nil
}

func getSemesterReports() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:         "get_semester_reports",
		Description:  "Semester development assessments (BB, MB, BSH, BSB per indicator) and teacher notes.",
		AllowedRoles: parentOnly,
		Fields:       append(semesterFields(), limitField(ReportLimit)),
		Handler: func(ctx context.Context, env agent.ToolEnv, args agent.Args) (string, error) {
			reports, out, err := semesterReports(ctx, env, args, clampLimit(args.Int("limit"), ReportLimit))
			if reports == nil {
				return out, err
			}
			return encode(struct {
				Found   bool                    `json:"found"`
				Count   int                     `json:"count"`
				Reports []domain.SemesterReport `json:"reports"`
			}{true, len(reports), reports})
		},
	}
}

func getDevelopmentProgress() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name: "get_development_progress",
		Description: "Count assessment outcomes per development category. Labels: BB (not yet developing), " +
			"MB (starting), BSH (as expected), BSB (very well).",
		AllowedRoles: parentOnly,
		Fields:       semesterFields(),
		Handler: func(ctx context.Context, env agent.ToolEnv, args agent.Args) (string, error) {
			reports, out, err := semesterReports(ctx, env, args, -1)
			if reports == nil {
				return out, err
			}
			return encode(struct {
				Found    bool                 `json:"found"`
				Reports  int                  `json:"reportsCounted"`
				Labels   []string             `json:"labels"`
				Progress school.ProgressTally `json:"progress"`
			}{true, len(reports), domain.OutcomeLabels, school.DevelopmentProgress(reports)})
		},
	}
}

func getPayments() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:         "get_payments",
		Description:  "Payments for the parent's children. Pending items past their due date are reported as overdue.",
		AllowedRoles: parentOnly,
		Fields: []agent.Field{
			childNameField(),
			{Name: "status", Type: agent.TypeString, Description: "paid, pending or overdue (lunas, belum bayar, terlambat accepted)."},
			limitField(ListLimit),
		},
		Handler: func(ctx context.Context, env agent.ToolEnv, args agent.Args) (string, error) {
			children, out, err := scoped(ctx, env, args.String("child_name"))
			if children == nil {
				return out, err
			}
			status, _ := school.NormalizePaymentStatus(args.String("status"))
			payments, err := env.Data.Payments(ctx, school.PaymentFilter{
				ChildIDs: school.ChildIDs(children),
				Status:   status,
				Limit:    clampLimit(args.Int("limit"), ListLimit),
			})
			if err != nil {
				return "", err
			}
			if len(payments) == 0 {
				return empty("no payments match")
			}
			var outstanding int64
			for _, p := range payments {
				if p.Status != domain.PaymentPaid {
					outstanding += p.Amount
				}
			}
			return encode(struct {
				Found       bool             `json:"found"`
				Count       int              `json:"count"`
				Outstanding int64            `json:"outstandingAmount"`
				Payments    []domain.Payment `json:"payments"`
			}{true, len(payments), outstanding, payments})
		},
	}
}

func getSchedules() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:         "get_schedules",
		Description:  "Weekly class schedule, ordered Senin to Minggu then by start time.",
		AllowedRoles: parentAdmin,
		Fields: []agent.Field{
			{Name: "day", Type: agent.TypeString, Description: "Day name in Indonesian or English."},
			{Name: "class_name", Type: agent.TypeString, Description: "Class filter, partial match."},
			{Name: "activity", Type: agent.TypeString, Description: "Activity filter, partial match."},
			limitField(ListLimit),
		},
		Handler: func(ctx context.Context, env agent.ToolEnv, args agent.Args) (string, error) {
			day, _ := school.NormalizeDay(args.String("day"))
			rows, err := env.Data.Schedules(ctx, school.ScheduleFilter{
				Day:       day,
				ClassName: args.String("class_name"),
				Activity:  args.String("activity"),
				Limit:     -1,
			})
			if err != nil {
				return "", err
			}
			if len(rows) == 0 {
				return empty("no schedule entries match")
			}
			school.SortSchedules(rows)
			if limit := clampLimit(args.Int("limit"), ListLimit); len(rows) > limit {
				rows = rows[:limit]
			}
			return encode(struct {
				Found     bool              `json:"found"`
				Count     int               `json:"count"`
				Schedules []domain.Schedule `json:"schedules"`
			}{true, len(rows), rows})
		},
	}
}
