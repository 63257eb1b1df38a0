package tools

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/soyeahso/sprout/internal/agent"
	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/school"
)

func searchChildren() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:         "search_children",
		Description:  "Search all enrolled children by name or nickname, class and gender.",
		AllowedRoles: adminOnly,
		Fields: []agent.Field{
			{Name: "name", Type: agent.TypeString, Description: "Name or nickname, partial match."},
			{Name: "class_name", Type: agent.TypeString, Description: "Class, partial match."},
			{Name: "gender", Type: agent.TypeString, Description: "male or female (laki-laki/perempuan accepted)."},
			limitField(ListLimit),
		},
		Handler: func(ctx context.Context, env agent.ToolEnv, args agent.Args) (string, error) {
			gender, _ := school.NormalizeGender(args.String("gender"))
			children, err := env.Data.Children(ctx, school.ChildFilter{
				Name:      args.String("name"),
				ClassName: args.String("class_name"),
				Gender:    gender,
				Limit:     clampLimit(args.Int("limit"), ListLimit),
			})
			if err != nil {
				return "", err
			}
			if len(children) == 0 {
				return empty("no children match the search")
			}
			return encode(struct {
				Found    bool           `json:"found"`
				Count    int            `json:"count"`
				Children []domain.Child `json:"children"`
			}{true, len(children), children})
		},
	}
}

func getPaymentOverview() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name:         "get_payment_overview",
		Description:  "School-wide payment totals (count and amount) by status, plus the outstanding items.",
		AllowedRoles: adminOnly,
		Fields: []agent.Field{
			{Name: "status", Type: agent.TypeString, Description: "Optional status whose items are listed (default overdue)."},
			limitField(ListLimit),
		},
		Handler: func(ctx context.Context, env agent.ToolEnv, args agent.Args) (string, error) {
			payments, err := env.Data.Payments(ctx, school.PaymentFilter{Limit: -1})
			if err != nil {
				return "", err
			}
			if len(payments) == 0 {
				return empty("no payments recorded")
			}

			status := domain.PaymentOverdue
			if s := args.String("status"); s != "" {
				status, _ = school.NormalizePaymentStatus(s)
			}
			limit := clampLimit(args.Int("limit"), ListLimit)
			items := []domain.Payment{}
			for _, p := range payments {
				if len(items) == limit {
					break
				}
				if school.EffectiveStatus(p, env.Now) == status {
					items = append(items, p)
				}
			}

			return encode(struct {
				Found  bool                           `json:"found"`
				Total  int                            `json:"total"`
				Totals map[string]school.StatusTotals `json:"totals"`
				Status string                         `json:"listedStatus"`
				Items  []domain.Payment               `json:"items"`
			}{true, len(payments), school.PaymentOverview(payments, env.Now), status, items})
		},
	}
}

var clockRE = regexp.MustCompile(`^([01]?\d|2[0-3])[:.]([0-5]\d)$`)

// normalizeClock accepts H:MM, HH:MM or HH.MM and returns HH:MM.
func normalizeClock(s string) (string, bool) {
	m := clockRE.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", false
	}
	h := m[1]
	if len(h) == 1 {
		h = "0" + h
	}
	return h + ":" + m[2], true
}

func createSchedule() agent.ToolDescriptor {
	return agent.ToolDescriptor{
		Name: "create_schedule",
		Description: "Add a weekly schedule entry. Teacher and curriculum are matched by name; " +
			"unmatched names are kept as plain text.",
		AllowedRoles: adminOnly,
		Fields: []agent.Field{
			{Name: "day", Type: agent.TypeString, Required: true, Description: "Day name in Indonesian or English."},
			{Name: "start_time", Type: agent.TypeString, Required: true, Description: "Start time, HH:MM."},
			{Name: "end_time", Type: agent.TypeString, Description: "End time, HH:MM."},
			{Name: "activity", Type: agent.TypeString, Required: true, Description: "Activity name."},
			{Name: "class_name", Type: agent.TypeString, Description: "Class the entry applies to."},
			{Name: "teacher_name", Type: agent.TypeString, Description: "Teacher name, partial match."},
			{Name: "curriculum_name", Type: agent.TypeString, Description: "Curriculum name, partial match."},
		},
		Handler: func(ctx context.Context, env agent.ToolEnv, args agent.Args) (string, error) {
			day, ok := school.NormalizeDay(args.String("day"))
			if !ok {
				return "", fmt.Errorf("unrecognized day %q", args.String("day"))
			}
			start, ok := normalizeClock(args.String("start_time"))
			if !ok {
				return "", fmt.Errorf("invalid start_time %q, expected HH:MM", args.String("start_time"))
			}
			end := ""
			if raw := args.String("end_time"); raw != "" {
				if end, ok = normalizeClock(raw); !ok {
					return "", fmt.Errorf("invalid end_time %q, expected HH:MM", raw)
				}
				if end <= start {
					return "", fmt.Errorf("end_time %s must be after start_time %s", end, start)
				}
			}
			activity := strings.TrimSpace(args.String("activity"))
			if activity == "" {
				return "", errors.New("activity must not be empty")
			}

			sc := domain.Schedule{
				Day:       day,
				StartTime: start,
				EndTime:   end,
				Activity:  activity,
				ClassName: strings.TrimSpace(args.String("class_name")),
				CreatedBy: env.Caller.ID,
			}
			var unmatched []string
			if name := strings.TrimSpace(args.String("teacher_name")); name != "" {
				sc.TeacherName = name
				u, err := env.Data.FindUser(ctx, name, domain.RoleTeacher)
				switch {
				case err == nil:
					sc.TeacherID, sc.TeacherName = u.ID, u.Name
				case errors.Is(err, school.ErrNotFound):
					unmatched = append(unmatched, "teacher "+name)
				default:
					return "", err
				}
			}
			if name := strings.TrimSpace(args.String("curriculum_name")); name != "" {
				sc.CurriculumName = name
				c, err := env.Data.FindCurriculum(ctx, name)
				switch {
				case err == nil:
					sc.CurriculumID, sc.CurriculumName = c.ID, c.Name
				case errors.Is(err, school.ErrNotFound):
					unmatched = append(unmatched, "curriculum "+name)
				default:
					return "", err
				}
			}

			created, err := env.Data.CreateSchedule(ctx, sc)
			if err != nil {
				return "", err
			}
			return encode(struct {
				Created   bool            `json:"created"`
				Schedule  domain.Schedule `json:"schedule"`
				Unmatched []string        `json:"unmatched,omitempty"`
			}{true, created, unmatched})
		},
	}
}
