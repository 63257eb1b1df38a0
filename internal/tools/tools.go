// Package tools defines the school tool catalog the chat agent can call.
// Every handler derives its scope from the caller in the ToolEnv and
// answers with a JSON payload for the model.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/soyeahso/sprout/internal/agent"
	"github.com/soyeahso/sprout/internal/domain"
	"github.com/soyeahso/sprout/internal/school"
)

// Default result limits.
const (
	ReportLimit = 10
	ListLimit   = 20
)

var (
	parentOnly  = []domain.Role{domain.RoleParent}
	adminOnly   = []domain.Role{domain.RoleAdmin}
	parentAdmin = []domain.Role{domain.RoleParent, domain.RoleAdmin}
)

// Catalog returns every tool descriptor in registration order.
func Catalog() []agent.ToolDescriptor {
	return []agent.ToolDescriptor{
		getMyChildren(),
		getDailyReports(),
		getWeeklySummary(),
		getSemesterReports(),
		getDevelopmentProgress(),
		getPayments(),
		getSchedules(),
		searchChildren(),
		getPaymentOverview(),
		createSchedule(),
	}
}

// NewRegistry returns a tool registry holding the full catalog.
func NewRegistry() (*agent.ToolRegistry, error) {
	r := agent.NewToolRegistry()
	for _, d := range Catalog() {
		if err := r.Register(d); err != nil {
			return nil, fmt.Errorf("registering tool %s: %w", d.Name, err)
		}
	}
	return r, nil
}

// noRecords is the explicit empty answer, so the model does not guess.
type noRecords struct {
	Found   bool   `json:"found"`
	Message string `json:"message"`
}

func empty(what string) (string, error) {
	return encode(noRecords{Found: false, Message: "no related records found: " + what})
}

func encode(v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("encoding result: %w", err)
	}
	return string(data), nil
}

// scoped resolves the caller's children and narrows them by an optional
// name. The returned string is a ready empty payload when nothing is in
// scope.
func scoped(ctx context.Context, env agent.ToolEnv, childName string) ([]domain.Child, string, error) {
	children, err := school.ScopeChildren(ctx, env.Data, env.Caller)
	if err != nil {
		return nil, "", err
	}
	if len(children) == 0 {
		out, err := empty("no children are linked to this account")
		return nil, out, err
	}
	matched := school.NarrowChildren(children, childName)
	if len(matched) == 0 {
		out, err := empty(fmt.Sprintf("no child named %q in scope", childName))
		return nil, out, err
	}
	return matched, "", nil
}

// period resolves an optional period or date argument. An empty value
// yields an unbounded range.
func period(value string, now time.Time) (school.Range, error) {
	if value == "" {
		return school.Range{}, nil
	}
	r, ok := school.ResolveDateOrPeriod(value, now)
	if !ok {
		return school.Range{}, fmt.Errorf("unrecognized period %q: use today, yesterday, this week, last week, this month, last month or YYYY-MM-DD", value)
	}
	return r, nil
}

func childNameField() agent.Field {
	return agent.Field{
		Name:        "child_name",
		Type:        agent.TypeString,
		Description: "Optional full name or nickname of one child, partial match.",
	}
}

func limitField(def int) agent.Field {
	return agent.Field{
		Name:        "limit",
		Type:        agent.TypeInteger,
		Default:     def,
		Description: fmt.Sprintf("Maximum number of records (default %d).", def),
	}
}

func clampLimit(n, def int) int {
	if n <= 0 {
		return def
	}
	if n > 100 {
		return 100
	}
	return n
}
