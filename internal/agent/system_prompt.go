package agent

import (
	"fmt"
	"strings"
	"time"

	"github.com/soyeahso/sprout/internal/domain"
)

// PromptConfig controls system prompt generation.
type PromptConfig struct {
	AgentName   string
	Caller      domain.Caller
	Now         time.Time
	ToolNames   []string
	ExtraPrompt string
}

var indonesianWeekdays = [...]string{"Minggu", "Senin", "Selasa", "Rabu", "Kamis", "Jumat", "Sabtu"}

// BuildSystemPrompt constructs the system prompt for the model.
func BuildSystemPrompt(cfg PromptConfig) string {
	var b strings.Builder

	name := cfg.AgentName
	if name == "" {
		name = "Sprout"
	}
	fmt.Fprintf(&b, "You are %s, the assistant of a kindergarten and daycare. You help %s users with questions about the school's records.\n\n",
		name, roleAudience(cfg.Caller.Role))

	// Date context
	now := cfg.Now
	if now.IsZero() {
		now = time.Now()
	}
	fmt.Fprintf(&b, "Current date: %s (%s, %s)\n",
		now.Format(time.DateOnly), indonesianWeekdays[now.Weekday()], now.Weekday())
	fmt.Fprintf(&b, "Current time: %s %s\n", now.Format("15:04"), now.Format("MST"))

	// Caller context
	if cfg.Caller.Name != "" {
		fmt.Fprintf(&b, "User: %s\n", cfg.Caller.Name)
	}
	fmt.Fprintf(&b, "Role: %s\n", cfg.Caller.Role)
	b.WriteString("\n")

	// Guidelines
	b.WriteString("Guidelines:\n")
	b.WriteString("- Reply in the language the user writes in (Bahasa Indonesia or English).\n")
	b.WriteString("- Answer only from tool results. Never invent children, reports, payments or schedules.\n")
	b.WriteString("- You never need to ask for the user's ID; tools already know who is asking.\n")
	b.WriteString("- If a tool returns an error or no records, say so plainly and suggest what the user can do.\n")
	b.WriteString("- Amounts are in Indonesian Rupiah. Keep answers short and friendly.\n")
	if cfg.Caller.Role == domain.RoleParent {
		b.WriteString("- Only discuss the user's own children.\n")
	}

	if len(cfg.ToolNames) > 0 {
		fmt.Fprintf(&b, "\nAvailable tools: %s\n", strings.Join(cfg.ToolNames, ", "))
	}

	// Extra/custom prompt
	if cfg.ExtraPrompt != "" {
		b.WriteString("\n")
		b.WriteString(cfg.ExtraPrompt)
		b.WriteString("\n")
	}

	return b.String()
}

func roleAudience(role domain.Role) string {
	switch role {
	case domain.RoleParent:
		return "parent"
	case domain.RoleAdmin:
		return "school administrator"
	case domain.RoleTeacher:
		return "teacher"
	}
	return "school"
}
