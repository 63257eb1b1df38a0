package chat

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/soyeahso/sprout/internal/llm"
)

const (
	titleTimeout = 10 * time.Second
	titlePrompt  = "Write a short title (at most six words) for a conversation that starts with the user's message. " +
		"Use the same language as the message. Reply with the title only, without quotes or punctuation at the end."
)

// generateTitle asks the model for a thread title and falls back to the
// truncated first message when that fails or returns nothing usable.
func (s *Service) generateTitle(ctx context.Context, message string) string {
	fallback := truncateTitle(message, s.opts.TitleMaxLen)
	if s.titles == nil {
		return fallback
	}

	ctx, cancel := context.WithTimeout(ctx, titleTimeout)
	defer cancel()

	resp, err := s.titles.Complete(ctx, llm.CompletionRequest{
		Model:     s.opts.Model,
		System:    titlePrompt,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: message}},
		MaxTokens: 32,
	})
	if err != nil {
		s.log.Debug().Err(err).Msg("title generation failed, using message prefix")
		return fallback
	}

	title := strings.TrimSpace(strings.Trim(strings.TrimSpace(resp.Content), `"'`))
	if i := strings.IndexByte(title, '\n'); i >= 0 {
		title = strings.TrimSpace(title[:i])
	}
	if title == "" {
		return fallback
	}
	if utf8.RuneCountInString(title) > s.opts.TitleMaxLen {
		return truncateTitle(title, s.opts.TitleMaxLen)
	}
	return title
}

// truncateTitle keeps the first max runes of s on a single line, marking
// the cut with "...".
func truncateTitle(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimSpace(string(r[:max])) + "..."
}
