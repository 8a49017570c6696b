package service

import (
	"strings"

	"github.com/xxxsen/kbchat/internal/model"
)

const (
	DefaultQueryTurns     = 5
	assistantExcerptRunes = 200
	fallbackQuery         = "Hello"
)

// BuildQuery renders the last maxTurns messages as a labelled transcript used
// as the retrieval query. It never returns an empty string.
func BuildQuery(messages []model.Message, maxTurns int) string {
	if maxTurns <= 0 {
		maxTurns = DefaultQueryTurns
	}
	recent := messages
	if len(recent) > maxTurns {
		recent = recent[len(recent)-maxTurns:]
	}
	parts := make([]string, 0, len(recent))
	for _, m := range recent {
		if m.Content == "" {
			continue
		}
		switch m.Role {
		case model.RoleUser:
			parts = append(parts, "User: "+m.Content)
		case model.RoleAssistant:
			parts = append(parts, "Assistant: "+excerpt(m.Content, assistantExcerptRunes))
		}
	}
	if query := strings.Join(parts, "\n"); query != "" {
		return query
	}
	if last, ok := model.LastUserMessage(messages); ok && last.Content != "" {
		return last.Content
	}
	return fallbackQuery
}

func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
