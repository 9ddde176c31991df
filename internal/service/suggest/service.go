// Package suggest proposes conversation openers from a profile and chat history.
package suggest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oggyb/fashionjiok/internal/app"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
)

const maxSuggestions = 3

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Turn is one line of chat history.
type Turn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

type Service struct {
	gen Generator
	log *slog.Logger
}

func NewSuggestService(appCtx *app.AppContext) *Service {
	log := appCtx.Logger.With("component", "suggest")
	return New(NewGeminiClient(appCtx.Config.AI, log), log)
}

func New(gen Generator, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{gen: gen, log: log}
}

// Suggest returns at most three one-line messages. profile is echoed into the
// prompt as JSON.
func (s *Service) Suggest(ctx context.Context, profile map[string]any, history []Turn) ([]string, error) {
	if len(profile) == 0 {
		return nil, svcErr.Validation("userProfile is required")
	}
	if history == nil {
		return nil, svcErr.Validation("chatHistory is required")
	}

	prompt, err := buildPrompt(profile, history)
	if err != nil {
		return nil, svcErr.Validation("userProfile is not serializable")
	}

	text, err := s.gen.Generate(ctx, prompt)
	if err != nil {
		s.log.ErrorContext(ctx, "suggestion generation failed", "err", err)
		return nil, err
	}

	out := splitSuggestions(text)
	s.log.DebugContext(ctx, "suggestions generated", "count", len(out))
	return out, nil
}

func buildPrompt(profile map[string]any, history []Turn) (string, error) {
	info, err := json.Marshal(profile)
	if err != nil {
		return "", err
	}

	lines := make([]string, 0, len(history))
	for _, t := range history {
		role := t.Role
		if role == "" {
			role = "user"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, t.Text))
	}

	return fmt.Sprintf(`You are a dating coach.
Suggest %d natural messages this user could send next, based on their profile and the conversation so far.

[Profile]: %s
[Conversation]:
%s

Output exactly %d sentences, one per line, without numbering.`,
		maxSuggestions, info, strings.Join(lines, "\n"), maxSuggestions), nil
}

func splitSuggestions(text string) []string {
	out := make([]string, 0, maxSuggestions)
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
