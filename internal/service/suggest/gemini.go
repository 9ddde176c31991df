package suggest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"google.golang.org/genai"

	"github.com/oggyb/fashionjiok/internal/config"
	svcErr "github.com/oggyb/fashionjiok/internal/errors"
)

// ErrNotConfigured is returned when no API key is set.
var ErrNotConfigured = errors.New("ai client not configured")

// GeminiClient calls Gemini through the genai SDK behind a circuit breaker.
type GeminiClient struct {
	client *genai.Client // nil when not configured
	model  string
	cb     *gobreaker.CircuitBreaker
}

// NewGeminiClient builds the client. A missing key or a rejected config leaves
// it disabled; Generate then reports the service as unavailable.
func NewGeminiClient(cfg config.AIConfig, log *slog.Logger) *GeminiClient {
	if log == nil {
		log = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	c := &GeminiClient{
		model: cfg.Model,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "gemini",
			MaxRequests: 1,
			Interval:    30 * time.Second,
			Timeout:     60 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			},
		}),
	}
	if cfg.APIKey == "" {
		return c
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: &http.Client{Timeout: timeout},
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions.BaseURL = cfg.BaseURL
	}
	client, err := genai.NewClient(context.Background(), cc)
	if err != nil {
		log.Error("gemini client init failed", "err", err)
		return c
	}
	c.client = client
	return c
}

func (c *GeminiClient) Enabled() bool { return c.client != nil }

// Generate sends prompt and returns the concatenated text of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", svcErr.Unavailable("AI service is not available", ErrNotConfigured)
	}

	out, err := c.cb.Execute(func() (any, error) {
		return c.generate(ctx, prompt)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return "", svcErr.Unavailable("AI service is not available", err)
	}
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *GeminiClient) generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", errors.New("gemini returned no candidates")
	}

	var sb strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			sb.WriteString(p.Text)
		}
	}
	return sb.String(), nil
}
