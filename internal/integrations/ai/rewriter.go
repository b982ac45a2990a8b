// Package ai implements the call-summary rewriter against an OpenAI-compatible
// chat completions endpoint. The transcriber produces terse, fragmentary
// summaries; the rewriter turns them into one or two readable sentences for
// the call log UI. Rewriting is best effort and never blocks call ingestion.
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-resty/resty/v2"

	"github.com/aroha-app/aroha-backend/internal/config"
)

// ErrEmptySummary is returned when there is no summary text to rewrite.
var ErrEmptySummary = errors.New("ai: summary is empty")

const systemPrompt = "You rewrite rough phone call summaries for a salon booking system. " +
	"Return one or two plain sentences. Keep names, times, and service details exactly as given. " +
	"Do not invent information."

// Rewriter rewrites call summaries via a chat completions API
type Rewriter struct {
	client *resty.Client
	model  string
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// NewRewriter creates a rewriter from AI integration config
func NewRewriter(cfg *config.AIConfig) *Rewriter {
	client := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}

	return &Rewriter{
		client: client,
		model:  cfg.Model,
	}
}

// Rewrite returns a polished version of a call summary
func (r *Rewriter) Rewrite(ctx context.Context, summary string) (string, error) {
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return "", ErrEmptySummary
	}

	body := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: summary},
		},
	}

	var out chatResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&out).
		Post("/v1/chat/completions")
	if err != nil {
		return "", fmt.Errorf("ai: request failed: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		if out.Error != nil && out.Error.Message != "" {
			return "", fmt.Errorf("ai: completion failed with status %d: %s", resp.StatusCode(), out.Error.Message)
		}
		return "", fmt.Errorf("ai: completion failed with status %d", resp.StatusCode())
	}

	if len(out.Choices) == 0 {
		return "", errors.New("ai: completion returned no choices")
	}

	rewritten := strings.TrimSpace(out.Choices[0].Message.Content)
	if rewritten == "" {
		return "", errors.New("ai: completion returned empty content")
	}

	return rewritten, nil
}
