package enrichment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"

	"github.com/briefmill/briefmill/internal/models"
)

const (
	// Per-attempt timeout for chat completion calls.
	callTimeout = 60 * time.Second

	maxRetries = 3
	baseDelay  = 1 * time.Second
)

// OpenAIProvider implements Provider against the OpenAI chat
// completion API with JSON-mode responses.
type OpenAIProvider struct {
	client  *openai.Client
	model   string
	prompts *Prompts
	logger  *slog.Logger
}

// NewOpenAIProvider creates a provider using the given API key and model.
func NewOpenAIProvider(apiKey, model string, logger *slog.Logger) *OpenAIProvider {
	return &OpenAIProvider{
		client:  openai.NewClient(apiKey),
		model:   model,
		prompts: NewPrompts(),
		logger:  logger,
	}
}

type enrichResponse struct {
	Summary  string   `json:"summary"`
	Topics   []string `json:"topics"`
	Entities struct {
		People       []string `json:"people"`
		Companies    []string `json:"companies"`
		Technologies []string `json:"technologies"`
	} `json:"entities"`
	Sentiment      string `json:"sentiment"`
	Score          int    `json:"score"`
	ScoreReasoning string `json:"scoreReasoning"`
}

type webExtractResponse struct {
	Items []WebItem `json:"items"`
}

type emailExtractResponse struct {
	Items []EmailItem `json:"items"`
}

// EnrichAndScore summarizes, tags, and scores one item.
func (p *OpenAIProvider) EnrichAndScore(ctx context.Context, caller Caller, input EnrichInput) (*models.Enrichment, Usage, error) {
	if strings.TrimSpace(input.Content) == "" && strings.TrimSpace(input.WebContent) == "" {
		return nil, Usage{Model: p.model}, fmt.Errorf("no content to enrich")
	}

	raw, usage, err := p.complete(ctx, caller, p.prompts.EnrichSystem, p.prompts.BuildEnrichPrompt(input))
	if err != nil {
		return nil, usage, err
	}

	var parsed enrichResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, usage, fmt.Errorf("parse enrichment response: %w", err)
	}

	enrichment := &models.Enrichment{
		Summary:        strings.TrimSpace(parsed.Summary),
		Topics:         parsed.Topics,
		People:         parsed.Entities.People,
		Companies:      parsed.Entities.Companies,
		Technologies:   parsed.Entities.Technologies,
		Sentiment:      normalizeSentiment(parsed.Sentiment),
		Score:          clampScore(parsed.Score),
		ScoreReasoning: strings.TrimSpace(parsed.ScoreReasoning),
	}
	return enrichment, usage, nil
}

// ExtractFromWeb pulls discrete entries out of a monitored page.
func (p *OpenAIProvider) ExtractFromWeb(ctx context.Context, caller Caller, markdown, instructions string, maxItems int) ([]WebItem, Usage, error) {
	if strings.TrimSpace(markdown) == "" {
		return nil, Usage{Model: p.model}, fmt.Errorf("no content to extract from")
	}

	raw, usage, err := p.complete(ctx, caller, p.prompts.ExtractWebSystem, p.prompts.BuildExtractWebPrompt(markdown, instructions, maxItems))
	if err != nil {
		return nil, usage, err
	}

	var parsed webExtractResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, usage, fmt.Errorf("parse extraction response: %w", err)
	}

	items := make([]WebItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		item.Title = strings.TrimSpace(item.Title)
		item.Content = strings.TrimSpace(item.Content)
		item.Link = strings.TrimSpace(item.Link)
		if item.Title == "" {
			continue
		}
		items = append(items, item)
		if len(items) >= maxItems {
			break
		}
	}
	return items, usage, nil
}

// ExtractFromEmail pulls discrete entries out of a newsletter body.
func (p *OpenAIProvider) ExtractFromEmail(ctx context.Context, caller Caller, subject, body string, maxItems int) ([]EmailItem, Usage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, Usage{Model: p.model}, fmt.Errorf("no content to extract from")
	}

	raw, usage, err := p.complete(ctx, caller, p.prompts.ExtractEmailSystem, p.prompts.BuildExtractEmailPrompt(subject, body, maxItems))
	if err != nil {
		return nil, usage, err
	}

	var parsed emailExtractResponse
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, usage, fmt.Errorf("parse extraction response: %w", err)
	}

	items := make([]EmailItem, 0, len(parsed.Items))
	for _, item := range parsed.Items {
		item.Title = strings.TrimSpace(item.Title)
		item.Summary = strings.TrimSpace(item.Summary)
		item.URL = strings.TrimSpace(item.URL)
		if item.Title == "" {
			continue
		}
		items = append(items, item)
		if len(items) >= maxItems {
			break
		}
	}
	return items, usage, nil
}

// GenerateReportEmail writes the subject and intro for a digest mail.
func (p *OpenAIProvider) GenerateReportEmail(ctx context.Context, caller Caller, briefingTitle, briefingDescription, formattedItems string) (*ReportEmail, Usage, error) {
	raw, usage, err := p.complete(ctx, caller, p.prompts.ReportEmailSystem, p.prompts.BuildReportEmailPrompt(briefingTitle, briefingDescription, formattedItems))
	if err != nil {
		return nil, usage, err
	}

	var parsed ReportEmail
	if err := json.Unmarshal([]byte(stripFences(raw)), &parsed); err != nil {
		return nil, usage, fmt.Errorf("parse report email response: %w", err)
	}
	parsed.Subject = strings.TrimSpace(parsed.Subject)
	parsed.Summary = strings.TrimSpace(parsed.Summary)
	if parsed.Subject == "" {
		return nil, usage, fmt.Errorf("model returned empty subject")
	}
	return &parsed, usage, nil
}

// complete runs one chat completion with retry on rate limits.
func (p *OpenAIProvider) complete(ctx context.Context, caller Caller, system, user string) (string, Usage, error) {
	usage := Usage{Model: p.model}

	var resp openai.ChatCompletionResponse
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		apiCtx, cancel := context.WithTimeout(ctx, callTimeout)
		resp, err = p.client.CreateChatCompletion(apiCtx, openai.ChatCompletionRequest{
			Model: p.model,
			ResponseFormat: &openai.ChatCompletionResponseFormat{
				Type: openai.ChatCompletionResponseFormatTypeJSONObject,
			},
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleSystem, Content: system},
				{Role: openai.ChatMessageRoleUser, Content: user},
			},
		})
		cancel()

		if err == nil {
			break
		}
		if !isRateLimited(err) || attempt == maxRetries-1 {
			break
		}

		delay := baseDelay*time.Duration(1<<uint(attempt)) + time.Duration(rand.Intn(500))*time.Millisecond
		p.logger.Warn("rate limited, retrying with backoff",
			"model", p.model,
			"attempt", attempt+1,
			"delay_ms", delay.Milliseconds(),
			"trace", caller.Trace)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return "", usage, ctx.Err()
		}
	}

	if err != nil {
		return "", usage, fmt.Errorf("openai api call: %w", err)
	}

	usage.PromptTokens = resp.Usage.PromptTokens
	usage.CompletionTokens = resp.Usage.CompletionTokens
	usage.TotalTokens = resp.Usage.TotalTokens

	if len(resp.Choices) == 0 {
		return "", usage, fmt.Errorf("no completion choices returned from model %s", p.model)
	}
	content := resp.Choices[0].Message.Content
	if content == "" {
		return "", usage, fmt.Errorf("empty response from model %s (finish_reason: %s)", p.model, resp.Choices[0].FinishReason)
	}
	return content, usage, nil
}

func isRateLimited(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "Rate limit") || strings.Contains(msg, "Too Many Requests")
}

// stripFences removes a markdown code fence if the model wrapped its
// JSON in one despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

func clampScore(score int) int {
	if score < 0 {
		return 0
	}
	if score > 100 {
		return 100
	}
	return score
}

func normalizeSentiment(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return "positive"
	case "negative":
		return "negative"
	default:
		return "neutral"
	}
}
