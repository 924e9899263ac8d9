package enrichment

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/briefmill/briefmill/internal/models"
)

// MockProvider is a deterministic rule-based Provider used when no API
// key is configured. Scores come from keyword overlap with the
// briefing criteria, so local runs behave sensibly without spending
// tokens.
type MockProvider struct{}

// NewMockProvider creates a mock provider.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// EnrichAndScore produces a heuristic enrichment without model calls.
func (m *MockProvider) EnrichAndScore(ctx context.Context, caller Caller, input EnrichInput) (*models.Enrichment, Usage, error) {
	content := input.Content
	if content == "" {
		content = input.WebContent
	}
	if strings.TrimSpace(content) == "" {
		return nil, mockUsage(), fmt.Errorf("no content to enrich")
	}

	matched, total := criteriaOverlap(input.BriefingCriteria, input.Title+" "+content)

	enrichment := &models.Enrichment{
		Summary:        summarize(content),
		Topics:         inferTopics(content),
		People:         extractPeople(content),
		Companies:      matchKnown(content, knownCompanies),
		Technologies:   matchKnown(content, knownTechnologies),
		Sentiment:      inferSentiment(content),
		Score:          overlapScore(matched, total),
		ScoreReasoning: fmt.Sprintf("matched %d of %d interest terms", matched, total),
	}
	return enrichment, mockUsage(), nil
}

// ExtractFromWeb is not supported by the mock provider.
func (m *MockProvider) ExtractFromWeb(ctx context.Context, caller Caller, markdown, instructions string, maxItems int) ([]WebItem, Usage, error) {
	return nil, mockUsage(), fmt.Errorf("mock provider does not support web extraction")
}

// ExtractFromEmail is not supported by the mock provider.
func (m *MockProvider) ExtractFromEmail(ctx context.Context, caller Caller, subject, body string, maxItems int) ([]EmailItem, Usage, error) {
	return nil, mockUsage(), fmt.Errorf("mock provider does not support email extraction")
}

// GenerateReportEmail composes a plain subject and preview without a
// model call, so local digest delivery still works.
func (m *MockProvider) GenerateReportEmail(ctx context.Context, caller Caller, briefingTitle, briefingDescription, formattedItems string) (*ReportEmail, Usage, error) {
	count := 0
	for _, line := range strings.Split(formattedItems, "\n") {
		if strings.TrimSpace(line) != "" {
			count++
		}
	}

	subject := briefingTitle
	if count > 0 {
		subject = fmt.Sprintf("%s: %d new stories", briefingTitle, count)
	}
	summary := strings.TrimSpace(briefingDescription)
	if summary == "" {
		summary = fmt.Sprintf("Your %q digest is ready.", briefingTitle)
	}
	return &ReportEmail{Subject: subject, Summary: summary}, mockUsage(), nil
}

func mockUsage() Usage {
	return Usage{Model: "mock"}
}

// summarize truncates content to a summary-sized prefix.
func summarize(content string) string {
	trimmed := strings.TrimSpace(content)
	runes := []rune(trimmed)
	if len(runes) <= 250 {
		return trimmed
	}
	return string(runes[:250]) + "..."
}

var topicKeywords = []struct {
	topic    string
	keywords []string
}{
	{"security", []string{"security", "breach", "vulnerability", "malware", "ransomware", "exploit"}},
	{"ai", []string{"ai", "machine learning", "neural", "llm", "model", "inference"}},
	{"cloud", []string{"cloud", "kubernetes", "serverless", "aws", "azure", "gcp"}},
	{"hardware", []string{"chip", "semiconductor", "gpu", "processor", "silicon"}},
	{"startups", []string{"startup", "funding", "seed round", "series a", "venture"}},
	{"markets", []string{"stock", "market", "earnings", "revenue", "ipo", "shares"}},
	{"policy", []string{"regulation", "policy", "antitrust", "legislation", "lawsuit"}},
	{"science", []string{"research", "study", "scientists", "experiment", "discovery"}},
}

func inferTopics(content string) []string {
	lower := strings.ToLower(content)
	topics := make([]string, 0, 3)
	for _, tk := range topicKeywords {
		for _, word := range tk.keywords {
			if strings.Contains(lower, word) {
				topics = append(topics, tk.topic)
				break
			}
		}
	}
	if len(topics) == 0 {
		topics = append(topics, "general")
	}
	return topics
}

var knownCompanies = []string{
	"OpenAI", "Anthropic", "Google", "Microsoft", "Apple", "Amazon",
	"Meta", "Nvidia", "Intel", "AMD", "IBM", "Oracle", "Tesla",
}

var knownTechnologies = []string{
	"Kubernetes", "Docker", "PostgreSQL", "Redis", "Linux", "Rust",
	"Python", "JavaScript", "TypeScript", "WebAssembly", "GraphQL",
}

func matchKnown(content string, names []string) []string {
	lower := strings.ToLower(content)
	matched := make([]string, 0, 2)
	for _, name := range names {
		if strings.Contains(lower, strings.ToLower(name)) {
			matched = append(matched, name)
		}
	}
	return matched
}

var personPattern = regexp.MustCompile(`(?:CEO|CTO|President|Dr\.|Prof\.)\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+)?)`)

func extractPeople(content string) []string {
	seen := make(map[string]bool)
	people := make([]string, 0, 2)
	for _, match := range personPattern.FindAllStringSubmatch(content, 5) {
		name := match[1]
		if !seen[name] {
			seen[name] = true
			people = append(people, name)
		}
	}
	return people
}

var positiveWords = []string{"growth", "success", "breakthrough", "record", "wins", "launch", "improved"}
var negativeWords = []string{"breach", "decline", "layoffs", "failure", "lawsuit", "outage", "losses"}

func inferSentiment(content string) string {
	lower := strings.ToLower(content)
	positive, negative := 0, 0
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			positive++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			negative++
		}
	}
	switch {
	case positive > negative:
		return "positive"
	case negative > positive:
		return "negative"
	default:
		return "neutral"
	}
}

// criteriaOverlap counts how many distinct interest terms appear in the
// content. Short words are skipped; they match everything.
func criteriaOverlap(criteria, content string) (matched, total int) {
	lower := strings.ToLower(content)
	seen := make(map[string]bool)
	for _, word := range strings.Fields(strings.ToLower(criteria)) {
		word = strings.Trim(word, ".,;:!?\"'()")
		if len(word) < 4 || seen[word] {
			continue
		}
		seen[word] = true
		total++
		if strings.Contains(lower, word) {
			matched++
		}
	}
	return matched, total
}

func overlapScore(matched, total int) int {
	if total == 0 {
		return 50
	}
	return clampScore(10 + (90*matched)/total)
}
