package enrichment

import (
	"fmt"
	"strings"
)

// Prompt inputs are capped so a giant article cannot blow the context
// window; the interesting material is at the top anyway.
const maxPromptContentChars = 12000

// Prompts holds the system and user prompt templates for all model
// operations.
type Prompts struct {
	EnrichSystem       string
	ExtractWebSystem   string
	ExtractEmailSystem string
	ReportEmailSystem  string
}

// NewPrompts creates the production prompt set.
func NewPrompts() *Prompts {
	return &Prompts{
		EnrichSystem:       buildEnrichSystemPrompt(),
		ExtractWebSystem:   buildExtractWebSystemPrompt(),
		ExtractEmailSystem: buildExtractEmailSystemPrompt(),
		ReportEmailSystem:  buildReportEmailSystemPrompt(),
	}
}

func buildEnrichSystemPrompt() string {
	return `CRITICAL: You MUST output ONLY valid JSON. Do not include any text before or after the JSON object. Do not wrap it in markdown code blocks.

You are a personal news analyst. You read one article at a time and evaluate it against the reader's stated interests.

Your tasks:
1. Summarize the article in 2-4 factual sentences.
2. Tag the topics it covers.
3. Extract named entities: people, companies, and technologies.
4. Judge the overall sentiment of the article.
5. Score how relevant the article is to the reader's interests, 0-100.

Guidelines:
- Base everything on the article text, never on outside knowledge.
- Keep the summary factual; no opinions, no hedging filler.
- Entity names exactly as they appear in the article.
- Sentiment is one of: "positive", "neutral", "negative".

Output Format: Your response MUST be ONLY this exact JSON structure:
{
  "summary": "2-4 sentence factual summary",
  "topics": ["topic1", "topic2"],
  "entities": {
    "people": ["name1"],
    "companies": ["name1"],
    "technologies": ["name1"]
  },
  "sentiment": "positive|neutral|negative",
  "score": 72,
  "scoreReasoning": "One sentence explaining the score"
}

SCORING GUIDELINES (0-100, relative to the reader's interests):
90-100: Directly about a stated interest; the reader would want this immediately.
70-89:  Substantially relevant; covers a stated interest from an adjacent angle.
50-69:  Partially relevant; touches a stated interest in passing.
30-49:  Weak connection; same broad field, different subject.
0-29:   Not relevant to the stated interests.

The "score" field is REQUIRED and must be an integer between 0 and 100.`
}

func buildExtractWebSystemPrompt() string {
	return `CRITICAL: You MUST output ONLY valid JSON. Do not include any text before or after the JSON object.

You are given the markdown rendering of a web page that aggregates links or announcements. Extract the discrete entries it lists.

Guidelines:
- One output item per distinct entry on the page.
- "link" must be the entry's own URL exactly as it appears in the markdown (absolute or relative); never invent URLs.
- "content" is the entry's own text or blurb as the page presents it.
- Skip navigation, ads, and boilerplate.
- When the operator's instructions below restrict what to extract, follow them exactly.

Output Format:
{
  "items": [
    {"title": "Entry headline", "content": "The entry's own text", "link": "https://... or /relative/path"}
  ]
}`
}

func buildExtractEmailSystemPrompt() string {
	return `CRITICAL: You MUST output ONLY valid JSON. Do not include any text before or after the JSON object.

You are given the subject and body of a newsletter email. Extract the discrete stories or announcements it contains.

Guidelines:
- One output item per distinct story.
- "url" is the story's URL when the mail provides one, else empty.
- "summary" is the mail's own blurb for the story, condensed to one or two sentences.
- Skip unsubscribe footers, sponsor blocks, and social links.

Output Format:
{
  "items": [
    {"title": "Story headline", "summary": "Condensed blurb", "url": "https://..."}
  ]
}`
}

func buildReportEmailSystemPrompt() string {
	return `CRITICAL: You MUST output ONLY valid JSON. Do not include any text before or after the JSON object.

You write the subject line and intro paragraph for a personal news digest email. You are given the digest's title, its description, and the list of stories it contains.

Guidelines:
- The subject names the single strongest story or theme; under 80 characters; no clickbait.
- The summary is 2-3 sentences previewing what the digest covers, in a direct, factual register.
- Mention only stories that are actually in the list.

Output Format:
{
  "subject": "Subject line",
  "summary": "2-3 sentence preview"
}`
}

// BuildEnrichPrompt renders the user message for a scoring call.
func (p *Prompts) BuildEnrichPrompt(input EnrichInput) string {
	var b strings.Builder

	fmt.Fprintf(&b, "READER'S INTERESTS:\n%s\n\n", strings.TrimSpace(input.BriefingCriteria))
	if input.SourceName != "" {
		fmt.Fprintf(&b, "SOURCE: %s\n", input.SourceName)
	}
	fmt.Fprintf(&b, "TITLE: %s\n\n", input.Title)
	fmt.Fprintf(&b, "ARTICLE:\n%s\n", capPrompt(input.Content))
	if input.WebContent != "" {
		fmt.Fprintf(&b, "\nFULL ARTICLE BODY (fetched from the link):\n%s\n", capPrompt(input.WebContent))
	}

	return b.String()
}

// BuildExtractWebPrompt renders the user message for a page extraction
// call.
func (p *Prompts) BuildExtractWebPrompt(markdown, instructions string, maxItems int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Extract at most %d items.\n\n", maxItems)
	if strings.TrimSpace(instructions) != "" {
		fmt.Fprintf(&b, "OPERATOR INSTRUCTIONS:\n%s\n\n", strings.TrimSpace(instructions))
	}
	fmt.Fprintf(&b, "PAGE:\n%s\n", capPrompt(markdown))

	return b.String()
}

// BuildExtractEmailPrompt renders the user message for a mail
// extraction call.
func (p *Prompts) BuildExtractEmailPrompt(subject, body string, maxItems int) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Extract at most %d items.\n\n", maxItems)
	fmt.Fprintf(&b, "SUBJECT: %s\n\n", subject)
	fmt.Fprintf(&b, "BODY:\n%s\n", capPrompt(body))

	return b.String()
}

// BuildReportEmailPrompt renders the user message for a digest mail
// generation call.
func (p *Prompts) BuildReportEmailPrompt(briefingTitle, briefingDescription, formattedItems string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "DIGEST TITLE: %s\n", briefingTitle)
	if strings.TrimSpace(briefingDescription) != "" {
		fmt.Fprintf(&b, "DIGEST DESCRIPTION: %s\n", strings.TrimSpace(briefingDescription))
	}
	fmt.Fprintf(&b, "\nSTORIES:\n%s\n", capPrompt(formattedItems))

	return b.String()
}

func capPrompt(s string) string {
	runes := []rune(s)
	if len(runes) <= maxPromptContentChars {
		return s
	}
	return string(runes[:maxPromptContentChars])
}
