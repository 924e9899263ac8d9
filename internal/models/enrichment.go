package models

// Enrichment is the structured output of one enrich-and-score call:
// everything the language model derives from a single item.
type Enrichment struct {
	Summary        string   `json:"summary"`
	Topics         []string `json:"topics"`
	People         []string `json:"people"`
	Companies      []string `json:"companies"`
	Technologies   []string `json:"technologies"`
	Sentiment      string   `json:"sentiment"` // positive, neutral, negative
	Score          int      `json:"score"`     // 0..100 relevance against the briefing criteria
	ScoreReasoning string   `json:"score_reasoning"`
}
