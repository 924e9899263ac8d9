// Package markdown converts fetched HTML into sanitized markdown and
// plain text for storage and model prompts.
package markdown

import (
	"fmt"
	"html"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/microcosm-cc/bluemonday"
)

// Converter sanitizes HTML and renders it as markdown, capping output
// length. It is safe for concurrent use.
type Converter struct {
	policy    *bluemonday.Policy
	converter *md.Converter
	maxChars  int
}

// NewConverter creates a converter whose output is truncated to
// maxChars characters. A non-positive maxChars disables the cap.
func NewConverter(maxChars int) *Converter {
	return &Converter{
		policy:    bluemonday.UGCPolicy(),
		converter: md.NewConverter("", true, nil),
		maxChars:  maxChars,
	}
}

// FromHTML sanitizes the input and converts it to markdown.
func (c *Converter) FromHTML(input string) (string, error) {
	sanitized := c.policy.Sanitize(input)

	converted, err := c.converter.ConvertString(sanitized)
	if err != nil {
		return "", fmt.Errorf("convert html to markdown: %w", err)
	}

	converted = strings.TrimSpace(converted)
	return Truncate(converted, c.maxChars), nil
}

// Truncate cuts s to at most maxChars characters. A non-positive
// maxChars returns s unchanged.
func Truncate(s string, maxChars int) string {
	if maxChars <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}

var strict = bluemonday.StrictPolicy()

// Text strips all markup from the input and returns trimmed plain text
// with entities decoded.
func Text(input string) string {
	stripped := strict.Sanitize(input)
	return strings.TrimSpace(html.UnescapeString(stripped))
}
