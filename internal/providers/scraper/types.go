package scraper

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

const (
	// MaxLinks caps the outbound link list.
	MaxLinks = 50

	// DescriptionLength bounds a description taken from body text.
	DescriptionLength = 200

	// minParagraphLength drops short fragments from the paragraph fallback.
	minParagraphLength = 20
)

var strict = bluemonday.StrictPolicy()

// Link is an outbound reference found on the page.
type Link struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Content is what the chat responder knows about a page.
type Content struct {
	URL         string            `json:"url"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	MainContent string            `json:"main_content"`
	Headings    []string          `json:"headings"`
	Links       []Link            `json:"links"`
	Metadata    map[string]string `json:"metadata"`
}

// PlainText strips markup from s and collapses whitespace.
func PlainText(s string) string {
	return NormalizeWhitespace(html.UnescapeString(strict.Sanitize(s)))
}

// NormalizeWhitespace collapses runs of whitespace into one space
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}
