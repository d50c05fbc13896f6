package chat

import (
	"fmt"
	"html"
	"strings"

	"github.com/GriffinCanCode/SitePreview/backend/internal/providers/scraper"
	"github.com/microcosm-cc/bluemonday"
)

// Message is one turn of the widget conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Answer is the reply to a chat message.
type Answer struct {
	Response string   `json:"response"`
	Sources  []string `json:"sources"`
}

// previewLength bounds the excerpt quoted from a matching chunk.
const previewLength = 200

var strict = bluemonday.StrictPolicy()

// Responder composes answers from extracted page content.
type Responder struct {
	ChunkSize    int
	ChunkOverlap int
	TopChunks    int
}

// NewResponder returns a responder with the standard chunking parameters.
func NewResponder() *Responder {
	return &Responder{
		ChunkSize:    scraper.ChunkSize,
		ChunkOverlap: scraper.ChunkOverlap,
		TopChunks:    scraper.TopChunks,
	}
}

// Respond answers message using content. The page URL is cited as the
// source whenever a content chunk matched the question.
func (r *Responder) Respond(content *scraper.Content, message string) Answer {
	chunks := scraper.Chunk(content.MainContent, r.ChunkSize, r.ChunkOverlap)
	relevant := scraper.Rank(chunks, message, r.TopChunks)

	sources := []string{}
	if len(relevant) > 0 {
		sources = append(sources, content.URL)
	}

	return Answer{
		Response: sanitize(compose(strings.ToLower(message), content, relevant)),
		Sources:  sources,
	}
}

func compose(msg string, c *scraper.Content, relevant []string) string {
	switch {
	case strings.Contains(msg, "what") || strings.Contains(msg, "tell me about"):
		return fmt.Sprintf("This website is titled \"%s\". %s\n\nThe main topics covered include: %s.",
			c.Title, c.Description, strings.Join(first(c.Headings, 3), ", "))

	case strings.Contains(msg, "how") || strings.Contains(msg, "help"):
		return fmt.Sprintf("I can help you understand this website better. %s\n\nYou can browse through sections like: %s.",
			c.Description, strings.Join(first(c.Headings, 5), ", "))

	case strings.Contains(msg, "contact") || strings.Contains(msg, "reach"):
		for _, l := range c.Links {
			if strings.Contains(strings.ToLower(l.Text), "contact") || strings.Contains(strings.ToLower(l.URL), "contact") {
				return "You can contact them here: " + l.URL
			}
		}
		return `I couldn't find specific contact information on this page. You may want to look for a "Contact" or "About" page.`

	case len(relevant) > 0:
		return fmt.Sprintf("Based on the website content:\n\n%s...\n\nWould you like to know more about \"%s\"?",
			scraper.Truncate(relevant[0], previewLength), c.Title)
	}

	return fmt.Sprintf("I'm here to help you with questions about \"%s\". %s\n\nWhat specific information are you looking for?",
		c.Title, c.Description)
}

func first(s []string, n int) []string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// sanitize drops any markup that slipped into page text.
func sanitize(s string) string {
	return html.UnescapeString(strict.Sanitize(s))
}
