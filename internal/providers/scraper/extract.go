package scraper

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// noise is removed before any text is read.
const noise = "script, style, noscript, iframe, nav, footer, header, aside, .advertisement, .ad, .cookie-banner"

var mainSelectors = []string{
	"main",
	"article",
	"[role='main']",
	".main-content",
	".content",
	"#content",
	".post-content",
	".entry-content",
}

// Extract reads content from doc. It removes navigation and other noise
// from doc as a side effect, so pass a document that is not reused.
func Extract(doc *goquery.Document, pageURL string) *Content {
	base, _ := url.Parse(pageURL)

	// meta tags live in <head>, which the noise filter leaves alone, but
	// read them first anyway
	metadata := ExtractMetadata(doc)

	doc.Find(noise).Remove()

	return &Content{
		URL:         pageURL,
		Title:       title(doc),
		Description: description(doc),
		MainContent: mainContent(doc),
		Headings:    headings(doc),
		Links:       links(doc, base),
		Metadata:    metadata,
	}
}

func title(doc *goquery.Document) string {
	if t := NormalizeWhitespace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	if h := NormalizeWhitespace(doc.Find("h1").First().Text()); h != "" {
		return h
	}
	return "Untitled Page"
}

func description(doc *goquery.Document) string {
	for _, sel := range []string{"meta[name='description']", "meta[property='og:description']"} {
		if v := PlainText(doc.Find(sel).First().AttrOr("content", "")); v != "" {
			return v
		}
	}
	return Truncate(NormalizeWhitespace(doc.Find("p").First().Text()), DescriptionLength)
}

func headings(doc *goquery.Document) []string {
	out := []string{}
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) {
		if text := NormalizeWhitespace(s.Text()); text != "" {
			out = append(out, text)
		}
	})
	return out
}

func mainContent(doc *goquery.Document) string {
	best := ""
	for _, sel := range mainSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			if text := NormalizeWhitespace(s.Text()); len(text) > len(best) {
				best = text
			}
		})
	}
	if best != "" {
		return best
	}

	var paragraphs []string
	doc.Find("p").Each(func(_ int, s *goquery.Selection) {
		if text := NormalizeWhitespace(s.Text()); len(text) > minParagraphLength {
			paragraphs = append(paragraphs, text)
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

func links(doc *goquery.Document, base *url.URL) []Link {
	out := []Link{}
	doc.Find("a[href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := NormalizeWhitespace(s.Text())
		href := strings.TrimSpace(s.AttrOr("href", ""))
		if text == "" || href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(strings.ToLower(href), "javascript:") {
			return true
		}

		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		if base != nil {
			ref = base.ResolveReference(ref)
		}

		out = append(out, Link{Text: text, URL: ref.String()})
		return len(out) < MaxLinks
	})
	return out
}
