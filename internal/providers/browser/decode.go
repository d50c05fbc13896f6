package browser

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
)

// DetectCharset guesses the charset of raw bytes, defaulting to utf-8.
func DetectCharset(data []byte) string {
	detector := chardet.NewHtmlDetector()
	result, err := detector.DetectBest(data)
	if err != nil || result == nil {
		return "utf-8"
	}
	return strings.ToLower(result.Charset)
}

// Decode transcodes body to UTF-8. A BOM, a charset parameter in
// contentType or a <meta> declaration decides the encoding; chardet is
// consulted only when none of those is present.
func Decode(body []byte, contentType string) ([]byte, string) {
	enc, name, certain := charset.DetermineEncoding(body, contentType)
	if !certain && name == "windows-1252" {
		if e, n := charset.Lookup(DetectCharset(body)); e != nil {
			enc, name = e, n
		}
	}
	if name == "utf-8" {
		return body, name
	}

	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return body, "utf-8"
	}
	return out, name
}

// Parse decodes a fetched page and builds a document from it.
func Parse(page *Page) (*goquery.Document, error) {
	body, _ := Decode(page.Body, page.ContentType)
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// ParseString builds a document from already-decoded markup.
func ParseString(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Render serialises a document back to markup.
func Render(doc *goquery.Document) (string, error) {
	out, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("failed to render HTML: %w", err)
	}
	return out, nil
}
