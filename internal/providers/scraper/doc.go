// Package scraper extracts readable content from a page for the chat
// responder.
//
// This package is organized into small modules:
//   - extract: title, description, headings, main text and links
//   - metadata: the <meta> name/property map, via XPath
//   - chunk: overlapping word chunks and keyword ranking
//   - types: whitespace and sanitising helpers
//
// Built on specialized libraries:
//   - goquery: CSS selectors over the parsed document
//   - htmlquery: XPath over the same node tree
//   - bluemonday: reduces attribute and text values to plain text
package scraper
