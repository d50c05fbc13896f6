package scraper

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/antchfx/htmlquery"
)

const metaXPath = "//meta[@content and (@name or @property)]"

// ExtractMetadata maps each meta name or property to its content. Later
// tags win on duplicate keys.
func ExtractMetadata(doc *goquery.Document) map[string]string {
	out := make(map[string]string)
	if len(doc.Nodes) == 0 {
		return out
	}

	nodes, err := htmlquery.QueryAll(doc.Nodes[0], metaXPath)
	if err != nil {
		return out
	}

	for _, n := range nodes {
		key := strings.TrimSpace(htmlquery.SelectAttr(n, "name"))
		if key == "" {
			key = strings.TrimSpace(htmlquery.SelectAttr(n, "property"))
		}
		content := PlainText(htmlquery.SelectAttr(n, "content"))
		if key != "" && content != "" {
			out[key] = content
		}
	}
	return out
}
