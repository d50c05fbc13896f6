package browser

import (
	"html"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	nethtml "golang.org/x/net/html"
)

type attrKind int

const (
	single attrKind = iota
	srcset
	inlineStyle
)

// rewriteTargets lists every URL-bearing attribute the rewriter visits.
var rewriteTargets = []struct {
	selector string
	attr     string
	kind     attrKind
}{
	{"a[href]", "href", single},
	{"area[href]", "href", single},
	{"img[src]", "src", single},
	{"img[srcset]", "srcset", srcset},
	{"link[href]", "href", single},
	{"script[src]", "src", single},
	{"source[src]", "src", single},
	{"source[srcset]", "srcset", srcset},
	{"video[src]", "src", single},
	{"video[poster]", "poster", single},
	{"audio[src]", "src", single},
	{"track[src]", "src", single},
	{"iframe[src]", "src", single},
	{"form[action]", "action", single},
	{"[style]", "style", inlineStyle},
}

var cssURLPattern = regexp.MustCompile(`url\(\s*(['"]?)([^'")]+)(['"]?)\s*\)`)

var passthroughPrefixes = []string{"data:", "javascript:", "mailto:", "tel:", "#"}

// Rewrite converts relative references in doc to absolute URLs against
// base and inserts a <base> element when none exists. An existing <base
// href> is honoured when resolving.
func Rewrite(doc *goquery.Document, base *url.URL) {
	if base == nil {
		return
	}

	effective := base
	existing := doc.Find("base[href]").First()
	if href, ok := existing.Attr("href"); ok {
		if u, err := url.Parse(strings.TrimSpace(href)); err == nil {
			effective = base.ResolveReference(u)
		}
	}

	for _, t := range rewriteTargets {
		doc.Find(t.selector).Each(func(_ int, s *goquery.Selection) {
			val, ok := s.Attr(t.attr)
			if !ok {
				return
			}
			var out string
			switch t.kind {
			case srcset:
				out = RewriteSrcset(val, effective)
			case inlineStyle:
				out = RewriteCSS(val, effective)
			default:
				out = Absolute(val, effective)
			}
			if out != val {
				s.SetAttr(t.attr, out)
			}
		})
	}

	// <style> content is raw text; SetText would entity-escape it
	doc.Find("style").Each(func(_ int, s *goquery.Selection) {
		css := s.Text()
		if out := RewriteCSS(css, effective); out != css {
			s.Empty().AppendNodes(&nethtml.Node{Type: nethtml.TextNode, Data: out})
		}
	})

	if doc.Find("base").Length() == 0 {
		tag := `<base href="` + html.EscapeString(base.String()) + `">`
		if head := doc.Find("head"); head.Length() > 0 {
			head.First().PrependHtml(tag)
		} else {
			doc.Find("html").First().PrependHtml(tag)
		}
	}
}

// Absolute resolves ref against base. Passthrough schemes, fragments,
// empty values and unparseable references come back unchanged.
func Absolute(ref string, base *url.URL) string {
	trimmed := strings.TrimSpace(ref)
	if trimmed == "" {
		return ref
	}
	lower := strings.ToLower(trimmed)
	for _, p := range passthroughPrefixes {
		if strings.HasPrefix(lower, p) {
			return ref
		}
	}

	if strings.HasPrefix(trimmed, "//") {
		if _, err := url.Parse(base.Scheme + ":" + trimmed); err != nil {
			return ref
		}
		return base.Scheme + ":" + trimmed
	}

	u, err := url.Parse(trimmed)
	if err != nil {
		return ref
	}
	if u.IsAbs() {
		return ref
	}
	return base.ResolveReference(u).String()
}

// RewriteSrcset rewrites each image candidate URL, keeping its width or
// density descriptor.
func RewriteSrcset(value string, base *url.URL) string {
	candidates := parseSrcset(value)
	if len(candidates) == 0 {
		return value
	}
	parts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		abs := Absolute(c.url, base)
		if c.descriptor != "" {
			parts = append(parts, abs+" "+c.descriptor)
		} else {
			parts = append(parts, abs)
		}
	}
	out := strings.Join(parts, ", ")
	if out == strings.TrimSpace(value) {
		return value
	}
	return out
}

type srcsetCandidate struct {
	url        string
	descriptor string
}

// parseSrcset follows the HTML candidate grammar: a URL is a run of
// non-whitespace, so commas inside data: URLs survive.
func parseSrcset(value string) []srcsetCandidate {
	var out []srcsetCandidate
	i, n := 0, len(value)
	isSpace := func(b byte) bool { return b == ' ' || b == '\t' || b == '\n' || b == '\r' || b == '\f' }

	for i < n {
		for i < n && (isSpace(value[i]) || value[i] == ',') {
			i++
		}
		if i >= n {
			break
		}

		start := i
		for i < n && !isSpace(value[i]) {
			i++
		}
		u := value[start:i]

		trimmedCommas := strings.TrimRight(u, ",")
		if trimmedCommas != u {
			out = append(out, srcsetCandidate{url: trimmedCommas})
			continue
		}

		start = i
		depth := 0
		for i < n {
			if value[i] == '(' {
				depth++
			} else if value[i] == ')' && depth > 0 {
				depth--
			} else if value[i] == ',' && depth == 0 {
				break
			}
			i++
		}
		desc := strings.Join(strings.Fields(value[start:i]), " ")
		out = append(out, srcsetCandidate{url: u, descriptor: desc})
	}
	return out
}

// RewriteCSS rewrites url(...) references inside style text.
func RewriteCSS(css string, base *url.URL) string {
	if !strings.Contains(css, "url(") {
		return css
	}
	return cssURLPattern.ReplaceAllStringFunc(css, func(m string) string {
		sub := cssURLPattern.FindStringSubmatch(m)
		ref := strings.TrimSpace(sub[2])
		abs := Absolute(ref, base)
		if abs == ref {
			return m
		}
		quote := sub[1]
		if quote == "" {
			quote = "'"
		}
		return "url(" + quote + abs + quote + ")"
	})
}
