package deframe

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Placeholder replaces a neutralised script.
const Placeholder = "<!-- Frame-busting script removed -->"

// ShimAttr marks the injected shim so later passes recognise it.
const ShimAttr = "data-frame-shim"

// ResponseHeaders are set on every framed document the gateway serves.
var ResponseHeaders = map[string]string{
	"X-Frame-Options":         "ALLOWALL",
	"Content-Security-Policy": "frame-ancestors *",
}

const shimScript = `<script ` + ShimAttr + `>
(function () {
  function pin(name, value) {
    try {
      Object.defineProperty(window, name, {
        get: function () { return value; },
        configurable: true
      });
    } catch (e) {
      if (window.console) { console.warn('frame shim: cannot redefine ' + name, e); }
    }
  }
  pin('top', window.self);
  pin('parent', window.self);
  pin('frameElement', null);
})();
</script>`

// Signature is one frame-busting pattern.
type Signature struct {
	Name    string
	Pattern *regexp.Regexp
}

// DefaultSignatures is checked in order.
var DefaultSignatures = []Signature{
	{"top-location", regexp.MustCompile(`\btop\.location`)},
	{"parent-location", regexp.MustCompile(`\bparent\.location`)},
	{"window-top-ne-self", regexp.MustCompile(`window\.top\s*!==?\s*window\.self`)},
	{"window-self-ne-top", regexp.MustCompile(`window\.self\s*!==?\s*window\.top`)},
	{"top-ne-self", regexp.MustCompile(`\btop\s*!==?\s*self\b`)},
	{"self-ne-top", regexp.MustCompile(`\bself\s*!==?\s*top\b`)},
	{"if-top-not-self", regexp.MustCompile(`if\s*\(\s*top\s*!\s*=\s*self\s*\)`)},
	{"top-eq-self-negated", regexp.MustCompile(`!\(\s*(window\.)?top\s*===?\s*(window\.)?self\s*\)`)},
	{"parent-ne-self", regexp.MustCompile(`\bparent\s*!==?\s*(window\.)?self\b`)},
	{"frame-element", regexp.MustCompile(`\bframeElement\b`)},
}

// nonScriptTypes are script types that carry data rather than code.
var nonScriptTypes = []string{"json", "template", "x-tmpl", "text/html", "text/plain"}

// Result reports what Apply changed.
type Result struct {
	DirectivesRemoved  int
	ScriptsNeutralized int
	Matched            []string
	ShimInjected       bool
}

// Engine neutralises frame-busting in parsed documents.
type Engine struct {
	signatures []Signature
}

// New creates an engine. With no signatures, DefaultSignatures is used.
func New(signatures ...Signature) *Engine {
	if len(signatures) == 0 {
		signatures = DefaultSignatures
	}
	return &Engine{signatures: append([]Signature(nil), signatures...)}
}

// Register appends a signature to the end of the table.
func (e *Engine) Register(name, pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.signatures = append(e.signatures, Signature{Name: name, Pattern: re})
	return nil
}

// Apply runs all three steps on doc.
func (e *Engine) Apply(doc *goquery.Document) Result {
	var res Result
	res.DirectivesRemoved = StripDirectives(doc)
	res.Matched = e.Neutralize(doc)
	res.ScriptsNeutralized = len(res.Matched)
	res.ShimInjected = InjectShim(doc)
	return res
}

// Match returns the first signature matching script, if any.
func (e *Engine) Match(script string) (string, bool) {
	for _, sig := range e.signatures {
		if sig.Pattern.MatchString(script) {
			return sig.Name, true
		}
	}
	return "", false
}

// StripDirectives removes meta tags that forbid framing and returns how
// many were dropped.
func StripDirectives(doc *goquery.Document) int {
	removed := 0
	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		for _, attr := range []string{"http-equiv", "name"} {
			v := strings.TrimSpace(s.AttrOr(attr, ""))
			if strings.EqualFold(v, "X-Frame-Options") || strings.EqualFold(v, "Content-Security-Policy") {
				s.Remove()
				removed++
				return
			}
		}
	})
	return removed
}

// Neutralize replaces matching inline scripts with Placeholder and returns
// the name of the signature that matched each one.
func (e *Engine) Neutralize(doc *goquery.Document) []string {
	var matched []string
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		if _, ok := s.Attr(ShimAttr); ok {
			return
		}
		if _, ok := s.Attr("src"); ok {
			return
		}
		if !isCode(s.AttrOr("type", "")) {
			return
		}
		if name, ok := e.Match(s.Text()); ok {
			s.ReplaceWithHtml(Placeholder)
			matched = append(matched, name)
		}
	})
	return matched
}

// InjectShim inserts the shim as the first child of <head>, or of <html>
// when there is no head. It is a no-op if a shim is already present.
func InjectShim(doc *goquery.Document) bool {
	if doc.Find("script["+ShimAttr+"]").Length() > 0 {
		return false
	}
	if head := doc.Find("head"); head.Length() > 0 {
		head.First().PrependHtml(shimScript)
		return true
	}
	if root := doc.Find("html"); root.Length() > 0 {
		root.First().PrependHtml(shimScript)
		return true
	}
	return false
}

func isCode(scriptType string) bool {
	t := strings.ToLower(strings.TrimSpace(scriptType))
	if t == "" || t == "module" {
		return true
	}
	for _, n := range nonScriptTypes {
		if strings.Contains(t, n) {
			return false
		}
	}
	return strings.Contains(t, "javascript") || strings.Contains(t, "ecmascript")
}
