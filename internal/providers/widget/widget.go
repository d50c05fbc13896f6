package widget

import (
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/bytedance/sonic"
)

// MarkerAttr tags the injected <script> element.
const MarkerAttr = "data-chat-widget"

// Injector builds widget scripts that call back to apiURL.
type Injector struct {
	apiURL string

	embedOnce sync.Once
	embedded  string
	embedErr  error
}

// New creates an injector for the given public API base URL.
func New(apiURL string) *Injector {
	return &Injector{apiURL: strings.TrimRight(apiURL, "/")}
}

// APIURL returns the base URL the widget posts to.
func (i *Injector) APIURL() string {
	return i.apiURL
}

// Script returns the widget bound to clientID. The chat asks about
// pageURL; an empty pageURL falls back to the page the script runs in.
func (i *Injector) Script(clientID, pageURL string) (string, error) {
	return render(scriptParams{
		Flag:     LoadedFlag,
		ClientID: jsString(clientID),
		PageURL:  jsString(pageURL),
		APIURL:   jsString(i.apiURL),
	})
}

// Embeddable returns the /widget.js variant, configured by attributes on
// its own <script> tag.
func (i *Injector) Embeddable() (string, error) {
	i.embedOnce.Do(func() {
		i.embedded, i.embedErr = render(scriptParams{
			Flag:     LoadedFlag,
			APIURL:   jsString(i.apiURL),
			Embedded: true,
		})
	})
	return i.embedded, i.embedErr
}

// Inject appends the widget for pageURL before </body>, or at the end of
// the document when there is no body. It returns false if a widget is
// already present.
func (i *Injector) Inject(doc *goquery.Document, clientID, pageURL string) (bool, error) {
	if doc.Find("script["+MarkerAttr+"]").Length() > 0 {
		return false, nil
	}
	script, err := i.Script(clientID, pageURL)
	if err != nil {
		return false, err
	}
	tag := "<script " + MarkerAttr + ">" + script + "</script>"

	if body := doc.Find("body"); body.Length() > 0 {
		body.First().AppendHtml(tag)
		return true, nil
	}
	if root := doc.Find("html"); root.Length() > 0 {
		root.First().AppendHtml(tag)
		return true, nil
	}
	return false, nil
}

// Loader returns JavaScript that adds the widget to the current page.
// With a CDN URL it appends a <script src> carrying the client id and a
// preview flag; otherwise it evaluates the inline widget directly.
func (i *Injector) Loader(cdnURL, clientID string) (string, error) {
	if cdnURL == "" {
		return i.Script(clientID, "")
	}
	return `(function () {
  var s = document.createElement('script');
  s.src = ` + jsString(cdnURL) + `;
  s.setAttribute('data-client-id', ` + jsString(clientID) + `);
  s.setAttribute('data-preview-mode', 'true');
  (document.body || document.documentElement).appendChild(s);
})();`, nil
}

// jsString encodes s as a JavaScript string literal that is also safe
// inside an HTML <script> element.
func jsString(s string) string {
	out, err := sonic.ConfigStd.MarshalToString(s)
	if err != nil {
		return `""`
	}
	return out
}
