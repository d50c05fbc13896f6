/*
Package browser fetches third-party pages server-side and rewrites them so
they can be viewed from another origin.

# Fetching

Client issues a single GET with desktop-browser headers, a bounded timeout
and at most five redirects. Only statuses below 400 count as content. The
client never retries: the screenshot strategy is the retry. Failures are
reported as *FetchError with one of these kinds:

  - timeout
  - dns-not-found
  - connection-refused
  - upstream-http-error (Status carries the origin status)
  - network-error

Bodies are transcoded to UTF-8 before parsing (see Decode). The declared
charset wins when there is one; otherwise chardet guesses.

# Rewriting

Rewrite turns every relative reference into an absolute URL: anchors,
images and srcset candidates, stylesheets, scripts, media sources, inline
style url(...) values and <style> blocks. data:, javascript:, mailto:, tel:
and fragment references pass through untouched, as do references that do
not parse. A <base> element is inserted when the document has none.

# Usage Example

	client := browser.NewClient(browser.DefaultConfig(), logger)
	page, err := client.Fetch(ctx, "https://example.com")
	if err != nil {
	    return err
	}
	doc, err := browser.Parse(page)
	if err != nil {
	    return err
	}
	browser.Rewrite(doc, page.URL)
*/
package browser
