// Package screenshot captures full-page JPEG images of external sites in a
// headless Chrome.
//
// The browser process is owned by a single Chrome value. It is started on
// the first capture and stopped by Close. Every capture runs in its own
// browser context so cookies and storage never cross between previews.
package screenshot
