// Package http exposes the gateway over HTTP.
//
// Routes:
//
//	GET    /api/proxy                 rewritten, embeddable HTML
//	GET    /api/screenshot            JPEG capture
//	POST   /api/chat                  widget chat
//	POST   /api/preview               create a preview session
//	GET    /api/preview/:id/status    session state
//	POST   /api/preview/:id/fallback  report a client-side render failure
//	GET    /api/preview/:id/render    preview URL for a method
//	GET    /api/preview/:id/share     share link
//	DELETE /api/preview/:id           drop a session
//	GET    /share/:token              redirect to a shared preview
//	GET    /widget.js                 embeddable widget
//	GET    /health                    readiness
//
// Every failure is rendered by one function so the error body has a
// single shape.
package http
