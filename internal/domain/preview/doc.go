// Package preview delivers third-party pages for embedding.
//
// Two strategies produce a preview:
//   - Proxy: guard, fetch, rewrite references, strip frame busting,
//     inject the chat widget, cache the document
//   - Capture: guard, headless screenshot, cache the image
//
// The Orchestrator runs them for a Session as a small state machine:
//
//	Idle -> TryingProxy -> Ready
//	                    -> TryingScreenshot -> Ready | Failed
//
// A session falls back to the screenshot strategy at most once, whether
// the proxy failed on the server or the caller reported that the proxied
// page did not render. URL rejections are terminal for both strategies.
//
// Example Usage:
//
//	svc := preview.NewService(orchestrator, sessions, shares, publicURL)
//	sess, err := svc.Create(ctx, preview.CreateRequest{URL: u, ClientID: id})
//	status, err := svc.Fallback(ctx, sess.ID)
package preview
