// Package chat answers widget questions about a previewed page.
//
// Page content is extracted once per URL and cached. Answers come from a
// keyword heuristic over overlapping content chunks; it is a stand-in for
// a retrieval and generation backend and keeps the same request and
// response shape.
package chat
