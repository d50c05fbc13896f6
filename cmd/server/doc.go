// Package main is the entry point of the site preview gateway.
//
// The gateway renders arbitrary websites for display inside a customer's
// page: either as a rewritten, frame-safe HTML document or as a headless
// browser screenshot, with an embedded chat widget in both.
//
// Architecture:
//
//	Client → Gateway → URL guard → cache → fetcher / headless Chrome
//	                                      → Redis | LevelDB | memory
//
// Configuration:
//   - Environment variables (see internal/infrastructure/config)
//   - CLI flags (override env vars)
//
// Usage:
//
//	# Production mode
//	./server -port 3000
//
//	# Development mode (colored logs, debug level, detailed errors)
//	./server -dev
//
// Signals:
//   - SIGINT, SIGTERM: Graceful shutdown
package main
