// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: Colored console output for human readability
//
// Pipeline components receive named child loggers so every entry carries
// the component that produced it (guard, fetcher, cache, screenshot, ...).
//
// Example Usage:
//
//	logger := logging.FromSettings(cfg.Logging.Level, cfg.Logging.Development)
//	log := logger.Component("fetcher")
//	log.Info("fetched", zap.String("url", target), zap.Duration("duration", d))
package logging
