/*
Package monitoring provides Prometheus metrics for the preview gateway.

# Overview

Each Metrics value owns a private registry. The HTTP middleware records
request counts, latency and response size per route template; the preview
pipeline records rendering attempts, guard rejections, cache results and
capture timings.

# Usage

	metrics := monitoring.NewMetrics()
	router.Use(monitoring.Middleware(metrics))
	router.GET("/metrics", metrics.Handler())

	timer := monitoring.NewTimer(metrics, "proxy")
	// ... run the strategy ...
	timer.Stop("success")

	metrics.RecordCache("document", "hit")

# Metric names

  - gateway_http_requests_total{method,path,status}
  - gateway_http_request_duration_seconds{method,path}
  - preview_attempts_total{strategy,outcome}
  - guard_rejections_total{reason}
  - cache_operations_total{kind,result}
  - screenshot_duration_seconds
  - preview_sessions_active
*/
package monitoring
