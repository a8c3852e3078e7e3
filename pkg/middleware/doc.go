// Package middleware provides HTTP middleware for the serve endpoints.
//
// # OpenTelemetry Middleware
//
// OpenTelemetry starts a server span for every request, named after the
// matched chi route pattern:
//
//	r := chi.NewRouter()
//	r.Use(middleware.OpenTelemetry(middleware.WithTracerName("my-app")))
//
// Spans use the global tracer provider unless WithTracer is given.
//
// # Prometheus Metrics
//
// Prometheus counts requests by route and status and observes their
// duration:
//   - atomdom_http_requests_total
//   - atomdom_http_request_duration_seconds
//   - atomdom_http_requests_in_flight
//
//	reg := prometheus.NewRegistry()
//	r.Use(middleware.Prometheus(middleware.WithRegistry(reg)))
//
// Long-lived requests such as the patch stream are counted when they end.
package middleware
