// Package telemetry provides OpenTelemetry initialization and helpers
// for the minutes generator.
//
// Traces and logs are exported over OTLP/HTTP when an endpoint is
// configured. Metrics are always collected and exposed for Prometheus
// scraping through the handler returned by InitMetrics.
package telemetry
