// Package metrics provides Prometheus metrics for observability.
//
// This package exposes metrics for a collection run:
//   - Assets scanned, tagged and deleted, broken down by store
//   - Bytes reclaimed by deletion, broken down by store
//   - Size and age of the active root set
//   - Sweep duration per store
//
// Metrics are exposed via a dedicated HTTP server on /metrics in
// Prometheus format when a metrics address is configured.
//
// Usage:
//
//	gcMetrics := metrics.NewGCMetrics()
//
//	server := metrics.NewServer(":9090")
//	server.Start()
//	defer server.Close()
package metrics
