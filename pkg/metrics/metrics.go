// Package metrics exposes the scanner's Prometheus metrics.
// Metrics are defined in their respective packages (lookup, scanner,
// progress, cache, ratelimit) and registered via promauto on the default
// registry; this package serves them and documents what exists.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Gatherer collects the metrics promauto registered on the default
// registry.
var Gatherer prometheus.Gatherer = prometheus.DefaultGatherer

// Handler serves the registered metrics in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Gatherer, promhttp.HandlerOpts{})
}

// Metrics Documentation
//
// Lookup Metrics (pkg/lookup):
//   - lookup_requests_total{status} (Counter): Lookups by outcome (clean, detected, rate_limited, transport_error, cached)
//   - lookup_request_duration_seconds (Histogram): Duration of uncached lookups
//   - lookup_errors_total{class} (Counter): Transport errors by class (network, decode)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - lookup_rate_limit_signals_total{source} (Counter): Throttle signals by source (response, status, transport)
//   - lookup_limiter_wait_seconds (Histogram): Time spent in the optional client-side limiter
//
// Cache Metrics (pkg/cache):
//   - lookup_cache_hits_total (Counter): Lookups answered from redis
//   - lookup_cache_misses_total (Counter): Cache misses
//   - lookup_cache_errors_total{operation} (Counter): Redis faults by operation
//
// Scan Metrics (pkg/scanner):
//   - scan_batches_total (Counter): Batches dispatched
//   - scan_lookups_total{outcome} (Counter): Outcomes recorded by the aggregator
//   - scan_halts_total{reason} (Counter): Early stops (rate_limit, cancelled)
//   - scan_duration_seconds (Histogram): Wall time per scan
//   - scan_inflight_lookups (Gauge): Lookups currently in flight
//
// Progress Metrics (pkg/progress):
//   - progress_deliveries_total{result} (Counter): Progress updates by result (ok, error)
//
// Example Prometheus Queries:
//
//   # Share of lookups that hit the provider's throttle
//   sum(rate(lookup_requests_total{status="rate_limited"}[5m])) / sum(rate(lookup_requests_total[5m]))
//
//   # Cache Hit Rate
//   sum(rate(lookup_cache_hits_total[5m])) /
//   (sum(rate(lookup_cache_hits_total[5m])) + sum(rate(lookup_cache_misses_total[5m])))
//
//   # P95 Lookup Latency
//   histogram_quantile(0.95, rate(lookup_request_duration_seconds_bucket[5m]))
//
//   # Scans stopped by rate limits
//   increase(scan_halts_total{reason="rate_limit"}[1h])
