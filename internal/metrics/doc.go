// Package metrics defines the Prometheus collectors exported on /metrics.
//
// Collectors are registered with the default registry at package init through
// promauto. Job, upload, delivery, and HTTP instrumentation live here so every
// component records into the same series.
package metrics
