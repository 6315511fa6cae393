package output

import "time"

// MetricsCollector defines the secondary port for metrics collection.
type MetricsCollector interface {
	// IncConversions increments the conversion counter.
	IncConversions(from, to string, success bool)

	// ObserveConversionDuration records conversion duration.
	ObserveConversionDuration(from, to string, duration time.Duration)

	// IncCentroids increments the centroid counter.
	IncCentroids(success bool)

	// SetMapsLoaded sets the number of registered map files.
	SetMapsLoaded(count int)

	// SetMapsReady sets the number of parsed map files.
	SetMapsReady(count int)

	// IncCacheLookups counts center cache hits and misses.
	IncCacheLookups(hit bool)

	// IncStorageOperations increments storage operation counter.
	IncStorageOperations(operation string, success bool)

	// ObserveStorageDuration records storage operation duration.
	ObserveStorageDuration(operation string, duration time.Duration)
}

// NoOpMetrics is a no-op implementation of MetricsCollector.
type NoOpMetrics struct{}

// IncConversions implements MetricsCollector.
func (n *NoOpMetrics) IncConversions(_, _ string, _ bool) {}

// ObserveConversionDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveConversionDuration(_, _ string, _ time.Duration) {}

// IncCentroids implements MetricsCollector.
func (n *NoOpMetrics) IncCentroids(_ bool) {}

// SetMapsLoaded implements MetricsCollector.
func (n *NoOpMetrics) SetMapsLoaded(_ int) {}

// SetMapsReady implements MetricsCollector.
func (n *NoOpMetrics) SetMapsReady(_ int) {}

// IncCacheLookups implements MetricsCollector.
func (n *NoOpMetrics) IncCacheLookups(_ bool) {}

// IncStorageOperations implements MetricsCollector.
func (n *NoOpMetrics) IncStorageOperations(_ string, _ bool) {}

// ObserveStorageDuration implements MetricsCollector.
func (n *NoOpMetrics) ObserveStorageDuration(_ string, _ time.Duration) {}
