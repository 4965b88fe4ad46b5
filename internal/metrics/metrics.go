// Package metrics provides interfaces and implementations for collecting
// relay metrics. This package defines the Collector interface for recording
// metrics and the Server interface for exposing them.
package metrics

import "context"

// Collector defines the interface for recording relay metrics.
type Collector interface {
	// Session metrics
	SessionOpened()
	SessionClosed()

	// Command metrics
	CommandProcessed(command string)

	// Resolution metrics; result is "match", "relay" or "deny"
	RecipientResolved(result string)

	// Message metrics
	MessageReceived(sizeBytes int64)
	MessageRejected(reason string)

	// Delivery metrics
	// result should be "success" or "failed"
	DeliveryCompleted(result string)
	DeliveryRetried(reason string)

	// Rate-limit cooperation; scope is "global" or "destination"
	RateLimitWait(scope string, seconds float64)

	// Lane lifecycle
	LaneStarted()
	LaneStopped()
}

// Server defines the interface for a metrics HTTP server.
type Server interface {
	// Start begins serving metrics. It blocks until the context is canceled
	// or an error occurs.
	Start(ctx context.Context) error

	// Shutdown gracefully stops the metrics server.
	Shutdown(ctx context.Context) error
}
