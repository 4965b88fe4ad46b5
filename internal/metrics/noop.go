package metrics

// NoopCollector is a no-op implementation of the Collector interface.
// All methods are empty stubs that do nothing.
type NoopCollector struct{}

// SessionOpened is a no-op.
func (n *NoopCollector) SessionOpened() {}

// SessionClosed is a no-op.
func (n *NoopCollector) SessionClosed() {}

// CommandProcessed is a no-op.
func (n *NoopCollector) CommandProcessed(command string) {}

// RecipientResolved is a no-op.
func (n *NoopCollector) RecipientResolved(result string) {}

// MessageReceived is a no-op.
func (n *NoopCollector) MessageReceived(sizeBytes int64) {}

// MessageRejected is a no-op.
func (n *NoopCollector) MessageRejected(reason string) {}

// DeliveryCompleted is a no-op.
func (n *NoopCollector) DeliveryCompleted(result string) {}

// DeliveryRetried is a no-op.
func (n *NoopCollector) DeliveryRetried(reason string) {}

// RateLimitWait is a no-op.
func (n *NoopCollector) RateLimitWait(scope string, seconds float64) {}

// LaneStarted is a no-op.
func (n *NoopCollector) LaneStarted() {}

// LaneStopped is a no-op.
func (n *NoopCollector) LaneStopped() {}
