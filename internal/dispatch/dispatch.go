// Package dispatch implements the delivery dispatcher: it consumes outbound
// messages and forwards them to the chat backend with per-destination
// ordering, bounded cross-destination parallelism, exponential retry and
// rate-limit cooperation.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kworr/smtp2tg/internal/route"
)

// Message is one independent delivery unit: a formatted payload bound for a
// single destination, plus any documents extracted from the mail. A
// transaction with N accepted recipients produces N messages, each delivered
// and retried separately.
type Message struct {
	Destination route.Destination
	Payload     string
	Documents   []Document
}

// Document is a file riding along with a message, typically a mail
// attachment.
type Document struct {
	Name string
	Data []byte
}

// Sender is the backend capability the dispatcher drives. Send blocks until
// the backend acknowledges the message or fails. Errors are classified with
// TransientError; anything else is treated as permanent.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Reporter receives terminal delivery outcomes. err is nil on success.
// The dispatcher never resurrects a reported message.
type Reporter interface {
	Report(msg Message, attempts int, err error)
}

// ErrQueueFull is returned by Submit when a destination lane's queue is at
// capacity.
var ErrQueueFull = errors.New("delivery queue full")

// ErrDispatcherClosed is returned by Submit after Shutdown has begun.
var ErrDispatcherClosed = errors.New("dispatcher closed")

// TransientError marks a delivery failure as retryable. RetryAfter carries
// the backend's hint when it supplied one; Global marks a hint that applies
// to every destination rather than just the attempted one.
type TransientError struct {
	RetryAfter time.Duration
	Global     bool
	Err        error
}

// Error implements the error interface.
func (e *TransientError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("transient delivery failure (retry after %s): %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("transient delivery failure: %v", e.Err)
}

// Unwrap returns the underlying error.
func (e *TransientError) Unwrap() error {
	return e.Err
}

// asTransient reports whether err is (or wraps) a TransientError.
func asTransient(err error) (*TransientError, bool) {
	var te *TransientError
	if errors.As(err, &te) {
		return te, true
	}
	return nil, false
}
