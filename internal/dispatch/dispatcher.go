package dispatch

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/kworr/smtp2tg/internal/logging"
	"github.com/kworr/smtp2tg/internal/metrics"
	"github.com/kworr/smtp2tg/internal/route"
)

// Config tunes the dispatcher.
type Config struct {
	// MaxInflight bounds concurrent deliveries across all destinations.
	MaxInflight int
	// MaxAttempts bounds delivery attempts per message, including the first.
	MaxAttempts int
	// RetryBase is the first backoff interval; it doubles per attempt.
	RetryBase time.Duration
	// RetryCap caps the backoff interval.
	RetryCap time.Duration
	// QueueDepth is the per-destination queue capacity.
	QueueDepth int
	// AttemptTimeout bounds a single delivery attempt. Zero means no bound
	// beyond the sender's own timeouts.
	AttemptTimeout time.Duration
}

// Dispatcher owns one ordered delivery lane per destination. Messages within
// a lane reach the backend in submission order, one terminal outcome at a
// time; lanes run in parallel up to MaxInflight concurrent attempts.
type Dispatcher struct {
	cfg       Config
	sender    Sender
	reporter  Reporter
	collector metrics.Collector
	logger    *slog.Logger

	sem   chan struct{}
	pause pauseGate

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	lanes  map[route.Destination]*lane
	closed bool
	wg     sync.WaitGroup
}

// New creates a Dispatcher. reporter and collector may be nil; logger may be
// nil for the default logger.
func New(cfg Config, sender Sender, reporter Reporter, collector metrics.Collector, logger *slog.Logger) *Dispatcher {
	if cfg.MaxInflight <= 0 {
		cfg.MaxInflight = 4
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 6
	}
	if cfg.RetryBase <= 0 {
		cfg.RetryBase = time.Second
	}
	if cfg.RetryCap <= 0 {
		cfg.RetryCap = 5 * time.Minute
	}
	if cfg.QueueDepth <= 0 {
		cfg.QueueDepth = 128
	}
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Dispatcher{
		cfg:       cfg,
		sender:    sender,
		reporter:  reporter,
		collector: collector,
		logger:    logger,
		sem:       make(chan struct{}, cfg.MaxInflight),
		ctx:       ctx,
		cancel:    cancel,
		lanes:     make(map[route.Destination]*lane),
	}
}

// Submit hands one message to its destination lane. Once submitted the
// message is owned by the dispatcher and runs to a terminal outcome
// regardless of what happens to the originating session.
func (d *Dispatcher) Submit(msg Message) error {
	return d.SubmitAll([]Message{msg})
}

// SubmitAll enqueues either every message or none of them, so a
// multi-recipient fan-out is never half queued when the caller reports a
// temporary failure and the client retransmits.
func (d *Dispatcher) SubmitAll(msgs []Message) error {
	if len(msgs) == 0 {
		return nil
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return ErrDispatcherClosed
	}

	// Capacity check first. Workers only drain their queues, and every
	// enqueue happens under d.mu, so space verified here cannot vanish
	// before the sends below.
	needed := make(map[route.Destination]int, len(msgs))
	for _, m := range msgs {
		needed[m.Destination]++
	}
	for dest, n := range needed {
		l := d.lane(dest)
		if len(l.queue)+n > cap(l.queue) {
			return ErrQueueFull
		}
	}

	for _, m := range msgs {
		d.lanes[m.Destination].queue <- m
	}
	return nil
}

// lane returns the lane for dest, starting its worker on first use.
// The caller must hold d.mu.
func (d *Dispatcher) lane(dest route.Destination) *lane {
	l, ok := d.lanes[dest]
	if !ok {
		l = &lane{
			queue:  make(chan Message, d.cfg.QueueDepth),
			logger: logging.WithDestination(d.logger, int64(dest)),
		}
		d.lanes[dest] = l
		d.collector.LaneStarted()
		d.wg.Add(1)
		go d.runLane(l)
	}
	return l
}

// Shutdown stops accepting new messages, waits for queued deliveries to
// reach terminal outcomes until ctx expires, then abandons whatever remains.
func (d *Dispatcher) Shutdown(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	for _, l := range d.lanes {
		close(l.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return ctx.Err()
	}
}

// lane is one ordered destination queue with a dedicated worker.
type lane struct {
	queue  chan Message
	logger *slog.Logger
}

// runLane delivers messages from the lane queue in order. The next message
// is not attempted until the previous one reached a terminal state.
func (d *Dispatcher) runLane(l *lane) {
	defer d.wg.Done()
	defer d.collector.LaneStopped()

	for msg := range l.queue {
		d.deliver(l, msg)
	}
}

// deliver drives one message to a terminal outcome: acknowledged success,
// permanent failure, or exhausted retries.
func (d *Dispatcher) deliver(l *lane, msg Message) {
	backoff := d.cfg.RetryBase
	attempts := 0

	for {
		if !d.awaitGlobalPause() {
			return
		}

		select {
		case d.sem <- struct{}{}:
		case <-d.ctx.Done():
			return
		}

		attempts++
		err := d.attempt(msg)
		<-d.sem

		if err == nil {
			l.logger.Debug("delivered", slog.Int("attempts", attempts))
			d.collector.DeliveryCompleted("success")
			d.report(msg, attempts, nil)
			return
		}

		te, transient := asTransient(err)
		if !transient {
			l.logger.Warn("permanent delivery failure",
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()))
			d.collector.DeliveryCompleted("failed")
			d.report(msg, attempts, err)
			return
		}

		if attempts >= d.cfg.MaxAttempts {
			l.logger.Warn("delivery attempts exhausted",
				slog.Int("attempts", attempts),
				slog.String("error", err.Error()))
			d.collector.DeliveryCompleted("failed")
			d.report(msg, attempts, err)
			return
		}

		delay := backoff
		reason := "transient"
		if te.RetryAfter > 0 {
			delay = te.RetryAfter
			reason = "rate_limited"
			if te.Global {
				d.pause.Extend(te.RetryAfter)
				d.collector.RateLimitWait("global", te.RetryAfter.Seconds())
			} else {
				d.collector.RateLimitWait("destination", te.RetryAfter.Seconds())
			}
		}

		l.logger.Debug("delivery retry scheduled",
			slog.Int("attempt", attempts),
			slog.Duration("delay", delay),
			slog.String("error", err.Error()))
		d.collector.DeliveryRetried(reason)

		if !d.sleep(delay) {
			return
		}

		backoff *= 2
		if backoff > d.cfg.RetryCap {
			backoff = d.cfg.RetryCap
		}
	}
}

// attempt performs one delivery attempt under the configured attempt timeout.
func (d *Dispatcher) attempt(msg Message) error {
	ctx := d.ctx
	if d.cfg.AttemptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.cfg.AttemptTimeout)
		defer cancel()
	}
	return d.sender.Send(ctx, msg)
}

// awaitGlobalPause blocks while a global retry-after window is open.
// Returns false if the dispatcher shut down while waiting.
func (d *Dispatcher) awaitGlobalPause() bool {
	for {
		delay := d.pause.Remaining()
		if delay <= 0 {
			return true
		}
		if !d.sleep(delay) {
			return false
		}
	}
}

// sleep waits for the duration unless the dispatcher is cancelled first.
func (d *Dispatcher) sleep(delay time.Duration) bool {
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-d.ctx.Done():
		return false
	}
}

func (d *Dispatcher) report(msg Message, attempts int, err error) {
	if d.reporter != nil {
		d.reporter.Report(msg, attempts, err)
	}
}

// pauseGate tracks a deadline before which no delivery may be attempted.
// Used for global rate-limit hints from the backend.
type pauseGate struct {
	mu    sync.Mutex
	until time.Time
}

// Extend pushes the gate deadline out to now+d if that is later than the
// current deadline.
func (g *pauseGate) Extend(d time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if until := time.Now().Add(d); until.After(g.until) {
		g.until = until
	}
}

// Remaining returns how long the gate stays closed, or zero if it is open.
func (g *pauseGate) Remaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return time.Until(g.until)
}
