// Package relay implements the transaction core of the relay: the protocol
// session state machine that accumulates one mail transaction, and the
// formatter that renders the outbound chat payload. The package is wire
// agnostic; the SMTP front end drives it and maps its errors to protocol
// replies.
package relay

import (
	"errors"
	"log/slog"

	"github.com/kworr/smtp2tg/internal/dispatch"
	"github.com/kworr/smtp2tg/internal/metrics"
	"github.com/kworr/smtp2tg/internal/route"
)

// ErrBadSequence is returned when an operation is invoked in a state that
// does not permit it. The session state is left unchanged so a retrying
// client can continue.
var ErrBadSequence = errors.New("bad sequence of commands")

// State represents the current state of a relay session.
type State int

const (
	StateIdle      State = iota // before the greeting exchange
	StateGreeted                // greeting done, no transaction active
	StateMailFrom               // envelope sender recorded
	StateRcptPhase              // at least one RCPT processed
	StateDataPhase              // message content being received
)

// String returns a human-readable representation of the session state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateGreeted:
		return "GREETED"
	case StateMailFrom:
		return "MAIL_FROM"
	case StateRcptPhase:
		return "RCPT_PHASE"
	case StateDataPhase:
		return "DATA_PHASE"
	default:
		return "UNKNOWN"
	}
}

// Transaction is one mail exchange: one sender, the per-recipient resolution
// outcomes in submission order, and the message body. It is owned by a single
// session and discarded once formatted.
type Transaction struct {
	Sender     string
	Recipients []route.Outcome
	Body       []byte
}

// Accepted returns the outcomes for recipients that were accepted.
func (t *Transaction) Accepted() []route.Outcome {
	var out []route.Outcome
	for _, r := range t.Recipients {
		if r.Accepted {
			out = append(out, r)
		}
	}
	return out
}

// Session drives one protocol session. Each inbound connection owns exactly
// one Session; sessions never share mutable state. The routing table is read
// through a Store so a concurrent reload is always observed as a consistent
// snapshot.
type Session struct {
	tables    *route.Store
	formatter *Formatter
	collector metrics.Collector
	logger    *slog.Logger

	state State
	tx    Transaction
}

// NewSession creates a session in the Idle state.
// collector may be nil for no metrics; logger may be nil for the default.
func NewSession(tables *route.Store, formatter *Formatter, collector metrics.Collector, logger *slog.Logger) *Session {
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{
		tables:    tables,
		formatter: formatter,
		collector: collector,
		logger:    logger,
		state:     StateIdle,
	}
}

// State returns the current session state.
func (s *Session) State() State {
	return s.state
}

// Open performs the greeting transition. It is only valid once, at the start
// of the session.
func (s *Session) Open() error {
	if s.state != StateIdle {
		return ErrBadSequence
	}
	s.state = StateGreeted
	return nil
}

// MailFrom records the envelope sender and starts a transaction. A repeated
// MAIL command while a transaction is active discards it and starts over.
func (s *Session) MailFrom(sender string) error {
	switch s.state {
	case StateGreeted, StateMailFrom, StateRcptPhase:
	default:
		return ErrBadSequence
	}

	s.tx = Transaction{Sender: sender}
	s.state = StateMailFrom
	s.logger.Debug("MAIL FROM", slog.String("from", sender))
	return nil
}

// RcptTo resolves one recipient address against the current routing table
// snapshot and records the outcome. A denied recipient is reported with
// accepted=false but never aborts the transaction; the session stays able to
// take further recipients.
func (s *Session) RcptTo(address string) (bool, error) {
	switch s.state {
	case StateMailFrom, StateRcptPhase:
	default:
		return false, ErrBadSequence
	}

	outcome := s.tables.Load().Resolve(address)
	s.tx.Recipients = append(s.tx.Recipients, outcome)
	s.state = StateRcptPhase

	s.collector.RecipientResolved(string(outcome.Result))
	s.logger.Debug("RCPT TO",
		slog.String("to", outcome.Address),
		slog.String("result", string(outcome.Result)),
		slog.Bool("accepted", outcome.Accepted))

	return outcome.Accepted, nil
}

// Data completes the transaction with the received message body and returns
// one outbound message per accepted recipient. A transaction with zero
// accepted recipients completes normally and yields no messages. The session
// returns to Greeted, ready for the next transaction.
func (s *Session) Data(body []byte) ([]dispatch.Message, error) {
	switch s.state {
	case StateMailFrom, StateRcptPhase:
	default:
		return nil, ErrBadSequence
	}
	s.state = StateDataPhase

	s.tx.Body = body
	payload, docs := s.formatter.Format(&s.tx)

	var msgs []dispatch.Message
	for _, r := range s.tx.Accepted() {
		msgs = append(msgs, dispatch.Message{
			Destination: r.Destination,
			Payload:     payload,
			Documents:   docs,
		})
	}

	s.collector.MessageReceived(int64(len(body)))
	s.logger.Debug("transaction complete",
		slog.Int("size", len(body)),
		slog.Int("recipients", len(s.tx.Recipients)),
		slog.Int("accepted", len(msgs)))

	s.tx = Transaction{}
	s.state = StateGreeted
	return msgs, nil
}

// Reset discards any in-progress transaction and returns the session to
// Greeted. Before the greeting it leaves the state alone.
func (s *Session) Reset() {
	s.tx = Transaction{}
	if s.state != StateIdle {
		s.state = StateGreeted
	}
}

// Close discards any in-progress transaction. No partial recipients are ever
// delivered for an aborted session.
func (s *Session) Close() {
	s.tx = Transaction{}
	s.state = StateIdle
}
