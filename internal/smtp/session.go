package smtp

import (
	"errors"
	"io"
	"log/slog"

	"github.com/emersion/go-sasl"
	"github.com/emersion/go-smtp"
	"github.com/kworr/smtp2tg/internal/relay"
)

// Session implements the go-smtp Session interface by delegating every
// protocol event to the relay session core. It also implements AuthSession:
// AUTH is advertised but every credential is rejected, the relay has no
// mailbox accounts.
type Session struct {
	backend    *Backend
	core       *relay.Session
	recipients int
	logger     *slog.Logger
}

// AuthMechanisms returns the advertised authentication mechanisms.
// Implements smtp.AuthSession interface.
func (s *Session) AuthMechanisms() []string {
	return []string{sasl.Plain, sasl.Login}
}

// Auth handles authentication. All credentials are denied.
// Implements smtp.AuthSession interface.
func (s *Session) Auth(mech string) (sasl.Server, error) {
	denied := func(username string) error {
		s.logger.Debug("authentication denied", slog.String("username", username))
		return &smtp.SMTPError{
			Code:         535,
			EnhancedCode: smtp.EnhancedCode{5, 7, 8},
			Message:      "Authentication credentials invalid",
		}
	}

	switch mech {
	case sasl.Plain:
		return sasl.NewPlainServer(func(identity, username, password string) error {
			return denied(username)
		}), nil
	case sasl.Login:
		return sasl.NewLoginServer(func(username, password string) error {
			return denied(username)
		}), nil
	default:
		return nil, smtp.ErrAuthUnknownMechanism
	}
}

// Mail handles the MAIL FROM command.
// Implements smtp.Session interface.
func (s *Session) Mail(from string, opts *smtp.MailOptions) error {
	s.backend.collector.CommandProcessed("MAIL")

	if err := s.core.MailFrom(from); err != nil {
		return badSequence(err)
	}
	s.recipients = 0
	return nil
}

// Rcpt handles the RCPT TO command. The routing table decides per recipient;
// a denied recipient gets a 550 while the transaction stays open for further
// recipients.
// Implements smtp.Session interface.
func (s *Session) Rcpt(to string, opts *smtp.RcptOptions) error {
	s.backend.collector.CommandProcessed("RCPT")

	if s.backend.maxRecipients > 0 && s.recipients >= s.backend.maxRecipients {
		return &smtp.SMTPError{
			Code:         452,
			EnhancedCode: smtp.EnhancedCode{4, 5, 3},
			Message:      "Too many recipients",
		}
	}

	accepted, err := s.core.RcptTo(to)
	if err != nil {
		return badSequence(err)
	}
	s.recipients++

	if !accepted {
		return &smtp.SMTPError{
			Code:         550,
			EnhancedCode: smtp.EnhancedCode{5, 1, 1},
			Message:      "User unknown",
		}
	}
	return nil
}

// Data handles the DATA command: it completes the transaction and submits
// one outbound message per accepted recipient to the dispatcher. Delivery
// outcome is independent of the SMTP reply; only queue backpressure is
// surfaced as a temporary failure.
// Implements smtp.Session interface.
func (s *Session) Data(r io.Reader) error {
	s.backend.collector.CommandProcessed("DATA")

	body, err := io.ReadAll(r)
	if err != nil {
		s.logger.Debug("failed to read message data", slog.String("error", err.Error()))
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 0},
			Message:      "Error reading message",
		}
	}

	msgs, err := s.core.Data(body)
	if err != nil {
		return badSequence(err)
	}

	// All or nothing: a retransmit after a 451 must not duplicate
	// deliveries already queued for some of the recipients.
	if err := s.backend.dispatcher.SubmitAll(msgs); err != nil {
		s.logger.Warn("submit failed", slog.String("error", err.Error()))
		s.backend.collector.MessageRejected("queue_full")
		return &smtp.SMTPError{
			Code:         451,
			EnhancedCode: smtp.EnhancedCode{4, 3, 2},
			Message:      "Try again later",
		}
	}

	s.logger.Debug("message accepted",
		slog.Int("size", len(body)),
		slog.Int("deliveries", len(msgs)))
	return nil
}

// Reset is called when the client sends RSET.
// Implements smtp.Session interface.
func (s *Session) Reset() {
	s.backend.collector.CommandProcessed("RSET")
	s.core.Reset()
	s.recipients = 0
	s.logger.Debug("session reset")
}

// Logout is called when the client quits or the connection closes. Any
// incomplete transaction is discarded; already-submitted messages stay with
// the dispatcher.
// Implements smtp.Session interface.
func (s *Session) Logout() error {
	s.core.Close()
	s.backend.collector.SessionClosed()
	s.logger.Debug("session logout")
	return nil
}

// badSequence maps the core's ordering error onto the protocol reply.
func badSequence(err error) error {
	if errors.Is(err, relay.ErrBadSequence) {
		return &smtp.SMTPError{
			Code:         503,
			EnhancedCode: smtp.EnhancedCode{5, 5, 1},
			Message:      "Bad sequence of commands",
		}
	}
	return err
}
