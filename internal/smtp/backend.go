// Package smtp provides the SMTP front end of the relay. It adapts the
// go-smtp server callbacks onto the relay session core; wire framing,
// timeouts and size limits belong to go-smtp, transaction semantics to
// internal/relay.
package smtp

import (
	"log/slog"
	"net"

	"github.com/emersion/go-smtp"
	"github.com/kworr/smtp2tg/internal/dispatch"
	"github.com/kworr/smtp2tg/internal/logging"
	"github.com/kworr/smtp2tg/internal/metrics"
	"github.com/kworr/smtp2tg/internal/relay"
	"github.com/kworr/smtp2tg/internal/route"
)

// Backend implements the go-smtp Backend interface.
// It creates a new relay session for each connection.
type Backend struct {
	hostname      string
	tables        *route.Store
	dispatcher    *dispatch.Dispatcher
	collector     metrics.Collector
	maxRecipients int
	logger        *slog.Logger
}

// BackendConfig holds configuration for creating a Backend.
type BackendConfig struct {
	Hostname      string
	Tables        *route.Store
	Dispatcher    *dispatch.Dispatcher
	Collector     metrics.Collector
	MaxRecipients int
	Logger        *slog.Logger
}

// NewBackend creates a new Backend with the given configuration.
func NewBackend(cfg BackendConfig) *Backend {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	collector := cfg.Collector
	if collector == nil {
		collector = &metrics.NoopCollector{}
	}

	return &Backend{
		hostname:      cfg.Hostname,
		tables:        cfg.Tables,
		dispatcher:    cfg.Dispatcher,
		collector:     collector,
		maxRecipients: cfg.MaxRecipients,
		logger:        logger,
	}
}

// NewSession is called for each new connection.
// It implements the smtp.Backend interface.
func (b *Backend) NewSession(c *smtp.Conn) (smtp.Session, error) {
	b.collector.SessionOpened()

	clientIP := extractIPFromConn(c.Conn())
	logger := logging.WithSession(b.logger, clientIP)

	// Header fields come from the table snapshot current at connect time;
	// a reload takes effect for subsequent sessions.
	formatter := relay.NewFormatter(b.tables.Load().Fields())
	core := relay.NewSession(b.tables, formatter, b.collector, logger)
	if err := core.Open(); err != nil {
		return nil, err
	}

	return &Session{
		backend: b,
		core:    core,
		logger:  logger,
	}, nil
}

// extractIPFromConn extracts the IP address string from a net.Conn.
func extractIPFromConn(conn net.Conn) string {
	if conn == nil {
		return ""
	}

	addr := conn.RemoteAddr()
	if addr == nil {
		return ""
	}

	switch v := addr.(type) {
	case *net.TCPAddr:
		return v.IP.String()
	case *net.UDPAddr:
		return v.IP.String()
	default:
		host, _, err := net.SplitHostPort(addr.String())
		if err != nil {
			return addr.String()
		}
		return host
	}
}
