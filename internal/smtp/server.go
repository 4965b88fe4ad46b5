package smtp

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	gosmtp "github.com/emersion/go-smtp"
)

// Server wraps a go-smtp server bound to the configured listen address.
type Server struct {
	server *gosmtp.Server
	logger *slog.Logger
}

// ServerConfig holds configuration for creating a Server.
type ServerConfig struct {
	Backend        *Backend
	Address        string
	Hostname       string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int
	MaxRecipients  int
	Debug          io.Writer // optional protocol trace sink
	Logger         *slog.Logger
}

// NewServer creates a Server for the given configuration.
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := gosmtp.NewServer(cfg.Backend)
	s.Addr = cfg.Address
	s.Domain = cfg.Hostname
	s.ReadTimeout = cfg.ReadTimeout
	s.WriteTimeout = cfg.WriteTimeout
	s.MaxMessageBytes = int64(cfg.MaxMessageSize)
	s.MaxRecipients = cfg.MaxRecipients
	s.EnableSMTPUTF8 = true
	s.AllowInsecureAuth = true // AUTH is denied anyway; see Session.Auth
	s.Debug = cfg.Debug

	return &Server{server: s, logger: logger}
}

// Run starts the server and blocks until the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.logger.Info("starting listener", slog.String("address", s.server.Addr))
		if err := s.server.ListenAndServe(); err != nil {
			errChan <- fmt.Errorf("server %s: %w", s.server.Addr, err)
		}
		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(shutdownCtx); err != nil {
		s.logger.Error("error shutting down server", slog.String("error", err.Error()))
	}

	return ctx.Err()
}
