package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusServer exposes the relay's metrics over HTTP. Besides the metrics
// path it answers /healthz, so the same port serves liveness probes for a
// daemon that otherwise only speaks SMTP.
type PrometheusServer struct {
	server *http.Server
}

// NewPrometheusServer creates a PrometheusServer serving metrics at the given
// address and path.
func NewPrometheusServer(address, path string) *PrometheusServer {
	return &PrometheusServer{
		server: &http.Server{
			Addr:              address,
			Handler:           newServeMux(path),
			ReadHeaderTimeout: 5 * time.Second,
		},
	}
}

func newServeMux(path string) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle(path, promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	return mux
}

// Start begins serving metrics. It blocks until the context is canceled
// or an error occurs. Returns nil when the server is shut down gracefully.
func (s *PrometheusServer) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the metrics server.
func (s *PrometheusServer) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
