package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Server exposes the profiler's metrics over HTTP.
type Server struct {
	server *http.Server
	logger *logrus.Entry
	done   chan struct{}
}

// NewServer creates a metrics server on addr serving the given gatherer.
// Pass nil to serve the default Prometheus gatherer.
func NewServer(addr string, gatherer prometheus.Gatherer, log *logrus.Logger) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	}))
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return &Server{
		server: &http.Server{
			Addr:    addr,
			Handler: mux,
		},
		logger: log.WithField("component", "metrics_server"),
		done:   make(chan struct{}),
	}
}

// Start serves until ctx is cancelled, then shuts down gracefully. It blocks
// like http.Server.ListenAndServe does.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		s.logger.Debug("Shutting down metrics server")
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			s.logger.WithError(err).Error("Error shutting down metrics server")
		}
		close(s.done)
	}()

	s.logger.WithField("addr", s.server.Addr).Info("Metrics server listening")
	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		s.logger.WithError(err).Error("Metrics server failed")
		return err
	}
	return nil
}

// Done is closed once the graceful shutdown has completed.
func (s *Server) Done() <-chan struct{} {
	return s.done
}
