// Package metrics exposes the harvester's Prometheus metrics.
// All metrics are defined in their respective packages (client, pagination,
// ratelimit, sink, delivery) to maintain modularity and avoid circular
// dependencies; this package serves them and documents the series.
package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// Path is where Handler is mounted by Serve.
const Path = "/metrics"

// Handler returns the HTTP handler for the default gatherer.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Server serves Path until its context is cancelled.
type Server struct {
	srv      *http.Server
	listener net.Listener
	done     chan error
}

// Serve starts a /metrics listener on addr in the background. An empty addr
// disables it and returns a nil Server. The listener shuts down when ctx is
// cancelled; Wait blocks until it has.
func Serve(ctx context.Context, addr string) (*Server, error) {
	if addr == "" {
		return nil, nil
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle(Path, Handler())

	s := &Server{
		srv: &http.Server{
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		},
		listener: ln,
		done:     make(chan error, 1),
	}

	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("Metrics server listening")
		err := s.srv.Serve(ln)
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		if err != nil {
			log.Error().Err(err).Msg("Metrics server failed")
		}
		s.done <- err
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutdownCtx)
	}()

	return s, nil
}

// Addr returns the address the server listens on.
func (s *Server) Addr() string {
	return s.listener.Addr().String()
}

// Wait blocks until the server has stopped.
func (s *Server) Wait() error {
	return <-s.done
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - harvest_requests_total{endpoint, status} (Counter): Requests by endpoint and HTTP status
//   - harvest_request_duration_seconds{endpoint} (Histogram): Request duration by endpoint
//   - harvest_errors_total{class} (Counter): Errors by class (client, server, rate_limit, network)
//
// Quota Metrics (pkg/ratelimit):
//   - harvest_quota_remaining (Gauge): Calls left in the upstream quota window
//   - harvest_quota_blocks_total (Counter): Requests refused because the quota is exhausted
//
// Pagination Metrics (pkg/pagination):
//   - harvest_pages_fetched_total (Counter): Search pages fetched
//   - harvest_page_walk_duration_seconds (Histogram): Duration of a full page walk
//
// Sink Metrics (pkg/sink):
//   - harvest_sink_records_total{sink} (Counter): Records written by sink
//   - harvest_sink_errors_total{sink} (Counter): Failed writes by sink
//
// Delivery Metrics (pkg/delivery):
//   - harvest_delivery_menus_total{result} (Counter): Delivery menus crawled (ok, failed)
//
// Example Prometheus Queries:
//
//   # Request Error Rate
//   rate(harvest_errors_total[5m])
//
//   # Quota Status
//   harvest_quota_remaining < 50
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(harvest_request_duration_seconds_bucket[5m]))
//
//   # Records per page
//   rate(harvest_sink_records_total[5m]) / rate(harvest_pages_fetched_total[5m])
