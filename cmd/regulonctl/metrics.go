package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"regulon/internal/logging"
	"regulon/internal/observability"
)

type metricsServer struct {
	addr      string
	collector *observability.SearchCollector
	server    *http.Server
	done      chan error
}

// startMetricsServer serves a fresh search registry on addr until stop.
func startMetricsServer(addr string) (*metricsServer, error) {
	collector, err := observability.NewSearchCollector(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	srv := &metricsServer{
		addr:      listener.Addr().String(),
		collector: collector,
		server:    &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
		done:      make(chan error, 1),
	}
	go func() {
		srv.done <- srv.server.Serve(listener)
	}()
	return srv, nil
}

func (s *metricsServer) stop(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(shutdownCtx); err != nil {
		logging.FromContext(ctx).Warn(ctx, "metrics server shutdown failed", logging.Err(err))
	}
	if err := <-s.done; err != nil && !errors.Is(err, http.ErrServerClosed) {
		logging.FromContext(ctx).Warn(ctx, "metrics server stopped", logging.Err(err))
	}
}
