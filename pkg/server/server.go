// Package server wires a flexserve server together: the listening
// socket, the TLS setup, the acceptor, the application handler and the
// optional metrics endpoint.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"dominicbreuker/flexserve/pkg/acceptor"
	"dominicbreuker/flexserve/pkg/config"
	"dominicbreuker/flexserve/pkg/crypto"
	"dominicbreuker/flexserve/pkg/handler"
	"dominicbreuker/flexserve/pkg/log"
	"dominicbreuker/flexserve/pkg/metrics"
	"dominicbreuker/flexserve/pkg/tlsconfig"
	"dominicbreuker/flexserve/pkg/transport"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"
)

// Server is a configured, bound flexserve server.
type Server struct {
	cfg    *config.Server
	logger *log.Logger

	acceptor   *acceptor.Acceptor
	handler    acceptor.Handler
	transcript *log.Transcript

	registry *prometheus.Registry
	metrics  net.Listener
}

// New binds the sockets described by cfg. Nothing is served until Serve.
func New(ctx context.Context, cfg *config.Server, logger *log.Logger, deps *config.Dependencies) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		registry: prometheus.NewRegistry(),
	}

	m, err := metrics.New("", s.registry)
	if err != nil {
		return nil, fmt.Errorf("metrics.New(): %w", err)
	}
	s.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	h, err := handler.New(cfg.Handler, logger)
	if err != nil {
		return nil, err
	}
	if cfg.LogFile != "" {
		s.transcript, err = log.OpenTranscript(cfg.LogFile)
		if err != nil {
			return nil, err
		}
		h = handler.WithTranscript(s.transcript, h)
	}
	s.handler = handler.Adapt(h)

	acfg := acceptor.DefaultConfig()
	acfg.Logger = logger
	acfg.Metrics = m
	if cfg.ShutdownTimeout > 0 {
		acfg.ShutdownTimeout = cfg.ShutdownTimeout
	}
	if cfg.SSL {
		acfg.Mode = acceptor.Secure
		acfg.HandshakeTimeout = cfg.HandshakeTimeout
		acfg.MaxHandshakes = cfg.MaxHandshakes
		acfg.ReportHandshakeTimeouts = cfg.ReportTimeouts
		acfg.TLSConfig, err = s.tlsConfig()
		if err != nil {
			s.closeTranscript()
			return nil, err
		}
	}

	l, err := transport.Listen(ctx, cfg.Transport, transport.ListenOptions{ReuseAddr: cfg.ReuseAddr}, deps)
	if err != nil {
		s.closeTranscript()
		return nil, err
	}

	s.acceptor, err = acceptor.New(l, acfg)
	if err != nil {
		l.Close()
		s.closeTranscript()
		return nil, err
	}

	if cfg.MetricsAddr != "" {
		var lc net.ListenConfig
		s.metrics, err = lc.Listen(ctx, "tcp", cfg.MetricsAddr)
		if err != nil {
			s.acceptor.Close()
			s.closeTranscript()
			return nil, fmt.Errorf("metrics endpoint: %w", err)
		}
	}

	return s, nil
}

func (s *Server) tlsConfig() (*tls.Config, error) {
	if s.cfg.CertFile != "" {
		return tlsconfig.FromFiles(s.cfg.CertFile, s.cfg.KeyFile)
	}

	hosts := append([]string{}, crypto.DefaultHosts...)
	if h := s.cfg.Transport.Host; h != "" {
		hosts = append(hosts, h)
	}
	cfg, _, err := tlsconfig.SelfSigned("", hosts)
	if err != nil {
		return nil, err
	}
	s.logger.WarnMsg("Using an ephemeral self-signed certificate, clients must skip verification")
	return cfg, nil
}

// Addr returns the address the server accepts connections on.
func (s *Server) Addr() net.Addr {
	return s.acceptor.Addr()
}

// MetricsAddr returns the address of the metrics endpoint, or nil.
func (s *Server) MetricsAddr() net.Addr {
	if s.metrics == nil {
		return nil
	}
	return s.metrics.Addr()
}

// Serve runs until ctx is cancelled or the listener fails, then drains
// live connections.
func (s *Server) Serve(ctx context.Context) error {
	defer s.closeTranscript()

	g, gctx := errgroup.WithContext(ctx)

	s.logger.InfoMsg("Serving %s on %s", s.acceptor.Mode(), s.cfg.Transport.Protocol)
	s.logger.InfoMsg("Listening on %s", s.acceptor.Addr())

	g.Go(func() error {
		err := s.acceptor.Serve(gctx, s.handler, nil)
		if err != nil {
			return fmt.Errorf("serving: %w", err)
		}
		return nil
	})

	if s.metrics != nil {
		srv := &http.Server{
			Handler:           promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		s.logger.InfoMsg("Metrics on http://%s/metrics", s.metrics.Addr())

		g.Go(func() error {
			if err := srv.Serve(s.metrics); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics endpoint: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err := g.Wait()
	st := s.acceptor.HandshakeStats()
	if s.acceptor.Mode() == acceptor.Secure {
		s.logger.VerboseMsg("Handshakes: %d submitted, %d succeeded, %d failed, %d timed out",
			st.Submitted, st.Succeeded, st.Failed, st.TimedOut)
	}
	return err
}

// Close stops accepting without waiting for live connections.
func (s *Server) Close() error {
	err := s.acceptor.Close()
	if s.metrics != nil {
		s.metrics.Close()
	}
	return err
}

func (s *Server) closeTranscript() {
	if s.transcript == nil {
		return
	}
	if err := s.transcript.Close(); err != nil {
		s.logger.ErrorMsg("Closing transcript: %s", err)
	}
}
