// Package service runs the optional metrics and health check HTTP servers
// alongside a test run.
package service

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"go.uber.org/multierr"

	"github.com/ethereum-optimism/infra/op-testfloat/metrics"
)

const (
	HealthzHost = "0.0.0.0"
	HealthzPort = "8080"
)

type Config struct {
	MetricsAddr string
	HealthzAddr string
}

type Service struct {
	Healthz *HealthzServer
	Metrics *MetricsServer

	cfg         Config
	log         log.Logger
	metricsAddr net.Addr
	healthzAddr net.Addr
	wg          sync.WaitGroup
}

func New(cfg Config, log log.Logger) *Service {
	if cfg.HealthzAddr == "" {
		cfg.HealthzAddr = net.JoinHostPort(HealthzHost, HealthzPort)
	}
	return &Service{
		Healthz: NewHealthzServer(log),
		Metrics: NewMetricsServer(),
		cfg:     cfg,
		log:     log,
	}
}

// Start binds both listeners, so an address already in use is reported
// here, and then serves in the background.
func (s *Service) Start() error {
	s.log.Info("service starting")

	metricsLn, err := net.Listen("tcp", s.cfg.MetricsAddr)
	if err != nil {
		return fmt.Errorf("failed to listen for metrics on %s: %w", s.cfg.MetricsAddr, err)
	}
	healthzLn, err := net.Listen("tcp", s.cfg.HealthzAddr)
	if err != nil {
		_ = metricsLn.Close()
		return fmt.Errorf("failed to listen for healthz on %s: %w", s.cfg.HealthzAddr, err)
	}
	s.metricsAddr, s.healthzAddr = metricsLn.Addr(), healthzLn.Addr()

	s.serve("healthz", healthzLn, s.Healthz.Serve)
	s.serve("metrics", metricsLn, s.Metrics.Serve)

	s.log.Info("service started", "metrics", s.metricsAddr, "healthz", s.healthzAddr)
	return nil
}

func (s *Service) serve(name string, ln net.Listener, serve func(net.Listener) error) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info("starting "+name+" server", "addr", ln.Addr())
		if err := serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("error running "+name+" server", "err", err)
			metrics.RecordErrorDetails("error running "+name+" server", err)
		}
	}()
}

// MetricsAddr is the bound metrics address, valid after Start.
func (s *Service) MetricsAddr() net.Addr {
	return s.metricsAddr
}

// HealthzAddr is the bound health check address, valid after Start.
func (s *Service) HealthzAddr() net.Addr {
	return s.healthzAddr
}

func (s *Service) Shutdown(ctx context.Context) error {
	s.log.Info("service shutting down")

	err := multierr.Combine(
		s.Healthz.Shutdown(ctx),
		s.Metrics.Shutdown(ctx),
	)
	s.wg.Wait()

	s.log.Info("service stopped")
	return err
}
