// Package app wires configuration, providers, sinks and the orchestrator
// into a runnable service.
package app

import (
	"context"
	"fmt"

	"github.com/rotacore/rota/config"
	"github.com/rotacore/rota/core/heuristic"
	coremetrics "github.com/rotacore/rota/core/metrics"
	"github.com/rotacore/rota/core/orchestrator"
	"github.com/rotacore/rota/core/solver"
	"github.com/rotacore/rota/infra/logger"
	"github.com/rotacore/rota/infra/metrics"
	"github.com/rotacore/rota/infra/provider"
	"github.com/rotacore/rota/internal/eventbus"
)

// Inputs names the files the generation reads from.
type Inputs struct {
	Roster string
	Shifts string
	Rules  string
}

// Service orchestrates schedule generation end to end.
type Service struct {
	Orchestrator *orchestrator.Orchestrator
	bus          eventbus.EventBus
	log          logger.Logger
	closers      []func() error
	promEnabled  bool
	promPort     string
}

// New creates a Service from the configuration.
func New(cfg *config.Config, in Inputs) (*Service, error) {
	logger.Configure(cfg.Logging.Level, cfg.Logging.Pretty)
	logg := logger.New("service")

	var closers []func() error
	var sinks []coremetrics.Sink
	if cfg.Metrics.PrometheusEnabled {
		sink, err := metrics.NewPromSink(cfg.Metrics)
		if err != nil {
			return nil, fmt.Errorf("prom sink: %w", err)
		}
		sinks = append(sinks, sink)
	}
	if cfg.Metrics.InfluxEnabled {
		sink := metrics.NewInfluxSinkWithFallback(cfg.Metrics)
		sinks = append(sinks, sink)
		if is, ok := sink.(*metrics.InfluxSink); ok {
			closers = append(closers, func() error { is.Close(); return nil })
		}
	}
	var sink coremetrics.Sink
	if len(sinks) == 1 {
		sink = sinks[0]
	} else if len(sinks) > 1 {
		sink = metrics.NewMultiSink(sinks...)
	}

	sol := solver.New(cfg.Solver, logger.New("solver"))
	fallback := heuristic.New(cfg.Solver.Seed, logger.New("heuristic"))

	bus := eventbus.New()
	orch, err := orchestrator.New(
		cfg.Orchestrator,
		provider.FileRoster{Path: in.Roster},
		provider.FileShifts{Path: in.Shifts},
		provider.FileRules{Path: in.Rules},
		sol,
		fallback,
		sink,
		bus,
		logg,
	)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}

	return &Service{
		Orchestrator: orch,
		bus:          bus,
		log:          logg,
		closers:      closers,
		promEnabled:  cfg.Metrics.PrometheusEnabled,
		promPort:     cfg.Metrics.PrometheusPort,
	}, nil
}

// Generate runs one schedule generation, serving Prometheus scrapes for its
// duration when enabled.
func (s *Service) Generate(ctx context.Context, spec orchestrator.GenerateSpec) (*orchestrator.GenerateResult, error) {
	if s.promEnabled {
		go func() {
			if err := metrics.StartPromServer(ctx, s.promPort); err != nil {
				s.log.Errorf("prom server: %v", err)
			}
		}()
	}
	return s.Orchestrator.Generate(ctx, spec)
}

// Close releases resources held by the service.
func (s *Service) Close() error {
	var first error
	for _, c := range s.closers {
		if err := c(); err != nil && first == nil {
			first = err
		}
	}
	if s.bus != nil {
		s.bus.Close()
	}
	return first
}
