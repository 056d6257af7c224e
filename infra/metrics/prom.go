package metrics

import (
	"context"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	coremetrics "github.com/rotacore/rota/core/metrics"
)

// PromSink records per-week solve outcomes in Prometheus metrics.
type PromSink struct {
	solves   *prometheus.CounterVec
	duration *prometheus.HistogramVec
	fillRate prometheus.Gauge
	fairness prometheus.Gauge
}

// NewPromSink registers solve metrics on the default Prometheus registerer.
// The Prometheus server should be started separately via StartPromServer.
func NewPromSink(cfg coremetrics.Config) (coremetrics.Sink, error) {
	return NewPromSinkWithRegistry(cfg, prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(_ coremetrics.Config, reg prometheus.Registerer) (coremetrics.Sink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	solves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "schedule_week_solves_total",
		Help: "Weekly sub-problem solves by status and fallback use",
	}, []string{"status", "fallback"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "schedule_week_solve_duration_seconds",
		Help:    "Duration of weekly sub-problem solves",
		Buckets: prometheus.DefBuckets,
	}, []string{"status"})
	fillRate := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_last_fill_rate",
		Help: "Fill rate of the most recent weekly solve",
	})
	fairness := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "schedule_last_fairness_stddev_hours",
		Help: "Hour standard deviation of the most recent weekly solve",
	})

	if err := reg.Register(solves); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			solves = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(duration); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			duration = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(fillRate); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fillRate = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(fairness); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			fairness = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}

	return &PromSink{solves: solves, duration: duration, fillRate: fillRate, fairness: fairness}, nil
}

// RecordSolve implements coremetrics.Sink.
func (s *PromSink) RecordSolve(records []coremetrics.SolveRecord) error {
	for _, r := range records {
		s.solves.WithLabelValues(r.Status, strconv.FormatBool(r.Fallback)).Inc()
		s.duration.WithLabelValues(r.Status).Observe(r.Duration.Seconds())
		s.fillRate.Set(r.Metrics.FillRate)
		s.fairness.Set(r.Metrics.FairnessScore)
	}
	return nil
}

// StartPromServer starts an HTTP server exposing Prometheus metrics on the
// given address until the context is canceled. A dedicated ServeMux avoids
// interfering with other handlers.
func StartPromServer(ctx context.Context, addr string) error {
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("prom server shutdown: %v", err)
		}
		cancel()
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
