// Package metrics defines the solve-record sink contract. Implementations
// live in infra/metrics.
package metrics

import (
	"time"

	"github.com/rotacore/rota/core/model"
)

// SolveRecord captures one weekly solve for observability sinks.
type SolveRecord struct {
	ScheduleID string
	Week       int
	Status     string
	Fallback   bool
	Duration   time.Duration
	Variables  int
	Metrics    model.Metrics
	SolvedAt   time.Time
}

// Sink records solve outcomes. Recording failures are reported to the
// caller's logger and never abort a generation.
type Sink interface {
	RecordSolve(records []SolveRecord) error
}

// NopSink discards all records.
type NopSink struct{}

// RecordSolve implements Sink.
func (NopSink) RecordSolve([]SolveRecord) error { return nil }

// Config selects and parameterizes the metric sinks.
type Config struct {
	PrometheusEnabled bool   `json:"prometheus_enabled" yaml:"prometheus_enabled"`
	PrometheusPort    string `json:"prometheus_port" yaml:"prometheus_port"`
	InfluxEnabled     bool   `json:"influx_enabled" yaml:"influx_enabled"`
	InfluxURL         string `json:"influx_url" yaml:"influx_url"`
	InfluxToken       string `json:"influx_token" yaml:"influx_token"`
	InfluxOrg         string `json:"influx_org" yaml:"influx_org"`
	InfluxBucket      string `json:"influx_bucket" yaml:"influx_bucket"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.PrometheusPort == "" {
		c.PrometheusPort = "2112"
	}
}
