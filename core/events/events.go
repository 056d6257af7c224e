// Package events defines the generation lifecycle events published on the
// internal bus for progress reporting and observability hooks.
package events

import "github.com/rotacore/rota/core/model"

// GenerationStarted marks the transition from PENDING to RUNNING.
type GenerationStarted struct {
	ScheduleID string
	TotalWeeks int
}

// WeekSolved reports one completed weekly sub-problem.
type WeekSolved struct {
	ScheduleID string
	Week       int
	Status     string
	Fallback   bool
}

// FallbackUsed reports that a weekly sub-problem was handed to the greedy
// heuristic.
type FallbackUsed struct {
	ScheduleID string
	Week       int
	Reason     string
}

// GenerationCompleted carries the final metrics of a successful run.
type GenerationCompleted struct {
	ScheduleID string
	Metrics    model.Metrics
	Degraded   bool
}

// GenerationFailed reports a terminal failure.
type GenerationFailed struct {
	ScheduleID string
	Err        error
}

// GenerationCancelled reports cooperative cancellation at a week boundary.
type GenerationCancelled struct {
	ScheduleID     string
	WeeksCompleted int
}
