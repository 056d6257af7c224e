package model

import (
	"fmt"
	"strings"
)

// ValidationError reports malformed roster or shift data. It is raised before
// any solving starts; malformed input never reaches the solver.
type ValidationError struct {
	Entity string
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("validation: %s %s: %s", e.Entity, e.Field, e.Reason)
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Reason)
}

// ConfigurationError reports contradictory or malformed rules. RuleIDs names
// every rule involved in the conflict.
type ConfigurationError struct {
	RuleIDs []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.RuleIDs) == 0 {
		return "configuration: " + e.Reason
	}
	return fmt.Sprintf("configuration: rules [%s]: %s", strings.Join(e.RuleIDs, ", "), e.Reason)
}

// RelaxationStep records one round of the infeasibility relaxation search.
type RelaxationStep struct {
	DroppedClass string   `json:"dropped_class"`
	RuleIDs      []string `json:"rule_ids,omitempty"`
	Feasible     bool     `json:"feasible"`
}

// InfeasibleError reports that no assignment satisfies the hard constraints.
// Trace pinpoints which constraint class blocked a solution: the first step
// whose relaxation made the problem feasible names the culprit.
type InfeasibleError struct {
	Trace []RelaxationStep
}

func (e *InfeasibleError) Error() string {
	for _, step := range e.Trace {
		if step.Feasible {
			return fmt.Sprintf("infeasible: blocked by %s constraints (rules %s)", step.DroppedClass, strings.Join(step.RuleIDs, ", "))
		}
	}
	return "infeasible: no valid assignment under hard constraints"
}

// CapacityExceededError reports that the problem exceeds the exact solver's
// variable ceiling. Callers route it to the fallback heuristic; it only
// surfaces if the fallback also fails.
type CapacityExceededError struct {
	Variables int
	Ceiling   int
}

func (e *CapacityExceededError) Error() string {
	return fmt.Sprintf("capacity: %d variables exceed solver ceiling %d", e.Variables, e.Ceiling)
}

// ConflictError reports a concurrent generation request for a schedule that
// already has one in flight.
type ConflictError struct {
	ScheduleID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: generation already running for schedule %s", e.ScheduleID)
}

// CancelledError reports cooperative cancellation honored at a weekly
// checkpoint.
type CancelledError struct {
	ScheduleID     string
	WeeksCompleted int
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("cancelled: schedule %s stopped after %d weeks", e.ScheduleID, e.WeeksCompleted)
}
