package model

import (
	"fmt"
	"time"
)

// AssignmentStatus tracks the lifecycle of a single assignment.
type AssignmentStatus string

const (
	AssignmentProposed    AssignmentStatus = "proposed"
	AssignmentConfirmed   AssignmentStatus = "confirmed"
	AssignmentTransferred AssignmentStatus = "transferred"
)

// Assignment pairs an employee with a shift inside a schedule.
type Assignment struct {
	ID         string           `json:"id"`
	EmployeeID string           `json:"employee_id"`
	ShiftID    string           `json:"shift_id"`
	ScheduleID string           `json:"schedule_id"`
	Status     AssignmentStatus `json:"status"`
}

// ScheduleStatus tracks the schedule lifecycle.
type ScheduleStatus string

const (
	ScheduleDraft      ScheduleStatus = "draft"
	ScheduleSolving    ScheduleStatus = "solving"
	ScheduleSolved     ScheduleStatus = "solved"
	ScheduleInfeasible ScheduleStatus = "infeasible"
	SchedulePublished  ScheduleStatus = "published"
)

// Severity grades a diagnostic for display and audit.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Diagnostic describes one soft-constraint violation or staffing gap.
type Diagnostic struct {
	RuleID   string   `json:"rule_id,omitempty"`
	Kind     string   `json:"kind"`
	Severity Severity `json:"severity"`
	Penalty  float64  `json:"penalty"`
	Message  string   `json:"message"`
}

// Metrics summarizes a generated schedule.
type Metrics struct {
	FillRate      float64 `json:"fill_rate"`
	FairnessScore float64 `json:"fairness_score"` // std deviation of hours, lower is fairer
	TotalCost     float64 `json:"total_cost"`
}

// Schedule owns the assignments produced for one planning horizon.
type Schedule struct {
	ID          string         `json:"id"`
	WeekStart   time.Time      `json:"week_start"`
	WeekEnd     time.Time      `json:"week_end"`
	Status      ScheduleStatus `json:"status"`
	Assignments []Assignment   `json:"assignments"`
	Metrics     Metrics        `json:"metrics"`
	Diagnostics []Diagnostic   `json:"diagnostics,omitempty"`
	// Fingerprint identifies the input snapshot the schedule was generated
	// from. Re-running a published schedule with an unchanged fingerprint
	// returns the stored assignments instead of regenerating.
	Fingerprint string `json:"fingerprint,omitempty"`
}

var scheduleTransitions = map[ScheduleStatus][]ScheduleStatus{
	ScheduleDraft:      {ScheduleSolving},
	ScheduleSolving:    {ScheduleSolved, ScheduleInfeasible},
	ScheduleSolved:     {SchedulePublished, ScheduleSolving},
	ScheduleInfeasible: {ScheduleSolving},
}

// Transition moves the schedule to the next lifecycle state. Illegal moves
// are rejected rather than applied silently.
func (s *Schedule) Transition(next ScheduleStatus) error {
	for _, allowed := range scheduleTransitions[s.Status] {
		if allowed == next {
			s.Status = next
			return nil
		}
	}
	return fmt.Errorf("schedule %s: illegal transition %s -> %s", s.ID, s.Status, next)
}

// Published reports whether the schedule has been published and its
// assignments frozen.
func (s *Schedule) Published() bool { return s.Status == SchedulePublished }

// Transfer reassigns a published assignment to another employee. This is the
// only mutation allowed after publication; it re-checks qualification,
// overlap and the weekly-hours cap for the receiving employee.
func (s *Schedule) Transfer(assignmentID, toEmployeeID string, roster map[string]Employee, shifts map[string]Shift) error {
	if !s.Published() {
		return fmt.Errorf("schedule %s: transfer requires a published schedule, not %s", s.ID, s.Status)
	}
	idx := -1
	for i, a := range s.Assignments {
		if a.ID == assignmentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("schedule %s: unknown assignment %s", s.ID, assignmentID)
	}
	target := s.Assignments[idx]
	shift, ok := shifts[target.ShiftID]
	if !ok {
		return fmt.Errorf("schedule %s: unknown shift %s", s.ID, target.ShiftID)
	}
	emp, ok := roster[toEmployeeID]
	if !ok {
		return fmt.Errorf("schedule %s: unknown employee %s", s.ID, toEmployeeID)
	}
	if !emp.Active {
		return &ValidationError{Entity: toEmployeeID, Field: "active", Reason: "inactive employee cannot receive a transfer"}
	}
	if !emp.Qualified(shift.Qualification) {
		return &ValidationError{Entity: toEmployeeID, Field: "qualifications", Reason: "missing " + shift.Qualification}
	}
	hours := shift.Hours()
	for _, a := range s.Assignments {
		if a.ID == assignmentID || a.EmployeeID != toEmployeeID {
			continue
		}
		other, ok := shifts[a.ShiftID]
		if !ok {
			continue
		}
		if other.Overlaps(shift) {
			return &ValidationError{Entity: toEmployeeID, Field: "assignments", Reason: "overlapping shift " + a.ShiftID}
		}
		hours += other.Hours()
	}
	if emp.MaxHoursPerWeek > 0 && hours > emp.MaxHoursPerWeek {
		return &ValidationError{Entity: toEmployeeID, Field: "max_hours_per_week", Reason: "transfer would exceed weekly cap"}
	}
	s.Assignments[idx].EmployeeID = toEmployeeID
	s.Assignments[idx].Status = AssignmentTransferred
	return nil
}
