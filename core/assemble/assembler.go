// Package assemble converts a chosen assignment matrix into Assignment
// records plus the summary metrics and diagnostics exposed to callers.
package assemble

import (
	"fmt"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/stat"

	"github.com/rotacore/rota/core/compiler"
	"github.com/rotacore/rota/core/heuristic"
	"github.com/rotacore/rota/core/model"
	"github.com/rotacore/rota/core/solver"
)

// assignmentNamespace seeds the SHA1 UUIDs of assignments. Identical
// (schedule, shift, employee) triples always reproduce the same id, which is
// what makes repeated generations of an unchanged snapshot idempotent.
var assignmentNamespace = uuid.MustParse("8f1f2f6e-1f5d-4c83-9b62-6d4f6a3c9e01")

// AssignmentID derives the deterministic id for one assignment.
func AssignmentID(scheduleID, shiftID, employeeID string) string {
	return uuid.NewSHA1(assignmentNamespace, []byte(scheduleID+"/"+shiftID+"/"+employeeID)).String()
}

// Build materializes assignments from the selected pairs and computes fill
// rate, fairness (standard deviation of assigned hours) and total labor
// cost. Soft-constraint violations and staffing gaps become diagnostics.
func Build(scheduleID string, p *compiler.Problem, pairs []compiler.Pair, violations []solver.Violation, unfilled []heuristic.Unfilled) ([]model.Assignment, model.Metrics, []model.Diagnostic) {
	assignments := make([]model.Assignment, 0, len(pairs))
	hours := make([]float64, len(p.Employees))
	var cost float64
	for _, pr := range pairs {
		emp := p.Employees[pr.Emp]
		shift := p.Shifts[pr.Shift]
		assignments = append(assignments, model.Assignment{
			ID:         AssignmentID(scheduleID, shift.ID, emp.ID),
			EmployeeID: emp.ID,
			ShiftID:    shift.ID,
			ScheduleID: scheduleID,
			Status:     model.AssignmentProposed,
		})
		hours[pr.Emp] += shift.Hours()
		cost += shift.Hours() * emp.HourlyRate
	}

	var required int
	for _, s := range p.Shifts {
		required += s.Headcount
	}
	fillRate := 1.0
	if required > 0 {
		fillRate = float64(len(pairs)) / float64(required)
	}
	var fairness float64
	if len(hours) > 1 {
		fairness = stat.StdDev(hours, nil)
	}

	diags := make([]model.Diagnostic, 0, len(violations)+len(unfilled))
	for _, v := range violations {
		diags = append(diags, model.Diagnostic{
			RuleID:   v.RuleID,
			Kind:     string(v.Kind),
			Severity: model.SeverityWarning,
			Penalty:  v.Penalty,
			Message:  v.Message,
		})
	}
	for _, u := range unfilled {
		diags = append(diags, model.Diagnostic{
			Kind:     "understaffed",
			Severity: model.SeverityError,
			Message:  fmt.Sprintf("shift %s short %d assignment(s)", u.ShiftID, u.Missing),
		})
	}

	return assignments, model.Metrics{
		FillRate:      fillRate,
		FairnessScore: fairness,
		TotalCost:     cost,
	}, diags
}
