package solver

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/rotacore/rota/core/compiler"
	"github.com/rotacore/rota/core/model"
	"github.com/rotacore/rota/core/rule"
	"github.com/rotacore/rota/infra/logger"
)

func dayAt(day time.Weekday, hour int) time.Time {
	// 2026-01-05 is a Monday.
	base := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	offset := (int(day) - int(time.Monday) + 7) % 7
	return base.AddDate(0, 0, offset).Add(time.Duration(hour) * time.Hour)
}

func allWeek() map[time.Weekday][]model.Window {
	av := make(map[time.Weekday][]model.Window)
	for d := time.Sunday; d <= time.Saturday; d++ {
		av[d] = []model.Window{{StartMin: 0, EndMin: 24 * 60}}
	}
	return av
}

func roster(n int, maxHours float64) []model.Employee {
	out := make([]model.Employee, n)
	for i := range out {
		out[i] = model.Employee{
			ID:              fmt.Sprintf("emp-%02d", i),
			Availability:    allWeek(),
			MaxHoursPerWeek: maxHours,
			HourlyRate:      20,
			Active:          true,
		}
	}
	return out
}

// weekShifts builds one 8h shift per weekday, Monday through Sunday.
func weekShifts(headcount int) []model.Shift {
	days := []time.Weekday{
		time.Monday, time.Tuesday, time.Wednesday, time.Thursday,
		time.Friday, time.Saturday, time.Sunday,
	}
	out := make([]model.Shift, len(days))
	for i, d := range days {
		out[i] = model.Shift{
			ID:        fmt.Sprintf("shift-%d", i),
			Start:     dayAt(d, 8),
			End:       dayAt(d, 16),
			Headcount: headcount,
		}
	}
	return out
}

func compile(t *testing.T, emps []model.Employee, shifts []model.Shift, rules []rule.Rule) *compiler.Problem {
	t.Helper()
	p, err := compiler.Compile(emps, shifts, rules, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return p
}

func TestSolveFiveEmployeesSevenShifts(t *testing.T) {
	p := compile(t, roster(5, 40), weekShifts(1), nil)
	s := New(Config{}, logger.NopLogger{})

	res, err := s.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Status != StatusOptimal {
		t.Fatalf("expected OPTIMAL got %s", res.Status)
	}
	if len(res.Pairs) != 7 {
		t.Fatalf("expected all 7 shifts staffed, got %d pairs", len(res.Pairs))
	}
	if len(res.Violations) != 0 {
		t.Fatalf("expected no violations, got %v", res.Violations)
	}
	assertHardInvariants(t, p, res.Pairs, 40)
}

// assertHardInvariants re-checks no-overlap and the weekly cap on a solution.
func assertHardInvariants(t *testing.T, p *compiler.Problem, pairs []compiler.Pair, maxHours float64) {
	t.Helper()
	byEmp := make(map[int][]model.Shift)
	hours := make(map[int]float64)
	for _, pr := range pairs {
		sh := p.Shifts[pr.Shift]
		for _, other := range byEmp[pr.Emp] {
			if other.Overlaps(sh) {
				t.Fatalf("employee %s double-booked on %s and %s", p.Employees[pr.Emp].ID, other.ID, sh.ID)
			}
		}
		byEmp[pr.Emp] = append(byEmp[pr.Emp], sh)
		hours[pr.Emp] += sh.Hours()
	}
	for ei, h := range hours {
		if maxHours > 0 && h > maxHours {
			t.Fatalf("employee %s assigned %.1fh above cap %.1fh", p.Employees[ei].ID, h, maxHours)
		}
	}
}

func TestSolveDeterministic(t *testing.T) {
	s := New(Config{}, logger.NopLogger{})
	var first []compiler.Pair
	for run := 0; run < 3; run++ {
		p := compile(t, roster(5, 40), weekShifts(1), nil)
		res, err := s.Solve(context.Background(), p)
		if err != nil {
			t.Fatalf("solve %d: %v", run, err)
		}
		if first == nil {
			first = res.Pairs
			continue
		}
		if len(res.Pairs) != len(first) {
			t.Fatalf("run %d: pair count changed: %d vs %d", run, len(res.Pairs), len(first))
		}
		for i := range first {
			if res.Pairs[i] != first[i] {
				t.Fatalf("run %d: pair %d differs: %+v vs %+v", run, i, res.Pairs[i], first[i])
			}
		}
	}
}

func TestSolveOverlapExclusion(t *testing.T) {
	shifts := []model.Shift{
		{ID: "early", Start: dayAt(time.Monday, 8), End: dayAt(time.Monday, 16), Headcount: 1},
		{ID: "late", Start: dayAt(time.Monday, 15), End: dayAt(time.Monday, 23), Headcount: 1},
	}
	p := compile(t, roster(2, 40), shifts, nil)
	s := New(Config{}, logger.NopLogger{})

	res, err := s.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if len(res.Pairs) != 2 {
		t.Fatalf("expected both shifts staffed, got %d", len(res.Pairs))
	}
	if res.Pairs[0].Emp == res.Pairs[1].Emp {
		t.Fatalf("overlapping shifts assigned to the same employee")
	}
}

func TestSolveCapacityExceeded(t *testing.T) {
	p := compile(t, roster(2, 40), weekShifts(1), nil) // 14 variables
	s := New(Config{MaxVariables: 10}, logger.NopLogger{})

	_, err := s.Solve(context.Background(), p)
	var capErr *model.CapacityExceededError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected CapacityExceededError, got %v", err)
	}
	if capErr.Variables != 14 || capErr.Ceiling != 10 {
		t.Fatalf("unexpected capacity report: %+v", capErr)
	}
}

func TestSolveInfeasibleWeeklyCap(t *testing.T) {
	// One employee, two 8h shifts, 10h cap: headcount cannot be met.
	shifts := []model.Shift{
		{ID: "mon", Start: dayAt(time.Monday, 8), End: dayAt(time.Monday, 16), Headcount: 1},
		{ID: "tue", Start: dayAt(time.Tuesday, 8), End: dayAt(time.Tuesday, 16), Headcount: 1},
	}
	p := compile(t, roster(1, 10), shifts, nil)
	s := New(Config{}, logger.NopLogger{})

	res, err := s.Solve(context.Background(), p)
	if res == nil || res.Status != StatusInfeasible {
		t.Fatalf("expected INFEASIBLE result, got %+v", res)
	}
	var inf *model.InfeasibleError
	if !errors.As(err, &inf) {
		t.Fatalf("expected InfeasibleError, got %v", err)
	}
	if len(inf.Trace) == 0 {
		t.Fatalf("expected a relaxation trace")
	}
	first := inf.Trace[0]
	if first.DroppedClass != string(compiler.ClassWeeklyHours) || !first.Feasible {
		t.Fatalf("expected dropping weekly_hours to restore feasibility, got %+v", first)
	}
}

func TestSolveImpossibleMustWork(t *testing.T) {
	shifts := []model.Shift{
		{ID: "mon", Start: dayAt(time.Monday, 8), End: dayAt(time.Monday, 16), Headcount: 1},
	}
	rules := []rule.Rule{{
		ID:     "must-sat",
		Kind:   rule.MustWorkDay,
		Params: rule.Params{EmployeeID: "emp-00", Weekday: time.Saturday},
	}}
	p := compile(t, roster(1, 40), shifts, rules)
	s := New(Config{}, logger.NopLogger{})

	res, err := s.Solve(context.Background(), p)
	if res == nil || res.Status != StatusInfeasible {
		t.Fatalf("expected INFEASIBLE result, got %+v", res)
	}
	var inf *model.InfeasibleError
	if !errors.As(err, &inf) {
		t.Fatalf("expected InfeasibleError, got %v", err)
	}
}

func TestSolvePreferShiftSteersAssignment(t *testing.T) {
	shifts := []model.Shift{
		{ID: "mon", Start: dayAt(time.Monday, 8), End: dayAt(time.Monday, 16), Headcount: 1},
	}
	rules := []rule.Rule{{
		ID:     "bob-likes-mon",
		Kind:   rule.PreferShift,
		Weight: 1,
		Params: rule.Params{EmployeeID: "emp-01", ShiftID: "mon"},
	}}
	p := compile(t, roster(2, 40), shifts, rules)
	s := New(Config{}, logger.NopLogger{})

	res, err := s.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	bi, _ := p.EmployeeIndex("emp-01")
	if len(res.Pairs) != 1 || res.Pairs[0].Emp != bi {
		t.Fatalf("expected emp-01 on the preferred shift, got %+v", res.Pairs)
	}
	if len(res.Violations) != 0 {
		t.Fatalf("satisfied preference must not be reported, got %v", res.Violations)
	}
}

func TestSolveReportsAvoidDayViolation(t *testing.T) {
	shifts := []model.Shift{
		{ID: "mon", Start: dayAt(time.Monday, 8), End: dayAt(time.Monday, 16), Headcount: 1},
	}
	rules := []rule.Rule{{
		ID:     "no-mondays",
		Kind:   rule.AvoidDay,
		Weight: 1,
		Params: rule.Params{EmployeeID: "emp-00", Weekday: time.Monday},
	}}
	// A single employee has to take the shift anyway.
	p := compile(t, roster(1, 40), shifts, rules)
	s := New(Config{}, logger.NopLogger{})

	res, err := s.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Status != StatusOptimal {
		t.Fatalf("expected OPTIMAL got %s", res.Status)
	}
	if len(res.Violations) != 1 || res.Violations[0].RuleID != "no-mondays" {
		t.Fatalf("expected the avoid-day violation reported, got %v", res.Violations)
	}
	if res.Violations[0].Penalty <= 0 {
		t.Fatalf("expected a positive penalty, got %v", res.Violations[0].Penalty)
	}
}

func TestSolveSurvivesLPFailure(t *testing.T) {
	orig := lpRelax
	lpRelax = func(*compiler.Problem, Weights, float64) ([]float64, error) {
		return nil, errors.New("simulated degeneracy")
	}
	defer func() { lpRelax = orig }()

	p := compile(t, roster(5, 40), weekShifts(1), nil)
	s := New(Config{}, logger.NopLogger{})
	res, err := s.Solve(context.Background(), p)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if res.Status != StatusOptimal {
		t.Fatalf("exact search must not depend on the relaxation, got %s", res.Status)
	}
}

func TestSolveDeadlineReturnsPromptly(t *testing.T) {
	// 12 employees x 7 shifts with headcount 3 is far too large to finish
	// within a 30ms budget.
	cfg := Config{
		Small:  Tier{MaxVariables: 200, TimeoutMS: 30, Workers: 2},
		Medium: Tier{MaxVariables: 1000, TimeoutMS: 30, Workers: 2},
		Large:  Tier{MaxVariables: 5000, TimeoutMS: 30, Workers: 2},
	}
	p := compile(t, roster(12, 40), weekShifts(3), nil)
	s := New(cfg, logger.NopLogger{})

	start := time.Now()
	res, err := s.Solve(context.Background(), p)
	elapsed := time.Since(start)
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	if elapsed > 5*time.Second {
		t.Fatalf("solve did not respect its deadline: %v", elapsed)
	}
	switch res.Status {
	case StatusTimeout:
		// Acceptable: no incumbent inside the budget.
	case StatusFeasible:
		if !res.Suboptimal {
			t.Fatalf("deadline-cut solutions must be flagged suboptimal")
		}
		assertHardInvariants(t, p, res.Pairs, 40)
	case StatusOptimal:
		assertHardInvariants(t, p, res.Pairs, 40)
	default:
		t.Fatalf("unexpected status %s", res.Status)
	}
}

func TestSolveCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := compile(t, roster(12, 40), weekShifts(3), nil)
	s := New(Config{}, logger.NopLogger{})

	start := time.Now()
	res, err := s.Solve(ctx, p)
	if time.Since(start) > 5*time.Second {
		t.Fatalf("cancelled solve must return promptly")
	}
	if err != nil {
		t.Fatalf("solve: %v", err)
	}
	switch res.Status {
	case StatusTimeout:
	case StatusFeasible:
		// An incumbent found before the first abort check is kept, but the
		// search must still report itself cut short.
		if !res.Suboptimal {
			t.Fatalf("aborted solve must be flagged suboptimal")
		}
	default:
		t.Fatalf("expected an aborted solve, got %s", res.Status)
	}
}
