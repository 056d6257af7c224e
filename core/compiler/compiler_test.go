package compiler

import (
	"errors"
	"testing"
	"time"

	"github.com/rotacore/rota/core/model"
	"github.com/rotacore/rota/core/rule"
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

func testEmployees(n int) []model.Employee {
	names := []string{"alice", "bob", "carol", "dave", "erin", "frank"}
	out := make([]model.Employee, n)
	for i := range out {
		out[i] = model.Employee{
			ID:              names[i],
			Availability:    allWeek(),
			MaxHoursPerWeek: 40,
			HourlyRate:      20,
			Active:          true,
		}
	}
	return out
}

func testShifts() []model.Shift {
	return []model.Shift{
		{ID: "mon-day", Start: dayAt(time.Monday, 8), End: dayAt(time.Monday, 16), Headcount: 1},
		{ID: "tue-day", Start: dayAt(time.Tuesday, 8), End: dayAt(time.Tuesday, 16), Headcount: 1},
	}
}

func TestCompileBuildsCompatPairs(t *testing.T) {
	p, err := Compile(testEmployees(2), testShifts(), nil, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if p.Variables() != 4 {
		t.Fatalf("expected 4 pairs got %d", p.Variables())
	}
	if len(p.Compat.ByShift) != 2 || len(p.Compat.ByEmployee) != 2 {
		t.Fatalf("unexpected index sizes: %d shifts, %d employees", len(p.Compat.ByShift), len(p.Compat.ByEmployee))
	}
	// Builtin structural constraints are always present.
	if len(p.HardByClass(ClassHeadcount)) != 1 || len(p.HardByClass(ClassOverlap)) != 1 || len(p.HardByClass(ClassWeeklyHours)) != 1 {
		t.Fatalf("missing builtin hard constraints: %+v", p.Hard)
	}
}

func TestCompilePrunesIncompatible(t *testing.T) {
	emps := testEmployees(3)
	emps[0].Active = false
	// bob is only around on Mondays.
	emps[1].Availability = map[time.Weekday][]model.Window{
		time.Monday: {{StartMin: 0, EndMin: 24 * 60}},
	}
	shifts := testShifts()
	shifts[0].Qualification = "nurse" // nobody is a nurse

	p, err := Compile(emps, shifts, nil, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	// mon-day needs a nurse: zero candidates. tue-day: only carol.
	monIdx, _ := p.ShiftIndex("mon-day")
	tueIdx, _ := p.ShiftIndex("tue-day")
	if len(p.Compat.ByShift[monIdx]) != 0 {
		t.Fatalf("expected no candidates for mon-day, got %d", len(p.Compat.ByShift[monIdx]))
	}
	if len(p.Compat.ByShift[tueIdx]) != 1 {
		t.Fatalf("expected one candidate for tue-day, got %d", len(p.Compat.ByShift[tueIdx]))
	}
	ci, _ := p.EmployeeIndex("carol")
	if p.Compat.Pairs[p.Compat.ByShift[tueIdx][0]].Emp != ci {
		t.Fatalf("expected carol on tue-day")
	}
}

func TestCompileUnavailableRulePrunes(t *testing.T) {
	rules := []rule.Rule{{
		ID:     "r1",
		Kind:   rule.UnavailableDay,
		Scope:  rule.ScopeEmployee,
		Params: rule.Params{EmployeeID: "alice", Weekday: time.Monday},
	}}
	p, err := Compile(testEmployees(2), testShifts(), rules, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ai, _ := p.EmployeeIndex("alice")
	for _, pi := range p.Compat.ByEmployee[ai] {
		sh := p.Shifts[p.Compat.Pairs[pi].Shift]
		if sh.Start.Weekday() == time.Monday {
			t.Fatalf("alice must have no Monday pairs")
		}
	}
}

func TestCompileContradictionNamesBothRules(t *testing.T) {
	rules := []rule.Rule{
		{ID: "must-1", Kind: rule.MustWorkDay, Params: rule.Params{EmployeeID: "alice", Weekday: time.Monday}},
		{ID: "block-1", Kind: rule.UnavailableDay, Params: rule.Params{EmployeeID: "alice", Weekday: time.Monday}},
	}
	_, err := Compile(testEmployees(1), testShifts(), rules, nil)
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if len(cfgErr.RuleIDs) != 2 {
		t.Fatalf("expected both rule ids, got %v", cfgErr.RuleIDs)
	}
	seen := map[string]bool{}
	for _, id := range cfgErr.RuleIDs {
		seen[id] = true
	}
	if !seen["must-1"] || !seen["block-1"] {
		t.Fatalf("expected must-1 and block-1, got %v", cfgErr.RuleIDs)
	}
}

func TestCompileRejectsUnknownKind(t *testing.T) {
	rules := []rule.Rule{{ID: "r1", Kind: "full_moon_only"}}
	_, err := Compile(testEmployees(1), testShifts(), rules, nil)
	var cfgErr *model.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestCompileRejectsDuplicates(t *testing.T) {
	emps := testEmployees(2)
	emps[1].ID = emps[0].ID
	if _, err := Compile(emps, testShifts(), nil, nil); err == nil {
		t.Fatalf("expected duplicate employee rejection")
	}

	rules := []rule.Rule{
		{ID: "r1", Kind: rule.PreferDay, Params: rule.Params{EmployeeID: "alice", Weekday: time.Monday}},
		{ID: "r1", Kind: rule.AvoidDay, Params: rule.Params{EmployeeID: "alice", Weekday: time.Friday}},
	}
	if _, err := Compile(testEmployees(1), testShifts(), rules, nil); err == nil {
		t.Fatalf("expected duplicate rule rejection")
	}
}

func TestCompileRejectsUnknownEmployee(t *testing.T) {
	rules := []rule.Rule{{ID: "r1", Kind: rule.PreferDay, Params: rule.Params{EmployeeID: "ghost", Weekday: time.Monday}}}
	var cfgErr *model.ConfigurationError
	if _, err := Compile(testEmployees(1), testShifts(), rules, nil); !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
}

func TestCompileDeterministicOrder(t *testing.T) {
	emps := testEmployees(3)
	shifts := testShifts()
	// Feed inputs reversed; the compiled problem must not notice.
	revEmps := []model.Employee{emps[2], emps[0], emps[1]}
	revShifts := []model.Shift{shifts[1], shifts[0]}

	a, err := Compile(emps, shifts, nil, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	b, err := Compile(revEmps, revShifts, nil, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if len(a.Compat.Pairs) != len(b.Compat.Pairs) {
		t.Fatalf("pair counts differ: %d vs %d", len(a.Compat.Pairs), len(b.Compat.Pairs))
	}
	for i := range a.Compat.Pairs {
		if a.Compat.Pairs[i] != b.Compat.Pairs[i] {
			t.Fatalf("pair %d differs: %+v vs %+v", i, a.Compat.Pairs[i], b.Compat.Pairs[i])
		}
	}
}

func TestCompileWeightOverrides(t *testing.T) {
	rules := []rule.Rule{
		{ID: "w1", Kind: rule.Fairness, Scope: rule.ScopeGlobal, Weight: 2.5},
		{ID: "w2", Kind: rule.LaborCost, Scope: rule.ScopeGlobal, Weight: 0},
	}
	p, err := Compile(testEmployees(1), testShifts(), rules, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if p.Overrides.Fairness != 2.5 {
		t.Fatalf("expected fairness override 2.5, got %v", p.Overrides.Fairness)
	}
	if p.Overrides.Cost != 0 {
		t.Fatalf("expected cost override 0, got %v", p.Overrides.Cost)
	}
}

func TestCompileBoundary(t *testing.T) {
	end := dayAt(time.Sunday, 22)
	p, err := Compile(testEmployees(2), testShifts(), nil, map[string]time.Time{"bob": end, "ghost": end})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	bi, _ := p.EmployeeIndex("bob")
	if got, ok := p.Boundary[bi]; !ok || !got.Equal(end) {
		t.Fatalf("expected bob boundary %v, got %v", end, got)
	}
	if len(p.Boundary) != 1 {
		t.Fatalf("unknown employees must be dropped from the boundary, got %v", p.Boundary)
	}
}

func TestCompileMinRest(t *testing.T) {
	rules := []rule.Rule{
		{ID: "rest-8", Kind: rule.MinRestHours, Scope: rule.ScopeGlobal, Params: rule.Params{Hours: 8}},
		{ID: "rest-12", Kind: rule.MinRestHours, Scope: rule.ScopeGlobal, Params: rule.Params{Hours: 12}},
	}
	p, err := Compile(testEmployees(1), testShifts(), rules, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if p.MinRestHours() != 12 {
		t.Fatalf("expected strictest rest 12h, got %v", p.MinRestHours())
	}
}
