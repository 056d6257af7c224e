package orchestrator

import (
	"testing"
	"time"

	"github.com/rotacore/rota/core/compiler"
	"github.com/rotacore/rota/core/model"
)

func mustCompile(t *testing.T, emps []model.Employee, shifts []model.Shift) *compiler.Problem {
	t.Helper()
	p, err := compiler.Compile(emps, shifts, nil, nil)
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return p
}

func TestSplitWeeks(t *testing.T) {
	full := splitWeeks(monday, monday.AddDate(0, 0, 14))
	if len(full) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(full))
	}
	if !full[1].start.Equal(monday.AddDate(0, 0, 7)) || !full[1].end.Equal(monday.AddDate(0, 0, 14)) {
		t.Fatalf("unexpected second window: %+v", full[1])
	}

	ragged := splitWeeks(monday, monday.AddDate(0, 0, 10))
	if len(ragged) != 2 {
		t.Fatalf("expected 2 windows, got %d", len(ragged))
	}
	if !ragged[1].end.Equal(monday.AddDate(0, 0, 10)) {
		t.Fatalf("last window must be truncated to the horizon, got %v", ragged[1].end)
	}

	if got := splitWeeks(monday, monday); got != nil {
		t.Fatalf("empty horizon must yield no windows, got %v", got)
	}
}

func TestShiftsIn(t *testing.T) {
	shifts := []model.Shift{
		{ID: "before", Start: monday.AddDate(0, 0, -1)},
		{ID: "first", Start: monday},
		{ID: "inside", Start: monday.AddDate(0, 0, 3)},
		{ID: "boundary", Start: monday.AddDate(0, 0, 7)},
	}
	got := shiftsIn(shifts, monday, monday.AddDate(0, 0, 7))
	if len(got) != 2 || got[0].ID != "first" || got[1].ID != "inside" {
		t.Fatalf("unexpected selection: %+v", got)
	}
}

func TestFingerprintStability(t *testing.T) {
	snap := &snapshot{
		employees: testRoster(2),
		shifts:    twoWeekShifts(),
	}
	spec := GenerateSpec{ScheduleID: "sched-1", WeekStart: monday, WeekEnd: monday.AddDate(0, 0, 14)}

	a := fingerprint(snap, spec, 42)
	b := fingerprint(snap, spec, 42)
	if a == "" || a != b {
		t.Fatalf("fingerprint must be stable, got %q vs %q", a, b)
	}
	if fingerprint(snap, spec, 43) == a {
		t.Fatalf("seed change must change the fingerprint")
	}
	snap.employees[0].MaxHoursPerWeek = 39
	if fingerprint(snap, spec, 42) == a {
		t.Fatalf("snapshot change must change the fingerprint")
	}
}

func TestCarryBoundaryLatestEnd(t *testing.T) {
	shifts := []model.Shift{
		{ID: "a", Start: monday.Add(8 * time.Hour), End: monday.Add(12 * time.Hour), Headcount: 1},
		{ID: "b", Start: monday.Add(14 * time.Hour), End: monday.Add(20 * time.Hour), Headcount: 1},
	}
	p := mustCompile(t, testRoster(1), shifts)
	boundary := carryBoundary(p, p.Compat.Pairs)
	if got := boundary["emp-00"]; !got.Equal(monday.Add(20 * time.Hour)) {
		t.Fatalf("expected latest end carried, got %v", got)
	}
}
