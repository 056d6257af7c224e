package compiler

import (
	"time"

	"github.com/rotacore/rota/core/model"
	"github.com/rotacore/rota/core/rule"
)

// Pair is one (employee, shift) decision variable. Only pairs that survive
// the qualification and availability filters exist; incompatibility is
// enforced by omission.
type Pair struct {
	Emp   int
	Shift int
}

// CompatGraph is the sparse employee-shift compatibility structure. Pairs is
// the variable arena; ByShift and ByEmployee hold indices into it so lookups
// never allocate nested maps.
type CompatGraph struct {
	Pairs      []Pair
	ByShift    [][]int
	ByEmployee [][]int
}

// HardClass names a class of hard constraints. The relaxation search drops
// whole classes in priority order when diagnosing infeasibility.
type HardClass string

const (
	ClassHeadcount   HardClass = "headcount"
	ClassOverlap     HardClass = "overlap"
	ClassWeeklyHours HardClass = "weekly_hours"
	ClassMustWork    HardClass = "must_work_day"
	ClassMinRest     HardClass = "min_rest"
)

// Builtin structural constraints carry fixed priorities above any rule-borne
// constraint, so the relaxation search questions rule-borne classes first.
const (
	priorityHeadcount   = 100
	priorityOverlap     = 95
	priorityWeeklyHours = 90
)

// HardConstraint is a compiled must-hold condition.
type HardConstraint struct {
	Class     HardClass
	RuleID    string
	Priority  int
	Employee  int // index into Problem.Employees, -1 for global
	Weekday   time.Weekday
	RestHours float64
}

// SoftConstraint is a compiled penalty term.
type SoftConstraint struct {
	Kind     rule.Kind
	RuleID   string
	Priority int
	Weight   float64
	Employee int // index into Problem.Employees, -1 for global
	Weekday  time.Weekday
	Shift    int // index into Problem.Shifts, -1 when not shift-scoped
}

// Overrides carries objective weights lifted from global rules. Negative
// values mean "not set"; the solver then uses its configured defaults.
type Overrides struct {
	Fairness float64
	Cost     float64
}

// Problem is the immutable compiled form handed to the solver. It is built
// fresh for every invocation and discarded afterwards.
type Problem struct {
	Employees []model.Employee
	Shifts    []model.Shift
	Compat    CompatGraph
	Hard      []HardConstraint
	Soft      []SoftConstraint
	Overrides Overrides

	// Boundary maps employee index to the end of their last assignment in
	// the previous weekly sub-problem, for rest-period carry-over.
	Boundary map[int]time.Time

	empIndex   map[string]int
	shiftIndex map[string]int
}

// EmployeeIndex returns the arena index for an employee id.
func (p *Problem) EmployeeIndex(id string) (int, bool) {
	i, ok := p.empIndex[id]
	return i, ok
}

// ShiftIndex returns the arena index for a shift id.
func (p *Problem) ShiftIndex(id string) (int, bool) {
	i, ok := p.shiftIndex[id]
	return i, ok
}

// Variables returns the decision variable count (compatible pairs).
func (p *Problem) Variables() int { return len(p.Compat.Pairs) }

// MinRestHours returns the strictest compiled rest requirement, 0 when none.
func (p *Problem) MinRestHours() float64 {
	var rest float64
	for _, h := range p.Hard {
		if h.Class == ClassMinRest && h.RestHours > rest {
			rest = h.RestHours
		}
	}
	return rest
}

// HardByClass returns the compiled hard constraints of one class.
func (p *Problem) HardByClass(class HardClass) []HardConstraint {
	var out []HardConstraint
	for _, h := range p.Hard {
		if h.Class == class {
			out = append(out, h)
		}
	}
	return out
}
