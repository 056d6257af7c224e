// Package compiler turns roster, shift and structured-rule input into the
// immutable constraint problem consumed by the solver. Rule kinds dispatch
// through a closed table; an unknown kind is a configuration error, never a
// silent drop.
package compiler

import (
	"fmt"
	"sort"
	"time"

	"github.com/rotacore/rota/core/model"
	"github.com/rotacore/rota/core/rule"
)

type build struct {
	problem     *Problem
	unavailable map[string]map[time.Weekday]string // employee -> weekday -> rule id
	mustWork    map[string]map[time.Weekday]string
}

type compileFunc func(*build, rule.Rule) error

// dispatch is the closed compile table. New rule kinds are additions here and
// in core/rule, not runtime reflection.
var dispatch = map[rule.Kind]compileFunc{
	rule.MustWorkDay:    compileMustWork,
	rule.UnavailableDay: compileUnavailable,
	rule.MinRestHours:   compileMinRest,
	rule.PreferDay:      compileSoftDay,
	rule.AvoidDay:       compileSoftDay,
	rule.PreferShift:    compilePreferShift,
	rule.Fairness:       compileWeightOverride,
	rule.LaborCost:      compileWeightOverride,
}

// Compile validates the input, resolves rules against the roster and builds
// the sparse compatibility graph. boundary carries per-employee last shift
// end times from the previous weekly sub-problem.
func Compile(employees []model.Employee, shifts []model.Shift, rules []rule.Rule, boundary map[string]time.Time) (*Problem, error) {
	emps := append([]model.Employee(nil), employees...)
	shs := append([]model.Shift(nil), shifts...)
	sort.Slice(emps, func(i, j int) bool { return emps[i].ID < emps[j].ID })
	sort.Slice(shs, func(i, j int) bool { return shs[i].ID < shs[j].ID })

	p := &Problem{
		Employees:  emps,
		Shifts:     shs,
		Overrides:  Overrides{Fairness: -1, Cost: -1},
		Boundary:   make(map[int]time.Time),
		empIndex:   make(map[string]int, len(emps)),
		shiftIndex: make(map[string]int, len(shs)),
	}
	for i, e := range emps {
		if err := e.Validate(); err != nil {
			return nil, err
		}
		if _, dup := p.empIndex[e.ID]; dup {
			return nil, &model.ValidationError{Entity: e.ID, Field: "id", Reason: "duplicate employee id"}
		}
		p.empIndex[e.ID] = i
	}
	for i, s := range shs {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := p.shiftIndex[s.ID]; dup {
			return nil, &model.ValidationError{Entity: s.ID, Field: "id", Reason: "duplicate shift id"}
		}
		p.shiftIndex[s.ID] = i
	}
	for id, end := range boundary {
		if i, ok := p.empIndex[id]; ok {
			p.Boundary[i] = end
		}
	}

	b := &build{
		problem:     p,
		unavailable: make(map[string]map[time.Weekday]string),
		mustWork:    make(map[string]map[time.Weekday]string),
	}

	seen := make(map[string]struct{}, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return nil, &model.ConfigurationError{RuleIDs: []string{r.ID}, Reason: err.Error()}
		}
		if _, dup := seen[r.ID]; dup {
			return nil, &model.ConfigurationError{RuleIDs: []string{r.ID}, Reason: "duplicate rule id"}
		}
		seen[r.ID] = struct{}{}
		fn, ok := dispatch[r.Kind]
		if !ok {
			return nil, &model.ConfigurationError{RuleIDs: []string{r.ID}, Reason: fmt.Sprintf("unknown rule kind %q", r.Kind)}
		}
		if err := fn(b, r); err != nil {
			return nil, err
		}
	}
	if err := b.detectContradictions(); err != nil {
		return nil, err
	}

	p.Hard = append(p.Hard,
		HardConstraint{Class: ClassHeadcount, RuleID: "builtin:headcount", Priority: priorityHeadcount, Employee: -1},
		HardConstraint{Class: ClassOverlap, RuleID: "builtin:overlap", Priority: priorityOverlap, Employee: -1},
		HardConstraint{Class: ClassWeeklyHours, RuleID: "builtin:weekly_hours", Priority: priorityWeeklyHours, Employee: -1},
	)
	sortConstraints(p)
	buildCompat(p, b.unavailable)
	return p, nil
}

// sortConstraints fixes the model construction order: priority descending,
// rule id ascending. Solver behavior is deterministic across runs as long as
// this order is stable.
func sortConstraints(p *Problem) {
	sort.Slice(p.Hard, func(i, j int) bool {
		if p.Hard[i].Priority != p.Hard[j].Priority {
			return p.Hard[i].Priority > p.Hard[j].Priority
		}
		return p.Hard[i].RuleID < p.Hard[j].RuleID
	})
	sort.Slice(p.Soft, func(i, j int) bool {
		if p.Soft[i].Priority != p.Soft[j].Priority {
			return p.Soft[i].Priority > p.Soft[j].Priority
		}
		return p.Soft[i].RuleID < p.Soft[j].RuleID
	})
}

// buildCompat creates decision variables only for qualification- and
// availability-compatible pairs, minus days ruled out for the employee.
func buildCompat(p *Problem, unavailable map[string]map[time.Weekday]string) {
	g := CompatGraph{
		ByShift:    make([][]int, len(p.Shifts)),
		ByEmployee: make([][]int, len(p.Employees)),
	}
	for si, s := range p.Shifts {
		for ei, e := range p.Employees {
			if !e.Active || !e.Qualified(s.Qualification) || !e.AvailableFor(s) {
				continue
			}
			if _, blocked := unavailable[e.ID][s.Start.Weekday()]; blocked {
				continue
			}
			idx := len(g.Pairs)
			g.Pairs = append(g.Pairs, Pair{Emp: ei, Shift: si})
			g.ByShift[si] = append(g.ByShift[si], idx)
			g.ByEmployee[ei] = append(g.ByEmployee[ei], idx)
		}
	}
	p.Compat = g
}

func (b *build) employeeIndex(r rule.Rule) (int, error) {
	i, ok := b.problem.empIndex[r.Params.EmployeeID]
	if !ok {
		return 0, &model.ConfigurationError{RuleIDs: []string{r.ID}, Reason: fmt.Sprintf("unknown employee %q", r.Params.EmployeeID)}
	}
	return i, nil
}

func compileMustWork(b *build, r rule.Rule) error {
	ei, err := b.employeeIndex(r)
	if err != nil {
		return err
	}
	if b.mustWork[r.Params.EmployeeID] == nil {
		b.mustWork[r.Params.EmployeeID] = make(map[time.Weekday]string)
	}
	b.mustWork[r.Params.EmployeeID][r.Params.Weekday] = r.ID
	b.problem.Hard = append(b.problem.Hard, HardConstraint{
		Class:    ClassMustWork,
		RuleID:   r.ID,
		Priority: r.Priority,
		Employee: ei,
		Weekday:  r.Params.Weekday,
	})
	return nil
}

func compileUnavailable(b *build, r rule.Rule) error {
	if _, err := b.employeeIndex(r); err != nil {
		return err
	}
	if b.unavailable[r.Params.EmployeeID] == nil {
		b.unavailable[r.Params.EmployeeID] = make(map[time.Weekday]string)
	}
	b.unavailable[r.Params.EmployeeID][r.Params.Weekday] = r.ID
	return nil
}

func compileMinRest(b *build, r rule.Rule) error {
	b.problem.Hard = append(b.problem.Hard, HardConstraint{
		Class:     ClassMinRest,
		RuleID:    r.ID,
		Priority:  r.Priority,
		Employee:  -1,
		RestHours: r.Params.Hours,
	})
	return nil
}

func compileSoftDay(b *build, r rule.Rule) error {
	ei, err := b.employeeIndex(r)
	if err != nil {
		return err
	}
	w := r.Weight
	if w <= 0 {
		w = 1
	}
	b.problem.Soft = append(b.problem.Soft, SoftConstraint{
		Kind:     r.Kind,
		RuleID:   r.ID,
		Priority: r.Priority,
		Weight:   w,
		Employee: ei,
		Weekday:  r.Params.Weekday,
		Shift:    -1,
	})
	return nil
}

func compilePreferShift(b *build, r rule.Rule) error {
	ei, err := b.employeeIndex(r)
	if err != nil {
		return err
	}
	si, ok := b.problem.shiftIndex[r.Params.ShiftID]
	if !ok {
		return &model.ConfigurationError{RuleIDs: []string{r.ID}, Reason: fmt.Sprintf("unknown shift %q", r.Params.ShiftID)}
	}
	w := r.Weight
	if w <= 0 {
		w = 1
	}
	b.problem.Soft = append(b.problem.Soft, SoftConstraint{
		Kind:     rule.PreferShift,
		RuleID:   r.ID,
		Priority: r.Priority,
		Weight:   w,
		Employee: ei,
		Shift:    si,
	})
	return nil
}

func compileWeightOverride(b *build, r rule.Rule) error {
	if r.Weight < 0 {
		return &model.ConfigurationError{RuleIDs: []string{r.ID}, Reason: "weight must not be negative"}
	}
	switch r.Kind {
	case rule.Fairness:
		b.problem.Overrides.Fairness = r.Weight
	case rule.LaborCost:
		b.problem.Overrides.Cost = r.Weight
	}
	return nil
}

// detectContradictions fails compilation when two hard rules can never hold
// together, naming both rule ids.
func (b *build) detectContradictions() error {
	for empID, days := range b.mustWork {
		for day, mustID := range days {
			if blockID, ok := b.unavailable[empID][day]; ok {
				return &model.ConfigurationError{
					RuleIDs: []string{mustID, blockID},
					Reason:  fmt.Sprintf("employee %s must work %s but is ruled unavailable", empID, day),
				}
			}
		}
	}
	return nil
}
