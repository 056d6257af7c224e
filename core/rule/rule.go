// Package rule defines the structured rule vocabulary consumed by the
// constraint compiler. Rule kinds form a closed set: adding behaviour means
// adding a kind here and a compile function in the compiler's dispatch table.
package rule

import (
	"fmt"
	"time"
)

// Kind identifies a rule type from the closed vocabulary.
type Kind string

const (
	// Hard rules. A violated hard rule invalidates a solution.
	MustWorkDay    Kind = "must_work_day"
	UnavailableDay Kind = "unavailable_day"
	MinRestHours   Kind = "min_rest_hours"

	// Soft rules. Violations are penalized in the objective.
	PreferDay   Kind = "prefer_day"
	AvoidDay    Kind = "avoid_day"
	PreferShift Kind = "prefer_shift"

	// Global objective weight carriers.
	Fairness  Kind = "fairness"
	LaborCost Kind = "labor_cost"
)

// Scope identifies what a rule applies to.
type Scope string

const (
	ScopeEmployee Scope = "employee"
	ScopeGlobal   Scope = "global"
)

// Rule is one structured scheduling rule as produced by the rule provider.
type Rule struct {
	ID       string  `json:"id" yaml:"id"`
	Kind     Kind    `json:"type" yaml:"type"`
	Scope    Scope   `json:"scope" yaml:"scope"`
	Priority int     `json:"priority" yaml:"priority"`
	Weight   float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Params   Params  `json:"params" yaml:"params"`
}

// Params carries the kind-specific parameters of a rule.
type Params struct {
	EmployeeID string       `json:"employee_id,omitempty" yaml:"employee_id,omitempty"`
	Weekday    time.Weekday `json:"weekday,omitempty" yaml:"weekday,omitempty"`
	ShiftID    string       `json:"shift_id,omitempty" yaml:"shift_id,omitempty"`
	Hours      float64      `json:"hours,omitempty" yaml:"hours,omitempty"`
}

// Hard reports whether the rule kind belongs to the hard set.
func (k Kind) Hard() bool {
	switch k {
	case MustWorkDay, UnavailableDay, MinRestHours:
		return true
	}
	return false
}

// Known reports whether the kind belongs to the closed vocabulary.
func (k Kind) Known() bool {
	switch k {
	case MustWorkDay, UnavailableDay, MinRestHours, PreferDay, AvoidDay, PreferShift, Fairness, LaborCost:
		return true
	}
	return false
}

// Validate checks rule shape independent of roster content.
func (r Rule) Validate() error {
	if r.ID == "" {
		return fmt.Errorf("rule without id")
	}
	if !r.Kind.Known() {
		return fmt.Errorf("rule %s: unknown kind %q", r.ID, r.Kind)
	}
	switch r.Kind {
	case MustWorkDay, UnavailableDay, PreferDay, AvoidDay:
		if r.Params.EmployeeID == "" {
			return fmt.Errorf("rule %s: %s requires employee_id", r.ID, r.Kind)
		}
	case PreferShift:
		if r.Params.EmployeeID == "" || r.Params.ShiftID == "" {
			return fmt.Errorf("rule %s: prefer_shift requires employee_id and shift_id", r.ID)
		}
	case MinRestHours:
		if r.Params.Hours <= 0 {
			return fmt.Errorf("rule %s: min_rest_hours requires positive hours", r.ID)
		}
	}
	return nil
}
