package provider

import (
	"context"
	"fmt"

	"github.com/rotacore/rota/core/rule"
)

// fileRule is the on-disk rule shape: the structured {type, scope, params}
// records emitted by the rule parser, with weekday names instead of numbers.
type fileRule struct {
	ID       string  `json:"id" yaml:"id"`
	Type     string  `json:"type" yaml:"type"`
	Scope    string  `json:"scope" yaml:"scope"`
	Priority int     `json:"priority" yaml:"priority"`
	Weight   float64 `json:"weight,omitempty" yaml:"weight,omitempty"`
	Params   struct {
		EmployeeID string  `json:"employee_id,omitempty" yaml:"employee_id,omitempty"`
		Weekday    string  `json:"weekday,omitempty" yaml:"weekday,omitempty"`
		ShiftID    string  `json:"shift_id,omitempty" yaml:"shift_id,omitempty"`
		Hours      float64 `json:"hours,omitempty" yaml:"hours,omitempty"`
	} `json:"params" yaml:"params"`
}

// FileRules loads structured rules from a JSON or YAML file.
type FileRules struct {
	Path string
}

// Rules implements orchestrator.RuleProvider.
func (f FileRules) Rules(_ context.Context) ([]rule.Rule, error) {
	var raw []fileRule
	if err := decodeFile(f.Path, &raw); err != nil {
		return nil, err
	}
	out := make([]rule.Rule, 0, len(raw))
	for _, fr := range raw {
		r := rule.Rule{
			ID:       fr.ID,
			Kind:     rule.Kind(fr.Type),
			Scope:    rule.Scope(fr.Scope),
			Priority: fr.Priority,
			Weight:   fr.Weight,
		}
		r.Params.EmployeeID = fr.Params.EmployeeID
		r.Params.ShiftID = fr.Params.ShiftID
		r.Params.Hours = fr.Params.Hours
		if fr.Params.Weekday != "" {
			day, err := parseWeekday(fr.Params.Weekday)
			if err != nil {
				return nil, fmt.Errorf("rule %s: %w", fr.ID, err)
			}
			r.Params.Weekday = day
		}
		out = append(out, r)
	}
	return out, nil
}
