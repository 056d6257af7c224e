package solver

import (
	"context"
	"sort"
	"time"

	"github.com/rotacore/rota/core/compiler"
	"github.com/rotacore/rota/core/model"
)

// relaxBudget bounds each diagnostic re-solve. Diagnosis trades optimality
// for a fast answer to "which constraint class blocks a solution".
const relaxBudget = 500 * time.Millisecond

// diagnose runs the relaxation search: hard-constraint classes are dropped
// cumulatively from lowest priority upward, re-solving after each drop, until
// the problem turns feasible. The step that flips feasibility names the
// blocking class and its rule ids. Overlap is never dropped; double-booked
// solutions diagnose nothing.
func (s *Solver) diagnose(ctx context.Context, p *compiler.Problem, tier Tier) []model.RelaxationStep {
	type class struct {
		name     compiler.HardClass
		priority int
		ruleIDs  []string
	}
	byName := make(map[compiler.HardClass]*class)
	for _, h := range p.Hard {
		if h.Class == compiler.ClassOverlap {
			continue
		}
		c, ok := byName[h.Class]
		if !ok {
			c = &class{name: h.Class, priority: h.Priority}
			byName[h.Class] = c
		}
		if h.Priority < c.priority {
			c.priority = h.Priority
		}
		c.ruleIDs = append(c.ruleIDs, h.RuleID)
	}
	classes := make([]*class, 0, len(byName))
	for _, c := range byName {
		sort.Strings(c.ruleIDs)
		classes = append(classes, c)
	}
	sort.Slice(classes, func(i, j int) bool {
		if classes[i].priority != classes[j].priority {
			return classes[i].priority < classes[j].priority
		}
		return classes[i].name < classes[j].name
	})

	budget := tier
	if budget.Timeout() > relaxBudget {
		budget.TimeoutMS = int(relaxBudget / time.Millisecond)
	}
	budget.Workers = 1

	skip := make(dropped)
	var trace []model.RelaxationStep
	for _, c := range classes {
		if ctx.Err() != nil {
			break
		}
		skip[c.name] = true
		res := s.solveOnce(ctx, p, budget, skip)
		feasible := res.Status == StatusOptimal || res.Status == StatusFeasible
		trace = append(trace, model.RelaxationStep{
			DroppedClass: string(c.name),
			RuleIDs:      c.ruleIDs,
			Feasible:     feasible,
		})
		s.log.Infof("relaxation: dropped %s -> %s", c.name, res.Status)
		if feasible {
			break
		}
	}
	return trace
}
