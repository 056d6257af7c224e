// Package heuristic implements the greedy fallback scheduler used when the
// exact solver times out without a solution or the problem exceeds its
// variable ceiling. It is first-fit with no backtracking, runs in
// O(shifts x candidates) time and never fails: shifts it cannot staff are
// flagged, not raised.
package heuristic

import (
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/rotacore/rota/core/compiler"
	"github.com/rotacore/rota/core/logger"
	"github.com/rotacore/rota/core/model"
)

// Unfilled flags a shift left understaffed, with the headcount shortfall.
type Unfilled struct {
	ShiftID string
	Missing int
}

// Result is the heuristic outcome. Pairs may understaff shifts; Unfilled
// lists every gap explicitly.
type Result struct {
	Pairs    []compiler.Pair
	Unfilled []Unfilled
}

// Scheduler is the greedy fallback. The seed only breaks ties between
// equally loaded employees, so results stay reproducible per seed.
type Scheduler struct {
	seed int64
	log  logger.Logger
}

// New returns a fallback scheduler.
func New(seed int64, log logger.Logger) *Scheduler {
	return &Scheduler{seed: seed, log: log}
}

// Schedule assigns shifts scarcest-first, picking for each slot the
// compatible employee whose assignment keeps the running hour variance
// lowest while respecting the incremental hard checks.
func (g *Scheduler) Schedule(p *compiler.Problem) *Result {
	res := &Result{}
	nEmp := len(p.Employees)

	order := make([]int, len(p.Shifts))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if len(p.Compat.ByShift[a]) != len(p.Compat.ByShift[b]) {
			return len(p.Compat.ByShift[a]) < len(p.Compat.ByShift[b])
		}
		return p.Shifts[a].ID < p.Shifts[b].ID
	})

	// Tie-break permutation: a fixed seed gives a fixed order.
	perm := rand.New(rand.NewSource(g.seed)).Perm(nEmp)
	rank := make([]int, nEmp)
	for pos, ei := range perm {
		rank[ei] = pos
	}

	hours := make([]float64, nEmp)
	assigned := make([][]int, nEmp) // shift indices per employee
	rest := p.MinRestHours()

	for _, si := range order {
		shift := p.Shifts[si]
		need := shift.Headcount
		taken := make(map[int]bool, need)
		for slot := 0; slot < need; slot++ {
			best := -1
			bestVar := 0.0
			for _, pi := range p.Compat.ByShift[si] {
				ei := p.Compat.Pairs[pi].Emp
				if taken[ei] || !g.fits(p, ei, si, hours, assigned, rest) {
					continue
				}
				hours[ei] += shift.Hours()
				v := hours[ei]
				if nEmp > 1 {
					v = stat.Variance(hours, nil)
				}
				hours[ei] -= shift.Hours()
				if best == -1 || v < bestVar ||
					(v == bestVar && rank[ei] < rank[p.Compat.Pairs[best].Emp]) {
					best = pi
					bestVar = v
				}
			}
			if best == -1 {
				break
			}
			ei := p.Compat.Pairs[best].Emp
			taken[ei] = true
			hours[ei] += shift.Hours()
			assigned[ei] = append(assigned[ei], si)
			res.Pairs = append(res.Pairs, p.Compat.Pairs[best])
		}
		if filled := len(taken); filled < need {
			g.log.Warnf("fallback: shift %s understaffed, %d of %d filled", shift.ID, filled, need)
			res.Unfilled = append(res.Unfilled, Unfilled{ShiftID: shift.ID, Missing: need - filled})
		}
	}

	sort.Slice(res.Pairs, func(i, j int) bool {
		if res.Pairs[i].Shift != res.Pairs[j].Shift {
			return res.Pairs[i].Shift < res.Pairs[j].Shift
		}
		return res.Pairs[i].Emp < res.Pairs[j].Emp
	})
	return res
}

// fits applies the incremental hard checks for one candidate employee.
func (g *Scheduler) fits(p *compiler.Problem, ei, si int, hours []float64, assigned [][]int, rest float64) bool {
	emp := p.Employees[ei]
	shift := p.Shifts[si]
	if emp.MaxHoursPerWeek > 0 && hours[ei]+shift.Hours() > emp.MaxHoursPerWeek {
		return false
	}
	for _, osi := range assigned[ei] {
		other := p.Shifts[osi]
		if other.Overlaps(shift) {
			return false
		}
		if rest > 0 && !gapAtLeast(other, shift, rest) {
			return false
		}
	}
	if rest > 0 {
		if last, ok := p.Boundary[ei]; ok && shift.Start.Sub(last).Hours() < rest {
			return false
		}
	}
	return true
}

func gapAtLeast(a, b model.Shift, rest float64) bool {
	if a.End.Before(b.Start) || a.End.Equal(b.Start) {
		return b.Start.Sub(a.End).Hours() >= rest
	}
	return a.Start.Sub(b.End).Hours() >= rest
}
