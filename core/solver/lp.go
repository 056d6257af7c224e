package solver

import (
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	"github.com/rotacore/rota/core/compiler"
	"github.com/rotacore/rota/core/rule"
)

// solveRelaxation solves the continuous relaxation of the assignment problem:
// minimize the linear part of the objective subject to exact headcount per
// shift, weekly-hour bounds per employee and x in [0,1]. The fractional
// solution guides branching order and its infeasibility is an early exit for
// the exact search.
func solveRelaxation(p *compiler.Problem, w Weights, costScale float64) ([]float64, error) {
	n := p.Variables()
	if n == 0 {
		return nil, lp.ErrInfeasible
	}

	c := make([]float64, n)
	for i, pair := range p.Compat.Pairs {
		emp := p.Employees[pair.Emp]
		shift := p.Shifts[pair.Shift]
		c[i] = w.Cost * emp.HourlyRate * shift.Hours() / costScale
	}
	// Preference terms that are linear in a single variable fold into the
	// LP objective: avoided slots cost, preferred slots discount.
	for _, sc := range p.Soft {
		for _, pi := range p.Compat.ByEmployee[sc.Employee] {
			pair := p.Compat.Pairs[pi]
			switch sc.Kind {
			case rule.AvoidDay:
				if p.Shifts[pair.Shift].Start.Weekday() == sc.Weekday {
					c[pi] += w.Preference * sc.Weight
				}
			case rule.PreferShift:
				if pair.Shift == sc.Shift {
					c[pi] -= w.Preference * sc.Weight
				}
			case rule.PreferDay:
				if p.Shifts[pair.Shift].Start.Weekday() == sc.Weekday {
					c[pi] -= w.Preference * sc.Weight
				}
			}
		}
	}

	// Inequalities: weekly hours per employee, then unit upper bounds.
	rows := 0
	for ei := range p.Employees {
		if p.Employees[ei].MaxHoursPerWeek > 0 && len(p.Compat.ByEmployee[ei]) > 0 {
			rows++
		}
	}
	g := mat.NewDense(rows+n, n, nil)
	h := make([]float64, rows+n)
	row := 0
	for ei, e := range p.Employees {
		if e.MaxHoursPerWeek <= 0 || len(p.Compat.ByEmployee[ei]) == 0 {
			continue
		}
		for _, pi := range p.Compat.ByEmployee[ei] {
			g.Set(row, pi, p.Shifts[p.Compat.Pairs[pi].Shift].Hours())
		}
		h[row] = e.MaxHoursPerWeek
		row++
	}
	for i := 0; i < n; i++ {
		g.Set(rows+i, i, 1)
		h[rows+i] = 1
	}

	// Equalities: exact headcount per shift.
	a := mat.NewDense(len(p.Shifts), n, nil)
	b := make([]float64, len(p.Shifts))
	for si := range p.Shifts {
		for _, pi := range p.Compat.ByShift[si] {
			a.Set(si, pi, 1)
		}
		b[si] = float64(p.Shifts[si].Headcount)
	}

	cStd, aStd, bStd := lp.Convert(c, g, h, a, b)
	_, sol, err := lp.Simplex(cStd, aStd, bStd, 1e-7, nil)
	if err != nil {
		return nil, err
	}
	return sol[:n], nil
}

// lpRelax points to the relaxation solver so tests can simulate failures.
var lpRelax = solveRelaxation
