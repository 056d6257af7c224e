// Package solver implements the exact shift-assignment engine. It builds a
// fresh immutable search context per invocation from the compiled problem,
// solves within an adaptive time and worker budget, and degrades gracefully:
// oversized problems are rejected toward the fallback heuristic and
// infeasible ones are diagnosed with a relaxation trace.
package solver

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"gonum.org/v1/gonum/optimize/convex/lp"
	"gonum.org/v1/gonum/stat"

	"github.com/rotacore/rota/core/compiler"
	"github.com/rotacore/rota/core/logger"
	"github.com/rotacore/rota/core/model"
	"github.com/rotacore/rota/core/rule"
)

// Status is the outcome class of one solve.
type Status string

const (
	StatusOptimal    Status = "OPTIMAL"
	StatusFeasible   Status = "FEASIBLE"
	StatusInfeasible Status = "INFEASIBLE"
	StatusTimeout    Status = "TIMEOUT"
)

// Violation reports one unsatisfied soft constraint in a solution.
type Violation struct {
	RuleID  string
	Kind    rule.Kind
	Weight  float64
	Penalty float64
	Message string
}

// Result is the outcome of a solve. On TIMEOUT with a found solution the
// result is still usable and flagged Suboptimal; on TIMEOUT without one the
// caller is expected to invoke the fallback heuristic.
type Result struct {
	Status     Status
	Pairs      []compiler.Pair
	Objective  float64
	Violations []Violation
	Suboptimal bool
	Tier       Tier
}

// Solver solves compiled problems. It holds configuration only; all
// per-invocation state lives in the search context and is discarded after
// use, so concurrent solves are safe.
type Solver struct {
	cfg Config
	log logger.Logger
}

// New returns a solver with the given configuration.
func New(cfg Config, log logger.Logger) *Solver {
	cfg.SetDefaults()
	return &Solver{cfg: cfg, log: log}
}

// Seed returns the configured solver seed. It participates in the snapshot
// fingerprint so reproducibility is checkable end to end.
func (s *Solver) Seed() int64 { return s.cfg.Seed }

// Solve runs the exact search. Problems above the variable ceiling return a
// CapacityExceededError without searching. An INFEASIBLE outcome carries an
// InfeasibleError with the relaxation trace.
func (s *Solver) Solve(ctx context.Context, p *compiler.Problem) (*Result, error) {
	n := p.Variables()
	if n > s.cfg.MaxVariables {
		capacityRejections.Inc()
		return nil, &model.CapacityExceededError{Variables: n, Ceiling: s.cfg.MaxVariables}
	}
	tier := s.cfg.tierFor(n)
	start := time.Now()
	res := s.solveOnce(ctx, p, tier, nil)
	res.Tier = tier
	solveDuration.WithLabelValues(tierName(s.cfg, tier)).Observe(time.Since(start).Seconds())
	solvesTotal.WithLabelValues(string(res.Status)).Inc()

	if res.Status == StatusInfeasible {
		trace := s.diagnose(ctx, p, tier)
		return res, &model.InfeasibleError{Trace: trace}
	}
	return res, nil
}

func tierName(cfg Config, t Tier) string {
	switch t.MaxVariables {
	case cfg.Small.MaxVariables:
		return "small"
	case cfg.Medium.MaxVariables:
		return "medium"
	default:
		return "large"
	}
}

// dropped is the set of hard-constraint classes disabled for a solve. Only
// the relaxation search populates it.
type dropped map[compiler.HardClass]bool

// solveOnce runs one bounded search over the problem with the given tier
// budget and disabled classes.
func (s *Solver) solveOnce(ctx context.Context, p *compiler.Problem, tier Tier, skip dropped) *Result {
	v := newView(p, s.cfg.Weights, skip)

	if v.checkMustWork {
		if id, ok := v.impossibleMustWork(); ok {
			s.log.Warnf("must-work rule %s has no compatible shift", id)
			return &Result{Status: StatusInfeasible}
		}
	}

	// LP relaxation: early infeasibility detection plus branching guidance.
	// Only meaningful while headcount and weekly-hour classes are intact.
	if v.exactHeadcount && v.checkWeekly && p.Variables() > 0 {
		frac, err := lpRelax(p, v.weights, v.costScale)
		switch {
		case err == nil:
			v.orderCandidates(frac)
		case errors.Is(err, lp.ErrInfeasible):
			return &Result{Status: StatusInfeasible}
		default:
			s.log.Debugf("lp relaxation unavailable: %v", err)
		}
	}

	deadline := time.Now().Add(tier.Timeout())
	sr := &search{
		v:        v,
		ctx:      ctx,
		deadline: deadline,
	}
	sr.run(tier.Workers)

	best := sr.bestSnapshot()
	switch {
	case best == nil && sr.aborted.Load():
		return &Result{Status: StatusTimeout}
	case best == nil:
		return &Result{Status: StatusInfeasible}
	}
	pairs := make([]compiler.Pair, len(best.picked))
	for i, pi := range best.picked {
		pairs[i] = p.Compat.Pairs[pi]
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i].Shift != pairs[j].Shift {
			return pairs[i].Shift < pairs[j].Shift
		}
		return pairs[i].Emp < pairs[j].Emp
	})
	res := &Result{
		Pairs:      pairs,
		Objective:  best.objective,
		Violations: computeViolations(p, v.weights, pairs),
	}
	if sr.aborted.Load() {
		res.Status = StatusFeasible
		res.Suboptimal = true
	} else {
		res.Status = StatusOptimal
	}
	return res
}

// view is the immutable per-invocation search context.
type view struct {
	p         *compiler.Problem
	weights   Weights
	costScale float64

	shiftOrder []int   // scarcity order: fewest candidates first
	candidates [][]int // pair indices per shift, branching order
	shiftHours []float64

	exactHeadcount bool
	checkOverlap   bool
	checkWeekly    bool
	checkRest      bool
	checkMustWork  bool
	restHours      float64
}

func newView(p *compiler.Problem, defaults Weights, skip dropped) *view {
	w := defaults
	if p.Overrides.Fairness >= 0 {
		w.Fairness = p.Overrides.Fairness
	}
	if p.Overrides.Cost >= 0 {
		w.Cost = p.Overrides.Cost
	}

	v := &view{
		p:          p,
		weights:    w,
		costScale:  costScale(p),
		shiftHours: make([]float64, len(p.Shifts)),
		candidates: make([][]int, len(p.Shifts)),
	}
	for si, sh := range p.Shifts {
		v.shiftHours[si] = sh.Hours()
		v.candidates[si] = append([]int(nil), p.Compat.ByShift[si]...)
		v.shiftOrder = append(v.shiftOrder, si)
	}
	sort.SliceStable(v.shiftOrder, func(i, j int) bool {
		a, b := v.shiftOrder[i], v.shiftOrder[j]
		if len(p.Compat.ByShift[a]) != len(p.Compat.ByShift[b]) {
			return len(p.Compat.ByShift[a]) < len(p.Compat.ByShift[b])
		}
		return p.Shifts[a].ID < p.Shifts[b].ID
	})

	has := func(class compiler.HardClass) bool {
		if skip[class] {
			return false
		}
		return len(p.HardByClass(class)) > 0
	}
	v.exactHeadcount = has(compiler.ClassHeadcount)
	v.checkOverlap = has(compiler.ClassOverlap)
	v.checkWeekly = has(compiler.ClassWeeklyHours)
	v.checkMustWork = has(compiler.ClassMustWork)
	if has(compiler.ClassMinRest) {
		v.checkRest = true
		v.restHours = p.MinRestHours()
	}
	return v
}

// costScale normalizes the labor-cost objective term to the same order of
// magnitude as variance and preference penalties.
func costScale(p *compiler.Problem) float64 {
	var hours, rates float64
	for _, s := range p.Shifts {
		hours += s.Hours() * float64(s.Headcount)
	}
	for _, e := range p.Employees {
		rates += e.HourlyRate
	}
	if len(p.Employees) == 0 || hours == 0 || rates == 0 {
		return 1
	}
	return hours * rates / float64(len(p.Employees))
}

// impossibleMustWork returns a must-work rule id that no compatible pair can
// satisfy, making the problem trivially infeasible.
func (v *view) impossibleMustWork() (string, bool) {
	for _, h := range v.p.HardByClass(compiler.ClassMustWork) {
		ok := false
		for _, pi := range v.p.Compat.ByEmployee[h.Employee] {
			if v.p.Shifts[v.p.Compat.Pairs[pi].Shift].Start.Weekday() == h.Weekday {
				ok = true
				break
			}
		}
		if !ok {
			return h.RuleID, true
		}
	}
	return "", false
}

// orderCandidates sorts each shift's branching candidates by descending LP
// fractional value, pair index ascending on ties, so the search tries the
// relaxation's favourites first.
func (v *view) orderCandidates(frac []float64) {
	for si := range v.candidates {
		c := v.candidates[si]
		sort.SliceStable(c, func(i, j int) bool {
			if frac[c[i]] != frac[c[j]] {
				return frac[c[i]] > frac[c[j]]
			}
			return c[i] < c[j]
		})
	}
}

// incumbent is the best solution found so far. Ties on objective resolve to
// the lexicographically smaller pick set, which keeps parallel searches
// deterministic once they run to completion.
type incumbent struct {
	picked    []int
	objective float64
}

type search struct {
	v        *view
	ctx      context.Context
	deadline time.Time

	mu      sync.Mutex
	best    *incumbent
	hasBest atomic.Bool
	aborted atomic.Bool
}

// state is one worker's mutable search state.
type state struct {
	empHours   []float64
	empShifts  [][]int // shift indices currently assigned per employee
	picked     []int
	costAccum  float64
	avoidAccum float64
	nodes      int
}

func (sr *search) newState() *state {
	n := len(sr.v.p.Employees)
	return &state{
		empHours:  make([]float64, n),
		empShifts: make([][]int, n),
	}
}

// run explores the tree. The first shift's candidate subsets are streamed to
// a bounded worker group; each worker owns its state and searches the
// remaining depths.
func (sr *search) run(workers int) {
	if len(sr.v.shiftOrder) == 0 {
		st := sr.newState()
		sr.leaf(st)
		return
	}
	if workers < 1 {
		workers = 1
	}

	first := sr.v.shiftOrder[0]
	subsets := make(chan []int, workers*2)
	go func() {
		defer close(subsets)
		sr.enumerate(first, func(subset []int) bool {
			if sr.aborted.Load() {
				return false
			}
			cp := append([]int(nil), subset...)
			select {
			case subsets <- cp:
				return true
			case <-sr.ctx.Done():
				return false
			}
		})
	}()

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			st := sr.newState()
			for subset := range subsets {
				if sr.abortCheck(st) {
					continue // drain so the producer can finish
				}
				applied := 0
				ok := true
				for _, pi := range subset {
					if !sr.tryAssign(pi, st) {
						ok = false
						break
					}
					applied++
				}
				if ok {
					sr.dfs(1, st)
				}
				for i := applied - 1; i >= 0; i-- {
					sr.unassign(subset[i], st)
				}
			}
		}()
	}
	wg.Wait()
}

// enumerate yields every admissible candidate subset for the shift in
// deterministic order. Exact mode yields size-headcount subsets only; relaxed
// headcount mode also yields smaller ones.
func (sr *search) enumerate(si int, yield func([]int) bool) {
	k := sr.v.p.Shifts[si].Headcount
	cands := sr.v.candidates[si]
	subset := make([]int, 0, k)
	var rec func(start, need int) bool
	rec = func(start, need int) bool {
		if need == 0 {
			return yield(subset)
		}
		if !sr.v.exactHeadcount {
			// Leaving the remaining slots unfilled is admissible when the
			// headcount class is relaxed.
			if !yield(subset) {
				return false
			}
		}
		for i := start; i <= len(cands)-need; i++ {
			subset = append(subset, cands[i])
			cont := rec(i+1, need-1)
			subset = subset[:len(subset)-1]
			if !cont {
				return false
			}
		}
		return true
	}
	if k > len(cands) && sr.v.exactHeadcount {
		return
	}
	if k > len(cands) {
		k = len(cands)
	}
	rec(0, k)
}

func (sr *search) abortCheck(st *state) bool {
	st.nodes++
	if st.nodes%1024 == 0 {
		if sr.ctx.Err() != nil || time.Now().After(sr.deadline) {
			sr.aborted.Store(true)
		}
	}
	return sr.aborted.Load()
}

func (sr *search) dfs(depth int, st *state) {
	if sr.abortCheck(st) {
		return
	}
	if sr.prune(st) {
		return
	}
	if depth == len(sr.v.shiftOrder) {
		sr.leaf(st)
		return
	}
	si := sr.v.shiftOrder[depth]
	sr.pick(depth, si, 0, sr.v.p.Shifts[si].Headcount, st)
}

func (sr *search) pick(depth, si, start, need int, st *state) {
	if need == 0 {
		sr.dfs(depth+1, st)
		return
	}
	if !sr.v.exactHeadcount {
		sr.dfs(depth+1, st)
	}
	cands := sr.v.candidates[si]
	limit := len(cands) - need
	if !sr.v.exactHeadcount {
		limit = len(cands) - 1
	}
	for i := start; i <= limit; i++ {
		if sr.aborted.Load() {
			return
		}
		pi := cands[i]
		if !sr.tryAssign(pi, st) {
			continue
		}
		sr.pick(depth, si, i+1, need-1, st)
		sr.unassign(pi, st)
	}
}

// prune cuts subtrees whose accumulated monotone penalties already exceed the
// incumbent. Strictly-greater comparison keeps equal-objective optima alive
// for the lexicographic tie-break.
func (sr *search) prune(st *state) bool {
	if !sr.hasBest.Load() {
		return false
	}
	bound := sr.v.weights.Cost*st.costAccum + sr.v.weights.Preference*st.avoidAccum
	sr.mu.Lock()
	obj := sr.best.objective
	sr.mu.Unlock()
	return bound > obj
}

// tryAssign applies the incremental hard checks for adding pair pi and
// mutates the state on success.
func (sr *search) tryAssign(pi int, st *state) bool {
	v := sr.v
	pair := v.p.Compat.Pairs[pi]
	emp := v.p.Employees[pair.Emp]
	shift := v.p.Shifts[pair.Shift]

	if v.checkWeekly && emp.MaxHoursPerWeek > 0 &&
		st.empHours[pair.Emp]+v.shiftHours[pair.Shift] > emp.MaxHoursPerWeek {
		return false
	}
	for _, osi := range st.empShifts[pair.Emp] {
		other := v.p.Shifts[osi]
		if v.checkOverlap && other.Overlaps(shift) {
			return false
		}
		if v.checkRest && !restSatisfied(other, shift, v.restHours) {
			return false
		}
	}
	if v.checkRest {
		if last, ok := v.p.Boundary[pair.Emp]; ok {
			if shift.Start.Sub(last).Hours() < v.restHours {
				return false
			}
		}
	}

	st.empHours[pair.Emp] += v.shiftHours[pair.Shift]
	st.empShifts[pair.Emp] = append(st.empShifts[pair.Emp], pair.Shift)
	st.picked = append(st.picked, pi)
	st.costAccum += emp.HourlyRate * v.shiftHours[pair.Shift] / v.costScale
	st.avoidAccum += avoidPenalty(v.p, pair)
	return true
}

func (sr *search) unassign(pi int, st *state) {
	v := sr.v
	pair := v.p.Compat.Pairs[pi]
	st.empHours[pair.Emp] -= v.shiftHours[pair.Shift]
	shifts := st.empShifts[pair.Emp]
	st.empShifts[pair.Emp] = shifts[:len(shifts)-1]
	st.picked = st.picked[:len(st.picked)-1]
	st.costAccum -= v.p.Employees[pair.Emp].HourlyRate * v.shiftHours[pair.Shift] / v.costScale
	st.avoidAccum -= avoidPenalty(v.p, pair)
}

// restSatisfied checks the minimum gap between two non-overlapping shifts.
func restSatisfied(a, b model.Shift, restHours float64) bool {
	if a.Overlaps(b) {
		return true // overlap is the overlap class's concern
	}
	var gap float64
	if a.End.Before(b.Start) || a.End.Equal(b.Start) {
		gap = b.Start.Sub(a.End).Hours()
	} else {
		gap = a.Start.Sub(b.End).Hours()
	}
	return gap >= restHours
}

func avoidPenalty(p *compiler.Problem, pair compiler.Pair) float64 {
	var pen float64
	for _, sc := range p.Soft {
		if sc.Kind == rule.AvoidDay && sc.Employee == pair.Emp &&
			p.Shifts[pair.Shift].Start.Weekday() == sc.Weekday {
			pen += sc.Weight
		}
	}
	return pen
}

// leaf evaluates a complete selection and updates the incumbent.
func (sr *search) leaf(st *state) {
	v := sr.v
	if v.checkMustWork && !mustWorkSatisfied(v.p, st) {
		return
	}
	obj := sr.objective(st)
	picked := append([]int(nil), st.picked...)
	sort.Ints(picked)

	sr.mu.Lock()
	defer sr.mu.Unlock()
	switch {
	case sr.best == nil, obj < sr.best.objective,
		obj == sr.best.objective && lexLess(picked, sr.best.picked):
		sr.best = &incumbent{picked: picked, objective: obj}
		sr.hasBest.Store(true)
	}
}

func (sr *search) bestSnapshot() *incumbent {
	sr.mu.Lock()
	defer sr.mu.Unlock()
	return sr.best
}

func lexLess(a, b []int) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return len(a) < len(b)
}

func mustWorkSatisfied(p *compiler.Problem, st *state) bool {
	for _, h := range p.HardByClass(compiler.ClassMustWork) {
		ok := false
		for _, si := range st.empShifts[h.Employee] {
			if p.Shifts[si].Start.Weekday() == h.Weekday {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// objective scores a complete selection: weighted hour variance across the
// roster, unsatisfied preference penalties, and normalized labor cost.
func (sr *search) objective(st *state) float64 {
	v := sr.v
	var fairness float64
	if len(st.empHours) > 1 {
		fairness = stat.Variance(st.empHours, nil)
	}
	pref := st.avoidAccum + unsatisfiedPreferences(v.p, st)
	return v.weights.Fairness*fairness + v.weights.Preference*pref + v.weights.Cost*st.costAccum
}

func unsatisfiedPreferences(p *compiler.Problem, st *state) float64 {
	var pen float64
	for _, sc := range p.Soft {
		switch sc.Kind {
		case rule.PreferDay:
			ok := false
			for _, si := range st.empShifts[sc.Employee] {
				if p.Shifts[si].Start.Weekday() == sc.Weekday {
					ok = true
					break
				}
			}
			if !ok {
				pen += sc.Weight
			}
		case rule.PreferShift:
			ok := false
			for _, si := range st.empShifts[sc.Employee] {
				if si == sc.Shift {
					ok = true
					break
				}
			}
			if !ok {
				pen += sc.Weight
			}
		}
	}
	return pen
}

// computeViolations lists the soft constraints a final selection leaves
// unsatisfied, with their weighted penalties, for reporting.
func computeViolations(p *compiler.Problem, w Weights, pairs []compiler.Pair) []Violation {
	byEmp := make(map[int][]int)
	for _, pr := range pairs {
		byEmp[pr.Emp] = append(byEmp[pr.Emp], pr.Shift)
	}
	var out []Violation
	for _, sc := range p.Soft {
		switch sc.Kind {
		case rule.AvoidDay:
			count := 0
			for _, si := range byEmp[sc.Employee] {
				if p.Shifts[si].Start.Weekday() == sc.Weekday {
					count++
				}
			}
			if count > 0 {
				out = append(out, Violation{
					RuleID:  sc.RuleID,
					Kind:    sc.Kind,
					Weight:  sc.Weight,
					Penalty: w.Preference * sc.Weight * float64(count),
					Message: fmt.Sprintf("%s assigned %d shift(s) on avoided %s", p.Employees[sc.Employee].ID, count, sc.Weekday),
				})
			}
		case rule.PreferDay:
			ok := false
			for _, si := range byEmp[sc.Employee] {
				if p.Shifts[si].Start.Weekday() == sc.Weekday {
					ok = true
					break
				}
			}
			if !ok {
				out = append(out, Violation{
					RuleID:  sc.RuleID,
					Kind:    sc.Kind,
					Weight:  sc.Weight,
					Penalty: w.Preference * sc.Weight,
					Message: fmt.Sprintf("%s not scheduled on preferred %s", p.Employees[sc.Employee].ID, sc.Weekday),
				})
			}
		case rule.PreferShift:
			ok := false
			for _, si := range byEmp[sc.Employee] {
				if si == sc.Shift {
					ok = true
					break
				}
			}
			if !ok {
				out = append(out, Violation{
					RuleID:  sc.RuleID,
					Kind:    sc.Kind,
					Weight:  sc.Weight,
					Penalty: w.Preference * sc.Weight,
					Message: fmt.Sprintf("%s not assigned preferred shift %s", p.Employees[sc.Employee].ID, p.Shifts[sc.Shift].ID),
				})
			}
		}
	}
	return out
}
