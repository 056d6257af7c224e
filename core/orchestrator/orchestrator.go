// Package orchestrator drives schedule generation: it snapshots the input
// once, splits the horizon into weekly sub-problems to bound solve size,
// carries rest-period boundary constraints across weeks, and degrades to the
// greedy heuristic when the exact solver cannot deliver.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gonum.org/v1/gonum/stat"

	"github.com/rotacore/rota/core/assemble"
	"github.com/rotacore/rota/core/compiler"
	"github.com/rotacore/rota/core/events"
	"github.com/rotacore/rota/core/heuristic"
	"github.com/rotacore/rota/core/logger"
	"github.com/rotacore/rota/core/metrics"
	"github.com/rotacore/rota/core/model"
	"github.com/rotacore/rota/core/rule"
	"github.com/rotacore/rota/core/solver"
	"github.com/rotacore/rota/internal/eventbus"
)

// RosterProvider supplies the employee snapshot, read once per generation.
type RosterProvider interface {
	Employees(ctx context.Context) ([]model.Employee, error)
}

// ShiftProvider supplies the shifts of the requested horizon.
type ShiftProvider interface {
	Shifts(ctx context.Context, from, to time.Time) ([]model.Shift, error)
}

// RuleProvider supplies the structured rule list.
type RuleProvider interface {
	Rules(ctx context.Context) ([]rule.Rule, error)
}

// State is the generation state machine.
type State string

const (
	StatePending   State = "PENDING"
	StateRunning   State = "RUNNING"
	StateMerging   State = "MERGING"
	StateComplete  State = "COMPLETE"
	StateFailed    State = "FAILED"
	StateCancelled State = "CANCELLED"
)

// Config bounds the orchestrator's solve concurrency.
type Config struct {
	// PoolSize caps concurrent CPU-bound solves across all generations.
	PoolSize int `json:"pool_size" yaml:"pool_size"`
}

// SetDefaults fills zero values.
func (c *Config) SetDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 4
	}
}

// GenerateSpec describes one generation request.
type GenerateSpec struct {
	ScheduleID string      `json:"schedule_id"`
	WeekStart  time.Time   `json:"week_start"`
	WeekEnd    time.Time   `json:"week_end"`
	Department string      `json:"department,omitempty"`
	Overrides  []rule.Rule `json:"constraint_overrides,omitempty"`
}

// GenerateResult is the outcome handed back to callers.
type GenerateResult struct {
	Status        State           `json:"status"`
	Schedule      *model.Schedule `json:"schedule"`
	Degraded      bool            `json:"degraded"`
	FallbackWeeks []int           `json:"fallback_weeks,omitempty"`
}

// Generation is the progress handle for one in-flight run.
type Generation struct {
	scheduleID string

	mu         sync.Mutex
	state      State
	weeksDone  int
	totalWeeks int
}

// State returns the current state.
func (g *Generation) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Progress returns weeks completed over total weeks in [0,1].
func (g *Generation) Progress() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.totalWeeks == 0 {
		return 0
	}
	return float64(g.weeksDone) / float64(g.totalWeeks)
}

func (g *Generation) set(state State) {
	g.mu.Lock()
	g.state = state
	g.mu.Unlock()
}

func (g *Generation) weekDone() {
	g.mu.Lock()
	g.weeksDone++
	g.mu.Unlock()
}

// Orchestrator runs generations. Mutual exclusion is keyed by schedule id;
// a second request for an id with a run in flight is rejected, not queued.
type Orchestrator struct {
	roster   RosterProvider
	shifts   ShiftProvider
	rules    RuleProvider
	solver   *solver.Solver
	fallback *heuristic.Scheduler
	log      logger.Logger
	sink     metrics.Sink
	bus      eventbus.EventBus
	pool     chan struct{}

	mu        sync.Mutex
	active    map[string]*Generation
	completed map[string]*model.Schedule
}

// New creates an orchestrator. sink and bus may be nil.
func New(cfg Config, roster RosterProvider, shifts ShiftProvider, rules RuleProvider, s *solver.Solver, fallback *heuristic.Scheduler, sink metrics.Sink, bus eventbus.EventBus, log logger.Logger) (*Orchestrator, error) {
	if roster == nil || shifts == nil || rules == nil || s == nil || fallback == nil || log == nil {
		return nil, fmt.Errorf("orchestrator: nil dependency")
	}
	cfg.SetDefaults()
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Orchestrator{
		roster:    roster,
		shifts:    shifts,
		rules:     rules,
		solver:    s,
		fallback:  fallback,
		log:       log,
		sink:      sink,
		bus:       bus,
		pool:      make(chan struct{}, cfg.PoolSize),
		active:    make(map[string]*Generation),
		completed: make(map[string]*model.Schedule),
	}, nil
}

// Progress reports the state and progress of an in-flight generation.
func (o *Orchestrator) Progress(scheduleID string) (float64, State, bool) {
	o.mu.Lock()
	gen, ok := o.active[scheduleID]
	o.mu.Unlock()
	if !ok {
		return 0, "", false
	}
	return gen.Progress(), gen.State(), true
}

// Publish freezes a completed schedule. Further generation calls with an
// unchanged snapshot return the stored assignments.
func (o *Orchestrator) Publish(scheduleID string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	sched, ok := o.completed[scheduleID]
	if !ok {
		return fmt.Errorf("orchestrator: no completed schedule %s", scheduleID)
	}
	if sched.Published() {
		return nil
	}
	return sched.Transition(model.SchedulePublished)
}

// Schedule returns the completed schedule for an id, if any.
func (o *Orchestrator) Schedule(scheduleID string) (*model.Schedule, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.completed[scheduleID]
	return s, ok
}

// Generate runs one generation synchronously. Cancellation is cooperative
// and honored at week boundaries only, so worst-case cancellation latency is
// one week's solve budget.
func (o *Orchestrator) Generate(ctx context.Context, spec GenerateSpec) (*GenerateResult, error) {
	if spec.ScheduleID == "" {
		return nil, &model.ValidationError{Field: "schedule_id", Reason: "must not be empty"}
	}
	if !spec.WeekEnd.After(spec.WeekStart) {
		return nil, &model.ValidationError{Field: "week_end", Reason: "must be after week_start"}
	}

	gen := &Generation{scheduleID: spec.ScheduleID, state: StatePending}
	o.mu.Lock()
	if _, busy := o.active[spec.ScheduleID]; busy {
		o.mu.Unlock()
		return nil, &model.ConflictError{ScheduleID: spec.ScheduleID}
	}
	o.active[spec.ScheduleID] = gen
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		delete(o.active, spec.ScheduleID)
		o.mu.Unlock()
	}()

	res, err := o.run(ctx, spec, gen)
	if err != nil {
		var cancelled *model.CancelledError
		if errors.As(err, &cancelled) {
			gen.set(StateCancelled)
			o.publish(events.GenerationCancelled{ScheduleID: spec.ScheduleID, WeeksCompleted: cancelled.WeeksCompleted})
			generationsTotal.WithLabelValues(string(StateCancelled)).Inc()
		} else {
			gen.set(StateFailed)
			o.publish(events.GenerationFailed{ScheduleID: spec.ScheduleID, Err: err})
			generationsTotal.WithLabelValues(string(StateFailed)).Inc()
		}
		return nil, err
	}
	gen.set(StateComplete)
	generationsTotal.WithLabelValues(string(StateComplete)).Inc()
	return res, nil
}

// snapshot is the immutable input captured once at orchestration start. The
// orchestrator never re-reads live roster state mid-run.
type snapshot struct {
	employees []model.Employee
	shifts    []model.Shift
	rules     []rule.Rule
}

func (o *Orchestrator) capture(ctx context.Context, spec GenerateSpec) (*snapshot, error) {
	employees, err := o.roster.Employees(ctx)
	if err != nil {
		return nil, fmt.Errorf("roster snapshot: %w", err)
	}
	shifts, err := o.shifts.Shifts(ctx, spec.WeekStart, spec.WeekEnd)
	if err != nil {
		return nil, fmt.Errorf("shift snapshot: %w", err)
	}
	rules, err := o.rules.Rules(ctx)
	if err != nil {
		return nil, fmt.Errorf("rule snapshot: %w", err)
	}
	if spec.Department != "" {
		filtered := shifts[:0]
		for _, s := range shifts {
			if s.Department == spec.Department {
				filtered = append(filtered, s)
			}
		}
		shifts = filtered
	}
	rules = append(rules, spec.Overrides...)

	snap := &snapshot{employees: employees, shifts: shifts, rules: rules}
	sort.Slice(snap.employees, func(i, j int) bool { return snap.employees[i].ID < snap.employees[j].ID })
	sort.Slice(snap.shifts, func(i, j int) bool { return snap.shifts[i].ID < snap.shifts[j].ID })
	sort.SliceStable(snap.rules, func(i, j int) bool { return snap.rules[i].ID < snap.rules[j].ID })
	return snap, nil
}

//gocyclo:ignore
func (o *Orchestrator) run(ctx context.Context, spec GenerateSpec, gen *Generation) (*GenerateResult, error) {
	snap, err := o.capture(ctx, spec)
	if err != nil {
		return nil, err
	}
	print := fingerprint(snap, spec, o.solver.Seed())

	// Unchanged published input: return the stored result, no duplicates.
	o.mu.Lock()
	if prev, ok := o.completed[spec.ScheduleID]; ok && prev.Fingerprint == print {
		o.mu.Unlock()
		o.log.Infof("schedule %s unchanged, returning stored result", spec.ScheduleID)
		return &GenerateResult{Status: StateComplete, Schedule: prev}, nil
	}
	o.mu.Unlock()

	weeks := splitWeeks(spec.WeekStart, spec.WeekEnd)
	gen.mu.Lock()
	gen.totalWeeks = len(weeks)
	gen.state = StateRunning
	gen.mu.Unlock()
	o.publish(events.GenerationStarted{ScheduleID: spec.ScheduleID, TotalWeeks: len(weeks)})

	sched := &model.Schedule{
		ID:        spec.ScheduleID,
		WeekStart: spec.WeekStart,
		WeekEnd:   spec.WeekEnd,
		Status:    model.ScheduleDraft,
	}
	if err := sched.Transition(model.ScheduleSolving); err != nil {
		return nil, err
	}

	var (
		assignments   []model.Assignment
		diagnostics   []model.Diagnostic
		fallbackWeeks []int
		degraded      bool
		hoursByEmp    = make(map[string]float64)
		totalCost     float64
		required      int
		boundary      = map[string]time.Time{}
	)

	for wk, window := range weeks {
		// Cooperative cancellation checkpoint.
		if ctx.Err() != nil {
			return nil, &model.CancelledError{ScheduleID: spec.ScheduleID, WeeksCompleted: wk}
		}

		weekShifts := shiftsIn(snap.shifts, window.start, window.end)
		problem, err := compiler.Compile(snap.employees, weekShifts, snap.rules, boundary)
		if err != nil {
			return nil, err
		}
		for _, s := range weekShifts {
			required += s.Headcount
		}

		start := time.Now()
		result, usedFallback, err := o.solveWeek(ctx, spec.ScheduleID, wk, problem)
		if err != nil {
			sched.Status = model.ScheduleInfeasible
			return nil, err
		}
		degraded = degraded || result.suboptimal || usedFallback
		if usedFallback {
			fallbackWeeks = append(fallbackWeeks, wk)
		}

		weekAssignments, weekMetrics, weekDiags := assemble.Build(spec.ScheduleID, problem, result.pairs, result.violations, result.unfilled)
		assignments = append(assignments, weekAssignments...)
		diagnostics = append(diagnostics, weekDiags...)
		for _, pr := range result.pairs {
			emp := problem.Employees[pr.Emp]
			sh := problem.Shifts[pr.Shift]
			hoursByEmp[emp.ID] += sh.Hours()
			totalCost += sh.Hours() * emp.HourlyRate
		}
		boundary = carryBoundary(problem, result.pairs)

		gen.weekDone()
		o.publish(events.WeekSolved{ScheduleID: spec.ScheduleID, Week: wk, Status: result.status, Fallback: usedFallback})
		o.record(metrics.SolveRecord{
			ScheduleID: spec.ScheduleID,
			Week:       wk,
			Status:     result.status,
			Fallback:   usedFallback,
			Duration:   time.Since(start),
			Variables:  problem.Variables(),
			Metrics:    weekMetrics,
			SolvedAt:   start,
		})
	}

	gen.set(StateMerging)
	fillRate := 1.0
	if required > 0 {
		fillRate = float64(len(assignments)) / float64(required)
	}
	sched.Assignments = assignments
	sched.Diagnostics = diagnostics
	sched.Metrics = model.Metrics{
		FillRate:      fillRate,
		FairnessScore: rosterStdDev(snap.employees, hoursByEmp),
		TotalCost:     totalCost,
	}
	sched.Fingerprint = print
	if err := sched.Transition(model.ScheduleSolved); err != nil {
		return nil, err
	}

	o.mu.Lock()
	o.completed[spec.ScheduleID] = sched
	o.mu.Unlock()

	o.publish(events.GenerationCompleted{ScheduleID: spec.ScheduleID, Metrics: sched.Metrics, Degraded: degraded})
	o.log.Infof("schedule %s generated: %d assignments, fill %.0f%%, %d fallback week(s)",
		spec.ScheduleID, len(assignments), sched.Metrics.FillRate*100, len(fallbackWeeks))
	return &GenerateResult{
		Status:        StateComplete,
		Schedule:      sched,
		Degraded:      degraded,
		FallbackWeeks: fallbackWeeks,
	}, nil
}

// weekOutcome normalizes solver and heuristic results for merging.
type weekOutcome struct {
	pairs      []compiler.Pair
	violations []solver.Violation
	unfilled   []heuristic.Unfilled
	status     string
	suboptimal bool
}

// solveWeek offloads one CPU-bound solve to the bounded pool and degrades to
// the heuristic on capacity rejection or timeout without a solution.
// Infeasibility is surfaced with its relaxation trace, not swallowed.
func (o *Orchestrator) solveWeek(ctx context.Context, scheduleID string, week int, p *compiler.Problem) (*weekOutcome, bool, error) {
	select {
	case o.pool <- struct{}{}:
	case <-ctx.Done():
		return nil, false, &model.CancelledError{ScheduleID: scheduleID, WeeksCompleted: week}
	}

	type solveReply struct {
		res *solver.Result
		err error
	}
	done := make(chan solveReply, 1)
	go func() {
		defer func() { <-o.pool }()
		res, err := o.solver.Solve(ctx, p)
		done <- solveReply{res: res, err: err}
	}()
	reply := <-done

	if reply.err != nil {
		var capacity *model.CapacityExceededError
		if errors.As(reply.err, &capacity) {
			o.log.Warnf("week %d exceeds solver capacity (%d variables), using fallback", week, capacity.Variables)
			return o.runFallback(scheduleID, week, p, "capacity"), true, nil
		}
		return nil, false, reply.err
	}

	switch reply.res.Status {
	case solver.StatusTimeout:
		o.log.Warnf("week %d solver timed out with no solution, using fallback", week)
		return o.runFallback(scheduleID, week, p, "timeout"), true, nil
	case solver.StatusOptimal, solver.StatusFeasible:
		return &weekOutcome{
			pairs:      reply.res.Pairs,
			violations: reply.res.Violations,
			status:     string(reply.res.Status),
			suboptimal: reply.res.Suboptimal,
		}, false, nil
	default:
		return nil, false, fmt.Errorf("solver returned unexpected status %s", reply.res.Status)
	}
}

func (o *Orchestrator) runFallback(scheduleID string, week int, p *compiler.Problem, reason string) *weekOutcome {
	fallbackTotal.WithLabelValues(reason).Inc()
	o.publish(events.FallbackUsed{ScheduleID: scheduleID, Week: week, Reason: reason})
	res := o.fallback.Schedule(p)
	return &weekOutcome{
		pairs:    res.Pairs,
		unfilled: res.Unfilled,
		status:   "FALLBACK",
	}
}

func (o *Orchestrator) publish(e eventbus.Event) {
	if o.bus != nil {
		o.bus.Publish(e)
	}
}

func (o *Orchestrator) record(rec metrics.SolveRecord) {
	if err := o.sink.RecordSolve([]metrics.SolveRecord{rec}); err != nil {
		o.log.Errorf("metrics sink: %v", err)
	}
}

// rosterStdDev computes the fairness score over the whole roster, counting
// employees with no assignments at zero hours.
func rosterStdDev(employees []model.Employee, hoursByEmp map[string]float64) float64 {
	if len(employees) < 2 {
		return 0
	}
	hours := make([]float64, len(employees))
	for i, e := range employees {
		hours[i] = hoursByEmp[e.ID]
	}
	return stat.StdDev(hours, nil)
}
