package impact

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/myphysicslab/impact/ode"
	"github.com/myphysicslab/impact/state"
)

// Advance drives the detect, backup, resolve, resume loop for a collidable
// system: INTEGRATING -> CHECKING -> (clean: DONE) | (illegal: SEARCHING ->
// RESOLVING -> INTEGRATING).
//
// An optimistic trial step is integrated over the full remaining interval.
// If the resulting state contains an interpenetrating collision, the engine
// bisects the step between the last known-good time and the trial time until
// the worst offender sits inside the convergence band just short of contact,
// applies impulses there, and resumes with the remaining time. Offenders that
// already sit inside the band at the trial time are handled without backup.
//
// Advance is not reentrant: one call fully owns the state vector and the
// collision working set until it returns.
type Advance struct {
	sys    CollidableSystem
	solver ode.Solver
	totals *Totals
	stats  Stats

	timeStep          float64
	distanceTol       float64
	velocityTol       float64
	accuracy          float64
	maxSearch         int
	jointSmallImpacts bool
	handling          Handling
	extraAccel        ExtraAccel

	log *zap.Logger
}

// New creates an advance engine for the given system and solver with default
// tuning: timeStep 0.025, distanceTol 0.01, velocityTol 0.05, collision
// accuracy 0.6, serial handling, velocity extra acceleration, a 50-iteration
// search cap, and a no-op logger.
func New(sys CollidableSystem, solver ode.Solver) *Advance {
	a := &Advance{
		sys:        sys,
		solver:     solver,
		totals:     &Totals{},
		timeStep:   0.025,
		maxSearch:  50,
		log:        zap.NewNop(),
		handling:   HandlingSerial,
		extraAccel: ExtraAccelVelocity,
	}
	a.stats.Clear()
	a.SetDistanceTol(0.01)
	a.SetVelocityTol(0.05)
	a.SetCollisionAccuracy(0.6)
	a.SetJointSmallImpacts(false)
	a.SetCollisionHandling(HandlingSerial)
	a.SetExtraAccel(ExtraAccelVelocity)
	return a
}

// SetTimeStep sets the default external step used by AdvanceStep.
func (a *Advance) SetTimeStep(h float64) { a.timeStep = h }

// TimeStep returns the default external step.
func (a *Advance) TimeStep() float64 { return a.timeStep }

// SetDistanceTol sets the distance tolerance and forwards it to the system.
func (a *Advance) SetDistanceTol(tol float64) {
	a.distanceTol = tol
	if t, ok := a.sys.(Tuner); ok {
		t.SetDistanceTol(tol)
	}
}

// SetVelocityTol sets the velocity tolerance and forwards it to the system.
func (a *Advance) SetVelocityTol(tol float64) {
	a.velocityTol = tol
	if t, ok := a.sys.(Tuner); ok {
		t.SetVelocityTol(tol)
	}
}

// SetCollisionAccuracy sets the fraction of the distance tolerance used as
// the bisection convergence band. Must lie in (0, 1]; smaller is more
// accurate but searches longer.
func (a *Advance) SetCollisionAccuracy(accuracy float64) error {
	if accuracy <= 0 || accuracy > 1 {
		return fmt.Errorf("impact: collision accuracy %v outside (0,1]", accuracy)
	}
	a.accuracy = accuracy
	if t, ok := a.sys.(Tuner); ok {
		t.SetCollisionAccuracy(accuracy)
	}
	return nil
}

// SetExtraAccel sets the resting-contact stabilization policy and forwards
// it to the system.
func (a *Advance) SetExtraAccel(policy ExtraAccel) {
	a.extraAccel = policy
	if t, ok := a.sys.(Tuner); ok {
		t.SetExtraAccel(policy)
	}
}

// SetJointSmallImpacts controls whether sub-threshold bilateral impacts are
// applied or ignored; forwarded to the system.
func (a *Advance) SetJointSmallImpacts(enabled bool) {
	a.jointSmallImpacts = enabled
	if t, ok := a.sys.(Tuner); ok {
		t.SetJointSmallImpacts(enabled)
	}
}

// SetCollisionHandling sets the resolution policy and forwards it to the
// system.
func (a *Advance) SetCollisionHandling(policy Handling) {
	a.handling = policy
	if t, ok := a.sys.(Tuner); ok {
		t.SetCollisionHandling(policy)
	}
}

// SetMaxSearchIterations bounds the bisection loop. Exceeding the bound is a
// fatal ErrSearchNonConvergence.
func (a *Advance) SetMaxSearchIterations(n int) { a.maxSearch = n }

// SetLogger installs a logger for waypoint diagnostics.
func (a *Advance) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	a.log = log
}

// Totals returns the run-scoped counters. The same object is mutated by
// every Advance call.
func (a *Advance) Totals() *Totals { return a.totals }

// Stats returns the summary of the most recent detection pass.
func (a *Advance) Stats() Stats { return a.stats }

// Reset zeroes the totals and the last stats summary.
func (a *Advance) Reset() {
	a.totals.Reset()
	a.stats.Clear()
}

// AdvanceStep advances by the configured default time step.
func (a *Advance) AdvanceStep() error { return a.Advance(a.timeStep) }

// Advance evolves the system forward by timeStep, resolving every collision
// event inside the interval. On a fatal error the state vector is left at
// its last fully-validated value and no partial state is committed. The
// returned state never contains a collision penetrating beyond the
// convergence band; a trial step whose offenders all land inside the band is
// committed as-is, with impulses applied there and no backup.
func (a *Advance) Advance(timeStep float64) error {
	if timeStep <= 0 {
		return fmt.Errorf("impact: advance time step %v must be positive", timeStep)
	}
	vars := a.sys.Vars()
	endTime := vars.Time() + timeStep
	tiny := timeStep * 1e-10

	for endTime-vars.Time() > tiny {
		if err := a.singleStep(vars, endTime-vars.Time()); err != nil {
			return &AdvanceError{Time: vars.Time(), Wrapped: err}
		}
	}
	return nil
}

// singleStep commits one integration segment: either the full remaining
// interval when it is collision free, or the backed-up partial segment
// ending just before the first collision, with impulses applied.
func (a *Advance) singleStep(vars *state.Vector, h float64) error {
	t0 := vars.Time()
	good := vars.Values()

	// INTEGRATING: optimistic trial over the whole remaining interval.
	if err := a.integrate(h); err != nil {
		a.restore(vars, good)
		return err
	}

	// CHECKING.
	cols, err := a.detect(h)
	if err != nil {
		a.restore(vars, good)
		return err
	}
	if !anyIllegal(cols) {
		a.totals.AddSteps(1)
		return nil
	}
	preCols := cols
	preIllegal := illegalSubset(cols)
	if allCloseEnough(preIllegal) {
		// Every offender already sits inside the convergence band at the
		// trial state, so there is nothing for a backup to improve: keep the
		// trial state and apply the impulses here.
		markForHandling(cols, preCols, preIllegal)
		if _, err := a.sys.HandleCollisions(cols, a.totals); err != nil {
			a.restore(vars, good)
			return err
		}
		a.sys.ModifyObjects()
		a.totals.AddSteps(1)
		return nil
	}

	// SEARCHING: bisect the step between the known-good time and the trial
	// time until the worst offender is just short of contact.
	a.log.Debug("illegal state in trial step",
		zap.Float64("t", t0),
		zap.Float64("h", h),
		zap.Int("offenders", len(preIllegal)),
		zap.Float64("minDistance", a.stats.MinDistance))

	probe := math.NaN()
	if est := a.stats.EstTime; !math.IsNaN(est) && est > t0 && est < t0+h {
		probe = est - t0
	}

	lo, hi := 0.0, h
	accepted := -1.0
	iters := 0
	for ; iters < a.maxSearch; iters++ {
		a.totals.AddSearches(1)
		mid := (lo + hi) / 2
		if iters == 0 && !math.IsNaN(probe) {
			mid = probe
		}
		if mid <= lo || mid >= hi {
			mid = (lo + hi) / 2
		}

		a.restore(vars, good)
		if err := a.integrate(mid); err != nil {
			a.restore(vars, good)
			return err
		}
		cols, err = a.detect(mid)
		if err != nil {
			a.restore(vars, good)
			return err
		}

		if anyIllegal(cols) {
			hi = mid
			continue
		}
		lo = mid
		allowTiny := hi-lo <= h*1e-7 || iters >= a.maxSearch/2
		if offendersConverged(cols, preIllegal, allowTiny) {
			accepted = mid
			break
		}
	}
	if accepted < 0 {
		a.restore(vars, good)
		return fmt.Errorf("%d search iterations at t=%g: %w", iters, t0, ErrSearchNonConvergence)
	}
	a.totals.AddBackups(1)
	a.log.Debug("backup accepted",
		zap.Float64("t", t0),
		zap.Float64("stepSize", accepted),
		zap.Int("searches", iters+1))

	// RESOLVING: the backup happened, so the offending events must now be
	// handled even if their re-checked distance no longer reports overlap.
	markForHandling(cols, preCols, preIllegal)

	handled, err := a.sys.HandleCollisions(cols, a.totals)
	if err != nil {
		a.restore(vars, good)
		return err
	}
	if !handled && accepted <= h*1e-10 {
		// Nothing was applied and no time passed: the next trial would hit
		// the same illegal state forever.
		a.restore(vars, good)
		return fmt.Errorf("collision handling applied no impulse at t=%g: %w",
			t0, ErrSearchNonConvergence)
	}
	a.sys.ModifyObjects()
	a.totals.AddSteps(1)
	return nil
}

func (a *Advance) integrate(h float64) error {
	if err := a.solver.Step(a.sys, h); err != nil {
		return err
	}
	a.sys.ModifyObjects()
	return nil
}

func (a *Advance) detect(stepSize float64) ([]Collision, error) {
	cols, err := a.sys.FindCollisions(a.sys.Vars(), stepSize)
	if err != nil {
		return nil, err
	}
	if err := a.stats.Update(cols); err != nil {
		return nil, err
	}
	return cols, nil
}

// restore rewinds the state vector to a snapshot. The rewind is internal to
// the search and not observable, so sequence numbers stay untouched.
func (a *Advance) restore(vars *state.Vector, snapshot []float64) {
	vars.SetValues(snapshot, false)
	a.sys.ModifyObjects()
}

func anyIllegal(cols []Collision) bool {
	for _, c := range cols {
		if c.IllegalState() {
			return true
		}
	}
	return false
}

func allCloseEnough(offenders []Collision) bool {
	for _, c := range offenders {
		if !c.CloseEnough(false) {
			return false
		}
	}
	return true
}

// markForHandling flags the events the resolver must act on: everything that
// already needed handling, every original trial-step offender, and any other
// non-contact event approaching inside the tolerant band.
func markForHandling(cols, prior, offenders []Collision) {
	for _, pre := range prior {
		if !pre.NeedsHandling() {
			continue
		}
		for _, c := range cols {
			if c.Same(pre) {
				c.SetNeedsHandling(true)
			}
		}
	}
	for _, c := range cols {
		if containsSame(offenders, c) {
			c.SetNeedsHandling(true)
		} else if !c.Contact() && c.Velocity() < 0 && c.CloseEnough(true) {
			c.SetNeedsHandling(true)
		}
	}
}

func illegalSubset(cols []Collision) []Collision {
	out := make([]Collision, 0, len(cols))
	for _, c := range cols {
		if c.IllegalState() {
			out = append(out, c)
		}
	}
	return out
}

// offendersConverged reports whether every event matching a trial-step
// offender now sits inside the convergence band. An offender that fell out
// of the candidate window entirely is still too far away, so the search must
// keep growing the step.
func offendersConverged(cols, preIllegal []Collision, allowTiny bool) bool {
	matched := false
	for _, c := range cols {
		if !containsSame(preIllegal, c) {
			continue
		}
		matched = true
		if !c.CloseEnough(allowTiny) {
			return false
		}
	}
	if !matched {
		return allowTiny
	}
	return true
}
