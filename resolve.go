package impact

import (
	"fmt"
	"math/rand"

	"go.uber.org/zap"
)

// minImpactSpeed is the approach speed below which a collision is considered
// already resolved and receives no further impulse.
const minImpactSpeed = 1e-10

// Applier computes and applies the impulse for one collision, using the
// collision's cached relative velocity, and returns the applied magnitude.
// Body velocities change as a side effect; the collision's own cache is only
// refreshed when the resolver calls Update between applications.
type Applier func(c Collision) (float64, error)

// Grouped is implemented by collisions that know which other collisions they
// share a body with. The grouped-lastpass policy clusters connected events;
// collisions without this capability each form their own group.
type Grouped interface {
	ConnectedTo(other Collision) bool
}

// Resolver drives the resolution of a batch of collisions under a handling
// policy. The order ambiguous events are processed in is decided by a seeded
// RNG, so a run is exactly reproducible given the same seed and inputs.
type Resolver struct {
	Handling          Handling
	JointSmallImpacts bool
	VelocityTol       float64

	rng *rand.Rand
	log *zap.Logger
}

// NewResolver creates a resolver with the given RNG seed and serial handling.
func NewResolver(seed int64) *Resolver {
	return &Resolver{
		Handling:    HandlingSerial,
		VelocityTol: 0.05,
		rng:         rand.New(rand.NewSource(seed)),
		log:         zap.NewNop(),
	}
}

// SetSeed re-seeds the tie-breaking RNG.
func (r *Resolver) SetSeed(seed int64) { r.rng = rand.New(rand.NewSource(seed)) }

// SetLogger installs a logger for resolution diagnostics.
func (r *Resolver) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	r.log = log
}

// Resolve applies impulses to the collisions flagged as needing handling,
// following the configured policy. It reports whether any impulse was
// applied. Counters: one impulse total per application, one collision total
// per distinct event that received at least one impulse.
func (r *Resolver) Resolve(collisions []Collision, time float64, apply Applier, totals *Totals) (bool, error) {
	candidates := make([]Collision, 0, len(collisions))
	for _, c := range collisions {
		if !c.NeedsHandling() {
			continue
		}
		if c.Bilateral() && !r.JointSmallImpacts && abs(c.Velocity()) < r.VelocityTol {
			// Sub-threshold joint impacts cause jitter, not motion.
			continue
		}
		candidates = append(candidates, c)
	}
	if len(candidates) == 0 {
		return false, nil
	}
	r.log.Debug("resolving collisions",
		zap.Int("candidates", len(candidates)),
		zap.Stringer("policy", r.Handling),
		zap.Float64("time", time))

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	r.rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	applied := make([]bool, len(candidates))
	switch r.Handling {
	case HandlingSimultaneous:
		return r.simultaneous(candidates, order, time, apply, totals, applied, minImpactSpeed)
	case HandlingSerialGroupedLastPass:
		return r.groupedLastPass(candidates, order, time, apply, totals)
	default:
		return r.serial(candidates, order, time, apply, totals, applied)
	}
}

func (r *Resolver) serial(candidates []Collision, order []int, time float64, apply Applier, totals *Totals, applied []bool) (bool, error) {
	handled := false
	maxPasses := 6*len(candidates) + 6

	for pass := 0; pass < maxPasses; pass++ {
		hit := -1
		for _, i := range order {
			if candidates[i].Velocity() < -minImpactSpeed {
				hit = i
				break
			}
		}
		if hit < 0 {
			return handled, nil
		}
		if _, err := apply(candidates[hit]); err != nil {
			return handled, err
		}
		totals.AddImpulses(1)
		if !applied[hit] {
			applied[hit] = true
			totals.AddCollisions(1)
		}
		handled = true
		for _, c := range candidates {
			c.Update(time)
		}
	}
	return handled, fmt.Errorf("collisions still approaching after %d serial passes: %w",
		maxPasses, ErrSearchNonConvergence)
}

// simultaneous applies one impulse to every candidate approaching faster than
// minSpeed, from the velocities cached before the pass started. The grouped
// last pass calls it with minSpeed zero so residual approach velocities below
// the serial threshold still get their impulse.
func (r *Resolver) simultaneous(candidates []Collision, order []int, time float64, apply Applier, totals *Totals, applied []bool, minSpeed float64) (bool, error) {
	handled := false
	for _, i := range order {
		c := candidates[i]
		if c.Velocity() >= -minSpeed {
			continue
		}
		if _, err := apply(c); err != nil {
			return handled, err
		}
		totals.AddImpulses(1)
		if !applied[i] {
			applied[i] = true
			totals.AddCollisions(1)
		}
		handled = true
	}
	if handled {
		for _, c := range candidates {
			c.Update(time)
		}
	}
	return handled, nil
}

// groupedLastPass clusters candidates that share a body, resolves each group
// serially, then makes one final simultaneous pass over the group so resting
// stacks and joints end up with a consistent impulse set.
func (r *Resolver) groupedLastPass(candidates []Collision, order []int, time float64, apply Applier, totals *Totals) (bool, error) {
	group := make([]int, len(candidates))
	for i := range group {
		group[i] = i
	}
	var find func(i int) int
	find = func(i int) int {
		if group[i] != i {
			group[i] = find(group[i])
		}
		return group[i]
	}
	for i, a := range candidates {
		ga, ok := a.(Grouped)
		if !ok {
			continue
		}
		for j := i + 1; j < len(candidates); j++ {
			if ga.ConnectedTo(candidates[j]) {
				group[find(i)] = find(j)
			}
		}
	}

	groups := make(map[int][]int)
	for _, i := range order {
		root := find(i)
		groups[root] = append(groups[root], i)
	}
	roots := make([]int, 0, len(groups))
	for _, i := range order {
		if find(i) == i {
			roots = append(roots, i)
		}
	}

	handled := false
	for _, root := range roots {
		members := groups[root]
		sub := make([]Collision, len(members))
		subOrder := make([]int, len(members))
		subApplied := make([]bool, len(members))
		for k, i := range members {
			sub[k] = candidates[i]
			subOrder[k] = k
		}
		ok, err := r.serial(sub, subOrder, time, apply, totals, subApplied)
		handled = handled || ok
		if err != nil {
			return handled, err
		}
		// Last pass: the serial sweep stops at -minImpactSpeed, so events in
		// the group may still carry a residual approach velocity. One final
		// simultaneous sweep with a zero threshold clears those together.
		ok, err = r.simultaneous(sub, subOrder, time, apply, totals, subApplied, 0)
		handled = handled || ok
		if err != nil {
			return handled, err
		}
	}
	return handled, nil
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
