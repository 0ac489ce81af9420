// Package impact implements the collision advance engine: it drives a
// collidable system forward in time through a pluggable ODE solver, detects
// collision and contact events that occur inside a step, backs the state up
// to the moment just before an interpenetrating configuration, resolves the
// events by applying impulses, and resumes integration.
package impact

import "github.com/myphysicslab/impact/state"

// Collision is one detected or candidate collision/contact event between two
// bodies. Implementations are created fresh on each detection pass and are
// ephemeral: they cache distance and velocity for the time they were last
// updated at, and never mutate the bodies themselves.
type Collision interface {
	// Update recomputes the cached distance and velocity from the current
	// body positions and velocities at the given time. Idempotent; has no
	// side effect beyond the collision's own cached fields.
	Update(time float64)

	// Distance is the separation between the bodies. Negative means
	// interpenetration.
	Distance() float64

	// Velocity is the relative normal velocity: negative when approaching,
	// positive when separating.
	Velocity() float64

	// DetectedTime is the simulation time this event was found at.
	DetectedTime() float64

	// EstimatedTime predicts when the collision will actually occur.
	// NaN when no estimate is available.
	EstimatedTime() float64

	// Impulse is the magnitude applied during resolution. NaN until the
	// event has been handled.
	Impulse() float64

	// Bilateral reports whether this is a joint or rope under tension that
	// can both push and pull, as opposed to a one-sided contact.
	Bilateral() bool

	// Contact reports a stable resting contact: touching, with relative
	// normal velocity inside the velocity tolerance.
	Contact() bool

	// IsColliding reports whether the bodies currently interpenetrate.
	IsColliding() bool

	// IsTouching reports whether the bodies are within the contact
	// tolerance of each other.
	IsTouching() bool

	// IllegalState reports a distance that violates physical validity.
	// It may only ever be true transiently inside one Advance call.
	IllegalState() bool

	// CloseEnough reports whether the separation is near enough to the
	// target half-gap for the event to be handled now. With allowTiny,
	// small positive separations below the target are also accepted; this
	// is the escape hatch for events that cannot reach the target band.
	CloseEnough(allowTiny bool) bool

	// NeedsHandling is a sticky flag: set once a backup has been performed
	// for this event, it stays set even if a later distance re-check no
	// longer reports interpenetration.
	NeedsHandling() bool
	SetNeedsHandling(bool)

	// Same reports whether other refers to the same physical contact point,
	// so sticky flags survive a detection pass replacing the working set.
	Same(other Collision) bool
}

// CollidableSystem is the simulation the advance engine drives. It owns the
// state vector, knows its derivative, and knows how to find and resolve its
// own collisions.
type CollidableSystem interface {
	// Vars returns the state vector. The engine snapshots and restores its
	// values during the collision time search.
	Vars() *state.Vector

	// Evaluate computes derivatives at the candidate state y; see ode.System.
	Evaluate(y, dydt []float64, h float64) error

	// ModifyObjects synchronizes derived quantities (body caches, energy
	// variables) after the state vector changed under the system.
	ModifyObjects()

	// FindCollisions returns the collision events present in vars, looking
	// ahead by stepSize for events about to occur. Each returned collision
	// is already updated to the current time.
	FindCollisions(vars *state.Vector, stepSize float64) ([]Collision, error)

	// HandleCollisions applies impulses resolving the collisions that need
	// handling, incrementing the impulse and collision totals. It reports
	// whether anything was actually applied.
	HandleCollisions(collisions []Collision, totals *Totals) (bool, error)
}

// Tuner is implemented by systems that share tuning knobs with the advance
// engine. The engine forwards its setter calls so that both sides classify
// contacts with the same tolerances and policies.
type Tuner interface {
	SetDistanceTol(tol float64)
	SetVelocityTol(tol float64)
	SetCollisionAccuracy(accuracy float64)
	SetExtraAccel(policy ExtraAccel)
	SetCollisionHandling(policy Handling)
	SetJointSmallImpacts(enabled bool)
}

func containsSame(set []Collision, c Collision) bool {
	for _, other := range set {
		if c.Same(other) {
			return true
		}
	}
	return false
}
