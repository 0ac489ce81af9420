package ball

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"go.uber.org/zap"

	"github.com/myphysicslab/impact"
	"github.com/myphysicslab/impact/state"
)

// State vector layout: the bookkeeping variables first, then four variables
// per body.
const (
	varTime      = 0
	varKinetic   = 1
	varPotential = 2
	varTotal     = 3
	baseVars     = 4
	varsPerBody  = 4
)

// Rope is a bilateral constraint holding two bodies within a fixed length.
type Rope struct {
	A, B   *Body
	Length float64
}

// Rect is the enclosure rectangle.
type Rect struct {
	XMin, XMax, YMin, YMax float64
}

// Energy is the system's energy accounting at one instant.
type Energy struct {
	Translational float64
	Potential     float64
	Total         float64
}

// System is the ball simulation. It owns the state vector, computes its own
// derivative, finds its collisions and applies its impulses; the impact
// engine drives it through those interfaces.
type System struct {
	vars   *state.Vector
	bodies []*Body
	ropes  []*Rope

	walls    Rect
	hasWalls bool

	gravity    float64 // uniform, pulls toward -y
	mutualG    float64 // pairwise gravitational constant, 0 = off
	damping    float64 // linear velocity damping coefficient
	elasticity float64

	distanceTol float64
	velocityTol float64
	accuracy    float64
	extraAccel  impact.ExtraAccel

	resolver *impact.Resolver
	grid     *Grid
	events   *Events
	log      *zap.Logger
}

// NewSystem creates an empty system: no walls, no gravity, elasticity 1,
// default tolerances matching the engine defaults, RNG seed 0.
func NewSystem() *System {
	s := &System{
		elasticity:  1,
		distanceTol: 0.01,
		velocityTol: 0.05,
		accuracy:    0.6,
		extraAccel:  impact.ExtraAccelVelocity,
		resolver:    impact.NewResolver(0),
		events:      NewEvents(),
		log:         zap.NewNop(),
	}
	s.resolver.VelocityTol = s.velocityTol
	s.rebuildVars()
	return s
}

// AddBody appends a body and grows the state vector. Use math.Inf(1) as the
// mass for an immovable anchor.
func (s *System) AddBody(name string, mass, radius float64, pos, vel mgl64.Vec2) *Body {
	b := &Body{
		Name:   name,
		Mass:   mass,
		Radius: radius,
		Pos:    pos,
		Vel:    vel,
		idx:    len(s.bodies),
	}
	s.bodies = append(s.bodies, b)
	s.rebuildVars()
	base := baseVars + varsPerBody*b.idx
	s.vars.SetValue(base, pos.X())
	s.vars.SetValue(base+1, pos.Y())
	s.vars.SetValue(base+2, vel.X())
	s.vars.SetValue(base+3, vel.Y())
	s.grid = nil
	s.ModifyObjects()
	return b
}

// AddRope connects two bodies with a rope of the given length.
func (s *System) AddRope(a, b *Body, length float64) (*Rope, error) {
	if a == nil || b == nil || a == b {
		return nil, fmt.Errorf("ball: rope needs two distinct bodies")
	}
	if length <= 0 {
		return nil, fmt.Errorf("ball: rope length %v must be positive", length)
	}
	r := &Rope{A: a, B: b, Length: length}
	s.ropes = append(s.ropes, r)
	return r, nil
}

// SetEnclosure installs the rectangular walls bodies collide with.
func (s *System) SetEnclosure(xMin, xMax, yMin, yMax float64) {
	s.walls = Rect{XMin: xMin, XMax: xMax, YMin: yMin, YMax: yMax}
	s.hasWalls = true
}

// SetGravity sets the uniform downward gravitational acceleration.
func (s *System) SetGravity(g float64) { s.gravity = g }

// SetMutualGravity sets the pairwise gravitational constant; 0 disables
// mutual attraction. Immovable bodies sit outside the interaction entirely:
// they neither attract other bodies nor respond to them, and they contribute
// no mutual potential energy.
func (s *System) SetMutualGravity(g float64) { s.mutualG = g }

// SetDamping sets the linear velocity damping coefficient.
func (s *System) SetDamping(d float64) { s.damping = d }

// SetElasticity sets the collision elasticity. Values outside [0,1] are a
// configuration error surfaced when resolution is attempted.
func (s *System) SetElasticity(e float64) { s.elasticity = e }

// SetSeed re-seeds the resolution tie-breaking RNG.
func (s *System) SetSeed(seed int64) { s.resolver.SetSeed(seed) }

// SetLogger installs a logger for contact diagnostics.
func (s *System) SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	s.log = log
	s.resolver.SetLogger(log)
}

// Tuning knobs forwarded by the advance engine.

func (s *System) SetDistanceTol(tol float64) { s.distanceTol = tol }

func (s *System) SetVelocityTol(tol float64) {
	s.velocityTol = tol
	s.resolver.VelocityTol = tol
}

func (s *System) SetCollisionAccuracy(accuracy float64) { s.accuracy = accuracy }

func (s *System) SetExtraAccel(policy impact.ExtraAccel) { s.extraAccel = policy }

func (s *System) SetCollisionHandling(policy impact.Handling) { s.resolver.Handling = policy }

func (s *System) SetJointSmallImpacts(enabled bool) { s.resolver.JointSmallImpacts = enabled }

// Vars returns the state vector.
func (s *System) Vars() *state.Vector { return s.vars }

// Bodies returns the body list in index order.
func (s *System) Bodies() []*Body { return s.bodies }

// Events returns the collision event tracker.
func (s *System) Events() *Events { return s.events }

func (s *System) targetGap() float64 { return s.distanceTol / 2 }

func (s *System) rebuildVars() {
	names := []string{"time", "kinetic energy", "potential energy", "total energy"}
	for _, b := range s.bodies {
		names = append(names, b.Name+".x", b.Name+".y", b.Name+".vx", b.Name+".vy")
	}
	old := s.vars
	s.vars = state.NewVector(names, varTime)
	if old != nil {
		n := min(old.Len(), s.vars.Len())
		for i := 0; i < n; i++ {
			s.vars.SetValue(i, old.Value(i))
		}
	}
}

// RestoreVars replaces the state vector with a previously serialized one,
// for resuming a run between external steps. The vector must have the shape
// the current body list implies.
func (s *System) RestoreVars(vars *state.Vector) error {
	if vars.Len() != baseVars+varsPerBody*len(s.bodies) {
		return fmt.Errorf("ball: restored vector has %d variables, system needs %d",
			vars.Len(), baseVars+varsPerBody*len(s.bodies))
	}
	s.vars = vars
	s.ModifyObjects()
	return nil
}

// Evaluate computes the derivative at the candidate state y. Pure: it reads
// only y and the system's immutable configuration.
func (s *System) Evaluate(y, dydt []float64, h float64) error {
	for i := range dydt {
		dydt[i] = 0
	}
	dydt[varTime] = 1

	n := len(s.bodies)
	ax := make([]float64, n)
	ay := make([]float64, n)

	for i, b := range s.bodies {
		if b.InfiniteMass() {
			continue
		}
		base := baseVars + varsPerBody*i
		vx, vy := y[base+2], y[base+3]
		ax[i] = -s.damping * vx
		ay[i] = -s.gravity - s.damping*vy

		if s.mutualG > 0 {
			px, py := y[base], y[base+1]
			for j, o := range s.bodies {
				if j == i || o.InfiniteMass() {
					continue
				}
				ob := baseVars + varsPerBody*j
				dx, dy := y[ob]-px, y[ob+1]-py
				r2 := dx*dx + dy*dy
				r := math.Sqrt(r2)
				if r < 1e-9 {
					continue
				}
				acc := s.mutualG * o.Mass / r2
				ax[i] += acc * dx / r
				ay[i] += acc * dy / r
			}
		}
	}

	if s.extraAccel != impact.ExtraAccelNone && h > 0 {
		s.contactAccel(y, ax, ay, h)
	}

	for i, b := range s.bodies {
		if b.InfiniteMass() {
			continue
		}
		base := baseVars + varsPerBody*i
		dydt[base] = y[base+2]
		dydt[base+1] = y[base+3]
		dydt[base+2] = ax[i]
		dydt[base+3] = ay[i]
	}
	return nil
}

// contactAccel applies resting-contact stabilization: for a body sitting in
// the contact band of a wall, the wall supplies a normal force cancelling
// the acceleration into it, plus a correction damping the residual normal
// velocity (and steering the gap toward the target half-gap under the
// VELOCITY_AND_DISTANCE policy). Ball-ball resting contacts get the velocity
// correction only.
func (s *System) contactAccel(y, ax, ay []float64, h float64) {
	maxExtra := 2*math.Abs(s.gravity) + 10

	if s.hasWalls {
		for i, b := range s.bodies {
			if b.InfiniteMass() {
				continue
			}
			base := baseVars + varsPerBody*i
			px, py := y[base], y[base+1]
			vx, vy := y[base+2], y[base+3]
			for side := wallLeft; side <= wallTop; side++ {
				var gap float64
				switch side {
				case wallLeft:
					gap = px - b.Radius - s.walls.XMin
				case wallRight:
					gap = s.walls.XMax - px - b.Radius
				case wallBottom:
					gap = py - b.Radius - s.walls.YMin
				case wallTop:
					gap = s.walls.YMax - py - b.Radius
				}
				nrm := side.interiorNormal()
				vn := vx*nrm.X() + vy*nrm.Y()
				if gap <= 0 || gap >= s.distanceTol || math.Abs(vn) > 2*s.velocityTol {
					continue
				}
				an := ax[i]*nrm.X() + ay[i]*nrm.Y()
				if an < 0 {
					ax[i] -= an * nrm.X()
					ay[i] -= an * nrm.Y()
				}
				extra := -vn / (2 * h)
				if s.extraAccel == impact.ExtraAccelVelocityAndDistance {
					extra += (s.targetGap() - gap) / (25 * h * h)
				}
				extra = clamp(extra, maxExtra)
				ax[i] += extra * nrm.X()
				ay[i] += extra * nrm.Y()
			}
		}
	}

	for i := 0; i < len(s.bodies); i++ {
		for j := i + 1; j < len(s.bodies); j++ {
			a, b := s.bodies[i], s.bodies[j]
			if a.InfiniteMass() && b.InfiniteMass() {
				continue
			}
			ab := baseVars + varsPerBody*i
			bb := baseVars + varsPerBody*j
			dx, dy := y[bb]-y[ab], y[bb+1]-y[ab+1]
			dist := math.Hypot(dx, dy)
			if dist < 1e-12 {
				continue
			}
			gap := dist - a.Radius - b.Radius
			nx, ny := dx/dist, dy/dist
			vn := (y[bb+2]-y[ab+2])*nx + (y[bb+3]-y[ab+3])*ny
			if gap <= 0 || gap >= s.distanceTol || math.Abs(vn) > 2*s.velocityTol {
				continue
			}
			extra := clamp(-vn/(2*h), maxExtra)
			if !a.InfiniteMass() {
				ax[i] -= extra / 2 * nx
				ay[i] -= extra / 2 * ny
			}
			if !b.InfiniteMass() {
				ax[j] += extra / 2 * nx
				ay[j] += extra / 2 * ny
			}
		}
	}
}

// ModifyObjects synchronizes the body caches from the state vector and
// refreshes the energy variables.
func (s *System) ModifyObjects() {
	s.syncBodies()
	e := s.Energy()
	s.vars.SetValue(varKinetic, e.Translational)
	s.vars.SetValue(varPotential, e.Potential)
	s.vars.SetValue(varTotal, e.Total)
}

func (s *System) syncBodies() {
	for i, b := range s.bodies {
		base := baseVars + varsPerBody*i
		b.Pos = mgl64.Vec2{s.vars.Value(base), s.vars.Value(base + 1)}
		b.Vel = mgl64.Vec2{s.vars.Value(base + 2), s.vars.Value(base + 3)}
	}
}

// Energy computes the current energy from the body caches. Immovable bodies
// contribute nothing.
func (s *System) Energy() Energy {
	var ke, pe float64
	for _, b := range s.bodies {
		if b.InfiniteMass() {
			continue
		}
		ke += 0.5 * b.Mass * b.Vel.Dot(b.Vel)
		pe += b.Mass * s.gravity * b.Pos.Y()
	}
	if s.mutualG > 0 {
		for i := 0; i < len(s.bodies); i++ {
			for j := i + 1; j < len(s.bodies); j++ {
				a, b := s.bodies[i], s.bodies[j]
				if a.InfiniteMass() || b.InfiniteMass() {
					continue
				}
				dist := b.Pos.Sub(a.Pos).Len()
				if dist > 1e-12 {
					pe -= s.mutualG * a.Mass * b.Mass / dist
				}
			}
		}
	}
	return Energy{Translational: ke, Potential: pe, Total: ke + pe}
}

func (s *System) wallGap(b *Body, side wallSide) (float64, mgl64.Vec2) {
	n := side.interiorNormal()
	var gap float64
	switch side {
	case wallLeft:
		gap = b.Pos.X() - b.Radius - s.walls.XMin
	case wallRight:
		gap = s.walls.XMax - b.Pos.X() - b.Radius
	case wallBottom:
		gap = b.Pos.Y() - b.Radius - s.walls.YMin
	case wallTop:
		gap = s.walls.YMax - b.Pos.Y() - b.Radius
	}
	return gap, n
}

// FindCollisions returns every contact event within the distance tolerance,
// plus events the next stepSize would carry inside it. Bodies are scanned in
// index order and pairs come pre-sorted from the broad phase, so the result
// order is deterministic.
func (s *System) FindCollisions(vars *state.Vector, stepSize float64) ([]impact.Collision, error) {
	s.syncBodies()
	t := vars.Time()
	var cols []impact.Collision

	near := func(gap, rate float64) bool {
		return gap < s.distanceTol || gap+rate*stepSize < s.distanceTol
	}

	if s.hasWalls {
		for _, b := range s.bodies {
			if b.InfiniteMass() {
				continue
			}
			for side := wallLeft; side <= wallTop; side++ {
				gap, nrm := s.wallGap(b, side)
				if !near(gap, b.Vel.Dot(nrm)) {
					continue
				}
				c := &wallCollision{
					baseCollision: baseCollision{sys: s, detected: t, impulse: math.NaN()},
					body:          b,
					side:          side,
				}
				c.Update(t)
				cols = append(cols, c)
			}
		}
	}

	for _, pr := range s.broadPairs() {
		a, b := s.bodies[pr[0]], s.bodies[pr[1]]
		if a.InfiniteMass() && b.InfiniteMass() {
			continue
		}
		n, dist := pairNormal(a, b)
		gap := dist - a.Radius - b.Radius
		if !near(gap, b.Vel.Sub(a.Vel).Dot(n)) {
			continue
		}
		c := &ballCollision{
			baseCollision: baseCollision{sys: s, detected: t, impulse: math.NaN()},
			a:             a,
			b:             b,
		}
		c.Update(t)
		cols = append(cols, c)
	}

	for _, r := range s.ropes {
		n, dist := pairNormal(r.A, r.B)
		gap := r.Length - dist
		rate := -r.B.Vel.Sub(r.A.Vel).Dot(n)
		if !near(gap, rate) {
			continue
		}
		c := &ropeCollision{
			baseCollision: baseCollision{sys: s, detected: t, impulse: math.NaN()},
			rope:          r,
		}
		c.Update(t)
		cols = append(cols, c)
	}

	s.events.recordTouching(cols)
	return cols, nil
}

// broadPairs returns candidate body pairs, ascending, from the spatial grid.
func (s *System) broadPairs() [][2]int {
	if len(s.bodies) < 2 {
		return nil
	}
	if s.grid == nil {
		cell := 0.0
		for _, b := range s.bodies {
			cell = math.Max(cell, 4*b.Radius)
		}
		if cell <= 0 {
			cell = 1
		}
		s.grid = NewGrid(cell, 4*len(s.bodies))
	}
	s.grid.Clear()
	for i, b := range s.bodies {
		r := b.Radius + s.distanceTol
		s.grid.Insert(i, b.Pos.Sub(mgl64.Vec2{r, r}), b.Pos.Add(mgl64.Vec2{r, r}))
	}
	s.grid.SortCells()
	return s.grid.FindPairs()
}

// HandleCollisions resolves the flagged collisions through the resolver,
// guarding against stale caches first.
func (s *System) HandleCollisions(collisions []impact.Collision, totals *impact.Totals) (bool, error) {
	t := s.vars.Time()
	for _, c := range collisions {
		if sc, ok := c.(interface{ updatedAtTime() float64 }); ok && sc.updatedAtTime() != t {
			s.log.Warn("collision cache stale at resolution, refreshing",
				zap.Float64("time", t),
				zap.Float64("cachedAt", sc.updatedAtTime()))
			c.Update(t)
		}
	}
	handled, err := s.resolver.Resolve(collisions, t, s.applyImpulse, totals)
	if handled {
		s.ModifyObjects()
	}
	return handled, err
}

// applyImpulse resolves one collision from its cached relative velocity.
// Elastic wall bounce: the normal velocity reverses scaled by elasticity.
// Two finite bodies: each velocity reflects about the centre-of-mass
// velocity, scaled by elasticity, which conserves momentum by construction.
// Ropes are inelastic: the impulse cancels the stretch rate, pulling or
// pushing as needed.
func (s *System) applyImpulse(c impact.Collision) (float64, error) {
	if s.elasticity < 0 || s.elasticity > 1 {
		return 0, fmt.Errorf("elasticity %v outside [0,1]: %w", s.elasticity, impact.ErrInvalidResolution)
	}
	switch c := c.(type) {
	case *wallCollision:
		if c.body.InfiniteMass() {
			return 0, fmt.Errorf("wall impact on infinite-mass body %q: %w",
				c.body.Name, impact.ErrInvalidResolution)
		}
		n := c.side.interiorNormal()
		j := -(1 + s.elasticity) * c.velocity * c.body.Mass
		s.kickBody(c.body, n.Mul(j*c.body.invMass()))
		mag := math.Abs(j)
		c.impulse = mag
		c.Update(s.vars.Time())
		s.events.emitImpact(c.body, nil, mag)
		return mag, nil

	case *ballCollision:
		invA, invB := c.a.invMass(), c.b.invMass()
		if invA == 0 && invB == 0 {
			return 0, fmt.Errorf("impact between infinite-mass bodies %q and %q: %w",
				c.a.Name, c.b.Name, impact.ErrInvalidResolution)
		}
		n, _ := pairNormal(c.a, c.b)
		j := -(1 + s.elasticity) * c.velocity / (invA + invB)
		s.kickBody(c.a, n.Mul(-j*invA))
		s.kickBody(c.b, n.Mul(j*invB))
		mag := math.Abs(j)
		c.impulse = mag
		c.Update(s.vars.Time())
		s.events.emitImpact(c.a, c.b, mag)
		return mag, nil

	case *ropeCollision:
		invA, invB := c.rope.A.invMass(), c.rope.B.invMass()
		if invA == 0 && invB == 0 {
			return 0, fmt.Errorf("rope between infinite-mass bodies %q and %q: %w",
				c.rope.A.Name, c.rope.B.Name, impact.ErrInvalidResolution)
		}
		n, _ := pairNormal(c.rope.A, c.rope.B)
		j := -c.velocity / (invA + invB)
		s.kickBody(c.rope.A, n.Mul(j*invA))
		s.kickBody(c.rope.B, n.Mul(-j*invB))
		mag := math.Abs(j)
		c.impulse = mag
		c.Update(s.vars.Time())
		s.events.emitImpact(c.rope.A, c.rope.B, mag)
		return mag, nil
	}
	return 0, fmt.Errorf("unknown collision type %T: %w", c, impact.ErrInvalidResolution)
}

// kickBody applies a velocity jump, bumping the discontinuity sequence
// numbers of the affected velocity and energy variables.
func (s *System) kickBody(b *Body, dv mgl64.Vec2) {
	if b.InfiniteMass() {
		return
	}
	base := baseVars + varsPerBody*b.idx
	s.vars.SetValueJump(base+2, s.vars.Value(base+2)+dv.X())
	s.vars.SetValueJump(base+3, s.vars.Value(base+3)+dv.Y())
	s.vars.IncrSequence(varKinetic, varTotal)
	b.Vel = b.Vel.Add(dv)
}

var (
	_ impact.CollidableSystem = (*System)(nil)
	_ impact.Tuner            = (*System)(nil)
)

func clamp(x, limit float64) float64 {
	if x > limit {
		return limit
	}
	if x < -limit {
		return -limit
	}
	return x
}
