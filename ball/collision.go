package ball

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/myphysicslab/impact"
)

// baseCollision carries the cached fields and tolerance-driven predicates
// shared by every collision variant in this package. Distance and velocity
// are only valid for the time Update was last called at.
type baseCollision struct {
	sys *System

	distance  float64
	velocity  float64 // gap rate: negative when the gap is shrinking
	detected  float64
	estimated float64
	impulse   float64
	updatedAt float64
	needs     bool
}

func (c *baseCollision) Distance() float64      { return c.distance }
func (c *baseCollision) Velocity() float64      { return c.velocity }
func (c *baseCollision) DetectedTime() float64  { return c.detected }
func (c *baseCollision) EstimatedTime() float64 { return c.estimated }
func (c *baseCollision) Impulse() float64       { return c.impulse }
func (c *baseCollision) NeedsHandling() bool    { return c.needs }

func (c *baseCollision) SetNeedsHandling(needs bool) {
	// Sticky in practice: callers only set it true after a backup.
	c.needs = needs
}

func (c *baseCollision) IsColliding() bool { return c.distance < 0 }

func (c *baseCollision) IsTouching() bool { return c.distance <= c.sys.distanceTol }

func (c *baseCollision) Contact() bool {
	return c.IsTouching() && !c.IsColliding() && math.Abs(c.velocity) <= c.sys.velocityTol
}

func (c *baseCollision) IllegalState() bool { return c.distance < 0 }

// CloseEnough reports whether the gap sits in the convergence band around
// the target half-gap. With allowTiny any positive gap below the target is
// also accepted, for events that approach too slowly to ever land in the
// band.
func (c *baseCollision) CloseEnough(allowTiny bool) bool {
	target := c.sys.targetGap()
	band := c.sys.distanceTol * c.sys.accuracy
	if c.distance >= target-band && c.distance <= target+band {
		return true
	}
	return allowTiny && c.distance > 0 && c.distance < target
}

// refresh recomputes the estimated collision time after distance and
// velocity were updated. For a penetrating pair the gap crossed the target
// before now, so the estimate points into the past; the backup search uses
// that as its first probe.
func (c *baseCollision) refresh(time float64) {
	c.updatedAt = time
	if c.velocity < -minGapRate {
		c.estimated = time + (c.distance-c.sys.targetGap())/(-c.velocity)
	} else {
		c.estimated = math.NaN()
	}
}

// updatedAtTime exposes the cache timestamp so the system can guard against
// resolving from stale fields.
func (c *baseCollision) updatedAtTime() float64 { return c.updatedAt }

const minGapRate = 1e-12

// wallSide identifies one wall of the enclosure.
type wallSide int

const (
	wallLeft wallSide = iota
	wallRight
	wallBottom
	wallTop
)

func (w wallSide) String() string {
	switch w {
	case wallLeft:
		return "left"
	case wallRight:
		return "right"
	case wallBottom:
		return "bottom"
	case wallTop:
		return "top"
	}
	return "wall?"
}

// interiorNormal points from the wall into the enclosure.
func (w wallSide) interiorNormal() mgl64.Vec2 {
	switch w {
	case wallLeft:
		return mgl64.Vec2{1, 0}
	case wallRight:
		return mgl64.Vec2{-1, 0}
	case wallBottom:
		return mgl64.Vec2{0, 1}
	default:
		return mgl64.Vec2{0, -1}
	}
}

// wallCollision is a one-sided contact between a body and an enclosure wall.
type wallCollision struct {
	baseCollision
	body *Body
	side wallSide
}

func (c *wallCollision) Bilateral() bool { return false }

func (c *wallCollision) Update(time float64) {
	gap, n := c.sys.wallGap(c.body, c.side)
	c.distance = gap
	c.velocity = c.body.Vel.Dot(n)
	c.refresh(time)
}

func (c *wallCollision) Same(other impact.Collision) bool {
	o, ok := other.(*wallCollision)
	return ok && o.body == c.body && o.side == c.side
}

func (c *wallCollision) ConnectedTo(other impact.Collision) bool {
	return sharesBody(c.body, nil, other)
}

// ballCollision is a one-sided contact between two bodies. Constructed with
// a.idx < b.idx so pair identity is unambiguous.
type ballCollision struct {
	baseCollision
	a, b *Body
}

func (c *ballCollision) Bilateral() bool { return false }

func (c *ballCollision) Update(time float64) {
	n, dist := pairNormal(c.a, c.b)
	c.distance = dist - c.a.Radius - c.b.Radius
	c.velocity = c.b.Vel.Sub(c.a.Vel).Dot(n)
	c.refresh(time)
}

func (c *ballCollision) Same(other impact.Collision) bool {
	o, ok := other.(*ballCollision)
	return ok && o.a == c.a && o.b == c.b
}

func (c *ballCollision) ConnectedTo(other impact.Collision) bool {
	return sharesBody(c.a, c.b, other)
}

// ropeCollision is a bilateral constraint: a rope of fixed length between
// two bodies. The gap is the remaining slack; negative means overstretched.
type ropeCollision struct {
	baseCollision
	rope *Rope
}

func (c *ropeCollision) Bilateral() bool { return true }

func (c *ropeCollision) Update(time float64) {
	n, dist := pairNormal(c.rope.A, c.rope.B)
	c.distance = c.rope.Length - dist
	// Slack shrinks as the bodies separate.
	c.velocity = -c.rope.B.Vel.Sub(c.rope.A.Vel).Dot(n)
	c.refresh(time)
}

func (c *ropeCollision) Same(other impact.Collision) bool {
	o, ok := other.(*ropeCollision)
	return ok && o.rope == c.rope
}

func (c *ropeCollision) ConnectedTo(other impact.Collision) bool {
	return sharesBody(c.rope.A, c.rope.B, other)
}

// pairNormal returns the unit vector from a to b and the centre distance.
// Coincident centres fall back to an arbitrary fixed axis so the math stays
// finite.
func pairNormal(a, b *Body) (mgl64.Vec2, float64) {
	d := b.Pos.Sub(a.Pos)
	dist := d.Len()
	if dist < 1e-12 {
		return mgl64.Vec2{1, 0}, dist
	}
	return d.Mul(1 / dist), dist
}

// sharesBody reports whether other involves x or y.
func sharesBody(x, y *Body, other impact.Collision) bool {
	var oa, ob *Body
	switch o := other.(type) {
	case *wallCollision:
		oa = o.body
	case *ballCollision:
		oa, ob = o.a, o.b
	case *ropeCollision:
		oa, ob = o.rope.A, o.rope.B
	default:
		return false
	}
	return (x != nil && (x == oa || x == ob)) || (y != nil && (y == oa || y == ob))
}
