package impact

import (
	"math"

	"github.com/myphysicslab/impact/state"
)

// stubCollision is a hand-set collision for exercising the stats and
// resolution logic without any geometry behind it.
type stubCollision struct {
	id        int
	distance  float64
	velocity  float64
	detected  float64
	estimated float64
	impulse   float64
	bilateral bool
	contact   bool
	needs     bool
	close     bool
	group     int
}

func (c *stubCollision) Update(time float64)            {}
func (c *stubCollision) Distance() float64              { return c.distance }
func (c *stubCollision) Velocity() float64              { return c.velocity }
func (c *stubCollision) DetectedTime() float64          { return c.detected }
func (c *stubCollision) EstimatedTime() float64         { return c.estimated }
func (c *stubCollision) Impulse() float64               { return c.impulse }
func (c *stubCollision) Bilateral() bool                { return c.bilateral }
func (c *stubCollision) Contact() bool                  { return c.contact }
func (c *stubCollision) IsColliding() bool              { return c.distance < 0 }
func (c *stubCollision) IsTouching() bool               { return c.distance <= 0.01 }
func (c *stubCollision) IllegalState() bool             { return c.distance < 0 }
func (c *stubCollision) CloseEnough(allowTiny bool) bool { return c.close }
func (c *stubCollision) NeedsHandling() bool            { return c.needs }
func (c *stubCollision) SetNeedsHandling(needs bool)    { c.needs = needs }

func (c *stubCollision) Same(other Collision) bool {
	o, ok := other.(*stubCollision)
	return ok && o.id == c.id
}

func (c *stubCollision) ConnectedTo(other Collision) bool {
	o, ok := other.(*stubCollision)
	return ok && o.group == c.group
}

// floorSystem is a one-dimensional test system: a point particle at height y
// falling under gravity toward a floor at zero. Bounces reverse the velocity
// scaled by the elasticity. Hooks let tests inject detection failures and
// broken distances.
type floorSystem struct {
	vars       *state.Vector
	gravity    float64
	elasticity float64

	distanceTol float64
	velocityTol float64
	accuracy    float64

	findErr       error
	badDistance   bool
	alwaysIllegal bool
}

func newFloorSystem(y, vy float64) *floorSystem {
	s := &floorSystem{
		gravity:     10,
		elasticity:  0.8,
		distanceTol: 0.01,
		velocityTol: 0.05,
		accuracy:    0.6,
	}
	s.vars = state.NewVector([]string{"time", "y", "vy"}, 0)
	s.vars.SetValue(1, y)
	s.vars.SetValue(2, vy)
	return s
}

func (s *floorSystem) Vars() *state.Vector { return s.vars }

func (s *floorSystem) Evaluate(y, dydt []float64, h float64) error {
	dydt[0] = 1
	dydt[1] = y[2]
	dydt[2] = -s.gravity
	return nil
}

func (s *floorSystem) ModifyObjects() {}

func (s *floorSystem) FindCollisions(vars *state.Vector, stepSize float64) ([]Collision, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	y := vars.Value(1)
	vy := vars.Value(2)
	if s.alwaysIllegal || y < s.distanceTol || y+vy*stepSize < s.distanceTol {
		c := &floorCollision{sys: s, detected: vars.Time(), impulse: math.NaN()}
		c.Update(vars.Time())
		return []Collision{c}, nil
	}
	return nil, nil
}

func (s *floorSystem) HandleCollisions(collisions []Collision, totals *Totals) (bool, error) {
	handled := false
	for _, c := range collisions {
		if !c.NeedsHandling() || c.Velocity() >= 0 {
			continue
		}
		vy := s.vars.Value(2)
		s.vars.SetValueJump(2, -s.elasticity*vy)
		fc := c.(*floorCollision)
		fc.impulse = math.Abs((1 + s.elasticity) * vy)
		c.Update(s.vars.Time())
		totals.AddImpulses(1)
		totals.AddCollisions(1)
		handled = true
	}
	return handled, nil
}

type floorCollision struct {
	sys       *floorSystem
	distance  float64
	velocity  float64
	detected  float64
	estimated float64
	impulse   float64
	needs     bool
}

func (c *floorCollision) Update(time float64) {
	c.distance = c.sys.vars.Value(1)
	if c.sys.badDistance {
		c.distance = math.NaN()
	}
	if c.sys.alwaysIllegal {
		c.distance = -1
	}
	c.velocity = c.sys.vars.Value(2)
	target := c.sys.distanceTol / 2
	if c.velocity < -1e-12 {
		c.estimated = time + (c.distance-target)/(-c.velocity)
	} else {
		c.estimated = math.NaN()
	}
}

func (c *floorCollision) Distance() float64      { return c.distance }
func (c *floorCollision) Velocity() float64      { return c.velocity }
func (c *floorCollision) DetectedTime() float64  { return c.detected }
func (c *floorCollision) EstimatedTime() float64 { return c.estimated }
func (c *floorCollision) Impulse() float64       { return c.impulse }
func (c *floorCollision) Bilateral() bool        { return false }
func (c *floorCollision) IsColliding() bool      { return c.distance < 0 }
func (c *floorCollision) IsTouching() bool       { return c.distance <= c.sys.distanceTol }
func (c *floorCollision) IllegalState() bool     { return c.distance < 0 }

func (c *floorCollision) Contact() bool {
	return c.IsTouching() && !c.IsColliding() && math.Abs(c.velocity) <= c.sys.velocityTol
}

func (c *floorCollision) CloseEnough(allowTiny bool) bool {
	target := c.sys.distanceTol / 2
	band := c.sys.distanceTol * c.sys.accuracy
	if c.distance >= target-band && c.distance <= target+band {
		return true
	}
	return allowTiny && c.distance > 0 && c.distance < target
}

func (c *floorCollision) NeedsHandling() bool         { return c.needs }
func (c *floorCollision) SetNeedsHandling(needs bool) { c.needs = needs }

func (c *floorCollision) Same(other Collision) bool {
	o, ok := other.(*floorCollision)
	return ok && o.sys == c.sys
}
