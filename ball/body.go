// Package ball is a concrete collidable system: circular bodies moving in a
// plane inside an optional rectangular enclosure, under uniform gravity,
// optional mutual gravitation and linear damping, connected by optional
// ropes. It implements the contracts the impact engine consumes and is the
// reference system exercised by the tests and the demo.
package ball

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Body is one circular body. Position and velocity live in the system's
// state vector; the fields here are caches synchronized by ModifyObjects.
type Body struct {
	Name   string
	Mass   float64 // math.Inf(1) marks an immovable body
	Radius float64

	Pos mgl64.Vec2
	Vel mgl64.Vec2

	idx int
}

// InfiniteMass reports whether the body is immovable.
func (b *Body) InfiniteMass() bool { return math.IsInf(b.Mass, 1) }

// invMass is zero for immovable bodies.
func (b *Body) invMass() float64 {
	if b.InfiniteMass() {
		return 0
	}
	return 1 / b.Mass
}

// Index is the body's position in the system's body list.
func (b *Body) Index() int { return b.idx }
