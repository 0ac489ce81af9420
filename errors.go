package impact

import (
	"errors"
	"fmt"
)

// Fatal conditions of the advance loop. All of them unwind out of Advance
// with the state vector restored to its last fully-validated value.
var (
	// ErrNonFiniteDistance indicates a collision reported a NaN or infinite
	// distance: the physical meaning is undefined, the step must abort.
	ErrNonFiniteDistance = errors.New("impact: non-finite collision distance")

	// ErrSearchNonConvergence indicates the collision time search exceeded
	// its iteration bound without reaching an acceptable separation.
	// Accepting the step anyway would commit an interpenetrating state.
	ErrSearchNonConvergence = errors.New("impact: collision time search did not converge")

	// ErrInvalidResolution indicates resolution was attempted on a pair
	// with no finite-mass body, or with an elasticity outside [0,1].
	// This is a configuration bug, not a numerical accident.
	ErrInvalidResolution = errors.New("impact: invalid collision resolution")
)

// AdvanceError wraps a fatal advance failure with the simulation time it
// occurred at.
type AdvanceError struct {
	Time    float64
	Wrapped error
}

func (e *AdvanceError) Error() string {
	return fmt.Sprintf("advance at t=%g: %v", e.Time, e.Wrapped)
}

func (e *AdvanceError) Unwrap() error { return e.Wrapped }
