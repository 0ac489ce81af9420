// Package ode provides pluggable step solvers for systems of ordinary
// differential equations expressed over a state.Vector.
//
// Time is an ordinary variable of the system: its derivative is 1, so any
// solver advances it implicitly along with the rest of the state.
package ode

import "github.com/myphysicslab/impact/state"

// System is a set of differential equations over a state vector.
type System interface {
	// Vars returns the state vector the system integrates over. Solvers
	// mutate it in place.
	Vars() *state.Vector

	// Evaluate computes the derivative of each variable at the candidate
	// state y, writing into dydt. h is the step size of the surrounding
	// integration step; systems that apply step-scaled corrections (such as
	// resting-contact stabilization) read it, pure systems ignore it.
	// Evaluate must not mutate the system or the state vector.
	Evaluate(y, dydt []float64, h float64) error
}

// Solver advances a system by one step of size h.
type Solver interface {
	// Name identifies the method, for logs and configuration.
	Name() string

	// Step integrates the system's state vector forward by h in place.
	// On error the state vector is left unchanged.
	Step(sys System, h float64) error
}
