// Package state holds the ordered vector of scalar variables a simulation
// integrates over: positions, velocities, time and derived energy terms.
// Index meaning is assigned by the owning system; the vector itself only
// tracks values and per-variable discontinuity sequence numbers.
package state

import "fmt"

// Vector is an ordered, mutable sequence of float64 variables.
//
// Each variable carries a sequence number that increments whenever the value
// changes non-continuously (for instance after an impulse). Observers compare
// sequence numbers between reads to detect jumps they must not interpolate
// across.
type Vector struct {
	names   []string
	values  []float64
	seqs    []uint32
	timeIdx int
}

// NewVector creates a vector with one variable per name, all values zero.
// timeIdx designates which variable holds the simulation time.
func NewVector(names []string, timeIdx int) *Vector {
	if timeIdx < 0 || timeIdx >= len(names) {
		panic(fmt.Sprintf("state: time index %d out of range for %d variables", timeIdx, len(names)))
	}
	v := &Vector{
		names:   make([]string, len(names)),
		values:  make([]float64, len(names)),
		seqs:    make([]uint32, len(names)),
		timeIdx: timeIdx,
	}
	copy(v.names, names)
	return v
}

// Len returns the number of variables.
func (v *Vector) Len() int { return len(v.values) }

// Name returns the name of variable i.
func (v *Vector) Name(i int) string { return v.names[i] }

// TimeIndex returns the index of the time variable.
func (v *Vector) TimeIndex() int { return v.timeIdx }

// Value returns the current value of variable i.
func (v *Vector) Value(i int) float64 { return v.values[i] }

// SetValue sets variable i to val as a continuous change.
func (v *Vector) SetValue(i int, val float64) { v.values[i] = val }

// SetValueJump sets variable i to val and increments its sequence number,
// marking the change as discontinuous.
func (v *Vector) SetValueJump(i int, val float64) {
	v.values[i] = val
	v.seqs[i]++
}

// IncrSequence increments the sequence number of the given variables without
// changing their values. Used when a value was mutated in bulk but the jump
// must still be visible to observers.
func (v *Vector) IncrSequence(indices ...int) {
	for _, i := range indices {
		v.seqs[i]++
	}
}

// Sequence returns the discontinuity sequence number of variable i.
func (v *Vector) Sequence(i int) uint32 { return v.seqs[i] }

// Time returns the value of the time variable.
func (v *Vector) Time() float64 { return v.values[v.timeIdx] }

// SetTime sets the time variable as a continuous change.
func (v *Vector) SetTime(t float64) { v.values[v.timeIdx] = t }

// Values returns a copy of all values. The copy is independent of the vector
// and safe to hold as a snapshot while the vector keeps being mutated.
func (v *Vector) Values() []float64 {
	out := make([]float64, len(v.values))
	copy(out, v.values)
	return out
}

// SetValues overwrites all values from vals. When jump is true every sequence
// number is incremented.
func (v *Vector) SetValues(vals []float64, jump bool) {
	if len(vals) != len(v.values) {
		panic(fmt.Sprintf("state: SetValues with %d values, vector has %d", len(vals), len(v.values)))
	}
	copy(v.values, vals)
	if jump {
		for i := range v.seqs {
			v.seqs[i]++
		}
	}
}

// Clone returns a deep copy of the vector, sequence numbers included.
func (v *Vector) Clone() *Vector {
	out := &Vector{
		names:   make([]string, len(v.names)),
		values:  make([]float64, len(v.values)),
		seqs:    make([]uint32, len(v.seqs)),
		timeIdx: v.timeIdx,
	}
	copy(out.names, v.names)
	copy(out.values, v.values)
	copy(out.seqs, v.seqs)
	return out
}
