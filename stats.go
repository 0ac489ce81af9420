package impact

import (
	"fmt"
	"math"
)

// Stats summarizes one detection pass over the current collision set. It is
// recomputed from scratch on every pass and carries no state between calls.
//
// A collision is imminent when it either needs handling or is not a resting
// contact, and its relative normal velocity is negative. Separating resting
// contacts are deliberately excluded so they never drive a backup decision.
type Stats struct {
	NumCollisions    int
	NumJoints        int
	NumContacts      int
	NumNonContact    int
	NumNeedsHandling int
	NumImminent      int

	// MinDistance is the smallest separation among imminent collisions.
	// NaN when no collision is imminent.
	MinDistance float64

	// EstTime is the earliest estimated collision time among imminent
	// collisions. If any imminent collision reports no estimate, EstTime is
	// NaN: an unknown estimate poisons the whole-step estimate.
	EstTime float64

	// DetectedTime is the earliest detected time among collisions that need
	// handling. NaN when none do.
	DetectedTime float64
}

// Clear resets all fields to their empty values.
func (s *Stats) Clear() {
	*s = Stats{
		MinDistance:  math.NaN(),
		EstTime:      math.NaN(),
		DetectedTime: math.NaN(),
	}
}

// Update recomputes the summary from the given collision set. The result is
// independent of the order of the input. A non-finite distance on any
// imminent collision is a fatal error.
func (s *Stats) Update(collisions []Collision) error {
	s.Clear()
	s.NumCollisions = len(collisions)

	minDist := math.Inf(1)
	estTime := math.Inf(1)
	detected := math.Inf(1)
	estPoisoned := false
	anyImminent := false

	for _, c := range collisions {
		if c.Bilateral() {
			s.NumJoints++
		}
		if c.Contact() {
			s.NumContacts++
		} else {
			s.NumNonContact++
		}
		if c.NeedsHandling() {
			s.NumNeedsHandling++
			if dt := c.DetectedTime(); dt < detected {
				detected = dt
			}
		}

		if !(c.NeedsHandling() || !c.Contact()) || c.Velocity() >= 0 {
			continue
		}
		// Imminent from here on.
		anyImminent = true
		s.NumImminent++

		d := c.Distance()
		if math.IsNaN(d) || math.IsInf(d, 0) {
			return fmt.Errorf("distance %v on imminent collision: %w", d, ErrNonFiniteDistance)
		}
		if d < minDist {
			minDist = d
		}

		et := c.EstimatedTime()
		if math.IsNaN(et) {
			estPoisoned = true
		} else if et < estTime {
			estTime = et
		}
	}

	if anyImminent {
		s.MinDistance = minDist
		if !estPoisoned {
			s.EstTime = estTime
		}
	}
	if s.NumNeedsHandling > 0 {
		s.DetectedTime = detected
	}
	return nil
}
