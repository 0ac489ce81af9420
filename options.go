package impact

import "fmt"

// Handling selects how a batch of collisions is resolved.
type Handling int

const (
	// HandlingSerial resolves one collision at a time, re-evaluating the
	// remaining ones after each impulse. Needed when resolving one
	// collision changes the legality of others.
	HandlingSerial Handling = iota

	// HandlingSimultaneous resolves the whole batch from the pre-impulse
	// velocities, applying all impulses at once.
	HandlingSimultaneous

	// HandlingSerialGroupedLastPass groups touching and joint collisions,
	// resolves each group serially, and guarantees a final pass over the
	// group so the applied impulse set is consistent. Required for resting
	// contact stability with joints.
	HandlingSerialGroupedLastPass
)

func (h Handling) String() string {
	switch h {
	case HandlingSerial:
		return "serial"
	case HandlingSimultaneous:
		return "simultaneous"
	case HandlingSerialGroupedLastPass:
		return "serial-grouped-lastpass"
	}
	return fmt.Sprintf("Handling(%d)", int(h))
}

// ParseHandling maps a configuration string to a Handling policy.
func ParseHandling(s string) (Handling, error) {
	switch s {
	case "serial":
		return HandlingSerial, nil
	case "simultaneous":
		return HandlingSimultaneous, nil
	case "serial-grouped-lastpass":
		return HandlingSerialGroupedLastPass, nil
	}
	return 0, fmt.Errorf("impact: unknown collision handling %q", s)
}

// ExtraAccel selects the stabilizing correction resting contacts receive
// beyond pure impulse response, to suppress numerical jitter under a steady
// force.
type ExtraAccel int

const (
	// ExtraAccelNone applies no correction.
	ExtraAccelNone ExtraAccel = iota

	// ExtraAccelVelocity damps the residual normal velocity of a resting
	// contact.
	ExtraAccelVelocity

	// ExtraAccelVelocityAndDistance additionally steers the gap toward the
	// target half-gap.
	ExtraAccelVelocityAndDistance
)

func (e ExtraAccel) String() string {
	switch e {
	case ExtraAccelNone:
		return "none"
	case ExtraAccelVelocity:
		return "velocity"
	case ExtraAccelVelocityAndDistance:
		return "velocity-and-distance"
	}
	return fmt.Sprintf("ExtraAccel(%d)", int(e))
}

// ParseExtraAccel maps a configuration string to an ExtraAccel policy.
func ParseExtraAccel(s string) (ExtraAccel, error) {
	switch s {
	case "none":
		return ExtraAccelNone, nil
	case "velocity":
		return ExtraAccelVelocity, nil
	case "velocity-and-distance":
		return ExtraAccelVelocityAndDistance, nil
	}
	return 0, fmt.Errorf("impact: unknown extra accel policy %q", s)
}
