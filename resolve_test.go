package impact

import (
	"errors"
	"testing"
)

// bounceApplier reverses the collision's cached velocity scaled by e and
// records the order collisions were hit in.
func bounceApplier(e float64, order *[]int) Applier {
	return func(c Collision) (float64, error) {
		sc := c.(*stubCollision)
		if order != nil {
			*order = append(*order, sc.id)
		}
		j := -(1 + e) * sc.velocity
		sc.velocity = -e * sc.velocity
		sc.impulse = j
		return j, nil
	}
}

func TestResolveNothingFlagged(t *testing.T) {
	r := NewResolver(1)
	cols := []Collision{
		&stubCollision{id: 1, velocity: -1},
		&stubCollision{id: 2, velocity: -2},
	}
	var tot Totals
	handled, err := r.Resolve(cols, 0, bounceApplier(1, nil), &tot)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if handled {
		t.Error("handled = true with nothing flagged, want false")
	}
	if tot.Impulses() != 0 {
		t.Errorf("Impulses() = %d, want 0", tot.Impulses())
	}
}

func TestResolveSerial(t *testing.T) {
	r := NewResolver(1)
	cols := []Collision{
		&stubCollision{id: 1, velocity: -1, needs: true},
		&stubCollision{id: 2, velocity: -2, needs: true},
		&stubCollision{id: 3, velocity: 0.5, needs: true}, // separating, untouched
	}
	var tot Totals
	handled, err := r.Resolve(cols, 0, bounceApplier(1, nil), &tot)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !handled {
		t.Fatal("handled = false, want true")
	}
	if tot.Impulses() != 2 {
		t.Errorf("Impulses() = %d, want 2", tot.Impulses())
	}
	if tot.Collisions() != 2 {
		t.Errorf("Collisions() = %d, want 2", tot.Collisions())
	}
	for _, c := range cols {
		if c.Velocity() < 0 {
			t.Errorf("collision %d still approaching: velocity %v", c.(*stubCollision).id, c.Velocity())
		}
	}
}

func TestResolveSerialRepeatsOneEvent(t *testing.T) {
	// The applier only nudges the velocity, so one event takes several
	// applications: each counts as an impulse, the event counts once.
	r := NewResolver(1)
	c := &stubCollision{id: 1, velocity: -1, needs: true}
	apply := func(col Collision) (float64, error) {
		sc := col.(*stubCollision)
		sc.velocity += 0.4
		return 0.4, nil
	}
	var tot Totals
	handled, err := r.Resolve([]Collision{c}, 0, apply, &tot)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !handled {
		t.Fatal("handled = false, want true")
	}
	if tot.Impulses() != 3 {
		t.Errorf("Impulses() = %d, want 3", tot.Impulses())
	}
	if tot.Collisions() != 1 {
		t.Errorf("Collisions() = %d, want 1", tot.Collisions())
	}
}

func TestResolveSerialNonConvergence(t *testing.T) {
	r := NewResolver(1)
	c := &stubCollision{id: 1, velocity: -1, needs: true}
	apply := func(col Collision) (float64, error) { return 0, nil } // changes nothing
	var tot Totals
	_, err := r.Resolve([]Collision{c}, 0, apply, &tot)
	if !errors.Is(err, ErrSearchNonConvergence) {
		t.Errorf("Resolve error = %v, want ErrSearchNonConvergence", err)
	}
}

func TestResolveApplierError(t *testing.T) {
	r := NewResolver(1)
	wantErr := errors.New("bad impulse")
	c := &stubCollision{id: 1, velocity: -1, needs: true}
	apply := func(col Collision) (float64, error) { return 0, wantErr }
	var tot Totals
	_, err := r.Resolve([]Collision{c}, 0, apply, &tot)
	if !errors.Is(err, wantErr) {
		t.Errorf("Resolve error = %v, want %v", err, wantErr)
	}
}

func TestResolveSimultaneous(t *testing.T) {
	r := NewResolver(1)
	r.Handling = HandlingSimultaneous
	cols := []Collision{
		&stubCollision{id: 1, velocity: -1, needs: true},
		&stubCollision{id: 2, velocity: -2, needs: true},
	}
	var order []int
	var tot Totals
	handled, err := r.Resolve(cols, 0, bounceApplier(1, &order), &tot)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !handled {
		t.Fatal("handled = false, want true")
	}
	// Single pass: exactly one application per approaching event.
	if len(order) != 2 {
		t.Errorf("applications = %d, want 2", len(order))
	}
	if tot.Impulses() != 2 || tot.Collisions() != 2 {
		t.Errorf("totals = %s, want impulses=2 collisions=2", tot.String())
	}
}

func TestResolveJointSmallImpacts(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		wantApplied bool
	}{
		{"ignored when disabled", false, false},
		{"applied when enabled", true, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewResolver(1)
			r.JointSmallImpacts = tt.enabled
			// Approaching slower than the velocity tolerance.
			c := &stubCollision{id: 1, velocity: -0.01, bilateral: true, needs: true}
			var tot Totals
			handled, err := r.Resolve([]Collision{c}, 0, bounceApplier(1, nil), &tot)
			if err != nil {
				t.Fatalf("Resolve: %v", err)
			}
			if handled != tt.wantApplied {
				t.Errorf("handled = %v, want %v", handled, tt.wantApplied)
			}
		})
	}
}

func TestResolveDeterministicOrder(t *testing.T) {
	run := func(seed int64) []int {
		r := NewResolver(seed)
		r.Handling = HandlingSimultaneous
		cols := []Collision{
			&stubCollision{id: 1, velocity: -1, needs: true},
			&stubCollision{id: 2, velocity: -1, needs: true},
			&stubCollision{id: 3, velocity: -1, needs: true},
			&stubCollision{id: 4, velocity: -1, needs: true},
		}
		var order []int
		var tot Totals
		if _, err := r.Resolve(cols, 0, bounceApplier(1, &order), &tot); err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		return order
	}

	a, b := run(42), run(42)
	if len(a) != len(b) {
		t.Fatalf("runs applied %d and %d impulses, want equal", len(a), len(b))
	}
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed gave orders %v and %v, want identical", a, b)
		}
	}
}

func TestResolveGroupedLastPass(t *testing.T) {
	r := NewResolver(1)
	r.Handling = HandlingSerialGroupedLastPass
	cols := []Collision{
		&stubCollision{id: 1, velocity: -1, needs: true, group: 1},
		&stubCollision{id: 2, velocity: -2, needs: true, group: 1},
		&stubCollision{id: 3, velocity: -3, needs: true, group: 2},
	}
	var tot Totals
	handled, err := r.Resolve(cols, 0, bounceApplier(1, nil), &tot)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if !handled {
		t.Fatal("handled = false, want true")
	}
	if tot.Collisions() != 3 {
		t.Errorf("Collisions() = %d, want 3", tot.Collisions())
	}
	for _, c := range cols {
		if c.Velocity() < 0 {
			t.Errorf("collision %d still approaching after grouped resolution", c.(*stubCollision).id)
		}
	}
}

func TestResolveGroupedLastPassClearsResiduals(t *testing.T) {
	// The first application leaves an approach velocity below the serial
	// threshold. The serial policy stops there; the grouped policy's final
	// sweep applies once more and fully separates the event.
	residualApplier := func(col Collision) (float64, error) {
		sc := col.(*stubCollision)
		if sc.velocity < -minImpactSpeed {
			sc.velocity = -minImpactSpeed / 2
		} else {
			sc.velocity = -sc.velocity
		}
		return 1, nil
	}

	run := func(h Handling) (*stubCollision, Totals) {
		r := NewResolver(1)
		r.Handling = h
		c := &stubCollision{id: 1, velocity: -1, needs: true, group: 1}
		var tot Totals
		if _, err := r.Resolve([]Collision{c}, 0, residualApplier, &tot); err != nil {
			t.Fatalf("Resolve(%v): %v", h, err)
		}
		return c, tot
	}

	serialCol, serialTot := run(HandlingSerial)
	groupedCol, groupedTot := run(HandlingSerialGroupedLastPass)

	if serialTot.Impulses() != 1 {
		t.Errorf("serial Impulses() = %d, want 1", serialTot.Impulses())
	}
	if serialCol.velocity >= 0 {
		t.Errorf("serial velocity = %v, want residual approach left behind", serialCol.velocity)
	}
	if groupedTot.Impulses() != 2 {
		t.Errorf("grouped Impulses() = %d, want 2 (serial sweep plus last pass)", groupedTot.Impulses())
	}
	if groupedCol.velocity < 0 {
		t.Errorf("grouped velocity = %v, want residual cleared by the last pass", groupedCol.velocity)
	}
	if groupedTot.Collisions() != 1 {
		t.Errorf("grouped Collisions() = %d, want 1 (one event across both passes)", groupedTot.Collisions())
	}
}
