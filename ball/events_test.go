package ball

import (
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/myphysicslab/impact"
)

func touchingWall(sys *System, b *Body, side wallSide) impact.Collision {
	c := &wallCollision{baseCollision: baseCollision{sys: sys, distance: 0.005}, body: b, side: side}
	return c
}

func touchingPair(sys *System, a, b *Body) impact.Collision {
	c := &ballCollision{baseCollision: baseCollision{sys: sys, distance: 0.005}, a: a, b: b}
	return c
}

func TestEventsEnterStayExit(t *testing.T) {
	sys := NewSystem()
	a := sys.AddBody("a", 1, 0.5, mgl64.Vec2{}, mgl64.Vec2{})
	b := sys.AddBody("b", 1, 0.5, mgl64.Vec2{1, 0}, mgl64.Vec2{})

	events := NewEvents()
	var got []Event
	record := func(ev Event) { got = append(got, ev) }
	events.Subscribe(CONTACT_ENTER, record)
	events.Subscribe(CONTACT_STAY, record)
	events.Subscribe(CONTACT_EXIT, record)

	// First flush: the pair starts touching.
	events.recordTouching([]impact.Collision{touchingPair(sys, a, b)})
	events.Flush()
	if len(got) != 1 {
		t.Fatalf("after first flush got %d events, want 1", len(got))
	}
	if enter, ok := got[0].(ContactEnterEvent); !ok || enter.A != a || enter.B != b {
		t.Errorf("first event = %#v, want ContactEnterEvent{a, b}", got[0])
	}

	// Second flush: still touching.
	got = nil
	events.recordTouching([]impact.Collision{touchingPair(sys, a, b)})
	events.Flush()
	if len(got) != 1 {
		t.Fatalf("after second flush got %d events, want 1", len(got))
	}
	if _, ok := got[0].(ContactStayEvent); !ok {
		t.Errorf("second event = %#v, want ContactStayEvent", got[0])
	}

	// Third flush: separated.
	got = nil
	events.Flush()
	if len(got) != 1 {
		t.Fatalf("after third flush got %d events, want 1", len(got))
	}
	if _, ok := got[0].(ContactExitEvent); !ok {
		t.Errorf("third event = %#v, want ContactExitEvent", got[0])
	}

	// Fourth flush: nothing left.
	got = nil
	events.Flush()
	if len(got) != 0 {
		t.Errorf("after fourth flush got %v, want none", got)
	}
}

func TestEventsWallContact(t *testing.T) {
	sys := NewSystem()
	sys.SetEnclosure(-3, 3, -3, 3)
	a := sys.AddBody("a", 1, 0.5, mgl64.Vec2{0, -2.5}, mgl64.Vec2{})

	events := NewEvents()
	var enters []ContactEnterEvent
	events.Subscribe(CONTACT_ENTER, func(ev Event) {
		enters = append(enters, ev.(ContactEnterEvent))
	})

	events.recordTouching([]impact.Collision{touchingWall(sys, a, wallBottom)})
	events.Flush()

	if len(enters) != 1 {
		t.Fatalf("got %d enter events, want 1", len(enters))
	}
	if enters[0].A != a || enters[0].B != nil {
		t.Errorf("enter = %#v, want A=a, B=nil for a wall contact", enters[0])
	}
}

func TestEventsDistinctWallSides(t *testing.T) {
	sys := NewSystem()
	sys.SetEnclosure(-3, 3, -3, 3)
	// In a corner: touching two walls at once must be two pairs.
	a := sys.AddBody("a", 1, 0.5, mgl64.Vec2{-2.5, -2.5}, mgl64.Vec2{})

	events := NewEvents()
	var count int
	events.Subscribe(CONTACT_ENTER, func(ev Event) { count++ })

	events.recordTouching([]impact.Collision{
		touchingWall(sys, a, wallBottom),
		touchingWall(sys, a, wallLeft),
	})
	events.Flush()

	if count != 2 {
		t.Errorf("got %d enter events for a corner contact, want 2", count)
	}
}

func TestEventsNonTouchingIgnored(t *testing.T) {
	sys := NewSystem()
	a := sys.AddBody("a", 1, 0.5, mgl64.Vec2{}, mgl64.Vec2{})
	b := sys.AddBody("b", 1, 0.5, mgl64.Vec2{5, 0}, mgl64.Vec2{})

	events := NewEvents()
	var count int
	events.Subscribe(CONTACT_ENTER, func(ev Event) { count++ })

	far := &ballCollision{baseCollision: baseCollision{sys: sys, distance: 0.5}, a: a, b: b}
	events.recordTouching([]impact.Collision{far})
	events.Flush()

	if count != 0 {
		t.Errorf("got %d enter events for a distant candidate, want 0", count)
	}
}

func TestEventsImpact(t *testing.T) {
	sys := NewSystem()
	a := sys.AddBody("a", 1, 0.5, mgl64.Vec2{}, mgl64.Vec2{})
	b := sys.AddBody("b", 1, 0.5, mgl64.Vec2{1, 0}, mgl64.Vec2{})

	events := NewEvents()
	var impacts []ImpactEvent
	events.Subscribe(IMPACT, func(ev Event) {
		impacts = append(impacts, ev.(ImpactEvent))
	})

	events.emitImpact(a, b, 2.5)
	events.Flush()

	if len(impacts) != 1 {
		t.Fatalf("got %d impact events, want 1", len(impacts))
	}
	if impacts[0].A != a || impacts[0].B != b || impacts[0].Impulse != 2.5 {
		t.Errorf("impact = %#v, want {a, b, 2.5}", impacts[0])
	}
}

func TestEventsNoListeners(t *testing.T) {
	sys := NewSystem()
	a := sys.AddBody("a", 1, 0.5, mgl64.Vec2{}, mgl64.Vec2{})

	events := NewEvents()
	events.emitImpact(a, nil, 1)
	events.Flush() // must not panic
}
