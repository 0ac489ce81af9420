package ball

import "github.com/myphysicslab/impact"

type EventType uint8

const (
	CONTACT_ENTER EventType = iota
	CONTACT_STAY
	CONTACT_EXIT
	IMPACT
)

// Event interface - all events implement this
type Event interface {
	Type() EventType
}

// ContactEnterEvent fires when a pair starts touching.
type ContactEnterEvent struct {
	A *Body
	B *Body // nil for a wall contact
}

func (e ContactEnterEvent) Type() EventType { return CONTACT_ENTER }

// ContactStayEvent fires while a pair keeps touching across flushes.
type ContactStayEvent struct {
	A *Body
	B *Body
}

func (e ContactStayEvent) Type() EventType { return CONTACT_STAY }

// ContactExitEvent fires when a pair stops touching.
type ContactExitEvent struct {
	A *Body
	B *Body
}

func (e ContactExitEvent) Type() EventType { return CONTACT_EXIT }

// ImpactEvent fires when an impulse was applied to a pair.
type ImpactEvent struct {
	A       *Body
	B       *Body // nil for a wall impact
	Impulse float64
}

func (e ImpactEvent) Type() EventType { return IMPACT }

// EventListener - callback for events
type EventListener func(event Event)

type pairKey struct {
	a, b int
}

// makePairKey normalizes a pair to a stable key; walls are encoded as
// negative indices so they never collide with body indices.
func makePairKey(a, b *Body, side wallSide) pairKey {
	ai := a.idx
	bi := -1 - int(side)
	if b != nil {
		bi = b.idx
	}
	if bi < ai {
		ai, bi = bi, ai
	}
	return pairKey{a: ai, b: bi}
}

// Events tracks which pairs are touching between flushes and broadcasts
// Enter/Stay/Exit transitions plus applied impulses to subscribed listeners.
type Events struct {
	listeners map[EventType][]EventListener

	buffer []Event

	previousTouching map[pairKey]bool
	currentTouching  map[pairKey]bool
	pairBodies       map[pairKey][2]*Body
}

func NewEvents() *Events {
	return &Events{
		listeners:        make(map[EventType][]EventListener),
		buffer:           make([]Event, 0, 64),
		previousTouching: make(map[pairKey]bool),
		currentTouching:  make(map[pairKey]bool),
		pairBodies:       make(map[pairKey][2]*Body),
	}
}

// Subscribe adds a listener for an event type
func (e *Events) Subscribe(eventType EventType, listener EventListener) {
	e.listeners[eventType] = append(e.listeners[eventType], listener)
}

// recordTouching is called on each detection pass with the current
// collision set; only touching events are tracked for Enter/Stay/Exit.
func (e *Events) recordTouching(cols []impact.Collision) {
	for _, c := range cols {
		if !c.IsTouching() {
			continue
		}
		var key pairKey
		var bodies [2]*Body
		switch c := c.(type) {
		case *wallCollision:
			key = makePairKey(c.body, nil, c.side)
			bodies = [2]*Body{c.body, nil}
		case *ballCollision:
			key = makePairKey(c.a, c.b, 0)
			bodies = [2]*Body{c.a, c.b}
		case *ropeCollision:
			key = makePairKey(c.rope.A, c.rope.B, 0)
			bodies = [2]*Body{c.rope.A, c.rope.B}
		default:
			continue
		}
		e.currentTouching[key] = true
		e.pairBodies[key] = bodies
	}
}

// emitImpact buffers an applied impulse.
func (e *Events) emitImpact(a, b *Body, impulse float64) {
	e.buffer = append(e.buffer, ImpactEvent{A: a, B: b, Impulse: impulse})
}

// Flush compares the touching sets, emits the transition events, and sends
// everything buffered since the previous flush to the listeners. Call it
// between advance calls, not during one.
func (e *Events) Flush() {
	for pair := range e.currentTouching {
		bodies := e.pairBodies[pair]
		if e.previousTouching[pair] {
			e.buffer = append(e.buffer, ContactStayEvent{A: bodies[0], B: bodies[1]})
		} else {
			e.buffer = append(e.buffer, ContactEnterEvent{A: bodies[0], B: bodies[1]})
		}
	}
	for pair := range e.previousTouching {
		if !e.currentTouching[pair] {
			bodies := e.pairBodies[pair]
			e.buffer = append(e.buffer, ContactExitEvent{A: bodies[0], B: bodies[1]})
		}
	}

	e.previousTouching, e.currentTouching = e.currentTouching, e.previousTouching
	clear(e.currentTouching)

	for _, event := range e.buffer {
		if listeners, ok := e.listeners[event.Type()]; ok {
			for _, listener := range listeners {
				listener(event)
			}
		}
	}
	e.buffer = e.buffer[:0]
}
