package impact

import "fmt"

// Totals accumulates diagnostic counters across a whole simulation run. Each
// counter is incremented by the corresponding phase of the advance loop and
// only ever decreases through Reset.
//
// Totals outlives individual Advance calls and is mutated by reference;
// callers running diagnostics concurrently with stepping must serialize
// their reads against Advance.
type Totals struct {
	searches   int
	impulses   int
	collisions int
	steps      int
	backups    int
}

func (t *Totals) AddSearches(n int)   { t.searches += n }
func (t *Totals) AddImpulses(n int)   { t.impulses += n }
func (t *Totals) AddCollisions(n int) { t.collisions += n }
func (t *Totals) AddSteps(n int)      { t.steps += n }
func (t *Totals) AddBackups(n int)    { t.backups += n }

// Searches is the number of collision time search iterations performed.
func (t *Totals) Searches() int { return t.searches }

// Impulses is the number of impulses applied.
func (t *Totals) Impulses() int { return t.impulses }

// Collisions is the number of collision events resolved.
func (t *Totals) Collisions() int { return t.collisions }

// Steps is the number of committed integration steps, partial steps from a
// backup included.
func (t *Totals) Steps() int { return t.steps }

// Backups is the number of times the state was moved back in time relative
// to an optimistic trial step.
func (t *Totals) Backups() int { return t.backups }

// Reset zeroes all counters.
func (t *Totals) Reset() { *t = Totals{} }

func (t *Totals) String() string {
	return fmt.Sprintf("steps=%d collisions=%d impulses=%d searches=%d backups=%d",
		t.steps, t.collisions, t.impulses, t.searches, t.backups)
}
