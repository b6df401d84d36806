// SPDX-License-Identifier: GPL-3.0-or-later

// Package topology mirrors an externally discovered set of entities that
// has no deletion notifications. Each cycle the owner observes everything it
// still sees and then sweeps: whatever was not observed is removed.
package topology

// Tracker is a root registry with its own clock.
// Child registries share that clock through NewRegistry(t.Clock()).
type Tracker[V any] struct {
	*Registry[V]
	clock *Clock
}

func NewTracker[V any]() *Tracker[V] {
	clock := &Clock{}
	return &Tracker[V]{
		Registry: NewRegistry[V](clock),
		clock:    clock,
	}
}

func (t *Tracker[V]) Clock() *Clock { return t.clock }

// BeginCycle starts a new observe/sweep round.
func (t *Tracker[V]) BeginCycle() int { return t.clock.Begin() }
