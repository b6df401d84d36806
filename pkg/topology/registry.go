// SPDX-License-Identifier: GPL-3.0-or-later

package topology

import (
	"maps"
	"slices"
)

// Sweeper is implemented by values that own child registries.
// Sweep is called on values that survived their parent's sweep,
// Clear on values that were removed.
type Sweeper interface {
	Sweep() []string
	Clear()
}

type entry[V any] struct {
	value V
	seen  int
}

// Registry keeps entities stamped with the cycle they were last observed in.
type Registry[V any] struct {
	clock *Clock
	items map[string]*entry[V]

	// OnRemove, when set, is called for every entity dropped by Sweep or Clear.
	OnRemove func(key string, value V)
}

func NewRegistry[V any](clock *Clock) *Registry[V] {
	return &Registry[V]{
		clock: clock,
		items: make(map[string]*entry[V]),
	}
}

// Observe stamps key with the current cycle, creating its value if key is new.
func (r *Registry[V]) Observe(key string, create func() V) V {
	e, ok := r.items[key]
	if !ok {
		e = &entry[V]{value: create()}
		r.items[key] = e
	}
	e.seen = r.clock.Current()
	return e.value
}

// Sweep removes every entity not observed in the current cycle and returns
// the removed keys. Must be called once per cycle, after all Observe calls.
func (r *Registry[V]) Sweep() []string {
	var removed []string
	cur := r.clock.Current()

	for key, e := range r.items {
		if e.seen == cur {
			if s, ok := any(e.value).(Sweeper); ok {
				s.Sweep()
			}
			continue
		}
		r.remove(key, e)
		removed = append(removed, key)
	}

	slices.Sort(removed)
	return removed
}

// Clear removes every entity.
func (r *Registry[V]) Clear() {
	for key, e := range r.items {
		r.remove(key, e)
	}
}

func (r *Registry[V]) remove(key string, e *entry[V]) {
	delete(r.items, key)
	if s, ok := any(e.value).(Sweeper); ok {
		s.Clear()
	}
	if r.OnRemove != nil {
		r.OnRemove(key, e.value)
	}
}

func (r *Registry[V]) Get(key string) (V, bool) {
	e, ok := r.items[key]
	if !ok {
		var zero V
		return zero, false
	}
	return e.value, true
}

func (r *Registry[V]) Len() int { return len(r.items) }

// Keys returns the tracked keys in sorted order.
func (r *Registry[V]) Keys() []string {
	return slices.Sorted(maps.Keys(r.items))
}

// Range calls fn for every entity in key order until fn returns false.
func (r *Registry[V]) Range(fn func(key string, value V) bool) {
	for _, key := range r.Keys() {
		if !fn(key, r.items[key].value) {
			return
		}
	}
}
