// SPDX-License-Identifier: GPL-3.0-or-later

package ratecalc

import (
	"time"
)

type counterSample struct {
	value uint64
	rate  float64
}

// Counters turns single cumulative counters into per second rates.
type Counters struct {
	values map[string]map[string]*counterSample
}

func NewCounters() *Counters {
	return &Counters{values: make(map[string]map[string]*counterSample)}
}

// Ingest stores value and returns its rate over interval, following the same
// rules as Engine.Ingest.
func (c *Counters) Ingest(resource, counter string, value uint64, interval time.Duration) float64 {
	counters, ok := c.values[resource]
	if !ok {
		counters = make(map[string]*counterSample)
		c.values[resource] = counters
	}

	s, ok := counters[counter]
	if !ok {
		counters[counter] = &counterSample{value: value}
		return 0
	}

	prev := s.value
	s.value = value

	switch {
	case interval <= 0:
	case value < prev:
		s.rate = 0
	default:
		s.rate = float64(value-prev) / interval.Seconds()
	}

	return s.rate
}

// Forget drops every counter of resource.
func (c *Counters) Forget(resource string) {
	delete(c.values, resource)
}
