// SPDX-License-Identifier: GPL-3.0-or-later

package topology

// cycleModulus bounds the stored stamp. It only has to tell "seen in this
// cycle" from "not seen", so a small wrapping value is enough.
const cycleModulus = 10

// Clock is the cycle counter shared by a tracker and its child registries.
type Clock struct {
	cycle int
}

// Begin starts a new collection cycle and returns its stamp.
func (c *Clock) Begin() int {
	c.cycle = (c.cycle + 1) % cycleModulus
	return c.cycle
}

// Current returns the stamp of the running cycle.
func (c *Clock) Current() int { return c.cycle }
