// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"fmt"
	"maps"
	"slices"
)

type (
	// Creator builds a collector for the given cluster context.
	Creator struct {
		Create func(Env) Module
	}
	// Registry is a collection of Creators.
	Registry map[string]Creator
)

// Register registers a collector. It panics on a duplicate name.
func (r Registry) Register(name string, creator Creator) {
	if _, ok := r[name]; ok {
		panic(fmt.Sprintf("%s is already in registry", name))
	}
	r[name] = creator
}

func (r Registry) Lookup(name string) (Creator, bool) {
	v, ok := r[name]
	return v, ok
}

// Names returns the registered names in sorted order.
func (r Registry) Names() []string {
	return slices.Sorted(maps.Keys(r))
}
