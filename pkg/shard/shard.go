// SPDX-License-Identifier: GPL-3.0-or-later

// Package shard splits a sorted workload between cooperating peers without
// any coordination: every peer computes the same partition from the same
// sorted inputs and keeps its own slice.
package shard

import (
	"errors"
	"slices"
)

var (
	ErrNoPeers   = errors.New("peer list is empty")
	ErrNotMember = errors.New("self is not in the peer list")
)

// Plan returns the items of workload assigned to self: every len(peers)-th
// item starting at the index of self in peers. Both lists must be sorted the
// same way by every peer. The result is empty when self is not a peer.
func Plan(workload, peers []string, self string) []string {
	offset := slices.Index(peers, self)
	if offset < 0 {
		return nil
	}

	stride := len(peers)
	var part []string
	for i := offset; i < len(workload); i += stride {
		part = append(part, workload[i])
	}
	return part
}

// Check reports why Plan would leave workload unscanned for self.
func Check(peers []string, self string) error {
	switch {
	case len(peers) == 0:
		return ErrNoPeers
	case !slices.Contains(peers, self):
		return ErrNotMember
	default:
		return nil
	}
}
