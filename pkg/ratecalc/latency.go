// SPDX-License-Identifier: GPL-3.0-or-later

package ratecalc

type pairSample struct {
	sum      float64
	avgCount uint64
}

// Latency computes the average latency of {sum, avgcount} counter pairs
// between two samples.
type Latency struct {
	pairs map[string]map[string]pairSample
}

func NewLatency() *Latency {
	return &Latency{pairs: make(map[string]map[string]pairSample)}
}

// Ingest stores the pair and returns Δsum/Δavgcount. It returns 0 on the first
// sample, when avgcount did not move and when either value went backwards.
func (l *Latency) Ingest(resource, counter string, sum float64, avgCount uint64) float64 {
	counters, ok := l.pairs[resource]
	if !ok {
		counters = make(map[string]pairSample)
		l.pairs[resource] = counters
	}

	prev, seen := counters[counter]
	counters[counter] = pairSample{sum: sum, avgCount: avgCount}

	if !seen || avgCount <= prev.avgCount || sum < prev.sum {
		return 0
	}

	return (sum - prev.sum) / float64(avgCount-prev.avgCount)
}

// Forget drops every counter of resource.
func (l *Latency) Forget(resource string) {
	delete(l.pairs, resource)
}
