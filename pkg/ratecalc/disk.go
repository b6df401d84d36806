// SPDX-License-Identifier: GPL-3.0-or-later

package ratecalc

import (
	"time"
)

const sectorSize = 512

// DiskCounters are the cumulative fields of one /proc/diskstats line.
type DiskCounters struct {
	Reads          uint64
	ReadsMerged    uint64
	SectorsRead    uint64
	ReadMs         uint64
	Writes         uint64
	WritesMerged   uint64
	SectorsWritten uint64
	WriteMs        uint64
	InFlight       uint64 // gauge, not a counter
	BusyMs         uint64
	WeightedBusyMs uint64
}

// decreased reports whether any cumulative field went backwards.
func (c DiskCounters) decreased(prev DiskCounters) bool {
	return c.Reads < prev.Reads ||
		c.ReadsMerged < prev.ReadsMerged ||
		c.SectorsRead < prev.SectorsRead ||
		c.ReadMs < prev.ReadMs ||
		c.Writes < prev.Writes ||
		c.WritesMerged < prev.WritesMerged ||
		c.SectorsWritten < prev.SectorsWritten ||
		c.WriteMs < prev.WriteMs ||
		c.BusyMs < prev.BusyMs ||
		c.WeightedBusyMs < prev.WeightedBusyMs
}

// IOStat holds the rates derived from two DiskCounters samples.
type IOStat struct {
	IOPS             float64
	ReadIOPS         float64
	WriteIOPS        float64
	BytesPerSec      float64
	ReadBytesPerSec  float64
	WriteBytesPerSec float64
	Util             float64 // percent
	Await            float64 // ms
	ReadAwait        float64 // ms
	WriteAwait       float64 // ms
}

type diskSample struct {
	prev  DiskCounters
	cur   DiskCounters
	rates IOStat
}

// Engine turns successive disk counter samples into iostat style rates.
// It is not safe for concurrent use; a collector owns its engine.
type Engine struct {
	disks map[string]*diskSample
}

func NewEngine() *Engine {
	return &Engine{disks: make(map[string]*diskSample)}
}

// Ingest stores counters as the current sample of resource and returns the
// rates over interval. The first sample and a sample following a counter
// reset yield zero rates. A non-positive interval leaves the previous rates
// unchanged.
func (e *Engine) Ingest(resource string, counters DiskCounters, interval time.Duration) IOStat {
	s, ok := e.disks[resource]
	if !ok {
		e.disks[resource] = &diskSample{cur: counters}
		return IOStat{}
	}

	s.prev, s.cur = s.cur, counters

	if interval <= 0 {
		return s.rates
	}
	if s.cur.decreased(s.prev) {
		s.rates = IOStat{}
		return s.rates
	}

	s.rates = computeIOStat(s.prev, s.cur, interval.Seconds())
	return s.rates
}

// Forget drops the samples of resource.
func (e *Engine) Forget(resource string) {
	delete(e.disks, resource)
}

// Len returns the number of tracked resources.
func (e *Engine) Len() int { return len(e.disks) }

func computeIOStat(prev, cur DiskCounters, secs float64) IOStat {
	reads := float64(cur.Reads - prev.Reads)
	writes := float64(cur.Writes - prev.Writes)
	readMs := float64(cur.ReadMs - prev.ReadMs)
	writeMs := float64(cur.WriteMs - prev.WriteMs)
	total := reads + writes

	var st IOStat

	st.IOPS = total / secs
	st.ReadIOPS = reads / secs
	st.WriteIOPS = writes / secs

	st.ReadBytesPerSec = float64((cur.SectorsRead-prev.SectorsRead)*sectorSize) / secs
	st.WriteBytesPerSec = float64((cur.SectorsWritten-prev.SectorsWritten)*sectorSize) / secs
	st.BytesPerSec = st.ReadBytesPerSec + st.WriteBytesPerSec

	st.Util = float64(cur.BusyMs-prev.BusyMs) / (secs * 1000) * 100

	st.Await = ratio(readMs+writeMs, total)
	st.ReadAwait = ratio(readMs, reads)
	st.WriteAwait = ratio(writeMs, writes)

	return st
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
