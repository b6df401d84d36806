// SPDX-License-Identifier: GPL-3.0-or-later

package osd

import (
	"context"
	"maps"
	"slices"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/adminsocket"
)

// perf dump sections read from every OSD daemon. Filestore and bluestore
// OSDs only have one of the two object store sections.
var daemonSections = []struct {
	name      string
	counters  []string
	latencies []string
}{
	{
		name:      "osd",
		counters:  []string{"op", "op_r", "op_w", "op_rw", "op_in_bytes", "op_out_bytes", "subop", "subop_w"},
		latencies: []string{"op_latency", "op_r_latency", "op_w_latency", "op_rw_latency", "subop_latency"},
	},
	{
		name:      "filestore",
		counters:  []string{"journal_wr", "journal_wr_bytes"},
		latencies: []string{"journal_latency", "commitcycle_latency", "apply_latency", "queue_transaction_latency_avg"},
	},
	{
		name:      "bluestore",
		counters:  []string{"bluestore_txc", "bluestore_write_big", "bluestore_write_small"},
		latencies: []string{"commit_lat", "kv_flush_lat", "kv_commit_lat", "read_lat", "submit_lat", "state_aio_wait_lat"},
	},
}

func (o *OSD) collectDaemons(ctx context.Context, mx module.Metrics) {
	socks := o.adminSockets()

	for _, id := range slices.Sorted(maps.Keys(socks)) {
		path := o.daemons.Observe(id, func() string { return socks[id] })

		doc, err := o.env.Sockets.Call(ctx, path, adminsocket.FormatJSON, "perf", "dump")
		if err != nil {
			o.Degrade("osd."+id+" perf dump", err)
			continue
		}

		for _, sec := range daemonSections {
			stats := adminsocket.PerfSection(doc, sec.name)
			if stats == nil {
				continue
			}
			prefix := module.Path("osd.daemon", id, sec.name)

			for _, name := range sec.counters {
				if v, ok := stats[name]; ok && !v.Pair {
					mx.Counter(module.Path(prefix, name), v.Value)
				}
			}
			for _, name := range sec.latencies {
				if v, ok := stats[name]; ok && v.Pair {
					lat := o.latencies.Ingest(id, sec.name+"."+name, v.Sum, v.AvgCount)
					mx.Gauge(module.Path(prefix, name), lat)
				}
			}
		}
	}
}
