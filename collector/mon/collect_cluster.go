// SPDX-License-Identifier: GPL-3.0-or-later

package mon

import (
	"context"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/adminsocket"
	"github.com/ceph/cephmetrics/pkg/radosconn"
)

var clusterMetrics = []string{
	"num_mon",
	"num_mon_quorum",
	"num_osd",
	"num_osd_up",
	"num_osd_in",
	"osd_epoch",
	"osd_bytes",
	"osd_bytes_used",
	"osd_bytes_avail",
	"num_pool",
	"num_pg",
	"num_pg_active_clean",
	"num_pg_active",
	"num_pg_peering",
	"num_object",
	"num_object_degraded",
	"num_object_misplaced",
	"num_object_unfound",
	"num_bytes",
	"num_mds_up",
	"num_mds_in",
	"num_mds_failed",
	"mds_epoch",
}

const healthUnknown = 16

var healthStatus = map[string]float64{
	"HEALTH_OK":   0,
	"HEALTH_WARN": 4,
	"HEALTH_ERR":  8,
}

func (m *Mon) collectCluster(ctx context.Context, mx module.Metrics) {
	doc, err := m.env.Sockets.Call(ctx, m.socket, adminsocket.FormatJSON, "perf", "dump")
	if err != nil {
		m.Degrade("perf dump", err)
		return
	}

	cluster := adminsocket.PerfSection(doc, "cluster")
	if cluster == nil {
		m.Fail("perf dump: no 'cluster' section")
		return
	}

	for _, name := range clusterMetrics {
		if v, ok := cluster[name]; ok && !v.Pair {
			mx.Gauge(module.Path("mon.cluster", name), v.Value)
		}
	}
}

func (m *Mon) collectHealth(ctx context.Context, mx module.Metrics) {
	resp, err := radosconn.Command(ctx, m.conn, "health")
	if err != nil {
		m.Degrade("health", err)
		return
	}

	// "overall_status" before luminous, "status" after
	status := resp.Get("status").String()
	if status == "" {
		status = resp.Get("overall_status").String()
	}

	v, ok := healthStatus[status]
	if !ok {
		v = healthUnknown
	}
	mx.Gauge("mon.cluster.health", v)
}
