// SPDX-License-Identifier: GPL-3.0-or-later

package iscsi

import (
	"strings"
	"time"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/ratecalc"
	"github.com/ceph/cephmetrics/pkg/topology"
)

const bytesPerMB = 1024 * 1024

type (
	client struct {
		luns *topology.Registry[*lun] // storage object name -> lun
	}
	lun struct {
		rates      *lunRates
		activePath bool
	}
	// lunRates is shared by every client the storage object is mapped to.
	lunRates struct {
		size       uint64
		iops       float64
		readBytes  float64
		writeBytes float64
	}
)

func (c *client) Sweep() []string { return c.luns.Sweep() }
func (c *client) Clear()          { c.luns.Clear() }

func (r *lunRates) update(counters *ratecalc.Counters, so *storageObject, interval time.Duration) {
	r.size = so.size
	r.iops = counters.Ingest(so.name, "num_cmds", so.numCmds, interval)
	r.readBytes = counters.Ingest(so.name, "read_mbytes", so.readMB, interval) * bytesPerMB
	r.writeBytes = counters.Ingest(so.name, "write_mbytes", so.writeMB, interval) * bytesPerMB
}

func (c *ISCSI) writeMetrics(mx module.Metrics, cfg *lioConfig) {
	if len(cfg.targets) > 0 {
		// only the first target is reported
		mx.Gauge(module.Path("iscsi", "gw_name", displayName(cfg.targets[0])), 0)
	}

	var capacity uint64
	var iops, rd, wr float64
	c.objects.Range(func(_ string, r *lunRates) bool {
		capacity += r.size
		iops += r.iops
		rd += r.readBytes
		wr += r.writeBytes
		return true
	})

	gw := func(name string, v float64) { mx.Gauge(module.Path("iscsi", "gw_stats", name), v) }
	gw("lun_count", float64(c.objects.Len()))
	gw("client_count", float64(len(cfg.acls)))
	gw("tpg_count", float64(cfg.tpgs))
	gw("sessions", float64(cfg.sessions))
	gw("capacity", float64(capacity))
	gw("iops", iops)
	gw("read_bytes_per_sec", rd)
	gw("write_bytes_per_sec", wr)
	gw("total_bytes_per_sec", rd+wr)

	c.clients.Range(func(iqn string, cl *client) bool {
		prefix := module.Path("iscsi", "gw_clients", displayName(iqn))
		mx.Gauge(module.Path(prefix, "lun_count"), float64(cl.luns.Len()))

		cl.luns.Range(func(name string, l *lun) bool {
			px := module.Path(prefix, "luns", displayName(name))
			mx.Gauge(module.Path(px, "size"), float64(l.rates.size))
			mx.Gauge(module.Path(px, "iops"), l.rates.iops)
			mx.Gauge(module.Path(px, "read_bytes_per_sec"), l.rates.readBytes)
			mx.Gauge(module.Path(px, "write_bytes_per_sec"), l.rates.writeBytes)
			mx.Gauge(module.Path(px, "total_bytes_per_sec"), l.rates.readBytes+l.rates.writeBytes)
			mx.Gauge(module.Path(px, "active_path"), boolToFloat(l.activePath))
			return true
		})
		return true
	})
}

func displayName(s string) string { return strings.ReplaceAll(s, ".", "-") }

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
