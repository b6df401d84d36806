// SPDX-License-Identifier: GPL-3.0-or-later

package mon

import (
	"context"
	"slices"
	"strings"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/radosconn"

	"github.com/tidwall/gjson"
)

const allPools = "_all_"

var (
	poolClientMetrics = []string{
		"read_bytes_sec",
		"write_bytes_sec",
		"read_op_per_sec",
		"write_op_per_sec",
	}
	poolRecoveryMetrics = []string{
		"recovering_objects_per_sec",
		"recovering_bytes_per_sec",
		"recovering_keys_per_sec",
		"num_objects_recovered",
		"num_bytes_recovered",
		"num_keys_recovered",
	}
)

func (m *Mon) collectPools(ctx context.Context, mx module.Metrics) {
	resp, err := radosconn.Command(ctx, m.conn, "osd pool stats")
	if err != nil {
		m.Degrade("osd pool stats", err)
		return
	}

	total := make(map[string]float64)

	resp.ForEach(func(_, pool gjson.Result) bool {
		name := poolMetricName(pool.Get("pool_name").String())
		if name == "" {
			return true
		}

		// idle pools report no rate objects at all
		write := func(section string, metrics []string) {
			rates := pool.Get(section)
			for _, metric := range metrics {
				v := rates.Get(metric).Float()
				total[metric] += v
				mx.Gauge(module.Path("mon.pools", name, metric), v)
			}
		}
		write("client_io_rate", poolClientMetrics)
		write("recovery_rate", poolRecoveryMetrics)

		return true
	})

	for _, metric := range slices.Concat(poolClientMetrics, poolRecoveryMetrics) {
		mx.Gauge(module.Path("mon.pools", allPools, metric), total[metric])
	}
}

// poolMetricName keeps dotted pool names (".rgw.root") from adding path levels.
func poolMetricName(pool string) string {
	return strings.ReplaceAll(pool, ".", "_")
}
