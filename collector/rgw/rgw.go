// SPDX-License-Identifier: GPL-3.0-or-later

package rgw

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/adminsocket"
	"github.com/ceph/cephmetrics/pkg/ratecalc"

	"github.com/bmatcuk/doublestar/v4"
)

func New(env module.Env) *RGW {
	return &RGW{
		env:       env,
		latencies: ratecalc.NewLatency(),
	}
}

// RGW collects the perf counters of the object gateway running on this host.
type RGW struct {
	module.Base

	env       module.Env
	socket    string
	latencies *ratecalc.Latency
}

var (
	// counter name in perf dump -> metric name
	rgwCounters = []struct{ name, metric string }{
		{"req", "requests"},
		{"failed_req", "requests_failed"},
		{"get", "gets"},
		{"get_b", "get_bytes"},
		{"put", "puts"},
		{"put_b", "put_bytes"},
	}
	rgwGauges = []struct{ name, metric string }{
		{"qlen", "qlen"},
		{"qactive", "requests_active"},
	}
	rgwLatencies = []string{
		"get_initial_lat",
		"put_initial_lat",
	}
)

func (r *RGW) Probe(context.Context) bool {
	pattern := filepath.Join(r.env.RunDir, fmt.Sprintf("%s-client.rgw.*.asok", r.env.Cluster))

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		r.Warningf("glob '%s': %v", pattern, err)
		return false
	}
	if len(matches) == 0 {
		return false
	}

	slices.Sort(matches)
	r.socket = matches[0]
	r.Debugf("using admin socket '%s'", r.socket)

	return true
}

func (r *RGW) Collect(ctx context.Context) module.Metrics {
	doc, err := r.env.Sockets.Call(ctx, r.socket, adminsocket.FormatJSON, "perf", "dump")
	if err != nil {
		r.Degrade("perf dump", err)
		return nil
	}

	name, _, ok := adminsocket.FindSection(doc, func(s string) bool { return s == "client.rgw."+r.env.Host })
	if !ok {
		name, _, ok = adminsocket.FindSection(doc, func(s string) bool { return strings.HasPrefix(s, "client.rgw") })
	}
	if !ok {
		r.Fail("perf dump: no 'client.rgw' section")
		return nil
	}

	stats := adminsocket.PerfSection(doc, name)

	mx := module.Metrics{}

	for _, c := range rgwCounters {
		if v, ok := stats[c.name]; ok {
			mx.Counter(module.Path("rgw", c.metric), v.Value)
		}
	}
	for _, g := range rgwGauges {
		if v, ok := stats[g.name]; ok {
			mx.Gauge(module.Path("rgw", g.metric), v.Value)
		}
	}
	for _, lat := range rgwLatencies {
		v, ok := stats[lat]
		if !ok || !v.Pair {
			continue
		}
		mx.Counter(module.Path("rgw", lat+"_sum"), v.Sum)
		mx.Counter(module.Path("rgw", lat+"_avgcount"), float64(v.AvgCount))
		mx.Gauge(module.Path("rgw", lat), r.latencies.Ingest(name, lat, v.Sum, v.AvgCount))
	}

	return mx
}

func (r *RGW) Cleanup(context.Context) {}
