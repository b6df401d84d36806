// SPDX-License-Identifier: GPL-3.0-or-later

package osd

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/ratecalc"
	"github.com/ceph/cephmetrics/pkg/topology"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/afero"
)

const osdDataDir = "/var/lib/ceph/osd"

func New(env module.Env) *OSD {
	o := &OSD{
		env:       env,
		fs:        afero.NewOsFs(),
		disks:     gopsutilSource{},
		iostat:    ratecalc.NewEngine(),
		latencies: ratecalc.NewLatency(),
		tracker:   topology.NewTracker[*osdDisk](),
		now:       time.Now,
	}

	o.tracker.OnRemove = func(dev string, _ *osdDisk) {
		o.Debugf("disk '%s' is gone", dev)
		o.iostat.Forget(dev)
	}
	o.daemons = topology.NewRegistry[string](o.tracker.Clock())
	o.daemons.OnRemove = func(id string, _ string) {
		o.Debugf("osd.%s is gone", id)
		o.latencies.Forget(id)
	}

	return o
}

// OSD collects disk statistics of the OSD data devices on this host and the
// perf counters of the OSD daemons.
type OSD struct {
	module.Base

	env   module.Env
	fs    afero.Fs // sysfs reads
	disks diskSource

	iostat    *ratecalc.Engine
	latencies *ratecalc.Latency

	tracker *topology.Tracker[*osdDisk]
	daemons *topology.Registry[string] // osd id -> admin socket path

	now         func() time.Time
	lastCollect time.Time
}

func (o *OSD) Probe(ctx context.Context) bool {
	if len(o.adminSockets()) > 0 {
		return true
	}

	mounts, err := o.discoverMounts(ctx)
	if err != nil {
		o.Warningf("discover osd mounts: %v", err)
		return false
	}
	return len(mounts) > 0
}

func (o *OSD) Collect(ctx context.Context) module.Metrics {
	now := o.now()
	interval := o.env.Interval
	if !o.lastCollect.IsZero() {
		interval = now.Sub(o.lastCollect)
	}
	o.lastCollect = now

	mx := module.Metrics{}

	o.tracker.BeginCycle()

	o.collectDisks(ctx, mx, interval)
	o.collectDaemons(ctx, mx)

	o.tracker.Sweep()
	o.daemons.Sweep()

	return mx
}

func (o *OSD) Cleanup(context.Context) {}

// adminSockets returns the admin socket paths of the OSD daemons keyed by osd id.
func (o *OSD) adminSockets() map[string]string {
	prefix := fmt.Sprintf("%s-osd.", o.env.Cluster)
	pattern := filepath.Join(o.env.RunDir, prefix+"*.asok")

	matches, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		o.Warningf("glob '%s': %v", pattern, err)
		return nil
	}

	socks := make(map[string]string, len(matches))
	for _, path := range matches {
		base := filepath.Base(path)
		id := base[len(prefix) : len(base)-len(".asok")]
		socks[id] = path
	}
	return socks
}
