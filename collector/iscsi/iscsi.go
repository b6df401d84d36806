// SPDX-License-Identifier: GPL-3.0-or-later

package iscsi

import (
	"context"
	"path"
	"time"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/ratecalc"
	"github.com/ceph/cephmetrics/pkg/topology"

	"github.com/spf13/afero"
)

const configfsRoot = "/sys/kernel/config/target"

func New(env module.Env) *ISCSI {
	fs := afero.NewOsFs()

	c := &ISCSI{
		env:         env,
		fs:          fs,
		root:        configfsRoot,
		inventory:   &configfs{fs: fs, root: configfsRoot},
		counters:    ratecalc.NewCounters(),
		clients:     topology.NewTracker[*client](),
		unsupported: make(map[string]bool),
		now:         time.Now,
	}

	c.clients.OnRemove = func(iqn string, _ *client) {
		c.Debugf("pruning client '%s'", iqn)
	}
	c.objects = topology.NewRegistry[*lunRates](c.clients.Clock())
	c.objects.OnRemove = func(name string, _ *lunRates) {
		c.Debugf("pruning storage object '%s'", name)
		c.counters.Forget(name)
	}

	return c
}

// ISCSI collects the LIO configuration and LUN statistics of an iSCSI gateway.
type ISCSI struct {
	module.Base

	env       module.Env
	fs        afero.Fs
	root      string
	inventory interface{ read() (*lioConfig, error) }

	counters *ratecalc.Counters
	clients  *topology.Tracker[*client]
	objects  *topology.Registry[*lunRates] // storage object name -> rates

	unsupported map[string]bool // reported unsupported objects

	now         func() time.Time
	lastCollect time.Time
}

func (c *ISCSI) Probe(context.Context) bool {
	ok, err := afero.DirExists(c.fs, path.Join(c.root, "iscsi"))
	if err != nil {
		c.Debugf("check lio configfs: %v", err)
	}
	return ok
}

func (c *ISCSI) Collect(context.Context) module.Metrics {
	cfg, err := c.inventory.read()
	if err != nil {
		c.Fail("read lio configuration: %v", err)
		return nil
	}

	for _, err := range cfg.failed {
		c.Fail("read lio configuration: %v", err)
	}
	c.reportUnsupported(cfg.skipped)

	now := c.now()
	interval := c.env.Interval
	if !c.lastCollect.IsZero() {
		interval = now.Sub(c.lastCollect)
	}
	c.lastCollect = now

	c.clients.BeginCycle()
	c.refresh(cfg, interval)
	c.clients.Sweep()
	c.objects.Sweep()

	mx := module.Metrics{}
	c.writeMetrics(mx, cfg)

	return mx
}

func (c *ISCSI) Cleanup(context.Context) {}

// reportUnsupported warns once about every unsupported storage object and
// forgets the ones that are gone.
func (c *ISCSI) reportUnsupported(skipped []error) {
	seen := make(map[string]bool, len(skipped))

	for _, err := range skipped {
		key := err.Error()
		seen[key] = true
		if !c.unsupported[key] {
			c.unsupported[key] = true
			c.Warning(err)
		}
	}

	for key := range c.unsupported {
		if !seen[key] {
			delete(c.unsupported, key)
		}
	}
}

func (c *ISCSI) refresh(cfg *lioConfig, interval time.Duration) {
	for name, so := range cfg.objects {
		r := c.objects.Observe(name, func() *lunRates { return &lunRates{} })
		r.update(c.counters, so, interval)
	}

	for _, acl := range cfg.acls {
		cl := c.clients.Observe(acl.initiator, func() *client {
			return &client{luns: topology.NewRegistry[*lun](c.clients.Clock())}
		})

		for _, m := range acl.luns {
			r, ok := c.objects.Get(m.object)
			if !ok {
				continue
			}
			l := cl.luns.Observe(m.object, func() *lun { return &lun{} })
			l.rates = r
			l.activePath = m.alua == "ao"
		}
	}
}
