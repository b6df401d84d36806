// SPDX-License-Identifier: GPL-3.0-or-later

package main

import (
	"github.com/ceph/cephmetrics/agent"
	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/collector/iscsi"
	"github.com/ceph/cephmetrics/collector/mon"
	"github.com/ceph/cephmetrics/collector/osd"
	"github.com/ceph/cephmetrics/collector/rgw"
	"github.com/ceph/cephmetrics/pkg/adminsocket"
	"github.com/ceph/cephmetrics/pkg/radosconn"
)

func newEnv(cfg agent.Config, sockets adminsocket.Caller) module.Env {
	return module.Env{
		Cluster:  cfg.ClusterName,
		Host:     shortHostname(),
		RunDir:   cfg.RunDir,
		Interval: cfg.Interval(),
		Sockets:  sockets,
	}
}

func newRegistry(cfg agent.Config, conn radosconn.Conn) module.Registry {
	reg := module.Registry{}

	reg.Register("mon", module.Creator{
		Create: func(env module.Env) module.Module {
			return mon.New(env, conn, mon.Config{
				RBDScan:     cfg.RBDScan.Enabled,
				ScanTimeout: cfg.RBDScan.Timeout.Duration(),
				MaxWorkers:  cfg.RBDScan.MaxWorkers,
			})
		},
	})
	reg.Register("osd", module.Creator{
		Create: func(env module.Env) module.Module { return osd.New(env) },
	})
	reg.Register("rgw", module.Creator{
		Create: func(env module.Env) module.Module { return rgw.New(env) },
	})
	reg.Register("iscsi", module.Creator{
		Create: func(env module.Env) module.Module { return iscsi.New(env) },
	})

	return reg
}
