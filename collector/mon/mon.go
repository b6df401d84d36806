// SPDX-License-Identifier: GPL-3.0-or-later

package mon

import (
	"context"
	"time"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/radosconn"
	"github.com/ceph/cephmetrics/pkg/socket"
)

type Config struct {
	RBDScan     bool
	ScanTimeout time.Duration
	MaxWorkers  int
}

func New(env module.Env, conn radosconn.Conn, cfg Config) *Mon {
	if cfg.MaxWorkers < 1 {
		cfg.MaxWorkers = 1
	}
	return &Mon{
		Config: cfg,
		env:    env,
		conn:   conn,
		socket: env.AdminSocket("mon." + env.Host),
	}
}

// Mon collects cluster wide metrics. Every monitor host runs it; the RBD image
// scan is split between them.
type Mon struct {
	module.Base
	Config

	env    module.Env
	conn   radosconn.Conn
	socket string
}

func (m *Mon) Probe(context.Context) bool {
	return socket.Exists(m.socket)
}

func (m *Mon) Collect(ctx context.Context) module.Metrics {
	mx := module.Metrics{}

	m.collectCluster(ctx, mx)
	m.collectHealth(ctx, mx)
	m.collectPools(ctx, mx)

	if m.RBDScan {
		m.collectRBD(ctx, mx)
	}

	return mx
}

func (m *Mon) Cleanup(context.Context) {}
