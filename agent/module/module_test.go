// SPDX-License-Identifier: GPL-3.0-or-later

package module

import (
	"context"
	"fmt"
	"testing"

	"github.com/ceph/cephmetrics/pkg/socket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegister(t *testing.T) {
	name := "mon"
	registry := make(Registry)

	assert.NotPanics(t, func() { registry.Register(name, Creator{}) })

	_, exist := registry.Lookup(name)
	require.True(t, exist)

	assert.Panics(t, func() { registry.Register(name, Creator{}) })
}

func TestRegistry_Names(t *testing.T) {
	registry := Registry{"rgw": {}, "mon": {}, "osd": {}}

	assert.Equal(t, []string{"mon", "osd", "rgw"}, registry.Names())
}

func TestBase_TakeErrors(t *testing.T) {
	var b Base

	assert.Empty(t, b.TakeErrors())

	b.Fail("perf dump: %s", "timeout")
	b.Fail("health: %v", "connection refused")

	assert.Equal(t, []string{"perf dump: timeout", "health: connection refused"}, b.TakeErrors())
	assert.Empty(t, b.TakeErrors())
}

func TestBase_Degrade(t *testing.T) {
	var b Base

	b.Degrade("perf dump", fmt.Errorf("connect: %w", socket.ErrConnectionUnavailable))
	assert.Empty(t, b.TakeErrors())

	b.Degrade("perf dump", fmt.Errorf("receive: %w", socket.ErrTimeout))
	assert.Len(t, b.TakeErrors(), 1)
}

func TestEnv_AdminSocket(t *testing.T) {
	tests := map[string]struct {
		env    Env
		daemon string
		want   string
	}{
		"mon": {
			env:    Env{Cluster: "ceph", RunDir: "/var/run/ceph"},
			daemon: "mon.host1",
			want:   "/var/run/ceph/ceph-mon.host1.asok",
		},
		"trailing slash": {
			env:    Env{Cluster: "backup", RunDir: "/var/run/ceph/"},
			daemon: "osd.12",
			want:   "/var/run/ceph/backup-osd.12.asok",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.want, test.env.AdminSocket(test.daemon))
		})
	}
}

func TestMetrics(t *testing.T) {
	mx := Metrics{}
	mx.Gauge("mon.cluster.num_osd", 6)
	mx.Counter("rgw.requests", 5000)

	other := Metrics{}
	other.Gauge("mon.cluster.num_osd", 7)
	other.Gauge("mon.cluster.health", 0)
	mx.Merge(other)

	assert.Equal(t, Metrics{
		"mon.cluster.num_osd": {Value: 7, Kind: Gauge},
		"mon.cluster.health":  {Value: 0, Kind: Gauge},
		"rgw.requests":        {Value: 5000, Kind: Counter},
	}, mx)
	assert.Equal(t, []string{"mon.cluster.health", "mon.cluster.num_osd", "rgw.requests"}, mx.Paths())
	assert.Equal(t, "counter", Counter.String())
	assert.Equal(t, "gauge", Gauge.String())
}

func TestPath(t *testing.T) {
	assert.Equal(t, "osd.disk.sdb.iops", Path("osd", "disk", "sdb", "iops"))
	assert.Equal(t, "iscsi.gw_stats", Path("", "iscsi", "", "gw_stats"))
	assert.Equal(t, "", Path())
}

func TestMockModule(t *testing.T) {
	m := &MockModule{}
	ctx := context.Background()

	assert.True(t, m.Probe(ctx))
	m.ProbeFunc = func(context.Context) bool { return false }
	assert.False(t, m.Probe(ctx))

	assert.Nil(t, m.Collect(ctx))
	mx := Metrics{"a": {Value: 1}}
	m.CollectFunc = func(context.Context) Metrics { return mx }
	assert.Equal(t, mx, m.Collect(ctx))

	require.False(t, m.CleanupDone)
	m.Cleanup(ctx)
	assert.True(t, m.CleanupDone)
}
