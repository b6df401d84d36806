// SPDX-License-Identifier: GPL-3.0-or-later

package mon

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ceph/cephmetrics/agent/module"
	"github.com/ceph/cephmetrics/pkg/adminsocket"
	"github.com/ceph/cephmetrics/pkg/radosconn"
	"github.com/ceph/cephmetrics/pkg/socket"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	dataPerfDump, _        = os.ReadFile("testdata/perf_dump.json")
	dataHealth, _          = os.ReadFile("testdata/health.json")
	dataOsdPoolStats, _    = os.ReadFile("testdata/osd_pool_stats.json")
	dataMonDump, _         = os.ReadFile("testdata/mon_dump.json")
	dataOsdPoolLsDetail, _ = os.ReadFile("testdata/osd_pool_ls_detail.json")
)

func Test_testDataIsValid(t *testing.T) {
	for name, data := range map[string][]byte{
		"dataPerfDump":        dataPerfDump,
		"dataHealth":          dataHealth,
		"dataOsdPoolStats":    dataOsdPoolStats,
		"dataMonDump":         dataMonDump,
		"dataOsdPoolLsDetail": dataOsdPoolLsDetail,
	} {
		require.NotNil(t, data, name)
	}
}

const testRunDir = "/var/run/ceph"

func newTestMon(host string, cfg Config, sockets *adminsocket.MockCaller, conn *radosconn.MockConn) *Mon {
	env := module.Env{
		Cluster:  "ceph",
		Host:     host,
		RunDir:   testRunDir,
		Interval: 10 * time.Second,
		Sockets:  sockets,
	}
	return New(env, conn, cfg)
}

func caseOK(host string) (*adminsocket.MockCaller, *radosconn.MockConn) {
	sockets := &adminsocket.MockCaller{
		Responses: map[string][]byte{
			adminsocket.MockKey(testRunDir+"/ceph-mon."+host+".asok", "perf", "dump"): dataPerfDump,
		},
	}
	conn := &radosconn.MockConn{
		Responses: map[string][]byte{
			"health":             dataHealth,
			"osd pool stats":     dataOsdPoolStats,
			"mon dump":           dataMonDump,
			"osd pool ls detail": dataOsdPoolLsDetail,
		},
		Images: map[string][]string{
			"backups": {"backup-1", "backup-2"},
			"images":  {"centos7", "rhel7", "ubuntu18"},
			"rbd":     {"disk1"},
			"volumes": {"vol-1", "vol-2", "vol-3", "vol-4"},
		},
	}
	return sockets, conn
}

func TestMon_Probe(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ceph-mon.mon1.asok"), nil, 0o600))

	tests := map[string]struct {
		host string
		want bool
	}{
		"socket exists":  {host: "mon1", want: true},
		"socket missing": {host: "mon2", want: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			m := New(module.Env{Cluster: "ceph", Host: test.host, RunDir: dir}, &radosconn.MockConn{}, Config{})

			assert.Equal(t, test.want, m.Probe(context.Background()))
		})
	}
}

func TestMon_Collect(t *testing.T) {
	sockets, conn := caseOK("mon1")
	m := newTestMon("mon1", Config{RBDScan: true, ScanTimeout: time.Second, MaxWorkers: 2}, sockets, conn)

	mx := m.Collect(context.Background())

	assert.Empty(t, m.TakeErrors())

	wantCluster := map[string]float64{
		"mon.cluster.num_mon":              3,
		"mon.cluster.num_mon_quorum":       3,
		"mon.cluster.num_osd":              6,
		"mon.cluster.num_osd_up":           6,
		"mon.cluster.num_osd_in":           5,
		"mon.cluster.osd_epoch":            412,
		"mon.cluster.osd_bytes":            644245094400,
		"mon.cluster.osd_bytes_used":       21474836480,
		"mon.cluster.osd_bytes_avail":      622770257920,
		"mon.cluster.num_pool":             4,
		"mon.cluster.num_pg":               256,
		"mon.cluster.num_pg_active_clean":  250,
		"mon.cluster.num_pg_active":        256,
		"mon.cluster.num_pg_peering":       0,
		"mon.cluster.num_object":           1024,
		"mon.cluster.num_object_degraded":  3,
		"mon.cluster.num_object_misplaced": 0,
		"mon.cluster.num_object_unfound":   0,
		"mon.cluster.num_bytes":            4294967296,
		"mon.cluster.num_mds_up":           0,
		"mon.cluster.num_mds_in":           0,
		"mon.cluster.num_mds_failed":       0,
		"mon.cluster.mds_epoch":            1,
		"mon.cluster.health":               4,
	}
	for path, v := range wantCluster {
		assert.Equal(t, module.Metric{Value: v, Kind: module.Gauge}, mx[path], path)
	}

	wantPools := map[string]float64{
		"mon.pools.rbd.read_bytes_sec":                          4096000,
		"mon.pools.rbd.write_op_per_sec":                        30,
		"mon.pools.rbd.recovering_bytes_per_sec":                0,
		"mon.pools.volumes.write_bytes_sec":                     2048,
		"mon.pools.volumes.read_bytes_sec":                      0,
		"mon.pools.volumes.num_objects_recovered":               6,
		"mon.pools._rgw_root.read_op_per_sec":                   0,
		"mon.pools.default_rgw_buckets_data.read_bytes_sec":     1000,
		"mon.pools._all_.read_bytes_sec":                        4097000,
		"mon.pools._all_.write_bytes_sec":                       1026048,
		"mon.pools._all_.read_op_per_sec":                       122,
		"mon.pools._all_.write_op_per_sec":                      31,
		"mon.pools._all_.recovering_bytes_per_sec":              8388608,
		"mon.pools._all_.num_bytes_recovered":                   25165824,
		"mon.pools._all_.num_keys_recovered":                    0,
		"mon.pools.default_rgw_buckets_data.num_keys_recovered": 0,
	}
	for path, v := range wantPools {
		assert.Equal(t, module.Metric{Value: v, Kind: module.Gauge}, mx[path], path)
	}

	// 5 pools (4 + _all_) x 10 metrics
	var numPoolMetrics int
	for _, path := range mx.Paths() {
		if len(path) > len("mon.pools.") && path[:len("mon.pools.")] == "mon.pools." {
			numPoolMetrics++
		}
	}
	assert.Equal(t, 50, numPoolMetrics)

	// mon1 is the first of [mon1 mon2 mon3] and owns backups and volumes
	wantRBD := map[string]float64{
		"mon.rbd.shard_peers":          3,
		"mon.rbd.shard_member":         1,
		"mon.rbd.pools.backups.images": 2,
		"mon.rbd.pools.volumes.images": 4,
		"mon.rbd.num_images":           6,
		"mon.rbd.pools_scanned":        2,
		"mon.rbd.pools_abandoned":      0,
	}
	for path, v := range wantRBD {
		assert.Equal(t, module.Metric{Value: v, Kind: module.Gauge}, mx[path], path)
	}
	assert.NotContains(t, mx, "mon.rbd.pools.images.images")
	assert.NotContains(t, mx, "mon.rbd.pools.rbd.images")
}

func TestMon_Collect_ShardsCoverEveryPool(t *testing.T) {
	var total float64
	for _, host := range []string{"mon1", "mon2", "mon3"} {
		sockets, conn := caseOK(host)
		m := newTestMon(host, Config{RBDScan: true, ScanTimeout: time.Second, MaxWorkers: 4}, sockets, conn)

		mx := m.Collect(context.Background())
		total += mx["mon.rbd.num_images"].Value
	}

	// rgw pools are never scanned
	assert.Equal(t, float64(2+3+1+4), total)
}

func TestMon_Collect_RBDScanDisabled(t *testing.T) {
	sockets, conn := caseOK("mon1")
	m := newTestMon("mon1", Config{}, sockets, conn)

	mx := m.Collect(context.Background())

	for _, path := range mx.Paths() {
		assert.NotContains(t, path, "mon.rbd.")
	}
}

func TestMon_Collect_NotAPeer(t *testing.T) {
	sockets, conn := caseOK("mon9")
	m := newTestMon("mon9", Config{RBDScan: true, ScanTimeout: time.Second}, sockets, conn)

	mx := m.Collect(context.Background())

	assert.Empty(t, m.TakeErrors())
	assert.Equal(t, float64(3), mx["mon.rbd.shard_peers"].Value)
	assert.Equal(t, module.Metric{Value: 0, Kind: module.Gauge}, mx["mon.rbd.shard_member"])
	assert.NotContains(t, mx, "mon.rbd.num_images")
}

func TestMon_Collect_AbandonsSlowPools(t *testing.T) {
	sockets, conn := caseOK("mon1")
	conn.ListImagesFunc = func(ctx context.Context, pool string) ([]string, error) {
		if pool == "volumes" {
			<-ctx.Done()
			time.Sleep(20 * time.Millisecond)
			return []string{"late"}, nil
		}
		return conn.Images[pool], nil
	}
	m := newTestMon("mon1", Config{RBDScan: true, ScanTimeout: 100 * time.Millisecond, MaxWorkers: 2}, sockets, conn)

	mx := m.Collect(context.Background())

	assert.Equal(t, float64(2), mx["mon.rbd.num_images"].Value)
	assert.Equal(t, float64(1), mx["mon.rbd.pools_scanned"].Value)
	assert.Equal(t, float64(1), mx["mon.rbd.pools_abandoned"].Value)
	assert.Equal(t, float64(0), mx["mon.rbd.pools.volumes.images"].Value)
}

func TestMon_Collect_PoolScanError(t *testing.T) {
	sockets, conn := caseOK("mon1")
	delete(conn.Images, "backups")
	m := newTestMon("mon1", Config{RBDScan: true, ScanTimeout: time.Second, MaxWorkers: 2}, sockets, conn)

	mx := m.Collect(context.Background())

	assert.Len(t, m.TakeErrors(), 1)
	assert.Equal(t, float64(4), mx["mon.rbd.num_images"].Value)
	assert.Equal(t, float64(1), mx["mon.rbd.pools_abandoned"].Value)
}

func TestMon_Collect_Degraded(t *testing.T) {
	tests := map[string]struct {
		prepare    func(sockets *adminsocket.MockCaller, conn *radosconn.MockConn)
		wantErrors int
		wantAbsent string
	}{
		"mon socket missing": {
			prepare: func(sockets *adminsocket.MockCaller, _ *radosconn.MockConn) {
				sockets.Responses = nil
			},
			wantErrors: 0,
			wantAbsent: "mon.cluster.num_osd",
		},
		"mon socket timeout": {
			prepare: func(sockets *adminsocket.MockCaller, _ *radosconn.MockConn) {
				key := adminsocket.MockKey(testRunDir+"/ceph-mon.mon1.asok", "perf", "dump")
				sockets.Errors = map[string]error{key: fmt.Errorf("execute 'perf dump': %w", socket.ErrTimeout)}
			},
			wantErrors: 1,
			wantAbsent: "mon.cluster.num_osd",
		},
		"unsupported command": {
			prepare: func(sockets *adminsocket.MockCaller, _ *radosconn.MockConn) {
				key := adminsocket.MockKey(testRunDir+"/ceph-mon.mon1.asok", "perf", "dump")
				sockets.Errors = map[string]error{key: adminsocket.ErrInvalidCommand}
			},
			wantErrors: 1,
			wantAbsent: "mon.cluster.num_osd",
		},
		"health fails": {
			prepare: func(_ *adminsocket.MockCaller, conn *radosconn.MockConn) {
				delete(conn.Responses, "health")
			},
			wantErrors: 1,
			wantAbsent: "mon.cluster.health",
		},
		"pool stats fail": {
			prepare: func(_ *adminsocket.MockCaller, conn *radosconn.MockConn) {
				conn.Responses["osd pool stats"] = []byte("{garbage")
			},
			wantErrors: 1,
			wantAbsent: "mon.pools._all_.read_bytes_sec",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			sockets, conn := caseOK("mon1")
			test.prepare(sockets, conn)
			m := newTestMon("mon1", Config{}, sockets, conn)

			mx := m.Collect(context.Background())

			assert.Len(t, m.TakeErrors(), test.wantErrors)
			assert.NotContains(t, mx, test.wantAbsent)
			assert.NotEmpty(t, mx)
		})
	}
}

func TestMon_collectHealth(t *testing.T) {
	tests := map[string]struct {
		resp string
		want float64
	}{
		"ok":             {resp: `{"status":"HEALTH_OK"}`, want: 0},
		"warn":           {resp: `{"status":"HEALTH_WARN"}`, want: 4},
		"err":            {resp: `{"status":"HEALTH_ERR"}`, want: 8},
		"pre luminous":   {resp: `{"overall_status":"HEALTH_OK"}`, want: 0},
		"unknown status": {resp: `{"status":"HEALTH_UNKNOWN"}`, want: 16},
		"no status":      {resp: `{}`, want: 16},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			conn := &radosconn.MockConn{Responses: map[string][]byte{"health": []byte(test.resp)}}
			m := newTestMon("mon1", Config{}, &adminsocket.MockCaller{}, conn)

			mx := module.Metrics{}
			m.collectHealth(context.Background(), mx)

			assert.Equal(t, test.want, mx["mon.cluster.health"].Value)
		})
	}
}

func TestMon_rbdPools(t *testing.T) {
	sockets, conn := caseOK("mon1")
	m := newTestMon("mon1", Config{}, sockets, conn)

	pools, err := m.rbdPools(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"backups", "images", "rbd", "volumes"}, pools)
}
